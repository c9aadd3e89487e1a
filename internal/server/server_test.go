package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/spaces/internal/config"
	"github.com/aristath/spaces/internal/di"
	"github.com/aristath/spaces/internal/events"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"nhooyr.io/websocket"
)

func setupServer(t *testing.T) (*httptest.Server, *di.Container) {
	t.Helper()

	cfg := &config.Config{
		DataDir: t.TempDir(),
		Port:    8080,
		DevMode: true,
		Schedules: config.SchedulesConfig{
			AutoTransfer:   "0 0 6 * * *",
			InvariantCheck: "0 */15 * * * *",
			WALCheckpoint:  "0 0 * * * *",
			Backup:         "0 30 3 * * *",
		},
		Backup:    config.BackupConfig{RetentionDays: 14},
		Analytics: config.AnalyticsConfig{Compounding: true, DaysPerYear: 365},
	}

	container, jobs, err := di.Wire(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { container.Close() })

	srv := New(Config{
		Log:       zerolog.Nop(),
		Port:      cfg.Port,
		DevMode:   true,
		Container: container,
		Jobs:      jobs,
	})

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, container
}

func TestServer_RoutesAndMetrics(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/accounts/A1/spaces/main", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, err = http.Post(ts.URL+"/api/jobs/invariant_check", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, "spaces_http_requests_total")
	assert.Contains(t, text, `route="/api/accounts/{accountID}/spaces/main"`)
	assert.Contains(t, text, `spaces_scheduler_job_runs_total{job="invariant_check",status="success"}`)
}

func TestServer_CORSPreflightAllowsPatch(t *testing.T) {
	ts, _ := setupServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/spaces/x", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), "PATCH")
}

func dialStream(t *testing.T, ts *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/events/stream" + query
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func TestEventsStream_JSON(t *testing.T) {
	ts, container := setupServer(t)
	conn := dialStream(t, ts, "?types=SPACE_CREATED")

	require.Eventually(t, func() bool { return container.EventBus.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(ts.URL+"/api/accounts/A1/spaces/main", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgType, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, msgType)

	var event events.Event
	require.NoError(t, json.Unmarshal(data, &event))
	assert.Equal(t, events.SpaceCreated, event.Type)
	assert.Equal(t, "A1", event.Data["account_id"])
}

func TestEventsStream_MsgpackFiltersTypes(t *testing.T) {
	ts, container := setupServer(t)
	conn := dialStream(t, ts, "?format=msgpack&types=SPACE_FROZEN")

	require.Eventually(t, func() bool { return container.EventBus.SubscriberCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Post(ts.URL+"/api/accounts/A1/spaces/main", "application/json", nil)
	require.NoError(t, err)
	var created map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	resp.Body.Close()

	resp, err = http.Post(ts.URL+"/api/spaces/"+created["id"].(string)+"/freeze", "application/json", bytes.NewReader(nil))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	msgType, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageBinary, msgType)

	var event events.Event
	require.NoError(t, msgpack.Unmarshal(data, &event))
	assert.Equal(t, events.SpaceFrozen, event.Type, "SPACE_CREATED is filtered out")
}

func TestEventsStream_RejectsUnknownFormat(t *testing.T) {
	ts, _ := setupServer(t)

	resp, err := http.Get(ts.URL + "/api/events/stream?format=xml")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
