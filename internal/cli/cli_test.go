package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewRootCommand(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--data-dir", dataDir, "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func decodeObject(t *testing.T, out string) map[string]interface{} {
	t.Helper()
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestCLI_SpaceLifecycle(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPACES_DATA_DIR", dir)

	out, err := runCLI(t, dir, "create", "--main", "A1")
	require.NoError(t, err)
	mainID := decodeObject(t, out)["id"].(string)

	out, err = runCLI(t, dir, "create", "A1", "Holiday", "--type", "vacation")
	require.NoError(t, err)
	holiday := decodeObject(t, out)
	holidayID := holiday["id"].(string)
	assert.Equal(t, "VACATION", holiday["space_type"])

	out, err = runCLI(t, dir, "adjust", mainID, "100")
	require.NoError(t, err)
	assert.Equal(t, "100", decodeObject(t, out)["balance"])

	out, err = runCLI(t, dir, "transfer", mainID, holidayID, "40")
	require.NoError(t, err)
	result := decodeObject(t, out)
	assert.Equal(t, "60", result["from"].(map[string]interface{})["balance"])
	assert.Equal(t, "40", result["to"].(map[string]interface{})["balance"])

	out, err = runCLI(t, dir, "verify", "A1")
	require.NoError(t, err)
	var reports []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, true, reports[0]["consistent"])

	out, err = runCLI(t, dir, "freeze", holidayID)
	require.NoError(t, err)
	assert.Equal(t, true, decodeObject(t, out)["is_frozen"])

	_, err = runCLI(t, dir, "adjust", holidayID, "5")
	assert.Error(t, err, "frozen spaces reject balance changes")

	_, err = runCLI(t, dir, "unfreeze", holidayID)
	require.NoError(t, err)

	out, err = runCLI(t, dir, "report", holidayID, "--days", "1")
	require.NoError(t, err)
	assert.Equal(t, "40", decodeObject(t, out)["closing_balance"])

	out, err = runCLI(t, dir, "list", "A1")
	require.NoError(t, err)
	var list []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	assert.Len(t, list, 2)
}

func TestCLI_ArgumentErrors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPACES_DATA_DIR", dir)

	tests := []struct {
		name string
		args []string
	}{
		{"missing name", []string{"create", "A1"}},
		{"bad amount", []string{"adjust", "s1", "ten"}},
		{"too many decimals", []string{"adjust", "s1", "1.23456"}},
		{"non-positive window", []string{"report", "s1", "--days", "0"}},
		{"unknown space", []string{"freeze", "missing"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCLI(t, dir, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestCLI_RunAutoTransfersWithNothingDue(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SPACES_DATA_DIR", dir)

	out, err := runCLI(t, dir, "run-auto-transfers")
	require.NoError(t, err)
	assert.Equal(t, float64(0), decodeObject(t, out)["due"])
}
