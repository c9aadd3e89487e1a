package spaces

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aristath/spaces/internal/events"
	testingpkg "github.com/aristath/spaces/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var day0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return day0.AddDate(0, 0, n)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	ctx       context.Context
	store     *SQLStore
	locker    *KeyedLocker
	bus       *events.Bus
	clock     *testClock
	lifecycle *LifecycleService
	balances  *BalanceService
	freeze    *FreezeService
	transfers *TransferService
	analytics *AnalyticsService
	autos     *AutoTransferService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, cleanup := testingpkg.NewTestDB(t, "spaces")
	t.Cleanup(cleanup)

	log := zerolog.Nop()
	store := NewSQLStore(db.Conn(), log)
	return newTestEnvWithStore(t, store, store)
}

// newTestEnvWithStore wires the services over store; sqlStore backs direct assertions
func newTestEnvWithStore(t *testing.T, store Store, sqlStore *SQLStore) *testEnv {
	t.Helper()

	log := zerolog.Nop()
	clock := &testClock{now: day0}
	bus := events.NewBus(log)
	emitter := events.NewManager(bus, log)
	locker := NewKeyedLocker()

	env := &testEnv{
		ctx:       context.Background(),
		store:     sqlStore,
		locker:    locker,
		bus:       bus,
		clock:     clock,
		lifecycle: NewLifecycleService(store, locker, emitter, log),
		balances:  NewBalanceService(store, NewLedgerAccountTotals(store), locker, emitter, log),
		freeze:    NewFreezeService(store, locker, emitter, log),
		analytics: NewAnalyticsService(store, DefaultAnalyticsConfig(), log),
	}
	env.transfers = NewTransferService(store, env.balances, emitter, log)
	env.autos = NewAutoTransferService(store, env.transfers, locker, log)

	env.lifecycle.now = clock.Now
	env.balances.now = clock.Now
	env.freeze.now = clock.Now

	return env
}

func (e *testEnv) mainSpace(t *testing.T, accountID string) *Space {
	t.Helper()
	space, err := e.lifecycle.CreateMainSpace(e.ctx, accountID)
	require.NoError(t, err)
	return space
}

func (e *testEnv) space(t *testing.T, accountID, name string, spaceType SpaceType) *Space {
	t.Helper()
	space, err := e.lifecycle.CreateSpace(e.ctx, CreateSpaceRequest{
		AccountID: accountID,
		Name:      name,
		Type:      spaceType,
	})
	require.NoError(t, err)
	return space
}

func (e *testEnv) deposit(t *testing.T, spaceID, amount string, at time.Time) *Space {
	t.Helper()
	e.clock.Set(at)
	space, err := e.balances.ApplyDelta(e.ctx, ApplyDeltaRequest{
		SpaceID: spaceID,
		Amount:  dec(amount),
		Reason:  "deposit",
		Type:    EntryTypeDeposit,
	})
	require.NoError(t, err)
	return space
}

func (e *testEnv) reload(t *testing.T, spaceID string) *Space {
	t.Helper()
	space, err := e.store.Spaces().Get(e.ctx, spaceID)
	require.NoError(t, err)
	require.NotNil(t, space)
	return space
}

func (e *testEnv) entries(t *testing.T, spaceID string) []*LedgerEntry {
	t.Helper()
	entries, err := e.store.Ledger().Query(e.ctx, spaceID, time.Unix(0, 0), day(36500))
	require.NoError(t, err)
	return entries
}

// drain collects the event types published so far
func drain(sub *events.Subscription) []events.EventType {
	var types []events.EventType
	for {
		select {
		case event := <-sub.C:
			types = append(types, event.Type)
		default:
			return types
		}
	}
}
