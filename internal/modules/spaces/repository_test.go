package spaces

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpaceRepository_SaveRejectsStaleVersion(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A1")

	first := env.reload(t, main.ID)
	second := env.reload(t, main.ID)

	first.Name = "Everyday"
	require.NoError(t, env.store.Spaces().Save(env.ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Name = "Stale"
	err := env.store.Spaces().Save(env.ctx, second)
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, "Everyday", env.reload(t, main.ID).Name)
}

func TestSpaceRepository_Lookups(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A2")
	env.mainSpace(t, "A1")
	env.space(t, "A2", "Savings", SpaceTypeSavings)

	missing, err := env.store.Spaces().Get(env.ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	found, err := env.store.Spaces().GetMain(env.ctx, "A2")
	require.NoError(t, err)
	assert.Equal(t, main.ID, found.ID)

	none, err := env.store.Spaces().GetMain(env.ctx, "A3")
	require.NoError(t, err)
	assert.Nil(t, none)

	all, err := env.store.Spaces().GetAllForAccount(env.ctx, "A2")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, SpaceTypeMain, all[0].Type)

	ids, err := env.store.Spaces().ListAccountIDs(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "A2"}, ids)
}

func TestSpaceRepository_InsertDuplicateMainConflicts(t *testing.T) {
	env := newTestEnv(t)
	env.mainSpace(t, "A1")

	err := env.store.Spaces().Insert(env.ctx, &Space{
		ID: "other", AccountID: "A1", Name: "Main", Type: SpaceTypeMain,
		CreatedAt: day0, UpdatedAt: day0,
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestLedgerRepository_OrderingAndLookups(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A1")
	ledger := env.store.Ledger()

	same := day(5)
	for i, amount := range []string{"1", "2", "3"} {
		entry := &LedgerEntry{
			SpaceID:      main.ID,
			Amount:       dec(amount),
			BalanceAfter: dec(amount),
			OccurredAt:   same,
			Description:  "tie",
			Type:         EntryTypeDeposit,
		}
		require.NoError(t, ledger.Append(env.ctx, entry))
		assert.Greater(t, entry.Seq, int64(i))
	}
	require.NoError(t, ledger.Append(env.ctx, &LedgerEntry{
		SpaceID: main.ID, Amount: dec("-1"), BalanceAfter: dec("2"),
		OccurredAt: day(1), Description: "earlier", Type: EntryTypeFee,
	}))

	entries, err := ledger.Query(env.ctx, main.ID, day(0), day(10))
	require.NoError(t, err)
	require.Len(t, entries, 4)
	assert.Equal(t, "earlier", entries[0].Description)
	assert.True(t, dec("1").Equal(entries[1].Amount))
	assert.True(t, dec("3").Equal(entries[3].Amount), "ties keep insertion order")

	last, err := ledger.LastAtOrBefore(env.ctx, main.ID, same)
	require.NoError(t, err)
	assert.True(t, dec("3").Equal(last.BalanceAfter))

	before, err := ledger.LastBefore(env.ctx, main.ID, same)
	require.NoError(t, err)
	assert.Equal(t, "earlier", before.Description)

	none, err := ledger.LastBefore(env.ctx, main.ID, day(1))
	require.NoError(t, err)
	assert.Nil(t, none)

	total, err := ledger.SumForAccount(env.ctx, "A1")
	require.NoError(t, err)
	assert.True(t, dec("5").Equal(total))
}

func TestLedgerRepository_PreservesNanosecondTimestamps(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A1")

	at := time.Date(2024, 2, 29, 13, 14, 15, 123456789, time.UTC)
	require.NoError(t, env.store.Ledger().Append(env.ctx, &LedgerEntry{
		SpaceID: main.ID, Amount: dec("0.0001"), BalanceAfter: dec("0.0001"),
		OccurredAt: at, Description: "precise", Type: EntryTypeInterest,
	}))

	entries := env.entries(t, main.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, at, entries[0].OccurredAt)
	assert.True(t, dec("0.0001").Equal(entries[0].Amount))
}

func TestSpaceRepository_OrdersByCreationTimeAcrossFractionalSeconds(t *testing.T) {
	env := newTestEnv(t)

	whole := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)
	fractional := whole.Add(100 * time.Millisecond)

	// ids sort opposite to creation time so only created_at decides
	for _, s := range []*Space{
		{ID: "a-later", AccountID: "A1", Name: "Later", Type: SpaceTypeCustom, CreatedAt: fractional, UpdatedAt: fractional},
		{ID: "z-earlier", AccountID: "A1", Name: "Earlier", Type: SpaceTypeCustom, CreatedAt: whole, UpdatedAt: whole},
	} {
		require.NoError(t, env.store.Spaces().Insert(env.ctx, s))
	}

	all, err := env.store.Spaces().GetAllForAccount(env.ctx, "A1")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "z-earlier", all[0].ID)
	assert.Equal(t, "a-later", all[1].ID)
	assert.Equal(t, whole, all[0].CreatedAt)
	assert.Equal(t, fractional, all[1].CreatedAt)

	assert.Len(t, formatTime(whole), len(formatTime(fractional)))
}

func TestSQLStore_SnapshotDoesNotWaitForWriter(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A1")

	type result struct {
		name string
		err  error
	}

	err := env.store.InTx(env.ctx, func(tx Store) error {
		space, err := tx.Spaces().Get(env.ctx, main.ID)
		if err != nil {
			return err
		}
		space.Name = "Pending"
		if err := tx.Spaces().Save(env.ctx, space); err != nil {
			return err
		}

		done := make(chan result, 1)
		go func() {
			var name string
			err := env.store.Snapshot(env.ctx, func(r Store) error {
				s, err := r.Spaces().Get(env.ctx, main.ID)
				if err != nil {
					return err
				}
				name = s.Name
				return nil
			})
			done <- result{name: name, err: err}
		}()

		select {
		case res := <-done:
			assert.NoError(t, res.err)
			assert.Equal(t, main.Name, res.name, "uncommitted write is not visible")
		case <-time.After(2 * time.Second):
			t.Error("snapshot blocked behind the open write transaction")
		}
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "Pending", env.reload(t, main.ID).Name)
}
