package spaces

import (
	"testing"

	"github.com/aristath/spaces/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFreeze_StateMachine(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A1")
	sub := env.bus.Subscribe(8)
	defer sub.Close()

	env.clock.Set(day(1))
	frozen, err := env.freeze.Freeze(env.ctx, main.ID)
	require.NoError(t, err)
	assert.True(t, frozen.IsFrozen)
	assert.Equal(t, StateFrozen, frozen.State())
	assert.Equal(t, day(1), *frozen.FrozenAt)

	_, err = env.freeze.Freeze(env.ctx, main.ID)
	assert.ErrorIs(t, err, ErrState)
	assert.Contains(t, err.Error(), "already frozen")

	env.clock.Set(day(2))
	active, err := env.freeze.Unfreeze(env.ctx, main.ID)
	require.NoError(t, err)
	assert.False(t, active.IsFrozen)
	assert.Equal(t, day(2), *active.UnfrozenAt)
	assert.Equal(t, day(1), *active.FrozenAt, "frozen_at is kept as history")

	_, err = env.freeze.Unfreeze(env.ctx, main.ID)
	assert.ErrorIs(t, err, ErrState)
	assert.Contains(t, err.Error(), "not frozen")

	_, err = env.freeze.Freeze(env.ctx, main.ID)
	require.NoError(t, err)

	state, err := env.freeze.State(env.ctx, main.ID)
	require.NoError(t, err)
	assert.Equal(t, StateFrozen, state)

	assert.Equal(t, []events.EventType{
		events.SpaceFrozen, events.SpaceUnfrozen, events.SpaceFrozen,
	}, drain(sub))
}

func TestUnfreeze_FreshSpaceIsActive(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A1")

	_, err := env.freeze.Unfreeze(env.ctx, main.ID)
	assert.ErrorIs(t, err, ErrState)
	assert.Nil(t, env.reload(t, main.ID).UnfrozenAt)
}

func TestFreeze_DoesNotTouchBalance(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A1")
	env.deposit(t, main.ID, "75", day(1))

	frozen, err := env.freeze.Freeze(env.ctx, main.ID)
	require.NoError(t, err)
	assert.True(t, dec("75").Equal(frozen.Balance))
	assert.Len(t, env.entries(t, main.ID), 1)
}

func TestFreeze_FrozenSpaceStaysReadable(t *testing.T) {
	env := newTestEnv(t)
	main := env.mainSpace(t, "A1")
	env.deposit(t, main.ID, "75", day(1))
	_, err := env.freeze.Freeze(env.ctx, main.ID)
	require.NoError(t, err)

	space, err := env.lifecycle.GetSpace(env.ctx, main.ID)
	require.NoError(t, err)
	assert.True(t, dec("75").Equal(space.Balance))

	report, err := env.analytics.ComputeReport(env.ctx, main.ID, day0, day(2))
	require.NoError(t, err)
	assert.True(t, dec("75").Equal(report.ClosingBalance))
}

func TestFreeze_UnknownSpace(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.freeze.Freeze(env.ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.freeze.Unfreeze(env.ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = env.freeze.State(env.ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
