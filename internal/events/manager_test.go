package events

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_EmitTypedPublishesFlattenedData(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())
	fixed := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return fixed }

	sub := bus.Subscribe(4)
	defer sub.Close()

	manager.EmitTyped(BalanceChanged, "spaces", &BalanceChangedData{
		SpaceID:    "space-1",
		AccountID:  "acc-1",
		Amount:     "500.0000",
		NewBalance: "500.0000",
		EntryType:  "DEPOSIT",
		Reason:     "initial deposit",
	})

	select {
	case event := <-sub.C:
		assert.Equal(t, BalanceChanged, event.Type)
		assert.Equal(t, "spaces", event.Module)
		assert.Equal(t, fixed, event.Timestamp)
		assert.Equal(t, "space-1", event.Data["space_id"])
		assert.Equal(t, "500.0000", event.Data["new_balance"])
		_, hasRef := event.Data["reference_id"]
		assert.False(t, hasRef)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestManager_EmitError(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	manager := NewManager(bus, zerolog.Nop())
	sub := bus.Subscribe(1)
	defer sub.Close()

	manager.EmitError("scheduler", errors.New("disk full"), map[string]interface{}{"job": "backup"})

	event := <-sub.C
	assert.Equal(t, ErrorOccurred, event.Type)
	assert.Equal(t, "disk full", event.Data["error"])
}

func TestBus_DropsWhenSubscriberIsFull(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	sub := bus.Subscribe(1)
	defer sub.Close()

	bus.Publish(Event{Type: SpaceCreated})
	bus.Publish(Event{Type: SpaceUpdated})

	require.Len(t, sub.C, 1)
	assert.Equal(t, SpaceCreated, (<-sub.C).Type)
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	bus := NewBus(zerolog.Nop())
	sub := bus.Subscribe(1)
	require.Equal(t, 1, bus.SubscriberCount())

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, bus.SubscriberCount())
	_, open := <-sub.C
	assert.False(t, open)
}

func TestEventDataTypes(t *testing.T) {
	cases := []struct {
		data EventData
		want EventType
	}{
		{&SpaceCreatedData{}, SpaceCreated},
		{&SpaceUpdatedData{}, SpaceUpdated},
		{&BalanceChangedData{}, BalanceChanged},
		{&SpaceFrozenData{}, SpaceFrozen},
		{&SpaceUnfrozenData{}, SpaceUnfrozen},
		{&TransferCompletedData{}, TransferCompleted},
		{&TransferCompensatedData{}, TransferCompensated},
		{&InvariantViolatedData{}, InvariantViolated},
		{&ErrorEventData{}, ErrorOccurred},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.data.EventType())
	}
}
