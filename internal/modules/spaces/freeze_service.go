package spaces

import (
	"context"
	"time"

	"github.com/aristath/spaces/internal/events"
	"github.com/rs/zerolog"
)

// FreezeService moves spaces between ACTIVE and FROZEN.
//
//	ACTIVE --Freeze--> FROZEN --Unfreeze--> ACTIVE
//
// There is no terminal state. Frozen spaces reject balance changes but stay readable.
type FreezeService struct {
	store  Store
	locker *KeyedLocker
	events EventEmitter
	log    zerolog.Logger
	now    func() time.Time
}

// NewFreezeService creates a new freeze service
func NewFreezeService(store Store, locker *KeyedLocker, emitter EventEmitter, log zerolog.Logger) *FreezeService {
	return &FreezeService{
		store:  store,
		locker: locker,
		events: emitter,
		log:    log.With().Str("service", "freeze").Logger(),
		now:    time.Now,
	}
}

// Freeze transitions ACTIVE -> FROZEN
func (s *FreezeService) Freeze(ctx context.Context, spaceID string) (*Space, error) {
	space, err := s.transition(ctx, spaceID, StateFrozen)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("space_id", space.ID).Msg("Space frozen")
	emit(s.events, events.SpaceFrozen, &events.SpaceFrozenData{
		SpaceID:   space.ID,
		AccountID: space.AccountID,
		FrozenAt:  formatTime(*space.FrozenAt),
	})

	return space, nil
}

// Unfreeze transitions FROZEN -> ACTIVE
func (s *FreezeService) Unfreeze(ctx context.Context, spaceID string) (*Space, error) {
	space, err := s.transition(ctx, spaceID, StateActive)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("space_id", space.ID).Msg("Space unfrozen")
	emit(s.events, events.SpaceUnfrozen, &events.SpaceUnfrozenData{
		SpaceID:    space.ID,
		AccountID:  space.AccountID,
		UnfrozenAt: formatTime(*space.UnfrozenAt),
	})

	return space, nil
}

// State returns the current state of a space
func (s *FreezeService) State(ctx context.Context, spaceID string) (SpaceState, error) {
	space, err := s.store.Spaces().Get(ctx, spaceID)
	if err != nil {
		return "", err
	}
	if space == nil {
		return "", spaceNotFound(spaceID)
	}
	return space.State(), nil
}

func (s *FreezeService) transition(ctx context.Context, spaceID string, target SpaceState) (*Space, error) {
	unlock := s.locker.Lock(spaceID)
	defer unlock()

	var space *Space
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		space, err = tx.Spaces().Get(ctx, spaceID)
		if err != nil {
			return err
		}
		if space == nil {
			return spaceNotFound(spaceID)
		}

		now := s.now().UTC()
		switch target {
		case StateFrozen:
			if space.IsFrozen {
				return &StateError{SpaceID: spaceID, Message: "is already frozen"}
			}
			space.IsFrozen = true
			space.FrozenAt = timePtr(now)
		case StateActive:
			if !space.IsFrozen {
				return &StateError{SpaceID: spaceID, Message: "is not frozen"}
			}
			space.IsFrozen = false
			space.UnfrozenAt = timePtr(now)
		}
		space.UpdatedAt = now

		return tx.Spaces().Save(ctx, space)
	})
	if err != nil {
		s.log.Debug().Err(err).Str("space_id", spaceID).Str("target", string(target)).Msg("State transition rejected")
		return nil, err
	}

	return space, nil
}
