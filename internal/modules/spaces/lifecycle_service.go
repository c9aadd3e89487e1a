package spaces

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/spaces/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const eventModule = "spaces"

// EventEmitter publishes domain events
type EventEmitter interface {
	EmitTyped(eventType events.EventType, module string, data events.EventData)
}

func emit(e EventEmitter, eventType events.EventType, data events.EventData) {
	if e != nil {
		e.EmitTyped(eventType, eventModule, data)
	}
}

// LifecycleService creates spaces and updates their descriptive fields
type LifecycleService struct {
	store  Store
	locker *KeyedLocker
	events EventEmitter
	log    zerolog.Logger
	now    func() time.Time
	newID  func() string
}

// NewLifecycleService creates a new lifecycle service
func NewLifecycleService(store Store, locker *KeyedLocker, emitter EventEmitter, log zerolog.Logger) *LifecycleService {
	return &LifecycleService{
		store:  store,
		locker: locker,
		events: emitter,
		log:    log.With().Str("service", "space_lifecycle").Logger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// CreateMainSpace creates the MAIN space of a new account
func (s *LifecycleService) CreateMainSpace(ctx context.Context, accountID string) (*Space, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return nil, validationf("account_id", "account id is required")
	}

	now := s.now().UTC()
	space := &Space{
		ID:        s.newID(),
		AccountID: accountID,
		Name:      "Main",
		Type:      SpaceTypeMain,
		IsVisible: true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		existing, err := tx.Spaces().GetMain(ctx, accountID)
		if err != nil {
			return err
		}
		if existing != nil {
			return &ConflictError{Message: fmt.Sprintf("account %s already has a main space", accountID)}
		}
		return tx.Spaces().Insert(ctx, space)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("space_id", space.ID).
		Str("account_id", accountID).
		Msg("Created main space")

	emit(s.events, events.SpaceCreated, &events.SpaceCreatedData{
		SpaceID:   space.ID,
		AccountID: accountID,
		Name:      space.Name,
		SpaceType: string(space.Type),
	})

	return space, nil
}

// CreateSpace creates a non-MAIN space
func (s *LifecycleService) CreateSpace(ctx context.Context, req CreateSpaceRequest) (*Space, error) {
	now := s.now().UTC()

	req.AccountID = strings.TrimSpace(req.AccountID)
	if req.AccountID == "" {
		return nil, validationf("account_id", "account id is required")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, validationf("name", "name must not be empty")
	}
	if req.Type == SpaceTypeMain {
		return nil, validationf("space_type", "MAIN is reserved for the account's default space")
	}
	if !req.Type.IsValid() {
		return nil, validationf("space_type", "unknown space type %q", req.Type)
	}
	if err := validateGoal(req.Goal, now); err != nil {
		return nil, err
	}
	if err := validateAutoTransfer(req.AutoTransfer); err != nil {
		return nil, err
	}

	space := &Space{
		ID:           s.newID(),
		AccountID:    req.AccountID,
		Name:         name,
		Type:         req.Type,
		Icon:         req.Icon,
		Color:        req.Color,
		IsVisible:    true,
		Goal:         req.Goal,
		AutoTransfer: req.AutoTransfer,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		main, err := tx.Spaces().GetMain(ctx, req.AccountID)
		if err != nil {
			return err
		}
		if main == nil {
			return &NotFoundError{Resource: "account", ID: req.AccountID}
		}
		if err := checkTransferSource(ctx, tx, space); err != nil {
			return err
		}
		return tx.Spaces().Insert(ctx, space)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Str("space_id", space.ID).
		Str("account_id", space.AccountID).
		Str("space_type", string(space.Type)).
		Str("name", space.Name).
		Msg("Created space")

	emit(s.events, events.SpaceCreated, &events.SpaceCreatedData{
		SpaceID:   space.ID,
		AccountID: space.AccountID,
		Name:      space.Name,
		SpaceType: string(space.Type),
	})

	return space, nil
}

// Reconfigure applies a partial update of descriptive fields.
// Balance, freeze state and audit fields are never touched.
func (s *LifecycleService) Reconfigure(ctx context.Context, spaceID string, patch SpacePatch) (*Space, error) {
	now := s.now().UTC()

	if patch.Name != nil {
		trimmed := strings.TrimSpace(*patch.Name)
		if trimmed == "" {
			return nil, validationf("name", "name must not be empty")
		}
		patch.Name = &trimmed
	}
	if patch.Goal != nil && patch.ClearGoal {
		return nil, validationf("goal", "cannot set and clear the goal in one update")
	}
	if patch.AutoTransfer != nil && patch.ClearAutoTransfer {
		return nil, validationf("auto_transfer", "cannot set and clear the transfer config in one update")
	}
	if err := validateGoal(patch.Goal, now); err != nil {
		return nil, err
	}
	if err := validateAutoTransfer(patch.AutoTransfer); err != nil {
		return nil, err
	}

	unlock := s.locker.Lock(spaceID)
	defer unlock()

	var (
		space  *Space
		fields []string
	)
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		space, err = tx.Spaces().Get(ctx, spaceID)
		if err != nil {
			return err
		}
		if space == nil {
			return spaceNotFound(spaceID)
		}

		if patch.Name != nil {
			space.Name = *patch.Name
			fields = append(fields, "name")
		}
		if patch.Icon != nil {
			space.Icon = patch.Icon
			fields = append(fields, "icon")
		}
		if patch.Color != nil {
			space.Color = patch.Color
			fields = append(fields, "color")
		}
		if patch.IsVisible != nil {
			space.IsVisible = *patch.IsVisible
			fields = append(fields, "is_visible")
		}
		switch {
		case patch.ClearGoal:
			space.Goal = nil
			fields = append(fields, "goal")
		case patch.Goal != nil:
			space.Goal = patch.Goal
			fields = append(fields, "goal")
		}
		switch {
		case patch.ClearAutoTransfer:
			space.AutoTransfer = nil
			fields = append(fields, "auto_transfer")
		case patch.AutoTransfer != nil:
			cfg := *patch.AutoTransfer
			if space.AutoTransfer != nil && cfg.LastRunAt == nil {
				cfg.LastRunAt = space.AutoTransfer.LastRunAt
			}
			space.AutoTransfer = &cfg
			fields = append(fields, "auto_transfer")
			if err := checkTransferSource(ctx, tx, space); err != nil {
				return err
			}
		}

		if len(fields) == 0 {
			return nil
		}
		space.UpdatedAt = now
		return tx.Spaces().Save(ctx, space)
	})
	if err != nil {
		return nil, err
	}

	if len(fields) > 0 {
		s.log.Info().
			Str("space_id", space.ID).
			Strs("fields", fields).
			Msg("Reconfigured space")

		emit(s.events, events.SpaceUpdated, &events.SpaceUpdatedData{
			SpaceID:   space.ID,
			AccountID: space.AccountID,
			Fields:    fields,
		})
	}

	return space, nil
}

// GetSpace gets a space by ID
func (s *LifecycleService) GetSpace(ctx context.Context, spaceID string) (*Space, error) {
	space, err := s.store.Spaces().Get(ctx, spaceID)
	if err != nil {
		return nil, err
	}
	if space == nil {
		return nil, spaceNotFound(spaceID)
	}
	return space, nil
}

// ListSpaces lists the spaces of an account, optionally including hidden ones
func (s *LifecycleService) ListSpaces(ctx context.Context, accountID string, includeHidden bool) ([]*Space, error) {
	all, err := s.store.Spaces().GetAllForAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, &NotFoundError{Resource: "account", ID: accountID}
	}
	if includeHidden {
		return all, nil
	}

	visible := make([]*Space, 0, len(all))
	for _, space := range all {
		if space.IsVisible {
			visible = append(visible, space)
		}
	}
	return visible, nil
}

func validateGoal(goal *Goal, now time.Time) error {
	if goal == nil {
		return nil
	}
	if goal.TargetAmount != nil {
		if !goal.TargetAmount.IsPositive() {
			return validationf("target_amount", "target amount must be greater than zero")
		}
		if err := checkScale("target_amount", *goal.TargetAmount); err != nil {
			return err
		}
	}
	if goal.TargetDate != nil && !goal.TargetDate.After(now) {
		return validationf("target_date", "target date must be in the future")
	}
	return nil
}

func validateAutoTransfer(cfg *AutoTransferConfig) error {
	if cfg == nil {
		return nil
	}
	if !cfg.Frequency.IsValid() {
		return validationf("frequency", "unknown frequency %q", cfg.Frequency)
	}
	if err := checkScale("amount", cfg.Amount); err != nil {
		return err
	}
	if cfg.Enabled && !cfg.Amount.IsPositive() {
		return validationf("amount", "transfer amount must be greater than zero")
	}
	return nil
}

// checkTransferSource requires the configured source to be another space of the same account.
// A nil source means the MAIN space, so MAIN itself must name one.
func checkTransferSource(ctx context.Context, tx Store, space *Space) error {
	if space.AutoTransfer == nil {
		return nil
	}
	if space.AutoTransfer.SourceSpaceID == nil {
		if space.Type == SpaceTypeMain {
			return validationf("source_space_id", "the main space needs an explicit transfer source")
		}
		return nil
	}
	sourceID := *space.AutoTransfer.SourceSpaceID
	if sourceID == space.ID {
		return validationf("source_space_id", "a space cannot transfer into itself")
	}

	source, err := tx.Spaces().Get(ctx, sourceID)
	if err != nil {
		return err
	}
	if source == nil || source.AccountID != space.AccountID {
		return spaceNotFound(sourceID)
	}
	return nil
}
