package spaces

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// AutoTransferRun is the outcome of one RunDue pass
type AutoTransferRun struct {
	Due       int `json:"due"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// AutoTransferService executes the recurring transfers configured on spaces
type AutoTransferService struct {
	store     Store
	transfers *TransferService
	locker    *KeyedLocker
	log       zerolog.Logger
}

// NewAutoTransferService creates a new auto-transfer service
func NewAutoTransferService(store Store, transfers *TransferService, locker *KeyedLocker, log zerolog.Logger) *AutoTransferService {
	return &AutoTransferService{
		store:     store,
		transfers: transfers,
		locker:    locker,
		log:       log.With().Str("service", "auto_transfer").Logger(),
	}
}

// IsDue reports whether cfg should run at now. A config that never ran is due immediately.
func IsDue(cfg *AutoTransferConfig, now time.Time) bool {
	if cfg == nil || !cfg.Enabled {
		return false
	}
	if cfg.LastRunAt == nil {
		return true
	}
	return !cfg.Frequency.Next(*cfg.LastRunAt).After(now)
}

// RunDue executes every enabled transfer that is due at now. A failing space
// does not stop the others; failures are joined into the returned error.
func (s *AutoTransferService) RunDue(ctx context.Context, now time.Time) (*AutoTransferRun, error) {
	candidates, err := s.store.Spaces().ListAutoTransferSpaces(ctx)
	if err != nil {
		return nil, err
	}

	run := &AutoTransferRun{}
	var errs []error
	for _, space := range candidates {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !IsDue(space.AutoTransfer, now) {
			continue
		}
		run.Due++

		if err := s.runOne(ctx, space, now); err != nil {
			run.Failed++
			errs = append(errs, fmt.Errorf("space %s: %w", space.ID, err))
			s.log.Error().Err(err).Str("space_id", space.ID).Msg("Automatic transfer failed")
			continue
		}
		run.Completed++
	}

	s.log.Info().
		Int("due", run.Due).
		Int("completed", run.Completed).
		Int("failed", run.Failed).
		Msg("Automatic transfers processed")

	return run, errors.Join(errs...)
}

func (s *AutoTransferService) runOne(ctx context.Context, space *Space, now time.Time) error {
	cfg := space.AutoTransfer

	sourceID := ""
	if cfg.SourceSpaceID != nil {
		sourceID = *cfg.SourceSpaceID
	} else {
		main, err := s.store.Spaces().GetMain(ctx, space.AccountID)
		if err != nil {
			return err
		}
		if main == nil {
			return &NotFoundError{Resource: "main space of account", ID: space.AccountID}
		}
		sourceID = main.ID
	}

	result, err := s.transfers.Transfer(ctx, TransferRequest{
		FromSpaceID: sourceID,
		ToSpaceID:   space.ID,
		Amount:      cfg.Amount,
		Reason:      fmt.Sprintf("automatic %s transfer", cfg.Frequency),
	})
	if err != nil {
		return err
	}

	return s.markRun(ctx, space.ID, now, result.ReferenceID)
}

// markRun stamps LastRunAt on the freshly loaded space so the balance
// written by the transfer is not overwritten
func (s *AutoTransferService) markRun(ctx context.Context, spaceID string, now time.Time, ref string) error {
	unlock := s.locker.Lock(spaceID)
	defer unlock()

	return s.store.InTx(ctx, func(tx Store) error {
		space, err := tx.Spaces().Get(ctx, spaceID)
		if err != nil {
			return err
		}
		if space == nil || space.AutoTransfer == nil {
			return spaceNotFound(spaceID)
		}
		space.AutoTransfer.LastRunAt = timePtr(now.UTC())
		space.UpdatedAt = now.UTC()
		if err := tx.Spaces().Save(ctx, space); err != nil {
			return fmt.Errorf("failed to record run of transfer %s: %w", ref, err)
		}
		return nil
	})
}
