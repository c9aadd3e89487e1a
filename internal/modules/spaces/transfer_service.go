package spaces

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/spaces/internal/events"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TransferService moves value between two spaces of one account as two
// balance changes: a TRANSFER_OUT debit, then a TRANSFER_IN credit. Both
// legs share a reference id. When the credit fails the debit is reversed
// with a compensating TRANSFER_IN on the source.
type TransferService struct {
	store    Store
	balances *BalanceService
	events   EventEmitter
	log      zerolog.Logger
	newID    func() string
}

// NewTransferService creates a new transfer service
func NewTransferService(store Store, balances *BalanceService, emitter EventEmitter, log zerolog.Logger) *TransferService {
	return &TransferService{
		store:    store,
		balances: balances,
		events:   emitter,
		log:      log.With().Str("service", "transfer").Logger(),
		newID:    uuid.NewString,
	}
}

// Transfer executes the two legs and compensates a failed credit
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	if err := s.validate(ctx, req); err != nil {
		return nil, err
	}

	ref := s.newID()
	if req.ReferenceID != nil && strings.TrimSpace(*req.ReferenceID) != "" {
		ref = *req.ReferenceID
	}

	from, err := s.balances.ApplyDelta(ctx, ApplyDeltaRequest{
		SpaceID:     req.FromSpaceID,
		Amount:      req.Amount.Neg(),
		Reason:      req.Reason,
		Type:        EntryTypeTransferOut,
		ReferenceID: &ref,
	})
	if err != nil {
		return nil, fmt.Errorf("transfer %s debit leg failed: %w", ref, err)
	}

	to, creditErr := s.balances.ApplyDelta(ctx, ApplyDeltaRequest{
		SpaceID:     req.ToSpaceID,
		Amount:      req.Amount,
		Reason:      req.Reason,
		Type:        EntryTypeTransferIn,
		ReferenceID: &ref,
	})
	if creditErr != nil {
		return nil, s.compensate(ctx, req, ref, creditErr)
	}

	s.log.Info().
		Str("reference_id", ref).
		Str("from_space_id", from.ID).
		Str("to_space_id", to.ID).
		Str("amount", formatAmount(req.Amount)).
		Msg("Transfer completed")

	emit(s.events, events.TransferCompleted, &events.TransferCompletedData{
		ReferenceID: ref,
		FromSpaceID: from.ID,
		ToSpaceID:   to.ID,
		Amount:      formatAmount(req.Amount),
	})

	return &TransferResult{ReferenceID: ref, From: from, To: to}, nil
}

func (s *TransferService) compensate(ctx context.Context, req TransferRequest, ref string, creditErr error) error {
	creditErr = fmt.Errorf("transfer %s credit leg failed: %w", ref, creditErr)

	_, compErr := s.balances.ApplyDelta(ctx, ApplyDeltaRequest{
		SpaceID:     req.FromSpaceID,
		Amount:      req.Amount,
		Reason:      "reversal: " + req.Reason,
		Type:        EntryTypeTransferIn,
		ReferenceID: &ref,
	})

	data := &events.TransferCompensatedData{
		ReferenceID: ref,
		FromSpaceID: req.FromSpaceID,
		ToSpaceID:   req.ToSpaceID,
		Amount:      formatAmount(req.Amount),
		CreditError: creditErr.Error(),
	}

	if compErr != nil {
		compErr = fmt.Errorf("transfer %s compensation failed: %w", ref, compErr)
		data.CompensationError = compErr.Error()

		s.log.Error().
			Err(compErr).
			Str("reference_id", ref).
			Str("from_space_id", req.FromSpaceID).
			Str("amount", formatAmount(req.Amount)).
			Msg("Transfer compensation failed, debit not reversed")

		emit(s.events, events.TransferCompensated, data)
		return errors.Join(creditErr, compErr)
	}

	s.log.Warn().
		Err(creditErr).
		Str("reference_id", ref).
		Str("from_space_id", req.FromSpaceID).
		Str("to_space_id", req.ToSpaceID).
		Msg("Transfer credit failed, debit reversed")

	emit(s.events, events.TransferCompensated, data)
	return creditErr
}

func (s *TransferService) validate(ctx context.Context, req TransferRequest) error {
	if !req.Amount.IsPositive() {
		return validationf("amount", "transfer amount must be greater than zero")
	}
	if err := checkScale("amount", req.Amount); err != nil {
		return err
	}
	if strings.TrimSpace(req.Reason) == "" {
		return validationf("reason", "reason must not be blank")
	}
	if req.FromSpaceID == req.ToSpaceID {
		return validationf("to_space_id", "source and destination must differ")
	}

	return s.store.Snapshot(ctx, func(tx Store) error {
		from, err := tx.Spaces().Get(ctx, req.FromSpaceID)
		if err != nil {
			return err
		}
		if from == nil {
			return spaceNotFound(req.FromSpaceID)
		}
		to, err := tx.Spaces().Get(ctx, req.ToSpaceID)
		if err != nil {
			return err
		}
		if to == nil || to.AccountID != from.AccountID {
			return spaceNotFound(req.ToSpaceID)
		}
		return nil
	})
}
