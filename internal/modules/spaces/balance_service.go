package spaces

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/spaces/internal/events"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// BalanceService is the only writer of space balances. Every change stamps
// the audit fields and appends one ledger entry in the same transaction.
type BalanceService struct {
	store  Store
	totals AccountTotals
	locker *KeyedLocker
	events EventEmitter
	log    zerolog.Logger
	now    func() time.Time
}

// NewBalanceService creates a new balance service
func NewBalanceService(store Store, totals AccountTotals, locker *KeyedLocker, emitter EventEmitter, log zerolog.Logger) *BalanceService {
	return &BalanceService{
		store:  store,
		totals: totals,
		locker: locker,
		events: emitter,
		log:    log.With().Str("service", "balance").Logger(),
		now:    time.Now,
	}
}

// ApplyDelta adds a signed amount to a space's balance
func (s *BalanceService) ApplyDelta(ctx context.Context, req ApplyDeltaRequest) (*Space, error) {
	if strings.TrimSpace(req.Reason) == "" {
		return nil, validationf("reason", "reason must not be blank")
	}
	if !req.Type.IsValid() {
		return nil, validationf("entry_type", "unknown entry type %q", req.Type)
	}
	if err := checkScale("amount", req.Amount); err != nil {
		return nil, err
	}

	unlock := s.locker.Lock(req.SpaceID)
	defer unlock()

	var space *Space
	err := s.store.InTx(ctx, func(tx Store) error {
		var err error
		space, err = tx.Spaces().Get(ctx, req.SpaceID)
		if err != nil {
			return err
		}
		if space == nil {
			return spaceNotFound(req.SpaceID)
		}
		return s.apply(ctx, tx, space, req.Amount, req.Reason, req.Type, req.ReferenceID)
	})
	if err != nil {
		s.logRejected(req.SpaceID, req.Amount, err)
		return nil, err
	}

	s.recordApplied(space, req.Amount, req.Reason, req.Type, req.ReferenceID)
	return space, nil
}

// SetAbsoluteBalance overrides a space's balance. The difference is recorded
// as a DEPOSIT, or a WITHDRAWAL when the balance goes down.
func (s *BalanceService) SetAbsoluteBalance(ctx context.Context, spaceID string, newBalance decimal.Decimal, reason string) (*Space, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, validationf("reason", "reason must not be blank")
	}
	if newBalance.IsNegative() {
		return nil, validationf("balance", "negative balance")
	}
	if err := checkScale("balance", newBalance); err != nil {
		return nil, err
	}

	unlock := s.locker.Lock(spaceID)
	defer unlock()

	var (
		space     *Space
		delta     decimal.Decimal
		entryType EntryType
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

		delta = newBalance.Sub(space.Balance)
		entryType = EntryTypeDeposit
		if delta.IsNegative() {
			entryType = EntryTypeWithdrawal
		}
		return s.apply(ctx, tx, space, delta, reason, entryType, nil)
	})
	if err != nil {
		s.logRejected(spaceID, newBalance, err)
		return nil, err
	}

	s.recordApplied(space, delta, reason, entryType, nil)
	return space, nil
}

// apply validates and writes one balance change inside tx. The caller holds
// the space's lock.
func (s *BalanceService) apply(ctx context.Context, tx Store, space *Space, amount decimal.Decimal, reason string, entryType EntryType, referenceID *string) error {
	if space.IsFrozen {
		return &StateError{SpaceID: space.ID, Message: "is frozen"}
	}

	newBalance := space.Balance.Add(amount)
	if newBalance.IsNegative() {
		return validationf("amount", "negative balance: %s %s would leave %s",
			formatAmount(space.Balance), amount.StringFixed(Scale), formatAmount(newBalance))
	}

	// occurred_at never goes backwards within a space, even if the wall clock does
	now := s.now().UTC()
	last, err := tx.Ledger().LastAtOrBefore(ctx, space.ID, endOfTime)
	if err != nil {
		return err
	}
	if last != nil && last.OccurredAt.After(now) {
		now = last.OccurredAt
	}

	space.Balance = newBalance
	space.LastBalanceUpdateReason = stringPtr(reason)
	space.LastBalanceUpdateAt = timePtr(now)
	space.UpdatedAt = now

	if err := tx.Spaces().Save(ctx, space); err != nil {
		return err
	}

	return tx.Ledger().Append(ctx, &LedgerEntry{
		SpaceID:      space.ID,
		Amount:       amount,
		BalanceAfter: newBalance,
		OccurredAt:   now,
		Description:  reason,
		ReferenceID:  referenceID,
		Type:         entryType,
	})
}

func (s *BalanceService) recordApplied(space *Space, amount decimal.Decimal, reason string, entryType EntryType, referenceID *string) {
	s.log.Info().
		Str("space_id", space.ID).
		Str("account_id", space.AccountID).
		Str("amount", formatAmount(amount)).
		Str("new_balance", formatAmount(space.Balance)).
		Str("entry_type", string(entryType)).
		Str("reason", reason).
		Msg("Applied balance change")

	data := &events.BalanceChangedData{
		SpaceID:    space.ID,
		AccountID:  space.AccountID,
		Amount:     formatAmount(amount),
		NewBalance: formatAmount(space.Balance),
		EntryType:  string(entryType),
		Reason:     reason,
	}
	if referenceID != nil {
		data.ReferenceID = *referenceID
	}
	emit(s.events, events.BalanceChanged, data)
}

func (s *BalanceService) logRejected(spaceID string, amount decimal.Decimal, err error) {
	level := s.log.Debug()
	if ErrorKind(err) == "internal" {
		level = s.log.Error()
	}
	level.Err(err).
		Str("space_id", spaceID).
		Str("amount", formatAmount(amount)).
		Msg("Balance change rejected")
}

// GetEntries returns a space's ledger entries with from <= occurred_at <= to
func (s *BalanceService) GetEntries(ctx context.Context, spaceID string, from, to time.Time) ([]*LedgerEntry, error) {
	if to.Before(from) {
		return nil, validationf("end", "end must not be before start")
	}

	var entries []*LedgerEntry
	err := s.store.Snapshot(ctx, func(tx Store) error {
		space, err := tx.Spaces().Get(ctx, spaceID)
		if err != nil {
			return err
		}
		if space == nil {
			return spaceNotFound(spaceID)
		}
		entries, err = tx.Ledger().Query(ctx, spaceID, from, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// VerifyAccountInvariant compares the sum of space balances with the account
// total. A mismatch returns the report together with an error wrapping
// ErrInvariantViolated.
func (s *BalanceService) VerifyAccountInvariant(ctx context.Context, accountID string) (*InvariantReport, error) {
	report := &InvariantReport{AccountID: accountID}

	err := s.store.Snapshot(ctx, func(tx Store) error {
		spaces, err := tx.Spaces().GetAllForAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if len(spaces) == 0 {
			return &NotFoundError{Resource: "account", ID: accountID}
		}

		report.SpacesTotal = decimal.Zero
		for _, space := range spaces {
			report.SpacesTotal = report.SpacesTotal.Add(space.Balance)
		}
		report.SpaceCount = len(spaces)

		totals := s.totals
		if totals == nil {
			totals = NewLedgerAccountTotals(tx)
		}
		report.AccountTotal, err = totals.GetAccountTotal(ctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to get account total: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	report.Difference = report.SpacesTotal.Sub(report.AccountTotal)
	report.Consistent = report.Difference.IsZero()
	report.CheckedAt = s.now().UTC()

	if !report.Consistent {
		s.log.Error().
			Str("account_id", accountID).
			Str("spaces_total", formatAmount(report.SpacesTotal)).
			Str("account_total", formatAmount(report.AccountTotal)).
			Msg("Account invariant violated")

		emit(s.events, events.InvariantViolated, &events.InvariantViolatedData{
			AccountID:    accountID,
			SpacesTotal:  formatAmount(report.SpacesTotal),
			AccountTotal: formatAmount(report.AccountTotal),
			Difference:   formatAmount(report.Difference),
		})

		return report, &ConflictError{
			Message: fmt.Sprintf("account %s spaces total %s differs from account total %s",
				accountID, formatAmount(report.SpacesTotal), formatAmount(report.AccountTotal)),
			Err: ErrInvariantViolated,
		}
	}

	return report, nil
}

// CheckAllAccounts verifies every account and returns the reports of the
// inconsistent ones. Per-account failures are joined into the error.
func (s *BalanceService) CheckAllAccounts(ctx context.Context) ([]*InvariantReport, error) {
	accountIDs, err := s.store.Spaces().ListAccountIDs(ctx)
	if err != nil {
		return nil, err
	}

	var (
		violations []*InvariantReport
		errs       []error
	)
	for _, accountID := range accountIDs {
		if err := ctx.Err(); err != nil {
			return violations, err
		}

		report, err := s.VerifyAccountInvariant(ctx, accountID)
		if err != nil {
			if report != nil {
				violations = append(violations, report)
			}
			errs = append(errs, err)
		}
	}

	s.log.Debug().
		Int("accounts", len(accountIDs)).
		Int("violations", len(violations)).
		Msg("Checked account invariants")

	return violations, errors.Join(errs...)
}
