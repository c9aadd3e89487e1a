// Package spaces partitions one account's balance into named spaces, keeps
// their balances consistent with an append-only ledger, and derives analytics
// from the balance history.
package spaces

import (
	"time"

	"github.com/shopspring/decimal"
)

// SpaceType represents the kind of space
type SpaceType string

const (
	SpaceTypeMain      SpaceType = "MAIN"
	SpaceTypeSavings   SpaceType = "SAVINGS"
	SpaceTypeVacation  SpaceType = "VACATION"
	SpaceTypeEmergency SpaceType = "EMERGENCY"
	SpaceTypeGoals     SpaceType = "GOALS"
	SpaceTypeCustom    SpaceType = "CUSTOM"
)

// IsValid reports whether t is a known space type
func (t SpaceType) IsValid() bool {
	switch t {
	case SpaceTypeMain, SpaceTypeSavings, SpaceTypeVacation,
		SpaceTypeEmergency, SpaceTypeGoals, SpaceTypeCustom:
		return true
	}
	return false
}

// EntryType classifies a ledger entry
type EntryType string

const (
	EntryTypeDeposit     EntryType = "DEPOSIT"
	EntryTypeWithdrawal  EntryType = "WITHDRAWAL"
	EntryTypeTransferIn  EntryType = "TRANSFER_IN"
	EntryTypeTransferOut EntryType = "TRANSFER_OUT"
	EntryTypeInterest    EntryType = "INTEREST"
	EntryTypeFee         EntryType = "FEE"
)

// IsValid reports whether t is a known entry type
func (t EntryType) IsValid() bool {
	switch t {
	case EntryTypeDeposit, EntryTypeWithdrawal, EntryTypeTransferIn,
		EntryTypeTransferOut, EntryTypeInterest, EntryTypeFee:
		return true
	}
	return false
}

// Frequency is how often an automatic transfer runs
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyAnnually  Frequency = "ANNUALLY"
)

// IsValid reports whether f is a known frequency
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly,
		FrequencyQuarterly, FrequencyAnnually:
		return true
	}
	return false
}

// Next returns the first run time after last
func (f Frequency) Next(last time.Time) time.Time {
	switch f {
	case FrequencyDaily:
		return last.AddDate(0, 0, 1)
	case FrequencyWeekly:
		return last.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return last.AddDate(0, 1, 0)
	case FrequencyQuarterly:
		return last.AddDate(0, 3, 0)
	case FrequencyAnnually:
		return last.AddDate(1, 0, 0)
	}
	return last
}

// SpaceState is the freeze state of a space
type SpaceState string

const (
	StateActive SpaceState = "ACTIVE"
	StateFrozen SpaceState = "FROZEN"
)

// Goal is an optional savings target tracked by analytics
type Goal struct {
	TargetAmount *decimal.Decimal `json:"target_amount,omitempty"`
	TargetDate   *time.Time       `json:"target_date,omitempty"`
}

// AutoTransferConfig schedules a recurring transfer into the space.
// A nil SourceSpaceID means the account's MAIN space.
type AutoTransferConfig struct {
	Enabled       bool            `json:"enabled"`
	Frequency     Frequency       `json:"frequency"`
	Amount        decimal.Decimal `json:"amount"`
	SourceSpaceID *string         `json:"source_space_id,omitempty"`
	LastRunAt     *time.Time      `json:"last_run_at,omitempty"`
}

// Space is a named sub-ledger of one account
type Space struct {
	ID                      string              `json:"id"`
	AccountID               string              `json:"account_id"`
	Name                    string              `json:"name"`
	Type                    SpaceType           `json:"space_type"`
	Balance                 decimal.Decimal     `json:"balance"`
	Icon                    *string             `json:"icon,omitempty"`
	Color                   *string             `json:"color,omitempty"`
	IsVisible               bool                `json:"is_visible"`
	IsFrozen                bool                `json:"is_frozen"`
	FrozenAt                *time.Time          `json:"frozen_at,omitempty"`
	UnfrozenAt              *time.Time          `json:"unfrozen_at,omitempty"`
	LastBalanceUpdateReason *string             `json:"last_balance_update_reason,omitempty"`
	LastBalanceUpdateAt     *time.Time          `json:"last_balance_update_at,omitempty"`
	Goal                    *Goal               `json:"goal,omitempty"`
	AutoTransfer            *AutoTransferConfig `json:"auto_transfer,omitempty"`
	Version                 int64               `json:"version"`
	CreatedAt               time.Time           `json:"created_at"`
	UpdatedAt               time.Time           `json:"updated_at"`
}

// State returns the freeze state of the space
func (s *Space) State() SpaceState {
	if s.IsFrozen {
		return StateFrozen
	}
	return StateActive
}

// LedgerEntry is one immutable balance change
type LedgerEntry struct {
	Seq          int64           `json:"seq"`
	SpaceID      string          `json:"space_id"`
	Amount       decimal.Decimal `json:"amount"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Description  string          `json:"description"`
	ReferenceID  *string         `json:"reference_id,omitempty"`
	Type         EntryType       `json:"entry_type"`
}

// CreateSpaceRequest holds the attributes of a new non-MAIN space
type CreateSpaceRequest struct {
	AccountID    string              `json:"account_id"`
	Name         string              `json:"name"`
	Type         SpaceType           `json:"space_type"`
	Icon         *string             `json:"icon,omitempty"`
	Color        *string             `json:"color,omitempty"`
	Goal         *Goal               `json:"goal,omitempty"`
	AutoTransfer *AutoTransferConfig `json:"auto_transfer,omitempty"`
}

// SpacePatch is a partial update of descriptive fields.
// Nil fields are left unchanged; the Clear flags remove the goal or transfer config.
type SpacePatch struct {
	Name              *string             `json:"name,omitempty"`
	Icon              *string             `json:"icon,omitempty"`
	Color             *string             `json:"color,omitempty"`
	IsVisible         *bool               `json:"is_visible,omitempty"`
	Goal              *Goal               `json:"goal,omitempty"`
	ClearGoal         bool                `json:"clear_goal,omitempty"`
	AutoTransfer      *AutoTransferConfig `json:"auto_transfer,omitempty"`
	ClearAutoTransfer bool                `json:"clear_auto_transfer,omitempty"`
}

// ApplyDeltaRequest describes one signed balance change
type ApplyDeltaRequest struct {
	SpaceID     string          `json:"space_id"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	Type        EntryType       `json:"entry_type"`
	ReferenceID *string         `json:"reference_id,omitempty"`
}

// TransferRequest moves value between two spaces of the same account
type TransferRequest struct {
	FromSpaceID string          `json:"from_space_id"`
	ToSpaceID   string          `json:"to_space_id"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
	ReferenceID *string         `json:"reference_id,omitempty"`
}

// TransferResult is the state of both spaces after a completed transfer
type TransferResult struct {
	ReferenceID string `json:"reference_id"`
	From        *Space `json:"from"`
	To          *Space `json:"to"`
}

// InvariantReport compares the sum of space balances with the account total
type InvariantReport struct {
	AccountID    string          `json:"account_id"`
	SpacesTotal  decimal.Decimal `json:"spaces_total"`
	AccountTotal decimal.Decimal `json:"account_total"`
	Difference   decimal.Decimal `json:"difference"`
	SpaceCount   int             `json:"space_count"`
	Consistent   bool            `json:"consistent"`
	CheckedAt    time.Time       `json:"checked_at"`
}
