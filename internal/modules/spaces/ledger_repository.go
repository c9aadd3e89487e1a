package spaces

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const entryColumns = "seq, space_id, amount, balance_after, occurred_at, description, reference_id, entry_type"

// LedgerRepository stores ledger entries. It exposes no update or delete;
// the schema's triggers reject both.
type LedgerRepository struct {
	q   querier
	log zerolog.Logger
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(q querier, log zerolog.Logger) *LedgerRepository {
	return &LedgerRepository{
		q:   q,
		log: log.With().Str("repository", "ledger").Logger(),
	}
}

// Append records an entry and sets its Seq
func (r *LedgerRepository) Append(ctx context.Context, entry *LedgerEntry) error {
	result, err := r.q.ExecContext(ctx, `INSERT INTO ledger_entries
		(space_id, amount, balance_after, occurred_at, description, reference_id, entry_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.SpaceID,
		formatAmount(entry.Amount),
		formatAmount(entry.BalanceAfter),
		entry.OccurredAt.UTC().UnixNano(),
		entry.Description,
		nullString(entry.ReferenceID),
		string(entry.Type),
	)
	if err != nil {
		return fmt.Errorf("failed to append ledger entry: %w", err)
	}

	seq, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read ledger sequence: %w", err)
	}
	entry.Seq = seq

	return nil
}

// Query returns the entries of a space with from <= occurred_at <= to, oldest first
func (r *LedgerRepository) Query(ctx context.Context, spaceID string, from, to time.Time) ([]*LedgerEntry, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+entryColumns+` FROM ledger_entries
		WHERE space_id = ? AND occurred_at >= ? AND occurred_at <= ?
		ORDER BY occurred_at, seq`,
		spaceID, from.UTC().UnixNano(), to.UTC().UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate ledger entries: %w", err)
	}

	return entries, nil
}

// LastBefore returns the latest entry with occurred_at < t, or nil
func (r *LedgerRepository) LastBefore(ctx context.Context, spaceID string, t time.Time) (*LedgerEntry, error) {
	return r.last(ctx, "occurred_at < ?", spaceID, t)
}

// LastAtOrBefore returns the latest entry with occurred_at <= t, or nil
func (r *LedgerRepository) LastAtOrBefore(ctx context.Context, spaceID string, t time.Time) (*LedgerEntry, error) {
	return r.last(ctx, "occurred_at <= ?", spaceID, t)
}

func (r *LedgerRepository) last(ctx context.Context, cond, spaceID string, t time.Time) (*LedgerEntry, error) {
	row := r.q.QueryRowContext(ctx, "SELECT "+entryColumns+` FROM ledger_entries
		WHERE space_id = ? AND `+cond+`
		ORDER BY occurred_at DESC, seq DESC LIMIT 1`,
		spaceID, t.UTC().UnixNano())

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last ledger entry: %w", err)
	}
	return entry, nil
}

// FindByReference returns every entry sharing a reference id, in insertion order
func (r *LedgerRepository) FindByReference(ctx context.Context, referenceID string) ([]*LedgerEntry, error) {
	rows, err := r.q.QueryContext(ctx, "SELECT "+entryColumns+` FROM ledger_entries
		WHERE reference_id = ? ORDER BY seq`, referenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to find ledger entries by reference: %w", err)
	}
	defer rows.Close()

	var entries []*LedgerEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// SumForAccount adds up every entry amount of the account's spaces.
// Summed in Go: SQLite would coerce the TEXT amounts to floating point.
func (r *LedgerRepository) SumForAccount(ctx context.Context, accountID string) (decimal.Decimal, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT l.amount FROM ledger_entries l
		JOIN spaces s ON s.id = l.space_id
		WHERE s.account_id = ?`, accountID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum ledger for account: %w", err)
	}
	defer rows.Close()

	total := decimal.Zero
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return decimal.Zero, fmt.Errorf("failed to scan ledger amount: %w", err)
		}
		d, err := parseStoredAmount(amount)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(d)
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, fmt.Errorf("failed to iterate ledger amounts: %w", err)
	}

	return total, nil
}

func scanEntry(row rowScanner) (*LedgerEntry, error) {
	var (
		e                    LedgerEntry
		amount, balanceAfter string
		occurredAt           int64
		referenceID          sql.NullString
		entryType            string
	)

	if err := row.Scan(&e.Seq, &e.SpaceID, &amount, &balanceAfter, &occurredAt,
		&e.Description, &referenceID, &entryType); err != nil {
		return nil, err
	}

	var err error
	if e.Amount, err = parseStoredAmount(amount); err != nil {
		return nil, err
	}
	if e.BalanceAfter, err = parseStoredAmount(balanceAfter); err != nil {
		return nil, err
	}
	e.OccurredAt = time.Unix(0, occurredAt).UTC()
	e.ReferenceID = ptrString(referenceID)
	e.Type = EntryType(entryType)

	return &e, nil
}
