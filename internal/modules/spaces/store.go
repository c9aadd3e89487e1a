package spaces

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/spaces/internal/database"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// SpaceStore persists spaces. Get returns (nil, nil) for an unknown id.
type SpaceStore interface {
	Get(ctx context.Context, spaceID string) (*Space, error)
	GetAllForAccount(ctx context.Context, accountID string) ([]*Space, error)
	GetMain(ctx context.Context, accountID string) (*Space, error)
	Insert(ctx context.Context, space *Space) error
	Save(ctx context.Context, space *Space) error
	ListAccountIDs(ctx context.Context) ([]string, error)
	ListAutoTransferSpaces(ctx context.Context) ([]*Space, error)
}

// Ledger is the append-only balance history.
// Entries of one space are ordered by OccurredAt, ties broken by Seq.
type Ledger interface {
	Append(ctx context.Context, entry *LedgerEntry) error
	Query(ctx context.Context, spaceID string, from, to time.Time) ([]*LedgerEntry, error)
	LastBefore(ctx context.Context, spaceID string, t time.Time) (*LedgerEntry, error)
	LastAtOrBefore(ctx context.Context, spaceID string, t time.Time) (*LedgerEntry, error)
	FindByReference(ctx context.Context, referenceID string) ([]*LedgerEntry, error)
	SumForAccount(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// AccountTotals is the source of an account's total balance
type AccountTotals interface {
	GetAccountTotal(ctx context.Context, accountID string) (decimal.Decimal, error)
}

// Store groups the repositories and runs them inside one SQL transaction
type Store interface {
	Spaces() SpaceStore
	Ledger() Ledger
	// InTx runs fn in a transaction; the balance write and the ledger
	// append made through tx commit or roll back together.
	InTx(ctx context.Context, fn func(tx Store) error) error
	// Snapshot runs read-only fn against a single consistent view.
	Snapshot(ctx context.Context, fn func(tx Store) error) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// SQLStore is the SQLite-backed Store
type SQLStore struct {
	db     *sql.DB
	q      querier
	inTx   bool
	spaces *SpaceRepository
	ledger *LedgerRepository
	log    zerolog.Logger
}

// NewSQLStore creates a store over the spaces database
func NewSQLStore(db *sql.DB, log zerolog.Logger) *SQLStore {
	return newSQLStore(db, db, false, log)
}

func newSQLStore(db *sql.DB, q querier, inTx bool, log zerolog.Logger) *SQLStore {
	return &SQLStore{
		db:     db,
		q:      q,
		inTx:   inTx,
		spaces: NewSpaceRepository(q, log),
		ledger: NewLedgerRepository(q, log),
		log:    log,
	}
}

// Spaces returns the space repository
func (s *SQLStore) Spaces() SpaceStore { return s.spaces }

// Ledger returns the ledger repository
func (s *SQLStore) Ledger() Ledger { return s.ledger }

// InTx runs fn in a transaction. Nested calls join the outer transaction.
func (s *SQLStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return database.WithTransactionContext(ctx, s.db, func(tx *sql.Tx) error {
		return fn(newSQLStore(s.db, tx, true, s.log))
	})
}

// Snapshot runs fn inside one deferred transaction so every read sees the
// same state. The pool's BEGIN is IMMEDIATE, so the transaction is opened by
// hand on a dedicated connection; in WAL mode it never waits for writers.
func (s *SQLStore) Snapshot(ctx context.Context, fn func(tx Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN DEFERRED"); err != nil {
		return fmt.Errorf("failed to begin read transaction: %w", err)
	}
	defer func() {
		// Read-only, so ending it with ROLLBACK discards nothing
		if _, rbErr := conn.ExecContext(context.Background(), "ROLLBACK"); rbErr != nil && err == nil {
			err = fmt.Errorf("failed to end read transaction: %w", rbErr)
		}
	}()

	return fn(newSQLStore(s.db, conn, true, s.log))
}

// LedgerAccountTotals derives an account total from the ledger, independently
// of the balances cached on the spaces
type LedgerAccountTotals struct {
	store Store
}

// NewLedgerAccountTotals creates an AccountTotals backed by the ledger
func NewLedgerAccountTotals(store Store) *LedgerAccountTotals {
	return &LedgerAccountTotals{store: store}
}

// GetAccountTotal sums every ledger amount of the account's spaces
func (a *LedgerAccountTotals) GetAccountTotal(ctx context.Context, accountID string) (decimal.Decimal, error) {
	return a.store.Ledger().SumForAccount(ctx, accountID)
}
