package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Dan9191/bookkeeping-service/internal/ledger"
	"github.com/Dan9191/bookkeeping-service/internal/models"
	"github.com/Dan9191/bookkeeping-service/internal/money"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repository provides database operations
type Repository struct {
	db        *sql.DB
	q         querier
	forUpdate bool
}

// NewRepository initializes a new repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, q: db}
}

var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS bank`,
	`CREATE TABLE IF NOT EXISTS bank.accounts (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL,
		category   TEXT NOT NULL DEFAULT '',
		icon       TEXT NOT NULL DEFAULT '',
		color      TEXT NOT NULL DEFAULT '',
		balance    NUMERIC(20,2) NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS bank.history (
		seq        BIGSERIAL PRIMARY KEY,
		id         TEXT UNIQUE NOT NULL,
		kind       TEXT NOT NULL,
		payload    JSONB NOT NULL,
		signature  TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// Migrate creates the schema when it does not exist yet
func (r *Repository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.q.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

const accountColumns = `id, name, category, icon, color, balance, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (models.Account, error) {
	var a models.Account
	err := row.Scan(&a.ID, &a.Name, &a.Category, &a.Icon, &a.Color, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// Get retrieves an account by id. Inside a transaction the row is locked.
func (r *Repository) Get(ctx context.Context, id string) (models.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM bank.accounts WHERE id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}
	a, err := scanAccount(r.q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, ledger.ErrNoSuchAccount
	}
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to find account: %w", err)
	}
	return a, nil
}

// List retrieves all accounts ordered by creation time
func (r *Repository) List(ctx context.Context) ([]models.Account, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT `+accountColumns+` FROM bank.accounts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var out []models.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Create inserts a new account
func (r *Repository) Create(ctx context.Context, account models.Account) (models.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	account.UpdatedAt = account.CreatedAt
	account.Balance = money.Round(account.Balance)

	query := `
		INSERT INTO bank.accounts (` + accountColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.ExecContext(ctx, query,
		account.ID, account.Name, account.Category, account.Icon, account.Color,
		account.Balance, account.CreatedAt, account.UpdatedAt)
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// Save rewrites an existing account
func (r *Repository) Save(ctx context.Context, account models.Account) error {
	query := `
		UPDATE bank.accounts
		SET name = $2, category = $3, icon = $4, color = $5, balance = $6, updated_at = $7
		WHERE id = $1`
	res, err := r.q.ExecContext(ctx, query,
		account.ID, account.Name, account.Category, account.Icon, account.Color,
		account.Balance, account.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	if n == 0 {
		return ledger.ErrNoSuchAccount
	}
	return nil
}

// Append inserts a history entry
func (r *Repository) Append(ctx context.Context, entry models.HistoryEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to encode history entry: %w", err)
	}
	query := `
		INSERT INTO bank.history (id, kind, payload, signature, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.ExecContext(ctx, query, entry.ID, string(entry.Kind), payload, entry.Signature, entry.Timestamp); err != nil {
		return fmt.Errorf("failed to append history entry: %w", err)
	}
	return nil
}

// History retrieves every history entry in insertion order
func (r *Repository) History(ctx context.Context) ([]models.HistoryEntry, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT payload FROM bank.history ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer rows.Close()

	var out []models.HistoryEntry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		var entry models.HistoryEntry
		if err := json.Unmarshal(payload, &entry); err != nil {
			return nil, fmt.Errorf("failed to decode history entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, rows.Err()
}

// WithinTx runs fn in a database transaction, committing only when fn succeeds
func (r *Repository) WithinTx(ctx context.Context, fn func(ledger.AccountStore, ledger.HistoryLog) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	txRepo := &Repository{db: r.db, q: tx, forUpdate: true}
	if err := fn(txRepo, txRepo); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Ping checks the database connection
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
