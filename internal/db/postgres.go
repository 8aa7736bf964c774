package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abkawan/backoffice-ledger/internal/models"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Postgres.go handles account storage in PostgreSQL
type Postgres struct {
	db *sql.DB
}

// creates a new Postgres instance
func NewPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(10 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return &Postgres{db: db}, nil
}

// closes the database connection
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping checks the connection is still usable.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// initialize the database schema
func (p *Postgres) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS accounts (
		id VARCHAR(36) PRIMARY KEY,
		account_number VARCHAR(20) NOT NULL UNIQUE,
		customer_id VARCHAR(64) NOT NULL,
		account_type VARCHAR(16) NOT NULL,
		balance DECIMAL(20, 2) NOT NULL,
		status VARCHAR(16) NOT NULL,
		interest_rate DECIMAL(9, 4),
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS accounts_customer_id_idx ON accounts (customer_id);`

	_, err := p.db.ExecContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to create accounts table: %w", err)
	}
	return nil
}

const accountColumns = `id, account_number, customer_id, account_type, balance, status, interest_rate, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*models.Account, error) {
	var (
		account models.Account
		rate    decimal.NullDecimal
	)
	err := row.Scan(
		&account.ID, &account.Number, &account.CustomerID, &account.Type,
		&account.Balance, &account.Status, &rate, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if rate.Valid {
		account.InterestRate = &rate.Decimal
	}
	return &account, nil
}

func nullRate(rate *decimal.Decimal) decimal.NullDecimal {
	if rate == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: *rate, Valid: true}
}

// creates a new account
func (p *Postgres) CreateAccount(ctx context.Context, account *models.Account) error {
	query := `
	INSERT INTO accounts (` + accountColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := p.db.ExecContext(ctx, query,
		account.ID, account.Number, account.CustomerID, account.Type,
		account.Balance, account.Status, nullRate(account.InterestRate),
		account.CreatedAt, account.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}

// retrieves an account by ID
func (p *Postgres) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return account, nil
}

// FindAccountByMaskedNumber matches accounts on the digits a masked number still shows.
func (p *Postgres) FindAccountByMaskedNumber(ctx context.Context, masked string) (*models.Account, error) {
	match := lastFour.FindStringSubmatch(strings.TrimSpace(masked))
	if match == nil {
		return nil, ErrNotFound
	}

	rows, err := p.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_number LIKE $1 LIMIT 2`,
		"%"+match[1],
	)
	if err != nil {
		return nil, fmt.Errorf("failed to find account by number: %w", err)
	}
	defer rows.Close()

	accounts, err := collectAccounts(rows)
	if err != nil {
		return nil, err
	}

	switch len(accounts) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return accounts[0], nil
	default:
		return nil, ErrAmbiguous
	}
}

func collectAccounts(rows *sql.Rows) ([]*models.Account, error) {
	accounts := make([]*models.Account, 0)
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, account)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over accounts: %w", err)
	}
	return accounts, nil
}

// ListAccounts returns the accounts matching filter, oldest first.
func (p *Postgres) ListAccounts(ctx context.Context, filter models.AccountFilter) ([]*models.Account, error) {
	var (
		conditions []string
		args       []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.CustomerID != "" {
		add("customer_id", filter.CustomerID)
	}
	if filter.Type != "" {
		add("account_type", filter.Type)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}

	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(conditions) > 0 {
		query += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at`

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	return collectAccounts(rows)
}

// AdjustBalance updates the balance under a row lock
func (p *Postgres) AdjustBalance(ctx context.Context, adj models.BalanceAdjustment) (account *models.Account, err error) {
	// Start a transaction
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// Get current balance with row lock
	var currentBalance decimal.Decimal
	err = tx.QueryRowContext(
		ctx,
		"SELECT balance FROM accounts WHERE id = $1 FOR UPDATE",
		adj.AccountID,
	).Scan(&currentBalance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	}

	newBalance := currentBalance.Add(adj.Delta)
	if newBalance.IsNegative() && !adj.AllowOverdraft {
		return nil, ErrInsufficientFunds
	}

	row := tx.QueryRowContext(
		ctx,
		`UPDATE accounts SET balance = $1, updated_at = $2 WHERE id = $3 RETURNING `+accountColumns,
		newBalance, time.Now().UTC(), adj.AccountID,
	)
	account, err = scanAccount(row)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return account, nil
}

// UpdateAccountFields sets the allow-listed columns. balance is not among them.
func (p *Postgres) UpdateAccountFields(ctx context.Context, id string, update models.AccountUpdate) (*models.Account, error) {
	args := []any{time.Now().UTC()}
	sets := []string{"updated_at = $1"}
	if update.Status != nil {
		args = append(args, *update.Status)
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if update.InterestRate != nil {
		args = append(args, *update.InterestRate)
		sets = append(sets, fmt.Sprintf("interest_rate = $%d", len(args)))
	}
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE accounts SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), accountColumns)

	account, err := scanAccount(p.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to update account: %w", err)
	}
	return account, nil
}

// DeleteAccount removes an account row.
func (p *Postgres) DeleteAccount(ctx context.Context, id string) error {
	result, err := p.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after deleting account: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
