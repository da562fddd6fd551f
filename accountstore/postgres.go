// Package accountstore provides a PostgreSQL-backed AccountProvider built on
// sqlx. It is the reference provider; callers with an existing user store
// implement authcore.AccountProvider directly instead.
package accountstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/propspace/authcore"
)

// Schema is the table this provider reads and writes. Approval is stored as
// text so the column stays readable in psql.
const Schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id            UUID PRIMARY KEY,
	name          TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	mobile        TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL,
	approval      TEXT NOT NULL DEFAULT 'not_required',
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
`

const uniqueViolation = "23505"

type accountRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	Mobile       string    `db:"mobile"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Approval     string    `db:"approval"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type PostgresProvider struct {
	db *sqlx.DB
}

func NewPostgresProvider(db *sqlx.DB) *PostgresProvider {
	return &PostgresProvider{db: db}
}

// Migrate creates the accounts table if it does not exist.
func (p *PostgresProvider) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("accountstore: migrate: %w", err)
	}
	return nil
}

func (p *PostgresProvider) GetAccountByEmail(ctx context.Context, email string) (authcore.AccountRecord, error) {
	var row accountRow
	query := `SELECT id, name, email, mobile, password_hash, role, approval, created_at, updated_at
		FROM accounts WHERE email = $1`
	if err := p.db.GetContext(ctx, &row, query, email); err != nil {
		return authcore.AccountRecord{}, mapQueryError(err)
	}
	return rowToRecord(row), nil
}

func (p *PostgresProvider) GetAccountByEmailAndMobile(ctx context.Context, email, mobile string) (authcore.AccountRecord, error) {
	var row accountRow
	query := `SELECT id, name, email, mobile, password_hash, role, approval, created_at, updated_at
		FROM accounts WHERE email = $1 AND mobile = $2`
	if err := p.db.GetContext(ctx, &row, query, email, mobile); err != nil {
		return authcore.AccountRecord{}, mapQueryError(err)
	}
	return rowToRecord(row), nil
}

func (p *PostgresProvider) GetAccountByID(ctx context.Context, accountID string) (authcore.AccountRecord, error) {
	var row accountRow
	query := `SELECT id, name, email, mobile, password_hash, role, approval, created_at, updated_at
		FROM accounts WHERE id = $1`
	if err := p.db.GetContext(ctx, &row, query, accountID); err != nil {
		return authcore.AccountRecord{}, mapQueryError(err)
	}
	return rowToRecord(row), nil
}

func (p *PostgresProvider) CreateAccount(ctx context.Context, input authcore.CreateAccountInput) (authcore.AccountRecord, error) {
	now := time.Now().UTC()
	row := accountRow{
		ID:           uuid.New().String(),
		Name:         input.Name,
		Email:        input.Email,
		Mobile:       input.Mobile,
		PasswordHash: input.PasswordHash,
		Role:         string(input.Role),
		Approval:     approvalToText(input.Approval),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `INSERT INTO accounts (id, name, email, mobile, password_hash, role, approval, created_at, updated_at)
		VALUES (:id, :name, :email, :mobile, :password_hash, :role, :approval, :created_at, :updated_at)`
	if _, err := p.db.NamedExecContext(ctx, query, row); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return authcore.AccountRecord{}, authcore.ErrProviderDuplicateIdentifier
		}
		return authcore.AccountRecord{}, fmt.Errorf("accountstore: insert account: %w", err)
	}

	return rowToRecord(row), nil
}

func (p *PostgresProvider) UpdatePasswordHash(ctx context.Context, accountID, newHash string) error {
	query := `UPDATE accounts SET password_hash = $1, updated_at = $2 WHERE id = $3`
	res, err := p.db.ExecContext(ctx, query, newHash, time.Now().UTC(), accountID)
	if err != nil {
		return fmt.Errorf("accountstore: update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return authcore.ErrProviderNotFound
	}
	return nil
}

func (p *PostgresProvider) UpdateApprovalStatus(ctx context.Context, accountID string, status authcore.ApprovalStatus) (authcore.AccountRecord, error) {
	query := `UPDATE accounts SET approval = $1, updated_at = $2 WHERE id = $3
		RETURNING id, name, email, mobile, password_hash, role, approval, created_at, updated_at`

	var row accountRow
	if err := p.db.GetContext(ctx, &row, query, approvalToText(status), time.Now().UTC(), accountID); err != nil {
		return authcore.AccountRecord{}, mapQueryError(err)
	}
	return rowToRecord(row), nil
}

func mapQueryError(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return authcore.ErrProviderNotFound
	}
	return fmt.Errorf("accountstore: query: %w", err)
}

func rowToRecord(row accountRow) authcore.AccountRecord {
	return authcore.AccountRecord{
		AccountID:    row.ID,
		Name:         row.Name,
		Email:        row.Email,
		Mobile:       row.Mobile,
		PasswordHash: row.PasswordHash,
		Role:         authcore.Role(row.Role),
		Approval:     textToApproval(row.Approval),
	}
}

func approvalToText(status authcore.ApprovalStatus) string {
	switch status {
	case authcore.ApprovalPending:
		return "pending"
	case authcore.ApprovalGranted:
		return "granted"
	case authcore.ApprovalRejected:
		return "rejected"
	default:
		return "not_required"
	}
}

func textToApproval(s string) authcore.ApprovalStatus {
	switch s {
	case "pending":
		return authcore.ApprovalPending
	case "granted":
		return authcore.ApprovalGranted
	case "rejected":
		return authcore.ApprovalRejected
	default:
		return authcore.ApprovalNotRequired
	}
}
