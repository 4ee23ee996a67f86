package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/warden-auth/warden/core"
	"github.com/warden-auth/warden/ports"
)

const uniqueViolation = "23505"

// PostgresStore is a Postgres implementation of the AccountStore
// interface over the pgx stdlib driver
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres account store
func NewPostgresStore(db *sql.DB) ports.AccountStore {
	return &PostgresStore{db: db}
}

// Open connects to Postgres and applies pending migrations.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// FindAccount resolves identifier as email, username or uuid, in that
// order, and loads the account's passkey credentials.
func (s *PostgresStore) FindAccount(ctx context.Context, identifier string) (*core.Account, error) {
	var account core.Account
	var digest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT uuid, username, email, display_name, password_digest
		FROM accounts
		WHERE lower(email) = lower($1) OR lower(username) = lower($1) OR uuid::text = $1
		ORDER BY (lower(email) = lower($1)) DESC, (lower(username) = lower($1)) DESC
		LIMIT 1
	`, identifier).Scan(&account.UUID, &account.Username, &account.Email, &account.DisplayName, &digest)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.AccountNotFound()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	account.PasswordDigest = digest.String

	rows, err := s.db.QueryContext(ctx, `
		SELECT credential_id, public_key_cose, key_type, sign_count, backup_eligible, backup_state
		FROM fido_credentials
		WHERE account_uuid = $1
		ORDER BY created_at
	`, account.UUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query credentials: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var cred core.FidoCredential
		if err := rows.Scan(&cred.CredentialID, &cred.PublicKeyCOSE, &cred.KeyType, &cred.SignCount, &cred.BackupEligible, &cred.BackupState); err != nil {
			return nil, fmt.Errorf("failed to scan credential: %w", err)
		}
		account.Credentials = append(account.Credentials, cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}

	return &account, nil
}

// CreateAccount inserts a new account
func (s *PostgresStore) CreateAccount(ctx context.Context, account *core.Account) error {
	var digest sql.NullString
	if account.PasswordDigest != "" {
		digest = sql.NullString{String: account.PasswordDigest, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (uuid, username, email, display_name, password_digest)
		VALUES ($1, $2, $3, $4, $5)
	`, account.UUID, account.Username, account.Email, account.DisplayName, digest)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.AccountExists()
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

// AppendCredential attaches a verified passkey credential to an account
func (s *PostgresStore) AppendCredential(ctx context.Context, uuid string, credential core.FidoCredential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fido_credentials (credential_id, account_uuid, public_key_cose, key_type, sign_count, backup_eligible, backup_state)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, credential.CredentialID, uuid, credential.PublicKeyCOSE, credential.KeyType, credential.SignCount, credential.BackupEligible, credential.BackupState)
	if err != nil {
		return fmt.Errorf("failed to insert credential: %w", err)
	}
	return nil
}

// UpdateCredentialSignCount records the counter observed during a
// successful assertion
func (s *PostgresStore) UpdateCredentialSignCount(ctx context.Context, uuid string, credentialID string, signCount uint32, backupState bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE fido_credentials
		SET sign_count = $3, backup_state = $4, updated_at = NOW()
		WHERE account_uuid = $1 AND credential_id = $2
	`, uuid, credentialID, signCount, backupState)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return core.AccountNotFound()
	}
	return nil
}
