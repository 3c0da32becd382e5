package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*CredentialRepo)(nil)

// CredentialRepo is the SQLite implementation of the CredentialStore port interface.
// Password blobs are stored as-is; the repo never encrypts or decrypts.
type CredentialRepo struct {
	db *DB
}

// NewCredentialRepo creates a new CredentialRepo backed by the given DB.
func NewCredentialRepo(db *DB) *CredentialRepo {
	return &CredentialRepo{db: db}
}

const credentialColumns = `id, user_id, full_url, url, icon, username, password, browser, breach_status,
	date_created, date_last_used, date_password_modified, breach_checked_at`

// Find returns the credential for the (user, origin URL, username) triple.
// Returns nil, nil if it does not exist.
func (r *CredentialRepo) Find(ctx context.Context, userID int64, originURL, username string) (*model.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM credentials WHERE user_id = ? AND full_url = ? AND username = ?`

	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, userID, originURL, username))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find credential %s for user %d: %w", originURL, userID, err)
	}
	return cred, nil
}

// Get returns the credential with the given ID. Returns nil, nil if it does not exist.
func (r *CredentialRepo) Get(ctx context.Context, id int64) (*model.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM credentials WHERE id = ?`

	cred, err := scanCredential(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get credential %d: %w", id, err)
	}
	return cred, nil
}

// Insert stores a new credential. A violation of the (user, origin URL, username)
// uniqueness constraint returns driven.ErrDuplicateCredential.
func (r *CredentialRepo) Insert(ctx context.Context, cred model.Credential) (int64, error) {
	const query = `
		INSERT INTO credentials (
			user_id, full_url, url, icon, username, password, browser, breach_status,
			date_created, date_last_used, date_password_modified, breach_checked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	status := cred.Breach
	if status == "" {
		status = model.BreachStatusUnknown
	}
	browser := cred.Browser
	if browser == "" {
		browser = model.BrowserNone
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		cred.UserID, cred.OriginURL, cred.SignonRealm, cred.Icon, cred.Username, cred.Password,
		string(browser), string(status),
		formatTime(cred.CreatedAt), formatTime(cred.LastUsedAt), formatTime(cred.PasswordModifiedAt),
		formatTime(cred.BreachCheckedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("insert credential %s for user %d: %w", cred.OriginURL, cred.UserID, driven.ErrDuplicateCredential)
		}
		return 0, fmt.Errorf("insert credential %s for user %d: %w", cred.OriginURL, cred.UserID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted credential id: %w", err)
	}
	return id, nil
}

// Update replaces the mutable fields of an existing credential. The owning user
// and creation time are immutable.
func (r *CredentialRepo) Update(ctx context.Context, cred model.Credential) error {
	const query = `
		UPDATE credentials SET
			full_url = ?, url = ?, icon = ?, username = ?, password = ?, browser = ?,
			breach_status = ?, date_last_used = ?, date_password_modified = ?, breach_checked_at = ?
		WHERE id = ?
	`

	result, err := r.db.Writer.ExecContext(ctx, query,
		cred.OriginURL, cred.SignonRealm, cred.Icon, cred.Username, cred.Password, string(cred.Browser),
		string(cred.Breach), formatTime(cred.LastUsedAt), formatTime(cred.PasswordModifiedAt),
		formatTime(cred.BreachCheckedAt), cred.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update credential %d: %w", cred.ID, driven.ErrDuplicateCredential)
		}
		return fmt.Errorf("update credential %d: %w", cred.ID, err)
	}

	return expectOneRow(result, fmt.Sprintf("update credential %d", cred.ID))
}

// UpdateBreachStatus records the result of a breach check without touching
// any other column.
func (r *CredentialRepo) UpdateBreachStatus(ctx context.Context, id int64, status model.BreachStatus, checkedAt time.Time) error {
	const query = `UPDATE credentials SET breach_status = ?, breach_checked_at = ? WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, string(status), formatTime(checkedAt), id)
	if err != nil {
		return fmt.Errorf("update breach status for credential %d: %w", id, err)
	}

	return expectOneRow(result, fmt.Sprintf("update breach status for credential %d", id))
}

// Delete removes a credential by ID.
func (r *CredentialRepo) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM credentials WHERE id = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete credential %d: %w", id, err)
	}

	return expectOneRow(result, fmt.Sprintf("delete credential %d", id))
}

// List returns all credentials owned by userID ordered by origin URL, then username.
func (r *CredentialRepo) List(ctx context.Context, userID int64) ([]model.Credential, error) {
	const query = `SELECT ` + credentialColumns + ` FROM credentials WHERE user_id = ? ORDER BY full_url, username`

	rows, err := r.db.Reader.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list credentials for user %d: %w", userID, err)
	}
	defer rows.Close()

	var creds []model.Credential
	for rows.Next() {
		cred, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}

	if creds == nil {
		creds = []model.Credential{}
	}
	return creds, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCredential(s scanner) (*model.Credential, error) {
	var (
		cred                                   model.Credential
		browser, status                        string
		created, lastUsed, modified, checkedAt sql.NullString
	)

	err := s.Scan(
		&cred.ID, &cred.UserID, &cred.OriginURL, &cred.SignonRealm, &cred.Icon, &cred.Username,
		&cred.Password, &browser, &status, &created, &lastUsed, &modified, &checkedAt,
	)
	if err != nil {
		return nil, err
	}
	cred.Browser = model.Browser(browser)
	cred.Breach = model.BreachStatus(status)

	for _, f := range []struct {
		name string
		src  sql.NullString
		dst  *time.Time
	}{
		{"date_created", created, &cred.CreatedAt},
		{"date_last_used", lastUsed, &cred.LastUsedAt},
		{"date_password_modified", modified, &cred.PasswordModifiedAt},
		{"breach_checked_at", checkedAt, &cred.BreachCheckedAt},
	} {
		if !f.src.Valid || f.src.String == "" {
			continue
		}
		t, err := parseTime(f.src.String)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", f.name, err)
		}
		*f.dst = t
	}

	return &cred, nil
}

func expectOneRow(result sql.Result, op string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, driven.ErrCredentialNotFound)
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint")
}

// formatTime stores zero times as NULL and everything else as UTC RFC 3339.
func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime tries multiple SQLite datetime formats.
func parseTime(s string) (time.Time, error) {
	formats := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05.000",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC(), nil
		}
	}

	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
