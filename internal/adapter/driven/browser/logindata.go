package browser

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// webkitEpochOffset is the number of seconds between 1601-01-01 and 1970-01-01.
const webkitEpochOffset = 11644473600

const loginsQuery = `SELECT origin_url, signon_realm, username_value, password_value,
	date_created, date_last_used, date_password_modified
	FROM logins`

// Compile-time interface satisfaction check.
var _ driven.LoginSource = (*LoginSource)(nil)

// LoginSource reads the "Login Data" SQLite store of a Chromium-based browser.
// The live file may be locked by a running browser, so every read works on a
// private copy in a fresh temporary directory that is removed before returning.
type LoginSource struct {
	locations map[model.Browser]model.BrowserPaths
	tempDir   string // Parent for scratch copies; "" means os.TempDir().
	logger    *slog.Logger
}

// NewLoginSource creates a LoginSource over the configured browser locations.
func NewLoginSource(locations map[model.Browser]model.BrowserPaths, tempDir string, logger *slog.Logger) *LoginSource {
	return &LoginSource{locations: locations, tempDir: tempDir, logger: logger}
}

// ReadLogins copies the browser's store aside and reads every saved login.
// Returns nil, nil when the browser has no store configured.
// A row that cannot be decoded is returned with ReadErr set instead of
// failing the whole read.
func (s *LoginSource) ReadLogins(ctx context.Context, browser model.Browser) (*model.ImportBatch, error) {
	src := s.locations[browser].LoginData
	if src == "" {
		return nil, nil
	}

	scratch, err := os.MkdirTemp(s.tempDir, "credvault-import-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			s.logger.Error("failed to remove scratch copy", "dir", scratch, "error", err)
		}
	}()

	dst := filepath.Join(scratch, "logins.db")
	if err := copyFile(src, dst); err != nil {
		return nil, fmt.Errorf("copy %s login store: %w", browser.DisplayName(), err)
	}

	rows, err := readLogins(ctx, dst)
	if err != nil {
		return nil, fmt.Errorf("read %s login store: %w", browser.DisplayName(), err)
	}

	return &model.ImportBatch{Browser: browser, Rows: rows}, nil
}

// readLogins opens the copy read-only and scans it. The connection is closed
// before returning so the scratch directory can be removed.
func readLogins(ctx context.Context, path string) ([]model.ImportRow, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?mode=ro", filepath.ToSlash(path)))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)

	rows, err := db.QueryContext(ctx, loginsQuery)
	if err != nil {
		return nil, fmt.Errorf("query logins: %w", err)
	}
	defer rows.Close()

	var out []model.ImportRow
	for i := 0; rows.Next(); i++ {
		var (
			origin, realm, username     sql.NullString
			password                    []byte
			created, lastUsed, modified sql.NullInt64
		)

		row := model.ImportRow{Index: i}
		if err := rows.Scan(&origin, &realm, &username, &password, &created, &lastUsed, &modified); err != nil {
			row.ReadErr = fmt.Errorf("scan login row: %w", err)
			out = append(out, row)
			continue
		}

		row.OriginURL = origin.String
		row.SignonRealm = realm.String
		row.Username = username.String
		row.Password = password
		row.CreatedAt = webkitTime(created.Int64)
		row.LastUsedAt = webkitTime(lastUsed.Int64)
		row.PasswordModifiedAt = webkitTime(modified.Int64)
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate logins: %w", err)
	}

	return out, nil
}

// webkitTime converts microseconds since 1601-01-01 UTC. Zero or negative
// values mean "never" and map to the zero time.
func webkitTime(us int64) time.Time {
	if us <= 0 {
		return time.Time{}
	}
	sec := us/1_000_000 - webkitEpochOffset
	nsec := (us % 1_000_000) * 1000
	return time.Unix(sec, nsec).UTC()
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
