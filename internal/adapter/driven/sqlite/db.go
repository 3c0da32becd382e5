package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite"
)

// vaultPragmas apply to every vault connection. secure_delete overwrites freed
// pages so removed password blobs do not linger in the file.
var vaultPragmas = []string{
	"busy_timeout(5000)",
	"synchronous(NORMAL)",
	"foreign_keys(ON)",
	"secure_delete(ON)",
}

// DB pairs a single-connection writer with a small reader pool over one vault
// file. SQLite serialises writes, so funnelling them through one connection
// turns lock contention into queueing instead of SQLITE_BUSY.
type DB struct {
	Writer *sql.DB
	Reader *sql.DB
}

// NewDB opens the vault database at dbPath in WAL mode and restricts the file
// to the owning user.
func NewDB(ctx context.Context, dbPath string) (*DB, error) {
	db, err := openPair(ctx, fileDSN(dbPath))
	if err != nil {
		return nil, err
	}

	if err := os.Chmod(dbPath, 0o600); err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = db.Close()
		return nil, fmt.Errorf("restrict vault file permissions: %w", err)
	}

	return db, nil
}

func fileDSN(dbPath string) string {
	pragmas := append([]string{"journal_mode(WAL)"}, vaultPragmas...)
	return "file:" + dbPath + "?" + pragmaQuery(pragmas)
}

// memoryDSN names a shared-cache in-memory database. WAL does not apply there.
func memoryDSN(name string) string {
	return "file:" + name + "?mode=memory&cache=shared&" + pragmaQuery(vaultPragmas)
}

func pragmaQuery(pragmas []string) string {
	parts := make([]string, len(pragmas))
	for i, p := range pragmas {
		parts[i] = "_pragma=" + p
	}
	return strings.Join(parts, "&")
}

func openPair(ctx context.Context, dsn string) (*DB, error) {
	writer, err := openConn(ctx, dsn, 1)
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}

	reader, err := openConn(ctx, dsn, 4)
	if err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}

	return &DB{Writer: writer, Reader: reader}, nil
}

func openConn(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	conn.SetMaxOpenConns(maxOpen)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return conn, nil
}

// Close closes both pools and reports the first failure.
func (db *DB) Close() error {
	return errors.Join(
		wrapClose("reader", db.Reader.Close()),
		wrapClose("writer", db.Writer.Close()),
	)
}

func wrapClose(which string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close %s: %w", which, err)
}
