package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"github.com/ericfisherdev/credvault/internal/adapter/driven/browser"
	"github.com/ericfisherdev/credvault/internal/adapter/driven/favicon"
	"github.com/ericfisherdev/credvault/internal/adapter/driven/pwned"
	sqliteadapter "github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/credvault/internal/application"
	"github.com/ericfisherdev/credvault/internal/config"
	"github.com/ericfisherdev/credvault/internal/crypto"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// app is the wired composition root shared by every command.
type app struct {
	cfg    *config.Config
	db     *sqliteadapter.DB
	logger *slog.Logger

	vault  *application.VaultService
	breach *application.BreachService
	imp    *application.ImportService
}

// newApp loads configuration, opens and migrates the database, and wires
// adapters into the application services.
func newApp(ctx context.Context) (*app, error) {
	// 1. Load configuration (fail fast on invalid values).
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	slog.Debug("config loaded", "config", cfg)
	if !cfg.HasPassphrase() {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			slog.Warn("CREDVAULT_PASSPHRASE is not set, vault operations will fail until it is provided")
		} else if cfg.Passphrase, err = promptPassphrase("Vault passphrase: "); err != nil {
			return nil, err
		}
	}

	// 2. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open vault database: %w", err)
	}

	// 3. Run migrations on writer connection.
	version, err := sqliteadapter.RunMigrations(db.Writer)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	slog.Debug("database ready", "path", cfg.DBPath, "schema_version", version)

	// 4. Wire adapters.
	credentialStore := sqliteadapter.NewCredentialRepo(db)
	metaStore := sqliteadapter.NewMetaRepo(db)
	vaultKeys := crypto.NewPassphraseKeyring(metaStore, cfg.Passphrase, crypto.DefaultKDFParams())

	unwrapper := browser.NewDPAPIUnwrapper()
	browserKeys := browser.NewKeyProvider(cfg.Browsers, unwrapper)
	source := browser.NewLoginSource(cfg.Browsers, cfg.TempDir, logger)

	oracle := pwned.NewClient(cfg.BreachAPIURL, cfg.BreachTimeout, cfg.BreachPadding, logger)

	var icons driven.IconLookup
	if cfg.IconURL != "" {
		icons = favicon.NewClient(cfg.IconURL, cfg.IconTimeout)
	}

	// 5. Create services.
	return &app{
		cfg:    cfg,
		db:     db,
		logger: logger,
		vault:  application.NewVaultService(credentialStore, vaultKeys, icons, logger),
		breach: application.NewBreachService(credentialStore, vaultKeys, oracle, logger),
		imp:    application.NewImportService(source, browserKeys, unwrapper, vaultKeys, credentialStore, icons, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		slog.Error("error closing database", "error", err)
	}
}

// promptPassphrase reads the vault passphrase from the terminal without echo.
func promptPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	return string(pw), nil
}

// withApp runs fn against a freshly wired app and closes it afterwards.
func withApp(ctx context.Context, fn func(a *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(a)
}
