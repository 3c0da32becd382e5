// Package application contains use-case orchestration services.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/awnumar/memguard"
	"github.com/google/uuid"

	"github.com/ericfisherdev/credvault/internal/crypto"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// Row-level import failures. They are reported in ImportSummary.Failed and
// never abort the batch.
var (
	ErrMissingOrigin   = errors.New("missing origin URL")
	ErrMissingUsername = errors.New("missing username")
	ErrMissingPassword = errors.New("missing password value")
	ErrUnsupportedBlob = errors.New("unsupported browser password format")
)

// ImportService reads saved logins out of a browser store, re-encrypts each
// password under the vault key, and merges the results into the vault without
// creating duplicates.
//
// Two imports for the same user may run concurrently. The store's uniqueness
// constraint decides the race; the losing insert is counted as skipped.
type ImportService struct {
	source      driven.LoginSource
	browserKeys driven.BrowserKeyProvider
	unwrapper   driven.KeyUnwrapper
	vaultKeys   driven.VaultKeyProvider
	store       driven.CredentialStore
	icons       driven.IconLookup
	logger      *slog.Logger
}

// NewImportService creates a new ImportService. icons may be nil to disable
// icon lookup.
func NewImportService(
	source driven.LoginSource,
	browserKeys driven.BrowserKeyProvider,
	unwrapper driven.KeyUnwrapper,
	vaultKeys driven.VaultKeyProvider,
	store driven.CredentialStore,
	icons driven.IconLookup,
	logger *slog.Logger,
) *ImportService {
	return &ImportService{
		source:      source,
		browserKeys: browserKeys,
		unwrapper:   unwrapper,
		vaultKeys:   vaultKeys,
		store:       store,
		icons:       icons,
		logger:      logger,
	}
}

// Import merges the logins of one browser into userID's vault.
//
// A browser with no configured store (including BrowserNone) yields a summary
// with Outcome ImportOutcomeNoSource and a nil error. Errors are returned only
// when the whole run cannot proceed: the store cannot be read or a key cannot
// be acquired. Individual bad rows are logged and listed in the summary.
func (s *ImportService) Import(ctx context.Context, browser model.Browser, userID int64) (*model.ImportSummary, error) {
	if browser == model.BrowserAll {
		return nil, fmt.Errorf("import %s: select a single browser or use ImportAll", browser)
	}

	summary := &model.ImportSummary{
		RunID:   uuid.NewString(),
		Browser: browser,
		Outcome: model.ImportOutcomeNoSource,
		Failed:  []model.RowError{},
	}
	logger := s.logger.With("run_id", summary.RunID, "browser", string(browser), "user_id", userID)

	if _, ok := browser.Env(); !ok {
		logger.Info("no browser selected, nothing to import")
		return summary, nil
	}

	batch, err := s.source.ReadLogins(ctx, browser)
	if err != nil {
		return nil, fmt.Errorf("read %s logins: %w", browser, err)
	}
	if batch == nil {
		logger.Info("no credential store configured, nothing to import")
		return summary, nil
	}

	summary.Outcome = model.ImportOutcomeCompleted
	summary.Read = len(batch.Rows)
	if len(batch.Rows) == 0 {
		logger.Info("credential store is empty")
		return summary, nil
	}

	browserKey, err := s.browserKeys.AcquireMasterKey(ctx, browser)
	if err != nil {
		return nil, fmt.Errorf("acquire %s master key: %w", browser, err)
	}
	defer browserKey.Wipe()

	vaultKey, err := s.vaultKeys.AcquireVaultKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire vault key: %w", err)
	}
	defer vaultKey.Wipe()

	run := importRun{
		userID:     userID,
		browser:    browser,
		browserKey: browserKey,
		vaultKey:   vaultKey,
		icons:      make(map[string]string),
	}

	for i := range batch.Rows {
		row := &batch.Rows[i]

		inserted, err := s.importRow(ctx, &run, row)
		switch {
		case err != nil:
			logger.Warn("skipping login row", "index", row.Index, "origin_url", row.OriginURL, "error", err)
			summary.Failed = append(summary.Failed, model.RowError{
				Index:     row.Index,
				OriginURL: row.OriginURL,
				Reason:    err.Error(),
			})
		case inserted:
			summary.Inserted++
		default:
			summary.Skipped++
		}
	}

	logger.Info("import completed",
		"read", summary.Read,
		"inserted", summary.Inserted,
		"skipped", summary.Skipped,
		"failed", len(summary.Failed),
	)

	return summary, nil
}

// ImportAll runs Import for every importable browser in turn. A failure for one
// browser does not stop the others; the returned error joins every failure.
func (s *ImportService) ImportAll(ctx context.Context, userID int64) ([]*model.ImportSummary, error) {
	var (
		summaries []*model.ImportSummary
		errs      []error
	)

	for _, browser := range model.ImportableBrowsers {
		summary, err := s.Import(ctx, browser, userID)
		if err != nil {
			s.logger.Error("browser import failed", "browser", string(browser), "user_id", userID, "error", err)
			errs = append(errs, err)
			continue
		}
		summaries = append(summaries, summary)
	}

	return summaries, errors.Join(errs...)
}

// importRun carries the per-run state shared by every row.
type importRun struct {
	userID     int64
	browser    model.Browser
	browserKey model.MasterKey
	vaultKey   model.MasterKey
	icons      map[string]string // host -> icon URL, "" when none
}

// importRow merges one row. It returns (false, nil) when the credential is
// already in the vault.
func (s *ImportService) importRow(ctx context.Context, run *importRun, row *model.ImportRow) (bool, error) {
	if row.ReadErr != nil {
		return false, row.ReadErr
	}
	if err := validateRow(row); err != nil {
		return false, err
	}

	// The store's uniqueness constraint is authoritative; this lookup only
	// avoids decrypting rows that are already present.
	existing, err := s.store.Find(ctx, run.userID, row.OriginURL, row.Username)
	if err != nil {
		return false, fmt.Errorf("look up existing credential: %w", err)
	}
	if existing != nil {
		return false, nil
	}

	plaintext, err := s.openBrowserValue(row.Password, run.browserKey)
	if err != nil {
		return false, fmt.Errorf("decrypt browser password: %w", err)
	}
	blob, err := crypto.EncryptBytes(plaintext, run.vaultKey)
	memguard.WipeBytes(plaintext)
	if err != nil {
		return false, fmt.Errorf("encrypt password: %w", err)
	}

	cred := model.Credential{
		UserID:             run.userID,
		OriginURL:          row.OriginURL,
		SignonRealm:        row.SignonRealm,
		Icon:               s.lookupIcon(ctx, run.icons, row.OriginURL),
		Username:           row.Username,
		Password:           blob,
		Browser:            run.browser,
		Breach:             model.BreachStatusUnknown,
		CreatedAt:          row.CreatedAt,
		LastUsedAt:         row.LastUsedAt,
		PasswordModifiedAt: row.PasswordModifiedAt,
	}
	if cred.SignonRealm == "" {
		cred.SignonRealm = cred.OriginURL
	}

	if _, err := s.store.Insert(ctx, cred); err != nil {
		if errors.Is(err, driven.ErrDuplicateCredential) {
			return false, nil
		}
		return false, fmt.Errorf("insert credential: %w", err)
	}
	return true, nil
}

// openBrowserValue decrypts a browser-native password value. Values tagged
// "v10" are AES-GCM under the browser master key; untagged values predate
// that scheme and are whole DPAPI blobs.
func (s *ImportService) openBrowserValue(value []byte, browserKey model.MasterKey) ([]byte, error) {
	if crypto.HasFormatTag(value) {
		return crypto.DecryptBytes(value, browserKey)
	}
	if hasVersionTag(value) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedBlob, value[:3])
	}

	plaintext, err := s.unwrapper.Unwrap(value)
	if err != nil {
		return nil, fmt.Errorf("unwrap legacy value: %w", err)
	}
	return plaintext, nil
}

// lookupIcon resolves a site icon once per host for the run. Failures are
// logged at debug level and yield no icon.
func (s *ImportService) lookupIcon(ctx context.Context, cache map[string]string, originURL string) string {
	if s.icons == nil {
		return ""
	}

	host := originURL
	if u, err := url.Parse(originURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	if icon, ok := cache[host]; ok {
		return icon
	}

	icon, err := s.icons.Lookup(ctx, originURL)
	if err != nil {
		s.logger.Debug("icon lookup failed", "host", host, "error", err)
		icon = ""
	}
	cache[host] = icon
	return icon
}

func validateRow(row *model.ImportRow) error {
	switch {
	case row.OriginURL == "":
		return ErrMissingOrigin
	case row.Username == "":
		return ErrMissingUsername
	case len(row.Password) == 0:
		return ErrMissingPassword
	default:
		return nil
	}
}

// hasVersionTag reports whether value starts with a "vNN" scheme marker.
func hasVersionTag(value []byte) bool {
	return len(value) >= 3 && value[0] == 'v' &&
		value[1] >= '0' && value[1] <= '9' &&
		value[2] >= '0' && value[2] <= '9'
}

// nowUTC is the clock used by services that stamp records.
func nowUTC() time.Time {
	return time.Now().UTC()
}
