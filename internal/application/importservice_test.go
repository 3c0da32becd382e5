package application

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credvault/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/credvault/internal/crypto"
	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

const testUser int64 = 7

var (
	chromeKey = testKey(0x10)
	edgeKey   = testKey(0x40)
	vaultKey  = testKey(0x80)
	rowTime   = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
)

type importFixture struct {
	source      *fakeSource
	browserKeys *fakeBrowserKeys
	vaultKeys   *fakeVaultKeys
	store       *memStore
	icons       *fakeIcons
	svc         *ImportService
}

func newImportFixture(t *testing.T, rows map[model.Browser][]model.ImportRow) *importFixture {
	t.Helper()

	batches := make(map[model.Browser]*model.ImportBatch, len(rows))
	for b, r := range rows {
		batches[b] = &model.ImportBatch{Browser: b, Rows: r}
	}

	f := &importFixture{
		source: &fakeSource{batches: batches},
		browserKeys: &fakeBrowserKeys{keys: map[model.Browser]model.MasterKey{
			model.BrowserChrome: chromeKey,
			model.BrowserEdge:   edgeKey,
		}},
		vaultKeys: &fakeVaultKeys{key: vaultKey},
		store:     newMemStore(),
		icons:     &fakeIcons{icons: map[string]string{"https://example.com/login": "https://icons.test/example.com"}},
	}
	f.svc = NewImportService(f.source, f.browserKeys, fakeUnwrapper{}, f.vaultKeys, f.store, f.icons, discardLogger())
	return f
}

// browserRow builds a row whose password is sealed the way the browser seals it.
func browserRow(t *testing.T, index int, origin, username, password string, key model.MasterKey) model.ImportRow {
	t.Helper()

	blob, err := crypto.Encrypt(password, key)
	require.NoError(t, err)

	return model.ImportRow{
		Index:              index,
		OriginURL:          origin,
		SignonRealm:        origin,
		Username:           username,
		Password:           blob,
		CreatedAt:          rowTime,
		LastUsedAt:         rowTime.Add(24 * time.Hour),
		PasswordModifiedAt: rowTime.Add(time.Hour),
	}
}

func legacyRow(index int, origin, username, password string) model.ImportRow {
	return model.ImportRow{
		Index:     index,
		OriginURL: origin,
		Username:  username,
		Password:  append(append([]byte{}, legacyPrefix...), password...),
		CreatedAt: rowTime,
	}
}

func revealAll(t *testing.T, store *memStore) map[string]string {
	t.Helper()

	creds, err := store.List(context.Background(), testUser)
	require.NoError(t, err)

	out := make(map[string]string, len(creds))
	for _, c := range creds {
		plaintext, err := crypto.Decrypt(c.Password, vaultKey)
		require.NoError(t, err)
		out[c.OriginURL+"|"+c.Username] = plaintext
	}
	return out
}

func TestImport_InsertsReencryptedCredentials(t *testing.T) {
	f := newImportFixture(t, map[model.Browser][]model.ImportRow{
		model.BrowserChrome: {
			browserRow(t, 0, "https://example.com/login", "alice", "hunter2", chromeKey),
			browserRow(t, 1, "https://shop.test/", "alice@shop", "", chromeKey),
		},
	})

	summary, err := f.svc.Import(context.Background(), model.BrowserChrome, testUser)
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, model.ImportOutcomeCompleted, summary.Outcome)
	assert.Equal(t, 2, summary.Read)
	assert.Equal(t, 2, summary.Inserted)
	assert.Zero(t, summary.Skipped)
	assert.Empty(t, summary.Failed)

	assert.Equal(t, map[string]string{
		"https://example.com/login|alice": "hunter2",
		"https://shop.test/|alice@shop":   "",
	}, revealAll(t, f.store))

	stored, err := f.store.Find(context.Background(), testUser, "https://example.com/login", "alice")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, model.BrowserChrome, stored.Browser)
	assert.Equal(t, model.BreachStatusUnknown, stored.Breach)
	assert.Equal(t, "https://icons.test/example.com", stored.Icon)
	assert.Equal(t, rowTime, stored.CreatedAt)
	assert.Equal(t, rowTime.Add(24*time.Hour), stored.LastUsedAt)
	assert.Equal(t, rowTime.Add(time.Hour), stored.PasswordModifiedAt)

	// The stored blob is sealed under the vault key, not the browser key.
	_, err = crypto.Decrypt(stored.Password, chromeKey)
	assert.ErrorIs(t, err, crypto.ErrAuthenticationFailed)
}

func TestImport_IsIdempotent(t *testing.T) {
	f := newImportFixture(t, map[model.Browser][]model.ImportRow{
		model.BrowserChrome: {
			browserRow(t, 0, "https://example.com/login", "alice", "hunter2", chromeKey),
			browserRow(t, 1, "https://example.com/login", "bob", "letmein", chromeKey),
			browserRow(t, 2, "https://mail.test/", "alice", "s3cret", chromeKey),
		},
	})
	ctx := context.Background()

	first, err := f.svc.Import(ctx, model.BrowserChrome, testUser)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)
	before, err := f.store.List(ctx, testUser)
	require.NoError(t, err)

	second, err := f.svc.Import(ctx, model.BrowserChrome, testUser)
	require.NoError(t, err)
	assert.Zero(t, second.Inserted)
	assert.Equal(t, 3, second.Skipped)
	assert.Empty(t, second.Failed)
	assert.NotEqual(t, first.RunID, second.RunID)

	after, err := f.store.List(ctx, testUser)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImport_PartialFailureIsIsolated(t *testing.T) {
	tampered := browserRow(t, 2, "https://tampered.test/", "carol", "pw", chromeKey)
	tampered.Password[len(tampered.Password)-1] ^= 0x01

	unsupported := browserRow(t, 3, "https://v20.test/", "dave", "pw", chromeKey)
	copy(unsupported.Password, "v20")

	rows := []model.ImportRow{
		browserRow(t, 0, "https://example.com/login", "alice", "hunter2", chromeKey),
		browserRow(t, 1, "https://nouser.test/", "", "pw", chromeKey),
		tampered,
		unsupported,
		{Index: 4, OriginURL: "https://unreadable.test/", ReadErr: errors.New("scan login row 4: bad column")},
		legacyRow(5, "https://legacy.test/", "erin", "old-school"),
		{Index: 6, OriginURL: "https://badlegacy.test/", Username: "frank", Password: []byte{0x02, 0x03}},
		browserRow(t, 7, "", "ghost", "pw", chromeKey),
	}
	f := newImportFixture(t, map[model.Browser][]model.ImportRow{model.BrowserChrome: rows})

	summary, err := f.svc.Import(context.Background(), model.BrowserChrome, testUser)
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Read)
	assert.Equal(t, 2, summary.Inserted)
	require.Len(t, summary.Failed, 6)

	failed := make(map[int]string, len(summary.Failed))
	for _, rowErr := range summary.Failed {
		failed[rowErr.Index] = rowErr.Reason
	}
	assert.Contains(t, failed[1], ErrMissingUsername.Error())
	assert.Contains(t, failed[2], crypto.ErrAuthenticationFailed.Error())
	assert.Contains(t, failed[3], ErrUnsupportedBlob.Error())
	assert.Contains(t, failed[4], "bad column")
	assert.Contains(t, failed[6], driven.ErrKeyUnwrapFailed.Error())
	assert.Contains(t, failed[7], ErrMissingOrigin.Error())

	assert.Equal(t, map[string]string{
		"https://example.com/login|alice": "hunter2",
		"https://legacy.test/|erin":       "old-school",
	}, revealAll(t, f.store))
}

func TestImport_NoSource(t *testing.T) {
	t.Run("browser none", func(t *testing.T) {
		f := newImportFixture(t, nil)

		summary, err := f.svc.Import(context.Background(), model.BrowserNone, testUser)
		require.NoError(t, err)
		assert.Equal(t, model.ImportOutcomeNoSource, summary.Outcome)
		assert.Zero(t, f.source.calls)
		assert.Zero(t, f.browserKeys.calls)
	})

	t.Run("store not configured", func(t *testing.T) {
		f := newImportFixture(t, nil)

		summary, err := f.svc.Import(context.Background(), model.BrowserEdge, testUser)
		require.NoError(t, err)
		assert.Equal(t, model.ImportOutcomeNoSource, summary.Outcome)
		assert.Equal(t, 1, f.source.calls)
		assert.Zero(t, f.browserKeys.calls)
		assert.Zero(t, f.vaultKeys.calls)
	})

	t.Run("empty store acquires no keys", func(t *testing.T) {
		f := newImportFixture(t, map[model.Browser][]model.ImportRow{model.BrowserChrome: {}})

		summary, err := f.svc.Import(context.Background(), model.BrowserChrome, testUser)
		require.NoError(t, err)
		assert.Equal(t, model.ImportOutcomeCompleted, summary.Outcome)
		assert.Zero(t, summary.Read)
		assert.Zero(t, f.browserKeys.calls)
		assert.Zero(t, f.vaultKeys.calls)
	})
}

func TestImport_BrowserAllRejected(t *testing.T) {
	f := newImportFixture(t, nil)

	_, err := f.svc.Import(context.Background(), model.BrowserAll, testUser)
	require.Error(t, err)
	assert.Zero(t, f.source.calls)
}

func TestImport_FatalErrors(t *testing.T) {
	rows := func(t *testing.T) map[model.Browser][]model.ImportRow {
		return map[model.Browser][]model.ImportRow{
			model.BrowserChrome: {browserRow(t, 0, "https://example.com/login", "alice", "pw", chromeKey)},
		}
	}

	tests := []struct {
		name    string
		setup   func(f *importFixture)
		wantErr error
	}{
		{
			name:    "source read fails",
			setup:   func(f *importFixture) { f.source.err = errors.New("copy login store: permission denied") },
			wantErr: nil,
		},
		{
			name:    "browser key unwrap fails",
			setup:   func(f *importFixture) { f.browserKeys.err = driven.ErrKeyUnwrapFailed },
			wantErr: driven.ErrKeyUnwrapFailed,
		},
		{
			name:    "vault key unavailable",
			setup:   func(f *importFixture) { f.vaultKeys.err = driven.ErrKeySourceUnavailable },
			wantErr: driven.ErrKeySourceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newImportFixture(t, rows(t))
			tt.setup(f)

			summary, err := f.svc.Import(context.Background(), model.BrowserChrome, testUser)
			require.Error(t, err)
			assert.Nil(t, summary)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Empty(t, f.store.creds)
		})
	}
}

func TestImport_RacedDuplicateCountsAsSkipped(t *testing.T) {
	f := newImportFixture(t, map[model.Browser][]model.ImportRow{
		model.BrowserChrome: {browserRow(t, 0, "https://example.com/login", "alice", "pw", chromeKey)},
	})
	_, err := f.store.Insert(context.Background(), model.Credential{
		UserID: testUser, OriginURL: "https://example.com/login", Username: "alice",
	})
	require.NoError(t, err)
	f.store.findAlwaysMisses = true

	summary, err := f.svc.Import(context.Background(), model.BrowserChrome, testUser)
	require.NoError(t, err)
	assert.Zero(t, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Empty(t, summary.Failed)
	assert.Len(t, f.store.creds, 1)
}

func TestImport_IconLookup(t *testing.T) {
	t.Run("failure is not fatal", func(t *testing.T) {
		f := newImportFixture(t, map[model.Browser][]model.ImportRow{
			model.BrowserChrome: {browserRow(t, 0, "https://example.com/login", "alice", "pw", chromeKey)},
		})
		f.icons.err = errors.New("icon service timeout")

		summary, err := f.svc.Import(context.Background(), model.BrowserChrome, testUser)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Inserted)

		stored, err := f.store.Find(context.Background(), testUser, "https://example.com/login", "alice")
		require.NoError(t, err)
		assert.Empty(t, stored.Icon)
	})

	t.Run("looked up once per host", func(t *testing.T) {
		f := newImportFixture(t, map[model.Browser][]model.ImportRow{
			model.BrowserChrome: {
				browserRow(t, 0, "https://example.com/login", "alice", "pw", chromeKey),
				browserRow(t, 1, "https://example.com/signin", "bob", "pw", chromeKey),
				browserRow(t, 2, "https://other.test/", "bob", "pw", chromeKey),
			},
		})

		_, err := f.svc.Import(context.Background(), model.BrowserChrome, testUser)
		require.NoError(t, err)
		assert.Equal(t, 2, f.icons.calls)
	})

	t.Run("disabled", func(t *testing.T) {
		f := newImportFixture(t, map[model.Browser][]model.ImportRow{
			model.BrowserChrome: {browserRow(t, 0, "https://example.com/login", "alice", "pw", chromeKey)},
		})
		svc := NewImportService(f.source, f.browserKeys, fakeUnwrapper{}, f.vaultKeys, f.store, nil, discardLogger())

		summary, err := svc.Import(context.Background(), model.BrowserChrome, testUser)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Inserted)
	})
}

func TestImportAll(t *testing.T) {
	f := newImportFixture(t, map[model.Browser][]model.ImportRow{
		model.BrowserChrome: {browserRow(t, 0, "https://example.com/login", "alice", "chrome-pw", chromeKey)},
		model.BrowserEdge:   {browserRow(t, 0, "https://edge.test/", "alice", "edge-pw", edgeKey)},
		// Brave has rows but no key is available for it.
		model.BrowserBrave: {browserRow(t, 0, "https://brave.test/", "alice", "brave-pw", testKey(0xC0))},
	})

	summaries, err := f.svc.ImportAll(context.Background(), testUser)
	require.Error(t, err)
	assert.ErrorIs(t, err, driven.ErrKeySourceUnavailable)

	require.Len(t, summaries, 2)
	assert.Equal(t, model.BrowserChrome, summaries[0].Browser)
	assert.Equal(t, model.BrowserEdge, summaries[1].Browser)

	assert.Equal(t, map[string]string{
		"https://example.com/login|alice": "chrome-pw",
		"https://edge.test/|alice":        "edge-pw",
	}, revealAll(t, f.store))
}

func TestImport_ConcurrentRunsAgainstSQLite(t *testing.T) {
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, filepath.Join(t.TempDir(), "vault.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = sqlite.RunMigrations(db.Writer)
	require.NoError(t, err)
	store := sqlite.NewCredentialRepo(db)

	var rows []model.ImportRow
	for i, user := range []string{"alice", "bob", "carol", "dave", "erin"} {
		rows = append(rows, browserRow(t, i, "https://example.com/login", user, "pw-"+user, chromeKey))
	}
	source := &fakeSource{batches: map[model.Browser]*model.ImportBatch{
		model.BrowserChrome: {Browser: model.BrowserChrome, Rows: rows},
	}}

	const runs = 4
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		summaries []*model.ImportSummary
		errs      []error
	)
	for range runs {
		// Each run gets its own fakes; the store is the only shared state.
		keys := &fakeBrowserKeys{keys: map[model.Browser]model.MasterKey{model.BrowserChrome: chromeKey}}
		src := &fakeSource{batches: source.batches}
		svc := NewImportService(src, keys, fakeUnwrapper{}, &fakeVaultKeys{key: vaultKey}, store, nil, discardLogger())

		wg.Add(1)
		go func() {
			defer wg.Done()
			summary, err := svc.Import(ctx, model.BrowserChrome, testUser)
			mu.Lock()
			defer mu.Unlock()
			summaries = append(summaries, summary)
			errs = append(errs, err)
		}()
	}
	wg.Wait()

	inserted, skipped := 0, 0
	for i := range runs {
		require.NoError(t, errs[i])
		assert.Empty(t, summaries[i].Failed)
		inserted += summaries[i].Inserted
		skipped += summaries[i].Skipped
	}
	assert.Equal(t, len(rows), inserted)
	assert.Equal(t, len(rows)*(runs-1), skipped)

	stored, err := store.List(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, stored, len(rows))
}
