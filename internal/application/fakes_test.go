package application

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKey(fill byte) model.MasterKey {
	var k model.MasterKey
	for i := range k {
		k[i] = fill + byte(i)
	}
	return k
}

// --- LoginSource ---

type fakeSource struct {
	batches map[model.Browser]*model.ImportBatch
	err     error
	calls   int
}

func (f *fakeSource) ReadLogins(_ context.Context, browser model.Browser) (*model.ImportBatch, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	batch, ok := f.batches[browser]
	if !ok {
		return nil, nil
	}
	// Each read yields a fresh batch, like re-reading the store file.
	rows := make([]model.ImportRow, len(batch.Rows))
	for i, r := range batch.Rows {
		r.Password = bytes.Clone(r.Password)
		rows[i] = r
	}
	return &model.ImportBatch{Browser: batch.Browser, Rows: rows}, nil
}

// --- key providers ---

type fakeBrowserKeys struct {
	keys  map[model.Browser]model.MasterKey
	err   error
	calls int
}

func (f *fakeBrowserKeys) AcquireMasterKey(_ context.Context, browser model.Browser) (model.MasterKey, error) {
	f.calls++
	if f.err != nil {
		return model.MasterKey{}, f.err
	}
	key, ok := f.keys[browser]
	if !ok {
		return model.MasterKey{}, fmt.Errorf("%s: %w", browser, driven.ErrKeySourceUnavailable)
	}
	return key, nil
}

type fakeVaultKeys struct {
	key   model.MasterKey
	err   error
	calls int
}

func (f *fakeVaultKeys) AcquireVaultKey(context.Context) (model.MasterKey, error) {
	f.calls++
	if f.err != nil {
		return model.MasterKey{}, f.err
	}
	return f.key, nil
}

// legacyPrefix marks values the fake unwrapper accepts, standing in for a
// DPAPI blob header.
var legacyPrefix = []byte{0x01, 0x00, 0x00, 0x00}

type fakeUnwrapper struct{}

func (fakeUnwrapper) Unwrap(wrapped []byte) ([]byte, error) {
	if !bytes.HasPrefix(wrapped, legacyPrefix) {
		return nil, fmt.Errorf("%w: not a protected blob", driven.ErrKeyUnwrapFailed)
	}
	return bytes.Clone(wrapped[len(legacyPrefix):]), nil
}

// --- CredentialStore ---

type memStore struct {
	mu     sync.Mutex
	nextID int64
	creds  map[int64]model.Credential

	// findAlwaysMisses simulates a concurrent import that inserted between
	// this import's existence check and its insert.
	findAlwaysMisses bool
	updateErr        error
	breachUpdates    int
}

func newMemStore() *memStore {
	return &memStore{creds: make(map[int64]model.Credential)}
}

func (m *memStore) Find(_ context.Context, userID int64, originURL, username string) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findAlwaysMisses {
		return nil, nil
	}
	for _, c := range m.creds {
		if c.UserID == userID && c.OriginURL == originURL && c.Username == username {
			found := c
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memStore) Get(_ context.Context, id int64) (*model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[id]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (m *memStore) conflicts(cred model.Credential) bool {
	for id, c := range m.creds {
		if id != cred.ID && c.UserID == cred.UserID && c.OriginURL == cred.OriginURL && c.Username == cred.Username {
			return true
		}
	}
	return false
}

func (m *memStore) Insert(_ context.Context, cred model.Credential) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cred.ID = 0
	if m.conflicts(cred) {
		return 0, fmt.Errorf("insert: %w", driven.ErrDuplicateCredential)
	}
	m.nextID++
	cred.ID = m.nextID
	m.creds[cred.ID] = cred
	return cred.ID, nil
}

func (m *memStore) Update(_ context.Context, cred model.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.creds[cred.ID]; !ok {
		return driven.ErrCredentialNotFound
	}
	if m.conflicts(cred) {
		return fmt.Errorf("update: %w", driven.ErrDuplicateCredential)
	}
	m.creds[cred.ID] = cred
	return nil
}

func (m *memStore) UpdateBreachStatus(_ context.Context, id int64, status model.BreachStatus, checkedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	c, ok := m.creds[id]
	if !ok {
		return driven.ErrCredentialNotFound
	}
	c.Breach = status
	c.BreachCheckedAt = checkedAt
	m.creds[id] = c
	m.breachUpdates++
	return nil
}

func (m *memStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.creds[id]; !ok {
		return driven.ErrCredentialNotFound
	}
	delete(m.creds, id)
	return nil
}

func (m *memStore) List(_ context.Context, userID int64) ([]model.Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Credential{}
	for _, c := range m.creds {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OriginURL != out[j].OriginURL {
			return out[i].OriginURL < out[j].OriginURL
		}
		return out[i].Username < out[j].Username
	})
	return out, nil
}

// --- BreachOracle ---

type fakeOracle struct {
	breached    map[string]bool
	unavailable map[string]bool
	calls       int
}

func (f *fakeOracle) CheckBreached(_ context.Context, password string) (model.BreachStatus, error) {
	f.calls++
	if f.unavailable[password] {
		return model.BreachStatusUnknown, fmt.Errorf("%w: status 503", driven.ErrOracleUnavailable)
	}
	if f.breached[password] {
		return model.BreachStatusBreached, nil
	}
	return model.BreachStatusClean, nil
}

// --- IconLookup ---

type fakeIcons struct {
	icons map[string]string // origin URL -> icon
	err   error
	calls int
}

func (f *fakeIcons) Lookup(_ context.Context, originURL string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.icons[originURL], nil
}
