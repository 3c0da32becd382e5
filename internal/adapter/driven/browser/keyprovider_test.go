package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// fakeUnwrapper "unwraps" by stripping a fixed marker, mimicking a protected blob.
type fakeUnwrapper struct {
	calls int
	err   error
}

func (f *fakeUnwrapper) Unwrap(wrapped []byte) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if !bytes.HasPrefix(wrapped, []byte("PROTECTED:")) {
		return nil, errors.New("not a protected blob")
	}
	return bytes.Clone(wrapped[len("PROTECTED:"):]), nil
}

func rawKey() []byte {
	return bytes.Repeat([]byte{0x42}, model.MasterKeySize)
}

func writeLocalState(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Local State")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func localStateWithKey(wrapped []byte) string {
	return `{"os_crypt":{"encrypted_key":"` + base64.StdEncoding.EncodeToString(wrapped) + `"},"other":1}`
}

func TestKeyProvider_AcquireMasterKey(t *testing.T) {
	path := writeLocalState(t, localStateWithKey(append([]byte("DPAPIPROTECTED:"), rawKey()...)))
	unwrapper := &fakeUnwrapper{}
	provider := NewKeyProvider(map[model.Browser]model.BrowserPaths{
		model.BrowserEdge: {LocalState: path},
	}, unwrapper)

	key, err := provider.AcquireMasterKey(context.Background(), model.BrowserEdge)
	require.NoError(t, err)
	assert.Equal(t, rawKey(), key[:])

	// No caching: a second call reads and unwraps again.
	_, err = provider.AcquireMasterKey(context.Background(), model.BrowserEdge)
	require.NoError(t, err)
	assert.Equal(t, 2, unwrapper.calls)
}

func TestKeyProvider_Errors(t *testing.T) {
	tests := []struct {
		name      string
		content   *string
		unwrapErr error
		want      error
	}{
		{name: "not configured", want: driven.ErrKeySourceUnavailable},
		{name: "bad json", content: ptr("{not json"), want: driven.ErrKeyFormatInvalid},
		{name: "missing field", content: ptr(`{"os_crypt":{}}`), want: driven.ErrKeyFormatInvalid},
		{name: "bad base64", content: ptr(`{"os_crypt":{"encrypted_key":"!!!"}}`), want: driven.ErrKeyFormatInvalid},
		{name: "wrong prefix", content: ptr(localStateWithKey([]byte("XXXXXPROTECTED:key"))), want: driven.ErrKeyFormatInvalid},
		{name: "wrong key length", content: ptr(localStateWithKey([]byte("DPAPIPROTECTED:short"))), want: driven.ErrKeyFormatInvalid},
		{name: "unwrap rejected", content: ptr(localStateWithKey([]byte("DPAPIgarbage"))), want: driven.ErrKeyUnwrapFailed},
		{
			name:      "unsupported platform",
			content:   ptr(localStateWithKey(append([]byte("DPAPIPROTECTED:"), rawKey()...))),
			unwrapErr: driven.ErrKeySourceUnavailable,
			want:      driven.ErrKeySourceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locations := map[model.Browser]model.BrowserPaths{}
			if tt.content != nil {
				locations[model.BrowserChrome] = model.BrowserPaths{LocalState: writeLocalState(t, *tt.content)}
			}
			provider := NewKeyProvider(locations, &fakeUnwrapper{err: tt.unwrapErr})

			_, err := provider.AcquireMasterKey(context.Background(), model.BrowserChrome)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestKeyProvider_MissingFile(t *testing.T) {
	provider := NewKeyProvider(map[model.Browser]model.BrowserPaths{
		model.BrowserChrome: {LocalState: filepath.Join(t.TempDir(), "nope")},
	}, &fakeUnwrapper{})

	_, err := provider.AcquireMasterKey(context.Background(), model.BrowserChrome)
	assert.ErrorIs(t, err, driven.ErrKeySourceUnavailable)
}

func ptr(s string) *string { return &s }
