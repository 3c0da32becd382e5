package driven

import (
	"context"
	"errors"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// Key acquisition errors. None of them is transient; callers must not retry.
var (
	// ErrKeySourceUnavailable indicates the protected key store could not be
	// located: unset or invalid path, missing passphrase, or unsupported platform.
	ErrKeySourceUnavailable = errors.New("key source unavailable")

	// ErrKeyUnwrapFailed indicates the unwrap primitive rejected the wrapped key
	// (wrong OS user, corrupted store, revoked scope, wrong passphrase).
	ErrKeyUnwrapFailed = errors.New("key unwrap failed")

	// ErrKeyFormatInvalid indicates the key record does not have the expected
	// structure (missing field, bad base64 or JSON, unexpected prefix, wrong length).
	ErrKeyFormatInvalid = errors.New("key format invalid")
)

// BrowserKeyProvider recovers a browser's master key from its OS-protected store.
// Every call re-reads the source; implementations must not cache.
type BrowserKeyProvider interface {
	AcquireMasterKey(ctx context.Context, browser model.Browser) (model.MasterKey, error)
}

// VaultKeyProvider yields the vault's own master key, under which stored
// passwords are encrypted. Every call re-reads the wrapped key.
type VaultKeyProvider interface {
	AcquireVaultKey(ctx context.Context) (model.MasterKey, error)
}

// KeyUnwrapper is the host OS per-user data-protection primitive.
type KeyUnwrapper interface {
	// Unwrap returns the plaintext protected by wrapped. Failures wrap
	// ErrKeyUnwrapFailed, or ErrKeySourceUnavailable on unsupported platforms.
	Unwrap(wrapped []byte) ([]byte, error)
}
