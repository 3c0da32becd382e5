// Package browser reads saved logins and the wrapped master key from the local
// profile of a Chromium-based browser.
package browser

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/awnumar/memguard"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// dpapiPrefix marks a key wrapped with the Windows data-protection API.
const dpapiPrefix = "DPAPI"

// Compile-time interface satisfaction check.
var _ driven.BrowserKeyProvider = (*KeyProvider)(nil)

// localState is the subset of the browser's "Local State" file that carries the key.
type localState struct {
	OSCrypt struct {
		EncryptedKey string `json:"encrypted_key"`
	} `json:"os_crypt"`
}

// KeyProvider recovers a browser's AES master key from its "Local State" file.
// It reads the file on every call because the OS protection may have been
// re-keyed in between.
type KeyProvider struct {
	locations map[model.Browser]model.BrowserPaths
	unwrapper driven.KeyUnwrapper
}

// NewKeyProvider creates a KeyProvider over the configured browser locations.
func NewKeyProvider(locations map[model.Browser]model.BrowserPaths, unwrapper driven.KeyUnwrapper) *KeyProvider {
	return &KeyProvider{locations: locations, unwrapper: unwrapper}
}

// AcquireMasterKey loads the browser's Local State, decodes the wrapped key,
// strips the DPAPI prefix, and unwraps it with the OS primitive.
func (p *KeyProvider) AcquireMasterKey(_ context.Context, browser model.Browser) (model.MasterKey, error) {
	var key model.MasterKey

	path := p.locations[browser].LocalState
	if path == "" {
		return key, fmt.Errorf("%w: no local state configured for %s", driven.ErrKeySourceUnavailable, browser.DisplayName())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return key, fmt.Errorf("%w: read local state: %v", driven.ErrKeySourceUnavailable, err)
	}

	var state localState
	if err := json.Unmarshal(data, &state); err != nil {
		return key, fmt.Errorf("%w: parse local state: %v", driven.ErrKeyFormatInvalid, err)
	}
	if state.OSCrypt.EncryptedKey == "" {
		return key, fmt.Errorf("%w: os_crypt.encrypted_key missing", driven.ErrKeyFormatInvalid)
	}

	wrapped, err := base64.StdEncoding.DecodeString(state.OSCrypt.EncryptedKey)
	if err != nil {
		return key, fmt.Errorf("%w: decode encrypted_key: %v", driven.ErrKeyFormatInvalid, err)
	}
	if !bytes.HasPrefix(wrapped, []byte(dpapiPrefix)) {
		return key, fmt.Errorf("%w: encrypted_key lacks %s prefix", driven.ErrKeyFormatInvalid, dpapiPrefix)
	}

	raw, err := p.unwrapper.Unwrap(wrapped[len(dpapiPrefix):])
	if err != nil {
		if errors.Is(err, driven.ErrKeyUnwrapFailed) || errors.Is(err, driven.ErrKeySourceUnavailable) {
			return key, err
		}
		return key, fmt.Errorf("%w: %v", driven.ErrKeyUnwrapFailed, err)
	}
	defer memguard.WipeBytes(raw)

	key, err = model.MasterKeyFromBytes(raw)
	if err != nil {
		return key, fmt.Errorf("%w: %v", driven.ErrKeyFormatInvalid, err)
	}
	return key, nil
}
