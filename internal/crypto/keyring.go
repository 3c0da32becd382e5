package crypto

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/ericfisherdev/credvault/internal/domain/model"
	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// vaultKeyMetaKey is the MetaStore key holding the wrapped vault key record.
const vaultKeyMetaKey = "vault_key"

// Compile-time interface satisfaction check.
var _ driven.VaultKeyProvider = (*PassphraseKeyring)(nil)

// wrappedVaultKey is the persisted form of the vault key. Only the wrapped
// blob is stored; the plaintext key exists in memory for one operation.
type wrappedVaultKey struct {
	Salt    []byte    `json:"salt"`
	KDF     KDFParams `json:"kdf"`
	Wrapped []byte    `json:"wrapped"`
}

// PassphraseKeyring provides the vault key. On first use it generates a random
// key, wraps it under an Argon2id KEK derived from the passphrase, and stores
// the wrapped record. Every AcquireVaultKey re-reads and unwraps that record.
type PassphraseKeyring struct {
	meta       driven.MetaStore
	passphrase []byte
	params     KDFParams
}

// NewPassphraseKeyring creates a keyring. An empty passphrase yields a keyring
// whose every acquisition fails with driven.ErrKeySourceUnavailable.
// params only apply when the vault key is first created; existing records
// carry their own parameters.
func NewPassphraseKeyring(meta driven.MetaStore, passphrase string, params KDFParams) *PassphraseKeyring {
	return &PassphraseKeyring{
		meta:       meta,
		passphrase: []byte(passphrase),
		params:     params,
	}
}

// AcquireVaultKey unwraps and returns the vault key.
func (k *PassphraseKeyring) AcquireVaultKey(ctx context.Context) (model.MasterKey, error) {
	var key model.MasterKey
	if len(k.passphrase) == 0 {
		return key, fmt.Errorf("%w: vault passphrase not configured", driven.ErrKeySourceUnavailable)
	}

	raw, ok, err := k.meta.Get(ctx, vaultKeyMetaKey)
	if err != nil {
		return key, fmt.Errorf("%w: load wrapped vault key: %v", driven.ErrKeySourceUnavailable, err)
	}
	if !ok {
		raw, err = k.initialize(ctx)
		if err != nil {
			return key, err
		}
	}

	var rec wrappedVaultKey
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return key, fmt.Errorf("%w: decode wrapped vault key: %v", driven.ErrKeyFormatInvalid, err)
	}
	if len(rec.Salt) == 0 || len(rec.Wrapped) == 0 || !rec.KDF.valid() {
		return key, fmt.Errorf("%w: wrapped vault key record is incomplete", driven.ErrKeyFormatInvalid)
	}

	kek := DeriveKEK(k.passphrase, rec.Salt, rec.KDF)
	defer kek.Wipe()

	plain, err := DecryptBytes(rec.Wrapped, kek)
	switch {
	case errors.Is(err, ErrAuthenticationFailed):
		return key, fmt.Errorf("%w: wrong passphrase or corrupted vault key", driven.ErrKeyUnwrapFailed)
	case err != nil:
		return key, fmt.Errorf("%w: %v", driven.ErrKeyFormatInvalid, err)
	}
	defer memguard.WipeBytes(plain)

	key, err = model.MasterKeyFromBytes(plain)
	if err != nil {
		return key, fmt.Errorf("%w: %v", driven.ErrKeyFormatInvalid, err)
	}
	return key, nil
}

// initialize creates and stores a wrapped vault key. If another caller stored
// one first, that record wins and is returned instead.
func (k *PassphraseKeyring) initialize(ctx context.Context) (string, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}
	vaultKey, err := GenerateKey()
	if err != nil {
		return "", fmt.Errorf("generating vault key: %w", err)
	}
	defer vaultKey.Wipe()

	kek := DeriveKEK(k.passphrase, salt, k.params)
	defer kek.Wipe()

	wrapped, err := EncryptBytes(vaultKey[:], kek)
	if err != nil {
		return "", fmt.Errorf("wrapping vault key: %w", err)
	}

	data, err := json.Marshal(wrappedVaultKey{Salt: salt, KDF: k.params, Wrapped: wrapped})
	if err != nil {
		return "", fmt.Errorf("encoding wrapped vault key: %w", err)
	}

	written, err := k.meta.PutIfAbsent(ctx, vaultKeyMetaKey, string(data))
	if err != nil {
		return "", fmt.Errorf("%w: store wrapped vault key: %v", driven.ErrKeySourceUnavailable, err)
	}
	if written {
		return string(data), nil
	}

	raw, ok, err := k.meta.Get(ctx, vaultKeyMetaKey)
	if err != nil || !ok {
		return "", fmt.Errorf("%w: reload wrapped vault key", driven.ErrKeySourceUnavailable)
	}
	return raw, nil
}

func wipe(b []byte) {
	memguard.WipeBytes(b)
}
