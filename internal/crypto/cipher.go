// Package crypto implements the vault's password blob format and the
// passphrase-protected vault key.
//
// A blob is laid out as
//
//	"v10" || nonce (12 bytes) || ciphertext || GCM tag (16 bytes)
//
// which is also the layout Chromium-based browsers use for their own saved
// passwords, so browser values and vault values decode the same way.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

// FormatTag marks a blob produced by AES-256-GCM with a 96-bit random nonce.
const FormatTag = "v10"

const (
	nonceLen = 12
	tagLen   = 16

	// MinBlobLen is the size of a blob holding an empty plaintext.
	MinBlobLen = len(FormatTag) + nonceLen + tagLen
)

var (
	// ErrMalformedBlob indicates a blob too short to hold the fixed fields or
	// carrying an unknown format tag.
	ErrMalformedBlob = errors.New("malformed encrypted blob")

	// ErrAuthenticationFailed indicates the GCM tag did not verify: wrong key,
	// modified ciphertext, or truncation.
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// Encrypt seals a plaintext password under key.
func Encrypt(plaintext string, key model.MasterKey) ([]byte, error) {
	return EncryptBytes([]byte(plaintext), key)
}

// Decrypt opens a blob produced by Encrypt.
func Decrypt(blob []byte, key model.MasterKey) (string, error) {
	plaintext, err := DecryptBytes(blob, key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptBytes seals plaintext under key with a fresh random nonce.
func EncryptBytes(plaintext []byte, key model.MasterKey) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, len(FormatTag)+nonceLen, MinBlobLen+len(plaintext))
	copy(blob, FormatTag)
	nonce := blob[len(FormatTag):]
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	// Seal appends ciphertext || tag after the tag and nonce.
	return aead.Seal(blob, nonce, plaintext, nil), nil
}

// DecryptBytes verifies and opens a blob. It never returns plaintext unless
// the authentication tag verifies.
func DecryptBytes(blob []byte, key model.MasterKey) ([]byte, error) {
	if len(blob) < MinBlobLen {
		return nil, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedBlob, len(blob), MinBlobLen)
	}
	if !HasFormatTag(blob) {
		return nil, fmt.Errorf("%w: unknown format tag %q", ErrMalformedBlob, blob[:len(FormatTag)])
	}

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := blob[len(FormatTag) : len(FormatTag)+nonceLen]
	sealed := blob[len(FormatTag)+nonceLen:]

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrAuthenticationFailed
	}
	if plaintext == nil {
		plaintext = []byte{}
	}
	return plaintext, nil
}

// HasFormatTag reports whether blob starts with FormatTag.
func HasFormatTag(blob []byte) bool {
	return bytes.HasPrefix(blob, []byte(FormatTag))
}

// Nonce returns the nonce field of a well-formed blob, or nil.
func Nonce(blob []byte) []byte {
	if len(blob) < MinBlobLen {
		return nil
	}
	return blob[len(FormatTag) : len(FormatTag)+nonceLen]
}

func newGCM(key model.MasterKey) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating GCM: %w", err)
	}
	return aead, nil
}
