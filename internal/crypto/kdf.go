package crypto

import (
	"crypto/rand"

	"golang.org/x/crypto/argon2"

	"github.com/ericfisherdev/credvault/internal/domain/model"
)

const saltLen = 32

// KDFParams are the Argon2id cost parameters used to derive the key-encryption key.
type KDFParams struct {
	Time    uint32 `json:"time"`
	Memory  uint32 `json:"memory"` // KiB
	Threads uint8  `json:"threads"`
}

// DefaultKDFParams returns the production Argon2id parameters.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:    3,
		Memory:  64 * 1024, // 64 MB
		Threads: 1,         // sequential: deterministic performance across machines
	}
}

func (p KDFParams) valid() bool {
	return p.Time > 0 && p.Memory > 0 && p.Threads > 0
}

// DeriveKEK derives a 256-bit key-encryption key from a passphrase and salt.
func DeriveKEK(passphrase, salt []byte, params KDFParams) model.MasterKey {
	var kek model.MasterKey
	derived := argon2.IDKey(passphrase, salt, params.Time, params.Memory, params.Threads, model.MasterKeySize)
	copy(kek[:], derived)
	wipe(derived)
	return kek
}

// GenerateSalt returns 32 bytes of cryptographically secure random data.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// GenerateKey returns a fresh random MasterKey.
func GenerateKey() (model.MasterKey, error) {
	var k model.MasterKey
	if _, err := rand.Read(k[:]); err != nil {
		return k, err
	}
	return k, nil
}
