package model

import (
	"fmt"

	"github.com/awnumar/memguard"
)

// MasterKeySize is the length in bytes of an AES-256 key.
const MasterKeySize = 32

// MasterKey is a 256-bit symmetric key. It is an array so that passing it
// around copies the bytes rather than sharing a backing slice.
type MasterKey [MasterKeySize]byte

// MasterKeyFromBytes copies b into a MasterKey. b must be exactly MasterKeySize bytes.
func MasterKeyFromBytes(b []byte) (MasterKey, error) {
	var k MasterKey
	if len(b) != MasterKeySize {
		return k, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(b))
	}
	copy(k[:], b)
	return k, nil
}

// Wipe zeroes the key in place.
func (k *MasterKey) Wipe() {
	memguard.WipeBytes(k[:])
}
