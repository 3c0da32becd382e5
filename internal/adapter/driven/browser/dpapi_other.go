//go:build !windows

package browser

import (
	"fmt"
	"runtime"

	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// DPAPIUnwrapper is unavailable outside Windows; every call reports the key
// source as unavailable.
type DPAPIUnwrapper struct{}

// NewDPAPIUnwrapper returns an unwrapper that always fails on this platform.
func NewDPAPIUnwrapper() *DPAPIUnwrapper {
	return &DPAPIUnwrapper{}
}

// Unwrap always fails with driven.ErrKeySourceUnavailable.
func (DPAPIUnwrapper) Unwrap(_ []byte) ([]byte, error) {
	return nil, fmt.Errorf("%w: DPAPI is not supported on %s", driven.ErrKeySourceUnavailable, runtime.GOOS)
}
