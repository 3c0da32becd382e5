//go:build windows

package browser

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/ericfisherdev/credvault/internal/domain/port/driven"
)

// DPAPIUnwrapper unwraps blobs protected by CryptProtectData for the current user.
type DPAPIUnwrapper struct{}

// NewDPAPIUnwrapper returns the Windows data-protection unwrapper.
func NewDPAPIUnwrapper() *DPAPIUnwrapper {
	return &DPAPIUnwrapper{}
}

// Unwrap calls CryptUnprotectData and copies the result out of the
// LocalAlloc'd buffer before freeing it.
func (DPAPIUnwrapper) Unwrap(wrapped []byte) ([]byte, error) {
	if len(wrapped) == 0 {
		return nil, fmt.Errorf("%w: empty blob", driven.ErrKeyUnwrapFailed)
	}

	in := windows.DataBlob{Size: uint32(len(wrapped)), Data: &wrapped[0]}
	var out windows.DataBlob

	if err := windows.CryptUnprotectData(&in, nil, nil, 0, nil, windows.CRYPTPROTECT_UI_FORBIDDEN, &out); err != nil {
		return nil, fmt.Errorf("%w: CryptUnprotectData: %v", driven.ErrKeyUnwrapFailed, err)
	}
	defer windows.LocalFree(windows.Handle(unsafe.Pointer(out.Data))) //nolint:errcheck // nothing to do on failure

	plain := make([]byte, out.Size)
	copy(plain, unsafe.Slice(out.Data, out.Size))
	return plain, nil
}
