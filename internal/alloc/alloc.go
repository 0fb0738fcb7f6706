// Package alloc provides an aligned-allocation abstraction for the engines'
// scratch buffers (bilateral grids, wavelet pyramid levels, heal coefficient
// arrays). Go's allocator does not guarantee alignment beyond the platform's
// natural word size, so callers that need vectorizable inner loops allocate
// through here instead of relying on ambient heap alignment.
package alloc

import (
	"fmt"
	"unsafe"
)

// DefaultAlignment matches the 64-byte cache-line alignment the design notes
// require for grid and pyramid buffers.
const DefaultAlignment = 64

// Float32s allocates a []float32 of length n whose backing array starts at
// an address aligned to alignment bytes. alignment must be a power of two.
// A nil slice plus a non-nil error is returned if the allocation cannot be
// satisfied (e.g. alignment is not a power of two, or n is negative);
// callers treat this the same as any other allocation failure (§7).
func Float32s(n, alignment int) ([]float32, error) {
	if n < 0 {
		return nil, fmt.Errorf("alloc: negative length %d", n)
	}
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("alloc: alignment %d is not a power of two", alignment)
	}
	// Over-allocate by alignment/4 elements (in float32 units) so that a
	// sub-slice can be aligned regardless of where the runtime placed the
	// backing array.
	pad := alignment / 4
	raw := make([]float32, n+pad)
	if pad == 0 {
		return raw[:n], nil
	}
	addr := uintptr(unsafe.Pointer(&raw[0]))
	misalignment := addr % uintptr(alignment)
	var shift int
	if misalignment != 0 {
		shift = int((uintptr(alignment) - misalignment) / 4)
	}
	return raw[shift : shift+n], nil
}

// Float64s is the float64 analogue of Float32s, used by the heal solver's
// coefficient arrays.
func Float64s(n, alignment int) ([]float64, error) {
	if n < 0 {
		return nil, fmt.Errorf("alloc: negative length %d", n)
	}
	if alignment <= 0 || alignment&(alignment-1) != 0 {
		return nil, fmt.Errorf("alloc: alignment %d is not a power of two", alignment)
	}
	pad := alignment / 8
	raw := make([]float64, n+pad)
	if pad == 0 {
		return raw[:n], nil
	}
	addr := uintptr(unsafe.Pointer(&raw[0]))
	misalignment := addr % uintptr(alignment)
	var shift int
	if misalignment != 0 {
		shift = int((uintptr(alignment) - misalignment) / 8)
	}
	return raw[shift : shift+n], nil
}
