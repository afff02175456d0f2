// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package objfile

// DataRange returns the subslice of data that backs [addr, addr+size), where
// data begins at virtual address base. It reports false unless the entire
// requested range lies within [base, base+len(data)).
func DataRange(data []byte, base, addr, size uint64) ([]byte, bool) {
	if addr < base {
		return nil, false
	}
	off := addr - base
	if off > uint64(len(data)) || size > uint64(len(data))-off {
		return nil, false
	}
	return data[off : off+size], true
}
