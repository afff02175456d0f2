// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package objfile

import (
	"bytes"
	"math"
	"testing"
	"testing/quick"

	"gotest.tools/assert"
)

func TestDataRange(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		addr, size uint64
		want       []byte
		ok         bool
	}{
		{0x1000, 8, data, true},
		{0x1002, 3, []byte{2, 3, 4}, true},
		{0x1008, 0, []byte{}, true},
		{0x1007, 2, nil, false},
		{0x0FFF, 1, nil, false},
		{0x1009, 0, nil, false},
		{0x1001, math.MaxUint64, nil, false},
		{math.MaxUint64, 1, nil, false},
	}
	for _, tc := range tests {
		got, ok := DataRange(data, 0x1000, tc.addr, tc.size)
		assert.Equal(t, ok, tc.ok, "addr 0x%X size 0x%X", tc.addr, tc.size)
		if tc.ok {
			assert.DeepEqual(t, got, tc.want)
		}
	}
}

func TestDataRangeProperty(t *testing.T) {
	f := func(data []byte, base uint32, off, size uint16) bool {
		addr := uint64(base) + uint64(off)
		got, ok := DataRange(data, uint64(base), addr, uint64(size))
		inside := int(off)+int(size) <= len(data)
		if ok != inside {
			return false
		}
		if !ok {
			return got == nil
		}
		return len(got) == int(size) && bytes.Equal(got, data[off:int(off)+int(size)])
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}
