// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"
)

type unmapper mmap.MMap

func (m unmapper) Close() error {
	mm := mmap.MMap(m)
	return mm.Unmap()
}

// Open maps the PE binary located at filename into memory and parses it.
// Upon success it returns a non-nil *File, otherwise it returns a nil *File
// and a non-nil error.
// Call Close() on the returned *File when it is no longer needed.
func Open(filename string, opts ...Option) (*File, error) {
	fd, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	// The mapping outlives the descriptor.
	defer fd.Close()

	fi, err := fd.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return nil, errors.Wrapf(ErrParse, "%s is empty", filename)
	}

	m, err := mmap.Map(fd, mmap.RDONLY, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "mapping %s", filename)
	}

	f, err := Parse(m, opts...)
	if err != nil {
		m.Unmap()
		return nil, err
	}
	f.closer = unmapper(m)
	return f, nil
}
