// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"github.com/dblohm7/objfile"
)

// Segment is a section of a File viewed as a loadable region of its virtual
// address space.
type Segment struct {
	file    *File
	section *sectionHeader
}

var _ objfile.Segment = Segment{}

// SegmentIterator yields one Segment per section table entry.
type SegmentIterator struct {
	file *File
	i    int
}

func (it *SegmentIterator) Next() (objfile.Segment, bool) {
	if it.i >= len(it.file.hdr.sections) {
		return nil, false
	}
	s := Segment{file: it.file, section: &it.file.hdr.sections[it.i]}
	it.i++
	return s, true
}

func (s Segment) Address() uint64 {
	return uint64(s.section.VirtualAddress)
}

func (s Segment) Size() uint64 {
	return uint64(s.section.VirtualSize)
}

func (s Segment) Align() uint64 {
	return s.file.SectionAlignment()
}

// Data returns the file-backed bytes of the segment. Raw data is padded to the
// file alignment, so it is trimmed to the virtual size; a section may also
// have less raw data than virtual size, in which case only the raw data is
// returned.
func (s Segment) Data() []byte {
	return s.file.sectionData(s.section)
}

func (s Segment) DataRange(addr, size uint64) ([]byte, bool) {
	return objfile.DataRange(s.Data(), s.Address(), addr, size)
}

func (s Segment) Name() (string, bool) {
	return s.section.name, s.section.nameErr == nil
}

// sectionData returns the bytes backing s, or an empty slice when the section
// table points outside the image.
func (f *File) sectionData(s *sectionHeader) []byte {
	off := uint64(s.PointerToRawData)
	if f.layout == layoutMapped {
		off = uint64(s.VirtualAddress)
	}
	size := uint64(min(s.VirtualSize, s.SizeOfRawData))
	if off > uint64(len(f.data)) || size > uint64(len(f.data))-off {
		return f.data[:0:0]
	}
	return f.data[off : off+size : off+size]
}
