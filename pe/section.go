// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"github.com/dblohm7/objfile"
)

// Section is a section table entry of a File.
type Section struct {
	Segment
	index objfile.SectionIndex
}

var _ objfile.Section = Section{}

// SectionIterator yields one Section per section table entry, indexed by its
// position in the table.
type SectionIterator struct {
	file *File
	i    int
}

func (it *SectionIterator) Next() (objfile.Section, bool) {
	return it.next()
}

func (it *SectionIterator) next() (Section, bool) {
	if it.i >= len(it.file.hdr.sections) {
		return Section{}, false
	}
	s := Section{
		Segment: Segment{file: it.file, section: &it.file.hdr.sections[it.i]},
		index:   objfile.SectionIndex(it.i),
	}
	it.i++
	return s, true
}

func (s Section) Index() objfile.SectionIndex {
	return s.index
}

// SegmentName always reports false; PE has no segment/section naming.
func (s Section) SegmentName() (string, bool) {
	return "", false
}

func (s Section) Kind() objfile.SectionKind {
	return sectionKind(s.section.Characteristics)
}

// UncompressedData returns Data. PE sections are never compressed.
func (s Section) UncompressedData() []byte {
	return s.Data()
}

// Relocations returns an empty iterator. Base relocations are not decoded.
func (s Section) Relocations() objfile.RelocationIterator {
	return objfile.NoRelocations{}
}

func sectionKind(characteristics uint32) objfile.SectionKind {
	switch {
	case characteristics&(IMAGE_SCN_CNT_CODE|IMAGE_SCN_MEM_EXECUTE) != 0:
		return objfile.SectionKindText
	case characteristics&IMAGE_SCN_CNT_INITIALIZED_DATA != 0:
		return objfile.SectionKindData
	case characteristics&IMAGE_SCN_CNT_UNINITIALIZED_DATA != 0:
		return objfile.SectionKindUninitializedData
	default:
		return objfile.SectionKindUnknown
	}
}
