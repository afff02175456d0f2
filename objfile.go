// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package objfile defines the format-independent view of an object file that
// the format packages (currently only pe) implement.
//
// Every view returned by an Object borrows from the Object's backing buffer.
// Views must not be used after the Object that produced them is closed.
package objfile

//go:generate go run golang.org/x/tools/cmd/stringer -type=Machine -trimprefix=Machine -output=machine_string.go
//go:generate go run golang.org/x/tools/cmd/stringer -type=SectionKind -trimprefix=SectionKind -output=sectionkind_string.go
//go:generate go run golang.org/x/tools/cmd/stringer -type=SymbolKind -trimprefix=SymbolKind -output=symbolkind_string.go

// Object is implemented by every supported object file format.
type Object interface {
	// Machine returns the architecture the image targets.
	Machine() Machine
	// Is64 reports whether the image uses 64-bit addresses.
	Is64() bool
	// IsLittleEndian reports the byte order of the image.
	IsLittleEndian() bool
	// Entry returns the address of the entry point, or 0.
	Entry() uint64
	// HasDebugSymbols reports whether the image carries debug information.
	HasDebugSymbols() bool

	// Segments iterates over the loadable segments in table order.
	Segments() SegmentIterator
	// Sections iterates over the sections in table order.
	Sections() SectionIterator
	// SectionByName returns the first section whose name is name.
	SectionByName(name string) (Section, bool)
	// SectionByIndex returns the section with index i.
	SectionByIndex(i SectionIndex) (Section, bool)

	// Symbols iterates over the static symbol table.
	Symbols() SymbolIterator
	// SymbolByIndex returns the static symbol with index i.
	SymbolByIndex(i SymbolIndex) (Symbol, bool)
	// DynamicSymbols iterates over the symbols used for dynamic linking.
	DynamicSymbols() SymbolIterator
	// SymbolMap returns the address-sorted symbols suitable for address lookup.
	SymbolMap() SymbolMap
}

// Segment is a loadable region of an image's virtual address space.
type Segment interface {
	// Address returns the virtual address of the segment.
	Address() uint64
	// Size returns the size of the segment in memory.
	Size() uint64
	// Align returns the alignment of the segment in memory.
	Align() uint64
	// Data returns the file-backed contents of the segment. The returned
	// slice aliases the image buffer.
	Data() []byte
	// DataRange returns the contents of [addr, addr+size), provided the
	// whole range is backed by Data.
	DataRange(addr, size uint64) ([]byte, bool)
	// Name returns the name of the segment, if it has a valid one.
	Name() (string, bool)
}

// Section is a named region of an object file.
type Section interface {
	Segment

	// Index returns the dense, 0-based index of the section.
	Index() SectionIndex
	// SegmentName returns the name of the segment containing this section,
	// for formats that have two-level naming.
	SegmentName() (string, bool)
	// Kind classifies the section contents.
	Kind() SectionKind
	// UncompressedData returns Data with any format compression removed.
	UncompressedData() []byte
	// Relocations iterates over the relocations that apply to the section.
	Relocations() RelocationIterator
}

// SegmentIterator yields segments until Next returns false.
type SegmentIterator interface {
	Next() (Segment, bool)
}

// SectionIterator yields sections until Next returns false.
type SectionIterator interface {
	Next() (Section, bool)
}

// SymbolIterator yields symbols, together with their index, until Next
// returns false.
type SymbolIterator interface {
	Next() (SymbolIndex, Symbol, bool)
}

// RelocationIterator yields the offset and value of each relocation until
// Next returns false.
type RelocationIterator interface {
	Next() (uint64, Relocation, bool)
}

// RelocationKind classifies how a relocation is applied.
type RelocationKind int

const (
	RelocationKindUnknown RelocationKind = iota
	RelocationKindAbsolute
	RelocationKindRelative
)

// Relocation describes a single fixup.
type Relocation struct {
	Kind           RelocationKind
	Size           uint8 // in bits
	Symbol         SymbolIndex
	Addend         int64
	ImplicitAddend bool
}

// NoRelocations is a RelocationIterator that yields nothing.
type NoRelocations struct{}

// Next implements RelocationIterator.
func (NoRelocations) Next() (uint64, Relocation, bool) {
	return 0, Relocation{}, false
}

// NoSymbols is a SymbolIterator that yields nothing.
type NoSymbols struct{}

// Next implements SymbolIterator.
func (NoSymbols) Next() (SymbolIndex, Symbol, bool) {
	return 0, Symbol{}, false
}
