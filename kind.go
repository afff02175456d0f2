// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package objfile

// Machine identifies the architecture an image was built for.
type Machine int

const (
	MachineOther Machine = iota
	MachineX86
	MachineX86_64
)

// SectionKind is a coarse, format-independent classification of a section.
type SectionKind int

const (
	SectionKindUnknown SectionKind = iota
	SectionKindText
	SectionKindData
	SectionKindUninitializedData
)

// SymbolKind classifies what a symbol refers to.
type SymbolKind int

const (
	SymbolKindUnknown SymbolKind = iota
	SymbolKindText
	SymbolKindData
	SymbolKindSection
	SymbolKindFile
)

// SectionIndex is the dense, 0-based position of a section in its table.
type SectionIndex int

// SymbolIndex is the dense, 0-based position of a symbol in the stream that
// produced it.
type SymbolIndex int
