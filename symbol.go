// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package objfile

import (
	"golang.org/x/exp/slices"
)

// Symbol is a format-independent symbol table entry.
type Symbol struct {
	Kind SymbolKind
	// SectionIndex is only meaningful when HasSectionIndex is true.
	SectionIndex    SectionIndex
	HasSectionIndex bool
	Undefined       bool
	Global          bool
	// Name is empty when the symbol has no name in the image.
	Name    string
	Address uint64
	Size    uint64
}

// SymbolMap holds symbols sorted by ascending address.
type SymbolMap struct {
	Symbols []Symbol
}

// SymbolMapFilter reports whether sym belongs in a SymbolMap: it must be
// named, defined, and have a nonzero address.
func SymbolMapFilter(sym Symbol) bool {
	return sym.Name != "" && sym.Address != 0 && !sym.Undefined
}

// NewSymbolMap drains it, keeps the symbols accepted by SymbolMapFilter and
// sorts them by address. Symbols with equal addresses keep their input order.
func NewSymbolMap(it SymbolIterator) SymbolMap {
	var syms []Symbol
	for _, sym, ok := it.Next(); ok; _, sym, ok = it.Next() {
		if SymbolMapFilter(sym) {
			syms = append(syms, sym)
		}
	}
	slices.SortStableFunc(syms, func(a, b Symbol) bool {
		return a.Address < b.Address
	})
	return SymbolMap{Symbols: syms}
}

// Lookup returns the symbol with the greatest address that is <= addr.
func (m SymbolMap) Lookup(addr uint64) (Symbol, bool) {
	// Find the first symbol above addr, then step back one.
	i, _ := slices.BinarySearchFunc(m.Symbols, Symbol{Address: addr}, func(s, t Symbol) int {
		if s.Address <= t.Address {
			return -1
		}
		return 1
	})
	if i == 0 {
		return Symbol{}, false
	}
	return m.Symbols[i-1], true
}
