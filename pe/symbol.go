// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"github.com/dblohm7/objfile"
)

// SymbolIterator yields the exports of a File and then its imports, with
// indices counting up from 0 across both.
type SymbolIterator struct {
	index   objfile.SymbolIndex
	exports []Export
	imports []Import
}

func (it *SymbolIterator) Next() (objfile.SymbolIndex, objfile.Symbol, bool) {
	var sym objfile.Symbol
	switch {
	case len(it.exports) > 0:
		exp := &it.exports[0]
		it.exports = it.exports[1:]
		sym = objfile.Symbol{
			Kind:    objfile.SymbolKindUnknown,
			Global:  true,
			Name:    exp.Name,
			Address: uint64(exp.RVA),
		}
	case len(it.imports) > 0:
		imp := &it.imports[0]
		it.imports = it.imports[1:]
		sym = objfile.Symbol{
			Kind:      objfile.SymbolKindUnknown,
			Undefined: true,
			Global:    true,
		}
		// Ordinal imports have no name in the image.
		if !imp.ByOrdinal {
			sym.Name = imp.Name
		}
	default:
		return 0, objfile.Symbol{}, false
	}

	index := it.index
	it.index++
	return index, sym, true
}
