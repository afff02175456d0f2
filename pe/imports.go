// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	dpe "debug/pe"
	"encoding/binary"

	"github.com/pkg/errors"
)

// Import is a single symbol an image imports from another module.
type Import struct {
	// DLL is the name of the module the symbol is imported from.
	DLL string
	// Name is the imported symbol name. It is empty when ByOrdinal is set,
	// since such imports have no name in the image.
	Name      string
	Hint      uint16
	Ordinal   uint16
	ByOrdinal bool
	// ThunkRVA is the RVA of the import address table slot the loader fills in.
	ThunkRVA uint32
}

type _IMAGE_IMPORT_DESCRIPTOR struct {
	OriginalFirstThunk uint32
	TimeDateStamp      uint32
	ForwarderChain     uint32
	Name               uint32
	FirstThunk         uint32
}

const (
	maxImportDescriptors = 0x1000
	maxImportThunks      = 0x10000

	ordinalFlag32 = 0x80000000
	ordinalFlag64 = 0x8000000000000000
)

// loadImports decodes the import directory, in descriptor order and then
// thunk order.
func loadImports(b []byte, h *headers, l layout) ([]Import, error) {
	dde, ok := h.dataDirectoryEntry(dpe.IMAGE_DIRECTORY_ENTRY_IMPORT)
	if !ok {
		return nil, nil
	}

	off, ok := resolveRVA(h, l, dde.VirtualAddress)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidBinary, "import directory RVA 0x%X is not backed by a section", dde.VirtualAddress)
	}

	is64 := h.optionalHeader != nil && h.optionalHeader.is64()
	var imports []Import
	descSize := int64(binary.Size(_IMAGE_IMPORT_DESCRIPTOR{}))
	for i := 0; ; i++ {
		if i >= maxImportDescriptors {
			return nil, errors.Wrap(ErrInvalidBinary, "import directory is not terminated")
		}
		desc, err := readStruct[_IMAGE_IMPORT_DESCRIPTOR](b, off+int64(i)*descSize)
		if err != nil {
			return nil, errors.Wrapf(err, "reading import descriptor %d", i)
		}
		if *desc == (_IMAGE_IMPORT_DESCRIPTOR{}) {
			break
		}

		dll, err := readStringAtRVA(b, h, l, desc.Name)
		if err != nil {
			return nil, errors.Wrapf(err, "reading name of import descriptor %d", i)
		}

		lookup := desc.OriginalFirstThunk
		if lookup == 0 {
			lookup = desc.FirstThunk
		}
		if is64 {
			imports, err = appendThunks[uint64](imports, b, h, l, dll, lookup, desc.FirstThunk, ordinalFlag64)
		} else {
			imports, err = appendThunks[uint32](imports, b, h, l, dll, lookup, desc.FirstThunk, ordinalFlag32)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "reading imports from %q", dll)
		}
	}

	return imports, nil
}

func appendThunks[T uint32 | uint64](imports []Import, b []byte, h *headers, l layout, dll string, lookup, iat uint32, ordinalFlag T) ([]Import, error) {
	off, ok := resolveRVA(h, l, lookup)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidBinary, "import lookup table RVA 0x%X is not backed by a section", lookup)
	}

	var zero T
	thunkSize := uint32(binary.Size(zero))
	for i := uint32(0); ; i++ {
		if i >= maxImportThunks {
			return nil, errors.Wrap(ErrInvalidBinary, "import lookup table is not terminated")
		}
		thunk, err := readStruct[T](b, off+int64(i*thunkSize))
		if err != nil {
			return nil, err
		}
		if *thunk == 0 {
			return imports, nil
		}

		imp := Import{DLL: dll, ThunkRVA: iat + i*thunkSize}
		if *thunk&ordinalFlag != 0 {
			imp.ByOrdinal = true
			imp.Ordinal = uint16(*thunk)
		} else {
			hintOff, ok := resolveRVA(h, l, uint32(*thunk))
			if !ok {
				return nil, errors.Wrapf(ErrInvalidBinary, "import name RVA 0x%X is not backed by a section", uint32(*thunk))
			}
			hint, err := readStruct[uint16](b, hintOff)
			if err != nil {
				return nil, err
			}
			name, err := cstring(b, hintOff+2)
			if err != nil {
				return nil, err
			}
			imp.Hint = *hint
			imp.Name = string(name)
		}
		imports = append(imports, imp)
	}
}
