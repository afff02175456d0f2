// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	dpe "debug/pe"

	"github.com/pkg/errors"
)

// Export is an entry of an image's export directory.
type Export struct {
	// Name is empty for exports that are only reachable by ordinal.
	Name    string
	Ordinal uint32
	RVA     uint32
	// Forward is the "DLL.Symbol" target of a forwarded export, otherwise empty.
	Forward string
}

type _IMAGE_EXPORT_DIRECTORY struct {
	Characteristics       uint32
	TimeDateStamp         uint32
	MajorVersion          uint16
	MinorVersion          uint16
	Name                  uint32
	Base                  uint32
	NumberOfFunctions     uint32
	NumberOfNames         uint32
	AddressOfFunctions    uint32
	AddressOfNames        uint32
	AddressOfNameOrdinals uint32
}

// maxExports bounds the tables we are willing to allocate for.
const maxExports = 0x10000

// loadExports decodes the export directory. Named exports come first, in
// name table order, followed by the remaining ordinal-only exports.
func loadExports(b []byte, h *headers, l layout) ([]Export, error) {
	dde, ok := h.dataDirectoryEntry(dpe.IMAGE_DIRECTORY_ENTRY_EXPORT)
	if !ok {
		return nil, nil
	}

	dirOff, ok := resolveRVA(h, l, dde.VirtualAddress)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidBinary, "export directory RVA 0x%X is not backed by a section", dde.VirtualAddress)
	}
	dir, err := readStruct[_IMAGE_EXPORT_DIRECTORY](b, dirOff)
	if err != nil {
		return nil, errors.Wrap(err, "reading export directory")
	}
	if dir.NumberOfFunctions > maxExports || dir.NumberOfNames > maxExports {
		return nil, errors.Wrapf(ErrInvalidBinary, "export directory claims %d functions and %d names", dir.NumberOfFunctions, dir.NumberOfNames)
	}

	functions, err := readRVAArray[uint32](b, h, l, dir.AddressOfFunctions, int(dir.NumberOfFunctions))
	if err != nil {
		return nil, errors.Wrap(err, "reading export address table")
	}
	names, err := readRVAArray[uint32](b, h, l, dir.AddressOfNames, int(dir.NumberOfNames))
	if err != nil {
		return nil, errors.Wrap(err, "reading export name table")
	}
	nameOrdinals, err := readRVAArray[uint16](b, h, l, dir.AddressOfNameOrdinals, int(dir.NumberOfNames))
	if err != nil {
		return nil, errors.Wrap(err, "reading export ordinal table")
	}

	isForwarder := func(rva uint32) bool {
		return rva >= dde.VirtualAddress && uint64(rva) < uint64(dde.VirtualAddress)+uint64(dde.Size)
	}
	newExport := func(idx uint32, name string) (Export, error) {
		rva := functions[idx]
		exp := Export{Name: name, Ordinal: dir.Base + idx, RVA: rva}
		if isForwarder(rva) {
			fwd, err := readStringAtRVA(b, h, l, rva)
			if err != nil {
				return Export{}, errors.Wrapf(err, "reading forwarder of export %q", name)
			}
			exp.Forward = fwd
		}
		return exp, nil
	}

	exports := make([]Export, 0, len(functions))
	named := make([]bool, len(functions))
	for i, nameRVA := range names {
		idx := uint32(nameOrdinals[i])
		if idx >= uint32(len(functions)) {
			return nil, errors.Wrapf(ErrInvalidBinary, "export name %d refers to function %d of %d", i, idx, len(functions))
		}
		name, err := readStringAtRVA(b, h, l, nameRVA)
		if err != nil {
			return nil, errors.Wrapf(err, "reading name of export %d", i)
		}
		exp, err := newExport(idx, name)
		if err != nil {
			return nil, err
		}
		exports = append(exports, exp)
		named[idx] = true
	}

	for idx, rva := range functions {
		if named[idx] || rva == 0 {
			continue
		}
		exp, err := newExport(uint32(idx), "")
		if err != nil {
			return nil, err
		}
		exports = append(exports, exp)
	}

	return exports, nil
}

func readRVAArray[T uint16 | uint32 | uint64](b []byte, h *headers, l layout, rva uint32, count int) ([]T, error) {
	if count == 0 {
		return nil, nil
	}
	off, ok := resolveRVA(h, l, rva)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidBinary, "RVA 0x%X is not backed by a section", rva)
	}
	return readStructArray[T](b, off, count)
}

func readStringAtRVA(b []byte, h *headers, l layout, rva uint32) (string, error) {
	off, ok := resolveRVA(h, l, rva)
	if !ok {
		return "", errors.Wrapf(ErrInvalidBinary, "RVA 0x%X is not backed by a section", rva)
	}
	s, err := cstring(b, off)
	if err != nil {
		return "", err
	}
	return string(s), nil
}
