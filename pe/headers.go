// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"bytes"
	dpe "debug/pe"
	"encoding/binary"
	"strconv"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/exp/constraints"
)

const (
	offsetIMAGE_DOS_HEADERe_lfanew = 60
	sizeIMAGE_DOS_HEADER           = 64
	sizeCOFFSymbol                 = 18
	maxNumSections                 = 96 // per PE spec

	optionalHeader32Magic = 0x010B
	optionalHeader64Magic = 0x020B
)

// layout says how an image buffer is arranged: as it is stored on disk, or as
// the OS loader mapped it into memory.
type layout int

const (
	layoutFile layout = iota
	layoutMapped
)

// headers is the raw structure decoded from an image buffer.
type headers struct {
	fileHeader     dpe.FileHeader
	optionalHeader optionalHeader // nil when SizeOfOptionalHeader is 0
	sections       []sectionHeader
	stringTable    []byte
}

type optionalHeader interface {
	is64() bool
	entry() uint32
	sectionAlignment() uint32
	imageBase() uint64
	dataDirectory() []dpe.DataDirectory
}

type optionalHeader32 dpe.OptionalHeader32

func (oh *optionalHeader32) is64() bool               { return false }
func (oh *optionalHeader32) entry() uint32            { return oh.AddressOfEntryPoint }
func (oh *optionalHeader32) sectionAlignment() uint32 { return oh.SectionAlignment }
func (oh *optionalHeader32) imageBase() uint64        { return uint64(oh.ImageBase) }
func (oh *optionalHeader32) dataDirectory() []dpe.DataDirectory {
	return clampDataDirectory(oh.DataDirectory[:], oh.NumberOfRvaAndSizes)
}

type optionalHeader64 dpe.OptionalHeader64

func (oh *optionalHeader64) is64() bool               { return true }
func (oh *optionalHeader64) entry() uint32            { return oh.AddressOfEntryPoint }
func (oh *optionalHeader64) sectionAlignment() uint32 { return oh.SectionAlignment }
func (oh *optionalHeader64) imageBase() uint64        { return oh.ImageBase }
func (oh *optionalHeader64) dataDirectory() []dpe.DataDirectory {
	return clampDataDirectory(oh.DataDirectory[:], oh.NumberOfRvaAndSizes)
}

func clampDataDirectory(dd []dpe.DataDirectory, cnt uint32) []dpe.DataDirectory {
	if maxCnt := uint32(len(dd)); cnt > maxCnt {
		cnt = maxCnt
	}
	return dd[:cnt]
}

// sectionHeader is a section table entry together with its decoded name.
type sectionHeader struct {
	dpe.SectionHeader32
	name    string
	nameErr error
}

var errBadSectionName = errors.New("section name is not valid UTF-8")

// decodeName returns the section's name. Names of the form "/123" refer to
// offset 123 of the COFF string table, when the image has one.
func (s *sectionHeader) decodeName(stringTable []byte) (string, error) {
	raw := s.Name[:]
	if i := bytes.IndexByte(raw, 0); i >= 0 {
		raw = raw[:i]
	}
	if len(raw) > 1 && raw[0] == '/' && stringTable != nil {
		if off, err := strconv.ParseUint(string(raw[1:]), 10, 32); err == nil {
			if long, err := cstring(stringTable, off); err == nil {
				raw = long
			}
		}
	}
	if !utf8.Valid(raw) {
		return "", errBadSectionName
	}
	return string(raw), nil
}

func readStruct[T any, O constraints.Integer](b []byte, off O) (*T, error) {
	t := new(T)
	if err := readInto(b, off, t); err != nil {
		return nil, err
	}
	return t, nil
}

func readStructArray[T any, O constraints.Integer](b []byte, off O, count int) ([]T, error) {
	result := make([]T, count)
	if err := readInto(b, off, result); err != nil {
		return nil, err
	}
	return result, nil
}

func readInto[O constraints.Integer](b []byte, off O, v any) error {
	if off < 0 || uint64(off) > uint64(len(b)) {
		return errors.Wrapf(ErrInvalidBinary, "offset 0x%X beyond end of image", uint64(off))
	}
	start := uint64(off)
	sz := binary.Size(v)
	if sz < 0 || uint64(sz) > uint64(len(b))-start {
		return errors.Wrapf(ErrInvalidBinary, "%d bytes at 0x%X run past end of image", sz, start)
	}
	return binary.Read(bytes.NewReader(b[start:]), binary.LittleEndian, v)
}

// cstring returns the NUL-terminated byte string starting at off.
func cstring[O constraints.Integer](b []byte, off O) ([]byte, error) {
	if off < 0 || uint64(off) >= uint64(len(b)) {
		return nil, errors.Wrapf(ErrInvalidBinary, "string at 0x%X beyond end of image", uint64(off))
	}
	s := b[uint64(off):]
	n := bytes.IndexByte(s, 0)
	if n < 0 {
		return nil, errors.Wrapf(ErrInvalidBinary, "unterminated string at 0x%X", uint64(off))
	}
	return s[:n], nil
}

func loadHeaders(b []byte) (*headers, error) {
	// Do some initial verification first
	if len(b) < sizeIMAGE_DOS_HEADER {
		return nil, errors.Wrap(ErrInvalidBinary, "too small for a DOS header")
	}
	if b[0] != 'M' || b[1] != 'Z' {
		return nil, errors.Wrap(ErrInvalidBinary, "missing MZ signature")
	}

	e_lfanew := int32(binary.LittleEndian.Uint32(b[offsetIMAGE_DOS_HEADERe_lfanew:]))
	if e_lfanew <= 0 || int64(e_lfanew) > int64(len(b))-4 {
		return nil, errors.Wrapf(ErrInvalidBinary, "bad e_lfanew 0x%X", e_lfanew)
	}

	peMagic := b[e_lfanew : e_lfanew+4]
	if peMagic[0] != 'P' || peMagic[1] != 'E' || peMagic[2] != 0 || peMagic[3] != 0 {
		return nil, errors.Wrap(ErrInvalidBinary, "missing PE signature")
	}

	h := new(headers)
	fileHeaderOffset := int64(e_lfanew) + 4
	if err := readInto(b, fileHeaderOffset, &h.fileHeader); err != nil {
		return nil, errors.Wrap(err, "reading file header")
	}

	optionalHeaderOffset := fileHeaderOffset + int64(binary.Size(h.fileHeader))
	if h.fileHeader.SizeOfOptionalHeader > 0 {
		oh, err := loadOptionalHeader(b, optionalHeaderOffset, int64(h.fileHeader.SizeOfOptionalHeader))
		if err != nil {
			return nil, err
		}
		h.optionalHeader = oh
	}

	numSections := int(h.fileHeader.NumberOfSections)
	if numSections > maxNumSections {
		numSections = maxNumSections
	}

	sectionTableOffset := optionalHeaderOffset + int64(h.fileHeader.SizeOfOptionalHeader)
	rawSections, err := readStructArray[dpe.SectionHeader32](b, sectionTableOffset, numSections)
	if err != nil {
		return nil, errors.Wrap(err, "reading section table")
	}

	h.stringTable = loadStringTable(b, &h.fileHeader)
	h.sections = make([]sectionHeader, len(rawSections))
	for i, rs := range rawSections {
		s := &h.sections[i]
		s.SectionHeader32 = rs
		s.name, s.nameErr = s.decodeName(h.stringTable)
	}

	return h, nil
}

func loadOptionalHeader(b []byte, off, size int64) (optionalHeader, error) {
	if size < 2 || off+size > int64(len(b)) {
		return nil, errors.Wrapf(ErrInvalidBinary, "optional header of %d bytes at 0x%X does not fit", size, off)
	}

	// Headers shorter than the full structure are zero-padded, so that missing
	// trailing data directories read as absent.
	var oh optionalHeader
	magic := binary.LittleEndian.Uint16(b[off:])
	switch magic {
	case optionalHeader32Magic:
		oh = new(optionalHeader32)
	case optionalHeader64Magic:
		oh = new(optionalHeader64)
	default:
		return nil, errors.Wrapf(ErrInvalidBinary, "unknown optional header magic 0x%04X", magic)
	}

	buf := make([]byte, binary.Size(oh))
	copy(buf, b[off:off+size])
	if err := binary.Read(bytes.NewReader(buf), binary.LittleEndian, oh); err != nil {
		return nil, errors.Wrap(err, "reading optional header")
	}
	return oh, nil
}

// loadStringTable returns the COFF string table, or nil when the image has
// none. The table begins with its own 4-byte length.
func loadStringTable(b []byte, fh *dpe.FileHeader) []byte {
	if fh.PointerToSymbolTable == 0 {
		return nil
	}
	off := uint64(fh.PointerToSymbolTable) + uint64(fh.NumberOfSymbols)*sizeCOFFSymbol
	if off+4 > uint64(len(b)) {
		return nil
	}
	size := uint64(binary.LittleEndian.Uint32(b[off:]))
	if size < 4 || size > uint64(len(b))-off {
		return nil
	}
	return b[off : off+size]
}

// resolveRVA maps rva to an offset into the image buffer. It reports false
// when no section backs rva.
func resolveRVA[O constraints.Integer](h *headers, l layout, rva O) (int64, bool) {
	if l == layoutMapped {
		return int64(rva), true
	}

	urva := uint32(rva)
	for _, s := range h.sections {
		if urva < s.VirtualAddress {
			continue
		}
		vsize := s.VirtualSize
		if vsize == 0 {
			vsize = s.SizeOfRawData
		}
		if uint64(urva) >= uint64(s.VirtualAddress)+uint64(vsize) {
			continue
		}
		voff := urva - s.VirtualAddress
		if voff >= s.SizeOfRawData {
			return 0, false
		}
		return int64(s.PointerToRawData) + int64(voff), true
	}

	return 0, false
}

func (h *headers) dataDirectory() []dpe.DataDirectory {
	if h.optionalHeader == nil {
		return nil
	}
	return h.optionalHeader.dataDirectory()
}

// dataDirectoryEntry returns the entry at idx, or false if the image does not
// have one.
func (h *headers) dataDirectoryEntry(idx int) (dpe.DataDirectory, bool) {
	dd := h.dataDirectory()
	if idx >= len(dd) {
		return dpe.DataDirectory{}, false
	}
	dde := dd[idx]
	if dde.VirtualAddress == 0 || dde.Size == 0 {
		return dpe.DataDirectory{}, false
	}
	return dde, true
}
