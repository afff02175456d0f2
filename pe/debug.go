// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"bufio"
	"bytes"
	dpe "debug/pe"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// GUID has the same layout as the Windows GUID structure.
type GUID struct {
	Data1 uint32
	Data2 uint16
	Data3 uint16
	Data4 [8]byte
}

// String returns g in registry format, e.g. {01234567-89AB-CDEF-0123-456789ABCDEF}.
func (g GUID) String() string {
	return fmt.Sprintf("{%08X-%04X-%04X-%02X%02X-%02X%02X%02X%02X%02X%02X}",
		g.Data1, g.Data2, g.Data3,
		g.Data4[0], g.Data4[1], g.Data4[2], g.Data4[3],
		g.Data4[4], g.Data4[5], g.Data4[6], g.Data4[7])
}

// DebugDirectory describes debug information embedded in the binary.
type DebugDirectory struct {
	Characteristics  uint32
	TimeDateStamp    uint32
	MajorVersion     uint16
	MinorVersion     uint16
	Type             uint32 // an IMAGE_DEBUG_TYPE constant
	SizeOfData       uint32
	AddressOfRawData uint32
	PointerToRawData uint32
}

// IMAGE_DEBUG_TYPE_CODEVIEW identifies the current DebugDirectory as
// pointing to CodeView debug information.
const IMAGE_DEBUG_TYPE_CODEVIEW = 2

// codeViewRSDS is the signature of a PDB 7.0 CodeView record.
const codeViewRSDS = 0x53445352

// CodeViewInfo identifies the PDB file that holds an image's debug symbols.
type CodeViewInfo struct {
	GUID    GUID
	Age     uint32
	PDBPath string
}

// String returns the data from cv formatted in the same way that Microsoft
// debugging tools and symbol servers use to identify PDB files corresponding
// to a specific binary.
func (cv *CodeViewInfo) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%08X%04X%04X", cv.GUID.Data1, cv.GUID.Data2, cv.GUID.Data3)
	for _, v := range cv.GUID.Data4 {
		fmt.Fprintf(&b, "%02X", v)
	}
	fmt.Fprintf(&b, "%X", cv.Age)
	return b.String()
}

func (cv *CodeViewInfo) unpack(r *bufio.Reader) error {
	var signature uint32
	if err := binary.Read(r, binary.LittleEndian, &signature); err != nil {
		return err
	}
	if signature != codeViewRSDS {
		return errors.Wrapf(ErrNotCodeView, "signature 0x%08X", signature)
	}
	if err := binary.Read(r, binary.LittleEndian, &cv.GUID); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &cv.Age); err != nil {
		return err
	}

	var pdbBytes []byte
	for b, err := r.ReadByte(); err == nil && b != 0; b, err = r.ReadByte() {
		pdbBytes = append(pdbBytes, b)
	}

	cv.PDBPath = string(pdbBytes)
	return nil
}

// DebugDirectory returns the entries of the image's debug directory. It
// returns ErrNotPresent when the image has none.
func (f *File) DebugDirectory() ([]DebugDirectory, error) {
	dde, ok := f.hdr.dataDirectoryEntry(dpe.IMAGE_DIRECTORY_ENTRY_DEBUG)
	if !ok {
		return nil, ErrNotPresent
	}
	off, ok := resolveRVA(f.hdr, f.layout, dde.VirtualAddress)
	if !ok {
		return nil, errors.Wrapf(ErrInvalidBinary, "debug directory RVA 0x%X is not backed by a section", dde.VirtualAddress)
	}
	count := dde.Size / uint32(binary.Size(DebugDirectory{}))
	return readStructArray[DebugDirectory](f.data, off, int(count))
}

// CodeView returns the PDB reference from the image's first CodeView debug
// directory entry. It returns ErrNotPresent when there is none.
func (f *File) CodeView() (*CodeViewInfo, error) {
	dirs, err := f.DebugDirectory()
	if err != nil {
		return nil, err
	}
	for _, de := range dirs {
		if de.Type == IMAGE_DEBUG_TYPE_CODEVIEW {
			return f.ExtractCodeViewInfo(de)
		}
	}
	return nil, ErrNotPresent
}

// ExtractCodeViewInfo obtains CodeView debug information from de, assuming that
// de represents CodeView debug info.
func (f *File) ExtractCodeViewInfo(de DebugDirectory) (*CodeViewInfo, error) {
	if de.Type != IMAGE_DEBUG_TYPE_CODEVIEW {
		return nil, ErrNotCodeView
	}

	off := uint64(de.PointerToRawData)
	if f.layout == layoutMapped {
		off = uint64(de.AddressOfRawData)
	}
	if off > uint64(len(f.data)) || uint64(de.SizeOfData) > uint64(len(f.data))-off {
		return nil, errors.Wrapf(ErrInvalidBinary, "CodeView record at 0x%X overruns image", off)
	}

	cv := new(CodeViewInfo)
	r := bytes.NewReader(f.data[off : off+uint64(de.SizeOfData)])
	if err := cv.unpack(bufio.NewReader(r)); err != nil {
		return nil, err
	}

	return cv, nil
}
