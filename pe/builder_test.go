// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"bytes"
	dpe "debug/pe"
	"encoding/binary"
	"strconv"
)

const (
	testLfanew        = 0x40
	testFileAlignment = 0x200
)

// testSection describes one section of a synthetic image.
type testSection struct {
	name    string // names longer than 8 bytes go to the COFF string table
	rawName *[8]byte
	va      uint32
	vsize   uint32
	// rawSize defaults to len(data) rounded up to the file alignment.
	rawSize uint32
	// rawPtr defaults to the next free file-aligned offset.
	rawPtr          uint32
	characteristics uint32
	data            []byte
}

// testImage describes a synthetic PE image.
type testImage struct {
	machine          uint16
	pe32             bool
	noOptionalHeader bool
	entry            uint32
	sectionAlignment uint32
	dataDirs         map[int]dpe.DataDirectory
	sections         []testSection
}

func alignUp(v, a uint32) uint32 {
	return (v + a - 1) &^ (a - 1)
}

func mustWrite(b *bytes.Buffer, v any) {
	if err := binary.Write(b, binary.LittleEndian, v); err != nil {
		panic(err)
	}
}

// build lays out the image as a linker would: DOS header, PE signature, file
// header, optional header, section table, then file-aligned raw data and
// finally the COFF string table, if any section needs one.
func (ti *testImage) build() []byte {
	machine := ti.machine
	if machine == 0 {
		machine = dpe.IMAGE_FILE_MACHINE_AMD64
	}
	sectionAlignment := ti.sectionAlignment
	if sectionAlignment == 0 {
		sectionAlignment = 0x1000
	}

	var dd [16]dpe.DataDirectory
	for idx, dde := range ti.dataDirs {
		dd[idx] = dde
	}

	var oh any
	switch {
	case ti.noOptionalHeader:
	case ti.pe32:
		oh = &dpe.OptionalHeader32{
			Magic:               optionalHeader32Magic,
			AddressOfEntryPoint: ti.entry,
			ImageBase:           0x400000,
			SectionAlignment:    sectionAlignment,
			FileAlignment:       testFileAlignment,
			SizeOfHeaders:       0x400,
			NumberOfRvaAndSizes: 16,
			DataDirectory:       dd,
		}
	default:
		oh = &dpe.OptionalHeader64{
			Magic:               optionalHeader64Magic,
			AddressOfEntryPoint: ti.entry,
			ImageBase:           0x140000000,
			SectionAlignment:    sectionAlignment,
			FileAlignment:       testFileAlignment,
			SizeOfHeaders:       0x400,
			NumberOfRvaAndSizes: 16,
			DataDirectory:       dd,
		}
	}
	ohSize := 0
	if oh != nil {
		ohSize = binary.Size(oh)
	}

	headersEnd := uint32(testLfanew + 4 + binary.Size(dpe.FileHeader{}) + ohSize + len(ti.sections)*binary.Size(dpe.SectionHeader32{}))
	cursor := alignUp(headersEnd, testFileAlignment)

	var strtab []byte
	headers := make([]dpe.SectionHeader32, len(ti.sections))
	for i, s := range ti.sections {
		sh := &headers[i]
		switch {
		case s.rawName != nil:
			sh.Name = *s.rawName
		case len(s.name) > 8:
			ref := "/" + strconv.Itoa(len(strtab)+4)
			copy(sh.Name[:], ref)
			strtab = append(strtab, s.name...)
			strtab = append(strtab, 0)
		default:
			copy(sh.Name[:], s.name)
		}
		sh.VirtualAddress = s.va
		sh.VirtualSize = s.vsize
		sh.Characteristics = s.characteristics

		rawSize := s.rawSize
		if rawSize == 0 {
			rawSize = alignUp(uint32(len(s.data)), testFileAlignment)
		}
		sh.SizeOfRawData = rawSize
		if rawSize > 0 {
			ptr := s.rawPtr
			if ptr == 0 {
				ptr = cursor
			}
			sh.PointerToRawData = ptr
			if end := alignUp(ptr+rawSize, testFileAlignment); end > cursor {
				cursor = end
			}
		}
	}

	fh := dpe.FileHeader{
		Machine:              machine,
		NumberOfSections:     uint16(len(ti.sections)),
		SizeOfOptionalHeader: uint16(ohSize),
	}
	total := cursor
	if strtab != nil {
		fh.PointerToSymbolTable = cursor
		total += 4 + uint32(len(strtab))
	}

	var hdr bytes.Buffer
	dos := make([]byte, testLfanew)
	dos[0], dos[1] = 'M', 'Z'
	binary.LittleEndian.PutUint32(dos[offsetIMAGE_DOS_HEADERe_lfanew:], testLfanew)
	hdr.Write(dos)
	hdr.WriteString("PE\x00\x00")
	mustWrite(&hdr, &fh)
	if oh != nil {
		mustWrite(&hdr, oh)
	}
	mustWrite(&hdr, headers)

	out := make([]byte, total)
	copy(out, hdr.Bytes())
	for i, s := range ti.sections {
		if len(s.data) > 0 {
			copy(out[headers[i].PointerToRawData:headers[i].PointerToRawData+headers[i].SizeOfRawData], s.data)
		}
	}
	if strtab != nil {
		binary.LittleEndian.PutUint32(out[cursor:], uint32(len(strtab)+4))
		copy(out[cursor+4:], strtab)
	}
	return out
}

func fill(b byte, n int) []byte {
	return bytes.Repeat([]byte{b}, n)
}

// testExport is an export to place in a synthetic export directory. An empty
// name makes it ordinal-only; a non-empty forward makes it a forwarder.
type testExport struct {
	name    string
	rva     uint32
	forward string
}

// buildExports returns the contents of an export directory that will be
// mapped at va.
func buildExports(va uint32, dll string, exps []testExport) []byte {
	var named []int
	for i, e := range exps {
		if e.name != "" {
			named = append(named, i)
		}
	}
	dirSize := binary.Size(_IMAGE_EXPORT_DIRECTORY{})
	funcsOff := dirSize
	namesOff := funcsOff + 4*len(exps)
	ordsOff := namesOff + 4*len(named)
	buf := make([]byte, ordsOff+2*len(named))

	addString := func(s string) uint32 {
		off := len(buf)
		buf = append(buf, s...)
		buf = append(buf, 0)
		return va + uint32(off)
	}

	dir := _IMAGE_EXPORT_DIRECTORY{
		Name:                  addString(dll),
		Base:                  1,
		NumberOfFunctions:     uint32(len(exps)),
		NumberOfNames:         uint32(len(named)),
		AddressOfFunctions:    va + uint32(funcsOff),
		AddressOfNames:        va + uint32(namesOff),
		AddressOfNameOrdinals: va + uint32(ordsOff),
	}
	for i, e := range exps {
		rva := e.rva
		if e.forward != "" {
			rva = addString(e.forward)
		}
		binary.LittleEndian.PutUint32(buf[funcsOff+4*i:], rva)
	}
	for j, i := range named {
		binary.LittleEndian.PutUint32(buf[namesOff+4*j:], addString(exps[i].name))
		binary.LittleEndian.PutUint16(buf[ordsOff+2*j:], uint16(i))
	}

	var d bytes.Buffer
	mustWrite(&d, &dir)
	copy(buf, d.Bytes())
	return buf
}

// testImportDLL lists the symbols imported from one DLL. Symbols with an empty
// name are imported by ordinal.
type testImportDLL struct {
	dll     string
	symbols []testImportSymbol
}

type testImportSymbol struct {
	name    string
	hint    uint16
	ordinal uint16
}

// buildImports returns the contents of an import directory, with its lookup
// and address tables, that will be mapped at va.
func buildImports(va uint32, is64 bool, dlls []testImportDLL) []byte {
	thunkSize := 4
	if is64 {
		thunkSize = 8
	}
	descSize := binary.Size(_IMAGE_IMPORT_DESCRIPTOR{})
	buf := make([]byte, (len(dlls)+1)*descSize)

	type tables struct{ ilt, iat int }
	tbls := make([]tables, len(dlls))
	for i, d := range dlls {
		n := (len(d.symbols) + 1) * thunkSize
		tbls[i].ilt = len(buf)
		buf = append(buf, make([]byte, n)...)
		tbls[i].iat = len(buf)
		buf = append(buf, make([]byte, n)...)
	}

	putThunk := func(off int, v uint64) {
		if is64 {
			binary.LittleEndian.PutUint64(buf[off:], v)
		} else {
			binary.LittleEndian.PutUint32(buf[off:], uint32(v))
		}
	}

	for i, d := range dlls {
		nameRVA := va + uint32(len(buf))
		buf = append(buf, d.dll...)
		buf = append(buf, 0)

		for j, s := range d.symbols {
			var thunk uint64
			if s.name == "" {
				thunk = uint64(s.ordinal) | ordinalFlag32
				if is64 {
					thunk = uint64(s.ordinal) | ordinalFlag64
				}
			} else {
				thunk = uint64(va) + uint64(len(buf))
				buf = binary.LittleEndian.AppendUint16(buf, s.hint)
				buf = append(buf, s.name...)
				buf = append(buf, 0)
			}
			putThunk(tbls[i].ilt+j*thunkSize, thunk)
			putThunk(tbls[i].iat+j*thunkSize, thunk)
		}

		desc := _IMAGE_IMPORT_DESCRIPTOR{
			OriginalFirstThunk: va + uint32(tbls[i].ilt),
			Name:               nameRVA,
			FirstThunk:         va + uint32(tbls[i].iat),
		}
		var d bytes.Buffer
		mustWrite(&d, &desc)
		copy(buf[i*descSize:], d.Bytes())
	}
	return buf
}

// toMapped rearranges a file-layout image the way the loader would map it:
// headers at offset 0 and each section's raw data at its virtual address.
func toMapped(image []byte) []byte {
	h, err := loadHeaders(image)
	if err != nil {
		panic(err)
	}
	var size uint32
	for _, s := range h.sections {
		size = max(size, s.VirtualAddress+max(s.VirtualSize, s.SizeOfRawData))
	}
	out := make([]byte, alignUp(size, 0x1000))
	copy(out, image[:min(len(image), 0x400)])
	for _, s := range h.sections {
		if s.SizeOfRawData == 0 {
			continue
		}
		copy(out[s.VirtualAddress:], image[s.PointerToRawData:s.PointerToRawData+s.SizeOfRawData])
	}
	return out
}
