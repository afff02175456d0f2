package main

import (
	"bytes"
	dpe "debug/pe"
	"encoding/binary"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/assert"
	is "gotest.tools/assert/cmp"
)

// writeTestImage writes a PE32+ image with a .text section and an .edata
// section exporting Foo at 0x1000.
func writeTestImage(t *testing.T) string {
	t.Helper()

	edata := make([]byte, 0x40)
	le := binary.LittleEndian
	le.PutUint32(edata[12:], 0x2038) // Name
	le.PutUint32(edata[16:], 1)      // Base
	le.PutUint32(edata[20:], 1)      // NumberOfFunctions
	le.PutUint32(edata[24:], 1)      // NumberOfNames
	le.PutUint32(edata[28:], 0x2028) // AddressOfFunctions
	le.PutUint32(edata[32:], 0x202C) // AddressOfNames
	le.PutUint32(edata[36:], 0x2030) // AddressOfNameOrdinals
	le.PutUint32(edata[0x28:], 0x1000)
	le.PutUint32(edata[0x2C:], 0x2034)
	copy(edata[0x34:], "Foo\x00t.dll\x00")

	oh := dpe.OptionalHeader64{
		Magic:               0x20B,
		AddressOfEntryPoint: 0x1000,
		ImageBase:           0x140000000,
		SectionAlignment:    0x1000,
		FileAlignment:       0x200,
		SizeOfHeaders:       0x400,
		NumberOfRvaAndSizes: 16,
	}
	oh.DataDirectory[dpe.IMAGE_DIRECTORY_ENTRY_EXPORT] = dpe.DataDirectory{VirtualAddress: 0x2000, Size: uint32(len(edata))}

	sections := []dpe.SectionHeader32{
		{
			Name:             [8]byte{'.', 't', 'e', 'x', 't'},
			VirtualSize:      0x10,
			VirtualAddress:   0x1000,
			SizeOfRawData:    0x200,
			PointerToRawData: 0x400,
			Characteristics:  dpe.IMAGE_SCN_CNT_CODE | dpe.IMAGE_SCN_MEM_EXECUTE,
		},
		{
			Name:             [8]byte{'.', 'e', 'd', 'a', 't', 'a'},
			VirtualSize:      uint32(len(edata)),
			VirtualAddress:   0x2000,
			SizeOfRawData:    0x200,
			PointerToRawData: 0x600,
			Characteristics:  dpe.IMAGE_SCN_CNT_INITIALIZED_DATA,
		},
	}
	fh := dpe.FileHeader{
		Machine:              dpe.IMAGE_FILE_MACHINE_AMD64,
		NumberOfSections:     uint16(len(sections)),
		SizeOfOptionalHeader: uint16(binary.Size(oh)),
	}

	var hdr bytes.Buffer
	dos := make([]byte, 0x40)
	dos[0], dos[1] = 'M', 'Z'
	le.PutUint32(dos[60:], 0x40)
	hdr.Write(dos)
	hdr.WriteString("PE\x00\x00")
	for _, v := range []any{&fh, &oh, sections} {
		if err := binary.Write(&hdr, le, v); err != nil {
			t.Fatal(err)
		}
	}

	image := make([]byte, 0x800)
	copy(image, hdr.Bytes())
	copy(image[0x400:0x410], bytes.Repeat([]byte{0x90}, 0x10))
	copy(image[0x600:], edata)

	path := filepath.Join(t.TempDir(), "test.exe")
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func runDump(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewDumpCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestDumpAll(t *testing.T) {
	path := writeTestImage(t)
	out, err := runDump(t, "--headers", "--sections", "--symbols", "--debuginfo", path)
	assert.NilError(t, err)

	for _, want := range []string{
		"FileHeader:",
		"Machine:           X86_64",
		"PE32+:             true",
		"ImageBase:         0x140000000",
		"Entry:             0x1000",
		"HasDebugSymbols:   false",
		"2 sections:",
		"Index  0: .text    Text",
		"Index  1: .edata   Data",
		"1 exports:",
		"Foo",
		"0 imports:",
		"Symbol map (1 entries):",
		"0x00001000  Foo",
		"No debug directory",
	} {
		assert.Check(t, is.Contains(out, want))
	}
}

func TestDumpDefaultsToHeaders(t *testing.T) {
	out, err := runDump(t, writeTestImage(t))
	assert.NilError(t, err)
	assert.Check(t, is.Contains(out, "FileHeader:"))
	assert.Check(t, !strings.Contains(out, "sections:"))
	assert.Check(t, !strings.Contains(out, "exports:"))
}

func TestDumpMissingFile(t *testing.T) {
	_, err := runDump(t, "--sections", filepath.Join(t.TempDir(), "missing.exe"))
	assert.Assert(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
	assert.ErrorContains(t, err, "error opening")
}

func TestDumpRequiresPath(t *testing.T) {
	_, err := runDump(t)
	assert.Assert(t, err != nil)
}

func TestResourcesMissingFile(t *testing.T) {
	_, err := runDump(t, "resources", filepath.Join(t.TempDir(), "missing.exe"))
	assert.Assert(t, errors.Is(err, fs.ErrNotExist), "got %v", err)
}

func TestResourcesNotPE(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.exe")
	assert.NilError(t, os.WriteFile(path, bytes.Repeat([]byte{'x'}, 0x400), 0o644))
	_, err := runDump(t, "resources", path)
	assert.ErrorContains(t, err, "loading resources")
}
