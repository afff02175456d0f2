// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

// Package pe presents PE and PE32+ images through the objfile.Object
// interface.
//
// A File never copies section contents: segment and section data are
// subslices of the buffer the File was created from.
package pe

import (
	dpe "debug/pe"
	"fmt"
	"io"

	"github.com/dblohm7/objfile"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	// ErrParse is returned, possibly wrapped, for every image that cannot be
	// parsed.
	ErrParse         = errors.New("could not parse PE header")
	ErrInvalidBinary = errors.New("invalid PE binary")
	ErrNotCodeView   = errors.New("debug info is not CodeView")
	ErrNotPresent    = errors.New("not present in this PE image")
)

const (
	IMAGE_FILE_MACHINE_I386  = dpe.IMAGE_FILE_MACHINE_I386
	IMAGE_FILE_MACHINE_AMD64 = dpe.IMAGE_FILE_MACHINE_AMD64

	IMAGE_SCN_CNT_CODE               = dpe.IMAGE_SCN_CNT_CODE
	IMAGE_SCN_CNT_INITIALIZED_DATA   = dpe.IMAGE_SCN_CNT_INITIALIZED_DATA
	IMAGE_SCN_CNT_UNINITIALIZED_DATA = dpe.IMAGE_SCN_CNT_UNINITIALIZED_DATA
	IMAGE_SCN_MEM_EXECUTE            = dpe.IMAGE_SCN_MEM_EXECUTE

	defaultSectionAlignment = 0x1000
)

// File is a parsed PE image.
type File struct {
	data    []byte
	layout  layout
	hdr     *headers
	exports []Export
	imports []Import
	closer  io.Closer
}

var _ objfile.Object = (*File)(nil)

type config struct {
	log    logrus.FieldLogger
	layout layout
}

// Option configures Parse and the other constructors.
type Option func(*config)

// WithLogger sends parser diagnostics to log. By default they are discarded.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = log
	}
}

func withLayout(l layout) Option {
	return func(c *config) {
		c.layout = l
	}
}

var discardLogger = &logrus.Logger{
	Out:       io.Discard,
	Formatter: new(logrus.TextFormatter),
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.PanicLevel,
}

func newConfig(opts []Option) *config {
	c := &config{layout: layoutFile, log: discardLogger}
	for _, o := range opts {
		o(c)
	}
	if c.log == nil {
		c.log = discardLogger
	}
	return c
}

// Parse parses data as a PE image. The returned File aliases data, which must
// not be modified while the File is in use.
// Upon success it returns a non-nil *File, otherwise it returns a nil *File
// and an error for which errors.Is(err, ErrParse) holds.
func Parse(data []byte, opts ...Option) (*File, error) {
	c := newConfig(opts)
	f, err := parse(data, c)
	if err != nil {
		c.log.WithError(err).Debug("rejecting PE image")
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return f, nil
}

func parse(data []byte, c *config) (*File, error) {
	h, err := loadHeaders(data)
	if err != nil {
		return nil, err
	}
	log := c.log.WithField("machine", fmt.Sprintf("0x%04X", h.fileHeader.Machine))
	if int(h.fileHeader.NumberOfSections) > len(h.sections) {
		log.Debugf("section count %d clamped to %d", h.fileHeader.NumberOfSections, len(h.sections))
	}

	exports, err := loadExports(data, h, c.layout)
	if err != nil {
		return nil, errors.Wrap(err, "loading exports")
	}
	imports, err := loadImports(data, h, c.layout)
	if err != nil {
		return nil, errors.Wrap(err, "loading imports")
	}
	log.WithFields(logrus.Fields{
		"sections": len(h.sections),
		"exports":  len(exports),
		"imports":  len(imports),
	}).Debug("parsed PE image")

	return &File{
		data:    data,
		layout:  c.layout,
		hdr:     h,
		exports: exports,
		imports: imports,
	}, nil
}

// Close releases any OS resources held by f. Views obtained from f must not
// be used afterwards.
func (f *File) Close() error {
	if f.closer == nil {
		return nil
	}
	err := f.closer.Close()
	f.closer = nil
	return err
}

// FileHeader returns the COFF file header of f.
func (f *File) FileHeader() *dpe.FileHeader {
	return &f.hdr.fileHeader
}

// ImageBase returns the preferred load address of f, or 0 when f has no
// optional header.
func (f *File) ImageBase() uint64 {
	if f.hdr.optionalHeader == nil {
		return 0
	}
	return f.hdr.optionalHeader.imageBase()
}

// RawSections returns the section table of f.
func (f *File) RawSections() []dpe.SectionHeader32 {
	result := make([]dpe.SectionHeader32, len(f.hdr.sections))
	for i := range f.hdr.sections {
		result[i] = f.hdr.sections[i].SectionHeader32
	}
	return result
}

// Exports returns the export directory of f.
func (f *File) Exports() []Export {
	return f.exports
}

// Imports returns the imports of f.
func (f *File) Imports() []Import {
	return f.imports
}

func (f *File) Machine() objfile.Machine {
	switch f.hdr.fileHeader.Machine {
	// TODO(aaron): ARM and ARM64
	case IMAGE_FILE_MACHINE_I386:
		return objfile.MachineX86
	case IMAGE_FILE_MACHINE_AMD64:
		return objfile.MachineX86_64
	default:
		return objfile.MachineOther
	}
}

// Is64 reports whether f is a PE32+ image.
func (f *File) Is64() bool {
	return f.hdr.optionalHeader != nil && f.hdr.optionalHeader.is64()
}

// IsLittleEndian always returns true. The big-endian flag in the COFF
// characteristics is obsolete.
func (f *File) IsLittleEndian() bool {
	return true
}

func (f *File) Entry() uint64 {
	if f.hdr.optionalHeader == nil {
		return 0
	}
	return uint64(f.hdr.optionalHeader.entry())
}

// SectionAlignment returns the in-memory alignment of sections.
func (f *File) SectionAlignment() uint64 {
	if f.hdr.optionalHeader == nil {
		return defaultSectionAlignment
	}
	return uint64(f.hdr.optionalHeader.sectionAlignment())
}

// HasDebugSymbols reports whether f has a .debug_info section. PDB references
// are not considered; see CodeView.
func (f *File) HasDebugSymbols() bool {
	for i := range f.hdr.sections {
		s := &f.hdr.sections[i]
		if s.nameErr == nil && s.name == ".debug_info" {
			return true
		}
	}
	return false
}

func (f *File) Segments() objfile.SegmentIterator {
	return &SegmentIterator{file: f}
}

func (f *File) Sections() objfile.SectionIterator {
	return &SectionIterator{file: f}
}

func (f *File) SectionByName(name string) (objfile.Section, bool) {
	it := SectionIterator{file: f}
	for s, ok := it.next(); ok; s, ok = it.next() {
		if n, ok := s.Name(); ok && n == name {
			return s, true
		}
	}
	return nil, false
}

func (f *File) SectionByIndex(i objfile.SectionIndex) (objfile.Section, bool) {
	it := SectionIterator{file: f}
	for s, ok := it.next(); ok; s, ok = it.next() {
		if s.Index() == i {
			return s, true
		}
	}
	return nil, false
}

// Symbols returns an empty iterator. COFF symbol tables are not decoded.
func (f *File) Symbols() objfile.SymbolIterator {
	return objfile.NoSymbols{}
}

// SymbolByIndex always reports false. COFF symbol tables are not decoded.
func (f *File) SymbolByIndex(i objfile.SymbolIndex) (objfile.Symbol, bool) {
	return objfile.Symbol{}, false
}

// DynamicSymbols iterates over the exports of f followed by its imports.
func (f *File) DynamicSymbols() objfile.SymbolIterator {
	return &SymbolIterator{exports: f.exports, imports: f.imports}
}

// SymbolMap returns the defined, named symbols of f sorted by address. PE
// images have no static symbols here, so the map is built from the exports.
func (f *File) SymbolMap() objfile.SymbolMap {
	m := objfile.NewSymbolMap(f.Symbols())
	if len(m.Symbols) == 0 {
		m = objfile.NewSymbolMap(f.DynamicSymbols())
	}
	return m
}
