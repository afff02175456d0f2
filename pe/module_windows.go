// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package pe

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/windows"
)

// NewFileFromBaseAddressAndSize parses a PE binary loaded into the current
// process's address space at address baseAddr with known size. If you do not
// have the size, use NewFileFromBaseAddress instead.
// Upon success it returns a non-nil *File, otherwise it returns a nil *File
// and a non-nil error.
// If the module is unloaded while the returned *File is still in use,
// its behaviour will become undefined.
func NewFileFromBaseAddressAndSize(baseAddr, size uintptr, opts ...Option) (*File, error) {
	slc := unsafe.Slice((*byte)(unsafe.Pointer(baseAddr)), size)
	return Parse(slc, append(opts, withLayout(layoutMapped))...)
}

// NewFileFromBaseAddress parses a PE binary loaded into the current process's
// address space at address baseAddr.
// Upon success it returns a non-nil *File, otherwise it returns a nil *File
// and a non-nil error.
// If the module is unloaded while the returned *File is still in use,
// its behaviour will become undefined.
func NewFileFromBaseAddress(baseAddr uintptr, opts ...Option) (*File, error) {
	var modInfo windows.ModuleInfo
	if err := windows.GetModuleInformation(
		windows.CurrentProcess(),
		windows.Handle(baseAddr),
		&modInfo,
		uint32(unsafe.Sizeof(modInfo)),
	); err != nil {
		return nil, errors.Wrap(err, "querying module handle")
	}

	return NewFileFromBaseAddressAndSize(baseAddr, uintptr(modInfo.SizeOfImage), opts...)
}

// NewFileFromHMODULE parses a PE binary identified by hmodule that is
// currently loaded into the current process's address space.
// Upon success it returns a non-nil *File, otherwise it returns a nil *File
// and a non-nil error.
// If the module is unloaded while the returned *File is still in use,
// its behaviour will become undefined.
func NewFileFromHMODULE(hmodule windows.Handle, opts ...Option) (*File, error) {
	return NewFileFromBaseAddress(uintptr(hmodule)&^uintptr(3), opts...)
}
