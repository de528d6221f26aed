// https://github.com/usbarmory/sehci
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package platform maps a controller's register block from /dev/mem (or a
// UIO device node) into this process's address space, giving the internal
// reg package's raw-address primitives a real hardware backing store when
// this module runs under a host OS instead of bare-metal TamaGo. Grounded
// on golang.org/x/sys/unix's Mmap, the mmap-syscall pattern shared by the
// pack's other device-register drivers.
package platform

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// MMIORegion is one mmap'd window onto a physical register block.
type MMIORegion struct {
	f    *os.File
	data []byte

	physBase uint32
	size     int
}

// pageAlign rounds down to the page-aligned address containing addr, and
// returns the resulting offset of addr within the mapped window.
func pageAlign(addr uint32, pageSize int) (aligned uint32, offset int) {
	mask := uint32(pageSize - 1)
	aligned = addr &^ mask
	offset = int(addr - aligned)
	return
}

// OpenMMIORegion maps `size` bytes of physical memory starting at physBase
// from devicePath (typically "/dev/mem", or a UIO device node such as
// "/dev/uio0" with physBase 0). The returned region's Base is the virtual
// address internal/reg's raw-pointer primitives should be pointed at.
func OpenMMIORegion(devicePath string, physBase uint32, size int) (*MMIORegion, error) {
	f, err := os.OpenFile(devicePath, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("platform: open %s: %w", devicePath, err)
	}

	pageSize := os.Getpagesize()
	aligned, offset := pageAlign(physBase, pageSize)
	mapSize := size + offset

	data, err := unix.Mmap(int(f.Fd()), int64(aligned), mapSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("platform: mmap %s at %#08x: %w", devicePath, physBase, err)
	}

	return &MMIORegion{
		f:        f,
		data:     data,
		physBase: physBase,
		size:     size,
	}, nil
}

// Base returns the process-virtual address corresponding to physBase, the
// address every internal/reg call against this region's registers should be
// computed relative to.
func (r *MMIORegion) Base() uint32 {
	return uint32(uintptr(unsafe.Pointer(&r.data[0]))) + (r.physBase & uint32(os.Getpagesize()-1))
}

// Close unmaps the region and releases the backing file descriptor.
func (r *MMIORegion) Close() error {
	if err := unix.Munmap(r.data); err != nil {
		return fmt.Errorf("platform: munmap: %w", err)
	}

	return r.f.Close()
}
