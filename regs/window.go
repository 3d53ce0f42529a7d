package regs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"periph.io/x/conn/v3"
	"periph.io/x/host/v3"
	"periph.io/x/host/v3/pmem"
)

var ErrOutOfWindow = errors.New("access outside of window")

// Window is a register window exposed as a half-duplex conn.Conn, the shape
// mmr.Dev16 expects.
//
// A transaction starts with the little-endian 16-bit offset. A read passes a
// 1, 2 or 4 byte r; a write appends the value to w. Accesses are performed at
// their exact width and must be naturally aligned.
type Window struct {
	name string
	mem  pmem.Slice
	view *pmem.View
}

var hostInitialized atomic.Bool

// Map maps size bytes of physical memory at phys through /dev/mem.
func Map(name string, phys uint64, size int) (*Window, error) {
	if hostInitialized.CompareAndSwap(false, true) {
		if _, err := host.Init(); err != nil {
			return nil, fmt.Errorf("host initialization failed: %w", err)
		}
	}
	v, err := pmem.Map(phys, size)
	if err != nil {
		return nil, fmt.Errorf("map %s at %#x: %w", name, phys, err)
	}
	return &Window{name: name, mem: v.Slice, view: v}, nil
}

// NewMemory returns a window backed by ordinary memory.
func NewMemory(name string, size int) *Window {
	return &Window{name: name, mem: make(pmem.Slice, (size+3)&^3)}
}

// Bytes exposes the window content. Mapped windows alias device registers.
func (w *Window) Bytes() []byte { return w.mem.Bytes() }

func (w *Window) String() string { return w.name }

func (w *Window) Duplex() conn.Duplex { return conn.Half }

// Halt implements conn.Resource.
func (w *Window) Halt() error { return nil }

// Close unmaps a mapped window.
func (w *Window) Close() error {
	if w.view == nil {
		return nil
	}
	return w.view.Close()
}

func (w *Window) Tx(wb, r []byte) error {
	if len(wb) < 2 {
		return fmt.Errorf("%s: missing register offset", w.name)
	}
	off := int(binary.LittleEndian.Uint16(wb))
	if len(r) != 0 {
		if len(wb) != 2 {
			return fmt.Errorf("%s: read with payload", w.name)
		}
		v, err := w.load(off, len(r))
		if err != nil {
			return err
		}
		switch len(r) {
		case 1:
			r[0] = byte(v)
		case 2:
			binary.LittleEndian.PutUint16(r, uint16(v))
		case 4:
			binary.LittleEndian.PutUint32(r, v)
		}
		return nil
	}
	data := wb[2:]
	var v uint32
	switch len(data) {
	case 1:
		v = uint32(data[0])
	case 2:
		v = uint32(binary.LittleEndian.Uint16(data))
	case 4:
		v = binary.LittleEndian.Uint32(data)
	default:
		return fmt.Errorf("%s: %w %d", w.name, ErrUnsupportedWidth, len(data))
	}
	return w.store(off, len(data), v)
}

func (w *Window) check(off, width int) error {
	switch width {
	case 1, 2, 4:
	default:
		return fmt.Errorf("%s: %w %d", w.name, ErrUnsupportedWidth, width)
	}
	if off%width != 0 || off+width > len(w.mem) {
		return fmt.Errorf("%s: %w: %#x/%d", w.name, ErrOutOfWindow, off, width)
	}
	return nil
}

func (w *Window) load(off, width int) (uint32, error) {
	if err := w.check(off, width); err != nil {
		return 0, err
	}
	switch width {
	case 1:
		return uint32(w.mem[off]), nil
	case 2:
		return uint32(*(*uint16)(unsafe.Pointer(&w.mem[off]))), nil
	}
	return w.mem.Uint32()[off/4], nil
}

func (w *Window) store(off, width int, v uint32) error {
	if err := w.check(off, width); err != nil {
		return err
	}
	switch width {
	case 1:
		w.mem[off] = byte(v)
	case 2:
		*(*uint16)(unsafe.Pointer(&w.mem[off])) = uint16(v)
	case 4:
		w.mem.Uint32()[off/4] = v
	}
	return nil
}
