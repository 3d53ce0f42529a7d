package regs

import (
	"encoding/binary"
	"errors"
	"fmt"

	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/mmr"
)

var (
	ErrUnsupportedWidth = errors.New("unsupported access width")
	ErrNotBacked        = errors.New("register group has no window")
)

// Port gives named and raw access to the registers of a Layout.
//
// Every group is accessed through its own half-duplex conn.Conn using 16-bit
// little-endian register addressing, see Window.
type Port struct {
	*Layout

	buses map[Group]*mmr.Dev16
}

// NewPort binds windows to the groups of l. Groups without a window, such as
// the descriptor group, can still be decoded but not accessed.
func NewPort(l *Layout, windows map[Group]conn.Conn) *Port {
	p := &Port{Layout: l, buses: make(map[Group]*mmr.Dev16, len(windows))}
	for g, c := range windows {
		p.buses[g] = &mmr.Dev16{Conn: c, Order: binary.LittleEndian}
	}
	return p
}

func (p *Port) bus(g Group) (*mmr.Dev16, error) {
	b, ok := p.buses[g]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotBacked, g)
	}
	return b, nil
}

func read(b *mmr.Dev16, off uint16, width int) (uint32, error) {
	switch width {
	case 1:
		v, err := b.ReadUint8(off)
		return uint32(v), err
	case 2:
		v, err := b.ReadUint16(off)
		return uint32(v), err
	case 4:
		return b.ReadUint32(off)
	}
	return 0, fmt.Errorf("%w %d", ErrUnsupportedWidth, width)
}

func write(b *mmr.Dev16, off uint16, width int, v uint32) error {
	switch width {
	case 1:
		return b.WriteUint8(off, uint8(v))
	case 2:
		return b.WriteUint16(off, uint16(v))
	case 4:
		return b.WriteUint32(off, v)
	}
	return fmt.Errorf("%w %d", ErrUnsupportedWidth, width)
}

func (p *Port) ReadRegister(name string) (uint32, error) {
	r, err := p.Lookup(name)
	if err != nil {
		return 0, err
	}
	b, err := p.bus(r.Group)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	v, err := read(b, r.Offset, r.Size)
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", name, err)
	}
	return v, nil
}

func (p *Port) WriteRegister(name string, v uint32) error {
	r, err := p.Lookup(name)
	if err != nil {
		return err
	}
	b, err := p.bus(r.Group)
	if err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := write(b, r.Offset, r.Size, v); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// ReadField reads the register and extracts one field.
func (p *Port) ReadField(reg, field string) (uint32, error) {
	raw, err := p.ReadRegister(reg)
	if err != nil {
		return 0, err
	}
	return p.Field(reg, raw, field)
}

// Offset returns the offset of the named register within its group.
func (p *Port) Offset(name string) (uint16, error) {
	r, err := p.Lookup(name)
	if err != nil {
		return 0, err
	}
	return r.Offset, nil
}

// ReadMMIO reads width bytes at off in the SPI controller window.
func (p *Port) ReadMMIO(off uint16, width int) (uint32, error) {
	b, err := p.bus(GroupSPIBAR)
	if err != nil {
		return 0, err
	}
	return read(b, off, width)
}

// WriteMMIO writes width bytes at off in the SPI controller window.
func (p *Port) WriteMMIO(off uint16, width int, v uint32) error {
	b, err := p.bus(GroupSPIBAR)
	if err != nil {
		return err
	}
	return write(b, off, width, v)
}

func (p *Port) control(name string) (Control, error) {
	c, ok := p.Controls[name]
	if !ok {
		return Control{}, fmt.Errorf("%w %s", ErrUnknownControl, name)
	}
	return c, nil
}

// Control reads the field behind a named control.
func (p *Port) Control(name string) (uint32, error) {
	c, err := p.control(name)
	if err != nil {
		return 0, err
	}
	return p.ReadField(c.Register, c.Field)
}

// SetControl performs a read-modify-write of the field behind a named control.
func (p *Port) SetControl(name string, v uint32) error {
	c, err := p.control(name)
	if err != nil {
		return err
	}
	raw, err := p.ReadRegister(c.Register)
	if err != nil {
		return err
	}
	raw, err = p.SetField(c.Register, raw, c.Field, v)
	if err != nil {
		return err
	}
	return p.WriteRegister(c.Register, raw)
}
