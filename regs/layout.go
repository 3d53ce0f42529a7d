// Package regs describes chipset register layouts and gives named access to
// the registers they define.
//
// A Layout is the static half: register names, the group (address space)
// each one lives in, offsets, widths and bit fields. A Port binds a Layout to
// live windows, one conn.Conn per group.
package regs

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownRegister = errors.New("unknown register")
	ErrUnknownField    = errors.New("unknown field")
	ErrUnknownControl  = errors.New("unknown control")
	ErrUnknownLayout   = errors.New("unknown layout")
)

// Group names an address space registers are decoded from.
type Group string

const (
	GroupSPIBAR     Group = "spibar" // SPI controller MMIO window
	GroupPCICfg     Group = "pcicfg" // PCI configuration space of the BIOS control owner
	GroupDescriptor Group = "fd"     // flash descriptor image, decode only
)

// GroupDef tells how to locate a group on real hardware.
//
// A group with a PCI address and no BAR is the function's configuration
// space. With a BAR, the window starts at (config[BAR] & Mask) + Offset.
// Groups without PCI are never mapped.
type GroupDef struct {
	PCI    string `yaml:"pci,omitempty"`
	BAR    uint16 `yaml:"bar,omitempty"`
	Mask   uint32 `yaml:"mask,omitempty"`
	Offset uint32 `yaml:"offset,omitempty"`
	Size   int    `yaml:"size,omitempty"`
}

type Field struct {
	Name string `yaml:"name"`
	Bit  uint   `yaml:"bit"`
	Size uint   `yaml:"size,omitempty"` // bits, 1 if omitted
	Desc string `yaml:"desc,omitempty"`
}

func (f Field) width() uint {
	if f.Size == 0 {
		return 1
	}
	return f.Size
}

// Mask returns the field mask in register position.
func (f Field) Mask() uint32 {
	return uint32((uint64(1)<<f.width())-1) << f.Bit
}

type Register struct {
	Name   string  `yaml:"name"`
	Group  Group   `yaml:"group"`
	Offset uint16  `yaml:"offset"`
	Size   int     `yaml:"size"` // bytes: 1, 2 or 4
	Desc   string  `yaml:"desc,omitempty"`
	Fields []Field `yaml:"fields,omitempty"`
}

func (r *Register) field(name string) (*Field, bool) {
	for i := range r.Fields {
		if r.Fields[i].Name == name {
			return &r.Fields[i], true
		}
	}
	return nil, false
}

// Control maps a chipset-independent control name to a register field.
type Control struct {
	Register string `yaml:"register"`
	Field    string `yaml:"field"`
}

type Layout struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Groups      map[Group]GroupDef `yaml:"groups"`
	Registers   []Register         `yaml:"registers"`
	Controls    map[string]Control `yaml:"controls,omitempty"`

	index map[string]*Register
}

// LoadLayout decodes a YAML layout and validates it.
func LoadLayout(r io.Reader) (*Layout, error) {
	l := &Layout{}
	if err := yaml.NewDecoder(r).Decode(l); err != nil {
		return nil, fmt.Errorf("decode layout: %w", err)
	}
	if err := l.init(); err != nil {
		return nil, fmt.Errorf("layout %q: %w", l.Name, err)
	}
	return l, nil
}

func (l *Layout) init() error {
	l.index = make(map[string]*Register, len(l.Registers))
	for i := range l.Registers {
		r := &l.Registers[i]
		if _, dup := l.index[r.Name]; dup {
			return fmt.Errorf("register %s defined twice", r.Name)
		}
		switch r.Size {
		case 1, 2, 4:
		default:
			return fmt.Errorf("register %s: %w %d", r.Name, ErrUnsupportedWidth, r.Size)
		}
		for _, f := range r.Fields {
			if f.Bit+f.width() > uint(r.Size)*8 {
				return fmt.Errorf("register %s: field %s exceeds %d bits", r.Name, f.Name, r.Size*8)
			}
		}
		l.index[r.Name] = r
	}
	for name, c := range l.Controls {
		r, ok := l.index[c.Register]
		if !ok {
			return fmt.Errorf("control %s: %w %s", name, ErrUnknownRegister, c.Register)
		}
		if _, ok := r.field(c.Field); !ok {
			return fmt.Errorf("control %s: %w %s.%s", name, ErrUnknownField, c.Register, c.Field)
		}
	}
	return nil
}

// Lookup returns the definition of the named register.
func (l *Layout) Lookup(name string) (*Register, error) {
	r, ok := l.index[name]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownRegister, name)
	}
	return r, nil
}

func (l *Layout) RegisterExists(name string) bool {
	_, ok := l.index[name]
	return ok
}

func (l *Layout) HasField(reg, field string) bool {
	r, ok := l.index[reg]
	if !ok {
		return false
	}
	_, ok = r.field(field)
	return ok
}

// Field extracts the named bit field from a raw register value.
func (l *Layout) Field(reg string, raw uint32, field string) (uint32, error) {
	r, err := l.Lookup(reg)
	if err != nil {
		return 0, err
	}
	f, ok := r.field(field)
	if !ok {
		return 0, fmt.Errorf("%w %s.%s", ErrUnknownField, reg, field)
	}
	return (raw & f.Mask()) >> f.Bit, nil
}

// SetField returns raw with the named field replaced by v.
func (l *Layout) SetField(reg string, raw uint32, field string, v uint32) (uint32, error) {
	r, err := l.Lookup(reg)
	if err != nil {
		return 0, err
	}
	f, ok := r.field(field)
	if !ok {
		return 0, fmt.Errorf("%w %s.%s", ErrUnknownField, reg, field)
	}
	return raw&^f.Mask() | (v<<f.Bit)&f.Mask(), nil
}

//go:embed layouts/*.yaml
var builtinFS embed.FS

// Builtin loads one of the layouts shipped with the package.
func Builtin(name string) (*Layout, error) {
	f, err := builtinFS.Open("layouts/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w %q", ErrUnknownLayout, name)
	}
	defer f.Close()
	return LoadLayout(f)
}

// Builtins lists the names accepted by Builtin.
func Builtins() []string {
	entries, _ := builtinFS.ReadDir("layouts")
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		n := e.Name()
		names = append(names, n[:len(n)-len(".yaml")])
	}
	slices.Sort(names)
	return names
}
