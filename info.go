package pchspi

import (
	"fmt"

	"github.com/gentam/pchspi/descriptor"
)

// OpcodeType is the OPTYPE encoding of a software-sequencing opcode.
type OpcodeType uint8

const (
	OpcodeReadNoAddress OpcodeType = iota
	OpcodeWriteNoAddress
	OpcodeReadAddress
	OpcodeWriteAddress
)

func (t OpcodeType) String() string {
	switch t {
	case OpcodeReadNoAddress:
		return "SPI read cycle without address"
	case OpcodeWriteNoAddress:
		return "SPI write cycle without address"
	case OpcodeReadAddress:
		return "SPI read cycle with address"
	case OpcodeWriteAddress:
		return "SPI write cycle with address"
	}
	return fmt.Sprintf("opcode type %d", uint8(t))
}

type Opcode struct {
	Index  int        `yaml:"index"`
	Opcode uint8      `yaml:"opcode"`
	Type   OpcodeType `yaml:"type"`
}

// OpcodeInfo is the opcode menu programmed for software sequencing.
type OpcodeInfo struct {
	PREOP   uint16   `yaml:"preop"`
	OPTYPE  uint16   `yaml:"optype"`
	OPMENU  uint64   `yaml:"opmenu"`
	Prefix  [2]uint8 `yaml:"prefix,flow"`
	Opcodes []Opcode `yaml:"opcodes"`
}

const menuSize = 8

func (c *Controller) ReadOpcodeInfo() (OpcodeInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		info OpcodeInfo
		raw  [4]uint32
		err  error
	)
	for i, name := range []string{"PREOP", "OPTYPE", "OPMENU_LO", "OPMENU_HI"} {
		if raw[i], err = c.port.ReadRegister(name); err != nil {
			return info, err
		}
	}
	info.PREOP = uint16(raw[0])
	info.OPTYPE = uint16(raw[1])
	info.OPMENU = uint64(raw[3])<<32 | uint64(raw[2])
	info.Prefix = [2]uint8{uint8(info.PREOP), uint8(info.PREOP >> 8)}
	for j := range menuSize {
		info.Opcodes = append(info.Opcodes, Opcode{
			Index:  j,
			Opcode: uint8(info.OPMENU >> (8 * j)),
			Type:   OpcodeType(info.OPTYPE>>(2*j)) & 0x3,
		})
	}
	return info, nil
}

// FDOC section selects. [PCH-SPI|FDOC: FDSS]
const (
	fdocMap        = 0x0000
	fdocComponents = 0x1000
	fdocRegions    = 0x2000
	fdocMasters    = 0x3000
)

// DescriptorDump is the descriptor as the controller exposes it through
// FDOC/FDOD, the leading dwords of each section.
type DescriptorDump struct {
	Map        []uint32 `yaml:"map,flow"`
	Components []uint32 `yaml:"components,flow"`
	Regions    []uint32 `yaml:"regions,flow"`
	Masters    []uint32 `yaml:"masters,flow"`
}

// ReadDescriptorDump reads the descriptor sections through the observability
// registers. It works whatever the region access permissions are.
func (c *Controller) ReadDescriptorDump() (DescriptorDump, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var d DescriptorDump
	for _, s := range []struct {
		section uint32
		n       int
		dst     *[]uint32
	}{
		{fdocMap, 5, &d.Map},
		{fdocComponents, 3, &d.Components},
		{fdocRegions, 5, &d.Regions},
		{fdocMasters, 3, &d.Masters},
	} {
		for j := range s.n {
			if err := c.port.WriteRegister("FDOC", s.section|uint32(j)<<2); err != nil {
				return d, err
			}
			v, err := c.port.ReadRegister("FDOD")
			if err != nil {
				return d, err
			}
			*s.dst = append(*s.dst, v)
		}
	}
	return d, nil
}

// ReadFlashDescriptor reads the descriptor region from flash and parses it.
func (c *Controller) ReadFlashDescriptor() (*descriptor.Descriptor, error) {
	image, err := c.Read(0, descriptor.Size)
	if err != nil {
		return nil, err
	}
	return descriptor.Parse(image, c.port, descriptor.WithLogger(c.log))
}
