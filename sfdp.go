package pchspi

import (
	"errors"
	"fmt"
)

// sfdpSignature is "SFDP" read as a little-endian dword.
const sfdpSignature = 0x50444653

// SFDP space of each component as seen through BIOS_PTINX.
const (
	sfdpComponentShift = 14
	sfdpHeaderOffset   = 0x0000
	sfdpParamOffset    = 0x1000
	sfdpTableOffset    = 0x2000

	sfdpComponents = 2
)

// SFDPParameterHeader describes one parameter table. [JESD216|6.4]
type SFDPParameterHeader struct {
	ID      uint16 `yaml:"id"`
	Major   uint8  `yaml:"major"`
	Minor   uint8  `yaml:"minor"`
	Length  uint8  `yaml:"length"` // in dwords
	Pointer uint32 `yaml:"pointer"`
}

func (h SFDPParameterHeader) String() string {
	return fmt.Sprintf("ID %#04x v%d.%d, %d dwords at %#06x", h.ID, h.Major, h.Minor, h.Length, h.Pointer)
}

// SFDPComponent is the SFDP discovery result for one flash component.
type SFDPComponent struct {
	Index int  `yaml:"index"`
	Found bool `yaml:"found"`

	Major               uint8                 `yaml:"major,omitempty"`
	Minor               uint8                 `yaml:"minor,omitempty"`
	NumParameterHeaders int                   `yaml:"parameter_headers,omitempty"`
	Headers             []SFDPParameterHeader `yaml:"headers,omitempty"`

	// BasicTable is the raw content of the first parameter table, the JEDEC
	// Basic Flash Parameter Table.
	BasicTable []uint32 `yaml:"basic_table,omitempty,flow"`

	// Err is set when the SFDP cycle for the extra parameter headers failed.
	Err error `yaml:"-"`
}

// ptmesg reads one dword of SFDP space through the BIOS_PTINX/BIOS_PTDATA
// pair.
func (c *Controller) ptmesg(off uint32) (uint32, error) {
	if err := c.port.WriteRegister("BIOS_PTINX", off); err != nil {
		return 0, err
	}
	if _, err := c.port.ReadRegister("BIOS_PTINX"); err != nil {
		return 0, err
	}
	return c.port.ReadRegister("BIOS_PTDATA")
}

// dataSlot reads FDATAi.
func (c *Controller) dataSlot(i int) (uint32, error) {
	if i < 0 || i >= dataSlots {
		return 0, fmt.Errorf("FDATA%d: %w", i, ErrDataWindowExhausted)
	}
	v, err := c.port.ReadMMIO(c.fdata[i], 4)
	if err != nil {
		return 0, fmt.Errorf("read FDATA%d: %w", i, err)
	}
	return v, nil
}

// DiscoverSFDP walks the SFDP header of both flash components.
//
// A component without the SFDP signature is reported as not found. When
// more than one parameter header is present and the controller supports it,
// an SFDP cycle fetches the additional headers into the data window. A
// header that does not fit the window aborts the walk with
// ErrDataWindowExhausted.
func (c *Controller) DiscoverSFDP() ([]SFDPComponent, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	comps := make([]SFDPComponent, 0, sfdpComponents)
	for i := range sfdpComponents {
		comp, err := c.discoverComponent(i)
		if err != nil {
			return comps, fmt.Errorf("SFDP component %d: %w", i, err)
		}
		comps = append(comps, comp)
	}
	return comps, nil
}

func (c *Controller) discoverComponent(index int) (SFDPComponent, error) {
	comp := SFDPComponent{Index: index}
	base := uint32(index) << sfdpComponentShift
	log := c.log.With("component", index)

	sig, err := c.ptmesg(base | sfdpHeaderOffset)
	if err != nil {
		return comp, err
	}
	if sig != sfdpSignature {
		log.Info("no SFDP header", "signature", fmt.Sprintf("%08X", sig))
		return comp, nil
	}
	comp.Found = true

	d, err := c.ptmesg(base + 4)
	if err != nil {
		return comp, err
	}
	comp.Minor = uint8(d)
	comp.Major = uint8(d >> 8)
	comp.NumParameterHeaders = int(uint8(d>>16)) + 1
	log.Info("found SFDP header", "version", fmt.Sprintf("%d.%d", comp.Major, comp.Minor),
		"parameter_headers", comp.NumParameterHeaders)

	p1, err := c.ptmesg(base | sfdpParamOffset)
	if err != nil {
		return comp, err
	}
	basic := SFDPParameterHeader{
		ID:     uint16(p1 & 0xFF),
		Minor:  uint8(p1 >> 8),
		Major:  uint8(p1 >> 16),
		Length: uint8(p1 >> 24),
	}
	comp.Headers = append(comp.Headers, basic)
	log.Debug("parameter header", "n", 1, "header", basic)

	if comp.NumParameterHeaders > 1 && c.port.HasField("HSFS", "FCYCLE") {
		headers, err := c.readParameterHeaders(comp.NumParameterHeaders)
		if err != nil {
			var cerr *CycleError
			if !errors.As(err, &cerr) {
				return comp, err
			}
			log.Error("SPI SFDP cycle failed", "err", err)
			comp.Err = err
			return comp, nil
		}
		for n, h := range headers {
			log.Debug("parameter header", "n", n+2, "header", h)
		}
		comp.Headers = append(comp.Headers, headers...)
	}

	comp.BasicTable = make([]uint32, 0, basic.Length)
	off := base | sfdpTableOffset
	for range basic.Length {
		v, err := c.ptmesg(off)
		if err != nil {
			return comp, err
		}
		comp.BasicTable = append(comp.BasicTable, v)
		off += 4
	}
	return comp, nil
}

// readParameterHeaders runs an SFDP cycle and decodes parameter headers 2
// to n from the data window, two dwords each starting at FDATA4.
func (c *Controller) readParameterHeaders(n int) ([]SFDPParameterHeader, error) {
	if err := c.checkHardwareSequencing(); err != nil {
		return nil, err
	}
	for i := dataSlots - 4; i < dataSlots; i++ {
		if err := c.port.WriteMMIO(c.fdata[i], 4, 0); err != nil {
			return nil, fmt.Errorf("clear FDATA%d: %w", i, err)
		}
	}
	if err := c.executeCycle(Command{Kind: CycleSFDP, DBC: 0x3F}); err != nil {
		return nil, err
	}

	headers := make([]SFDPParameterHeader, 0, n-1)
	for i := 1; i < n; i++ {
		d1, err := c.dataSlot(2 + 2*i)
		if err != nil {
			return headers, err
		}
		d2, err := c.dataSlot(3 + 2*i)
		if err != nil {
			return headers, err
		}
		headers = append(headers, SFDPParameterHeader{
			ID:      uint16((d2&0xFF000000)>>16 | d1&0xFF),
			Minor:   uint8(d1 >> 8),
			Major:   uint8(d1 >> 16),
			Length:  uint8(d1 >> 24),
			Pointer: d2 & 0x00FFFFFF,
		})
	}
	return headers, nil
}
