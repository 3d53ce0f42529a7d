package pchspi

import "fmt"

// JEDECID is the manufacturer and device code returned by the flash part.
type JEDECID struct {
	Manufacturer uint8
	Device       uint16
}

// NewJEDECID splits a 24-bit manufacturer/device value.
func NewJEDECID(v uint32) JEDECID {
	return JEDECID{Manufacturer: uint8(v >> 16), Device: uint16(v)}
}

func (id JEDECID) Value() uint32 {
	return uint32(id.Manufacturer)<<16 | uint32(id.Device)
}

func (id JEDECID) String() string {
	return fmt.Sprintf("%06X", id.Value())
}

// jedecFromData reorders FDATA0 after a JEDEC ID cycle: the controller
// stores the manufacturer in byte 0 and the low device byte in byte 2.
func jedecFromData(raw uint32) JEDECID {
	return NewJEDECID((raw&0xFF)<<16 | raw&0xFF00 | (raw>>16)&0xFF)
}

// ReadJEDECID reads the JEDEC ID of the flash part at address 0.
func (c *Controller) ReadJEDECID() (JEDECID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.port.HasField("HSFS", "FCYCLE") {
		return JEDECID{}, ErrUnsupportedJEDECCycle
	}
	if err := c.checkHardwareSequencing(); err != nil {
		return JEDECID{}, err
	}
	if err := c.executeCycle(Command{Kind: CycleJEDECID, DBC: 4}); err != nil {
		c.log.Error("SPI JEDEC ID cycle failed", "err", err)
		return JEDECID{}, err
	}
	raw, err := c.port.ReadMMIO(c.fdata[0], 4)
	if err != nil {
		return JEDECID{}, fmt.Errorf("read FDATA0: %w", err)
	}
	id := jedecFromData(raw)
	c.log.Debug("JEDEC ID", "fdata0", fmt.Sprintf("%08X", raw), "id", id)
	return id, nil
}

// Identity is a JEDEC ID with the names it resolves to.
type Identity struct {
	ID           JEDECID `yaml:"id"`
	Manufacturer string  `yaml:"manufacturer"`
	Part         string  `yaml:"part"`
}

// IdentifyFlash reads the JEDEC ID and resolves it against the ID table.
func (c *Controller) IdentifyFlash() (Identity, error) {
	id, err := c.ReadJEDECID()
	if err != nil {
		return Identity{}, err
	}
	manu, part := c.ids.Lookup(id)
	return Identity{ID: id, Manufacturer: manu, Part: part}, nil
}
