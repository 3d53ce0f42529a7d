package pchspi

import (
	"fmt"

	"github.com/gentam/pchspi/flashmap"
)

// readFields reads reg once and decodes the named fields from it.
func (c *Controller) readFields(reg string, names ...string) (uint32, []uint32, error) {
	raw, err := c.port.ReadRegister(reg)
	if err != nil {
		return 0, nil, err
	}
	vals := make([]uint32, len(names))
	for i, name := range names {
		if vals[i], err = c.port.Field(reg, raw, name); err != nil {
			return raw, nil, err
		}
	}
	return raw, vals, nil
}

// ReadRegion decodes the FREG register of id. ok is false when the
// controller does not implement that region.
func (c *Controller) ReadRegion(id flashmap.RegionID) (r flashmap.Region, ok bool, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readRegion(id)
}

func (c *Controller) readRegion(id flashmap.RegionID) (flashmap.Region, bool, error) {
	reg := id.Register()
	if reg == "" || !c.port.RegisterExists(reg) {
		return flashmap.Region{}, false, nil
	}
	raw, f, err := c.readFields(reg, "RB", "RL")
	if err != nil {
		return flashmap.Region{}, false, err
	}
	return flashmap.NewRegion(id, raw, f[0], f[1]), true, nil
}

// ReadRegions returns the regions the controller implements, in ID order.
// Unless all is set, unused regions are left out.
func (c *Controller) ReadRegions(all bool) ([]flashmap.Region, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var rs []flashmap.Region
	for _, id := range flashmap.Regions() {
		r, ok, err := c.readRegion(id)
		if err != nil {
			return rs, err
		}
		if !ok || !(all || r.Present()) {
			continue
		}
		rs = append(rs, r)
	}
	return rs, nil
}

// ReadProtectedRange decodes PRi, i in [0, flashmap.MaxProtectedRanges).
func (c *Controller) ReadProtectedRange(i int) (flashmap.ProtectedRange, error) {
	if i < 0 || i >= flashmap.MaxProtectedRanges {
		return flashmap.ProtectedRange{}, fmt.Errorf("PR%d: %w", i, ErrInvalidProtectedRange)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readProtectedRange(i)
}

func (c *Controller) readProtectedRange(i int) (flashmap.ProtectedRange, error) {
	name := fmt.Sprintf("PR%d", i)
	off, err := c.port.Offset(name)
	if err != nil {
		return flashmap.ProtectedRange{}, err
	}
	raw, f, err := c.readFields(name, "PRB", "PRL", "WPE", "RPE")
	if err != nil {
		return flashmap.ProtectedRange{}, err
	}
	return flashmap.NewProtectedRange(i, off, raw, f[0], f[1], f[2] != 0, f[3] != 0), nil
}

// ReadProtectedRanges decodes all protected range registers.
func (c *Controller) ReadProtectedRanges() ([]flashmap.ProtectedRange, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prs := make([]flashmap.ProtectedRange, 0, flashmap.MaxProtectedRanges)
	for i := range flashmap.MaxProtectedRanges {
		pr, err := c.readProtectedRange(i)
		if err != nil {
			return prs, err
		}
		prs = append(prs, pr)
	}
	return prs, nil
}

// ReadBIOSRegion decodes BFPR, the BIOS flash primary region.
func (c *Controller) ReadBIOSRegion() (flashmap.Region, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, f, err := c.readFields("BFPR", "PRB", "PRL")
	if err != nil {
		return flashmap.Region{}, err
	}
	return flashmap.NewRegion(flashmap.RegionBIOS, raw, f[0], f[1]), nil
}

// AccessPermissions is FRAP, the access the BIOS master has over each
// region. Each field is a bitmask indexed by region ID.
type AccessPermissions struct {
	Raw uint32 `yaml:"raw"`

	BRRA  uint32 `yaml:"brra"`  // BIOS region read access
	BRWA  uint32 `yaml:"brwa"`  // BIOS region write access
	BMRAG uint32 `yaml:"bmrag"` // BIOS master read access grant
	BMWAG uint32 `yaml:"bmwag"` // BIOS master write access grant
}

// BIOS returns the access of the BIOS master to region id.
func (p AccessPermissions) BIOS(id flashmap.RegionID) flashmap.Access {
	return flashmap.DecodeAccess(p.BRRA, p.BRWA, id)
}

// Grant returns the access the BIOS region grants other masters in region id.
func (p AccessPermissions) Grant(id flashmap.RegionID) flashmap.Access {
	return flashmap.DecodeAccess(p.BMRAG, p.BMWAG, id)
}

func (c *Controller) ReadAccessPermissions() (AccessPermissions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, f, err := c.readFields("FRAP", "BRRA", "BRWA", "BMRAG", "BMWAG")
	if err != nil {
		return AccessPermissions{}, err
	}
	return AccessPermissions{Raw: raw, BRRA: f[0], BRWA: f[1], BMRAG: f[2], BMWAG: f[3]}, nil
}
