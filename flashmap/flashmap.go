// Package flashmap models how a flash part is carved up: regions, the
// masters that may access them and the protected ranges that guard them.
//
// Values are snapshots decoded from either live controller registers or a
// flash descriptor image.
package flashmap

import "fmt"

const (
	// FLAShift converts 4KB granular region fields to flash linear addresses.
	FLAShift = 12
	// PageMask fills the low bits of a limit address.
	PageMask = 1<<FLAShift - 1

	MaxRegions         = 12
	MaxProtectedRanges = 5
)

type RegionID int

const (
	RegionDescriptor RegionID = iota
	RegionBIOS
	RegionME
	RegionGbE
	RegionPlatformData
	Region5
	Region6
	Region7
	RegionEC
	Region9
	Region10
	Region11
)

var regionNames = [MaxRegions]string{
	"Flash Descriptor",
	"BIOS",
	"Intel ME",
	"GBe",
	"Platform Data",
	"Flash Region 5",
	"Flash Region 6",
	"Flash Region 7",
	"Embedded Controller",
	"Flash Region 9",
	"Flash Region 10",
	"Flash Region 11",
}

// Live region registers (FREGx).
var regionRegisters = [MaxRegions]string{
	"FREG0_FLASHD",
	"FREG1_BIOS",
	"FREG2_ME",
	"FREG3_GBE",
	"FREG4_PD",
	"FREG5",
	"FREG6",
	"FREG7",
	"FREG8_EC",
	"FREG9",
	"FREG10",
	"FREG11",
}

func (id RegionID) valid() bool { return id >= 0 && id < MaxRegions }

func (id RegionID) String() string {
	if !id.valid() {
		return fmt.Sprintf("Region %d", int(id))
	}
	return regionNames[id]
}

// Register returns the name of the controller register mirroring the region.
func (id RegionID) Register() string {
	if !id.valid() {
		return ""
	}
	return regionRegisters[id]
}

// DescriptorRegister returns the name of the descriptor entry of the region.
func (id RegionID) DescriptorRegister() string {
	return fmt.Sprintf("FLREG%d", int(id))
}

// Regions lists every region ID in order.
func Regions() []RegionID {
	ids := make([]RegionID, MaxRegions)
	for i := range ids {
		ids[i] = RegionID(i)
	}
	return ids
}

// Region is a contiguous window of flash linear addresses.
type Region struct {
	ID    RegionID `yaml:"id"`
	Name  string   `yaml:"name"`
	Base  uint32   `yaml:"base"`
	Limit uint32   `yaml:"limit"`
	Raw   uint32   `yaml:"raw"`
}

// NewRegion builds a region from the RB/RL fields of its register.
// The limit covers the whole last 4KB block.
func NewRegion(id RegionID, raw, rb, rl uint32) Region {
	return Region{
		ID:    id,
		Name:  id.String(),
		Base:  rb << FLAShift,
		Limit: rl<<FLAShift | PageMask,
		Raw:   raw,
	}
}

// Present reports whether the region is in use.
func (r Region) Present() bool {
	return r.Raw != 0xFFFFFFFF && r.Base <= r.Limit
}

// Size returns the region length in bytes, 0 when unused.
func (r Region) Size() uint32 {
	if !r.Present() {
		return 0
	}
	return r.Limit - r.Base + 1
}

// Contains reports whether addr falls within a present region.
func (r Region) Contains(addr uint32) bool {
	return r.Present() && addr >= r.Base && addr <= r.Limit
}

func (r Region) String() string {
	s := fmt.Sprintf("%-2d %-20s %08X-%08X", r.ID, r.ID, r.Base, r.Limit)
	if !r.Present() {
		s += " (not used)"
	}
	return s
}

// PresentRegions filters out unused regions.
func PresentRegions(rs []Region) []Region {
	var out []Region
	for _, r := range rs {
		if r.Present() {
			out = append(out, r)
		}
	}
	return out
}

// ProtectedRange is one PRx register: a range the controller refuses to
// read or write through hardware sequencing.
type ProtectedRange struct {
	Index        int    `yaml:"index"`
	Offset       uint16 `yaml:"offset"`
	Raw          uint32 `yaml:"raw"`
	Base         uint32 `yaml:"base"`
	Limit        uint32 `yaml:"limit"`
	WriteProtect bool   `yaml:"write_protect"`
	ReadProtect  bool   `yaml:"read_protect"`
}

// NewProtectedRange decodes the PRB/PRL fields. The low 12 bits of the limit
// are only filled when the range is enabled.
func NewProtectedRange(index int, offset uint16, raw, prb, prl uint32, wpe, rpe bool) ProtectedRange {
	pr := ProtectedRange{
		Index:        index,
		Offset:       offset,
		Raw:          raw,
		Base:         prb << FLAShift,
		Limit:        prl << FLAShift,
		WriteProtect: wpe,
		ReadProtect:  rpe,
	}
	if pr.Meaningful() {
		pr.Limit |= PageMask
	}
	return pr
}

// Meaningful reports whether the range protects anything.
func (p ProtectedRange) Meaningful() bool {
	return p.WriteProtect || p.ReadProtect
}

// Overlaps reports whether the enabled range intersects r.
func (p ProtectedRange) Overlaps(r Region) bool {
	return p.Meaningful() && r.Present() && p.Base <= r.Limit && r.Base <= p.Limit
}
