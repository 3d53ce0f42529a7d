package flashmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegionNames(t *testing.T) {
	tests := []struct {
		id       RegionID
		name     string
		register string
	}{
		{RegionDescriptor, "Flash Descriptor", "FREG0_FLASHD"},
		{RegionBIOS, "BIOS", "FREG1_BIOS"},
		{RegionME, "Intel ME", "FREG2_ME"},
		{RegionGbE, "GBe", "FREG3_GBE"},
		{RegionPlatformData, "Platform Data", "FREG4_PD"},
		{Region7, "Flash Region 7", "FREG7"},
		{RegionEC, "Embedded Controller", "FREG8_EC"},
		{Region11, "Flash Region 11", "FREG11"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.name, test.id.String())
			assert.Equal(t, test.register, test.id.Register())
		})
	}
	assert.Equal(t, "FLREG3", RegionGbE.DescriptorRegister())
	assert.Equal(t, "Region 12", RegionID(12).String())
	assert.Empty(t, RegionID(-1).Register())
	assert.Len(t, Regions(), MaxRegions)
}

func TestRegion(t *testing.T) {
	tests := []struct {
		name    string
		raw     uint32
		rb, rl  uint32
		present bool
		base    uint32
		limit   uint32
		size    uint32
	}{
		{"descriptor", 0x00000000, 0x000, 0x000, true, 0x00000000, 0x00000FFF, 0x1000},
		{"bios", 0x0FFF0200, 0x200, 0xFFF, true, 0x00200000, 0x00FFFFFF, 0xE00000},
		{"unused", 0x00007FFF, 0x7FFF, 0x0000, false, 0x07FFF000, 0x00000FFF, 0},
		{"erased", 0xFFFFFFFF, 0x7FFF, 0x7FFF, false, 0x07FFF000, 0x07FFFFFF, 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			r := NewRegion(RegionBIOS, test.raw, test.rb, test.rl)
			assert.Equal(t, test.present, r.Present())
			assert.Equal(t, test.base, r.Base)
			assert.Equal(t, test.limit, r.Limit)
			assert.Equal(t, test.size, r.Size())
		})
	}
}

func TestPresentRegions(t *testing.T) {
	rs := []Region{
		NewRegion(RegionDescriptor, 0, 0, 0),
		NewRegion(RegionBIOS, 0x0FFF0200, 0x200, 0xFFF),
		NewRegion(RegionME, 0x00007FFF, 0x7FFF, 0),
		NewRegion(RegionGbE, 0xFFFFFFFF, 0x7FFF, 0x7FFF),
	}
	got := PresentRegions(rs)
	assert.Len(t, got, 2)
	assert.Equal(t, RegionDescriptor, got[0].ID)
	assert.Equal(t, RegionBIOS, got[1].ID)
	assert.True(t, got[1].Contains(0x00300000))
	assert.False(t, rs[2].Contains(0x07FFF000))
}

func TestProtectedRange(t *testing.T) {
	pr := NewProtectedRange(0, 0x84, 0x8FFF0800, 0x800, 0xFFF, true, false)
	assert.True(t, pr.Meaningful())
	assert.Equal(t, uint32(0x00800000), pr.Base)
	assert.Equal(t, uint32(0x00FFFFFF), pr.Limit)

	// disabled ranges keep the raw decode, without the page fill
	pr = NewProtectedRange(1, 0x88, 0x0FFF0800, 0x800, 0xFFF, false, false)
	assert.False(t, pr.Meaningful())
	assert.Equal(t, uint32(0x00FFF000), pr.Limit)

	bios := NewRegion(RegionBIOS, 0x0FFF0200, 0x200, 0xFFF)
	assert.False(t, pr.Overlaps(bios))
	pr.WriteProtect = true
	assert.True(t, pr.Overlaps(bios))
}

func TestAccessTable(t *testing.T) {
	// CPU: read FD/BIOS/GbE, write BIOS/GbE
	a := DecodeAccess(0x0B, 0x0A, RegionBIOS)
	assert.Equal(t, Access{Read: true, Write: true}, a)
	assert.Equal(t, "RW", a.String())
	a = DecodeAccess(0x0B, 0x0A, RegionDescriptor)
	assert.Equal(t, "R", a.String())
	a = DecodeAccess(0x0B, 0x0A, RegionME)
	assert.Equal(t, "", a.String())

	tbl := AccessTable{}
	tbl.Set(RegionBIOS, MasterME, Access{Read: true})
	tbl.Set(RegionBIOS, MasterCPU, Access{Read: true, Write: true})
	assert.Equal(t, Access{Read: true}, tbl.Lookup(RegionBIOS, MasterME))
	assert.Equal(t, Access{}, tbl.Lookup(RegionME, MasterGbE))
	assert.Equal(t, []Master{MasterCPU, MasterME}, tbl.Masters())
	assert.Equal(t, "Master 7", Master(7).String())
}
