package pchspi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gentam/pchspi/flashmap"
)

func (rig *testRig) set(t *testing.T, values map[string]uint32) {
	t.Helper()
	for name, v := range values {
		require.NoError(t, rig.port.WriteRegister(name, v))
	}
}

func TestReadRegions(t *testing.T) {
	rig := newRig(t, "spt")
	values := map[string]uint32{
		"FREG0_FLASHD": 0x00000000,
		"FREG1_BIOS":   0x0FFF0200,
		"FREG2_ME":     0x01FF0001,
	}
	for _, id := range flashmap.Regions()[3:] {
		values[id.Register()] = 0x00007FFF
	}
	rig.set(t, values)

	bios, ok, err := rig.ReadRegion(flashmap.RegionBIOS)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, flashmap.Region{ID: flashmap.RegionBIOS, Name: "BIOS", Base: 0x200000, Limit: 0xFFFFFF, Raw: 0x0FFF0200}, bios)

	all, err := rig.ReadRegions(true)
	require.NoError(t, err)
	assert.Len(t, all, flashmap.MaxRegions)

	present, err := rig.ReadRegions(false)
	require.NoError(t, err)
	require.Len(t, present, 3)
	assert.Equal(t, flashmap.RegionME, present[2].ID)
	assert.Equal(t, uint32(0x1FFFFF), present[2].Limit)
	assert.Equal(t, uint32(0x1000), present[0].Size())
}

func TestReadRegionsLegacy(t *testing.T) {
	rig := newRig(t, "ich")

	_, ok, err := rig.ReadRegion(flashmap.RegionEC)
	require.NoError(t, err)
	assert.False(t, ok, "ich has five region registers")

	all, err := rig.ReadRegions(true)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestReadProtectedRange(t *testing.T) {
	rig := newRig(t, "spt")
	rig.set(t, map[string]uint32{
		"PR0": 1<<31 | 0x0FF<<16 | 0x0F0, // write protected
		"PR1": 0x00050003,                // disabled
		"PR2": 1<<15 | 0x002<<16 | 0x001, // read protected
	})

	tests := []struct {
		index int
		want  flashmap.ProtectedRange
	}{
		{0, flashmap.ProtectedRange{Index: 0, Offset: 0x84, Raw: 0x80FF00F0, Base: 0xF0000, Limit: 0xFFFFF, WriteProtect: true}},
		{1, flashmap.ProtectedRange{Index: 1, Offset: 0x88, Raw: 0x00050003, Base: 0x3000, Limit: 0x5000}},
		{2, flashmap.ProtectedRange{Index: 2, Offset: 0x8C, Raw: 0x00028001, Base: 0x1000, Limit: 0x2FFF, ReadProtect: true}},
	}
	for _, test := range tests {
		pr, err := rig.ReadProtectedRange(test.index)
		require.NoError(t, err)
		assert.Equal(t, test.want, pr)
	}

	prs, err := rig.ReadProtectedRanges()
	require.NoError(t, err)
	assert.Len(t, prs, flashmap.MaxProtectedRanges)
	assert.False(t, prs[1].Meaningful())

	for _, i := range []int{-1, flashmap.MaxProtectedRanges} {
		_, err := rig.ReadProtectedRange(i)
		assert.ErrorIs(t, err, ErrInvalidProtectedRange)
	}
}

func TestReadBIOSRegion(t *testing.T) {
	rig := newRig(t, "spt")
	rig.set(t, map[string]uint32{"BFPR": 0x0FFF0200})

	r, err := rig.ReadBIOSRegion()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x200000), r.Base)
	assert.Equal(t, uint32(0xFFFFFF), r.Limit)
}

func TestReadAccessPermissions(t *testing.T) {
	rig := newRig(t, "spt")
	rig.set(t, map[string]uint32{"FRAP": 0x00040A0B})

	p, err := rig.ReadAccessPermissions()
	require.NoError(t, err)
	assert.Equal(t, AccessPermissions{Raw: 0x00040A0B, BRRA: 0x0B, BRWA: 0x0A, BMRAG: 0x04}, p)

	tests := []struct {
		id    flashmap.RegionID
		bios  flashmap.Access
		grant flashmap.Access
	}{
		{flashmap.RegionDescriptor, flashmap.Access{Read: true}, flashmap.Access{}},
		{flashmap.RegionBIOS, flashmap.Access{Read: true, Write: true}, flashmap.Access{}},
		{flashmap.RegionME, flashmap.Access{}, flashmap.Access{Read: true}},
		{flashmap.RegionGbE, flashmap.Access{Read: true, Write: true}, flashmap.Access{}},
	}
	for _, test := range tests {
		t.Run(test.id.String(), func(t *testing.T) {
			assert.Equal(t, test.bios, p.BIOS(test.id))
			assert.Equal(t, test.grant, p.Grant(test.id))
		})
	}
}
