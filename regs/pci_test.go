package regs

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBDF(t *testing.T) {
	b, err := ParseBDF("00:1f.5")
	require.NoError(t, err)
	assert.Equal(t, BDF{0, 0x1F, 5}, b)
	assert.Equal(t, "00:1f.5", b.String())

	for _, s := range []string{"", "00:1f", "00:20.0", "00:1f.8"} {
		_, err := ParseBDF(s)
		assert.Error(t, err, s)
	}
}

func TestECAMAddress(t *testing.T) {
	assert.Equal(t, uint64(0xE00FD000), ECAMAddress(DefaultECAMBase, BDF{0, 0x1F, 5}))
	assert.Equal(t, uint64(0xE01F8000), ECAMAddress(DefaultECAMBase, BDF{1, 0x1F, 0}))
}

func TestOpenWindows(t *testing.T) {
	l, err := Builtin("spt")
	require.NoError(t, err)

	mapped := map[string]uint64{}
	mapper := func(name string, phys uint64, size int) (*Window, error) {
		mapped[name] = phys
		w := NewMemory(name, size)
		if name == "pci 00:1f.5" {
			binary.LittleEndian.PutUint32(w.Bytes()[0x10:], 0xFE010000)
		}
		return w, nil
	}

	ws, c, err := OpenWindows(l, DefaultECAMBase, mapper)
	require.NoError(t, err)
	defer c.Close()

	assert.Len(t, ws, 2)
	assert.Len(t, mapped, 2, "configuration space is mapped once")
	assert.Equal(t, uint64(0xE00FD000), mapped["pci 00:1f.5"])
	assert.Equal(t, uint64(0xFE010000), mapped["spibar"])
	assert.NotContains(t, ws, GroupDescriptor)
}

func TestOpenWindowsUnassignedBAR(t *testing.T) {
	l, err := Builtin("ich")
	require.NoError(t, err)

	_, _, err = OpenWindows(l, DefaultECAMBase, func(name string, phys uint64, size int) (*Window, error) {
		return NewMemory(name, size), nil
	})
	assert.ErrorContains(t, err, "not assigned")
}
