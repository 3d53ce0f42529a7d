package regs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowWidths(t *testing.T) {
	w := NewMemory("mem", 16)

	require.NoError(t, w.Tx([]byte{0x04, 0x00, 0x78, 0x56, 0x34, 0x12}, nil))
	assert.Equal(t, []byte{0x78, 0x56, 0x34, 0x12}, w.Bytes()[4:8])

	r := make([]byte, 2)
	require.NoError(t, w.Tx([]byte{0x06, 0x00}, r))
	assert.Equal(t, []byte{0x34, 0x12}, r)

	r = make([]byte, 1)
	require.NoError(t, w.Tx([]byte{0x05, 0x00}, r))
	assert.Equal(t, []byte{0x56}, r)

	require.NoError(t, w.Tx([]byte{0x08, 0x00, 0xCD, 0xAB}, nil))
	assert.Equal(t, []byte{0xCD, 0xAB}, w.Bytes()[8:10])
}

func TestWindowErrors(t *testing.T) {
	w := NewMemory("mem", 16)

	tests := []struct {
		name string
		w    []byte
		r    []byte
		err  error
	}{
		{"unaligned", []byte{0x01, 0x00}, make([]byte, 4), ErrOutOfWindow},
		{"past end", []byte{0x10, 0x00}, make([]byte, 4), ErrOutOfWindow},
		{"bad read width", []byte{0x00, 0x00}, make([]byte, 3), ErrUnsupportedWidth},
		{"bad write width", []byte{0x00, 0x00, 1, 2, 3}, nil, ErrUnsupportedWidth},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.ErrorIs(t, w.Tx(test.w, test.r), test.err)
		})
	}
	assert.Error(t, w.Tx([]byte{0x00}, nil))
	assert.NoError(t, w.Close())
}
