package pchspi

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/conntest"

	"github.com/gentam/pchspi/regs"
)

func TestCycleKind(t *testing.T) {
	tests := []struct {
		kind    CycleKind
		control uint8
		name    string
	}{
		{CycleRead, 0x01, "read"},
		{CycleWrite, 0x05, "write"},
		{CycleErase, 0x07, "erase"},
		{CycleSFDP, 0x0B, "SFDP"},
		{CycleJEDECID, 0x0D, "JEDEC ID"},
		{CycleKind(7), 0x0F, "cycle 7"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.control, test.kind.control())
			assert.Equal(t, test.name, test.kind.String())
		})
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		st   Status
		want string
	}{
		{0x00, "00"},
		{0x01, "01 FDONE"},
		{0x21, "21 SCIP,FDONE"},
		{0x07, "07 AEL,FCERR,FDONE"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, test.st.String())
	}
}

// TestExecuteCycleTimeout replays the exact register traffic of a cycle that
// never completes: the cycle is issued, SCIP is polled pollLimit times,
// sampled once more after the settle delay and the status is never cleared.
func TestExecuteCycleTimeout(t *testing.T) {
	l, err := regs.Builtin("spt")
	require.NoError(t, err)

	busy := conntest.IO{W: []byte{0x04, 0x00}, R: []byte{byte(statusSCIP)}}
	ops := []conntest.IO{
		{W: []byte{0x08, 0x00, 0x40, 0x10, 0x00, 0x00}}, // FADDR
		{W: []byte{0x07, 0x00, 0x3F}},                   // HSFC.FDBC
		{W: []byte{0x06, 0x00, 0x01}},                   // HSFC: read, FGO
	}
	for range pollLimit + 1 {
		ops = append(ops, busy)
	}
	pb := &conntest.Playback{Ops: ops, D: conn.Half, DontPanic: true}

	c, err := New(regs.NewPort(l, map[regs.Group]conn.Conn{regs.GroupSPIBAR: pb}), WithLogger(discardLogger()))
	require.NoError(t, err)
	var sleptAt []int
	c.sleep = func(d time.Duration) {
		assert.Equal(t, settleDelay, d)
		sleptAt = append(sleptAt, pb.Count)
	}

	err = c.executeCycle(Command{Kind: CycleRead, Address: 0x1040, DBC: 0x3F})
	require.ErrorIs(t, err, ErrCycleTimeout)
	var cerr *CycleError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, uint32(0x1040), cerr.Address)
	assert.True(t, cerr.Status.InProgress())

	assert.Equal(t, []int{3 + pollLimit}, sleptAt, "one sleep after the last poll")
	assert.NoError(t, pb.Close(), "no write after the last status read")
}

func TestExecuteCycleErase(t *testing.T) {
	l, err := regs.Builtin("spt")
	require.NoError(t, err)

	pb := &conntest.Playback{
		D: conn.Half,
		Ops: []conntest.IO{
			{W: []byte{0x08, 0x00, 0x00, 0x20, 0x00, 0x00}},
			{W: []byte{0x06, 0x00, 0x07}}, // no FDBC for erase
			{W: []byte{0x04, 0x00}, R: []byte{byte(statusFDONE)}},
			{W: []byte{0x04, 0x00, byte(statusClear)}},
			{W: []byte{0x04, 0x00}, R: []byte{0x00}},
		},
	}
	c, err := New(regs.NewPort(l, map[regs.Group]conn.Conn{regs.GroupSPIBAR: pb}), WithLogger(discardLogger()))
	require.NoError(t, err)

	require.NoError(t, c.executeCycle(Command{Kind: CycleErase, Address: 0xF8002000}))
	assert.NoError(t, pb.Close())
}

func TestWaitDone(t *testing.T) {
	tests := []struct {
		name    string
		busy    int
		faulted bool
		slept   int
		wantErr error
	}{
		{name: "idle"},
		{name: "busy", busy: pollLimit - 1},
		{name: "settles after delay", busy: pollLimit, slept: 1},
		{name: "timeout", busy: pollLimit + 1, slept: 1, wantErr: ErrCycleTimeout},
		{name: "cycle error", faulted: true, wantErr: ErrCycleFailed},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			rig := newRig(t, "spt")
			rig.sim.pending = test.busy
			rig.sim.faulted = test.faulted
			rig.sim.Bytes()[rig.sim.hsfs] |= byte(statusFDONE)

			_, err := rig.waitDone()
			assert.ErrorIs(t, err, test.wantErr)
			assert.Len(t, rig.slept, test.slept)
			if test.wantErr != ErrCycleTimeout {
				assert.False(t, rig.sim.Bytes()[rig.sim.hsfs]&byte(statusFDONE) != 0, "FDONE acknowledged")
			}
		})
	}
}

func TestHardwareSequencingDisabled(t *testing.T) {
	rig := newRig(t, "spt")
	rig.sim.put(rig.sim.hsfs, 0)

	_, err := rig.Read(0, 16)
	assert.ErrorIs(t, err, ErrHardwareSequencingDisabled)
	assert.ErrorIs(t, rig.Write(0, []byte{1}), ErrHardwareSequencingDisabled)
	assert.ErrorIs(t, rig.Erase(0), ErrHardwareSequencingDisabled)
	_, err = rig.ReadJEDECID()
	assert.ErrorIs(t, err, ErrHardwareSequencingDisabled)
	assert.Empty(t, rig.sim.cycles)
}
