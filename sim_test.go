package pchspi

import (
	"encoding/binary"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"periph.io/x/conn/v3"

	"github.com/gentam/pchspi/regs"
)

// simController emulates the hardware-sequencing engine on top of an
// in-memory SPIBAR window. Writing FGO to HSFC runs the cycle against flash
// immediately; SCIP then reads back set for busy more status polls.
type simController struct {
	*regs.Window

	flash    []byte
	busy     int
	fail     map[uint32]bool   // FLAs whose cycles end with FCERR
	jedec    uint32            // FDATA0 after a JEDEC ID cycle
	sfdp     map[uint32]uint32 // SFDP space behind BIOS_PTINX
	sfdpData []uint32          // FDATA after an SFDP cycle
	observed map[uint32]uint32 // FDOD by FDOC value

	cycles  []Command
	pending int
	faulted bool

	hsfs, hsfc, faddr, fdata0 uint16
	ptinx, ptdata, fdoc, fdod uint16
	hasPT                     bool
}

const simFDV = 1 << 14

func newSim(t *testing.T, l *regs.Layout, flashSize int) *simController {
	t.Helper()
	def := l.Groups[regs.GroupSPIBAR]
	s := &simController{
		Window:   regs.NewMemory("spibar", max(def.Size, 0x100)),
		flash:    make([]byte, flashSize),
		fail:     map[uint32]bool{},
		sfdp:     map[uint32]uint32{},
		observed: map[uint32]uint32{},
	}
	for i := range s.flash {
		s.flash[i] = 0xFF
	}
	off := func(name string) uint16 {
		r, err := l.Lookup(name)
		require.NoError(t, err)
		return r.Offset
	}
	s.hsfs, s.hsfc, s.faddr, s.fdata0 = off("HSFS"), off("HSFC"), off("FADDR"), off("FDATA0")
	s.fdoc, s.fdod = off("FDOC"), off("FDOD")
	if l.RegisterExists("BIOS_PTINX") {
		s.hasPT = true
		s.ptinx, s.ptdata = off("BIOS_PTINX"), off("BIOS_PTDATA")
	}
	s.put(s.hsfs, simFDV)
	return s
}

func (s *simController) put(off uint16, v uint32) {
	binary.LittleEndian.PutUint32(s.Bytes()[off:], v)
}

func (s *simController) get(off uint16) uint32 {
	return binary.LittleEndian.Uint32(s.Bytes()[off:])
}

func (s *simController) Tx(w, r []byte) error {
	off := binary.LittleEndian.Uint16(w)
	mem := s.Bytes()
	if len(r) != 0 {
		if off == s.hsfs && len(r) == 1 {
			st := mem[s.hsfs]
			if s.faulted {
				st |= byte(statusFCERR)
			}
			if s.pending > 0 {
				s.pending--
				st |= byte(statusSCIP)
			}
			r[0] = st
			return nil
		}
		return s.Window.Tx(w, r)
	}

	data := w[2:]
	switch {
	case off == s.hsfs && len(data) == 1:
		mem[s.hsfs] &^= data[0] & byte(statusClear)
		return nil
	case off == s.hsfc && len(data) == 1 && data[0]&flashCycleGo != 0:
		s.run(CycleKind(data[0]>>1&0xF), s.get(s.faddr), mem[s.hsfc+1]&0x3F)
		return nil
	case s.hasPT && off == s.ptinx:
		if err := s.Window.Tx(w, r); err != nil {
			return err
		}
		s.put(s.ptdata, s.sfdp[binary.LittleEndian.Uint32(data)])
		return nil
	case off == s.fdoc:
		if err := s.Window.Tx(w, r); err != nil {
			return err
		}
		s.put(s.fdod, s.observed[binary.LittleEndian.Uint32(data)])
		return nil
	}
	return s.Window.Tx(w, r)
}

func (s *simController) run(kind CycleKind, addr uint32, dbc uint8) {
	s.cycles = append(s.cycles, Command{Kind: kind, Address: addr, DBC: dbc})
	s.pending = s.busy
	s.faulted = s.fail[addr]
	s.Bytes()[s.hsfs] |= byte(statusFDONE)
	if s.faulted {
		return
	}

	window := s.Bytes()[s.fdata0 : s.fdata0+dataSlots*4]
	n := int(dbc) + 1
	switch kind {
	case CycleRead:
		copy(window, s.flash[addr:int(addr)+n])
	case CycleWrite:
		for i := range n {
			s.flash[int(addr)+i] &= window[i]
		}
	case CycleErase:
		block := addr &^ (EraseBlockSize - 1)
		for i := range EraseBlockSize {
			s.flash[block+uint32(i)] = 0xFF
		}
	case CycleJEDECID:
		binary.LittleEndian.PutUint32(window, s.jedec)
	case CycleSFDP:
		for i, v := range s.sfdpData {
			binary.LittleEndian.PutUint32(window[i*4:], v)
		}
	}
}

// bursts returns the DBC of every recorded cycle of kind.
func (s *simController) bursts(kind CycleKind) []uint8 {
	var dbc []uint8
	for _, c := range s.cycles {
		if c.Kind == kind {
			dbc = append(dbc, c.DBC)
		}
	}
	return dbc
}

type testRig struct {
	*Controller
	sim   *simController
	cfg   *regs.Window
	port  *regs.Port
	slept []time.Duration
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRig(t *testing.T, layout string) *testRig {
	t.Helper()
	l, err := regs.Builtin(layout)
	require.NoError(t, err)

	rig := &testRig{
		sim: newSim(t, l, 1<<20),
		cfg: regs.NewMemory("pcicfg", 0x1000),
	}
	rig.port = regs.NewPort(l, map[regs.Group]conn.Conn{
		regs.GroupSPIBAR: rig.sim,
		regs.GroupPCICfg: rig.cfg,
	})
	rig.Controller, err = New(rig.port, WithLogger(discardLogger()))
	require.NoError(t, err)
	rig.Controller.sleep = func(d time.Duration) { rig.slept = append(rig.slept, d) }
	return rig
}
