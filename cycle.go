package pchspi

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CycleKind is the FCYCLE encoding of a hardware-sequenced cycle.
type CycleKind uint8

// [PCH-SPI|HSFC: FCYCLE]
const (
	CycleRead    CycleKind = 0
	CycleWrite   CycleKind = 2
	CycleErase   CycleKind = 3 // 4KB block erase
	CycleSFDP    CycleKind = 5
	CycleJEDECID CycleKind = 6
)

func (k CycleKind) String() string {
	switch k {
	case CycleRead:
		return "read"
	case CycleWrite:
		return "write"
	case CycleErase:
		return "erase"
	case CycleSFDP:
		return "SFDP"
	case CycleJEDECID:
		return "JEDEC ID"
	}
	return fmt.Sprintf("cycle %d", uint8(k))
}

const flashCycleGo = 1 << 0 // HSFC.FGO

// control returns the HSFC low byte starting the cycle.
func (k CycleKind) control() uint8 {
	return uint8(k)<<1 | flashCycleGo
}

// faddrMask keeps the 27 address bits FADDR implements.
const faddrMask = 0x07FFFFFF

// Command is a single hardware-sequenced flash cycle.
type Command struct {
	Kind    CycleKind
	Address uint32
	DBC     uint8 // data byte count minus one, ignored by erase
}

// Status is the low byte of HSFS.
//
//	Bits| [PCH-SPI|HSFS]
//	----+-----------------------------
//	5   | SCIP: SPI cycle in progress
//	2   | AEL: access error log
//	1   | FCERR: flash cycle error
//	0   | FDONE: flash cycle done
type Status byte

const (
	statusFDONE Status = 1 << 0
	statusFCERR Status = 1 << 1
	statusAEL   Status = 1 << 2
	statusSCIP  Status = 1 << 5

	// statusClear acknowledges a finished cycle, write-1-to-clear.
	statusClear = statusAEL | statusFCERR | statusFDONE
)

func (s Status) InProgress() bool  { return s&statusSCIP != 0 }
func (s Status) AccessError() bool { return s&statusAEL != 0 }
func (s Status) CycleError() bool  { return s&statusFCERR != 0 }
func (s Status) Done() bool        { return s&statusFDONE != 0 }

func (s Status) String() string {
	b := fmt.Sprintf("%02X", byte(s))
	var f []string
	if s.InProgress() {
		f = append(f, "SCIP")
	}
	if s.AccessError() {
		f = append(f, "AEL")
	}
	if s.CycleError() {
		f = append(f, "FCERR")
	}
	if s.Done() {
		f = append(f, "FDONE")
	}
	if len(f) == 0 {
		return b
	}
	return b + " " + strings.Join(f, ",")
}

const (
	pollLimit   = 1000
	settleDelay = 100 * time.Millisecond
)

func (c *Controller) readStatus() (Status, error) {
	v, err := c.port.ReadMMIO(c.hsfs, 1)
	if err != nil {
		return 0, fmt.Errorf("read HSFS: %w", err)
	}
	return Status(v), nil
}

// waitDone polls HSFS until SCIP clears, giving the cycle one extra
// settleDelay before giving up. A finished cycle is acknowledged and its
// error bits checked; an unfinished one is left untouched.
func (c *Controller) waitDone() (Status, error) {
	var (
		st  Status
		err error
	)
	for range pollLimit {
		if st, err = c.readStatus(); err != nil {
			return st, err
		}
		if !st.InProgress() {
			break
		}
	}
	if st.InProgress() {
		c.log.Debug("SPI cycle still in progress, waiting", "delay", settleDelay)
		c.sleep(settleDelay)
		if st, err = c.readStatus(); err != nil {
			return st, err
		}
	}
	if st.InProgress() {
		return st, ErrCycleTimeout
	}

	if err := c.port.WriteMMIO(c.hsfs, 1, uint32(statusClear)); err != nil {
		return st, fmt.Errorf("clear HSFS: %w", err)
	}
	if st, err = c.readStatus(); err != nil {
		return st, err
	}
	c.log.Debug("SPI cycle done", "hsfs", st)
	if st.AccessError() || st.CycleError() {
		return st, ErrCycleFailed
	}
	return st, nil
}

// waitReady makes sure no cycle is pending before an operation starts.
func (c *Controller) waitReady() error {
	if _, err := c.waitDone(); err != nil {
		c.log.Error("SPI controller not ready", "err", err)
		return fmt.Errorf("SPI controller not ready: %w", err)
	}
	return nil
}

// executeCycle issues cmd and waits for it to complete.
// The caller holds c.mu.
func (c *Controller) executeCycle(cmd Command) error {
	addr := cmd.Address & faddrMask
	c.log.Debug("send SPI cycle", "cycle", cmd.Kind, "addr", fmt.Sprintf("%#08x", addr), "dbc", cmd.DBC)

	if err := c.port.WriteMMIO(c.faddr, 4, addr); err != nil {
		return fmt.Errorf("write FADDR: %w", err)
	}
	if cmd.Kind != CycleErase {
		if err := c.port.WriteMMIO(c.hsfc+1, 1, uint32(cmd.DBC)); err != nil {
			return fmt.Errorf("write HSFC.FDBC: %w", err)
		}
	}
	if err := c.port.WriteMMIO(c.hsfc, 1, uint32(cmd.Kind.control())); err != nil {
		return fmt.Errorf("write HSFC: %w", err)
	}

	st, err := c.waitDone()
	if errors.Is(err, ErrCycleTimeout) || errors.Is(err, ErrCycleFailed) {
		c.log.Warn("SPI cycle not done", "cycle", cmd.Kind, "addr", fmt.Sprintf("%#08x", addr), "hsfs", st)
		return &CycleError{Kind: cmd.Kind, Address: addr, Status: st, Err: err}
	}
	return err
}
