package pchspi

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// RegisterPort is the controller's view of chipset registers, implemented
// by *regs.Port.
type RegisterPort interface {
	ReadRegister(name string) (uint32, error)
	WriteRegister(name string, v uint32) error
	Field(reg string, raw uint32, field string) (uint32, error)
	HasField(reg, field string) bool
	RegisterExists(name string) bool
	Offset(name string) (uint16, error)

	// Raw access to the SPI controller window, width 1, 2 or 4.
	ReadMMIO(off uint16, width int) (uint32, error)
	WriteMMIO(off uint16, width int, v uint32) error

	Control(name string) (uint32, error)
	SetControl(name string, v uint32) error
}

// dataSlots is the size of the FDATA window in dwords.
const dataSlots = 16

// Controller drives the SPI flash controller of a PCH through hardware
// sequencing.
//
// All operations are serialized: the hardware has a single cycle slot and a
// single data window.
type Controller struct {
	mu   sync.Mutex
	port RegisterPort
	log  *slog.Logger
	ids  IDTable

	progress func(Progress)
	sleep    func(time.Duration)

	hsfs, hsfc, faddr uint16
	fdata             [dataSlots]uint16
}

type Option func(*Controller)

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithIDTable replaces the table JEDEC IDs are resolved against.
func WithIDTable(t IDTable) Option {
	return func(c *Controller) { c.ids = t }
}

// WithProgress registers a callback invoked after every burst of Read,
// Write and EraseRange.
func WithProgress(f func(Progress)) Option {
	return func(c *Controller) { c.progress = f }
}

// New returns a controller using port. The cycle registers are resolved once
// here; a layout missing any of them is rejected.
func New(port RegisterPort, opts ...Option) (*Controller, error) {
	c := &Controller{
		port:  port,
		log:   slog.Default(),
		ids:   DefaultIDTable,
		sleep: time.Sleep,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	offset := func(name string) uint16 {
		if err != nil {
			return 0
		}
		var off uint16
		off, err = port.Offset(name)
		return off
	}
	c.hsfs = offset("HSFS")
	c.hsfc = offset("HSFC")
	c.faddr = offset("FADDR")
	for i := range c.fdata {
		c.fdata[i] = offset(fmt.Sprintf("FDATA%d", i))
	}
	if err != nil {
		return nil, fmt.Errorf("SPI controller registers: %w", err)
	}

	c.log.Debug("SPI controller registers",
		"hsfs", fmt.Sprintf("%#04x", c.hsfs), "hsfc", fmt.Sprintf("%#04x", c.hsfc),
		"faddr", fmt.Sprintf("%#04x", c.faddr), "fdata0", fmt.Sprintf("%#04x", c.fdata[0]))
	return c, nil
}

// checkHardwareSequencing verifies the descriptor is valid. It is done
// before every operation; a failure aborts the session.
func (c *Controller) checkHardwareSequencing() error {
	raw, err := c.port.ReadRegister("HSFS")
	if err != nil {
		return err
	}
	fdv, err := c.port.Field("HSFS", raw, "FDV")
	if err != nil {
		return err
	}
	if fdv == 0 {
		c.log.Error("HSFS.FDV is 0, hardware sequencing is disabled")
		return ErrHardwareSequencingDisabled
	}
	return nil
}

func (c *Controller) report(p Progress) {
	if c.progress != nil {
		c.progress(p)
	}
}
