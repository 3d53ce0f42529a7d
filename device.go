package pchspi

import (
	"errors"
	"fmt"
	"io"

	"periph.io/x/conn/v3"

	"github.com/gentam/pchspi/regs"
)

// Device is the SPI flash controller of the running platform, reached
// through /dev/mem.
type Device struct {
	*Controller
	Layout *regs.Layout
	Port   *regs.Port

	windows io.Closer
}

// Open maps the register windows of layout and attaches a controller to
// them. ecam is the physical base of PCI Express configuration space.
func Open(layout *regs.Layout, ecam uint64, opts ...Option) (*Device, error) {
	return open(layout, ecam, regs.Map, opts...)
}

func open(layout *regs.Layout, ecam uint64, mapWindow regs.Mapper, opts ...Option) (*Device, error) {
	ws, closer, err := regs.OpenWindows(layout, ecam, mapWindow)
	if err != nil {
		return nil, fmt.Errorf("map %s registers: %w", layout.Name, err)
	}

	conns := make(map[regs.Group]conn.Conn, len(ws))
	for g, w := range ws {
		conns[g] = w
	}
	port := regs.NewPort(layout, conns)

	c, err := New(port, opts...)
	if err != nil {
		return nil, errors.Join(err, closer.Close())
	}
	return &Device{Controller: c, Layout: layout, Port: port, windows: closer}, nil
}

// Close unmaps the register windows.
func (d *Device) Close() error {
	return d.windows.Close()
}
