package regs

import (
	"fmt"
	"io"
)

// DefaultECAMBase is where most client platforms decode PCI Express
// enhanced configuration space.
const DefaultECAMBase = 0xE0000000

// BDF is a PCI bus/device/function address.
type BDF struct {
	Bus, Device, Function uint8
}

// ParseBDF parses "bb:dd.f" in hexadecimal.
func ParseBDF(s string) (BDF, error) {
	var b BDF
	if _, err := fmt.Sscanf(s, "%x:%x.%x", &b.Bus, &b.Device, &b.Function); err != nil {
		return BDF{}, fmt.Errorf("invalid PCI address %q: %w", s, err)
	}
	if b.Device > 31 || b.Function > 7 {
		return BDF{}, fmt.Errorf("invalid PCI address %q", s)
	}
	return b, nil
}

func (b BDF) String() string {
	return fmt.Sprintf("%02x:%02x.%x", b.Bus, b.Device, b.Function)
}

// ECAMAddress returns the physical address of the 4KB configuration space of b.
func ECAMAddress(ecam uint64, b BDF) uint64 {
	return ecam | uint64(b.Bus)<<20 | uint64(b.Device)<<15 | uint64(b.Function)<<12
}

// Mapper maps physical memory windows.
type Mapper func(name string, phys uint64, size int) (*Window, error)

// OpenWindows maps every group of l that has a PCI location: configuration
// groups through ECAM, BAR groups at the address their BAR decodes to.
// The returned closer unmaps all of them.
func OpenWindows(l *Layout, ecam uint64, mapWindow Mapper) (map[Group]*Window, io.Closer, error) {
	if mapWindow == nil {
		mapWindow = Map
	}
	ws := make(map[Group]*Window)
	closeAll := closers{ws: ws}

	cfgs := make(map[BDF]*Window)
	config := func(b BDF) (*Window, error) {
		if w, ok := cfgs[b]; ok {
			return w, nil
		}
		w, err := mapWindow("pci "+b.String(), ECAMAddress(ecam, b), 0x1000)
		if err != nil {
			return nil, err
		}
		cfgs[b] = w
		closeAll.extra = append(closeAll.extra, w)
		return w, nil
	}

	for g, def := range l.Groups {
		if def.PCI == "" {
			continue
		}
		b, err := ParseBDF(def.PCI)
		if err != nil {
			closeAll.Close()
			return nil, nil, fmt.Errorf("group %s: %w", g, err)
		}
		cfg, err := config(b)
		if err != nil {
			closeAll.Close()
			return nil, nil, fmt.Errorf("group %s: %w", g, err)
		}
		if def.BAR == 0 {
			ws[g] = cfg
			continue
		}

		bar, err := cfg.load(int(def.BAR), 4)
		if err != nil {
			closeAll.Close()
			return nil, nil, fmt.Errorf("group %s: read BAR %#x: %w", g, def.BAR, err)
		}
		mask := def.Mask
		if mask == 0 {
			mask = 0xFFFFFFF0
		}
		base := uint64(bar&mask) + uint64(def.Offset)
		if bar&mask == 0 {
			closeAll.Close()
			return nil, nil, fmt.Errorf("group %s: BAR %#x of %s is not assigned", g, def.BAR, b)
		}
		size := def.Size
		if size == 0 {
			size = 0x1000
		}
		w, err := mapWindow(string(g), base, size)
		if err != nil {
			closeAll.Close()
			return nil, nil, fmt.Errorf("group %s: %w", g, err)
		}
		ws[g] = w
	}
	return ws, closeAll, nil
}

type closers struct {
	ws    map[Group]*Window
	extra []*Window
}

func (c closers) Close() error {
	var first error
	done := make(map[*Window]bool)
	all := append([]*Window{}, c.extra...)
	for _, w := range c.ws {
		all = append(all, w)
	}
	for _, w := range all {
		if done[w] {
			continue
		}
		done[w] = true
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
