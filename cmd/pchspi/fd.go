package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gentam/pchspi"
	"github.com/gentam/pchspi/descriptor"
	"github.com/gentam/pchspi/flashmap"
)

var fdCmd = &cli.Command{
	Name:      "fd",
	Usage:     "parse the flash descriptor of an image file or of the flash",
	ArgsUsage: "[image]",
	Action: func(c *cli.Context) error {
		l, err := loadLayout(c.String("layout"))
		if err != nil {
			return exitf(1, "%v", err)
		}

		var fd *descriptor.Descriptor
		if c.NArg() > 0 {
			image, err := os.ReadFile(c.Args().First())
			if err != nil {
				return exitf(1, "%v", err)
			}
			fd, err = descriptor.Parse(image, l, descriptor.WithLogger(slog.Default()))
			if err != nil {
				return exitf(1, "parse descriptor: %v", err)
			}
		} else {
			d, err := openDevice(c)
			if err != nil {
				return exitf(1, "%v", err)
			}
			defer d.Close()
			if fd, err = d.ReadFlashDescriptor(); err != nil {
				return exitf(1, "read descriptor: %v", err)
			}
		}

		for _, w := range fd.Warnings {
			warnf("%s", w)
		}
		printDescriptor(fd)
		return nil
	},
}

func printDescriptor(fd *descriptor.Descriptor) {
	m := fd.Map
	fmt.Fprintf(stdout, "%s at %#x\n", bold("Flash descriptor"), fd.Offset)
	fmt.Fprintf(stdout, "FLMAP0=%08X FLMAP1=%08X FLMAP2=%08X\n", m.FLMAP0, m.FLMAP1, m.FLMAP2)
	fmt.Fprintf(stdout, "components: %d at %#x, regions: %d at %#x, masters: %d at %#x\n\n",
		m.NumComponents, m.ComponentBase, m.NumRegions, m.RegionBase, m.NumMasters, m.MasterBase)

	fmt.Fprintln(stdout, bold("Regions"))
	for _, r := range fd.Regions {
		fmt.Fprintln(stdout, r)
	}

	fmt.Fprintln(stdout)
	fmt.Fprint(stdout, bold("Access  "))
	masters := fd.Access.Masters()
	for _, mst := range masters {
		fmt.Fprintf(stdout, "%-5s", mst)
	}
	fmt.Fprintln(stdout)
	for _, r := range flashmap.PresentRegions(fd.Regions) {
		fmt.Fprintf(stdout, "%-8.8s", r.Name)
		for _, mst := range masters {
			fmt.Fprintf(stdout, "%-5s", fd.Access.Lookup(r.ID, mst))
		}
		fmt.Fprintln(stdout)
	}
	fmt.Fprintf(stdout, "\nVSCC table: %d entries at %#x\n", fd.UpperMap.VSCCLength, fd.UpperMap.VSCCBase)
}

var wpCmd = &cli.Command{
	Name:  "wp",
	Usage: "disable BIOS write protection (set BIOSWE)",
	Flags: []cli.Flag{yesFlag},
	Action: func(c *cli.Context) error {
		d, err := openDevice(c)
		if err != nil {
			return exitf(1, "%v", err)
		}
		defer d.Close()

		bc, err := d.BIOSControl()
		if err != nil {
			return exitf(1, "read BIOS control: %v", err)
		}
		fmt.Fprintln(stdout, bitState("BLE", bc.LockEnable, true), bitState("BIOSWE", bc.WriteEnable, false),
			bitState("SMM_BWP", bc.SMMWriteProtect, true))
		if !bc.WriteEnable {
			ok, err := confirm(c, "set BIOSWE?")
			if err != nil || !ok {
				return exitf(1, "aborted")
			}
		}

		ok, err := d.DisableBIOSWriteProtection()
		if errors.Is(err, pchspi.ErrProtectionStateUnverified) {
			return exitf(3, "BIOSWE did not stick, BLE=%d: %v", map[bool]int{false: 0, true: 1}[bc.LockEnable], err)
		}
		if err != nil {
			return exitf(1, "%v", err)
		}
		if ok && bc.SMMWriteProtect {
			warnf("SMM_BWP is set, writes may still be blocked outside SMM")
		}
		fmt.Fprintln(stdout, green("BIOS write protection is disabled"))
		return nil
	},
}
