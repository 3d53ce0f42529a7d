package main

import (
	"fmt"
	"log/slog"

	"github.com/urfave/cli/v2"

	"github.com/gentam/pchspi/flashmap"
	"github.com/gentam/pchspi/regs"
)

var infoCmd = &cli.Command{
	Name:  "info",
	Usage: "print the flash map and protection state",
	Action: func(c *cli.Context) error {
		d, err := openDevice(c)
		if err != nil {
			return exitf(1, "%v", err)
		}
		defer d.Close()

		ls, err := d.LockState()
		if err != nil {
			return exitf(1, "read lock state: %v", err)
		}
		bc, err := d.BIOSControl()
		if err != nil {
			return exitf(1, "read BIOS control: %v", err)
		}
		fmt.Fprintln(stdout, bitState("FLOCKDN", ls.FlashLockDown, true), bitState("FDV", ls.DescriptorValid, true),
			bitState("FDOPSS", ls.DescriptorSecurity, true))
		fmt.Fprintln(stdout, bitState("BLE", bc.LockEnable, true), bitState("BIOSWE", bc.WriteEnable, false),
			bitState("SMM_BWP", bc.SMMWriteProtect, true))

		bios, err := d.ReadBIOSRegion()
		if err != nil {
			return exitf(1, "read BFPR: %v", err)
		}
		regions, err := d.ReadRegions(false)
		if err != nil {
			return exitf(1, "read regions: %v", err)
		}
		prs, err := d.ReadProtectedRanges()
		if err != nil {
			return exitf(1, "read protected ranges: %v", err)
		}
		frap, err := d.ReadAccessPermissions()
		if err != nil {
			return exitf(1, "read FRAP: %v", err)
		}

		fmt.Fprintf(stdout, "BIOS region: %08X-%08X\n\n", bios.Base, bios.Limit)
		fmt.Fprintln(stdout, bold("Region                      Base     Limit    BIOS"))
		for _, r := range regions {
			fmt.Fprintf(stdout, "%s  %-2s\n", r, frap.BIOS(r.ID))
		}
		fmt.Fprintln(stdout)
		for _, pr := range prs {
			if !pr.Meaningful() {
				continue
			}
			fmt.Fprintf(stdout, "PR%d (%02X) %08X: %08X-%08X WP=%t RP=%t\n",
				pr.Index, pr.Offset, pr.Raw, pr.Base, pr.Limit, pr.WriteProtect, pr.ReadProtect)
			if pr.Overlaps(bios) {
				slog.Debug("protected range covers BIOS region", "pr", pr.Index)
			}
		}
		if !anyWriteProtected(prs, bios) && !bc.SMMWriteProtect {
			warnf("BIOS region is not write protected by PRx or SMM_BWP")
		}

		if c.Bool("verbose") {
			if ops, err := d.ReadOpcodeInfo(); err == nil {
				if err := section("opcodes", ops); err != nil {
					return err
				}
			} else {
				warnf("opcode info: %v", err)
			}
			dump, err := d.ReadDescriptorDump()
			if err != nil {
				return exitf(1, "read descriptor: %v", err)
			}
			return section("descriptor (FDOD)", dump)
		}
		return nil
	},
}

func anyWriteProtected(prs []flashmap.ProtectedRange, bios flashmap.Region) bool {
	for _, pr := range prs {
		if pr.WriteProtect && pr.Overlaps(bios) {
			return true
		}
	}
	return false
}

var layoutsCmd = &cli.Command{
	Name:  "layouts",
	Usage: "list builtin register layouts",
	Action: func(c *cli.Context) error {
		for _, name := range regs.Builtins() {
			l, err := regs.Builtin(name)
			if err != nil {
				return exitf(1, "%v", err)
			}
			fmt.Fprintf(stdout, "%-6s %s\n", l.Name, l.Description)
		}
		return nil
	},
}
