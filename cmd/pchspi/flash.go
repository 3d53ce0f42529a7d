package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/gentam/pchspi"
)

var readCmd = &cli.Command{
	Name:  "read",
	Usage: "read flash into a file or as a hex dump",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Value: "0", Usage: "flash linear address"},
		&cli.StringFlag{Name: "length", Aliases: []string{"n"}, Value: "0x100", Usage: "number of bytes to read"},
		&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "output file (default: hexdump)"},
	},
	Action: func(c *cli.Context) error {
		addr, err := parseAddress(c, "address")
		if err != nil {
			return exitf(2, "%v", err)
		}
		n, err := parseAddress(c, "length")
		if err != nil {
			return exitf(2, "%v", err)
		}
		d, err := openDevice(c, pchspi.WithProgress(progress))
		if err != nil {
			return exitf(1, "%v", err)
		}
		defer d.Close()

		out := c.String("output")
		if out == "" {
			data, err := d.Read(addr, n)
			if err != nil {
				warnf("read flash: %v", err)
			}
			fmt.Fprint(stdout, hex.Dump(data))
			return nil
		}

		f, err := os.Create(out)
		if err != nil {
			return exitf(1, "create output: %v", err)
		}
		defer f.Close()
		if err := d.ReadTo(f, addr, n); err != nil {
			return exitf(1, "read flash: %v", err)
		}
		return f.Close()
	},
}

var writeCmd = &cli.Command{
	Name:  "write",
	Usage: "program a file into flash",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Value: "0", Usage: "flash linear address"},
		&cli.StringFlag{Name: "file", Aliases: []string{"f"}, Required: true, Usage: "input file"},
		&cli.BoolFlag{Name: "erase", Aliases: []string{"e"}, Usage: "erase the target blocks first"},
		yesFlag,
	},
	Action: func(c *cli.Context) error {
		addr, err := parseAddress(c, "address")
		if err != nil {
			return exitf(2, "%v", err)
		}
		f, err := os.Open(c.String("file"))
		if err != nil {
			return exitf(1, "open input: %v", err)
		}
		defer f.Close()
		st, err := f.Stat()
		if err != nil {
			return exitf(1, "%v", err)
		}
		size := uint32(st.Size())

		ok, err := confirm(c, fmt.Sprintf("write %d bytes at %#x?", size, addr))
		if err != nil || !ok {
			return exitf(1, "aborted")
		}

		d, err := openDevice(c, pchspi.WithProgress(progress))
		if err != nil {
			return exitf(1, "%v", err)
		}
		defer d.Close()

		if c.Bool("erase") {
			base := addr &^ (pchspi.EraseBlockSize - 1)
			end := (addr + size + pchspi.EraseBlockSize - 1) &^ (pchspi.EraseBlockSize - 1)
			if err := d.EraseRange(base, end-base); err != nil {
				return exitf(1, "erase flash: %v", err)
			}
		}
		n, err := d.WriteFrom(addr, f)
		if err != nil {
			return exitf(1, "write flash after %d bytes: %v", n, err)
		}
		fmt.Fprintf(stdout, "%s %d bytes at %#x\n", green("wrote"), n, addr)
		return nil
	},
}

var eraseCmd = &cli.Command{
	Name:  "erase",
	Usage: "erase 4KB blocks",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "address", Aliases: []string{"a"}, Required: true, Usage: "first block address"},
		&cli.StringFlag{Name: "length", Aliases: []string{"n"}, Value: "0x1000", Usage: "number of bytes, multiple of 4KB"},
		yesFlag,
	},
	Action: func(c *cli.Context) error {
		addr, err := parseAddress(c, "address")
		if err != nil {
			return exitf(2, "%v", err)
		}
		n, err := parseAddress(c, "length")
		if err != nil {
			return exitf(2, "%v", err)
		}
		ok, err := confirm(c, fmt.Sprintf("erase %#x bytes at %#x?", n, addr))
		if err != nil || !ok {
			return exitf(1, "aborted")
		}

		d, err := openDevice(c, pchspi.WithProgress(progress))
		if err != nil {
			return exitf(1, "%v", err)
		}
		defer d.Close()
		if err := d.EraseRange(addr, n); err != nil {
			return exitf(1, "erase flash: %v", err)
		}
		return nil
	},
}

var jedecCmd = &cli.Command{
	Name:  "jedec",
	Usage: "print the JEDEC ID of the flash part",
	Action: func(c *cli.Context) error {
		d, err := openDevice(c)
		if err != nil {
			return exitf(1, "%v", err)
		}
		defer d.Close()

		id, err := d.IdentifyFlash()
		if err != nil {
			return exitf(1, "read JEDEC ID: %v", err)
		}
		fmt.Fprintf(stdout, "%s\t%s\t%s\n", id.ID, id.Manufacturer, id.Part)
		return nil
	},
}

var sfdpCmd = &cli.Command{
	Name:  "sfdp",
	Usage: "dump the SFDP headers and basic parameter table",
	Action: func(c *cli.Context) error {
		d, err := openDevice(c)
		if err != nil {
			return exitf(1, "%v", err)
		}
		defer d.Close()

		comps, err := d.DiscoverSFDP()
		if err != nil {
			errorf("SFDP: %v", err)
		}
		for _, comp := range comps {
			if comp.Err != nil {
				warnf("component %d: %v", comp.Index, comp.Err)
			}
			if err := section(fmt.Sprintf("component %d", comp.Index), comp); err != nil {
				return err
			}
		}
		if err != nil {
			return cli.Exit("", 1)
		}
		return nil
	},
}
