// Command pchspi inspects and programs the SPI flash of the running machine
// through the chipset's hardware-sequencing controller.
package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	chlog "github.com/charmbracelet/log"
	"github.com/muesli/termenv"
	"github.com/urfave/cli/v2"

	"github.com/gentam/pchspi"
	"github.com/gentam/pchspi/regs"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	app := cli.NewApp()
	app.Name = "pchspi"
	app.Version = version
	app.Usage = "read, write and inspect SPI flash through the PCH SPI controller"
	app.EnableBashCompletion = true
	cli.VersionFlag = &cli.BoolFlag{Name: "version", Aliases: []string{"V"}, Usage: "print the version"}
	app.Flags = []cli.Flag{
		&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "enable debug logging"},
		&cli.StringFlag{
			Name:    "layout",
			Aliases: []string{"l"},
			Value:   "spt",
			Usage:   fmt.Sprintf("register layout: one of %v or a YAML file", regs.Builtins()),
		},
		&cli.StringFlag{
			Name:  "ecam",
			Value: fmt.Sprintf("%#x", regs.DefaultECAMBase),
			Usage: "physical base of PCI Express configuration space",
		},
	}
	app.Before = func(c *cli.Context) error {
		charm := chlog.NewWithOptions(os.Stderr, chlog.Options{
			ReportTimestamp: true,
			TimeFormat:      time.DateTime,
			Prefix:          "pchspi",
		})
		charm.SetColorProfile(termenv.TrueColor)
		charm.SetLevel(chlog.InfoLevel)
		if c.Bool("verbose") {
			charm.SetLevel(chlog.DebugLevel)
			charm.SetReportCaller(true)
		}
		slog.SetDefault(slog.New(charm))
		return nil
	}
	app.Commands = cli.Commands{
		infoCmd,
		readCmd,
		writeCmd,
		eraseCmd,
		jedecCmd,
		sfdpCmd,
		fdCmd,
		wpCmd,
		layoutsCmd,
	}

	if err := app.Run(args); err != nil {
		var exerr cli.ExitCoder
		if errors.As(err, &exerr) {
			return exerr.ExitCode()
		}
		errorf("%v", err)
		return 1
	}
	return 0
}

// loadLayout resolves a builtin layout name or reads a layout file.
func loadLayout(name string) (*regs.Layout, error) {
	if l, err := regs.Builtin(name); err == nil {
		return l, nil
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("layout %q is neither builtin nor a readable file: %w", name, err)
	}
	defer f.Close()
	return regs.LoadLayout(f)
}

func openDevice(c *cli.Context, opts ...pchspi.Option) (*pchspi.Device, error) {
	l, err := loadLayout(c.String("layout"))
	if err != nil {
		return nil, err
	}
	ecam, err := strconv.ParseUint(c.String("ecam"), 0, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ECAM base: %w", err)
	}
	slog.Debug("opening SPI controller", "layout", l.Name, "ecam", fmt.Sprintf("%#x", ecam))
	return pchspi.Open(l, ecam, append([]pchspi.Option{pchspi.WithLogger(slog.Default())}, opts...)...)
}

// parseAddress parses a flash linear address or a length, decimal or 0x hex.
func parseAddress(c *cli.Context, name string) (uint32, error) {
	v, err := strconv.ParseUint(c.String(name), 0, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return uint32(v), nil
}

// progress logs transfer progress every 64KB.
func progress(p pchspi.Progress) {
	if p.Done%(64<<10) == 0 || p.Done == p.Total {
		slog.Debug("progress", "op", p.Op, "done", p.Done, "total", p.Total)
	}
}
