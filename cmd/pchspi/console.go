package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"
)

var (
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func exitf(code int, format string, a ...any) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf("%s: %s", red("ERROR"), fmt.Sprintf(format, a...)), code)
}

func errorf(format string, a ...any) {
	fmt.Fprintf(stderr, "%s: %s\n", red("ERROR"), fmt.Sprintf(format, a...))
}

func warnf(format string, a ...any) {
	fmt.Fprintf(stderr, "%s: %s\n", yellow("WARN"), fmt.Sprintf(format, a...))
}

// section prints a titled YAML document.
func section(title string, v any) error {
	fmt.Fprintf(stdout, "%s\n", bold("# "+title))
	enc := yaml.NewEncoder(stdout)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// bitState renders a security relevant bit, red when it weakens protection.
func bitState(name string, set, good bool) string {
	s := fmt.Sprintf("%s=%d", name, map[bool]int{false: 0, true: 1}[set])
	if set == good {
		return green(s)
	}
	return red(s)
}

// confirm asks a yes/no question, no by default. --yes skips it.
func confirm(c *cli.Context, question string) (bool, error) {
	if c.Bool("yes") {
		return true, nil
	}
	rl, err := readline.New(question + " [y/N]: ")
	if err != nil {
		return false, err
	}
	defer rl.Close()
	answer, err := rl.Readline()
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(answer), "y"), nil
}

var yesFlag = &cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "do not ask for confirmation"}
