// Command luacore is the luacore CLI front end, adapted from the
// teacher's plaid.go: urfave/cli wires up subcommands and debug flags,
// fatih/color renders diagnostics, and mattn/go-isatty decides whether
// color defaults on. Unlike plaid.go, there is no source file to read —
// luacore has no Lua-text front end (SPEC_FULL.md §D) — so the "run" and
// "disasm" commands operate on the small set of hand-assembled demo
// programs in samples.go, standing in for what a real compiler's output
// would be.
package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/plaidvm/luacore/diag"
	"github.com/plaidvm/luacore/vm"
)

var noColor bool
var showDisassembly bool

func defaultColor() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

var demos = map[string]func() *vm.Prototype{
	"arith":    buildArithDemo,
	"sum-loop": buildSumLoopDemo,
}

func demoNames() []string {
	names := make([]string, 0, len(demos))
	for n := range demos {
		names = append(names, n)
	}
	return names
}

func runDemo(c *cli.Context) error {
	name := c.Args().First()
	build, ok := demos[name]
	if !ok {
		return cli.Exit(fmt.Sprintf("unknown demo %q; available: %v", name, demoNames()), 1)
	}
	proto := build()

	if showDisassembly {
		fmt.Println(vm.Disassemble(proto))
	}

	s := vm.NewState()
	cl := s.NewClosure(proto, nil)
	results, err := s.Call(cl, nil)
	if err != nil {
		rendered := diag.Render(diag.Wrap(diag.Classify(err), s, err), !noColor)
		fmt.Fprint(os.Stderr, rendered)
		return cli.Exit("", 1)
	}

	for _, r := range results {
		fmt.Println(vm.ToDisplayString(r))
	}
	return nil
}

func disasmDemo(c *cli.Context) error {
	name := c.Args().First()
	build, ok := demos[name]
	if !ok {
		return cli.Exit(fmt.Sprintf("unknown demo %q; available: %v", name, demoNames()), 1)
	}
	fmt.Println(vm.Disassemble(build()))
	return nil
}

func main() {
	app := &cli.App{
		Name:  "luacore",
		Usage: "a Lua 5.5-compatible runtime core",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "no-color",
				Usage:       "disable colored diagnostics",
				Destination: &noColor,
			},
		},
		Commands: []*cli.Command{
			{
				Name:    "run",
				Aliases: []string{"r"},
				Usage:   "run a built-in demo program and print its results",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "debug-disassembly",
						Usage:       "print the demo's bytecode before running it",
						Destination: &showDisassembly,
					},
				},
				Action: runDemo,
			},
			{
				Name:    "disasm",
				Aliases: []string{"d"},
				Usage:   "print a built-in demo program's bytecode",
				Action:  disasmDemo,
			},
		},
		Action: func(c *cli.Context) error {
			return cli.ShowAppHelp(c)
		},
	}

	noColor = !defaultColor()

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
