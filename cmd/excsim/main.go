// Command excsim replays PowerPC exceptions through the BSP exception
// handler on the host.
//
// It builds a simulated executive from a scenario file, lets every task
// install its extension and dispatches the scenario's exceptions one after
// the other. Console output of the handler is printed prefixed with the CPU
// number, followed by a summary line per exception.
//
// Exit status is 0 when all exceptions were handled, 1 for usage, scenario
// or hook script errors and 2 when the system halted or rebooted.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"

	"ppcbsp/internal/coredump"
	"ppcbsp/internal/luahook"
	"ppcbsp/internal/scenario"
	"ppcbsp/kernel/exception"
	"ppcbsp/kernel/kfmt"
)

const (
	exitOK = iota
	exitError
	exitFatal
)

type options struct {
	scenario string
	lua      string
	json     bool
	color    bool
	reboot   bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitError
	}

	sc, err := scenario.Load(opts.scenario)
	if err != nil {
		fmt.Fprintf(stderr, "Error: failed to load scenario: %v\n", err)
		return exitError
	}

	var hook *luahook.Hook
	if opts.lua != "" {
		if hook, err = luahook.Load(opts.lua, luahook.WithOutput(stdout)); err != nil {
			fmt.Fprintf(stderr, "Error: failed to load hook script: %v\n", err)
			return exitError
		}
		defer hook.Close()
	}

	console := &kfmt.PrefixWriter{Sink: stdout, Prefix: []byte(fmt.Sprintf("cpu%d: ", sc.CPU))}
	r, err := newReplayer(sc, hook, console, opts.reboot)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitError
	}

	if sc.Name != "" {
		fmt.Fprintf(stdout, "scenario: %s\n", sc.Name)
	}

	for i := range sc.Exceptions {
		res, err := r.replay(i)
		console.EndLine()
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitError
		}

		report(stdout, res)
		if hook != nil && hook.Err() != nil {
			fmt.Fprintf(stderr, "Warning: hook script failed: %v\n", hook.Err())
		}

		if opts.json {
			doc, err := coredump.Encode(&res.core, coredump.Options{CPU: sc.CPU, Color: opts.color && isTerminal(stdout)})
			if err != nil {
				fmt.Fprintf(stderr, "Error: failed to encode core registers: %v\n", err)
				return exitError
			}
			stdout.Write(doc)
		}

		if res.outcome.Kind == exception.Fatal {
			if r.reboots > 0 {
				fmt.Fprintf(stdout, "system rebooted\n")
			} else {
				fmt.Fprintf(stdout, "system halted\n")
			}
			return exitFatal
		}
	}

	return exitOK
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("excsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.scenario, "scenario", "", "Path to the scenario file (required)")
	fs.StringVar(&opts.lua, "lua", "", "Lua script implementing the \"lua\" low-level hooks")
	fs.BoolVar(&opts.json, "json", false, "Print the staged core registers as JSON after each exception")
	fs.BoolVar(&opts.color, "color", true, "Colorize JSON output when writing to a terminal")
	fs.BoolVar(&opts.reboot, "reboot", false, "Reboot instead of hanging on fatal exceptions")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "excsim - replay PowerPC exceptions through the BSP exception handler\n\n")
		fmt.Fprintf(stderr, "Usage: excsim -scenario file.json [options]\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, err
	}

	if opts.scenario == "" {
		fmt.Fprintf(stderr, "Error: -scenario is required\n")
		fs.Usage()
		return opts, errors.New("missing scenario")
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(stderr, "Error: unexpected arguments %v\n", fs.Args())
		return opts, errors.New("unexpected arguments")
	}

	return opts, nil
}

func report(w io.Writer, res result) {
	where := "no task"
	if res.task != "" {
		where = "task " + res.task
	}
	if err := res.outcome.Err; err != nil {
		fmt.Fprintf(w, "exception %d: vector 0x%02x (%s), %s: suspend failed: %s\n",
			res.index, uint32(res.vector), res.vector, where, err.Message)
		return
	}
	fmt.Fprintf(w, "exception %d: vector 0x%02x (%s), %s: %s\n",
		res.index, uint32(res.vector), res.vector, where, res.outcome.Kind)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
