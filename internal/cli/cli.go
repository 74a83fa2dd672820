// Package cli implements the one-shot argv front-end over the storage
// engine: each invocation maps to exactly one engine call (spec.md §6.2).
// This is a thin, out-of-core-scope adapter (spec.md §1) — no design
// content of its own beyond mapping subcommand -> engine call -> exit code.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	flag "github.com/spf13/pflag"

	"github.com/aether-kv/kvs/internal/engine"
)

// Handler dispatches argv subcommands onto an Engine, the Go analogue of the
// original source's clap::Subcommand-driven one-shot CLI (grounded on
// calvinalkan-agent-task's internal/cli dispatch-table idiom — see
// DESIGN.md).
type Handler struct {
	engine *engine.Engine
	out    io.Writer
	errOut io.Writer
}

// NewHandler returns a Handler that drives eng.
func NewHandler(eng *engine.Engine, out, errOut io.Writer) *Handler {
	return &Handler{engine: eng, out: out, errOut: errOut}
}

// Run parses args (os.Args[1:]) and executes exactly one subcommand,
// returning the process exit code per spec.md §6.2's table.
func (h *Handler) Run(args []string) int {
	if len(args) == 0 {
		h.printUsage()
		return 1
	}

	switch args[0] {
	case "set":
		return h.runSet(args[1:])
	case "get":
		return h.runGet(args[1:])
	case "rm":
		return h.runRemove(args[1:])
	default:
		fmt.Fprintf(h.errOut, "unknown subcommand: %s\n", args[0])
		h.printUsage()
		return 1
	}
}

func (h *Handler) printUsage() {
	fmt.Fprintln(h.errOut, "usage: kvs <set|get|rm> ...")
	fmt.Fprintln(h.errOut, "  set <key> <value>")
	fmt.Fprintln(h.errOut, "  get <key>")
	fmt.Fprintln(h.errOut, "  rm <key>")
}

func (h *Handler) runSet(args []string) int {
	fs := flag.NewFlagSet("set", flag.ContinueOnError)
	fs.SetOutput(h.errOut)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) != 2 {
		fmt.Fprintln(h.errOut, "usage: set <key> <value>")
		return 1
	}

	key, value := rest[0], rest[1]
	slog.Debug("cli: set", "key", key)
	if err := h.engine.Set(key, value); err != nil {
		fmt.Fprintf(h.errOut, "%v\n", err)
		return 1
	}
	return 0
}

func (h *Handler) runGet(args []string) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(h.errOut)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(h.errOut, "usage: get <key>")
		return 1
	}

	key := rest[0]
	slog.Debug("cli: get", "key", key)
	value, ok, err := h.engine.Get(key)
	if err != nil {
		fmt.Fprintf(h.errOut, "%v\n", err)
		return 1
	}
	if !ok {
		fmt.Fprintln(h.out, "Key not found")
		return 0
	}
	fmt.Fprintln(h.out, value)
	return 0
}

func (h *Handler) runRemove(args []string) int {
	fs := flag.NewFlagSet("rm", flag.ContinueOnError)
	fs.SetOutput(h.errOut)
	if err := fs.Parse(args); err != nil {
		return 1
	}
	rest := fs.Args()
	if len(rest) != 1 {
		fmt.Fprintln(h.errOut, "usage: rm <key>")
		return 1
	}

	key := rest[0]
	slog.Debug("cli: rm", "key", key)
	if err := h.engine.Remove(key); err != nil {
		if errors.Is(err, engine.ErrKeyNotFound) {
			fmt.Fprintln(h.out, "Key not found")
			return 1
		}
		fmt.Fprintf(h.errOut, "%v\n", err)
		return 1
	}
	return 0
}
