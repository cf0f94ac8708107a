package main

import (
	"context"
	"os"
	"strings"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/Stefan-Mada/bf-compiler/compiler"
)

func main() {
	app := &cli.Command{
		Name:        "bfc",
		Description: "bfc compiles a tape-machine source program to assembly, or runs it directly",
		Action:      run,
		Args:        cli.Args{},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

// run hand-parses the flag surface (§6): nikand.dev/go/cli's Command gives
// us the raw positional Args, but its Flags API isn't exercised anywhere
// in the corpus this was learned from, so the boolean and value flags
// below are parsed directly rather than guessed at.
func run(c *cli.Command) (err error) {
	opts := compiler.Default()

	var (
		input  string
		output string
	)

	args := c.Args
	for i := 0; i < len(args); i++ {
		a := args[i]

		switch {
		case a == "-h" || a == "--help":
			printUsage()
			return nil
		case a == "-o":
			i++
			if i >= len(args) {
				return errors.New("-o requires a path argument")
			}

			output = args[i]
		case strings.HasPrefix(a, "--"):
			name, val, err := splitFlag(args, &i)
			if err != nil {
				return err
			}

			switch name {
			case "simplify-loops":
				opts.SimplifyLoops, err = parseBool(val)
			case "vectorize-mem-scans":
				opts.VectorizeMemScans, err = parseBool(val)
			case "run-inst-combine":
				opts.RunInstCombine, err = parseBool(val)
			case "partial-eval":
				opts.PartialEval, err = parseBool(val)
			case "just-in-time":
				opts.JustInTime, err = parseBool(val)
			case "llvm":
				opts.LLVM, err = parseBool(val)
			default:
				return errors.New("unrecognized flag --%s", name)
			}

			if err != nil {
				return errors.Wrap(err, "--%s", name)
			}
		case input == "":
			input = a
		default:
			return errors.New("unexpected argument %q", a)
		}
	}

	if input == "" {
		printUsage()
		return errors.New("missing input program path")
	}

	ctx := tlog.ContextWithSpan(context.Background(), tlog.Root())

	obj, err := compiler.CompileFile(ctx, input, opts)
	if err != nil {
		return errors.Wrap(err, "compile %v", input)
	}

	if opts.JustInTime {
		return nil
	}

	if output == "" {
		_, err = os.Stdout.Write(obj)
		return errors.Wrap(err, "write stdout")
	}

	return errors.Wrap(os.WriteFile(output, obj, 0644), "write %v", output)
}

// splitFlag accepts both --name=value and --name value, advancing *i past
// whatever it consumes.
func splitFlag(args []string, i *int) (name, val string, err error) {
	a := strings.TrimPrefix(args[*i], "--")

	if eq := strings.IndexByte(a, '='); eq >= 0 {
		return a[:eq], a[eq+1:], nil
	}

	*i++
	if *i >= len(args) {
		return "", "", errors.New("--%s requires a value", a)
	}

	return a, args[*i], nil
}

// parseBool accepts the spec's custom boolean vocabulary (§6), not Go's.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	default:
		return false, errors.New("invalid boolean %q", s)
	}
}

func printUsage() {
	os.Stderr.WriteString(`bfc compiles a tape-machine source program to assembly, or runs it directly

usage: bfc [flags] PROGRAM

flags:
  -o PATH                       output destination (default: standard output)
  --simplify-loops BOOL         recognize scan and multiply-add loops (default: true)
  --vectorize-mem-scans BOOL    emit AVX2 strided scans in the text back end (default: true; off with --llvm)
  --run-inst-combine BOOL       fold adjacent pointer/cell ops (default: true)
  --partial-eval BOOL           fold statically-known tape state (default: true)
  --just-in-time BOOL           run via the machine-code JIT instead of emitting assembly
  --llvm BOOL                   emit structured-IR (LLVM) text instead of assembly
  -h, --help                    this message
`)
}
