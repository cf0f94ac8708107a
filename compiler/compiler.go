package compiler

import (
	"context"
	"os"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"
	"llvm.org/llvm/bindings/go/llvm"

	"github.com/Stefan-Mada/bf-compiler/compiler/asmtext"
	"github.com/Stefan-Mada/bf-compiler/compiler/combine"
	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
	"github.com/Stefan-Mada/bf-compiler/compiler/jit"
	"github.com/Stefan-Mada/bf-compiler/compiler/lower"
	"github.com/Stefan-Mada/bf-compiler/compiler/partial"
	"github.com/Stefan-Mada/bf-compiler/compiler/simplify"
	"github.com/Stefan-Mada/bf-compiler/compiler/ssaout"
	"github.com/Stefan-Mada/bf-compiler/compiler/validate"
)

// CompileFile reads name, validates and compiles it per opts, and — for
// the text back end — returns the rendered assembly. The structured-IR
// back end returns the module as textual LLVM IR; the JIT back end
// executes the program directly and returns nil output (§4.H, §4.I).
func CompileFile(ctx context.Context, name string, opts Options) (obj []byte, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return nil, errors.Wrap(err, "read file")
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Compile(ctx, text, opts)
}

// Compile runs the full pipeline (§2): lowering, loop simplification,
// instruction combining and partial evaluation, each individually
// switchable via opts, followed by exactly one back end.
func Compile(ctx context.Context, text []byte, opts Options) (obj []byte, err error) {
	if !validate.Brackets(text) {
		return nil, errors.New("unbalanced brackets in source")
	}

	instrs := lower.Lower(text)

	sp := tlog.SpanFromContext(ctx)
	sp.Printw("lowered", "instrs", len(instrs))

	// The structured-IR back end cannot emit MemScan, so scan recognition
	// is off whenever it is selected.
	instrs, err = simplify.Simplify(instrs, simplify.Options{
		SimplifyLoops:     opts.SimplifyLoops,
		VectorizeMemScans: opts.VectorizeMemScans && !opts.LLVM,
	})
	if err != nil {
		return nil, errors.Wrap(err, "simplify loops")
	}

	if opts.RunInstCombine {
		instrs = combine.Combine(instrs)
	}

	instrs, err = partial.Eval(instrs, partial.Options{Enabled: opts.PartialEval})
	if err != nil {
		return nil, errors.Wrap(err, "partial evaluation")
	}

	sp.Printw("optimized", "instrs", len(instrs))

	switch {
	case opts.JustInTime:
		return nil, errors.Wrap(jit.Run(instrs), "run via JIT")
	case opts.LLVM:
		mod := llvm.NewModule("bf")
		if err := ssaout.Emit(mod, instrs); err != nil {
			return nil, errors.Wrap(err, "emit structured IR")
		}

		return []byte(mod.String()), nil
	default:
		return asmtext.Emit(instrs), nil
	}
}
