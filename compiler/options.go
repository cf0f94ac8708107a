package compiler

// Options mirrors the CLI surface (§6): each optimization pass can be
// enabled or disabled independently, and exactly one back end is
// selected for a given run.
type Options struct {
	SimplifyLoops     bool
	VectorizeMemScans bool
	RunInstCombine    bool
	PartialEval       bool

	JustInTime bool // use the machine-code JIT back end
	LLVM       bool // use the structured-IR back end
}

// Default matches the CLI's stated default (§6): every pass on, text
// back end. Compile does not run scan recognition when LLVM is set, since
// the structured-IR back end doesn't support it.
func Default() Options {
	return Options{
		SimplifyLoops:     true,
		VectorizeMemScans: true,
		RunInstCombine:    true,
		PartialEval:       true,
	}
}
