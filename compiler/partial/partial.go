// Package partial implements the partial-evaluation pass (§4.F): an
// abstract interpreter that runs the program against a symbolic tape for
// as long as its effects are fully known, materializing concrete
// Zero/Sum/AddPtr/Write instructions in place of the straight-line code it
// consumes, and unrolling loops whose induction cell it can track exactly.
// It gives up — flushing whatever it has proven and splicing the
// untouched suffix back in — the moment it meets a Read, a loop that might
// contain one, or End.
package partial

import (
	"sort"

	"github.com/Stefan-Mada/bf-compiler/compiler/bracket"
	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
	"github.com/Stefan-Mada/bf-compiler/compiler/set"
)

// Options mirrors the --partial-eval CLI flag (§6).
type Options struct {
	Enabled bool
}

// Eval runs the pass over instrs. It returns an error only if instrs
// carries an unmatched bracket, which indicates a bug in an earlier pass.
func Eval(instrs []ir.Instr, opts Options) ([]ir.Instr, error) {
	if !opts.Enabled {
		out := make([]ir.Instr, len(instrs))
		copy(out, instrs)

		return out, nil
	}

	idx, err := bracket.Build(instrs)
	if err != nil {
		return nil, err
	}

	e := &evaluator{
		instrs:         instrs,
		idx:            idx,
		tape:           map[int64]byte{},
		printedNonzero: map[int64]struct{}{},
		knownNoRead:    set.MakeBitmap(len(instrs)),
	}

	return e.run(), nil
}

// evaluator carries the abstract machine state while walking instrs. p is
// the abstract pointer, the value a real tape pointer would hold; m is the
// offset the emitted code has last materialized the real pointer to, so
// emitting a move costs nothing when p hasn't drifted since the last one.
type evaluator struct {
	instrs []ir.Instr
	idx    bracket.Index

	tape           map[int64]byte
	printedNonzero map[int64]struct{}
	p, m           int64

	out []ir.Instr

	// knownNoRead caches loop-head positions already confirmed not to
	// contain a Read, so that unrolling the same loop up to 256 times
	// doesn't rescan its body on every pass.
	knownNoRead set.Bitmap
}

// run walks instrs from the front, either consuming an instruction purely
// abstractly (folding it into tape/p) or flushing and returning once it
// reaches something it cannot see through.
func (e *evaluator) run() []ir.Instr {
	for ip := 0; ip < len(e.instrs); ip++ {
		in := e.instrs[ip]

		switch in.Op {
		case ir.MoveRight:
			e.p++
		case ir.MoveLeft:
			e.p--
		case ir.AddPtr:
			e.p += in.Delta
		case ir.Inc:
			e.add(e.p, 1)
		case ir.Dec:
			e.add(e.p, 255)
		case ir.Sum:
			e.add(e.p+in.Offset, byte(in.Amount))
		case ir.Zero:
			delete(e.tape, e.p)
		case ir.MulAdd:
			e.mulAdd(in)
		case ir.MemScan:
			e.memScan(in.Stride)
		case ir.Write:
			e.write()
		case ir.Read, ir.End:
			e.flushAll()
			return append(e.out, e.instrs[ip:]...)
		case ir.JumpIfZero:
			if e.loopContainsRead(ip) {
				e.flushAll()
				return append(e.out, e.instrs[ip:]...)
			}

			if _, known := e.tape[e.p]; !known {
				ip = e.idx.Match[ip]
			}
		case ir.JumpUnlessZero:
			if _, nonzero := e.tape[e.p]; nonzero {
				ip = e.idx.Match[ip] - 1
			}
		}
	}

	return e.out
}

// loopContainsRead is bracket.ContainsRead with memoization across
// unrolled re-executions of the same loop head.
func (e *evaluator) loopContainsRead(jumpIfZero int) bool {
	if e.knownNoRead.IsSet(jumpIfZero) {
		return false
	}

	if bracket.ContainsRead(e.instrs, jumpIfZero) {
		return true
	}

	e.knownNoRead.Set(jumpIfZero)

	return false
}

// add folds a mod-256 increment of delta into the cell at offset,
// dropping the map entry entirely once it returns to zero so that
// presence in the map always means "known nonzero".
func (e *evaluator) add(offset int64, delta byte) {
	v := e.tape[offset] + delta
	if v == 0 {
		delete(e.tape, offset)
	} else {
		e.tape[offset] = v
	}
}

// mulAdd mirrors the MulAdd op's own runtime semantics: read the
// induction cell, optionally negate it, multiply, and fold the product
// into the target cell. It does not clear the induction cell itself —
// simplify always emits an explicit Zero right after a run of MulAdds for
// that.
func (e *evaluator) mulAdd(in ir.Instr) {
	v := e.tape[e.p]
	if in.NegInduction {
		v = -v
	}

	e.add(e.p+in.Offset, v*byte(in.Amount))
}

// memScan resolves a scan fully against the symbolic tape: since every
// cell this evaluator hasn't touched is provably still zero, stepping by
// stride and checking the map at each stop is exact, not an
// approximation, and terminates because only finitely many offsets in the
// map are nonzero.
func (e *evaluator) memScan(stride int64) {
	off := e.p

	for e.tape[off] != 0 {
		off += stride
	}

	e.p = off
}

// write materializes the single current cell exactly and emits the
// observable Write, recording whether it printed a nonzero byte so a
// later flush knows which previously-nonzero offsets still need
// re-zeroing.
func (e *evaluator) write() {
	v := e.tape[e.p]

	e.flushCell(e.p)
	e.out = append(e.out, ir.Instr{Op: ir.Write})

	if v == 0 {
		delete(e.printedNonzero, e.p)
	} else {
		e.printedNonzero[e.p] = struct{}{}
	}
}

// flushCell emits the code to make the real tape's cell at offset match
// e.tape[offset] exactly, leaving the real pointer positioned there.
func (e *evaluator) flushCell(offset int64) {
	e.moveTo(offset)
	e.out = append(e.out, ir.Instr{Op: ir.Zero})

	if v := e.tape[offset]; v != 0 {
		e.out = append(e.out, ir.NewSum(int8(v), 0))
	}
}

// flushAll materializes every cell this evaluator ever touched, re-zeros
// any offset it printed nonzero but has since forgotten, and restores the
// real pointer to the abstract one — the common tail of giving up at a
// Read, an unseeable loop, or End.
func (e *evaluator) flushAll() {
	offsets := make([]int64, 0, len(e.tape))
	for k := range e.tape {
		offsets = append(offsets, k)
	}

	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	for _, off := range offsets {
		e.flushCell(off)
	}

	var stale []int64
	for off := range e.printedNonzero {
		if _, stillTracked := e.tape[off]; !stillTracked {
			stale = append(stale, off)
		}
	}

	sort.Slice(stale, func(i, j int) bool { return stale[i] < stale[j] })

	for _, off := range stale {
		e.moveTo(off)
		e.out = append(e.out, ir.Instr{Op: ir.Zero})
	}

	e.printedNonzero = map[int64]struct{}{}

	e.moveTo(e.p)
}

// moveTo emits an AddPtr closing the gap between the real pointer's last
// known position and to, when there is one to close.
func (e *evaluator) moveTo(to int64) {
	if to != e.m {
		e.out = append(e.out, ir.NewAddPtr(to-e.m))
		e.m = to
	}
}
