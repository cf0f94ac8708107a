// Package simplify implements the loop-recognition pass (§4.D): it turns
// `[...]` bodies shaped like a memory scan or a multiply-add accumulator
// into their closed-form IR equivalents.
package simplify

import (
	"sort"

	"github.com/Stefan-Mada/bf-compiler/compiler/bracket"
	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
)

// Options enables or disables the two loop shapes independently, mirroring
// the --simplify-loops and --vectorize-mem-scans CLI flags (§6).
type Options struct {
	SimplifyLoops     bool
	VectorizeMemScans bool
}

// Simplify walks instrs once, replacing every matched bracket pair,
// nested or not, whose body recognizes as a scan loop or a simple multiply-add loop.
// A body containing a nested bracket, any I/O, or any op other than
// MoveRight/MoveLeft/Inc/Dec is never simplified — but the loop inside it
// may still be, independently, when the scan reaches that inner pair
// (§9: a nested-bracket body is rejected; nested-loop fusion is explicitly
// out of scope).
func Simplify(instrs []ir.Instr, opts Options) ([]ir.Instr, error) {
	if !opts.SimplifyLoops && !opts.VectorizeMemScans {
		out := make([]ir.Instr, len(instrs))
		copy(out, instrs)

		return out, nil
	}

	idx, err := bracket.Build(instrs)
	if err != nil {
		return nil, err
	}

	out := make([]ir.Instr, 0, len(instrs))

	for i := 0; i < len(instrs); i++ {
		in := instrs[i]

		if in.Op != ir.JumpIfZero {
			out = append(out, in)
			continue
		}

		close := idx.Match[i]

		if replacement, ok := recognize(instrs, i, close, opts); ok {
			out = append(out, replacement...)
			i = close

			continue
		}

		out = append(out, in)
	}

	return out, nil
}

// recognize classifies instrs[open+1:close] and, if it matches a known
// shape, returns its closed-form replacement (including the outer
// brackets for a scan loop; without them for a simple loop, since the
// whole pair collapses to straight-line code).
func recognize(instrs []ir.Instr, open, close int, opts Options) ([]ir.Instr, bool) {
	var netOffset int64

	incAtOffset := map[int64]int64{}

	for i := open + 1; i < close; i++ {
		switch instrs[i].Op {
		case ir.MoveRight:
			netOffset++
		case ir.MoveLeft:
			netOffset--
		case ir.Inc:
			incAtOffset[netOffset]++
		case ir.Dec:
			incAtOffset[netOffset]--
		default:
			// Any jump (nested bracket), I/O, or already-rewritten op
			// disqualifies the body (§4.D, §9 open question).
			return nil, false
		}
	}

	if opts.VectorizeMemScans && ir.ValidStride(netOffset) && len(incAtOffset) == 0 {
		scan, err := ir.NewMemScan(netOffset)
		if err != nil {
			return nil, false
		}

		return []ir.Instr{
			{Op: ir.JumpIfZero, Own: instrs[open].Own, Target: instrs[open].Target},
			scan,
			{Op: ir.JumpUnlessZero, Own: instrs[close].Own, Target: instrs[close].Target},
		}, true
	}

	if !opts.SimplifyLoops {
		return nil, false
	}

	inducInc, ok := incAtOffset[0]
	if !ok || (inducInc != 1 && inducInc != -1) || netOffset != 0 {
		return nil, false
	}

	// §4.D: neg_induction is set when the induction increments (+1), so
	// the back end negates the live cell before multiplying.
	neg := inducInc == 1

	offsets := make([]int64, 0, len(incAtOffset)-1)

	for k := range incAtOffset {
		if k != 0 {
			offsets = append(offsets, k)
		}
	}

	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	replacement := make([]ir.Instr, 0, len(offsets)+1)

	for _, k := range offsets {
		amount := int8(incAtOffset[k])
		if amount == 0 {
			continue
		}

		replacement = append(replacement, ir.NewMulAdd(amount, k, neg))
	}

	replacement = append(replacement, ir.Instr{Op: ir.Zero})

	return replacement, true
}
