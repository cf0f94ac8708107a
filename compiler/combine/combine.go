// Package combine implements the instruction-combining pass (§4.E): it
// coalesces maximal runs of pointer moves and cell increments into
// offset-addressed Sum/AddPtr ops.
package combine

import (
	"sort"

	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
)

// Combine scans instrs for maximal runs of MoveRight/MoveLeft/Inc/Dec and
// replaces each run of length ≥ 2 with zero or more Sum ops (one per
// offset touched, in offset order for determinism) followed by at most one
// AddPtr carrying the run's net pointer delta. Runs of length < 2 are left
// untouched. Running Combine twice is a no-op the second time, since its
// output contains no more such runs (§8.5).
func Combine(instrs []ir.Instr) []ir.Instr {
	out := make([]ir.Instr, 0, len(instrs))

	for i := 0; i < len(instrs); {
		j := i
		for j < len(instrs) && isMoveOrIncrement(instrs[j].Op) {
			j++
		}

		if j-i < 2 {
			out = append(out, instrs[i])
			i++

			continue
		}

		out = append(out, foldRun(instrs[i:j])...)
		i = j
	}

	return out
}

func isMoveOrIncrement(op ir.Op) bool {
	switch op {
	case ir.MoveRight, ir.MoveLeft, ir.Inc, ir.Dec:
		return true
	default:
		return false
	}
}

func foldRun(run []ir.Instr) []ir.Instr {
	var offset int64

	incAtOffset := map[int64]int64{}

	for _, in := range run {
		switch in.Op {
		case ir.MoveRight:
			offset++
		case ir.MoveLeft:
			offset--
		case ir.Inc:
			incAtOffset[offset]++
		case ir.Dec:
			incAtOffset[offset]--
		}
	}

	offsets := make([]int64, 0, len(incAtOffset))
	for k := range incAtOffset {
		offsets = append(offsets, k)
	}

	sort.Slice(offsets, func(i, j int) bool { return offsets[i] < offsets[j] })

	out := make([]ir.Instr, 0, len(offsets)+1)

	for _, k := range offsets {
		if amount := int8(incAtOffset[k]); amount != 0 {
			out = append(out, ir.NewSum(amount, k))
		}
	}

	if offset != 0 {
		out = append(out, ir.NewAddPtr(offset))
	}

	return out
}
