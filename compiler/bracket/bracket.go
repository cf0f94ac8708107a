// Package bracket builds the two-way index between matched JumpIfZero and
// JumpUnlessZero instructions (§4.C). Every pass that might renumber
// instructions invalidates slice-index-based structure, so the index is
// cheap to rebuild rather than threaded through as mutable state.
package bracket

import (
	"tlog.app/go/errors"

	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
)

// Index maps a JumpIfZero position to its matching JumpUnlessZero position
// and back. It is an involution: Match[Match[i]] == i for every key.
type Index struct {
	Match map[int]int
}

// Build scans instrs left to right with a stack of unmatched JumpIfZero
// positions, linear in len(instrs). It returns an error if any
// JumpUnlessZero is unmatched, which should not happen for IR produced by
// lowering from already-validated source (§3 invariant) — passes that
// introduce this error have a bug.
func Build(instrs []ir.Instr) (Index, error) {
	idx := Index{Match: make(map[int]int, len(instrs)/4)}

	var stack []int

	for i, in := range instrs {
		switch in.Op {
		case ir.JumpIfZero:
			stack = append(stack, i)
		case ir.JumpUnlessZero:
			if len(stack) == 0 {
				return Index{}, errors.New("unmatched ] at instruction %d", i)
			}

			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			idx.Match[i] = j
			idx.Match[j] = i
		}
	}

	if len(stack) != 0 {
		return Index{}, errors.New("unmatched [ at instruction %d", stack[len(stack)-1])
	}

	return idx, nil
}

// ContainsRead reports whether the loop whose JumpIfZero sits at start
// contains a Read anywhere in its static extent, including in nested
// loops. Used by the partial evaluator to decide whether a loop head must
// be treated as an unknowable action (§4.F).
func ContainsRead(instrs []ir.Instr, start int) bool {
	depth := 0

	for i := start; i < len(instrs); i++ {
		switch instrs[i].Op {
		case ir.Read:
			return true
		case ir.JumpIfZero:
			depth++
		case ir.JumpUnlessZero:
			depth--

			if depth == 0 {
				return false
			}
		}
	}

	return false
}
