package partial_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stefan-Mada/bf-compiler/compiler/combine"
	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
	"github.com/Stefan-Mada/bf-compiler/compiler/lower"
	"github.com/Stefan-Mada/bf-compiler/compiler/partial"
)

func TestEvalFoldsConstantPrefix(t *testing.T) {
	instrs := combine.Combine(lower.Lower([]byte("+++.")))

	out, err := partial.Eval(instrs, partial.Options{Enabled: true})
	require.NoError(t, err)

	assert.Equal(t, ir.End, out[len(out)-1].Op)

	writeAt := indexOf(out, ir.Write)
	require.GreaterOrEqual(t, writeAt, 1)
	assert.Equal(t, ir.Sum, out[writeAt-1].Op)
	assert.Equal(t, int8(3), out[writeAt-1].Amount)
}

func TestEvalStopsAtRead(t *testing.T) {
	// A cat loop: the evaluator must not fold across the comma, and the
	// unmodified Read/loop suffix must survive verbatim.
	instrs := lower.Lower([]byte(",[.,]"))

	out, err := partial.Eval(instrs, partial.Options{Enabled: true})
	require.NoError(t, err)

	assert.Equal(t, instrs, out)
}

func TestEvalDisabledIsIdentity(t *testing.T) {
	instrs := lower.Lower([]byte("+++."))

	out, err := partial.Eval(instrs, partial.Options{Enabled: false})
	require.NoError(t, err)

	assert.Equal(t, instrs, out)
}

func TestEvalDeadLoopIsSkipped(t *testing.T) {
	// Starting cell is zero, so [>] never runs; the evaluator should prove
	// this statically and jump straight past it, never moving the pointer.
	instrs := lower.Lower([]byte("[>]+."))

	out, err := partial.Eval(instrs, partial.Options{Enabled: true})
	require.NoError(t, err)

	for _, in := range out {
		assert.NotEqual(t, ir.JumpIfZero, in.Op)
		assert.NotEqual(t, ir.JumpUnlessZero, in.Op)
	}

	assert.Equal(t, ir.End, out[len(out)-1].Op)

	writeAt := indexOf(out, ir.Write)
	require.GreaterOrEqual(t, writeAt, 1)
	assert.Equal(t, ir.Sum, out[writeAt-1].Op)
	assert.Equal(t, int8(1), out[writeAt-1].Amount)
}

func TestEvalUnrollsBoundedLoop(t *testing.T) {
	// ++++[->+<] with partial evaluation alone (no loop simplifier) must
	// still fold to the same observable constant via abstract unrolling:
	// no jump survives, and the materialized byte written is 4.
	instrs := lower.Lower([]byte("++++[->+<]>."))

	out, err := partial.Eval(instrs, partial.Options{Enabled: true})
	require.NoError(t, err)

	assert.Equal(t, ir.End, out[len(out)-1].Op)

	var sawWrite bool
	for i, in := range out {
		assert.NotEqual(t, ir.JumpIfZero, in.Op)
		assert.NotEqual(t, ir.JumpUnlessZero, in.Op)

		if in.Op == ir.Write {
			sawWrite = true
			assert.Equal(t, ir.Sum, out[i-1].Op)
			assert.Equal(t, int8(4), out[i-1].Amount)
		}
	}

	assert.True(t, sawWrite)
}

func indexOf(instrs []ir.Instr, op ir.Op) int {
	for i, in := range instrs {
		if in.Op == op {
			return i
		}
	}

	return -1
}
