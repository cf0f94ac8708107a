package simplify_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
	"github.com/Stefan-Mada/bf-compiler/compiler/lower"
	"github.com/Stefan-Mada/bf-compiler/compiler/simplify"
)

func allOn() simplify.Options {
	return simplify.Options{SimplifyLoops: true, VectorizeMemScans: true}
}

func TestSimplifyMulAddLoop(t *testing.T) {
	instrs := lower.Lower([]byte("++++[->+<]"))

	out, err := simplify.Simplify(instrs, allOn())
	require.NoError(t, err)

	// ++++ stays, then MulAdd(1, +1, neg=false), Zero, End.
	require.Len(t, out, 4+1+1+1)

	mulAdd := out[4]
	assert.Equal(t, ir.MulAdd, mulAdd.Op)
	assert.Equal(t, int8(1), mulAdd.Amount)
	assert.Equal(t, int64(1), mulAdd.Offset)
	assert.False(t, mulAdd.NegInduction)

	assert.Equal(t, ir.Zero, out[5].Op)
	assert.Equal(t, ir.End, out[6].Op)
}

func TestSimplifyScanLoop(t *testing.T) {
	instrs := lower.Lower([]byte("[>]"))

	out, err := simplify.Simplify(instrs, allOn())
	require.NoError(t, err)

	require.Len(t, out, 3+1)
	assert.Equal(t, ir.JumpIfZero, out[0].Op)
	assert.Equal(t, ir.MemScan, out[1].Op)
	assert.Equal(t, int64(1), out[1].Stride)
	assert.Equal(t, ir.JumpUnlessZero, out[2].Op)
}

func TestSimplifyRejectsIOLoop(t *testing.T) {
	instrs := lower.Lower([]byte("+[.-]"))

	out, err := simplify.Simplify(instrs, allOn())
	require.NoError(t, err)

	// Unchanged: Inc, JumpIfZero, Write, Dec, JumpUnlessZero, End.
	require.Len(t, out, len(instrs))
	assert.Equal(t, ir.JumpIfZero, out[1].Op)
}

func TestSimplifyRejectsNestedBracketBody(t *testing.T) {
	instrs := lower.Lower([]byte("[[-]>]"))

	out, err := simplify.Simplify(instrs, allOn())
	require.NoError(t, err)

	// The outer loop's body contains a nested bracket, so the outer pair is
	// left intact even though the inner [-] alone qualifies and is folded
	// to a bare Zero independently (§4.D, §9 open question).
	require.Len(t, out, 5)
	assert.Equal(t, ir.JumpIfZero, out[0].Op)
	assert.Equal(t, ir.Zero, out[1].Op)
	assert.Equal(t, ir.MoveRight, out[2].Op)
	assert.Equal(t, ir.JumpUnlessZero, out[3].Op)
	assert.Equal(t, ir.End, out[4].Op)
}

func TestSimplifyDisabledIsIdentity(t *testing.T) {
	instrs := lower.Lower([]byte("++++[->+<]"))

	out, err := simplify.Simplify(instrs, simplify.Options{})
	require.NoError(t, err)

	assert.Equal(t, instrs, out)
}
