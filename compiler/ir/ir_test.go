package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
)

func TestNewSumPanicsOnZeroAmount(t *testing.T) {
	assert.Panics(t, func() { ir.NewSum(0, 3) })
}

func TestNewAddPtrPanicsOnZeroDelta(t *testing.T) {
	assert.Panics(t, func() { ir.NewAddPtr(0) })
}

func TestNewMemScanRejectsInvalidStride(t *testing.T) {
	_, err := ir.NewMemScan(3)
	assert.Error(t, err)

	in, err := ir.NewMemScan(-2)
	require.NoError(t, err)
	assert.Equal(t, ir.MemScan, in.Op)
	assert.Equal(t, int64(-2), in.Stride)
}

func TestValidStride(t *testing.T) {
	for _, s := range []int64{1, -1, 2, -2, 4, -4} {
		assert.True(t, ir.ValidStride(s), "stride %d", s)
	}

	for _, s := range []int64{0, 3, -3, 8} {
		assert.False(t, ir.ValidStride(s), "stride %d", s)
	}
}

func TestRenderTextCoversEveryOp(t *testing.T) {
	in, err := ir.NewMemScan(1)
	require.NoError(t, err)

	ops := []ir.Instr{
		{Op: ir.MoveRight}, {Op: ir.MoveLeft}, {Op: ir.Inc}, {Op: ir.Dec},
		{Op: ir.Write}, {Op: ir.Read}, {Op: ir.End}, {Op: ir.Zero},
		ir.NewSum(5, 2), ir.NewMulAdd(3, 1, true), ir.NewAddPtr(4),
		in,
		{Op: ir.JumpIfZero, Own: 0, Target: 1},
		{Op: ir.JumpUnlessZero, Own: 1, Target: 0},
	}

	for _, op := range ops {
		assert.NotEmpty(t, op.RenderText())
	}
}
