package bracket_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Stefan-Mada/bf-compiler/compiler/bracket"
	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
	"github.com/Stefan-Mada/bf-compiler/compiler/lower"
)

func TestBuildIsInvolution(t *testing.T) {
	instrs := lower.Lower([]byte("++[->+<][->-<]"))

	idx, err := bracket.Build(instrs)
	require.NoError(t, err)

	for i, j := range idx.Match {
		assert.Equal(t, i, idx.Match[j])
	}

	for i, in := range instrs {
		if in.Op != ir.JumpIfZero {
			continue
		}

		j, ok := idx.Match[i]
		require.True(t, ok)
		assert.Greater(t, j, i)
		assert.Equal(t, ir.JumpUnlessZero, instrs[j].Op)
	}
}

func TestBuildRejectsUnmatched(t *testing.T) {
	_, err := bracket.Build([]ir.Instr{{Op: ir.JumpUnlessZero}})
	assert.Error(t, err)

	_, err = bracket.Build([]ir.Instr{{Op: ir.JumpIfZero}})
	assert.Error(t, err)
}

func TestContainsRead(t *testing.T) {
	instrs := lower.Lower([]byte("[,]"))
	assert.True(t, bracket.ContainsRead(instrs, 0))

	instrs = lower.Lower([]byte("[+]"))
	assert.False(t, bracket.ContainsRead(instrs, 0))

	instrs = lower.Lower([]byte("[[,]]"))
	assert.True(t, bracket.ContainsRead(instrs, 0))
}
