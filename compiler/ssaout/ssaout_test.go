package ssaout_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"llvm.org/llvm/bindings/go/llvm"

	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
	"github.com/Stefan-Mada/bf-compiler/compiler/lower"
	"github.com/Stefan-Mada/bf-compiler/compiler/simplify"
	"github.com/Stefan-Mada/bf-compiler/compiler/ssaout"
)

func TestEmitVerifiesStraightLineProgram(t *testing.T) {
	mod := llvm.NewModule("bf")

	instrs := lower.Lower([]byte(">+."))

	err := ssaout.Emit(mod, instrs)
	require.NoError(t, err)

	fn := mod.NamedFunction("bf_main")
	assert.False(t, fn.IsNil())

	text := mod.String()
	assert.Contains(t, text, "declare")
	assert.Contains(t, text, "bf_putchar")
}

func TestEmitDeclaresRuntimeOnce(t *testing.T) {
	mod := llvm.NewModule("bf")

	require.NoError(t, ssaout.Emit(mod, lower.Lower([]byte("."))))
	require.NoError(t, ssaout.Emit(mod, lower.Lower([]byte(","))))

	text := mod.String()
	assert.Equal(t, 1, countSubstr(text, "declare void @bf_putchar"))
}

func TestEmitBuildsPhiAtLoopHeader(t *testing.T) {
	mod := llvm.NewModule("bf")

	instrs := lower.Lower([]byte("[-]"))

	err := ssaout.Emit(mod, instrs)
	require.NoError(t, err)

	text := mod.String()
	assert.Contains(t, text, "phi")
}

func TestEmitRejectsMemScan(t *testing.T) {
	mod := llvm.NewModule("bf")

	instrs := lower.Lower([]byte("[>]"))

	instrs, err := simplify.Simplify(instrs, simplify.Options{VectorizeMemScans: true})
	require.NoError(t, err)

	var sawScan bool
	for _, in := range instrs {
		if in.Op == ir.MemScan {
			sawScan = true
		}
	}
	require.True(t, sawScan, "fixture should have simplified to a MemScan")

	err = ssaout.Emit(mod, instrs)
	assert.Error(t, err)
}

func countSubstr(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}

	return count
}
