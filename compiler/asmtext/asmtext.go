// Package asmtext implements the textual assembly back end (§4.G): a
// fixed x86-64 GAS preamble — vector-scan mask tables, the program entry,
// and a call into a libc allocator for the tape — followed by one text
// fragment per IR op, rendered by ir.Instr.RenderText.
package asmtext

import (
	"github.com/nikandfor/hacked/hfmt"

	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
)

// TapeSize is the byte allocator's tape request (§7): even, so the
// midpoint it jumps into is symmetric in both directions.
const TapeSize = 320_000

// Emit renders instrs as a complete assembly-language source file: the
// fixed preamble, then each instruction's RenderText in order.
func Emit(instrs []ir.Instr) []byte {
	var obj []byte

	obj = appendVectorMasks(obj)
	obj = appendEntry(obj)

	for _, in := range instrs {
		obj = append(obj, in.RenderText()...)
	}

	return obj
}

// appendEntry emits main, which allocates and zeroes the tape via calloc,
// positions %rdi at its midpoint, calls bf_main — the label the
// instruction stream below begins at — and returns 0.
func appendEntry(obj []byte) []byte {
	return hfmt.Appendf(obj, `.global main
main:
	subq	$8, %%rsp
	movl	$%d, %%edi
	movl	$1, %%esi
	call	calloc
	leaq	%d(%%rax), %%rdi
	call	bf_main
	movl	$0, %%eax
	addq	$8, %%rsp
	ret

bf_main:
`, TapeSize, TapeSize/2)
}

// appendVectorMasks emits the 32-byte AVX2 lane masks for every supported
// stride, in both directions; MemScan's rendered text references the
// stride-2 and stride-4 ones, since a stride-1 scan needs no masking. The
// forward mask for a stride keeps every lane that is a multiple of the
// stride set; the reverse mask is its mirror image, since a
// negative-stride scan walks the same 32-byte window backwards.
func appendVectorMasks(obj []byte) []byte {
	for _, stride := range []int{1, 2, 4} {
		obj = hfmt.Appendf(obj, ".STRIDE%dMASK:\n", stride)
		obj = appendMaskBytes(obj, stride, false)

		obj = hfmt.Appendf(obj, ".STRIDE%dMASKNEG:\n", stride)
		obj = appendMaskBytes(obj, stride, true)
	}

	return obj
}

func appendMaskBytes(obj []byte, stride int, reversed bool) []byte {
	const lanes = 32

	for i := 0; i < lanes; i++ {
		lane := i
		if reversed {
			lane = lanes - 1 - i
		}

		if lane%stride == 0 {
			obj = hfmt.Appendf(obj, "\t.byte\t255\n")
		} else {
			obj = hfmt.Appendf(obj, "\t.byte\t0\n")
		}
	}

	return obj
}
