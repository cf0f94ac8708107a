// Package ssaout implements the structured-IR back end (§4.I): it emits
// the program as a function in an external SSA framework rather than
// text or raw machine code, building actual φ-nodes at every loop header
// instead of leaning on an alloca-plus-mem2reg shortcut.
package ssaout

import (
	"fmt"

	"tlog.app/go/errors"
	"llvm.org/llvm/bindings/go/llvm"

	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
)

// TapeSize matches the other back ends' allocation (§7).
const TapeSize = 320_000

func declareRuntime(mod llvm.Module) {
	if !mod.NamedFunction("bf_putchar").IsNil() {
		return
	}

	putcharType := llvm.FunctionType(llvm.VoidType(), []llvm.Type{llvm.Int8Type()}, false)
	putchar := llvm.AddFunction(mod, "bf_putchar", putcharType)
	putchar.SetLinkage(llvm.ExternalLinkage)

	getcharType := llvm.FunctionType(llvm.Int8Type(), nil, false)
	getchar := llvm.AddFunction(mod, "bf_getchar", getcharType)
	getchar.SetLinkage(llvm.ExternalLinkage)
}

// loopHeader tracks one open loop's header block, its pointer φ, and its
// post-loop continuation block, so the matching JumpUnlessZero can close
// the back edge.
type loopHeader struct {
	header, after llvm.BasicBlock
	ptrPhi        llvm.Value
}

// Emit builds function bf_main in mod from instrs: an entry block that
// stack-allocates and zeroes the tape and computes its midpoint, then
// one text-free fragment of instructions per IR op flowing a single
// pointer SSA value through GEPs, loads and stores.
func Emit(mod llvm.Module, instrs []ir.Instr) error {
	declareRuntime(mod)

	i8 := llvm.Int8Type()
	i64 := llvm.Int64Type()
	i8ptr := llvm.PointerType(i8, 0)

	zero8 := llvm.ConstInt(i8, 0, false)

	fn := llvm.AddFunction(mod, "bf_main", llvm.FunctionType(llvm.VoidType(), nil, false))
	entry := llvm.AddBasicBlock(fn, "entry")

	builder := llvm.NewBuilder()
	defer builder.Dispose()

	builder.SetInsertPoint(entry, entry.FirstInstruction())

	tape := builder.CreateAlloca(llvm.ArrayType(i8, TapeSize), "tape")
	tapeBytes := builder.CreateBitCast(tape, i8ptr, "tape.bytes")

	zeroTape(builder, tapeBytes, i8, i64)

	mid := llvm.ConstInt(i64, TapeSize/2, false)
	curPtr := builder.CreateGEP(tapeBytes, []llvm.Value{mid}, "ptr0")

	var loops []loopHeader

	for i, in := range instrs {
		switch in.Op {
		case ir.MoveRight:
			curPtr = gepOffset(builder, curPtr, 1)
		case ir.MoveLeft:
			curPtr = gepOffset(builder, curPtr, -1)
		case ir.AddPtr:
			curPtr = gepOffset(builder, curPtr, in.Delta)
		case ir.Inc:
			addAt(builder, i8, curPtr, 0, 1)
		case ir.Dec:
			addAt(builder, i8, curPtr, 0, -1)
		case ir.Sum:
			addAt(builder, i8, curPtr, in.Offset, int64(in.Amount))
		case ir.Zero:
			builder.CreateStore(zero8, curPtr)
		case ir.MulAdd:
			emitMulAdd(builder, i8, curPtr, in)
		case ir.Write:
			v := builder.CreateLoad(curPtr, "")
			builder.CreateCall(mod.NamedFunction("bf_putchar"), []llvm.Value{v}, "")
		case ir.Read:
			v := builder.CreateCall(mod.NamedFunction("bf_getchar"), nil, "")
			builder.CreateStore(v, curPtr)
		case ir.MemScan:
			return errors.New("ssaout: MemScan is not supported by the structured-IR back end; disable --vectorize-mem-scans with --llvm")
		case ir.JumpIfZero:
			pred := builder.GetInsertBlock()

			header := llvm.AddBasicBlock(fn, fmt.Sprintf("label%d", in.Own))
			body := llvm.AddBasicBlock(fn, fmt.Sprintf("label%d_body", in.Own))
			after := llvm.AddBasicBlock(fn, fmt.Sprintf("label%d", in.Target))

			builder.CreateBr(header)
			builder.SetInsertPoint(header, header.FirstInstruction())

			phi := builder.CreatePHI(i8ptr, "")
			phi.AddIncoming([]llvm.Value{curPtr}, []llvm.BasicBlock{pred})
			curPtr = phi

			cell := builder.CreateLoad(curPtr, "")
			cond := builder.CreateICmp(llvm.IntEQ, cell, zero8, "")
			builder.CreateCondBr(cond, after, body)

			builder.SetInsertPoint(body, body.FirstInstruction())

			loops = append(loops, loopHeader{header: header, after: after, ptrPhi: phi})
		case ir.JumpUnlessZero:
			if len(loops) == 0 {
				return errors.New("ssaout: unmatched ] at instruction %d", i)
			}

			l := loops[len(loops)-1]
			loops = loops[:len(loops)-1]

			cell := builder.CreateLoad(curPtr, "")
			cond := builder.CreateICmp(llvm.IntNE, cell, zero8, "")

			fromBlock := builder.GetInsertBlock()
			builder.CreateCondBr(cond, l.header, l.after)

			// Back-edge fixup: now that the body's exit block and its
			// live pointer value are known, complete the header φ's
			// second operand (§4.I).
			l.ptrPhi.AddIncoming([]llvm.Value{curPtr}, []llvm.BasicBlock{fromBlock})

			builder.SetInsertPoint(l.after, l.after.FirstInstruction())
			curPtr = l.ptrPhi
		case ir.End:
			builder.CreateRetVoid()
		}
	}

	if builder.GetInsertBlock().LastInstruction().IsNil() {
		builder.CreateRetVoid()
	}

	return llvm.VerifyFunction(fn, llvm.PrintMessageAction)
}

func zeroTape(builder llvm.Builder, tapeBytes llvm.Value, i8, i64 llvm.Type) {
	mod := builder.GetInsertBlock().Parent().GlobalParent()

	memset := mod.NamedFunction("memset")
	if memset.IsNil() {
		memsetType := llvm.FunctionType(llvm.VoidType(), []llvm.Type{tapeBytes.Type(), i8, i64}, false)
		memset = llvm.AddFunction(mod, "memset", memsetType)
	}

	builder.CreateCall(memset, []llvm.Value{
		tapeBytes,
		llvm.ConstInt(i8, 0, false),
		llvm.ConstInt(i64, TapeSize, false),
	}, "")
}

func gepOffset(builder llvm.Builder, p llvm.Value, delta int64) llvm.Value {
	idx := llvm.ConstInt(llvm.Int64Type(), uint64(delta), true)
	return builder.CreateGEP(p, []llvm.Value{idx}, "")
}

func addAt(builder llvm.Builder, i8 llvm.Type, base llvm.Value, offset int64, amount int64) {
	addr := base
	if offset != 0 {
		addr = gepOffset(builder, base, offset)
	}

	old := builder.CreateLoad(addr, "")
	delta := llvm.ConstInt(i8, uint64(amount), true)
	sum := builder.CreateAdd(old, delta, "")
	builder.CreateStore(sum, addr)
}

func emitMulAdd(builder llvm.Builder, i8 llvm.Type, curPtr llvm.Value, in ir.Instr) {
	v := builder.CreateLoad(curPtr, "")
	if in.NegInduction {
		v = builder.CreateNeg(v, "")
	}

	amount := llvm.ConstInt(i8, uint64(in.Amount), true)
	product := builder.CreateMul(v, amount, "")

	target := curPtr
	if in.Offset != 0 {
		target = gepOffset(builder, curPtr, in.Offset)
	}

	old := builder.CreateLoad(target, "")
	sum := builder.CreateAdd(old, product, "")
	builder.CreateStore(sum, target)
}
