// Package jit implements the machine-code back end (§4.H): the IR is
// compiled lazily, one basic block at a time, into a mapped
// read-write-execute buffer, and the driver alternates between running
// emitted code and extending/backpatching the buffer as previously
// unknown branch targets become known.
package jit

import (
	"unsafe"

	"tlog.app/go/errors"
	"golang.org/x/sys/unix"

	"github.com/Stefan-Mada/bf-compiler/compiler/bracket"
	"github.com/Stefan-Mada/bf-compiler/compiler/ir"
)

// TapeSize matches the text and structured-IR back ends' allocation
// (§7): even, so the midpoint both directions walk from is symmetric.
const TapeSize = 320_000

// bytesPerInstr sizes the executable buffer generously enough that no
// realistic program exhausts it (§4.H: "at least ~32 bytes per IR op").
const bytesPerInstr = 48

// slotWidth is the fixed size every epilogue branch direction occupies,
// whether it currently holds a return-to-driver stub or a resolved jump,
// so patching one never shifts anything emitted after it (§5).
const slotWidth = 16

// block is one lazily-compiled basic block: a run of straight-line IR
// ending in a JumpIfZero, JumpUnlessZero or End.
type block struct {
	start  int
	seq    int32
	offset int // byte offset this block's code begins at in the buffer

	kind ir.Op

	// zeroTarget/nonzeroTarget are the IR positions control reaches when
	// the current cell is, respectively, zero or nonzero at this block's
	// branch. Both are meaningless for an End-terminated block.
	zeroTarget, nonzeroTarget     int
	zeroSlotAt, nonzeroSlotAt     int
	zeroResolved, nonzeroResolved bool
}

// Compiler owns the executable buffer, the tape and the block index for
// one JIT run. It is not reusable across programs.
type Compiler struct {
	instrs []ir.Instr
	idx    bracket.Index

	mem  []byte
	used int

	blocks  map[int]*block
	nextSeq int32

	tape        []byte
	tapePtrWord *uint64
	blockIDWord *int32
}

// Run JIT-compiles and executes instrs to completion, performing I/O
// directly against the process's standard streams as Write/Read
// instructions execute.
func Run(instrs []ir.Instr) error {
	idx, err := bracket.Build(instrs)
	if err != nil {
		return err
	}

	mem, err := unix.Mmap(-1, 0, len(instrs)*bytesPerInstr+slotWidth,
		unix.PROT_READ|unix.PROT_WRITE|unix.PROT_EXEC,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return errors.Wrap(err, "mmap executable buffer")
	}

	defer unix.Munmap(mem) //nolint:errcheck

	tape := make([]byte, TapeSize)

	var tapePtrWord uint64

	var blockIDWord int32

	c := &Compiler{
		instrs:      instrs,
		idx:         idx,
		mem:         mem,
		blocks:      map[int]*block{},
		tape:        tape,
		tapePtrWord: &tapePtrWord,
		blockIDWord: &blockIDWord,
	}

	*c.tapePtrWord = addrOf(&tape[TapeSize/2])

	return c.run()
}

// addrOf bakes the address of a Go value into the form the emitted
// machine code loads as a 64-bit immediate. Go's allocator never moves a
// live heap object, so an address captured once stays valid for every
// block that references it for the rest of the run.
func addrOf(p interface{}) uint64 {
	switch v := p.(type) {
	case *byte:
		return uint64(uintptr(unsafe.Pointer(v)))
	case *uint64:
		return uint64(uintptr(unsafe.Pointer(v)))
	case *int32:
		return uint64(uintptr(unsafe.Pointer(v)))
	default:
		panic("jit: addrOf of unsupported type")
	}
}

func (c *Compiler) run() error {
	cur := 0

	for {
		b, err := c.ensureBlock(cur)
		if err != nil {
			return err
		}

		c.invoke(b)

		last, ok := c.blockBySeq(*c.blockIDWord)
		if !ok {
			return errors.New("jit: driver lost track of the last executed block")
		}

		if last.kind == ir.End {
			return nil
		}

		target, slotAt, resolved := last.nonzeroTarget, last.nonzeroSlotAt, last.nonzeroResolved
		if c.cellIsZero() {
			target, slotAt, resolved = last.zeroTarget, last.zeroSlotAt, last.zeroResolved
		}

		if !resolved {
			nb, err := c.ensureBlock(target)
			if err != nil {
				return err
			}

			c.patchSlot(slotAt, nb.offset)

			if target == last.zeroTarget {
				last.zeroResolved = true
			}

			if target == last.nonzeroTarget {
				last.nonzeroResolved = true
			}
		}

		cur = target
	}
}

// blockBySeq finds the block whose prologue wrote seq into the
// identifier word. Blocks are few enough per program that a linear scan
// costs nothing next to the JIT compile it would otherwise duplicate
// bookkeeping for.
func (c *Compiler) blockBySeq(seq int32) (*block, bool) {
	for _, b := range c.blocks {
		if b.seq == seq {
			return b, true
		}
	}

	return nil, false
}

// ensureBlock returns the block starting at ir position start, compiling
// it into the buffer the first time it's reached.
func (c *Compiler) ensureBlock(start int) (*block, error) {
	if b, ok := c.blocks[start]; ok {
		return b, nil
	}

	return c.compileBlock(start)
}

func (c *Compiler) compileBlock(start int) (*block, error) {
	b := &block{start: start, seq: c.nextSeq}
	c.nextSeq++

	// base is this block's final buffer offset: nothing else touches
	// c.mem/c.used between here and c.place, so it's known up front and
	// lets emitDirection compute absolute jump displacements immediately
	// instead of patching them again after place copies cd into c.mem.
	base := c.used

	var cd code

	cd.storeBlockID(addrOf(c.blockIDWord), b.seq)
	cd.loadTapePtr(addrOf(c.tapePtrWord))

	if _, err := c.emitBody(&cd, b, start); err != nil {
		return nil, err
	}

	if b.kind == ir.End {
		cd.storeTapePtr(addrOf(c.tapePtrWord))
		cd.ret()
	} else {
		// cmp sets ZF; jz skips over the nonzero-direction slot (which
		// falls straight through when ZF=0) to land on the zero-direction
		// slot immediately following it. The skip distance is always
		// exactly one slotWidth, known before either slot is emitted, so
		// it never needs the backpatch emitDirection's own slots do.
		// The pointer is stored first so that a resolved direct jump hands
		// the next block's prologue the live value, not a stale one.
		cd.storeTapePtr(addrOf(c.tapePtrWord))
		cd.cmpZero()

		dispAt := cd.jz()
		cd.patchU32(dispAt, int32(slotWidth))

		b.nonzeroSlotAt, b.nonzeroResolved = c.emitDirection(&cd, base, b.nonzeroTarget)
		b.zeroSlotAt, b.zeroResolved = c.emitDirection(&cd, base, b.zeroTarget)
	}

	if err := c.place(b, base, cd); err != nil {
		return nil, err
	}

	c.blocks[start] = b

	return b, nil
}

// emitBody encodes straight-line IR starting at start until it reaches a
// branch or End, which it classifies into b.kind and the two successor
// targets without emitting its own bytes — the caller emits the
// cmp/branch epilogue once the whole body is known.
func (c *Compiler) emitBody(cd *code, b *block, start int) (int, error) {
	for i := start; i < len(c.instrs); i++ {
		switch in := c.instrs[i]; in.Op {
		case ir.MoveRight:
			cd.addPtr(1)
		case ir.MoveLeft:
			cd.addPtr(-1)
		case ir.AddPtr:
			d, err := toInt32(in.Delta)
			if err != nil {
				return 0, err
			}

			cd.addPtr(d)
		case ir.Inc:
			cd.sum(1, 0)
		case ir.Dec:
			cd.sum(-1, 0)
		case ir.Sum:
			off, err := toInt32(in.Offset)
			if err != nil {
				return 0, err
			}

			cd.sum(in.Amount, off)
		case ir.Zero:
			cd.zero()
		case ir.MulAdd:
			off, err := toInt32(in.Offset)
			if err != nil {
				return 0, err
			}

			cd.mulAdd(in.Amount, off, in.NegInduction)
		case ir.Write:
			cd.write()
		case ir.Read:
			cd.read()
		case ir.MemScan:
			return 0, errors.New("jit: MemScan is not supported by the machine-code back end; disable --vectorize-mem-scans with --just-in-time")
		case ir.JumpIfZero:
			b.kind = ir.JumpIfZero
			b.zeroTarget = c.idx.Match[i] + 1
			b.nonzeroTarget = i + 1

			return i, nil
		case ir.JumpUnlessZero:
			b.kind = ir.JumpUnlessZero
			b.zeroTarget = i + 1
			b.nonzeroTarget = c.idx.Match[i] + 1

			return i, nil
		case ir.End:
			b.kind = ir.End

			return i, nil
		}
	}

	b.kind = ir.End

	return len(c.instrs), nil
}

// emitDirection emits the slot for one branch direction: a resolved
// direct jump when target has already been compiled — true for a
// JumpUnlessZero's loop-body direction when the body's first block is an
// earlier block; a body that is this block itself is not registered yet,
// so that direction gets a stub too — otherwise a return-to-driver stub to be patched
// in once the driver discovers where the branch actually leads. base is
// this block's final absolute buffer offset, known before place() copies
// cd in (see compileBlock), so the displacement is correct immediately.
func (c *Compiler) emitDirection(cd *code, base, target int) (slotAt int, resolved bool) {
	before := len(*cd)
	slotAt = base + before

	if nb, ok := c.blocks[target]; ok {
		dispAt := cd.jmp()
		cd.patchU32(dispAt, int32(nb.offset-(base+dispAt+4)))
		cd.nop(slotWidth - (len(*cd) - before))

		return slotAt, true
	}

	cd.storeTapePtr(addrOf(c.tapePtrWord))
	cd.ret()
	cd.nop(slotWidth - (len(*cd) - before))

	return slotAt, false
}

// patchSlot rewrites an already-placed slot at the given absolute buffer
// offset with a direct jump to targetOffset, once the driver learns
// where a previously-unresolved branch direction actually leads.
func (c *Compiler) patchSlot(slotAt, targetOffset int) {
	var cd code

	dispAt := cd.jmp()
	cd.patchU32(dispAt, int32(targetOffset-(slotAt+dispAt+4)))
	cd.nop(slotWidth - len(cd))

	copy(c.mem[slotAt:slotAt+slotWidth], cd)
}

func (c *Compiler) place(b *block, base int, cd code) error {
	if base != c.used {
		return errors.New("jit: internal error: block base drifted from buffer cursor")
	}

	if base+len(cd) > len(c.mem) {
		return errors.New("jit: executable buffer exhausted")
	}

	copy(c.mem[base:], cd)

	b.offset = base
	c.used = base + len(cd)

	return nil
}

func (c *Compiler) invoke(b *block) {
	type execFunc func()

	fnPtr := uintptr(unsafe.Pointer(&c.mem[b.offset]))
	fnVal := &fnPtr
	f := *(*execFunc)(unsafe.Pointer(&fnVal))

	f()
}

func (c *Compiler) cellIsZero() bool {
	addr := uintptr(*c.tapePtrWord)

	return *(*byte)(unsafe.Pointer(addr)) == 0 //nolint:govet
}

func toInt32(v int64) (int32, error) {
	if v > 1<<31-1 || v < -(1 << 31) {
		return 0, errors.New("jit: operand %d does not fit a 32-bit displacement", v)
	}

	return int32(v), nil
}
