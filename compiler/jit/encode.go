package jit

// code is an append-only amd64 instruction stream, mirroring the
// byte-at-a-time builders the rest of the corpus's hand-rolled encoders
// use instead of an external assembler.
type code []byte

func (c *code) bytes(bs ...byte) {
	*c = append(*c, bs...)
}

func (c *code) u32(v int32) {
	c.bytes(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (c *code) u64(v uint64) {
	c.bytes(byte(v), byte(v>>8), byte(v>>16), byte(v>>24),
		byte(v>>32), byte(v>>40), byte(v>>48), byte(v>>56))
}

// patchU32 overwrites the 4 bytes at offset off with v, used to backpatch
// a previously-emitted jump displacement or stub once its target becomes
// known.
func (c code) patchU32(off int, v int32) {
	c[off] = byte(v)
	c[off+1] = byte(v >> 8)
	c[off+2] = byte(v >> 16)
	c[off+3] = byte(v >> 24)
}

// loadTapePtr emits `movabs $addr, %r10; mov (%r10), %r13`, fetching the
// live tape pointer out of the driver-owned scratch word into the
// register every block body operates on.
func (c *code) loadTapePtr(addr uint64) {
	c.bytes(0x49, 0xBA) // movabs $imm64, %r10
	c.u64(addr)
	c.bytes(0x4D, 0x8B, 0x2A) // mov (%r10), %r13
}

// storeTapePtr is loadTapePtr's mirror, used in every epilogue so the
// next block invoked — possibly after the driver has run arbitrary Go
// code in between — picks the pointer back up where this one left it.
func (c *code) storeTapePtr(addr uint64) {
	c.bytes(0x49, 0xBA) // movabs $imm64, %r10
	c.u64(addr)
	c.bytes(0x4D, 0x89, 0x2A) // mov %r13, (%r10)
}

// storeBlockID writes this block's sequence number into the driver-owned
// identifier word, the prologue action the design calls out explicitly
// so the driver can tell which block last completed.
func (c *code) storeBlockID(addr uint64, seq int32) {
	c.bytes(0x49, 0xBA) // movabs $imm64, %r10
	c.u64(addr)
	c.bytes(0x41, 0xC7, 0x02) // movl $imm32, (%r10)
	c.u32(seq)
}

func (c *code) addPtr(delta int32) {
	c.bytes(0x49, 0x81, 0xC5) // add $imm32, %r13
	c.u32(delta)
}

func (c *code) sum(amount int8, offset int32) {
	c.bytes(0x41, 0x80, 0x85) // addb $imm8, offset(%r13)
	c.u32(offset)
	c.bytes(byte(amount))
}

func (c *code) zero() {
	c.bytes(0x41, 0xC6, 0x45, 0x00, 0x00) // movb $0, 0(%r13)
}

// mulAdd: load the induction cell, optionally negate, multiply by
// amount, add into the target offset — the machine-code mirror of
// ir.Instr.RenderText's MulAdd fragment.
func (c *code) mulAdd(amount int8, offset int32, neg bool) {
	c.bytes(0x41, 0x8A, 0x45, 0x00) // mov 0(%r13), %al
	if neg {
		c.bytes(0xF6, 0xD8) // neg %al
	}
	c.bytes(0xB1)          // mov $imm8, %cl
	c.bytes(byte(amount))  //
	c.bytes(0xF6, 0xE9)    // imul %cl (al *= cl -> ax, low byte in al)
	c.bytes(0x41, 0x00, 0x85) // add %al, offset(%r13)
	c.u32(offset)
}

// write emits a raw `write(1, %r13, 1)` syscall — the JIT's getchar/
// putchar stand-in, one byte at a time, matching the text back end's
// libc calls in spirit if not in mechanism.
func (c *code) write() {
	c.bytes(0x4C, 0x89, 0xEE) // mov %r13, %rsi
	c.bytes(0x48, 0xC7, 0xC7, 0x01, 0x00, 0x00, 0x00) // mov $1, %rdi
	c.bytes(0x48, 0xC7, 0xC2, 0x01, 0x00, 0x00, 0x00) // mov $1, %rdx
	c.bytes(0x48, 0xC7, 0xC0, 0x01, 0x00, 0x00, 0x00) // mov $1, %rax (sys_write)
	c.bytes(0x0F, 0x05)                               // syscall
}

func (c *code) read() {
	c.bytes(0x4C, 0x89, 0xEE) // mov %r13, %rsi
	c.bytes(0x48, 0x31, 0xFF) // xor %rdi, %rdi (fd 0)
	c.bytes(0x48, 0xC7, 0xC2, 0x01, 0x00, 0x00, 0x00) // mov $1, %rdx
	c.bytes(0x48, 0x31, 0xC0) // xor %rax, %rax (sys_read)
	c.bytes(0x0F, 0x05)       // syscall
}

func (c *code) ret() {
	c.bytes(0xC3)
}

// cmpZero emits `cmpb $0, 0(%r13)`, the test both epilogue branch shapes
// are built on.
func (c *code) cmpZero() {
	c.bytes(0x41, 0x80, 0x7D, 0x00, 0x00)
}

// jz emits a near conditional jump (taken when ZF=1, i.e. the preceding
// cmpZero found the cell zero) with a placeholder displacement,
// returning the offset of that displacement so the caller can patch it
// once the target is known.
func (c *code) jz() (dispAt int) {
	c.bytes(0x0F, 0x84)
	dispAt = len(*c)
	c.u32(0)

	return dispAt
}

func (c *code) jmp() (dispAt int) {
	c.bytes(0xE9)
	dispAt = len(*c)
	c.u32(0)

	return dispAt
}

// nop pads a stub to a fixed width so it can later be overwritten in
// place by a same-length encoded branch without shifting anything after
// it in the buffer.
func (c *code) nop(n int) {
	for i := 0; i < n; i++ {
		c.bytes(0x90)
	}
}
