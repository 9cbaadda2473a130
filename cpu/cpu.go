// Package cpu implements the 65C02 processor at the heart of the
// emulator: all documented opcodes, the CMOS addressing modes, decimal
// mode, and the bus quirks that ProDOS-era software relies upon.
//
// Two hooks make this more than a plain interpreter.  A JSR whose
// target is $BF00 is trapped and serviced by the attached MLI context
// rather than executed, which is how ProDOS system calls reach the
// host.  A JMP (abs) through the vector at $0036 fires the attached
// COUT trace sink, which is how character output becomes visible.
package cpu

import (
	"github.com/prodos8/prodosulator/memory"
	"github.com/prodos8/prodosulator/mli"
	"github.com/prodos8/prodosulator/trace"
)

// Processor status flags.  Bit 5 is unused on the 65C02 and always
// reads as set.
const (
	FlagC = uint8(0x01)
	FlagZ = uint8(0x02)
	FlagI = uint8(0x04)
	FlagD = uint8(0x08)
	FlagB = uint8(0x10)
	FlagU = uint8(0x20)
	FlagV = uint8(0x40)
	FlagN = uint8(0x80)
)

const (
	// vecReset is the address holding the reset vector.
	vecReset = 0xFFFC

	// vecIRQ is the address holding the IRQ/BRK vector.
	vecIRQ = 0xFFFE

	// coutVectorPtr is the zero-page-adjacent pointer that ProDOS
	// uses for character output.  JMP ($0036) fires the trace sink.
	coutVectorPtr = 0x0036

	// mliEntryPoint is the ProDOS MLI entry point.  JSR $BF00 is
	// trapped when an MLI context is attached.
	mliEntryPoint = 0xBF00
)

// pcRingSize is the capacity of the PC-change ring buffer.
const pcRingSize = 100

// PCChange records one explicit change of the program counter, with a
// run-length count for consecutive identical transitions.
type PCChange struct {
	From  uint16
	To    uint16
	Count uint32
}

// CPU holds the registers and execution state of the processor.
type CPU struct {

	// PC is the program counter.
	PC uint16

	// A, X and Y are the accumulator and index registers.
	A uint8
	X uint8
	Y uint8

	// SP is the stack pointer; the stack lives at $0100-$01FF.
	SP uint8

	// P is the processor status register.
	P uint8

	// InstructionCount is incremented once per executed instruction.
	InstructionCount uint64

	// Mem is the memory the processor executes against.
	Mem *memory.Memory

	waiting bool
	stopped bool

	mli  *mli.Context
	cout *trace.Output

	ring      [pcRingSize]PCChange
	ringIndex int
	ringUsed  int
}

// New returns a CPU attached to the given memory.  Reset must be
// called before execution.
func New(mem *memory.Memory) *CPU {
	return &CPU{Mem: mem}
}

// AttachMLI connects an MLI context, enabling the JSR $BF00 trap.
func (c *CPU) AttachMLI(ctx *mli.Context) {
	c.mli = ctx
}

// DetachMLI disconnects the MLI context; JSR $BF00 reverts to a
// normal subroutine call.
func (c *CPU) DetachMLI() {
	c.mli = nil
}

// AttachCout connects a COUT trace sink, fired on JMP ($0036).
func (c *CPU) AttachCout(out *trace.Output) {
	c.cout = out
}

// Waiting reports whether the CPU has executed WAI.
func (c *CPU) Waiting() bool {
	return c.waiting
}

// Stopped reports whether the CPU has executed STP.
func (c *CPU) Stopped() bool {
	return c.stopped
}

// Reset loads the program counter from the reset vector and restores
// the power-on register state.  The PC ring is cleared and the reset
// transition is recorded as its first entry.
func (c *CPU) Reset() {
	c.waiting = false
	c.stopped = false

	c.SP = 0xFF
	c.P = FlagI | FlagU

	c.ringIndex = 0
	c.ringUsed = 0

	resetVector := c.read16(vecReset)
	c.PC = resetVector
	c.recordPCChange(0x0000, resetVector)
	c.InstructionCount = 0
}

// Run executes up to maxInstructions instructions, returning the
// number actually executed.  It returns early if the CPU stops or
// begins waiting.
func (c *CPU) Run(maxInstructions uint64) uint64 {
	executed := uint64(0)
	for executed < maxInstructions && !c.stopped && !c.waiting {
		c.Step()
		executed++
		if c.waiting {
			break
		}
	}
	return executed
}

// Step fetches and executes a single instruction, returning the cycle
// count.  A stopped or waiting CPU does nothing and yields zero.
func (c *CPU) Step() uint32 {
	if c.stopped || c.waiting {
		return 0
	}

	c.InstructionCount++
	op := c.fetch8()
	return c.execute(op)
}

// PCRing returns the recorded PC changes, newest first.
func (c *CPU) PCRing() []PCChange {
	out := make([]PCChange, 0, c.ringUsed)
	for i := 0; i < c.ringUsed; i++ {
		idx := (c.ringIndex + pcRingSize - 1 - i) % pcRingSize
		out = append(out, c.ring[idx])
	}
	return out
}

// recordPCChange notes an explicit PC transition in the ring buffer.
// ROM-internal transitions ($F800-$FFFF on both ends) are filtered,
// and consecutive identical transitions collapse into one entry.
func (c *CPU) recordPCChange(from uint16, to uint16) {
	if from >= 0xF800 && to >= 0xF800 {
		return
	}

	if c.ringUsed > 0 {
		prev := (c.ringIndex + pcRingSize - 1) % pcRingSize
		if c.ring[prev].From == from && c.ring[prev].To == to {
			c.ring[prev].Count++
			return
		}
	}

	c.ring[c.ringIndex] = PCChange{From: from, To: to, Count: 1}
	c.ringIndex = (c.ringIndex + 1) % pcRingSize
	if c.ringUsed < pcRingSize {
		c.ringUsed++
	}
}

//
// Bus access
//

func (c *CPU) read8(addr uint16) uint8 {
	return c.Mem.Read(addr)
}

func (c *CPU) write8(addr uint16, value uint8) {
	c.Mem.Write(addr, value)
}

func (c *CPU) read16(addr uint16) uint16 {
	lo := c.read8(addr)
	hi := c.read8(addr + 1)
	return uint16(hi)<<8 | uint16(lo)
}

// read16ZP reads a pointer from the zero page; the high byte of the
// pointer address wraps within page zero.
func (c *CPU) read16ZP(zp uint8) uint16 {
	lo := c.read8(uint16(zp))
	hi := c.read8(uint16(zp + 1))
	return uint16(hi)<<8 | uint16(lo)
}

// dummyReadLastInstructionByte models the 65C02 page-cross quirk: the
// extra bus read is of the last instruction byte, not an invalid
// effective address as on the NMOS 6502.
func (c *CPU) dummyReadLastInstructionByte() {
	_ = c.read8(c.PC - 1)
}

func (c *CPU) read8PageCrossed(addr uint16, pageCrossed bool) uint8 {
	if pageCrossed {
		c.dummyReadLastInstructionByte()
	}
	return c.read8(addr)
}

func (c *CPU) fetch8() uint8 {
	v := c.read8(c.PC)
	c.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	lo := c.fetch8()
	hi := c.fetch8()
	return uint16(hi)<<8 | uint16(lo)
}

func (c *CPU) push8(v uint8) {
	c.write8(0x0100|uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pull8() uint8 {
	c.SP++
	return c.read8(0x0100 | uint16(c.SP))
}

func (c *CPU) push16(v uint16) {
	c.push8(uint8(v >> 8))
	c.push8(uint8(v & 0xFF))
}

func (c *CPU) pull16() uint16 {
	lo := c.pull8()
	hi := c.pull8()
	return uint16(hi)<<8 | uint16(lo)
}

//
// Flags
//

func (c *CPU) setFlag(mask uint8, v bool) {
	if v {
		c.P |= mask
	} else {
		c.P &^= mask
	}
	c.P |= FlagU
}

func (c *CPU) getFlag(mask uint8) bool {
	return c.P&mask != 0
}

func (c *CPU) setNZ(v uint8) {
	c.setFlag(FlagZ, v == 0)
	c.setFlag(FlagN, v&0x80 != 0)
}

//
// Addressing modes
//

func (c *CPU) addrZP() uint16 {
	return uint16(c.fetch8())
}

func (c *CPU) addrZPX() uint16 {
	return uint16(c.fetch8() + c.X)
}

func (c *CPU) addrZPY() uint16 {
	return uint16(c.fetch8() + c.Y)
}

func (c *CPU) addrAbs() uint16 {
	return c.fetch16()
}

func (c *CPU) addrAbsX(pageCrossed *bool) uint16 {
	base := c.fetch16()
	addr := base + uint16(c.X)
	*pageCrossed = base&0xFF00 != addr&0xFF00
	return addr
}

func (c *CPU) addrAbsY(pageCrossed *bool) uint16 {
	base := c.fetch16()
	addr := base + uint16(c.Y)
	*pageCrossed = base&0xFF00 != addr&0xFF00
	return addr
}

func (c *CPU) addrIndX() uint16 {
	zp := c.fetch8() + c.X
	return c.read16ZP(zp)
}

func (c *CPU) addrIndY(pageCrossed *bool) uint16 {
	zp := c.fetch8()
	base := c.read16ZP(zp)
	addr := base + uint16(c.Y)
	*pageCrossed = base&0xFF00 != addr&0xFF00
	return addr
}

func (c *CPU) addrZPInd() uint16 {
	zp := c.fetch8()
	return c.read16ZP(zp)
}

func (c *CPU) addrAbsIndX() uint16 {
	base := c.fetch16()
	ptr := base + uint16(c.X)
	return c.read16(ptr)
}

//
// Arithmetic helpers
//

// adc adds with carry.  In decimal mode the N and Z flags reflect the
// BCD result while V is computed on the binary sum, per the 65C02.
func (c *CPU) adc(a uint8, b uint8) uint8 {
	carry := uint16(0)
	if c.getFlag(FlagC) {
		carry = 1
	}
	sum := uint16(a) + uint16(b) + carry

	v := (^(a ^ b) & (a ^ uint8(sum)) & 0x80) != 0

	if c.getFlag(FlagD) {
		lo := uint16(a&0x0F) + uint16(b&0x0F) + carry
		hi := uint16(a&0xF0) + uint16(b&0xF0)

		if lo > 0x09 {
			lo += 0x06
		}
		if lo > 0x0F {
			hi += 0x10
		}
		if hi&0x1F0 > 0x90 {
			hi += 0x60
		}

		bcd := (lo & 0x0F) | (hi & 0xF0)
		c.setFlag(FlagC, hi&0xFF00 != 0)
		c.setFlag(FlagV, v)
		r := uint8(bcd & 0xFF)
		c.setNZ(r)
		return r
	}

	c.setFlag(FlagC, sum > 0xFF)
	c.setFlag(FlagV, v)
	r := uint8(sum & 0xFF)
	c.setNZ(r)
	return r
}

// sbc subtracts with borrow, with the same decimal-mode flag rules
// as adc.
func (c *CPU) sbc(a uint8, b uint8) uint8 {
	borrow := uint16(1)
	if c.getFlag(FlagC) {
		borrow = 0
	}
	diff := uint16(a) - uint16(b) - borrow

	v := ((a ^ b) & (a ^ uint8(diff)) & 0x80) != 0

	if c.getFlag(FlagD) {
		al := int16(a&0x0F) - int16(b&0x0F) - int16(borrow)
		ah := int16(a&0xF0) - int16(b&0xF0)

		if al < 0 {
			al -= 0x06
			ah -= 0x10
		}
		if ah < 0 {
			ah -= 0x60
		}

		bcd := uint8(uint16(al)&0x0F) | uint8(uint16(ah)&0xF0)
		c.setFlag(FlagC, diff < 0x100)
		c.setFlag(FlagV, v)
		c.setNZ(bcd)
		return bcd
	}

	c.setFlag(FlagC, diff < 0x100)
	c.setFlag(FlagV, v)
	r := uint8(diff & 0xFF)
	c.setNZ(r)
	return r
}

func (c *CPU) cmp(r uint8, v uint8) {
	diff := uint16(r) - uint16(v)
	c.setFlag(FlagC, diff < 0x100)
	c.setNZ(uint8(diff & 0xFF))
}

func (c *CPU) tsb(addr uint16) {
	m := c.read8(addr)
	c.setFlag(FlagZ, m&c.A == 0)
	c.write8(addr, m|c.A)
}

func (c *CPU) trb(addr uint16) {
	m := c.read8(addr)
	c.setFlag(FlagZ, m&c.A == 0)
	c.write8(addr, m&^c.A)
}

// branch consumes the relative operand and, if cond holds, moves the
// PC.  A taken branch which crosses a page performs the 65C02 extra
// read of the last instruction byte.
func (c *CPU) branch(cond bool) {
	rel := int8(c.fetch8())
	if !cond {
		return
	}
	from := c.PC
	to := from + uint16(int16(rel))
	if from&0xFF00 != to&0xFF00 {
		c.dummyReadLastInstructionByte()
	}
	c.PC = to
	c.recordPCChange(from, to)
}

// jsrAbs performs a subroutine call, or the MLI trap when the target
// is $BF00 and a context is attached.
//
// The ProDOS MLI calling convention is:
//
//	JSR $BF00
//	.byte callNumber
//	.word paramBlockAddr
//
// The trap reads the inline operands, advances the PC past them,
// dispatches the call, and returns with A holding the error code,
// carry set on error, N/Z reflecting A, and decimal mode cleared.
func (c *CPU) jsrAbs(target uint16) uint32 {
	if target == mliEntryPoint && c.mli != nil {
		callNumber := c.read8(c.PC)
		paramBlock := c.read16(c.PC + 1)
		returnPC := c.PC + 3
		c.PC = returnPC
		c.recordPCChange(mliEntryPoint, returnPC)

		err := c.mli.Dispatch(c.Mem.WriteView(), callNumber, paramBlock)

		c.A = err
		c.setFlag(FlagC, err != 0)
		c.setNZ(c.A)
		c.setFlag(FlagD, false)
		return 6
	}

	// Normal JSR: after the operand fetch the PC points at the next
	// instruction, and JSR pushes PC-1.
	ret := c.PC - 1
	jsrPC := ret - 2
	c.push16(ret)
	c.PC = target
	c.recordPCChange(jsrPC, target)
	return 6
}

// emitCout sends one COUT character to the trace sink, expanded into
// printable form.
func (c *CPU) emitCout() {
	for _, b := range []byte(trace.Escape(c.A & 0x7F)) {
		c.cout.PutCharacter(b)
	}
}
