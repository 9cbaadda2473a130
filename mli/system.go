// This file implements the MLI system calls: GET_TIME, the interrupt
// table management, and the block-device stubs.

package mli

import (
	"time"

	"github.com/prodos8/prodosulator/memory"
	"github.com/prodos8/prodosulator/metadata"
)

// The ProDOS global page holds the current date and time.
const (
	globalDateAddr = 0xBF90
	globalTimeAddr = 0xBF92
)

// callGetTime implements GET_TIME ($82).  Per the ProDOS 8 Technical
// Reference this call has no parameter list and cannot fail; the
// parameter-count byte is ignored.
func callGetTime(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	now := time.Now()

	memory.WriteU16(view, globalDateAddr, metadata.EncodeDate(now))
	memory.WriteU16(view, globalTimeAddr, metadata.EncodeTime(now))

	return NoError
}

// callAllocInterrupt implements ALLOC_INTERRUPT ($40), recording a
// handler pointer in the lowest free slot and returning the slot
// number at +1.
func callAllocInterrupt(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	intCodePtr := memory.ReadU16(view, paramAddr+2)
	if intCodePtr == 0 {
		return InvalidParameter
	}

	slot := uint8(0)
	for i := 0; i < maxInterruptSlots; i++ {
		if ctx.interruptSlots[i] == 0 {
			slot = uint8(i + 1)
			break
		}
	}
	if slot == 0 {
		return InterruptTableFull
	}

	ctx.interruptSlots[slot-1] = intCodePtr
	memory.WriteU8(view, paramAddr+1, slot)
	return NoError
}

// callDeallocInterrupt implements DEALLOC_INTERRUPT ($41).
func callDeallocInterrupt(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	intNum := memory.ReadU8(view, paramAddr+1)
	if intNum < 1 || intNum > maxInterruptSlots {
		return InvalidParameter
	}

	ctx.interruptSlots[intNum-1] = 0
	return NoError
}

// callReadBlock implements READ_BLOCK ($80).  There is no block
// device behind the emulated volumes, so the call always fails once
// its parameter count has been validated.
func callReadBlock(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	return IOError
}

// callWriteBlock implements WRITE_BLOCK ($81); see callReadBlock.
func callWriteBlock(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	return IOError
}
