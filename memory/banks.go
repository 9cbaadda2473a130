package memory

// ReadU8 returns the byte at addr through the given bank view.
func ReadU8(b *Banks, addr uint16) uint8 {
	return b[addr>>12][addr&0x0FFF]
}

// WriteU8 stores a byte at addr through the given bank view.
func WriteU8(b *Banks, addr uint16, value uint8) {
	b[addr>>12][addr&0x0FFF] = value
}

// ReadU16 returns a little-endian word from the given address.
// The access wraps at $FFFF.
func ReadU16(b *Banks, addr uint16) uint16 {
	lo := ReadU8(b, addr)
	hi := ReadU8(b, addr+1)
	return uint16(hi)<<8 | uint16(lo)
}

// WriteU16 stores a little-endian word at the given address.
// The access wraps at $FFFF.
func WriteU16(b *Banks, addr uint16, value uint16) {
	WriteU8(b, addr, uint8(value&0xFF))
	WriteU8(b, addr+1, uint8(value>>8))
}

// ReadU24 returns a little-endian 24-bit value from the given address,
// with the high byte of the result zero.  The access wraps at $FFFF.
func ReadU24(b *Banks, addr uint16) uint32 {
	b0 := ReadU8(b, addr)
	b1 := ReadU8(b, addr+1)
	b2 := ReadU8(b, addr+2)
	return uint32(b2)<<16 | uint32(b1)<<8 | uint32(b0)
}

// WriteU24 stores the low 24 bits of value at the given address,
// little-endian.  The access wraps at $FFFF.
func WriteU24(b *Banks, addr uint16, value uint32) {
	WriteU8(b, addr, uint8(value&0xFF))
	WriteU8(b, addr+1, uint8((value>>8)&0xFF))
	WriteU8(b, addr+2, uint8((value>>16)&0xFF))
}
