package cpu

// execute runs a single, already-fetched opcode and returns its cycle
// count.  The dispatch is one large switch: the hot path wants a jump
// table, not virtual dispatch or per-op allocations.
func (c *CPU) execute(op uint8) uint32 {

	// Rockwell/WDC bit-manipulation opcodes follow a column pattern
	// and are handled before the main switch.
	//
	// RMBn: 07,17,..,77 clear bit n in a zero-page byte.
	// SMBn: 87,97,..,F7 set bit n in a zero-page byte.
	if op&0x0F == 0x07 {
		bit := (op >> 4) & 0x07
		zp := c.fetch8()
		m := c.read8(uint16(zp))
		if op&0x80 != 0 {
			m |= 1 << bit
		} else {
			m &^= 1 << bit
		}
		c.write8(uint16(zp), m)
		return 5
	}

	// BBRn: 0F,1F,..,7F branch if bit n clear.
	// BBSn: 8F,9F,..,FF branch if bit n set.
	if op&0x0F == 0x0F {
		bit := (op >> 4) & 0x07
		isBBS := op&0x80 != 0
		zp := c.fetch8()
		rel := int8(c.fetch8())

		m := c.read8(uint16(zp))
		bitSet := m&(1<<bit) != 0
		take := bitSet == isBBS
		if take {
			from := c.PC
			to := from + uint16(int16(rel))
			if from&0xFF00 != to&0xFF00 {
				c.dummyReadLastInstructionByte()
			}
			c.PC = to
			c.recordPCChange(from, to)
		}
		return 5
	}

	switch op {
	case 0x00: // BRK
		// BRK is a two-byte instruction; the pushed address skips
		// the signature byte.
		brkPC := c.PC - 1
		c.PC++
		c.push16(c.PC)
		c.push8(c.P | FlagB | FlagU)
		c.setFlag(FlagI, true)
		c.setFlag(FlagD, false)
		irqVector := c.read16(vecIRQ)
		c.PC = irqVector
		c.recordPCChange(brkPC, irqVector)
		return 7

	case 0xEA: // NOP
		return 2

	case 0xDB: // STP
		c.stopped = true
		return 3

	case 0xCB: // WAI
		c.waiting = true
		return 3

	// Flag operations
	case 0x18: // CLC
		c.setFlag(FlagC, false)
		return 2
	case 0x38: // SEC
		c.setFlag(FlagC, true)
		return 2
	case 0x58: // CLI
		c.setFlag(FlagI, false)
		return 2
	case 0x78: // SEI
		c.setFlag(FlagI, true)
		return 2
	case 0xD8: // CLD
		c.setFlag(FlagD, false)
		return 2
	case 0xF8: // SED
		c.setFlag(FlagD, true)
		return 2
	case 0xB8: // CLV
		c.setFlag(FlagV, false)
		return 2

	// Transfers
	case 0xAA: // TAX
		c.X = c.A
		c.setNZ(c.X)
		return 2
	case 0x8A: // TXA
		c.A = c.X
		c.setNZ(c.A)
		return 2
	case 0xA8: // TAY
		c.Y = c.A
		c.setNZ(c.Y)
		return 2
	case 0x98: // TYA
		c.A = c.Y
		c.setNZ(c.A)
		return 2
	case 0xBA: // TSX
		c.X = c.SP
		c.setNZ(c.X)
		return 2
	case 0x9A: // TXS
		c.SP = c.X
		return 2

	// Register increments/decrements
	case 0xE8: // INX
		c.X++
		c.setNZ(c.X)
		return 2
	case 0xCA: // DEX
		c.X--
		c.setNZ(c.X)
		return 2
	case 0xC8: // INY
		c.Y++
		c.setNZ(c.Y)
		return 2
	case 0x88: // DEY
		c.Y--
		c.setNZ(c.Y)
		return 2
	case 0x1A: // INC A
		c.A++
		c.setNZ(c.A)
		return 2
	case 0x3A: // DEC A
		c.A--
		c.setNZ(c.A)
		return 2

	// Stack
	case 0x48: // PHA
		c.push8(c.A)
		return 3
	case 0x68: // PLA
		c.A = c.pull8()
		c.setNZ(c.A)
		return 4
	case 0x08: // PHP
		c.push8(c.P | FlagB | FlagU)
		return 3
	case 0x28: // PLP
		c.P = c.pull8() | FlagU
		return 4
	case 0xDA: // PHX
		c.push8(c.X)
		return 3
	case 0xFA: // PLX
		c.X = c.pull8()
		c.setNZ(c.X)
		return 4
	case 0x5A: // PHY
		c.push8(c.Y)
		return 3
	case 0x7A: // PLY
		c.Y = c.pull8()
		c.setNZ(c.Y)
		return 4

	// Jumps and returns
	case 0x4C: // JMP abs
		jmpPC := c.PC - 1
		target := c.fetch16()
		c.PC = target
		c.recordPCChange(jmpPC, target)
		return 3
	case 0x6C: // JMP (abs)
		jmpPC := c.PC - 1
		ptr := c.fetch16()
		// The 65C02 fixes the NMOS page-wrap bug here.
		target := c.read16(ptr)
		if ptr == coutVectorPtr && c.cout != nil {
			c.emitCout()
		}
		c.PC = target
		c.recordPCChange(jmpPC, target)
		return 5
	case 0x7C: // JMP (abs,X)
		jmpPC := c.PC - 1
		target := c.addrAbsIndX()
		c.PC = target
		c.recordPCChange(jmpPC, target)
		return 6
	case 0x20: // JSR abs
		target := c.fetch16()
		return c.jsrAbs(target)
	case 0x60: // RTS
		rtsPC := c.PC - 1
		returnAddr := c.pull16() + 1
		c.PC = returnAddr
		c.recordPCChange(rtsPC, returnAddr)
		return 6
	case 0x40: // RTI
		rtiPC := c.PC - 1
		c.P = c.pull8() | FlagU
		returnPC := c.pull16()
		c.PC = returnPC
		c.recordPCChange(rtiPC, returnPC)
		return 6

	// Branches
	case 0x80: // BRA
		c.branch(true)
		return 3
	case 0x10: // BPL
		c.branch(!c.getFlag(FlagN))
		return 2
	case 0x30: // BMI
		c.branch(c.getFlag(FlagN))
		return 2
	case 0x50: // BVC
		c.branch(!c.getFlag(FlagV))
		return 2
	case 0x70: // BVS
		c.branch(c.getFlag(FlagV))
		return 2
	case 0x90: // BCC
		c.branch(!c.getFlag(FlagC))
		return 2
	case 0xB0: // BCS
		c.branch(c.getFlag(FlagC))
		return 2
	case 0xD0: // BNE
		c.branch(!c.getFlag(FlagZ))
		return 2
	case 0xF0: // BEQ
		c.branch(c.getFlag(FlagZ))
		return 2

	// LDA
	case 0xA9:
		c.A = c.fetch8()
		c.setNZ(c.A)
		return 2
	case 0xA5:
		c.A = c.read8(c.addrZP())
		c.setNZ(c.A)
		return 3
	case 0xB5:
		c.A = c.read8(c.addrZPX())
		c.setNZ(c.A)
		return 4
	case 0xAD:
		c.A = c.read8(c.addrAbs())
		c.setNZ(c.A)
		return 4
	case 0xBD:
		var pc bool
		a := c.addrAbsX(&pc)
		c.A = c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(4, pc)
	case 0xB9:
		var pc bool
		a := c.addrAbsY(&pc)
		c.A = c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(4, pc)
	case 0xA1:
		c.A = c.read8(c.addrIndX())
		c.setNZ(c.A)
		return 6
	case 0xB1:
		var pc bool
		a := c.addrIndY(&pc)
		c.A = c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(5, pc)
	case 0xB2: // LDA (zp)
		c.A = c.read8(c.addrZPInd())
		c.setNZ(c.A)
		return 5

	// LDX
	case 0xA2:
		c.X = c.fetch8()
		c.setNZ(c.X)
		return 2
	case 0xA6:
		c.X = c.read8(c.addrZP())
		c.setNZ(c.X)
		return 3
	case 0xB6:
		c.X = c.read8(c.addrZPY())
		c.setNZ(c.X)
		return 4
	case 0xAE:
		c.X = c.read8(c.addrAbs())
		c.setNZ(c.X)
		return 4
	case 0xBE:
		var pc bool
		a := c.addrAbsY(&pc)
		c.X = c.read8PageCrossed(a, pc)
		c.setNZ(c.X)
		return cycles(4, pc)

	// LDY
	case 0xA0:
		c.Y = c.fetch8()
		c.setNZ(c.Y)
		return 2
	case 0xA4:
		c.Y = c.read8(c.addrZP())
		c.setNZ(c.Y)
		return 3
	case 0xB4:
		c.Y = c.read8(c.addrZPX())
		c.setNZ(c.Y)
		return 4
	case 0xAC:
		c.Y = c.read8(c.addrAbs())
		c.setNZ(c.Y)
		return 4
	case 0xBC:
		var pc bool
		a := c.addrAbsX(&pc)
		c.Y = c.read8PageCrossed(a, pc)
		c.setNZ(c.Y)
		return cycles(4, pc)

	// STA
	case 0x85:
		c.write8(c.addrZP(), c.A)
		return 3
	case 0x95:
		c.write8(c.addrZPX(), c.A)
		return 4
	case 0x8D:
		c.write8(c.addrAbs(), c.A)
		return 4
	case 0x9D:
		var pc bool
		c.write8(c.addrAbsX(&pc), c.A)
		return 5
	case 0x99:
		var pc bool
		c.write8(c.addrAbsY(&pc), c.A)
		return 5
	case 0x81:
		c.write8(c.addrIndX(), c.A)
		return 6
	case 0x91:
		var pc bool
		c.write8(c.addrIndY(&pc), c.A)
		return 6
	case 0x92: // STA (zp)
		c.write8(c.addrZPInd(), c.A)
		return 5

	// STX
	case 0x86:
		c.write8(c.addrZP(), c.X)
		return 3
	case 0x96:
		c.write8(c.addrZPY(), c.X)
		return 4
	case 0x8E:
		c.write8(c.addrAbs(), c.X)
		return 4

	// STY
	case 0x84:
		c.write8(c.addrZP(), c.Y)
		return 3
	case 0x94:
		c.write8(c.addrZPX(), c.Y)
		return 4
	case 0x8C:
		c.write8(c.addrAbs(), c.Y)
		return 4

	// STZ
	case 0x64:
		c.write8(c.addrZP(), 0)
		return 3
	case 0x74:
		c.write8(c.addrZPX(), 0)
		return 4
	case 0x9C:
		c.write8(c.addrAbs(), 0)
		return 4
	case 0x9E:
		var pc bool
		c.write8(c.addrAbsX(&pc), 0)
		return 5

	// ORA
	case 0x09:
		c.A |= c.fetch8()
		c.setNZ(c.A)
		return 2
	case 0x05:
		c.A |= c.read8(c.addrZP())
		c.setNZ(c.A)
		return 3
	case 0x15:
		c.A |= c.read8(c.addrZPX())
		c.setNZ(c.A)
		return 4
	case 0x0D:
		c.A |= c.read8(c.addrAbs())
		c.setNZ(c.A)
		return 4
	case 0x1D:
		var pc bool
		a := c.addrAbsX(&pc)
		c.A |= c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(4, pc)
	case 0x19:
		var pc bool
		a := c.addrAbsY(&pc)
		c.A |= c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(4, pc)
	case 0x01:
		c.A |= c.read8(c.addrIndX())
		c.setNZ(c.A)
		return 6
	case 0x11:
		var pc bool
		a := c.addrIndY(&pc)
		c.A |= c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(5, pc)
	case 0x12: // ORA (zp)
		c.A |= c.read8(c.addrZPInd())
		c.setNZ(c.A)
		return 5

	// AND
	case 0x29:
		c.A &= c.fetch8()
		c.setNZ(c.A)
		return 2
	case 0x25:
		c.A &= c.read8(c.addrZP())
		c.setNZ(c.A)
		return 3
	case 0x35:
		c.A &= c.read8(c.addrZPX())
		c.setNZ(c.A)
		return 4
	case 0x2D:
		c.A &= c.read8(c.addrAbs())
		c.setNZ(c.A)
		return 4
	case 0x3D:
		var pc bool
		a := c.addrAbsX(&pc)
		c.A &= c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(4, pc)
	case 0x39:
		var pc bool
		a := c.addrAbsY(&pc)
		c.A &= c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(4, pc)
	case 0x21:
		c.A &= c.read8(c.addrIndX())
		c.setNZ(c.A)
		return 6
	case 0x31:
		var pc bool
		a := c.addrIndY(&pc)
		c.A &= c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(5, pc)
	case 0x32: // AND (zp)
		c.A &= c.read8(c.addrZPInd())
		c.setNZ(c.A)
		return 5

	// EOR
	case 0x49:
		c.A ^= c.fetch8()
		c.setNZ(c.A)
		return 2
	case 0x45:
		c.A ^= c.read8(c.addrZP())
		c.setNZ(c.A)
		return 3
	case 0x55:
		c.A ^= c.read8(c.addrZPX())
		c.setNZ(c.A)
		return 4
	case 0x4D:
		c.A ^= c.read8(c.addrAbs())
		c.setNZ(c.A)
		return 4
	case 0x5D:
		var pc bool
		a := c.addrAbsX(&pc)
		c.A ^= c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(4, pc)
	case 0x59:
		var pc bool
		a := c.addrAbsY(&pc)
		c.A ^= c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(4, pc)
	case 0x41:
		c.A ^= c.read8(c.addrIndX())
		c.setNZ(c.A)
		return 6
	case 0x51:
		var pc bool
		a := c.addrIndY(&pc)
		c.A ^= c.read8PageCrossed(a, pc)
		c.setNZ(c.A)
		return cycles(5, pc)
	case 0x52: // EOR (zp)
		c.A ^= c.read8(c.addrZPInd())
		c.setNZ(c.A)
		return 5

	// ADC
	case 0x69:
		c.A = c.adc(c.A, c.fetch8())
		return 2
	case 0x65:
		c.A = c.adc(c.A, c.read8(c.addrZP()))
		return 3
	case 0x75:
		c.A = c.adc(c.A, c.read8(c.addrZPX()))
		return 4
	case 0x6D:
		c.A = c.adc(c.A, c.read8(c.addrAbs()))
		return 4
	case 0x7D:
		var pc bool
		a := c.addrAbsX(&pc)
		c.A = c.adc(c.A, c.read8PageCrossed(a, pc))
		return cycles(4, pc)
	case 0x79:
		var pc bool
		a := c.addrAbsY(&pc)
		c.A = c.adc(c.A, c.read8PageCrossed(a, pc))
		return cycles(4, pc)
	case 0x61:
		c.A = c.adc(c.A, c.read8(c.addrIndX()))
		return 6
	case 0x71:
		var pc bool
		a := c.addrIndY(&pc)
		c.A = c.adc(c.A, c.read8PageCrossed(a, pc))
		return cycles(5, pc)
	case 0x72: // ADC (zp)
		c.A = c.adc(c.A, c.read8(c.addrZPInd()))
		return 5

	// SBC
	case 0xE9:
		c.A = c.sbc(c.A, c.fetch8())
		return 2
	case 0xE5:
		c.A = c.sbc(c.A, c.read8(c.addrZP()))
		return 3
	case 0xF5:
		c.A = c.sbc(c.A, c.read8(c.addrZPX()))
		return 4
	case 0xED:
		c.A = c.sbc(c.A, c.read8(c.addrAbs()))
		return 4
	case 0xFD:
		var pc bool
		a := c.addrAbsX(&pc)
		c.A = c.sbc(c.A, c.read8PageCrossed(a, pc))
		return cycles(4, pc)
	case 0xF9:
		var pc bool
		a := c.addrAbsY(&pc)
		c.A = c.sbc(c.A, c.read8PageCrossed(a, pc))
		return cycles(4, pc)
	case 0xE1:
		c.A = c.sbc(c.A, c.read8(c.addrIndX()))
		return 6
	case 0xF1:
		var pc bool
		a := c.addrIndY(&pc)
		c.A = c.sbc(c.A, c.read8PageCrossed(a, pc))
		return cycles(5, pc)
	case 0xF2: // SBC (zp)
		c.A = c.sbc(c.A, c.read8(c.addrZPInd()))
		return 5

	// CMP
	case 0xC9:
		c.cmp(c.A, c.fetch8())
		return 2
	case 0xC5:
		c.cmp(c.A, c.read8(c.addrZP()))
		return 3
	case 0xD5:
		c.cmp(c.A, c.read8(c.addrZPX()))
		return 4
	case 0xCD:
		c.cmp(c.A, c.read8(c.addrAbs()))
		return 4
	case 0xDD:
		var pc bool
		a := c.addrAbsX(&pc)
		c.cmp(c.A, c.read8PageCrossed(a, pc))
		return cycles(4, pc)
	case 0xD9:
		var pc bool
		a := c.addrAbsY(&pc)
		c.cmp(c.A, c.read8PageCrossed(a, pc))
		return cycles(4, pc)
	case 0xC1:
		c.cmp(c.A, c.read8(c.addrIndX()))
		return 6
	case 0xD1:
		var pc bool
		a := c.addrIndY(&pc)
		c.cmp(c.A, c.read8PageCrossed(a, pc))
		return cycles(5, pc)
	case 0xD2: // CMP (zp)
		c.cmp(c.A, c.read8(c.addrZPInd()))
		return 5

	// CPX / CPY
	case 0xE0:
		c.cmp(c.X, c.fetch8())
		return 2
	case 0xE4:
		c.cmp(c.X, c.read8(c.addrZP()))
		return 3
	case 0xEC:
		c.cmp(c.X, c.read8(c.addrAbs()))
		return 4
	case 0xC0:
		c.cmp(c.Y, c.fetch8())
		return 2
	case 0xC4:
		c.cmp(c.Y, c.read8(c.addrZP()))
		return 3
	case 0xCC:
		c.cmp(c.Y, c.read8(c.addrAbs()))
		return 4

	// INC memory
	case 0xE6:
		a := c.addrZP()
		v := c.read8(a) + 1
		c.write8(a, v)
		c.setNZ(v)
		return 5
	case 0xF6:
		a := c.addrZPX()
		v := c.read8(a) + 1
		c.write8(a, v)
		c.setNZ(v)
		return 6
	case 0xEE:
		a := c.addrAbs()
		v := c.read8(a) + 1
		c.write8(a, v)
		c.setNZ(v)
		return 6
	case 0xFE:
		var pc bool
		a := c.addrAbsX(&pc)
		v := c.read8(a) + 1
		c.write8(a, v)
		c.setNZ(v)
		return 7

	// DEC memory
	case 0xC6:
		a := c.addrZP()
		v := c.read8(a) - 1
		c.write8(a, v)
		c.setNZ(v)
		return 5
	case 0xD6:
		a := c.addrZPX()
		v := c.read8(a) - 1
		c.write8(a, v)
		c.setNZ(v)
		return 6
	case 0xCE:
		a := c.addrAbs()
		v := c.read8(a) - 1
		c.write8(a, v)
		c.setNZ(v)
		return 6
	case 0xDE:
		var pc bool
		a := c.addrAbsX(&pc)
		v := c.read8(a) - 1
		c.write8(a, v)
		c.setNZ(v)
		return 7

	// ASL
	case 0x0A:
		c.setFlag(FlagC, c.A&0x80 != 0)
		c.A <<= 1
		c.setNZ(c.A)
		return 2
	case 0x06:
		a := c.addrZP()
		v := c.read8(a)
		c.setFlag(FlagC, v&0x80 != 0)
		v <<= 1
		c.write8(a, v)
		c.setNZ(v)
		return 5
	case 0x16:
		a := c.addrZPX()
		v := c.read8(a)
		c.setFlag(FlagC, v&0x80 != 0)
		v <<= 1
		c.write8(a, v)
		c.setNZ(v)
		return 6
	case 0x0E:
		a := c.addrAbs()
		v := c.read8(a)
		c.setFlag(FlagC, v&0x80 != 0)
		v <<= 1
		c.write8(a, v)
		c.setNZ(v)
		return 6
	case 0x1E:
		var pc bool
		a := c.addrAbsX(&pc)
		v := c.read8(a)
		c.setFlag(FlagC, v&0x80 != 0)
		v <<= 1
		c.write8(a, v)
		c.setNZ(v)
		return 7

	// LSR
	case 0x4A:
		c.setFlag(FlagC, c.A&0x01 != 0)
		c.A >>= 1
		c.setNZ(c.A)
		return 2
	case 0x46:
		a := c.addrZP()
		v := c.read8(a)
		c.setFlag(FlagC, v&0x01 != 0)
		v >>= 1
		c.write8(a, v)
		c.setNZ(v)
		return 5
	case 0x56:
		a := c.addrZPX()
		v := c.read8(a)
		c.setFlag(FlagC, v&0x01 != 0)
		v >>= 1
		c.write8(a, v)
		c.setNZ(v)
		return 6
	case 0x4E:
		a := c.addrAbs()
		v := c.read8(a)
		c.setFlag(FlagC, v&0x01 != 0)
		v >>= 1
		c.write8(a, v)
		c.setNZ(v)
		return 6
	case 0x5E:
		var pc bool
		a := c.addrAbsX(&pc)
		v := c.read8(a)
		c.setFlag(FlagC, v&0x01 != 0)
		v >>= 1
		c.write8(a, v)
		c.setNZ(v)
		return 7

	// ROL
	case 0x2A:
		carry := c.getFlag(FlagC)
		c.setFlag(FlagC, c.A&0x80 != 0)
		c.A <<= 1
		if carry {
			c.A |= 0x01
		}
		c.setNZ(c.A)
		return 2
	case 0x26:
		return c.rolMem(c.addrZP(), 5)
	case 0x36:
		return c.rolMem(c.addrZPX(), 6)
	case 0x2E:
		return c.rolMem(c.addrAbs(), 6)
	case 0x3E:
		var pc bool
		return c.rolMem(c.addrAbsX(&pc), 7)

	// ROR
	case 0x6A:
		carry := c.getFlag(FlagC)
		c.setFlag(FlagC, c.A&0x01 != 0)
		c.A >>= 1
		if carry {
			c.A |= 0x80
		}
		c.setNZ(c.A)
		return 2
	case 0x66:
		return c.rorMem(c.addrZP(), 5)
	case 0x76:
		return c.rorMem(c.addrZPX(), 6)
	case 0x6E:
		return c.rorMem(c.addrAbs(), 6)
	case 0x7E:
		var pc bool
		return c.rorMem(c.addrAbsX(&pc), 7)

	// BIT
	case 0x89: // BIT #imm only affects Z
		v := c.fetch8()
		c.setFlag(FlagZ, c.A&v == 0)
		return 2
	case 0x24:
		c.bit(c.read8(c.addrZP()))
		return 3
	case 0x2C:
		c.bit(c.read8(c.addrAbs()))
		return 4
	case 0x34:
		c.bit(c.read8(c.addrZPX()))
		return 4
	case 0x3C:
		var pc bool
		a := c.addrAbsX(&pc)
		c.bit(c.read8PageCrossed(a, pc))
		return cycles(4, pc)

	// TSB / TRB
	case 0x04:
		c.tsb(c.addrZP())
		return 5
	case 0x0C:
		c.tsb(c.addrAbs())
		return 6
	case 0x14:
		c.trb(c.addrZP())
		return 5
	case 0x1C:
		c.trb(c.addrAbs())
		return 6

	// Reserved opcodes on the WDC 65C02 are documented NOPs of
	// various shapes.

	// 1-byte, 1-cycle NOPs
	case 0x03, 0x0B, 0x13, 0x1B, 0x23, 0x2B, 0x33, 0x3B,
		0x43, 0x4B, 0x53, 0x5B, 0x63, 0x6B, 0x73, 0x7B,
		0x83, 0x8B, 0x93, 0x9B, 0xA3, 0xAB, 0xB3, 0xBB,
		0xC3, 0xD3, 0xE3, 0xEB, 0xF3, 0xFB:
		return 1

	// 2-byte, 2-cycle NOP immediate
	case 0x02, 0x22, 0x42, 0x62, 0x82, 0xC2, 0xE2:
		c.fetch8()
		return 2

	// 2-byte NOP with zero-page read
	case 0x44:
		zp := c.fetch8()
		_ = c.read8(uint16(zp))
		return 3

	// 2-byte NOP with zp,X read
	case 0x54, 0xD4, 0xF4:
		zp := c.fetch8()
		_ = c.read8(uint16(zp + c.X))
		return 4

	// 3-byte NOP with absolute read
	case 0xDC, 0xFC:
		a := c.fetch16()
		_ = c.read8(a)
		return 4

	// 3-byte NOP; the 8-cycle oddball
	case 0x5C:
		a := c.fetch16()
		_ = c.read8(a)
		return 8

	default:
		return 2
	}
}

// bit applies the BIT flag behaviour for non-immediate modes.
func (c *CPU) bit(v uint8) {
	c.setFlag(FlagZ, c.A&v == 0)
	c.setFlag(FlagN, v&0x80 != 0)
	c.setFlag(FlagV, v&0x40 != 0)
}

func (c *CPU) rolMem(addr uint16, cost uint32) uint32 {
	v := c.read8(addr)
	carry := c.getFlag(FlagC)
	c.setFlag(FlagC, v&0x80 != 0)
	v <<= 1
	if carry {
		v |= 0x01
	}
	c.write8(addr, v)
	c.setNZ(v)
	return cost
}

func (c *CPU) rorMem(addr uint16, cost uint32) uint32 {
	v := c.read8(addr)
	carry := c.getFlag(FlagC)
	c.setFlag(FlagC, v&0x01 != 0)
	v >>= 1
	if carry {
		v |= 0x80
	}
	c.write8(addr, v)
	c.setNZ(v)
	return cost
}

// cycles adds the page-cross penalty to a base cycle count.
func cycles(base uint32, pageCrossed bool) uint32 {
	if pageCrossed {
		return base + 1
	}
	return base
}
