// Package memory provides the banked 64k of RAM within which the
// emulator executes its programs, together with the Language Card
// bank-switching hardware of the Apple II.
//
// The address space is divided into sixteen 4k banks, indexed by the
// top four bits of the address.  Banks 0-12 ($0000-$CFFF) are plain
// RAM.  Banks 13-15 ($D000-$FFFF) are overlaid: reads come from either
// the Language Card RAM or the ROM area, and writes go to either the
// Language Card RAM or a throwaway sink, depending on the soft-switch
// state.  Because reads and writes can be routed differently at the
// same time (the ROMIN configuration) the package maintains two bank
// views which are recomputed together whenever the state changes.
package memory

import (
	"fmt"
)

// BankSize is the size of one memory bank, in bytes.
const BankSize = 4096

// NumBanks is the number of banks making up the 64k address space.
const NumBanks = 16

// ROMSize is the size of a loadable ROM image covering $D000-$FFFF.
const ROMSize = 3 * BankSize

// Banks is a bank-pointer view of the 64k address space.  The helpers
// in this package read and write through a view; multi-byte accesses
// are little-endian and wrap at $FFFF.
type Banks [NumBanks][]uint8

// The Language Card soft switches live at $C080-$C08F.
const (
	softSwitchLo = 0xC080
	softSwitchHi = 0xC08F
)

// Memory holds the emulated 64k address space and the Language Card
// state machine.
type Memory struct {

	// mainRAM holds banks 0-12, $0000-$CFFF, which are always live.
	mainRAM [13][BankSize]uint8

	// lcBank1D000 and lcBank2D000 are the two independently
	// switchable Language Card banks at $D000-$DFFF.
	lcBank1D000 [BankSize]uint8
	lcBank2D000 [BankSize]uint8

	// lcHigh is the single Language Card bank covering $E000-$FFFF.
	lcHigh [2][BankSize]uint8

	// romArea holds the $D000-$FFFF ROM image, or zeroes if no ROM
	// has been loaded.  Reads land here when LC read is disabled.
	romArea [3][BankSize]uint8

	// writeSink absorbs writes to $D000-$FFFF when LC write is
	// disabled, so that neither the ROM nor the LC RAM is modified.
	writeSink [3][BankSize]uint8

	readView  Banks
	writeView Banks

	lcReadEnabled  bool
	lcWriteEnabled bool
	lcBank1        bool

	// lcWritePrequalified is the write-enable latch: set after one
	// read of a write-enable soft switch, consumed by the second.
	lcWritePrequalified bool
}

// New returns a Memory with all RAM zeroed, the Language Card disabled,
// and bank 1 selected.
func New() *Memory {
	m := &Memory{}
	m.lcBank1 = true
	m.recomputeViews()
	return m
}

// Reset zeroes all RAM, restores the initial Language Card state, and
// clears the write-enable latch.  Any loaded ROM image is preserved.
func (m *Memory) Reset() {
	for i := range m.mainRAM {
		m.mainRAM[i] = [BankSize]uint8{}
	}
	m.lcBank1D000 = [BankSize]uint8{}
	m.lcBank2D000 = [BankSize]uint8{}
	for i := range m.lcHigh {
		m.lcHigh[i] = [BankSize]uint8{}
	}

	m.lcReadEnabled = false
	m.lcWriteEnabled = false
	m.lcBank1 = true
	m.lcWritePrequalified = false
	m.recomputeViews()
}

// LoadROM installs a 12k ROM image covering $D000-$FFFF.  The image
// becomes visible whenever Language Card read is disabled.
func (m *Memory) LoadROM(data []uint8) error {
	if len(data) != ROMSize {
		return fmt.Errorf("ROM image must be %d bytes, got %d", ROMSize, len(data))
	}
	for i := 0; i < 3; i++ {
		copy(m.romArea[i][:], data[i*BankSize:(i+1)*BankSize])
	}
	return nil
}

// ReadView returns the current read mapping of the address space.
func (m *Memory) ReadView() *Banks {
	return &m.readView
}

// WriteView returns the current write mapping of the address space.
func (m *Memory) WriteView() *Banks {
	return &m.writeView
}

// SetLCReadEnabled routes $D000-$FFFF reads to the Language Card RAM
// when enabled, or to the ROM area when disabled.
func (m *Memory) SetLCReadEnabled(enable bool) {
	if m.lcReadEnabled != enable {
		m.lcReadEnabled = enable
		m.recomputeViews()
	}
}

// SetLCWriteEnabled routes $D000-$FFFF writes to the Language Card RAM
// when enabled, or to the throwaway sink when disabled.
func (m *Memory) SetLCWriteEnabled(enable bool) {
	if m.lcWriteEnabled != enable {
		m.lcWriteEnabled = enable
		m.recomputeViews()
	}
}

// SetLCBank1 selects which of the two $D000-$DFFF Language Card banks
// is active.  The $E000-$FFFF region is unaffected.
func (m *Memory) SetLCBank1(bank1 bool) {
	if m.lcBank1 != bank1 {
		m.lcBank1 = bank1
		m.recomputeViews()
	}
}

// IsLCReadEnabled reports whether Language Card read is enabled.
func (m *Memory) IsLCReadEnabled() bool {
	return m.lcReadEnabled
}

// IsLCWriteEnabled reports whether Language Card write is enabled.
func (m *Memory) IsLCWriteEnabled() bool {
	return m.lcWriteEnabled
}

// IsLCBank1 reports whether Language Card bank 1 is selected.
func (m *Memory) IsLCBank1() bool {
	return m.lcBank1
}

// IsLCWritePrequalified reports whether the write-enable latch is set.
func (m *Memory) IsLCWritePrequalified() bool {
	return m.lcWritePrequalified
}

// ApplySoftSwitch processes an access to the Language Card soft
// switches at $C080-$C08F, returning true if the address was one.
//
// Bit 3 of the address selects bank 1 when set, bank 2 when clear.
// Bits 1-0 encode the command:
//
//	00: LC read,  write protect
//	01: ROM read, write-enable request
//	10: ROM read, write protect
//	11: LC read,  write-enable request
//
// Write-enable requests only take effect after two consecutive read
// accesses to a write-enable switch.  Any write access, or any read of
// a non-write-enable switch, clears the latch and disables writes.
func (m *Memory) ApplySoftSwitch(addr uint16, isRead bool) bool {
	if addr < softSwitchLo || addr > softSwitchHi {
		return false
	}

	off := addr & 0x0F
	cmd := off & 0x03

	m.SetLCBank1(off&0x08 != 0)

	wantsWrite := cmd == 0x01 || cmd == 0x03
	wantsLCRead := cmd == 0x00 || cmd == 0x03

	switch {
	case !isRead:
		m.lcWritePrequalified = false
		m.SetLCWriteEnabled(false)
	case wantsWrite:
		if m.lcWritePrequalified {
			m.SetLCWriteEnabled(true)
			m.lcWritePrequalified = false
		} else {
			m.lcWritePrequalified = true
		}
	default:
		m.lcWritePrequalified = false
		m.SetLCWriteEnabled(false)
	}

	m.SetLCReadEnabled(wantsLCRead)
	return true
}

// Read returns the byte at addr through the current read mapping.  An
// access to a soft-switch address updates the Language Card state and
// yields zero.
func (m *Memory) Read(addr uint16) uint8 {
	if m.ApplySoftSwitch(addr, true) {
		return 0
	}
	return m.readView[addr>>12][addr&0x0FFF]
}

// Write stores a byte at addr through the current write mapping.  An
// access to a soft-switch address updates the Language Card state and
// drops the value.
func (m *Memory) Write(addr uint16, value uint8) {
	if m.ApplySoftSwitch(addr, false) {
		return
	}
	m.writeView[addr>>12][addr&0x0FFF] = value
}

// recomputeViews rebuilds both bank views from the current Language
// Card state.  Banks 0-12 always alias main RAM in both views.
func (m *Memory) recomputeViews() {
	for i := 0; i < 13; i++ {
		m.readView[i] = m.mainRAM[i][:]
		m.writeView[i] = m.mainRAM[i][:]
	}

	d000 := m.lcBank1D000[:]
	if !m.lcBank1 {
		d000 = m.lcBank2D000[:]
	}

	if m.lcReadEnabled {
		m.readView[13] = d000
		m.readView[14] = m.lcHigh[0][:]
		m.readView[15] = m.lcHigh[1][:]
	} else {
		m.readView[13] = m.romArea[0][:]
		m.readView[14] = m.romArea[1][:]
		m.readView[15] = m.romArea[2][:]
	}

	if m.lcWriteEnabled {
		m.writeView[13] = d000
		m.writeView[14] = m.lcHigh[0][:]
		m.writeView[15] = m.lcHigh[1][:]
	} else {
		m.writeView[13] = m.writeSink[0][:]
		m.writeView[14] = m.writeSink[1][:]
		m.writeView[15] = m.writeSink[2][:]
	}
}
