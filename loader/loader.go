// Package loader fills emulated memory from host files: the 12k ROM
// image covering $D000-$FFFF, and a flat ProDOS system file loaded
// somewhere below the I/O space.
package loader

import (
	"fmt"
	"os"

	"github.com/prodos8/prodosulator/memory"
)

// DefaultLoadAddress is where ProDOS system files conventionally
// load.
const DefaultLoadAddress = uint16(0x2000)

// LoadROM reads a ROM image file into the memory's ROM area.  The
// file must be exactly 12,288 bytes.
func LoadROM(mem *memory.Memory, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read ROM %s: %s", path, err)
	}

	return mem.LoadROM(data)
}

// LoadSystemFile reads a flat binary image into RAM at loadAddr.  The
// image must fit between loadAddr and $BFFF so that it cannot collide
// with the I/O space or the bank-switched region.
func LoadSystemFile(mem *memory.Memory, path string, loadAddr uint16) error {
	if loadAddr >= 0xC000 {
		return fmt.Errorf("invalid load address $%04X: must be below $C000", loadAddr)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read system file %s: %s", path, err)
	}
	if len(data) == 0 {
		return fmt.Errorf("system file %s is empty", path)
	}

	maxSize := int(0xC000) - int(loadAddr)
	if len(data) > maxSize {
		return fmt.Errorf("system file %s is %d bytes which exceeds the %d available below $C000",
			path, len(data), maxSize)
	}

	view := mem.WriteView()
	for i, b := range data {
		memory.WriteU8(view, loadAddr+uint16(i), b)
	}

	return nil
}

// InitWarmStart points the warm-restart vector at entryAddr and marks
// it valid with the $A5 power-up byte.
func InitWarmStart(mem *memory.Memory, entryAddr uint16) {
	view := mem.WriteView()

	memory.WriteU16(view, 0x03F2, entryAddr)
	memory.WriteU8(view, 0x03F4, 0xA5)
}
