package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prodos8/prodosulator/memory"
)

// writeTemp drops bytes into a scratch file.
func writeTemp(t *testing.T, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "image")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write temporary file: %s", err)
	}
	return path
}

// TestLoadROM covers the strict 12k size rule.
func TestLoadROM(t *testing.T) {

	mem := memory.New()

	rom := make([]byte, memory.ROMSize)
	rom[0] = 0xA9
	rom[memory.ROMSize-1] = 0x60

	if err := LoadROM(mem, writeTemp(t, rom)); err != nil {
		t.Fatalf("failed to load valid ROM: %s", err)
	}
	if mem.Read(0xD000) != 0xA9 || mem.Read(0xFFFF) != 0x60 {
		t.Fatalf("ROM content not visible")
	}

	if err := LoadROM(mem, writeTemp(t, make([]byte, 1000))); err == nil {
		t.Fatalf("expected error for short ROM, got none")
	}
	if err := LoadROM(mem, "/this/does/not/exist"); err == nil {
		t.Fatalf("expected error for missing ROM, got none")
	}
}

// TestLoadSystemFile covers the placement rules.
func TestLoadSystemFile(t *testing.T) {

	mem := memory.New()

	prog := []byte{0x4C, 0x00, 0x20, 0xEA}
	if err := LoadSystemFile(mem, writeTemp(t, prog), DefaultLoadAddress); err != nil {
		t.Fatalf("failed to load system file: %s", err)
	}
	for i, b := range prog {
		if mem.Read(DefaultLoadAddress+uint16(i)) != b {
			t.Fatalf("byte %d not loaded", i)
		}
	}

	// Contents are unconstrained; no JMP opcode is required.
	if err := LoadSystemFile(mem, writeTemp(t, []byte{0xEA}), 0x0800); err != nil {
		t.Fatalf("non-JMP system file rejected: %s", err)
	}

	// Too large for the chosen address.
	big := make([]byte, 0xC000-0x2000+1)
	if err := LoadSystemFile(mem, writeTemp(t, big), DefaultLoadAddress); err == nil {
		t.Fatalf("expected error for oversized file, got none")
	}

	// Load address must stay below the I/O space.
	if err := LoadSystemFile(mem, writeTemp(t, prog), 0xC000); err == nil {
		t.Fatalf("expected error for bad load address, got none")
	}

	// Empty files are rejected.
	if err := LoadSystemFile(mem, writeTemp(t, nil), DefaultLoadAddress); err == nil {
		t.Fatalf("expected error for empty file, got none")
	}
}

// TestInitWarmStart checks the vector and the power-up byte.
func TestInitWarmStart(t *testing.T) {

	mem := memory.New()

	InitWarmStart(mem, 0x2000)

	view := mem.ReadView()
	if memory.ReadU16(view, 0x03F2) != 0x2000 {
		t.Fatalf("warm-start vector not set")
	}
	if memory.ReadU8(view, 0x03F4) != 0xA5 {
		t.Fatalf("power-up byte not set")
	}
}
