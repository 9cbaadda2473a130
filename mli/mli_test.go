package mli

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prodos8/prodosulator/memory"
	"github.com/prodos8/prodosulator/xattr"
)

// testEnv wires a context onto a scratch volumes root holding one
// volume, V1.
func testEnv(t *testing.T) (*Context, *memory.Banks) {
	t.Helper()

	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, "V1"), 0755); err != nil {
		t.Fatalf("failed to create volume: %s", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx := New(root, logger)
	t.Cleanup(ctx.Close)

	mem := memory.New()
	return ctx, mem.WriteView()
}

// requireXattrs skips the test when the scratch filesystem cannot
// store the metadata sidecar.
func requireXattrs(t *testing.T, ctx *Context) {
	t.Helper()

	probe := filepath.Join(ctx.VolumesRoot(), "V1", "XATTRPROBE")
	if err := os.WriteFile(probe, nil, 0644); err != nil {
		t.Fatalf("failed to create probe file: %s", err)
	}
	defer os.Remove(probe)

	if err := xattr.Set(probe, "probe", "x"); err != nil {
		t.Skipf("xattrs unsupported here: %s", err)
	}
}

// poke writes bytes into emulated memory.
func poke(view *memory.Banks, addr uint16, data ...uint8) {
	for i, b := range data {
		memory.WriteU8(view, addr+uint16(i), b)
	}
}

// pokeCounted writes a counted string into emulated memory.
func pokeCounted(view *memory.Banks, addr uint16, s string) {
	memory.WriteU8(view, addr, uint8(len(s)))
	for i := 0; i < len(s); i++ {
		memory.WriteU8(view, addr+1+uint16(i), s[i])
	}
}

// Scratch addresses used throughout.
const (
	paramAddr = uint16(0x0300)
	pathAddr  = uint16(0x0380)
	path2Addr = uint16(0x03C0)
	dataAddr  = uint16(0x0500)
)

// open performs an OPEN call for the named path and returns the
// error code and ref_num.
func open(ctx *Context, view *memory.Banks, path string) (uint8, uint8) {
	pokeCounted(view, pathAddr, path)
	poke(view, paramAddr,
		3,
		uint8(pathAddr&0xFF), uint8(pathAddr>>8),
		0x00, 0x08, // io_buffer $0800
		0x00, // ref_num result
	)
	err := ctx.Dispatch(view, CallOpen, paramAddr)
	return err, memory.ReadU8(view, paramAddr+5)
}

// TestOpenReadClose is the basic round-trip: open a host file, read
// it into emulated memory, hit end-of-file, close.
func TestOpenReadClose(t *testing.T) {

	ctx, view := testEnv(t)

	host := filepath.Join(ctx.VolumesRoot(), "V1", "TEST")
	if err := os.WriteFile(host, []byte("HELLO"), 0644); err != nil {
		t.Fatalf("failed to create test file: %s", err)
	}

	errCode, refNum := open(ctx, view, "/V1/TEST")
	if errCode != NoError {
		t.Fatalf("OPEN failed with %02X", errCode)
	}
	if refNum != 1 {
		t.Fatalf("expected ref_num 1, got %d", refNum)
	}

	// READ ref=1, buffer $0500, request 10.
	poke(view, paramAddr,
		4,
		refNum,
		uint8(dataAddr&0xFF), uint8(dataAddr>>8),
		10, 0, // request_count
		0, 0, // trans_count result
	)
	errCode = ctx.Dispatch(view, CallRead, paramAddr)
	if errCode != EOFEncountered {
		t.Fatalf("READ should hit EOF, got %02X", errCode)
	}
	if memory.ReadU16(view, paramAddr+6) != 5 {
		t.Fatalf("trans_count = %d", memory.ReadU16(view, paramAddr+6))
	}
	for i, want := range []uint8{'H', 'E', 'L', 'L', 'O'} {
		if got := memory.ReadU8(view, dataAddr+uint16(i)); got != want {
			t.Fatalf("byte %d = %02X, want %02X", i, got, want)
		}
	}

	// CLOSE ref=1.
	poke(view, paramAddr, 1, refNum)
	if errCode = ctx.Dispatch(view, CallClose, paramAddr); errCode != NoError {
		t.Fatalf("CLOSE failed with %02X", errCode)
	}

	// The ref_num is dead now.
	poke(view, paramAddr, 2, refNum, 0, 0, 0)
	if errCode = ctx.Dispatch(view, CallGetMark, paramAddr); errCode != BadRefNum {
		t.Fatalf("closed ref_num should be invalid, got %02X", errCode)
	}
}

// TestNewlineRead stops a read at the newline character.
func TestNewlineRead(t *testing.T) {

	ctx, view := testEnv(t)

	host := filepath.Join(ctx.VolumesRoot(), "V1", "LINES")
	if err := os.WriteFile(host, []byte("LINE1\rLINE2\rLINE3"), 0644); err != nil {
		t.Fatalf("failed to create test file: %s", err)
	}

	errCode, refNum := open(ctx, view, "/V1/LINES")
	if errCode != NoError {
		t.Fatalf("OPEN failed with %02X", errCode)
	}

	// NEWLINE mask $FF char $0D.
	poke(view, paramAddr, 3, refNum, 0xFF, 0x0D)
	if errCode = ctx.Dispatch(view, CallNewline, paramAddr); errCode != NoError {
		t.Fatalf("NEWLINE failed with %02X", errCode)
	}

	// READ request 100: stops after the first CR.
	poke(view, paramAddr,
		4,
		refNum,
		uint8(dataAddr&0xFF), uint8(dataAddr>>8),
		100, 0,
		0, 0,
	)
	if errCode = ctx.Dispatch(view, CallRead, paramAddr); errCode != NoError {
		t.Fatalf("READ failed with %02X", errCode)
	}
	if memory.ReadU16(view, paramAddr+6) != 6 {
		t.Fatalf("trans_count = %d, want 6", memory.ReadU16(view, paramAddr+6))
	}
	if memory.ReadU8(view, dataAddr+5) != 0x0D {
		t.Fatalf("last byte should be the newline character")
	}

	// A second read picks up at LINE2.
	if errCode = ctx.Dispatch(view, CallRead, paramAddr); errCode != NoError {
		t.Fatalf("second READ failed with %02X", errCode)
	}
	if memory.ReadU8(view, dataAddr) != 'L' || memory.ReadU8(view, dataAddr+4) != '2' {
		t.Fatalf("second read out of position")
	}
}

// TestCreateAndDestroy covers the CREATE/DESTROY pair and their
// error taxonomy.
func TestCreateAndDestroy(t *testing.T) {

	ctx, view := testEnv(t)
	requireXattrs(t, ctx)

	create := func(path string, storageType uint8) uint8 {
		pokeCounted(view, pathAddr, path)
		poke(view, paramAddr,
			7,
			uint8(pathAddr&0xFF), uint8(pathAddr>>8),
			0xC3,       // access
			0x06,       // file_type BIN
			0x00, 0x20, // aux_type
			storageType,
			0, 0, // create_date: now
			0, 0, // create_time
		)
		return ctx.Dispatch(view, CallCreate, paramAddr)
	}

	if errCode := create("/V1/NEW", 0x01); errCode != NoError {
		t.Fatalf("CREATE file failed with %02X", errCode)
	}
	if _, err := os.Stat(filepath.Join(ctx.VolumesRoot(), "V1", "NEW")); err != nil {
		t.Fatalf("host file missing: %s", err)
	}

	// Stored metadata is readable back.
	got, err := xattr.Get(filepath.Join(ctx.VolumesRoot(), "V1", "NEW"), "file_type")
	if err != nil || got != "06" {
		t.Fatalf("file_type sidecar wrong: %q %v", got, err)
	}

	if errCode := create("/V1/NEW", 0x01); errCode != DuplicateFilename {
		t.Fatalf("duplicate CREATE gave %02X", errCode)
	}
	if errCode := create("/V1/NOPE/NEW", 0x01); errCode != PathNotFound {
		t.Fatalf("missing parent gave %02X", errCode)
	}
	if errCode := create("/V1/TREE", 0x03); errCode != UnsupportedStorage {
		t.Fatalf("bad storage type gave %02X", errCode)
	}
	if errCode := create("/V1/SUB", 0x0D); errCode != NoError {
		t.Fatalf("CREATE directory failed with %02X", errCode)
	}

	destroy := func(path string) uint8 {
		pokeCounted(view, pathAddr, path)
		poke(view, paramAddr, 1, uint8(pathAddr&0xFF), uint8(pathAddr>>8))
		return ctx.Dispatch(view, CallDestroy, paramAddr)
	}

	// A non-empty directory cannot be destroyed.
	if err := os.WriteFile(filepath.Join(ctx.VolumesRoot(), "V1", "SUB", "X"), nil, 0644); err != nil {
		t.Fatalf("failed to populate directory: %s", err)
	}
	if errCode := destroy("/V1/SUB"); errCode != AccessError {
		t.Fatalf("non-empty DESTROY gave %02X", errCode)
	}

	os.Remove(filepath.Join(ctx.VolumesRoot(), "V1", "SUB", "X"))
	if errCode := destroy("/V1/SUB"); errCode != NoError {
		t.Fatalf("DESTROY directory failed with %02X", errCode)
	}
	if errCode := destroy("/V1/SUB"); errCode != FileNotFound {
		t.Fatalf("missing DESTROY gave %02X", errCode)
	}
}

// TestRenameSameDirectory covers the RENAME restriction to a single
// directory.
func TestRenameSameDirectory(t *testing.T) {

	ctx, view := testEnv(t)

	if err := os.WriteFile(filepath.Join(ctx.VolumesRoot(), "V1", "A"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create file: %s", err)
	}
	if err := os.Mkdir(filepath.Join(ctx.VolumesRoot(), "V1", "SUB"), 0755); err != nil {
		t.Fatalf("failed to create subdir: %s", err)
	}

	rename := func(from string, to string) uint8 {
		pokeCounted(view, pathAddr, from)
		pokeCounted(view, path2Addr, to)
		poke(view, paramAddr,
			2,
			uint8(pathAddr&0xFF), uint8(pathAddr>>8),
			uint8(path2Addr&0xFF), uint8(path2Addr>>8),
		)
		return ctx.Dispatch(view, CallRename, paramAddr)
	}

	// Cross-directory renames are rejected whether or not the
	// target directory exists.
	if errCode := rename("/V1/A", "/V1/SUB/A"); errCode != InvalidPathSyntax {
		t.Fatalf("cross-directory RENAME gave %02X", errCode)
	}
	if errCode := rename("/V1/A", "/V1/GONE/A"); errCode != InvalidPathSyntax {
		t.Fatalf("cross-directory RENAME gave %02X", errCode)
	}

	if errCode := rename("/V1/A", "/V1/B"); errCode != NoError {
		t.Fatalf("RENAME failed with %02X", errCode)
	}
	if _, err := os.Stat(filepath.Join(ctx.VolumesRoot(), "V1", "B")); err != nil {
		t.Fatalf("renamed file missing: %s", err)
	}

	if errCode := rename("/V1/A", "/V1/C"); errCode != FileNotFound {
		t.Fatalf("missing source gave %02X", errCode)
	}

	if err := os.WriteFile(filepath.Join(ctx.VolumesRoot(), "V1", "C"), nil, 0644); err != nil {
		t.Fatalf("failed to create file: %s", err)
	}
	if errCode := rename("/V1/B", "/V1/C"); errCode != DuplicateFilename {
		t.Fatalf("existing target gave %02X", errCode)
	}
}

// TestPrefix covers SET_PREFIX/GET_PREFIX and partial resolution.
func TestPrefix(t *testing.T) {

	ctx, view := testEnv(t)

	host := filepath.Join(ctx.VolumesRoot(), "V1", "TEST")
	if err := os.WriteFile(host, []byte("HI"), 0644); err != nil {
		t.Fatalf("failed to create file: %s", err)
	}

	setPrefix := func(p string) uint8 {
		pokeCounted(view, pathAddr, p)
		poke(view, paramAddr, 1, uint8(pathAddr&0xFF), uint8(pathAddr>>8))
		return ctx.Dispatch(view, CallSetPrefix, paramAddr)
	}

	// Partial pathnames cannot be opened with an empty prefix.
	if errCode, _ := open(ctx, view, "TEST"); errCode != InvalidPathSyntax {
		t.Fatalf("partial open with empty prefix gave %02X", errCode)
	}

	// A partial prefix with an empty prefix is likewise invalid.
	if errCode := setPrefix("V1"); errCode != InvalidPathSyntax {
		t.Fatalf("partial SET_PREFIX gave %02X", errCode)
	}

	if errCode := setPrefix("/V1"); errCode != NoError {
		t.Fatalf("SET_PREFIX failed")
	}
	if ctx.Prefix() != "/V1" {
		t.Fatalf("prefix is %q", ctx.Prefix())
	}

	// Now the partial open resolves.
	errCode, refNum := open(ctx, view, "TEST")
	if errCode != NoError {
		t.Fatalf("partial open failed with %02X", errCode)
	}
	poke(view, paramAddr, 1, refNum)
	ctx.Dispatch(view, CallClose, paramAddr)

	// GET_PREFIX writes the counted string back.
	poke(view, paramAddr, 1, uint8(dataAddr&0xFF), uint8(dataAddr>>8))
	if errCode := ctx.Dispatch(view, CallGetPrefix, paramAddr); errCode != NoError {
		t.Fatalf("GET_PREFIX failed")
	}
	if memory.ReadU8(view, dataAddr) != 3 {
		t.Fatalf("prefix length byte wrong")
	}

	// SET_PREFIX of the GET_PREFIX result is a no-op.
	got := ""
	for i := uint16(0); i < 3; i++ {
		got += string(rune(memory.ReadU8(view, dataAddr+1+i)))
	}
	if errCode := setPrefix(got); errCode != NoError {
		t.Fatalf("round-trip SET_PREFIX failed")
	}
	if ctx.Prefix() != "/V1" {
		t.Fatalf("round trip changed the prefix to %q", ctx.Prefix())
	}
}

// TestOnLine covers both unit_num forms of the volume enumeration.
func TestOnLine(t *testing.T) {

	ctx, view := testEnv(t)

	// Add a second volume, and clutter that must be ignored.
	os.Mkdir(filepath.Join(ctx.VolumesRoot(), "ALPHA"), 0755)
	os.Mkdir(filepath.Join(ctx.VolumesRoot(), "not.a.volume"), 0755)
	os.WriteFile(filepath.Join(ctx.VolumesRoot(), "FILE"), nil, 0644)

	// unit_num 0: all volumes sorted, then a terminator.
	poke(view, paramAddr, 2, 0, uint8(dataAddr&0xFF), uint8(dataAddr>>8))
	if errCode := ctx.Dispatch(view, CallOnLine, paramAddr); errCode != NoError {
		t.Fatalf("ON_LINE failed")
	}

	// First record: ALPHA in slot 1 drive 0.
	b0 := memory.ReadU8(view, dataAddr)
	if b0 != (1<<4)|5 {
		t.Fatalf("first record byte 0 = %02X", b0)
	}
	if memory.ReadU8(view, dataAddr+1) != 'A' {
		t.Fatalf("first record name wrong")
	}

	// Second record: V1 in slot 1 drive 1.
	b0 = memory.ReadU8(view, dataAddr+16)
	if b0 != (1<<7)|(1<<4)|2 {
		t.Fatalf("second record byte 0 = %02X", b0)
	}

	// Terminator after two records.
	if memory.ReadU8(view, dataAddr+32) != 0 {
		t.Fatalf("missing terminator")
	}

	// unit_num for slot 1 drive 1 selects V1.
	poke(view, paramAddr, 2, (1<<7)|(1<<4), uint8(dataAddr&0xFF), uint8(dataAddr>>8))
	if errCode := ctx.Dispatch(view, CallOnLine, paramAddr); errCode != NoError {
		t.Fatalf("ON_LINE by unit failed")
	}
	if memory.ReadU8(view, dataAddr+1) != 'V' {
		t.Fatalf("unit lookup returned the wrong volume")
	}

	// Slot 0 and out-of-range units have no device.
	poke(view, paramAddr, 2, 0x01, uint8(dataAddr&0xFF), uint8(dataAddr>>8))
	if errCode := ctx.Dispatch(view, CallOnLine, paramAddr); errCode != NoDevice {
		t.Fatalf("slot 0 gave %02X", errCode)
	}
	poke(view, paramAddr, 2, 7<<4, uint8(dataAddr&0xFF), uint8(dataAddr>>8))
	if errCode := ctx.Dispatch(view, CallOnLine, paramAddr); errCode != NoDevice {
		t.Fatalf("empty slot gave %02X", errCode)
	}
}

// TestGetFileInfo checks the result layout and the volume storage
// type.
func TestGetFileInfo(t *testing.T) {

	ctx, view := testEnv(t)

	host := filepath.Join(ctx.VolumesRoot(), "V1", "DATA")
	if err := os.WriteFile(host, make([]byte, 1000), 0644); err != nil {
		t.Fatalf("failed to create file: %s", err)
	}

	info := func(path string) uint8 {
		pokeCounted(view, pathAddr, path)
		poke(view, paramAddr, 10, uint8(pathAddr&0xFF), uint8(pathAddr>>8))
		return ctx.Dispatch(view, CallGetFileInfo, paramAddr)
	}

	if errCode := info("/V1/DATA"); errCode != NoError {
		t.Fatalf("GET_FILE_INFO failed with %02X", errCode)
	}

	if memory.ReadU8(view, paramAddr+3)&0x01 == 0 {
		t.Fatalf("file should be readable")
	}
	if memory.ReadU8(view, paramAddr+7) != 0x01 {
		t.Fatalf("plain file storage type = %02X", memory.ReadU8(view, paramAddr+7))
	}
	if memory.ReadU16(view, paramAddr+8) != 2 {
		t.Fatalf("blocks_used = %d, want 2", memory.ReadU16(view, paramAddr+8))
	}
	if memory.ReadU16(view, paramAddr+10) == 0 {
		t.Fatalf("mod_date should be derived from the host mtime")
	}

	// The volume root directory reports the volume header type and
	// zero blocks.
	if errCode := info("/V1"); errCode != NoError {
		t.Fatalf("GET_FILE_INFO on volume failed with %02X", errCode)
	}
	if memory.ReadU8(view, paramAddr+7) != 0x0F {
		t.Fatalf("volume storage type = %02X", memory.ReadU8(view, paramAddr+7))
	}
	if memory.ReadU16(view, paramAddr+8) != 0 {
		t.Fatalf("directory blocks_used should be 0")
	}

	if errCode := info("/V1/MISSING"); errCode != FileNotFound {
		t.Fatalf("missing file gave %02X", errCode)
	}
}

// TestWriteAndEOF covers WRITE, SET_EOF, GET_EOF and SET_MARK.
func TestWriteAndEOF(t *testing.T) {

	ctx, view := testEnv(t)

	host := filepath.Join(ctx.VolumesRoot(), "V1", "OUT")
	if err := os.WriteFile(host, nil, 0644); err != nil {
		t.Fatalf("failed to create file: %s", err)
	}

	errCode, refNum := open(ctx, view, "/V1/OUT")
	if errCode != NoError {
		t.Fatalf("OPEN failed with %02X", errCode)
	}

	// WRITE "HELLO" from $0500.
	poke(view, dataAddr, 'H', 'E', 'L', 'L', 'O')
	poke(view, paramAddr,
		4,
		refNum,
		uint8(dataAddr&0xFF), uint8(dataAddr>>8),
		5, 0,
		0, 0,
	)
	if errCode = ctx.Dispatch(view, CallWrite, paramAddr); errCode != NoError {
		t.Fatalf("WRITE failed with %02X", errCode)
	}
	if memory.ReadU16(view, paramAddr+6) != 5 {
		t.Fatalf("trans_count = %d", memory.ReadU16(view, paramAddr+6))
	}

	content, _ := os.ReadFile(host)
	if string(content) != "HELLO" {
		t.Fatalf("host file holds %q", content)
	}

	// GET_EOF sees five bytes.
	poke(view, paramAddr, 2, refNum, 0, 0, 0)
	if errCode = ctx.Dispatch(view, CallGetEOF, paramAddr); errCode != NoError {
		t.Fatalf("GET_EOF failed")
	}
	if memory.ReadU24(view, paramAddr+2) != 5 {
		t.Fatalf("EOF = %d", memory.ReadU24(view, paramAddr+2))
	}

	// GET_MARK is at the end of the write.
	poke(view, paramAddr, 2, refNum, 0, 0, 0)
	ctx.Dispatch(view, CallGetMark, paramAddr)
	if memory.ReadU24(view, paramAddr+2) != 5 {
		t.Fatalf("mark = %d", memory.ReadU24(view, paramAddr+2))
	}

	// SET_MARK past EOF is out of range.
	poke(view, paramAddr, 2, refNum, 6, 0, 0)
	if errCode = ctx.Dispatch(view, CallSetMark, paramAddr); errCode != PositionOutOfRange {
		t.Fatalf("mark past EOF gave %02X", errCode)
	}
	poke(view, paramAddr, 2, refNum, 1, 0, 0)
	if errCode = ctx.Dispatch(view, CallSetMark, paramAddr); errCode != NoError {
		t.Fatalf("SET_MARK failed with %02X", errCode)
	}

	// SET_EOF to zero truncates and clamps the mark.
	poke(view, paramAddr, 2, refNum, 0, 0, 0)
	if errCode = ctx.Dispatch(view, CallSetEOF, paramAddr); errCode != NoError {
		t.Fatalf("SET_EOF failed with %02X", errCode)
	}
	st, _ := os.Stat(host)
	if st.Size() != 0 {
		t.Fatalf("file not truncated")
	}
	poke(view, paramAddr, 2, refNum, 0xFF, 0xFF, 0xFF)
	ctx.Dispatch(view, CallGetMark, paramAddr)
	if memory.ReadU24(view, paramAddr+2) != 0 {
		t.Fatalf("mark not clamped after truncate")
	}

	// FLUSH succeeds on a live ref_num.
	poke(view, paramAddr, 1, refNum)
	if errCode = ctx.Dispatch(view, CallFlush, paramAddr); errCode != NoError {
		t.Fatalf("FLUSH failed with %02X", errCode)
	}
}

// TestDirectoryRead opens a volume directory and decodes the
// synthesized blocks.
func TestDirectoryRead(t *testing.T) {

	ctx, view := testEnv(t)

	vol := filepath.Join(ctx.VolumesRoot(), "V1")
	os.WriteFile(filepath.Join(vol, "BBB"), []byte("22"), 0644)
	os.WriteFile(filepath.Join(vol, "AAA"), []byte("1"), 0644)
	os.Mkdir(filepath.Join(vol, "SUB"), 0755)

	errCode, refNum := open(ctx, view, "/V1")
	if errCode != NoError {
		t.Fatalf("OPEN directory failed with %02X", errCode)
	}

	// Read the whole key block.
	poke(view, paramAddr,
		4,
		refNum,
		uint8(dataAddr&0xFF), uint8(dataAddr>>8),
		0x00, 0x02, // request 512
		0, 0,
	)
	if errCode = ctx.Dispatch(view, CallRead, paramAddr); errCode != NoError {
		t.Fatalf("directory READ failed with %02X", errCode)
	}
	if memory.ReadU16(view, paramAddr+6) != 512 {
		t.Fatalf("directory read trans_count = %d", memory.ReadU16(view, paramAddr+6))
	}

	// Header entry: volume header storage type, name V1.
	header := memory.ReadU8(view, dataAddr+4)
	if header != 0xF0|2 {
		t.Fatalf("header byte = %02X", header)
	}
	if memory.ReadU8(view, dataAddr+5) != 'V' || memory.ReadU8(view, dataAddr+6) != '1' {
		t.Fatalf("header name wrong")
	}
	if memory.ReadU8(view, dataAddr+4+0x1F) != 39 {
		t.Fatalf("entry length field wrong")
	}
	if memory.ReadU8(view, dataAddr+4+0x20) != 13 {
		t.Fatalf("entries-per-block field wrong")
	}
	if memory.ReadU16(view, dataAddr+4+0x21) != 3 {
		t.Fatalf("file count = %d", memory.ReadU16(view, dataAddr+4+0x21))
	}

	// First file entry: AAA, sorted ahead of BBB, a seedling.
	entry := dataAddr + 4 + 39
	if memory.ReadU8(view, entry) != 0x10|3 {
		t.Fatalf("first entry byte = %02X", memory.ReadU8(view, entry))
	}
	if memory.ReadU8(view, entry+1) != 'A' {
		t.Fatalf("entries not sorted")
	}
	if memory.ReadU24(view, entry+0x15) != 1 {
		t.Fatalf("first entry EOF = %d", memory.ReadU24(view, entry+0x15))
	}

	// Third entry is the subdirectory.
	sub := dataAddr + 4 + 3*39
	if memory.ReadU8(view, sub)>>4 != 0x0D {
		t.Fatalf("subdirectory storage type = %02X", memory.ReadU8(view, sub))
	}

	// The next read is at EOF.
	if errCode = ctx.Dispatch(view, CallRead, paramAddr); errCode != EOFEncountered {
		t.Fatalf("expected EOF on second read, got %02X", errCode)
	}

	// Directories reject WRITE.
	poke(view, paramAddr,
		4,
		refNum,
		uint8(dataAddr&0xFF), uint8(dataAddr>>8),
		1, 0,
		0, 0,
	)
	if errCode = ctx.Dispatch(view, CallWrite, paramAddr); errCode != AccessError {
		t.Fatalf("directory WRITE gave %02X", errCode)
	}
}

// TestRefNumExhaustion fills all eight slots.
func TestRefNumExhaustion(t *testing.T) {

	ctx, view := testEnv(t)

	host := filepath.Join(ctx.VolumesRoot(), "V1", "F")
	if err := os.WriteFile(host, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create file: %s", err)
	}

	for i := 1; i <= 8; i++ {
		errCode, refNum := open(ctx, view, "/V1/F")
		if errCode != NoError {
			t.Fatalf("open %d failed with %02X", i, errCode)
		}
		if refNum != uint8(i) {
			t.Fatalf("open %d allocated ref_num %d", i, refNum)
		}
	}

	if errCode, _ := open(ctx, view, "/V1/F"); errCode != TooManyFilesOpen {
		t.Fatalf("ninth open gave %02X", errCode)
	}

	// Close ref 3; the next open reuses the lowest free slot.
	poke(view, paramAddr, 1, 3)
	ctx.Dispatch(view, CallClose, paramAddr)

	errCode, refNum := open(ctx, view, "/V1/F")
	if errCode != NoError || refNum != 3 {
		t.Fatalf("reopen gave %02X ref %d", errCode, refNum)
	}

	// CLOSE ref 0 empties the table.
	poke(view, paramAddr, 1, 0)
	if errCode := ctx.Dispatch(view, CallClose, paramAddr); errCode != NoError {
		t.Fatalf("CLOSE all failed")
	}
	if errCode, refNum := open(ctx, view, "/V1/F"); errCode != NoError || refNum != 1 {
		t.Fatalf("open after close-all gave %02X ref %d", errCode, refNum)
	}
}

// TestBuffers covers SET_BUF/GET_BUF.
func TestBuffers(t *testing.T) {

	ctx, view := testEnv(t)

	host := filepath.Join(ctx.VolumesRoot(), "V1", "F")
	os.WriteFile(host, []byte("x"), 0644)

	_, refNum := open(ctx, view, "/V1/F")

	// GET_BUF returns the OPEN-time io_buffer.
	poke(view, paramAddr, 2, refNum, 0, 0)
	if errCode := ctx.Dispatch(view, CallGetBuf, paramAddr); errCode != NoError {
		t.Fatalf("GET_BUF failed")
	}
	if memory.ReadU16(view, paramAddr+2) != 0x0800 {
		t.Fatalf("io_buffer = %04X", memory.ReadU16(view, paramAddr+2))
	}

	// SET_BUF replaces it.
	poke(view, paramAddr, 2, refNum, 0x00, 0x10)
	if errCode := ctx.Dispatch(view, CallSetBuf, paramAddr); errCode != NoError {
		t.Fatalf("SET_BUF failed")
	}
	poke(view, paramAddr, 2, refNum, 0, 0)
	ctx.Dispatch(view, CallGetBuf, paramAddr)
	if memory.ReadU16(view, paramAddr+2) != 0x1000 {
		t.Fatalf("io_buffer = %04X", memory.ReadU16(view, paramAddr+2))
	}

	poke(view, paramAddr, 2, 7, 0, 0)
	if errCode := ctx.Dispatch(view, CallGetBuf, paramAddr); errCode != BadRefNum {
		t.Fatalf("dead ref_num gave %02X", errCode)
	}
}

// TestInterruptTable covers allocation, exhaustion and deallocation.
func TestInterruptTable(t *testing.T) {

	ctx, view := testEnv(t)

	alloc := func(ptr uint16) (uint8, uint8) {
		poke(view, paramAddr, 2, 0, uint8(ptr&0xFF), uint8(ptr>>8))
		err := ctx.Dispatch(view, CallAllocInterrupt, paramAddr)
		return err, memory.ReadU8(view, paramAddr+1)
	}

	for want := uint8(1); want <= 4; want++ {
		errCode, num := alloc(0x2000)
		if errCode != NoError || num != want {
			t.Fatalf("alloc gave %02X slot %d, want slot %d", errCode, num, want)
		}
	}

	if errCode, _ := alloc(0x2000); errCode != InterruptTableFull {
		t.Fatalf("fifth alloc gave %02X", errCode)
	}

	if errCode, _ := alloc(0x0000); errCode != InvalidParameter {
		t.Fatalf("null pointer gave %02X", errCode)
	}

	dealloc := func(num uint8) uint8 {
		poke(view, paramAddr, 1, num)
		return ctx.Dispatch(view, CallDeallocInterrupt, paramAddr)
	}

	if errCode := dealloc(0); errCode != InvalidParameter {
		t.Fatalf("dealloc 0 gave %02X", errCode)
	}
	if errCode := dealloc(5); errCode != InvalidParameter {
		t.Fatalf("dealloc 5 gave %02X", errCode)
	}
	if errCode := dealloc(2); errCode != NoError {
		t.Fatalf("dealloc failed with %02X", errCode)
	}

	// Slot 2 is free again and is the lowest.
	errCode, num := alloc(0x3000)
	if errCode != NoError || num != 2 {
		t.Fatalf("realloc gave %02X slot %d", errCode, num)
	}
}

// TestDispatchValidation covers unknown calls, parameter counts, and
// the GET_TIME exemption.
func TestDispatchValidation(t *testing.T) {

	ctx, view := testEnv(t)

	if errCode := ctx.Dispatch(view, 0xEE, paramAddr); errCode != BadCallNumber {
		t.Fatalf("unknown call gave %02X", errCode)
	}

	// OPEN with the wrong parameter count.
	poke(view, paramAddr, 9)
	if errCode := ctx.Dispatch(view, CallOpen, paramAddr); errCode != BadCallParamCount {
		t.Fatalf("bad count gave %02X", errCode)
	}

	// The count mismatch wins over the invalid pathname that
	// follows it.
	pokeCounted(view, pathAddr, "")
	poke(view, paramAddr, 9, uint8(pathAddr&0xFF), uint8(pathAddr>>8))
	if errCode := ctx.Dispatch(view, CallDestroy, paramAddr); errCode != BadCallParamCount {
		t.Fatalf("count should win, gave %02X", errCode)
	}

	// READ_BLOCK/WRITE_BLOCK validate the count, then fail.
	poke(view, paramAddr, 3)
	if errCode := ctx.Dispatch(view, CallReadBlock, paramAddr); errCode != IOError {
		t.Fatalf("READ_BLOCK gave %02X", errCode)
	}
	if errCode := ctx.Dispatch(view, CallWriteBlock, paramAddr); errCode != IOError {
		t.Fatalf("WRITE_BLOCK gave %02X", errCode)
	}
	poke(view, paramAddr, 2)
	if errCode := ctx.Dispatch(view, CallReadBlock, paramAddr); errCode != BadCallParamCount {
		t.Fatalf("READ_BLOCK bad count gave %02X", errCode)
	}

	// GET_TIME ignores the parameter-count byte and fills the
	// global page.
	poke(view, paramAddr, 0xAA)
	if errCode := ctx.Dispatch(view, CallGetTime, paramAddr); errCode != NoError {
		t.Fatalf("GET_TIME gave %02X", errCode)
	}
	if memory.ReadU16(view, 0xBF90) == 0 {
		t.Fatalf("GET_TIME did not write the date")
	}
}

// TestPathnameValidation covers the syntax error paths of the common
// preamble.
func TestPathnameValidation(t *testing.T) {

	ctx, view := testEnv(t)

	tryOpen := func(path string) uint8 {
		errCode, _ := open(ctx, view, path)
		return errCode
	}

	if errCode := tryOpen(""); errCode != InvalidPathSyntax {
		t.Fatalf("empty pathname gave %02X", errCode)
	}
	if errCode := tryOpen("/V1//X"); errCode != InvalidPathSyntax {
		t.Fatalf("empty segment gave %02X", errCode)
	}
	if errCode := tryOpen("/V1/1BAD"); errCode != InvalidPathSyntax {
		t.Fatalf("bad component gave %02X", errCode)
	}
	if errCode := tryOpen("/V1/GONE"); errCode != FileNotFound {
		t.Fatalf("missing file gave %02X", errCode)
	}

	// A length byte over 64 is a syntax error even though the
	// bytes themselves look fine.
	pokeCounted(view, pathAddr, "/V1/TEST")
	memory.WriteU8(view, pathAddr, 65)
	poke(view, paramAddr,
		3,
		uint8(pathAddr&0xFF), uint8(pathAddr>>8),
		0x00, 0x08,
		0x00,
	)
	if errCode := ctx.Dispatch(view, CallOpen, paramAddr); errCode != InvalidPathSyntax {
		t.Fatalf("oversized length byte gave %02X", errCode)
	}
}

// TestCountedStringAtTopOfMemory reads a pathname whose counted
// string wraps around the address space.
func TestCountedStringAtTopOfMemory(t *testing.T) {

	ctx, view := testEnv(t)

	host := filepath.Join(ctx.VolumesRoot(), "V1", "W")
	if err := os.WriteFile(host, []byte("!"), 0644); err != nil {
		t.Fatalf("failed to create file: %s", err)
	}

	// "/V1/W": length byte at $FFFE, characters wrap into page 0.
	memory.WriteU8(view, 0xFFFE, 5)
	for i, ch := range []uint8{'/', 'V', '1', '/', 'W'} {
		memory.WriteU8(view, uint16(0xFFFF+i), ch)
	}

	poke(view, paramAddr,
		3,
		0xFE, 0xFF, // pathname pointer $FFFE
		0x00, 0x08,
		0x00,
	)
	if errCode := ctx.Dispatch(view, CallOpen, paramAddr); errCode != NoError {
		t.Fatalf("wrap-around pathname OPEN gave %02X", errCode)
	}
}

// TestSetFileInfo updates access and the host mtime.
func TestSetFileInfo(t *testing.T) {

	ctx, view := testEnv(t)
	requireXattrs(t, ctx)

	host := filepath.Join(ctx.VolumesRoot(), "V1", "INFO")
	if err := os.WriteFile(host, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create file: %s", err)
	}

	// mod_date: 1986-09-15, mod_time: 14:30.
	modDate := uint16(15) | uint16(9)<<5 | uint16(86)<<9
	modTime := uint16(30) | uint16(14)<<8

	pokeCounted(view, pathAddr, "/V1/INFO")
	poke(view, paramAddr,
		7,
		uint8(pathAddr&0xFF), uint8(pathAddr>>8),
		0xC3,       // access
		0x04,       // file_type TXT
		0x34, 0x12, // aux_type
		0, 0, 0, // null field
		uint8(modDate&0xFF), uint8(modDate>>8),
		uint8(modTime&0xFF), uint8(modTime>>8),
	)
	if errCode := ctx.Dispatch(view, CallSetFileInfo, paramAddr); errCode != NoError {
		t.Fatalf("SET_FILE_INFO failed with %02X", errCode)
	}

	// The host mtime now decodes to the requested stamp.
	st, _ := os.Stat(host)
	if st.ModTime().Year() != 1986 || st.ModTime().Minute() != 30 {
		t.Fatalf("host mtime not applied: %v", st.ModTime())
	}

	// GET_FILE_INFO reads the stored fields back.
	pokeCounted(view, pathAddr, "/V1/INFO")
	poke(view, paramAddr, 10, uint8(pathAddr&0xFF), uint8(pathAddr>>8))
	if errCode := ctx.Dispatch(view, CallGetFileInfo, paramAddr); errCode != NoError {
		t.Fatalf("GET_FILE_INFO failed")
	}
	if memory.ReadU8(view, paramAddr+4) != 0x04 {
		t.Fatalf("file_type not stored")
	}
	if memory.ReadU16(view, paramAddr+5) != 0x1234 {
		t.Fatalf("aux_type not stored")
	}
	if memory.ReadU16(view, paramAddr+10) != modDate {
		t.Fatalf("mod_date = %04X, want %04X", memory.ReadU16(view, paramAddr+10), modDate)
	}
}

// TestOpenAccessDenied covers the read-access bit on OPEN.
func TestOpenAccessDenied(t *testing.T) {

	ctx, view := testEnv(t)
	requireXattrs(t, ctx)

	host := filepath.Join(ctx.VolumesRoot(), "V1", "SECRET")
	if err := os.WriteFile(host, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to create file: %s", err)
	}
	// Store an access byte with the read bit clear.
	if err := xattr.Set(host, "access", "dn-..-w-"); err != nil {
		t.Fatalf("failed to store access: %s", err)
	}

	if errCode, _ := open(ctx, view, "/V1/SECRET"); errCode != AccessError {
		t.Fatalf("unreadable file OPEN gave %02X", errCode)
	}
}
