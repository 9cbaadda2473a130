// This file implements the MLI filing calls: OPEN, NEWLINE, READ,
// WRITE, CLOSE, FLUSH, SET_MARK, GET_MARK, SET_EOF, GET_EOF, and the
// buffer calls SET_BUF and GET_BUF.

package mli

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"github.com/prodos8/prodosulator/memory"
	"github.com/prodos8/prodosulator/metadata"
)

// maxMark is the largest 24-bit file position.
const maxMark = uint32(0x00FFFFFF)

// eof returns the current end-of-file offset of an open file, capped
// at the 24-bit maximum.  For directories this is the size of the
// synthesized block image.
func (of *OpenFile) eof() (uint32, uint8) {
	if of.isDirectory {
		return uint32(len(of.dirBlocks)), NoError
	}

	st, err := of.file.Stat()
	if err != nil {
		return 0, IOError
	}
	if st.Size() > int64(maxMark) {
		return maxMark, NoError
	}
	return uint32(st.Size()), NoError
}

// callOpen implements OPEN ($C8): resolve the pathname, check read
// access, allocate the lowest free ref_num, and for directories
// synthesize the ProDOS directory image.
func callOpen(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	hostPath, errCode := ctx.resolveHostPath(view, paramAddr)
	if errCode != NoError {
		return errCode
	}
	ioBuffer := memory.ReadU16(view, paramAddr+3)

	st, err := os.Stat(hostPath)
	if err != nil {
		return FileNotFound
	}
	isDirectory := st.IsDir()

	meta := metadata.Load(hostPath, isDirectory)
	if meta.Access&metadata.AccessRead == 0 {
		return AccessError
	}

	// Allocate the lowest free ref_num.
	refNum := uint8(0)
	for r := uint8(1); r <= maxRefNum; r++ {
		if _, used := ctx.openFiles[r]; !used {
			refNum = r
			break
		}
	}
	if refNum == 0 {
		return TooManyFilesOpen
	}

	var file *os.File
	if isDirectory {
		file, err = os.Open(hostPath)
	} else {
		// Try read-write first, fall back to read-only.
		file, err = os.OpenFile(hostPath, os.O_RDWR, 0)
		if errors.Is(err, fs.ErrPermission) {
			file, err = os.Open(hostPath)
		}
	}
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return AccessError
		}
		return IOError
	}

	of := &OpenFile{
		file:        file,
		ioBuffer:    ioBuffer,
		isDirectory: isDirectory,
	}

	if isDirectory {
		// The host directory becomes a byte-addressable ProDOS
		// directory image, consumed by READ via the mark.
		full := ctx.resolvePath(mustPathnameArg(view, paramAddr))
		name := full
		if idx := strings.LastIndex(full, "/"); idx >= 0 && idx+1 < len(full) {
			name = full[idx+1:]
		}
		isVolume := strings.Count(full, "/") == 1

		of.dirBlocks = synthesizeDirectoryBlocks(hostPath, name, isVolume)
	}

	ctx.openFiles[refNum] = of

	memory.WriteU8(view, paramAddr+5, refNum)
	return NoError
}

// mustPathnameArg re-reads the already-validated pathname argument.
func mustPathnameArg(view *memory.Banks, paramAddr uint16) string {
	raw, _ := readPathnameArg(view, paramAddr, 1)
	return raw
}

// callNewline implements NEWLINE ($C9): newline mode is enabled
// whenever the mask is non-zero.
func callNewline(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)
	enableMask := memory.ReadU8(view, paramAddr+2)
	newlineChar := memory.ReadU8(view, paramAddr+3)

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}

	of.newlineEnabled = enableMask != 0
	of.newlineMask = enableMask
	of.newlineChar = newlineChar
	return NoError
}

// callRead implements READ ($CA).  Bytes are transferred one at a
// time because newline mode can stop the transfer after any byte.
// trans_count is written even on error.
func callRead(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)
	dataBuf := memory.ReadU16(view, paramAddr+2)
	requestCount := memory.ReadU16(view, paramAddr+4)

	memory.WriteU16(view, paramAddr+6, 0)

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}

	if of.isDirectory {
		return readDirectory(of, view, dataBuf, requestCount, paramAddr)
	}

	end, errCode := of.eof()
	if errCode != NoError {
		return errCode
	}

	if of.mark >= end {
		return EOFEncountered
	}

	transCount := uint16(0)
	result := NoError

	buf := make([]uint8, 1)
	for i := uint16(0); i < requestCount; i++ {
		if of.mark >= end {
			result = EOFEncountered
			break
		}

		n, err := of.file.ReadAt(buf, int64(of.mark))
		if n <= 0 {
			if err != nil && !errors.Is(err, io.EOF) {
				result = IOError
			} else {
				result = EOFEncountered
			}
			break
		}

		memory.WriteU8(view, dataBuf+i, buf[0])
		of.mark++
		transCount++

		if of.newlineEnabled && buf[0]&of.newlineMask == of.newlineChar&of.newlineMask {
			break
		}
	}

	memory.WriteU16(view, paramAddr+6, transCount)
	return result
}

// readDirectory serves READ against the synthesized directory image.
func readDirectory(of *OpenFile, view *memory.Banks, dataBuf uint16, requestCount uint16, paramAddr uint16) uint8 {
	end := uint32(len(of.dirBlocks))

	if of.mark >= end {
		return EOFEncountered
	}

	transCount := uint16(0)
	for transCount < requestCount && of.mark < end {
		memory.WriteU8(view, dataBuf+transCount, of.dirBlocks[of.mark])
		of.mark++
		transCount++
	}

	memory.WriteU16(view, paramAddr+6, transCount)

	if transCount == 0 {
		return EOFEncountered
	}
	return NoError
}

// callWrite implements WRITE ($CB).  Directories are read-only.  The
// mark is capped at the 24-bit maximum.
func callWrite(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)
	dataBuf := memory.ReadU16(view, paramAddr+2)
	requestCount := memory.ReadU16(view, paramAddr+4)

	memory.WriteU16(view, paramAddr+6, 0)

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}
	if of.isDirectory {
		return AccessError
	}

	transCount := uint16(0)
	buf := make([]uint8, 1)

	for i := uint16(0); i < requestCount; i++ {
		if of.mark >= maxMark {
			break
		}

		buf[0] = memory.ReadU8(view, dataBuf+i)
		if _, err := of.file.WriteAt(buf, int64(of.mark)); err != nil {
			memory.WriteU16(view, paramAddr+6, transCount)
			switch {
			case errors.Is(err, fs.ErrPermission):
				return AccessError
			case errors.Is(err, unix.ENOSPC):
				return VolumeFull
			default:
				return IOError
			}
		}

		of.mark++
		transCount++
	}

	memory.WriteU16(view, paramAddr+6, transCount)
	return NoError
}

// callClose implements CLOSE ($CC); ref_num 0 closes every open file.
func callClose(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)

	if refNum == 0 {
		ctx.Close()
		return NoError
	}

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}

	of.file.Close()
	delete(ctx.openFiles, refNum)
	return NoError
}

// callFlush implements FLUSH ($CD) with the same indexing as CLOSE.
func callFlush(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)

	if refNum == 0 {
		for _, of := range ctx.openFiles {
			_ = of.file.Sync()
		}
		return NoError
	}

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}

	if err := of.file.Sync(); err != nil {
		return IOError
	}
	return NoError
}

// callSetMark implements SET_MARK ($CE); the new position may not
// pass the current end of file.
func callSetMark(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)
	position := memory.ReadU24(view, paramAddr+2)

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}

	end, errCode := of.eof()
	if errCode != NoError {
		return errCode
	}

	if position > end {
		return PositionOutOfRange
	}

	of.mark = position
	return NoError
}

// callGetMark implements GET_MARK ($CF).
func callGetMark(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}

	memory.WriteU24(view, paramAddr+2, of.mark)
	return NoError
}

// callSetEOF implements SET_EOF ($D0): truncate or extend the host
// file, clamping the mark if it now lies past the end.
func callSetEOF(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)
	newEOF := memory.ReadU24(view, paramAddr+2)

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}
	if of.isDirectory {
		return AccessError
	}

	if err := of.file.Truncate(int64(newEOF)); err != nil {
		switch {
		case errors.Is(err, fs.ErrPermission):
			return AccessError
		case errors.Is(err, unix.ENOSPC):
			return VolumeFull
		default:
			return IOError
		}
	}

	if of.mark > newEOF {
		of.mark = newEOF
	}
	return NoError
}

// callGetEOF implements GET_EOF ($D1).
func callGetEOF(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}

	end, errCode := of.eof()
	if errCode != NoError {
		return errCode
	}

	memory.WriteU24(view, paramAddr+2, end)
	return NoError
}

// callSetBuf implements SET_BUF ($D2), updating the remembered
// io_buffer pointer.
func callSetBuf(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)
	ioBuf := memory.ReadU16(view, paramAddr+2)

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}

	of.ioBuffer = ioBuf
	return NoError
}

// callGetBuf implements GET_BUF ($D3).
func callGetBuf(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	refNum := memory.ReadU8(view, paramAddr+1)

	of, ok := ctx.liveFile(refNum)
	if !ok {
		return BadRefNum
	}

	memory.WriteU16(view, paramAddr+2, of.ioBuffer)
	return NoError
}
