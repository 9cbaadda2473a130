// This file implements the MLI housekeeping calls: CREATE, DESTROY,
// RENAME, SET_FILE_INFO, GET_FILE_INFO, ON_LINE, SET_PREFIX and
// GET_PREFIX.

package mli

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/prodos8/prodosulator/memory"
	"github.com/prodos8/prodosulator/metadata"
	"github.com/prodos8/prodosulator/pathname"
)

// maxCountedPathLen is the longest counted pathname a caller may
// supply; longer length bytes are a syntax error.
const maxCountedPathLen = 64

// readPathnameArg dereferences the pathname pointer at
// paramAddr+offset and returns the normalized counted string.  The
// second result is false when the length byte exceeds 64, which is a
// syntax error regardless of context.
func readPathnameArg(view *memory.Banks, paramAddr uint16, offset uint16) (string, bool) {
	ptr := memory.ReadU16(view, paramAddr+offset)
	if memory.ReadU8(view, ptr) > maxCountedPathLen {
		return "", false
	}
	return pathname.ReadCountedString(view, ptr), true
}

// resolvePath turns a raw pathname into an absolute, validated ProDOS
// pathname, applying the prefix to partial inputs.  The empty string
// signals a syntax error.
func (ctx *Context) resolvePath(raw string) string {
	if raw == "" {
		return ""
	}

	full := raw
	if full[0] != '/' {
		full = pathname.ResolveFullPath(full, ctx.prefix)
		if full == "" || full[0] != '/' {
			return ""
		}
	}

	if !pathname.IsValidPathname(full, pathname.MaxPathLen) {
		return ""
	}

	return full
}

// mapPath converts an absolute ProDOS pathname into a host path.  The
// empty string signals a syntax error.
func (ctx *Context) mapPath(prodosPath string) string {
	host, err := pathname.MapToHostPath(prodosPath, ctx.volumesRoot)
	if err != nil {
		return ""
	}
	return host
}

// resolveHostPath is the common preamble for calls taking one
// pathname pointer at +1: read, resolve, and map in one step.
func (ctx *Context) resolveHostPath(view *memory.Banks, paramAddr uint16) (string, uint8) {
	raw, ok := readPathnameArg(view, paramAddr, 1)
	if !ok {
		return "", InvalidPathSyntax
	}

	full := ctx.resolvePath(raw)
	if full == "" {
		return "", InvalidPathSyntax
	}

	host := ctx.mapPath(full)
	if host == "" {
		return "", InvalidPathSyntax
	}

	return host, NoError
}

// hostError folds a host filesystem error into a ProDOS error code.
func hostError(err error) uint8 {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return AccessError
	case errors.Is(err, unix.ENOSPC):
		return VolumeFull
	default:
		return IOError
	}
}

// callCreate implements CREATE ($C0): make a standard file or a
// directory, apply its access byte, and persist its metadata.
func callCreate(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	raw, ok := readPathnameArg(view, paramAddr, 1)
	if !ok || raw == "" {
		return InvalidPathSyntax
	}

	access := memory.ReadU8(view, paramAddr+3)
	fileType := memory.ReadU8(view, paramAddr+4)
	auxType := memory.ReadU16(view, paramAddr+5)
	storageType := memory.ReadU8(view, paramAddr+7)
	createDate := memory.ReadU16(view, paramAddr+8)
	createTime := memory.ReadU16(view, paramAddr+10)

	if storageType != 0x01 && storageType != 0x0D {
		return UnsupportedStorage
	}

	full := ctx.resolvePath(raw)
	if full == "" {
		return InvalidPathSyntax
	}
	hostPath := ctx.mapPath(full)
	if hostPath == "" {
		return InvalidPathSyntax
	}

	if _, err := os.Stat(hostPath); err == nil {
		return DuplicateFilename
	}
	if _, err := os.Stat(filepath.Dir(hostPath)); err != nil {
		return PathNotFound
	}

	if storageType == 0x0D {
		if err := os.Mkdir(hostPath, 0755); err != nil {
			return hostError(err)
		}
	} else {
		f, err := os.OpenFile(hostPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err != nil {
			return hostError(err)
		}
		f.Close()
	}

	metadata.ApplyAccess(hostPath, access)

	meta := metadata.Metadata{
		Access:      access,
		FileType:    fileType,
		AuxType:     auxType,
		StorageType: storageType,
		CreateDate:  createDate,
		CreateTime:  createTime,
	}

	// A zero creation stamp means "now".
	if createDate == 0 || createTime == 0 {
		now := time.Now()
		meta.CreateDate = metadata.EncodeDate(now)
		meta.CreateTime = metadata.EncodeTime(now)
	}
	meta.ModDate = meta.CreateDate
	meta.ModTime = meta.CreateTime

	if err := metadata.Store(hostPath, meta); err != nil {
		return hostError(err)
	}

	return NoError
}

// callDestroy implements DESTROY ($C1): unlink a file or an empty
// directory.
func callDestroy(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	hostPath, errCode := ctx.resolveHostPath(view, paramAddr)
	if errCode != NoError {
		return errCode
	}

	st, err := os.Stat(hostPath)
	if err != nil {
		return FileNotFound
	}

	if st.IsDir() {
		entries, err := os.ReadDir(hostPath)
		if err != nil {
			return hostError(err)
		}
		if len(entries) > 0 {
			return AccessError
		}
	}

	if err := os.Remove(hostPath); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return AccessError
		}
		return IOError
	}

	return NoError
}

// callRename implements RENAME ($C2).  ProDOS RENAME cannot move a
// file between directories, so both resolved pathnames must share a
// parent.
func callRename(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	oldRaw, oldOK := readPathnameArg(view, paramAddr, 1)
	newRaw, newOK := readPathnameArg(view, paramAddr, 3)
	if !oldOK || !newOK {
		return InvalidPathSyntax
	}

	oldPath := ctx.resolvePath(oldRaw)
	newPath := ctx.resolvePath(newRaw)
	if oldPath == "" || newPath == "" {
		return InvalidPathSyntax
	}

	oldSlash := strings.LastIndex(oldPath, "/")
	newSlash := strings.LastIndex(newPath, "/")
	if oldSlash < 0 || newSlash < 0 {
		return InvalidPathSyntax
	}
	if oldPath[:oldSlash] != newPath[:newSlash] {
		return InvalidPathSyntax
	}

	oldHost := ctx.mapPath(oldPath)
	newHost := ctx.mapPath(newPath)
	if oldHost == "" || newHost == "" {
		return InvalidPathSyntax
	}

	if _, err := os.Stat(oldHost); err != nil {
		return FileNotFound
	}
	if _, err := os.Stat(newHost); err == nil {
		return DuplicateFilename
	}

	// A host rename carries the xattr sidecar along with the file.
	if err := os.Rename(oldHost, newHost); err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return AccessError
		}
		return IOError
	}

	return NoError
}

// callSetFileInfo implements SET_FILE_INFO ($C3): overwrite the
// access, type and modification fields, leaving the creation stamp
// and storage type alone.  The null field at +7..+9 is ignored.
func callSetFileInfo(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	hostPath, errCode := ctx.resolveHostPath(view, paramAddr)
	if errCode != NoError {
		return errCode
	}

	access := memory.ReadU8(view, paramAddr+3)
	fileType := memory.ReadU8(view, paramAddr+4)
	auxType := memory.ReadU16(view, paramAddr+5)
	modDate := memory.ReadU16(view, paramAddr+10)
	modTime := memory.ReadU16(view, paramAddr+12)

	st, err := os.Stat(hostPath)
	if err != nil {
		return FileNotFound
	}

	meta := metadata.Load(hostPath, st.IsDir())
	meta.Access = access
	meta.FileType = fileType
	meta.AuxType = auxType
	meta.ModDate = modDate
	meta.ModTime = modTime

	metadata.ApplyAccess(hostPath, access)

	if modDate != 0 && modTime != 0 {
		when := metadata.DecodeDateTime(modDate, modTime)
		ts := unix.NsecToTimespec(when.UnixNano())
		err := unix.UtimesNanoAt(unix.AT_FDCWD, hostPath,
			[]unix.Timespec{ts, ts}, 0)
		if err != nil {
			if errors.Is(err, unix.EACCES) || errors.Is(err, unix.EPERM) {
				return AccessError
			}
			return IOError
		}
	}

	if err := metadata.Store(hostPath, meta); err != nil {
		return hostError(err)
	}

	return NoError
}

// callGetFileInfo implements GET_FILE_INFO ($C4), filling the result
// fields of the parameter block.
func callGetFileInfo(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	hostPath, errCode := ctx.resolveHostPath(view, paramAddr)
	if errCode != NoError {
		return errCode
	}

	st, err := os.Stat(hostPath)
	if err != nil {
		return FileNotFound
	}

	isDir := st.IsDir()
	var fileSize int64
	if !isDir {
		fileSize = st.Size()
	}

	meta := metadata.Load(hostPath, isDir)

	blocksUsed := uint16((fileSize + 511) / 512)

	// An immediate child of the volumes root is a volume directory.
	if isDir && sameFile(filepath.Dir(hostPath), ctx.volumesRoot) {
		meta.StorageType = 0x0F
	}

	memory.WriteU8(view, paramAddr+3, meta.Access)
	memory.WriteU8(view, paramAddr+4, meta.FileType)
	memory.WriteU16(view, paramAddr+5, meta.AuxType)
	memory.WriteU8(view, paramAddr+7, meta.StorageType)
	memory.WriteU16(view, paramAddr+8, blocksUsed)
	memory.WriteU16(view, paramAddr+10, meta.ModDate)
	memory.WriteU16(view, paramAddr+12, meta.ModTime)
	memory.WriteU16(view, paramAddr+14, meta.CreateDate)
	memory.WriteU16(view, paramAddr+16, meta.CreateTime)

	return NoError
}

// sameFile reports whether two host paths name the same file.
func sameFile(a string, b string) bool {
	sa, err := os.Stat(a)
	if err != nil {
		return false
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(sa, sb)
}

// onlineVolumes enumerates the immediate subdirectories of the
// volumes root which carry valid ProDOS names, sorted.
func (ctx *Context) onlineVolumes() []string {
	var volumes []string

	entries, err := os.ReadDir(ctx.volumesRoot)
	if err != nil {
		return volumes
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if pathname.IsValidComponent(entry.Name()) {
			volumes = append(volumes, entry.Name())
		}
	}

	// os.ReadDir sorts by name already, which is the order ProDOS
	// presents volumes in.
	return volumes
}

// writeVolumeRecord writes one 16-byte ON_LINE record.
func writeVolumeRecord(view *memory.Banks, addr uint16, slot int, drive int, name string) {
	byte0 := uint8(drive<<7) | uint8(slot<<4) | uint8(len(name))
	memory.WriteU8(view, addr, byte0)

	for i := 0; i < 15; i++ {
		var ch uint8
		if i < len(name) {
			ch = name[i]
		}
		memory.WriteU8(view, addr+1+uint16(i), ch)
	}
}

// callOnLine implements ON_LINE ($C5).  Volumes are assigned
// synthetic slot/drive pairs: volume i lives in slot (i/2)+1, drive
// i%2.
func callOnLine(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	unitNum := memory.ReadU8(view, paramAddr+1)
	dataBuffer := memory.ReadU16(view, paramAddr+2)

	volumes := ctx.onlineVolumes()

	if unitNum != 0 {
		drive := int(unitNum>>7) & 0x01
		slot := int(unitNum>>4) & 0x07

		if slot < 1 || slot > 7 {
			return NoDevice
		}

		index := (slot-1)*2 + drive
		if index >= len(volumes) {
			return NoDevice
		}

		name := volumes[index]
		if len(name) > 15 {
			return NoDevice
		}

		writeVolumeRecord(view, dataBuffer, slot, drive, name)
		return NoError
	}

	// unit_num 0: all volumes, up to the fourteen slot/drive pairs,
	// then a terminator byte.
	offset := dataBuffer
	count := 0
	for _, name := range volumes {
		if count >= 14 {
			break
		}
		if len(name) > 15 {
			continue
		}

		slot := count/2 + 1
		drive := count % 2
		writeVolumeRecord(view, offset, slot, drive, name)
		offset += 16
		count++
	}

	memory.WriteU8(view, offset, 0)
	return NoError
}

// callSetPrefix implements SET_PREFIX ($C6).  A partial pathname with
// an empty prefix cannot be resolved; the stored prefix is validated
// against the 64-character prefix limit.
func callSetPrefix(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	raw, ok := readPathnameArg(view, paramAddr, 1)
	if !ok {
		return InvalidPathSyntax
	}

	if raw != "" && raw[0] != '/' && ctx.prefix == "" {
		return InvalidPathSyntax
	}

	full := pathname.ResolveFullPath(raw, ctx.prefix)
	if full == "" {
		return InvalidPathSyntax
	}

	if !pathname.IsValidPathname(full, maxCountedPathLen) {
		return InvalidPathSyntax
	}

	ctx.prefix = full
	return NoError
}

// callGetPrefix implements GET_PREFIX ($C7), writing the prefix back
// as a counted string.
func callGetPrefix(ctx *Context, view *memory.Banks, paramAddr uint16) uint8 {
	dataBuffer := memory.ReadU16(view, paramAddr+1)

	memory.WriteU8(view, dataBuffer, uint8(len(ctx.prefix)))
	for i := 0; i < len(ctx.prefix); i++ {
		memory.WriteU8(view, dataBuffer+1+uint16(i), ctx.prefix[i])
	}

	return NoError
}
