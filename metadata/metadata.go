// Package metadata converts between ProDOS file attributes and their
// host representation: an access byte rendered as an eight-glyph
// string, hex-encoded type words, and an ISO-8601 creation stamp, all
// stored as individual extended attributes so that one malformed field
// only loses that field.
package metadata

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/prodos8/prodosulator/xattr"
)

// Access byte bits.
const (
	AccessDestroy   = uint8(0x80)
	AccessRename    = uint8(0x40)
	AccessBackup    = uint8(0x20)
	AccessInvisible = uint8(0x04)
	AccessWrite     = uint8(0x02)
	AccessRead      = uint8(0x01)

	// accessReserved covers the two reserved bits, which the codec
	// renders as '.' and clears on parse.
	accessReserved = uint8(0x18)
)

// DefaultAccess is read+write+rename+destroy, the access a host file
// with no stored attributes presents.
const DefaultAccess = uint8(0xC3)

// Metadata is the ProDOS attribute record for one file or directory.
type Metadata struct {
	Access      uint8
	FileType    uint8
	AuxType     uint16
	StorageType uint8
	CreateDate  uint16
	CreateTime  uint16
	ModDate     uint16
	ModTime     uint16
}

// FormatAccessByte renders an access byte as the eight-glyph string,
// e.g. 0xC3 -> "dn-..-wr".
func FormatAccessByte(access uint8) string {
	glyph := func(mask uint8, ch byte) byte {
		if access&mask != 0 {
			return ch
		}
		return '-'
	}

	return string([]byte{
		glyph(AccessDestroy, 'd'),
		glyph(AccessRename, 'n'),
		glyph(AccessBackup, 'b'),
		'.',
		'.',
		glyph(AccessInvisible, 'i'),
		glyph(AccessWrite, 'w'),
		glyph(AccessRead, 'r'),
	})
}

// ParseAccessByte parses the eight-glyph string strictly: each defined
// position must hold its letter or '-', the reserved positions must be
// '.'.  The reserved bits are cleared in the result.
func ParseAccessByte(s string) (uint8, bool) {
	if len(s) != 8 {
		return 0, false
	}

	var result uint8

	bit := func(pos int, ch byte, mask uint8) bool {
		switch s[pos] {
		case ch:
			result |= mask
			return true
		case '-':
			return true
		}
		return false
	}

	if !bit(0, 'd', AccessDestroy) {
		return 0, false
	}
	if !bit(1, 'n', AccessRename) {
		return 0, false
	}
	if !bit(2, 'b', AccessBackup) {
		return 0, false
	}
	if s[3] != '.' || s[4] != '.' {
		return 0, false
	}
	if !bit(5, 'i', AccessInvisible) {
		return 0, false
	}
	if !bit(6, 'w', AccessWrite) {
		return 0, false
	}
	if !bit(7, 'r', AccessRead) {
		return 0, false
	}

	return result, true
}

// EncodeDate packs the local-time calendar fields of t into a ProDOS
// date word: bits 0-4 day, 5-8 month, 9-15 year offset from 1900.
func EncodeDate(t time.Time) uint16 {
	year, month, day := t.Local().Date()

	y := year - 1900
	if y < 0 {
		y = 0
	}
	if y > 127 {
		y = 127
	}

	return uint16(day&0x1F) | uint16(int(month)&0x0F)<<5 | uint16(y&0x7F)<<9
}

// EncodeTime packs the local-time clock fields of t into a ProDOS
// time word: bits 0-5 minute, 8-12 hour.
func EncodeTime(t time.Time) uint16 {
	hour, minute, _ := t.Local().Clock()
	return uint16(minute&0x3F) | uint16(hour&0x1F)<<8
}

// DecodeDateTime unpacks a ProDOS date/time pair into a local
// timestamp.  A zero date word decodes as the current time.
func DecodeDateTime(date uint16, timeWord uint16) time.Time {
	if date == 0 {
		return time.Now()
	}

	day := int(date & 0x1F)
	month := int((date >> 5) & 0x0F)
	year := int((date>>9)&0x7F) + 1900

	minute := int(timeWord & 0x3F)
	hour := int((timeWord >> 8) & 0x1F)

	return time.Date(year, time.Month(month), day, hour, minute, 0, 0, time.Local)
}

// iso8601Layout is the stored form of the creation stamp, always UTC.
const iso8601Layout = "2006-01-02T15:04:05Z"

// FormatISO8601 renders a timestamp in the stored form.
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(iso8601Layout)
}

// ParseISO8601 parses the stored form strictly: exactly twenty
// characters, UTC, trailing Z.
func ParseISO8601(s string) (time.Time, bool) {
	if len(s) != len(iso8601Layout) {
		return time.Time{}, false
	}
	t, err := time.Parse(iso8601Layout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// formatHexByte renders a byte as two lowercase hex digits.
func formatHexByte(v uint8) string {
	return fmt.Sprintf("%02x", v)
}

// formatHexWord renders a word as four lowercase hex digits.
func formatHexWord(v uint16) string {
	return fmt.Sprintf("%04x", v)
}

func parseHexByte(s string) (uint8, bool) {
	if len(s) != 2 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, false
	}
	return uint8(v), true
}

func parseHexWord(s string) (uint16, bool) {
	if len(s) != 4 {
		return 0, false
	}
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, false
	}
	return uint16(v), true
}

// Store writes the metadata record onto hostPath as individual
// extended attributes.  Modification times are never stored; they are
// always derived from the host mtime on read.
func Store(hostPath string, meta Metadata) error {
	if err := xattr.Set(hostPath, "access", FormatAccessByte(meta.Access)); err != nil {
		return err
	}
	if err := xattr.Set(hostPath, "file_type", formatHexByte(meta.FileType)); err != nil {
		return err
	}
	if err := xattr.Set(hostPath, "aux_type", formatHexWord(meta.AuxType)); err != nil {
		return err
	}
	if err := xattr.Set(hostPath, "storage_type", formatHexByte(meta.StorageType)); err != nil {
		return err
	}

	created := FormatISO8601(DecodeDateTime(meta.CreateDate, meta.CreateTime))
	if err := xattr.Set(hostPath, "created", created); err != nil {
		return err
	}

	return nil
}

// Load reads the metadata record from hostPath.  Each field falls back
// independently when its attribute is absent or malformed: access
// defaults to DefaultAccess masked down by the host permission bits,
// the type fields default by kind, and the creation stamp falls back
// to the host mtime.  The modification fields always reflect the host
// mtime.
func Load(hostPath string, isDirectory bool) Metadata {
	var meta Metadata

	accessLoaded := false
	if v, err := xattr.Get(hostPath, "access"); err == nil {
		if b, ok := ParseAccessByte(v); ok {
			meta.Access = b
			accessLoaded = true
		}
	}

	fileTypeLoaded := false
	if v, err := xattr.Get(hostPath, "file_type"); err == nil {
		if b, ok := parseHexByte(v); ok {
			meta.FileType = b
			fileTypeLoaded = true
		}
	}

	auxTypeLoaded := false
	if v, err := xattr.Get(hostPath, "aux_type"); err == nil {
		if w, ok := parseHexWord(v); ok {
			meta.AuxType = w
			auxTypeLoaded = true
		}
	}

	storageTypeLoaded := false
	if v, err := xattr.Get(hostPath, "storage_type"); err == nil {
		if b, ok := parseHexByte(v); ok {
			meta.StorageType = b
			storageTypeLoaded = true
		}
	}

	st, statErr := os.Stat(hostPath)
	haveStat := statErr == nil

	if !accessLoaded {
		meta.Access = DefaultAccess
		if haveStat {
			if st.Mode().Perm()&0200 == 0 {
				meta.Access &^= AccessWrite
			}
			if st.Mode().Perm()&0400 == 0 {
				meta.Access &^= AccessRead
			}
		}
	}

	if !fileTypeLoaded {
		if isDirectory {
			meta.FileType = 0x0F
		} else {
			meta.FileType = 0x00
		}
	}

	if !auxTypeLoaded {
		meta.AuxType = 0x0000
	}

	if !storageTypeLoaded {
		if isDirectory {
			meta.StorageType = 0x0D
		} else {
			meta.StorageType = 0x01
		}
	}

	haveCreated := false
	if v, err := xattr.Get(hostPath, "created"); err == nil {
		if t, ok := ParseISO8601(v); ok {
			meta.CreateDate = EncodeDate(t)
			meta.CreateTime = EncodeTime(t)
			haveCreated = true
		}
	}

	if !haveCreated {
		when := time.Now()
		if haveStat {
			when = st.ModTime()
		}
		meta.CreateDate = EncodeDate(when)
		meta.CreateTime = EncodeTime(when)
	}

	if haveStat {
		meta.ModDate = EncodeDate(st.ModTime())
		meta.ModTime = EncodeTime(st.ModTime())
	} else {
		meta.ModDate = meta.CreateDate
		meta.ModTime = meta.CreateTime
	}

	return meta
}

// ApplyAccess projects the ProDOS read and write bits onto the host
// user permission bits.  Failure to stat or chmod is ignored; the
// authoritative access byte still lives in the sidecar.
func ApplyAccess(hostPath string, access uint8) {
	st, err := os.Stat(hostPath)
	if err != nil {
		return
	}

	mode := st.Mode().Perm()
	if access&AccessRead != 0 {
		mode |= 0400
	} else {
		mode &^= 0400
	}
	if access&AccessWrite != 0 {
		mode |= 0200
	} else {
		mode &^= 0200
	}

	_ = os.Chmod(hostPath, mode)
}
