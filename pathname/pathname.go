// Package pathname implements the ProDOS pathname rules: the counted
// string wire format, character normalization, component and pathname
// validation, prefix resolution, and the mapping from a ProDOS
// pathname onto a host path beneath the volumes root.
//
// A ProDOS pathname is a sequence of components separated by slashes.
// A component is 1-15 characters, starts with a letter, and continues
// with letters, digits and periods.  Absolute pathnames start with a
// slash; partial pathnames are resolved against the current prefix.
package pathname

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/prodos8/prodosulator/memory"
)

// MaxComponentLen is the longest legal ProDOS filename component.
const MaxComponentLen = 15

// MaxPathLen is the longest legal full pathname after prefix
// resolution.
const MaxPathLen = 128

// NormalizeChar strips the high bit and upper-cases ASCII a-z, the
// normalization ProDOS applies to every pathname character.
func NormalizeChar(c uint8) uint8 {
	c &= 0x7F
	if c >= 'a' && c <= 'z' {
		c -= 'a' - 'A'
	}
	return c
}

// ReadCountedString reads a length-prefixed string from emulated
// memory, normalizing each character.  The access wraps at $FFFF.
func ReadCountedString(view *memory.Banks, addr uint16) string {
	count := memory.ReadU8(view, addr)

	var sb strings.Builder
	sb.Grow(int(count))
	for i := uint16(0); i < uint16(count); i++ {
		sb.WriteByte(NormalizeChar(memory.ReadU8(view, addr+1+i)))
	}
	return sb.String()
}

// IsValidComponent reports whether s is a legal ProDOS filename
// component: 1-15 characters, starting with A-Z, continuing with
// A-Z, 0-9 or '.'.
func IsValidComponent(s string) bool {
	if len(s) == 0 || len(s) > MaxComponentLen {
		return false
	}

	first := s[0]
	if first < 'A' || first > 'Z' {
		return false
	}

	for i := 1; i < len(s); i++ {
		ch := s[i]
		if (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '.' {
			continue
		}
		return false
	}

	return true
}

// IsValidPathname reports whether s is a syntactically legal ProDOS
// pathname no longer than maxLength.  A leading slash is permitted;
// any other empty segment (such as "//") is not.
func IsValidPathname(s string, maxLength int) bool {
	if len(s) == 0 || len(s) > maxLength {
		return false
	}

	first := true
	for _, component := range strings.Split(s, "/") {
		if component == "" {
			// A leading '/' produces one empty first segment.
			if first && s[0] == '/' {
				first = false
				continue
			}
			return false
		}
		if !IsValidComponent(component) {
			return false
		}
		first = false
	}

	return true
}

// ResolveFullPath combines a pathname with the current prefix.  An
// absolute pathname is returned unchanged; a partial one is appended
// to the prefix.  The empty string is returned when the result would
// exceed MaxPathLen.
func ResolveFullPath(pathname string, prefix string) string {
	fullPath := pathname
	if pathname == "" || pathname[0] != '/' {
		fullPath = prefix
		if fullPath != "" && !strings.HasSuffix(fullPath, "/") && pathname != "" {
			fullPath += "/"
		}
		fullPath += pathname
	}

	if len(fullPath) > MaxPathLen {
		return ""
	}

	return fullPath
}

// MapToHostPath converts an absolute ProDOS pathname into a host path
// beneath the volumes root.  The pathname must be absolute, and any
// "." or ".." segment is rejected so the result can never escape the
// root.
func MapToHostPath(prodosPath string, volumesRoot string) (string, error) {
	if prodosPath == "" || prodosPath[0] != '/' {
		return "", fmt.Errorf("not an absolute ProDOS pathname: %q", prodosPath)
	}

	for _, component := range strings.Split(prodosPath[1:], "/") {
		if component == "." || component == ".." {
			return "", fmt.Errorf("illegal pathname segment %q", component)
		}
	}

	return filepath.Join(volumesRoot, prodosPath[1:]), nil
}
