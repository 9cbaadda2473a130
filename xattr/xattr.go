// Package xattr stores and retrieves the ProDOS metadata sidecar in
// host extended attributes.
//
// Every attribute name is namespaced beneath "user.prodos8." so the
// emulator's metadata can coexist with anything else on the host
// filesystem.  Absence of an attribute is reported via ErrNotFound so
// callers can fall back to derived defaults.
package xattr

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Prefix is prepended to every attribute name.
const Prefix = "user.prodos8."

// ErrNotFound is returned by Get when the attribute is not present,
// or when the filesystem does not support extended attributes at all.
var ErrNotFound = errors.New("attribute not found")

// Get returns the value of the named attribute on path.
func Get(path string, name string) (string, error) {
	attr := Prefix + name

	// Size query first, then the real read.
	sz, err := unix.Getxattr(path, attr, nil)
	if err != nil {
		return "", mapError(err)
	}

	buf := make([]byte, sz)
	n, err := unix.Getxattr(path, attr, buf)
	if err != nil {
		return "", mapError(err)
	}

	return string(buf[:n]), nil
}

// Set stores the value of the named attribute on path.
func Set(path string, name string, value string) error {
	attr := Prefix + name

	err := unix.Setxattr(path, attr, []byte(value), 0)
	if err != nil {
		return fmt.Errorf("failed to set %s on %s: %w", attr, path, err)
	}
	return nil
}

// Remove deletes the named attribute from path.
func Remove(path string, name string) error {
	attr := Prefix + name

	err := unix.Removexattr(path, attr)
	if err != nil {
		if errors.Is(err, unix.ENODATA) || errors.Is(err, unix.ENOTSUP) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to remove %s from %s: %w", attr, path, err)
	}
	return nil
}

// mapError folds "no such attribute" and "not supported here" into
// ErrNotFound, and wraps everything else.
func mapError(err error) error {
	if errors.Is(err, unix.ENODATA) || errors.Is(err, unix.ENOTSUP) ||
		errors.Is(err, unix.ENOENT) {
		return ErrNotFound
	}
	return fmt.Errorf("xattr read failed: %w", err)
}
