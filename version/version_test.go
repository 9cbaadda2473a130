package version

import (
	"strings"
	"testing"
)

// TestVersion performs a trivial check of our version functions.
func TestVersion(t *testing.T) {

	if GetVersionString() == "" {
		t.Fatalf("empty version string")
	}

	if !strings.Contains(GetVersionBanner(), GetVersionString()) {
		t.Fatalf("banner does not contain the version")
	}
}
