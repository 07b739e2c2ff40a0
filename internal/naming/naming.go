// Package naming turns declaration names into filesystem-safe path segments.
// The same mapping is used when pages are written and when links to them are
// synthesized from a package list, so it is part of the published link
// contract: changing it breaks every previously published link.
package naming

import (
	"slices"
	"strconv"
	"strings"
)

// RootPackage is the display token and path segment of the root package.
const RootPackage = "[root]"

// emptyName is the segment used for declarations with an empty name.
const emptyName = "--root--"

// reservedChars are illegal on common filesystems or meaningful when joining
// links. '/' and '\' cover both path separators.
const reservedChars = `|<>*:"?%/\#`

// reservedNames would clash with index files or device names on Windows.
var reservedNames = []string{"index", "con", "aux", "lst", "prn", "nul", "eof", "inp", "out"}

// EscapeReserved replaces every reserved character with its decimal code
// point in brackets: "|" becomes "[124]".
func EscapeReserved(s string) string {
	if !strings.ContainsAny(s, reservedChars) {
		return s
	}
	var b strings.Builder
	for _, r := range s {
		if r < 0x80 && strings.ContainsRune(reservedChars, r) {
			b.WriteByte('[')
			b.WriteString(strconv.Itoa(int(r)))
			b.WriteByte(']')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IdentifierToFilename maps a declaration name to a path segment. Upper-case
// ASCII letters become '-' plus the lower-case letter, so names differing only
// in case stay distinct on case-insensitive filesystems.
func IdentifierToFilename(name string) string {
	if name == "" {
		return emptyName
	}
	var b strings.Builder
	for _, r := range name {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte('-')
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return EscapeReserved(guardReserved(b.String()))
}

// PackageSegment maps a package name to a path segment. Package names keep
// their case; the root package uses RootPackage.
func PackageSegment(pkg string) string {
	if pkg == "" {
		return RootPackage
	}
	return EscapeReserved(guardReserved(pkg))
}

// Anchor maps a name to an in-page anchor.
func Anchor(name string) string {
	return EscapeReserved(name)
}

func guardReserved(s string) string {
	if slices.Contains(reservedNames, s) {
		return "--" + s + "--"
	}
	return s
}
