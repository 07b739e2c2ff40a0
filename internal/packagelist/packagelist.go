// Package packagelist reads and writes package manifests ("package lists"):
// the plain-text records that tell a documentation build where another site,
// or another module of the same build, published its packages.
package packagelist

import (
	"errors"
	"fmt"
	"maps"
	"slices"
)

// Well-known format markers.
const (
	FormatHTML           = "html-v1"
	FormatGFM            = "gfm-v1"
	FormatJekyll         = "jekyll-v1"
	FormatJavadocOutput  = "javadoc-v1"
	FormatKotlinWebsite  = "kotlin-website"
	FormatKotlinWebHTML  = "kotlin-website-html"
	FormatJavadoc1       = "javadoc1"
	FormatJavadoc8       = "javadoc8"
	FormatJavadoc10      = "javadoc10"
	FormatAndroidJavadoc = "android-javadoc"
)

// recognized maps every accepted format marker to its default link extension.
var recognized = map[string]string{
	FormatHTML:           "html",
	FormatGFM:            "md",
	FormatJekyll:         "html",
	FormatJavadocOutput:  "html",
	FormatKotlinWebsite:  "html",
	FormatKotlinWebHTML:  "html",
	FormatJavadoc1:       "html",
	FormatJavadoc8:       "html",
	FormatJavadoc10:      "html",
	FormatAndroidJavadoc: "",
}

// Recognized reports whether format is a known marker.
func Recognized(format string) bool {
	_, ok := recognized[format]
	return ok
}

// DefaultExtension returns the conventional link extension of a format.
func DefaultExtension(format string) string {
	return recognized[format]
}

// RecognizedFormats lists the known markers in sorted order.
func RecognizedFormats() []string {
	return slices.Sorted(maps.Keys(recognized))
}

// ErrUnrecognizedFormat is returned (wrapped) by Validate.
var ErrUnrecognizedFormat = errors.New("unrecognized package list format")

// UnrecognizedFormatError reports a missing or unknown format marker.
type UnrecognizedFormatError struct {
	Format string
}

func (e *UnrecognizedFormatError) Error() string {
	if e.Format == "" {
		return "package list has no $dokka.format marker"
	}
	return fmt.Sprintf("unrecognized package list format %q", e.Format)
}

func (e *UnrecognizedFormatError) Unwrap() error {
	return ErrUnrecognizedFormat
}

// Module is one module section of a package list. The unnamed module "" holds
// packages declared before any module header.
type Module struct {
	Name     string
	Packages []string
}

// PackageList is a parsed package manifest.
type PackageList struct {
	Format        string
	LinkExtension string
	Modules       []Module
	// Locations maps a relocation key (serialized DRI, class or package name)
	// to a location relative to the documentation root.
	Locations map[string]string
	// Properties keeps $dokka.* headers other than format and link extension.
	Properties map[string]string
}

// New returns an empty package list for the given format.
func New(format, linkExtension string) *PackageList {
	return &PackageList{
		Format:        format,
		LinkExtension: linkExtension,
		Locations:     make(map[string]string),
		Properties:    make(map[string]string),
	}
}

// Validate returns an *UnrecognizedFormatError if the format marker is
// missing or unknown. Resolution against such a list must not be attempted.
func (l *PackageList) Validate() error {
	if !Recognized(l.Format) {
		return &UnrecognizedFormatError{Format: l.Format}
	}
	return nil
}

// Extension returns the link extension, falling back to the format default.
func (l *PackageList) Extension() string {
	if l.LinkExtension != "" {
		return l.LinkExtension
	}
	return DefaultExtension(l.Format)
}

func (l *PackageList) module(name string) *Module {
	for i := range l.Modules {
		if l.Modules[i].Name == name {
			return &l.Modules[i]
		}
	}
	l.Modules = append(l.Modules, Module{Name: name})
	return &l.Modules[len(l.Modules)-1]
}

// AddPackage declares pkg in the named module section. Duplicates within a
// section are ignored.
func (l *PackageList) AddPackage(module, pkg string) {
	m := l.module(module)
	if !slices.Contains(m.Packages, pkg) {
		m.Packages = append(m.Packages, pkg)
	}
}

// SetLocation records a relocation entry.
func (l *PackageList) SetLocation(key, location string) {
	if l.Locations == nil {
		l.Locations = make(map[string]string)
	}
	l.Locations[key] = location
}

// Location returns the relocation stored under key.
func (l *PackageList) Location(key string) (string, bool) {
	loc, ok := l.Locations[key]
	return loc, ok
}

// HasPackage reports whether any section declares pkg. Lookups are exact and
// case-sensitive.
func (l *PackageList) HasPackage(pkg string) bool {
	_, ok := l.ModuleFor(pkg, nil)
	return ok
}

// ModuleFor returns the first section declaring pkg. When candidates is
// non-empty only sections named in it are considered; the unnamed section is
// always eligible.
func (l *PackageList) ModuleFor(pkg string, candidates []string) (string, bool) {
	for _, m := range l.Modules {
		if len(candidates) > 0 && m.Name != "" && !slices.Contains(candidates, m.Name) {
			continue
		}
		if slices.Contains(m.Packages, pkg) {
			return m.Name, true
		}
	}
	return "", false
}

// Packages returns every declared package once, sorted.
func (l *PackageList) Packages() []string {
	seen := make(map[string]struct{})
	for _, m := range l.Modules {
		for _, p := range m.Packages {
			seen[p] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Clone returns a deep copy.
func (l *PackageList) Clone() *PackageList {
	out := &PackageList{
		Format:        l.Format,
		LinkExtension: l.LinkExtension,
		Locations:     maps.Clone(l.Locations),
		Properties:    maps.Clone(l.Properties),
	}
	if out.Locations == nil {
		out.Locations = make(map[string]string)
	}
	if out.Properties == nil {
		out.Properties = make(map[string]string)
	}
	for _, m := range l.Modules {
		out.Modules = append(out.Modules, Module{Name: m.Name, Packages: slices.Clone(m.Packages)})
	}
	return out
}
