// Package external resolves declarations against package lists published by
// other documentation sites, or by other modules of the same build.
package external

import (
	"strings"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/naming"
	"github.com/jcdickinson/docloc/internal/packagelist"
)

// Site is what a strategy knows about the package list a DRI was found in.
type Site struct {
	// Module is the section that declares the DRI's package, "" for the
	// unnamed section.
	Module string
	// Ext is the link extension without the leading dot.
	Ext         string
	Relocations map[string]string
	// Packages holds every package the list declares. A class path key that
	// names one of them is that package's relocation, never the class's.
	Packages map[string]bool
}

func (s Site) relocation(key string) (string, bool) {
	if key == "" {
		return "", false
	}
	loc, ok := s.Relocations[key]
	return loc, ok
}

func (s Site) dotExt() string {
	if s.Ext == "" {
		return ""
	}
	return "." + s.Ext
}

// isPage reports whether a relocation value addresses a page (or a fragment
// of one) rather than a container directory.
func (s Site) isPage(loc string) bool {
	if strings.Contains(loc, "#") {
		return true
	}
	if s.Ext != "" && strings.HasSuffix(loc, "."+s.Ext) {
		return true
	}
	return strings.HasSuffix(loc, ".html")
}

// Strategy synthesizes the location of a declaration under one site layout.
// Locations are relative to the site root.
type Strategy interface {
	Name() string
	// RelocationKey is the key under which a package list relocates the class
	// path classes of pkg, or pkg itself when classes is empty.
	RelocationKey(pkg string, classes []string) string
	Locate(d dri.DRI, site Site) string
}

// baseRewriter is implemented by strategies that publish some packages under
// a different base URL.
type baseRewriter interface {
	Base(d dri.DRI, base string) string
}

// StrategyFor selects the strategy for a format marker.
func StrategyFor(format string) (Strategy, bool) {
	switch format {
	case packagelist.FormatHTML, packagelist.FormatGFM, packagelist.FormatJekyll:
		return Current{}, true
	case packagelist.FormatKotlinWebsite, packagelist.FormatKotlinWebHTML:
		return Legacy{}, true
	case packagelist.FormatJavadoc1, packagelist.FormatJavadoc8, packagelist.FormatJavadoc10:
		return Javadoc{Variant: format}, true
	case packagelist.FormatJavadocOutput:
		return Javadoc{Variant: packagelist.FormatJavadoc10}, true
	case packagelist.FormatAndroidJavadoc:
		return Android{}, true
	}
	return nil, false
}

// relocatedBase finds the most specific relocation covering d: the deepest
// relocated class path prefix, then the package. depth is the number of class
// names covered by loc. Packages and classes share the dotted key space, so
// class path keys naming a declared package are skipped.
func relocatedBase(st Strategy, d dri.DRI, s Site) (loc string, depth int, ok bool) {
	classes := d.ClassPath()
	for i := len(classes); i > 0; i-- {
		key := st.RelocationKey(d.PackageName, classes[:i])
		if s.Packages[key] {
			continue
		}
		if loc, ok := s.relocation(key); ok {
			return loc, i, true
		}
	}
	if loc, ok := s.relocation(st.RelocationKey(d.PackageName, nil)); ok {
		return loc, 0, true
	}
	return "", 0, false
}

// verbatim completes a page-valued relocation: the page itself for the
// relocated declaration, or the page plus anchor for its callables.
func verbatim(loc string, depth int, d dri.DRI, anchor func(*dri.Callable) string) string {
	if d.Callable != nil && depth == len(d.ClassPath()) && !strings.Contains(loc, "#") {
		return loc + "#" + anchor(d.Callable)
	}
	return loc
}

// dotted builds a relocation key. The root package itself is keyed by its
// display token, its classes by their bare class path.
func dotted(pkg string, classes []string, sep string) string {
	name := strings.Join(classes, sep)
	switch {
	case pkg == "" && name == "":
		return naming.RootPackage
	case pkg == "":
		return name
	case name == "":
		return pkg
	}
	return pkg + "." + name
}
