package external

import (
	"strings"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/naming"
)

// Current is the layout written by html-v1, gfm-v1 and jekyll-v1 sites:
//
//	[module/]package/-outer/-inner/index.html
//	[module/]package/-outer/member.html#member-kotlin.Int
type Current struct{}

func (Current) Name() string { return "current" }

func (Current) RelocationKey(pkg string, classes []string) string {
	return dotted(pkg, classes, ".")
}

func (c Current) Locate(d dri.DRI, s Site) string {
	classes := d.ClassPath()

	var segs []string
	loc, depth, ok := relocatedBase(c, d, s)
	switch {
	case ok && s.isPage(loc):
		return verbatim(loc, depth, d, currentAnchor)
	case ok:
		segs = append(segs, strings.TrimSuffix(loc, "/"))
	default:
		if s.Module != "" {
			segs = append(segs, naming.IdentifierToFilename(s.Module))
		}
		segs = append(segs, naming.PackageSegment(d.PackageName))
	}
	for _, name := range classes[depth:] {
		segs = append(segs, naming.IdentifierToFilename(name))
	}
	container := strings.Join(segs, "/")

	if d.Callable == nil {
		return container + "/index" + s.dotExt()
	}
	return container + "/" + naming.IdentifierToFilename(d.Callable.Name) + s.dotExt() + "#" + currentAnchor(d.Callable)
}

// currentAnchor joins the name and parameter types with '-', maps generic
// brackets to square brackets and every other character outside
// [A-Za-z0-9._[]-] to '-'.
func currentAnchor(c *dri.Callable) string {
	parts := make([]string, 0, len(c.Params)+1)
	parts = append(parts, c.Name)
	for _, p := range c.Params {
		parts = append(parts, p.String())
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r == '<':
			return '['
		case r == '>':
			return ']'
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '_', r == '[', r == ']', r == '-':
			return r
		}
		return '-'
	}, strings.Join(parts, "-"))
}
