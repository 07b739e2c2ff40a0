package external

import (
	"strings"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/naming"
)

// Legacy is the kotlin-website layout produced by older generators. Nested
// classes share one dot-separated segment and anchors are lower-cased.
type Legacy struct{}

func (Legacy) Name() string { return "legacy" }

func (Legacy) RelocationKey(pkg string, classes []string) string {
	return dotted(pkg, classes, "$")
}

func (l Legacy) Locate(d dri.DRI, s Site) string {
	classes := d.ClassPath()

	var segs []string
	loc, depth, ok := relocatedBase(l, d, s)
	switch {
	case ok && s.isPage(loc):
		return verbatim(loc, depth, d, legacyAnchor)
	case ok:
		segs = append(segs, strings.TrimSuffix(loc, "/"))
	default:
		segs = append(segs, naming.PackageSegment(d.PackageName))
	}
	if rest := classes[depth:]; len(rest) > 0 {
		names := make([]string, len(rest))
		for i, name := range rest {
			names[i] = naming.IdentifierToFilename(name)
		}
		segs = append(segs, strings.Join(names, "."))
	}
	container := strings.Join(segs, "/")

	if d.Callable == nil {
		return container + "/index" + s.dotExt()
	}
	return container + "/" + naming.IdentifierToFilename(d.Callable.Name) + s.dotExt() + "#" + legacyAnchor(d.Callable)
}

// legacyAnchor renders name(t1,t2) in lower case with generic brackets shown
// as parentheses.
func legacyAnchor(c *dri.Callable) string {
	r := strings.NewReplacer("<", "(", ">", ")")
	return strings.ToLower(r.Replace(c.Signature()))
}
