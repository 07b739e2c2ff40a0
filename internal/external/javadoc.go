package external

import (
	"strings"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/packagelist"
)

const javaObject = "java.lang.Object"

// Javadoc is the layout of javadoc-generated sites. Packages are directories,
// classes (nested ones dot-joined) are files, and members are anchors on the
// class page. Variant selects the anchor style.
type Javadoc struct {
	Variant string
}

func (j Javadoc) Name() string { return j.Variant }

func (Javadoc) RelocationKey(pkg string, classes []string) string {
	return dotted(pkg, classes, ".")
}

func (j Javadoc) Locate(d dri.DRI, s Site) string {
	return locateJavadoc(j, d, s, j.anchor)
}

func (j Javadoc) anchor(c *dri.Callable, owner string) string {
	params := javadocParams(c)
	name := javadocName(c, owner)
	switch j.Variant {
	case packagelist.FormatJavadoc1:
		return name + "(" + strings.Join(params, ", ") + ")"
	case packagelist.FormatJavadoc8:
		return name + "-" + strings.Join(params, "-") + "-"
	default:
		return name + "(" + strings.Join(params, ",") + ")"
	}
}

// Android is the Javadoc layout of developer.android.com. Packages under
// androidx are published under AndroidXURL when one is configured.
type Android struct {
	AndroidXURL string
}

func (Android) Name() string { return packagelist.FormatAndroidJavadoc }

func (Android) RelocationKey(pkg string, classes []string) string {
	return dotted(pkg, classes, ".")
}

func (a Android) Locate(d dri.DRI, s Site) string {
	return locateJavadoc(a, d, s, func(c *dri.Callable, owner string) string {
		return javadocName(c, owner) + "(" + strings.Join(javadocParams(c), ", ") + ")"
	})
}

func (a Android) Base(d dri.DRI, base string) string {
	if a.AndroidXURL != "" && (d.PackageName == "androidx" || strings.HasPrefix(d.PackageName, "androidx.")) {
		return a.AndroidXURL
	}
	return base
}

func locateJavadoc(st Strategy, d dri.DRI, s Site, anchor func(*dri.Callable, string) string) string {
	classes := d.ClassPath()
	owner := ""
	if len(classes) > 0 {
		owner = classes[len(classes)-1]
	}
	memberAnchor := func(c *dri.Callable) string { return anchor(c, owner) }

	// Enum entries are anchors on the enum's page.
	entry := ""
	if d.IsEnumEntry() && d.Callable == nil && len(classes) > 0 {
		entry = classes[len(classes)-1]
		classes = classes[:len(classes)-1]
		d = dri.Class(d.PackageName, strings.Join(classes, "."))
	}

	var page string
	loc, depth, ok := relocatedBase(st, d, s)
	switch {
	case ok && s.isPage(loc):
		page = verbatim(loc, depth, d, memberAnchor)
		if d.Callable != nil || entry == "" || strings.Contains(page, "#") {
			return page
		}
		return page + "#" + entry
	case ok && depth > 0:
		page = strings.TrimSuffix(loc, "/") + s.dotExt()
	default:
		var dir string
		if ok {
			dir = strings.TrimSuffix(loc, "/")
		} else {
			dir = javadocPackageDir(d.PackageName)
			if s.Module != "" {
				dir = joinPath(s.Module, dir)
			}
		}
		if len(classes) == 0 {
			page = joinPath(dir, "package-summary"+s.dotExt())
		} else {
			page = joinPath(dir, strings.Join(classes, ".")+s.dotExt())
		}
	}

	switch {
	case entry != "":
		return page + "#" + entry
	case d.Callable != nil:
		return page + "#" + memberAnchor(d.Callable)
	}
	return page
}

func javadocPackageDir(pkg string) string {
	return strings.ReplaceAll(pkg, ".", "/")
}

// javadocName renders constructors under the owning class name.
func javadocName(c *dri.Callable, owner string) string {
	if c.Name == "<init>" && owner != "" {
		return owner
	}
	return c.Name
}

// javadocParams erases parameter types to their raw names. Type parameters
// and projections erase to Object.
func javadocParams(c *dri.Callable) []string {
	out := make([]string, len(c.Params))
	for i, p := range c.Params {
		if p.Kind == dri.Constructor {
			out[i] = p.Erased()
		} else {
			out[i] = javaObject
		}
	}
	return out
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}
