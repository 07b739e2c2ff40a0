// Package multimodule merges the package lists of the modules of one build
// into the global package list every module resolves cross-module links
// against.
package multimodule

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strings"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/external"
	"github.com/jcdickinson/docloc/internal/naming"
	"github.com/jcdickinson/docloc/internal/packagelist"
)

// ErrNoInput is returned when there is nothing to merge.
var ErrNoInput = errors.New("no package lists to merge")

// ErrFormatMismatch is returned (wrapped) when modules disagree on format.
var ErrFormatMismatch = errors.New("package list format mismatch")

// ErrModuleCollision is returned (wrapped) when two inputs share a name.
var ErrModuleCollision = errors.New("module name collision")

// FormatMismatchError lists the modules declaring each value of the
// disagreeing header.
type FormatMismatchError struct {
	// Header is "format" or "linkExtension".
	Header string
	Values map[string][]string
}

func (e *FormatMismatchError) Error() string {
	parts := make([]string, 0, len(e.Values))
	for _, v := range slices.Sorted(maps.Keys(e.Values)) {
		parts = append(parts, fmt.Sprintf("%q (%s)", v, strings.Join(e.Values[v], ", ")))
	}
	return fmt.Sprintf("modules disagree on $dokka.%s: %s", e.Header, strings.Join(parts, " vs "))
}

func (e *FormatMismatchError) Unwrap() error {
	return ErrFormatMismatch
}

// ModuleCollisionError names a module contributed twice.
type ModuleCollisionError struct {
	Name string
}

func (e *ModuleCollisionError) Error() string {
	return fmt.Sprintf("module %q contributed more than once", e.Name)
}

func (e *ModuleCollisionError) Unwrap() error {
	return ErrModuleCollision
}

// Input is one module's package list and the directory, relative to the
// site root, its documentation was written to.
type Input struct {
	Name        string
	RelativeDir string
	List        *packagelist.PackageList
	// Locations optionally maps DRI keys to their locations in the same
	// space as List's relocations. It is needed to place the declarations
	// of a package more than one input declares.
	Locations map[string]string
}

// Merge combines per-module package lists. All inputs must agree on format
// and link extension; nothing is produced otherwise. Each input becomes one
// module section, and its locations are rebased onto its relative directory.
// Merging a single list with no relative directory returns a copy of it.
//
// A package declared by several inputs is relocated to the first of them;
// every declaration of it found in an input's Locations gets an exact
// relocation into the input that documents it.
func Merge(inputs []Input) (*packagelist.PackageList, error) {
	if len(inputs) == 0 {
		return nil, ErrNoInput
	}
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if seen[in.Name] {
			return nil, &ModuleCollisionError{Name: in.Name}
		}
		seen[in.Name] = true
	}
	if err := checkHeader(inputs, "format", func(l *packagelist.PackageList) string { return l.Format }); err != nil {
		return nil, err
	}
	if err := checkHeader(inputs, "linkExtension", func(l *packagelist.PackageList) string { return l.Extension() }); err != nil {
		return nil, err
	}

	if len(inputs) == 1 && cleanDir(inputs[0].RelativeDir) == "" {
		return inputs[0].List.Clone(), nil
	}

	sorted := slices.Clone(inputs)
	slices.SortFunc(sorted, func(a, b Input) int { return strings.Compare(a.Name, b.Name) })

	first := sorted[0].List
	out := packagelist.New(first.Format, first.LinkExtension)
	owner := make(map[string]string)
	split := splitPackages(sorted)

	for _, in := range sorted {
		rel := cleanDir(in.RelativeDir)
		for k, v := range in.List.Properties {
			if _, ok := out.Properties[k]; !ok {
				out.Properties[k] = v
			}
		}

		for _, key := range slices.Sorted(maps.Keys(in.List.Locations)) {
			addLocation(out, owner, in.Name, key, rebase(rel, in.List.Locations[key]))
		}

		for _, m := range in.List.Modules {
			for _, pkg := range m.Packages {
				out.AddPackage(in.Name, pkg)

				// Default-convention links into this module must land in its
				// subtree, under the section name its paths were written with.
				if rel == "" && m.Name == in.Name {
					continue
				}
				key := external.Current{}.RelocationKey(pkg, nil)
				if _, ok := in.List.Location(key); ok {
					continue
				}
				if first, ok := split[pkg]; ok && first != in.Name {
					continue
				}
				dir := naming.PackageSegment(pkg)
				if m.Name != "" {
					dir = naming.IdentifierToFilename(m.Name) + "/" + dir
				}
				addLocation(out, owner, in.Name, key, rebase(rel, dir))
			}
		}
	}

	for _, in := range sorted {
		rel := cleanDir(in.RelativeDir)
		for _, key := range slices.Sorted(maps.Keys(in.Locations)) {
			d, err := dri.Parse(key)
			if err != nil || d.IsPackage() {
				continue
			}
			if _, ok := split[d.PackageName]; !ok {
				continue
			}
			addLocation(out, owner, in.Name, key, rebase(rel, in.Locations[key]))
		}
	}
	return out, nil
}

// splitPackages maps each package declared by more than one input to the
// first input declaring it.
func splitPackages(inputs []Input) map[string]string {
	declared := make(map[string]string)
	split := make(map[string]string)
	for _, in := range inputs {
		for _, m := range in.List.Modules {
			for _, pkg := range m.Packages {
				prev, ok := declared[pkg]
				if !ok {
					declared[pkg] = in.Name
					continue
				}
				if prev != in.Name {
					split[pkg] = prev
				}
			}
		}
	}
	for _, pkg := range slices.Sorted(maps.Keys(split)) {
		slog.Debug("package declared by several modules", "package", pkg, "relocated_to", split[pkg])
	}
	return split
}

func addLocation(out *packagelist.PackageList, owner map[string]string, module, key, loc string) {
	if prev, ok := owner[key]; ok {
		if prev != module || out.Locations[key] != loc {
			slog.Warn("duplicate relocation ignored", "key", key, "kept_module", prev, "module", module)
		}
		return
	}
	owner[key] = module
	out.SetLocation(key, loc)
}

func checkHeader(inputs []Input, header string, get func(*packagelist.PackageList) string) error {
	values := make(map[string][]string)
	for _, in := range inputs {
		v := get(in.List)
		values[v] = append(values[v], in.Name)
	}
	if len(values) < 2 {
		return nil
	}
	for _, names := range values {
		slices.Sort(names)
	}
	return &FormatMismatchError{Header: header, Values: values}
}

func cleanDir(dir string) string {
	dir = strings.Trim(strings.ReplaceAll(dir, "\\", "/"), "/")
	if dir == "." {
		return ""
	}
	return dir
}

// rebase prefixes a site-relative location with dir. Absolute URLs are kept.
func rebase(dir, loc string) string {
	if dir == "" || strings.HasPrefix(loc, "/") {
		return loc
	}
	if u, err := url.Parse(loc); err == nil && u.Scheme != "" {
		return loc
	}
	return dir + "/" + loc
}
