// Package report defines the JSON documents written by a site build and
// returned by the resolve, inspect and describe commands.
package report

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/external"
	"github.com/jcdickinson/docloc/internal/packagelist"
)

// Locations is written to <module>/locations.json.
type Locations struct {
	Module      string         `json:"module"`
	RelativeDir string         `json:"relative_dir,omitempty"`
	Extension   string         `json:"extension"`
	Pages       []PageLocation `json:"pages"`
}

type PageLocation struct {
	Path string   `json:"path"`
	Name string   `json:"name"`
	Kind string   `json:"kind"`
	DRIs []string `json:"dris,omitempty"`
}

// Links is written to <module>/links.json.
type Links struct {
	Module     string `json:"module"`
	Resolved   int    `json:"resolved"`
	Unresolved int    `json:"unresolved"`
	Links      []Link `json:"links"`
}

// Source says which table resolved a link.
type Source string

const (
	SourceLocal    Source = "local"
	SourceModule   Source = "module"
	SourceExternal Source = "external"
)

type Link struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Kind   string `json:"kind"`
	Page   string `json:"page"`
	URL    string `json:"url,omitempty"`
	Source Source `json:"source,omitempty"`
}

// Tally counts resolved and unresolved links.
func (l *Links) Tally() {
	l.Resolved, l.Unresolved = 0, 0
	for _, link := range l.Links {
		if link.URL != "" {
			l.Resolved++
		} else {
			l.Unresolved++
		}
	}
}

// Resolve explains how one DRI was resolved against a set of package lists.
type Resolve struct {
	DRI      string    `json:"dri"`
	Resolved bool      `json:"resolved"`
	URL      string    `json:"url,omitempty"`
	Via      string    `json:"via,omitempty"`
	Attempts []Attempt `json:"attempts"`
}

type Attempt struct {
	Name string `json:"name"`
	external.Resolution
}

// ResolveWith consults resolvers in order and records every attempt up to the
// first hit.
func ResolveWith(d dri.DRI, resolvers []*external.Resolver, modules ...string) Resolve {
	out := Resolve{DRI: d.String(), Attempts: []Attempt{}}
	for _, r := range resolvers {
		res := r.Explain(d, modules...)
		out.Attempts = append(out.Attempts, Attempt{Name: r.Name(), Resolution: res})
		if res.Resolved {
			out.Resolved = true
			out.URL = res.URL
			out.Via = r.Name()
			break
		}
	}
	return out
}

// Inspection summarizes a package list.
type Inspection struct {
	Source        string            `json:"source,omitempty"`
	Format        string            `json:"format"`
	LinkExtension string            `json:"link_extension"`
	Usable        bool              `json:"usable"`
	Error         string            `json:"error,omitempty"`
	Strategy      string            `json:"strategy,omitempty"`
	Packages      int               `json:"packages"`
	Modules       []ModuleSummary   `json:"modules"`
	Relocations   map[string]string `json:"relocations,omitempty"`
	Properties    map[string]string `json:"properties,omitempty"`
}

type ModuleSummary struct {
	Name     string `json:"name"`
	Packages int    `json:"packages"`
}

// Inspect summarizes list. format applies when the list carries no marker.
func Inspect(source string, list *packagelist.PackageList, format string) Inspection {
	in := Inspection{
		Source:        source,
		Format:        list.Format,
		LinkExtension: list.Extension(),
		Packages:      len(list.Packages()),
		Modules:       []ModuleSummary{},
		Relocations:   list.Locations,
		Properties:    list.Properties,
	}
	if in.Format == "" {
		in.Format = format
	}
	if in.LinkExtension == "" {
		in.LinkExtension = packagelist.DefaultExtension(in.Format)
	}
	if st, ok := external.StrategyFor(in.Format); ok {
		in.Usable = true
		in.Strategy = st.Name()
	} else {
		in.Error = (&packagelist.UnrecognizedFormatError{Format: in.Format}).Error()
	}
	for _, m := range list.Modules {
		in.Modules = append(in.Modules, ModuleSummary{Name: m.Name, Packages: len(m.Packages)})
	}
	return in
}

// Description breaks a DRI into its parts.
type Description struct {
	DRI            string            `json:"dri"`
	Package        string            `json:"package"`
	Classes        []string          `json:"classes,omitempty"`
	Callable       string            `json:"callable,omitempty"`
	Receiver       string            `json:"receiver,omitempty"`
	Target         string            `json:"target"`
	Extra          map[string]string `json:"extra,omitempty"`
	QualifiedName  string            `json:"qualified_name"`
	Parent         string            `json:"parent,omitempty"`
	RelocationKeys map[string]string `json:"relocation_keys"`
}

// Describe parses s and breaks it into its parts.
func Describe(s string) (Description, error) {
	d, err := dri.Parse(s)
	if err != nil {
		return Description{}, err
	}
	desc := Description{
		DRI:           d.String(),
		Package:       d.PackageName,
		Classes:       d.ClassPath(),
		QualifiedName: d.FullyQualifiedName(),
		Target:        describeTarget(d.Target),
	}
	if d.Callable != nil {
		desc.Callable = d.Callable.Signature()
		if d.Callable.Receiver != nil {
			desc.Receiver = d.Callable.Receiver.String()
		}
	}
	if len(d.Extra) > 0 {
		desc.Extra = make(map[string]string, len(d.Extra))
		for _, e := range d.Extra {
			desc.Extra[e.Key] = e.Value
		}
	}
	if p, ok := d.Parent(); ok {
		desc.Parent = p.String()
	}
	desc.RelocationKeys = map[string]string{}
	for _, st := range []external.Strategy{external.Current{}, external.Legacy{}} {
		desc.RelocationKeys[st.Name()] = st.RelocationKey(d.PackageName, d.ClassPath())
	}
	return desc, nil
}

func describeTarget(t dri.Target) string {
	switch t.Kind {
	case dri.CallableParameter:
		return fmt.Sprintf("parameter %d", t.Index)
	case dri.GenericParameter:
		return fmt.Sprintf("type parameter %d", t.Index)
	default:
		return "declaration"
	}
}

// Write encodes v as indented JSON to path, creating parent directories.
func Write(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Text renders an inspection for a terminal.
func (in Inspection) Text() string {
	var b strings.Builder
	if in.Source != "" {
		fmt.Fprintf(&b, "source:      %s\n", in.Source)
	}
	fmt.Fprintf(&b, "format:      %s\n", in.Format)
	fmt.Fprintf(&b, "extension:   %s\n", in.LinkExtension)
	if in.Usable {
		fmt.Fprintf(&b, "strategy:    %s\n", in.Strategy)
	} else {
		fmt.Fprintf(&b, "unusable:    %s\n", in.Error)
	}
	fmt.Fprintf(&b, "packages:    %d\n", in.Packages)
	for _, m := range in.Modules {
		name := m.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "  module %s: %d packages\n", name, m.Packages)
	}
	if len(in.Relocations) > 0 {
		fmt.Fprintf(&b, "relocations: %d\n", len(in.Relocations))
		for _, k := range slices.Sorted(maps.Keys(in.Relocations)) {
			fmt.Fprintf(&b, "  %s -> %s\n", k, in.Relocations[k])
		}
	}
	return b.String()
}
