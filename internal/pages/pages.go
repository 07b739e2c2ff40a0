// Package pages models the documentation page tree addressed by the location
// provider.
package pages

import (
	"github.com/jcdickinson/docloc/internal/analysis"
	"github.com/jcdickinson/docloc/internal/docgraph"
	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/naming"
)

// Kind is the kind of documentation unit a page renders.
type Kind int

const (
	Module Kind = iota
	Package
	Classlike
	Member
	Content
)

func (k Kind) String() string {
	switch k {
	case Module:
		return "module"
	case Package:
		return "package"
	case Classlike:
		return "classlike"
	case Member:
		return "member"
	case Content:
		return "content"
	}
	return "unknown"
}

// Rank orders kinds when siblings claim the same path: packages first,
// modules last.
func (k Kind) Rank() int {
	switch k {
	case Package:
		return 0
	case Classlike:
		return 1
	case Member:
		return 2
	case Content:
		return 3
	}
	return 4
}

// Page is one node of the page tree. Name is the display name, not yet
// escaped. Pages are built once and never modified afterwards.
type Page struct {
	Name      string
	Kind      Kind
	DRIs      []dri.DRI
	Children  []*Page
	Navigable bool
}

// New returns a navigable page.
func New(name string, kind Kind, dris ...dri.DRI) *Page {
	return &Page{Name: name, Kind: kind, DRIs: dris, Navigable: true}
}

// Add appends children and returns p.
func (p *Page) Add(children ...*Page) *Page {
	p.Children = append(p.Children, children...)
	return p
}

// Walk visits p and its descendants depth first.
func (p *Page) Walk(fn func(*Page)) {
	fn(p)
	for _, c := range p.Children {
		c.Walk(fn)
	}
}

// Build turns a declaration graph into a page tree rooted at a module page.
// Enum entries become non-navigable children of their enum page.
func Build(g *docgraph.Graph, moduleName string) *Page {
	root := New(moduleName, Module)
	for _, pkg := range g.Packages() {
		root.Add(fromNode(pkg))
	}
	return root
}

func fromNode(n *docgraph.Node) *Page {
	p := New(n.Name, kindOf(n.Kind), n.DRI)
	switch {
	case n.Kind == analysis.KindPackage && n.DRI.PackageName == "":
		p.Name = naming.RootPackage
	case n.Kind == analysis.KindEnumEntry:
		p.Navigable = false
	}
	for _, c := range n.Children() {
		p.Add(fromNode(c))
	}
	return p
}

func kindOf(k analysis.Kind) Kind {
	switch {
	case k == analysis.KindPackage:
		return Package
	case k.IsMember():
		return Member
	case k.IsClasslike(), k == analysis.KindEnumEntry:
		return Classlike
	}
	return Content
}
