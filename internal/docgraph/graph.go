// Package docgraph builds the immutable declaration graph of one module.
//
// Building happens in two phases. Add collects declarations and assigns each
// its key; Build then resolves every cross-reference (supertypes, inherited
// members, origins, documentation links) into typed edges. The resulting
// Graph holds no back-pointers and is never mutated.
package docgraph

import (
	"errors"
	"log/slog"
	"slices"
	"strings"

	"github.com/jcdickinson/docloc/internal/analysis"
	"github.com/jcdickinson/docloc/internal/dri"
)

// EdgeKind classifies a cross-reference.
type EdgeKind int

const (
	Supertype EdgeKind = iota
	Inheritance
	Origin
	Reference
)

func (k EdgeKind) String() string {
	switch k {
	case Supertype:
		return "supertype"
	case Inheritance:
		return "inheritance"
	case Origin:
		return "origin"
	case Reference:
		return "reference"
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (k EdgeKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Edge is a reference from one declaration to another.
type Edge struct {
	From     dri.DRI
	To       dri.DRI
	Kind     EdgeKind
	external bool
}

// External reports whether the target is not declared in this module.
func (e Edge) External() bool { return e.external }

// Node is one declaration.
type Node struct {
	DRI  dri.DRI
	Name string
	Kind analysis.Kind
	// Synthetic marks package nodes created for packages that were only
	// implied by their contents.
	Synthetic bool

	key      string
	parent   string
	children []*Node
}

// Key returns the serialized DRI.
func (n *Node) Key() string { return n.key }

// Children returns the directly nested declarations ordered by name, then key.
func (n *Node) Children() []*Node { return n.children }

// Graph is the declaration graph of one module.
type Graph struct {
	module   string
	nodes    map[string]*Node
	packages []*Node
	edges    []Edge
	from     map[string][]int
}

// Module returns the module name.
func (g *Graph) Module() string { return g.module }

// Node looks up a declaration.
func (g *Graph) Node(d dri.DRI) (*Node, bool) {
	n, ok := g.nodes[d.Key()]
	return n, ok
}

// Packages returns the package nodes sorted by name.
func (g *Graph) Packages() []*Node { return g.packages }

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// Parent returns the enclosing node of n, or nil for packages.
func (g *Graph) Parent(n *Node) *Node {
	if n.parent == "" {
		return nil
	}
	return g.nodes[n.parent]
}

// Edges returns every edge, ordered by source key, kind, then target key.
func (g *Graph) Edges() []Edge { return g.edges }

// EdgesFrom returns the edges leaving d.
func (g *Graph) EdgesFrom(d dri.DRI) []Edge {
	idx := g.from[d.Key()]
	out := make([]Edge, len(idx))
	for i, j := range idx {
		out[i] = g.edges[j]
	}
	return out
}

// Walk visits every node depth first, packages in order.
func (g *Graph) Walk(fn func(*Node)) {
	var walk func(*Node)
	walk = func(n *Node) {
		fn(n)
		for _, c := range n.children {
			walk(c)
		}
	}
	for _, p := range g.packages {
		walk(p)
	}
}

type pending struct {
	node *Node
	decl analysis.Declaration
}

// Builder collects declarations for Build.
type Builder struct {
	module  string
	byKey   map[string]*pending
	order   []string
	dropped int
}

// NewBuilder starts a graph for module.
func NewBuilder(module string) *Builder {
	return &Builder{module: module, byKey: make(map[string]*pending)}
}

// Add records a declaration. A declaration whose DRI does not parse is
// rejected with a *dri.MalformedIdentifierError; a repeated DRI is ignored.
func (b *Builder) Add(decl analysis.Declaration) error {
	d, err := dri.Parse(decl.DRI)
	if err != nil {
		b.dropped++
		return err
	}
	key := d.Key()
	if _, ok := b.byKey[key]; ok {
		slog.Debug("duplicate declaration ignored", "module", b.module, "dri", key)
		return nil
	}
	kind := decl.Kind
	if kind == "" {
		kind = inferKind(d)
	}
	b.byKey[key] = &pending{
		node: &Node{DRI: d, Name: decl.Name, Kind: kind, key: key},
		decl: decl,
	}
	b.order = append(b.order, key)
	return nil
}

// AddAll adds every declaration of a dump, logging and dropping malformed
// ones.
func (b *Builder) AddAll(m *analysis.Module) {
	for _, decl := range m.Flatten() {
		if err := b.Add(decl); err != nil {
			var mErr *dri.MalformedIdentifierError
			if errors.As(err, &mErr) {
				slog.Warn("dropping declaration with malformed DRI", "module", b.module, "dri", mErr.Input, "reason", mErr.Reason)
				continue
			}
			slog.Warn("dropping declaration", "module", b.module, "error", err)
		}
	}
}

// Dropped returns how many declarations Add rejected.
func (b *Builder) Dropped() int { return b.dropped }

// Build resolves parents and references. The builder must not be used
// afterwards.
func (b *Builder) Build() *Graph {
	g := &Graph{
		module: b.module,
		nodes:  make(map[string]*Node, len(b.byKey)),
		from:   make(map[string][]int),
	}
	for key, p := range b.byKey {
		if p.node.Name == "" {
			p.node.Name = defaultName(p.node.DRI)
		}
		g.nodes[key] = p.node
	}

	// Parents: the nearest declared ancestor, or the (possibly synthetic)
	// package.
	for _, key := range b.order {
		n := g.nodes[key]
		if n.Kind == analysis.KindPackage || n.DRI.IsPackage() {
			continue
		}
		parent := g.ancestor(n.DRI)
		n.parent = parent.key
		parent.children = append(parent.children, n)
	}
	for _, n := range g.nodes {
		if n.parent == "" {
			g.packages = append(g.packages, n)
		}
		slices.SortFunc(n.children, compareNodes)
	}
	slices.SortFunc(g.packages, compareNodes)

	for _, key := range b.order {
		p := b.byKey[key]
		g.link(p.node, p.decl.Supertypes, Supertype)
		g.link(p.node, p.decl.Inherits, Inheritance)
		if p.decl.Origin != "" {
			g.link(p.node, []string{p.decl.Origin}, Origin)
		}
		g.link(p.node, p.decl.Links, Reference)
	}
	slices.SortStableFunc(g.edges, func(a, b Edge) int {
		if c := strings.Compare(a.From.Key(), b.From.Key()); c != 0 {
			return c
		}
		if a.Kind != b.Kind {
			return int(a.Kind) - int(b.Kind)
		}
		return strings.Compare(a.To.Key(), b.To.Key())
	})
	for i, e := range g.edges {
		k := e.From.Key()
		g.from[k] = append(g.from[k], i)
	}
	return g
}

func (g *Graph) ancestor(d dri.DRI) *Node {
	for {
		parent, ok := d.Parent()
		if !ok {
			break
		}
		if n, ok := g.nodes[parent.Key()]; ok {
			return n
		}
		d = parent
	}
	pkg := dri.Package(d.PackageName)
	n, ok := g.nodes[pkg.Key()]
	if !ok {
		n = &Node{DRI: pkg, Name: defaultName(pkg), Kind: analysis.KindPackage, Synthetic: true, key: pkg.Key()}
		g.nodes[n.key] = n
	}
	return n
}

func (g *Graph) link(from *Node, targets []string, kind EdgeKind) {
	for _, raw := range targets {
		to, err := dri.Parse(raw)
		if err != nil {
			slog.Warn("dropping reference with malformed DRI", "module", g.module, "from", from.key, "kind", kind.String(), "error", err)
			continue
		}
		_, local := g.nodes[to.Key()]
		g.edges = append(g.edges, Edge{From: from.DRI, To: to, Kind: kind, external: !local})
	}
}

func compareNodes(a, b *Node) int {
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.key, b.key)
}

func inferKind(d dri.DRI) analysis.Kind {
	switch {
	case d.Callable != nil:
		return analysis.KindFunction
	case d.IsEnumEntry():
		return analysis.KindEnumEntry
	case d.ClassNames != "":
		return analysis.KindClass
	}
	return analysis.KindPackage
}

func defaultName(d dri.DRI) string {
	switch {
	case d.Callable != nil:
		return d.Callable.Name
	case d.ClassNames != "":
		classes := d.ClassPath()
		return classes[len(classes)-1]
	}
	return d.PackageName
}
