// Package location assigns every page of a documentation tree its output path
// and resolves links between pages and to declarations.
//
// Paths are computed once, in a single top-down pass, when the Provider is
// created. Every query afterwards is a read of that table, so a Provider can be
// shared by any number of goroutines.
package location

import (
	"cmp"
	"log/slog"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/external"
	"github.com/jcdickinson/docloc/internal/naming"
	"github.com/jcdickinson/docloc/internal/packagelist"
	"github.com/jcdickinson/docloc/internal/pages"
)

// DefaultExtension is used when Options.Extension is empty.
const DefaultExtension = "html"

// Resolver resolves declarations that are not part of the page tree.
// *external.Resolver and *external.Registry implement it.
type Resolver interface {
	Resolve(d dri.DRI, modules ...string) (string, bool)
}

// Options configures a Provider.
type Options struct {
	// Extension of page files, without the dot.
	Extension string
	// External is consulted for DRIs outside the tree.
	External Resolver
	// SiteRoot is the path from this tree's root directory to the directory
	// relative external locations are based on, e.g. "../" for a module
	// written one level below the site root.
	SiteRoot string
}

type entry struct {
	file string
	link string
}

type owned struct {
	page *pages.Page
	dri  dri.DRI
}

// table is the immutable result of path assignment.
type table struct {
	root      *pages.Page
	ext       string
	entries   map[*pages.Page]entry
	byDRI     map[string]owned
	effective map[*pages.Page][]*pages.Page
}

// Provider answers location queries for one page tree.
type Provider struct {
	t        *table
	external Resolver
	siteRoot string
	warned   *sync.Map
}

// NewProvider validates the tree and assigns every page its path. It returns
// a *TreeError if root is not a tree and a *PathCollisionError if two pages
// end up with the same location.
func NewProvider(root *pages.Page, opts Options) (*Provider, error) {
	if root == nil {
		return nil, &TreeError{Reason: "no root page"}
	}
	ext := strings.TrimPrefix(opts.Extension, ".")
	if ext == "" {
		ext = DefaultExtension
	}

	t := &table{
		root:      root,
		ext:       ext,
		entries:   make(map[*pages.Page]entry),
		byDRI:     make(map[string]owned),
		effective: make(map[*pages.Page][]*pages.Page),
	}
	if err := t.index(root); err != nil {
		return nil, err
	}
	t.place(root, "", segment(root))
	if err := t.checkCollisions(); err != nil {
		return nil, err
	}

	return &Provider{
		t:        t,
		external: opts.External,
		siteRoot: opts.SiteRoot,
		warned:   &sync.Map{},
	}, nil
}

// index checks the tree shape and records DRI ownership.
func (t *table) index(root *pages.Page) error {
	seen := make(map[*pages.Page]bool)
	var walk func(p *pages.Page) error
	walk = func(p *pages.Page) error {
		if seen[p] {
			return &TreeError{Page: p.Name, Reason: "reachable more than once"}
		}
		seen[p] = true
		for _, d := range p.DRIs {
			key := d.Key()
			if prev, ok := t.byDRI[key]; ok && prev.page != p {
				return &TreeError{Page: p.Name, Reason: "DRI " + key + " already documented by " + strconv.Quote(prev.page.Name)}
			}
			t.byDRI[key] = owned{page: p, dri: d}
		}
		for _, c := range p.Children {
			if c == nil {
				return &TreeError{Page: p.Name, Reason: "nil child"}
			}
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	return walk(root)
}

// effectiveChildren are the navigable children of p plus, recursively, those
// of its non-navigable children.
func (t *table) effectiveChildren(p *pages.Page) []*pages.Page {
	if kids, ok := t.effective[p]; ok {
		return kids
	}
	var kids []*pages.Page
	for _, c := range p.Children {
		if c.Navigable {
			kids = append(kids, c)
			continue
		}
		kids = append(kids, t.effectiveChildren(c)...)
	}
	t.effective[p] = kids
	return kids
}

// isDir reports whether p is written as <seg>/index.<ext>. Classlike pages
// always are, so adding members later does not move them.
func (t *table) isDir(p *pages.Page) bool {
	return p.Kind == pages.Classlike || len(t.effectiveChildren(p)) > 0
}

func (t *table) place(p *pages.Page, dir, seg string) {
	var file, childDir string
	if t.isDir(p) {
		childDir = joinPath(dir, seg)
		file = joinPath(childDir, "index"+t.dotExt())
	} else {
		file = joinPath(dir, seg+t.dotExt())
	}
	t.entries[p] = entry{file: file, link: file}
	t.anchor(p, file)

	kids := t.effectiveChildren(p)
	for i, s := range t.segments(kids) {
		t.place(kids[i], childDir, s)
	}
}

// anchor places the non-navigable descendants reachable from p without
// crossing a navigable page as anchors on p's file.
func (t *table) anchor(p *pages.Page, file string) {
	for _, c := range p.Children {
		if c.Navigable {
			continue
		}
		t.entries[c] = entry{file: file, link: file + "#" + naming.Anchor(c.Name)}
		t.anchor(c, file)
	}
}

func (t *table) dotExt() string {
	return "." + t.ext
}

type claim struct {
	seg string
	dir bool
}

// segments assigns sibling path segments. Siblings claiming the same name on
// disk are ordered by kind rank, parameter list, smallest DRI key and display
// name; the first keeps the bare segment and the others get "--i" appended,
// with i the smallest positive number no sibling has claimed yet.
func (t *table) segments(kids []*pages.Page) []string {
	out := make([]string, len(kids))
	groups := make(map[claim][]int)
	var order []claim
	for i, k := range kids {
		c := claim{seg: segment(k), dir: t.isDir(k)}
		out[i] = c.seg
		if _, ok := groups[c]; !ok {
			order = append(order, c)
		}
		groups[c] = append(groups[c], i)
	}
	taken := make(map[claim]bool, len(groups))
	for c := range groups {
		taken[c] = true
	}
	for _, c := range order {
		idx := groups[c]
		if len(idx) < 2 {
			continue
		}
		slices.SortStableFunc(idx, func(a, b int) int {
			return compareClaimants(kids[a], kids[b])
		})
		n := 1
		for _, i := range idx[1:] {
			next := claim{seg: c.seg + "--" + strconv.Itoa(n), dir: c.dir}
			for taken[next] {
				n++
				next.seg = c.seg + "--" + strconv.Itoa(n)
			}
			taken[next] = true
			out[i] = next.seg
			n++
		}
	}
	return out
}

func compareClaimants(a, b *pages.Page) int {
	if c := cmp.Compare(a.Kind.Rank(), b.Kind.Rank()); c != 0 {
		return c
	}
	if c := strings.Compare(paramList(a), paramList(b)); c != 0 {
		return c
	}
	if c := strings.Compare(minKey(a), minKey(b)); c != 0 {
		return c
	}
	return strings.Compare(a.Name, b.Name)
}

// paramList is the parameter list of the page's first callable DRI by key.
func paramList(p *pages.Page) string {
	var best *dri.DRI
	for i := range p.DRIs {
		d := &p.DRIs[i]
		if d.Callable == nil {
			continue
		}
		if best == nil || d.Key() < best.Key() {
			best = d
		}
	}
	if best == nil {
		return ""
	}
	return best.Callable.ParamList()
}

func minKey(p *pages.Page) string {
	keys := make([]string, len(p.DRIs))
	for i, d := range p.DRIs {
		keys[i] = d.Key()
	}
	if len(keys) == 0 {
		return ""
	}
	return slices.Min(keys)
}

func segment(p *pages.Page) string {
	if p.Kind == pages.Package {
		if p.Name == naming.RootPackage {
			return naming.RootPackage
		}
		return naming.PackageSegment(p.Name)
	}
	return naming.IdentifierToFilename(p.Name)
}

func (t *table) checkCollisions() error {
	claimed := make(map[string]*pages.Page, len(t.entries))
	for _, p := range t.sortedPages() {
		link := t.entries[p].link
		if prev, ok := claimed[link]; ok {
			return &PathCollisionError{Path: link, Pages: []string{prev.Name, p.Name}}
		}
		claimed[link] = p
	}
	return nil
}

// sortedPages lists placed pages in tree order.
func (t *table) sortedPages() []*pages.Page {
	var out []*pages.Page
	t.root.Walk(func(p *pages.Page) {
		if _, ok := t.entries[p]; ok {
			out = append(out, p)
		}
	})
	return out
}

// Root returns the root page.
func (p *Provider) Root() *pages.Page { return p.t.root }

// Extension returns the page file extension.
func (p *Provider) Extension() string { return p.t.ext }

// Resolve returns the location of page relative to the documentation root.
// Non-navigable pages resolve to an anchor on their nearest navigable
// ancestor.
func (p *Provider) Resolve(page *pages.Page) (string, bool) {
	e, ok := p.t.entries[page]
	return e.link, ok
}

// ResolveFrom returns the location of to relative to the file of from. A nil
// from resolves relative to the documentation root.
func (p *Provider) ResolveFrom(from, to *pages.Page) (string, bool) {
	te, ok := p.t.entries[to]
	if !ok {
		return "", false
	}
	if from == nil {
		return te.link, true
	}
	fe, ok := p.t.entries[from]
	if !ok {
		return "", false
	}
	return relative(fe.file, te.link), true
}

// PathToRoot returns the path from the directory of page's file back to the
// documentation root: "" for a top-level file, "../" per directory level.
func (p *Provider) PathToRoot(page *pages.Page) string {
	e, ok := p.t.entries[page]
	if !ok {
		return ""
	}
	return strings.Repeat("../", strings.Count(e.file, "/"))
}

// PageOf returns the page documenting d.
func (p *Provider) PageOf(d dri.DRI) (*pages.Page, bool) {
	o, ok := p.t.byDRI[d.Key()]
	return o.page, ok
}

// ResolveDRI resolves d as seen from page from (nil for the documentation
// root). DRIs in the tree resolve locally; the rest go to the external
// resolver. Locations it returns without a scheme are relative to the site
// root and are rebased onto from. Unresolved DRIs are logged once each.
func (p *Provider) ResolveDRI(d dri.DRI, from *pages.Page, modules ...string) (string, bool) {
	key := d.Key()
	if o, ok := p.t.byDRI[key]; ok {
		return p.ResolveFrom(from, o.page)
	}
	if p.external != nil {
		if loc, ok := p.external.Resolve(d, modules...); ok {
			if isAbsolute(loc) {
				return loc, true
			}
			prefix := ""
			if from != nil {
				prefix = p.PathToRoot(from)
			}
			return prefix + p.siteRoot + loc, true
		}
	}
	if _, seen := p.warned.LoadOrStore(key, struct{}{}); !seen {
		slog.Warn("unresolved link", "module", p.t.root.Name, "dri", key)
	}
	return "", false
}

// WithExternal returns a provider over the same path table that consults ext
// for DRIs outside the tree.
func (p *Provider) WithExternal(ext Resolver) *Provider {
	out := *p
	out.external = ext
	return &out
}

// Pages returns every page file, sorted.
func (p *Provider) Pages() []string {
	files := make(map[string]struct{}, len(p.t.entries))
	for _, e := range p.t.entries {
		files[e.file] = struct{}{}
	}
	return slices.Sorted(maps.Keys(files))
}

// Locations maps every DRI in the tree to its location.
func (p *Provider) Locations() map[string]string {
	out := make(map[string]string, len(p.t.byDRI))
	for key, o := range p.t.byDRI {
		out[key] = p.t.entries[o.page].link
	}
	return out
}

// PackageList writes the manifest of this tree: one section named after the
// root page listing every package, plus a relocation for each DRI whose
// location differs from what format's strategy would synthesize.
func (p *Provider) PackageList(format string) *packagelist.PackageList {
	l := packagelist.New(format, p.t.ext)
	module := p.t.root.Name

	st, ok := external.StrategyFor(format)
	if !ok {
		st = external.Current{}
	}
	site := external.Site{Module: module, Ext: p.t.ext}

	for _, key := range slices.Sorted(maps.Keys(p.t.byDRI)) {
		o := p.t.byDRI[key]
		l.AddPackage(module, o.dri.PackageName)

		local := p.t.entries[o.page].link
		synthesized := st.Locate(o.dri, site)
		if synthesized == local || (!strings.Contains(local, "#") && stripFragment(synthesized) == local) {
			continue
		}
		l.SetLocation(key, local)
	}
	return l
}

func stripFragment(s string) string {
	if i := strings.IndexByte(s, '#'); i >= 0 {
		return s[:i]
	}
	return s
}

func isAbsolute(loc string) bool {
	if strings.HasPrefix(loc, "/") {
		return true
	}
	u, err := url.Parse(loc)
	return err == nil && u.Scheme != ""
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return dir + "/" + name
}

// relative returns the path from the directory of fromFile to to. Both are
// relative to the same root.
func relative(fromFile, to string) string {
	fromDirs := strings.Split(fromFile, "/")
	fromDirs = fromDirs[:len(fromDirs)-1]
	toParts := strings.Split(to, "/")
	toDirs := toParts[:len(toParts)-1]

	i := 0
	for i < len(fromDirs) && i < len(toDirs) && fromDirs[i] == toDirs[i] {
		i++
	}
	return strings.Repeat("../", len(fromDirs)-i) + strings.Join(toParts[i:], "/")
}
