// Package site runs a documentation build: it lays out every configured
// module, merges their package lists and resolves every cross-reference
// against the local tables, the other modules and the external sites.
package site

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jcdickinson/docloc/internal/analysis"
	"github.com/jcdickinson/docloc/internal/cache"
	"github.com/jcdickinson/docloc/internal/config"
	"github.com/jcdickinson/docloc/internal/docgraph"
	"github.com/jcdickinson/docloc/internal/external"
	"github.com/jcdickinson/docloc/internal/fetch"
	"github.com/jcdickinson/docloc/internal/location"
	"github.com/jcdickinson/docloc/internal/multimodule"
	"github.com/jcdickinson/docloc/internal/packagelist"
	"github.com/jcdickinson/docloc/internal/pages"
	"github.com/jcdickinson/docloc/internal/report"
)

// ModulesName labels the resolver over the merged package list.
const ModulesName = "modules"

// Module is one laid-out module.
type Module struct {
	Name        string
	RelativeDir string
	Graph       *docgraph.Graph
	Provider    *location.Provider
	List        *packagelist.PackageList
}

// Summary reports what a build produced.
type Summary struct {
	Output  string          `json:"output"`
	Modules []ModuleSummary `json:"modules"`
}

type ModuleSummary struct {
	Name       string `json:"name"`
	Pages      int    `json:"pages"`
	Resolved   int    `json:"resolved"`
	Unresolved int    `json:"unresolved"`
}

// NewFetcher returns a fetcher configured from cfg.
func NewFetcher(cfg *config.Config) *fetch.Fetcher {
	return fetch.New(fetch.Options{
		Store:   cache.New(cfg.PackageListCacheDir()),
		Offline: cfg.Cache.Offline,
		Timeout: time.Duration(cfg.Fetch.TimeoutSeconds) * time.Second,
	})
}

// Links converts the configured external links.
func Links(cfg *config.Config) []fetch.Link {
	links := make([]fetch.Link, 0, len(cfg.ExternalLinks))
	for _, l := range cfg.ExternalLinks {
		links = append(links, fetch.Link{
			Name:        l.Name,
			URL:         l.URL,
			PackageList: l.PackageList,
			Format:      l.Format,
			AndroidXURL: l.AndroidXURL,
		})
	}
	return links
}

// Build lays out and links every module of cfg and writes the results under
// cfg.Output.Dir.
func Build(ctx context.Context, cfg *config.Config, fetcher *fetch.Fetcher) (*Summary, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if len(cfg.Modules) == 0 {
		return nil, errors.New("no modules configured")
	}
	out := cfg.Output.Dir

	externals := fetcher.Registry(ctx, Links(cfg))

	// Phase 1: lay out each module and collect its package list.
	modules := make([]*Module, len(cfg.Modules))
	acc := multimodule.NewAccumulator()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, mc := range cfg.Modules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			m, err := Layout(mc, cfg.Output)
			if err != nil {
				return fmt.Errorf("module %s: %w", mc.Name, err)
			}
			modules[i] = m
			return acc.Add(multimodule.Fragment{
				Module:      m.Name,
				RelativeDir: m.RelativeDir,
				List:        m.List,
				Locations:   m.Provider.Locations(),
				Navigation:  Navigation(m.Provider),
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Phase 2: merge.
	merged, err := acc.Finish()
	if err != nil {
		return nil, err
	}
	modulesResolver := external.NewResolver("", merged.List, external.Options{Name: ModulesName})
	registry := external.NewRegistry(append([]*external.Resolver{modulesResolver}, externals.Resolvers()...)...)

	// Phase 3: resolve and write each module.
	summary := &Summary{Output: out, Modules: make([]ModuleSummary, len(modules))}
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, m := range modules {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			links := Link(m, registry, modulesResolver)
			dir := filepath.Join(out, filepath.FromSlash(cleanDir(m.RelativeDir)))
			if err := writeModule(dir, m, links); err != nil {
				return fmt.Errorf("module %s: %w", m.Name, err)
			}
			summary.Modules[i] = ModuleSummary{
				Name:       m.Name,
				Pages:      len(m.Provider.Pages()),
				Resolved:   links.Resolved,
				Unresolved: links.Unresolved,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := WriteList(filepath.Join(out, "package-list"), merged.List); err != nil {
		return nil, err
	}
	if err := report.Write(filepath.Join(out, "navigation.json"), merged.Navigation); err != nil {
		return nil, err
	}
	registry.Report()
	return summary, nil
}

// Layout loads one module's analysis dump and assigns its pages their paths.
func Layout(mc config.ModuleConfig, oc config.OutputConfig) (*Module, error) {
	dump, err := analysis.Load(mc.Source)
	if err != nil {
		return nil, err
	}
	if dump.Module != mc.Name {
		slog.Debug("analysis dump names a different module", "configured", mc.Name, "dump", dump.Module)
	}

	b := docgraph.NewBuilder(mc.Name)
	b.AddAll(dump)
	graph := b.Build()

	provider, err := location.NewProvider(pages.Build(graph, mc.Name), location.Options{
		Extension: oc.LinkExtension,
		SiteRoot:  SiteRoot(mc.RelativeDir),
	})
	if err != nil {
		return nil, err
	}
	slog.Debug("laid out module", "module", mc.Name, "declarations", graph.Len(), "dropped", b.Dropped())

	return &Module{
		Name:        mc.Name,
		RelativeDir: mc.RelativeDir,
		Graph:       graph,
		Provider:    provider,
		List:        provider.PackageList(oc.Format),
	}, nil
}

// SiteRoot returns the path from a module directory back to the site root.
func SiteRoot(relativeDir string) string {
	dir := cleanDir(relativeDir)
	if dir == "" {
		return ""
	}
	return strings.Repeat("../", strings.Count(dir, "/")+1)
}

func cleanDir(dir string) string {
	dir = strings.Trim(filepath.ToSlash(dir), "/")
	if dir == "." {
		return ""
	}
	return dir
}

// Link resolves every reference of m's graph from the page of its source
// declaration. modules is the resolver over the merged package list; it is
// used only to label links into other modules.
func Link(m *Module, registry *external.Registry, modules *external.Resolver) *report.Links {
	p := m.Provider.WithExternal(registry)
	links := &report.Links{Module: m.Name, Links: []report.Link{}}
	for _, e := range m.Graph.Edges() {
		from, ok := p.PageOf(e.From)
		if !ok {
			continue
		}
		page, _ := p.Resolve(from)
		link := report.Link{
			From: e.From.String(),
			To:   e.To.String(),
			Kind: e.Kind.String(),
			Page: page,
		}
		if url, ok := p.ResolveDRI(e.To, from); ok {
			link.URL = url
			switch _, local := p.PageOf(e.To); {
			case local:
				link.Source = report.SourceLocal
			case resolves(modules, e):
				link.Source = report.SourceModule
			default:
				link.Source = report.SourceExternal
			}
		}
		links.Links = append(links.Links, link)
	}
	links.Tally()
	return links
}

func resolves(r *external.Resolver, e docgraph.Edge) bool {
	_, ok := r.Resolve(e.To)
	return ok
}

// Navigation returns the navigation tree of a module: its packages and their
// classlikes, with paths relative to the module directory.
func Navigation(p *location.Provider) multimodule.NavNode {
	return navNode(p, p.Root())
}

func navNode(p *location.Provider, page *pages.Page) multimodule.NavNode {
	n := multimodule.NavNode{Name: page.Name}
	n.Path, _ = p.Resolve(page)
	for _, c := range page.Children {
		if !c.Navigable || c.Kind == pages.Member {
			continue
		}
		n.Children = append(n.Children, navNode(p, c))
	}
	return n
}

// Locations lists every page of a module with its path.
func Locations(m *Module) *report.Locations {
	loc := &report.Locations{
		Module:      m.Name,
		RelativeDir: cleanDir(m.RelativeDir),
		Extension:   m.Provider.Extension(),
		Pages:       []report.PageLocation{},
	}
	m.Provider.Root().Walk(func(page *pages.Page) {
		path, ok := m.Provider.Resolve(page)
		if !ok {
			return
		}
		pl := report.PageLocation{Path: path, Name: page.Name, Kind: page.Kind.String()}
		for _, d := range page.DRIs {
			pl.DRIs = append(pl.DRIs, d.String())
		}
		loc.Pages = append(loc.Pages, pl)
	})
	return loc
}

func writeModule(dir string, m *Module, links *report.Links) error {
	if err := WriteList(filepath.Join(dir, "package-list"), m.List); err != nil {
		return err
	}
	if err := report.Write(filepath.Join(dir, "locations.json"), Locations(m)); err != nil {
		return err
	}
	return report.Write(filepath.Join(dir, "links.json"), links)
}

// WriteList writes a package list to path, creating parent directories.
func WriteList(path string, list *packagelist.PackageList) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if _, err := list.WriteTo(f); err != nil {
		f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// Resolvers returns the resolvers a built site links against: the merged
// package list under cfg.Output.Dir, if present, followed by the external
// sites.
func Resolvers(ctx context.Context, cfg *config.Config, fetcher *fetch.Fetcher) ([]*external.Resolver, error) {
	var resolvers []*external.Resolver
	f, err := os.Open(filepath.Join(cfg.Output.Dir, "package-list"))
	switch {
	case err == nil:
		list, perr := packagelist.Parse(f)
		f.Close()
		if perr != nil {
			return nil, perr
		}
		resolvers = append(resolvers, external.NewResolver("", list, external.Options{Name: ModulesName}))
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("opening site package list: %w", err)
	}
	return append(resolvers, fetcher.Registry(ctx, Links(cfg)).Resolvers()...), nil
}
