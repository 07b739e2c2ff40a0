package external

import (
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/packagelist"
)

// Options configures a Resolver.
type Options struct {
	// Name labels the resolver in logs and reports. Defaults to the base URL.
	Name string
	// Format applies when the package list carries no format marker, as
	// plain Javadoc package-list and element-list files do.
	Format string
	// AndroidXURL is the base URL of androidx packages for android-javadoc
	// lists.
	AndroidXURL string
}

// Resolution explains the outcome of one lookup.
type Resolution struct {
	URL       string `json:"url,omitempty"`
	Resolved  bool   `json:"resolved"`
	Module    string `json:"module,omitempty"`
	Strategy  string `json:"strategy,omitempty"`
	Relocated bool   `json:"relocated,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Resolver resolves DRIs against one package list. It is immutable after
// construction and safe for concurrent use.
type Resolver struct {
	name     string
	baseURL  string
	list     *packagelist.PackageList
	format   string
	strategy Strategy
	packages map[string]bool
	err      error

	failed atomic.Int64
}

// NewResolver wraps a parsed package list published at baseURL. An empty
// baseURL yields locations relative to the documentation root. A list with an
// unusable format still yields a Resolver; every lookup against it fails and
// Err reports why.
func NewResolver(baseURL string, list *packagelist.PackageList, opts Options) *Resolver {
	r := &Resolver{
		name:     opts.Name,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		list:     list.Clone(),
		format:   list.Format,
		packages: make(map[string]bool),
	}
	for _, pkg := range r.list.Packages() {
		r.packages[pkg] = true
	}
	if r.name == "" {
		r.name = baseURL
	}
	if r.format == "" {
		r.format = opts.Format
	}
	if !packagelist.Recognized(r.format) {
		r.err = &packagelist.UnrecognizedFormatError{Format: r.format}
		return r
	}
	r.list.Format = r.format

	r.strategy, _ = StrategyFor(r.format)
	if a, ok := r.strategy.(Android); ok {
		a.AndroidXURL = strings.TrimSuffix(opts.AndroidXURL, "/")
		r.strategy = a
	}
	return r
}

// Name returns the resolver's label.
func (r *Resolver) Name() string { return r.name }

// BaseURL returns the URL locations are joined to.
func (r *Resolver) BaseURL() string { return r.baseURL }

// List returns the wrapped package list. Callers must not modify it.
func (r *Resolver) List() *packagelist.PackageList { return r.list }

// Err returns the reason the package list is unusable, if it is.
func (r *Resolver) Err() error { return r.err }

// Failed returns the number of lookups rejected because the list is unusable.
func (r *Resolver) Failed() int64 { return r.failed.Load() }

// Resolve returns the URL of d, or false when this package list does not
// document it. When modules is non-empty only those named sections are
// searched.
func (r *Resolver) Resolve(d dri.DRI, modules ...string) (string, bool) {
	res := r.Explain(d, modules...)
	return res.URL, res.Resolved
}

// Explain is Resolve with the reasoning attached.
func (r *Resolver) Explain(d dri.DRI, modules ...string) Resolution {
	if r.err != nil {
		r.failed.Add(1)
		return Resolution{Reason: r.err.Error()}
	}

	module, listed := r.list.ModuleFor(d.PackageName, modules)
	site := Site{Module: module, Ext: r.list.Extension(), Relocations: r.list.Locations, Packages: r.packages}
	res := Resolution{Module: module, Strategy: r.strategy.Name()}

	exact, hasExact := r.list.Location(d.Key())
	_, _, relocated := relocatedBase(r.strategy, d, site)
	if !listed {
		// A relocation also places d in this list, unless its package is
		// listed under a module the caller excluded.
		if r.list.HasPackage(d.PackageName) {
			res.Reason = "package " + displayPackage(d.PackageName) + " is not listed in modules " + strings.Join(modules, ", ")
			return res
		}
		if !hasExact && !relocated {
			res.Reason = "package " + displayPackage(d.PackageName) + " is not listed"
			return res
		}
	}

	if hasExact {
		res.Relocated = true
		return r.finish(res, d, exact)
	}
	res.Relocated = relocated
	return r.finish(res, d, r.strategy.Locate(d, site))
}

func (r *Resolver) finish(res Resolution, d dri.DRI, loc string) Resolution {
	base := r.baseURL
	if br, ok := r.strategy.(baseRewriter); ok {
		base = br.Base(d, base)
	}
	res.Resolved = true
	res.URL = join(base, loc)
	return res
}

func join(base, loc string) string {
	loc = strings.TrimPrefix(loc, "/")
	if base == "" {
		return loc
	}
	return base + "/" + loc
}

func displayPackage(pkg string) string {
	if pkg == "" {
		return "[root]"
	}
	return pkg
}

// Registry consults resolvers in configuration order.
type Registry struct {
	resolvers []*Resolver
}

// NewRegistry returns a registry over resolvers. Nil entries are skipped.
func NewRegistry(resolvers ...*Resolver) *Registry {
	reg := &Registry{}
	for _, r := range resolvers {
		if r != nil {
			reg.resolvers = append(reg.resolvers, r)
		}
	}
	return reg
}

// Resolvers returns the registered resolvers in order.
func (g *Registry) Resolvers() []*Resolver { return g.resolvers }

// Resolve returns the first resolver's hit.
func (g *Registry) Resolve(d dri.DRI, modules ...string) (string, bool) {
	for _, r := range g.resolvers {
		if url, ok := r.Resolve(d, modules...); ok {
			return url, true
		}
	}
	return "", false
}

// Report logs one warning per unusable package list with the number of
// lookups it rejected.
func (g *Registry) Report() {
	for _, r := range g.resolvers {
		if r.err == nil {
			continue
		}
		slog.Warn("package list unusable, links into it were not resolved",
			"name", r.name, "error", r.err, "failed_lookups", r.Failed())
	}
}
