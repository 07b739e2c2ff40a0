// Package fetch loads the package lists of external documentation sites.
package fetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/jcdickinson/docloc/internal/cache"
	"github.com/jcdickinson/docloc/internal/external"
	"github.com/jcdickinson/docloc/internal/packagelist"
)

// ErrNotFound is returned when no manifest exists at any candidate location.
var ErrNotFound = errors.New("package list not found")

// ErrOffline is returned when a remote manifest is needed but only the cache
// may be consulted and it has nothing.
var ErrOffline = errors.New("not cached and offline")

const userAgent = "docloc/0.1.0"

// Link is an external documentation site.
type Link struct {
	Name string
	// URL is the site's base URL. Resolved locations are joined to it.
	URL string
	// PackageList overrides where the manifest is loaded from.
	PackageList string
	// Format applies to lists without a format marker.
	Format      string
	AndroidXURL string
}

// Base returns the URL locations are joined to.
func (l Link) Base() string {
	if l.URL != "" {
		return strings.TrimSuffix(l.URL, "/")
	}
	if i := strings.LastIndex(l.PackageList, "/"); i >= 0 {
		return l.PackageList[:i]
	}
	return ""
}

// ManifestLink treats location as a manifest when it names a package-list or
// element-list file and as a site base URL otherwise.
func ManifestLink(location string) Link {
	switch path.Base(filepath.ToSlash(location)) {
	case "package-list", "element-list":
		return Link{Name: location, PackageList: location}
	}
	return Link{Name: location, URL: location}
}

func (l Link) candidates() []string {
	if l.PackageList != "" {
		return []string{l.PackageList}
	}
	base := l.Base()
	return []string{base + "/package-list", base + "/element-list"}
}

type Options struct {
	// Store caches remote manifests. Nil disables caching.
	Store *cache.Store
	// Offline serves remote manifests from Store only.
	Offline bool
	Timeout time.Duration
	Client  *http.Client
}

// Fetcher loads manifests. Concurrent fetches of the same location share one
// request.
type Fetcher struct {
	client  *http.Client
	store   *cache.Store
	offline bool
	group   singleflight.Group
}

func New(opts Options) *Fetcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{client: client, store: opts.Store, offline: opts.Offline}
}

// Fetch loads and parses the manifest of link, trying package-list before
// element-list. Offline, a candidate missing from the cache is skipped the
// same way as one the site does not publish.
func (f *Fetcher) Fetch(ctx context.Context, link Link) (*packagelist.PackageList, error) {
	var errs []error
	for _, loc := range link.candidates() {
		data, err := f.load(ctx, loc)
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrOffline) {
			errs = append(errs, err)
			continue
		}
		if err != nil {
			return nil, err
		}
		list, err := packagelist.Parse(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", loc, err)
		}
		slog.Debug("loaded package list", "link", link.Name, "location", loc, "packages", len(list.Packages()))
		return list, nil
	}
	return nil, errors.Join(errs...)
}

// Resolver fetches link's manifest and wraps it in a resolver.
func (f *Fetcher) Resolver(ctx context.Context, link Link) (*external.Resolver, error) {
	list, err := f.Fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	return external.NewResolver(link.Base(), list, external.Options{
		Name:        link.Name,
		Format:      link.Format,
		AndroidXURL: link.AndroidXURL,
	}), nil
}

// Registry fetches every link in parallel. Links whose manifest cannot be
// loaded are logged and left out; the rest keep their configured order.
func (f *Fetcher) Registry(ctx context.Context, links []Link) *external.Registry {
	resolvers := make([]*external.Resolver, len(links))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, link := range links {
		g.Go(func() error {
			r, err := f.Resolver(ctx, link)
			if err != nil {
				slog.Warn("skipping external documentation link", "link", link.Name, "error", err)
				return nil
			}
			resolvers[i] = r
			return nil
		})
	}
	g.Wait()
	return external.NewRegistry(resolvers...)
}

func (f *Fetcher) load(ctx context.Context, loc string) ([]byte, error) {
	u, err := url.Parse(loc)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// Plain path, possibly with a Windows drive letter.
		return readFile(loc)
	}
	switch u.Scheme {
	case "file":
		return readFile(u.Path)
	case "http", "https":
		// The shared request outlives any one waiter; each waiter stops
		// waiting when its own context ends.
		shared := context.WithoutCancel(ctx)
		ch := f.group.DoChan(loc, func() (interface{}, error) {
			return f.remote(shared, loc)
		})
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				return nil, res.Err
			}
			return res.Val.([]byte), nil
		}
	default:
		return nil, fmt.Errorf("unsupported scheme %q in %s", u.Scheme, loc)
	}
}

func (f *Fetcher) remote(ctx context.Context, loc string) ([]byte, error) {
	if f.offline {
		if f.store == nil {
			return nil, fmt.Errorf("%s: %w", loc, ErrOffline)
		}
		data, err := f.store.Get(loc)
		if errors.Is(err, cache.ErrMiss) {
			return nil, fmt.Errorf("%s: %w", loc, ErrOffline)
		}
		return data, err
	}

	data, err := f.get(ctx, loc)
	if err == nil {
		if f.store != nil {
			if err := f.store.Put(loc, data); err != nil {
				slog.Warn("failed to cache package list", "location", loc, "error", err)
			}
		}
		return data, nil
	}
	if errors.Is(err, ErrNotFound) || f.store == nil {
		return nil, err
	}

	// Network trouble: fall back to a stale copy.
	if cached, cerr := f.store.Get(loc); cerr == nil {
		slog.Warn("using cached package list", "location", loc, "error", err)
		return cached, nil
	}
	return nil, err
}

func (f *Fetcher) get(ctx context.Context, loc string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", loc, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, fmt.Errorf("%s: %w", loc, ErrNotFound)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%s returned %d: %s", loc, resp.StatusCode, string(body))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", loc, err)
	}
	return data, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
