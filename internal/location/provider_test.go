package location

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/external"
	"github.com/jcdickinson/docloc/internal/packagelist"
	"github.com/jcdickinson/docloc/internal/pages"
)

func pkgPage(name string) *pages.Page {
	return pages.New(name, pages.Package, dri.Package(name))
}

func classPage(pkg, name string) *pages.Page {
	return pages.New(name, pages.Classlike, dri.Class(pkg, name))
}

func memberPage(owner dri.DRI, name string, params ...dri.TypeRef) *pages.Page {
	return pages.New(name, pages.Member, owner.WithCallable(name, params...))
}

func mustProvider(t *testing.T, root *pages.Page, opts Options) *Provider {
	t.Helper()
	p, err := NewProvider(root, opts)
	require.NoError(t, err)
	return p
}

func mustResolve(t *testing.T, p *Provider, page *pages.Page) string {
	t.Helper()
	loc, ok := p.Resolve(page)
	require.True(t, ok, "page %q not placed", page.Name)
	return loc
}

func TestDirectoryPromotion(t *testing.T) {
	pkg := pkgPage("Package")
	root := pages.New("Module", pages.Module).Add(pkg)
	p := mustProvider(t, root, Options{})
	assert.Equal(t, "-module/Package.html", mustResolve(t, p, pkg))

	pkg = pkgPage("Package")
	class := classPage("Package", "ClassA")
	root = pages.New("Module", pages.Module).Add(pkg.Add(class))
	p = mustProvider(t, root, Options{})
	assert.Equal(t, "-module/Package/index.html", mustResolve(t, p, pkg))
	assert.Equal(t, "-module/Package/-class-a/index.html", mustResolve(t, p, class))
	assert.Equal(t, "-module/index.html", mustResolve(t, p, root))
}

func TestEscapingInPaths(t *testing.T) {
	want := map[rune]string{
		'|': "[124]", '<': "[60]", '>': "[62]", '*': "[42]", ':': "[58]",
		'"': "[34]", '?': "[63]", '%': "[37]", '/': "[47]", '\\': "[92]",
	}
	pkg := pkgPage("p")
	root := pages.New("m", pages.Module).Add(pkg)
	byChar := make(map[rune]*pages.Page)
	for r := range want {
		c := classPage("p", "x"+string(r)+"y")
		byChar[r] = c
		pkg.Add(c)
	}
	p := mustProvider(t, root, Options{})
	for r, code := range want {
		loc := mustResolve(t, p, byChar[r])
		assert.Equal(t, "m/p/x"+code+"y/index.html", loc, "char %q", r)
	}
}

func TestOverloadSuffixes(t *testing.T) {
	owner := dri.Class("p", "C")
	fInt := memberPage(owner, "f", dri.Type("kotlin.Int"))
	fString := memberPage(owner, "f", dri.Type("kotlin.String"))
	fNone := memberPage(owner, "f")
	g := memberPage(owner, "g")
	class := classPage("p", "C").Add(fString, g, fInt, fNone)
	root := pages.New("m", pages.Module).Add(pkgPage("p").Add(class))

	p := mustProvider(t, root, Options{})
	assert.Equal(t, "m/p/-c/f.html", mustResolve(t, p, fNone))
	assert.Equal(t, "m/p/-c/f--1.html", mustResolve(t, p, fInt))
	assert.Equal(t, "m/p/-c/f--2.html", mustResolve(t, p, fString))
	assert.Equal(t, "m/p/-c/g.html", mustResolve(t, p, g))

	// Child order does not change the assignment.
	class2 := classPage("p", "C").Add(
		memberPage(owner, "f", dri.Type("kotlin.Int")),
		memberPage(owner, "g"),
		memberPage(owner, "f"),
		memberPage(owner, "f", dri.Type("kotlin.String")),
	)
	p2 := mustProvider(t, pages.New("m", pages.Module).Add(pkgPage("p").Add(class2)), Options{})
	assert.Equal(t, p.Locations(), p2.Locations())
}

func TestPackageAndClassWithSameName(t *testing.T) {
	pkg := pkgPage("p")
	class := classPage("", "p")
	root := pages.New("m", pages.Module).Add(pkg, class)
	p := mustProvider(t, root, Options{})
	assert.Equal(t, "m/p.html", mustResolve(t, p, pkg))
	assert.Equal(t, "m/p/index.html", mustResolve(t, p, class))

	pkg = pkgPage("p").Add(classPage("p", "Inner"))
	class = classPage("", "p")
	root = pages.New("m", pages.Module).Add(class, pkg)
	p = mustProvider(t, root, Options{})
	assert.Equal(t, "m/p/index.html", mustResolve(t, p, pkg), "packages rank before classes")
	assert.Equal(t, "m/p--1/index.html", mustResolve(t, p, class))

	rootPkg := pages.New("[root]", pages.Package, dri.Package("")).Add(classPage("", "p"))
	named := pkgPage("p").Add(classPage("p", "X"))
	p = mustProvider(t, pages.New("m", pages.Module).Add(rootPkg, named), Options{})
	assert.Equal(t, "m/[root]/p/index.html", mustResolve(t, p, rootPkg.Children[0]))
	assert.Equal(t, "m/p/index.html", mustResolve(t, p, named))
}

func TestNoCollisions(t *testing.T) {
	root := pages.New("m", pages.Module)
	for _, pkgName := range []string{"a", "b", "index", "A"} {
		pkg := pkgPage(pkgName)
		root.Add(pkg)
		for _, cls := range []string{"Foo", "foo", "FOO", "Index", "index", "Con"} {
			c := classPage(pkgName, cls)
			owner := dri.Class(pkgName, cls)
			c.Add(
				memberPage(owner, "run"),
				memberPage(owner, "run", dri.Type("kotlin.Int")),
				memberPage(owner, "Run"),
				memberPage(owner, "run--1"),
			)
			pkg.Add(c)
		}
	}

	p := mustProvider(t, root, Options{})
	locs := p.Locations()
	seen := make(map[string]string)
	for key, loc := range locs {
		if prev, ok := seen[loc]; ok {
			t.Fatalf("%s and %s both resolve to %s", prev, key, loc)
		}
		seen[loc] = key
	}
	assert.Len(t, locs, 4+4*6*5)
}

func TestSuffixSkipsClaimedNames(t *testing.T) {
	owner := dri.Class("p", "C")
	plain := memberPage(owner, "foo")
	overload := memberPage(owner, "foo", dri.Type("kotlin.String"))
	named := memberPage(owner, "foo--1")
	root := pages.New("m", pages.Module).Add(pkgPage("p").Add(classPage("p", "C").Add(named, overload, plain)))

	p := mustProvider(t, root, Options{})
	assert.Equal(t, "m/p/-c/foo.html", mustResolve(t, p, plain))
	assert.Equal(t, "m/p/-c/foo--1.html", mustResolve(t, p, named))
	assert.Equal(t, "m/p/-c/foo--2.html", mustResolve(t, p, overload))
}

func TestNonNavigablePages(t *testing.T) {
	color := dri.Class("p", "Color")
	red := pages.New("RED", pages.Classlike, dri.Class("p", "Color.RED").AsEnumEntry())
	red.Navigable = false
	green := pages.New("GREEN", pages.Classlike, dri.Class("p", "Color.GREEN").AsEnumEntry())
	green.Navigable = false
	greenMember := memberPage(dri.Class("p", "Color.GREEN"), "shade")
	green.Add(greenMember)

	enum := pages.New("Color", pages.Classlike, color).Add(red, green)
	root := pages.New("m", pages.Module).Add(pkgPage("p").Add(enum))
	p := mustProvider(t, root, Options{})

	assert.Equal(t, "m/p/-color/index.html", mustResolve(t, p, enum))
	assert.Equal(t, "m/p/-color/index.html#RED", mustResolve(t, p, red))
	assert.Equal(t, "m/p/-color/index.html#GREEN", mustResolve(t, p, green))
	assert.Equal(t, "m/p/-color/shade.html", mustResolve(t, p, greenMember), "children of anchors are flattened into the navigable ancestor")

	loc, ok := p.ResolveFrom(greenMember, red)
	require.True(t, ok)
	assert.Equal(t, "index.html#RED", loc)
}

func TestRelativeLinks(t *testing.T) {
	run := memberPage(dri.Class("Package", "ClassA"), "run")
	classA := classPage("Package", "ClassA").Add(run)
	classB := classPage("Other", "ClassB")
	root := pages.New("Module", pages.Module).Add(
		pkgPage("Package").Add(classA),
		pkgPage("Other").Add(classB),
	)
	p := mustProvider(t, root, Options{})

	tests := []struct {
		from, to *pages.Page
		want     string
	}{
		{run, classB, "../../Other/-class-b/index.html"},
		{classA, run, "run.html"},
		{run, classA, "index.html"},
		{root, classB, "Other/-class-b/index.html"},
		{classB, root, "../../index.html"},
		{nil, classB, "-module/Other/-class-b/index.html"},
	}
	for _, tt := range tests {
		loc, ok := p.ResolveFrom(tt.from, tt.to)
		require.True(t, ok)
		assert.Equal(t, tt.want, loc)
	}

	_, ok := p.ResolveFrom(run, pkgPage("stray"))
	assert.False(t, ok)

	assert.Equal(t, "../../../", p.PathToRoot(run))
	assert.Equal(t, "../", p.PathToRoot(root))

	lone := pages.New("solo", pages.Module)
	assert.Equal(t, "", mustProvider(t, lone, Options{}).PathToRoot(lone))
}

type fakeResolver map[string]string

func (f fakeResolver) Resolve(d dri.DRI, _ ...string) (string, bool) {
	loc, ok := f[d.Key()]
	return loc, ok
}

type countingHandler struct {
	unresolved *atomic.Int64
}

func (countingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h countingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h countingHandler) WithGroup(string) slog.Handler { return h }

func (h countingHandler) Handle(_ context.Context, r slog.Record) error {
	if r.Message == "unresolved link" {
		h.unresolved.Add(1)
	}
	return nil
}

func TestResolveDRI(t *testing.T) {
	run := memberPage(dri.Class("p", "C"), "run")
	root := pages.New("m", pages.Module).Add(pkgPage("p").Add(classPage("p", "C").Add(run)))
	base := mustProvider(t, root, Options{SiteRoot: "../"})

	local, ok := base.ResolveDRI(dri.Class("p", "C"), run)
	require.True(t, ok)
	assert.Equal(t, "index.html", local)

	ext := fakeResolver{
		dri.Class("q", "D").Key():        "other/-n/q/-d/index.html",
		dri.Class("kotlin", "Any").Key(): "https://kotlinlang.org/api/core/kotlin-stdlib/kotlin/-any/index.html",
	}
	p := base.WithExternal(ext)

	loc, ok := p.ResolveDRI(dri.Class("q", "D"), run)
	require.True(t, ok)
	assert.Equal(t, "../../../../other/-n/q/-d/index.html", loc)

	loc, ok = p.ResolveDRI(dri.Class("q", "D"), nil)
	require.True(t, ok)
	assert.Equal(t, "../other/-n/q/-d/index.html", loc)

	loc, ok = p.ResolveDRI(dri.Class("kotlin", "Any"), run)
	require.True(t, ok)
	assert.True(t, strings.HasPrefix(loc, "https://kotlinlang.org/"))

	_, ok = base.ResolveDRI(dri.Class("q", "D"), run)
	assert.False(t, ok, "WithExternal must not modify the receiver")

	var count atomic.Int64
	prev := slog.Default()
	slog.SetDefault(slog.New(countingHandler{unresolved: &count}))
	t.Cleanup(func() { slog.SetDefault(prev) })

	missing := dri.Class("nowhere", "X")
	for range 3 {
		_, ok = p.ResolveDRI(missing, run)
		assert.False(t, ok)
	}
	assert.EqualValues(t, 1, count.Load(), "each unresolved DRI is reported once")
}

func TestTreeErrors(t *testing.T) {
	shared := classPage("p", "Shared")
	root := pages.New("m", pages.Module).Add(pkgPage("p").Add(shared), pkgPage("q").Add(shared))
	_, err := NewProvider(root, Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidTree))

	root = pages.New("m", pages.Module).Add(pkgPage("p").Add(classPage("p", "C")), pages.New("dup", pages.Content, dri.Class("p", "C")))
	_, err = NewProvider(root, Options{})
	var tErr *TreeError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "dup", tErr.Page)

	_, err = NewProvider(nil, Options{})
	assert.ErrorIs(t, err, ErrInvalidTree)
}

func TestUnresolvableCollision(t *testing.T) {
	owner := dri.Class("p", "C")
	class := classPage("p", "C").Add(
		memberPage(owner, "foo"),
		memberPage(owner, "foo", dri.Type("kotlin.Int")),
		memberPage(owner, "foo--1"),
	)
	_, err := NewProvider(pages.New("m", pages.Module).Add(pkgPage("p").Add(class)), Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPathCollision))
	var cErr *PathCollisionError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "m/p/-c/foo--1.html", cErr.Path)
}

func TestExtensionAndPages(t *testing.T) {
	pkg := pkgPage("p").Add(classPage("p", "C"))
	p := mustProvider(t, pages.New("m", pages.Module).Add(pkg), Options{Extension: ".md"})
	assert.Equal(t, "md", p.Extension())
	assert.Equal(t, []string{"m/index.md", "m/p/-c/index.md", "m/p/index.md"}, p.Pages())

	page, ok := p.PageOf(dri.Class("p", "C"))
	require.True(t, ok)
	assert.Equal(t, "C", page.Name)
	assert.Same(t, pkg, p.Root().Children[0])
}

func TestPackageListRoundTrip(t *testing.T) {
	color := dri.Class("p", "Color")
	red := pages.New("RED", pages.Classlike, dri.Class("p", "Color.RED").AsEnumEntry())
	red.Navigable = false
	enum := pages.New("Color", pages.Classlike, color).Add(
		red,
		memberPage(color, "mix", dri.Type("p.Color")),
		memberPage(color, "mix"),
	)
	root := pages.New("Module", pages.Module).Add(
		pkgPage("Package"),
		pkgPage("p").Add(enum),
		pages.New("[root]", pages.Package, dri.Package("")).Add(classPage("", "Top")),
	)
	p := mustProvider(t, root, Options{})

	list := p.PackageList(packagelist.FormatHTML)
	require.NoError(t, list.Validate())
	require.Len(t, list.Modules, 1)
	assert.Equal(t, "Module", list.Modules[0].Name)
	assert.ElementsMatch(t, []string{"", "Package", "p"}, list.Modules[0].Packages)

	assert.Equal(t, map[string]string{
		dri.Package("Package").Key():                         "-module/Package.html",
		dri.Class("p", "Color.RED").AsEnumEntry().Key():      "-module/p/-color/index.html#RED",
		color.WithCallable("mix", dri.Type("p.Color")).Key(): "-module/p/-color/mix--1.html",
	}, list.Locations)

	// Every local DRI resolves to the same place through the manifest.
	r := external.NewResolver("", packagelist.ParseString(list.String()), external.Options{})
	require.NoError(t, r.Err())
	for key, want := range p.Locations() {
		got, ok := r.Resolve(dri.MustParse(key))
		require.True(t, ok, key)
		if !strings.Contains(want, "#") {
			got = stripFragment(got)
		}
		assert.Equal(t, want, got, key)
	}
}
