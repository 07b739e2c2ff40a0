package multimodule

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/docloc/internal/dri"
	"github.com/jcdickinson/docloc/internal/external"
	"github.com/jcdickinson/docloc/internal/location"
	"github.com/jcdickinson/docloc/internal/packagelist"
	"github.com/jcdickinson/docloc/internal/pages"
)

const coreList = `$dokka.format:html-v1
$dokka.linkExtension:html
Package/~/~/decl/###-core/Package.html
module:Core
Package
p
[root]
`

const extrasList = `$dokka.format:html-v1
$dokka.linkExtension:html
module:Extras
q
`

func parse(s string) *packagelist.PackageList {
	return packagelist.ParseString(s)
}

func TestMergeSingleIsIdentity(t *testing.T) {
	in := parse(coreList)
	out, err := Merge([]Input{{Name: "Core", List: in}})
	require.NoError(t, err)
	assert.Equal(t, in.String(), out.String())
	assert.NotSame(t, in, out)
}

func TestMergeRebasesOntoRelativeDir(t *testing.T) {
	out, err := Merge([]Input{{Name: "Core", RelativeDir: "core/", List: parse(coreList)}})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"Package/~/~/decl/": "core/-core/Package.html",
		"Package":           "core/-core/Package",
		"p":                 "core/-core/p",
		"[root]":            "core/-core/[root]",
	}, out.Locations)
	require.Len(t, out.Modules, 1)
	assert.Equal(t, "Core", out.Modules[0].Name)
	assert.ElementsMatch(t, []string{"Package", "p", ""}, out.Modules[0].Packages)

	r := external.NewResolver("", packagelist.ParseString(out.String()), external.Options{})
	url, ok := r.Resolve(dri.Class("p", "X"))
	require.True(t, ok)
	assert.Equal(t, "core/-core/p/-x/index.html", url)

	url, ok = r.Resolve(dri.Package("Package"))
	require.True(t, ok)
	assert.Equal(t, "core/-core/Package.html", url)

	url, ok = r.Resolve(dri.Class("", "Top"))
	require.True(t, ok)
	assert.Equal(t, "core/-core/[root]/-top/index.html", url)
}

func TestMergeTwoModules(t *testing.T) {
	inputs := []Input{
		{Name: "Extras", RelativeDir: "extras", List: parse(extrasList)},
		{Name: "Core", RelativeDir: "core", List: parse(coreList)},
	}
	out, err := Merge(inputs)
	require.NoError(t, err)
	require.Len(t, out.Modules, 2)
	assert.Equal(t, "Core", out.Modules[0].Name)
	assert.Equal(t, "Extras", out.Modules[1].Name)

	reversed, err := Merge([]Input{inputs[1], inputs[0]})
	require.NoError(t, err)
	assert.Equal(t, out.String(), reversed.String(), "merge output is independent of input order")

	r := external.NewResolver("", out, external.Options{})
	url, ok := r.Resolve(dri.Class("q", "Y"), "Extras")
	require.True(t, ok)
	assert.Equal(t, "extras/-extras/q/-y/index.html", url)
	_, ok = r.Resolve(dri.Class("q", "Y"), "Core")
	assert.False(t, ok)
}

func TestMergeUnnamedSection(t *testing.T) {
	out, err := Merge([]Input{
		{Name: "a", List: parse("$dokka.format:gfm-v1\npa\n")},
		{Name: "b", List: parse("$dokka.format:gfm-v1\npb\n")},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pa": "pa", "pb": "pb"}, out.Locations,
		"paths written without a module directory keep it out of the merged list")
	assert.Equal(t, "md", out.Extension())
}

func TestMergeFormatMismatch(t *testing.T) {
	_, err := Merge([]Input{
		{Name: "a", List: parse("$dokka.format:html-v1\np\n")},
		{Name: "b", List: parse("$dokka.format:gfm-v1\nq\n")},
		{Name: "c", List: parse("$dokka.format:html-v1\nr\n")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrFormatMismatch))

	var fErr *FormatMismatchError
	require.ErrorAs(t, err, &fErr)
	assert.Equal(t, "format", fErr.Header)
	assert.Equal(t, map[string][]string{"html-v1": {"a", "c"}, "gfm-v1": {"b"}}, fErr.Values)
	assert.Contains(t, err.Error(), `"gfm-v1" (b)`)

	out, err := Merge([]Input{
		{Name: "a", List: parse("$dokka.format:html-v1\n$dokka.linkExtension:html\np\n")},
		{Name: "b", List: parse("$dokka.format:html-v1\n$dokka.linkExtension:htm\nq\n")},
	})
	assert.Nil(t, out)
	require.ErrorAs(t, err, &fErr)
	assert.Equal(t, "linkExtension", fErr.Header)
}

func TestMergeErrors(t *testing.T) {
	_, err := Merge(nil)
	assert.ErrorIs(t, err, ErrNoInput)

	_, err = Merge([]Input{{Name: "a", List: parse(coreList)}, {Name: "a", List: parse(extrasList)}})
	var cErr *ModuleCollisionError
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, "a", cErr.Name)
	assert.ErrorIs(t, err, ErrModuleCollision)
}

func TestMergeDuplicateRelocationFirstWins(t *testing.T) {
	out, err := Merge([]Input{
		{Name: "b", RelativeDir: "b", List: parse("$dokka.format:html-v1\nx.Y###b.html\n")},
		{Name: "a", RelativeDir: "a", List: parse("$dokka.format:html-v1\nx.Y###a.html\n")},
	})
	require.NoError(t, err)
	assert.Equal(t, "a/a.html", out.Locations["x.Y"])
}

func TestMergeKeepsAbsoluteLocations(t *testing.T) {
	out, err := Merge([]Input{
		{Name: "a", RelativeDir: "a", List: parse("$dokka.format:html-v1\nx.Y###https://elsewhere.test/y.html\n")},
	})
	require.NoError(t, err)
	assert.Equal(t, "https://elsewhere.test/y.html", out.Locations["x.Y"])
}

// layout builds a module tree of packages holding classes, each class with a
// "run" member, and returns its merge input.
func layout(t *testing.T, module, rel string, classes map[string][]string) Input {
	t.Helper()
	root := pages.New(module, pages.Module)
	for _, pkg := range slices.Sorted(maps.Keys(classes)) {
		pp := pages.New(pkg, pages.Package, dri.Package(pkg))
		for _, name := range classes[pkg] {
			owner := dri.Class(pkg, name)
			pp.Add(pages.New(name, pages.Classlike, owner).Add(
				pages.New("run", pages.Member, owner.WithCallable("run")),
			))
		}
		root.Add(pp)
	}
	p, err := location.NewProvider(root, location.Options{})
	require.NoError(t, err)
	return Input{Name: module, RelativeDir: rel, List: p.PackageList(packagelist.FormatHTML), Locations: p.Locations()}
}

func TestMergeClassNamedLikePackage(t *testing.T) {
	in := layout(t, "m", "m", map[string][]string{"a": {"b"}, "a.b": {"C"}})
	out, err := Merge([]Input{in})
	require.NoError(t, err)

	r := external.NewResolver("", out, external.Options{})
	for _, tc := range []struct {
		d    dri.DRI
		want string
	}{
		{dri.Class("a", "b"), "m/m/a/b/index.html"},
		{dri.Class("a.b", "C"), "m/m/a.b/-c/index.html"},
		{dri.Package("a.b"), "m/m/a.b/index.html"},
	} {
		got, ok := r.Resolve(tc.d)
		require.True(t, ok, tc.d.String())
		assert.Equal(t, tc.want, got, tc.d.String())
		assert.Equal(t, "m/"+in.Locations[tc.d.Key()], got, "merged link matches the written page")
	}
}

func TestMergeSplitPackage(t *testing.T) {
	core := layout(t, "core", "core", map[string][]string{"com.x": {"A"}, "com.core": {"K"}})
	extras := layout(t, "extras", "extras", map[string][]string{"com.x": {"B"}})
	out, err := Merge([]Input{extras, core})
	require.NoError(t, err)
	assert.Equal(t, "core/core/com.x", out.Locations["com.x"])

	r := external.NewResolver("", out, external.Options{})
	for _, tc := range []struct {
		in Input
		d  dri.DRI
	}{
		{core, dri.Class("com.x", "A")},
		{core, dri.Class("com.x", "A").WithCallable("run")},
		{extras, dri.Class("com.x", "B")},
		{extras, dri.Class("com.x", "B").WithCallable("run")},
		{core, dri.Class("com.core", "K")},
	} {
		got, ok := r.Resolve(tc.d)
		require.True(t, ok, tc.d.String())
		assert.Equal(t, tc.in.RelativeDir+"/"+tc.in.Locations[tc.d.Key()], got, tc.d.String())
	}

	got, ok := r.Resolve(dri.Class("com.x", "B"), "extras")
	require.True(t, ok)
	assert.Equal(t, "extras/extras/com.x/-b/index.html", got)
}

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator()

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			name := fmt.Sprintf("m%d", 7-i)
			list := parse("$dokka.format:html-v1\nmodule:" + name + "\npkg" + name + "\n")
			assert.NoError(t, acc.Add(Fragment{
				Module:      name,
				RelativeDir: name,
				List:        list,
				Navigation: NavNode{Name: name, Path: name + "/index.html", Children: []NavNode{
					{Name: "pkg" + name, Path: name + "/pkg" + name + ".html"},
				}},
			}))
		}()
	}
	wg.Wait()
	assert.Equal(t, 8, acc.Len())

	err := acc.Add(Fragment{Module: "m3", List: parse(extrasList)})
	assert.ErrorIs(t, err, ErrModuleCollision)

	res, err := acc.Finish()
	require.NoError(t, err)
	require.Len(t, res.Navigation, 8)
	for i, nav := range res.Navigation {
		name := fmt.Sprintf("m%d", i)
		assert.Equal(t, name, nav.Name)
		assert.Equal(t, name+"/"+name+"/index.html", nav.Path)
		require.Len(t, nav.Children, 1)
		assert.Equal(t, name+"/"+name+"/pkg"+name+".html", nav.Children[0].Path)
		assert.Equal(t, name, res.List.Modules[i].Name)
	}

	again, err := acc.Finish()
	require.NoError(t, err)
	assert.Equal(t, res.List.String(), again.List.String())
}
