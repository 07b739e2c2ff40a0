package pages

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcdickinson/docloc/internal/analysis"
	"github.com/jcdickinson/docloc/internal/docgraph"
	"github.com/jcdickinson/docloc/internal/naming"
)

func TestBuild(t *testing.T) {
	b := docgraph.NewBuilder("core")
	b.AddAll(&analysis.Module{Module: "core", Declarations: []analysis.Declaration{
		{DRI: "/~/~/decl/", Kind: analysis.KindPackage},
		{DRI: "/Top/~/decl/", Name: "Top", Kind: analysis.KindObject},
		{DRI: "p/~/~/decl/", Name: "p", Kind: analysis.KindPackage},
		{DRI: "p/Color/~/decl/", Name: "Color", Kind: analysis.KindEnum},
		{DRI: "p/Color.RED/~/decl/EnumEntry=true", Name: "RED", Kind: analysis.KindEnumEntry},
		{DRI: "p/Color/next()/decl/", Name: "next", Kind: analysis.KindFunction},
	}})
	root := Build(b.Build(), "core")

	assert.Equal(t, "core", root.Name)
	assert.Equal(t, Module, root.Kind)
	require.Len(t, root.Children, 2)

	rootPkg := root.Children[0]
	assert.Equal(t, naming.RootPackage, rootPkg.Name)
	assert.Equal(t, Package, rootPkg.Kind)
	require.Len(t, rootPkg.Children, 1)
	assert.Equal(t, Classlike, rootPkg.Children[0].Kind)

	color := root.Children[1].Children[0]
	assert.Equal(t, "Color", color.Name)
	require.Len(t, color.Children, 2)
	assert.Equal(t, "RED", color.Children[0].Name)
	assert.False(t, color.Children[0].Navigable)
	assert.Equal(t, "next", color.Children[1].Name)
	assert.Equal(t, Member, color.Children[1].Kind)
	assert.True(t, color.Children[1].Navigable)

	count := 0
	root.Walk(func(*Page) { count++ })
	assert.Equal(t, 7, count)
}

func TestKindRank(t *testing.T) {
	order := []Kind{Package, Classlike, Member, Content, Module}
	for i := 1; i < len(order); i++ {
		assert.Less(t, order[i-1].Rank(), order[i].Rank(), "%s before %s", order[i-1], order[i])
	}
}
