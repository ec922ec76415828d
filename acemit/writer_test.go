package acemit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GrainArc/sceneryforge/scene"
)

func TestVertexPoolDedupExactMatchesReuseIndex(t *testing.T) {
	o := newPolyObject("obj", "")

	i1 := o.vertexIndex(scene.Vec3{X: 1, Y: 2, Z: 3})
	i2 := o.vertexIndex(scene.Vec3{X: 1, Y: 2, Z: 3})
	require.Equal(t, i1, i2)
	require.Len(t, o.verts, 1)
}

func TestVertexPoolDedupRespectsQuantizationBoundary(t *testing.T) {
	o := newPolyObject("obj", "")

	// Within 1/10000m resolution: same bucket.
	i1 := o.vertexIndex(scene.Vec3{X: 1.00001, Y: 0, Z: 0})
	i2 := o.vertexIndex(scene.Vec3{X: 1.00002, Y: 0, Z: 0})
	require.Equal(t, i1, i2)

	// Beyond it: distinct bucket.
	i3 := o.vertexIndex(scene.Vec3{X: 1.001, Y: 0, Z: 0})
	require.NotEqual(t, i1, i3)
	require.Len(t, o.verts, 2)
}

func TestVertexIndexFlipsXForAC3DConvention(t *testing.T) {
	o := newPolyObject("obj", "")
	idx := o.vertexIndex(scene.Vec3{X: 5, Y: 1, Z: 2})
	require.Equal(t, -5.0, o.verts[idx].X)
	require.Equal(t, 1.0, o.verts[idx].Y)
	require.Equal(t, 2.0, o.verts[idx].Z)
}

func TestMaterialPaletteDefaultWhiteIsIndexZero(t *testing.T) {
	p := newPalette()
	require.Equal(t, defaultWhite(), p.byIdx[0])
}

func TestMaterialPaletteDeduplicatesIdenticalMaterials(t *testing.T) {
	p := newPalette()
	m := mapMaterial(scene.MaterialRef{BaseColorFactor: [4]float64{1, 0, 0, 1}, MetallicFactor: 0.5, RoughnessFactor: 0.5})

	i1 := p.add(m)
	i2 := p.add(m)
	require.Equal(t, i1, i2)

	distinct := mapMaterial(scene.MaterialRef{BaseColorFactor: [4]float64{0, 1, 0, 1}, MetallicFactor: 0.5, RoughnessFactor: 0.5})
	i3 := p.add(distinct)
	require.NotEqual(t, i1, i3)
}
