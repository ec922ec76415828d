package gltfemit

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GrainArc/sceneryforge/scene"
)

func materialRefWithoutTexture() scene.MaterialRef {
	return scene.MaterialRef{BaseColorFactor: [4]float64{1, 1, 1, 1}}
}

func materialRefWithTexture(path string) scene.MaterialRef {
	return scene.MaterialRef{BaseColorFactor: [4]float64{1, 1, 1, 1}, BaseColorTexture: path}
}

func TestTextureForDeduplicatesImagesBySourcePath(t *testing.T) {
	doc := &document{}
	images := map[string]int{}
	outDir := t.TempDir()

	i1 := textureFor(doc, images, "/assets/ground.dds", outDir)
	i2 := textureFor(doc, images, "/assets/ground.dds", outDir)
	i3 := textureFor(doc, images, "/assets/roof.dds", outDir)

	require.Len(t, doc.Images, 2, "two distinct source paths should yield two images")
	require.Len(t, doc.Textures, 3, "every reference gets its own textures[] entry")
	require.Equal(t, doc.Textures[i1].Source, doc.Textures[i2].Source, "repeated path reuses the same image index")
	require.NotEqual(t, doc.Textures[i1].Source, doc.Textures[i3].Source)
}

func TestEmitMaterialSetsBaseColorTextureOnlyWhenPresent(t *testing.T) {
	doc := &document{}
	images := map[string]int{}
	outDir := t.TempDir()

	idxNoTexture := emitMaterial(doc, images, materialRefWithoutTexture(), outDir)
	require.Nil(t, doc.Materials[idxNoTexture].PBRMetallicRoughness.BaseColorTexture)

	idxWithTexture := emitMaterial(doc, images, materialRefWithTexture("/assets/skin.dds"), outDir)
	require.NotNil(t, doc.Materials[idxWithTexture].PBRMetallicRoughness.BaseColorTexture)
}

func TestEmitMaterialAttachesNormalOcclusionAndEmissiveTextures(t *testing.T) {
	doc := &document{}
	images := map[string]int{}
	outDir := t.TempDir()

	mat := scene.MaterialRef{
		BaseColorFactor:  [4]float64{1, 1, 1, 1},
		NormalTexture:    "/assets/normal.dds",
		OcclusionTexture: "/assets/occlusion.dds",
		EmissiveTexture:  "/assets/emissive.dds",
	}
	idx := emitMaterial(doc, images, mat, outDir)
	m := doc.Materials[idx]

	require.NotNil(t, m.NormalTexture)
	require.NotNil(t, m.OcclusionTexture)
	require.NotNil(t, m.EmissiveTexture)
	require.Len(t, doc.Images, 3, "each distinct texture source path gets its own image entry")
}
