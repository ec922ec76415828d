package gltfimport

import (
	"fmt"

	"github.com/GrainArc/sceneryforge/internal/logging"
	"github.com/GrainArc/sceneryforge/scene"
)

// TextureResolver resolves a glTF image URI to an on-disk texture
// file path, by case-insensitive recursive search against an asset
// root with ties broken by longest common prefix against the source
// BGL path (spec §4.8). A miss returns ("", false), which the caller
// treats as TextureResolutionMiss (spec §7): omit the binding.
type TextureResolver interface {
	Resolve(uri string) (path string, ok bool)
}

// extractMaterials maps each glTF material to scene.MaterialRef,
// clamping baseColorFactor to [0,1] and resolving texture paths.
// Resolution misses are reported to onWarning as TextureResolutionMiss
// (spec §7) rather than failing the material.
func extractMaterials(doc *Document, resolver TextureResolver, onWarning func(error)) []scene.MaterialRef {
	out := make([]scene.MaterialRef, len(doc.Materials))
	for i, m := range doc.Materials {
		ref := scene.DefaultMaterial()
		if pbr := m.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				for c := 0; c < 4; c++ {
					ref.BaseColorFactor[c] = clamp01(pbr.BaseColorFactor[c])
				}
			}
			if pbr.MetallicFactor != nil {
				ref.MetallicFactor = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				ref.RoughnessFactor = *pbr.RoughnessFactor
			}
			if pbr.BaseColorTexture != nil {
				ref.BaseColorTexture = resolveTexture(doc, resolver, pbr.BaseColorTexture.Index, "baseColorTexture", onWarning)
			}
			if pbr.MetallicRoughnessTexture != nil {
				ref.MetallicRoughnessTexture = resolveTexture(doc, resolver, pbr.MetallicRoughnessTexture.Index, "metallicRoughnessTexture", onWarning)
			}
		}
		if m.EmissiveFactor != nil {
			ref.EmissiveFactor = *m.EmissiveFactor
		}
		if m.NormalTexture != nil {
			ref.NormalTexture = resolveTexture(doc, resolver, m.NormalTexture.Index, "normalTexture", onWarning)
		}
		if m.OcclusionTexture != nil {
			ref.OcclusionTexture = resolveTexture(doc, resolver, m.OcclusionTexture.Index, "occlusionTexture", onWarning)
		}
		if m.EmissiveTexture != nil {
			ref.EmissiveTexture = resolveTexture(doc, resolver, m.EmissiveTexture.Index, "emissiveTexture", onWarning)
		}
		ref.DoubleSided = m.DoubleSided
		out[i] = ref
	}
	return out
}

func resolveTexture(doc *Document, resolver TextureResolver, textureIndex int, slot string, onWarning func(error)) string {
	if textureIndex < 0 || textureIndex >= len(doc.Textures) {
		return ""
	}
	src := doc.Textures[textureIndex].Source
	if src == nil || *src < 0 || *src >= len(doc.Images) {
		return ""
	}
	uri := doc.Images[*src].URI
	if uri == "" || resolver == nil {
		return ""
	}
	if path, ok := resolver.Resolve(uri); ok {
		return path
	}
	if onWarning != nil {
		onWarning(logging.NewDiagnosticError(logging.KindTextureResolutionMiss, "", textureIndex, slot,
			fmt.Errorf("gltfimport: could not resolve texture uri %q", uri)))
	}
	return ""
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
