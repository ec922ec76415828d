package gltfemit

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/GrainArc/sceneryforge/scene"
)

// Write serializes ns as `<outDir>/<tileIndex>.gltf`, packing all
// instance geometry into a single sibling `.bin` buffer and copying
// any referenced texture files into outDir (spec §4.10).
func Write(ns *scene.NeutralScene, outDir string, tileIndex uint32) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("gltfemit: creating %s: %w", outDir, err)
	}

	doc := document{
		Asset: asset{Version: "2.0"},
		Scene: 0,
	}
	var bin bytes.Buffer
	var rootNodes []int

	images := map[string]int{} // resolved source path -> image index
	materialIndex := make([]int, len(ns.Meshes))

	for i, mb := range ns.Meshes {
		matIdx := emitMaterial(&doc, images, mb.Material, outDir)
		materialIndex[i] = matIdx
	}

	for i, mb := range ns.Meshes {
		world := ns.Transforms[i]
		positions := bakePositions(mb.Positions, world)

		posAccessor := appendVec3Accessor(&doc, &bin, positions, true)
		attrs := map[string]int{"POSITION": posAccessor}
		if len(mb.UVs) == len(mb.Positions) && len(mb.UVs) > 0 {
			attrs["TEXCOORD_0"] = appendVec2Accessor(&doc, &bin, mb.UVs)
		}
		idxAccessor := appendIndexAccessor(&doc, &bin, mb.Indices)

		matPtr := &materialIndex[i]
		doc.Meshes = append(doc.Meshes, mesh{Primitives: []primitive{{
			Attributes: attrs, Indices: idxAccessor, Material: matPtr, Mode: modeTriangles,
		}}})
		nodeIdx := len(doc.Nodes)
		doc.Nodes = append(doc.Nodes, node{Mesh: len(doc.Meshes) - 1})
		rootNodes = append(rootNodes, nodeIdx)
	}

	doc.Scenes = []sceneEntry{{Nodes: rootNodes}}
	if len(doc.Textures) > 0 {
		doc.ExtensionsUsed = []string{"MSFT_texture_dds"}
	}

	binName := fmt.Sprintf("%d.bin", tileIndex)
	doc.Buffers = []buffer{{URI: binName, ByteLength: bin.Len()}}

	if err := os.WriteFile(filepath.Join(outDir, binName), bin.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("gltfemit: writing %s: %w", binName, err)
	}

	gltfPath := filepath.Join(outDir, fmt.Sprintf("%d.gltf", tileIndex))
	f, err := os.Create(gltfPath)
	if err != nil {
		return "", fmt.Errorf("gltfemit: creating %s: %w", gltfPath, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return "", fmt.Errorf("gltfemit: encoding %s: %w", gltfPath, err)
	}
	return gltfPath, nil
}

// emitMaterial appends mat's glTF material entry, resolving/deduping
// its textures against images (keyed by resolved source path, spec
// §4.10 "rebuild the images array ... deduplicating by resolved
// source path"), and copying referenced texture files into outDir.
// Every one of base-color, metallic-roughness, normal, occlusion, and
// emissive gets the same treatment (spec §4.10): a deduplicated image
// entry, a textures[] entry carrying the mirrored MSFT_texture_dds
// extension, and the source file copied alongside the tile.
func emitMaterial(doc *document, images map[string]int, mat scene.MaterialRef, outDir string) int {
	m := material{
		PBRMetallicRoughness: pbrMetallicRoughness{
			BaseColorFactor: mat.BaseColorFactor,
			MetallicFactor:  mat.MetallicFactor,
			RoughnessFactor: mat.RoughnessFactor,
		},
		EmissiveFactor: mat.EmissiveFactor,
		DoubleSided:    mat.DoubleSided,
	}
	if mat.BaseColorTexture != "" {
		idx := textureFor(doc, images, mat.BaseColorTexture, outDir)
		m.PBRMetallicRoughness.BaseColorTexture = &textureRef{Index: idx}
	}
	if mat.MetallicRoughnessTexture != "" {
		idx := textureFor(doc, images, mat.MetallicRoughnessTexture, outDir)
		m.PBRMetallicRoughness.MetallicRoughnessTexture = &textureRef{Index: idx}
	}
	if mat.NormalTexture != "" {
		idx := textureFor(doc, images, mat.NormalTexture, outDir)
		m.NormalTexture = &normalTextureRef{Index: idx}
	}
	if mat.OcclusionTexture != "" {
		idx := textureFor(doc, images, mat.OcclusionTexture, outDir)
		m.OcclusionTexture = &occlusionTextureRef{Index: idx}
	}
	if mat.EmissiveTexture != "" {
		idx := textureFor(doc, images, mat.EmissiveTexture, outDir)
		m.EmissiveTexture = &textureRef{Index: idx}
	}
	doc.Materials = append(doc.Materials, m)
	return len(doc.Materials) - 1
}

// textureFor returns the textures[] index for sourcePath, creating a
// deduplicated image entry and a textures[] entry (with the mirrored
// MSFT_texture_dds extension, spec §4.10) if this is the first
// reference to that resolved path. The source file is copied into
// outDir under its own name, idempotently.
func textureFor(doc *document, images map[string]int, sourcePath, outDir string) int {
	imgIdx, ok := images[sourcePath]
	if !ok {
		imgIdx = len(doc.Images)
		doc.Images = append(doc.Images, imageEntry{URI: filepath.Base(sourcePath)})
		images[sourcePath] = imgIdx
		copyTextureIdempotent(sourcePath, outDir)
	}

	doc.Textures = append(doc.Textures, textureEntry{
		Source:     imgIdx,
		Extensions: &textureExtensionsDDS{MSFTTextureDDS: msftTextureDDS{Source: imgIdx}},
	})
	return len(doc.Textures) - 1
}

func copyTextureIdempotent(sourcePath, outDir string) {
	dest := filepath.Join(outDir, filepath.Base(sourcePath))
	if _, err := os.Stat(dest); err == nil {
		return // already copied, spec §4.10 idempotence
	}
	src, err := os.Open(sourcePath)
	if err != nil {
		return // TextureResolutionMiss-adjacent: source vanished between resolve and copy; swallow per §7
	}
	defer src.Close()
	out, err := os.Create(dest)
	if err != nil {
		return
	}
	defer out.Close()
	_, _ = io.Copy(out, src)
}

func bakePositions(positions []scene.Vec3, world scene.Mat4) []scene.Vec3 {
	out := make([]scene.Vec3, len(positions))
	for i, p := range positions {
		x := world[0]*p.X + world[4]*p.Y + world[8]*p.Z + world[12]
		y := world[1]*p.X + world[5]*p.Y + world[9]*p.Z + world[13]
		z := world[2]*p.X + world[6]*p.Y + world[10]*p.Z + world[14]
		out[i] = scene.Vec3{X: x, Y: y, Z: z}
	}
	return out
}

func appendVec3Accessor(doc *document, bin *bytes.Buffer, vecs []scene.Vec3, withBounds bool) int {
	offset := bin.Len()
	min := [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	max := [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, v := range vecs {
		writeF32(bin, float32(v.X))
		writeF32(bin, float32(v.Y))
		writeF32(bin, float32(v.Z))
		if withBounds {
			min[0], max[0] = math.Min(min[0], v.X), math.Max(max[0], v.X)
			min[1], max[1] = math.Min(min[1], v.Y), math.Max(max[1], v.Y)
			min[2], max[2] = math.Min(min[2], v.Z), math.Max(max[2], v.Z)
		}
	}
	length := bin.Len() - offset
	bvIdx := appendBufferView(doc, offset, length, targetArrayBuffer)
	acc := accessor{BufferView: bvIdx, ComponentType: componentFloat, Count: len(vecs), Type: "VEC3"}
	if withBounds && len(vecs) > 0 {
		acc.Min = min[:]
		acc.Max = max[:]
	}
	doc.Accessors = append(doc.Accessors, acc)
	return len(doc.Accessors) - 1
}

func appendVec2Accessor(doc *document, bin *bytes.Buffer, vecs []scene.Vec2) int {
	offset := bin.Len()
	for _, v := range vecs {
		writeF32(bin, float32(v.U))
		writeF32(bin, float32(v.V))
	}
	length := bin.Len() - offset
	bvIdx := appendBufferView(doc, offset, length, targetArrayBuffer)
	doc.Accessors = append(doc.Accessors, accessor{BufferView: bvIdx, ComponentType: componentFloat, Count: len(vecs), Type: "VEC2"})
	return len(doc.Accessors) - 1
}

func appendIndexAccessor(doc *document, bin *bytes.Buffer, indices []uint32) int {
	offset := bin.Len()
	for _, idx := range indices {
		binary.Write(bin, binary.LittleEndian, idx)
	}
	length := bin.Len() - offset
	bvIdx := appendBufferView(doc, offset, length, targetElementArrayBuffer)
	doc.Accessors = append(doc.Accessors, accessor{BufferView: bvIdx, ComponentType: componentUint, Count: len(indices), Type: "SCALAR"})
	return len(doc.Accessors) - 1
}

func appendBufferView(doc *document, offset, length, target int) int {
	doc.BufferViews = append(doc.BufferViews, bufferView{Buffer: 0, ByteOffset: offset, ByteLength: length, Target: target})
	return len(doc.BufferViews) - 1
}

func writeF32(buf *bytes.Buffer, v float32) {
	binary.Write(buf, binary.LittleEndian, v)
}
