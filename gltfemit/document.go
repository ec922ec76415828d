// Package gltfemit serializes a merged tile scene.NeutralScene as a
// glTF 2.0 text JSON document with sibling binary and texture files
// (spec §4.10). Positions are baked with each instance's world
// transform at export time, so every node in the emitted document is
// a plain identity-transform mesh instance.
package gltfemit

// document mirrors the minimal glTF 2.0 subset this emitter writes.
// Field names follow the spec's JSON keys via json tags rather than
// Go convention, matching the wire format exactly.
type document struct {
	Asset          asset          `json:"asset"`
	Scene          int            `json:"scene"`
	Scenes         []sceneEntry   `json:"scenes"`
	Nodes          []node         `json:"nodes"`
	Meshes         []mesh         `json:"meshes"`
	Materials      []material     `json:"materials,omitempty"`
	Textures       []textureEntry `json:"textures,omitempty"`
	Images         []imageEntry   `json:"images,omitempty"`
	Accessors      []accessor     `json:"accessors"`
	BufferViews    []bufferView   `json:"bufferViews"`
	Buffers        []buffer       `json:"buffers"`
	ExtensionsUsed []string       `json:"extensionsUsed,omitempty"`
}

type asset struct {
	Version string `json:"version"`
}

type sceneEntry struct {
	Nodes []int `json:"nodes"`
}

type node struct {
	Mesh int `json:"mesh"`
}

type mesh struct {
	Primitives []primitive `json:"primitives"`
}

type primitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    int            `json:"indices"`
	Material   *int           `json:"material,omitempty"`
	Mode       int            `json:"mode"`
}

type material struct {
	PBRMetallicRoughness pbrMetallicRoughness `json:"pbrMetallicRoughness"`
	NormalTexture        *normalTextureRef    `json:"normalTexture,omitempty"`
	OcclusionTexture     *occlusionTextureRef `json:"occlusionTexture,omitempty"`
	EmissiveTexture      *textureRef          `json:"emissiveTexture,omitempty"`
	EmissiveFactor       [3]float64           `json:"emissiveFactor,omitempty"`
	DoubleSided          bool                 `json:"doubleSided,omitempty"`
}

// normalTextureRef and occlusionTextureRef mirror textureRef. glTF's
// per-use scale/strength fields are not emitted, so readers apply
// their default of 1.
type normalTextureRef struct {
	Index int `json:"index"`
}

type occlusionTextureRef struct {
	Index int `json:"index"`
}

type pbrMetallicRoughness struct {
	BaseColorFactor          [4]float64      `json:"baseColorFactor"`
	MetallicFactor           float64         `json:"metallicFactor"`
	RoughnessFactor          float64         `json:"roughnessFactor"`
	BaseColorTexture         *textureRef     `json:"baseColorTexture,omitempty"`
	MetallicRoughnessTexture *textureRef     `json:"metallicRoughnessTexture,omitempty"`
}

type textureRef struct {
	Index int `json:"index"`
}

type textureEntry struct {
	Source     int                   `json:"source"`
	Extensions *textureExtensionsDDS `json:"extensions,omitempty"`
}

type textureExtensionsDDS struct {
	MSFTTextureDDS msftTextureDDS `json:"MSFT_texture_dds"`
}

type msftTextureDDS struct {
	Source int `json:"source"`
}

type imageEntry struct {
	URI string `json:"uri"`
}

type accessor struct {
	BufferView    int    `json:"bufferView"`
	ByteOffset    int    `json:"byteOffset,omitempty"`
	ComponentType int    `json:"componentType"`
	Count         int    `json:"count"`
	Type          string `json:"type"`
	Min           []float64 `json:"min,omitempty"`
	Max           []float64 `json:"max,omitempty"`
}

type bufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	Target     int `json:"target,omitempty"`
}

type buffer struct {
	URI        string `json:"uri,omitempty"`
	ByteLength int    `json:"byteLength"`
}

const (
	componentFloat = 5126
	componentUint  = 5125

	targetArrayBuffer        = 34962
	targetElementArrayBuffer = 34963

	modeTriangles = 4
)
