// Package gltfimport implements GltfSceneImporter (spec §4.8): given a
// parsed glTF JSON document and its BIN buffer, it computes world
// transforms via parent-map traversal and extracts mesh primitives
// into scene.NeutralScene. Grounded on the retrieval pack's glTF
// importer shape (a parser + per-concern extractors composed by one
// orchestrating Import call).
package gltfimport

import "encoding/json"

// Document is the subset of a glTF 2.0 JSON document this importer
// cares about.
type Document struct {
	Nodes     []Node     `json:"nodes"`
	Meshes    []Mesh     `json:"meshes"`
	Materials []Material `json:"materials"`
	Textures  []Texture  `json:"textures"`
	Images    []Image    `json:"images"`
	Accessors []Accessor `json:"accessors"`
	BufferViews []BufferView `json:"bufferViews"`
	Scene     *int       `json:"scene"`
	Scenes    []Scene    `json:"scenes"`
}

type Scene struct {
	Name string `json:"name"`
	Nodes []int `json:"nodes"`
}

type Node struct {
	Name        string     `json:"name"`
	Children    []int      `json:"children"`
	Matrix      *[16]float64 `json:"matrix"`
	Translation *[3]float64  `json:"translation"`
	Rotation    *[4]float64  `json:"rotation"`
	Scale       *[3]float64  `json:"scale"`
	Mesh        *int       `json:"mesh"`
}

type Mesh struct {
	Name       string      `json:"name"`
	Primitives []Primitive `json:"primitives"`
}

type Primitive struct {
	Attributes map[string]int `json:"attributes"`
	Indices    *int           `json:"indices"`
	Material   *int           `json:"material"`
	Extras     *PrimitiveExtras `json:"extras"`
}

// PrimitiveExtras carries MSFS's ASOBO_primitive sub-range hints,
// used when one accessor backs multiple primitives (spec §4.8).
type PrimitiveExtras struct {
	Asobo *AsoboPrimitive `json:"ASOBO_primitive"`
}

type AsoboPrimitive struct {
	BaseVertexIndex *int `json:"BaseVertexIndex"`
	StartIndex      *int `json:"StartIndex"`
	PrimitiveCount  *int `json:"PrimitiveCount"`
}

type Material struct {
	PBRMetallicRoughness *PBRMetallicRoughness `json:"pbrMetallicRoughness"`
	EmissiveFactor       *[3]float64           `json:"emissiveFactor"`
	DoubleSided          bool                  `json:"doubleSided"`
	NormalTexture        *TextureRef           `json:"normalTexture"`
	OcclusionTexture     *TextureRef           `json:"occlusionTexture"`
	EmissiveTexture      *TextureRef           `json:"emissiveTexture"`
}

type PBRMetallicRoughness struct {
	BaseColorFactor          *[4]float64 `json:"baseColorFactor"`
	BaseColorTexture         *TextureRef `json:"baseColorTexture"`
	MetallicFactor           *float64    `json:"metallicFactor"`
	RoughnessFactor          *float64    `json:"roughnessFactor"`
	MetallicRoughnessTexture *TextureRef `json:"metallicRoughnessTexture"`
}

type TextureRef struct {
	Index int `json:"index"`
}

type Texture struct {
	Source *int `json:"source"`
}

type Image struct {
	URI        string `json:"uri"`
	MimeType   string `json:"mimeType"`
	BufferView *int   `json:"bufferView"`
}

type Accessor struct {
	BufferView    *int   `json:"bufferView"`
	ByteOffset    int    `json:"byteOffset"`
	ComponentType int    `json:"componentType"`
	Count         int    `json:"count"`
	Type          string `json:"type"` // "SCALAR", "VEC2", "VEC3", ...
	Normalized    bool   `json:"normalized"`
}

type BufferView struct {
	Buffer     int `json:"buffer"`
	ByteOffset int `json:"byteOffset"`
	ByteLength int `json:"byteLength"`
	ByteStride int `json:"byteStride"`
}

// ParseDocument unmarshals a (possibly space-blanked, per spec §4.7)
// glTF JSON chunk into a Document.
func ParseDocument(jsonBytes []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(jsonBytes, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// glTF accessor component type codes (spec §4.8).
const (
	ComponentUByte  = 5121
	ComponentUShort = 5123
	ComponentUInt   = 5125
	ComponentFloat  = 5126
)
