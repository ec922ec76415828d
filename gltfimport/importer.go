package gltfimport

import (
	"fmt"

	"github.com/GrainArc/sceneryforge/internal/logging"
	"github.com/GrainArc/sceneryforge/riff"
	"github.com/GrainArc/sceneryforge/scene"
)

// Importer orchestrates a full glTF/GLB import into a
// scene.NeutralScene (spec §4.8). It mirrors the retrieval pack's
// "parser + extractors composed by one Import call" importer shape.
type Importer struct {
	Resolver  TextureResolver
	OnWarning func(error)
}

// New constructs an Importer that resolves textures through resolver.
// A nil resolver causes every texture binding to be dropped
// (TextureResolutionMiss, spec §7).
func New(resolver TextureResolver) *Importer {
	return &Importer{Resolver: resolver, OnWarning: func(error) {}}
}

// ImportGLB decodes a single GLB blob (already extracted by the RIFF
// walker) into a NeutralScene.
func (imp *Importer) ImportGLB(glb []byte) (*scene.NeutralScene, error) {
	decoded, err := riff.DecodeGLB(glb)
	if err != nil {
		return nil, err
	}
	doc, err := ParseDocument(decoded.JSON)
	if err != nil {
		return nil, err
	}
	return imp.importDocument(doc, decoded.BIN)
}

func (imp *Importer) importDocument(doc *Document, bin []byte) (*scene.NeutralScene, error) {
	parent := buildParentMap(doc.Nodes)
	materials := extractMaterials(doc, imp.Resolver, imp.OnWarning)

	out := &scene.NeutralScene{}
	for i, n := range doc.Nodes {
		if n.Mesh == nil {
			continue
		}
		world := worldTransform(i, doc.Nodes, parent)
		if !world.IsFinite() {
			imp.OnWarning(logging.NewDiagnosticError(logging.KindTransformInvalid, "", i, "node",
				fmt.Errorf("gltfimport: non-finite world transform for node %d", i)))
			continue
		}
		meshBuilders, err := extractMesh(doc, bin, doc.Meshes[*n.Mesh], materials, "")
		if err != nil {
			continue
		}
		for _, mb := range meshBuilders {
			out.Add(mb, world)
		}
	}
	return out, nil
}
