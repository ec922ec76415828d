// Package scene defines the API-neutral intermediate representation
// that the glTF importer produces and that both emitters (glTF, AC3D)
// consume (spec §3 NeutralScene).
package scene

import "math"

// Mat4 is a column-major 4x4 transform matrix.
type Mat4 [16]float64

// Identity returns the identity transform.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Mul returns a*b (a applied after b, i.e. a is the outer transform).
func (a Mat4) Mul(b Mat4) Mat4 {
	var out Mat4
	for col := 0; col < 4; col++ {
		for row := 0; row < 4; row++ {
			var sum float64
			for k := 0; k < 4; k++ {
				sum += a[k*4+row] * b[col*4+k]
			}
			out[col*4+row] = sum
		}
	}
	return out
}

// IsFinite reports whether every component of m is finite (spec
// §4.8 TransformInvalid check).
func (m Mat4) IsFinite() bool {
	for _, v := range m {
		// v != v catches NaN.
		if v != v || v > math.MaxFloat64 || v < -math.MaxFloat64 {
			return false
		}
	}
	return true
}

// Vec3 is a 3-component vector (position, normal, or tangent).
type Vec3 struct{ X, Y, Z float64 }

// Vec2 is a UV coordinate.
type Vec2 struct{ U, V float64 }

// MaterialRef is a PBR metallic-roughness material bundle (spec §3).
type MaterialRef struct {
	BaseColorFactor          [4]float64
	MetallicFactor           float64
	RoughnessFactor          float64
	EmissiveFactor           [3]float64
	BaseColorTexture         string
	MetallicRoughnessTexture string
	NormalTexture            string
	OcclusionTexture         string
	EmissiveTexture          string
	DoubleSided              bool
}

// DefaultMaterial is used when a primitive has no material binding.
func DefaultMaterial() MaterialRef {
	return MaterialRef{
		BaseColorFactor: [4]float64{1, 1, 1, 1},
		MetallicFactor:  1,
		RoughnessFactor: 1,
	}
}

// MeshBuilder accumulates one primitive's vertex data and its
// triangle index list, plus the material it's bound to.
type MeshBuilder struct {
	Positions []Vec3
	Normals   []Vec3
	Tangents  []Vec3 // optional; nil if not provided by the source primitive
	UVs       []Vec2
	Indices   []uint32 // flat list of triangles, 3 per face
	Material  MaterialRef
}

// TriangleCount returns the number of triangles the builder holds.
func (m *MeshBuilder) TriangleCount() int {
	return len(m.Indices) / 3
}

// NeutralScene is a sequence of (mesh, world transform) instances
// extracted from one imported model (spec §3).
type NeutralScene struct {
	Meshes     []*MeshBuilder
	Transforms []Mat4 // parallel to Meshes
}

// Add appends a mesh with its resolved world transform.
func (s *NeutralScene) Add(m *MeshBuilder, world Mat4) {
	s.Meshes = append(s.Meshes, m)
	s.Transforms = append(s.Transforms, world)
}
