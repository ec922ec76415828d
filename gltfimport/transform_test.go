package gltfimport

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// A node's own local origin must land exactly on its declared
// translation regardless of rotation or scale: under the
// column-vector M*v convention (scene.Mat4.Mul: "a applied after
// b"), the local matrix is translation * rotation * scale, so
// scaling and rotating the zero vector always yields zero, leaving
// only the translation term. Composing in the opposite order would
// instead rotate and scale the translation itself.
func TestLocalTransformTranslatesOriginExactlyUnderRotationAndScale(t *testing.T) {
	n := Node{
		Translation: &[3]float64{10, 20, -5},
		Rotation:    &[4]float64{0, 0.7071067811865476, 0, 0.7071067811865476}, // 90 deg about Y
		Scale:       &[3]float64{3, 3, 3},
	}
	m := localTransform(n)

	x := m[0]*0 + m[4]*0 + m[8]*0 + m[12]
	y := m[1]*0 + m[5]*0 + m[9]*0 + m[13]
	z := m[2]*0 + m[6]*0 + m[10]*0 + m[14]

	require.InDelta(t, 10, x, 1e-9)
	require.InDelta(t, 20, y, 1e-9)
	require.InDelta(t, -5, z, 1e-9)
}

// A unit vector along local X, scaled by 2 with no rotation, must
// land 2 units from the translation along X — proving scale is
// applied to the local point before translation, not after.
func TestLocalTransformScalesBeforeTranslating(t *testing.T) {
	n := Node{
		Translation: &[3]float64{100, 0, 0},
		Scale:       &[3]float64{2, 1, 1},
	}
	m := localTransform(n)

	x := m[0]*1 + m[4]*0 + m[8]*0 + m[12]
	require.InDelta(t, 102, x, 1e-9)
}

func TestWorldTransformComposesAncestorsOuterToInner(t *testing.T) {
	nodes := []Node{
		{Translation: &[3]float64{0, 0, 0}, Children: []int{1}},
		{Translation: &[3]float64{5, 0, 0}},
	}
	parent := buildParentMap(nodes)
	m := worldTransform(1, nodes, parent)

	x := m[0]*0 + m[4]*0 + m[8]*0 + m[12]
	require.InDelta(t, 5, x, 1e-9)
}
