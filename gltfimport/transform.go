package gltfimport

import (
	"math"

	"github.com/GrainArc/sceneryforge/scene"
)

// buildParentMap records each child's parent node index; roots have
// parent -1 (spec §4.8).
func buildParentMap(nodes []Node) []int {
	parent := make([]int, len(nodes))
	for i := range parent {
		parent[i] = -1
	}
	for i, n := range nodes {
		for _, c := range n.Children {
			if c >= 0 && c < len(parent) {
				parent[c] = i
			}
		}
	}
	return parent
}

// localTransform computes a node's local matrix: a direct matrix if
// present, otherwise translation * rotation(quaternion) * scale, the
// column-vector composition under which M*v applies scale first, then
// rotation, then translation. Falls back to a uniform scalar-average
// scale if the declared scale is non-finite or non-positive (spec
// §4.8).
func localTransform(n Node) scene.Mat4 {
	if n.Matrix != nil {
		var m scene.Mat4
		for i := 0; i < 16; i++ {
			m[i] = n.Matrix[i]
		}
		return m
	}

	sx, sy, sz := 1.0, 1.0, 1.0
	if n.Scale != nil {
		sx, sy, sz = n.Scale[0], n.Scale[1], n.Scale[2]
	}
	if !finite3(sx, sy, sz) || sx <= 0 || sy <= 0 || sz <= 0 {
		avg := (sx + sy + sz) / 3
		if !isFinite(avg) || avg <= 0 {
			avg = 1
		}
		sx, sy, sz = avg, avg, avg
	}

	qx, qy, qz, qw := 0.0, 0.0, 0.0, 1.0
	if n.Rotation != nil {
		qx, qy, qz, qw = n.Rotation[0], n.Rotation[1], n.Rotation[2], n.Rotation[3]
		qx, qy, qz, qw = normalizeQuat(qx, qy, qz, qw)
	}

	tx, ty, tz := 0.0, 0.0, 0.0
	if n.Translation != nil {
		tx, ty, tz = n.Translation[0], n.Translation[1], n.Translation[2]
	}

	scaleM := scaleMat(sx, sy, sz)
	rotM := quatToMat(qx, qy, qz, qw)
	transM := translateMat(tx, ty, tz)

	return transM.Mul(rotM).Mul(scaleM)
}

// worldTransform walks node i up to the root, multiplying local
// matrices along the way (spec §4.8).
func worldTransform(nodeIndex int, nodes []Node, parent []int) scene.Mat4 {
	m := scene.Identity()
	cur := nodeIndex
	for cur >= 0 {
		local := localTransform(nodes[cur])
		m = local.Mul(m)
		cur = parent[cur]
	}
	return m
}

func finite3(a, b, c float64) bool { return isFinite(a) && isFinite(b) && isFinite(c) }

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func normalizeQuat(x, y, z, w float64) (float64, float64, float64, float64) {
	n := math.Sqrt(x*x + y*y + z*z + w*w)
	if n == 0 || !isFinite(n) {
		return 0, 0, 0, 1
	}
	return x / n, y / n, z / n, w / n
}

func scaleMat(sx, sy, sz float64) scene.Mat4 {
	m := scene.Identity()
	m[0], m[5], m[10] = sx, sy, sz
	return m
}

func translateMat(tx, ty, tz float64) scene.Mat4 {
	m := scene.Identity()
	m[12], m[13], m[14] = tx, ty, tz
	return m
}

// quatToMat builds a column-major rotation matrix from a unit
// quaternion (glTF's CreateFromQuaternion).
func quatToMat(x, y, z, w float64) scene.Mat4 {
	x2, y2, z2 := x+x, y+y, z+z
	xx, xy, xz := x*x2, x*y2, x*z2
	yy, yz, zz := y*y2, y*z2, z*z2
	wx, wy, wz := w*x2, w*y2, w*z2

	m := scene.Identity()
	m[0] = 1 - (yy + zz)
	m[1] = xy + wz
	m[2] = xz - wy

	m[4] = xy - wz
	m[5] = 1 - (xx + zz)
	m[6] = yz + wx

	m[8] = xz + wy
	m[9] = yz - wx
	m[10] = 1 - (xx + yy)
	return m
}
