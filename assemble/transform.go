// Package assemble implements the TileAssembler (spec §4.9): it
// resolves each tile's model references, imports each model's scene
// once, instances it into the glTF/AC3D builders for every placement
// at the tile's transform, and drives the two-phase abort protocol.
package assemble

import (
	"math"

	"github.com/GrainArc/sceneryforge/geoutil"
	"github.com/GrainArc/sceneryforge/scene"
)

// FlipZ is the AC3D coordinate-convention sandwich matrix (spec
// §4.9): diag(1, 1, -1).
var FlipZ = scene.Mat4{
	1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, -1, 0,
	0, 0, 0, 1,
}

// Origin is a tile's placement-transform reference point.
type Origin struct {
	Lat, Lon, Alt float64
}

// PlacementTransform is the (lat,lon,alt,pitch,bank,heading,scale)
// tuple needed to compute a placement's world matrix; it is
// deliberately narrower than placement.LibraryPlacement so this
// package does not need to import it just for these seven fields.
type PlacementTransform struct {
	Lat, Lon, Alt        float64
	Pitch, Bank, Heading float64
	Scale                float64
}

// GltfMatrix computes the placement transform in the glTF frame (spec
// §4.9): conceptually Scale then Rotation then Translation, X east /
// Y up / Z south. Under this codebase's column-vector M*v convention
// (scene.Mat4.Mul: "a applied after b"), that composition order is
// built as Translation.Mul(Rotation).Mul(Scale), the outermost factor
// applied last.
func GltfMatrix(p PlacementTransform, origin Origin) scene.Mat4 {
	lonOff := geoutil.LonOffsetMeters(p.Lon, origin.Lon, origin.Lat)
	latOff := geoutil.LatOffsetMeters(p.Lat, origin.Lat)
	altOff := p.Alt - origin.Alt

	yaw := -p.Heading * math.Pi / 180
	pitch := p.Pitch * math.Pi / 180
	roll := p.Bank * math.Pi / 180

	rot := yawPitchRoll(yaw, pitch, roll)
	scaleM := scaleMat(p.Scale)
	trans := translateMat(lonOff, altOff, latOff)

	return trans.Mul(rot).Mul(scaleM)
}

// AcMatrix computes the AC3D variant: FlipZ * GltfTransform * FlipZ
// (spec §4.9).
func AcMatrix(p PlacementTransform, origin Origin) scene.Mat4 {
	return FlipZ.Mul(GltfMatrix(p, origin)).Mul(FlipZ)
}

func scaleMat(s float64) scene.Mat4 {
	return scene.Mat4{
		s, 0, 0, 0,
		0, s, 0, 0,
		0, 0, s, 0,
		0, 0, 0, 1,
	}
}

func translateMat(x, y, z float64) scene.Mat4 {
	m := scene.Identity()
	m[12], m[13], m[14] = x, y, z
	return m
}

// yawPitchRoll composes a rotation matrix from yaw (about Y), pitch
// (about X), and roll (about Z), matching the quaternion composition
// order named in spec §4.9.
func yawPitchRoll(yaw, pitch, roll float64) scene.Mat4 {
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	cp, sp := math.Cos(pitch), math.Sin(pitch)
	cr, sr := math.Cos(roll), math.Sin(roll)

	ry := scene.Mat4{
		cy, 0, -sy, 0,
		0, 1, 0, 0,
		sy, 0, cy, 0,
		0, 0, 0, 1,
	}
	rx := scene.Mat4{
		1, 0, 0, 0,
		0, cp, sp, 0,
		0, -sp, cp, 0,
		0, 0, 0, 1,
	}
	rz := scene.Mat4{
		cr, sr, 0, 0,
		-sr, cr, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
	return ry.Mul(rx).Mul(rz)
}

// TileCenter computes the arithmetic mean of (lat, lon, alt) over the
// given placements, or the zero Origin if there are none (spec §4.9
// step 1).
func TileCenter(points []PlacementTransform) Origin {
	if len(points) == 0 {
		return Origin{}
	}
	var lat, lon, alt float64
	for _, p := range points {
		lat += p.Lat
		lon += p.Lon
		alt += p.Alt
	}
	n := float64(len(points))
	return Origin{Lat: lat / n, Lon: lon / n, Alt: alt / n}
}
