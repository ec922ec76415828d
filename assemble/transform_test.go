package assemble

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GrainArc/sceneryforge/geoutil"
)

// A placement's local origin must land exactly on its offset from
// the tile origin, regardless of heading, pitch, bank, or scale.
// Under the column-vector M*v convention this codebase uses
// (scene.Mat4.Mul: "a applied after b", acemit's transformPoint,
// gltfemit's bakePositions), GltfMatrix must compose as
// Translation * Rotation * Scale so that scaling/rotating the zero
// vector stays zero and only the translation term survives.
// Composing Scale * Rotation * Translation instead would rotate and
// scale the translation offset itself.
func TestGltfMatrixPlacesOriginExactlyUnderRotationAndScale(t *testing.T) {
	origin := Origin{Lat: 47.0, Lon: 8.0, Alt: 400}
	p := PlacementTransform{
		Lat: 47.001, Lon: 8.002, Alt: 450,
		Heading: 90, Pitch: 15, Bank: -30, Scale: 4.5,
	}

	wantLon := geoutil.LonOffsetMeters(p.Lon, origin.Lon, origin.Lat)
	wantLat := geoutil.LatOffsetMeters(p.Lat, origin.Lat)
	wantAlt := p.Alt - origin.Alt

	m := GltfMatrix(p, origin)
	x := m[0]*0 + m[4]*0 + m[8]*0 + m[12]
	y := m[1]*0 + m[5]*0 + m[9]*0 + m[13]
	z := m[2]*0 + m[6]*0 + m[10]*0 + m[14]

	require.InDelta(t, wantLon, x, 1e-9)
	require.InDelta(t, wantAlt, y, 1e-9)
	require.InDelta(t, wantLat, z, 1e-9)
}

// A unit vector along local X, scaled by 2 with zero heading/pitch/
// bank, must land 2 meters from the placement origin along X — the
// local point is scaled before it is translated into world position,
// not the other way around.
func TestGltfMatrixScalesLocalPointBeforeTranslating(t *testing.T) {
	origin := Origin{}
	p := PlacementTransform{Scale: 2}
	m := GltfMatrix(p, origin)

	x := m[0]*1 + m[4]*0 + m[8]*0 + m[12]
	y := m[1]*1 + m[5]*0 + m[9]*0 + m[13]
	z := m[2]*1 + m[6]*0 + m[10]*0 + m[14]

	require.InDelta(t, 2, x, 1e-9)
	require.InDelta(t, 0, y, 1e-9)
	require.InDelta(t, 0, z, 1e-9)
}

// AcMatrix's FlipZ sandwich is a change-of-basis independent of the
// TRS composition order; it must preserve the same origin-placement
// exactness as GltfMatrix.
func TestAcMatrixPlacesOriginExactlyUnderRotationAndScale(t *testing.T) {
	origin := Origin{Lat: 10, Lon: 20, Alt: 0}
	p := PlacementTransform{Lat: 10.0005, Lon: 20.0007, Alt: 30, Heading: 45, Scale: 1.5}

	wantLon := geoutil.LonOffsetMeters(p.Lon, origin.Lon, origin.Lat)
	wantLat := geoutil.LatOffsetMeters(p.Lat, origin.Lat)
	wantAlt := p.Alt - origin.Alt

	m := AcMatrix(p, origin)
	x := m[0]*0 + m[4]*0 + m[8]*0 + m[12]
	y := m[1]*0 + m[5]*0 + m[9]*0 + m[13]
	z := m[2]*0 + m[6]*0 + m[10]*0 + m[14]

	require.InDelta(t, wantLon, x, 1e-9)
	require.InDelta(t, wantAlt, y, 1e-9)
	require.InDelta(t, -wantLat, z, 1e-9)
}
