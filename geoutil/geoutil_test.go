package geoutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDestinationPointNorthIncreasesLatitude(t *testing.T) {
	lat, lon := DestinationPoint(0, 0, 0, 1000)
	require.Greater(t, lat, 0.0)
	require.InDelta(t, 0.0, lon, 1e-9)
}

func TestDestinationPointEastIncreasesLongitude(t *testing.T) {
	lat, lon := DestinationPoint(0, 0, 90, 1000)
	require.InDelta(t, 0.0, lat, 1e-9)
	require.Greater(t, lon, 0.0)
}

func TestDestinationPointZeroDistanceIsNoOp(t *testing.T) {
	lat, lon := DestinationPoint(37.5, -122.3, 45, 0)
	require.InDelta(t, 37.5, lat, 1e-12)
	require.InDelta(t, -122.3, lon, 1e-12)
}

func TestToGeodeticInvertsToECEF(t *testing.T) {
	wantLat, wantLon, wantAlt := 37.5, -122.3, 500.0
	ecef := ToECEF(wantLat, wantLon, wantAlt)
	gotLat, gotLon, gotAlt := ToGeodetic(ecef)

	require.InDelta(t, wantLat, gotLat, 1e-6)
	require.InDelta(t, wantLon, gotLon, 1e-6)
	require.InDelta(t, wantAlt, gotAlt, 1e-3)
}

func TestRound3(t *testing.T) {
	require.Equal(t, 1.235, Round3(1.23456))
	require.Equal(t, -1.235, Round3(-1.23456))
}
