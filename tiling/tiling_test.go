package tiling

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestTileIndexRoundTrip checks that packing a tile's own south-west
// corner back through GetTileIndex reproduces the original index, for
// a spread of latitude bands (each with a different tile width).
func TestTileIndexRoundTrip(t *testing.T) {
	lats := []float64{-89.9, -75.0, -45.0, -10.0, 0.0, 10.0, 45.0, 75.0, 89.9}
	lons := []float64{-179.9, -90.0, -0.1, 0.0, 0.1, 90.0, 179.9}

	for _, lat := range lats {
		for _, lon := range lons {
			idx := GetTileIndex(lat, lon)
			swLat, swLon, err := GetLatLonOfTile(idx)
			require.NoError(t, err)

			roundTripped := GetTileIndex(swLat, swLon)
			require.Equalf(t, idx, roundTripped,
				"lat=%v lon=%v -> idx=%v -> corner(%v,%v) -> idx=%v", lat, lon, idx, swLat, swLon, roundTripped)
		}
	}
}

func TestGetLatLonOfTileRejectsOutOfRangeCorner(t *testing.T) {
	// baseY+90 packed as 0xFF (255) decodes to baseY=165, an
	// impossible latitude; the top bits are otherwise unconstrained.
	idx := Index(uint32(0xFF) << 6)
	_, _, err := GetLatLonOfTile(idx)
	require.Error(t, err)
	require.IsType(t, ErrOutOfRange{}, err)
}

func TestOutputBucketsHemisphereFormatting(t *testing.T) {
	b10, b1 := OutputBuckets(37.5, -122.3)
	require.Equal(t, "w120n30", b10)
	require.Equal(t, "w122n37", b1)

	b10, b1 = OutputBuckets(-33.9, 151.2)
	require.Equal(t, "e150s30", b10)
	require.Equal(t, "e151s33", b1)
}
