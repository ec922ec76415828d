package airport

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func lonLatRaw(lon, lat float64) (uint32, uint32) {
	lonRaw := uint32(math.Round((lon + 180.0) * 805306368.0 / 360.0))
	latRaw := uint32(math.Round((90.0 - lat) * 536870912.0 / 180.0))
	return lonRaw, latRaw
}

func putF32(b []byte, v float32) { binary.LittleEndian.PutUint32(b, math.Float32bits(v)) }

func TestDecodeRunwayBuildsTwoPointCenterline(t *testing.T) {
	lonRaw, latRaw := lonLatRaw(-122.0, 37.0)
	body := make([]byte, 20)
	binary.LittleEndian.PutUint32(body[0:4], lonRaw)
	binary.LittleEndian.PutUint32(body[4:8], latRaw)
	putF32(body[8:12], 90) // heading: due east
	putF32(body[12:16], 1000)
	putF32(body[16:20], 45)

	rw, ok := decodeRunway(body)
	require.True(t, ok)
	require.Len(t, rw.Centerline, 2)
	require.InDelta(t, -122.0, rw.Centerline[0][0], 1e-4)
	require.InDelta(t, 37.0, rw.Centerline[0][1], 1e-4)
	// Heading 90 (due east): the far end must have a strictly greater
	// longitude and essentially unchanged latitude.
	require.Greater(t, rw.Centerline[1][0], rw.Centerline[0][0])
	require.InDelta(t, rw.Centerline[0][1], rw.Centerline[1][1], 1e-6)
	require.Equal(t, 1000.0, rw.LengthM)
	require.Equal(t, 45.0, rw.WidthM)
}

func TestDecodeRunwayRejectsShortBody(t *testing.T) {
	_, ok := decodeRunway(make([]byte, 10))
	require.False(t, ok)
}

func TestDecodeApronClosesOpenRing(t *testing.T) {
	body := make([]byte, 2+3*8)
	binary.LittleEndian.PutUint16(body[0:2], 3)
	pts := [][2]float64{{-122.0, 37.0}, {-122.001, 37.0}, {-122.0005, 37.001}}
	for i, p := range pts {
		lonRaw, latRaw := lonLatRaw(p[0], p[1])
		off := 2 + i*8
		binary.LittleEndian.PutUint32(body[off:off+4], lonRaw)
		binary.LittleEndian.PutUint32(body[off+4:off+8], latRaw)
	}

	ap, ok := decodeApron(body)
	require.True(t, ok)
	ring := ap.Boundary[0]
	require.Len(t, ring, 4, "an open 3-vertex ring must be closed by repeating the first point")
	require.True(t, ring[0].Equal(ring[3]))
}

func TestDecodeApronRejectsFewerThanThreeVertices(t *testing.T) {
	body := make([]byte, 2+8)
	binary.LittleEndian.PutUint16(body[0:2], 1)
	lonRaw, latRaw := lonLatRaw(0, 0)
	binary.LittleEndian.PutUint32(body[2:6], lonRaw)
	binary.LittleEndian.PutUint32(body[6:10], latRaw)

	_, ok := decodeApron(body)
	require.False(t, ok)
}

func TestDecodeStartAndHelipad(t *testing.T) {
	lonRaw, latRaw := lonLatRaw(10.0, 20.0)
	startBody := make([]byte, 12)
	binary.LittleEndian.PutUint32(startBody[0:4], lonRaw)
	binary.LittleEndian.PutUint32(startBody[4:8], latRaw)
	putF32(startBody[8:12], 270)

	st, ok := decodeStart(startBody)
	require.True(t, ok)
	require.InDelta(t, 10.0, st.Position[0], 1e-4)
	require.InDelta(t, 20.0, st.Position[1], 1e-4)
	require.Equal(t, 270.0, st.HeadingDeg)

	hpBody := make([]byte, 20)
	copy(hpBody, startBody[:8])
	putF32(hpBody[8:12], 0)
	putF32(hpBody[12:16], 15)
	putF32(hpBody[16:20], 15)
	hp, ok := decodeHelipad(hpBody)
	require.True(t, ok)
	require.Equal(t, 15.0, hp.LengthM)
	require.Equal(t, 15.0, hp.WidthM)
}

func TestDecodeBase38RoundTripsIcaoIdent(t *testing.T) {
	// "KSFO" encoded as base-38 digits (K=22, S=30, F=17, O=26), each
	// offset by the alphabet's +12 rule for letters.
	var v uint64
	for _, d := range []uint64{12 + 10, 12 + 18, 12 + 5, 12 + 14} { // K,S,F,O
		v = v*38 + d
	}
	require.Equal(t, "KSFO", decodeBase38(v))
}

func TestBase38DigitMapsSpaceDigitsAndLetters(t *testing.T) {
	require.Equal(t, byte(' '), base38Digit(0))
	require.Equal(t, byte('0'), base38Digit(2))
	require.Equal(t, byte('9'), base38Digit(11))
	require.Equal(t, byte('A'), base38Digit(12))
	require.Equal(t, byte('Z'), base38Digit(37))
}
