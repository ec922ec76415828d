package placement

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/GrainArc/sceneryforge/terrain"
)

// buildLibraryObjectPayload assembles a minimal well-formed
// SceneryObject/LibraryObject subrecord for Decode, with the given raw
// heading and altitude-flag bits.
func buildLibraryObjectPayload(headingRaw uint16, flags Flags, altitudeMilli int32) []byte {
	buf := make([]byte, headerLen+20)
	binary.LittleEndian.PutUint16(buf[0:2], idLibraryObject)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(len(buf)))
	binary.LittleEndian.PutUint32(buf[4:8], 402653184)  // longitude raw -> 0 degrees
	binary.LittleEndian.PutUint32(buf[8:12], 268435456) // latitude raw -> 0 degrees
	binary.LittleEndian.PutUint32(buf[12:16], uint32(altitudeMilli))
	binary.LittleEndian.PutUint16(buf[16:18], uint16(flags))
	binary.LittleEndian.PutUint16(buf[18:20], 0) // pitch
	binary.LittleEndian.PutUint16(buf[20:22], 0) // bank
	binary.LittleEndian.PutUint16(buf[22:24], headingRaw)
	binary.LittleEndian.PutUint16(buf[24:26], 0) // image complexity

	g := uuid.New()
	le, err := guidToLE(g)
	if err != nil {
		panic(err)
	}
	copy(buf[44:60], le)
	binary.LittleEndian.PutUint32(buf[60:64], math.Float32bits(1.0))
	return buf
}

// guidToLE is the inverse of guidFromLE, used only by tests to build
// synthetic payloads.
func guidToLE(g uuid.UUID) ([]byte, error) {
	b := g[:]
	out := make([]byte, 16)
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])
	return out, nil
}

func TestDecodeHeadingHalfTurnIs180Degrees(t *testing.T) {
	// headingRaw = 32768 should decode to exactly 180 degrees under the
	// 360/65536 scale factor.
	payload := buildLibraryObjectPayload(32768, 0, 0)
	lib, sim, err := Decode(payload, terrain.Stub{})
	require.NoError(t, err)
	require.Nil(t, sim)
	require.InDelta(t, 180.0, lib.Heading, 0.001)
}

func TestDecodeRoundsAnglesToThreeDecimals(t *testing.T) {
	payload := buildLibraryObjectPayload(1, 0, 0)
	lib, _, err := Decode(payload, terrain.Stub{})
	require.NoError(t, err)

	scaled := lib.Heading * 1000
	require.InDelta(t, math.Round(scaled), scaled, 1e-9)
}

func TestDecodeRewritesAltitudeWhenAboveAGLSet(t *testing.T) {
	rec := &terrain.RecordingStub{Elevation: 250}
	payload := buildLibraryObjectPayload(0, IsAboveAGL, 5000) // 5.0m AGL offset

	lib, _, err := Decode(payload, rec)
	require.NoError(t, err)
	require.InDelta(t, 255.0, lib.Altitude, 1e-9)
	require.Len(t, rec.Calls, 1)
}

func TestDecodeLeavesAltitudeAloneWhenAboveAGLNotSet(t *testing.T) {
	rec := &terrain.RecordingStub{Elevation: 250}
	payload := buildLibraryObjectPayload(0, 0, 5000)

	lib, _, err := Decode(payload, rec)
	require.NoError(t, err)
	require.InDelta(t, 5.0, lib.Altitude, 1e-9)
	require.Empty(t, rec.Calls)
}

func TestIndexAddNeverCreatesEmptySequence(t *testing.T) {
	idx := NewIndex()
	require.False(t, idx.Has(uuid.New()))
	require.Empty(t, idx.GUIDs())

	p := &LibraryPlacement{GUID: uuid.New()}
	idx.Add(p)
	require.True(t, idx.Has(p.GUID))
	require.Len(t, idx.ForGUID(p.GUID), 1)
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	_, _, err := Decode(make([]byte, 4), terrain.Stub{})
	require.Error(t, err)
	require.IsType(t, ErrTruncatedRecord{}, err)
}

// TestDecodeIsDeterministicAcrossRuns checks that decoding the same
// payload twice yields field-for-field identical placements, using
// cmp.Diff so a future field addition that breaks determinism shows
// up as a readable diff rather than a bare boolean failure.
func TestDecodeIsDeterministicAcrossRuns(t *testing.T) {
	payload := buildLibraryObjectPayload(1000, IsAboveAGL, 2500)
	rec := &terrain.RecordingStub{Elevation: 12}

	first, _, err := Decode(payload, rec)
	require.NoError(t, err)
	second, _, err := Decode(payload, rec)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("decoding the same payload twice diverged (-first +second):\n%s", diff)
	}
}
