package modelindex

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/GrainArc/sceneryforge/bgl"
	"github.com/GrainArc/sceneryforge/placement"
	"github.com/GrainArc/sceneryforge/tiling"
)

// buildModelDataPayload constructs a minimal ModelData payload holding
// only what decodeModelDataRef reads: a little-endian GUID at
// modelDataGUIDOffset, padded past modelDataHeaderLen so the "shorter
// than header" check passes.
func buildModelDataPayload(guid uuid.UUID) []byte {
	buf := make([]byte, modelDataHeaderLen+8)
	le, err := guidToLEForTest(guid)
	if err != nil {
		panic(err)
	}
	copy(buf[modelDataGUIDOffset:modelDataGUIDOffset+16], le)
	return buf
}

func guidToLEForTest(g uuid.UUID) ([]byte, error) {
	b := g[:]
	out := make([]byte, 16)
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])
	return out, nil
}

func subrecordWithPayload(payload []byte) bgl.Subrecord {
	return bgl.Subrecord{ParentType: bgl.RecordModelData, Offset: 0, Payload: payload}
}

func TestByTileEmitsReferenceOncePerTileDespiteMultiplePlacements(t *testing.T) {
	guid := uuid.New()
	idx := placement.NewIndex()

	// Two placements of the same GUID landing in the same tile...
	idx.Add(&placement.LibraryPlacement{GUID: guid, Latitude: 10.01, Longitude: 20.01})
	idx.Add(&placement.LibraryPlacement{GUID: guid, Latitude: 10.02, Longitude: 20.02})
	// ...and one in a different tile.
	idx.Add(&placement.LibraryPlacement{GUID: guid, Latitude: -40.0, Longitude: 100.0})

	refs := []ModelReference{{GUID: guid, SourceFile: "a.bgl", ByteOffset: 0, ByteSize: 10}}
	byTile := ByTile(refs, idx)

	require.Len(t, byTile, 2, "expected exactly two distinct tiles")

	homeTile := uint32(tiling.GetTileIndex(10.01, 20.01))
	require.Len(t, byTile[homeTile], 1, "duplicate placements within one tile must collapse to one reference")

	otherTile := uint32(tiling.GetTileIndex(-40.0, 100.0))
	require.Len(t, byTile[otherTile], 1)
}

func TestByTileOmitsReferenceWithNoPlacements(t *testing.T) {
	idx := placement.NewIndex()
	refs := []ModelReference{{GUID: uuid.New(), SourceFile: "a.bgl"}}

	byTile := ByTile(refs, idx)
	require.Empty(t, byTile)
}

func TestDecodeModelDataRefSkipsUnplacedGUID(t *testing.T) {
	idx := placement.NewIndex()
	placedGUID := uuid.New()
	idx.Add(&placement.LibraryPlacement{GUID: placedGUID, Latitude: 1, Longitude: 1})

	unplaced := buildModelDataPayload(uuid.New())
	_, ok, err := decodeModelDataRef("f.bgl", subrecordWithPayload(unplaced), idx)
	require.NoError(t, err)
	require.False(t, ok)

	placedPayload := buildModelDataPayload(placedGUID)
	ref, ok, err := decodeModelDataRef("f.bgl", subrecordWithPayload(placedPayload), idx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, placedGUID, ref.GUID)
}
