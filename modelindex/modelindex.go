// Package modelindex implements the pass-2 model scan (spec §4's
// ModelIndex): it walks ModelData subrecords across the input BGL
// tree, keeps only the GUIDs pass 1 actually placed, and groups the
// resulting ModelReference values by the tile(s) that reference them.
package modelindex

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/GrainArc/sceneryforge/bgl"
	"github.com/GrainArc/sceneryforge/internal/logging"
	"github.com/GrainArc/sceneryforge/placement"
	"github.com/GrainArc/sceneryforge/tiling"
)

// modelDataHeaderLen is the empirically-derived offset between a
// ModelData subrecord's start and its embedded RIFF container (spec
// §9 Design Notes: "the 0x80-byte offset ... is derived empirically;
// implementers should validate per-file rather than assume").
const modelDataHeaderLen = 0x80

const modelDataGUIDOffset = 4

// ModelReference points at one model's RIFF payload within a BGL file
// (spec §3): (guid, source-file-path, byte-offset, byte-size).
type ModelReference struct {
	GUID       uuid.UUID
	SourceFile string
	ByteOffset int
	ByteSize   int
}

// ScanFile walks one BGL file's ModelData subrecords, calling emit
// for each reference whose GUID is present in placed (spec §3:
// "ModelIndex only emits references for GUIDs present in
// PlacementsByGuid"). Malformed ModelData payloads are reported via
// onWarning and skipped, never abort the file.
func ScanFile(path string, data []byte, placed *placement.Index, onWarning func(error), emit func(ModelReference)) error {
	w, err := bgl.New(data)
	if err != nil {
		onWarning(fmt.Errorf("modelindex: %s: %w", path, err))
		return nil
	}

	return w.Walk(logging.WithFile(path, onWarning), func(sub bgl.Subrecord) error {
		if sub.ParentType != bgl.RecordModelData {
			return nil
		}
		ref, ok, err := decodeModelDataRef(path, sub, placed)
		if err != nil {
			onWarning(fmt.Errorf("modelindex: %s at 0x%X: %w", path, sub.Offset, err))
			return nil
		}
		if ok {
			emit(ref)
		}
		return nil
	})
}

func decodeModelDataRef(path string, sub bgl.Subrecord, placed *placement.Index) (ModelReference, bool, error) {
	payload := sub.Payload
	if len(payload) < modelDataGUIDOffset+16 {
		return ModelReference{}, false, fmt.Errorf("model data payload too short for GUID")
	}
	guid, err := guidFromLE(payload[modelDataGUIDOffset : modelDataGUIDOffset+16])
	if err != nil {
		return ModelReference{}, false, err
	}
	if placed != nil && !placed.Has(guid) {
		return ModelReference{}, false, nil
	}
	if len(payload) <= modelDataHeaderLen {
		return ModelReference{}, false, fmt.Errorf("model data payload shorter than header (%d bytes)", modelDataHeaderLen)
	}

	return ModelReference{
		GUID:       guid,
		SourceFile: path,
		ByteOffset: sub.Offset + modelDataHeaderLen,
		ByteSize:   len(payload) - modelDataHeaderLen,
	}, true, nil
}

// guidFromLE mirrors placement.guidFromLE (unexported there): builds a
// uuid.UUID from a little-endian-packed 16-byte MSFS GUID.
func guidFromLE(b []byte) (uuid.UUID, error) {
	if len(b) != 16 {
		return uuid.UUID{}, fmt.Errorf("modelindex: guid must be 16 bytes, got %d", len(b))
	}
	var out [16]byte
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])
	return uuid.FromBytes(out[:])
}

// ByTile groups model references by the FlightGear tile index of
// every placement that uses their GUID (spec §3: "ModelReferencesByTile
// : Mapping<TileIndex → Sequence<ModelReference>>"). A reference used
// by several placements within the same tile appears once for that
// tile (spec Scenario C).
func ByTile(refs []ModelReference, placed *placement.Index) map[uint32][]ModelReference {
	out := make(map[uint32][]ModelReference)
	seen := make(map[uint32]map[uuid.UUID]bool)

	for _, ref := range refs {
		for _, p := range placed.ForGUID(ref.GUID) {
			tileIdx := uint32(tiling.GetTileIndex(p.Latitude, p.Longitude))
			if seen[tileIdx] == nil {
				seen[tileIdx] = make(map[uuid.UUID]bool)
			}
			if seen[tileIdx][ref.GUID] {
				continue
			}
			seen[tileIdx][ref.GUID] = true
			out[tileIdx] = append(out[tileIdx], ref)
		}
	}
	return out
}
