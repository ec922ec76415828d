// Package placement decodes SceneryObject subrecords into
// LibraryPlacement and SimObjectPlacement instances (spec §4.2) and
// owns the PlacementsByGuid index they are collected into.
package placement

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/GrainArc/sceneryforge/geoutil"
)

// Flags is the placement flag bitset decoded from the raw uint16.
type Flags uint16

const (
	IsAboveAGL Flags = 1 << iota
	NoAutogenSuppression
	NoCrash
	NoFog
	NoShadow
	NoZWrite
	NoZTest
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// LibraryPlacement is an instance of a library (GUID-identified) model
// at a geographic anchor (spec §3).
type LibraryPlacement struct {
	GUID      uuid.UUID
	Latitude  float64
	Longitude float64
	Altitude  float64 // meters; mutated in place for IsAboveAGL, spec's terminal invariant
	Pitch     float64
	Bank      float64
	Heading   float64
	Scale     float64
	ImageComplexity int16
	Flags     Flags
}

// SimObjectPlacement is like LibraryPlacement but identified by a
// (title, path) pair rather than a GUID.
type SimObjectPlacement struct {
	Title     string
	Path      string
	Latitude  float64
	Longitude float64
	Altitude  float64
	Pitch     float64
	Bank      float64
	Heading   float64
	Scale     float64
	ImageComplexity int16
	Flags     Flags
}

// ElevationSource resolves ground elevation at a geodetic point, used
// to rewrite IsAboveAGL altitudes at decode time (spec §3 invariant,
// §4.5).
type ElevationSource interface {
	GetElevation(lat, lon float64) (float64, error)
}

// ErrTruncatedRecord mirrors bgl.ErrTruncatedRecord for placement-local
// truncation (declared size exceeds subrecord remainder, spec §4.2).
type ErrTruncatedRecord struct {
	Declared, Remaining int
}

func (e ErrTruncatedRecord) Error() string {
	return fmt.Sprintf("placement: declared size %d exceeds subrecord remainder %d", e.Declared, e.Remaining)
}

// ErrUnknownSubrecord is returned when a SceneryObject subrecord's id
// is neither LibraryObject nor SimObject (spec §7: UnknownSubrecordId
// is a tolerated condition, not a fatal one).
type ErrUnknownSubrecord struct {
	ID uint16
}

func (e ErrUnknownSubrecord) Error() string {
	return fmt.Sprintf("placement: unrecognized subrecord id 0x%X", e.ID)
}

const (
	idLibraryObject = 0x0B
	idSimObject     = 0x19

	headerLen = 2 + 2 + 4 + 4 + 4 + 2 + 2 + 2 + 2 + 2 + 2 + 16 // up to and including emptyGuid
)

func rawAngle(raw uint32, scale, offset float64) float64 {
	return geoutil.Round3(float64(raw)*scale - offset)
}

// Decode parses one SceneryObject subrecord payload. On success it
// returns exactly one of (*LibraryPlacement, *SimObjectPlacement) via
// the two out-params being non-nil; terrain is consulted only when the
// IsAboveAGL flag is set.
func Decode(payload []byte, terrain ElevationSource) (*LibraryPlacement, *SimObjectPlacement, error) {
	if len(payload) < headerLen {
		return nil, nil, ErrTruncatedRecord{Declared: headerLen, Remaining: len(payload)}
	}

	id := binary.LittleEndian.Uint16(payload[0:2])
	size := binary.LittleEndian.Uint16(payload[2:4])
	if int(size) > len(payload) {
		return nil, nil, ErrTruncatedRecord{Declared: int(size), Remaining: len(payload)}
	}

	longitudeRaw := binary.LittleEndian.Uint32(payload[4:8])
	latitudeRaw := binary.LittleEndian.Uint32(payload[8:12])
	altitudeMilli := int32(binary.LittleEndian.Uint32(payload[12:16]))
	flags := Flags(binary.LittleEndian.Uint16(payload[16:18]))
	pitchRaw := binary.LittleEndian.Uint16(payload[18:20])
	bankRaw := binary.LittleEndian.Uint16(payload[20:22])
	headingRaw := binary.LittleEndian.Uint16(payload[22:24])
	imageComplexity := int16(binary.LittleEndian.Uint16(payload[24:26]))
	// payload[26:28] reserved
	// payload[28:44] emptyGuid
	tail := payload[44:]

	longitude := float64(longitudeRaw)*360.0/805306368.0 - 180.0
	latitude := 90.0 - float64(latitudeRaw)*180.0/536870912.0
	pitch := geoutil.Round3(float64(pitchRaw) * 360.0 / 65536.0)
	bank := geoutil.Round3(float64(bankRaw) * 360.0 / 65536.0)
	heading := geoutil.Round3(float64(headingRaw) * 360.0 / 65536.0)
	altitude := float64(altitudeMilli) / 1000.0

	if flags.Has(IsAboveAGL) && terrain != nil {
		elev, err := terrain.GetElevation(latitude, longitude)
		if err == nil {
			altitude += elev
		}
	}

	switch id {
	case idLibraryObject:
		if len(tail) < 20 {
			return nil, nil, ErrTruncatedRecord{Declared: 20, Remaining: len(tail)}
		}
		guidBytes := tail[0:16]
		guid, err := guidFromLE(guidBytes)
		if err != nil {
			return nil, nil, err
		}
		scale := geoutil.Round3(float64(math.Float32frombits(binary.LittleEndian.Uint32(tail[16:20]))))

		return &LibraryPlacement{
			GUID: guid, Latitude: latitude, Longitude: longitude, Altitude: altitude,
			Pitch: pitch, Bank: bank, Heading: heading, Scale: scale,
			ImageComplexity: imageComplexity, Flags: flags,
		}, nil, nil

	case idSimObject:
		if len(tail) < 8 {
			return nil, nil, ErrTruncatedRecord{Declared: 8, Remaining: len(tail)}
		}
		scale := geoutil.Round3(float64(math.Float32frombits(binary.LittleEndian.Uint32(tail[0:4]))))
		titleLen := int(binary.LittleEndian.Uint16(tail[4:6]))
		pathLen := int(binary.LittleEndian.Uint16(tail[6:8]))
		rest := tail[8:]
		if len(rest) < titleLen+pathLen {
			return nil, nil, ErrTruncatedRecord{Declared: titleLen + pathLen, Remaining: len(rest)}
		}
		title := string(rest[:titleLen])
		path := string(rest[titleLen : titleLen+pathLen])

		return nil, &SimObjectPlacement{
			Title: title, Path: path, Latitude: latitude, Longitude: longitude, Altitude: altitude,
			Pitch: pitch, Bank: bank, Heading: heading, Scale: scale,
			ImageComplexity: imageComplexity, Flags: flags,
		}, nil

	default:
		return nil, nil, ErrUnknownSubrecord{ID: id}
	}
}

// guidFromLE builds a uuid.UUID from a little-endian-packed 16-byte
// MSFS GUID (the first three fields are little-endian, the last two
// are big-endian, matching the Windows GUID wire format).
func guidFromLE(b []byte) (uuid.UUID, error) {
	if len(b) != 16 {
		return uuid.UUID{}, fmt.Errorf("placement: guid must be 16 bytes, got %d", len(b))
	}
	var out [16]byte
	out[0], out[1], out[2], out[3] = b[3], b[2], b[1], b[0]
	out[4], out[5] = b[5], b[4]
	out[6], out[7] = b[7], b[6]
	copy(out[8:], b[8:])
	return uuid.FromBytes(out[:])
}

// Index owns the PlacementsByGuid mapping (spec §3): a GUID entry with
// an empty sequence never exists, so Add is the only mutator.
type Index struct {
	byGUID map[uuid.UUID][]*LibraryPlacement
	simObjects []*SimObjectPlacement
}

// NewIndex creates an empty placement index.
func NewIndex() *Index {
	return &Index{byGUID: make(map[uuid.UUID][]*LibraryPlacement)}
}

// Add appends p to the sequence for its GUID.
func (idx *Index) Add(p *LibraryPlacement) {
	idx.byGUID[p.GUID] = append(idx.byGUID[p.GUID], p)
}

// AddSimObject records a sim-object placement.
func (idx *Index) AddSimObject(p *SimObjectPlacement) {
	idx.simObjects = append(idx.simObjects, p)
}

// ForGUID returns the (possibly nil) sequence of placements for guid.
func (idx *Index) ForGUID(guid uuid.UUID) []*LibraryPlacement {
	return idx.byGUID[guid]
}

// GUIDs returns every GUID with at least one placement.
func (idx *Index) GUIDs() []uuid.UUID {
	out := make([]uuid.UUID, 0, len(idx.byGUID))
	for g := range idx.byGUID {
		out = append(out, g)
	}
	return out
}

// SimObjects returns all decoded sim-object placements.
func (idx *Index) SimObjects() []*SimObjectPlacement {
	return idx.simObjects
}

// Has reports whether guid has at least one placement.
func (idx *Index) Has(guid uuid.UUID) bool {
	_, ok := idx.byGUID[guid]
	return ok
}
