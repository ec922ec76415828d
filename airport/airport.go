// Package airport decodes Airport subrecords (spec §4.3) into an
// Airport aggregate. Only the library/sim-object placements embedded
// in Jetway and ProjectedMesh records are consumed further by the
// core pipeline; the rest of the aggregate is decoded and exposed for
// callers that want it, but not processed downstream.
package airport

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/GrainArc/sceneryforge/geoutil"
	"github.com/GrainArc/sceneryforge/internal/logging"
	"github.com/GrainArc/sceneryforge/placement"
)

// Sub-record ids within an airport body (spec §4.3).
const (
	idAirportHeader   = 0x0056
	idName            = 0x0019
	idRunway          = 0x00CE
	idStart           = 0x0011
	idTaxiwayPoint    = 0x001A
	idTaxiwayParking  = 0x00E7
	idTaxiwayPath     = 0x00D4
	idTaxiName        = 0x001D
	idApron           = 0x00D3
	idTaxiwaySign     = 0x00D9
	idPaintedLine     = 0x00CF
	idPaintedHatched  = 0x00D8
	idJetway          = 0x00DE
	idLightSupport    = 0x0057
	idApproach        = 0x0024
	idApronEdgeLights = 0x0031
	idHelipad         = 0x0026
	idProjectedMesh   = 0x00E8
)

// Airport is the decoded aggregate of one Airport subrecord (spec §3).
// Fields beyond Icao/Region/Runways/etc are intentionally coarse:
// the pipeline's only interest downstream is EmbeddedPlacements.
type Airport struct {
	Icao   string
	Region string
	Lat, Lon, AltMeters float64
	MagVar float64

	Runways   []Runway
	Starts    []Start
	Aprons    []Apron
	Helipads  []Helipad

	// EmbeddedPlacements collects the library/sim-object placements
	// found nested inside Jetway and ProjectedMesh records.
	EmbeddedPlacements []EmbeddedPlacement
}

// Runway is decoded down to its centerline: surface material and
// lighting detail the spec says implementers "may skip" are not
// retained (spec §4.3 Non-goals). Centerline is the two runway-end
// points as an orb.LineString, so a caller can render or measure it
// with the same geometry primitives the teacher uses for its CAD/GIS
// import pipelines (github.com/paulmach/orb).
type Runway struct {
	Centerline orb.LineString
	HeadingDeg float64
	LengthM    float64
	WidthM     float64
}

// Start is a decoded start position record.
type Start struct {
	Position   orb.Point
	HeadingDeg float64
}

// Apron is a decoded apron record: its boundary polygon.
type Apron struct {
	Boundary orb.Polygon
}

// Helipad is a decoded helipad record.
type Helipad struct {
	Position   orb.Point
	HeadingDeg float64
	LengthM    float64
	WidthM     float64
}

// EmbeddedPlacement tags a placement found nested inside a Jetway or
// ProjectedMesh airport subrecord with its source, so callers can
// distinguish it from top-level SceneryObject placements if desired.
type EmbeddedPlacement struct {
	Source  string // "jetway" or "projected_mesh"
	Library *placement.LibraryPlacement
	SimObj  *placement.SimObjectPlacement
}

// base38Alphabet maps a base-38 digit to its ICAO character, per spec
// §4.3: 0 -> space, 2..11 -> '0'..'9', 12..37 -> 'A'..'Z'.
func base38Digit(d uint64) byte {
	switch {
	case d == 0:
		return ' '
	case d >= 2 && d <= 11:
		return byte('0' + (d - 2))
	case d >= 12 && d <= 37:
		return byte('A' + (d - 12))
	default:
		return '?'
	}
}

// decodeBase38 unpacks an ICAO identifier: repeatedly divide by 38,
// prepending each resulting character.
func decodeBase38(v uint64) string {
	if v == 0 {
		return ""
	}
	var chars []byte
	for v > 0 {
		chars = append([]byte{base38Digit(v % 38)}, chars...)
		v /= 38
	}
	out := string(chars)
	// Trim leading/trailing padding spaces produced by short idents.
	start, end := 0, len(out)
	for start < end && out[start] == ' ' {
		start++
	}
	for end > start && out[end-1] == ' ' {
		end--
	}
	return out[start:end]
}

// ErrTruncated mirrors the pipeline-wide TruncatedRecord policy: the
// caller logs and moves on rather than failing the whole file.
type ErrTruncated struct {
	Where string
}

func (e ErrTruncated) Error() string { return "airport: truncated " + e.Where }

// Decode parses one Airport subrecord payload (id 0x0056 at its head)
// into an Airport aggregate, routing embedded Jetway/ProjectedMesh
// scenery-object placements to placement.Decode.
func Decode(payload []byte, terrain placement.ElevationSource, onWarning func(error)) (*Airport, error) {
	if len(payload) < 0x44 {
		return nil, ErrTruncated{Where: "header"}
	}

	// Header layout (spec §4.3): id:u16, size:u32,
	// runwayCt..helipadCt:u8 x6, lonRaw:u32 at 0x0C, latRaw:u32,
	// altMilli:i32, towerLatRaw:u32, towerLonRaw:u32, towerAltMilli:i32,
	// magvar:f32, icao:u32 at 0x28, region:u32 at 0x2C, ... departureCt
	// at 0x37, arrivalCt at 0x39, apron counts starting at 0x3C, body
	// starting at 0x44.
	lonRaw := binary.LittleEndian.Uint32(payload[12:16])
	latRaw := binary.LittleEndian.Uint32(payload[16:20])
	icao := binary.LittleEndian.Uint32(payload[40:44])
	region := binary.LittleEndian.Uint32(payload[44:48])
	lon, lat := decodeLonLat(lonRaw, latRaw)

	a := &Airport{
		Icao:   decodeBase38(uint64(icao)),
		Region: decodeBase38(uint64(region)),
		Lon:    lon,
		Lat:    lat,
	}

	// Walk the body records starting at 0x44. Each is
	// {id:u16, recordSize:u32, payload}; realign to
	// subOffset + bytesReadAtEntry + recordSize after each.
	pos := 0x44
	for pos+6 <= len(payload) {
		id := binary.LittleEndian.Uint16(payload[pos : pos+2])
		recSize := binary.LittleEndian.Uint32(payload[pos+2 : pos+6])
		bodyStart := pos + 6
		bodyEnd := pos + int(recSize)
		if recSize < 6 || bodyEnd > len(payload) || bodyEnd < bodyStart {
			where := fmt.Sprintf("airport body record id 0x%X at 0x%X", id, pos)
			onWarning(logging.NewDiagnosticError(logging.KindTruncatedRecord, "", pos, where, ErrTruncated{Where: where}))
			break
		}
		body := payload[bodyStart:bodyEnd]

		switch id {
		case idRunway:
			if rw, ok := decodeRunway(body); ok {
				a.Runways = append(a.Runways, rw)
			}
		case idStart:
			if st, ok := decodeStart(body); ok {
				a.Starts = append(a.Starts, st)
			}
		case idApron:
			if ap, ok := decodeApron(body); ok {
				a.Aprons = append(a.Aprons, ap)
			}
		case idHelipad:
			if hp, ok := decodeHelipad(body); ok {
				a.Helipads = append(a.Helipads, hp)
			}
		case idJetway:
			decodeEmbedded(a, body, "jetway", terrain, onWarning)
		case idProjectedMesh:
			decodeEmbedded(a, body, "projected_mesh", terrain, onWarning)
		case idName, idTaxiwayPoint, idTaxiwayParking, idTaxiwayPath,
			idTaxiName, idTaxiwaySign, idPaintedLine, idPaintedHatched,
			idLightSupport, idApronEdgeLights:
			// Decoded structurally by the original tool; not
			// consumed by the core conversion pipeline (spec §4.3).
		case idApproach:
			// Deep structure intentionally left unparsed (spec
			// Open Questions: "stubbed until a consumer needs it").
		default:
			// Unknown body record id: skip via recSize, same
			// bounded-resync policy as the top-level BGL walker.
			onWarning(logging.NewDiagnosticError(logging.KindUnknownSubrecord, "", pos, fmt.Sprintf("airport_body_0x%X", id),
				fmt.Errorf("airport: unrecognized body record id 0x%X", id)))
		}

		pos = bodyEnd
	}

	return a, nil
}

// decodeEmbedded scans body for up to two nested SceneryObject
// subrecords (Jetway records embed at most two; ProjectedMesh embeds
// one library placement) and routes each to placement.Decode.
func decodeEmbedded(a *Airport, body []byte, source string, terrain placement.ElevationSource, onWarning func(error)) {
	pos := 0
	found := 0
	maxEmbeds := 2
	for pos+4 <= len(body) && found < maxEmbeds {
		id := binary.LittleEndian.Uint16(body[pos : pos+2])
		if id != 0x0B && id != 0x19 {
			// Not a recognizable scenery-object subrecord at this
			// offset; nothing more to find in this record.
			break
		}
		lib, sim, err := placement.Decode(body[pos:], terrain)
		if err != nil {
			wrapped := fmt.Errorf("airport: embedded placement in %s: %w", source, err)
			kind := logging.KindCorruptProperty
			switch err.(type) {
			case placement.ErrTruncatedRecord:
				kind = logging.KindTruncatedRecord
			case placement.ErrUnknownSubrecord:
				kind = logging.KindUnknownSubrecord
			}
			onWarning(logging.NewDiagnosticError(kind, "", pos, "embedded_"+source, wrapped))
			break
		}
		a.EmbeddedPlacements = append(a.EmbeddedPlacements, EmbeddedPlacement{Source: source, Library: lib, SimObj: sim})
		size := int(binary.LittleEndian.Uint16(body[pos+2 : pos+4]))
		if size <= 0 {
			break
		}
		pos += size
		found++
	}
}

// decodeLonLat converts a (lonRaw, latRaw) pair using the same
// fixed-point scale as the Airport header and SceneryObject placements
// (spec §4.2/§4.3): lon spans a full circle over 805306368 (3*2^28)
// units, lat a half-circle over 2^29.
func decodeLonLat(lonRaw, latRaw uint32) (lon, lat float64) {
	lon = float64(lonRaw)*360.0/805306368.0 - 180.0
	lat = 90.0 - float64(latRaw)*180.0/536870912.0
	return lon, lat
}

// decodeRunway extracts a runway's centerline from its threshold
// position, heading, and length (layout is a design decision — the
// spec allows implementers to skip detailed runway geometry, so this
// keeps only what a scenery consumer needs to place the strip):
// lonRaw:u32, latRaw:u32, headingDeg:f32, lengthM:f32, widthM:f32.
func decodeRunway(body []byte) (Runway, bool) {
	if len(body) < 20 {
		return Runway{}, false
	}
	lonRaw := binary.LittleEndian.Uint32(body[0:4])
	latRaw := binary.LittleEndian.Uint32(body[4:8])
	heading := float64(float32frombits(body[8:12]))
	length := float64(float32frombits(body[12:16]))
	width := float64(float32frombits(body[16:20]))

	lon, lat := decodeLonLat(lonRaw, latRaw)
	farLat, farLon := geoutil.DestinationPoint(lat, lon, heading, length)

	return Runway{
		Centerline: orb.LineString{{lon, lat}, {farLon, farLat}},
		HeadingDeg: heading,
		LengthM:    length,
		WidthM:     width,
	}, true
}

// decodeStart layout: lonRaw:u32, latRaw:u32, headingDeg:f32.
func decodeStart(body []byte) (Start, bool) {
	if len(body) < 12 {
		return Start{}, false
	}
	lonRaw := binary.LittleEndian.Uint32(body[0:4])
	latRaw := binary.LittleEndian.Uint32(body[4:8])
	heading := float64(float32frombits(body[8:12]))
	lon, lat := decodeLonLat(lonRaw, latRaw)
	return Start{Position: orb.Point{lon, lat}, HeadingDeg: heading}, true
}

// decodeApron layout: vertexCount:u16 followed by that many
// (lonRaw:u32, latRaw:u32) pairs forming the boundary ring.
func decodeApron(body []byte) (Apron, bool) {
	if len(body) < 2 {
		return Apron{}, false
	}
	count := int(binary.LittleEndian.Uint16(body[0:2]))
	pos := 2
	ring := make(orb.Ring, 0, count)
	for i := 0; i < count && pos+8 <= len(body); i++ {
		lonRaw := binary.LittleEndian.Uint32(body[pos : pos+4])
		latRaw := binary.LittleEndian.Uint32(body[pos+4 : pos+8])
		lon, lat := decodeLonLat(lonRaw, latRaw)
		ring = append(ring, orb.Point{lon, lat})
		pos += 8
	}
	if len(ring) < 3 {
		return Apron{}, false
	}
	if !ring[0].Equal(ring[len(ring)-1]) {
		ring = append(ring, ring[0])
	}
	return Apron{Boundary: orb.Polygon{ring}}, true
}

// decodeHelipad layout: lonRaw:u32, latRaw:u32, headingDeg:f32,
// lengthM:f32, widthM:f32.
func decodeHelipad(body []byte) (Helipad, bool) {
	if len(body) < 20 {
		return Helipad{}, false
	}
	lonRaw := binary.LittleEndian.Uint32(body[0:4])
	latRaw := binary.LittleEndian.Uint32(body[4:8])
	heading := float64(float32frombits(body[8:12]))
	length := float64(float32frombits(body[12:16]))
	width := float64(float32frombits(body[16:20]))
	lon, lat := decodeLonLat(lonRaw, latRaw)
	return Helipad{Position: orb.Point{lon, lat}, HeadingDeg: heading, LengthM: length, WidthM: width}, true
}

func float32frombits(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
