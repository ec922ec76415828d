// Package tiling implements FlightGear's non-uniform tile index packing
// and its inverse, per spec §3 and §4.4.
package tiling

import (
	"fmt"
	"math"
)

// Index is a packed 32-bit FlightGear tile identifier.
type Index uint32

// bandWidth returns the tile width, in degrees of longitude, for the
// latitude band containing lat. Table taken from spec §3.
func bandWidth(lat float64) float64 {
	a := math.Abs(lat)
	switch {
	case a >= 89:
		return 12
	case a >= 86:
		return 4
	case a >= 83:
		return 2
	case a >= 76:
		return 1
	case a >= 62:
		return 0.5
	case a >= 22:
		return 0.25
	default:
		return 0.125
	}
}

// ErrOutOfRange is returned by GetLatLonOfTile when the decoded corner
// falls outside valid geodetic bounds.
type ErrOutOfRange struct {
	Lat, Lon float64
}

func (e ErrOutOfRange) Error() string {
	return fmt.Sprintf("tiling: decoded corner (%.6f, %.6f) out of range", e.Lat, e.Lon)
}

// GetTileIndex packs (lat, lon), in degrees, into FlightGear's tile
// index: bits 0-2 x within tile-band, bits 3-5 y within the 1-degree
// cell, bits 6-13 baseY+90, bits 14+ baseX+180.
func GetTileIndex(lat, lon float64) Index {
	width := bandWidth(lat)

	baseY := math.Floor(lat)
	y := math.Floor((lat - baseY) * 8)

	baseX := math.Floor(math.Floor(lon/width) * width)
	x := math.Floor((lon - baseX) / width)

	idx := uint32(baseX+180)<<14 | uint32(baseY+90)<<6 | uint32(y)<<3 | uint32(x)
	return Index(idx)
}

// GetLatLonOfTile reverses the packing, returning the tile's south-west
// corner. Fails with ErrOutOfRange if the recovered corner is not a
// valid geodetic coordinate.
func GetLatLonOfTile(idx Index) (lat, lon float64, err error) {
	v := uint32(idx)
	x := int(v & 0x7)
	y := int((v >> 3) & 0x7)
	baseY := int((v>>6)&0xFF) - 90
	baseX := int(v>>14) - 180

	lat = float64(baseY) + float64(y)/8
	width := bandWidth(lat)
	lon = float64(baseX) + float64(x)*width

	if math.Abs(lat) > 90 || math.Abs(lon) > 180 {
		return 0, 0, ErrOutOfRange{Lat: lat, Lon: lon}
	}
	return lat, lon, nil
}

// TileWidth exposes bandWidth for callers (e.g. the tile assembler and
// output path bucketer) that need the longitude span of a tile without
// repacking it.
func TileWidth(lat float64) float64 {
	return bandWidth(lat)
}

// bucketDir renders one output-path bucket component: eOrW + floor(|lon|/round)*round
// (3-digit pad) + nOrS + floor(|lat|/round)*round (2-digit pad), per
// spec §4.10's output path scheme.
func bucketDir(lat, lon float64, round int) string {
	lonAbs := int(math.Floor(math.Abs(lon)/float64(round))) * round
	latAbs := int(math.Floor(math.Abs(lat)/float64(round))) * round

	lonHemi := "e"
	if lon < 0 {
		lonHemi = "w"
	}
	latHemi := "n"
	if lat < 0 {
		latHemi = "s"
	}
	return fmt.Sprintf("%s%03d%s%02d", lonHemi, lonAbs, latHemi, latAbs)
}

// OutputBuckets returns the (10-degree, 1-degree) output directory
// components for a tile's south-west corner (spec §4.10/§6).
func OutputBuckets(lat, lon float64) (bucket10, bucket1 string) {
	return bucketDir(lat, lon, 10), bucketDir(lat, lon, 1)
}
