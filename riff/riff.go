// Package riff walks the RIFF container embedded in a ModelData
// subrecord's payload, extracting the GXML metadata chunk and the
// first (highest-LOD) GLB blob from the GLBD chunk (spec §4.7).
package riff

import (
	"encoding/binary"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// LodDescriptor is one <LOD ModelFile="..." minSize="..."/> entry
// (spec §3).
type LodDescriptor struct {
	Name    string
	MinSize float64
}

// ModelMetadata is the parsed content of a GXML chunk.
type ModelMetadata struct {
	Name string
	Lods []LodDescriptor
}

// Model is the result of walking one ModelData payload: its metadata
// (if a GXML chunk was present) and the first GLB blob found in GLBD.
type Model struct {
	Metadata ModelMetadata
	GLB      []byte
}

// ErrNotRIFF is returned when the payload doesn't start with "RIFF"
// (spec: "otherwise skip this model").
var ErrNotRIFF = fmt.Errorf("riff: payload does not start with RIFF magic")

// Walk parses a ModelData subrecord payload into a Model.
func Walk(payload []byte) (*Model, error) {
	if len(payload) < 8 || string(payload[0:4]) != "RIFF" {
		return nil, ErrNotRIFF
	}

	m := &Model{}
	pos := 8
	for pos+8 <= len(payload) {
		chunkID := string(payload[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(payload[pos+4 : pos+8]))
		dataStart := pos + 8
		dataEnd := dataStart + size
		if dataEnd > len(payload) {
			break
		}
		chunk := payload[dataStart:dataEnd]

		switch chunkID {
		case "GXML":
			m.Metadata = parseGXML(string(chunk))
		case "GLBD":
			if glb := firstGLB(chunk); glb != nil {
				m.GLB = glb
			}
		}

		// Chunks are 4-byte aligned.
		pos = dataEnd
		if pos%4 != 0 {
			pos += 4 - pos%4
		}
	}

	return m, nil
}

var (
	modelInfoRe = regexp.MustCompile(`<ModelInfo\s+name="([^"]*)"`)
	lodRe       = regexp.MustCompile(`<LOD\s+ModelFile="([^"]*)"\s+minSize="([^"]*)"\s*/>`)
)

// parseGXML extracts <ModelInfo name="..."> and each <LOD .../> entry.
// Uses regexp rather than a full XML parser: the GXML payload is a
// known-shape fragment, not a general document, matching the spec's
// description of it as "XML metadata" scanned for two specific tags.
func parseGXML(xml string) ModelMetadata {
	meta := ModelMetadata{}
	if mm := modelInfoRe.FindStringSubmatch(xml); mm != nil {
		name := strings.TrimSuffix(mm[1], ".gltf")
		name = strings.ReplaceAll(name, " ", "_")
		meta.Name = name
	}
	for _, mm := range lodRe.FindAllStringSubmatch(xml, -1) {
		minSize, _ := strconv.ParseFloat(mm[2], 64)
		meta.Lods = append(meta.Lods, LodDescriptor{Name: mm[1], MinSize: minSize})
	}
	return meta
}

var glbMarker = [4]byte{'G', 'L', 'B', 0}

// firstGLB scans a GLBD chunk's payload for 4-byte-aligned "GLB\0"
// markers, each followed by a uint32 size and that many bytes of GLB
// data. Only the first (highest-LOD) blob is retained.
func firstGLB(data []byte) []byte {
	for pos := 0; pos+8 <= len(data); pos += 4 {
		if data[pos] == glbMarker[0] && data[pos+1] == glbMarker[1] &&
			data[pos+2] == glbMarker[2] && data[pos+3] == glbMarker[3] {
			size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
			start := pos + 8
			end := start + size
			if end > len(data) {
				return nil
			}
			return data[start:end]
		}
	}
	return nil
}

// GLB is the decoded header of a GLB 2.0 blob: the JSON chunk (with
// non-printable bytes blanked, per spec §4.7) and the raw BIN chunk.
type GLB struct {
	JSON []byte
	BIN  []byte
}

// ErrInvalidGLB is returned when a GLB blob is too short to contain
// its declared header.
var ErrInvalidGLB = fmt.Errorf("riff: GLB blob shorter than its header")

// DecodeGLB parses the GLB 2.0 header: bytes 0..11 are the glTF
// header, byte 0x0C holds jsonLength, the JSON chunk starts at 0x14,
// and a binLength precedes the BIN chunk.
func DecodeGLB(data []byte) (*GLB, error) {
	if len(data) < 0x14 {
		return nil, ErrInvalidGLB
	}
	jsonLength := int(binary.LittleEndian.Uint32(data[0x0C:0x10]))
	jsonStart := 0x14
	jsonEnd := jsonStart + jsonLength
	if jsonEnd > len(data) {
		return nil, ErrInvalidGLB
	}

	jsonChunk := make([]byte, jsonLength)
	copy(jsonChunk, data[jsonStart:jsonEnd])
	for i, b := range jsonChunk {
		if b < 0x20 || b > 0x7E {
			jsonChunk[i] = ' '
		}
	}

	g := &GLB{JSON: jsonChunk}

	if jsonEnd+4 <= len(data) {
		binLength := int(binary.LittleEndian.Uint32(data[jsonEnd : jsonEnd+4]))
		binStart := jsonEnd + 4
		binEnd := binStart + binLength
		if binEnd <= len(data) {
			g.BIN = data[binStart:binEnd]
		}
	}

	return g, nil
}
