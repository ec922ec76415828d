package terrain

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func u16(v uint16) []byte { b := make([]byte, 2); binary.LittleEndian.PutUint16(b, v); return b }
func u32(v uint32) []byte { b := make([]byte, 4); binary.LittleEndian.PutUint32(b, v); return b }
func f32(v float32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, math.Float32bits(v))
	return b
}

// vertexListObject builds one type-1 (vertex list) BTG object holding
// a single vertex, with no properties.
func vertexListObject(x, y, z float32) []byte {
	var buf bytes.Buffer
	buf.WriteByte(objVertexList)
	buf.Write(u16(0)) // propCount
	buf.Write(u16(1)) // elemCount
	buf.Write(u32(12))
	buf.Write(f32(x))
	buf.Write(f32(y))
	buf.Write(f32(z))
	return buf.Bytes()
}

func btgHeader(objectCount uint16) []byte {
	var buf bytes.Buffer
	buf.Write(u16(0))         // version, unused by DecodeBTG
	buf.Write(u16(btgMagic))  // magic at offset 2
	buf.Write(u32(0))         // creation time, unused
	buf.Write(u16(objectCount))
	return buf.Bytes()
}

func TestDecodeBTGRejectsBadMagic(t *testing.T) {
	header := btgHeader(0)
	header[2], header[3] = 0, 0 // stomp the magic bytes

	_, err := DecodeBTG(header)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMalformedHeader))
}

func TestDecodeBTGRejectsTooShortBuffer(t *testing.T) {
	_, err := DecodeBTG(make([]byte, 4))
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrMalformedHeader))
}

func TestDecodeBTGDecodesValidVertexList(t *testing.T) {
	data := append(btgHeader(1), vertexListObject(1, 2, 3)...)

	mesh, err := DecodeBTG(data)
	require.NoError(t, err)
	require.Len(t, mesh.Vertices, 1)
	require.InDelta(t, 1.0, mesh.Vertices[0].X, 1e-6)
	require.InDelta(t, 2.0, mesh.Vertices[0].Y, 1e-6)
	require.InDelta(t, 3.0, mesh.Vertices[0].Z, 1e-6)
}

// TestDecodeBTGReturnsPartialMeshOnLaterCorruption checks the
// documented degrade-gracefully behavior: a well-formed first object
// survives into the returned mesh even though a later object's
// element size is corrupted past the sanity bound.
func TestDecodeBTGReturnsPartialMeshOnLaterCorruption(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(btgHeader(2))
	buf.Write(vertexListObject(4, 5, 6))

	// Second object: type-10 triangles, no properties, one element
	// whose declared size blows past maxReasonableSize.
	buf.WriteByte(objTriangles)
	buf.Write(u16(0))
	buf.Write(u16(1))
	buf.Write(u32(maxReasonableSize + 1))

	mesh, err := DecodeBTG(buf.Bytes())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrCorruptElement))
	require.Len(t, mesh.Vertices, 1, "the first object's vertex must survive the later corruption")
	require.Empty(t, mesh.Triangles)
}
