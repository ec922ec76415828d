package gltfimport

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/GrainArc/sceneryforge/scene"
)

// accessorFloats reads accessor idx as a flat []float64, expanding
// whatever component type/normalization it declares. componentsPer
// is 1 for SCALAR, 2 for VEC2, 3 for VEC3.
func accessorFloats(doc *Document, bin []byte, idx int, componentsPer int) ([]float64, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("gltfimport: accessor index %d out of range", idx)
	}
	acc := doc.Accessors[idx]
	if acc.BufferView == nil {
		return nil, fmt.Errorf("gltfimport: accessor %d has no bufferView (sparse accessors unsupported)", idx)
	}
	bv := doc.BufferViews[*acc.BufferView]
	stride := bv.ByteStride
	elemSize := componentByteSize(acc.ComponentType) * componentsPer
	if stride == 0 {
		stride = elemSize
	}
	base := bv.ByteOffset + acc.ByteOffset

	out := make([]float64, 0, acc.Count*componentsPer)
	for i := 0; i < acc.Count; i++ {
		off := base + i*stride
		for c := 0; c < componentsPer; c++ {
			v, err := readComponent(bin, off+c*componentByteSize(acc.ComponentType), acc.ComponentType, acc.Normalized)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
	}
	return out, nil
}

func componentByteSize(componentType int) int {
	switch componentType {
	case ComponentUByte:
		return 1
	case ComponentUShort:
		return 2
	case ComponentUInt, ComponentFloat:
		return 4
	default:
		return 4
	}
}

func readComponent(bin []byte, offset, componentType int, normalized bool) (float64, error) {
	if offset < 0 || offset+componentByteSize(componentType) > len(bin) {
		return 0, fmt.Errorf("gltfimport: accessor read out of bounds at %d", offset)
	}
	switch componentType {
	case ComponentFloat:
		bits := binary.LittleEndian.Uint32(bin[offset : offset+4])
		return float64(math.Float32frombits(bits)), nil
	case ComponentUShort:
		v := binary.LittleEndian.Uint16(bin[offset : offset+2])
		if normalized {
			return float64(v) / 65535.0, nil
		}
		return float64(v), nil
	case ComponentUByte:
		v := bin[offset]
		if normalized {
			return float64(v) / 255.0, nil
		}
		return float64(v), nil
	case ComponentUInt:
		v := binary.LittleEndian.Uint32(bin[offset : offset+4])
		return float64(v), nil
	default:
		return 0, fmt.Errorf("gltfimport: unsupported component type %d", componentType)
	}
}

// accessorIndices reads an "indices" accessor (u8/u16/u32) as
// []uint32 (spec §4.8).
func accessorIndices(doc *Document, bin []byte, idx int) ([]uint32, error) {
	if idx < 0 || idx >= len(doc.Accessors) {
		return nil, fmt.Errorf("gltfimport: indices accessor %d out of range", idx)
	}
	acc := doc.Accessors[idx]
	bv := doc.BufferViews[*acc.BufferView]
	elemSize := componentByteSize(acc.ComponentType)
	stride := bv.ByteStride
	if stride == 0 {
		stride = elemSize
	}
	base := bv.ByteOffset + acc.ByteOffset

	out := make([]uint32, acc.Count)
	for i := 0; i < acc.Count; i++ {
		off := base + i*stride
		if off+elemSize > len(bin) {
			return nil, fmt.Errorf("gltfimport: indices read out of bounds at %d", off)
		}
		switch acc.ComponentType {
		case ComponentUByte:
			out[i] = uint32(bin[off])
		case ComponentUShort:
			out[i] = uint32(binary.LittleEndian.Uint16(bin[off : off+2]))
		case ComponentUInt:
			out[i] = binary.LittleEndian.Uint32(bin[off : off+4])
		default:
			return nil, fmt.Errorf("gltfimport: unsupported index component type %d", acc.ComponentType)
		}
	}
	return out, nil
}

// extractMesh builds one MeshBuilder per primitive of a glTF mesh
// that has at least one triangle. Respects ASOBO_primitive extras
// when present, since MSFS re-uses a single accessor across several
// primitives (spec §4.8).
func extractMesh(doc *Document, bin []byte, mesh Mesh, materials []scene.MaterialRef, textureRoot string) ([]*scene.MeshBuilder, error) {
	var out []*scene.MeshBuilder

	for _, prim := range mesh.Primitives {
		posIdx, ok := prim.Attributes["POSITION"]
		if !ok {
			continue
		}
		posFlat, err := accessorFloats(doc, bin, posIdx, 3)
		if err != nil {
			return nil, err
		}

		var indices []uint32
		if prim.Indices != nil {
			indices, err = accessorIndices(doc, bin, *prim.Indices)
			if err != nil {
				return nil, err
			}
		} else {
			indices = make([]uint32, len(posFlat)/3)
			for i := range indices {
				indices[i] = uint32(i)
			}
		}

		startIndex, primCount, baseVertex := 0, len(indices)/3, 0
		if prim.Extras != nil && prim.Extras.Asobo != nil {
			a := prim.Extras.Asobo
			if a.StartIndex != nil {
				startIndex = *a.StartIndex / 3
			}
			if a.PrimitiveCount != nil {
				primCount = *a.PrimitiveCount
			}
			if a.BaseVertexIndex != nil {
				baseVertex = *a.BaseVertexIndex
			}
		}
		lo, hi := startIndex*3, (startIndex+primCount)*3
		if lo < 0 {
			lo = 0
		}
		if hi > len(indices) {
			hi = len(indices)
		}
		if hi <= lo {
			continue
		}
		subIndices := indices[lo:hi]

		mb := &scene.MeshBuilder{}
		mb.Positions = make([]scene.Vec3, len(posFlat)/3)
		for i := range mb.Positions {
			mb.Positions[i] = scene.Vec3{X: posFlat[i*3], Y: posFlat[i*3+1], Z: posFlat[i*3+2]}
		}

		if uvIdx, ok := prim.Attributes["TEXCOORD_0"]; ok {
			uvFlat, err := accessorFloats(doc, bin, uvIdx, 2)
			if err == nil {
				mb.UVs = make([]scene.Vec2, len(uvFlat)/2)
				for i := range mb.UVs {
					mb.UVs[i] = scene.Vec2{U: uvFlat[i*2], V: 1 - uvFlat[i*2+1]}
				}
			}
		}

		mb.Indices = make([]uint32, len(subIndices))
		for i, v := range subIndices {
			mb.Indices[i] = v + uint32(baseVertex)
		}

		if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(materials) {
			mb.Material = materials[*prim.Material]
		} else {
			mb.Material = scene.DefaultMaterial()
		}

		if mb.TriangleCount() >= 1 {
			out = append(out, mb)
		}
	}

	return out, nil
}
