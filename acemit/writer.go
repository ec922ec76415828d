// Package acemit writes a tile's merged geometry as an AC3D ASCII v11
// file (spec §4.11): one poly object per (model, primitive)
// instantiation, a deduplicated material palette rooted at
// DefaultWhite, and a texture registry with suffix-disambiguated
// output filenames.
package acemit

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/GrainArc/sceneryforge/internal/logging"
	"github.com/GrainArc/sceneryforge/scene"
	"github.com/GrainArc/sceneryforge/texture"
)

// quantize keys a vertex for pool dedup at 1/10000 m resolution (spec
// §4.11).
type quantizedVertex struct{ x, y, z int64 }

func quantize(v scene.Vec3) quantizedVertex {
	return quantizedVertex{
		x: int64(math.Round(v.X * 10000)),
		y: int64(math.Round(v.Y * 10000)),
		z: int64(math.Round(v.Z * 10000)),
	}
}

// acMaterial is the AC3D-mapped material (spec §4.11's mapping
// formulas).
type acMaterial struct {
	Diffuse, Ambient, Emissive [3]float64
	Specular                   float64
	Shininess                  int
	Transparency               float64
	DoubleSided                bool
}

func mapMaterial(m scene.MaterialRef) acMaterial {
	diffuse := [3]float64{clamp01(m.BaseColorFactor[0]), clamp01(m.BaseColorFactor[1]), clamp01(m.BaseColorFactor[2])}
	ambient := [3]float64{diffuse[0] * 0.2, diffuse[1] * 0.2, diffuse[2] * 0.2}
	specular := 0.04 + m.MetallicFactor*0.5
	shininess := int(math.Round((1 - m.RoughnessFactor) * 128))
	if shininess < 0 {
		shininess = 0
	}
	if shininess > 128 {
		shininess = 128
	}
	return acMaterial{
		Diffuse: diffuse, Ambient: ambient, Emissive: m.EmissiveFactor,
		Specular: specular, Shininess: shininess, Transparency: 1 - m.BaseColorFactor[3],
		DoubleSided: m.DoubleSided,
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func (m acMaterial) key() string {
	return fmt.Sprintf("%.3f,%.3f,%.3f|%.3f,%.3f,%.3f|%.3f,%.3f,%.3f|%.3f|%d|%.3f|%v",
		m.Diffuse[0], m.Diffuse[1], m.Diffuse[2],
		m.Ambient[0], m.Ambient[1], m.Ambient[2],
		m.Emissive[0], m.Emissive[1], m.Emissive[2],
		m.Specular, m.Shininess, m.Transparency, m.DoubleSided)
}

func defaultWhite() acMaterial {
	return acMaterial{Diffuse: [3]float64{1, 1, 1}, Ambient: [3]float64{0.2, 0.2, 0.2}, Specular: 0.04, Shininess: 128}
}

// materialPalette deduplicates acMaterial values by canonical key,
// with DefaultWhite always occupying index 0 (spec §4.11).
type materialPalette struct {
	byKey []string
	byIdx []acMaterial
	index map[string]int
}

func newPalette() *materialPalette {
	p := &materialPalette{index: make(map[string]int)}
	p.add(defaultWhite())
	return p
}

func (p *materialPalette) add(m acMaterial) int {
	k := m.key()
	if idx, ok := p.index[k]; ok {
		return idx
	}
	idx := len(p.byIdx)
	p.index[k] = idx
	p.byIdx = append(p.byIdx, m)
	p.byKey = append(p.byKey, k)
	return idx
}

// polyObject is one OBJECT poly's fully materialized geometry.
type polyObject struct {
	name      string
	texture   string
	materials []int // per-triangle material index
	verts     []scene.Vec3
	uvs       [][3][2]float64 // per-triangle per-corner UV
	tris      [][3]int        // vertex-pool indices per triangle
	vertexIdx map[quantizedVertex]int
	triMat    []int
}

func newPolyObject(name, tex string) *polyObject {
	return &polyObject{name: name, texture: tex, vertexIdx: make(map[quantizedVertex]int)}
}

func (o *polyObject) vertexIndex(v scene.Vec3) int {
	// AC3D vertex convention: (-x, y, z), spec §4.11.
	flipped := scene.Vec3{X: -v.X, Y: v.Y, Z: v.Z}
	q := quantize(flipped)
	if idx, ok := o.vertexIdx[q]; ok {
		return idx
	}
	idx := len(o.verts)
	o.verts = append(o.verts, flipped)
	o.vertexIdx[q] = idx
	return idx
}

// Writer accumulates poly objects across a tile's instances, then
// serializes them in one AC3D ASCII v11 file.
type Writer struct {
	palette   *materialPalette
	objects   []*polyObject
	tex       *texture.Registry
	onWarning func(error)
}

// NewWriter constructs an empty tile writer. reg backs the
// disambiguated texture copy registry (spec §3); pass a fresh
// texture.NewRegistry() per tile. onWarning receives IOCopyFailure
// diagnostics when a referenced texture can't be copied; a nil
// onWarning silently drops them.
func NewWriter(reg *texture.Registry, onWarning func(error)) *Writer {
	if onWarning == nil {
		onWarning = func(error) {}
	}
	return &Writer{palette: newPalette(), tex: reg, onWarning: onWarning}
}

// AddInstance appends one (model, primitive) instantiation: mb's
// geometry, with each position transformed by world here, becomes one
// OBJECT poly.
func (w *Writer) AddInstance(name string, mb *scene.MeshBuilder, world scene.Mat4) {
	mat := mapMaterial(mb.Material)
	matIdx := w.palette.add(mat)

	texName := ""
	if mb.Material.BaseColorTexture != "" {
		texName = filepath.Base(mb.Material.BaseColorTexture)
	}

	obj := newPolyObject(sanitizeName(name), texName)
	for t := 0; t+3 <= len(mb.Indices); t += 3 {
		var tri [3]int
		var uv [3][2]float64
		for c := 0; c < 3; c++ {
			vi := mb.Indices[t+c]
			p := transformPoint(mb.Positions[vi], world)
			tri[c] = obj.vertexIndex(p)
			if int(vi) < len(mb.UVs) {
				uv[c] = [2]float64{mb.UVs[vi].U, 1 - mb.UVs[vi].V}
			}
		}
		obj.tris = append(obj.tris, tri)
		obj.uvs = append(obj.uvs, uv)
		obj.triMat = append(obj.triMat, matIdx)
	}
	if len(obj.tris) > 0 {
		w.objects = append(w.objects, obj)
	}
}

func transformPoint(p scene.Vec3, m scene.Mat4) scene.Vec3 {
	return scene.Vec3{
		X: m[0]*p.X + m[4]*p.Y + m[8]*p.Z + m[12],
		Y: m[1]*p.X + m[5]*p.Y + m[9]*p.Z + m[13],
		Z: m[2]*p.X + m[6]*p.Y + m[10]*p.Z + m[14],
	}
}

func sanitizeName(name string) string {
	return strings.ReplaceAll(name, `"`, "")
}

// WriteToFile serializes the accumulated objects to path, copying any
// referenced textures into destDir (spec §4.11's ordering: materials
// block, world object, then N poly children).
func (w *Writer) WriteToFile(path, destDir string, textureSources map[string]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("acemit: creating %s: %w", path, err)
	}
	defer f.Close()

	fmt.Fprintln(f, "AC3Db")
	for _, m := range w.palette.byIdx {
		fmt.Fprintf(f, "MATERIAL \"\" rgb %.3f %.3f %.3f  amb %.3f %.3f %.3f  emis %.3f %.3f %.3f  spec %.3f %.3f %.3f  shi %d  trans %.3f\n",
			m.Diffuse[0], m.Diffuse[1], m.Diffuse[2],
			m.Ambient[0], m.Ambient[1], m.Ambient[2],
			m.Emissive[0], m.Emissive[1], m.Emissive[2],
			m.Specular, m.Specular, m.Specular,
			m.Shininess, m.Transparency)
	}

	fmt.Fprintln(f, "OBJECT world")
	fmt.Fprintf(f, "name \"world\"\n")
	fmt.Fprintf(f, "kids %d\n", len(w.objects))

	for _, obj := range w.objects {
		if err := writePoly(f, obj, destDir, textureSources, w.tex, w.palette, w.onWarning); err != nil {
			return err
		}
	}
	return nil
}

func writePoly(f *os.File, obj *polyObject, destDir string, textureSources map[string]string, reg *texture.Registry, palette *materialPalette, onWarning func(error)) error {
	fmt.Fprintln(f, "OBJECT poly")
	fmt.Fprintf(f, "name %q\n", obj.name)
	if obj.texture != "" {
		destName := obj.texture
		if reg != nil && textureSources != nil {
			if src, ok := textureSources[obj.texture]; ok {
				if copied, err := reg.CopyInto(src, destDir); err == nil {
					destName = copied
				} else {
					// Copy failures are swallowed with a log entry
					// (spec §4.11: "copy failures are swallowed with a
					// log entry"), not propagated up to WriteToFile.
					onWarning(logging.NewDiagnosticError(logging.KindIOCopyFailure, src, 0, obj.name, err))
				}
			}
		}
		fmt.Fprintf(f, "texture %q\n", destName)
	}
	fmt.Fprintln(f, "crease 30.0")
	fmt.Fprintf(f, "numvert %d\n", len(obj.verts))
	for _, v := range obj.verts {
		fmt.Fprintf(f, "%.6f %.6f %.6f\n", v.X, v.Y, v.Z)
	}
	fmt.Fprintf(f, "numsurf %d\n", len(obj.tris))
	for i, tri := range obj.tris {
		flags := 0x10
		if palette.byIdx[obj.triMat[i]].DoubleSided {
			flags |= 0x20
		}
		fmt.Fprintf(f, "SURF 0x%x\n", flags)
		fmt.Fprintf(f, "mat %d\n", obj.triMat[i])
		fmt.Fprintf(f, "refs 3\n")
		uv := obj.uvs[i]
		for c := 0; c < 3; c++ {
			fmt.Fprintf(f, "%d %.6f %.6f\n", tri[c], uv[c][0], uv[c][1])
		}
	}
	fmt.Fprintln(f, "kids 0")
	return nil
}
