package assemble

import (
	"fmt"
	"os"
	"sort"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/GrainArc/sceneryforge/gltfimport"
	"github.com/GrainArc/sceneryforge/internal/logging"
	"github.com/GrainArc/sceneryforge/modelindex"
	"github.com/GrainArc/sceneryforge/placement"
	"github.com/GrainArc/sceneryforge/riff"
	"github.com/GrainArc/sceneryforge/scene"
	"github.com/GrainArc/sceneryforge/tiling"
)

// FileReader reads a byte range from a source file. Abstracted so
// tests can substitute an in-memory reader instead of touching disk.
type FileReader interface {
	ReadRange(path string, offset, size int) ([]byte, error)
}

// OSFileReader reads directly from the filesystem.
type OSFileReader struct{}

func (OSFileReader) ReadRange(path string, offset, size int) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, int64(offset)); err != nil {
		return nil, fmt.Errorf("assemble: reading %s at %d: %w", path, offset, err)
	}
	return buf, nil
}

// Flags is the two-phase cooperative abort protocol shared across the
// whole conversion pipeline (spec §5): a controller goroutine sets
// either bit; the model loop polls both between units of work only.
type Flags struct {
	AbortAndCancel int32
	AbortAndSave   int32
}

func (f *Flags) cancelled() bool { return f != nil && atomic.LoadInt32(&f.AbortAndCancel) != 0 }
func (f *Flags) saving() bool    { return f != nil && atomic.LoadInt32(&f.AbortAndSave) != 0 }

// TileAssembler builds a tile's merged glTF and/or AC3D scenes from
// its model references and placements (spec §4.9).
type TileAssembler struct {
	Reader   FileReader
	Resolver gltfimport.TextureResolver
	OnWarning func(error)
}

// NewTileAssembler constructs an assembler reading from disk.
func NewTileAssembler(resolver gltfimport.TextureResolver, onWarning func(error)) *TileAssembler {
	if onWarning == nil {
		onWarning = func(error) {}
	}
	return &TileAssembler{Reader: OSFileReader{}, Resolver: resolver, OnWarning: onWarning}
}

// Result holds the two possible accumulated scenes for one tile, and
// whether AbortAndSave truncated the model loop.
type Result struct {
	GltfScene *scene.NeutralScene
	AcScene   *scene.NeutralScene
	Truncated bool
	Cancelled bool
}

// AssembleTile builds tileIndex's scene(s) from refs, ordered
// descending by byte size (spec §4.9: "favor heavier models first").
func (a *TileAssembler) AssembleTile(
	tileIndex uint32,
	refs []modelindex.ModelReference,
	placed *placement.Index,
	origin Origin,
	emitGltf, emitAc3d bool,
	flags *Flags,
) Result {
	sorted := append([]modelindex.ModelReference(nil), refs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ByteSize > sorted[j].ByteSize })

	var res Result
	if emitGltf {
		res.GltfScene = &scene.NeutralScene{}
	}
	if emitAc3d {
		res.AcScene = &scene.NeutralScene{}
	}

	imported := make(map[uuid.UUID]*scene.NeutralScene)
	importer := gltfimport.New(a.Resolver)
	importer.OnWarning = a.OnWarning

	for _, ref := range sorted {
		if flags.cancelled() {
			res.Cancelled = true
			return res
		}
		if flags.saving() {
			res.Truncated = true
			break
		}

		modelScene, ok := imported[ref.GUID]
		if !ok {
			var err error
			modelScene, err = a.importModel(importer, ref)
			if err != nil {
				a.OnWarning(fmt.Errorf("assemble: tile %d guid %s: %w", tileIndex, ref.GUID, err))
				continue
			}
			imported[ref.GUID] = modelScene
		}
		if modelScene == nil {
			continue
		}

		for _, p := range placed.ForGUID(ref.GUID) {
			if !placementInTile(p, tileIndex) {
				continue
			}
			pt := PlacementTransform{
				Lat: p.Latitude, Lon: p.Longitude, Alt: p.Altitude,
				Pitch: p.Pitch, Bank: p.Bank, Heading: p.Heading, Scale: p.Scale,
			}
			if res.GltfScene != nil {
				m := GltfMatrix(pt, origin)
				instance(res.GltfScene, modelScene, m, a.OnWarning)
			}
			if res.AcScene != nil {
				m := AcMatrix(pt, origin)
				instance(res.AcScene, modelScene, m, a.OnWarning)
			}
		}
	}

	return res
}

func (a *TileAssembler) importModel(importer *gltfimport.Importer, ref modelindex.ModelReference) (*scene.NeutralScene, error) {
	payload, err := a.Reader.ReadRange(ref.SourceFile, ref.ByteOffset, ref.ByteSize)
	if err != nil {
		return nil, err
	}
	model, err := riff.Walk(payload)
	if err != nil {
		return nil, err
	}
	if model.GLB == nil {
		return nil, fmt.Errorf("no GLB blob found in RIFF payload")
	}
	return importer.ImportGLB(model.GLB)
}

func instance(dest, src *scene.NeutralScene, placementMatrix scene.Mat4, onWarning func(error)) {
	for i, mb := range src.Meshes {
		world := placementMatrix.Mul(src.Transforms[i])
		if !world.IsFinite() {
			onWarning(logging.NewDiagnosticError(logging.KindTransformInvalid, "", i, "instance",
				fmt.Errorf("assemble: non-finite placement transform for mesh %d", i)))
			continue
		}
		dest.Add(mb, world)
	}
}

func placementInTile(p *placement.LibraryPlacement, tileIndex uint32) bool {
	return uint32(tiling.GetTileIndex(p.Latitude, p.Longitude)) == tileIndex
}
