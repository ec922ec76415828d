// Package convert wires the two-pass conversion pipeline together:
// pass 1 decodes every BGL's placements and airports, pass 2 builds
// the model index, and a final tile loop assembles and emits each
// tile's outputs (spec §4.13, tying together §4.1-§4.12).
package convert

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/GrainArc/sceneryforge/acemit"
	"github.com/GrainArc/sceneryforge/airport"
	"github.com/GrainArc/sceneryforge/assemble"
	"github.com/GrainArc/sceneryforge/bgl"
	"github.com/GrainArc/sceneryforge/config"
	"github.com/GrainArc/sceneryforge/gltfemit"
	"github.com/GrainArc/sceneryforge/internal/logging"
	"github.com/GrainArc/sceneryforge/modelindex"
	"github.com/GrainArc/sceneryforge/placement"
	"github.com/GrainArc/sceneryforge/scene"
	"github.com/GrainArc/sceneryforge/stg"
	"github.com/GrainArc/sceneryforge/texture"
	"github.com/GrainArc/sceneryforge/tiling"
)

// groundHalfExtentMeters sizes the flat satellite backdrop quad
// (spec §4.18); large enough to underlie a tile's whole footprint at
// the zoom levels the <tileIndex>.webp basemap is served at.
const groundHalfExtentMeters = 3000.0

// extractedArchiveDirName is the hidden subdirectory ExtractBundledArchives
// unpacks into, kept inside InputRoot so texture.Resolver's recursive
// walk finds the extracted files without a second search root.
const extractedArchiveDirName = ".sceneryforge_extracted"

// Observer receives out-of-band progress from a running Pipeline
// (spec §4.13). A caller (CLI, future GUI, test harness) can subscribe
// without the pipeline depending on any UI or transport library.
type Observer interface {
	OnProgress(msg string)
	OnTileComplete(tileIndex uint32)
	OnWarning(err error)
}

// NoopObserver is the zero-value default Observer.
type NoopObserver struct{}

func (NoopObserver) OnProgress(string)     {}
func (NoopObserver) OnTileComplete(uint32) {}
func (NoopObserver) OnWarning(error)       {}

// Stats aggregates counters over one ConvertScenery run.
type Stats struct {
	FilesScanned   int64
	RecordsDecoded int64
	TilesEmitted   int64
	TexturesCopied int64
	Warnings       int64
}

// Pipeline is the ConvertScenery entry point (spec §4.13), a value
// type constructed with its collaborators rather than reading globals,
// mirroring the teacher's service-struct-plus-interface-collaborator
// shape (TileProxyService composing a cache, an HTTP client, and a
// coordinate converter behind narrow fields).
type Pipeline struct {
	Config   config.Config
	Terrain  placement.ElevationSource
	Observer Observer
	Logger   *logging.Logger

	// Flags carries AbortAndCancel/AbortAndSave; the same flags are
	// handed to every tile's assembler so they are seen between models.
	assemble.Flags

	stats *Stats
}

// NewPipeline constructs a Pipeline. A nil obs installs NoopObserver.
func NewPipeline(cfg config.Config, terrain placement.ElevationSource, obs Observer) *Pipeline {
	if obs == nil {
		obs = NoopObserver{}
	}
	if terrain == nil {
		terrain = noopElevation{}
	}
	return &Pipeline{
		Config:   cfg,
		Terrain:  terrain,
		Observer: obs,
		Logger:   logging.New(cfg.LogDir, cfg.LogLevel),
	}
}

type noopElevation struct{}

func (noopElevation) GetElevation(lat, lon float64) (float64, error) { return 0, nil }

// Run executes the full two-pass conversion. It returns InputPathMissing
// wrapped as the only error that propagates from the core (spec §7);
// all other tolerated conditions are logged via the Observer/Logger
// and swallowed.
func (p *Pipeline) Run(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	p.stats = stats

	info, err := os.Stat(p.Config.InputRoot)
	if err != nil || !info.IsDir() {
		return stats, fmt.Errorf("convert: input path missing: %s", p.Config.InputRoot)
	}

	if warnings, err := texture.ExtractBundledArchives(p.Config.InputRoot, filepath.Join(p.Config.InputRoot, extractedArchiveDirName)); err != nil {
		p.warn(fmt.Errorf("convert: extracting bundled archives: %w", err))
	} else {
		for _, w := range warnings {
			p.warn(fmt.Errorf("%s", w))
		}
	}

	files, err := enumerateBGLs(p.Config.InputRoot)
	if err != nil {
		return stats, fmt.Errorf("convert: input path missing: %w", err)
	}

	placed := placement.NewIndex()

	// Pass 1: placements and airports.
	for _, f := range files {
		if atomic.LoadInt32(&p.AbortAndCancel) != 0 {
			return stats, nil
		}
		p.scanPass1(f, placed, stats)
	}
	p.Observer.OnProgress(fmt.Sprintf("pass 1 complete: %d GUIDs placed", len(placed.GUIDs())))

	// Pass 2: model index.
	var refs []modelindex.ModelReference
	for _, f := range files {
		if atomic.LoadInt32(&p.AbortAndCancel) != 0 {
			return stats, nil
		}
		data, err := os.ReadFile(f)
		if err != nil {
			p.warn(fmt.Errorf("convert: reading %s: %w", f, err))
			continue
		}
		err = modelindex.ScanFile(f, data, placed, p.warn, func(ref modelindex.ModelReference) {
			refs = append(refs, ref)
		})
		if err != nil {
			p.warn(err)
		}
	}
	byTile := modelindex.ByTile(refs, placed)
	p.Observer.OnProgress(fmt.Sprintf("pass 2 complete: %d tiles referenced", len(byTile)))

	tileIndexes := make([]uint32, 0, len(byTile))
	for idx := range byTile {
		tileIndexes = append(tileIndexes, idx)
	}
	sort.Slice(tileIndexes, func(i, j int) bool { return tileIndexes[i] < tileIndexes[j] })

	resolver := texture.NewResolver(p.Config.InputRoot, "")

	if p.Config.Parallelism > 1 {
		p.runTilesParallel(ctx, tileIndexes, byTile, placed, resolver, stats)
	} else {
		for _, tileIndex := range tileIndexes {
			if atomic.LoadInt32(&p.AbortAndCancel) != 0 {
				return stats, nil
			}
			p.assembleAndEmitTile(tileIndex, byTile[tileIndex], placed, resolver, stats)
			if atomic.LoadInt32(&p.AbortAndSave) != 0 {
				break
			}
		}
	}

	return stats, nil
}

func (p *Pipeline) runTilesParallel(ctx context.Context, tileIndexes []uint32, byTile map[uint32][]modelindex.ModelReference, placed *placement.Index, resolver *texture.Resolver, stats *Stats) {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(p.Config.Parallelism)
	for _, tileIndex := range tileIndexes {
		tileIndex := tileIndex
		g.Go(func() error {
			if atomic.LoadInt32(&p.AbortAndCancel) != 0 || atomic.LoadInt32(&p.AbortAndSave) != 0 {
				return nil
			}
			p.assembleAndEmitTile(tileIndex, byTile[tileIndex], placed, resolver, stats)
			return nil
		})
	}
	_ = g.Wait()
}

func (p *Pipeline) scanPass1(path string, placed *placement.Index, stats *Stats) {
	data, err := os.ReadFile(path)
	if err != nil {
		p.warn(fmt.Errorf("convert: reading %s: %w", path, err))
		return
	}
	atomic.AddInt64(&stats.FilesScanned, 1)

	w, err := bgl.New(data)
	if err != nil {
		p.Logger.Diagnostic(logging.KindMalformedHeader, path, 0, "header", err)
		p.warn(err)
		return
	}

	_ = w.Walk(logging.WithFile(path, p.warn), func(sub bgl.Subrecord) error {
		atomic.AddInt64(&stats.RecordsDecoded, 1)
		switch sub.ParentType {
		case bgl.RecordSceneryObject:
			lib, sim, err := placement.Decode(sub.Payload, p.Terrain)
			if err != nil {
				kind := logging.KindCorruptProperty
				switch err.(type) {
				case placement.ErrTruncatedRecord:
					kind = logging.KindTruncatedRecord
				case placement.ErrUnknownSubrecord:
					kind = logging.KindUnknownSubrecord
				}
				p.Logger.Diagnostic(kind, path, sub.Offset, "SceneryObject", err)
				return nil
			}
			if lib != nil {
				placed.Add(lib)
			}
			if sim != nil {
				placed.AddSimObject(sim)
			}
		case bgl.RecordAirport:
			apt, err := airport.Decode(sub.Payload, p.Terrain, p.warn)
			if err != nil {
				p.Logger.Diagnostic(logging.KindTruncatedRecord, path, sub.Offset, "Airport", err)
				return nil
			}
			for _, e := range apt.EmbeddedPlacements {
				if e.Library != nil {
					placed.Add(e.Library)
				}
				if e.SimObj != nil {
					placed.AddSimObject(e.SimObj)
				}
			}
		}
		return nil
	})
}

func (p *Pipeline) assembleAndEmitTile(tileIndex uint32, refs []modelindex.ModelReference, placed *placement.Index, resolver *texture.Resolver, stats *Stats) {
	lat, lon, err := tiling.GetLatLonOfTile(tiling.Index(tileIndex))
	if err != nil {
		p.warn(err)
		return
	}

	var centers []assemble.PlacementTransform
	for _, guid := range placed.GUIDs() {
		for _, pl := range placed.ForGUID(guid) {
			if uint32(tiling.GetTileIndex(pl.Latitude, pl.Longitude)) == tileIndex {
				centers = append(centers, assemble.PlacementTransform{Lat: pl.Latitude, Lon: pl.Longitude, Alt: pl.Altitude})
			}
		}
	}
	origin := assemble.TileCenter(centers)
	if len(centers) == 0 {
		// No library placements landed in this tile (sim-object-only
		// tile); fall back to the tile's own south-west corner so the
		// STG line still lands in a sane place.
		origin = assemble.Origin{Lat: lat, Lon: lon}
	}

	assembler := assemble.NewTileAssembler(resolver, p.warn)
	result := assembler.AssembleTile(tileIndex, refs, placed, origin, p.Config.EmitGltf, p.Config.EmitAc3d, &p.Flags)
	if result.Cancelled {
		return
	}

	tileDir := p.tileOutputDir(origin.Lat, origin.Lon)
	if err := os.MkdirAll(tileDir, 0o755); err != nil {
		p.warn(fmt.Errorf("convert: creating %s: %w", tileDir, err))
		return
	}

	if p.Config.SatelliteRoot != "" {
		p.addGroundBasemap(tileIndex, tileDir, result)
	}

	var gltfWritten, acWritten bool
	if result.GltfScene != nil && len(result.GltfScene.Meshes) > 0 {
		if _, err := gltfemit.Write(result.GltfScene, tileDir, tileIndex); err != nil {
			p.warn(err)
		} else {
			gltfWritten = true
		}
	}
	if result.AcScene != nil && len(result.AcScene.Meshes) > 0 {
		reg := texture.NewRegistry()
		w := acemit.NewWriter(reg, p.warn)
		for i, mb := range result.AcScene.Meshes {
			w.AddInstance(fmt.Sprintf("tile_%d_obj_%d", tileIndex, i), mb, result.AcScene.Transforms[i])
		}
		acPath := filepath.Join(tileDir, fmt.Sprintf("%d.ac", tileIndex))
		textureSources := map[string]string{}
		for _, mb := range result.AcScene.Meshes {
			if mb.Material.BaseColorTexture != "" {
				textureSources[filepath.Base(mb.Material.BaseColorTexture)] = mb.Material.BaseColorTexture
			}
		}
		if err := w.WriteToFile(acPath, tileDir, textureSources); err != nil {
			p.warn(err)
		} else {
			acWritten = true
		}
	}

	if !gltfWritten && !acWritten {
		return // no output for an empty tile, spec §8 edge case
	}

	format := stg.FormatGltfOnly
	switch {
	case gltfWritten && acWritten:
		format = stg.FormatBoth
		_ = stg.WriteSelector(filepath.Join(tileDir, fmt.Sprintf("%d.xml", tileIndex)), stg.XmlModel{
			AcFile:   fmt.Sprintf("%d.ac", tileIndex),
			GltfFile: fmt.Sprintf("%d.gltf", tileIndex),
		})
	case acWritten:
		format = stg.FormatAcOnly
	}
	if err := stg.WriteLine(filepath.Join(tileDir, fmt.Sprintf("%d.stg", tileIndex)), tileIndex, format, origin.Lon, origin.Lat, origin.Alt); err != nil {
		p.warn(err)
	}

	atomic.AddInt64(&stats.TilesEmitted, 1)
	p.Observer.OnTileComplete(tileIndex)
}

// addGroundBasemap fetches the tile's satellite basemap image and
// appends a flat ground-plane quad textured with it to whichever of
// the tile's neutral scenes were produced, ahead of the emit step
// (spec §4.18). Fetch failures are non-fatal: the tile still emits
// without the backdrop.
func (p *Pipeline) addGroundBasemap(tileIndex uint32, tileDir string, result assemble.Result) {
	texPath, err := texture.FetchGroundTexture(p.Config.SatelliteRoot, tileIndex, tileDir)
	if err != nil {
		p.warn(fmt.Errorf("convert: tile %d satellite basemap: %w", tileIndex, err))
		return
	}
	ground := texture.BuildGroundMesh(texPath, groundHalfExtentMeters)
	if result.GltfScene != nil {
		result.GltfScene.Add(ground, scene.Identity())
	}
	if result.AcScene != nil {
		result.AcScene.Add(ground, scene.Identity())
	}
}

func (p *Pipeline) tileOutputDir(lat, lon float64) string {
	b10, b1 := tiling.OutputBuckets(lat, lon)
	return filepath.Join(p.Config.OutputRoot, "Objects", b10, b1)
}

func (p *Pipeline) warn(err error) {
	if err == nil {
		return
	}
	if p.stats != nil {
		atomic.AddInt64(&p.stats.Warnings, 1)
	}
	var diag *logging.DiagnosticError
	if errors.As(err, &diag) {
		p.Logger.Diagnostic(diag.Kind, diag.File, diag.Offset, diag.RecordType, diag.Err)
	}
	p.Observer.OnWarning(err)
}

func enumerateBGLs(root string) ([]string, error) {
	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".bgl") {
			out = append(out, path)
		}
		return nil
	})
	return out, err
}
