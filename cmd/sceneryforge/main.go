// Command sceneryforge converts an MSFS scenery tree into FlightGear
// tile output (glTF and/or AC3D), driven entirely by flags and an
// optional XML config file (spec §4.13, §4.14).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/GrainArc/sceneryforge/config"
	"github.com/GrainArc/sceneryforge/convert"
	"github.com/GrainArc/sceneryforge/placement"
	"github.com/GrainArc/sceneryforge/terrain"
)

var (
	inputDir      = flag.String("input", "", "MSFS scenery input root")
	outputDir     = flag.String("output", "", "FlightGear scenery output root")
	configPath    = flag.String("config", "", "path to sceneryforge.xml config file")
	emitGltf      = flag.Bool("gltf", true, "emit glTF output")
	emitAc3d      = flag.Bool("ac3d", false, "emit AC3D output")
	terrainURL    = flag.String("terrain-url", "", "base URL of a TerraSync-compatible terrain HTTP source")
	terrainDir    = flag.String("terrain-dir", "", "local TerraSync directory")
	logLevel      = flag.String("loglevel", "info", "logging level: debug, info, warn, error")
	logDir        = flag.String("logdir", ".", "log file directory")
	parallelism   = flag.Int("parallelism", 1, "number of tiles to assemble concurrently")
	noTerrain     = flag.Bool("no-terrain", false, "skip terrain sampling entirely (IsAboveAGL altitudes left unresolved)")
	satelliteRoot = flag.String("satellite-root", "", "base URL of a satellite basemap tile server; empty disables ground-texture backdrops")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "sceneryforge: config: %v (continuing with defaults)\n", err)
		}
		cfg = loaded
	}
	applyFlagOverrides(&cfg)

	if cfg.InputRoot == "" || cfg.OutputRoot == "" {
		fmt.Fprintln(os.Stderr, "sceneryforge: -input and -output are required")
		flag.Usage()
		os.Exit(2)
	}

	term := buildTerrainService(cfg)
	obs := consoleObserver{}

	pipeline := convert.NewPipeline(cfg, term, obs)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go handleSignals(sigCh, pipeline)

	stats, err := pipeline.Run(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "sceneryforge: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("sceneryforge: done. files=%d records=%d tiles=%d textures=%d warnings=%d\n",
		stats.FilesScanned, stats.RecordsDecoded, stats.TilesEmitted, stats.TexturesCopied, stats.Warnings)
}

// handleSignals implements the two-phase abort protocol at the process
// boundary: the first interrupt requests a graceful stop that still
// flushes the tile in progress, the second requests immediate exit.
func handleSignals(sigCh <-chan os.Signal, p *convert.Pipeline) {
	<-sigCh
	fmt.Fprintln(os.Stderr, "sceneryforge: caught signal, finishing current tile and stopping (press again to abort immediately)...")
	atomic.StoreInt32(&p.AbortAndSave, 1)

	<-sigCh
	fmt.Fprintln(os.Stderr, "sceneryforge: caught second signal, aborting immediately")
	atomic.StoreInt32(&p.AbortAndCancel, 1)
}

func applyFlagOverrides(cfg *config.Config) {
	if *inputDir != "" {
		cfg.InputRoot = *inputDir
	}
	if *outputDir != "" {
		cfg.OutputRoot = *outputDir
	}
	cfg.EmitGltf = *emitGltf
	cfg.EmitAc3d = *emitAc3d
	if *terrainURL != "" {
		cfg.TerrainProvider = "http"
		cfg.TerrainBaseURL = *terrainURL
	}
	if *terrainDir != "" {
		cfg.TerrainProvider = "local"
		cfg.TerrainLocalDir = *terrainDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logDir != "" {
		cfg.LogDir = *logDir
	}
	if *parallelism > 0 {
		cfg.Parallelism = *parallelism
	}
	if *satelliteRoot != "" {
		cfg.SatelliteRoot = *satelliteRoot
	}
}

func buildTerrainService(cfg config.Config) placement.ElevationSource {
	if *noTerrain {
		return terrain.Stub{}
	}
	var provider terrain.Provider
	switch cfg.TerrainProvider {
	case "local":
		provider = &terrain.LocalProvider{Root: cfg.TerrainLocalDir}
	default:
		if cfg.TerrainBaseURL == "" {
			return terrain.Stub{}
		}
		provider = terrain.NewHTTPProvider(cfg.TerrainBaseURL)
	}
	svc := terrain.NewService(provider)
	if cfg.CacheDB != "" {
		if store, err := terrain.OpenPersistentStore(cfg.CacheDB); err == nil {
			svc.Persist = store
		} else {
			fmt.Fprintf(os.Stderr, "sceneryforge: terrain cache: %v (continuing without persistence)\n", err)
		}
	}
	return svc
}

// consoleObserver prints progress to stdout/stderr, the teacher's own
// approach to CLI feedback (plain fmt.Println calls rather than a
// dedicated UI toolkit).
type consoleObserver struct{}

func (consoleObserver) OnProgress(msg string)           { fmt.Println("sceneryforge:", msg) }
func (consoleObserver) OnTileComplete(tileIndex uint32) {}
func (consoleObserver) OnWarning(err error)             { fmt.Fprintln(os.Stderr, "sceneryforge: warning:", err) }
