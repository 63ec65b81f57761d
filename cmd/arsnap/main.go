package main

import (
	"flag"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"ar-tryon/internal/artwork"
	"ar-tryon/internal/batch"
	"ar-tryon/internal/camera"
	"ar-tryon/internal/config"
	"ar-tryon/internal/gesture"
	"ar-tryon/internal/logger"
	"ar-tryon/internal/snapshot"
	"ar-tryon/internal/transform"
)

func main() {
	configFile := flag.String("config", "", "Path to config.json file")
	dataDir := flag.String("data", "", "Base directory for relative paths (default: cwd)")
	framePath := flag.String("frame", "", "Background frame image (default: synthetic test pattern)")
	facingFlag := flag.String("facing", "environment", "Camera facing mode: user or environment")
	painting := flag.String("painting", "1", "Painting id to place")
	scriptPath := flag.String("script", "", "Gesture script JSON to replay")
	display := flag.String("display", "", "Preview display size WxH the script was recorded at (default: frame size)")
	out := flag.String("out", "", "Output file (default: ar-preview.<format>)")
	all := flag.Bool("all", false, "Export every catalog painting into -output with a manifest")
	outputDir := flag.String("output", "", "Output directory for -all (default: snapshots)")
	format := flag.String("format", "", "Snapshot format: png or webp")
	fidelity := flag.String("fidelity", "", "Artwork fidelity: approximate or exact")
	caption := flag.Bool("caption", false, "Stamp painting id and price on the export")
	workers := flag.Int("workers", 0, "Number of worker goroutines for -all (default: NumCPU)")

	flag.Parse()

	var cfg config.Config
	if *configFile != "" {
		var err error
		cfg, err = config.Load(*configFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
	}
	cfg.Resolve(config.Flags{
		BaseDir:   *dataDir,
		OutputDir: *outputDir,
		Format:    *format,
		Fidelity:  *fidelity,
		Workers:   *workers,
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *caption {
		cfg.Caption = true
	}

	lc := logger.DefaultConfig()
	lc.Level = cfg.LogLevel
	log, err := logger.New(lc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	facing, err := camera.ParseFacingMode(*facingFlag)
	if err != nil {
		fail(err)
	}

	var catalog artwork.Catalog = artwork.DefaultCatalog()
	if cfg.CatalogPath != "" {
		c, err := artwork.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			fail(err)
		}
		catalog = c
	}

	var frame image.Image
	if *framePath != "" {
		frame, err = camera.DecodeFile(*framePath)
		if err != nil {
			fail(err)
		}
	} else {
		frame = camera.TestPattern(cfg.Width, cfg.Height, facing)
	}

	disp := frame.Bounds().Size()
	if *display != "" {
		if _, err := fmt.Sscanf(*display, "%dx%d", &disp.X, &disp.Y); err != nil {
			fail(fmt.Errorf("bad -display %q: %w", *display, err))
		}
	}

	state := transform.Identity()
	if *scriptPath != "" {
		sc, err := gesture.LoadScript(*scriptPath)
		if err != nil {
			fail(err)
		}
		if state, err = sc.Replay(state); err != nil {
			fail(err)
		}
	}

	snapFormat, _ := snapshot.ParseFormat(cfg.SnapshotFormat)
	fid, _ := snapshot.ParseFidelity(cfg.Fidelity)
	exporter := snapshot.NewExporter(snapshot.Options{
		Format:   snapFormat,
		Fidelity: fid,
		Caption:  cfg.Caption,
	}, artwork.NewCache(cfg.UploadsDir))

	if *all {
		runAll(cfg, log, exporter, catalog, frame, facing, state, disp)
		return
	}

	ref, err := catalog.Lookup(*painting)
	if err != nil {
		fail(err)
	}
	snap := exporter.Export(snapshot.Request{
		Frame:   frame,
		Facing:  facing,
		Artwork: ref,
		State:   state,
		Display: disp,
	})

	path := *out
	if path == "" {
		path = snap.Name
	}
	f, err := os.Create(path)
	if err != nil {
		fail(err)
	}
	if err := snap.Encode(f); err != nil {
		f.Close()
		fail(err)
	}
	if err := f.Close(); err != nil {
		fail(err)
	}
	log.Info("snapshot written",
		zap.String("path", path),
		zap.String("painting", ref.ID),
		zap.Float64("scale", state.Scale),
		zap.Float64("rotation", state.Rotation))
}

func runAll(cfg config.Config, log *zap.Logger, exporter *snapshot.Exporter, catalog artwork.Catalog,
	frame image.Image, facing camera.FacingMode, state transform.State, disp image.Point) {
	items := catalog.List()
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		fail(err)
	}
	log.Info("batch export", zap.Int("paintings", len(items)), zap.Int("workers", cfg.Workers), zap.String("output", cfg.OutputDir))

	start := time.Now()
	results := batch.Run(batch.Config{
		OutputDir: cfg.OutputDir,
		Exporter:  exporter,
		Frame:     frame,
		Facing:    facing,
		State:     state,
		Display:   disp,
		Workers:   cfg.Workers,
		Logger:    log,
	}, items)

	success := 0
	for _, r := range results {
		if r.Success {
			success++
		}
	}

	manifestPath := filepath.Join(cfg.OutputDir, "manifest.json")
	if err := batch.WriteManifest(manifestPath, items, results); err != nil {
		fail(err)
	}
	log.Info("done",
		zap.Int("exported", success),
		zap.Int("total", len(items)),
		zap.Duration("elapsed", time.Since(start)),
		zap.String("manifest", manifestPath))
	if success < len(items) {
		os.Exit(1)
	}
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
