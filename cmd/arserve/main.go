package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"ar-tryon/internal/arsession"
	"ar-tryon/internal/artwork"
	"ar-tryon/internal/camera"
	"ar-tryon/internal/compositor"
	"ar-tryon/internal/config"
	"ar-tryon/internal/logger"
	"ar-tryon/internal/server"
	"ar-tryon/internal/snapshot"
)

func main() {
	configFile := flag.String("config", "", "Path to config.json file")
	addr := flag.String("addr", "", "Listen address (default :3000, or $PORT)")
	dataDir := flag.String("data", "", "Base directory for relative paths (default: cwd)")
	cam := flag.String("camera", "", "Camera device: synthetic or dir")
	frames := flag.String("frames", "", "Directory with user/environment still frames for -camera dir")
	format := flag.String("format", "", "Snapshot format: png or webp")
	fidelity := flag.String("fidelity", "", "Snapshot artwork fidelity: approximate or exact")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")

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
		Addr:     *addr,
		BaseDir:  *dataDir,
		Camera:   *cam,
		FrameDir: *frames,
		Format:   *format,
		Fidelity: *fidelity,
		LogLevel: *logLevel,
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	lc := logger.DefaultConfig()
	if cfg.LogFormat == "json" {
		lc = logger.ProductionConfig()
	}
	lc.Level = cfg.LogLevel
	log, err := logger.New(lc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	catalog, err := loadCatalog(cfg)
	if err != nil {
		return err
	}
	bitmaps := artwork.NewCache(cfg.UploadsDir)

	var device camera.Device = &camera.SyntheticDevice{}
	if cfg.Camera == "dir" {
		device = camera.DirDevice{Dir: cfg.FrameDir}
	}

	format, _ := snapshot.ParseFormat(cfg.SnapshotFormat)
	fid, _ := snapshot.ParseFidelity(cfg.Fidelity)
	exporter := snapshot.NewExporter(snapshot.Options{
		Format:   format,
		Fidelity: fid,
		Caption:  cfg.Caption,
	}, bitmaps)

	sessions := arsession.NewRegistry(arsession.Options{
		Device:     device,
		Width:      cfg.Width,
		Height:     cfg.Height,
		Exporter:   exporter,
		Compositor: compositor.New(bitmaps),
		Logger:     log.Named("ar"),
	})
	defer sessions.CloseAll()

	srv := server.New(catalog, sessions, server.Options{CORSOrigins: cfg.CORSOrigins, Logger: log})
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", cfg.Addr),
			zap.String("camera", cfg.Camera),
			zap.Int("paintings", len(catalog.List())),
			zap.String("snapshot_format", string(format)),
			zap.String("fidelity", string(fid)))
		errc <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Int("sessions", sessions.Len()))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func loadCatalog(cfg config.Config) (artwork.Catalog, error) {
	if cfg.CatalogPath == "" {
		return artwork.DefaultCatalog(), nil
	}
	c, err := artwork.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	return c, nil
}
