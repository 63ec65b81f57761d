// Package batch renders try-on snapshots for a whole catalog.
package batch

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"ar-tryon/internal/artwork"
	"ar-tryon/internal/camera"
	"ar-tryon/internal/logger"
	"ar-tryon/internal/snapshot"
	"ar-tryon/internal/transform"
)

// Config holds all shared resources for a batch run.
type Config struct {
	OutputDir string
	Exporter  *snapshot.Exporter
	// Background frame shared by every render; nil exports over the
	// fallback background.
	Frame   image.Image
	Facing  camera.FacingMode
	State   transform.State
	Display image.Point
	Workers int
	// Interval between progress log lines; zero means 2s.
	Progress time.Duration
	Logger   *zap.Logger
}

// Result holds the outcome of processing one artwork.
type Result struct {
	ID      string
	Title   string
	Image   string
	Success bool
	Error   string
}

// Run exports one snapshot per artwork using a worker pool. Results keep
// the order of items.
func Run(cfg Config, items []artwork.Reference) []Result {
	log := logger.OrNop(cfg.Logger).Named("batch")
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	interval := cfg.Progress
	if interval <= 0 {
		interval = 2 * time.Second
	}

	total := len(items)
	results := make([]Result, total)
	var processed atomic.Int64

	start := time.Now()

	// Progress reporter
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if p := processed.Load(); p > 0 {
					rate := float64(p) / time.Since(start).Seconds()
					log.Info("progress", zap.Int64("done", p), zap.Int("total", total), zap.Float64("per_sec", rate))
				}
			}
		}
	}()

	itemChan := make(chan int, cfg.Workers*2)
	var wg sync.WaitGroup

	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range itemChan {
				results[idx] = processItem(cfg, items[idx])
				processed.Add(1)
			}
		}()
	}

	for i := range items {
		itemChan <- i
	}
	close(itemChan)

	wg.Wait()
	close(done)

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
			log.Warn("export failed", zap.String("artwork", r.ID), zap.String("error", r.Error))
		}
	}
	log.Info("batch finished", zap.Int("total", total), zap.Int("failed", failed), zap.Duration("elapsed", time.Since(start)))

	return results
}

func processItem(cfg Config, art artwork.Reference) Result {
	res := Result{ID: art.ID, Title: art.Title}

	snap := cfg.Exporter.Export(snapshot.Request{
		Frame:   cfg.Frame,
		Facing:  cfg.Facing,
		Artwork: art,
		State:   cfg.State,
		Display: cfg.Display,
	})

	rel := filepath.Join(safeName(art.ID), snap.Name)
	outPath := filepath.Join(cfg.OutputDir, rel)
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		res.Error = err.Error()
		return res
	}

	f, err := os.Create(outPath)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	defer f.Close()

	if err := snap.Encode(f); err != nil {
		res.Error = err.Error()
		return res
	}

	res.Image = filepath.ToSlash(rel)
	res.Success = true
	return res
}

// safeName keeps catalog ids from escaping the output directory.
func safeName(id string) string {
	name := filepath.Base(filepath.Clean("/" + id))
	if name == "/" || name == "." || name == "" {
		return fmt.Sprintf("artwork-%x", id)
	}
	return name
}
