package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Config holds server, camera and export settings.
type Config struct {
	// Server
	Addr        string   `json:"addr"`
	CORSOrigins []string `json:"cors_origins"`

	// Paths
	BaseDir     string `json:"base_dir"`
	CatalogPath string `json:"catalog"`
	UploadsDir  string `json:"uploads_dir"`
	FrameDir    string `json:"frame_dir"`
	OutputDir   string `json:"output_dir"`

	// Camera
	Camera string `json:"camera"` // synthetic, dir
	Width  int    `json:"width"`
	Height int    `json:"height"`

	// Export
	SnapshotFormat string `json:"snapshot_format"` // png, webp
	Fidelity       string `json:"fidelity"`        // approximate, exact
	Caption        bool   `json:"caption"`
	Workers        int    `json:"workers"`

	// Logging
	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// Load reads a JSON config file and returns Config.
// Fields not set in the file keep their zero values.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	return cfg, nil
}

// Resolve fills in empty fields with defaults. CLI flags take priority
// when non-zero, then the PORT environment variable, then the file.
func (c *Config) Resolve(flags Flags) {
	if flags.Addr != "" {
		c.Addr = flags.Addr
	} else if port := os.Getenv("PORT"); port != "" {
		c.Addr = ":" + strings.TrimPrefix(port, ":")
	}
	if flags.BaseDir != "" {
		c.BaseDir = flags.BaseDir
	}
	if flags.Camera != "" {
		c.Camera = flags.Camera
	}
	if flags.FrameDir != "" {
		c.FrameDir = flags.FrameDir
	}
	if flags.OutputDir != "" {
		c.OutputDir = flags.OutputDir
	}
	if flags.Format != "" {
		c.SnapshotFormat = flags.Format
	}
	if flags.Fidelity != "" {
		c.Fidelity = flags.Fidelity
	}
	if flags.Workers > 0 {
		c.Workers = flags.Workers
	}
	if flags.LogLevel != "" {
		c.LogLevel = flags.LogLevel
	}

	if c.Addr == "" {
		c.Addr = ":3000"
	}
	if c.BaseDir == "" {
		c.BaseDir, _ = os.Getwd()
	}

	// Relative paths are taken against the base dir.
	c.CatalogPath = c.under(c.CatalogPath, "")
	c.UploadsDir = c.under(c.UploadsDir, "uploads")
	c.FrameDir = c.under(c.FrameDir, "frames")
	c.OutputDir = c.under(c.OutputDir, "snapshots")

	if c.Camera == "" {
		c.Camera = "synthetic"
	}
	if c.Width <= 0 || c.Height <= 0 {
		c.Width, c.Height = 1280, 720
	}
	if c.SnapshotFormat == "" {
		c.SnapshotFormat = "png"
	}
	if c.Fidelity == "" {
		c.Fidelity = "approximate"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
}

func (c *Config) under(p, def string) string {
	if p == "" {
		if def == "" {
			return ""
		}
		p = def
	}
	if filepath.IsAbs(p) || c.BaseDir == "" {
		return p
	}
	return filepath.Join(c.BaseDir, p)
}

// Validate reports settings that Resolve cannot repair.
func (c *Config) Validate() error {
	switch c.Camera {
	case "synthetic", "dir":
	default:
		return fmt.Errorf("config: unknown camera %q", c.Camera)
	}
	switch c.SnapshotFormat {
	case "png", "webp":
	default:
		return fmt.Errorf("config: unknown snapshot format %q", c.SnapshotFormat)
	}
	switch c.Fidelity {
	case "approximate", "exact":
	default:
		return fmt.Errorf("config: unknown fidelity %q", c.Fidelity)
	}
	return nil
}

// Flags holds CLI flag values that override config file settings.
type Flags struct {
	Addr      string
	BaseDir   string
	Camera    string
	FrameDir  string
	OutputDir string
	Format    string
	Fidelity  string
	Workers   int
	LogLevel  string
}
