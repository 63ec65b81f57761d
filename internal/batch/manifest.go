package batch

import (
	"encoding/json"
	"fmt"
	"os"

	"ar-tryon/internal/artwork"
)

// ManifestEntry represents one artwork in the output manifest.
type ManifestEntry struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Technique string `json:"technique,omitempty"`
	Price     int    `json:"price"`
	Image     string `json:"image,omitempty"`
	Error     string `json:"error,omitempty"`
}

// WriteManifest writes manifest.json describing every exported snapshot.
// results must be in the same order as items.
func WriteManifest(path string, items []artwork.Reference, results []Result) error {
	if len(items) != len(results) {
		return fmt.Errorf("batch: manifest has %d items but %d results", len(items), len(results))
	}
	entries := make([]ManifestEntry, len(items))
	for i, it := range items {
		entries[i] = ManifestEntry{
			ID:        it.ID,
			Title:     it.Title,
			Technique: it.Technique,
			Price:     it.Price,
			Image:     results[i].Image,
			Error:     results[i].Error,
		}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("batch: encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("batch: write %s: %w", path, err)
	}
	return nil
}
