package artwork

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
)

// ErrUnknownArtwork is returned by Lookup for an unknown id.
var ErrUnknownArtwork = errors.New("artwork: unknown artwork")

// Catalog is the storefront collaborator that hands artwork references to
// the AR core.
type Catalog interface {
	Lookup(id string) (Reference, error)
	List() []Reference
}

// StaticCatalog is an in-memory catalog.
type StaticCatalog struct {
	mu    sync.RWMutex
	byID  map[string]Reference
	order []string
}

// NewStaticCatalog builds a catalog from refs, parsing each visual.
func NewStaticCatalog(refs []Reference) (*StaticCatalog, error) {
	c := &StaticCatalog{byID: make(map[string]Reference, len(refs))}
	for _, r := range refs {
		if r.ID == "" {
			return nil, fmt.Errorf("artwork: catalog entry %q has no id", r.Title)
		}
		v, err := ParseVisual(r.Image)
		if err != nil {
			return nil, fmt.Errorf("artwork: catalog entry %s: %w", r.ID, err)
		}
		r.Visual = v
		if _, dup := c.byID[r.ID]; !dup {
			c.order = append(c.order, r.ID)
		}
		c.byID[r.ID] = r
	}
	return c, nil
}

// Lookup implements Catalog.
func (c *StaticCatalog) Lookup(id string) (Reference, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.byID[id]
	if !ok {
		return Reference{}, fmt.Errorf("%w: %s", ErrUnknownArtwork, id)
	}
	return r, nil
}

// List implements Catalog, in insertion order.
func (c *StaticCatalog) List() []Reference {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Reference, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// LoadCatalog reads a JSON array of references. Entries keyed "_id" are
// accepted as well as "id".
func LoadCatalog(path string) (*StaticCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artwork: read %s: %w", path, err)
	}
	var raw []struct {
		Reference
		MongoID string `json:"_id"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("artwork: parse %s: %w", path, err)
	}
	refs := make([]Reference, len(raw))
	for i, r := range raw {
		refs[i] = r.Reference
		if refs[i].ID == "" {
			refs[i].ID = r.MongoID
		}
	}
	return NewStaticCatalog(refs)
}

// DefaultCatalog returns the storefront's built-in paintings, served when
// no catalog file is configured.
func DefaultCatalog() *StaticCatalog {
	c, err := NewStaticCatalog(fallbackPaintings)
	if err != nil {
		panic(err)
	}
	return c
}

// SortByPrice returns refs ordered by ascending price, ties by id.
func SortByPrice(refs []Reference) []Reference {
	out := append([]Reference(nil), refs...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Price != out[j].Price {
			return out[i].Price < out[j].Price
		}
		return out[i].ID < out[j].ID
	})
	return out
}

var fallbackPaintings = []Reference{
	{ID: "1", Title: "Силуэт свободы", Technique: "2024, акрил, 80×100 см", Price: 45000,
		Image: "linear-gradient(135deg, #ff6b6b 0%, #c92a2a 100%)"},
	{ID: "2", Title: "Танцующее тело", Technique: "2024, коллаж, 60×80 см", Price: 35000,
		Image: "linear-gradient(135deg, #ffd93d 0%, #f59f00 100%)"},
	{ID: "3", Title: "Зелёный взгляд", Technique: "2024, акрил, 70×90 см", Price: 38000,
		Image: "linear-gradient(135deg, #a8e063 0%, #6bcf7f 100%)"},
	{ID: "4", Title: "Голубая грусть", Technique: "2024, смешанная техника, 90×110 см", Price: 50000,
		Image: "linear-gradient(135deg, #4ecdc4 0%, #26a69a 100%)"},
	{ID: "5", Title: "Цветок страсти", Technique: "2024, инсталляция, 100×120 см", Price: 55000,
		Image: "linear-gradient(135deg, #95e1d3 0%, #f38181 100%)"},
	{ID: "6", Title: "Розовый закат", Technique: "2024, акрил, 65×85 см", Price: 32000,
		Image: "linear-gradient(135deg, #ffa07a 0%, #ff7f50 100%)"},
	{ID: "7", Title: "Фиолетовая мечта", Technique: "2024, смешанная техника, 75×95 см", Price: 42000,
		Image: "linear-gradient(135deg, #c44569 0%, #9a3a54 100%)"},
	{ID: "8", Title: "Золотой час", Technique: "2024, коллаж, 80×100 см", Price: 48000,
		Image: "linear-gradient(135deg, #fdcb6e 0%, #e17055 100%)"},
	{ID: "9", Title: "Синий ритм", Technique: "2024, акрил, 70×90 см", Price: 40000,
		Image: "linear-gradient(135deg, #6c5ce7 0%, #4834d4 100%)"},
}
