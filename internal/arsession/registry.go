package arsession

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"ar-tryon/internal/artwork"
	"ar-tryon/internal/camera"
	"ar-tryon/internal/compositor"
)

// Registry holds the open sessions, at most one per view.
type Registry struct {
	opts Options

	mu       sync.Mutex
	byID     map[string]*Session
	byView   map[string]string
	onRemove []func(id string)
}

// NewRegistry creates an empty Registry.
func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:   opts.withDefaults(),
		byID:   make(map[string]*Session),
		byView: make(map[string]string),
	}
}

// OnRemove registers fn to run with the id of every session the registry
// drops: closed, replaced on its view or swept by CloseAll.
func (r *Registry) OnRemove(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRemove = append(r.onRemove, fn)
}

func (r *Registry) removed(ids ...string) {
	r.mu.Lock()
	hooks := r.onRemove
	r.mu.Unlock()
	for _, id := range ids {
		for _, fn := range hooks {
			fn(id)
		}
	}
}

// Open starts a session for art on viewID. A session already open on the
// same view is closed and discarded first.
func (r *Registry) Open(viewID string, art artwork.Reference, facing camera.FacingMode, vp compositor.Viewport) *Session {
	s := New(viewID, art, facing, vp, r.opts)

	r.mu.Lock()
	var prev *Session
	if viewID != "" {
		if id, ok := r.byView[viewID]; ok {
			prev = r.byID[id]
			delete(r.byID, id)
		}
		r.byView[viewID] = s.ID
	}
	r.byID[s.ID] = s
	r.mu.Unlock()

	if prev != nil {
		prev.Close()
		r.removed(prev.ID)
		r.opts.Logger.Debug("replaced session", zap.String("view", viewID), zap.String("previous", prev.ID))
	}
	return s
}

// Get returns the open session with id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Close closes and removes the session with id.
func (r *Registry) Close(id string) error {
	r.mu.Lock()
	s, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
		if r.byView[s.ViewID] == id {
			delete(r.byView, s.ViewID)
		}
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	s.Close()
	r.removed(id)
	return nil
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.byID))
	for _, s := range r.byID {
		all = append(all, s)
	}
	r.byID = make(map[string]*Session)
	r.byView = make(map[string]string)
	r.mu.Unlock()

	ids := make([]string, 0, len(all))
	for _, s := range all {
		s.Close()
		ids = append(ids, s.ID)
	}
	r.removed(ids...)
}

// Len returns the number of open sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}
