// Package arsession ties one AR view together: the artwork being tried on,
// its transform, the gesture tracker, the camera source and the export
// path. Every handler of a view goes through its Session.
package arsession

import (
	"context"
	"errors"
	"image"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ar-tryon/internal/artwork"
	"ar-tryon/internal/camera"
	"ar-tryon/internal/compositor"
	"ar-tryon/internal/gesture"
	"ar-tryon/internal/logger"
	"ar-tryon/internal/metrics"
	"ar-tryon/internal/snapshot"
	"ar-tryon/internal/transform"
)

var (
	// ErrNotFound is returned for an unknown session id.
	ErrNotFound = errors.New("arsession: session not found")
	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("arsession: session closed")
)

// Options are the shared collaborators of every session.
type Options struct {
	Device     camera.Device
	Width      int
	Height     int
	Exporter   *snapshot.Exporter
	Compositor *compositor.Compositor
	Logger     *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = camera.DefaultWidth, camera.DefaultHeight
	}
	if o.Exporter == nil {
		o.Exporter = snapshot.NewExporter(snapshot.DefaultOptions(), nil)
	}
	if o.Compositor == nil {
		o.Compositor = compositor.New(nil)
	}
	o.Logger = logger.OrNop(o.Logger)
	return o
}

// Update is the view state after a handled input.
type Update struct {
	State          transform.State  `json:"state"`
	Style          compositor.Style `json:"style"`
	Changed        bool             `json:"changed"`
	PreventDefault bool             `json:"preventDefault"`
}

// CameraStatus describes the capture side of a session.
type CameraStatus struct {
	Facing  camera.FacingMode `json:"facing"`
	Outcome string            `json:"outcome"`
	Live    bool              `json:"live"`
	Width   int               `json:"width,omitempty"`
	Height  int               `json:"height,omitempty"`
	Notice  string            `json:"notice,omitempty"`
}

// Session is one open AR view.
type Session struct {
	ID     string
	ViewID string

	art      artwork.Reference
	opts     Options
	source   *camera.Source
	log      *zap.Logger
	mu       sync.Mutex
	state    transform.State
	tracker  gesture.Tracker
	facing   camera.FacingMode
	viewport compositor.Viewport
	outcome  camera.Outcome
	notice   string
	attempt  uint64
	pending  bool
	stopped  bool
	closed   bool
}

// New opens a session for art with the camera initially off. Call
// StartCamera to request the stream.
func New(viewID string, art artwork.Reference, facing camera.FacingMode, vp compositor.Viewport, opts Options) *Session {
	opts = opts.withDefaults()
	if facing == "" {
		facing = camera.FacingEnvironment
	}
	id := uuid.NewString()
	log := opts.Logger.With(zap.String("session", id), zap.String("artwork", art.ID))
	var src *camera.Source
	if opts.Device != nil {
		src = camera.NewSource(opts.Device, opts.Width, opts.Height, log.Named("camera"))
	}
	metrics.SessionOpened()
	return &Session{
		ID:       id,
		ViewID:   viewID,
		art:      art,
		opts:     opts,
		source:   src,
		log:      log,
		state:    transform.Identity(),
		facing:   facing,
		viewport: vp,
	}
}

// Artwork returns the artwork being previewed.
func (s *Session) Artwork() artwork.Reference { return s.art }

// State returns the current transform.
func (s *Session) State() transform.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Style returns the CSS transforms for the current state.
func (s *Session) Style() compositor.Style {
	s.mu.Lock()
	defer s.mu.Unlock()
	return compositor.StyleFor(s.facing, s.state)
}

// Resize records the displayed size of the preview element.
func (s *Session) Resize(vp compositor.Viewport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = vp
}

// HandleInput feeds one pointer or touch event to the tracker.
func (s *Session) HandleInput(ev gesture.Event) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Update{}, ErrClosed
	}
	next, res := s.tracker.Apply(s.state, ev)
	s.state = next
	return s.updateLocked(res), nil
}

// Press applies a discrete control; a gesture in progress is kept.
func (s *Session) Press(b gesture.Button) (Update, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Update{}, ErrClosed
	}
	next, res := s.tracker.Press(s.state, b)
	s.state = next
	if res.Changed {
		s.log.Debug("control", zap.String("button", string(b)), zap.Float64("rotation", next.Rotation))
	}
	return s.updateLocked(res), nil
}

func (s *Session) updateLocked(res gesture.Result) Update {
	return Update{
		State:          s.state,
		Style:          compositor.StyleFor(s.facing, s.state),
		Changed:        res.Changed,
		PreventDefault: res.PreventDefault,
	}
}

// StartCamera requests a stream with the session's facing mode. A failure
// is recorded as a notice; the session stays open without a feed.
func (s *Session) StartCamera(ctx context.Context) (CameraStatus, error) {
	return s.request(ctx, false)
}

// FlipCamera switches between front and rear cameras. The new facing mode
// takes effect immediately, so mirroring follows the request.
func (s *Session) FlipCamera(ctx context.Context) (CameraStatus, error) {
	return s.request(ctx, true)
}

// StopCamera turns the feed off and supersedes any acquisition in flight.
// The overlay stays interactive over the fallback background.
func (s *Session) StopCamera() (CameraStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return CameraStatus{}, ErrClosed
	}
	s.attempt++
	s.pending = false
	s.stopped = true
	s.notice = ""
	if s.source != nil {
		s.source.Stop()
	}
	return s.cameraLocked(), nil
}

// request orders a camera request. The Source slot is reserved under s.mu,
// so the Source and the session agree on which request is the latest.
func (s *Session) request(ctx context.Context, flip bool) (CameraStatus, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return CameraStatus{}, ErrClosed
	}
	if flip {
		s.facing = s.facing.Flip()
	}
	facing := s.facing
	s.attempt++
	attempt := s.attempt
	s.pending = true
	s.stopped = false
	var pending *camera.Pending
	if s.source != nil {
		pending = s.source.Begin(ctx, facing)
	}
	s.mu.Unlock()

	if pending == nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		metrics.RecordAcquisition(string(facing), camera.Failed.String())
		if s.attempt != attempt {
			return s.cameraLocked(), nil
		}
		s.pending = false
		s.outcome = camera.Failed
		s.notice = "Camera is unavailable on this device."
		return s.cameraLocked(), nil
	}

	res := pending.Wait()
	metrics.RecordAcquisition(string(facing), res.Outcome.String())

	s.mu.Lock()
	defer s.mu.Unlock()
	// A superseded acquisition leaves the status to the one that won.
	if s.closed || s.attempt != attempt {
		st := s.cameraLocked()
		st.Outcome = res.Outcome.String()
		return st, nil
	}
	s.pending = false
	s.outcome = res.Outcome
	s.notice = res.Message()
	if res.Outcome != camera.Ready && res.Outcome != camera.Cancelled {
		s.log.Warn("camera unavailable", zap.Stringer("outcome", res.Outcome), zap.Error(res.Err))
	}
	return s.cameraLocked(), nil
}

// Camera reports the capture status.
func (s *Session) Camera() CameraStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameraLocked()
}

func (s *Session) cameraLocked() CameraStatus {
	st := CameraStatus{Facing: s.facing, Outcome: s.outcome.String(), Notice: s.notice}
	switch {
	case s.pending:
		st.Outcome = "pending"
	case s.attempt == 0, s.stopped:
		st.Outcome = "off"
	}
	if s.source != nil {
		if cur := s.source.Current(); cur != nil {
			size := cur.Stream.Size()
			st.Live = s.source.ActiveTracks() > 0
			st.Width, st.Height = size.X, size.Y
		}
	}
	return st
}

// ActiveTracks counts live capture tracks.
func (s *Session) ActiveTracks() int {
	if s.source == nil {
		return 0
	}
	return s.source.ActiveTracks()
}

// frame returns the latest camera frame, or nil when there is no feed.
func (s *Session) frame() image.Image {
	if s.source == nil {
		return nil
	}
	cur := s.source.Current()
	if cur == nil {
		return nil
	}
	img, err := cur.Stream.Frame()
	if err != nil {
		return nil
	}
	return img
}

// Snapshot exports the current view at the camera's native resolution.
func (s *Session) Snapshot() (*snapshot.Snapshot, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	req := snapshot.Request{
		Facing:  s.facing,
		Artwork: s.art,
		State:   s.state,
		Display: s.viewport.Point(),
	}
	s.mu.Unlock()

	start := time.Now()
	req.Frame = s.frame()
	snap := s.opts.Exporter.Export(req)
	metrics.RecordSnapshot(string(snap.Format), req.Frame != nil, time.Since(start))
	size := snap.Image.Bounds().Size()
	s.log.Info("snapshot exported",
		zap.String("name", snap.Name),
		zap.Int("width", size.X),
		zap.Int("height", size.Y),
		zap.Bool("live", req.Frame != nil))
	return snap, nil
}

// Preview renders the composited live view at the viewport size.
func (s *Session) Preview() (*image.NRGBA, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	facing, state, vp := s.facing, s.state, s.viewport
	s.mu.Unlock()

	return s.opts.Compositor.Render(s.frame(), facing, s.art, state, vp), nil
}

// Close stops the camera and discards gesture and transform state. It is
// safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.tracker.End()
	s.state = transform.Identity()
	s.pending = false
	s.mu.Unlock()

	if s.source != nil {
		s.source.Close()
	}
	metrics.SessionClosed()
	s.log.Info("session closed")
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
