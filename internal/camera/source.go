package camera

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// Outcome classifies an acquisition.
type Outcome int

const (
	Ready Outcome = iota + 1
	Denied
	Failed
	// Cancelled means a close or flip overtook the acquisition; any stream
	// it produced has already been stopped.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case Denied:
		return "denied"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Session is a live capture handle plus the facing mode it was opened with.
type Session struct {
	Facing FacingMode
	Stream Stream
}

// Result is the outcome of Acquire.
type Result struct {
	Outcome Outcome
	Session *Session
	Err     error
}

// Message is the user-facing notice for a failed acquisition.
func (r Result) Message() string {
	switch r.Outcome {
	case Denied:
		return "Camera access was denied. Allow camera access and try again."
	case Failed:
		return "Camera is unavailable on this device."
	}
	return ""
}

// Source manages the one capture session of an AR view.
type Source struct {
	device Device
	width  int
	height int
	logger *zap.Logger

	mu      sync.Mutex
	current *Session
	gen     uint64
	cancel  context.CancelFunc
	closed  bool
}

// NewSource creates a Source over device with the advisory resolution.
func NewSource(device Device, width, height int, logger *zap.Logger) *Source {
	if logger == nil {
		logger = zap.NewNop()
	}
	if width <= 0 || height <= 0 {
		width, height = DefaultWidth, DefaultHeight
	}
	return &Source{device: device, width: width, height: height, logger: logger}
}

// Acquire tears down the current session and requests a new stream with
// the given facing mode. It blocks until the device answers, ctx ends, or a
// later Acquire, Stop or Close supersedes it. There is no retry and no timeout
// beyond ctx.
func (s *Source) Acquire(ctx context.Context, facing FacingMode) Result {
	return s.Begin(ctx, facing).Wait()
}

// Pending is an acquisition whose place in the request order is fixed but
// whose device handshake has not run yet.
type Pending struct {
	src    *Source
	ctx    context.Context
	cancel context.CancelFunc
	facing FacingMode
	gen    uint64
	closed bool
}

// Begin stops the current session and reserves the next request slot
// without blocking. Callers that order requests under their own lock call
// Begin inside it and Wait outside, so the Source sees requests in the same
// order they do.
func (s *Source) Begin(ctx context.Context, facing FacingMode) *Pending {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &Pending{src: s, facing: facing, closed: true}
	}
	s.stopLocked()
	s.gen++
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	return &Pending{src: s, ctx: ctx, cancel: cancel, facing: facing, gen: s.gen}
}

// Wait runs the device handshake. A request overtaken by a later Begin,
// Stop or Close is reported Cancelled and its stream, if any, stopped.
func (p *Pending) Wait() Result {
	if p.closed {
		return Result{Outcome: Cancelled, Err: context.Canceled}
	}
	s, facing, cancel := p.src, p.facing, p.cancel
	stream, err := s.device.Open(p.ctx, Constraints{Facing: facing, Width: s.width, Height: s.height})

	s.mu.Lock()
	defer s.mu.Unlock()
	superseded := s.closed || s.gen != p.gen
	if !superseded {
		s.cancel = nil
	}
	cancel()

	if err == nil && superseded {
		StopAll(stream)
		return Result{Outcome: Cancelled, Err: context.Canceled}
	}
	if err != nil {
		res := classify(err)
		if superseded {
			res = Result{Outcome: Cancelled, Err: err}
		}
		s.logger.Warn("camera acquisition failed",
			zap.String("facing", string(facing)),
			zap.Stringer("outcome", res.Outcome),
			zap.Error(err))
		return res
	}

	s.current = &Session{Facing: facing, Stream: stream}
	s.logger.Info("camera ready",
		zap.String("facing", string(facing)),
		zap.Int("width", stream.Size().X),
		zap.Int("height", stream.Size().Y))
	return Result{Outcome: Ready, Session: s.current}
}

// Current returns the live session, or nil.
func (s *Source) Current() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// ActiveTracks counts live tracks of the current session.
func (s *Source) ActiveTracks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return 0
	}
	return LiveTracks(s.current.Stream)
}

// Stop ends the current session and cancels any pending acquisition but
// leaves the Source usable.
func (s *Source) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
}

// Close stops everything; later Acquire calls return Cancelled.
func (s *Source) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.gen++
	s.closed = true
}

func (s *Source) stopLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.current != nil {
		StopAll(s.current.Stream)
		s.logger.Debug("camera stopped", zap.String("facing", string(s.current.Facing)))
		s.current = nil
	}
}

func classify(err error) Result {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return Result{Outcome: Denied, Err: err}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Result{Outcome: Cancelled, Err: err}
	default:
		return Result{Outcome: Failed, Err: err}
	}
}
