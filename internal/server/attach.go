package server

import (
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"ar-tryon/internal/arsession"
)

// DefaultAttachTimeout is how long an opened session may wait for its
// WebSocket before it is closed and its camera released.
const DefaultAttachTimeout = 30 * time.Second

// attachWatch closes sessions that never get a socket.
type attachWatch struct {
	timeout time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newAttachWatch(timeout time.Duration) *attachWatch {
	if timeout <= 0 {
		timeout = DefaultAttachTimeout
	}
	return &attachWatch{timeout: timeout, timers: make(map[string]*time.Timer)}
}

// Watch arms the timer of id; expire runs if Attached is not called in time.
func (a *attachWatch) Watch(id string, expire func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[id]; ok {
		t.Stop()
	}
	a.timers[id] = time.AfterFunc(a.timeout, expire)
}

// Attached disarms the timer of id.
func (a *attachWatch) Attached(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if t, ok := a.timers[id]; ok {
		t.Stop()
		delete(a.timers, id)
	}
}

func (a *attachWatch) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.timers)
}

// watchAttach closes sess unless a socket attaches within the timeout.
func (s *Server) watchAttach(id string) {
	s.attach.Watch(id, func() {
		err := s.sessions.Close(id)
		switch {
		case err == nil:
			s.log.Info("session closed, no socket attached", zap.String("session", id))
		case !errors.Is(err, arsession.ErrNotFound):
			s.log.Warn("close unattached session", zap.String("session", id), zap.Error(err))
		}
	})
}
