package camera

import (
	"sync"
	"sync/atomic"
)

// memTrack is a track whose liveness is a flag; onStop runs once.
type memTrack struct {
	live   atomic.Bool
	once   sync.Once
	onStop func()
}

func newTrack(onStop func()) *memTrack {
	t := &memTrack{onStop: onStop}
	t.live.Store(true)
	return t
}

func (t *memTrack) Stop() {
	t.once.Do(func() {
		t.live.Store(false)
		if t.onStop != nil {
			t.onStop()
		}
	})
}

func (t *memTrack) Live() bool { return t.live.Load() }
