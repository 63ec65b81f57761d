// Package gesture turns raw pointer and touch input into incremental
// updates of a transform.State. Tracker is a plain state machine: feed it
// events in delivery order and it returns the next state.
package gesture

import (
	"math"

	"ar-tryon/internal/mathutil"
	"ar-tryon/internal/transform"
)

// Result describes what an event did.
type Result struct {
	Changed bool
	// PreventDefault is set while a two-contact gesture owns the surface;
	// the caller must suppress page scroll/zoom for this event.
	PreventDefault bool
}

type dragState struct {
	active bool
	id     int
	last   mathutil.Vec2
}

type pinchState struct {
	active   bool
	ids      [2]int
	refDist  float64
	refAngle float64
}

// Tracker holds the ephemeral gesture session. The zero value is ready.
// Not safe for concurrent use.
type Tracker struct {
	drag  dragState
	pinch pinchState
}

// Apply updates s with one input event.
func (t *Tracker) Apply(s transform.State, ev Event) (transform.State, Result) {
	if ev.Kind.IsTouch() {
		return t.applyTouch(s, ev)
	}
	return t.applyPointer(s, ev)
}

// Press handles a discrete control.
func (t *Tracker) Press(s transform.State, b Button) (transform.State, Result) {
	switch b {
	case RotateLeft:
		return s.RotateLeft(), Result{Changed: true}
	case RotateRight:
		return s.RotateRight(), Result{Changed: true}
	case Reset:
		return s.Reset(), Result{Changed: true}
	}
	return s, Result{}
}

// Dragging reports whether a single-contact drag is in progress.
func (t *Tracker) Dragging() bool { return t.drag.active }

// Pinching reports whether a two-contact gesture is in progress.
func (t *Tracker) Pinching() bool { return t.pinch.active }

// End drops any gesture in progress.
func (t *Tracker) End() {
	t.drag = dragState{}
	t.pinch = pinchState{}
}

func (t *Tracker) applyPointer(s transform.State, ev Event) (transform.State, Result) {
	p := ev.Pointer
	switch ev.Kind {
	case PointerDown:
		if t.pinch.active || t.drag.active {
			return s, Result{PreventDefault: t.pinch.active}
		}
		t.drag = dragState{active: true, id: p.ID, last: p.Pos()}
	case PointerMove:
		if t.pinch.active {
			return s, Result{PreventDefault: true}
		}
		if !t.drag.active || t.drag.id != p.ID {
			return s, Result{}
		}
		d := p.Pos().Sub(t.drag.last)
		t.drag.last = p.Pos()
		if d.X == 0 && d.Y == 0 {
			return s, Result{}
		}
		return s.Translate(d.X, d.Y), Result{Changed: true}
	case PointerUp, PointerCancel:
		if t.drag.active && t.drag.id == p.ID {
			t.drag = dragState{}
		}
	}
	return s, Result{}
}

func (t *Tracker) applyTouch(s transform.State, ev Event) (transform.State, Result) {
	if t.pinch.active {
		a, okA := find(ev.Touches, t.pinch.ids[0])
		b, okB := find(ev.Touches, t.pinch.ids[1])
		if !okA || !okB {
			// One of the tracked contacts lifted; the gesture is over
			// until exactly two contacts are down again.
			t.pinch = pinchState{}
		} else if ev.Kind == TouchMove {
			return t.pinchMove(s, a, b)
		} else {
			return s, Result{PreventDefault: true}
		}
	}

	if len(ev.Touches) == 2 && ev.Kind != TouchCancel {
		a, b := ev.Touches[0], ev.Touches[1]
		t.pinch = pinchState{
			active:   true,
			ids:      [2]int{a.ID, b.ID},
			refDist:  mathutil.Dist(a.Pos(), b.Pos()),
			refAngle: mathutil.AngleDeg(a.Pos(), b.Pos()),
		}
		// The drag anchor belongs to a gesture that no longer exists.
		t.drag = dragState{}
		return s, Result{PreventDefault: true}
	}
	return s, Result{}
}

func (t *Tracker) pinchMove(s transform.State, a, b Contact) (transform.State, Result) {
	dist := mathutil.Dist(a.Pos(), b.Pos())
	angle := mathutil.AngleDeg(a.Pos(), b.Pos())

	scaleDelta := 1.0
	if t.pinch.refDist > 0 && !math.IsNaN(t.pinch.refDist) {
		scaleDelta = dist / t.pinch.refDist
	}
	angleDelta := normalizeDelta(angle - t.pinch.refAngle)

	t.pinch.refDist = dist
	t.pinch.refAngle = angle

	next := s.Zoom(scaleDelta).Turn(angleDelta)
	return next, Result{Changed: next != s, PreventDefault: true}
}

// normalizeDelta folds an atan2 difference into (-180, 180] so that a
// contact pair crossing the ±180° seam does not spin the overlay a full turn.
func normalizeDelta(d float64) float64 {
	for d > 180 {
		d -= 360
	}
	for d <= -180 {
		d += 360
	}
	return d
}

func find(cs []Contact, id int) (Contact, bool) {
	for _, c := range cs {
		if c.ID == id {
			return c, true
		}
	}
	return Contact{}, false
}
