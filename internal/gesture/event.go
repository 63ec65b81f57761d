package gesture

import (
	"errors"
	"fmt"
	"strings"

	"ar-tryon/internal/mathutil"
)

// ErrUnknownEvent is returned when an event or button name is not recognised.
var ErrUnknownEvent = errors.New("gesture: unknown event")

// Kind identifies a platform input event.
type Kind int

const (
	PointerDown Kind = iota + 1
	PointerMove
	PointerUp
	PointerCancel
	TouchStart
	TouchMove
	TouchEnd
	TouchCancel
)

var kindNames = map[Kind]string{
	PointerDown:   "pointerdown",
	PointerMove:   "pointermove",
	PointerUp:     "pointerup",
	PointerCancel: "pointercancel",
	TouchStart:    "touchstart",
	TouchMove:     "touchmove",
	TouchEnd:      "touchend",
	TouchCancel:   "touchcancel",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IsTouch reports whether k carries a contact list.
func (k Kind) IsTouch() bool {
	return k >= TouchStart && k <= TouchCancel
}

// ParseKind maps DOM event names ("pointermove", "touchstart", ...) to a Kind.
func ParseKind(name string) (Kind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, s := range kindNames {
		if s == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// Contact is one pointer or touch point in screen pixels.
type Contact struct {
	ID int     `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

func (c Contact) Pos() mathutil.Vec2 {
	return mathutil.Vec2{X: c.X, Y: c.Y}
}

// Event is one input event. Pointer events use Pointer; touch events carry
// every contact still on the surface after the event in Touches, in the
// order the platform tracks them.
type Event struct {
	Kind    Kind
	Pointer Contact
	Touches []Contact
}

// Button is a discrete on-screen control.
type Button string

const (
	RotateLeft  Button = "rotate-left"
	RotateRight Button = "rotate-right"
	Reset       Button = "reset"
)

// ParseButton validates a control name.
func ParseButton(name string) (Button, error) {
	switch b := Button(strings.ToLower(strings.TrimSpace(name))); b {
	case RotateLeft, RotateRight, Reset:
		return b, nil
	}
	return "", fmt.Errorf("%w: button %q", ErrUnknownEvent, name)
}
