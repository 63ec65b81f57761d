package gesture

import (
	"encoding/json"
	"fmt"
	"os"

	"ar-tryon/internal/transform"
)

// Step is one recorded input: either a DOM event or a button press.
type Step struct {
	Event     string    `json:"event,omitempty"`
	PointerID int       `json:"pointerId,omitempty"`
	X         float64   `json:"x,omitempty"`
	Y         float64   `json:"y,omitempty"`
	Touches   []Contact `json:"touches,omitempty"`
	Button    string    `json:"button,omitempty"`
}

// Script is a recorded gesture session, replayed offline to reproduce a
// placement.
type Script struct {
	Steps []Step `json:"steps"`
}

// LoadScript reads a JSON script file.
func LoadScript(path string) (Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Script{}, fmt.Errorf("gesture: read %s: %w", path, err)
	}
	var sc Script
	if err := json.Unmarshal(data, &sc); err != nil {
		return Script{}, fmt.Errorf("gesture: parse %s: %w", path, err)
	}
	return sc, nil
}

// Replay runs every step through a fresh Tracker starting from s.
func (sc Script) Replay(s transform.State) (transform.State, error) {
	var t Tracker
	for i, st := range sc.Steps {
		if st.Button != "" {
			b, err := ParseButton(st.Button)
			if err != nil {
				return s, fmt.Errorf("gesture: step %d: %w", i, err)
			}
			s, _ = t.Press(s, b)
			continue
		}
		k, err := ParseKind(st.Event)
		if err != nil {
			return s, fmt.Errorf("gesture: step %d: %w", i, err)
		}
		s, _ = t.Apply(s, Event{
			Kind:    k,
			Pointer: Contact{ID: st.PointerID, X: st.X, Y: st.Y},
			Touches: st.Touches,
		})
	}
	return s, nil
}
