package server

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"ar-tryon/internal/arsession"
	"ar-tryon/internal/compositor"
	"ar-tryon/internal/gesture"
	"ar-tryon/internal/metrics"
	"ar-tryon/internal/transform"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 1 << 16
)

// Client message types.
const (
	msgInput    = "input"
	msgControl  = "control"
	msgCamera   = "camera"
	msgResize   = "resize"
	msgSnapshot = "snapshot"
)

// clientMessage is one message from the browser. Input messages mirror the
// DOM event: pointer events fill PointerID/X/Y, touch events fill Touches.
type clientMessage struct {
	Type      string               `json:"type"`
	Event     string               `json:"event,omitempty"`
	PointerID int                  `json:"pointerId,omitempty"`
	X         float64              `json:"x,omitempty"`
	Y         float64              `json:"y,omitempty"`
	Touches   []gesture.Contact    `json:"touches,omitempty"`
	Action    string               `json:"action,omitempty"`
	Viewport  *compositor.Viewport `json:"viewport,omitempty"`
}

// serverMessage is one message to the browser.
type serverMessage struct {
	Type           string                  `json:"type"`
	State          *transform.State        `json:"state,omitempty"`
	Style          *compositor.Style       `json:"style,omitempty"`
	PreventDefault bool                    `json:"preventDefault,omitempty"`
	Camera         *arsession.CameraStatus `json:"camera,omitempty"`
	Snapshot       *snapshotPayload        `json:"snapshot,omitempty"`
	Error          string                  `json:"error,omitempty"`
}

type snapshotPayload struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	Data        []byte `json:"data"`
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg serverMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// serveWS runs the input loop of one session. The session closes with the
// socket, which is how navigation away or an outside click ends a view.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade", zap.String("session", sess.ID), zap.Error(err))
		return
	}
	s.attach.Attached(sess.ID)
	c := &wsConn{conn: conn}
	log := s.log.With(zap.String("session", sess.ID))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	defer func() {
		cancel()
		if err := s.sessions.Close(sess.ID); err != nil && !errors.Is(err, arsession.ErrNotFound) {
			log.Warn("close session", zap.Error(err))
		}
		wg.Wait()
		conn.Close()
		log.Debug("websocket closed")
	}()

	conn.SetReadLimit(maxMessage)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.ping(); err != nil {
					return
				}
			}
		}
	}()

	st, style := sess.State(), sess.Style()
	cam := sess.Camera()
	if err := c.send(serverMessage{Type: "state", State: &st, Style: &style}); err != nil {
		return
	}
	if err := c.send(serverMessage{Type: "camera", Camera: &cam}); err != nil {
		return
	}

	for {
		var msg clientMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug("websocket read", zap.Error(err))
			}
			return
		}
		metrics.RecordMessage(messageLabel(msg.Type))
		reply, async := s.handleMessage(ctx, sess, msg)
		if async != nil {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if m, ok := async(); ok {
					c.send(m)
				}
			}()
		}
		if reply == nil {
			continue
		}
		if err := c.send(*reply); err != nil {
			return
		}
	}
}

// handleMessage applies one client message. Camera requests block on the
// device, so they come back as an async func run off the read loop.
func (s *Server) handleMessage(ctx context.Context, sess *arsession.Session, msg clientMessage) (*serverMessage, func() (serverMessage, bool)) {
	switch msg.Type {
	case msgInput:
		kind, err := gesture.ParseKind(msg.Event)
		if err != nil {
			return errorMessage(err), nil
		}
		u, err := sess.HandleInput(gesture.Event{
			Kind:    kind,
			Pointer: gesture.Contact{ID: msg.PointerID, X: msg.X, Y: msg.Y},
			Touches: msg.Touches,
		})
		if err != nil {
			return errorMessage(err), nil
		}
		if !u.Changed && !u.PreventDefault {
			return nil, nil
		}
		return stateMessage(u), nil

	case msgControl:
		b, err := gesture.ParseButton(msg.Action)
		if err != nil {
			return errorMessage(err), nil
		}
		u, err := sess.Press(b)
		if err != nil {
			return errorMessage(err), nil
		}
		return stateMessage(u), nil

	case msgResize:
		if msg.Viewport == nil || !msg.Viewport.Valid() {
			return &serverMessage{Type: "error", Error: "resize needs a positive viewport"}, nil
		}
		sess.Resize(*msg.Viewport)
		return nil, nil

	case msgCamera:
		var acquire func(context.Context) (arsession.CameraStatus, error)
		switch msg.Action {
		case "start", "":
			acquire = sess.StartCamera
		case "flip":
			acquire = sess.FlipCamera
		case "stop":
			st, err := sess.StopCamera()
			if err != nil {
				return errorMessage(err), nil
			}
			style := sess.Style()
			return &serverMessage{Type: "camera", Camera: &st, Style: &style}, nil
		default:
			return &serverMessage{Type: "error", Error: "unknown camera action " + msg.Action}, nil
		}
		return nil, func() (serverMessage, bool) {
			st, err := acquire(ctx)
			if err != nil {
				return *errorMessage(err), true
			}
			if st.Outcome == "cancelled" {
				return serverMessage{}, false
			}
			style := sess.Style()
			return serverMessage{Type: "camera", Camera: &st, Style: &style}, true
		}

	case msgSnapshot:
		if !s.exports.Allow(sess.ID) {
			return errorMessage(errRateLimited), nil
		}
		snap, err := sess.Snapshot()
		if err != nil {
			return errorMessage(err), nil
		}
		data, err := snap.Bytes()
		if err != nil {
			return errorMessage(err), nil
		}
		size := snap.Image.Bounds().Size()
		return &serverMessage{Type: "snapshot", Snapshot: &snapshotPayload{
			Name:        snap.Name,
			ContentType: snap.ContentType,
			Width:       size.X,
			Height:      size.Y,
			Data:        data,
		}}, nil
	}
	return &serverMessage{Type: "error", Error: "unknown message type " + msg.Type}, nil
}

// messageLabel bounds the metric label space to the known message types.
func messageLabel(kind string) string {
	switch kind {
	case msgInput, msgControl, msgCamera, msgResize, msgSnapshot:
		return kind
	}
	return "unknown"
}

func stateMessage(u arsession.Update) *serverMessage {
	return &serverMessage{Type: "state", State: &u.State, Style: &u.Style, PreventDefault: u.PreventDefault}
}

func errorMessage(err error) *serverMessage {
	return &serverMessage{Type: "error", Error: err.Error()}
}
