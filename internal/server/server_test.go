package server

import (
	"bytes"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ar-tryon/internal/arsession"
	"ar-tryon/internal/artwork"
	"ar-tryon/internal/camera"
	"ar-tryon/internal/gesture"
)

type fixture struct {
	srv      *httptest.Server
	server   *Server
	sessions *arsession.Registry
	device   *camera.SyntheticDevice
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, Options{})
}

func newFixtureWith(t *testing.T, opts Options) *fixture {
	t.Helper()
	dev := &camera.SyntheticDevice{Grant: image.Pt(640, 360)}
	reg := arsession.NewRegistry(arsession.Options{Device: dev})
	s := New(artwork.DefaultCatalog(), reg, opts)
	srv := httptest.NewServer(s.Router())
	t.Cleanup(func() {
		srv.Close()
		reg.CloseAll()
	})
	return &fixture{srv: srv, server: s, sessions: reg, device: dev}
}

func (f *fixture) open(t *testing.T, body string) (*http.Response, sessionView) {
	t.Helper()
	resp, err := http.Post(f.srv.URL+"/api/ar/sessions", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	var v sessionView
	if resp.StatusCode == http.StatusCreated {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	}
	return resp, v
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListPaintings(t *testing.T) {
	f := newFixture(t)
	resp, err := http.Get(f.srv.URL + "/api/paintings?sort=price")
	require.NoError(t, err)
	defer resp.Body.Close()

	var list []artwork.Reference
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	require.Len(t, list, 9)
	assert.Equal(t, 32000, list[0].Price)
	assert.Equal(t, 55000, list[8].Price)

	resp2, err := http.Get(f.srv.URL + "/api/paintings/404")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp2.StatusCode)
}

func TestOpenSessionStartsCamera(t *testing.T) {
	f := newFixture(t)
	resp, v := f.open(t, `{"paintingId":"3","viewId":"v1","facing":"user","viewport":{"width":480,"height":320}}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.NotEmpty(t, v.ID)
	assert.Equal(t, "3", v.Painting.ID)
	assert.Equal(t, "ready", v.Camera.Outcome)
	assert.Equal(t, camera.FacingUser, v.Camera.Facing)
	assert.Equal(t, "scaleX(-1)", v.Style.Video)
	assert.Equal(t, 1.0, v.State.Scale)
	assert.Equal(t, 1, f.device.LiveTracks())
}

func TestOpenSessionErrors(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.open(t, `{"paintingId":"nope"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = f.open(t, `{"paintingId":"1","facing":"sideways"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.open(t, `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReopenSameViewDiscardsPrevious(t *testing.T) {
	f := newFixture(t)
	_, first := f.open(t, `{"paintingId":"1","viewId":"gallery"}`)
	_, second := f.open(t, `{"paintingId":"2","viewId":"gallery"}`)
	require.NotEqual(t, first.ID, second.ID)

	resp, err := http.Get(f.srv.URL + "/api/ar/sessions/" + first.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, f.device.LiveTracks())
}

func TestCloseSession(t *testing.T) {
	f := newFixture(t)
	_, v := f.open(t, `{"paintingId":"1"}`)

	req, err := http.NewRequest(http.MethodDelete, f.srv.URL+"/api/ar/sessions/"+v.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, 0, f.device.LiveTracks())

	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSnapshotDownload(t *testing.T) {
	f := newFixture(t)
	_, v := f.open(t, `{"paintingId":"1","viewport":{"width":320,"height":180}}`)

	resp, err := http.Get(f.srv.URL + "/api/ar/sessions/" + v.ID + "/snapshot")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, `attachment; filename="ar-preview.png"`, resp.Header.Get("Content-Disposition"))
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(640, 360), img.Bounds().Size())
}

func TestSnapshotRateLimited(t *testing.T) {
	f := newFixtureWith(t, Options{SnapshotRate: 0.001, SnapshotBurst: 1})
	_, v := f.open(t, `{"paintingId":"1"}`)
	url := f.srv.URL + "/api/ar/sessions/" + v.ID + "/snapshot"

	resp, err := http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(url)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.open(t, `{"paintingId":"1"}`)

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "ar_tryon_sessions_open")
	assert.Contains(t, string(body), `ar_tryon_http_requests_total{method="POST"`)
}

func TestPreview(t *testing.T) {
	f := newFixture(t)
	_, v := f.open(t, `{"paintingId":"1","viewport":{"width":300,"height":200}}`)

	resp, err := http.Get(f.srv.URL + "/api/ar/sessions/" + v.ID + "/preview")
	require.NoError(t, err)
	defer resp.Body.Close()
	img, err := png.Decode(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, image.Pt(300, 200), img.Bounds().Size())
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest(http.MethodOptions, f.srv.URL+"/api/ar/sessions", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://shop.local")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "http://shop.local", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestAllowOrigin(t *testing.T) {
	s := New(artwork.DefaultCatalog(), arsession.NewRegistry(arsession.Options{}), Options{CORSOrigins: []string{"https://gallery.example"}})
	assert.True(t, s.allowOrigin("https://gallery.example"))
	assert.True(t, s.allowOrigin(""))
	assert.False(t, s.allowOrigin("https://evil.example"))
}

func dial(t *testing.T, f *fixture, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ar/sessions/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) serverMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var m serverMessage
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestWebSocketSession(t *testing.T) {
	f := newFixture(t)
	_, v := f.open(t, `{"paintingId":"5","viewId":"ws","viewport":{"width":400,"height":300}}`)
	conn := dial(t, f, v.ID)

	assert.Equal(t, "state", read(t, conn).Type)
	cam := read(t, conn)
	require.Equal(t, "camera", cam.Type)
	assert.Equal(t, "ready", cam.Camera.Outcome)

	// Drag.
	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgInput, Event: "pointerdown", PointerID: 1, X: 100, Y: 100}))
	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgInput, Event: "pointermove", PointerID: 1, X: 130, Y: 90}))
	m := read(t, conn)
	require.Equal(t, "state", m.Type)
	assert.Equal(t, 30.0, m.State.TranslateX)
	assert.Equal(t, -10.0, m.State.TranslateY)
	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgInput, Event: "pointerup", PointerID: 1, X: 130, Y: 90}))

	// Control button.
	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgControl, Action: "rotate-right"}))
	m = read(t, conn)
	require.Equal(t, "state", m.Type)
	assert.Equal(t, 15.0, m.State.Rotation)
	assert.Equal(t, 30.0, m.State.TranslateX)

	// Flip camera.
	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgCamera, Action: "flip"}))
	m = read(t, conn)
	require.Equal(t, "camera", m.Type)
	assert.Equal(t, camera.FacingUser, m.Camera.Facing)
	assert.Equal(t, "scaleX(-1)", m.Style.Video)
	assert.Equal(t, 1, f.device.LiveTracks())

	// Snapshot.
	require.NoError(t, conn.WriteJSON(clientMessage{Type: msgSnapshot}))
	m = read(t, conn)
	require.Equal(t, "snapshot", m.Type)
	assert.Equal(t, "ar-preview.png", m.Snapshot.Name)
	img, err := png.Decode(bytes.NewReader(m.Snapshot.Data))
	require.NoError(t, err)
	assert.Equal(t, image.Pt(640, 360), img.Bounds().Size())

	// Unknown message.
	require.NoError(t, conn.WriteJSON(clientMessage{Type: "dance"}))
	assert.Equal(t, "error", read(t, conn).Type)

	// Closing the socket closes the session and stops the camera.
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	assert.Eventually(t, func() bool { return f.sessions.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, f.device.LiveTracks())
}

func TestWebSocketPinch(t *testing.T) {
	f := newFixture(t)
	_, v := f.open(t, `{"paintingId":"1"}`)
	conn := dial(t, f, v.ID)
	read(t, conn)
	read(t, conn)

	touches := func(x2 float64) clientMessage {
		return clientMessage{Type: msgInput, Event: "touchmove", Touches: []gesture.Contact{{ID: 1, X: 0, Y: 0}, {ID: 2, X: x2, Y: 0}}}
	}
	start := touches(100)
	start.Event = "touchstart"
	require.NoError(t, conn.WriteJSON(start))
	m := read(t, conn)
	assert.True(t, m.PreventDefault)

	require.NoError(t, conn.WriteJSON(touches(200)))
	m = read(t, conn)
	assert.InDelta(t, 2.0, m.State.Scale, 1e-9)
	assert.True(t, m.PreventDefault)
}

func TestWebSocketUnknownSession(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.srv.URL, "http") + "/api/ar/sessions/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnattachedSessionIsClosed(t *testing.T) {
	f := newFixtureWith(t, Options{AttachTimeout: 200 * time.Millisecond})
	resp, v := f.open(t, `{"paintingId":"1"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "ready", v.Camera.Outcome)

	require.Eventually(t, func() bool {
		return f.sessions.Len() == 0 && f.device.LiveTracks() == 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, f.server.attach.Len())

	resp, err := http.Get(f.srv.URL + "/api/ar/sessions/" + v.ID)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAttachedSessionOutlivesTimeout(t *testing.T) {
	f := newFixtureWith(t, Options{AttachTimeout: 200 * time.Millisecond})
	_, v := f.open(t, `{"paintingId":"1"}`)
	conn := dial(t, f, v.ID)
	read(t, conn)
	read(t, conn)
	assert.Equal(t, 0, f.server.attach.Len())

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, f.sessions.Len())
	assert.Equal(t, 1, f.device.LiveTracks())
}

func TestReplacedSessionReleasesServerState(t *testing.T) {
	f := newFixture(t)
	_, first := f.open(t, `{"paintingId":"1","viewId":"modal"}`)
	resp, err := http.Get(f.srv.URL + "/api/ar/sessions/" + first.ID + "/snapshot")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, 1, f.server.exports.Len())
	require.Equal(t, 1, f.server.attach.Len())

	_, second := f.open(t, `{"paintingId":"2","viewId":"modal"}`)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, 0, f.server.exports.Len())
	assert.Equal(t, 1, f.server.attach.Len())
	assert.Equal(t, 1, f.device.LiveTracks())
}

func TestMessageLabel(t *testing.T) {
	for _, kind := range []string{msgInput, msgControl, msgCamera, msgResize, msgSnapshot} {
		assert.Equal(t, kind, messageLabel(kind))
	}
	assert.Equal(t, "unknown", messageLabel(""))
	assert.Equal(t, "unknown", messageLabel("junk-42"))
}

func TestWebSocketJunkTypeSharesOneSeries(t *testing.T) {
	f := newFixture(t)
	_, v := f.open(t, `{"paintingId":"1"}`)
	conn := dial(t, f, v.ID)
	read(t, conn)
	read(t, conn)

	for _, kind := range []string{"junk-a", "junk-b", "junk-c"} {
		require.NoError(t, conn.WriteJSON(clientMessage{Type: kind}))
		assert.Equal(t, "error", read(t, conn).Type)
	}

	resp, err := http.Get(f.srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ar_tryon_ws_messages_total{type="unknown"}`)
	assert.NotContains(t, string(body), "junk-")
}
