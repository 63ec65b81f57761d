package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/png"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"ar-tryon/internal/arsession"
	"ar-tryon/internal/artwork"
	"ar-tryon/internal/camera"
	"ar-tryon/internal/compositor"
	"ar-tryon/internal/transform"
)

// openRequest is the body of POST /api/ar/sessions.
type openRequest struct {
	PaintingID string              `json:"paintingId"`
	ViewID     string              `json:"viewId"`
	Facing     string              `json:"facing"`
	Viewport   compositor.Viewport `json:"viewport"`
	// StartCamera defaults to true.
	StartCamera *bool `json:"startCamera"`
}

// sessionView is the JSON form of a session.
type sessionView struct {
	ID       string                 `json:"id"`
	ViewID   string                 `json:"viewId,omitempty"`
	Painting artwork.Reference      `json:"painting"`
	State    transform.State        `json:"state"`
	Style    compositor.Style       `json:"style"`
	Camera   arsession.CameraStatus `json:"camera"`
}

func viewOf(s *arsession.Session) sessionView {
	return sessionView{
		ID:       s.ID,
		ViewID:   s.ViewID,
		Painting: s.Artwork(),
		State:    s.State(),
		Style:    s.Style(),
		Camera:   s.Camera(),
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

func (s *Server) listPaintings(w http.ResponseWriter, r *http.Request) {
	list := s.catalog.List()
	if r.URL.Query().Get("sort") == "price" {
		list = artwork.SortByPrice(list)
	}
	respondJSON(w, list, http.StatusOK)
}

func (s *Server) getPainting(w http.ResponseWriter, r *http.Request) {
	ref, err := s.catalog.Lookup(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	respondJSON(w, ref, http.StatusOK)
}

func (s *Server) openSession(w http.ResponseWriter, r *http.Request) {
	var req openRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	ref, err := s.catalog.Lookup(req.PaintingID)
	if err != nil {
		s.fail(w, err)
		return
	}
	facing, err := camera.ParseFacingMode(req.Facing)
	if err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	sess := s.sessions.Open(req.ViewID, ref, facing, req.Viewport)
	s.watchAttach(sess.ID)
	s.log.Info("session opened",
		zap.String("session", sess.ID),
		zap.String("view", req.ViewID),
		zap.String("artwork", ref.ID),
		zap.String("facing", string(facing)))

	if req.StartCamera == nil || *req.StartCamera {
		if _, err := sess.StartCamera(r.Context()); err != nil {
			s.fail(w, err)
			return
		}
	}
	respondJSON(w, viewOf(sess), http.StatusCreated)
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) (*arsession.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, err)
		return nil, false
	}
	return sess, true
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	if sess, ok := s.session(w, r); ok {
		respondJSON(w, viewOf(sess), http.StatusOK)
	}
}

func (s *Server) closeSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Close(id); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	if !s.exports.Allow(sess.ID) {
		w.Header().Set("Retry-After", "1")
		respondError(w, errRateLimited.Error(), http.StatusTooManyRequests)
		return
	}
	snap, err := sess.Snapshot()
	if err != nil {
		s.fail(w, err)
		return
	}
	data, err := snap.Bytes()
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", snap.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", snap.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) preview(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	img, err := sess.Preview()
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := png.Encode(w, img); err != nil {
		s.log.Warn("preview encode", zap.String("session", sess.ID), zap.Error(err))
	}
}

// fail maps domain errors to HTTP status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, artwork.ErrUnknownArtwork), errors.Is(err, arsession.ErrNotFound):
		respondError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, arsession.ErrClosed):
		respondError(w, err.Error(), http.StatusGone)
	default:
		s.log.Error("request failed", zap.Error(err))
		respondError(w, "internal error", http.StatusInternalServerError)
	}
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
