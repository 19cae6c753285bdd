package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/vbonduro/envmon/internal/sensor/location"
	"github.com/vbonduro/envmon/internal/service"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.service.EnterHome(r.Context())
	s.renderHome(w)
}

func (s *Server) renderHome(w http.ResponseWriter) {
	data := map[string]any{
		"State":     s.service.State(),
		"Notices":   s.service.TakeNotices(),
		"ActiveNav": "home",
	}
	if err := s.renderPage(w, data, "base.html", "pages/home.html"); err != nil {
		s.logger.Error("render page failed", "page", "home", "error", err)
	}
}

func (s *Server) handleAcquireLocation(w http.ResponseWriter, r *http.Request) {
	_, err := s.service.AcquireLocation(r.Context())
	if err != nil && !errors.Is(err, location.ErrNoFix) && !errors.Is(err, service.ErrPermissionDenied) {
		s.logger.Error("acquire location failed", "error", err)
	}
	redirect(w, r, "/home")
}

func (s *Server) handleMeasureNoise(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.MeasureNoise(r.Context()); err != nil && !errors.Is(err, service.ErrPermissionDenied) {
		s.logger.Warn("measure noise rejected", "error", err)
	}
	redirect(w, r, "/home")
}

// noiseEvent is the JSON payload of a noise stream event.
type noiseEvent struct {
	Level     float64 `json:"level"`
	Text      string  `json:"text"`
	Simulated bool    `json:"simulated"`
}

// handleStreamNoise starts a measurement and answers with an SSE stream that
// carries the reading as one data event followed by a "done" event. The
// measurement completes even if the client goes away first.
func (s *Server) handleStreamNoise(w http.ResponseWriter, r *http.Request) {
	readings, err := s.service.MeasureNoise(r.Context())
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		http.Error(w, "microphone unavailable", http.StatusForbidden)
		return
	case errors.Is(err, service.ErrMeasurementInProgress):
		http.Error(w, "measurement in progress", http.StatusConflict)
		return
	case err != nil:
		http.Error(w, "failed to measure noise", http.StatusInternalServerError)
		s.logger.Error("measure noise failed", "error", err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	select {
	case <-r.Context().Done():
		return
	case reading, ok := <-readings:
		if ok {
			payload, err := json.Marshal(noiseEvent{
				Level:     reading.Level,
				Text:      s.service.State().NoiseText,
				Simulated: reading.Simulated,
			})
			if err != nil {
				s.logger.Error("encode noise event failed", "error", err)
				return
			}
			if _, err := w.Write([]byte("data: " + string(payload) + "\n\n")); err != nil {
				return
			}
		}
	}

	if _, err := w.Write([]byte("event: done\ndata: {}\n\n")); err != nil {
		s.logger.Error("write done event failed", "error", err)
	}
	if canFlush {
		flusher.Flush()
	}
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.Save(r.Context()); err != nil && !errors.Is(err, service.ErrNothingToSave) {
		s.logger.Error("save measurement failed", "error", err)
	}
	redirect(w, r, "/home")
}
