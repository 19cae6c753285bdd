package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/envmon/internal/service"
	"github.com/vbonduro/envmon/internal/store"
)

// historyList is the data for the history_list partial. Notices are only set
// when the partial is swapped in on its own, since the page layout already
// renders them otherwise.
type historyList struct {
	Entries []service.HistoryEntry
	Notices []service.Notice
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"List":      historyList{Entries: s.service.History(r.Context())},
		"Notices":   s.service.TakeNotices(),
		"ActiveNav": "history",
	}
	if err := s.renderPage(w, data, "base.html", "pages/history.html", "partials/history_list.html"); err != nil {
		s.logger.Error("render page failed", "page", "history", "error", err)
	}
}

func (s *Server) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid measurement id", http.StatusBadRequest)
		return
	}

	data, err := s.service.Thumbnail(r.Context(), id, thumbnailSide)
	if errors.Is(err, service.ErrNoThumbnail) || errors.Is(err, store.ErrNotFound) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, "failed to render thumbnail", http.StatusInternalServerError)
		s.logger.Error("thumbnail failed", "id", id, "error", err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write thumbnail failed", "id", id, "error", err)
	}
}

// handleDeleteForm serves the no-script delete button.
func (s *Server) handleDeleteForm(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid measurement id", http.StatusBadRequest)
		return
	}
	if err := s.service.Delete(r.Context(), id); err != nil {
		s.logger.Error("delete measurement failed", "id", id, "error", err)
	}
	http.Redirect(w, r, "/history", http.StatusSeeOther)
}

// handleDelete removes a measurement. htmx callers get the reloaded list to
// swap in place; other callers are told to reload the history page.
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r)
	if err != nil {
		http.Error(w, "invalid measurement id", http.StatusBadRequest)
		return
	}
	if err := s.service.Delete(r.Context(), id); err != nil {
		http.Error(w, "failed to delete measurement", http.StatusInternalServerError)
		s.logger.Error("delete measurement failed", "id", id, "error", err)
		return
	}

	if r.Header.Get("HX-Request") != "true" {
		w.Header().Set("HX-Redirect", "/history")
		w.WriteHeader(http.StatusOK)
		return
	}
	list := historyList{
		Entries: s.service.History(r.Context()),
		Notices: s.service.TakeNotices(),
	}
	if err := s.renderPartial(w, "partials/history_list.html", list); err != nil {
		s.logger.Error("render partial failed", "error", err)
	}
}
