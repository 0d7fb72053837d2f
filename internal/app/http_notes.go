package app

import (
	"net/http"
	"strings"

	"notehive/api/internal/store"
)

// handleNotes dispatches everything under /notes. parts holds the path
// segments after the prefix: nil for the collection, ["public"],
// ["note_x"], ["note_x", "histories"], and so on.
func (s *HTTPServer) handleNotes(w http.ResponseWriter, r *http.Request, sess Session, parts []string) {
	switch len(parts) {
	case 0:
		if r.Method == http.MethodPost {
			var body NoteInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.CreateNote(r.Context(), sess, body)
			if err != nil {
				s.writeMapped(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, payload)
			return
		}
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return

	case 1:
		switch parts[0] {
		case "public":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			filter, err := noteFilterQuery(r)
			if err != nil {
				s.writeMapped(w, r, err)
				return
			}
			payload, err := s.service.PublicNotes(r.Context(), sess, filter)
			if err != nil {
				s.writeMapped(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		case "private":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			filter, err := noteFilterQuery(r)
			if err != nil {
				s.writeMapped(w, r, err)
				return
			}
			payload, err := s.service.PrivateNotes(r.Context(), sess, filter)
			if err != nil {
				s.writeMapped(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}
		s.handleNote(w, r, sess, parts[0])
		return

	case 2:
		noteID := parts[0]
		switch parts[1] {
		case "histories":
			if r.Method != http.MethodGet {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			payload, err := s.service.NoteHistories(r.Context(), sess, noteID)
			if err != nil {
				s.writeMapped(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"data": payload})
			return
		case "restore":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			var body struct {
				HistoryID string `json:"historyId"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			if strings.TrimSpace(body.HistoryID) == "" {
				writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Validation failed", map[string]string{"historyId": "is required"})
				return
			}
			payload, err := s.service.RestoreNote(r.Context(), sess, noteID, body.HistoryID)
			if err != nil {
				s.writeMapped(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		case "vote":
			if r.Method != http.MethodPost {
				writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
				return
			}
			var body struct {
				VoteType string `json:"voteType"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			payload, err := s.service.VoteNote(r.Context(), sess, noteID, body.VoteType)
			if err != nil {
				s.writeMapped(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, payload)
			return
		}
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleNote(w http.ResponseWriter, r *http.Request, sess Session, id string) {
	switch r.Method {
	case http.MethodGet:
		payload, err := s.service.GetNote(r.Context(), sess, id)
		if err != nil {
			s.writeMapped(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case http.MethodPut, http.MethodPatch:
		var body NoteUpdateInput
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		payload, err := s.service.UpdateNote(r.Context(), sess, id, body)
		if err != nil {
			s.writeMapped(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
	case http.MethodDelete:
		if err := s.service.DeleteNote(r.Context(), sess, id); err != nil {
			s.writeMapped(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func noteFilterQuery(r *http.Request) (store.NoteFilter, error) {
	page, perPage, err := pageQuery(r)
	if err != nil {
		return store.NoteFilter{}, err
	}
	q := r.URL.Query()
	status := strings.TrimSpace(q.Get("status"))
	switch status {
	case "", store.StatusDraft, store.StatusPublished, "all":
	default:
		return store.NoteFilter{}, validationFailed(map[string]string{"status": "must be draft, published or all"})
	}
	return store.NoteFilter{
		Page:        page,
		PerPage:     perPage,
		Search:      strings.TrimSpace(q.Get("search")),
		Status:      status,
		WorkspaceID: strings.TrimSpace(q.Get("workspaceId")),
	}, nil
}
