package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"tally/internal/core"
	"tally/internal/log"
	"tally/internal/storage"
)

const ownerHeader = "X-Owner"

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// owner resolves the acting owner from the X-Owner header, falling back to
// the configured default.
func (s *Server) owner(r *http.Request) string {
	if o := sanitizeInput(r.Header.Get(ownerHeader)); o != "" {
		return o
	}
	return s.defaultOwner
}

// serviceError translates a service failure into an HTTP response. Domain
// validation and not-found errors surface to the client; anything else is
// logged and hidden behind the generic message.
func (s *Server) serviceError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), message, log.FieldError, err)
		writeError(w, status, message)
		return
	}
	writeError(w, status, err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicateName):
		return http.StatusConflict
	case errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidEntryType),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrEmptyOwner),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrMissingEntry),
		errors.Is(err, core.ErrDescriptionTooLong):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// sanitizeInput removes potentially dangerous characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	result := strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
	return result
}

// parseFilter reads the shared list/report query parameters. Invalid values
// are rejected here so the core never sees them.
func parseFilter(r *http.Request, owner string) (core.EntryFilter, error) {
	q := r.URL.Query()
	f := core.EntryFilter{Owner: owner}

	if v := strings.TrimSpace(q.Get("type")); v != "" {
		t := core.EntryType(v)
		if !t.IsValid() {
			return f, errors.New("type must be income or expense")
		}
		f.Type = t
	}
	for _, id := range q["category_id"] {
		if id = strings.TrimSpace(id); id != "" {
			f.CategoryIDs = append(f.CategoryIDs, id)
		}
	}
	if v := strings.TrimSpace(q.Get("date_from")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, errors.New("date_from must be YYYY-MM-DD")
		}
		f.From = d
	}
	if v := strings.TrimSpace(q.Get("date_to")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return f, errors.New("date_to must be YYYY-MM-DD")
		}
		f.To = d
	}
	return f, nil
}
