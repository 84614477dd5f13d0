package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"tally/internal/core"
	"tally/internal/log"
)

type entryRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Date        string `json:"date"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId"`
}

type entryResponse struct {
	ID              string `json:"id"`
	Owner           string `json:"owner"`
	Type            string `json:"type"`
	Amount          string `json:"amount"`
	Date            string `json:"date"`
	Description     string `json:"description,omitempty"`
	CategoryID      string `json:"categoryId,omitempty"`
	CategoryName    string `json:"categoryName,omitempty"`
	TotalPaid       string `json:"totalPaid"`
	Remaining       string `json:"remaining"`
	IsFullyPaid     bool   `json:"isFullyPaid"`
	IsPartiallyPaid bool   `json:"isPartiallyPaid"`
}

func newEntryResponse(ae core.AnnotatedEntry) entryResponse {
	return entryResponse{
		ID:              ae.ID,
		Owner:           ae.Owner,
		Type:            string(ae.Type),
		Amount:          core.FormatAmount(ae.Amount),
		Date:            ae.Date.String(),
		Description:     ae.Description,
		CategoryID:      ae.CategoryID,
		CategoryName:    ae.CategoryName,
		TotalPaid:       core.FormatAmount(ae.TotalPaid),
		Remaining:       core.FormatAmount(ae.Remaining),
		IsFullyPaid:     ae.FullyPaid,
		IsPartiallyPaid: ae.PartiallyPaid,
	}
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listEntries(w, r)
	case http.MethodPost:
		s.createEntry(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handleEntrySubtree dispatches /entries/{id} and /entries/{id}/payments.
func (s *Server) handleEntrySubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/entries/")
	segments := strings.Split(rest, "/")

	switch {
	case len(segments) == 1 && segments[0] != "":
		s.handleEntryByID(w, r, segments[0])
	case len(segments) == 2 && segments[0] != "" && segments[1] == "payments":
		s.handleEntryPayments(w, r, segments[0])
	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

func (s *Server) handleEntryByID(w http.ResponseWriter, r *http.Request, id string) {
	switch r.Method {
	case http.MethodGet:
		s.getEntry(w, r, id)
	case http.MethodPut:
		s.updateEntry(w, r, id)
	case http.MethodDelete:
		s.deleteEntry(w, r, id)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// entryFromRequest builds a domain entry from the request payload. Amount
// and date are validated here; the rest is left to core validation.
func (s *Server) entryFromRequest(r *http.Request, req entryRequest) (core.Entry, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.Entry{}, err
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.Entry{}, err
	}
	return core.Entry{
		Owner:       s.owner(r),
		Type:        core.EntryType(strings.TrimSpace(req.Type)),
		Amount:      amount,
		Date:        date,
		Description: sanitizeInput(req.Description),
		CategoryID:  strings.TrimSpace(req.CategoryID),
	}, nil
}

func (s *Server) createEntry(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	e, err := s.entryFromRequest(r, req)
	if err != nil {
		s.serviceError(w, r, err, "Failed to create entry")
		return
	}

	created, err := s.ledger.CreateEntry(r.Context(), e)
	if err != nil {
		s.serviceError(w, r, err, "Failed to create entry")
		return
	}

	s.logger.InfoContext(r.Context(), "Entry created",
		log.FieldEntryID, created.ID,
		log.FieldOwner, created.Owner,
		log.FieldEntryType, string(created.Type),
		log.FieldAmount, created.Amount.String())

	// A fresh entry has no payments yet.
	ann := core.AnnotatedEntry{Entry: created, Settlement: core.ComputeSettlement(created, nil)}
	writeJSON(w, http.StatusCreated, newEntryResponse(ann))
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r, s.owner(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := s.reports.ListEntries(r.Context(), filter)
	if err != nil {
		s.serviceError(w, r, err, "Failed to list entries")
		return
	}

	out := make([]entryResponse, 0, len(entries))
	for _, ae := range entries {
		out = append(out, newEntryResponse(ae))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": out,
		"count":   len(out),
	})
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request, id string) {
	ae, err := s.reports.GetEntry(r.Context(), s.owner(r), id)
	if err != nil {
		s.serviceError(w, r, err, "Failed to get entry")
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(ae))
}

func (s *Server) updateEntry(w http.ResponseWriter, r *http.Request, id string) {
	var req entryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	e, err := s.entryFromRequest(r, req)
	if err != nil {
		s.serviceError(w, r, err, "Failed to update entry")
		return
	}
	e.ID = id

	if _, err := s.ledger.UpdateEntry(r.Context(), e); err != nil {
		s.serviceError(w, r, err, "Failed to update entry")
		return
	}

	// Re-read so the response carries the current settlement.
	ae, err := s.reports.GetEntry(r.Context(), e.Owner, id)
	if err != nil {
		s.serviceError(w, r, err, "Failed to get entry")
		return
	}
	writeJSON(w, http.StatusOK, newEntryResponse(ae))
}

func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.ledger.DeleteEntry(r.Context(), s.owner(r), id); err != nil {
		s.serviceError(w, r, err, "Failed to delete entry")
		return
	}

	s.logger.InfoContext(r.Context(), "Entry deleted", log.FieldEntryID, id)
	writeJSON(w, http.StatusNoContent, nil)
}
