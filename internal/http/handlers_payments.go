package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"tally/internal/core"
	"tally/internal/log"
)

type paymentRequest struct {
	Amount string `json:"amount"`
	Date   string `json:"date"`
	Notes  string `json:"notes"`
}

type paymentResponse struct {
	ID      string `json:"id"`
	EntryID string `json:"entryId"`
	Amount  string `json:"amount"`
	Date    string `json:"date"`
	Notes   string `json:"notes,omitempty"`
}

func newPaymentResponse(p core.Payment) paymentResponse {
	return paymentResponse{
		ID:      p.ID,
		EntryID: p.EntryID,
		Amount:  core.FormatAmount(p.Amount),
		Date:    p.Date.String(),
		Notes:   p.Notes,
	}
}

func (s *Server) handleEntryPayments(w http.ResponseWriter, r *http.Request, entryID string) {
	switch r.Method {
	case http.MethodGet:
		s.listPayments(w, r, entryID)
	case http.MethodPost:
		s.createPayment(w, r, entryID)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

// handlePaymentByID serves /payments/{id}. Payments are immutable, so the
// only verb here is DELETE.
func (s *Server) handlePaymentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/payments/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", "DELETE")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	if err := s.ledger.DeletePayment(r.Context(), s.owner(r), id); err != nil {
		s.serviceError(w, r, err, "Failed to delete payment")
		return
	}

	s.logger.InfoContext(r.Context(), "Payment deleted", "payment_id", id)
	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) createPayment(w http.ResponseWriter, r *http.Request, entryID string) {
	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		s.serviceError(w, r, err, "Failed to record payment")
		return
	}
	date, err := core.ParseDate(req.Date)
	if err != nil {
		s.serviceError(w, r, err, "Failed to record payment")
		return
	}

	created, err := s.ledger.RecordPayment(r.Context(), s.owner(r), core.Payment{
		EntryID: entryID,
		Amount:  amount,
		Date:    date,
		Notes:   sanitizeInput(req.Notes),
	})
	if err != nil {
		s.serviceError(w, r, err, "Failed to record payment")
		return
	}

	s.logger.InfoContext(r.Context(), "Payment recorded",
		"payment_id", created.ID,
		log.FieldEntryID, created.EntryID,
		log.FieldAmount, created.Amount.String())
	writeJSON(w, http.StatusCreated, newPaymentResponse(created))
}

func (s *Server) listPayments(w http.ResponseWriter, r *http.Request, entryID string) {
	payments, err := s.ledger.ListPayments(r.Context(), s.owner(r), entryID)
	if err != nil {
		s.serviceError(w, r, err, "Failed to list payments")
		return
	}

	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, newPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"payments": out,
		"count":    len(out),
	})
}
