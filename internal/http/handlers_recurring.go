package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"tally/internal/core"
	"tally/internal/log"
)

type recurringRuleRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"startDate"`
	// Active defaults to true when omitted.
	Active *bool `json:"active"`
}

type recurringRuleResponse struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId,omitempty"`
	Frequency   string `json:"frequency"`
	StartDate   string `json:"startDate"`
	LastRun     string `json:"lastRun,omitempty"`
	Active      bool   `json:"active"`
}

func newRecurringRuleResponse(rule core.RecurringRule) recurringRuleResponse {
	resp := recurringRuleResponse{
		ID:          rule.ID,
		Owner:       rule.Owner,
		Type:        string(rule.Type),
		Amount:      core.FormatAmount(rule.Amount),
		Description: rule.Description,
		CategoryID:  rule.CategoryID,
		Frequency:   string(rule.Frequency),
		StartDate:   rule.StartDate.String(),
		Active:      rule.Active,
	}
	if !rule.LastRun.IsEmpty() {
		resp.LastRun = rule.LastRun.String()
	}
	return resp
}

func (s *Server) handleRecurringRules(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listRecurringRules(w, r)
	case http.MethodPost:
		s.createRecurringRule(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleRecurringRuleByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/recurring/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getRecurringRule(w, r, id)
	case http.MethodPut:
		s.updateRecurringRule(w, r, id)
	case http.MethodDelete:
		s.deleteRecurringRule(w, r, id)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) ruleFromRequest(r *http.Request, req recurringRuleRequest) (core.RecurringRule, error) {
	amount, err := core.ParseAmount(req.Amount)
	if err != nil {
		return core.RecurringRule{}, err
	}
	startDate, err := core.ParseDate(req.StartDate)
	if err != nil {
		return core.RecurringRule{}, err
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	return core.RecurringRule{
		Owner:       s.owner(r),
		Type:        core.EntryType(strings.TrimSpace(req.Type)),
		Amount:      amount,
		Description: sanitizeInput(req.Description),
		CategoryID:  strings.TrimSpace(req.CategoryID),
		Frequency:   core.Frequency(strings.TrimSpace(req.Frequency)),
		StartDate:   startDate,
		Active:      active,
	}, nil
}

func (s *Server) createRecurringRule(w http.ResponseWriter, r *http.Request) {
	var req recurringRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := s.ruleFromRequest(r, req)
	if err != nil {
		s.serviceError(w, r, err, "Failed to create recurring rule")
		return
	}

	created, err := s.ledger.CreateRecurringRule(r.Context(), rule)
	if err != nil {
		s.serviceError(w, r, err, "Failed to create recurring rule")
		return
	}

	s.logger.InfoContext(r.Context(), "Recurring rule created",
		log.FieldRuleID, created.ID,
		log.FieldOwner, created.Owner,
		"frequency", string(created.Frequency))
	writeJSON(w, http.StatusCreated, newRecurringRuleResponse(created))
}

func (s *Server) listRecurringRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.ledger.ListRecurringRules(r.Context(), s.owner(r))
	if err != nil {
		s.serviceError(w, r, err, "Failed to list recurring rules")
		return
	}

	out := make([]recurringRuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, newRecurringRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rules": out,
		"count": len(out),
	})
}

func (s *Server) getRecurringRule(w http.ResponseWriter, r *http.Request, id string) {
	rule, err := s.ledger.GetRecurringRule(r.Context(), s.owner(r), id)
	if err != nil {
		s.serviceError(w, r, err, "Failed to get recurring rule")
		return
	}
	writeJSON(w, http.StatusOK, newRecurringRuleResponse(rule))
}

func (s *Server) updateRecurringRule(w http.ResponseWriter, r *http.Request, id string) {
	var req recurringRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	rule, err := s.ruleFromRequest(r, req)
	if err != nil {
		s.serviceError(w, r, err, "Failed to update recurring rule")
		return
	}
	rule.ID = id

	updated, err := s.ledger.UpdateRecurringRule(r.Context(), rule)
	if err != nil {
		s.serviceError(w, r, err, "Failed to update recurring rule")
		return
	}
	writeJSON(w, http.StatusOK, newRecurringRuleResponse(updated))
}

func (s *Server) deleteRecurringRule(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.ledger.DeleteRecurringRule(r.Context(), s.owner(r), id); err != nil {
		s.serviceError(w, r, err, "Failed to delete recurring rule")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
