package http

import (
	"net/http"
	"strconv"
	"strings"

	"tally/internal/core"
)

type groupResponse struct {
	Key            string          `json:"key"`
	Label          string          `json:"label"`
	Entries        []entryResponse `json:"entries"`
	TotalPayable   string          `json:"totalPayable"`
	TotalPayment   string          `json:"totalPayment"`
	TotalRemaining string          `json:"totalRemaining"`
	TotalIncome    string          `json:"totalIncome"`
	Net            string          `json:"net"`
}

func newGroupResponse(g core.Group) groupResponse {
	entries := make([]entryResponse, 0, len(g.Entries))
	for _, ae := range g.Entries {
		entries = append(entries, newEntryResponse(ae))
	}
	return groupResponse{
		Key:            g.Key,
		Label:          g.Label,
		Entries:        entries,
		TotalPayable:   core.FormatAmount(g.TotalPayable),
		TotalPayment:   core.FormatAmount(g.TotalPayment),
		TotalRemaining: core.FormatAmount(g.TotalRemaining),
		TotalIncome:    core.FormatAmount(g.TotalIncome),
		Net:            core.FormatAmount(g.Net()),
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, err := parseFilter(r, s.owner(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	mode := core.GroupMode(strings.TrimSpace(r.URL.Query().Get("group_by")))
	if mode == "" {
		mode = core.GroupByDate
	}
	if !mode.IsValid() {
		writeError(w, http.StatusBadRequest, "group_by must be date or category")
		return
	}

	groups, err := s.reports.BuildReport(r.Context(), filter, mode)
	if err != nil {
		s.serviceError(w, r, err, "Failed to build report")
		return
	}

	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, newGroupResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groupBy": string(mode),
		"groups":  out,
		"count":   len(out),
	})
}

// handleReportExtend widens a loaded date report by N days on one side.
// The endpoint is stateless: the loaded window is described entirely by
// loaded_from/loaded_to, and only the new groups come back.
func (s *Server) handleReportExtend(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter, err := parseFilter(r, s.owner(r))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q := r.URL.Query()

	dir := core.ExtendDirection(strings.TrimSpace(q.Get("direction")))
	if !dir.IsValid() {
		writeError(w, http.StatusBadRequest, "direction must be before or after")
		return
	}

	days, err := strconv.Atoi(strings.TrimSpace(q.Get("days")))
	if err != nil || days <= 0 {
		writeError(w, http.StatusBadRequest, "days must be a positive integer")
		return
	}

	loadedFrom, err := core.ParseDate(q.Get("loaded_from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "loaded_from must be YYYY-MM-DD")
		return
	}
	loadedTo, err := core.ParseDate(q.Get("loaded_to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "loaded_to must be YYYY-MM-DD")
		return
	}
	if loadedFrom.After(loadedTo.Time) {
		writeError(w, http.StatusBadRequest, "loaded_from must not be after loaded_to")
		return
	}

	window, err := s.reports.ExtendReport(r.Context(), filter, loadedFrom, loadedTo, dir, days)
	if err != nil {
		s.serviceError(w, r, err, "Failed to extend report")
		return
	}

	out := make([]groupResponse, 0, len(window.Groups))
	for _, g := range window.Groups {
		out = append(out, newGroupResponse(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"groups":     out,
		"count":      len(out),
		"loadedFrom": window.From.String(),
		"loadedTo":   window.To.String(),
	})
}
