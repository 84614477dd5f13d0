package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"tally/internal/core"
	"tally/internal/log"
)

type categoryRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

type categoryResponse struct {
	ID          string `json:"id"`
	Owner       string `json:"owner"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func newCategoryResponse(c core.Category) categoryResponse {
	return categoryResponse{
		ID:          c.ID,
		Owner:       c.Owner,
		Name:        c.Name,
		Description: c.Description,
	}
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listCategories(w, r)
	case http.MethodPost:
		s.createCategory(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) handleCategoryByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/categories/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.getCategory(w, r, id)
	case http.MethodPut:
		s.updateCategory(w, r, id)
	case http.MethodDelete:
		s.deleteCategory(w, r, id)
	default:
		w.Header().Set("Allow", "GET, PUT, DELETE")
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}

func (s *Server) createCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := s.ledger.CreateCategory(r.Context(), core.Category{
		Owner:       s.owner(r),
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
	})
	if err != nil {
		s.serviceError(w, r, err, "Failed to create category")
		return
	}

	s.logger.InfoContext(r.Context(), "Category created",
		"category_id", created.ID,
		log.FieldOwner, created.Owner)
	writeJSON(w, http.StatusCreated, newCategoryResponse(created))
}

func (s *Server) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.ledger.ListCategories(r.Context(), s.owner(r))
	if err != nil {
		s.serviceError(w, r, err, "Failed to list categories")
		return
	}

	out := make([]categoryResponse, 0, len(cats))
	for _, c := range cats {
		out = append(out, newCategoryResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"categories": out,
		"count":      len(out),
	})
}

func (s *Server) getCategory(w http.ResponseWriter, r *http.Request, id string) {
	c, err := s.ledger.GetCategory(r.Context(), s.owner(r), id)
	if err != nil {
		s.serviceError(w, r, err, "Failed to get category")
		return
	}
	writeJSON(w, http.StatusOK, newCategoryResponse(c))
}

func (s *Server) updateCategory(w http.ResponseWriter, r *http.Request, id string) {
	var req categoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	updated, err := s.ledger.UpdateCategory(r.Context(), core.Category{
		ID:          id,
		Owner:       s.owner(r),
		Name:        sanitizeInput(req.Name),
		Description: sanitizeInput(req.Description),
	})
	if err != nil {
		s.serviceError(w, r, err, "Failed to update category")
		return
	}
	writeJSON(w, http.StatusOK, newCategoryResponse(updated))
}

func (s *Server) deleteCategory(w http.ResponseWriter, r *http.Request, id string) {
	if err := s.ledger.DeleteCategory(r.Context(), s.owner(r), id); err != nil {
		s.serviceError(w, r, err, "Failed to delete category")
		return
	}
	writeJSON(w, http.StatusNoContent, nil)
}
