package http

import (
	"errors"
	"log/slog"
	"net/http"

	"orcamento/internal/core"
	"orcamento/internal/services"
	"orcamento/internal/storage"
)

// handleCategories renders the category management page on GET and creates
// a category on POST.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderCategoriesPage(w, r)
	case http.MethodPost:
		s.handleCreateCategory(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) renderCategoriesPage(w http.ResponseWriter, r *http.Request) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	cats, err := s.ledger.ListCategories(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "List categories error", "error", err)
		http.Error(w, "failed to load categories", http.StatusInternalServerError)
		return
	}

	type catRow struct {
		ID       int64
		Name     string
		Reserved bool
	}
	data := struct {
		Categories []catRow
	}{}
	for _, c := range cats {
		data.Categories = append(data.Categories, catRow{
			ID:       c.ID,
			Name:     c.Name,
			Reserved: c.Name == core.ReceitaCategory,
		})
	}

	if err := s.templates.ExecuteTemplate(w, "categories.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Categories template execution failed", "error", err, "template", "categories.html")
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	cat := core.Category{Name: sanitizeInput(r.Form.Get("name"))}
	if _, err := s.ledger.CreateCategory(r.Context(), cat); err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyName):
			s.renderFormError(w, http.StatusUnprocessableEntity, "category name is required")
		case errors.Is(err, core.ErrNameTooLong):
			s.renderFormError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, storage.ErrDuplicateCategory):
			s.renderFormError(w, http.StatusConflict, "category already exists")
		default:
			slog.ErrorContext(r.Context(), "Create category error", "error", err, "name", cat.Name)
			http.Error(w, "failed to save category", http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, "/categories", http.StatusSeeOther)
}

// handleUpdateCategory renames a category in place. The reserved income
// category and names already in use are rejected.
func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	id, err := parseFormID(r, "id")
	if err != nil {
		s.renderFormError(w, http.StatusUnprocessableEntity, "invalid category id")
		return
	}

	cat := core.Category{ID: id, Name: sanitizeInput(r.Form.Get("name"))}
	if err := s.ledger.UpdateCategory(r.Context(), cat); err != nil {
		switch {
		case errors.Is(err, core.ErrEmptyName):
			s.renderFormError(w, http.StatusUnprocessableEntity, "category name is required")
		case errors.Is(err, core.ErrNameTooLong):
			s.renderFormError(w, http.StatusUnprocessableEntity, err.Error())
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, "category not found", http.StatusNotFound)
		case errors.Is(err, storage.ErrDuplicateCategory):
			s.renderFormError(w, http.StatusConflict, "category already exists")
		case errors.Is(err, services.ErrReservedCategory):
			s.renderFormError(w, http.StatusConflict, "the income category cannot be renamed")
		default:
			slog.ErrorContext(r.Context(), "Update category error", "error", err, "category_id", id)
			http.Error(w, "failed to rename category", http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, "/categories", http.StatusSeeOther)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid request format", http.StatusBadRequest)
		return
	}

	id, err := parseFormID(r, "id")
	if err != nil {
		s.renderFormError(w, http.StatusUnprocessableEntity, "invalid category id")
		return
	}

	if err := s.ledger.DeleteCategory(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			http.Error(w, "category not found", http.StatusNotFound)
		case errors.Is(err, storage.ErrCategoryInUse):
			s.renderFormError(w, http.StatusConflict, "category still has entries")
		case errors.Is(err, services.ErrReservedCategory):
			s.renderFormError(w, http.StatusConflict, "the income category cannot be removed")
		default:
			slog.ErrorContext(r.Context(), "Delete category error", "error", err, "category_id", id)
			http.Error(w, "failed to delete category", http.StatusInternalServerError)
		}
		return
	}

	http.Redirect(w, r, "/categories", http.StatusSeeOther)
}
