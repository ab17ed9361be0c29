package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/tour-availability/backend/internal/api/middleware"
	"github.com/tour-availability/backend/internal/storage"
	"github.com/tour-availability/backend/internal/storage/models"
)

// Source request types

type CreateSourceRequest struct {
	Name     string `json:"name"`
	FeedURL  string `json:"feed_url"`
	ColorTag string `json:"color_tag"`
	Enabled  bool   `json:"enabled"`
}

type UpdateSourceRequest struct {
	Name     *string `json:"name"`
	FeedURL  *string `json:"feed_url"`
	ColorTag *string `json:"color_tag"`
	Enabled  *bool   `json:"enabled"`
}

func validFeedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// ListSources returns all registered calendar sources.
func ListSources(repo *storage.SourceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := repo.List(r.Context())
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query sources")
			return
		}

		if sources == nil {
			sources = []models.CalendarSource{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(sources)
	}
}

// CreateSource registers a new calendar source.
func CreateSource(repo *storage.SourceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateSourceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.Name == "" || req.FeedURL == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name and feed URL are required")
			return
		}
		if !validFeedURL(req.FeedURL) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Feed URL must be an absolute http(s) URL")
			return
		}

		src := &models.CalendarSource{
			Name:     req.Name,
			FeedURL:  req.FeedURL,
			ColorTag: req.ColorTag,
			Enabled:  req.Enabled,
		}
		if err := repo.Create(r.Context(), src); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create source")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(src)
	}
}

// GetSource returns a single source by ID.
func GetSource(repo *storage.SourceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		src, err := repo.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query source")
			return
		}
		if src == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Source not found")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(src)
	}
}

// UpdateSource applies a partial update to a source.
func UpdateSource(repo *storage.SourceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		var req UpdateSourceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		src, err := repo.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query source")
			return
		}
		if src == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Source not found")
			return
		}

		if req.Name != nil {
			if *req.Name == "" {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name cannot be empty")
				return
			}
			src.Name = *req.Name
		}
		if req.FeedURL != nil {
			if !validFeedURL(*req.FeedURL) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Feed URL must be an absolute http(s) URL")
				return
			}
			src.FeedURL = *req.FeedURL
		}
		if req.ColorTag != nil {
			src.ColorTag = *req.ColorTag
		}
		if req.Enabled != nil {
			src.Enabled = *req.Enabled
		}

		if err := repo.Update(r.Context(), src); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update source")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(src)
	}
}

// DeleteSource removes a source. Busy intervals imported from it disappear
// from the merged view on the next sync run.
func DeleteSource(repo *storage.SourceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]

		src, err := repo.GetByID(r.Context(), id)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query source")
			return
		}
		if src == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Source not found")
			return
		}

		if err := repo.Delete(r.Context(), id); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete source")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}
