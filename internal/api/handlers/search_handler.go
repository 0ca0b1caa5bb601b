package handlers

import (
	"net/http"
	"strconv"

	"github.com/openimis/openimis-be-medical/internal/api/middleware"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/providers"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

// SearchHandler serves full-text lookups over the catalog index
type SearchHandler struct {
	index providers.CatalogIndex
}

// NewSearchHandler creates a new search handler
func NewSearchHandler(index providers.CatalogIndex) *SearchHandler {
	return &SearchHandler{index: index}
}

// Search handles GET /api/catalog/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	if !middleware.CallerFromContext(r.Context()).IsAuthenticated() {
		respondWithError(w, http.StatusForbidden, apperrors.ErrorTypePermissionDenied, "unauthorized")
		return
	}

	q := r.URL.Query()
	params := providers.CatalogSearchParams{
		Query: q.Get("q"),
		Kind:  entities.EntryKind(q.Get("kind")),
		Limit: 20,
	}
	if params.Query == "" {
		respondWithError(w, http.StatusBadRequest, apperrors.ErrorTypeValidation, "q is required")
		return
	}
	switch params.Kind {
	case "", entities.KindItem, entities.KindService:
	default:
		respondWithError(w, http.StatusBadRequest, apperrors.ErrorTypeValidation, "kind must be item or service")
		return
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 250 {
			respondWithError(w, http.StatusBadRequest, apperrors.ErrorTypeValidation, "limit must be between 1 and 250")
			return
		}
		params.Limit = n
	}

	docs, err := h.index.Search(r.Context(), params)
	if err != nil {
		respondWithAppError(w, r, apperrors.NewExternalError("catalog search failed", err))
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"results": docs,
		"count":   len(docs),
	})
}
