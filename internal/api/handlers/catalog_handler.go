package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/openimis/openimis-be-medical/internal/api/loaders"
	"github.com/openimis/openimis-be-medical/internal/api/middleware"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/repositories"
	apperrors "github.com/openimis/openimis-be-medical/pkg/errors"
)

// CatalogService is the catalog façade the handlers drive
type CatalogService interface {
	CreateItem(ctx context.Context, caller *entities.Caller, input *entities.ItemInput) (*entities.Item, error)
	UpdateItem(ctx context.Context, caller *entities.Caller, input *entities.ItemInput) (*entities.Item, error)
	DeleteItems(ctx context.Context, caller *entities.Caller, uuids []string) (entities.DeleteResult, error)
	ListItems(ctx context.Context, caller *entities.Caller, filter entities.CatalogFilter) (*entities.CatalogPage[*entities.Item], error)
	GetItem(ctx context.Context, caller *entities.Caller, uuid string) (*entities.Item, error)
	ValidateItemCode(ctx context.Context, caller *entities.Caller, code string) (bool, error)

	CreateService(ctx context.Context, caller *entities.Caller, input *entities.ServiceInput) (*entities.Service, error)
	UpdateService(ctx context.Context, caller *entities.Caller, input *entities.ServiceInput) (*entities.Service, error)
	DeleteServices(ctx context.Context, caller *entities.Caller, uuids []string) (entities.DeleteResult, error)
	ListServices(ctx context.Context, caller *entities.Caller, filter entities.CatalogFilter) (*entities.CatalogPage[*entities.Service], error)
	GetService(ctx context.Context, caller *entities.Caller, uuid string) (*entities.Service, error)
	ValidateServiceCode(ctx context.Context, caller *entities.Caller, code string) (bool, error)

	ListDiagnoses(ctx context.Context, caller *entities.Caller, search string, date *time.Time) ([]*entities.Diagnosis, error)
	GetDiagnosis(ctx context.Context, caller *entities.Caller, code string) (*entities.Diagnosis, error)
}

// CatalogHandler handles item, service and diagnosis HTTP requests
type CatalogHandler struct {
	catalog CatalogService
	store   repositories.CatalogStore
}

// NewCatalogHandler creates a new catalog handler. store backs the loaders
// that resolve the items and services child links point at.
func NewCatalogHandler(catalog CatalogService, store repositories.CatalogStore) *CatalogHandler {
	return &CatalogHandler{catalog: catalog, store: store}
}

type deleteRequest struct {
	UUIDs []string `json:"uuids"`
}

type deleteResponse struct {
	OK     bool                  `json:"ok"`
	Errors entities.DeleteResult `json:"errors"`
}

type validateCodeResponse struct {
	Code  string `json:"code"`
	Valid bool   `json:"valid"`
}

// ListItems handles GET /api/items
func (h *CatalogHandler) ListItems(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCatalogFilter(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	page, err := h.catalog.ListItems(r.Context(), middleware.CallerFromContext(r.Context()), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, page)
}

// GetItem handles GET /api/items/{uuid}
func (h *CatalogHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.catalog.GetItem(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("uuid"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

// CreateItem handles POST /api/items
func (h *CatalogHandler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var input entities.ItemInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithMutationError(w, r, "", err)
		return
	}
	item, err := h.catalog.CreateItem(r.Context(), middleware.CallerFromContext(r.Context()), &input)
	if err != nil {
		respondWithMutationError(w, r, input.Code, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, item)
}

// UpdateItem handles PUT /api/items/{uuid}
func (h *CatalogHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var input entities.ItemInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithMutationError(w, r, "", err)
		return
	}
	if err := bindPathUUID(r, &input.EntryInput); err != nil {
		respondWithMutationError(w, r, input.Code, err)
		return
	}
	item, err := h.catalog.UpdateItem(r.Context(), middleware.CallerFromContext(r.Context()), &input)
	if err != nil {
		respondWithMutationError(w, r, input.Code, err)
		return
	}
	respondWithJSON(w, http.StatusOK, item)
}

// DeleteItems handles POST /api/items/delete
func (h *CatalogHandler) DeleteItems(w http.ResponseWriter, r *http.Request) {
	h.deleteEntries(w, r, h.catalog.DeleteItems)
}

// ValidateItemCode handles GET /api/items/validate-code
func (h *CatalogHandler) ValidateItemCode(w http.ResponseWriter, r *http.Request) {
	h.validateCode(w, r, h.catalog.ValidateItemCode)
}

// ListServices handles GET /api/services. children=true adds the current
// child links with the entries they reference.
func (h *CatalogHandler) ListServices(w http.ResponseWriter, r *http.Request) {
	filter, err := parseCatalogFilter(r.URL.Query())
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	page, err := h.catalog.ListServices(r.Context(), middleware.CallerFromContext(r.Context()), filter)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if filter.WithChildren {
		if err := h.resolveChildren(r.Context(), page.Entries); err != nil {
			respondWithAppError(w, r, err)
			return
		}
	}
	respondWithJSON(w, http.StatusOK, page)
}

// GetService handles GET /api/services/{uuid}
func (h *CatalogHandler) GetService(w http.ResponseWriter, r *http.Request) {
	service, err := h.catalog.GetService(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("uuid"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if err := h.resolveChildren(r.Context(), []*entities.Service{service}); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, service)
}

// CreateService handles POST /api/services
func (h *CatalogHandler) CreateService(w http.ResponseWriter, r *http.Request) {
	var input entities.ServiceInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithMutationError(w, r, "", err)
		return
	}
	service, err := h.catalog.CreateService(r.Context(), middleware.CallerFromContext(r.Context()), &input)
	if err != nil {
		respondWithMutationError(w, r, input.Code, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, service)
}

// UpdateService handles PUT /api/services/{uuid}
func (h *CatalogHandler) UpdateService(w http.ResponseWriter, r *http.Request) {
	var input entities.ServiceInput
	if err := decodeJSON(r, &input); err != nil {
		respondWithMutationError(w, r, "", err)
		return
	}
	if err := bindPathUUID(r, &input.EntryInput); err != nil {
		respondWithMutationError(w, r, input.Code, err)
		return
	}
	service, err := h.catalog.UpdateService(r.Context(), middleware.CallerFromContext(r.Context()), &input)
	if err != nil {
		respondWithMutationError(w, r, input.Code, err)
		return
	}
	respondWithJSON(w, http.StatusOK, service)
}

// DeleteServices handles POST /api/services/delete
func (h *CatalogHandler) DeleteServices(w http.ResponseWriter, r *http.Request) {
	h.deleteEntries(w, r, h.catalog.DeleteServices)
}

// ValidateServiceCode handles GET /api/services/validate-code
func (h *CatalogHandler) ValidateServiceCode(w http.ResponseWriter, r *http.Request) {
	h.validateCode(w, r, h.catalog.ValidateServiceCode)
}

// ListDiagnoses handles GET /api/diagnoses
func (h *CatalogHandler) ListDiagnoses(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	diagnoses, err := h.catalog.ListDiagnoses(r.Context(), middleware.CallerFromContext(r.Context()), r.URL.Query().Get("search"), date)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"diagnoses": diagnoses,
		"count":     len(diagnoses),
	})
}

// GetDiagnosis handles GET /api/diagnoses/{code}
func (h *CatalogHandler) GetDiagnosis(w http.ResponseWriter, r *http.Request) {
	diagnosis, err := h.catalog.GetDiagnosis(r.Context(), middleware.CallerFromContext(r.Context()), r.PathValue("code"))
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, diagnosis)
}

func (h *CatalogHandler) deleteEntries(
	w http.ResponseWriter,
	r *http.Request,
	del func(context.Context, *entities.Caller, []string) (entities.DeleteResult, error),
) {
	var req deleteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, r, err)
		return
	}
	if len(req.UUIDs) == 0 {
		respondWithAppError(w, r, apperrors.NewValidationError("uuids is required"))
		return
	}
	result, err := del(r.Context(), middleware.CallerFromContext(r.Context()), req.UUIDs)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, deleteResponse{OK: result.OK(), Errors: result})
}

func (h *CatalogHandler) validateCode(
	w http.ResponseWriter,
	r *http.Request,
	validate func(context.Context, *entities.Caller, string) (bool, error),
) {
	code := r.URL.Query().Get("code")
	if code == "" {
		respondWithAppError(w, r, apperrors.NewValidationError("code is required"))
		return
	}
	valid, err := validate(r.Context(), middleware.CallerFromContext(r.Context()), code)
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, validateCodeResponse{Code: code, Valid: valid})
}

// Store returns the store backing the child link loaders
func (h *CatalogHandler) Store() repositories.CatalogStore {
	return h.store
}

func (h *CatalogHandler) resolveChildren(ctx context.Context, services []*entities.Service) error {
	l := loaders.For(ctx)
	if l == nil {
		l = loaders.NewLoaders(h.store)
	}
	return l.ResolveChildren(ctx, services)
}

// bindPathUUID makes the path uuid authoritative over the body
func bindPathUUID(r *http.Request, input *entities.EntryInput) error {
	id := r.PathValue("uuid")
	if input.UUID != "" && input.UUID != id {
		return apperrors.NewValidationError("uuid in body does not match the path")
	}
	input.UUID = id
	return nil
}
