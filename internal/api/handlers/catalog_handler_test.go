package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/openimis/openimis-be-medical/internal/adapters/memory"
	"github.com/openimis/openimis-be-medical/internal/api/handlers"
	"github.com/openimis/openimis-be-medical/internal/api/middleware"
	"github.com/openimis/openimis-be-medical/internal/api/routes"
	"github.com/openimis/openimis-be-medical/internal/application/services"
	"github.com/openimis/openimis-be-medical/internal/domain/entities"
	"github.com/openimis/openimis-be-medical/internal/domain/providers"
)

const secret = "handler-secret"

var allPerms = []string{
	"122101", "122102", "122103", "122104",
	"121401", "121402", "121403", "121404",
}

type api struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
}

func newAPI(t *testing.T, index providers.CatalogIndex) *api {
	t.Helper()
	store := memory.NewStore()
	catalog := services.NewCatalogService(services.CatalogDeps{
		Store:       store,
		Permissions: entities.DefaultPermissionTable(),
	})

	var search *handlers.SearchHandler
	if index != nil {
		search = handlers.NewSearchHandler(index)
	}
	router := routes.NewRouter(
		handlers.NewCatalogHandler(catalog, store.Store()),
		search,
		middleware.NewAuthenticator(secret, ""),
		[]string{"*"},
		nil,
	)
	return &api{t: t, handler: router.SetupRoutes(), store: store}
}

func token(t *testing.T, perms ...string) string {
	t.Helper()
	claims := middleware.CallerClaims{AuditUserID: 5, Perms: perms}
	claims.Subject = "clerk"
	signed, err := middleware.SignCallerToken(secret, claims)
	require.NoError(t, err)
	return signed
}

// do sends a request; an empty bearer token sends it anonymously
func (a *api) do(method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func itemBody(code string) map[string]interface{} {
	return map[string]interface{}{
		"code":               code,
		"name":               "Item " + code,
		"type":               "D",
		"care_type":          "B",
		"price":              "12.50",
		"patient_categories": []string{"ADULT", "FEMALE"},
	}
}

func serviceBody(code string) map[string]interface{} {
	return map[string]interface{}{
		"code":             code,
		"name":             "Service " + code,
		"type":             "P",
		"level":            "S",
		"care_type":        "O",
		"price":            "40",
		"patient_category": 15,
		"package_type":     "P",
	}
}

func TestCreateItem(t *testing.T) {
	a := newAPI(t, nil)
	admin := token(t, allPerms...)

	w := a.do(http.MethodPost, "/api/items", admin, itemBody("PARA"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	item := decode[entities.Item](t, w)
	assert.NotEmpty(t, item.UUID)
	assert.Equal(t, "PARA", item.Code)
	assert.Equal(t, entities.PatientCategoryAdult|entities.PatientCategoryFemale, item.PatientCategory)
	assert.Equal(t, 5, item.AuditUserID)
	assert.Equal(t, "12.5", item.Price.String())
}

func TestCreateItem_Errors(t *testing.T) {
	a := newAPI(t, nil)
	admin := token(t, allPerms...)
	require.Equal(t, http.StatusCreated, a.do(http.MethodPost, "/api/items", admin, itemBody("PARA")).Code)

	t.Run("duplicate code", func(t *testing.T) {
		w := a.do(http.MethodPost, "/api/items", admin, itemBody("PARA"))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.JSONEq(t, `{
			"type": "CODE_ALREADY_EXISTS",
			"title": "PARA",
			"list": [{"message": "Items code PARA already exists"}]
		}`, w.Body.String())
	})

	t.Run("anonymous", func(t *testing.T) {
		w := a.do(http.MethodPost, "/api/items", "", itemBody("IBU"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("missing permission", func(t *testing.T) {
		w := a.do(http.MethodPost, "/api/items", token(t, "122101"), itemBody("IBU"))
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("invalid payload", func(t *testing.T) {
		body := itemBody("IBU")
		delete(body, "patient_categories")
		w := a.do(http.MethodPost, "/api/items", admin, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("missing price", func(t *testing.T) {
		body := itemBody("NOPR")
		delete(body, "price")
		w := a.do(http.MethodPost, "/api/items", admin, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "price")
	})

	t.Run("unknown field", func(t *testing.T) {
		body := itemBody("IBU")
		body["colour"] = "red"
		w := a.do(http.MethodPost, "/api/items", admin, body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("bad token", func(t *testing.T) {
		w := a.do(http.MethodPost, "/api/items", "garbage", itemBody("IBU"))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestUpdateItem(t *testing.T) {
	a := newAPI(t, nil)
	admin := token(t, allPerms...)
	created := decode[entities.Item](t, a.do(http.MethodPost, "/api/items", admin, itemBody("PARA")))

	body := itemBody("PARA")
	body["name"] = "Paracetamol 1g"
	w := a.do(http.MethodPut, "/api/items/"+created.UUID, admin, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[entities.Item](t, w)
	assert.Equal(t, created.UUID, updated.UUID)
	assert.Equal(t, 2, updated.Version)

	body["uuid"] = uuid.NewString()
	w = a.do(http.MethodPut, "/api/items/"+created.UUID, admin, body)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	delete(body, "uuid")
	w = a.do(http.MethodPut, "/api/items/"+uuid.NewString(), admin, body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListAndGetItems(t *testing.T) {
	a := newAPI(t, nil)
	admin := token(t, allPerms...)
	created := decode[entities.Item](t, a.do(http.MethodPost, "/api/items", admin, itemBody("PARA")))
	a.do(http.MethodPost, "/api/items", admin, itemBody("IBU"))

	w := a.do(http.MethodGet, "/api/items?order_by=-code", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[entities.CatalogPage[*entities.Item]](t, w)
	require.Equal(t, 2, page.TotalCount)
	assert.Equal(t, "PARA", page.Entries[0].Code)

	w = a.do(http.MethodGet, "/api/items/"+created.UUID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "PARA", decode[entities.Item](t, w).Code)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/items", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/items?limit=0", admin, nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/items?date=yesterday", admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/items/"+uuid.NewString(), admin, nil).Code)
}

func TestDeleteItems(t *testing.T) {
	a := newAPI(t, nil)
	admin := token(t, allPerms...)
	created := decode[entities.Item](t, a.do(http.MethodPost, "/api/items", admin, itemBody("PARA")))

	w := a.do(http.MethodPost, "/api/items/delete", admin, map[string]interface{}{"uuids": []string{created.UUID}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": true, "errors": []}`, w.Body.String())

	missing := uuid.NewString()
	w = a.do(http.MethodPost, "/api/items/delete", admin, map[string]interface{}{"uuids": []string{missing}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok": false, "errors": [{"message": "Item id `+missing+` does not exist"}]}`, w.Body.String())

	w = a.do(http.MethodPost, "/api/items/delete", admin, map[string]interface{}{"uuids": []string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do(http.MethodPost, "/api/items/delete", token(t, "122101"), map[string]interface{}{"uuids": []string{missing}})
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestValidateCode(t *testing.T) {
	a := newAPI(t, nil)
	admin := token(t, allPerms...)
	a.do(http.MethodPost, "/api/items", admin, itemBody("PARA"))

	w := a.do(http.MethodGet, "/api/items/validate-code?code=PARA", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code": "PARA", "valid": false}`, w.Body.String())

	w = a.do(http.MethodGet, "/api/services/validate-code?code=PARA", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"code": "PARA", "valid": true}`, w.Body.String())

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/items/validate-code", admin, nil).Code)
}

func TestServices_WithChildren(t *testing.T) {
	a := newAPI(t, nil)
	admin := token(t, allPerms...)
	item := decode[entities.Item](t, a.do(http.MethodPost, "/api/items", admin, itemBody("GLOVE")))

	body := serviceBody("DELIV")
	body["items"] = []map[string]interface{}{{"item_id": item.ID, "qty_provided": "2", "status": 1}}
	w := a.do(http.MethodPost, "/api/services", admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[entities.Service](t, w)

	w = a.do(http.MethodGet, "/api/services/"+created.UUID, admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[entities.Service](t, w)
	require.Len(t, got.Items, 1)
	require.NotNil(t, got.Items[0].Item)
	assert.Equal(t, "GLOVE", got.Items[0].Item.Code)

	w = a.do(http.MethodGet, "/api/services?children=true", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[entities.CatalogPage[*entities.Service]](t, w)
	require.Len(t, page.Entries, 1)
	require.Len(t, page.Entries[0].Items, 1)
	assert.Equal(t, "GLOVE", page.Entries[0].Items[0].Item.Code)

	body = serviceBody("NOSTAT")
	body["items"] = []map[string]interface{}{{"item_id": item.ID}}
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodPost, "/api/services", admin, body).Code)

	body = serviceBody("XRAY")
	body["items"] = []map[string]interface{}{{"item_id": 9999, "qty_provided": "1", "status": 1}}
	w = a.do(http.MethodPost, "/api/services", admin, body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestListDiagnoses(t *testing.T) {
	a := newAPI(t, nil)
	a.store.AddDiagnosis(entities.Diagnosis{Code: "J10", Name: "Influenza", ValidityFrom: time.Now().Add(-time.Hour)})

	w := a.do(http.MethodGet, "/api/diagnoses?search=j10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	out := decode[struct {
		Diagnoses []entities.Diagnosis `json:"diagnoses"`
		Count     int                  `json:"count"`
	}](t, w)
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, "Influenza", out.Diagnoses[0].Name)

	w = a.do(http.MethodGet, "/api/diagnoses/J10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Influenza", decode[entities.Diagnosis](t, w).Name)

	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/diagnoses/Z99", "", nil).Code)
}

type stubIndex struct {
	mock.Mock
}

func (s *stubIndex) EnsureCollection(ctx context.Context) error { return nil }
func (s *stubIndex) Upsert(ctx context.Context, doc *providers.CatalogDocument) error {
	return nil
}
func (s *stubIndex) Remove(ctx context.Context, kind entities.EntryKind, uuid string) error {
	return nil
}
func (s *stubIndex) Search(ctx context.Context, params providers.CatalogSearchParams) ([]*providers.CatalogDocument, error) {
	args := s.Called(ctx, params)
	docs, _ := args.Get(0).([]*providers.CatalogDocument)
	return docs, args.Error(1)
}

func TestSearch(t *testing.T) {
	index := &stubIndex{}
	index.On("Search", mock.Anything, providers.CatalogSearchParams{Query: "para", Kind: entities.KindItem, Limit: 20}).
		Return([]*providers.CatalogDocument{{ID: "item-1", Code: "PARA"}}, nil)
	index.On("Search", mock.Anything, providers.CatalogSearchParams{Query: "down", Limit: 5}).
		Return(nil, errors.New("connection refused"))

	a := newAPI(t, index)
	reader := token(t, "122101")

	w := a.do(http.MethodGet, "/api/catalog/search?q=para&kind=item", reader, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"PARA"`)

	assert.Equal(t, http.StatusBadGateway, a.do(http.MethodGet, "/api/catalog/search?q=down&limit=5", reader, nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/api/catalog/search?q=x&kind=drug", reader, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/api/catalog/search?q=para", "", nil).Code)
}

func TestHealth(t *testing.T) {
	a := newAPI(t, nil)

	w := a.do(http.MethodGet, "/health", "", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
