package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/cache"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/domain"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/service"
	"github.com/judellaspinas/blcm-hardware-salles-and-inventory3-sub000/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, cache.NoopReportCache{}, zerolog.Nop())
	auth := NewAuthManager("test-secret-key", time.Hour, repo)

	return New(svc, auth, "*", zerolog.Nop())
}

// mustHashPassword generates a bcrypt hash of the given password or fails the test.
func mustHashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	return string(hash)
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "admin123",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["access_token"] == "" || body["access_token"] == nil {
		t.Fatalf("expected access_token in response, got %v", body)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(map[string]string{
		"username": "admin",
		"password": "wrongpassword",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleProducts_RequiresAuth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithValidToken(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

// listProducts fetches the seeded catalog through the API.
func listProducts(t *testing.T, api *API, token string) []domain.Product {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list products failed: %d %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(body.Products) == 0 {
		t.Fatalf("expected seeded products")
	}
	return body.Products
}

func TestHandleSales_CreateAndFetch(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)
	products := listProducts(t, api, token)

	payload, _ := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"product_id": products[0].ID, "quantity": 1},
		},
		"payment_method": "cash",
		"cash_rendered":  "100000",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var created struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if created.Sale.SaleNumber == "" {
		t.Fatalf("expected sale number to be allocated")
	}

	fetch := httptest.NewRequest(http.MethodGet, "/api/v1/sales/"+created.Sale.ID, nil)
	fetch.Header.Set("Authorization", "Bearer "+token)
	fetchRec := httptest.NewRecorder()
	handler.ServeHTTP(fetchRec, fetch)
	if fetchRec.Code != http.StatusOK {
		t.Fatalf("expected 200 on fetch, got %d", fetchRec.Code)
	}
}

func TestHandleSales_UnknownProductReturns404(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"product_id": "no-such-product", "quantity": 1},
		},
		"cash_rendered": "100",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestHandleVoidRequest_BlankReasonReturns400(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	token := loginAsAdmin(t, api)
	csrf := fetchCSRFToken(t, api)
	products := listProducts(t, api, token)

	salePayload, _ := json.Marshal(map[string]any{
		"items": []map[string]any{
			{"product_id": products[0].ID, "quantity": 1},
		},
		"cash_rendered": "100000",
	})
	saleReq := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(salePayload))
	saleReq.Header.Set("Content-Type", "application/json")
	saleReq.Header.Set("Authorization", "Bearer "+token)
	saleReq.Header.Set("X-CSRF-Token", csrf)
	saleRec := httptest.NewRecorder()
	handler.ServeHTTP(saleRec, saleReq)
	if saleRec.Code != http.StatusCreated {
		t.Fatalf("create sale failed: %d %s", saleRec.Code, saleRec.Body.String())
	}

	var created struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(saleRec.Body).Decode(&created); err != nil {
		t.Fatalf("decode sale: %v", err)
	}

	voidPayload, _ := json.Marshal(map[string]string{"reason": "  "})
	voidReq := httptest.NewRequest(http.MethodPost, "/api/v1/sales/"+created.Sale.ID+"/void-request", bytes.NewReader(voidPayload))
	voidReq.Header.Set("Content-Type", "application/json")
	voidReq.Header.Set("Authorization", "Bearer "+token)
	voidReq.Header.Set("X-CSRF-Token", csrf)
	voidRec := httptest.NewRecorder()
	handler.ServeHTTP(voidRec, voidReq)
	if voidRec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for blank reason, got %d (body: %s)", voidRec.Code, voidRec.Body.String())
	}
}

func TestHandleRestock_RequiresAdminRole(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()
	csrf := fetchCSRFToken(t, api)
	token := loginAs(t, api, "staff", "staff123")

	payload, _ := json.Marshal(map[string]any{
		"product_id": "whatever",
		"quantity":   5,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/restocks", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for staff restock, got %d", rec.Code)
	}
}

// TestMustHashPassword verifies that the test helper produces valid bcrypt hashes
// (used to confirm test infrastructure is sound).
func TestMustHashPassword(t *testing.T) {
	hash := mustHashPassword(t, "secret")
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("secret")); err != nil {
		t.Fatalf("hash verification failed: %v", err)
	}
}
