package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dukapos/internal/domain"
	"dukapos/internal/service"
	"dukapos/internal/store"
	"dukapos/internal/store/sqlite"
)

type testEnv struct {
	handler http.Handler
	svc     *service.Service
	auth    *AuthManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	ctx := context.Background()
	if err := st.InitSchema(ctx); err != nil {
		t.Fatalf("init schema: %v", err)
	}

	svc := service.New(st, nil, 0)
	auth := NewAuthManager(testSecret, time.Hour, "246813", st)
	if err := auth.EnsureAdmin(ctx, "admin", "letmein-please"); err != nil {
		t.Fatalf("ensure admin: %v", err)
	}

	api := New(svc, auth, "http://127.0.0.1:3000")
	return &testEnv{handler: api.Handler(), svc: svc, auth: auth}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) login(t *testing.T, username, password string) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: username, Password: password}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	var resp domain.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp.AccessToken
}

func (e *testEnv) seedOrder(t *testing.T, qty int) (productID, orderID int64) {
	t.Helper()
	ctx := context.Background()
	cat, err := e.svc.CreateCategory(ctx, "Whisky", 0)
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	p, err := e.svc.UpsertProduct(ctx, domain.ProductUpsertRequest{
		Name: "Test Whisky", CategoryID: cat.ID, Price: 1000,
		Volume: 750, MeasurementUnit: domain.UnitMl, Threshold: 1,
	})
	if err != nil {
		t.Fatalf("create product: %v", err)
	}
	if _, err := e.svc.AddStock(ctx, domain.StockAddRequest{ProductID: p.ID, Quantity: 10}); err != nil {
		t.Fatalf("add stock: %v", err)
	}
	order, err := e.svc.CreateOrder(ctx, domain.OrderCreateRequest{
		PaymentType: domain.PaymentCash,
		Lines:       []domain.OrderLine{{ID: p.ID, Name: p.Name, Quantity: qty, Price: 1000}},
	})
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	return p.ID, order.ID
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/healthz", "", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body struct {
		OK bool `json:"ok"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil || !body.OK {
		t.Fatalf("body = %s (%v)", rec.Body.String(), err)
	}
}

func TestAuthRequiredAndRoles(t *testing.T) {
	env := newTestEnv(t)

	if rec := env.do(t, http.MethodGet, "/api/v1/categories", "", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token status = %d, want 401", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/categories", "bogus-token", nil, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad token status = %d, want 401", rec.Code)
	}

	adminToken := env.login(t, "admin", "letmein-please")
	if rec := env.do(t, http.MethodGet, "/api/v1/categories", adminToken, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin list categories = %d body %s", rec.Code, rec.Body.String())
	}

	if _, err := env.auth.CreateCashier(domain.StaffCreateRequest{Username: "jane", Password: "secret99"}); err != nil {
		t.Fatalf("create cashier: %v", err)
	}
	cashierToken := env.login(t, "jane", "secret99")

	if rec := env.do(t, http.MethodGet, "/api/v1/reports/sales", cashierToken, nil, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("cashier sales report = %d, want 403", rec.Code)
	}
	if rec := env.do(t, http.MethodGet, "/api/v1/reports/sales", adminToken, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin sales report = %d body %s", rec.Code, rec.Body.String())
	}
}

func TestLoginRateLimit(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrong"}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i+1, rec.Code)
		}
	}
	rec := env.do(t, http.MethodPost, "/api/v1/auth/login", "", domain.LoginRequest{Username: "admin", Password: "wrong"}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("sixth attempt status = %d, want 429", rec.Code)
	}
}

func TestCategoryCreateOverHTTP(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "letmein-please")

	rec := env.do(t, http.MethodPost, "/api/v1/categories", token, domain.Category{Name: "Whisky"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create category = %d body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Category domain.Category `json:"category"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Category.ID < 1 || body.Category.Name != "Whisky" {
		t.Fatalf("category = %+v", body.Category)
	}

	// Blank name surfaces as a 400, not a 500.
	rec = env.do(t, http.MethodPost, "/api/v1/categories", token, domain.Category{Name: "  "}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("blank name = %d, want 400", rec.Code)
	}
}

func TestOrderDeleteRequiresManagerPIN(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "letmein-please")
	_, orderID := env.seedOrder(t, 3)
	path := fmt.Sprintf("/api/v1/orders/%d", orderID)

	rec := env.do(t, http.MethodDelete, path, token, nil, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete without pin = %d, want 403", rec.Code)
	}
	rec = env.do(t, http.MethodDelete, path, token, nil, map[string]string{"X-Manager-Pin": "999999"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("delete with wrong pin = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, path, token, nil, map[string]string{"X-Manager-Pin": "246813"})
	if rec.Code != http.StatusOK {
		t.Fatalf("delete with pin = %d body %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, path, token, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted order fetch = %d, want 404", rec.Code)
	}
}

func TestQuantityUnlockRequiresPIN(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "letmein-please")
	productID, _ := env.seedOrder(t, 3)
	path := fmt.Sprintf("/api/v1/products/%d", productID)

	update := domain.ProductUpsertRequest{
		Name: "Test Whisky", CategoryID: 1, Price: 1000,
		Volume: 750, MeasurementUnit: domain.UnitMl, Threshold: 1,
		Quantity: 50, UnlockQuantity: true,
	}

	rec := env.do(t, http.MethodPut, path, token, update, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unlock without pin = %d, want 403", rec.Code)
	}

	rec = env.do(t, http.MethodPut, path, token, update, map[string]string{"X-Manager-Pin": "246813"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unlock with pin = %d body %s", rec.Code, rec.Body.String())
	}
	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Product.Quantity != 50 {
		t.Fatalf("quantity = %d, want 50", body.Product.Quantity)
	}
}

func TestPathIDValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "letmein-please")

	rec := env.do(t, http.MethodGet, "/api/v1/products/abc", token, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id = %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/orders/999", token, nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing order = %d, want 404", rec.Code)
	}
}

func TestUnknownJSONFieldRejected(t *testing.T) {
	env := newTestEnv(t)
	token := env.login(t, "admin", "letmein-please")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/categories", bytes.NewReader([]byte(`{"name":"Gin","surprise":true}`)))
	req.RemoteAddr = "192.0.2.1:40000"
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field = %d, want 400", rec.Code)
	}
}

func TestServiceErrorStatusMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"invalid input", store.ErrInvalidInput, http.StatusBadRequest},
		{"duplicate product", store.ErrDuplicateProduct, http.StatusConflict},
		{"corrupt order", fmt.Errorf("order 7: %w: unexpected end of JSON input", store.ErrCorruptOrder), http.StatusConflict},
		{"unknown", fmt.Errorf("disk on fire"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeServiceError(rec, tc.err)
		if rec.Code != tc.want {
			t.Fatalf("%s: status = %d, want %d", tc.name, rec.Code, tc.want)
		}
	}

	// Corruption must reach the client as itself, not the generic 5xx body.
	rec := httptest.NewRecorder()
	writeServiceError(rec, fmt.Errorf("order 7: %w", store.ErrCorruptOrder))
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == "internal server error" || body.Error == "" {
		t.Fatalf("error body = %q, want the corruption message", body.Error)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/products", nil)
	req.Header.Set("Origin", "http://127.0.0.1:3000")
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://127.0.0.1:3000" {
		t.Fatalf("allow origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Headers"); got == "" {
		t.Fatal("allow headers not set")
	}
}

func TestSubscriptionRolloverAdminOnly(t *testing.T) {
	env := newTestEnv(t)
	adminToken := env.login(t, "admin", "letmein-please")
	if _, err := env.auth.CreateCashier(domain.StaffCreateRequest{Username: "jane", Password: "secret99"}); err != nil {
		t.Fatalf("create cashier: %v", err)
	}
	cashierToken := env.login(t, "jane", "secret99")

	if rec := env.do(t, http.MethodPost, "/api/v1/subscriptions/rollover", cashierToken, nil, nil); rec.Code != http.StatusForbidden {
		t.Fatalf("cashier rollover = %d, want 403", rec.Code)
	}
	if rec := env.do(t, http.MethodPost, "/api/v1/subscriptions/rollover", adminToken, nil, nil); rec.Code != http.StatusOK {
		t.Fatalf("admin rollover = %d body %s", rec.Code, rec.Body.String())
	}
}
