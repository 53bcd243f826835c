package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apierrors "github.com/maruel/localcrm/internal/errors"
	"github.com/maruel/localcrm/internal/models"
	"github.com/maruel/localcrm/internal/server/handlers"
	"github.com/maruel/localcrm/internal/server/ratelimit"
	"github.com/maruel/localcrm/internal/storage"
	"github.com/maruel/localcrm/internal/validate"
	"github.com/maruel/localcrm/internal/xlsxdb"
)

type testEnv struct {
	h     http.Handler
	svc   *storage.CustomerService
	store *xlsxdb.Store
}

func newTestEnv(t *testing.T, cfg *Config) *testEnv {
	t.Helper()
	store, err := xlsxdb.NewStore(filepath.Join(t.TempDir(), "customers.xlsx"))
	if err != nil {
		t.Fatal(err)
	}
	svc := storage.NewCustomerService(store)
	if cfg == nil {
		cfg = &Config{Version: "test", MaxRequestBodyBytes: 1024}
	}
	h, err := NewRouter(svc, cfg)
	if err != nil {
		t.Fatalf("NewRouter failed: %v", err)
	}
	return &testEnv{h: h, svc: svc, store: store}
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	e.h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) *T {
	t.Helper()
	out := new(T)
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("failed to decode %q: %v", w.Body.String(), err)
	}
	return out
}

func TestAPI_Customers(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do(t, http.MethodPut, "/api/v1/customers/0005", `{"name":"Aさん","phone":"03-1234-5678","email":"a@example.com"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("PUT: %d %s", w.Code, w.Body)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
	put := decode[handlers.CustomerResponse](t, w)
	if !put.Created || put.Customer.ID != "0005" || put.Customer.EditLink != "/customers/0005/edit" || put.Customer.Timestamp == "" {
		t.Errorf("unexpected PUT response: %+v %+v", put, put.Customer)
	}

	w = e.do(t, http.MethodGet, "/api/v1/customers/0005", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET: %d %s", w.Code, w.Body)
	}
	if got := decode[handlers.CustomerResponse](t, w).Customer; got.Name != "Aさん" || got.Phone != "03-1234-5678" || got.Email != "a@example.com" {
		t.Errorf("GET = %+v", got)
	}

	w = e.do(t, http.MethodGet, "/api/v1/customers/next-id", "")
	if got := decode[handlers.NextIDResponse](t, w).ID; got != "0006" {
		t.Errorf("next-id = %q, want 0006", got)
	}

	w = e.do(t, http.MethodPost, "/api/v1/customers", `{"name":"Bさん"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("POST: %d %s", w.Code, w.Body)
	}
	if got := decode[handlers.CustomerResponse](t, w).Customer.ID; got != "0006" {
		t.Errorf("POST id = %q, want 0006", got)
	}

	w = e.do(t, http.MethodGet, "/api/v1/customers", "")
	list := decode[handlers.ListCustomersResponse](t, w)
	if len(list.Customers) != 2 || list.Customers[0].ID != "0005" || list.Customers[1].ID != "0006" {
		t.Errorf("list = %+v", list.Customers)
	}

	w = e.do(t, http.MethodGet, "/api/v1/health", "")
	if h := decode[handlers.HealthResponse](t, w); h.Status != "ok" || h.Version != "test" || h.Records != 2 {
		t.Errorf("health = %+v", h)
	}
}

func TestAPI_Errors(t *testing.T) {
	e := newTestEnv(t, nil)
	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   apierrors.ErrorCode
	}{
		{"bad phone", http.MethodPut, "/api/v1/customers/0001", `{"name":"A","phone":"12345"}`, http.StatusBadRequest, apierrors.ErrValidationFailed},
		{"bad email", http.MethodPost, "/api/v1/customers", `{"name":"A","email":"nope"}`, http.StatusBadRequest, apierrors.ErrValidationFailed},
		{"unknown field", http.MethodPost, "/api/v1/customers", `{"nickname":"A"}`, http.StatusBadRequest, apierrors.ErrValidationFailed},
		{"derived field rejected", http.MethodPost, "/api/v1/customers", `{"timestamp":"x"}`, http.StatusBadRequest, apierrors.ErrValidationFailed},
		{"too large", http.MethodPost, "/api/v1/customers", `{"notes":"` + strings.Repeat("x", 2048) + `"}`, http.StatusRequestEntityTooLarge, apierrors.ErrValidationFailed},
		{"not found", http.MethodGet, "/api/v1/customers/9999", "", http.StatusNotFound, apierrors.ErrNotFound},
		{"negative limit", http.MethodGet, "/api/v1/history?limit=-1", "", http.StatusBadRequest, apierrors.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body)
			}
			if got := decode[apierrors.ErrorResponse](t, w).Error.Code; got != tt.code {
				t.Errorf("code = %s, want %s", got, tt.code)
			}
		})
	}
	if records, _ := e.svc.ListRecords(t.Context()); len(records) != 0 {
		t.Errorf("rejected requests stored %d records", len(records))
	}
}

func TestAPI_ValidationDetails(t *testing.T) {
	e := newTestEnv(t, nil)
	w := e.do(t, http.MethodPut, "/api/v1/customers/0001", `{"name":"A","phone":"12345"}`)
	resp := decode[apierrors.ErrorResponse](t, w)
	if resp.Error.Message != validate.PhoneMessage {
		t.Errorf("message = %q", resp.Error.Message)
	}
	if resp.Details["field"] != models.FieldPhone {
		t.Errorf("details = %v", resp.Details)
	}
}

func TestAPI_StorageUnavailable(t *testing.T) {
	e := newTestEnv(t, nil)
	if err := os.WriteFile(e.store.Path(), []byte("not a workbook"), 0o644); err != nil {
		t.Fatal(err)
	}
	w := e.do(t, http.MethodGet, "/api/v1/customers", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d: %s", w.Code, w.Body)
	}
	if got := decode[apierrors.ErrorResponse](t, w).Error.Code; got != apierrors.ErrStorageUnavailable {
		t.Errorf("code = %s", got)
	}
	if w := e.do(t, http.MethodGet, "/customers", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("HTML status = %d", w.Code)
	}
}

func TestAPI_SchemaAndHistory(t *testing.T) {
	e := newTestEnv(t, nil)
	w := e.do(t, http.MethodGet, "/api/v1/customers/schema", "")
	if w.Code != http.StatusOK {
		t.Fatalf("schema: %d %s", w.Code, w.Body)
	}
	schema := decode[map[string]any](t, w)
	props, ok := (*schema)["properties"].(map[string]any)
	if !ok {
		t.Fatalf("schema has no properties: %s", w.Body)
	}
	for _, k := range []string{"id", "name", "phone", "email", "timestamp", "edit_link"} {
		if _, ok := props[k]; !ok {
			t.Errorf("schema missing %q", k)
		}
	}

	w = e.do(t, http.MethodGet, "/api/v1/history", "")
	if w.Code != http.StatusOK {
		t.Fatalf("history: %d %s", w.Code, w.Body)
	}
	if strings.TrimSpace(w.Body.String()) != `{"commits":[]}` {
		t.Errorf("history = %s", w.Body)
	}
}

func TestAPI_RateLimit(t *testing.T) {
	l := ratelimit.NewLimiter(1, time.Minute, 1)
	defer l.Close()
	e := newTestEnv(t, &Config{Limiter: l})

	if w := e.do(t, http.MethodPut, "/api/v1/customers/0001", `{"name":"A"}`); w.Code != http.StatusOK {
		t.Fatalf("first write: %d", w.Code)
	}
	w := e.do(t, http.MethodPut, "/api/v1/customers/0001", `{"name":"B"}`)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second write: %d", w.Code)
	}
	if got := decode[apierrors.ErrorResponse](t, w).Error.Code; got != apierrors.ErrTooManyRequests {
		t.Errorf("code = %s", got)
	}
	if w := e.do(t, http.MethodGet, "/api/v1/customers/0001", ""); w.Code != http.StatusOK {
		t.Errorf("reads must not be limited: %d", w.Code)
	}
	if w := e.postForm(t, "/customers", url.Values{"customer_id": {"0002"}, "name": {"C"}}); w.Code != http.StatusTooManyRequests {
		t.Errorf("form write: %d", w.Code)
	}
}

func TestPages(t *testing.T) {
	e := newTestEnv(t, nil)

	w := e.do(t, http.MethodGet, "/", "")
	if w.Code != http.StatusTemporaryRedirect || w.Header().Get("Location") != "/customers" {
		t.Errorf("GET / = %d %q", w.Code, w.Header().Get("Location"))
	}

	w = e.do(t, http.MethodGet, "/customers/new", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `value="0001"`) {
		t.Fatalf("new form: %d %s", w.Code, w.Body)
	}

	form := url.Values{
		"customer_id": {"0001"},
		"name":        {"Aさん"},
		"phone":       {"090-1234-5678"},
		"email":       {"a@example.com"},
		"care":        {"要介護1"},
		"note":        {"<b>注意</b>"},
	}
	w = e.postForm(t, "/customers", form)
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/customers" {
		t.Fatalf("create: %d %s", w.Code, w.Body)
	}

	w = e.do(t, http.MethodGet, "/customers", "")
	body := w.Body.String()
	for _, want := range []string{"Aさん", "要介護1", `href="/customers/0001/edit"`, "&lt;b&gt;注意&lt;/b&gt;", models.FieldID} {
		if !strings.Contains(body, want) {
			t.Errorf("list page missing %q", want)
		}
	}

	bad := url.Values{"customer_id": {"0002"}, "name": {"Bさん"}, "phone": {"12345"}}
	w = e.postForm(t, "/customers", bad)
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), validate.PhoneMessage) {
		t.Errorf("invalid create: %d %s", w.Code, w.Body)
	}
	if !strings.Contains(w.Body.String(), `value="Bさん"`) {
		t.Error("entered data lost on validation error")
	}

	w = e.do(t, http.MethodGet, "/customers/0001/edit", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `value="Aさん"`) {
		t.Fatalf("edit form: %d %s", w.Code, w.Body)
	}
	w = e.do(t, http.MethodGet, "/customers/9999/edit", "")
	if w.Code != http.StatusSeeOther || w.Header().Get("Location") != "/customers" {
		t.Errorf("missing edit: %d", w.Code)
	}

	w = e.postForm(t, "/customers/0001/edit", url.Values{"name": {"Cさん"}, "email": {"bad"}})
	if w.Code != http.StatusBadRequest || !strings.Contains(w.Body.String(), validate.EmailMessage) {
		t.Errorf("invalid update: %d %s", w.Code, w.Body)
	}
	w = e.postForm(t, "/customers/0001/edit", url.Values{"name": {"Cさん"}})
	if w.Code != http.StatusSeeOther {
		t.Fatalf("update: %d %s", w.Code, w.Body)
	}
	w = e.postForm(t, "/customers/0042/edit", url.Values{"name": {"Dさん"}})
	if w.Code != http.StatusSeeOther {
		t.Errorf("update of missing record: %d", w.Code)
	}

	records, err := e.svc.ListRecords(t.Context())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0][models.FieldName] != "Cさん" {
		t.Errorf("records = %v", records)
	}
}

func TestStatic(t *testing.T) {
	e := newTestEnv(t, nil)
	w := e.do(t, http.MethodGet, "/static/style.css", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "font-family") {
		t.Errorf("static: %d", w.Code)
	}
}
