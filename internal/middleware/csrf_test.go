package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/locauto/locauto/internal/model"
)

func csrfHandler(called *bool) http.Handler {
	return NewCSRFMiddleware(CSRFConfig{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		w.WriteHeader(http.StatusOK)
	}))
}

func TestCSRFMiddleware_SafeMethodIssuesCookie(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodGet, "/api/admin/accounts", nil)
	w := httptest.NewRecorder()

	csrfHandler(&called).ServeHTTP(w, req)

	if !called {
		t.Fatal("handler should be called for GET")
	}
	var found bool
	for _, c := range w.Result().Cookies() {
		if c.Name == csrfCookieName {
			found = true
			if c.HttpOnly {
				t.Error("CSRF cookie must be readable by JavaScript")
			}
			if len(c.Value) != 64 {
				t.Errorf("token length = %d, want 64", len(c.Value))
			}
		}
	}
	if !found {
		t.Error("CSRF cookie should be issued")
	}
}

func TestCSRFMiddleware_SafeMethodKeepsExistingCookie(t *testing.T) {
	called := false
	req := httptest.NewRequest(http.MethodGet, "/api/admin/accounts", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing"})
	w := httptest.NewRecorder()

	csrfHandler(&called).ServeHTTP(w, req)

	if len(w.Result().Cookies()) != 0 {
		t.Error("existing CSRF cookie should not be replaced")
	}
}

func TestCSRFMiddleware_StateChangingMethods(t *testing.T) {
	tests := []struct {
		name       string
		cookie     string
		header     string
		wantStatus int
	}{
		{"一致", "tok-1", "tok-1", http.StatusOK},
		{"Cookieなし", "", "tok-1", http.StatusForbidden},
		{"ヘッダーなし", "tok-1", "", http.StatusForbidden},
		{"不一致", "tok-1", "tok-2", http.StatusForbidden},
	}
	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		for _, tt := range tests {
			t.Run(method+"/"+tt.name, func(t *testing.T) {
				called := false
				req := httptest.NewRequest(method, "/api/admin/accounts", nil)
				if tt.cookie != "" {
					req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: tt.cookie})
				}
				if tt.header != "" {
					req.Header.Set(csrfHeaderName, tt.header)
				}
				w := httptest.NewRecorder()

				csrfHandler(&called).ServeHTTP(w, req)

				if w.Code != tt.wantStatus {
					t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
				}
				if called != (tt.wantStatus == http.StatusOK) {
					t.Errorf("handler called = %v", called)
				}
				if tt.wantStatus == http.StatusForbidden {
					if body := decodeErrorBody(t, w); body.Code != model.ErrCodeCSRFInvalid {
						t.Errorf("code = %q, want %q", body.Code, model.ErrCodeCSRFInvalid)
					}
				}
			})
		}
	}
}

func TestCSRFTokenHandler_ReturnsExistingToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "existing-token"})
	w := httptest.NewRecorder()

	NewCSRFTokenHandler(CSRFConfig{}).ServeHTTP(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if body["token"] != "existing-token" {
		t.Errorf("token = %q, want existing-token", body["token"])
	}
}

func TestCSRFTokenHandler_IssuesNewToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/csrf-token", nil)
	w := httptest.NewRecorder()

	NewCSRFTokenHandler(CSRFConfig{CookieSecure: true, CookieDomain: "locauto.com"}).ServeHTTP(w, req)

	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	cookies := w.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("cookies = %d, want 1", len(cookies))
	}
	if cookies[0].Value != body["token"] {
		t.Error("cookie and body token should match")
	}
	if !cookies[0].Secure || cookies[0].Domain != "locauto.com" {
		t.Errorf("cookie attributes = %+v", cookies[0])
	}
}
