package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddlewareAttachesUser(t *testing.T) {
	svc := NewService(Config{AllowMock: true}, nil)

	var sawUser bool
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawUser = UserFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer mock:1:a@b.c:A")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !sawUser {
		t.Fatal("expected user in context")
	}
}

func TestMiddlewarePassesAnonymousThrough(t *testing.T) {
	svc := NewService(Config{AllowMock: true}, nil)

	var sawUser bool
	handler := Middleware(svc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawUser = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	for _, header := range []string{"", "Basic dXNlcjpwYXNz", "Bearer not-a-real-token"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if sawUser {
			t.Errorf("header %q: expected anonymous request", header)
		}
		if rec.Code != http.StatusOK {
			t.Errorf("header %q: status = %d, middleware must not reject", header, rec.Code)
		}
	}
}
