package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"auction-marketplace/pkg/logger"

	"github.com/stretchr/testify/assert"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	handler := CORS([]string{"https://shop.example"}, logger.NewNop())(next)

	tests := []struct {
		name       string
		method     string
		origin     string
		wantStatus int
		wantOrigin string
	}{
		{"allowed preflight", http.MethodOptions, "https://shop.example", http.StatusNoContent, "https://shop.example"},
		{"rejected preflight", http.MethodOptions, "https://evil.example", http.StatusForbidden, ""},
		{"allowed request", http.MethodGet, "https://shop.example", http.StatusTeapot, "https://shop.example"},
		{"other origin passes without headers", http.MethodGet, "https://evil.example", http.StatusTeapot, ""},
		{"same origin", http.MethodGet, "", http.StatusTeapot, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, "/ws/auction/a1", nil)
			if tc.origin != "" {
				req.Header.Set("Origin", tc.origin)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Equal(t, tc.wantOrigin, rec.Header().Get("Access-Control-Allow-Origin"))
		})
	}

	open := CORS(nil, logger.NewNop())(next)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://anything.example")
	rec := httptest.NewRecorder()
	open.ServeHTTP(rec, req)
	assert.Equal(t, "https://anything.example", rec.Header().Get("Access-Control-Allow-Origin"))
}
