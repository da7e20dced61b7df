package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequireAdminToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		name     string
		expected string
		header   string
		status   int
	}{
		{"matching token passes", "s3cret", "s3cret", http.StatusNoContent},
		{"missing token rejected", "s3cret", "", http.StatusUnauthorized},
		{"wrong token rejected", "s3cret", "guess", http.StatusUnauthorized},
		{"empty expected token disables check", "", "", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/admin/audit/stats", nil)
			if tt.header != "" {
				req.Header.Set("X-Admin-Token", tt.header)
			}
			w := httptest.NewRecorder()

			RequireAdminToken(tt.expected, logger)(ok).ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"unauthorized","error_description":"admin token required"}`, w.Body.String())
			}
		})
	}
}
