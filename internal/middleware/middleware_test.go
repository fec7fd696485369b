package middleware

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVerifier struct {
	enabled bool
}

func (s stubVerifier) Enabled() bool { return s.enabled }

func (s stubVerifier) Verify(token string) (string, error) {
	if token == "good" {
		return "admin", nil
	}
	return "", errors.New("bad token")
}

func TestJWTMiddleware(t *testing.T) {
	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = AdminFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name    string
		enabled bool
		header  string
		status  int
		admin   string
	}{
		{"disabled passes", false, "", http.StatusOK, ""},
		{"missing header", true, "", http.StatusUnauthorized, ""},
		{"wrong scheme", true, "Basic good", http.StatusUnauthorized, ""},
		{"bad token", true, "Bearer bad", http.StatusUnauthorized, ""},
		{"good token", true, "Bearer good", http.StatusOK, "admin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			h := JWTMiddleware(stubVerifier{enabled: tt.enabled})(next)
			req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.admin, seen)
		})
	}
}

func TestGzipHandler(t *testing.T) {
	h := GzipHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		w.Write(body)
	}))

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(`{"orderId":"ord-1"}`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	req := httptest.NewRequest(http.MethodPost, "/pay", &buf)
	req.Header.Set("Content-Encoding", "gzip")
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	out, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Equal(t, `{"orderId":"ord-1"}`, string(out))

	req = httptest.NewRequest(http.MethodPost, "/pay", bytes.NewReader([]byte("plain")))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "plain", rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/pay", bytes.NewReader([]byte("not gzip")))
	req.Header.Set("Content-Encoding", "gzip")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
