package security

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func filterStatus(t *testing.T, enabled bool, path string) int {
	t.Helper()

	handler := FilterMiddleware(enabled)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr.Code
}

func TestFilterMiddleware_BlocksScannerTraffic(t *testing.T) {
	tests := []struct {
		name  string
		paths []string
	}{
		{
			name: "wordpress probes",
			paths: []string{
				"/wp-admin/",
				"/wp-admin/setup-config.php",
				"/wp-login.php",
				"/wp-content/uploads/",
				"/xmlrpc.php",
			},
		},
		{
			name: "leaked file probes",
			paths: []string{
				"/.env",
				"/.git/config",
				"/.htaccess",
				"/.htpasswd",
				"/config.php",
			},
		},
		{
			name: "php and admin probes",
			paths: []string{
				"/phpmyadmin/",
				"/phpinfo.php",
				"/admin/login",
				"/cgi-bin/test.cgi",
				"/shell.php",
				"/server-status",
			},
		},
		{
			name: "path traversal",
			paths: []string{
				"/../../etc/passwd",
				"/runs/../../../etc/shadow",
				"/a%2e%2e/b",
			},
		},
		{
			name: "case variations",
			paths: []string{
				"/WP-ADMIN/",
				"/.ENV",
				"/PhpMyAdmin/",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, path := range tt.paths {
				assert.Equal(t, http.StatusBadRequest, filterStatus(t, true, path), path)
			}
		})
	}
}

func TestFilterMiddleware_AllowsAPITraffic(t *testing.T) {
	paths := []string{
		"/",
		"/api/v1/runs",
		"/api/v1/runs/0b51b0a6-9cbb-4a6c-9d4d-6c02b3a0c0fa",
		"/api/v1/runs?network=mainnet&phase=Upgrade+program",
		"/api/openapi.yaml",
		"/metrics",
	}

	for _, path := range paths {
		assert.Equal(t, http.StatusOK, filterStatus(t, true, path), path)
	}
}

func TestFilterMiddleware_HealthProbesBypass(t *testing.T) {
	for _, path := range []string{"/health", "/healthz", "/readyz"} {
		assert.Equal(t, http.StatusOK, filterStatus(t, true, path), path)
	}
}

func TestFilterMiddleware_Disabled(t *testing.T) {
	for _, path := range []string{"/wp-admin/", "/.git/config", "/../etc/passwd"} {
		assert.Equal(t, http.StatusOK, filterStatus(t, false, path), path)
	}
}

func TestFilterMiddleware_RejectionShape(t *testing.T) {
	handler := FilterMiddleware(true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/.env", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "BAD_REQUEST", body.Error.Code)
	// The message must not echo what triggered the block.
	assert.Equal(t, "Invalid request", body.Error.Message)
}

func TestMaxBodySizeMiddleware(t *testing.T) {
	// Handlers observe the cap as a read error, the way the runs handler
	// does when decoding an evidence bundle.
	handler := MaxBodySizeMiddleware(1)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write(body)
	}))

	t.Run("small body passes through unchanged", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader([]byte(`{"network":"mainnet"}`)))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `{"network":"mainnet"}`, rr.Body.String())
	})

	t.Run("body at the cap still passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(strings.Repeat("x", 1<<20)))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("body over the cap fails the read", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", strings.NewReader(strings.Repeat("x", 2<<20)))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	})

	t.Run("bodyless request unaffected", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
