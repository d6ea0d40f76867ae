// Package security screens out hostile HTTP traffic before it reaches a
// handler: bulk-scanner probes, path traversal attempts, and oversized
// request bodies.
package security

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
)

// probePaths are exempt from filtering so orchestrator health checks never
// trip the filter.
var probePaths = map[string]bool{
	"/health":  true,
	"/healthz": true,
	"/readyz":  true,
}

// scannerPrefixes are the path openings of bulk scanners hunting for admin
// panels, leaked configs, and PHP installations. None of them exist on this
// API, so a match identifies the request as scanner traffic.
var scannerPrefixes = []string{
	"/.env",
	"/.git/",
	"/.htaccess",
	"/.htpasswd",
	"/.php",
	"/admin/",
	"/cgi-bin/",
	"/config.",
	"/phpinfo",
	"/phpmyadmin",
	"/server-status",
	"/shell",
	"/web-inf/",
	"/wp-admin",
	"/wp-content",
	"/wp-includes",
	"/wp-login",
	"/xmlrpc.php",
}

// traversalPatterns flag escape attempts anywhere in a path, in plain and
// percent-encoded spellings, plus null-byte injection.
var traversalPatterns = []string{
	"../",
	"..%2f",
	"..%5c",
	"%2e%2e/",
	"%00",
}

// FilterMiddleware rejects requests whose path matches a known scanner or
// traversal signature. With enabled false it passes everything through.
func FilterMiddleware(enabled bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !enabled {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if probePaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if hostile(r.URL) {
				reject(w)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func hostile(u *url.URL) bool {
	path := strings.ToLower(u.Path)

	for _, prefix := range scannerPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	if hasTraversal(path) {
		return true
	}

	// An escape sequence can survive one level of encoding in the raw
	// path; decode once more and rescan.
	raw := u.RawPath
	if raw == "" {
		raw = u.Path
	}
	if decoded, err := url.PathUnescape(raw); err == nil {
		if hasTraversal(strings.ToLower(decoded)) {
			return true
		}
	}
	return false
}

func hasTraversal(path string) bool {
	for _, pattern := range traversalPatterns {
		if strings.Contains(path, pattern) {
			return true
		}
	}
	return false
}

// reject answers with a generic 400 that does not reveal which signature
// matched.
func reject(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    "BAD_REQUEST",
			"message": "Invalid request",
		},
	})
}
