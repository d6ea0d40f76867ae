package security

import "net/http"

// MaxBodySizeMiddleware caps request bodies at maxSizeMB megabytes. Reads
// beyond the cap fail with http.MaxBytesError, which the JSON decoding in
// the handlers surfaces as a 400. A full evidence bundle with its snapshot
// and decoded transactions stays well under a single megabyte, so the cap
// only ever cuts off junk uploads.
func MaxBodySizeMiddleware(maxSizeMB int) func(http.Handler) http.Handler {
	limit := int64(maxSizeMB) * 1024 * 1024

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
