package middleware

import "net/http"

// MaxRequestSize caps the request body; reads past the limit fail inside
// the handler's decoder with a 413 from MaxBytesReader.
func MaxRequestSize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
