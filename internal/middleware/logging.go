package middleware

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

// LogRequest logs on trace level only, the fix endpoints get hit every
// few seconds by tracking devices. Only the path is logged, the stream
// handshake carries its token in the query string.
func LogRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log.Tracef(" ====> request [%s] path: [%s] [UA: %s]", r.Method, r.URL.Path, r.Header.Get("User-Agent"))
			next.ServeHTTP(w, r)
		})
	}
}
