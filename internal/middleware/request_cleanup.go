package middleware

import (
	"io"
	"net/http"
)

// drain at most this much of an unread body, anything bigger is not
// worth keeping the connection for
const maxDrainBytes = 1 << 20

// DrainAndCloseRequest makes sure the request body is read and closed
// after the handler is done, so the underlying connection can be reused
// for the next fix.
func DrainAndCloseRequest() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Body != nil {
				_, _ = io.CopyN(io.Discard, r.Body, maxDrainBytes)
				_ = r.Body.Close()
			}
		})
	}
}
