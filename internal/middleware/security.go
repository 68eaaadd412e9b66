package middleware

import (
	"net/http"

	"github.com/unrolled/secure"
)

// SecurityHeaders returns the middleware that hardens every API reply.
// With sslRedirect set, plain HTTP requests are redirected to HTTPS unless a
// proxy reports that TLS was terminated in front of the server.
func SecurityHeaders(sslRedirect bool) func(http.Handler) http.Handler {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "no-referrer",
		SSLRedirect:        sslRedirect,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	return func(next http.Handler) http.Handler {
		return secureMiddleware.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Balances and entries must never be served from a cache.
			w.Header().Set("Cache-Control", "no-store")
			next.ServeHTTP(w, r)
		}))
	}
}
