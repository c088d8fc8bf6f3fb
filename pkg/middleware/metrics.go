package middleware

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Metrics returns a middleware that reports each request to the given
// recorder. The endpoint label is the raw path; route templating happens
// at the recorder's discretion.
func Metrics(record func(endpoint string, status int, duration time.Duration)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			record(r.URL.Path, ww.Status(), time.Since(start))
		})
	}
}
