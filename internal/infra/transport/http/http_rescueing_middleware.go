package http

import (
	"net/http"
	"runtime/debug"

	"github.com/mkrupp/learnai-dashboard/internal/infra/logging"
)

// RescueingMiddleware turns handler panics into a logged 500 response.
func RescueingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}

			if p == http.ErrAbortHandler { //nolint:errorlint,goerr113
				panic(p)
			}

			log.ErrorContext(r.Context(), "request panic",
				logging.Group("http", "uri", r.RequestURI, "method", r.Method),
				logging.Group("error", "panic", p, "stack", string(debug.Stack())),
			)
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
