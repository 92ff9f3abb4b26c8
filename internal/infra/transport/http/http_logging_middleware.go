package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/mkrupp/learnai-dashboard/internal/infra/logging"
)

// statusRecorder captures the status code and body size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status    int
	bytesSent int
	written   bool
}

func (w *statusRecorder) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}

	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	w.written = true

	n, err := w.ResponseWriter.Write(b)
	w.bytesSent += n

	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}

	return n, nil
}

// LoggingMiddleware logs every request at debug and its response at a level picked
// from the status code: error for 5xx, warn for 4xx, info otherwise.
func LoggingMiddleware(next http.Handler, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		log.DebugContext(r.Context(), "request", logging.Group("http",
			"uri", r.RequestURI,
			"method", r.Method,
		))

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		level := logging.LevelInfo

		switch {
		case rec.status >= http.StatusInternalServerError:
			level = logging.LevelError
		case rec.status >= http.StatusBadRequest:
			level = logging.LevelWarn
		}

		log.Log(r.Context(), level, "response", logging.Group("http",
			"uri", r.RequestURI,
			"method", r.Method,
			"status", rec.status,
			"bytes_sent", rec.bytesSent,
			"duration", time.Since(start),
		))
	})
}
