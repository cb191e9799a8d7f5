package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

type ctxKey int

const loggerKey ctxKey = iota

// Get the request scoped logger.
func loggerFrom(ctx context.Context) logrus.FieldLogger {
	if l, ok := ctx.Value(loggerKey).(logrus.FieldLogger); ok {
		return l
	}
	return logrus.StandardLogger()
}

// Records the status and the size of a response.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusRecorder) WriteHeader(code int) {
	if w.status == 0 {
		w.status = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.written += int64(n)
	return n, err
}

// Streams are written chunk by chunk, so flushing must reach the client.
func (w *statusRecorder) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Log one entry per request with a generated request ID.
func requestLogger(log logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestId := uuid.NewString()
			entry := log.WithFields(logrus.Fields{
				"request_id":  requestId,
				"http_method": r.Method,
				"uri":         r.URL.RequestURI(),
			})
			w.Header().Set("X-Request-Id", requestId)
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), loggerKey, logrus.FieldLogger(entry))))

			if rec.status == 0 {
				rec.status = http.StatusOK
			}
			entry = entry.WithFields(logrus.Fields{
				"status_code": rec.status,
				"bytes":       rec.written,
				"latency_ms":  time.Since(start).Milliseconds(),
				"client_ip":   r.RemoteAddr,
				"user_agent":  r.UserAgent(),
			})
			switch {
			case rec.status >= 500:
				entry.Error("request completed with server error")
			case rec.status >= 400:
				entry.Warn("request completed with client error")
			default:
				entry.Info("request completed")
			}
		})
	}
}

// Allow the frontend origins to call the API and read the range headers
// needed by video players.
func cors(origins []string) mux.MiddlewareFunc {
	allowed := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimRight(o, "/"); o != "" {
			allowed = append(allowed, o)
		}
	}
	if len(allowed) == 0 {
		// An empty list would allow any origin.
		return func(next http.Handler) http.Handler { return next }
	}
	return mux.MiddlewareFunc(handlers.CORS(
		handlers.AllowedOrigins(allowed),
		handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "DELETE"}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "Range", "X-User-Id", "X-User-Name", "X-User-Role"}),
		handlers.ExposedHeaders([]string{"Content-Range", "Accept-Ranges", "Content-Length"}),
		handlers.AllowCredentials(),
		handlers.OptionStatusCode(http.StatusNoContent),
	))
}
