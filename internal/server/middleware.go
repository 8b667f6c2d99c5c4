package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/logging"
	"github.com/wudi/bridgerouter/internal/metrics"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// TraceID returns the request trace ID, or "" outside a traced request.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// statusRecorder captures the status code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withTrace accepts a client-supplied X-Trace-ID or synthesizes one, stores
// it in the request context, and echoes it on the response.
func withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get("X-Trace-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		w.Header().Set("X-Trace-ID", traceID)

		ctx := context.WithValue(r.Context(), traceIDKey, traceID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// withLogging logs every request once it completes, at a level chosen by
// the status class, and feeds the request metrics.
func withLogging(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		if m != nil {
			m.RequestsTotal.WithLabelValues(r.URL.Path, strconv.Itoa(rec.status)).Inc()
			m.RequestDuration.WithLabelValues(r.URL.Path).Observe(elapsed.Seconds())
		}

		fields := []zap.Field{
			zap.String("trace_id", TraceID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", elapsed),
		}
		switch {
		case rec.status >= 500:
			logging.Error("Request failed", fields...)
		case rec.status >= 400:
			logging.Warn("Request rejected", fields...)
		default:
			logging.Info("Request served", fields...)
		}
	})
}
