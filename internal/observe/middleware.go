package observe

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.39.0"
	"go.opentelemetry.io/otel/trace"
)

// unmatchedRoute labels requests no ServeMux pattern handled.
const unmatchedRoute = "unmatched"

// responseRecorder captures the status code and body size written by the
// wrapped handler.
type responseRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

// Middleware wraps a handler, typically an [http.ServeMux], with tracing,
// metrics and request logging. It continues an incoming W3C trace, returns
// the trace ID as X-Correlation-ID and records [Metrics.HTTPRequestDuration].
//
// Series are labelled with the matched ServeMux pattern rather than the raw
// path, so per-user URLs such as /v1/drafts/{user} share one series.
func Middleware(m *Metrics) func(http.Handler) http.Handler {
	prop := propagation.TraceContext{}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ctx := prop.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
			ctx, span := StartSpan(ctx, "HTTP "+r.Method,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					semconv.HTTPRequestMethodKey.String(r.Method),
					semconv.URLPath(r.URL.Path),
				),
			)
			defer span.End()

			if cid := CorrelationID(ctx); cid != "" {
				w.Header().Set("X-Correlation-ID", cid)
			}
			prop.Inject(ctx, propagation.HeaderCarrier(w.Header()))

			rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
			r = r.WithContext(ctx)
			next.ServeHTTP(rec, r)

			finish(ctx, m, span, r, rec, time.Since(start))
		})
	}
}

// finish labels span and metrics with the route ServeMux matched on r and
// logs the request.
func finish(ctx context.Context, m *Metrics, span trace.Span, r *http.Request, rec *responseRecorder, took time.Duration) {
	route := r.Pattern
	if route == "" {
		route = unmatchedRoute
	} else {
		span.SetName(route)
		span.SetAttributes(semconv.HTTPRoute(route))
	}
	span.SetAttributes(semconv.HTTPResponseStatusCode(rec.status))

	m.HTTPRequestDuration.Record(ctx, took.Seconds(), metric.WithAttributes(
		attribute.String("method", r.Method),
		attribute.String("route", route),
		attribute.String("status", strconv.Itoa(rec.status)),
	))

	level := slog.LevelInfo
	if rec.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(rec.status))
		level = slog.LevelWarn
	}
	Logger(ctx).LogAttrs(ctx, level, "request completed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("route", route),
		slog.Int("status", rec.status),
		slog.Int("bytes", rec.bytes),
		slog.Duration("duration", took),
	)
}
