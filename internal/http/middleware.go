package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/fairyhunter13/payments-engine/internal/obs"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyRouteInfo
)

const maxRequestIDLen = 128

// RequestIDFromContext returns the request id set by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// routeInfo is filled in by the router once a route matched, so the outer
// access log can label requests by route template instead of raw path.
type routeInfo struct {
	template string
	clientID string
}

// responseRecorder captures the status and size of a response. Only the
// first WriteHeader is recorded.
type responseRecorder struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (rr *responseRecorder) WriteHeader(code int) {
	if rr.wroteHeader {
		return
	}
	rr.wroteHeader = true
	rr.status = code
	rr.ResponseWriter.WriteHeader(code)
}

func (rr *responseRecorder) Write(b []byte) (int, error) {
	if !rr.wroteHeader {
		rr.WriteHeader(http.StatusOK)
	}
	n, err := rr.ResponseWriter.Write(b)
	rr.bytes += n
	return n, err
}

// WithRequestID propagates X-Request-Id, generating one when absent or oversized.
func WithRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" || len(reqID) > maxRequestIDLen {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID, reqID)))
	})
}

// WithRecovery turns a handler panic into a 500 JSON error.
func WithRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				if v == http.ErrAbortHandler {
					panic(v)
				}
				obs.Logger.Error("http_panic",
					"panic", v,
					"path", r.URL.Path,
					"request_id", RequestIDFromContext(r.Context()),
					"stack", string(debug.Stack()),
				)
				WriteJSONError(w, http.StatusInternalServerError, "internal_error", "")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// tagRoute records the matched route template and client id for WithLogging.
func tagRoute(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := r.Context().Value(ctxKeyRouteInfo).(*routeInfo); ok {
			if route := mux.CurrentRoute(r); route != nil {
				info.template, _ = route.GetPathTemplate()
			}
			info.clientID = mux.Vars(r)["client_id"]
		}
		next.ServeHTTP(w, r)
	})
}

// WithLogging writes one access log line per request, labelled by route
// template. Health checks log at debug; server errors at error.
func WithLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		info := &routeInfo{}
		rr := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rr, r.WithContext(context.WithValue(r.Context(), ctxKeyRouteInfo, info)))

		route := info.template
		if route == "" {
			route = "unmatched"
		}
		lvl := slog.LevelInfo
		switch {
		case rr.status >= http.StatusInternalServerError:
			lvl = slog.LevelError
		case route == "/healthz":
			lvl = slog.LevelDebug
		}
		attrs := []any{
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", rr.status,
			"bytes", rr.bytes,
			"latency_ms", float64(time.Since(start).Microseconds()) / 1000.0,
			"request_id", RequestIDFromContext(r.Context()),
		}
		if info.clientID != "" {
			attrs = append(attrs, "client_id", info.clientID)
		}
		obs.Logger.Log(r.Context(), lvl, "http_request", attrs...)
	})
}
