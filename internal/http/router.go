package httpapi

import (
	"expvar"
	"net/http"

	"github.com/gorilla/mux"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := mux.NewRouter()
	r.Use(tagRoute)
	r.HandleFunc("/transactions", app.postTransactionHandler).Methods(http.MethodPost)
	r.HandleFunc("/accounts", app.listAccountsHandler).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{client_id}", app.getAccountHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", app.healthHandler).Methods(http.MethodGet)
	r.HandleFunc("/debug/metrics", app.metricsHandler).Methods(http.MethodGet)
	r.Handle("/debug/vars", expvar.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/openapi.yaml", app.openapiHandler).Methods(http.MethodGet)
	r.HandleFunc("/docs", app.docsHandler).Methods(http.MethodGet)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return WithRequestID(WithLogging(WithRecovery(r)))
}
