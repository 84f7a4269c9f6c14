package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/fairyhunter13/payments-engine/internal/config"
	"github.com/fairyhunter13/payments-engine/internal/csvio"
	httpopenapi "github.com/fairyhunter13/payments-engine/internal/http/openapi"
	"github.com/fairyhunter13/payments-engine/internal/model"
	"github.com/fairyhunter13/payments-engine/internal/obs"
	"github.com/fairyhunter13/payments-engine/internal/pipeline"
)

// App holds the dependencies of the HTTP handlers.
type App struct {
	Cfg      config.Config
	Pipeline *pipeline.Pipeline
	closing  atomic.Bool
	started  time.Time
}

type transactionRequest struct {
	Type   string   `json:"type"`
	Client *uint16  `json:"client"`
	Tx     *uint32  `json:"tx"`
	Amount *float64 `json:"amount,omitempty"`
}

type ack struct {
	Status     string `json:"status"`
	RequestID  string `json:"request_id"`
	Sequence   uint64 `json:"sequence"`
	Shard      int    `json:"shard"`
	Type       string `json:"type"`
	Client     uint16 `json:"client"`
	Tx         uint32 `json:"tx"`
	ReceivedAt string `json:"received_at"`
	QueueDepth int    `json:"queue_depth"`
}

type accountView struct {
	Client    uint16 `json:"client"`
	Available string `json:"available"`
	Held      string `json:"held"`
	Total     string `json:"total"`
	Locked    bool   `json:"locked"`
}

func newAccountView(s model.AccountSnapshot) accountView {
	return accountView{
		Client:    uint16(s.ClientID),
		Available: csvio.FormatAmount(s.Available),
		Held:      csvio.FormatAmount(s.Held),
		Total:     csvio.FormatAmount(s.Total()),
		Locked:    s.Locked,
	}
}

// NewApp wires the handlers to a started pipeline.
func NewApp(cfg config.Config, p *pipeline.Pipeline) *App {
	return &App{Cfg: cfg, Pipeline: p, started: time.Now()}
}

// StartShutdown rejects new transactions and closes pipeline intake.
func (a *App) StartShutdown() {
	a.closing.Store(true)
	a.Pipeline.Close()
}

func (a *App) postTransactionHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() || a.Pipeline.IsClosing() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return
	}
	var req transactionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	tx, msg := req.toTransaction()
	if msg != "" {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", msg)
		return
	}
	rc, ok := a.Pipeline.Submit(tx)
	if !ok {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	ac := ack{
		Status:     "accepted",
		RequestID:  RequestIDFromContext(r.Context()),
		Sequence:   rc.Sequence,
		Shard:      rc.Shard,
		Type:       tx.Kind.String(),
		Client:     uint16(tx.ClientID),
		Tx:         uint32(tx.ID),
		ReceivedAt: time.Now().UTC().Format(time.RFC3339),
		QueueDepth: a.Pipeline.QueueDepth(),
	}
	writeJSON(w, http.StatusAccepted, ac)
	obs.Logger.Debug("transaction_accepted",
		"request_id", ac.RequestID,
		"sequence", ac.Sequence,
		"shard", ac.Shard,
		"client_id", ac.Client,
		"tx_id", ac.Tx,
		"kind", ac.Type,
	)
}

func (req transactionRequest) toTransaction() (model.Transaction, string) {
	kind, ok := model.ParseKind(strings.ToLower(req.Type))
	if !ok {
		return model.Transaction{}, "type must be one of deposit, withdrawal, dispute, resolve, chargeback"
	}
	if req.Client == nil {
		return model.Transaction{}, "client is required"
	}
	if req.Tx == nil {
		return model.Transaction{}, "tx is required"
	}
	tx := model.Transaction{ID: model.TransactionID(*req.Tx), ClientID: model.ClientID(*req.Client), Kind: kind}
	if _, adjustment := model.AdjustmentKindOf(kind); adjustment {
		if req.Amount == nil {
			return model.Transaction{}, "amount is required for " + kind.String()
		}
		if *req.Amount < 0 {
			return model.Transaction{}, "amount must be >= 0"
		}
		tx.Amount = req.Amount
	}
	return tx, ""
}

func (a *App) getAccountHandler(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(mux.Vars(r)["client_id"], 10, 16)
	if err != nil {
		WriteJSONError(w, http.StatusBadRequest, "validation_error", "client_id must be an integer in [0, 65535]")
		return
	}
	snap, ok := a.Pipeline.Snapshot(model.ClientID(id))
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	writeJSON(w, http.StatusOK, newAccountView(snap))
}

func (a *App) listAccountsHandler(w http.ResponseWriter, r *http.Request) {
	snaps := a.Pipeline.Accounts()
	views := make([]accountView, 0, len(snaps))
	for _, s := range snaps {
		views = append(views, newAccountView(s))
	}
	writeJSON(w, http.StatusOK, views)
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	st := a.Pipeline.Stats()
	m := map[string]any{
		"shard_count":            st.Shards,
		"transactions_submitted": st.Submitted,
		"transactions_completed": st.Completed,
		"transactions_rejected":  st.Rejected,
		"shard_backlog":          st.Backlog,
		"last_sequence":          st.LastSequence,
		"queue_depth":            a.Pipeline.QueueDepth(),
		"uptime_sec":             time.Since(a.started).Seconds(),
	}
	totals, err := a.Pipeline.Recorder().Totals(r.Context())
	if err != nil {
		obs.Logger.Warn("metrics_collect_error", "error", err)
	} else if totals != nil {
		m["counters"] = totals
	}
	writeJSON(w, http.StatusOK, m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Payments Engine API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
