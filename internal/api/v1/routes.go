// Package v1 provides the REST API handlers for sync operations and the
// provider connection lifecycle.
package v1

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eaur/qbsync/internal/credentials"
	"github.com/eaur/qbsync/internal/enrich"
	"github.com/eaur/qbsync/internal/records"
	"github.com/eaur/qbsync/internal/syncengine"
)

// SyncService is the engine surface the sync handlers use.
type SyncService interface {
	Analyze(ctx context.Context, kind records.EntityKind) (*syncengine.StatusCounts, error)
	Preview(ctx context.Context, kind records.EntityKind, limit, offset int) ([]enrich.Enriched, error)
	RunBatch(ctx context.Context, kind records.EntityKind, batchSize int) (*syncengine.BatchOutcome, error)
	RunAll(ctx context.Context, kind records.EntityKind, batchSize, maxBatches int) (*syncengine.BatchOutcome, error)
	SyncOne(ctx context.Context, kind records.EntityKind, id int64) (*syncengine.RecordResult, error)
}

// ConnectionService is the credential lifecycle surface the connection
// handlers use.
type ConnectionService interface {
	AuthorizeURL(state string) string
	ExchangeCode(ctx context.Context, tenantID, code string) (*credentials.Credential, error)
	Revoke(ctx context.Context, tenantID string) error
}

// ErrorResponse is the standardized error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PreviewResponse wraps the enriched records returned by the preview
// endpoint.
type PreviewResponse struct {
	Count int           `json:"count"`
	Items []PreviewItem `json:"items"`
}

// PreviewItem is one enriched record in a preview response.
type PreviewItem struct {
	Record   records.Record         `json:"record"`
	Names    map[enrich.Kind]string `json:"names,omitempty"`
	Degraded []enrich.Kind          `json:"degraded,omitempty"`
}

// ConnectResponse is returned after a successful authorization callback.
type ConnectResponse struct {
	Success bool   `json:"success"`
	RealmID string `json:"realm_id"`
}

// runRequest is the optional body for the batch and run-all endpoints.
type runRequest struct {
	BatchSize  int `json:"batch_size"`
	MaxBatches int `json:"max_batches"`
}

// Defaults carries the fallback parameters applied when a run request omits
// them.
type Defaults struct {
	BatchSize  int
	MaxBatches int

	// RealmID is the configured company; the disconnect endpoint falls back
	// to it when no realm_id query parameter is given.
	RealmID string
}

// Routes defines the API routes with dependency injection.
type Routes struct {
	sync     SyncService
	conn     ConnectionService
	defaults Defaults
	states   *stateStore
}

// NewRoutes creates a Routes instance with the provided services.
func NewRoutes(sync SyncService, conn ConnectionService, defaults Defaults) *Routes {
	if defaults.BatchSize <= 0 {
		defaults.BatchSize = 50
	}
	if defaults.MaxBatches <= 0 {
		defaults.MaxBatches = 20
	}
	return &Routes{
		sync:     sync,
		conn:     conn,
		defaults: defaults,
		states:   newStateStore(),
	}
}

// Router creates the router for the v1 API.
func (rr *Routes) Router() http.Handler {
	r := chi.NewRouter()

	r.Route("/sync/{kind}", func(r chi.Router) {
		r.Get("/analyze", rr.analyze)
		r.Get("/preview", rr.preview)
		r.Post("/batch", rr.runBatch)
		r.Post("/all", rr.runAll)
		r.Post("/records/{id}", rr.syncOne)
	})

	r.Route("/quickbooks", func(r chi.Router) {
		r.Get("/connect", rr.connect)
		r.Get("/callback", rr.callback)
		r.Post("/disconnect", rr.disconnect)
	})

	return r
}

// analyze handles GET /api/v1/sync/{kind}/analyze
func (rr *Routes) analyze(w http.ResponseWriter, r *http.Request) {
	kind, ok := rr.parseKind(w, r)
	if !ok {
		return
	}

	counts, err := rr.sync.Analyze(r.Context(), kind)
	if err != nil {
		slog.Error("analyze failed", "entity_kind", string(kind), "error", err)
		writeError(w, "failed to analyze records", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// preview handles GET /api/v1/sync/{kind}/preview
func (rr *Routes) preview(w http.ResponseWriter, r *http.Request) {
	kind, ok := rr.parseKind(w, r)
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	items, err := rr.sync.Preview(r.Context(), kind, limit, offset)
	if err != nil {
		slog.Error("preview failed", "entity_kind", string(kind), "error", err)
		writeError(w, "failed to preview records", http.StatusInternalServerError)
		return
	}

	resp := PreviewResponse{
		Count: len(items),
		Items: make([]PreviewItem, 0, len(items)),
	}
	for _, item := range items {
		resp.Items = append(resp.Items, PreviewItem{
			Record:   item.Record,
			Names:    item.Names,
			Degraded: item.Degraded,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// runBatch handles POST /api/v1/sync/{kind}/batch
func (rr *Routes) runBatch(w http.ResponseWriter, r *http.Request) {
	kind, ok := rr.parseKind(w, r)
	if !ok {
		return
	}
	req := rr.decodeRunRequest(r)

	outcome, err := rr.sync.RunBatch(r.Context(), kind, req.BatchSize)
	rr.writeOutcome(w, kind, outcome, err)
}

// runAll handles POST /api/v1/sync/{kind}/all
func (rr *Routes) runAll(w http.ResponseWriter, r *http.Request) {
	kind, ok := rr.parseKind(w, r)
	if !ok {
		return
	}
	req := rr.decodeRunRequest(r)

	outcome, err := rr.sync.RunAll(r.Context(), kind, req.BatchSize, req.MaxBatches)
	rr.writeOutcome(w, kind, outcome, err)
}

// syncOne handles POST /api/v1/sync/{kind}/records/{id}
func (rr *Routes) syncOne(w http.ResponseWriter, r *http.Request) {
	kind, ok := rr.parseKind(w, r)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, "invalid record id", http.StatusBadRequest)
		return
	}

	result, err := rr.sync.SyncOne(r.Context(), kind, id)
	if err != nil {
		if errors.Is(err, syncengine.ErrRecordNotFound) {
			writeError(w, "record not found", http.StatusNotFound)
			return
		}
		slog.Error("single record sync failed",
			"entity_kind", string(kind),
			"record_id", id,
			"error", err,
		)
		if result != nil {
			writeJSON(w, http.StatusBadGateway, result)
			return
		}
		writeError(w, "failed to sync record", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// connect handles GET /api/v1/quickbooks/connect
//
// Redirects the operator to the provider's consent page. The state parameter
// is verified on callback.
func (rr *Routes) connect(w http.ResponseWriter, r *http.Request) {
	state, err := rr.states.issue()
	if err != nil {
		slog.Error("failed to generate authorization state", "error", err)
		writeError(w, "failed to start authorization", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, rr.conn.AuthorizeURL(state), http.StatusFound)
}

// callback handles GET /api/v1/quickbooks/callback
func (rr *Routes) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		slog.Error("authorization callback returned error", "error", errParam)
		writeError(w, "authorization was denied", http.StatusBadRequest)
		return
	}

	code := q.Get("code")
	realmID := q.Get("realmId")
	state := q.Get("state")

	if code == "" {
		writeError(w, "no code provided", http.StatusBadRequest)
		return
	}
	if realmID == "" {
		writeError(w, "no realm id provided", http.StatusBadRequest)
		return
	}
	if !rr.states.consume(state) {
		writeError(w, "unknown or expired state", http.StatusBadRequest)
		return
	}

	if _, err := rr.conn.ExchangeCode(r.Context(), realmID, code); err != nil {
		slog.Error("code exchange failed", "realm_id", realmID, "error", err)
		writeError(w, "code exchange failed", http.StatusBadGateway)
		return
	}

	slog.Info("company connected", "realm_id", realmID)
	writeJSON(w, http.StatusOK, ConnectResponse{Success: true, RealmID: realmID})
}

// disconnect handles POST /api/v1/quickbooks/disconnect
func (rr *Routes) disconnect(w http.ResponseWriter, r *http.Request) {
	realmID := r.URL.Query().Get("realm_id")
	if realmID == "" {
		realmID = rr.defaults.RealmID
	}
	if realmID == "" {
		writeError(w, "no realm id configured", http.StatusBadRequest)
		return
	}

	if err := rr.conn.Revoke(r.Context(), realmID); err != nil {
		if errors.Is(err, credentials.ErrNotConnected) {
			writeError(w, "not connected", http.StatusNotFound)
			return
		}
		slog.Error("disconnect failed", "realm_id", realmID, "error", err)
		writeError(w, "failed to disconnect", http.StatusInternalServerError)
		return
	}

	slog.Info("company disconnected", "realm_id", realmID)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (rr *Routes) parseKind(w http.ResponseWriter, r *http.Request) (records.EntityKind, bool) {
	kind, err := records.ParseEntityKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return kind, true
}

func (rr *Routes) decodeRunRequest(r *http.Request) runRequest {
	req := runRequest{
		BatchSize:  rr.defaults.BatchSize,
		MaxBatches: rr.defaults.MaxBatches,
	}
	if r.Body == nil {
		return req
	}
	var body runRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return req
	}
	if body.BatchSize > 0 {
		req.BatchSize = body.BatchSize
	}
	if body.MaxBatches > 0 {
		req.MaxBatches = body.MaxBatches
	}
	return req
}

// writeOutcome maps a batch result and error pair onto a response. A partial
// outcome is still returned when the batch aborted, so the caller sees what
// landed before the failure.
func (rr *Routes) writeOutcome(w http.ResponseWriter, kind records.EntityKind, outcome *syncengine.BatchOutcome, err error) {
	if err != nil {
		slog.Error("sync run failed", "entity_kind", string(kind), "error", err)
		if outcome != nil {
			writeJSON(w, http.StatusBadGateway, outcome)
			return
		}
		writeError(w, "failed to run sync", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{Error: message})
}

// stateTTL bounds how long an issued authorization state stays redeemable.
const stateTTL = 10 * time.Minute

// stateStore tracks outstanding authorization states. Single-instance only;
// a multi-instance deployment would need these in the database.
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
}

func newStateStore() *stateStore {
	return &stateStore{states: make(map[string]time.Time)}
}

func (s *stateStore) issue() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	state := hex.EncodeToString(buf)

	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, issued := range s.states {
		if now.Sub(issued) > stateTTL {
			delete(s.states, k)
		}
	}
	s.states[state] = now
	return state, nil
}

func (s *stateStore) consume(state string) bool {
	if state == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	issued, ok := s.states[state]
	if !ok {
		return false
	}
	delete(s.states, state)
	return time.Since(issued) <= stateTTL
}
