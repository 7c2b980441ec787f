package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/snow-ghost/wban/core"
	"github.com/snow-ghost/wban/pkg/limiter"
	"github.com/snow-ghost/wban/pkg/observability"
	"github.com/snow-ghost/wban/pkg/registry"
	"github.com/snow-ghost/wban/pkg/reports"
	"github.com/snow-ghost/wban/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// maxBodyBytes caps request bodies; a population of a few thousand S2
// vectors fits comfortably.
const maxBodyBytes = 16 << 20

// EvaluateRequest is the body of POST /evaluate
type EvaluateRequest struct {
	Scenario string       `json:"scenario"`
	Weights  core.Weights `json:"weights"`
	Vectors  [][]float64  `json:"vectors"`
}

// EvaluateResponse is returned by POST /evaluate
type EvaluateResponse struct {
	RequestID string    `json:"request_id"`
	Scenario  string    `json:"scenario"`
	Fitness   []float64 `json:"fitness"`
}

// ReportRequest is the body of POST /report. Fitness is computed when absent.
// ExecutionTime (seconds) and Convergence (best fitness per epoch) are
// stored as sent.
type ReportRequest struct {
	Scenario      string       `json:"scenario"`
	Weights       core.Weights `json:"weights"`
	Label         string       `json:"label"`
	Algorithm     string       `json:"algorithm"`
	Run           int          `json:"run"`
	Fitness       *float64     `json:"fitness,omitempty"`
	Vector        []float64    `json:"vector"`
	ExecutionTime *float64     `json:"execution_time,omitempty"`
	Convergence   []float64    `json:"convergence,omitempty"`
}

// ReportResponse is returned by POST /report
type ReportResponse struct {
	RequestID string       `json:"request_id"`
	ID        int64        `json:"id,omitempty"`
	Fitness   float64      `json:"fitness"`
	Metrics   core.Metrics `json:"metrics"`
}

// ScenarioInfo describes one configured scenario
type ScenarioInfo struct {
	ID        string  `json:"id"`
	Sensors   int     `json:"sensors"`
	Dimension int     `json:"dimension"`
	PTXMax    float64 `json:"P_TX_max"`
}

// ErrorResponse is the body of every non-2xx JSON reply
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// Ingestor serves the evaluation HTTP API
type Ingestor struct {
	factory     *Factory
	store       reports.Store
	breaker     *limiter.CircuitBreaker
	limiter     *limiter.RateLimiter
	obs         *observability.Manager
	concurrency int
	mux         *http.ServeMux
}

// NewIngestor wires the HTTP API. store and rl may be nil. Store calls go
// through a circuit breaker.
func NewIngestor(factory *Factory, store reports.Store, rl *limiter.RateLimiter, obs *observability.Manager, concurrency int) *Ingestor {
	if rl == nil {
		rl = limiter.NewRateLimiter(limiter.Config{})
	}
	if obs == nil {
		obs = observability.NewTestManager()
	}
	var breaker *limiter.CircuitBreaker
	if store != nil {
		breaker = limiter.NewCircuitBreaker(limiter.DefaultBreakerConfig("reports"), obs.GetLogger())
		store = newGuardedStore(store, breaker)
	}
	i := &Ingestor{
		factory:     factory,
		store:       store,
		breaker:     breaker,
		limiter:     rl,
		obs:         obs,
		concurrency: concurrency,
		mux:         http.NewServeMux(),
	}
	i.setupRoutes()
	return i
}

func (i *Ingestor) setupRoutes() {
	i.mux.HandleFunc("/health", i.handleHealth)
	i.mux.HandleFunc("/scenarios", i.handleScenarios)
	i.mux.HandleFunc("/evaluate", i.handleEvaluate)
	i.mux.HandleFunc("/report", i.handleReport)
	i.mux.HandleFunc("/reports", i.handleReports)
	i.mux.HandleFunc("/reports/summary", i.handleSummary)
	i.mux.HandleFunc("/cache", i.handleCache)
}

// ServeHTTP assigns a request id, applies the per-client rate limit and logs
// the request.
func (i *Ingestor) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	r = r.WithContext(observability.WithRequestID(r.Context(), requestID))

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		i.obs.LogRequestCompletion(r.Context(), r.Method, r.URL.Path, rec.status, time.Since(start), requestID)
	}()

	if r.URL.Path != "/health" && !i.limiter.Allow(clientID(r)) {
		i.obs.GetMetrics().RecordThrottled()
		writeError(rec, r, "rate limit exceeded", "RATE_LIMITED", http.StatusTooManyRequests)
		return
	}

	i.mux.ServeHTTP(rec, r)
}

// handleEvaluate scores a population
func (i *Ingestor) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EvaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ev, err := i.factory.Evaluator(req.Scenario, req.Weights)
	if err != nil {
		writeEvalError(w, r, err)
		return
	}

	batch := NewBatchEvaluator(ev, req.Scenario, i.concurrency, i.obs)
	fitness, err := batch.EvaluateBatch(r.Context(), req.Vectors)
	if err != nil {
		writeEvalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, EvaluateResponse{
		RequestID: observability.GetRequestIDFromContext(r.Context()),
		Scenario:  req.Scenario,
		Fitness:   fitness,
	})
}

// handleReport decomposes a final solution and persists it
func (i *Ingestor) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ctx, span := i.obs.GetTracer().StartSpan(r.Context(), "report.decompose",
		trace.WithAttributes(attribute.String("scenario", req.Scenario)))
	defer span.End()

	ev, err := i.factory.Evaluator(req.Scenario, req.Weights)
	if err != nil {
		tracing.RecordSpanError(span, err)
		writeEvalError(w, r, err)
		return
	}

	m, err := ev.Metrics(req.Vector)
	if err != nil {
		tracing.RecordSpanError(span, err)
		writeEvalError(w, r, err)
		return
	}
	i.obs.GetMetrics().RecordMetrics(req.Scenario, m.ReliabilityPenalty, m.NetworkLifetime)

	fitness := 0.0
	if req.Fitness != nil {
		fitness = *req.Fitness
	} else if fitness, err = ev.Evaluate(req.Vector); err != nil {
		tracing.RecordSpanError(span, err)
		writeEvalError(w, r, err)
		return
	}

	requestID := observability.GetRequestIDFromContext(r.Context())
	report := reports.Report{
		Scenario:      req.Scenario,
		WeightsLabel:  req.Label,
		Weights:       req.Weights,
		Algorithm:     req.Algorithm,
		Run:           req.Run,
		Fitness:       fitness,
		Metrics:       m,
		Vector:        req.Vector,
		RequestID:     requestID,
		ExecutionTime: req.ExecutionTime,
		Convergence:   req.Convergence,
	}
	// extreme coordinates overflow the distances; such a report can be
	// neither answered nor exported
	if err := report.Validate(); err != nil {
		tracing.RecordSpanError(span, err)
		i.obs.GetLogger().Warn("rejected report", "scenario", req.Scenario, "error", err.Error(), "request_id", requestID)
		code := "INVALID_REPORT"
		if errors.Is(err, reports.ErrNonFinite) {
			code = "NON_FINITE_METRICS"
		}
		writeError(w, r, err.Error(), code, http.StatusUnprocessableEntity)
		return
	}

	i.obs.GetLogger().LogEvaluation(ctx, req.Scenario, fitness, m.TotalEnergyJ, m.ReliabilityPenalty, m.GeometricPenalty, m.NetworkLifetime, requestID)

	resp := ReportResponse{RequestID: requestID, Fitness: fitness, Metrics: m}
	if i.store != nil {
		id, err := i.store.Record(ctx, report)
		if err != nil {
			tracing.RecordSpanError(span, err)
			i.obs.GetLogger().Error("failed to record report", "error", err.Error(), "request_id", requestID)
			writeStoreError(w, r, err)
			return
		}
		resp.ID = id
	}

	tracing.RecordSpanSuccess(span)
	writeJSON(w, http.StatusOK, resp)
}

// handleReports lists stored reports; query parameters filter the result
func (i *Ingestor) handleReports(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if i.store == nil {
		writeError(w, r, "report store not configured", "REPORTS_DISABLED", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	format := reports.ExportFormat(q.Get("format"))
	switch format {
	case "":
		format = reports.ExportFormatJSON
	case reports.ExportFormatJSON, reports.ExportFormatCSV:
	default:
		writeError(w, r, "unsupported export format: "+string(format), "INVALID_QUERY", http.StatusBadRequest)
		return
	}

	filter := reports.Filter{
		Scenario:     q.Get("scenario"),
		WeightsLabel: q.Get("label"),
		Algorithm:    q.Get("algorithm"),
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			writeError(w, r, "invalid limit", "INVALID_QUERY", http.StatusBadRequest)
			return
		}
		filter.Limit = n
	}

	list, err := i.store.List(r.Context(), filter)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	data, err := reports.Export(list, format)
	if err != nil {
		i.obs.GetLogger().Error("failed to export reports", "format", string(format), "error", err.Error())
		writeError(w, r, "failed to export reports", "EXPORT_FAILED", http.StatusInternalServerError)
		return
	}

	if format == reports.ExportFormatCSV {
		w.Header().Set("Content-Type", "text/csv")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Write(data)
}

// handleSummary aggregates stored reports
func (i *Ingestor) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if i.store == nil {
		writeError(w, r, "report store not configured", "REPORTS_DISABLED", http.StatusServiceUnavailable)
		return
	}

	summaries, err := i.store.Summaries(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if summaries == nil {
		summaries = []reports.Summary{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"summaries": summaries,
	})
}

// handleScenarios lists the configured scenarios
func (i *Ingestor) handleScenarios(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ids := i.factory.Scenarios()
	infos := make([]ScenarioInfo, 0, len(ids))
	for _, id := range ids {
		s, err := i.factory.doc.Scenario(id)
		if err != nil {
			continue
		}
		infos = append(infos, ScenarioInfo{
			ID:        s.ID,
			Sensors:   len(s.Sensors),
			Dimension: s.Dimension(),
			PTXMax:    s.MaxTxPowerDBm,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"scenarios": infos,
	})
}

// handleCache reports evaluator cache statistics
func (i *Ingestor) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, i.factory.CacheStats())
}

// handleHealth handles health check requests
func (i *Ingestor) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	health := map[string]interface{}{
		"status":    "ok",
		"service":   "wban-worker",
		"scenarios": i.factory.Scenarios(),
		"timestamp": time.Now().Format(time.RFC3339),
	}
	if i.breaker != nil {
		health["reports"] = i.breaker.GetStats()
	}
	if i.limiter.Enabled() {
		health["rate_limit"] = i.limiter.GetStats(clientID(r))
	}
	writeJSON(w, http.StatusOK, health)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, r, "Invalid JSON: "+err.Error(), "INVALID_JSON", http.StatusBadRequest)
		return false
	}
	return true
}

// writeEvalError maps evaluation errors onto HTTP status codes
func writeEvalError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, registry.ErrUnknownScenario):
		writeError(w, r, err.Error(), "UNKNOWN_SCENARIO", http.StatusNotFound)
	case errors.Is(err, core.ErrVectorLength):
		writeError(w, r, err.Error(), "VECTOR_LENGTH", http.StatusBadRequest)
	case errors.Is(err, core.ErrNonFiniteCoordinate):
		writeError(w, r, err.Error(), "NON_FINITE_COORDINATE", http.StatusBadRequest)
	case errors.Is(err, core.ErrInvalidConfig):
		writeError(w, r, err.Error(), "INVALID_WEIGHTS", http.StatusBadRequest)
	case errors.Is(err, ErrEmptyBatch):
		writeError(w, r, err.Error(), "EMPTY_BATCH", http.StatusBadRequest)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, r, err.Error(), "CANCELLED", http.StatusServiceUnavailable)
	default:
		writeError(w, r, err.Error(), "INTERNAL", http.StatusInternalServerError)
	}
}

// writeStoreError answers 503 while the store breaker is open
func writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	if limiter.IsRejected(err) {
		writeError(w, r, "report store unavailable", "REPORTS_UNAVAILABLE", http.StatusServiceUnavailable)
		return
	}
	writeError(w, r, err.Error(), "STORE_ERROR", http.StatusInternalServerError)
}

// writeError writes an error response
func writeError(w http.ResponseWriter, r *http.Request, message, code string, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: observability.GetRequestIDFromContext(r.Context()),
	})
}

// writeJSON encodes v before committing the status so an unencodable body
// still yields a 500 with an error payload.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		statusCode = http.StatusInternalServerError
		data, _ = json.Marshal(ErrorResponse{Error: "failed to encode response: " + err.Error(), Code: "ENCODE_FAILED"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(append(data, '\n'))
}

// clientID keys the rate limiter: X-Client-ID if set, else the remote host
func clientID(r *http.Request) string {
	if id := r.Header.Get("X-Client-ID"); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
