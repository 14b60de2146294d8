package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"fleet-analytics/internal/export"
	"fleet-analytics/internal/models"
	"fleet-analytics/internal/repository"
	"fleet-analytics/internal/services"
	"fleet-analytics/pkg/logging"
	"fleet-analytics/pkg/metrics"
)

// SessionHeader carries the client session used for last-request-wins
const SessionHeader = "X-Session-ID"

// DatasetProvider is the snapshot cache seen by the handlers
type DatasetProvider interface {
	Snapshot(ctx context.Context) (*services.Snapshot, error)
	Reload(ctx context.Context) (*services.Snapshot, error)
	Current() *services.Snapshot
}

// HandlerOptions holds display defaults
type HandlerOptions struct {
	Locale services.Locale
	TopN   int
}

// DashboardHandler handles the fleet analytics API endpoints
type DashboardHandler struct {
	store    DatasetProvider
	views    *services.ViewService
	exporter *export.Exporter
	pricing  repository.PricingRepository
	opts     HandlerOptions
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler. pricing may be nil
// when no Postgres pricing store is configured.
func NewDashboardHandler(
	store DatasetProvider,
	views *services.ViewService,
	exporter *export.Exporter,
	pricing repository.PricingRepository,
	opts HandlerOptions,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	return &DashboardHandler{
		store:    store,
		views:    views,
		exporter: exporter,
		pricing:  pricing,
		opts:     opts,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int         `json:"total"`
	Page       int         `json:"page"`
	Limit      int         `json:"limit"`
	TotalPages int         `json:"total_pages"`
}

// MatrixResponse is the body of GET /api/matrix
type MatrixResponse struct {
	View            string              `json:"view"`
	Locale          string              `json:"locale"`
	Rows            interface{}         `json:"rows"`
	KPIs            services.MatrixKPIs `json:"kpis"`
	Warning         string              `json:"warning,omitempty"`
	SnapshotVersion uint64              `json:"snapshot_version"`
}

// KPIResponse is the body of GET /api/kpis
type KPIResponse struct {
	services.KPIs
	Matrix              services.MatrixKPIs `json:"matrix"`
	CapacityUtilization float64             `json:"capacity_utilization_percent"`
	SnapshotVersion     uint64              `json:"snapshot_version"`
}

// DatasetResponse describes the published snapshot
type DatasetResponse struct {
	Version  uint64              `json:"version"`
	LoadedAt time.Time           `json:"loaded_at"`
	Records  int                 `json:"records"`
	Report   services.LoadReport `json:"report"`
}

// GetRecords handles GET /api/records
func (h *DashboardHandler) GetRecords(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/records"
	defer h.observe(endpoint)()

	view, ok := h.computeView(w, r, endpoint)
	if !ok {
		return
	}

	page, limit := pagination(r)
	total := len(view.Records)
	start := (page - 1) * limit
	if start > total {
		start = total
	}
	end := start + limit
	if end > total {
		end = total
	}

	response := PaginatedResponse{
		Data:       view.Records[start:end],
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetMatrix handles GET /api/matrix
func (h *DashboardHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/matrix"
	defer h.observe(endpoint)()

	locale, ok := h.locale(w, r)
	if !ok {
		return
	}
	mode := r.URL.Query().Get("view")
	if mode == "" {
		mode = "formatted"
	}
	if mode != "formatted" && mode != "raw" {
		h.sendError(w, r, "invalid view, expected raw or formatted", http.StatusBadRequest)
		return
	}

	view, ok := h.computeView(w, r, endpoint)
	if !ok {
		return
	}

	response := MatrixResponse{
		View:            mode,
		Locale:          locale.Name,
		KPIs:            view.MatrixKPIs,
		Warning:         view.MatrixWarning,
		SnapshotVersion: view.SnapshotVersion,
	}
	if mode == "raw" {
		response.Rows = view.Matrix
	} else {
		response.Rows = services.FormatMatrix(view.Matrix, locale)
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// ExportMatrix handles GET /api/matrix/export
func (h *DashboardHandler) ExportMatrix(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/matrix/export"
	defer h.observe(endpoint)()

	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return
	}
	locale, ok := h.locale(w, r)
	if !ok {
		return
	}

	view, ok := h.computeView(w, r, endpoint)
	if !ok {
		return
	}
	if view.MatrixWarning != "" {
		h.sendError(w, r, view.MatrixWarning, http.StatusUnprocessableEntity)
		return
	}

	tables := []export.Table{
		export.MatrixTable(view.Matrix),
		export.KPIsTable(view.KPIs, view.MatrixKPIs),
	}
	opts := export.Options{Locale: locale, Title: "Fleet Operations Matrix"}

	var buf bytes.Buffer
	if err := h.exporter.Write(r.Context(), &buf, format, tables, opts); err != nil {
		h.metrics.RecordAPIError("export_error", endpoint)
		h.sendError(w, r, "export failed", http.StatusInternalServerError)
		return
	}

	filename := fmt.Sprintf("matrix_%s.%s", time.Now().Format("20060102_150405"), format.Extension())
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
}

// GetKPIs handles GET /api/kpis
func (h *DashboardHandler) GetKPIs(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/kpis"
	defer h.observe(endpoint)()

	view, ok := h.computeView(w, r, endpoint)
	if !ok {
		return
	}

	response := KPIResponse{
		KPIs:                view.KPIs,
		Matrix:              view.MatrixKPIs,
		CapacityUtilization: services.CapacityUtilization(view.Records),
		SnapshotVersion:     view.SnapshotVersion,
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, response, http.StatusOK)
}

// GetSummary handles GET /api/summaries/{name}
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/summaries"
	defer h.observe(endpoint)()

	name := mux.Vars(r)["name"]
	n := h.opts.TopN
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			h.sendError(w, r, "invalid n, expected a non-negative integer", http.StatusBadRequest)
			return
		}
		n = v
	}

	view, ok := h.computeView(w, r, endpoint)
	if !ok {
		return
	}

	result, err := services.RunSummary(name, view.Records, n)
	if errors.Is(err, services.ErrUnknownSummary) {
		h.sendError(w, r, fmt.Sprintf("unknown summary %q, expected one of: %s", name, strings.Join(services.SummaryNames, ", ")), http.StatusNotFound)
		return
	}
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, map[string]interface{}{
		"name":             name,
		"data":             result,
		"snapshot_version": view.SnapshotVersion,
	}, http.StatusOK)
}

// GetFilters handles GET /api/filters
func (h *DashboardHandler) GetFilters(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/filters"
	defer h.observe(endpoint)()

	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, services.ComputeFilterOptions(snap.Records), http.StatusOK)
}

// GetDataset handles GET /api/dataset
func (h *DashboardHandler) GetDataset(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/dataset"
	defer h.observe(endpoint)()

	snap, err := h.store.Snapshot(r.Context())
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.metrics.RecordAPIRequest(endpoint, "GET", "200")
	h.sendJSON(w, datasetResponse(snap), http.StatusOK)
}

// Reload handles POST /api/reload
func (h *DashboardHandler) Reload(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/api/reload"
	defer h.observe(endpoint)()

	snap, err := h.store.Reload(r.Context())
	if err != nil {
		h.handleError(w, r, endpoint, err)
		return
	}

	h.logger.Info(r.Context(), "[API_RELOAD] Dataset reloaded on request", logging.Fields{
		"version": snap.Version,
		"records": len(snap.Records),
	})
	h.metrics.RecordAPIRequest(endpoint, "POST", "200")
	h.sendJSON(w, datasetResponse(snap), http.StatusOK)
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK

	if snap := h.store.Current(); snap != nil {
		status["snapshot_version"] = snap.Version
		status["snapshot_loaded_at"] = snap.LoadedAt.UTC().Format(time.RFC3339)
	} else {
		status["snapshot_version"] = nil
	}

	if h.pricing != nil {
		if err := h.pricing.HealthCheck(ctx); err != nil {
			status["status"] = "unhealthy"
			status["database"] = err.Error()
			code = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, code)
}

// computeView runs the filtered computation for the request's session and
// writes the error response itself when it fails.
func (h *DashboardHandler) computeView(w http.ResponseWriter, r *http.Request, endpoint string) (*services.View, bool) {
	filter, err := parseFilter(r)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return nil, false
	}

	session := sessionID(r)
	ctx := logging.WithSessionID(r.Context(), session)

	view, err := h.views.Compute(ctx, session, filter)
	if err != nil {
		h.handleError(w, r.WithContext(ctx), endpoint, err)
		return nil, false
	}
	return view, true
}

// handleError maps service errors to status codes
func (h *DashboardHandler) handleError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	ctx := r.Context()

	var loadErr *models.DataLoadError
	var validationErr *models.ValidationError
	var notFound *models.NotFoundError
	var overlap *models.OverlapError

	switch {
	case errors.Is(err, services.ErrStaleView):
		h.metrics.RecordAPIError("stale_view", endpoint)
		h.sendError(w, r, "request superseded by a newer request from the same session", http.StatusConflict)
	case errors.As(err, &loadErr):
		h.logger.Error(ctx, "[API_DATA_UNAVAILABLE] Dataset could not be loaded", logging.Fields{
			"endpoint": endpoint,
			"source":   loadErr.Source,
		}, err)
		h.metrics.RecordAPIError("data_unavailable", endpoint)
		h.sendError(w, r, "data source unavailable: "+loadErr.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &validationErr):
		h.sendError(w, r, validationErr.Error(), http.StatusBadRequest)
	case errors.As(err, &notFound):
		h.sendError(w, r, notFound.Error(), http.StatusNotFound)
	case errors.As(err, &overlap):
		h.sendError(w, r, overlap.Error(), http.StatusConflict)
	case errors.Is(err, context.DeadlineExceeded):
		h.metrics.RecordAPIError("timeout", endpoint)
		h.sendError(w, r, "request timed out", http.StatusGatewayTimeout)
	default:
		h.logger.Error(ctx, "[API_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
		}, err)
		h.metrics.RecordAPIError("internal_error", endpoint)
		h.sendError(w, r, "internal error", http.StatusInternalServerError)
	}
}

// observe records the request duration when the returned func is called
func (h *DashboardHandler) observe(endpoint string) func() {
	startTime := time.Now()
	return func() {
		h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
	}
}

func (h *DashboardHandler) locale(w http.ResponseWriter, r *http.Request) (services.Locale, bool) {
	raw := r.URL.Query().Get("locale")
	if raw == "" {
		return h.opts.Locale, true
	}
	locale, err := services.ParseLocale(raw)
	if err != nil {
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
		return services.Locale{}, false
	}
	return locale, true
}

// sendJSON sends a JSON response
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all dashboard API routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.Use(RequestIDMiddleware)
	router.HandleFunc("/api/records", h.GetRecords).Methods("GET")
	router.HandleFunc("/api/matrix", h.GetMatrix).Methods("GET")
	router.HandleFunc("/api/matrix/export", h.ExportMatrix).Methods("GET")
	router.HandleFunc("/api/kpis", h.GetKPIs).Methods("GET")
	router.HandleFunc("/api/summaries/{name}", h.GetSummary).Methods("GET")
	router.HandleFunc("/api/filters", h.GetFilters).Methods("GET")
	router.HandleFunc("/api/dataset", h.GetDataset).Methods("GET")
	router.HandleFunc("/api/reload", h.Reload).Methods("POST")
	router.HandleFunc("/api/pricing", h.ListPricing).Methods("GET")
	router.HandleFunc("/api/pricing", h.CreatePricing).Methods("POST")
	router.HandleFunc("/api/pricing/{id:[0-9]+}", h.DeletePricing).Methods("DELETE")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}

func datasetResponse(snap *services.Snapshot) DatasetResponse {
	return DatasetResponse{
		Version:  snap.Version,
		LoadedAt: snap.LoadedAt,
		Records:  len(snap.Records),
		Report:   snap.Report,
	}
}

// parseFilter reads start_date, end_date and the repeated or comma-separated
// company, destination and material parameters.
func parseFilter(r *http.Request) (services.Filter, error) {
	q := r.URL.Query()
	var f services.Filter

	for _, bound := range []struct {
		name string
		dst  **time.Time
	}{{"start_date", &f.Start}, {"end_date", &f.End}} {
		raw := q.Get(bound.name)
		if raw == "" {
			continue
		}
		d, err := time.Parse(models.DateLayout, raw)
		if err != nil {
			return services.Filter{}, fmt.Errorf("invalid %s format, expected YYYY-MM-DD", bound.name)
		}
		*bound.dst = &d
	}

	f.Companies = listParam(q["company"])
	f.Destinations = listParam(q["destination"])
	f.Materials = listParam(q["material"])
	return f, nil
}

func listParam(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func pagination(r *http.Request) (page, limit int) {
	page, limit = 1, 100
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	if l, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && l > 0 && l <= 1000 {
		limit = l
	}
	return page, limit
}

// sessionID falls back to the client host so that requests without the
// header still share one session across connections
func sessionID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(SessionHeader)); id != "" {
		return id
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
