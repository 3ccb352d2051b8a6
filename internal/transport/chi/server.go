// Package chi is the HTTP transport: a chi router over the document, rollup, report,
// reference, usage and health services.
package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
	domusage "github.com/kailas-cloud/rollup/internal/domain/usage"
	healthuc "github.com/kailas-cloud/rollup/internal/usecase/health"
	reportuc "github.com/kailas-cloud/rollup/internal/usecase/report"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 4 << 20

// DocumentService saves and reads parent documents.
type DocumentService interface {
	Get(ctx context.Context, ref domdoc.Ref) (domdoc.Parent, error)
	Save(ctx context.Context, doc *domdoc.Parent) (bool, error)
	PartialUpdate(ctx context.Context, ref domdoc.Ref, values map[string]any, opts domdoc.UpdateOptions) error
}

// EventHandler consumes after-submit events.
type EventHandler interface {
	HandleEvent(ctx context.Context, kind domdoc.EventKind, ref domdoc.Ref)
}

// ReportRunner runs the pending-approval report.
type ReportRunner interface {
	Run(ctx context.Context) (reportuc.Result, error)
}

// ReferenceStore registers and lists reference codes.
type ReferenceStore interface {
	Put(ctx context.Context, refType, code, id string) error
	List(ctx context.Context, refType string) (map[string]string, error)
}

// RecordWriter ingests queryable records.
type RecordWriter interface {
	Put(ctx context.Context, recordType string, rows ...domquery.Row) error
}

// UsageReporter builds usage reports.
type UsageReporter interface {
	GetReport(ctx context.Context, period domusage.Period) domusage.Report
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// Deps are the services behind the API.
type Deps struct {
	Documents  DocumentService
	Events     EventHandler
	Report     ReportRunner
	References ReferenceStore
	Records    RecordWriter
	Usage      UsageReporter
	Health     HealthChecker
}

// Server is the HTTP API.
type Server struct {
	deps          Deps
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(deps Deps, logger *zap.Logger) *Server {
	return &Server{deps: deps, logger: logger, errorHandlers: defaultErrorHandlers()}
}

// Mount registers all routes on r. API routes live under /api/v1.
func (s *Server) Mount(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", s.HandleEvent)
		r.Put("/documents/{type}/{id}", s.SaveDocument)
		r.Get("/documents/{type}/{id}", s.GetDocument)
		r.Patch("/documents/{type}/{id}", s.PartialUpdate)
		r.Put("/records/{type}", s.PutRecords)
		r.Get("/reports/pending-approval", s.PendingApproval)
		r.Put("/references/{type}/{code}", s.PutReference)
		r.Get("/references/{type}", s.ListReferences)
		r.Get("/usage", s.GetUsage)
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := validate.Struct(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, validationMessage(err))
		return false
	}
	return true
}

func docRef(r *http.Request) domdoc.Ref {
	return domdoc.Ref{Type: chi.URLParam(r, "type"), ID: chi.URLParam(r, "id")}
}

// HandleEvent handles POST /events. The handler never fails the caller.
func (s *Server) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var req EventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.deps.Events.HandleEvent(r.Context(), domdoc.ParseEventKind(req.Kind), domdoc.Ref{Type: req.Type, ID: req.ID})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// SaveDocument handles PUT /documents/{type}/{id}.
func (s *Server) SaveDocument(w http.ResponseWriter, r *http.Request) {
	var req DocumentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ref := docRef(r)
	doc, err := domdoc.New(ref.ID, ref.Type, normalizeMap(req.Fields), normalizeLines(req.Sublists))
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	created, err := s.deps.Documents.Save(r.Context(), &doc)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	// Hooks may have written back; return the stored state.
	stored, err := s.deps.Documents.Get(r.Context(), ref)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, documentToResponse(&stored))
}

// GetDocument handles GET /documents/{type}/{id}.
func (s *Server) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.deps.Documents.Get(r.Context(), docRef(r))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(&doc))
}

// PartialUpdate handles PATCH /documents/{type}/{id}.
func (s *Server) PartialUpdate(w http.ResponseWriter, r *http.Request) {
	var req PartialUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ref := docRef(r)
	opts := domdoc.UpdateOptions{
		EnableSourcing:        req.EnableSourcing,
		IgnoreMandatoryFields: req.IgnoreMandatoryFields,
	}
	if err := s.deps.Documents.PartialUpdate(r.Context(), ref, normalizeMap(req.Fields), opts); err != nil {
		s.handleDomainError(w, err)
		return
	}

	doc, err := s.deps.Documents.Get(r.Context(), ref)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, documentToResponse(&doc))
}

// PutRecords handles PUT /records/{type}.
func (s *Server) PutRecords(w http.ResponseWriter, r *http.Request) {
	var req RecordsRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rows := make([]domquery.Row, len(req.Records))
	for i, item := range req.Records {
		row, err := recordItemToRow(item)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
			return
		}
		rows[i] = row
	}

	if err := s.deps.Records.Put(r.Context(), chi.URLParam(r, "type"), rows...); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"stored": len(rows)})
}

// PendingApproval handles GET /reports/pending-approval.
func (s *Server) PendingApproval(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Report.Run(r.Context())
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReportResponse{Result: res, Count: len(res.Records)})
}

// PutReference handles PUT /references/{type}/{code}.
func (s *Server) PutReference(w http.ResponseWriter, r *http.Request) {
	var req ReferenceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	refType, code := chi.URLParam(r, "type"), chi.URLParam(r, "code")
	if err := s.deps.References.Put(r.Context(), refType, code, req.ID); err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"type": refType, "code": code, "id": req.ID})
}

// ListReferences handles GET /references/{type}.
func (s *Server) ListReferences(w http.ResponseWriter, r *http.Request) {
	refs, err := s.deps.References.List(r.Context(), chi.URLParam(r, "type"))
	if err != nil {
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": refs})
}

// GetUsage handles GET /usage.
func (s *Server) GetUsage(w http.ResponseWriter, r *http.Request) {
	period, ok := domusage.ParsePeriod(r.URL.Query().Get("period"))
	if !ok {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "period must be day or month")
		return
	}

	report := s.deps.Usage.GetReport(r.Context(), period)
	b := report.Budget()
	resp := UsageResponse{
		Period:        string(report.Period()),
		Scope:         report.Scope(),
		PeriodStartAt: formatMillis(report.PeriodStart()),
		PeriodEndAt:   formatMillis(report.PeriodEnd()),
		UnitsUsed:     report.UnitsUsed(),
		Budget: BudgetStatus{
			UnitsLimit:     b.UnitsLimit(),
			UnitsRemaining: b.UnitsRemaining(),
			IsExhausted:    b.IsExhausted(),
		},
	}
	if b.ResetsAt() > 0 && !b.IsUnlimited() {
		resp.Budget.ResetsAt = formatMillis(b.ResetsAt())
	}
	writeJSON(w, http.StatusOK, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.deps.Health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}
	writeJSON(w, httpStatus, HealthResponse{Status: string(report.Status), Checks: checks})
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}

// normalizeMap converts json.Number values into float64 so documents carry plain numbers.
func normalizeMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalizeValue(v)
	}
	return out
}

func normalizeLines(sublists map[string][]map[string]any) map[string][]map[string]any {
	if sublists == nil {
		return nil
	}
	out := make(map[string][]map[string]any, len(sublists))
	for name, lines := range sublists {
		rows := make([]map[string]any, len(lines))
		for i, l := range lines {
			rows[i] = normalizeMap(l)
		}
		out[name] = rows
	}
	return out
}

func normalizeValue(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
