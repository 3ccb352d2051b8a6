// Package report runs the pending-approval sales order report: a budgeted traversal of a
// fixed query whose window moves with the clock.
package report

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kailas-cloud/rollup/internal/domain"
	"github.com/kailas-cloud/rollup/internal/domain/quota"
	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
	"github.com/kailas-cloud/rollup/internal/metrics"
	"github.com/kailas-cloud/rollup/internal/usecase/budget"
	"github.com/kailas-cloud/rollup/internal/usecase/traverse"
)

// Name labels the report in logs and metrics.
const Name = "pending_approval"

// ReasonResolution marks a run that could not build its criteria.
const ReasonResolution traverse.Reason = "resolution"

// Config parameterises the report criteria and budget.
type Config struct {
	RecordType      string
	Status          string
	LookbackDays    int
	MinTotal        float64
	CurrencyType    string
	CurrencyCode    string
	ExcludeEntities []string
	PageSize        int
	Threshold       int64
	UnitsPerRun     int64
}

// Result is one report run.
type Result struct {
	RunID     string           `json:"run_id"`
	Complete  bool             `json:"complete"`
	Reason    traverse.Reason  `json:"reason"`
	Pages     int              `json:"pages"`
	StoppedAt *traverse.Cursor `json:"stopped_at,omitempty"`
	UnitsUsed int64            `json:"units_used"`
	Records   []SalesOrder     `json:"records"`
}

// Service runs the report.
type Service struct {
	cfg    Config
	exec   Executor
	ledger Ledger
	logger *zap.Logger
	now    func() time.Time
}

// New creates a report service. ledger may be nil, in which case each run gets UnitsPerRun.
func New(cfg Config, exec Executor, ledger Ledger, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		cfg:    cfg,
		exec:   exec,
		ledger: ledger,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Criteria builds the query for a run at now: status, a trailing date window, a minimum
// total, a currency given by code, and optionally entities to leave out.
func (s *Service) Criteria(now time.Time) (domquery.Criteria, error) {
	from := now.AddDate(0, 0, -s.cfg.LookbackDays)

	status, err := domquery.NewPredicate(ColStatus, domquery.OpAnyOf, s.cfg.Status)
	if err != nil {
		return domquery.Criteria{}, err
	}
	window, err := domquery.NewPredicate(ColTranDate, domquery.OpWithin, DateKey(from), DateKey(now))
	if err != nil {
		return domquery.Criteria{}, err
	}
	total, err := domquery.NewPredicate(ColTotal, domquery.OpGreaterThan, s.cfg.MinTotal)
	if err != nil {
		return domquery.Criteria{}, err
	}
	currency, err := domquery.NewPredicate(ColCurrency, domquery.OpAnyOf,
		domquery.Reference{Type: s.cfg.CurrencyType, Code: s.cfg.CurrencyCode})
	if err != nil {
		return domquery.Criteria{}, err
	}

	preds := []domquery.Predicate{status, window, total, currency}
	if len(s.cfg.ExcludeEntities) > 0 {
		vals := make([]any, len(s.cfg.ExcludeEntities))
		for i, e := range s.cfg.ExcludeEntities {
			vals[i] = e
		}
		excluded, err := domquery.NewPredicate(ColEntity, domquery.OpNoneOf, vals...)
		if err != nil {
			return domquery.Criteria{}, err
		}
		preds = append(preds, excluded)
	}

	return domquery.NewCriteria(s.cfg.RecordType, preds, Columns)
}

// Run executes one invocation under a fresh meter. Budget exhaustion and unresolvable
// references both produce an incomplete result, not an error.
func (s *Service) Run(ctx context.Context) (Result, error) {
	runID, err := uuid.NewV7()
	if err != nil {
		return Result{}, fmt.Errorf("run id: %w", err)
	}
	log := s.logger.With(zap.String("report", Name), zap.String("run_id", runID.String()))

	crit, err := s.Criteria(s.now())
	if err != nil {
		return Result{}, fmt.Errorf("build criteria: %w", err)
	}

	limit := s.cfg.UnitsPerRun
	if s.ledger != nil {
		limit = s.ledger.Reserve(limit)
	}
	meter := quota.NewMeter(limit)
	defer func() {
		if s.ledger != nil {
			s.ledger.Settle(limit, meter.Used())
		}
	}()

	res, err := s.run(quota.ContextWithMeter(ctx, meter), crit, meter)
	res.RunID = runID.String()
	res.UnitsUsed = meter.Used()
	if err != nil {
		return res, err
	}

	s.observe(res)
	if res.Reason == ReasonResolution {
		return res, nil
	}
	log.Info("report finished",
		zap.Bool("complete", res.Complete),
		zap.String("reason", string(res.Reason)),
		zap.Int("records", len(res.Records)),
		zap.Int("pages", res.Pages),
		zap.Int64("units_used", res.UnitsUsed),
		zap.Int64("units_limit", limit),
	)
	return res, nil
}

func (s *Service) run(ctx context.Context, crit domquery.Criteria, meter *quota.Meter) (Result, error) {
	res := Result{Records: []SalesOrder{}}

	pages, err := s.exec.Open(ctx, crit, s.cfg.PageSize)
	if err != nil {
		if errors.Is(err, domain.ErrCriteriaResolution) {
			s.logger.Error("criteria reference could not be resolved",
				zap.String("report", Name), zap.Error(err))
			res.Reason = ReasonResolution
			return res, nil
		}
		return res, fmt.Errorf("open query: %w", err)
	}

	out, err := traverse.Collect(ctx, pages, budget.NewTracker(meter),
		traverse.Options{Operation: Name, Threshold: s.cfg.Threshold}, ProjectSalesOrder)
	res.Records = out.Records
	res.Complete = out.Complete
	res.Reason = out.Reason
	res.Pages = out.PagesVisited
	res.StoppedAt = out.StoppedAt
	return res, err
}

func (s *Service) observe(res Result) {
	metrics.ReportRunsTotal.WithLabelValues(Name, strconv.FormatBool(res.Complete)).Inc()
	metrics.ReportRowsCollected.WithLabelValues(Name).Observe(float64(len(res.Records)))
}
