// Package rollup is the event handler that keeps a line-item summary on its parent
// document up to date.
package rollup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
	"github.com/kailas-cloud/rollup/internal/metrics"
	"github.com/kailas-cloud/rollup/internal/usecase/aggregate"
	"github.com/kailas-cloud/rollup/internal/usecase/writeback"
)

// Config names the fields the rollup reads and writes.
type Config struct {
	RecordType  string // invoice
	Sublist     string // item
	LineField   string // discount_amount
	TotalField  string // total_discount
	MarkerField string // discount_processed
}

// Outcome is the result of handling one event.
type Outcome string

// Event outcomes, also used as metric labels.
const (
	OutcomeWritten Outcome = "written"
	OutcomeSkipped Outcome = "skipped"
	OutcomeIgnored Outcome = "ignored"
	OutcomeError   Outcome = "error"
)

// Service sums the configured line field and writes it back through the guard.
type Service struct {
	cfg    Config
	reader DocumentReader
	guard  *writeback.Guard
	logger *zap.Logger
}

// New creates a rollup service. The configured fields must be declared in schema.
func New(
	cfg Config, schema domdoc.Schema, reader DocumentReader, updater writeback.Updater, log *zap.Logger,
) (*Service, error) {
	if schema.RecordType() != cfg.RecordType {
		return nil, fmt.Errorf("rollup record type %q, schema %q", cfg.RecordType, schema.RecordType())
	}
	if err := schema.RequireLine(cfg.Sublist, cfg.LineField); err != nil {
		return nil, fmt.Errorf("rollup line field: %w", err)
	}
	guard, err := writeback.New(updater, schema, cfg.TotalField, cfg.MarkerField)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{cfg: cfg, reader: reader, guard: guard, logger: log}, nil
}

// AfterSubmit handles a committed document change. It never fails: skippable events
// (including a nil document) return quietly, and errors or panics are logged and counted.
func (s *Service) AfterSubmit(ctx context.Context, kind domdoc.EventKind, doc *domdoc.Parent) {
	if doc == nil {
		s.observe(kind, s.cfg.RecordType, "", func() (Outcome, error) { return OutcomeIgnored, nil })
		return
	}
	s.observe(kind, doc.Type(), doc.ID(), func() (Outcome, error) {
		return s.process(ctx, kind, doc)
	})
}

// HandleEvent handles an externally delivered event by loading the current document.
// Events for other record types or kinds are ignored without a read.
func (s *Service) HandleEvent(ctx context.Context, kind domdoc.EventKind, ref domdoc.Ref) {
	s.observe(kind, ref.Type, ref.ID, func() (Outcome, error) {
		if !s.accepts(kind, ref.Type) {
			return OutcomeIgnored, nil
		}
		doc, err := s.reader.Get(ctx, ref)
		if err != nil {
			return OutcomeError, fmt.Errorf("load %s: %w", ref, err)
		}
		return s.process(ctx, kind, &doc)
	})
}

// Reconcile recomputes the summary of one document as an edit, returning errors to the
// caller instead of suppressing them.
func (s *Service) Reconcile(ctx context.Context, ref domdoc.Ref) (Outcome, error) {
	if ref.Type != s.cfg.RecordType {
		return OutcomeIgnored, nil
	}
	doc, err := s.reader.Get(ctx, ref)
	if err != nil {
		return OutcomeError, fmt.Errorf("load %s: %w", ref, err)
	}
	outcome, err := s.process(ctx, domdoc.EventUpdate, &doc)
	metrics.RollupEventsTotal.WithLabelValues(ref.Type, string(domdoc.EventUpdate), string(outcome)).Inc()
	return outcome, err
}

func (s *Service) accepts(kind domdoc.EventKind, recordType string) bool {
	if kind != domdoc.EventCreate && kind != domdoc.EventUpdate {
		return false
	}
	return recordType == s.cfg.RecordType
}

func (s *Service) process(ctx context.Context, kind domdoc.EventKind, doc *domdoc.Parent) (Outcome, error) {
	if !s.accepts(kind, doc.Type()) {
		return OutcomeIgnored, nil
	}

	total := aggregate.Aggregate(doc.Lines(s.cfg.Sublist), aggregate.Field(s.cfg.LineField))
	action := s.guard.Reconcile(doc, total)
	if err := s.guard.Apply(ctx, doc.Ref(), action); err != nil {
		return OutcomeError, err
	}

	if action.Kind == writeback.Skip {
		return OutcomeSkipped, nil
	}
	return OutcomeWritten, nil
}

func (s *Service) observe(kind domdoc.EventKind, recordType, id string, fn func() (Outcome, error)) {
	log := s.logger.With(zap.String("record_type", recordType), zap.String("id", id), zap.String("event", string(kind)))

	start := time.Now()
	outcome := OutcomeError
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeError
			log.Error("rollup panicked", zap.Any("panic", r))
		}
		metrics.RollupEventsTotal.WithLabelValues(recordType, string(kind), string(outcome)).Inc()
		metrics.RollupDuration.WithLabelValues(recordType).Observe(time.Since(start).Seconds())
	}()

	var err error
	outcome, err = fn()
	switch {
	case err != nil:
		outcome = OutcomeError
		log.Error("rollup failed", zap.Error(err))
	case outcome == OutcomeIgnored:
		log.Debug("event ignored")
	default:
		log.Debug("rollup done", zap.String("outcome", string(outcome)))
	}
}
