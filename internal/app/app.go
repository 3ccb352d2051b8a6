// Package app is the composition root shared by the server and the CLI.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rollup/internal/config"
	"github.com/kailas-cloud/rollup/internal/db"
	"github.com/kailas-cloud/rollup/internal/db/metered"
	dbRedis "github.com/kailas-cloud/rollup/internal/db/redis"
	"github.com/kailas-cloud/rollup/internal/domain"
	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
	"github.com/kailas-cloud/rollup/internal/metrics"
	documentrepo "github.com/kailas-cloud/rollup/internal/repository/document"
	recordrepo "github.com/kailas-cloud/rollup/internal/repository/record"
	referencerepo "github.com/kailas-cloud/rollup/internal/repository/reference"
	usagerepo "github.com/kailas-cloud/rollup/internal/repository/usage"
	chiTransport "github.com/kailas-cloud/rollup/internal/transport/chi"
	budgetuc "github.com/kailas-cloud/rollup/internal/usecase/budget"
	documentuc "github.com/kailas-cloud/rollup/internal/usecase/document"
	healthuc "github.com/kailas-cloud/rollup/internal/usecase/health"
	queryuc "github.com/kailas-cloud/rollup/internal/usecase/query"
	reportuc "github.com/kailas-cloud/rollup/internal/usecase/report"
	rollupuc "github.com/kailas-cloud/rollup/internal/usecase/rollup"
	"github.com/kailas-cloud/rollup/internal/usecase/traverse"
	usageuc "github.com/kailas-cloud/rollup/internal/usecase/usage"
)

// App holds the wired services.
type App struct {
	Config     config.Config
	Logger     *zap.Logger
	Store      db.Store
	Ledger     *budgetuc.Ledger
	Documents  *documentuc.Service
	Rollup     *rollupuc.Service
	Report     *reportuc.Service
	References *referencerepo.Repo
	Records    *recordrepo.Repo
	Usage      *usageuc.Service
	Health     *healthuc.Service
}

// Open connects to the database and wires every service.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Username: cfg.Database.Username,
		Password: cfg.Database.Password,
		DB:       cfg.Database.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("create database store: %w", err)
	}

	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Connected to database", zap.Strings("addrs", cfg.Database.Addrs))

	a, err := Build(ctx, cfg, store, logger)
	if err != nil {
		store.Close()
		return nil, err
	}
	return a, nil
}

// Build wires services over an already connected store.
func Build(ctx context.Context, cfg config.Config, store db.Store, logger *zap.Logger) (*App, error) {
	metrics.RegisterRollupMetrics()

	schemas, err := Schemas(cfg.Documents)
	if err != nil {
		return nil, err
	}
	rollupSchema, ok := findSchema(schemas, cfg.Rollup.RecordType)
	if !ok {
		return nil, fmt.Errorf("rollup record type %q: %w", cfg.Rollup.RecordType, domain.ErrInvalidSchema)
	}

	ms := metered.New(store, metered.Costs{
		Read:   cfg.Budget.Costs.Read,
		Lookup: cfg.Budget.Costs.Lookup,
		Write:  cfg.Budget.Costs.Write,
		Search: cfg.Budget.Costs.Search,
	})

	docRepo := documentrepo.New(ms, schemas...)
	refRepo := referencerepo.New(ms)
	recRepo := recordrepo.New(ms)

	indexNames := make([]string, 0, len(cfg.Records))
	for _, rc := range cfg.Records {
		layout := recordrepo.Layout{RecordType: rc.Type, Tags: rc.Tags, Numerics: rc.Numerics}
		if err := recRepo.EnsureIndex(ctx, layout); err != nil {
			return nil, fmt.Errorf("ensure index %s: %w", rc.Type, err)
		}
		indexNames = append(indexNames, domain.RecordIndex(rc.Type))
	}

	ledger := budgetuc.NewLedger(reportuc.Name, cfg.Budget.DailyUnitLimit, cfg.Budget.MonthlyUnitLimit, logger)
	ledger.WithStore(ctx, usagerepo.New(store,
		time.Duration(cfg.Storage.UsageDailyTTLHours)*time.Hour,
		time.Duration(cfg.Storage.UsageMonthlyTTLDays)*24*time.Hour,
	))

	docSvc := documentuc.New(docRepo, schemas...)
	rollupSvc, err := rollupuc.New(rollupuc.Config{
		RecordType:  cfg.Rollup.RecordType,
		Sublist:     cfg.Rollup.Sublist,
		LineField:   cfg.Rollup.LineField,
		TotalField:  cfg.Rollup.TotalField,
		MarkerField: cfg.Rollup.MarkerField,
	}, rollupSchema, docSvc, docSvc, logger.Named("rollup"))
	if err != nil {
		return nil, fmt.Errorf("rollup: %w", err)
	}
	docSvc.Register(rollupSvc)

	executor := queryuc.NewExecutor(recRepo, refRepo)
	reportSvc := reportuc.New(reportuc.Config{
		RecordType:      cfg.Report.RecordType,
		Status:          cfg.Report.Status,
		LookbackDays:    cfg.Report.LookbackDays,
		MinTotal:        cfg.Report.MinTotal,
		CurrencyType:    cfg.Report.CurrencyType,
		CurrencyCode:    cfg.Report.CurrencyCode,
		ExcludeEntities: cfg.Report.ExcludeEntities,
		PageSize:        cfg.Report.PageSize,
		Threshold:       cfg.Report.Threshold,
		UnitsPerRun:     cfg.Budget.UnitsPerRun,
	}, openPages(executor), ledger, logger.Named("report"))

	return &App{
		Config:     cfg,
		Logger:     logger,
		Store:      store,
		Ledger:     ledger,
		Documents:  docSvc,
		Rollup:     rollupSvc,
		Report:     reportSvc,
		References: refRepo,
		Records:    recRepo,
		Usage:      usageuc.New(ledger),
		Health:     healthuc.New(store, store, indexNames...),
	}, nil
}

// openPages adapts the query executor to the report. A failed Execute returns a nil
// interface, never a typed nil pager.
func openPages(e *queryuc.Executor) reportuc.ExecutorFunc {
	return func(ctx context.Context, c domquery.Criteria, pageSize int) (traverse.Pages, error) {
		p, err := e.Execute(ctx, c, pageSize)
		if err != nil {
			return nil, err
		}
		return p, nil
	}
}

// Server builds the HTTP API over the app services.
func (a *App) Server() *chiTransport.Server {
	return chiTransport.NewServer(chiTransport.Deps{
		Documents:  a.Documents,
		Events:     a.Rollup,
		Report:     a.Report,
		References: a.References,
		Records:    a.Records,
		Usage:      a.Usage,
		Health:     a.Health,
	}, a.Logger)
}

// Close releases the database connection.
func (a *App) Close() {
	a.Store.Close()
}

// Schemas converts configured document types into schemas.
func Schemas(docs []config.DocumentConfig) ([]domdoc.Schema, error) {
	out := make([]domdoc.Schema, 0, len(docs))
	for _, d := range docs {
		sublists := make(map[string][]domdoc.FieldDef, len(d.Sublists))
		for name, fields := range d.Sublists {
			sublists[name] = fieldDefs(fields)
		}
		s, err := domdoc.NewSchema(d.Type, fieldDefs(d.Body), sublists)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", d.Type, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func fieldDefs(fields []config.FieldConfig) []domdoc.FieldDef {
	defs := make([]domdoc.FieldDef, len(fields))
	for i, f := range fields {
		defs[i] = domdoc.FieldDef{Name: f.Name, Kind: domdoc.FieldKind(f.Kind), Mandatory: f.Mandatory}
	}
	return defs
}

func findSchema(schemas []domdoc.Schema, recordType string) (domdoc.Schema, bool) {
	for _, s := range schemas {
		if s.RecordType() == recordType {
			return s, true
		}
	}
	return domdoc.Schema{}, false
}
