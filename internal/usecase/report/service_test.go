package report

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/kailas-cloud/rollup/internal/domain"
	"github.com/kailas-cloud/rollup/internal/domain/quota"
	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
	"github.com/kailas-cloud/rollup/internal/domain/query/filter"
	"github.com/kailas-cloud/rollup/internal/usecase/query"
	"github.com/kailas-cloud/rollup/internal/usecase/traverse"
)

// chargingSource serves n sales orders and charges the meter in ctx like the metered store.
type chargingSource struct {
	n         int
	pageCost  int64
	countCost int64
	lastExpr  filter.Expression
}

func (c *chargingSource) Count(ctx context.Context, _ string, f filter.Expression) (int, error) {
	c.lastExpr = f
	quota.FromContext(ctx).Charge(c.countCost)
	return c.n, nil
}

func (c *chargingSource) Page(ctx context.Context, req domquery.PageRequest) ([]domquery.Row, error) {
	quota.FromContext(ctx).Charge(c.pageCost)
	var rows []domquery.Row
	for i := req.Offset; i < req.Offset+req.Limit && i < c.n; i++ {
		rows = append(rows, domquery.NewRow(fmt.Sprintf("%d", i), map[string]domquery.Value{
			ColTranID:   domquery.TextValue(fmt.Sprintf("SO%d", i)),
			ColEntity:   domquery.CodedValue("17", "Acme Ltd"),
			ColTranDate: domquery.NumberValue(20261015),
			ColStatus:   domquery.CodedValue("SalesOrd:A", "Pending Approval"),
			ColTotal:    domquery.NumberValue(12500),
			ColCurrency: domquery.CodedValue("2", "British pound"),
		}))
	}
	return rows, nil
}

type resolverFunc func(refType, code string) (string, error)

func (f resolverFunc) Resolve(_ context.Context, refType, code string) (string, error) {
	return f(refType, code)
}

func gbp(refType, code string) (string, error) {
	if refType == "currency" && code == "GBP" {
		return "2", nil
	}
	return "", domain.ErrNotFound
}

type fakeLedger struct {
	allowance int64
	reserved  []int64
	settled   [][2]int64
}

func (l *fakeLedger) Reserve(perInvocation int64) int64 {
	n := perInvocation
	if l.allowance < n {
		n = l.allowance
	}
	l.reserved = append(l.reserved, n)
	return n
}

func (l *fakeLedger) Settle(reserved, used int64) {
	l.settled = append(l.settled, [2]int64{reserved, used})
}

var testCfg = Config{
	RecordType:   "sales_order",
	Status:       "SalesOrd:A",
	LookbackDays: 30,
	MinTotal:     10000,
	CurrencyType: "currency",
	CurrencyCode: "GBP",
	PageSize:     4000,
	Threshold:    100,
	UnitsPerRun:  10000,
}

func newService(src query.RecordSource, res query.Resolver, ledger Ledger, cfg Config) *Service {
	ex := query.NewExecutor(src, res)
	svc := New(cfg, ExecutorFunc(func(ctx context.Context, c domquery.Criteria, n int) (traverse.Pages, error) {
		p, err := ex.Execute(ctx, c, n)
		if err != nil {
			return nil, err
		}
		return p, nil
	}), ledger, nil)
	svc.now = func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) }
	return svc
}

func TestCriteria(t *testing.T) {
	svc := newService(&chargingSource{}, resolverFunc(gbp), nil, testCfg)
	c, err := svc.Criteria(time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("Criteria: %v", err)
	}

	if c.RecordType() != "sales_order" {
		t.Errorf("record type = %q", c.RecordType())
	}
	preds := c.Predicates()
	if len(preds) != 4 {
		t.Fatalf("got %d predicates, want 4", len(preds))
	}
	if v := preds[1].Values(); len(v) != 2 || v[0] != 20260918.0 || v[1] != 20261018.0 {
		t.Errorf("window = %v", v)
	}
	if preds[2].Operator() != domquery.OpGreaterThan {
		t.Errorf("total operator = %s", preds[2].Operator())
	}
	if refs := preds[3].References(); len(refs) != 1 || refs[0] != (domquery.Reference{Type: "currency", Code: "GBP"}) {
		t.Errorf("currency refs = %v", refs)
	}
	if len(c.Columns()) != 6 {
		t.Errorf("got %d columns, want 6", len(c.Columns()))
	}
}

func TestCriteria_ExcludeEntities(t *testing.T) {
	cfg := testCfg
	cfg.ExcludeEntities = []string{"7", "12"}
	src := &chargingSource{n: 1}
	svc := newService(src, resolverFunc(gbp), nil, cfg)

	c, err := svc.Criteria(svc.now())
	if err != nil {
		t.Fatalf("Criteria: %v", err)
	}
	last := c.Predicates()[len(c.Predicates())-1]
	if last.Field() != ColEntity || last.Operator() != domquery.OpNoneOf {
		t.Fatalf("last predicate = %s %s", last.Field(), last.Operator())
	}

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(src.lastExpr.Must()) != 4 || len(src.lastExpr.MustNot()) != 1 {
		t.Fatalf("compiled %d must / %d must_not", len(src.lastExpr.Must()), len(src.lastExpr.MustNot()))
	}
	if got := src.lastExpr.MustNot()[0].Matches(); len(got) != 2 || got[0] != "7" || got[1] != "12" {
		t.Errorf("excluded = %v", got)
	}
}

func TestRun_CompleteUnderBudget(t *testing.T) {
	src := &chargingSource{n: 3, pageCost: 5, countCost: 5}
	ledger := &fakeLedger{allowance: 1 << 20}
	svc := newService(src, resolverFunc(gbp), ledger, testCfg)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !res.Complete || res.Reason != traverse.ReasonExhausted {
		t.Errorf("complete=%v reason=%s", res.Complete, res.Reason)
	}
	if res.RunID == "" {
		t.Error("run id must be set")
	}
	if len(res.Records) != 3 {
		t.Fatalf("got %d records, want 3", len(res.Records))
	}
	want := SalesOrder{
		ID: "0", TranID: "SO0", Entity: "Acme Ltd", TranDate: "2026-10-15",
		Status: "Pending Approval", Total: 12500, Currency: "British pound",
	}
	if res.Records[0] != want {
		t.Errorf("record 0 = %+v, want %+v", res.Records[0], want)
	}
	if res.UnitsUsed != 10 {
		t.Errorf("units used = %d, want 10", res.UnitsUsed)
	}
	if len(ledger.settled) != 1 || ledger.settled[0] != [2]int64{10000, 10} {
		t.Errorf("settled = %v, want [[10000 10]]", ledger.settled)
	}

	if len(src.lastExpr.Must()) != 4 {
		t.Fatalf("compiled %d conditions, want 4", len(src.lastExpr.Must()))
	}
	if got := src.lastExpr.Must()[3].Matches(); len(got) != 1 || got[0] != "2" {
		t.Errorf("currency matches = %v", got)
	}
}

func TestRun_BudgetTruncates(t *testing.T) {
	cfg := testCfg
	cfg.PageSize = 2
	// 5 for count, 5 for page 0; 100 left after that passes the threshold, and page 1 drops it to 95.
	cfg.UnitsPerRun = 110
	src := &chargingSource{n: 6, pageCost: 5, countCost: 5}
	svc := newService(src, resolverFunc(gbp), nil, cfg)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Complete || res.Reason != traverse.ReasonBudget {
		t.Errorf("complete=%v reason=%s", res.Complete, res.Reason)
	}
	if len(res.Records) != 2 {
		t.Errorf("got %d records, want 2", len(res.Records))
	}
	if res.StoppedAt == nil || *res.StoppedAt != (traverse.Cursor{Page: 1, Row: 0}) {
		t.Errorf("stopped at %+v", res.StoppedAt)
	}
}

func TestRun_LedgerCapsAllowance(t *testing.T) {
	src := &chargingSource{n: 3, pageCost: 5, countCost: 5}
	ledger := &fakeLedger{allowance: 50}
	svc := newService(src, resolverFunc(gbp), ledger, testCfg)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Complete || len(res.Records) != 0 {
		t.Errorf("complete=%v records=%d", res.Complete, len(res.Records))
	}
	if len(ledger.reserved) != 1 || ledger.reserved[0] != 50 {
		t.Errorf("reserved = %v", ledger.reserved)
	}
	if len(ledger.settled) != 1 || ledger.settled[0] != [2]int64{50, 10} {
		t.Errorf("settled = %v, want [[50 10]]", ledger.settled)
	}
}

func TestRun_UnresolvedCurrency(t *testing.T) {
	cfg := testCfg
	cfg.CurrencyCode = "XXX"
	svc := newService(&chargingSource{n: 3}, resolverFunc(gbp), nil, cfg)

	res, err := svc.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Complete || res.Reason != ReasonResolution {
		t.Errorf("complete=%v reason=%s", res.Complete, res.Reason)
	}
	if res.Records == nil || len(res.Records) != 0 {
		t.Errorf("records = %v, want empty non-nil", res.Records)
	}
}

func TestRun_ExecutorFailure(t *testing.T) {
	boom := errors.New("search unavailable")
	ledger := &fakeLedger{allowance: 100}
	svc := New(testCfg, ExecutorFunc(func(context.Context, domquery.Criteria, int) (traverse.Pages, error) {
		return nil, boom
	}), ledger, nil)

	if _, err := svc.Run(context.Background()); !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if len(ledger.settled) != 1 || ledger.settled[0] != [2]int64{100, 0} {
		t.Errorf("reservation must be released on failure, settled = %v", ledger.settled)
	}
}

func TestFormatDateKey(t *testing.T) {
	if got := FormatDateKey(DateKey(time.Date(2026, 2, 3, 23, 0, 0, 0, time.UTC))); got != "2026-02-03" {
		t.Errorf("FormatDateKey = %q", got)
	}
	if got := FormatDateKey(0); got != "" {
		t.Errorf("FormatDateKey(0) = %q", got)
	}
}
