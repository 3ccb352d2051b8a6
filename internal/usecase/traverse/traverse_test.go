package traverse

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
)

type slicePages struct {
	pages   [][]domquery.Row
	next    int
	fetched int
	err     error
	errAt   int
}

func (s *slicePages) Next(ctx context.Context) (domquery.Page, bool, error) {
	if err := ctx.Err(); err != nil {
		return domquery.Page{}, false, err
	}
	if s.err != nil && s.next == s.errAt {
		return domquery.Page{}, false, s.err
	}
	if s.next >= len(s.pages) {
		return domquery.Page{}, false, nil
	}
	p := domquery.NewPage(s.next, s.pages[s.next])
	s.next++
	s.fetched++
	return p, true, nil
}

func makePages(sizes ...int) *slicePages {
	sp := &slicePages{}
	n := 0
	for _, size := range sizes {
		rows := make([]domquery.Row, size)
		for i := range rows {
			rows[i] = domquery.NewRow(fmt.Sprintf("so-%d", n), nil)
			n++
		}
		sp.pages = append(sp.pages, rows)
	}
	return sp
}

// countdown loses one unit per capacity check.
type countdown struct{ left int64 }

func (c *countdown) HasCapacity(th int64) bool {
	ok := c.left >= th
	c.left--
	return ok
}

func (c *countdown) Remaining() int64 { return c.left }

type unlimited struct{}

func (unlimited) HasCapacity(int64) bool { return true }
func (unlimited) Remaining() int64       { return 1 << 40 }

func rowID(r domquery.Row) string { return r.ID() }

func collect(t *testing.T, pages *slicePages, b Budget, opts Options) Result[string] {
	t.Helper()
	res, err := Collect(context.Background(), pages, b, opts, rowID)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	return res
}

func TestCollect_AllRows(t *testing.T) {
	res := collect(t, makePages(3, 3, 1), unlimited{}, Options{Operation: "test", Threshold: 100})

	if !res.Complete || res.Reason != ReasonExhausted || res.StoppedAt != nil {
		t.Errorf("complete=%v reason=%s stopped=%v", res.Complete, res.Reason, res.StoppedAt)
	}
	if res.PagesVisited != 3 {
		t.Errorf("pages visited = %d, want 3", res.PagesVisited)
	}
	want := []string{"so-0", "so-1", "so-2", "so-3", "so-4", "so-5", "so-6"}
	if !slices.Equal(res.Records, want) {
		t.Errorf("records = %v, want %v", res.Records, want)
	}
}

func TestCollect_EmptyResultIsComplete(t *testing.T) {
	res := collect(t, makePages(), unlimited{}, Options{Operation: "test"})
	if !res.Complete || res.PagesVisited != 0 {
		t.Errorf("complete=%v pages=%d", res.Complete, res.PagesVisited)
	}
	if res.Records == nil || len(res.Records) != 0 {
		t.Errorf("records = %#v, want empty non-nil slice", res.Records)
	}
}

func TestCollect_BudgetStopEndsWholeTraversal(t *testing.T) {
	pages := makePages(3, 3, 3)
	// 104 units and threshold 100: rows 0..4 pass, the sixth check fails.
	res := collect(t, pages, &countdown{left: 104}, Options{Operation: "test", Threshold: 100})

	if res.Complete || res.Reason != ReasonBudget {
		t.Errorf("complete=%v reason=%s, want budget stop", res.Complete, res.Reason)
	}
	want := []string{"so-0", "so-1", "so-2", "so-3", "so-4"}
	if !slices.Equal(res.Records, want) {
		t.Errorf("records = %v, want %v", res.Records, want)
	}
	if res.StoppedAt == nil || *res.StoppedAt != (Cursor{Page: 1, Row: 2}) {
		t.Fatalf("stopped at %v, want page 1 row 2", res.StoppedAt)
	}
	if res.PagesVisited != 2 {
		t.Errorf("pages visited = %d, want 2", res.PagesVisited)
	}
	if pages.fetched != 2 {
		t.Errorf("fetched %d pages, no page may be fetched after a budget stop", pages.fetched)
	}
}

func TestCollect_ExactThresholdStillProceeds(t *testing.T) {
	res := collect(t, makePages(2), &countdown{left: 100}, Options{Operation: "test", Threshold: 100})
	if !slices.Equal(res.Records, []string{"so-0"}) || res.Complete {
		t.Errorf("records = %v complete = %v", res.Records, res.Complete)
	}
}

func TestCollect_NoBudgetCollectsNothing(t *testing.T) {
	res := collect(t, makePages(4), &countdown{left: 0}, Options{Operation: "test", Threshold: 1})
	if len(res.Records) != 0 || res.Complete {
		t.Errorf("records = %v complete = %v", res.Records, res.Complete)
	}
	if res.StoppedAt == nil || *res.StoppedAt != (Cursor{}) {
		t.Errorf("stopped at %v, want page 0 row 0", res.StoppedAt)
	}
}

func TestCollect_FetchErrorKeepsPartialRecords(t *testing.T) {
	boom := errors.New("boom")
	pages := makePages(2, 2)
	pages.err, pages.errAt = boom, 1

	res, err := Collect(context.Background(), pages, unlimited{}, Options{Operation: "test"}, rowID)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if !slices.Equal(res.Records, []string{"so-0", "so-1"}) || res.Complete {
		t.Errorf("records = %v complete = %v", res.Records, res.Complete)
	}
}

func TestCollect_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Collect(ctx, makePages(1), unlimited{}, Options{Operation: "test"}, rowID); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
