package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterRollupMetrics_Idempotent(t *testing.T) {
	RegisterRollupMetrics()
	RegisterRollupMetrics()

	UnitsConsumedTotal.WithLabelValues("search").Add(5)
	if got := testutil.ToFloat64(UnitsConsumedTotal.WithLabelValues("search")); got < 5 {
		t.Errorf("units_consumed_total{op=search} = %f, want >= 5", got)
	}
}

func TestRollupEventsTotal_Labels(t *testing.T) {
	RollupEventsTotal.WithLabelValues("invoice", "create", "written").Inc()
	if got := testutil.ToFloat64(RollupEventsTotal.WithLabelValues("invoice", "create", "written")); got < 1 {
		t.Errorf("events_total = %f, want >= 1", got)
	}
}
