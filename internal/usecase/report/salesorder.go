package report

import (
	"fmt"
	"math"
	"time"

	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
)

// Sales order columns.
const (
	ColTranID   = "tranid"
	ColEntity   = "entity"
	ColTranDate = "trandate"
	ColStatus   = "status"
	ColTotal    = "total"
	ColCurrency = "currency"
)

// Columns are the output columns of the pending-approval report.
var Columns = []domquery.Column{
	{Name: ColTranID, Kind: domquery.ColumnText},
	{Name: ColEntity, Kind: domquery.ColumnCoded},
	{Name: ColTranDate, Kind: domquery.ColumnNumber},
	{Name: ColStatus, Kind: domquery.ColumnCoded},
	{Name: ColTotal, Kind: domquery.ColumnNumber},
	{Name: ColCurrency, Kind: domquery.ColumnCoded},
}

// SalesOrder is one flattened report record. Coded columns carry their display text.
type SalesOrder struct {
	ID       string  `json:"id"`
	TranID   string  `json:"tranid"`
	Entity   string  `json:"entity"`
	TranDate string  `json:"trandate"`
	Status   string  `json:"status"`
	Total    float64 `json:"total"`
	Currency string  `json:"currency"`
}

// ProjectSalesOrder flattens a result row.
func ProjectSalesOrder(row domquery.Row) SalesOrder {
	return SalesOrder{
		ID:       row.ID(),
		TranID:   row.Text(ColTranID),
		Entity:   row.Text(ColEntity),
		TranDate: FormatDateKey(row.Number(ColTranDate)),
		Status:   row.Text(ColStatus),
		Total:    row.Number(ColTotal),
		Currency: row.Text(ColCurrency),
	}
}

// DateKey encodes a calendar day as the number YYYYMMDD so date windows become numeric ranges.
func DateKey(t time.Time) float64 {
	return float64(t.Year()*10000 + int(t.Month())*100 + t.Day())
}

// FormatDateKey renders a DateKey as YYYY-MM-DD. Zero renders as "".
func FormatDateKey(k float64) string {
	if k <= 0 || math.IsNaN(k) {
		return ""
	}
	n := int(k)
	return fmt.Sprintf("%04d-%02d-%02d", n/10000, n/100%100, n%100)
}
