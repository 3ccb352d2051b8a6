package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
	domquery "github.com/kailas-cloud/rollup/internal/domain/query"
	reportuc "github.com/kailas-cloud/rollup/internal/usecase/report"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// EventRequest is an after-submit event delivered by webhook. Kind is free-form:
// kinds the dispatcher does not act on are accepted and ignored.
type EventRequest struct {
	Kind string `json:"kind" validate:"required,max=64"`
	Type string `json:"type" validate:"required"`
	ID   string `json:"id" validate:"required,max=256"`
}

// DocumentRequest is the body of a full document save.
type DocumentRequest struct {
	Fields   map[string]any              `json:"fields" validate:"required"`
	Sublists map[string][]map[string]any `json:"sublists"`
}

// PartialUpdateRequest is the body of a field-level update.
type PartialUpdateRequest struct {
	Fields                map[string]any `json:"fields" validate:"required,min=1"`
	EnableSourcing        bool           `json:"enable_sourcing"`
	IgnoreMandatoryFields bool           `json:"ignore_mandatory_fields"`
}

// DocumentResponse renders a stored document.
type DocumentResponse struct {
	Type     string                      `json:"type"`
	ID       string                      `json:"id"`
	Fields   map[string]any              `json:"fields"`
	Sublists map[string][]map[string]any `json:"sublists,omitempty"`
}

// ReferenceRequest registers the identifier behind a reference code.
type ReferenceRequest struct {
	ID string `json:"id" validate:"required,max=64"`
}

// RecordsRequest ingests queryable records.
type RecordsRequest struct {
	Records []RecordItem `json:"records" validate:"required,min=1,max=1000,dive"`
}

// RecordItem is one record. Field values are strings, numbers, or {"code","display"} objects.
type RecordItem struct {
	ID     string                     `json:"id" validate:"required,max=256"`
	Fields map[string]json.RawMessage `json:"fields" validate:"required"`
}

// UsageResponse renders a usage report.
type UsageResponse struct {
	Period        string       `json:"period"`
	Scope         string       `json:"scope,omitempty"`
	PeriodStartAt string       `json:"period_start_at"`
	PeriodEndAt   string       `json:"period_end_at"`
	UnitsUsed     int64        `json:"units_used"`
	Budget        BudgetStatus `json:"budget"`
}

// BudgetStatus renders the budget part of a usage report.
type BudgetStatus struct {
	UnitsLimit     int64  `json:"units_limit"`
	UnitsRemaining int64  `json:"units_remaining"`
	IsExhausted    bool   `json:"is_exhausted"`
	ResetsAt       string `json:"resets_at,omitempty"`
}

// ReportResponse renders a report run.
type ReportResponse struct {
	reportuc.Result
	Count int `json:"count"`
}

// HealthResponse renders a health report.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// validationMessage flattens validator errors into one client-facing line.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Namespace(), fe.Tag()))
		}
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func documentToResponse(doc *domdoc.Parent) DocumentResponse {
	resp := DocumentResponse{Type: doc.Type(), ID: doc.ID(), Fields: doc.Fields()}
	if resp.Fields == nil {
		resp.Fields = map[string]any{}
	}
	names := doc.SublistNames()
	if len(names) > 0 {
		resp.Sublists = make(map[string][]map[string]any, len(names))
		for _, name := range names {
			lines := doc.Lines(name)
			rows := make([]map[string]any, len(lines))
			for i, l := range lines {
				rows[i] = l.Fields()
			}
			resp.Sublists[name] = rows
		}
	}
	return resp
}

type codedValue struct {
	Code    string `json:"code"`
	Display string `json:"display"`
}

func recordItemToRow(item RecordItem) (domquery.Row, error) {
	keys := make([]string, 0, len(item.Fields))
	for k := range item.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := make(map[string]domquery.Value, len(item.Fields))
	for _, k := range keys {
		v, err := decodeRecordValue(item.Fields[k])
		if err != nil {
			return domquery.Row{}, fmt.Errorf("record %s field %s: %w", item.ID, k, err)
		}
		values[k] = v
	}
	return domquery.NewRow(item.ID, values), nil
}

func decodeRecordValue(raw json.RawMessage) (domquery.Value, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return domquery.TextValue(s), nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return domquery.NumberValue(f), nil
	}
	var c codedValue
	if err := json.Unmarshal(raw, &c); err == nil && c.Code != "" {
		return domquery.CodedValue(c.Code, c.Display), nil
	}
	return domquery.Value{}, fmt.Errorf("unsupported value %s", string(raw))
}
