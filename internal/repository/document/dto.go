package document

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	domdoc "github.com/kailas-cloud/rollup/internal/domain/document"
)

const countSuffix = "count"

// lineKey is the hash field holding one line value: {sublist}.{index}.{field}.
func lineKey(sublist string, index int, field string) string {
	return sublist + "." + strconv.Itoa(index) + "." + field
}

func countKey(sublist string) string {
	return sublist + "." + countSuffix
}

// encodeValue renders a body or line value as a hash string. Booleans use the
// platform's checkbox encoding (T/F).
func encodeValue(v any) string {
	switch tv := v.(type) {
	case nil:
		return ""
	case string:
		return tv
	case bool:
		if tv {
			return "T"
		}
		return "F"
	case float64:
		return strconv.FormatFloat(tv, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(tv), 'f', -1, 32)
	case int:
		return strconv.Itoa(tv)
	case int64:
		return strconv.FormatInt(tv, 10)
	case fmt.Stringer:
		return tv.String()
	default:
		return fmt.Sprint(tv)
	}
}

// buildHashFields flattens a parent document into a map for HSET.
func buildHashFields(doc *domdoc.Parent) map[string]string {
	m := make(map[string]string, len(doc.Fields()))
	for k, v := range doc.Fields() {
		m[k] = encodeValue(v)
	}
	for _, sub := range doc.SublistNames() {
		lines := doc.Lines(sub)
		m[countKey(sub)] = strconv.Itoa(len(lines))
		for _, line := range lines {
			for k, v := range line.Fields() {
				m[lineKey(sub, line.Index(), k)] = encodeValue(v)
			}
		}
	}
	return m
}

// buildUpdateFields encodes the body values of a partial update.
func buildUpdateFields(values map[string]any) map[string]string {
	m := make(map[string]string, len(values))
	for k, v := range values {
		m[k] = encodeValue(v)
	}
	return m
}

// decoder turns stored strings back into typed values. With a schema, declared number
// fields become float64 (unparsable text is kept as-is) and bool fields become bool;
// without one every value stays a string.
type decoder struct {
	schema *domdoc.Schema
}

func (d decoder) body(name, raw string) any {
	if d.schema == nil {
		return raw
	}
	def, ok := d.schema.BodyField(name)
	if !ok {
		return raw
	}
	return decodeKind(def.Kind, raw)
}

func (d decoder) line(sublist, name, raw string) any {
	if d.schema == nil {
		return raw
	}
	def, ok := d.schema.LineFieldDef(sublist, name)
	if !ok {
		return raw
	}
	return decodeKind(def.Kind, raw)
}

func decodeKind(kind domdoc.FieldKind, raw string) any {
	switch kind {
	case domdoc.KindNumber, domdoc.KindReference:
		if raw == "" {
			return nil
		}
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	case domdoc.KindBool:
		switch strings.ToLower(raw) {
		case "t", "true", "1", "y", "yes":
			return true
		default:
			return false
		}
	default:
		return raw
	}
}

// parseHashFields rebuilds a parent document from its flattened hash.
func parseHashFields(ref domdoc.Ref, m map[string]string, schema *domdoc.Schema) domdoc.Parent {
	dec := decoder{schema: schema}
	fields := make(map[string]any)
	counts := make(map[string]int)
	lineVals := make(map[string]map[int]map[string]any)

	for k, raw := range m {
		parts := strings.SplitN(k, ".", 3)
		switch len(parts) {
		case 1:
			fields[k] = dec.body(k, raw)
		case 2:
			if parts[1] == countSuffix {
				if n, err := strconv.Atoi(raw); err == nil {
					counts[parts[0]] = n
				}
			}
		case 3:
			idx, err := strconv.Atoi(parts[1])
			if err != nil || idx < 0 {
				continue
			}
			sub := parts[0]
			if lineVals[sub] == nil {
				lineVals[sub] = make(map[int]map[string]any)
			}
			if lineVals[sub][idx] == nil {
				lineVals[sub][idx] = make(map[string]any)
			}
			lineVals[sub][idx][parts[2]] = dec.line(sub, parts[2], raw)
		}
	}

	names := make([]string, 0, len(counts)+len(lineVals))
	for sub := range counts {
		names = append(names, sub)
	}
	for sub := range lineVals {
		if _, ok := counts[sub]; !ok {
			names = append(names, sub)
		}
	}
	sort.Strings(names)

	sublists := make(map[string][]domdoc.LineItem, len(names))
	for _, sub := range names {
		n, ok := counts[sub]
		if !ok {
			for idx := range lineVals[sub] {
				n = max(n, idx+1)
			}
		}
		items := make([]domdoc.LineItem, n)
		for i := 0; i < n; i++ {
			// Lines whose every column is null keep their slot with no fields.
			items[i] = domdoc.NewLineItem(i, lineVals[sub][i])
		}
		sublists[sub] = items
	}

	return domdoc.Reconstruct(ref.ID, ref.Type, fields, sublists)
}
