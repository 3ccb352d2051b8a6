package db

import "github.com/kailas-cloud/rollup/internal/domain/query/filter"

// PageQuery is the input for one bounded page of a filter query.
type PageQuery struct {
	Index        string
	Filters      filter.Expression
	Offset       int
	Limit        int
	SortBy       string // numeric or tag field; keeps page boundaries stable across requests
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single document hit from a search.
type SearchEntry struct {
	Key    string
	Fields map[string]string
}
