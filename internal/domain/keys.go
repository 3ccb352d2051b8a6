package domain

import "fmt"

// KeyPrefix namespaces every key this service writes.
const KeyPrefix = "rollup:"

// DocumentKey is the hash key of a parent document.
func DocumentKey(docType, id string) string {
	return fmt.Sprintf("%sdoc:%s:%s", KeyPrefix, docType, id)
}

// RecordPrefix is the key prefix of queryable records of one type.
func RecordPrefix(recordType string) string {
	return fmt.Sprintf("%srec:%s:", KeyPrefix, recordType)
}

// RecordKey is the hash key of a queryable record.
func RecordKey(recordType, id string) string {
	return RecordPrefix(recordType) + id
}

// RecordIndex is the FT index name over records of one type.
func RecordIndex(recordType string) string {
	return fmt.Sprintf("%s%s:idx", KeyPrefix, recordType)
}

// ReferenceKey is the hash mapping human codes to identifiers for one reference type.
func ReferenceKey(refType string) string {
	return fmt.Sprintf("%sref:%s", KeyPrefix, refType)
}

// UsageKey is the counter of units consumed by scope in one period bucket,
// e.g. rollup:usage:pending_approval:daily:2026-10-18.
func UsageKey(scope, period, bucket string) string {
	return fmt.Sprintf("%susage:%s:%s:%s", KeyPrefix, scope, period, bucket)
}

// RecordIndexLayout is the key holding the field layout an existing record index was built with.
func RecordIndexLayout(recordType string) string {
	return RecordIndex(recordType) + ":layout"
}
