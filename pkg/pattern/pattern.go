// Package pattern defines the semantic data types for commitq's console output.
// Patterns are pure data; renderers decide presentation.
package pattern

// PatternType identifies the kind of visualization pattern.
type PatternType string

const (
	PatternTypeSummary     PatternType = "summary"
	PatternTypeResultTable PatternType = "result-table"
	PatternTypeResponse    PatternType = "response"
)

// Pattern is the interface all visualization patterns implement.
type Pattern interface {
	Type() PatternType
}
