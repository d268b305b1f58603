package pattern

// Summary represents high-level metrics and counts.
type Summary struct {
	Label   string        `json:"label"`
	Metrics []SummaryItem `json:"metrics"`
}

// SummaryItem is a single metric in a summary.
type SummaryItem struct {
	Label string `json:"label"` // e.g., "Total Tests", "Passed", "Avg Time"
	Value string `json:"value"` // formatted value
	Kind  string `json:"kind"`  // "success", "error", "warning", "info"; affects coloring
}

func (s *Summary) Type() PatternType { return PatternTypeSummary }
