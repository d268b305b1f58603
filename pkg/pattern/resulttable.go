package pattern

// ResultTable lists one row per completed commit, in submission order.
type ResultTable struct {
	Label   string            `json:"label"`
	Results []ResultTableItem `json:"results"`
}

// ResultTableItem is a single commit's outcome.
type ResultTableItem struct {
	Index   int    `json:"index"`   // 1-based submission position
	Commit  string `json:"commit"`  // truncated hash
	Status  string `json:"status"`  // upper-cased server type
	Elapsed string `json:"elapsed"` // seconds, two decimals
	Passed  bool   `json:"passed"`
}

func (t *ResultTable) Type() PatternType { return PatternTypeResultTable }
