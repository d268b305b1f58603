package pattern

// Response is one server reply as shown while the run is in progress.
type Response struct {
	Commit  string `json:"commit"`  // truncated hash
	Elapsed string `json:"elapsed"` // seconds, two decimals
	Status  string `json:"status"`  // server-declared type
	Passed  bool   `json:"passed"`
	Body    string `json:"body"` // indented payload
}

func (r *Response) Type() PatternType { return PatternTypeResponse }
