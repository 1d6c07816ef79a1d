package protocol

// AnalysisRequest is the body posted to the analysis service.
type AnalysisRequest struct {
	Content string `json:"content"`
}

// AnalysisResult is the service's verdict on a piece of text. It comes from
// outside the process: every string must be escaped before display and every
// field but Manipulation may be missing.
type AnalysisResult struct {
	Manipulation bool     `json:"manipulation"`
	Techniques   []string `json:"techniques,omitempty"`
	Explanation  string   `json:"explanation,omitempty"`
	Disinfo      []string `json:"disinfo,omitempty"`
}

// HasExplanation reports whether the explanation section should be shown.
func (r AnalysisResult) HasExplanation() bool {
	return r.Explanation != ""
}

// HasDisinfo reports whether any debunked claims were returned.
func (r AnalysisResult) HasDisinfo() bool {
	return len(r.Disinfo) > 0
}
