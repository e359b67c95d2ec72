package models

// DecisionResponse is the API response for an admission check.
type DecisionResponse struct {
	Allowed   bool          `json:"allowed"`
	Quota     int           `json:"quota"`
	Remaining int           `json:"remaining"`
	Anomaly   AnomalyResult `json:"anomaly"`
}

// ThrottledResponse is the API response when an action is rejected.
type ThrottledResponse struct {
	Error      string        `json:"error"` // "rate_limit_exceeded"
	Message    string        `json:"message"`
	Quota      int           `json:"quota"`
	RetryAfter int           `json:"retry_after"` // seconds
	Anomaly    AnomalyResult `json:"anomaly"`
}
