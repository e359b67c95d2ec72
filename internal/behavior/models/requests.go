package models

// RecordActionRequest is the API request body for submitting an action.
type RecordActionRequest struct {
	Identity   string            `json:"identity"`
	Category   string            `json:"category"`
	Attributes map[string]string `json:"attributes,omitempty"`
}
