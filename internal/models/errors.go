package models

import "encoding/json"

// ErrorResponse covers the error bodies the backend produces:
// {"message": "..."}, {"error": "..."} and {"error": {"code": "...", "message": "..."}}.
type ErrorResponse struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

type APIError struct {
	Code      string `json:"code,omitempty"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorEnvelope is the error body served by the local pages.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// Text returns the most specific message present in the body, or "".
func (r ErrorResponse) Text() string {
	if len(r.Error) > 0 {
		var s string
		if err := json.Unmarshal(r.Error, &s); err == nil && s != "" {
			return s
		}
		var e APIError
		if err := json.Unmarshal(r.Error, &e); err == nil && e.Message != "" {
			return e.Message
		}
	}
	return r.Message
}
