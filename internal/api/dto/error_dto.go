package dto

// ErrorResponse is the envelope of every failed request.
//
// A PATCH whose version is stale answers 409 with code VERSION_CONFLICT
// and the stored version under details:
//
//	{"error": {"code": "VERSION_CONFLICT", "message": "...", "details": {"currentVersion": 2}}}
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// ErrorBody describes one failure. Details is omitted when empty.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}
