// Package types holds the wire types shared with API clients.
package types

// Model describes one served model id, OpenAI list-style.
type Model struct {
	// Stable identifier, echoed back in responses.
	// example: ov-llama-7b
	ID string `json:"id" example:"ov-llama-7b"`
	// Object discriminator, always "model".
	Object string `json:"object" example:"model"`
	// Owner label for OpenAI client compatibility.
	OwnedBy string `json:"owned_by,omitempty" example:"cbgate"`
}

// ModelsResponse wraps the list returned by GET /v1/models.
type ModelsResponse struct {
	Object string  `json:"object" example:"list"`
	Data   []Model `json:"data"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid request: temperature must be at most 2
	Error string `json:"error" example:"invalid request: temperature must be at most 2"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
