// Package openai implements the OpenAI-compatible wire surface: request
// parsing/validation, response serialization and SSE framing.
package openai

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"cbgate/internal/engine"
)

// ChatCompletionRequest is the typed form of a chat-completion request body.
// Messages keep every string-valued member verbatim, not just role/content,
// so later chat-template work has the full objects available. Optional tuning
// fields are pointers: absent means "engine default applies".
type ChatCompletionRequest struct {
	Messages []map[string]string `json:"messages" validate:"required,min=1"`
	Model    *string             `json:"model" validate:"required"`
	Stream   bool                `json:"stream"`

	// omitnil (not omitempty): a present-but-zero value must still hit the
	// range checks.
	MaxTokens   *int     `json:"max_tokens" validate:"omitnil,gt=0"`
	Temperature *float64 `json:"temperature" validate:"omitnil,gte=0,lte=2"`
	TopP        *float64 `json:"top_p" validate:"omitnil,gte=0,lte=1"`

	// Passthroughs: accepted without range validation, engine semantics
	// apply. top_k/seed/best_of/n and the penalties are vLLM-style
	// extensions beyond the OpenAI field set.
	TopK              *int     `json:"top_k"`
	Seed              *int64   `json:"seed"`
	BestOf            *int     `json:"best_of"`
	N                 *int     `json:"n"`
	RepetitionPenalty *float64 `json:"repetition_penalty"`
	DiversityPenalty  *float64 `json:"diversity_penalty"`
	LengthPenalty     *float64 `json:"length_penalty"`
	IgnoreEOS         *bool    `json:"ignore_eos"`
}

// validate is shared; validator.Validate is safe for concurrent use and
// caches struct metadata.
var validate = validator.New()

// ParseRequest decodes and validates a chat-completion request body.
// Type errors (non-object body, non-string message members, wrong scalar
// types) fail the decode; presence and range constraints fail the single
// validation pass that follows. Unknown fields are ignored.
func ParseRequest(raw []byte) (*ChatCompletionRequest, error) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(bytes.NewReader(raw)).Decode(&req); err != nil {
		return nil, fmt.Errorf("malformed request body: %w", err)
	}
	if err := validate.Struct(&req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
			return nil, fmt.Errorf("invalid request: %s", describeFieldError(verrs[0]))
		}
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	return &req, nil
}

// describeFieldError renders one validator failure as a client-facing message.
func describeFieldError(fe validator.FieldError) string {
	field := jsonFieldName(fe.StructField())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must not be empty"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s constraint", field, fe.Tag())
	}
}

func jsonFieldName(structField string) string {
	switch structField {
	case "Messages":
		return "messages"
	case "Model":
		return "model"
	case "MaxTokens":
		return "max_tokens"
	case "Temperature":
		return "temperature"
	case "TopP":
		return "top_p"
	default:
		return structField
	}
}

// FirstContent returns the content of the first message. Chat-template
// expansion is deferred; generation consumes only this.
func (r *ChatCompletionRequest) FirstContent() (string, bool) {
	if len(r.Messages) == 0 {
		return "", false
	}
	c, ok := r.Messages[0]["content"]
	return c, ok
}

// ModelID returns the requested model name. Only valid after ParseRequest.
func (r *ChatCompletionRequest) ModelID() string {
	if r.Model == nil {
		return ""
	}
	return *r.Model
}

// GenerationConfig maps the request onto the engine configuration. Pure;
// always succeeds on a parsed request. Unset optionals stay nil so the
// engine's own defaults apply.
func (r *ChatCompletionRequest) GenerationConfig() engine.GenerationConfig {
	cfg := engine.GenerationConfig{
		MaxNewTokens: r.MaxTokens,
		IgnoreEOS:    r.IgnoreEOS,

		// The OpenAI surface never exposes group count; best_of selects the
		// group size within the single group.
		NumGroups:          1,
		GroupSize:          r.BestOf,
		DiversityPenalty:   r.DiversityPenalty,
		NumReturnSequences: r.N,
		RepetitionPenalty:  r.RepetitionPenalty,
		LengthPenalty:      r.LengthPenalty,

		Temperature: r.Temperature,
		TopK:        r.TopK,
		TopP:        r.TopP,
		RNGSeed:     r.Seed,
	}
	cfg.DoSample = cfg.EffectiveTemperature() > 0 && cfg.EffectiveGroupSize() == 1
	return cfg
}
