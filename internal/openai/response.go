package openai

import (
	"encoding/json"
	"time"
)

// Wire shapes for the two response objects. Field order mirrors the OpenAI
// schema: choices, created, model, object.

// ChatMessage is the assistant message inside a unary choice.
type ChatMessage struct {
	Content string `json:"content"`
	Role    string `json:"role"`
}

// UnaryChoice is one candidate answer in a chat.completion response.
type UnaryChoice struct {
	FinishReason string          `json:"finish_reason"`
	Index        int             `json:"index"`
	Logprobs     json.RawMessage `json:"logprobs"`
	Message      ChatMessage     `json:"message"`
}

// UnaryResponse is the complete chat.completion object.
type UnaryResponse struct {
	Choices []UnaryChoice `json:"choices"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Object  string        `json:"object"`
}

// ChunkDelta carries the incremental content of a streaming choice. Content
// is omitted entirely on the final chunk, leaving an empty delta object.
type ChunkDelta struct {
	Content *string `json:"content,omitempty"`
}

// ChunkChoice is the single choice of a chat.completion.chunk object.
type ChunkChoice struct {
	FinishReason *string         `json:"finish_reason"`
	Index        int             `json:"index"`
	Logprobs     json.RawMessage `json:"logprobs"`
	Delta        ChunkDelta      `json:"delta"`
}

// ChunkResponse is one streamed chat.completion.chunk object.
type ChunkResponse struct {
	Choices []ChunkChoice `json:"choices"`
	Created int64         `json:"created"`
	Model   string        `json:"model"`
	Object  string        `json:"object"`
}

// nullJSON keeps logprobs serialized as an explicit null rather than being
// dropped.
var nullJSON = json.RawMessage("null")

// SerializeUnary renders the complete response for one or more decoded
// candidates, indexed in input order.
func SerializeUnary(candidates []string, model string, created time.Time) ([]byte, error) {
	resp := UnaryResponse{
		Choices: make([]UnaryChoice, 0, len(candidates)),
		Created: created.Unix(),
		Model:   model,
		Object:  "chat.completion",
	}
	for i, content := range candidates {
		resp.Choices = append(resp.Choices, UnaryChoice{
			// Natural stop is the only finish reason produced so far;
			// "length" and friends need engine-side stop reasons first.
			FinishReason: "stop",
			Index:        i,
			Logprobs:     nullJSON,
			Message:      ChatMessage{Content: content, Role: "assistant"},
		})
	}
	return json.Marshal(resp)
}

// SerializeStreamingChunk renders one streamed delta. The final chunk carries
// an empty delta and finish_reason "stop"; intermediate chunks carry the
// delta content and a null finish_reason.
func SerializeStreamingChunk(delta string, final bool, model string, created time.Time) ([]byte, error) {
	choice := ChunkChoice{
		Index:    0,
		Logprobs: nullJSON,
	}
	if final {
		reason := "stop"
		choice.FinishReason = &reason
	} else {
		choice.Delta.Content = &delta
	}
	resp := ChunkResponse{
		Choices: []ChunkChoice{choice},
		Created: created.Unix(),
		Model:   model,
		Object:  "chat.completion.chunk",
	}
	return json.Marshal(resp)
}

// FrameSSE wraps a payload as one server-sent event.
func FrameSSE(payload []byte) []byte {
	framed := make([]byte, 0, len(payload)+8)
	framed = append(framed, "data: "...)
	framed = append(framed, payload...)
	framed = append(framed, "\n\n"...)
	return framed
}

// DoneSSE is the terminal frame of every streaming session.
func DoneSSE() []byte { return FrameSSE([]byte("[DONE]")) }
