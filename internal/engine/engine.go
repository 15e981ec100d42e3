package engine

import "context"

// Pipeline abstracts the continuous-batching generation engine used by the
// session layer. Concrete implementations wrap whatever backend actually runs
// the model; the adapter only ever talks to this surface.
type Pipeline interface {
	// AddRequest submits a prompt with its generation config and returns a
	// handle for the new engine session.
	AddRequest(prompt string, cfg GenerationConfig) (GenerationHandle, error)
	// NotifyScheduler wakes the engine's scheduler thread. Must be called
	// after AddRequest; an idle engine may otherwise never pick the work up.
	NotifyScheduler()
	// Tokenizer returns the shared tokenizer for the loaded model. Read-only
	// after model load, safe to share across sessions.
	Tokenizer() Tokenizer
}

// Tokenizer converts token id sequences to text. Decoding is deterministic
// and has no notion of chunk boundaries; callers own any incremental logic.
type Tokenizer interface {
	Decode(ids []int64) string
}

// GenerationStatus reports whether an engine session is still producing.
type GenerationStatus int

const (
	StatusRunning GenerationStatus = iota
	StatusFinished
)

// GenerationHandle is an opaque reference to one engine session. It is owned
// by exactly one request session and must be released when that session ends.
type GenerationHandle interface {
	// ReadAll blocks until generation completes and returns every candidate
	// sequence in full. Implementations must return early when ctx is
	// canceled.
	ReadAll(ctx context.Context) ([]GenerationOutput, error)
	// Read returns the next increment of generation. In streaming use the
	// engine yields one new token for one candidate per call.
	Read(ctx context.Context) ([]GenerationOutput, error)
	// Status reports whether the engine has finished this session.
	Status() GenerationStatus
	// Release drops the engine-side session. Idempotent.
	Release()
}

// GenerationOutput is one candidate sequence. In streaming mode TokenIDs
// carries only the newly produced token(s) since the previous Read.
type GenerationOutput struct {
	TokenIDs []int64
}

// GenerationConfig is the engine-facing generation configuration. Optional
// members are pointers so that an unset field leaves the engine default in
// place. Built once per request and never mutated afterwards.
type GenerationConfig struct {
	MaxNewTokens *int
	IgnoreEOS    *bool

	// Beam/group search. NumGroups is pinned to 1 for the OpenAI surface;
	// GroupSize comes from best_of.
	NumGroups          int
	GroupSize          *int
	DiversityPenalty   *float64
	NumReturnSequences *int
	RepetitionPenalty  *float64
	LengthPenalty      *float64

	// Multinomial sampling.
	Temperature *float64
	TopK        *int
	TopP        *float64
	RNGSeed     *int64

	// DoSample is derived at config build time: true iff the effective
	// temperature is above zero and exactly one group member is requested.
	DoSample bool
}

// EffectiveTemperature returns the temperature the engine will sample with,
// zero when unset.
func (c GenerationConfig) EffectiveTemperature() float64 {
	if c.Temperature == nil {
		return 0
	}
	return *c.Temperature
}

// EffectiveGroupSize returns the group size the engine will use, one when
// unset.
func (c GenerationConfig) EffectiveGroupSize() int {
	if c.GroupSize == nil {
		return 1
	}
	return *c.GroupSize
}
