package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"cbgate/internal/engine"
	"cbgate/internal/openai"
)

// State is the lifecycle position of a Machine.
type State int

const (
	// StateUninitialized is the zero value; only New produces a usable
	// machine.
	StateUninitialized State = iota
	// StateAwaitingFirstInput waits for the tick carrying the request body.
	StateAwaitingFirstInput
	// StateActiveUnary and StateActiveStreaming have an open engine handle.
	StateActiveUnary
	StateActiveStreaming
	// StateFinished is terminal; no further ticks are expected.
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateAwaitingFirstInput:
		return "awaiting_first_input"
	case StateActiveUnary:
		return "active_unary"
	case StateActiveStreaming:
		return "active_streaming"
	case StateFinished:
		return "finished"
	default:
		return "uninitialized"
	}
}

// Tick is one scheduling step handed to the machine by the host. Exactly one
// of Payload or Loopback should be set; a Tick with neither is a no-op.
type Tick struct {
	// Payload is the raw request body, present only on the first real tick.
	Payload []byte
	// Loopback is the continuation signal for streaming sessions.
	Loopback bool
}

// TickResult is what the host does with one tick's outcome.
type TickResult struct {
	// Output is ready-to-write response bytes: the complete JSON document in
	// unary mode, zero or more SSE frames in streaming mode.
	Output []byte
	// Continue asks the host to re-invoke Tick with a loopback.
	Continue bool
	// Done reports the terminal state was reached.
	Done bool
}

// Machine drives one chat-completion request against the engine. It is
// re-entered once per host tick and owns the request, engine handle and
// decoder for the whole session. Ticks for one machine are strictly
// sequential, so no locking happens here.
type Machine struct {
	pipe engine.Pipeline
	log  zerolog.Logger
	now  func() time.Time

	state     State
	streaming bool
	req       *openai.ChatCompletionRequest
	handle    engine.GenerationHandle
	decoder   *Decoder
	created   time.Time
}

// Option tweaks machine construction.
type Option func(*Machine)

// WithLogger installs a structured logger. Default is a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Machine) { m.log = log }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// New builds a machine bound to an engine pipeline. The pipeline is the
// injected collaborator; the machine never reaches around it.
func New(pipe engine.Pipeline, opts ...Option) (*Machine, error) {
	if pipe == nil {
		return nil, engineFailureError{msg: "no engine pipeline attached"}
	}
	m := &Machine{
		pipe:  pipe,
		log:   zerolog.Nop(),
		now:   time.Now,
		state: StateAwaitingFirstInput,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current lifecycle position.
func (m *Machine) State() State { return m.state }

// Streaming reports the branch taken; meaningful once the first payload tick
// has been processed. Sticky across the terminal transition so the host can
// still tell the modes apart after the last tick.
func (m *Machine) Streaming() bool { return m.streaming }

// Release drops the engine handle if one is still open. Safe to call at any
// point; the host uses it to avoid leaking abandoned sessions.
func (m *Machine) Release() {
	if m.handle != nil {
		m.handle.Release()
		m.handle = nil
	}
	m.state = StateFinished
}

// Tick advances the machine by one scheduling step. Any returned error is
// fatal to the session; the handle has been released by the time Tick
// returns it.
func (m *Machine) Tick(ctx context.Context, t Tick) (TickResult, error) {
	switch m.state {
	case StateUninitialized:
		return TickResult{}, protocolError{msg: "machine not constructed via New"}
	case StateFinished:
		return TickResult{}, protocolError{msg: "tick after terminal state"}
	}

	// Ticks with no input from either channel are no-ops.
	if t.Payload == nil && !t.Loopback {
		return TickResult{}, nil
	}

	if t.Payload != nil {
		if err := m.openSession(t.Payload); err != nil {
			m.Release()
			return TickResult{}, err
		}
	}

	if m.req == nil || m.handle == nil || m.decoder == nil {
		m.Release()
		return TickResult{}, protocolError{msg: "continuation before request payload"}
	}

	if m.state == StateActiveUnary {
		return m.unaryTick(ctx)
	}
	return m.streamTick(ctx)
}

// openSession handles the first real tick: parse, derive config, open the
// engine handle, wake the scheduler, build the decoder.
func (m *Machine) openSession(payload []byte) error {
	if m.req != nil || m.handle != nil || m.decoder != nil {
		return protocolError{msg: "request payload received twice"}
	}
	m.created = m.now()

	req, err := openai.ParseRequest(payload)
	if err != nil {
		return invalidRequestError{msg: err.Error()}
	}
	prompt, ok := req.FirstContent()
	if !ok || prompt == "" {
		return invalidRequestError{msg: "invalid request: first message must carry non-empty content"}
	}
	if req.Stream {
		// Streaming yields one token of one candidate per tick; nothing
		// multi-candidate can be represented on that wire.
		if (req.N != nil && *req.N > 1) || (req.BestOf != nil && *req.BestOf > 1) {
			return unsupportedError{msg: "streaming supports only a single candidate (n=1, best_of=1)"}
		}
	}

	cfg := req.GenerationConfig()
	handle, err := m.pipe.AddRequest(prompt, cfg)
	if err != nil {
		return engineFailureError{msg: "engine rejected request", err: err}
	}
	// The engine scheduler may be idle-waiting; without this the request can
	// stall indefinitely.
	m.pipe.NotifyScheduler()

	m.req = req
	m.handle = handle
	m.decoder = NewDecoder(m.pipe.Tokenizer())
	m.streaming = req.Stream
	if req.Stream {
		m.state = StateActiveStreaming
	} else {
		m.state = StateActiveUnary
	}
	m.log.Debug().
		Str("model", req.ModelID()).
		Bool("stream", req.Stream).
		Msg("session opened")
	return nil
}

// unaryTick performs the single blocking read of the whole generation and
// serializes every candidate.
func (m *Machine) unaryTick(ctx context.Context) (TickResult, error) {
	outputs, err := m.handle.ReadAll(ctx)
	if err != nil {
		m.Release()
		return TickResult{}, engineFailureError{msg: "engine read failed", err: err}
	}
	if len(outputs) < 1 {
		m.Release()
		return TickResult{}, engineFailureError{msg: "engine returned no candidates"}
	}
	tok := m.pipe.Tokenizer()
	candidates := make([]string, 0, len(outputs))
	for _, out := range outputs {
		candidates = append(candidates, tok.Decode(out.TokenIDs))
	}
	body, err := openai.SerializeUnary(candidates, m.req.ModelID(), m.created)
	if err != nil {
		m.Release()
		return TickResult{}, engineFailureError{msg: "serialize response", err: err}
	}
	m.Release()
	m.log.Debug().Int("candidates", len(candidates)).Msg("unary session complete")
	return TickResult{Output: body, Done: true}, nil
}

// streamTick emits at most one chunk frame, or the final chunk plus [DONE]
// when the engine reports completion.
func (m *Machine) streamTick(ctx context.Context) (TickResult, error) {
	if m.handle.Status() == engine.StatusFinished {
		final, err := openai.SerializeStreamingChunk("", true, m.req.ModelID(), m.created)
		if err != nil {
			m.Release()
			return TickResult{}, engineFailureError{msg: "serialize final chunk", err: err}
		}
		out := append(openai.FrameSSE(final), openai.DoneSSE()...)
		m.Release()
		m.log.Debug().Msg("streaming session complete")
		return TickResult{Output: out, Done: true}, nil
	}

	outputs, err := m.handle.Read(ctx)
	if err != nil {
		m.Release()
		return TickResult{}, engineFailureError{msg: "engine read failed", err: err}
	}
	if len(outputs) != 1 {
		m.Release()
		return TickResult{}, unsupportedError{msg: "streaming supports only a single candidate"}
	}
	if len(outputs[0].TokenIDs) != 1 {
		m.Release()
		return TickResult{}, unsupportedError{msg: "streaming expects one token per step"}
	}

	res := TickResult{Continue: true}
	if chunk, ok := m.decoder.Put(outputs[0].TokenIDs[0]); ok {
		body, err := openai.SerializeStreamingChunk(chunk, false, m.req.ModelID(), m.created)
		if err != nil {
			m.Release()
			return TickResult{}, engineFailureError{msg: "serialize chunk", err: err}
		}
		res.Output = openai.FrameSSE(body)
	}
	return res, nil
}
