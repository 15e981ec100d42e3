// Package enginetest provides in-memory fakes of the engine surface for
// tests: a scripted pipeline/handle pair and a table-driven tokenizer.
package enginetest

import (
	"context"
	"strings"
	"sync"

	"cbgate/internal/engine"
)

// Tokenizer decodes token ids through a fixed id->bytes table. Unknown ids
// decode to nothing. Safe for concurrent use; the table is never mutated
// after construction.
type Tokenizer struct {
	table map[int64]string
}

// NewTokenizer builds a tokenizer from an id->piece table. Pieces are raw
// byte strings, so a single UTF-8 character may be split across several ids.
func NewTokenizer(table map[int64]string) *Tokenizer {
	cp := make(map[int64]string, len(table))
	for id, piece := range table {
		cp[id] = piece
	}
	return &Tokenizer{table: cp}
}

// NewVocabTokenizer builds a tokenizer where token id i decodes to vocab[i].
func NewVocabTokenizer(vocab []string) *Tokenizer {
	table := make(map[int64]string, len(vocab))
	for i, piece := range vocab {
		table[int64(i)] = piece
	}
	return &Tokenizer{table: table}
}

// Decode concatenates the byte pieces and, like a real detokenizer, renders
// any invalid UTF-8 run as the replacement character.
func (t *Tokenizer) Decode(ids []int64) string {
	var b []byte
	for _, id := range ids {
		b = append(b, t.table[id]...)
	}
	return strings.ToValidUTF8(string(b), "�")
}

// Pipeline is a scripted engine.Pipeline. Each AddRequest hands out a handle
// over the configured candidate token sequences.
type Pipeline struct {
	mu sync.Mutex

	tok engine.Tokenizer
	// Candidates holds the full token sequence per candidate for the next
	// handle. Streaming tests use a single candidate.
	Candidates [][]int64
	// AddErr, when set, fails AddRequest.
	AddErr error
	// ReadBatch forces Read to return this many tokens per call instead of
	// one, for exercising the unsupported-shape guards.
	ReadBatch int

	// Recorded interactions.
	Prompts  []string
	Configs  []engine.GenerationConfig
	Notifies int
	Handles  []*Handle
}

// NewPipeline builds a pipeline producing the given candidate sequences.
func NewPipeline(tok engine.Tokenizer, candidates ...[]int64) *Pipeline {
	return &Pipeline{tok: tok, Candidates: candidates}
}

func (p *Pipeline) AddRequest(prompt string, cfg engine.GenerationConfig) (engine.GenerationHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.AddErr != nil {
		return nil, p.AddErr
	}
	p.Prompts = append(p.Prompts, prompt)
	p.Configs = append(p.Configs, cfg)
	h := &Handle{candidates: p.Candidates, readBatch: p.ReadBatch}
	p.Handles = append(p.Handles, h)
	return h, nil
}

func (p *Pipeline) NotifyScheduler() {
	p.mu.Lock()
	p.Notifies++
	p.mu.Unlock()
}

func (p *Pipeline) Tokenizer() engine.Tokenizer { return p.tok }

// Handle replays scripted candidate sequences. Read pops from the first
// candidate one token at a time; ReadAll returns everything at once.
type Handle struct {
	mu         sync.Mutex
	candidates [][]int64
	pos        int
	readBatch  int

	Released bool
	ReadAllN int
}

func (h *Handle) ReadAll(ctx context.Context) ([]engine.GenerationOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ReadAllN++
	out := make([]engine.GenerationOutput, 0, len(h.candidates))
	for _, c := range h.candidates {
		out = append(out, engine.GenerationOutput{TokenIDs: append([]int64(nil), c...)})
	}
	h.pos = len(h.first())
	return out, nil
}

func (h *Handle) Read(ctx context.Context) ([]engine.GenerationOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.readBatch
	if n <= 0 {
		n = 1
	}
	first := h.first()
	if h.pos+n > len(first) {
		n = len(first) - h.pos
	}
	outs := make([]engine.GenerationOutput, 0, len(h.candidates))
	for _, c := range h.candidates {
		end := h.pos + n
		if end > len(c) {
			end = len(c)
		}
		outs = append(outs, engine.GenerationOutput{TokenIDs: append([]int64(nil), c[h.pos:end]...)})
	}
	h.pos += n
	return outs, nil
}

func (h *Handle) Status() engine.GenerationStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pos >= len(h.first()) {
		return engine.StatusFinished
	}
	return engine.StatusRunning
}

func (h *Handle) Release() {
	h.mu.Lock()
	h.Released = true
	h.mu.Unlock()
}

func (h *Handle) first() []int64 {
	if len(h.candidates) == 0 {
		return nil
	}
	return h.candidates[0]
}
