// Package session holds the per-request controller: the tick-driven state
// machine bridging parsed requests to the engine, and the incremental decoder
// that turns its token stream into flushable text chunks.
package session

import (
	"strings"

	"cbgate/internal/engine"
)

// incompleteRune is what the tokenizer emits for a multi-byte character whose
// continuation tokens have not arrived yet.
const incompleteRune = "�"

// Decoder accumulates token ids and releases text only at safe boundaries:
// never inside a multi-byte character and never in the middle of a word.
// The whole cache is re-decoded on every Put because adjacent tokens can
// combine into characters no single token decodes to alone. Owned by exactly
// one session; not safe for concurrent use.
type Decoder struct {
	tok     engine.Tokenizer
	cache   []int64
	flushed int // byte watermark into the decode of cache
}

// NewDecoder binds a decoder to the session's tokenizer.
func NewDecoder(tok engine.Tokenizer) *Decoder {
	return &Decoder{tok: tok}
}

// Put appends one token and returns a text chunk when a safe boundary is
// reached. At most one chunk is produced per call.
func (d *Decoder) Put(id int64) (string, bool) {
	d.cache = append(d.cache, id)
	text := d.tok.Decode(d.cache)

	switch {
	case len(text) > 0 && text[len(text)-1] == '\n':
		// Line complete: flush everything past the watermark and start a
		// fresh cache.
		chunk := text[d.flushed:]
		d.cache = d.cache[:0]
		d.flushed = 0
		return chunk, true
	case strings.HasSuffix(text, incompleteRune):
		// A partial multi-byte character sits at the tail; wait for the
		// token that completes it.
		return "", false
	case len(text) > d.flushed && strings.IndexByte(text[d.flushed:], ' ') >= 0:
		// At least one full word since the last flush: advance the
		// watermark but keep the cache, later tokens may still merge with
		// earlier ones.
		chunk := text[d.flushed:]
		d.flushed = len(text)
		return chunk, true
	default:
		return "", false
	}
}

// Pending returns the text accumulated past the watermark that has not been
// released yet.
func (d *Decoder) Pending() string {
	if len(d.cache) == 0 {
		return ""
	}
	text := d.tok.Decode(d.cache)
	if len(text) <= d.flushed {
		return ""
	}
	return text[d.flushed:]
}
