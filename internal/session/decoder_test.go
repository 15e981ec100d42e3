package session

import (
	"strings"
	"testing"

	"cbgate/internal/engine/enginetest"
)

// drive feeds ids through a decoder and returns the emitted chunks in order.
func drive(d *Decoder, ids []int64) []string {
	var chunks []string
	for _, id := range ids {
		if chunk, ok := d.Put(id); ok {
			chunks = append(chunks, chunk)
		}
	}
	return chunks
}

func TestDecoder_FlushOnSpace(t *testing.T) {
	tok := enginetest.NewVocabTokenizer([]string{"Hello", ",", " world", "!"})
	d := NewDecoder(tok)

	if _, ok := d.Put(0); ok {
		t.Fatalf("no chunk expected mid-word")
	}
	if _, ok := d.Put(1); ok {
		t.Fatalf("no chunk expected without a boundary")
	}
	chunk, ok := d.Put(2)
	if !ok || chunk != "Hello, world" {
		t.Fatalf("chunk=%q ok=%v", chunk, ok)
	}
	// Watermark advanced; the trailing "!" stays pending.
	if _, ok := d.Put(3); ok {
		t.Fatalf("no chunk expected for pending word")
	}
	if p := d.Pending(); p != "!" {
		t.Fatalf("pending=%q", p)
	}
}

func TestDecoder_FlushOnNewlineResetsCache(t *testing.T) {
	tok := enginetest.NewVocabTokenizer([]string{"one two", " three\n", "four"})
	d := NewDecoder(tok)

	chunk, ok := d.Put(0)
	if !ok || chunk != "one two" {
		t.Fatalf("chunk=%q ok=%v", chunk, ok)
	}
	chunk, ok = d.Put(1)
	if !ok || chunk != " three\n" {
		t.Fatalf("chunk=%q ok=%v", chunk, ok)
	}
	// After a newline flush the cache restarts from scratch.
	if _, ok := d.Put(2); ok {
		t.Fatalf("no chunk expected for fresh word")
	}
	if p := d.Pending(); p != "four" {
		t.Fatalf("pending=%q", p)
	}
}

func TestDecoder_HoldsIncompleteMultiByteRune(t *testing.T) {
	// "é" is 0xC3 0xA9, split across two tokens.
	tok := enginetest.NewTokenizer(map[int64]string{
		0: "caf",
		1: "\xc3",
		2: "\xa9",
		3: " noir\n",
	})
	d := NewDecoder(tok)

	if _, ok := d.Put(0); ok {
		t.Fatalf("no chunk expected mid-word")
	}
	// Tail decodes to the replacement character: must hold.
	if _, ok := d.Put(1); ok {
		t.Fatalf("chunk emitted while a rune is incomplete")
	}
	if _, ok := d.Put(2); ok {
		t.Fatalf("no boundary yet after rune completes")
	}
	chunk, ok := d.Put(3)
	if !ok || chunk != "café noir\n" {
		t.Fatalf("chunk=%q ok=%v", chunk, ok)
	}
}

func TestDecoder_ThreeByteRuneSplitAcrossTokens(t *testing.T) {
	// "€" is 0xE2 0x82 0xAC over three tokens.
	tok := enginetest.NewTokenizer(map[int64]string{
		0: "price ",
		1: "\xe2",
		2: "\x82",
		3: "\xac",
		4: " only\n",
	})
	d := NewDecoder(tok)
	chunks := drive(d, []int64{0, 1, 2, 3, 4})
	got := strings.Join(chunks, "")
	if got != "price € only\n" {
		t.Fatalf("reassembled=%q", got)
	}
	for _, c := range chunks {
		if strings.ContainsRune(c, '�') {
			t.Fatalf("chunk %q contains a replacement character", c)
		}
	}
}

func TestDecoder_ConcatenationProperty(t *testing.T) {
	tok := enginetest.NewVocabTokenizer([]string{
		"The", " quick", " brown", " fox\n", "jum", "ps", " over", " the", " la", "zy",
	})
	seqs := [][]int64{
		{0, 1, 2, 3},
		{4, 5, 6, 7, 8, 9},
		{0, 3, 0, 3},
		{4, 5},
	}
	for _, ids := range seqs {
		d := NewDecoder(tok)
		var emitted strings.Builder
		for _, id := range ids {
			if chunk, ok := d.Put(id); ok {
				emitted.WriteString(chunk)
			}
		}
		full := decodeAll(tok, ids)
		if emitted.String()+d.Pending() != full {
			t.Fatalf("seq %v: emitted %q + pending %q != full %q",
				ids, emitted.String(), d.Pending(), full)
		}
	}
}

func decodeAll(tok *enginetest.Tokenizer, ids []int64) string {
	// Line flushes reset the cache, so the full text is the concatenation of
	// per-line decodes.
	var b strings.Builder
	var cur []int64
	for _, id := range ids {
		cur = append(cur, id)
		if text := tok.Decode(cur); len(text) > 0 && text[len(text)-1] == '\n' {
			b.WriteString(text)
			cur = cur[:0]
		}
	}
	if len(cur) > 0 {
		b.WriteString(tok.Decode(cur))
	}
	return b.String()
}

func TestDecoder_AtMostOneChunkPerPut(t *testing.T) {
	tok := enginetest.NewVocabTokenizer([]string{"a b c d ", "e\n"})
	d := NewDecoder(tok)
	if chunk, ok := d.Put(0); !ok || chunk != "a b c d " {
		t.Fatalf("chunk=%q ok=%v", chunk, ok)
	}
	if chunk, ok := d.Put(1); !ok || chunk != "e\n" {
		t.Fatalf("chunk=%q ok=%v", chunk, ok)
	}
}

func TestDecoder_EmptyDecodeEmitsNothing(t *testing.T) {
	tok := enginetest.NewTokenizer(map[int64]string{0: ""})
	d := NewDecoder(tok)
	if _, ok := d.Put(0); ok {
		t.Fatalf("empty decode must not emit")
	}
}
