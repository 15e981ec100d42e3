package gateway

import (
	"testing"

	"cbgate/internal/engine/enginetest"
)

func TestModelsReturnsCopy(t *testing.T) {
	g := New(Config{ModelIDs: []string{"a", "b"}})
	out := g.Models()
	if len(out) != 2 || out[0].ID != "a" || out[0].Object != "model" {
		t.Fatalf("models=%+v", out)
	}
	// mutate returned slice and ensure the internal list remains intact
	out[0].ID = "z"
	if g.Models()[0].ID != "a" {
		t.Fatalf("model list mutated via returned slice")
	}
}

func TestReadyReflectsPipeline(t *testing.T) {
	if New(Config{}).Ready() {
		t.Fatalf("gateway without a pipeline must not be ready")
	}
	pipe := enginetest.NewPipeline(enginetest.NewVocabTokenizer(nil))
	if !New(Config{Pipeline: pipe}).Ready() {
		t.Fatalf("gateway with a pipeline must be ready")
	}
}

func TestNewSession(t *testing.T) {
	pipe := enginetest.NewPipeline(enginetest.NewVocabTokenizer(nil))
	g := New(Config{Pipeline: pipe})
	if _, err := g.NewSession(); err != nil {
		t.Fatalf("new session: %v", err)
	}
	if _, err := New(Config{}).NewSession(); err == nil {
		t.Fatalf("expected error without a pipeline")
	}
}
