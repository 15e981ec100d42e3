// Package gateway wires the engine pipeline to the HTTP layer: it owns the
// served model list and hands out one session machine per request.
package gateway

import (
	"github.com/rs/zerolog"

	"cbgate/internal/engine"
	"cbgate/internal/session"
	"cbgate/pkg/types"
)

// Gateway is the service behind the HTTP API. The pipeline is injected at
// construction; a gateway without one answers model/health endpoints but
// fails completions with an unavailability error.
type Gateway struct {
	pipe   engine.Pipeline
	models []types.Model
	log    zerolog.Logger
}

// Config captures gateway construction parameters.
type Config struct {
	// Pipeline is the engine backend. May be nil when the daemon runs
	// without an attached engine.
	Pipeline engine.Pipeline
	// ModelIDs are the identifiers advertised on /v1/models.
	ModelIDs []string
	Logger   zerolog.Logger
}

// New builds a gateway.
func New(cfg Config) *Gateway {
	models := make([]types.Model, 0, len(cfg.ModelIDs))
	for _, id := range cfg.ModelIDs {
		models = append(models, types.Model{ID: id, Object: "model", OwnedBy: "cbgate"})
	}
	return &Gateway{pipe: cfg.Pipeline, models: models, log: cfg.Logger}
}

// Models returns a copy of the served model list.
func (g *Gateway) Models() []types.Model {
	return append([]types.Model(nil), g.models...)
}

// Ready reports whether an engine pipeline is attached.
func (g *Gateway) Ready() bool { return g.pipe != nil }

// NewSession builds a session machine for one request. Fails when no engine
// is attached.
func (g *Gateway) NewSession() (*session.Machine, error) {
	return session.New(g.pipe, session.WithLogger(g.log))
}
