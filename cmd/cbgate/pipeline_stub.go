package main

import (
	"github.com/rs/zerolog"

	"cbgate/internal/config"
	"cbgate/internal/engine"
)

// buildPipeline returns the engine backend to serve completions with. The
// open-source build links no backend, so the daemon runs in degraded mode:
// model listing and health endpoints work, completions return 503. Deployments
// swap this file for one that constructs their continuous-batching pipeline
// binding.
func buildPipeline(cfg config.Config, log zerolog.Logger) (engine.Pipeline, error) {
	return nil, nil
}
