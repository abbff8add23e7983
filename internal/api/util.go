package api

import (
	"github.com/google/uuid"

	"github.com/amp-memory/amp/internal/config"
)

// genTraceID mints an opaque per-query trace identifier for /query responses.
func genTraceID() string {
	return uuid.NewString()
}

func toRetrievalWeights(w weightsRequest) config.RetrievalConfig {
	return config.RetrievalConfig{
		TextWeight:   w.Text,
		VectorWeight: w.Vector,
		GraphWeight:  w.Graph,
	}
}
