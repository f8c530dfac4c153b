// Package tools provides the MCP tool implementations for recall-engine.
package tools

import (
	"go.uber.org/zap"

	"github.com/recallkit/recall-engine/pkg/config"
	"github.com/recallkit/recall-engine/pkg/store"
)

// Deps contains shared dependencies for all tools.
type Deps struct {
	Config *config.Config
	Logger *zap.Logger

	// OpenStore opens a fresh store handle for one call. Tests substitute
	// this to point at a fixture database.
	OpenStore func() (*store.Store, error)
}

// NewDeps wires the default store opener from config.
func NewDeps(cfg *config.Config, logger *zap.Logger) *Deps {
	return &Deps{
		Config: cfg,
		Logger: logger,
		OpenStore: func() (*store.Store, error) {
			return store.Open(cfg.Store.Path, cfg.Store.Key, logger,
				store.WithLocation(cfg.Location()))
		},
	}
}
