package main

import (
	"context"

	"go.uber.org/zap"

	"uhnw-graph/backend/internal/graph"
	"uhnw-graph/backend/pkg/config"
	"uhnw-graph/backend/pkg/logger"
)

// openStore returns the Neo4j repository, or a dry-run writer when
// configured. The returned close function is always safe to call.
func openStore(ctx context.Context, cfg *config.Config) (graph.Store, func(), error) {
	log := logger.Get()
	if cfg.DryRun {
		log.Info("Dry run: no writes will reach Neo4j")
		return graph.NewDryRunWriter(log), func() {}, nil
	}

	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		return nil, nil, err
	}
	repo := graph.NewRepository(driver, cfg.Neo4jDatabase).WithURI(cfg.Neo4jURI)
	log.Info("Connected to Neo4j", zap.String("uri", cfg.Neo4jURI))
	return repo, func() { _ = repo.Close() }, nil
}
