package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"uhnw-graph/backend/internal/graph"
	"uhnw-graph/backend/pkg/config"
	"uhnw-graph/backend/pkg/logger"
)

const schemaVersion = "uhnw_schema_v1"

func main() {
	reset := flag.Bool("reset", false, "delete every Person and Company node and the local state files first")
	force := flag.Bool("force", false, "re-apply the schema even if it is marked as applied")
	flag.Parse()

	// Initialize logger
	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	log.Info("Starting schema migration...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	ctx := context.Background()
	driver, err := graph.Connect(ctx, cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword)
	if err != nil {
		log.Fatal("Failed to connect to Neo4j", zap.Error(err))
	}
	repo := graph.NewRepository(driver, cfg.Neo4jDatabase).WithURI(cfg.Neo4jURI)
	defer repo.Close()

	if *reset {
		if err := deleteLoaderData(ctx, driver, cfg.Neo4jDatabase, log); err != nil {
			log.Fatal("Failed to reset graph", zap.Error(err))
		}
		for _, path := range []string{cfg.StateFile, cfg.DataFile} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				log.Fatal("Failed to remove state file", zap.String("path", path), zap.Error(err))
			}
			log.Info("State file removed", zap.String("path", path))
		}
	}

	applied, err := checkMigrationApplied(ctx, driver, cfg.Neo4jDatabase)
	if err != nil {
		log.Warn("Could not read migration marker", zap.Error(err))
	}
	if applied && !*force && !*reset {
		log.Info("Schema already applied, use -force to re-apply", zap.String("version", schemaVersion))
		return
	}

	if err := repo.EnsureSchema(ctx); err != nil {
		log.Fatal("Failed to apply schema", zap.Error(err))
	}
	if err := markMigrationApplied(ctx, driver, cfg.Neo4jDatabase); err != nil {
		log.Fatal("Failed to mark migration as applied", zap.Error(err))
	}

	log.Info("Schema migration completed", zap.String("version", schemaVersion))
}

func checkMigrationApplied(ctx context.Context, driver neo4j.DriverWithContext, database string) (bool, error) {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead, DatabaseName: database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (m:Migration {version: $version})
		RETURN m.applied_at AS applied_at
	`, map[string]interface{}{"version": schemaVersion})
	if err != nil {
		return false, err
	}
	return result.Next(ctx), nil
}

func markMigrationApplied(ctx context.Context, driver neo4j.DriverWithContext, database string) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: database})
	defer session.Close(ctx)

	_, err := session.Run(ctx, `
		MERGE (m:Migration {version: $version})
		SET m.applied_at = datetime(),
		    m.description = 'Person/Company uniqueness constraints and lookup indexes'
	`, map[string]interface{}{"version": schemaVersion})
	return err
}

// deleteLoaderData removes the nodes this loader owns. Other labels in the
// database are left alone.
func deleteLoaderData(ctx context.Context, driver neo4j.DriverWithContext, database string, log *zap.Logger) error {
	session := driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite, DatabaseName: database})
	defer session.Close(ctx)

	result, err := session.Run(ctx, `
		MATCH (n)
		WHERE n:Person OR n:Company OR n:Migration
		DETACH DELETE n
	`, nil)
	if err != nil {
		return fmt.Errorf("failed to delete loader data: %w", err)
	}
	summary, err := result.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete loader data: %w", err)
	}

	log.Info("Loader nodes deleted", zap.Int("nodes", summary.Counters().NodesDeleted()))
	return nil
}
