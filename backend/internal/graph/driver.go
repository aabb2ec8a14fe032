package graph

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	apperrors "uhnw-graph/backend/pkg/errors"
)

// Connect opens a driver and verifies the server is reachable.
func Connect(ctx context.Context, uri, user, password string) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, apperrors.NewGraphConnectionFailed(uri, err)
	}
	return driver, nil
}
