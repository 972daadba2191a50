// Package graph is the graph database layer behind the fact queries.
// Consumers depend on the narrow reader/writer interfaces, not on Memgraph.
package graph

import (
	"context"
)

// Record is a single result row keyed by the RETURN aliases.
type Record map[string]any

// GraphReader runs read-only Cypher.
type GraphReader interface {
	Execute(ctx context.Context, query string, params map[string]any) ([]Record, error)
}

// GraphWriter runs write Cypher (CREATE, MERGE, SET, DELETE).
type GraphWriter interface {
	ExecuteWrite(ctx context.Context, query string, params map[string]any) error
}

// Driver is a full graph connection. Memgraph and Neo4j both satisfy it
// through the bolt protocol.
type Driver interface {
	GraphReader
	GraphWriter

	// Close releases database resources.
	Close() error

	// Ping checks if the database is reachable.
	Ping(ctx context.Context) error
}

// Config holds database connection settings. It is filled from
// internal/config; the zero Database selects the server default.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}
