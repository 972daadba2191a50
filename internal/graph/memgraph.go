package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/joss/mplan/internal/logging"
)

// ErrUnavailable is returned when no connection could be established.
var ErrUnavailable = errors.New("graph database unavailable")

const pingTimeout = 2 * time.Second

// Memgraph implements Driver over the bolt protocol.
type Memgraph struct {
	driver neo4j.DriverWithContext
	config Config
}

// NewMemgraph creates a driver. No connection is made until the first
// query or Ping.
func NewMemgraph(cfg Config) (*Memgraph, error) {
	auth := neo4j.NoAuth()
	if cfg.Username != "" {
		auth = neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create driver for %s: %w", cfg.URI, err)
	}

	return &Memgraph{driver: driver, config: cfg}, nil
}

func (m *Memgraph) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return m.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: m.config.Database,
	})
}

// Execute runs a read query and collects every row.
func (m *Memgraph) Execute(ctx context.Context, query string, params map[string]any) ([]Record, error) {
	session := m.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var records []Record
	for result.Next(ctx) {
		rec := result.Record()
		record := make(Record, len(rec.Keys))
		for i, key := range rec.Keys {
			record[key] = rec.Values[i]
		}
		records = append(records, record)
	}

	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("result iteration failed: %w", err)
	}

	return records, nil
}

// ExecuteWrite runs a write query and drains its summary so errors surface.
func (m *Memgraph) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	session := m.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return fmt.Errorf("write query failed: %w", err)
	}
	if _, err := result.Consume(ctx); err != nil {
		return fmt.Errorf("write query failed: %w", err)
	}
	return nil
}

// Close releases the database driver.
func (m *Memgraph) Close() error {
	return m.driver.Close(context.Background())
}

// Ping checks database connectivity.
func (m *Memgraph) Ping(ctx context.Context) error {
	return m.driver.VerifyConnectivity(ctx)
}

// ConnectWithRetry connects and pings with exponential backoff (100ms,
// 200ms, 400ms...). After maxRetries failures it returns an error wrapping
// ErrUnavailable; callers plan without the graph in that case.
func ConnectWithRetry(ctx context.Context, cfg Config, maxRetries int, logger *logging.Logger) (*Memgraph, error) {
	if logger == nil {
		logger = logging.Discard()
	}
	maxRetries = max(maxRetries, 1)

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
			case <-time.After(time.Duration(100<<(attempt-1)) * time.Millisecond):
			}
		}

		mg, err := NewMemgraph(cfg)
		if err != nil {
			// A malformed URI will not get better with retries.
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}

		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = mg.Ping(pingCtx)
		cancel()
		if err == nil {
			logger.Debug("graph_connected", map[string]any{"uri": cfg.URI, "attempt": attempt + 1})
			return mg, nil
		}
		mg.Close()
		lastErr = err
		logger.Debug("graph_connect_retry", map[string]any{"uri": cfg.URI, "attempt": attempt + 1})
	}

	logger.Warn("graph_unavailable", map[string]any{"uri": cfg.URI, "attempts": maxRetries}, lastErr)
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, lastErr)
}

// IsConnectionError reports whether err looks like a network failure
// rather than a query error.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUnavailable) {
		return true
	}
	msg := err.Error()
	for _, needle := range []string{"connection refused", "connection reset", "no such host", "timeout", "EOF"} {
		if strings.Contains(msg, needle) {
			return true
		}
	}
	return false
}
