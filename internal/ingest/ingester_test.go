package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/mplan/internal/facts"
)

type write struct {
	query  string
	params map[string]any
}

// recordingWriter captures writes and fails those containing failOn.
type recordingWriter struct {
	writes []write
	failOn string
}

func (w *recordingWriter) ExecuteWrite(ctx context.Context, query string, params map[string]any) error {
	if w.failOn != "" && strings.Contains(query, w.failOn) {
		return errors.New("constraint violation")
	}
	w.writes = append(w.writes, write{query: query, params: params})
	return nil
}

func (w *recordingWriter) matching(substr string) []write {
	var out []write
	for _, wr := range w.writes {
		if strings.Contains(wr.query, substr) {
			out = append(out, wr)
		}
	}
	return out
}

func loadShop(t *testing.T) *facts.Bundle {
	t.Helper()
	b, err := facts.Load(filepath.Join("..", "facts", "testdata", "shop.yaml"))
	require.NoError(t, err)
	return b
}

func TestIngest_WritesEveryFact(t *testing.T) {
	w := &recordingWriter{}
	stats, err := NewIngester(w, nil).Ingest(context.Background(), loadShop(t))
	require.NoError(t, err)

	assert.Equal(t, &Stats{Repositories: 5, Dependencies: 3, Artifacts: 2, Components: 9, Entities: 3}, stats)

	deps := w.matching("DEPENDS_ON")
	require.Len(t, deps, 3)
	assert.Equal(t, "checkout", deps[1].params["from"])
	assert.Equal(t, 2.0, deps[1].params["weight"])
	assert.Equal(t, []string{"grpc", "events"}, deps[1].params["types"])

	repos := w.matching("SET r.indexed")
	require.Len(t, repos, 5)
	assert.Equal(t, true, repos[0].params["indexed"])
	assert.Equal(t, 3.0, repos[0].params["cyclomatic"])
	assert.NotContains(t, repos[2].params, "cyclomatic", "billing has no complexity value")

	components := w.matching(":Component")
	assert.Equal(t, "billing/services", components[0].params["key"])
	assert.Equal(t, 5, components[0].params["count"])

	entities := w.matching(":Entity")
	require.Len(t, entities, 3)
	assert.Equal(t, "checkout/order", entities[0].params["key"])
	assert.Len(t, entities[0].params["fields"], 2)
}

func TestIngest_EntityWithoutRepoLinksEverywhere(t *testing.T) {
	b := &facts.Bundle{
		Repositories: []string{"a", "b"},
		Entities:     []facts.EntityFact{{Name: "audit_event"}},
	}
	w := &recordingWriter{}
	stats, err := NewIngester(w, nil).Ingest(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Entities)
}

func TestIngest_ContinuesPastFailures(t *testing.T) {
	w := &recordingWriter{failOn: "REFERENCES"}
	stats, err := NewIngester(w, nil).Ingest(context.Background(), loadShop(t))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 graph writes failed")
	assert.Equal(t, 2, stats.Errors)
	assert.Equal(t, 0, stats.Artifacts)
	assert.Equal(t, 3, stats.Dependencies, "later writes still happen")
}
