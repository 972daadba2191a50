package store

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/mplan/internal/planning"
)

func TestFilter_WithMethods(t *testing.T) {
	f := DefaultFilter()
	if f.Limit != 20 {
		t.Errorf("DefaultFilter().Limit = %d, want 20", f.Limit)
	}

	f2 := f.WithLimit(5).WithRepository("billing")
	if f2.Limit != 5 || f2.Repository != "billing" {
		t.Errorf("unexpected filter %+v", f2)
	}
	if f.Limit != 20 || f.Repository != "" {
		t.Error("original filter was mutated")
	}
}

func TestNotFoundError(t *testing.T) {
	err := NewNotFoundError("plan", "01ABC")
	if !errors.Is(err, ErrNotFound) {
		t.Error("NotFoundError should unwrap to ErrNotFound")
	}
	if !IsNotFound(err) {
		t.Error("IsNotFound returned false")
	}
	if err.Error() != "plan not found: 01ABC" {
		t.Errorf("Error() = %q", err.Error())
	}
	if IsNotFound(ErrClosed) {
		t.Error("ErrClosed is not a not-found error")
	}
}

func openTemp(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "history", "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

type stubFacts struct{}

func (stubFacts) DependencyEdges(context.Context, []string) ([]planning.RawRecord, error) {
	return []planning.RawRecord{{"from_repo": "a", "to_repo": "b", "weight": 2}}, nil
}

func (stubFacts) SharedArtifacts(context.Context, []string) ([]planning.RawRecord, error) {
	return nil, nil
}

func (stubFacts) CategoryCount(context.Context, planning.Category, []string) (int, error) {
	return 1, nil
}

func buildPlan(t *testing.T, repos ...string) *planning.Plan {
	t.Helper()
	plan, err := planning.NewEngine(stubFacts{}).Build(context.Background(), repos)
	require.NoError(t, err)
	return plan
}

func TestSQLite_SaveAndGet(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	plan := buildPlan(t, "a", "b", "c")

	rec, err := s.Save(ctx, plan)
	require.NoError(t, err)
	assert.Len(t, rec.ID, 26)
	assert.Equal(t, []string{"a", "b", "c"}, rec.Repositories)
	assert.Equal(t, 2, rec.Slices)
	assert.Equal(t, 2.0, rec.CouplingIndex)

	got, err := s.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, rec.Repositories, got.Repositories)
	assert.True(t, rec.CreatedAt.Equal(got.CreatedAt))

	want, _ := json.Marshal(plan)
	have, _ := json.Marshal(got.Plan)
	assert.JSONEq(t, string(want), string(have))
}

func TestSQLite_GetErrors(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	_, err := s.Get(ctx, "not-a-ulid")
	assert.ErrorIs(t, err, ErrInvalidID)

	_, err = s.Get(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	var nf *NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "plan", nf.Kind)
	assert.Equal(t, "01HZZZZZZZZZZZZZZZZZZZZZZZ", nf.ID)
}

func TestSQLite_ListNewestFirst(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	first, err := s.Save(ctx, buildPlan(t, "a", "b"))
	require.NoError(t, err)
	second, err := s.Save(ctx, buildPlan(t, "billing"))
	require.NoError(t, err)
	third, err := s.Save(ctx, buildPlan(t, "a", "billing"))
	require.NoError(t, err)

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{third.ID, second.ID, first.ID}, []string{all[0].ID, all[1].ID, all[2].ID})
	assert.Nil(t, all[0].Plan, "list omits plan bodies")

	limited, err := s.List(ctx, DefaultFilter().WithLimit(1))
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, third.ID, limited[0].ID)

	billing, err := s.List(ctx, Filter{Repository: "billing"})
	require.NoError(t, err)
	require.Len(t, billing, 2)
	assert.Equal(t, third.ID, billing[0].ID)
	assert.Equal(t, second.ID, billing[1].ID)
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)
	rec, err := s.Save(context.Background(), buildPlan(t, "a"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, got.Repositories)
}

func TestSQLite_Closed(t *testing.T) {
	s := openTemp(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "double close is a no-op")

	ctx := context.Background()
	_, err := s.Save(ctx, buildPlan(t, "a"))
	assert.ErrorIs(t, err, ErrClosed)
	_, err = s.List(ctx, DefaultFilter())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, s.Ping(ctx), ErrClosed)
}

func TestSQLite_ConcurrentSaves(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	plan := buildPlan(t, "a", "b")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Save(ctx, plan)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 8)
}
