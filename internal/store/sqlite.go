package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"

	"github.com/joss/mplan/internal/planning"
)

// SQLite is a PlanStore backed by a sqlite file.
type SQLite struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
	now    func() time.Time
}

var _ PlanStore = (*SQLite)(nil)

// OpenSQLite opens (creating if needed) the history database at path.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; sqlite serialises writes anyway.
	db.SetMaxOpenConns(1)

	s := &SQLite{db: db, path: path, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		created_at DATETIME NOT NULL,
		repositories_json TEXT NOT NULL,
		slice_count INTEGER NOT NULL,
		coupling_index REAL NOT NULL,
		risk_score REAL NOT NULL,
		effort_score REAL NOT NULL,
		degraded INTEGER NOT NULL DEFAULT 0,
		plan_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_created ON plans(created_at DESC);

	CREATE TABLE IF NOT EXISTS plan_repositories (
		plan_id TEXT NOT NULL,
		repository TEXT NOT NULL,
		PRIMARY KEY (plan_id, repository),
		FOREIGN KEY (plan_id) REFERENCES plans(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_plan_repositories_repo ON plan_repositories(repository);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLite) Path() string {
	return s.path
}

// Save stores plan under a new ULID.
func (s *SQLite) Save(ctx context.Context, plan *planning.Plan) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rec := &Record{
		ID:            ulid.Make().String(),
		CreatedAt:     s.now().UTC(),
		Repositories:  plan.Scope.Repositories,
		Slices:        len(plan.Slices.Items),
		CouplingIndex: plan.Summary.Complexity.CouplingIndex,
		RiskScore:     plan.Summary.RiskScore,
		EffortScore:   plan.Summary.EffortScore,
		Degraded:      len(plan.Diagnostics.Degraded),
		Plan:          plan,
	}
	reposJSON, err := json.Marshal(rec.Repositories)
	if err != nil {
		return nil, fmt.Errorf("encode repositories: %w", err)
	}
	planJSON, err := json.Marshal(plan)
	if err != nil {
		return nil, fmt.Errorf("encode plan: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans (id, created_at, repositories_json, slice_count, coupling_index, risk_score, effort_score, degraded, plan_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.CreatedAt, string(reposJSON), rec.Slices, rec.CouplingIndex, rec.RiskScore, rec.EffortScore, rec.Degraded, string(planJSON))
	if err != nil {
		return nil, fmt.Errorf("insert plan: %w", err)
	}
	for _, repo := range rec.Repositories {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO plan_repositories (plan_id, repository) VALUES (?, ?)`, rec.ID, repo); err != nil {
			return nil, fmt.Errorf("insert plan repository: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// Get loads a saved plan with its full body.
func (s *SQLite) Get(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	if _, err := ulid.ParseStrict(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, repositories_json, slice_count, coupling_index, risk_score, effort_score, degraded, plan_json
		FROM plans WHERE id = ?
	`, strings.ToUpper(id))

	var planJSON string
	rec, err := scanRecord(row, &planJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, NewNotFoundError("plan", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get plan: %w", err)
	}

	var plan planning.Plan
	if err := json.Unmarshal([]byte(planJSON), &plan); err != nil {
		return nil, fmt.Errorf("decode plan %s: %w", id, err)
	}
	rec.Plan = &plan
	return rec, nil
}

// List returns saved plans, newest first, without their bodies.
func (s *SQLite) List(ctx context.Context, filter Filter) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	query := `
		SELECT p.id, p.created_at, p.repositories_json, p.slice_count, p.coupling_index, p.risk_score, p.effort_score, p.degraded, ''
		FROM plans p`
	var args []any
	if filter.Repository != "" {
		query += ` JOIN plan_repositories pr ON pr.plan_id = p.id WHERE pr.repository = ?`
		args = append(args, filter.Repository)
	}
	query += ` ORDER BY p.id DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		var ignored string
		rec, err := scanRecord(rows, &ignored)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return s.db.PingContext(ctx)
}

// Close releases the database. Further calls return ErrClosed.
func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner, planJSON *string) (*Record, error) {
	var rec Record
	var reposJSON string
	if err := row.Scan(&rec.ID, &rec.CreatedAt, &reposJSON, &rec.Slices, &rec.CouplingIndex,
		&rec.RiskScore, &rec.EffortScore, &rec.Degraded, planJSON); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(reposJSON), &rec.Repositories); err != nil {
		return nil, fmt.Errorf("decode repositories: %w", err)
	}
	return &rec, nil
}
