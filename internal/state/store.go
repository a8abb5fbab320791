// Package state persists score runs in SQLite so that later runs can be
// compared with earlier ones.
package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/leapstack-labs/modaryn/pkg/core"

	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// ErrNoRuns is returned when the store holds no saved run.
var ErrNoRuns = errors.New("no saved runs")

// timeLayout keeps stored timestamps lexically ordered.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Run is one saved analysis.
type Run struct {
	ID         string               `json:"id"`
	CreatedAt  time.Time            `json:"created_at"`
	Project    string               `json:"project"`
	Dialect    string               `json:"dialect"`
	ModelCount int                  `json:"model_count"`
	Statistics core.ScoreStatistics `json:"statistics"`
}

// ModelScore is the score of one model in one run.
type ModelScore struct {
	RunID                 string             `json:"run_id"`
	RunAt                 time.Time          `json:"run_at"`
	ModelID               string             `json:"model_id"`
	Name                  string             `json:"name"`
	RawScore              float64            `json:"raw_score"`
	Score                 float64            `json:"score"`
	QualityScore          float64            `json:"quality_score"`
	Complexity            core.SQLComplexity `json:"complexity"`
	DownstreamModelCount  int                `json:"downstream_model_count"`
	DownstreamColumnCount int                `json:"downstream_column_count"`
}

// Edge is a saved column lineage edge.
type Edge struct {
	Source core.ColumnReference `json:"source"`
	Target core.ColumnReference `json:"target"`
}

// SQLiteStore is the SQLite backed run store.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for an in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// every pooled connection would get its own empty database
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the database path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// SaveRun stores the scores and column edges of a scored project as a new
// run.
func (s *SQLiteStore) SaveRun(ctx context.Context, p *core.Project, dialect string) (*Run, error) {
	run := &Run{
		ID:         uuid.New().String(),
		CreatedAt:  time.Now().UTC(),
		Project:    p.Name,
		Dialect:    dialect,
		ModelCount: len(p.Models),
	}
	if p.Statistics != nil {
		run.Statistics = *p.Statistics
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, project, dialect, model_count, mean, median, std_dev, zscore_applied)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.CreatedAt.Format(timeLayout), run.Project, run.Dialect, run.ModelCount,
		run.Statistics.Mean, run.Statistics.Median, run.Statistics.StdDev, run.Statistics.ZScoreApplied,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	scoreStmt, err := tx.PrepareContext(ctx,
		`INSERT INTO model_scores (run_id, model_id, name, raw_score, score, quality_score,
		   join_count, cte_count, conditional_count, where_count, sql_char_count,
		   downstream_model_count, downstream_column_count)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare score insert: %w", err)
	}
	defer func() { _ = scoreStmt.Close() }()

	edgeStmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO column_edges (run_id, source_model, source_column, target_model, target_column)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare edge insert: %w", err)
	}
	defer func() { _ = edgeStmt.Close() }()

	edges := 0
	for _, id := range p.ModelIDs() {
		m := p.Models[id]
		var c core.SQLComplexity
		if m.Complexity != nil {
			c = *m.Complexity
		}
		_, err := scoreStmt.ExecContext(ctx,
			run.ID, m.UniqueID, m.Name, m.RawScore, m.Score, m.QualityScore,
			c.JoinCount, c.CTECount, c.ConditionalCount, c.WhereCount, c.SQLCharCount,
			m.DownstreamModelCount(), m.DownstreamColumnCount(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to insert score for %s: %w", id, err)
		}

		for _, name := range m.ColumnNames() {
			for _, up := range m.Columns[name].Upstream {
				if _, err := edgeStmt.ExecContext(ctx, run.ID, up.ModelUniqueID, up.ColumnName, id, name); err != nil {
					return nil, fmt.Errorf("failed to insert edge for %s.%s: %w", id, name, err)
				}
				edges++
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	s.logger.Debug("saved run", "id", run.ID, "models", run.ModelCount, "edges", edges)
	return run, nil
}

const runColumns = `id, created_at, project, dialect, model_count, mean, median, std_dev, zscore_applied`

// LatestRun returns the most recent run, or ErrNoRuns.
func (s *SQLiteStore) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}
	return runs[0], nil
}

// ListRuns returns up to limit runs, newest first. limit <= 0 means all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a run by id.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var (
		run       Run
		createdAt string
	)
	err := row.Scan(&run.ID, &createdAt, &run.Project, &run.Dialect, &run.ModelCount,
		&run.Statistics.Mean, &run.Statistics.Median, &run.Statistics.StdDev, &run.Statistics.ZScoreApplied)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan run: %w", err)
	}
	run.CreatedAt, err = time.Parse(timeLayout, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid run timestamp %q: %w", createdAt, err)
	}
	return &run, nil
}

const scoreColumns = `s.run_id, r.created_at, s.model_id, s.name, s.raw_score, s.score, s.quality_score,
	s.join_count, s.cte_count, s.conditional_count, s.where_count, s.sql_char_count,
	s.downstream_model_count, s.downstream_column_count`

// RunScores returns the model scores of a run keyed by model id.
func (s *SQLiteStore) RunScores(ctx context.Context, runID string) (map[string]*ModelScore, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scoreColumns+` FROM model_scores s JOIN runs r ON r.id = s.run_id WHERE s.run_id = ?`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query scores: %w", err)
	}
	defer func() { _ = rows.Close() }()

	scores := make(map[string]*ModelScore)
	for rows.Next() {
		ms, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores[ms.ModelID] = ms
	}
	return scores, rows.Err()
}

// ModelHistory returns the scores of a model, matched by unique id or name,
// newest first. limit <= 0 means all.
func (s *SQLiteStore) ModelHistory(ctx context.Context, model string, limit int) ([]*ModelScore, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scoreColumns+` FROM model_scores s JOIN runs r ON r.id = s.run_id
		 WHERE s.model_id = ? OR s.name = ?
		 ORDER BY r.created_at DESC, r.rowid DESC LIMIT ?`, model, model, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var history []*ModelScore
	for rows.Next() {
		ms, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		history = append(history, ms)
	}
	return history, rows.Err()
}

func scanScore(row scanner) (*ModelScore, error) {
	var (
		ms    ModelScore
		runAt string
	)
	c := &ms.Complexity
	err := row.Scan(&ms.RunID, &runAt, &ms.ModelID, &ms.Name, &ms.RawScore, &ms.Score, &ms.QualityScore,
		&c.JoinCount, &c.CTECount, &c.ConditionalCount, &c.WhereCount, &c.SQLCharCount,
		&ms.DownstreamModelCount, &ms.DownstreamColumnCount)
	if err != nil {
		return nil, fmt.Errorf("failed to scan score: %w", err)
	}
	ms.RunAt, err = time.Parse(timeLayout, runAt)
	if err != nil {
		return nil, fmt.Errorf("invalid run timestamp %q: %w", runAt, err)
	}
	return &ms, nil
}

// RunEdges returns the column edges saved with a run.
func (s *SQLiteStore) RunEdges(ctx context.Context, runID string) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_model, source_column, target_model, target_column FROM column_edges
		 WHERE run_id = ? ORDER BY target_model, target_column, source_model, source_column`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.Source.ModelUniqueID, &e.Source.ColumnName, &e.Target.ModelUniqueID, &e.Target.ColumnName); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// DeleteRun removes a run with its scores and edges.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %s", id)
	}
	return nil
}
