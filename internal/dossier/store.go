// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dossier persists pipeline runs: the final record of each analyzed
// document plus every stage output, in a local SQLite database.
package dossier

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/atlas/pkg/types"
)

const (
	dbFile     = "atlas.db"
	defaultDir = "dossiers"

	// DefaultLimit bounds List and Search when no limit is given.
	DefaultLimit = 20
)

var (
	// ErrNotFound is returned when no dossier matches an ID.
	ErrNotFound = errors.New("dossier not found")

	// ErrAmbiguous is returned when an ID prefix matches several dossiers.
	ErrAmbiguous = errors.New("dossier id prefix is ambiguous")

	// ErrUnfinished is returned when saving a run that has not ended.
	ErrUnfinished = errors.New("run has not finished")
)

// Summary is the listing form of a stored run.
type Summary struct {
	ID          string          `json:"id" yaml:"id"`
	Source      string          `json:"source" yaml:"source"`
	Variant     string          `json:"variant" yaml:"variant"`
	Status      types.RunStatus `json:"status" yaml:"status"`
	Title       string          `json:"title,omitempty" yaml:"title,omitempty"`
	Author      string          `json:"author,omitempty" yaml:"author,omitempty"`
	Year        string          `json:"year,omitempty" yaml:"year,omitempty"`
	Publisher   string          `json:"publisher,omitempty" yaml:"publisher,omitempty"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at" yaml:"created_at"`
}

// Dossier is a stored run with its record and stage outputs.
type Dossier struct {
	Summary `yaml:",inline"`

	Record *types.FinalRecord   `json:"record,omitempty" yaml:"record,omitempty"`
	Error  string               `json:"error,omitempty" yaml:"error,omitempty"`
	Stages []*types.StageResult `json:"stages,omitempty" yaml:"stages,omitempty"`
}

// Store manages the dossier SQLite database.
type Store struct {
	db  *sql.DB
	dir string
}

// Open opens or creates the database at cfg.Dir/atlas.db and creates the
// schema if it does not exist.
func Open(cfg types.DossierConfig) (*Store, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = defaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating dossier directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(dir, dbFile)+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, dir: dir}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Dir returns the directory holding the database and exports.
func (s *Store) Dir() string { return s.dir }

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS dossiers (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			variant TEXT,
			status TEXT NOT NULL,
			title TEXT,
			author TEXT,
			year TEXT,
			publisher TEXT,
			description TEXT,
			record TEXT,
			error TEXT,
			created_at TEXT NOT NULL,
			finished_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS stage_outputs (
			run_id TEXT NOT NULL REFERENCES dossiers(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			stage_id TEXT NOT NULL,
			state TEXT NOT NULL,
			raw_text TEXT,
			value TEXT,
			error TEXT,
			started_at TEXT,
			finished_at TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_dossiers_created ON dossiers(created_at)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save stores a completed or failed run. A failed run keeps its partial
// stage outputs and has no record. Saving the same run again replaces it.
func (s *Store) Save(ctx context.Context, run *types.PipelineRun) error {
	if run.Status != types.RunCompleted && run.Status != types.RunFailed {
		return fmt.Errorf("saving run %s (%s): %w", run.ID, run.Status, ErrUnfinished)
	}

	var (
		rec        types.FinalRecord
		recordJSON string
	)
	if run.Final != nil {
		rec = *run.Final
		data, err := json.Marshal(run.Final)
		if err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
		recordJSON = string(data)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO dossiers (id, source, variant, status, title, author, year, publisher, description, record, error, created_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			source=excluded.source, variant=excluded.variant, status=excluded.status,
			title=excluded.title, author=excluded.author, year=excluded.year,
			publisher=excluded.publisher, description=excluded.description,
			record=excluded.record, error=excluded.error, finished_at=excluded.finished_at`,
		run.ID, run.Source, run.Variant, string(run.Status),
		rec.Title, rec.Author, rec.Year, rec.Publisher, rec.Description,
		recordJSON, run.Error, formatTime(run.CreatedAt), formatTime(run.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting dossier: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM stage_outputs WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("deleting old stage outputs: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stage_outputs (run_id, position, stage_id, state, raw_text, value, error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, res := range run.Results {
		valueJSON, err := json.Marshal(res.Value)
		if err != nil {
			return fmt.Errorf("encoding %s value: %w", res.StageID, err)
		}
		_, err = stmt.ExecContext(ctx,
			run.ID, i, res.StageID, string(res.State), res.RawText, string(valueJSON),
			res.Error, formatTime(res.StartedAt), formatTime(res.FinishedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting stage output %s: %w", res.StageID, err)
		}
	}

	return tx.Commit()
}

// Get returns the dossier whose ID equals id or, failing that, is the only
// one starting with id.
func (s *Store) Get(ctx context.Context, id string) (*Dossier, error) {
	fullID, err := s.resolveID(ctx, id)
	if err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT`+summaryColumns+`, record, error FROM dossiers WHERE id = ?`, fullID)
	var (
		d          Dossier
		recordJSON sql.NullString
		errText    sql.NullString
	)
	if err := scanSummary(row, &d.Summary, &recordJSON, &errText); err != nil {
		return nil, fmt.Errorf("reading dossier %s: %w", fullID, err)
	}
	d.Error = errText.String
	if recordJSON.String != "" {
		var rec types.FinalRecord
		if err := json.Unmarshal([]byte(recordJSON.String), &rec); err != nil {
			return nil, fmt.Errorf("decoding record of %s: %w", fullID, err)
		}
		d.Record = &rec
	}

	d.Stages, err = s.Stages(ctx, fullID)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) resolveID(ctx context.Context, id string) (string, error) {
	if id == "" {
		return "", ErrNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM dossiers WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC LIMIT 2`,
		id, escapeLike(id)+"%", id)
	if err != nil {
		return "", fmt.Errorf("looking up dossier %s: %w", id, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var got string
		if err := rows.Scan(&got); err != nil {
			return "", fmt.Errorf("scanning dossier id: %w", err)
		}
		ids = append(ids, got)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("iterating dossier ids: %w", err)
	}

	switch {
	case len(ids) == 0:
		return "", fmt.Errorf("%s: %w", id, ErrNotFound)
	case ids[0] == id, len(ids) == 1:
		return ids[0], nil
	}
	return "", fmt.Errorf("%s: %w", id, ErrAmbiguous)
}

// List returns the most recent dossiers first.
func (s *Store) List(ctx context.Context, limit int) ([]Summary, error) {
	return s.summaries(ctx, `SELECT`+summaryColumns+` FROM dossiers ORDER BY created_at DESC, id LIMIT ?`, clampLimit(limit))
}

// Search returns dossiers whose title, author, description or source
// contains query, case-insensitively for ASCII. An empty query lists.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]Summary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.List(ctx, limit)
	}
	pattern := "%" + escapeLike(query) + "%"
	return s.summaries(ctx,
		`SELECT`+summaryColumns+` FROM dossiers
		 WHERE title LIKE ? ESCAPE '\' OR author LIKE ? ESCAPE '\'
			OR description LIKE ? ESCAPE '\' OR source LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id LIMIT ?`,
		pattern, pattern, pattern, pattern, clampLimit(limit))
}

// Stages returns the stage outputs of runID in execution order.
func (s *Store) Stages(ctx context.Context, runID string) ([]*types.StageResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT stage_id, state, raw_text, value, error, started_at, finished_at
		 FROM stage_outputs WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying stage outputs: %w", err)
	}
	defer rows.Close()

	var out []*types.StageResult
	for rows.Next() {
		var (
			res                   types.StageResult
			state                 string
			raw, value, errText   sql.NullString
			startedAt, finishedAt sql.NullString
		)
		if err := rows.Scan(&res.StageID, &state, &raw, &value, &errText, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("scanning stage output: %w", err)
		}
		res.State = types.StageState(state)
		res.RawText = raw.String
		res.Error = errText.String
		res.StartedAt = parseTime(startedAt.String)
		res.FinishedAt = parseTime(finishedAt.String)
		if value.String != "" {
			if err := json.Unmarshal([]byte(value.String), &res.Value); err != nil {
				return nil, fmt.Errorf("decoding %s value: %w", res.StageID, err)
			}
		}
		out = append(out, &res)
	}
	return out, rows.Err()
}

const summaryColumns = ` id, source, variant, status, title, author, year, publisher, description, created_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(row scanner, sum *Summary, extra ...any) error {
	var (
		variant, title, author, year, publisher, description sql.NullString
		status, createdAt                                    string
	)
	dest := []any{&sum.ID, &sum.Source, &variant, &status, &title, &author, &year, &publisher, &description, &createdAt}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	sum.Variant = variant.String
	sum.Status = types.RunStatus(status)
	sum.Title = title.String
	sum.Author = author.String
	sum.Year = year.String
	sum.Publisher = publisher.String
	sum.Description = description.String
	sum.CreatedAt = parseTime(createdAt)
	return nil
}

func (s *Store) summaries(ctx context.Context, query string, args ...any) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying dossiers: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := scanSummary(rows, &sum); err != nil {
			return nil, fmt.Errorf("scanning dossier: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
