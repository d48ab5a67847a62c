package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"grid-annotator/internal/domain/entity"
	"grid-annotator/internal/domain/port"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteRunRepository хранит историю прогонов в файле SQLite
type SQLiteRunRepository struct {
	db *sql.DB
}

// NewSQLiteRunRepository открывает базу и создаёт схему.
// path ":memory:" даёт временную базу.
func NewSQLiteRunRepository(path string) (*SQLiteRunRepository, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open runs db: %w", err)
	}
	// одно соединение: :memory: живёт только внутри него
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{"PRAGMA foreign_keys = ON", "PRAGMA busy_timeout = 5000", schemaSQL} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init runs db: %w", err)
		}
	}
	return &SQLiteRunRepository{db: db}, nil
}

// Close закрывает базу
func (r *SQLiteRunRepository) Close() error {
	return r.db.Close()
}

// Save сохраняет прогон вместе с этапами (перезаписывает по ID)
func (r *SQLiteRunRepository) Save(ctx context.Context, run *entity.RunSummary) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM run_stages WHERE run_id = ?`, run.ID); err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO runs
		(run_id, input, output, started_unix_nanos, finished_unix_nanos, frames, annotated_frames,
		 detection_failures, combined_fps, combined_valid, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.Input, run.Output, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano(),
		run.Frames, run.AnnotatedFrames, run.DetectionFailures,
		run.CombinedThroughput, run.CombinedValid, run.Err)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}

	for i, st := range run.Stages {
		_, err = tx.ExecContext(ctx, `INSERT INTO run_stages
			(run_id, position, stage, frames, total_nanos, mean_nanos, stddev_nanos, p50_nanos, p95_nanos, fps, valid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, i, string(st.Stage), st.Frames, int64(st.Total), int64(st.Mean), int64(st.StdDev),
			int64(st.P50), int64(st.P95), st.Throughput, st.Valid)
		if err != nil {
			return fmt.Errorf("save run %s stage %s: %w", run.ID, st.Stage, err)
		}
	}

	return tx.Commit()
}

// Get возвращает прогон по ID
func (r *SQLiteRunRepository) Get(ctx context.Context, id string) (*entity.RunSummary, error) {
	row := r.db.QueryRowContext(ctx, selectRuns+` WHERE run_id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	if err := r.loadStages(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// List возвращает последние limit прогонов, новые первыми. limit <= 0 — все.
func (r *SQLiteRunRepository) List(ctx context.Context, limit int) ([]*entity.RunSummary, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, selectRuns+` ORDER BY started_unix_nanos DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*entity.RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	for _, run := range out {
		if err := r.loadStages(ctx, run); err != nil {
			return nil, err
		}
	}
	return out, nil
}

const selectRuns = `SELECT run_id, input, output, started_unix_nanos, finished_unix_nanos, frames,
	annotated_frames, detection_failures, combined_fps, combined_valid, error FROM runs`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*entity.RunSummary, error) {
	var (
		run              entity.RunSummary
		started, finished int64
	)
	err := s.Scan(&run.ID, &run.Input, &run.Output, &started, &finished, &run.Frames,
		&run.AnnotatedFrames, &run.DetectionFailures, &run.CombinedThroughput, &run.CombinedValid, &run.Err)
	if err != nil {
		return nil, err
	}
	run.StartedAt = time.Unix(0, started)
	run.FinishedAt = time.Unix(0, finished)
	return &run, nil
}

func (r *SQLiteRunRepository) loadStages(ctx context.Context, run *entity.RunSummary) error {
	rows, err := r.db.QueryContext(ctx, `SELECT stage, frames, total_nanos, mean_nanos, stddev_nanos,
		p50_nanos, p95_nanos, fps, valid FROM run_stages WHERE run_id = ? ORDER BY position`, run.ID)
	if err != nil {
		return fmt.Errorf("load stages of %s: %w", run.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			st                         entity.StageStats
			stage                      string
			total, mean, std, p50, p95 int64
		)
		if err := rows.Scan(&stage, &st.Frames, &total, &mean, &std, &p50, &p95, &st.Throughput, &st.Valid); err != nil {
			return fmt.Errorf("load stages of %s: %w", run.ID, err)
		}
		st.Stage = entity.Stage(stage)
		st.Total, st.Mean, st.StdDev = time.Duration(total), time.Duration(mean), time.Duration(std)
		st.P50, st.P95 = time.Duration(p50), time.Duration(p95)
		run.Stages = append(run.Stages, st)
	}
	return rows.Err()
}

// Проверка реализации интерфейса
var _ port.RunRepository = (*SQLiteRunRepository)(nil)
