package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dtnitsch/llm-report-pipeline/models"
)

var ErrRunNotFound = errors.New("run not found")

// RecordRun stores a finished run with its generations and artifacts in one
// transaction.
func (db *DB) RecordRun(ctx context.Context, run models.RunRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, session_id, kind, state, failed_stage, error, url, model, started_at, finished_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SessionID, run.Kind, run.State, run.FailedStage, run.Error, run.URL, run.Model,
		run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Duration().Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, g := range run.Generations {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO generations (run_id, variant, template_kind, prompt, text, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run.ID, g.Variant, string(g.SourcePrompt.Kind), g.Prompt, g.Text, g.CreatedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert generation %d: %w", g.Variant, err)
		}
	}

	for _, a := range run.Artifacts {
		if err := insertArtifact(ctx, tx, run.ID, a); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

func insertArtifact(ctx context.Context, tx *sql.Tx, runID string, a models.ArtifactRecord) error {
	var warnings []byte
	if len(a.Warnings) > 0 {
		var err error
		if warnings, err = json.Marshal(a.Warnings); err != nil {
			return fmt.Errorf("failed to encode warnings: %w", err)
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO artifacts (run_id, format, filename, file_path, size_bytes, content_hash, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, string(a.Format), a.Filename, a.Path, a.SizeBytes, a.ContentHash, string(warnings), a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert artifact %s: %w", a.Filename, err)
	}
	return nil
}

// ListRuns returns the most recent runs first. Generations are not loaded.
func (db *DB) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.QueryContext(ctx, `
		SELECT run_id, session_id, kind, state, failed_stage, error, url, model, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}

	for i := range runs {
		if runs[i].Artifacts, err = db.artifacts(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

// GetRun loads one run with its generations and artifacts.
func (db *DB) GetRun(ctx context.Context, runID string) (models.RunRecord, error) {
	row := db.QueryRowContext(ctx, `
		SELECT run_id, session_id, kind, state, failed_stage, error, url, model, started_at, finished_at
		FROM runs
		WHERE run_id = ?
	`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.RunRecord{}, ErrRunNotFound
	}
	if err != nil {
		return models.RunRecord{}, err
	}

	if run.Generations, err = db.generations(ctx, runID); err != nil {
		return models.RunRecord{}, err
	}
	if run.Artifacts, err = db.artifacts(ctx, runID); err != nil {
		return models.RunRecord{}, err
	}
	return run, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (models.RunRecord, error) {
	var run models.RunRecord
	var sessionID, failedStage, errMsg, url, model sql.NullString
	err := s.Scan(&run.ID, &sessionID, &run.Kind, &run.State, &failedStage, &errMsg, &url, &model, &run.StartedAt, &run.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.SessionID = sessionID.String
	run.FailedStage = failedStage.String
	run.Error = errMsg.String
	run.URL = url.String
	run.Model = model.String
	return run, nil
}

func (db *DB) generations(ctx context.Context, runID string) ([]models.GenerationResult, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT variant, template_kind, prompt, text, created_at
		FROM generations
		WHERE run_id = ?
		ORDER BY variant
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query generations: %w", err)
	}
	defer rows.Close()

	var gens []models.GenerationResult
	for rows.Next() {
		var g models.GenerationResult
		var kind sql.NullString
		if err := rows.Scan(&g.Variant, &kind, &g.Prompt, &g.Text, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan generation: %w", err)
		}
		g.SourcePrompt.Kind = models.TemplateKind(kind.String)
		gens = append(gens, g)
	}
	return gens, rows.Err()
}

func (db *DB) artifacts(ctx context.Context, runID string) ([]models.ArtifactRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT format, filename, file_path, size_bytes, content_hash, warnings, created_at
		FROM artifacts
		WHERE run_id = ?
		ORDER BY artifact_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query artifacts: %w", err)
	}
	defer rows.Close()

	var arts []models.ArtifactRecord
	for rows.Next() {
		var a models.ArtifactRecord
		var format string
		var hash, warnings sql.NullString
		if err := rows.Scan(&format, &a.Filename, &a.Path, &a.SizeBytes, &hash, &warnings, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan artifact: %w", err)
		}
		a.Format = models.Format(format)
		a.ContentHash = hash.String
		if warnings.String != "" {
			if err := json.Unmarshal([]byte(warnings.String), &a.Warnings); err != nil {
				return nil, fmt.Errorf("failed to decode artifact warnings: %w", err)
			}
		}
		arts = append(arts, a)
	}
	return arts, rows.Err()
}
