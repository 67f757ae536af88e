package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/models"
)

// setupTestDB creates an in-memory SQLite database for testing
func setupTestDB(t *testing.T) *DB {
	t.Helper()

	database := &DB{path: ":memory:"}
	var err error
	database.DB, err = openDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := database.InitSchema(); err != nil {
		t.Fatalf("failed to initialize schema: %v", err)
	}

	return database
}

func sampleRun(id string, started time.Time) models.RunRecord {
	return models.RunRecord{
		ID:         id,
		SessionID:  "2024-03-09T14-05-abcdef012345",
		Kind:       "factsheet",
		State:      "done",
		Model:      "gemini-1.5-flash",
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Generations: []models.GenerationResult{
			{Variant: 1, Text: "first", Prompt: "p1", SourcePrompt: models.PromptSpec{Kind: models.TemplateFactsheetVersion}, CreatedAt: started},
			{Variant: 2, Text: "second", Prompt: "p2", SourcePrompt: models.PromptSpec{Kind: models.TemplateFactsheetVersion}, CreatedAt: started},
		},
		Artifacts: []models.ArtifactRecord{
			{Format: models.FormatPDF, Filename: "factsheet_version_1.pdf", Path: "reports/" + id + "/a.pdf", SizeBytes: 1200, ContentHash: "abc", CreatedAt: started},
			{Format: models.FormatDOCX, Filename: "factsheet_version_1.docx", Path: "reports/" + id + "/a.docx", SizeBytes: 800, Warnings: []string{"logo missing"}, CreatedAt: started},
		},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	started := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	want := sampleRun("run-1", started)
	if err := db.RecordRun(ctx, want); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	got, err := db.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}

	if got.Kind != "factsheet" || got.State != "done" || got.SessionID != want.SessionID {
		t.Errorf("run fields = %+v", got)
	}
	if !got.StartedAt.Equal(started) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, started)
	}
	if got.Duration() != 1500*time.Millisecond {
		t.Errorf("Duration = %v", got.Duration())
	}
	if len(got.Generations) != 2 || got.Generations[1].Text != "second" {
		t.Errorf("generations = %+v", got.Generations)
	}
	if got.Generations[0].SourcePrompt.Kind != models.TemplateFactsheetVersion {
		t.Errorf("template kind = %q", got.Generations[0].SourcePrompt.Kind)
	}
	if len(got.Artifacts) != 2 {
		t.Fatalf("expected 2 artifacts, got %d", len(got.Artifacts))
	}
	if got.Artifacts[1].Warnings[0] != "logo missing" {
		t.Errorf("warnings = %v", got.Artifacts[1].Warnings)
	}
	if got.Artifacts[0].Warnings != nil {
		t.Errorf("expected no warnings, got %v", got.Artifacts[0].Warnings)
	}
}

func TestGetRunNotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	if _, err := db.GetRun(context.Background(), "missing"); err != ErrRunNotFound {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestRecordRunIsAtomic(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	run := sampleRun("run-1", time.Now())
	// Duplicate variant numbers violate UNIQUE(run_id, variant).
	run.Generations[1].Variant = 1

	if err := db.RecordRun(ctx, run); err == nil {
		t.Fatal("expected error for duplicate variant")
	}
	if _, err := db.GetRun(ctx, "run-1"); err != ErrRunNotFound {
		t.Errorf("run should have been rolled back, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	base := time.Date(2024, 3, 9, 14, 0, 0, 0, time.UTC)
	for i, id := range []string{"run-a", "run-b", "run-c"} {
		run := sampleRun(id, base.Add(time.Duration(i)*time.Minute))
		if id == "run-b" {
			run.State = "error"
			run.FailedStage = "fetching"
			run.Error = "fetch failed with HTTP status 404"
			run.Generations = nil
			run.Artifacts = nil
		}
		if err := db.RecordRun(ctx, run); err != nil {
			t.Fatalf("RecordRun(%s) failed: %v", id, err)
		}
	}

	runs, err := db.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Errorf("order = %s, %s", runs[0].ID, runs[1].ID)
	}
	if runs[1].FailedStage != "fetching" || len(runs[1].Artifacts) != 0 {
		t.Errorf("failed run = %+v", runs[1])
	}
	if len(runs[0].Artifacts) != 2 {
		t.Errorf("expected artifacts on run-c, got %d", len(runs[0].Artifacts))
	}
}

func TestOpenCreatesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "runs.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if db.Path() != path {
		t.Errorf("Path = %s", db.Path())
	}
	if err := db.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopening finds the existing schema.
	db, err = Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()
	if _, err := db.ListRuns(context.Background(), 0); err != nil {
		t.Errorf("ListRuns on reopened db failed: %v", err)
	}
}
