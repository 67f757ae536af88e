package db

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/internal/common"
	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/artifact_manager"
	dbpkg "github.com/dtnitsch/llm-report-pipeline/pkg/db"
	"github.com/urfave/cli/v2"
)

func openDatabase(cfg *models.Config) (*dbpkg.DB, error) {
	if cfg.Database.Path == "" {
		return nil, fmt.Errorf("run history is disabled: set database.path in the config or pass --db")
	}
	database, err := dbpkg.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return database, nil
}

// RunsAction lists recent runs, newest first.
func RunsAction(c *cli.Context) error {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	return listRuns(c.Context, c.App.Writer, database, c.Int("limit"), c.String("output"))
}

// RunAction shows one run. Without an argument it shows the latest.
func RunAction(c *cli.Context) error {
	cfg, err := common.LoadConfig(c)
	if err != nil {
		return err
	}
	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	m := artifact_manager.NewManager(cfg.Render.OutputDir)
	return showRun(c.Context, c.App.Writer, database, m, c.Args().First(), c.String("output"))
}

func listRuns(ctx context.Context, w io.Writer, database *dbpkg.DB, limit int, output string) error {
	runs, err := database.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	if output != "" {
		return common.WriteOutput(w, output, runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found")
		return nil
	}

	fmt.Fprintf(w, "%-36s %-20s %-10s %-8s %-10s %-5s %s\n",
		"Run ID", "Started", "Kind", "State", "Duration", "Files", "Error")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, r := range runs {
		fmt.Fprintf(w, "%-36s %-20s %-10s %-8s %-10s %-5d %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Kind,
			r.State,
			r.Duration().Round(time.Millisecond),
			len(r.Artifacts),
			r.Error,
		)
	}

	fmt.Fprintf(w, "\nTotal: %d runs\n", len(runs))
	fmt.Fprintf(w, "\nTip: Use 'llm-report runs show <id>' to see details\n")
	return nil
}

func showRun(ctx context.Context, w io.Writer, database *dbpkg.DB, m *artifact_manager.Manager, runID, output string) error {
	if runID == "" {
		runs, err := database.ListRuns(ctx, 1)
		if err != nil {
			return fmt.Errorf("failed to get latest run: %w", err)
		}
		if len(runs) == 0 {
			return fmt.Errorf("no runs found. Run 'llm-report factsheet' or 'llm-report scrape' first")
		}
		runID = runs[0].ID
	}

	run, err := database.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	if output != "" {
		return common.WriteOutput(w, output, run)
	}
	printRun(w, run, m)
	return nil
}

func printRun(w io.Writer, run models.RunRecord, m *artifact_manager.Manager) {
	fmt.Fprintf(w, "Run %s\n", run.ID)
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Kind:      %s\n", run.Kind)
	fmt.Fprintf(w, "State:     %s\n", run.State)
	fmt.Fprintf(w, "Started:   %s\n", run.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "Duration:  %s\n", run.Duration().Round(time.Millisecond))
	if run.SessionID != "" {
		fmt.Fprintf(w, "Session:   %s\n", run.SessionID)
	}
	if run.URL != "" {
		fmt.Fprintf(w, "URL:       %s\n", run.URL)
	}
	if run.Model != "" {
		fmt.Fprintf(w, "Model:     %s\n", run.Model)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "Error:     [%s] %s\n", run.FailedStage, run.Error)
	}

	if len(run.Generations) > 0 {
		fmt.Fprintf(w, "\nGenerations (%d):\n", len(run.Generations))
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for _, g := range run.Generations {
			text := []rune(strings.Join(strings.Fields(g.Text), " "))
			if len(text) > 100 {
				text = append(text[:100], []rune("...")...)
			}
			fmt.Fprintf(w, "%2d. [%s] %s\n", g.Variant, g.SourcePrompt.Kind, string(text))
		}
	}

	if len(run.Artifacts) > 0 {
		fmt.Fprintf(w, "\nArtifacts (%d):\n", len(run.Artifacts))
		fmt.Fprintln(w, strings.Repeat("-", 60))
		for i, a := range run.Artifacts {
			status, err := m.Verify(a)
			if err != nil {
				status = artifact_manager.Status("unreadable")
			}
			fmt.Fprintf(w, "%2d. [%s] %s (%s)\n", i+1, a.Format, a.Path, status)
			fmt.Fprintf(w, "    Size: %d bytes | SHA256: %s\n", a.SizeBytes, a.ContentHash)
			for _, warning := range a.Warnings {
				fmt.Fprintf(w, "    Warning: %s\n", warning)
			}
		}
	}
}
