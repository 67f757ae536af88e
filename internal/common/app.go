package common

import (
	"fmt"
	"log/slog"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/analytics"
	"github.com/dtnitsch/llm-report-pipeline/pkg/artifact_manager"
	"github.com/dtnitsch/llm-report-pipeline/pkg/db"
	"github.com/dtnitsch/llm-report-pipeline/pkg/fetcher"
	"github.com/dtnitsch/llm-report-pipeline/pkg/genai"
	"github.com/dtnitsch/llm-report-pipeline/pkg/notify"
	"github.com/dtnitsch/llm-report-pipeline/pkg/pipeline"
	"github.com/dtnitsch/llm-report-pipeline/pkg/prompt"
	"github.com/dtnitsch/llm-report-pipeline/pkg/render"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

// App holds everything a command needs, built once from the configuration.
type App struct {
	Config     *models.Config
	Logger     *slog.Logger
	Controller *pipeline.Controller
	Prompts    *prompt.Builder
	Renderer   *render.Renderer
	Artifacts  *artifact_manager.Manager
	DB         *db.DB
}

// LoadConfig reads --config and applies the flags that override it.
func LoadConfig(c *cli.Context) (*models.Config, error) {
	cfg, err := models.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("output-dir") {
		cfg.Render.OutputDir = c.String("output-dir")
	}
	if c.IsSet("db") {
		cfg.Database.Path = c.String("db")
	}
	return cfg, nil
}

// NewApp wires the pipeline. reg receives the pipeline metrics; nil skips
// them.
func NewApp(c *cli.Context, reg prometheus.Registerer) (*App, error) {
	cfg, err := LoadConfig(c)
	if err != nil {
		return nil, err
	}
	logger := NewLogger(c)

	builder, err := prompt.LoadBuilder(cfg.Prompts.TemplatesFile)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Prompts:   builder,
		Renderer:  render.NewRenderer(render.WithLogger(logger), render.WithCharts(cfg.Render.Charts)),
		Artifacts: artifact_manager.NewManager(cfg.Render.OutputDir),
	}

	client := genai.NewClient(cfg, genai.WithLogger(logger))
	opts := []pipeline.Option{
		pipeline.WithLogger(logger),
		pipeline.WithModel(client.Model()),
		pipeline.WithFetchTimeout(cfg.Fetch.Timeout),
		pipeline.WithArtifactStore(app.Artifacts),
	}

	if cfg.Database.Path != "" {
		database, err := db.Open(cfg.Database.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		app.DB = database
		opts = append(opts, pipeline.WithRunRecorder(database))
	}
	if cfg.Notify.SlackWebhookURL != "" {
		opts = append(opts, pipeline.WithNotifier(notify.NewSlack(cfg.Notify.SlackWebhookURL)))
	}
	if reg != nil {
		opts = append(opts, pipeline.WithMetrics(pipeline.NewMetrics(reg)))
	}

	f := fetcher.NewFetcher(
		fetcher.WithUserAgent(cfg.Fetch.UserAgent),
		fetcher.WithMainContent(cfg.Fetch.MainContent),
		fetcher.WithLogger(logger),
	)

	app.Controller = pipeline.NewController(pipeline.Dependencies{
		Fetcher:   f,
		Analyzer:  analytics.NewTextAnalyzer(),
		Prompts:   builder,
		Generator: client,
		Renderer:  app.Renderer,
	}, opts...)

	return app, nil
}

func (a *App) Close() error {
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}

// Formats reads the --format flag. An empty value means every format.
func Formats(c *cli.Context) ([]models.Format, error) {
	values := c.StringSlice("format")
	if len(values) == 0 {
		return models.AllFormats, nil
	}
	return models.ParseFormats(values)
}
