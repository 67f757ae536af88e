// Package server exposes the pipeline over HTTP. One run executes at a time;
// a request that arrives while a run is in progress gets 409 Conflict.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/db"
	"github.com/dtnitsch/llm-report-pipeline/pkg/pipeline"
	"github.com/dtnitsch/llm-report-pipeline/pkg/render"
	"github.com/dtnitsch/llm-report-pipeline/pkg/session"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Runner executes pipeline runs.
type Runner interface {
	Run(ctx context.Context, sess *session.Session, req pipeline.Request) (*pipeline.Report, error)
	State() pipeline.State
}

// RunHistory reads the run ledger.
type RunHistory interface {
	ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error)
	GetRun(ctx context.Context, runID string) (models.RunRecord, error)
}

type TemplateRenderer interface {
	Render(ctx context.Context, doc *render.Document, format models.Format) (models.ReportArtifact, error)
}

type Config struct {
	Runner   Runner
	Sessions session.Store
	// History is optional; without it the run endpoints return 404.
	History  RunHistory
	Renderer TemplateRenderer
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
	// LogoPath is the logo every HTTP run uses. Clients cannot choose a
	// local file.
	LogoPath string
}

type Server struct {
	runner   Runner
	sessions session.Store
	history  RunHistory
	renderer TemplateRenderer
	logger   *slog.Logger
	logoPath string
}

// RunRequest is the JSON body of POST /api/sessions/:id/runs.
type RunRequest struct {
	Kind           string             `json:"kind"`
	Template       string             `json:"template,omitempty"`
	Fields         map[string]string  `json:"fields,omitempty"`
	URL            string             `json:"url,omitempty"`
	Timeout        string             `json:"timeout,omitempty"`
	Variants       int                `json:"variants,omitempty"`
	Formats        []string           `json:"formats,omitempty"`
	ImageURL       string             `json:"image_url,omitempty"`
	Fund           *models.FundReport `json:"fund,omitempty"`
	SkipCommentary bool               `json:"skip_commentary,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
	Stage string `json:"stage,omitempty"`
}

// New builds the echo router.
func New(cfg Config) *echo.Echo {
	s := &Server{
		runner:   cfg.Runner,
		sessions: cfg.Sessions,
		history:  cfg.History,
		renderer: cfg.Renderer,
		logger:   cfg.Logger,
		logoPath: cfg.LogoPath,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Info("HTTP request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	}))

	e.GET("/healthz", s.health)
	if cfg.Gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	api := e.Group("/api")
	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id", s.getSession)
	api.POST("/sessions/:id/runs", s.startRun)
	api.GET("/runs", s.listRuns)
	api.GET("/runs/:id", s.getRun)
	api.GET("/fund-template", s.fundTemplate)
	return e
}

func (s *Server) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "state": string(s.runner.State())})
}

func (s *Server) createSession(c echo.Context) error {
	sess := session.New()
	if err := s.sessions.Save(c.Request().Context(), sess); err != nil {
		s.logger.Error("Failed to save session", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to create session")
	}
	return c.JSON(http.StatusCreated, sess.Snapshot())
}

func (s *Server) loadSession(c echo.Context) (*session.Session, error) {
	sess, err := s.sessions.Load(c.Request().Context(), c.Param("id"))
	if errors.Is(err, session.ErrNotFound) {
		return nil, echo.NewHTTPError(http.StatusNotFound, "session not found")
	}
	if err != nil {
		s.logger.Error("Failed to load session", "session_id", c.Param("id"), "error", err)
		return nil, echo.NewHTTPError(http.StatusInternalServerError, "failed to load session")
	}
	return sess, nil
}

func (s *Server) getSession(c echo.Context) error {
	sess, err := s.loadSession(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, sess.Snapshot())
}

// startRun runs synchronously and answers with the report. Failed runs still
// return their report, with the status chosen by the failing stage.
func (s *Server) startRun(c echo.Context) error {
	sess, err := s.loadSession(c)
	if err != nil {
		return err
	}

	var body RunRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	req, err := body.toRequest(s.logoPath)
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error(), Stage: pipeline.StageValidation})
	}

	report, err := s.runner.Run(c.Request().Context(), sess, req)
	if errors.Is(err, pipeline.ErrRunInProgress) {
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	}
	if saveErr := s.sessions.Save(c.Request().Context(), sess); saveErr != nil {
		s.logger.Error("Failed to save session", "session_id", sess.ID(), "error", saveErr)
	}
	if report == nil {
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: models.UserMessage(err)})
	}
	return c.JSON(statusFor(err), report)
}

func (body RunRequest) toRequest(logoPath string) (pipeline.Request, error) {
	kind, err := pipeline.ParseKind(body.Kind)
	if err != nil {
		return pipeline.Request{}, err
	}
	formats, err := models.ParseFormats(body.Formats)
	if err != nil {
		return pipeline.Request{}, err
	}

	var timeout time.Duration
	if body.Timeout != "" {
		if timeout, err = time.ParseDuration(body.Timeout); err != nil {
			return pipeline.Request{}, err
		}
	}

	return pipeline.Request{
		Kind:           kind,
		Template:       models.TemplateKind(body.Template),
		Fields:         body.Fields,
		URL:            body.URL,
		Timeout:        timeout,
		Variants:       body.Variants,
		Formats:        formats,
		Assets:         render.Assets{LogoPath: logoPath, ImageURL: body.ImageURL},
		Fund:           body.Fund,
		SkipCommentary: body.SkipCommentary,
	}, nil
}

func statusFor(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var se *pipeline.StageError
	if errors.As(err, &se) && se.Stage == pipeline.StageValidation {
		return http.StatusBadRequest
	}
	var fe *models.FetchError
	var ge *models.GenerationError
	if errors.As(err, &fe) || errors.As(err, &ge) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) listRuns(c echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run history is disabled")
	}
	limit := 20
	if err := echo.QueryParamsBinder(c).Int("limit", &limit).BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "limit must be a number")
	}
	runs, err := s.history.ListRuns(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list runs", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to list runs")
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) getRun(c echo.Context) error {
	if s.history == nil {
		return echo.NewHTTPError(http.StatusNotFound, "run history is disabled")
	}
	run, err := s.history.GetRun(c.Request().Context(), c.Param("id"))
	if errors.Is(err, db.ErrRunNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	if err != nil {
		s.logger.Error("Failed to get run", "run_id", c.Param("id"), "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to get run")
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) fundTemplate(c echo.Context) error {
	format := models.FormatXLSX
	if f := c.QueryParam("format"); f != "" {
		parsed, err := models.ParseFormat(f)
		if err != nil || (parsed != models.FormatCSV && parsed != models.FormatXLSX) {
			return echo.NewHTTPError(http.StatusBadRequest, "format must be csv or xlsx")
		}
		format = parsed
	}

	artifact, err := s.renderer.Render(c.Request().Context(), render.FundTemplateDocument(), format)
	if err != nil {
		s.logger.Error("Failed to render fund template", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to render template")
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+artifact.SuggestedFilename+`"`)
	return c.Blob(http.StatusOK, format.MIMEType(), artifact.Payload)
}
