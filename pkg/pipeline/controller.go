package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/genai"
	"github.com/dtnitsch/llm-report-pipeline/pkg/render"
	"github.com/dtnitsch/llm-report-pipeline/pkg/session"
	"github.com/google/uuid"
)

// ErrRunInProgress is returned when a run is requested while another one is
// executing on the same controller.
var ErrRunInProgress = errors.New("a run is already in progress")

// StageValidation is the stage name reported for input validation failures.
// Validation runs before the machine leaves Idle.
const StageValidation = "validation"

type Kind string

const (
	KindFactsheet Kind = "factsheet"
	KindScrape    Kind = "scrape"
	KindAnalyze   Kind = "analyze"
	KindFund      Kind = "fund"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(strings.ToLower(strings.TrimSpace(s))); k {
	case KindFactsheet, KindScrape, KindAnalyze, KindFund:
		return k, nil
	}
	return "", fmt.Errorf("unknown run kind %q", s)
}

// StageError is a failure of one pipeline stage.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) models.ScrapeResult
}

type Analyzer interface {
	Analyze(text string) models.AnalysisBundle
}

type PromptBuilder interface {
	Build(fields map[string]string, kind models.TemplateKind) (string, error)
	Spec(fields map[string]string, kind models.TemplateKind) (models.PromptSpec, error)
	Validate(kind models.TemplateKind, fields map[string]string, provided ...string) error
}

type Renderer interface {
	RenderAll(ctx context.Context, doc *render.Document, formats []models.Format) ([]models.ReportArtifact, error)
}

type ArtifactStore interface {
	Save(runID string, artifact models.ReportArtifact) (models.ArtifactRecord, error)
}

type RunRecorder interface {
	RecordRun(ctx context.Context, run models.RunRecord) error
}

type Notifier interface {
	Notify(ctx context.Context, run models.RunRecord) error
}

// Request describes one run.
type Request struct {
	Kind Kind
	// Template overrides the default template of the run kind.
	Template models.TemplateKind
	Fields   map[string]string
	URL      string
	Timeout  time.Duration
	// Variants is the number of completions to request, 1 to genai.MaxVariants.
	Variants int
	Formats  []models.Format
	Assets   render.Assets
	Fund     *models.FundReport
	// SkipCommentary renders a fund report without generating missing
	// commentary.
	SkipCommentary bool
}

// Report collects everything a run produced, including partial output of a
// failed run.
type Report struct {
	RunID       string                    `json:"run_id" yaml:"run_id"`
	Kind        Kind                      `json:"kind" yaml:"kind"`
	State       State                     `json:"state" yaml:"state"`
	Error       string                    `json:"error,omitempty" yaml:"error,omitempty"`
	Scrape      *models.ScrapeResult      `json:"scrape,omitempty" yaml:"scrape,omitempty"`
	Analysis    *models.AnalysisBundle    `json:"analysis,omitempty" yaml:"analysis,omitempty"`
	Prompts     []models.PromptSpec       `json:"prompts,omitempty" yaml:"prompts,omitempty"`
	Generations []models.GenerationResult `json:"generations,omitempty" yaml:"generations,omitempty"`
	Fund        *models.FundReport        `json:"fund,omitempty" yaml:"fund,omitempty"`
	Artifacts   []models.ReportArtifact   `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`
	Saved       []models.ArtifactRecord   `json:"saved,omitempty" yaml:"saved,omitempty"`
	StartedAt   time.Time                 `json:"started_at" yaml:"started_at"`
	FinishedAt  time.Time                 `json:"finished_at" yaml:"finished_at"`

	Err error `json:"-" yaml:"-"`

	prompts []string
}

// Dependencies are the collaborators every run needs.
type Dependencies struct {
	Fetcher   Fetcher
	Analyzer  Analyzer
	Prompts   PromptBuilder
	Generator genai.Generator
	Renderer  Renderer
}

type Controller struct {
	deps     Dependencies
	store    ArtifactStore
	recorder RunRecorder
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
	model    string
	timeout  time.Duration

	running sync.Mutex
	machine *Machine
}

type Option func(*Controller)

// WithArtifactStore saves every rendered artifact.
func WithArtifactStore(s ArtifactStore) Option {
	return func(c *Controller) { c.store = s }
}

// WithRunRecorder records every finished run.
func WithRunRecorder(r RunRecorder) Option {
	return func(c *Controller) { c.recorder = r }
}

// WithNotifier posts a summary of every finished run.
func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithModel names the model recorded on generation results.
func WithModel(model string) Option {
	return func(c *Controller) { c.model = model }
}

// WithFetchTimeout sets the timeout used when a request does not carry one.
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Controller) { c.timeout = d }
}

func NewController(deps Dependencies, opts ...Option) *Controller {
	c := &Controller{
		deps:    deps,
		logger:  slog.Default(),
		timeout: models.DefaultFetchTimeout,
		machine: NewMachine(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.machine.OnTransition(func(from, to State) {
		c.logger.Debug("Pipeline state changed", "from", from, "to", to)
	})
	return c
}

// State is the state of the current or last run.
func (c *Controller) State() State {
	return c.machine.State()
}

// Busy reports whether a run is executing.
func (c *Controller) Busy() bool {
	if c.running.TryLock() {
		c.running.Unlock()
		return false
	}
	return true
}

// Run executes one run. The returned report is never nil unless the
// controller is busy; err is the run's StageError, if any.
func (c *Controller) Run(ctx context.Context, sess *session.Session, req Request) (*Report, error) {
	if !c.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer c.running.Unlock()

	if err := c.machine.Reset(); err != nil {
		return nil, err
	}

	report := &Report{Kind: req.Kind, State: StateIdle, StartedAt: time.Now()}
	req, tmpl, err := c.prepare(req)
	if err != nil {
		report.Err = &StageError{Stage: StageValidation, Err: err}
		report.Error = models.UserMessage(err)
		report.FinishedAt = time.Now()
		if sess != nil {
			sess.Update(func(st *session.State) {
				st.LastState = string(StateIdle)
				st.LastError = report.Error
			})
		}
		c.logger.Info("Run rejected by validation", "kind", req.Kind, "error", err)
		return report, report.Err
	}

	report.RunID = uuid.NewString()
	if sess != nil {
		sess.StartRun(report.RunID, string(req.Kind), req.Fields)
	}
	c.metrics.runStarted()
	c.logger.Info("Run started", "run_id", report.RunID, "kind", req.Kind, "variants", req.Variants)

	for _, stage := range c.stages(req) {
		if err := c.machine.Transition(stage); err != nil {
			report.Err = &StageError{Stage: string(stage), Err: err}
			break
		}

		start := time.Now()
		err := c.runStage(ctx, stage, req, tmpl, report)
		c.metrics.observeStage(stage, time.Since(start), err)
		if err != nil {
			report.Err = &StageError{Stage: string(stage), Err: err}
			break
		}
	}

	if report.Err != nil {
		_ = c.machine.Transition(StateError)
		report.Error = models.UserMessage(report.Err)
		c.logger.Error("Run failed", "run_id", report.RunID, "error", report.Err)
	} else if err := c.machine.Transition(StateDone); err != nil {
		report.Err = err
	}
	report.State = c.machine.State()
	report.FinishedAt = time.Now()

	c.finish(ctx, sess, req, report)
	return report, report.Err
}

// stages lists the states a request passes through, in order.
func (c *Controller) stages(req Request) []State {
	var stages []State
	switch req.Kind {
	case KindFactsheet:
		stages = []State{StatePrompting, StateGenerating}
	case KindScrape:
		stages = []State{StateFetching, StateAnalyzing, StatePrompting, StateGenerating}
	case KindAnalyze:
		stages = []State{StateFetching, StateAnalyzing}
	case KindFund:
		if req.Fund.Commentary == "" && !req.SkipCommentary {
			stages = []State{StatePrompting, StateGenerating}
		}
	}
	if len(req.Formats) > 0 {
		stages = append(stages, StateRendering)
	}
	return stages
}

func (c *Controller) runStage(ctx context.Context, stage State, req Request, tmpl models.TemplateKind, report *Report) error {
	switch stage {
	case StateFetching:
		return c.fetch(ctx, req, report)
	case StateAnalyzing:
		bundle := c.deps.Analyzer.Analyze(report.Scrape.Text)
		report.Analysis = &bundle
		return nil
	case StatePrompting:
		return c.prompt(req, tmpl, report)
	case StateGenerating:
		return c.generate(ctx, req, report)
	case StateRendering:
		return c.render(ctx, req, report)
	}
	return fmt.Errorf("unexpected stage %s", stage)
}

func (c *Controller) fetch(ctx context.Context, req Request, report *Report) error {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = c.timeout
	}
	res := c.deps.Fetcher.Fetch(ctx, req.URL, timeout)
	report.Scrape = &res
	c.logger.Info("Fetched page", "url", req.URL, "status", res.Status.String(), "links", len(res.Links), "images", len(res.Images))
	return res.Err()
}

func (c *Controller) prompt(req Request, tmpl models.TemplateKind, report *Report) error {
	fields := make(map[string]string, len(req.Fields))
	for k, v := range req.Fields {
		fields[k] = v
	}
	if report.Scrape != nil {
		for k, v := range ScrapeFields(*report.Scrape, report.Analysis) {
			fields[k] = v
		}
	}
	if req.Kind == KindFund {
		for k, v := range req.Fund.Fields() {
			fields[k] = v
		}
	}

	for i := 1; i <= req.Variants; i++ {
		vf := fields
		if req.Variants > 1 {
			vf = make(map[string]string, len(fields)+1)
			for k, v := range fields {
				vf[k] = v
			}
			vf["version"] = fmt.Sprintf("%d", i)
		}

		spec, err := c.deps.Prompts.Spec(vf, tmpl)
		if err != nil {
			return err
		}
		text, err := c.deps.Prompts.Build(vf, tmpl)
		if err != nil {
			return err
		}
		report.Prompts = append(report.Prompts, spec)
		report.prompts = append(report.prompts, text)
	}
	return nil
}

// generate requests every variant. Successful completions are kept even when
// another variant fails; the run then ends in Error with the first failure.
func (c *Controller) generate(ctx context.Context, req Request, report *Report) error {
	results, err := genai.GenerateVariants(ctx, c.deps.Generator, report.prompts)
	if err != nil {
		return err
	}

	for _, r := range results {
		c.metrics.generation(r.Err)
		if r.Err != nil {
			c.logger.Warn("Variant generation failed", "run_id", report.RunID, "variant", r.Index+1, "error", r.Err)
			continue
		}
		report.Generations = append(report.Generations, models.GenerationResult{
			Variant:      r.Index + 1,
			Text:         r.Text,
			Prompt:       report.prompts[r.Index],
			SourcePrompt: report.Prompts[r.Index],
			Model:        c.model,
			CreatedAt:    time.Now(),
		})
	}

	if req.Kind == KindFund && len(report.Generations) > 0 {
		fund := *req.Fund
		fund.Commentary = report.Generations[0].Text
		report.Fund = &fund
	}
	return genai.FirstError(results)
}

func (c *Controller) render(ctx context.Context, req Request, report *Report) error {
	for _, doc := range c.documents(req, report) {
		artifacts, renderErr := c.deps.Renderer.RenderAll(ctx, doc, req.Formats)
		for _, artifact := range artifacts {
			report.Artifacts = append(report.Artifacts, artifact)
			c.metrics.artifact(string(artifact.Format))

			if c.store == nil {
				continue
			}
			rec, err := c.store.Save(report.RunID, artifact)
			if err != nil {
				return &models.RenderError{Kind: models.RenderWriteFailure, Format: artifact.Format, Err: err}
			}
			report.Saved = append(report.Saved, rec)
			c.logger.Info("Saved artifact", "run_id", report.RunID, "path", rec.Path, "warnings", len(rec.Warnings))
		}
		if renderErr != nil {
			return renderErr
		}
	}
	return nil
}

func (c *Controller) documents(req Request, report *Report) []*render.Document {
	var docs []*render.Document
	switch req.Kind {
	case KindFactsheet:
		subject := req.Fields["product_name"]
		for _, g := range report.Generations {
			docs = append(docs, render.GenerationDocument(subject, g, req.Variants, req.Assets))
		}
	case KindScrape:
		for _, g := range report.Generations {
			doc := render.AnalysisDocument(*report.Scrape, *report.Analysis, g.Text)
			doc.Assets = req.Assets
			if req.Variants > 1 {
				doc.Title = fmt.Sprintf("%s - Version %d", doc.Title, g.Variant)
				doc.Filename = fmt.Sprintf("%s_version_%d", doc.Filename, g.Variant)
			}
			docs = append(docs, doc)
		}
	case KindAnalyze:
		docs = append(docs, render.AnalysisDocument(*report.Scrape, *report.Analysis, ""))
	case KindFund:
		fund := req.Fund
		if report.Fund != nil {
			fund = report.Fund
		}
		doc := render.FundDocument(*fund)
		doc.Assets = req.Assets
		docs = append(docs, doc)
	}
	return docs
}

// finish stores the outcome in the session, the run ledger and the notifier.
// Failures here are logged and never change the run's result.
func (c *Controller) finish(ctx context.Context, sess *session.Session, req Request, report *Report) {
	c.metrics.runFinished(req.Kind, report.State)

	if sess != nil {
		sess.Update(func(st *session.State) {
			st.LastState = string(report.State)
			st.LastError = report.Error
			st.Scrape = report.Scrape
			st.Analysis = report.Analysis
			st.Generations = append([]models.GenerationResult(nil), report.Generations...)
			st.Artifacts = nil
			for _, a := range report.Saved {
				st.Artifacts = append(st.Artifacts, a.Path)
			}
		})
	}

	run := models.RunRecord{
		ID:          report.RunID,
		Kind:        string(req.Kind),
		State:       string(report.State),
		Error:       report.Error,
		URL:         req.URL,
		Model:       c.model,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		Generations: report.Generations,
		Artifacts:   report.Saved,
	}
	if sess != nil {
		run.SessionID = sess.ID()
	}
	var se *StageError
	if errors.As(report.Err, &se) {
		run.FailedStage = se.Stage
	}

	if c.recorder != nil {
		if err := c.recorder.RecordRun(ctx, run); err != nil {
			c.logger.Error("Failed to record run", "run_id", report.RunID, "error", err)
		}
	}
	if c.notifier != nil {
		if err := c.notifier.Notify(ctx, run); err != nil {
			c.logger.Warn("Failed to send run notification", "run_id", report.RunID, "error", err)
		}
	}
	c.logger.Info("Run finished", "run_id", report.RunID, "state", report.State,
		"generations", len(report.Generations), "artifacts", len(report.Artifacts),
		"duration", report.FinishedAt.Sub(report.StartedAt))
}
