package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/prompt"
	"github.com/dtnitsch/llm-report-pipeline/pkg/render"
	"github.com/dtnitsch/llm-report-pipeline/pkg/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	result models.ScrapeResult
	calls  atomic.Int32
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, _ time.Duration) models.ScrapeResult {
	f.calls.Add(1)
	res := f.result
	res.URL = url
	return res
}

type fakeAnalyzer struct {
	calls atomic.Int32
}

func (a *fakeAnalyzer) Analyze(text string) models.AnalysisBundle {
	a.calls.Add(1)
	return models.AnalysisBundle{
		WordCount: len(strings.Fields(text)),
		TopWords:  []models.WordCount{{Word: "widgets", Count: 3}},
		Keywords:  []models.Keyword{{Term: "widgets", Score: 0.4}},
		Language:  "english",
	}
}

type generatorFunc func(ctx context.Context, prompt string) (string, error)

func (f generatorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []models.RunRecord
}

func (r *fakeRecorder) RecordRun(_ context.Context, run models.RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, run)
	return nil
}

type fakeNotifier struct {
	err   error
	calls atomic.Int32
}

func (n *fakeNotifier) Notify(context.Context, models.RunRecord) error {
	n.calls.Add(1)
	return n.err
}

type fixture struct {
	fetcher  *fakeFetcher
	analyzer *fakeAnalyzer
	recorder *fakeRecorder
	notifier *fakeNotifier
	registry *prometheus.Registry
	ctrl     *Controller
}

func newFixture(t *testing.T, gen generatorFunc) *fixture {
	t.Helper()
	builder, err := prompt.NewBuilder()
	require.NoError(t, err)

	f := &fixture{
		fetcher: &fakeFetcher{result: models.ScrapeResult{
			Status: models.StatusOk(),
			Title:  "Widgets",
			Text:   "We sell widgets. Widgets are great. Buy widgets.",
			Links:  []string{"/a", "/b"},
		}},
		analyzer: &fakeAnalyzer{},
		recorder: &fakeRecorder{},
		notifier: &fakeNotifier{},
		registry: prometheus.NewRegistry(),
	}
	f.ctrl = NewController(Dependencies{
		Fetcher:   f.fetcher,
		Analyzer:  f.analyzer,
		Prompts:   builder,
		Generator: gen,
		Renderer:  render.NewRenderer(render.WithCharts(false)),
	},
		WithRunRecorder(f.recorder),
		WithNotifier(f.notifier),
		WithMetrics(NewMetrics(f.registry)),
		WithModel("test-model"),
	)
	return f
}

func echoGenerator(_ context.Context, p string) (string, error) {
	return "generated: " + p[:20], nil
}

func factsheetFields() map[string]string {
	return map[string]string{
		"product_name":    "Acme",
		"description":     "A rocket powered widget",
		"target_audience": "Coyotes",
		"key_features":    "speed, noise",
	}
}

func TestFactsheetRunWithVariants(t *testing.T) {
	var prompts sync.Map
	f := newFixture(t, func(_ context.Context, p string) (string, error) {
		prompts.Store(p, true)
		return "Acme is fast.", nil
	})
	sess := session.New()

	report, err := f.ctrl.Run(context.Background(), sess, Request{
		Kind:     KindFactsheet,
		Fields:   factsheetFields(),
		Variants: 3,
		Formats:  []models.Format{models.FormatPlain},
	})

	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	require.Len(t, report.Generations, 3)
	for i, g := range report.Generations {
		assert.Equal(t, i+1, g.Variant)
		assert.Equal(t, models.TemplateFactsheetVersion, g.SourcePrompt.Kind)
		assert.Contains(t, g.Prompt, "version "+string(rune('1'+i)))
		assert.Equal(t, "test-model", g.Model)
	}

	require.Len(t, report.Artifacts, 3)
	assert.Equal(t, "factsheet_version_2.txt", report.Artifacts[1].SuggestedFilename)
	assert.Contains(t, string(report.Artifacts[0].Payload), "Acme Factsheet - Version 1")

	st := sess.Snapshot()
	assert.Equal(t, report.RunID, st.LastRunID)
	assert.Equal(t, "done", st.LastState)
	assert.Len(t, st.Generations, 3)
	assert.Equal(t, StateDone, f.ctrl.State())
}

func TestValidationKeepsIdle(t *testing.T) {
	var called atomic.Bool
	f := newFixture(t, func(context.Context, string) (string, error) {
		called.Store(true)
		return "", nil
	})
	sess := session.New()

	fields := factsheetFields()
	delete(fields, "description")
	fields["key_features"] = "   "
	report, err := f.ctrl.Run(context.Background(), sess, Request{Kind: KindFactsheet, Fields: fields})

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageValidation, se.Stage)
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"description", "key_features"}, ve.Missing)

	assert.Equal(t, StateIdle, report.State)
	assert.Equal(t, StateIdle, f.ctrl.State())
	assert.False(t, called.Load())
	assert.Empty(t, f.recorder.runs)
	assert.Contains(t, sess.Snapshot().LastError, "description, key_features")
}

func TestRejectsVariantCount(t *testing.T) {
	f := newFixture(t, echoGenerator)

	_, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindFactsheet, Fields: factsheetFields(), Variants: 6})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "between 1 and 5")
	assert.Equal(t, StateIdle, f.ctrl.State())
}

func TestScrapeRunFetchFailureSkipsAnalysis(t *testing.T) {
	f := newFixture(t, echoGenerator)
	f.fetcher.result = models.ScrapeResult{Status: models.StatusHTTPError(404)}

	report, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindScrape, URL: "https://example.com/missing"})

	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, string(StateFetching), se.Stage)
	var fe *models.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 404, fe.Code)

	assert.Equal(t, StateError, report.State)
	assert.Equal(t, "Failed to retrieve the page. Status code: 404", report.Error)
	assert.Zero(t, f.analyzer.calls.Load())
	assert.Nil(t, report.Analysis)

	require.Len(t, f.recorder.runs, 1)
	assert.Equal(t, "fetching", f.recorder.runs[0].FailedStage)
	assert.Equal(t, "error", f.recorder.runs[0].State)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.ctrl.metrics.StageFailures.WithLabelValues("fetching")))
}

func TestScrapeRun(t *testing.T) {
	var got string
	f := newFixture(t, func(_ context.Context, p string) (string, error) {
		got = p
		return "Add a pricing section.", nil
	})

	report, err := f.ctrl.Run(context.Background(), nil, Request{
		Kind:    KindScrape,
		URL:     "https://example.com",
		Formats: []models.Format{models.FormatCSV},
	})

	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, int32(1), f.analyzer.calls.Load())
	assert.Contains(t, got, "https://example.com")
	assert.Contains(t, got, "'Widgets'")
	assert.Contains(t, got, "links to 2 URLs")
	assert.Contains(t, got, "widgets (3)")

	require.Len(t, report.Artifacts, 1)
	assert.Contains(t, string(report.Artifacts[0].Payload), "Add a pricing section.")
	assert.Equal(t, float64(1), testutil.ToFloat64(f.ctrl.metrics.RunsTotal.WithLabelValues("scrape", "done")))
	assert.Equal(t, float64(0), testutil.ToFloat64(f.ctrl.metrics.RunsInFlight))
}

func TestScrapeRequiresURL(t *testing.T) {
	f := newFixture(t, echoGenerator)

	_, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindScrape})

	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"url"}, ve.Missing)
	assert.Zero(t, f.fetcher.calls.Load())
}

func TestScrapeValidationListsEveryMissingField(t *testing.T) {
	f := newFixture(t, echoGenerator)

	_, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindScrape, Template: models.TemplateFAQ})

	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"url", "product_name", "description"}, ve.Missing)
	assert.Zero(t, f.fetcher.calls.Load())
}

func TestAnalyzeRunSkipsGeneration(t *testing.T) {
	var called atomic.Bool
	f := newFixture(t, func(context.Context, string) (string, error) {
		called.Store(true)
		return "", nil
	})

	report, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindAnalyze, URL: "https://example.com"})

	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	require.NotNil(t, report.Analysis)
	assert.Equal(t, "english", report.Analysis.Language)
	assert.False(t, called.Load())
	assert.Empty(t, report.Artifacts)
}

func TestPartialVariantFailure(t *testing.T) {
	boom := &models.GenerationError{Kind: models.GenRateLimit, StatusCode: 429}
	f := newFixture(t, func(_ context.Context, p string) (string, error) {
		if strings.Contains(p, "version 2") {
			return "", boom
		}
		return "ok", nil
	})

	report, err := f.ctrl.Run(context.Background(), nil, Request{
		Kind: KindFactsheet, Fields: factsheetFields(), Variants: 3,
		Formats: []models.Format{models.FormatPlain},
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateError, report.State)
	require.Len(t, report.Generations, 2)
	assert.Equal(t, 1, report.Generations[0].Variant)
	assert.Equal(t, 3, report.Generations[1].Variant)
	assert.Empty(t, report.Artifacts)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.ctrl.metrics.Generations.WithLabelValues("error")))
	assert.Equal(t, float64(2), testutil.ToFloat64(f.ctrl.metrics.Generations.WithLabelValues("ok")))
}

func TestFundRunGeneratesMissingCommentary(t *testing.T) {
	f := newFixture(t, func(context.Context, string) (string, error) {
		return "The fund did well.", nil
	})
	fund := models.FundTemplate()
	fund.Overview.FundName = "Growth Fund"

	report, err := f.ctrl.Run(context.Background(), nil, Request{
		Kind: KindFund, Fund: &fund, Formats: []models.Format{models.FormatCSV},
	})

	require.NoError(t, err)
	require.NotNil(t, report.Fund)
	assert.Equal(t, "The fund did well.", report.Fund.Commentary)
	assert.Empty(t, fund.Commentary)
	require.Len(t, report.Artifacts, 1)
	assert.Contains(t, string(report.Artifacts[0].Payload), "The fund did well.")
}

func TestFundRunSkipCommentary(t *testing.T) {
	var called atomic.Bool
	f := newFixture(t, func(context.Context, string) (string, error) {
		called.Store(true)
		return "", nil
	})
	fund := models.FundTemplate()

	report, err := f.ctrl.Run(context.Background(), nil, Request{
		Kind: KindFund, Fund: &fund, SkipCommentary: true, Formats: []models.Format{models.FormatXLSX},
	})

	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.False(t, called.Load())
	require.Len(t, report.Artifacts, 1)
	assert.Nil(t, report.Fund)

	_, err = f.ctrl.Run(context.Background(), nil, Request{Kind: KindFund, Fund: &fund, SkipCommentary: true})
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"formats"}, ve.Missing)
}

func TestFundRunRequiresReport(t *testing.T) {
	f := newFixture(t, echoGenerator)

	_, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindFund})

	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"fund_report"}, ve.Missing)
}

func TestBusyControllerRejectsRun(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	f := newFixture(t, func(context.Context, string) (string, error) {
		close(entered)
		<-release
		return "done", nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindFactsheet, Fields: factsheetFields()})
		done <- err
	}()

	<-entered
	assert.True(t, f.ctrl.Busy())
	assert.Equal(t, StateGenerating, f.ctrl.State())

	report, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindFactsheet, Fields: factsheetFields()})
	assert.Nil(t, report)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, f.ctrl.Busy())
}

func TestNotifierFailureDoesNotFailRun(t *testing.T) {
	f := newFixture(t, echoGenerator)
	f.notifier.err = errors.New("slack down")

	report, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindFactsheet, Fields: factsheetFields()})

	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Equal(t, int32(1), f.notifier.calls.Load())
}

func TestRunsCanRepeat(t *testing.T) {
	f := newFixture(t, echoGenerator)
	f.fetcher.result = models.ScrapeResult{Status: models.StatusTimeout()}

	_, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindAnalyze, URL: "https://example.com"})
	require.Error(t, err)
	assert.Equal(t, StateError, f.ctrl.State())

	report, err := f.ctrl.Run(context.Background(), nil, Request{Kind: KindFactsheet, Fields: factsheetFields()})
	require.NoError(t, err)
	assert.Equal(t, StateDone, report.State)
	assert.Len(t, f.recorder.runs, 2)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind(" Scrape ")
	require.NoError(t, err)
	assert.Equal(t, KindScrape, k)

	_, err = ParseKind("corpus")
	assert.Error(t, err)
}
