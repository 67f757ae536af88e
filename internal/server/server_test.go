package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/db"
	"github.com/dtnitsch/llm-report-pipeline/pkg/pipeline"
	"github.com/dtnitsch/llm-report-pipeline/pkg/render"
	"github.com/dtnitsch/llm-report-pipeline/pkg/session"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, sess *session.Session, req pipeline.Request) (*pipeline.Report, error) {
	args := m.Called(ctx, sess, req)
	report, _ := args.Get(0).(*pipeline.Report)
	return report, args.Error(1)
}

func (m *MockRunner) State() pipeline.State {
	return pipeline.StateIdle
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	args := m.Called(ctx, limit)
	runs, _ := args.Get(0).([]models.RunRecord)
	return runs, args.Error(1)
}

func (m *MockHistory) GetRun(ctx context.Context, runID string) (models.RunRecord, error) {
	args := m.Called(ctx, runID)
	return args.Get(0).(models.RunRecord), args.Error(1)
}

type testServer struct {
	e       *echo.Echo
	runner  *MockRunner
	history *MockHistory
	store   *session.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		runner:  new(MockRunner),
		history: new(MockHistory),
		store:   session.NewMemoryStore(8, time.Hour),
	}
	ts.e = New(Config{
		Runner:   ts.runner,
		Sessions: ts.store,
		History:  ts.history,
		Renderer: render.NewRenderer(render.WithCharts(false)),
		Gatherer: prometheus.NewRegistry(),
		LogoPath: "assets/logo.png",
	})
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) newSession(t *testing.T) string {
	t.Helper()
	rec := ts.do(http.MethodPost, "/api/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	var st session.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	require.NotEmpty(t, st.ID)
	return st.ID
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"state":"idle"`)

	rec = ts.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStartRun(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)

	ts.runner.On("Run", mock.Anything, mock.AnythingOfType("*session.Session"), mock.MatchedBy(func(req pipeline.Request) bool {
		return req.Kind == pipeline.KindFactsheet && req.Variants == 2 &&
			req.Fields["product_name"] == "Acme" && len(req.Formats) == 2
	})).Run(func(args mock.Arguments) {
		sess := args.Get(1).(*session.Session)
		sess.StartRun("run-1", "factsheet", nil)
	}).Return(&pipeline.Report{RunID: "run-1", Kind: pipeline.KindFactsheet, State: pipeline.StateDone}, nil)

	body := `{"kind":"factsheet","fields":{"product_name":"Acme"},"variants":2,"formats":["pdf","docx"]}`
	rec := ts.do(http.MethodPost, "/api/sessions/"+id+"/runs", body)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run_id":"run-1"`)
	ts.runner.AssertExpectations(t)

	rec = ts.do(http.MethodGet, "/api/sessions/"+id, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var st session.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, "run-1", st.LastRunID)
	assert.Equal(t, 1, st.RunCount)
}

func TestStartRunIgnoresClientLogoPath(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)

	ts.runner.On("Run", mock.Anything, mock.Anything, mock.MatchedBy(func(req pipeline.Request) bool {
		return req.Assets.LogoPath == "assets/logo.png" && req.Assets.ImageURL == "https://example.com/a.png"
	})).Return(&pipeline.Report{RunID: "run-2", Kind: pipeline.KindFactsheet, State: pipeline.StateDone}, nil)

	body := `{"kind":"factsheet","fields":{"product_name":"Acme"},"logo_path":"/etc/passwd","image_url":"https://example.com/a.png"}`
	rec := ts.do(http.MethodPost, "/api/sessions/"+id+"/runs", body)

	require.Equal(t, http.StatusOK, rec.Code)
	ts.runner.AssertExpectations(t)
}

func TestStartRunConflict(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)
	ts.runner.On("Run", mock.Anything, mock.Anything, mock.Anything).Return(nil, pipeline.ErrRunInProgress)

	rec := ts.do(http.MethodPost, "/api/sessions/"+id+"/runs", `{"kind":"analyze","url":"https://example.com"}`)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "already in progress")
}

func TestStartRunStatusByStage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", &pipeline.StageError{Stage: pipeline.StageValidation, Err: &models.ValidationError{Missing: []string{"url"}}}, http.StatusBadRequest},
		{"fetch", &pipeline.StageError{Stage: "fetching", Err: &models.FetchError{Kind: models.FetchHTTPError, Code: 404}}, http.StatusBadGateway},
		{"render", &pipeline.StageError{Stage: "rendering", Err: &models.RenderError{Kind: models.RenderWriteFailure}}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			id := ts.newSession(t)
			ts.runner.On("Run", mock.Anything, mock.Anything, mock.Anything).
				Return(&pipeline.Report{State: pipeline.StateError, Error: models.UserMessage(tt.err)}, tt.err)

			rec := ts.do(http.MethodPost, "/api/sessions/"+id+"/runs", `{"kind":"scrape","url":"https://example.com"}`)

			assert.Equal(t, tt.want, rec.Code)
			assert.Contains(t, rec.Body.String(), `"state":"error"`)
		})
	}
}

func TestStartRunRejectsBadInput(t *testing.T) {
	ts := newTestServer(t)
	id := ts.newSession(t)

	rec := ts.do(http.MethodPost, "/api/sessions/"+id+"/runs", `{"kind":"corpus"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/sessions/"+id+"/runs", `{"kind":"factsheet","formats":["gif"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/sessions/missing/runs", `{"kind":"factsheet"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunHistory(t *testing.T) {
	ts := newTestServer(t)
	ts.history.On("ListRuns", mock.Anything, 5).Return([]models.RunRecord{{ID: "run-1", Kind: "scrape"}}, nil)
	ts.history.On("GetRun", mock.Anything, "run-1").Return(models.RunRecord{ID: "run-1", Kind: "scrape"}, nil)
	ts.history.On("GetRun", mock.Anything, "nope").Return(models.RunRecord{}, db.ErrRunNotFound)

	rec := ts.do(http.MethodGet, "/api/runs?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"run-1"`)

	rec = ts.do(http.MethodGet, "/api/runs/run-1", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/api/runs/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(http.MethodGet, "/api/runs?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFundTemplateDownload(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/fund-template?format=csv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "fund_template.csv")
	assert.Contains(t, rec.Body.String(), models.SheetFundOverview)

	rec = ts.do(http.MethodGet, "/api/fund-template?format=pdf", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
