package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!DOCTYPE html>
<html>
<head><title>Acme Widgets</title><style>body { color: red; }</style></head>
<body>
  <h1>Acme Widgets</h1>
  <script>var hidden = "do not show";</script>
  <p>Fast and reliable widgets.</p>
  <img src="/logo.png"><img alt="no source"><img src="https://cdn.example.com/hero.jpg">
  <a href="/about">About</a>
  <a name="anchor-without-href">Top</a>
  <a href="https://example.com/pricing">Pricing</a>
  <a href="">Empty</a>
  <noscript>Enable JavaScript</noscript>
</body>
</html>`

func TestFetchOk(t *testing.T) {
	var gotUA string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, samplePage)
	}))
	defer server.Close()

	f := NewFetcher(WithUserAgent("test-agent"))
	result := f.Fetch(context.Background(), server.URL, time.Second)

	require.Equal(t, models.StatusOk(), result.Status)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, []string{"/about", "https://example.com/pricing", ""}, result.Links)
	assert.Equal(t, []string{"/logo.png", "https://cdn.example.com/hero.jpg"}, result.Images)
	assert.Contains(t, result.Text, "Acme Widgets Fast and reliable widgets.")
	assert.NotContains(t, result.Text, "do not show")
	assert.NotContains(t, result.Text, "color: red")
	assert.NotContains(t, result.Text, "Enable JavaScript")
	assert.Equal(t, "Acme Widgets", result.Title)
	assert.Empty(t, result.Error)
}

func TestFetchLinkCountMatchesAnchors(t *testing.T) {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < 25; i++ {
		fmt.Fprintf(&b, `<p><a href="/page/%d">link %d</a></p>`, i, i)
	}
	b.WriteString(`<a>no href</a></body></html>`)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, b.String())
	}))
	defer server.Close()

	result := NewFetcher().Fetch(context.Background(), server.URL, time.Second)

	require.True(t, result.Status.Ok())
	require.Len(t, result.Links, 25)
	for i, link := range result.Links {
		assert.Equal(t, fmt.Sprintf("/page/%d", i), link)
	}
}

func TestFetchFailures(t *testing.T) {
	notFound := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "<html><body><a href='/x'>x</a></body></html>", http.StatusNotFound)
	}))
	defer notFound.Close()

	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		fmt.Fprint(w, samplePage)
	}))
	defer slow.Close()

	closed := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	closedURL := closed.URL
	closed.Close()

	tests := []struct {
		name    string
		url     string
		timeout time.Duration
		want    models.FetchStatus
	}{
		{name: "http 404", url: notFound.URL, timeout: time.Second, want: models.StatusHTTPError(404)},
		{name: "timeout", url: slow.URL, timeout: 50 * time.Millisecond, want: models.StatusTimeout()},
		{name: "connection refused", url: closedURL, timeout: time.Second, want: models.StatusNetworkError()},
		{name: "malformed url", url: "http://[::1", timeout: time.Second, want: models.StatusNetworkError()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewFetcher().Fetch(context.Background(), tt.url, tt.timeout)

			assert.Equal(t, tt.want, result.Status)
			assert.Empty(t, result.Text)
			assert.Empty(t, result.Images)
			assert.Empty(t, result.Links)
			assert.NotEmpty(t, result.Error)
			assert.Error(t, result.Err())

			encoded, err := json.Marshal(result)
			require.NoError(t, err)
			assert.Contains(t, string(encoded), `"images":[]`)
			assert.Contains(t, string(encoded), `"links":[]`)
		})
	}
}

func TestVisibleText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "document order across elements",
			html: `<div><h2>One</h2><p>two <b>three</b></p></div><footer>four</footer>`,
			want: "One two three four",
		},
		{
			name: "collapses whitespace",
			html: "<p>  spaced \n\t out  </p>",
			want: "spaced out",
		},
		{
			name: "skips hidden elements and comments",
			html: `<p>shown</p><!-- comment --><template>tpl</template><style>.x{}</style>`,
			want: "shown",
		},
		{
			name: "empty body",
			html: "<html><body></body></html>",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(tt.html))
			require.NoError(t, err)
			assert.Equal(t, tt.want, VisibleText(doc))
		})
	}
}
