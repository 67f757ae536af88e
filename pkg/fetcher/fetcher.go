package fetcher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dtnitsch/llm-report-pipeline/models"
	"github.com/dtnitsch/llm-report-pipeline/pkg/parser"
	"golang.org/x/net/html"
)

// maxBodyBytes bounds how much of a response is read.
const maxBodyBytes = 20 << 20

// invisible lists elements whose text is never rendered.
var invisible = map[string]bool{
	"script":   true,
	"style":    true,
	"noscript": true,
	"template": true,
	"head":     true,
	"iframe":   true,
	"svg":      true,
}

type Option func(*Fetcher)

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) { f.userAgent = ua }
}

// WithMainContent replaces the visible text with the readability article text
// when the parser finds one.
func WithMainContent(enabled bool) Option {
	return func(f *Fetcher) { f.mainContent = enabled }
}

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) { f.logger = l }
}

// Fetcher retrieves one page per call. It never retries, caches or rate
// limits.
type Fetcher struct {
	client      *http.Client
	parser      *parser.Parser
	userAgent   string
	mainContent bool
	logger      *slog.Logger
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client:    &http.Client{},
		parser:    &parser.Parser{},
		userAgent: models.DefaultUserAgent,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves url within timeout. Failures are reported through the
// returned status; the payload is empty for every non-Ok status.
func (f *Fetcher) Fetch(ctx context.Context, url string, timeout time.Duration) models.ScrapeResult {
	result := models.ScrapeResult{URL: url, Images: []string{}, Links: []string{}, FetchedAt: time.Now().UTC()}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, status, err := f.getBody(ctx, url)
	if err != nil {
		result.Status = status
		result.Error = err.Error()
		f.logger.Warn("fetch failed", "url", url, "status", status.String(), "error", err)
		return result
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		result.Status = models.StatusNetworkError()
		result.Error = fmt.Sprintf("failed to parse HTML: %v", err)
		return result
	}

	result.Status = models.StatusOk()
	result.Images = attrValues(doc, "img[src]", "src")
	result.Links = attrValues(doc, "a[href]", "href")
	result.Text = VisibleText(doc)

	page, err := f.parser.ParseToStructured(url, string(body))
	if err != nil {
		f.logger.Debug("main content extraction failed", "url", url, "error", err)
	} else {
		result.Title = page.Title
		result.Excerpt = page.Excerpt
		result.SiteName = page.SiteName
		if f.mainContent {
			if text := strings.TrimSpace(page.ToPlainText()); text != "" {
				result.Text = text
			}
		}
	}
	if result.Title == "" {
		result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}

	f.logger.Info("fetched page", "url", url, "links", len(result.Links), "images", len(result.Images), "text_bytes", len(result.Text))
	return result
}

func (f *Fetcher) getBody(ctx context.Context, url string) ([]byte, models.FetchStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, models.StatusNetworkError(), fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(ctx, err), fmt.Errorf("failed to make HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, models.StatusHTTPError(resp.StatusCode), fmt.Errorf("failed to fetch HTML, status code: %d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classify(ctx, err), fmt.Errorf("failed to read response body: %w", err)
	}
	return bodyBytes, models.StatusOk(), nil
}

// classify maps a transport error onto Timeout or NetworkError.
func classify(ctx context.Context, err error) models.FetchStatus {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return models.StatusTimeout()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.StatusTimeout()
	}
	return models.StatusNetworkError()
}

func attrValues(doc *goquery.Document, selector, attr string) []string {
	values := []string{}
	doc.Find(selector).Each(func(i int, s *goquery.Selection) {
		if v, ok := s.Attr(attr); ok {
			values = append(values, v)
		}
	})
	return values
}

// VisibleText concatenates the document's visible text nodes in document
// order, separated by single spaces.
func VisibleText(doc *goquery.Document) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && invisible[n.Data] {
			return
		}
		if n.Type == html.CommentNode {
			return
		}
		if n.Type == html.TextNode {
			if t := strings.Join(strings.Fields(n.Data), " "); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	return strings.Join(parts, " ")
}
