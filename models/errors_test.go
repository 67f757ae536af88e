package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScrapeResultErr(t *testing.T) {
	ok := ScrapeResult{URL: "https://example.com", Status: StatusOk()}
	assert.NoError(t, ok.Err())

	notFound := ScrapeResult{URL: "https://example.com/missing", Status: StatusHTTPError(404)}
	err := notFound.Err()

	var fe *FetchError
	if assert.True(t, errors.As(err, &fe)) {
		assert.Equal(t, FetchHTTPError, fe.Kind)
		assert.Equal(t, 404, fe.Code)
	}
	assert.Equal(t, "http_error(404)", notFound.Status.String())
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "nil",
			err:  nil,
			want: "",
		},
		{
			name: "validation",
			err:  &ValidationError{Missing: []string{"product_name", "description"}},
			want: "Please fill in all required fields: product_name, description",
		},
		{
			name: "http error wrapped",
			err:  fmt.Errorf("stage fetching: %w", &FetchError{Kind: FetchHTTPError, Code: 503}),
			want: "Failed to retrieve the page. Status code: 503",
		},
		{
			name: "timeout",
			err:  &FetchError{Kind: FetchTimeout},
			want: "The page took too long to respond.",
		},
		{
			name: "auth",
			err:  &GenerationError{Kind: GenAuth, StatusCode: 401},
			want: "The generation service rejected the API key.",
		},
		{
			name: "plain error",
			err:  errors.New("boom"),
			want: "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UserMessage(tt.err))
		})
	}
}

func TestGenerationErrorRetryable(t *testing.T) {
	assert.True(t, (&GenerationError{Kind: GenRateLimit}).Retryable())
	assert.True(t, (&GenerationError{Kind: GenTransport}).Retryable())
	assert.False(t, (&GenerationError{Kind: GenAuth}).Retryable())
	assert.False(t, (&GenerationError{Kind: GenRejected}).Retryable())
}

func TestRenderErrorFatal(t *testing.T) {
	missing := &RenderError{Kind: RenderMissingAsset, Asset: "logo.png", Err: errors.New("no such file")}
	assert.False(t, missing.Fatal())
	assert.Contains(t, missing.Error(), "logo.png")

	write := &RenderError{Kind: RenderWriteFailure, Format: FormatPDF, Err: errors.New("disk full")}
	assert.True(t, write.Fatal())
	assert.ErrorContains(t, write, "pdf")
}
