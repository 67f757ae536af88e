package models

import (
	"errors"
	"fmt"
	"strings"
)

// FetchError is the typed form of a non-Ok ScrapeResult status.
type FetchError struct {
	Kind    FetchStatusKind
	Code    int
	URL     string
	Message string
}

func (e *FetchError) Error() string {
	var b strings.Builder
	switch e.Kind {
	case FetchTimeout:
		b.WriteString("fetch timed out")
	case FetchHTTPError:
		fmt.Fprintf(&b, "fetch failed with HTTP status %d", e.Code)
	default:
		b.WriteString("fetch failed with network error")
	}
	if e.URL != "" {
		fmt.Fprintf(&b, " for %s", e.URL)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

// GenerationErrorKind classifies failures of the generative text endpoint.
type GenerationErrorKind string

const (
	GenAuth      GenerationErrorKind = "auth"
	GenRateLimit GenerationErrorKind = "rate_limit"
	GenTransport GenerationErrorKind = "transport"
	GenRejected  GenerationErrorKind = "rejected"
)

type GenerationError struct {
	Kind       GenerationErrorKind
	StatusCode int
	Message    string
	Err        error
}

func (e *GenerationError) Error() string {
	msg := fmt.Sprintf("generation failed (%s)", e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s status %d", msg, e.StatusCode)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *GenerationError) Unwrap() error { return e.Err }

// Retryable reports whether a repeated request could succeed.
func (e *GenerationError) Retryable() bool {
	return e.Kind == GenRateLimit || e.Kind == GenTransport
}

type RenderErrorKind string

const (
	// RenderMissingAsset is non-fatal: the artifact is produced without the asset.
	RenderMissingAsset RenderErrorKind = "missing_asset"
	RenderWriteFailure RenderErrorKind = "write_failure"
)

type RenderError struct {
	Kind   RenderErrorKind
	Format Format
	Asset  string
	Err    error
}

func (e *RenderError) Error() string {
	switch e.Kind {
	case RenderMissingAsset:
		return fmt.Sprintf("asset %q could not be loaded and was omitted: %v", e.Asset, e.Err)
	default:
		return fmt.Sprintf("failed to write %s document: %v", e.Format, e.Err)
	}
}

func (e *RenderError) Unwrap() error { return e.Err }

// Fatal reports whether the render error aborts artifact production.
func (e *RenderError) Fatal() bool { return e.Kind != RenderMissingAsset }

// ValidationError lists every required field that was missing from one set of
// inputs.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("missing required fields: %s", strings.Join(e.Missing, ", "))
}

// UserMessage turns any error from the taxonomy into the short message shown
// to the user. Errors outside the taxonomy fall back to their own text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var fe *FetchError
	var ge *GenerationError
	var re *RenderError
	var ve *ValidationError

	switch {
	case errors.As(err, &ve):
		return "Please fill in all required fields: " + strings.Join(ve.Missing, ", ")
	case errors.As(err, &fe):
		switch fe.Kind {
		case FetchTimeout:
			return "The page took too long to respond."
		case FetchHTTPError:
			return fmt.Sprintf("Failed to retrieve the page. Status code: %d", fe.Code)
		default:
			return "Could not reach the page: " + fe.Error()
		}
	case errors.As(err, &ge):
		switch ge.Kind {
		case GenAuth:
			return "The generation service rejected the API key."
		case GenRateLimit:
			return "The generation service is rate limiting requests, try again later."
		case GenRejected:
			return "The generation service refused the prompt: " + ge.Message
		default:
			return "Could not reach the generation service: " + ge.Error()
		}
	case errors.As(err, &re):
		return re.Error()
	}
	return err.Error()
}
