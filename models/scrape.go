package models

import (
	"fmt"
	"time"
)

// FetchStatusKind classifies the outcome of a single fetch.
type FetchStatusKind string

const (
	FetchOk           FetchStatusKind = "ok"
	FetchTimeout      FetchStatusKind = "timeout"
	FetchHTTPError    FetchStatusKind = "http_error"
	FetchNetworkError FetchStatusKind = "network_error"
)

// FetchStatus is Ok, Timeout, HttpError(code) or NetworkError. Code is only
// meaningful for FetchHTTPError.
type FetchStatus struct {
	Kind FetchStatusKind `json:"kind" yaml:"kind"`
	Code int             `json:"code,omitempty" yaml:"code,omitempty"`
}

func StatusOk() FetchStatus { return FetchStatus{Kind: FetchOk} }
func StatusTimeout() FetchStatus { return FetchStatus{Kind: FetchTimeout} }
func StatusHTTPError(code int) FetchStatus { return FetchStatus{Kind: FetchHTTPError, Code: code} }
func StatusNetworkError() FetchStatus { return FetchStatus{Kind: FetchNetworkError} }

func (s FetchStatus) Ok() bool { return s.Kind == FetchOk }

func (s FetchStatus) String() string {
	if s.Kind == FetchHTTPError {
		return fmt.Sprintf("%s(%d)", s.Kind, s.Code)
	}
	return string(s.Kind)
}

// ScrapeResult is the outcome of one fetch. Text, Images and Links are empty
// whenever Status is not Ok.
type ScrapeResult struct {
	URL       string      `json:"url" yaml:"url"`
	Status    FetchStatus `json:"status" yaml:"status"`
	Text      string      `json:"text" yaml:"text"`
	Images    []string    `json:"images" yaml:"images"`
	Links     []string    `json:"links" yaml:"links"`
	Title     string      `json:"title,omitempty" yaml:"title,omitempty"`
	Excerpt   string      `json:"excerpt,omitempty" yaml:"excerpt,omitempty"`
	SiteName  string      `json:"site_name,omitempty" yaml:"site_name,omitempty"`
	Error     string      `json:"error,omitempty" yaml:"error,omitempty"`
	FetchedAt time.Time   `json:"fetched_at" yaml:"fetched_at"`
}

// Err returns the typed fetch error for a failed result, or nil when the
// fetch succeeded.
func (r ScrapeResult) Err() error {
	if r.Status.Ok() {
		return nil
	}
	return &FetchError{
		Kind:    r.Status.Kind,
		Code:    r.Status.Code,
		URL:     r.URL,
		Message: r.Error,
	}
}
