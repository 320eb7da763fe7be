// Package providers holds the vendor label-detection adapters. Every
// adapter downloads the image itself, calls its vendor and normalizes
// the reply to a lowercased label -> confidence map. Adapters never
// return transport errors to callers; failures collapse into a Fetched
// with Success=false.
package providers

import (
	"context"
	"encoding/json"
	"fmt"
)

// FailureKind classifies why a fetch failed.
type FailureKind string

const (
	FailureUnsupportedMediaType FailureKind = "UnsupportedMediaType"
	FailureDownloadFailed       FailureKind = "DownloadFailed"
	FailureTimeout              FailureKind = "Timeout"
	FailureServiceError         FailureKind = "ServiceError"
)

// Failure is the typed value every provider error collapses into.
type Failure struct {
	Kind    FailureKind
	Message string
}

func (f *Failure) Error() string {
	if f.Kind == FailureTimeout {
		return "timeout"
	}
	return fmt.Sprintf("%s - %s", f.Kind, f.Message)
}

func NewFailure(kind FailureKind, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Fetched is the normalized outcome of one provider call.
type Fetched struct {
	// Raw is the vendor body verbatim, nil when the call never reached
	// the vendor.
	Raw json.RawMessage

	// Labels maps lowercased label to confidence in [0, 1]. Empty when
	// Success is false.
	Labels map[string]float64

	Success bool

	// Failure is set iff Success is false.
	Failure *Failure
}

// Failed builds a failed Fetched from a typed failure.
func Failed(f *Failure) Fetched {
	return Fetched{Labels: map[string]float64{}, Success: false, Failure: f}
}

// LabelProvider is the single seam to vendor code.
type LabelProvider interface {
	// Name returns the seeded service name the adapter serves.
	Name() string

	// Fetch downloads uri, calls the vendor and normalizes the reply.
	// maxLabels truncates after normalization; minConfidence filters
	// (Azure ignores it).
	Fetch(ctx context.Context, uri string, maxLabels int, minConfidence float64) Fetched
}
