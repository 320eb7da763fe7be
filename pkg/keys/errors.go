// Package keys implements benchmark keys: the persisted reference
// points for drift detection and the validity relations between a key
// and another key or a live response.
package keys

import "fmt"

// ErrorKind names the reason a validity check failed. The first
// failing check short-circuits and determines the reported kind.
type ErrorKind string

const (
	ServiceMismatch         ErrorKind = "SERVICE_MISMATCH"
	DatasetMismatch         ErrorKind = "DATASET_MISMATCH"
	SuccessMismatch         ErrorKind = "SUCCESS_MISMATCH"
	MaxLabelsMismatch       ErrorKind = "MAX_LABELS_MISMATCH"
	MinConfidenceMismatch   ErrorKind = "MIN_CONFIDENCE_MISMATCH"
	ResponseLengthMismatch  ErrorKind = "RESPONSE_LENGTH_MISMATCH"
	LabelDeltaMismatch      ErrorKind = "LABEL_DELTA_MISMATCH"
	ConfidenceDeltaMismatch ErrorKind = "CONFIDENCE_DELTA_MISMATCH"
	ExpectedLabelsMismatch  ErrorKind = "EXPECTED_LABELS_MISMATCH"

	// NoKeyYet is reported when a client has not completed its first
	// benchmark.
	NoKeyYet ErrorKind = "NO_KEY_YET"
)

// ConfidenceDelta details one label whose confidence moved beyond the
// key's tolerance.
type ConfidenceDelta struct {
	URI   string  `json:"uri"`
	Label string  `json:"label"`
	Delta float64 `json:"delta"`
}

// InvalidKeyError is the typed outcome of a failed validity check.
type InvalidKeyError struct {
	Kind    ErrorKind         `json:"kind"`
	Message string            `json:"message"`
	Deltas  []ConfidenceDelta `json:"deltas,omitempty"`
}

func (e *InvalidKeyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, format string, args ...any) *InvalidKeyError {
	return &InvalidKeyError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}
