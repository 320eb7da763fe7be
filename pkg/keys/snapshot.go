package keys

import (
	"context"
	"sort"
	"strings"

	"github.com/Gobusters/ectologger"

	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/repositories"
	"github.com/icvsb/icvsb/pkg/tracing"
)

// Snapshot is a key with its benchmark batch hydrated: the dataset
// URIs and the response recorded for each.
type Snapshot struct {
	Key       *models.BenchmarkKey
	URIs      []string
	Responses map[string]repositories.BatchResponse
}

// Loader hydrates snapshots from the store.
type Loader struct {
	batches   *repositories.BatchRequestRepository
	responses *repositories.ResponseRepository
	logger    ectologger.Logger
}

func NewLoader(db database.DB, logger ectologger.Logger) *Loader {
	return &Loader{
		batches:   repositories.NewBatchRequestRepository(db, logger),
		responses: repositories.NewResponseRepository(db, logger),
		logger:    logger,
	}
}

// Load reads the batch behind a key and indexes its responses by URI.
func (l *Loader) Load(ctx context.Context, key *models.BenchmarkKey) (*Snapshot, error) {
	ctx, span := tracing.StartSpan(ctx, "keys.Loader.Load")
	defer span.End()

	uris, err := l.batches.URIs(ctx, key.BatchRequestID)
	if err != nil {
		return nil, err
	}

	batchResponses, err := l.responses.ListByBatch(ctx, key.BatchRequestID)
	if err != nil {
		return nil, err
	}

	byURI := make(map[string]repositories.BatchResponse, len(batchResponses))
	for _, response := range batchResponses {
		byURI[response.URI] = response
	}

	return &Snapshot{Key: key, URIs: uris, Responses: byURI}, nil
}

// fullySuccessful reports whether every response in the batch
// succeeded.
func (s *Snapshot) fullySuccessful() bool {
	if len(s.Responses) == 0 {
		return false
	}
	for _, response := range s.Responses {
		if !response.Success {
			return false
		}
	}
	return true
}

// ValidAgainstKey decides whether other is behaviorally equivalent to
// s under s's own tolerances. The tolerances always come from the
// receiver so an old strict key cannot be widened by a newer loose
// one. Returns nil when valid.
func (s *Snapshot) ValidAgainstKey(other *Snapshot) *InvalidKeyError {
	if s.Key.ServiceID != other.Key.ServiceID {
		return newError(ServiceMismatch, "keys %d and %d were minted against different services", s.Key.ID, other.Key.ID)
	}

	if diff := symmetricDifference(s.URIs, other.URIs); len(diff) > 0 {
		return newError(DatasetMismatch, "benchmark datasets differ on %s", strings.Join(diff, ", "))
	}

	if !s.fullySuccessful() || !other.fullySuccessful() {
		return newError(SuccessMismatch, "one of the benchmark batches has failed responses")
	}

	if s.Key.MaxLabels != other.Key.MaxLabels {
		return newError(MaxLabelsMismatch, "max_labels %d != %d", s.Key.MaxLabels, other.Key.MaxLabels)
	}

	if s.Key.MinConfidence != other.Key.MinConfidence {
		return newError(MinConfidenceMismatch, "min_confidence %g != %g", s.Key.MinConfidence, other.Key.MinConfidence)
	}

	if len(s.Responses) != len(other.Responses) {
		return newError(ResponseLengthMismatch, "response counts %d != %d", len(s.Responses), len(other.Responses))
	}

	var deltas []ConfidenceDelta
	for _, uri := range s.URIs {
		mine := s.Responses[uri]
		theirs, ok := other.Responses[uri]
		if !ok {
			return newError(ResponseLengthMismatch, "no response recorded for %s", uri)
		}

		myLabels := mine.Labels()
		theirLabels := theirs.Labels()

		labelDiff := symmetricDifference(labelNames(myLabels), labelNames(theirLabels))
		if len(labelDiff) > s.Key.DeltaLabels {
			return newError(LabelDeltaMismatch,
				"%d labels differ for %s (tolerance %d): %s",
				len(labelDiff), uri, s.Key.DeltaLabels, strings.Join(labelDiff, ", "))
		}

		// Labels on only one side were already accounted for by the
		// label-delta check.
		for label, mineConf := range myLabels {
			theirConf, ok := theirLabels[label]
			if !ok {
				continue
			}
			delta := mineConf - theirConf
			if delta < 0 {
				delta = -delta
			}
			if delta > s.Key.DeltaConfidence {
				deltas = append(deltas, ConfidenceDelta{URI: uri, Label: label, Delta: delta})
			}
		}
	}

	if len(deltas) > 0 {
		sort.Slice(deltas, func(i, j int) bool {
			if deltas[i].URI != deltas[j].URI {
				return deltas[i].URI < deltas[j].URI
			}
			return deltas[i].Label < deltas[j].Label
		})
		err := newError(ConfidenceDeltaMismatch,
			"%d label confidences moved beyond tolerance %g", len(deltas), s.Key.DeltaConfidence)
		err.Deltas = deltas
		return err
	}

	return nil
}

// ValidAgainstLabels checks a live response's label map against the
// key's expected labels. Extra labels are allowed; every expected
// label must be present. Returns nil when valid.
func (s *Snapshot) ValidAgainstLabels(labels map[string]float64) *InvalidKeyError {
	var missing []string
	for _, expected := range s.Key.ExpectedLabels.Data {
		if _, ok := labels[strings.ToLower(expected)]; !ok {
			missing = append(missing, strings.ToLower(expected))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return newError(ExpectedLabelsMismatch, "expected labels missing from response: %s", strings.Join(missing, ", "))
	}
	return nil
}

func labelNames(labels map[string]float64) []string {
	names := make([]string, 0, len(labels))
	for name := range labels {
		names = append(names, name)
	}
	return names
}

// symmetricDifference returns (a ∪ b) minus (a ∩ b), sorted.
func symmetricDifference(a, b []string) []string {
	inA := make(map[string]bool, len(a))
	for _, s := range a {
		inA[s] = true
	}
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}

	var diff []string
	for s := range inA {
		if !inB[s] {
			diff = append(diff, s)
		}
	}
	for s := range inB {
		if !inA[s] {
			diff = append(diff, s)
		}
	}
	sort.Strings(diff)
	return diff
}
