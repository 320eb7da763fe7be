package keys_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icvsb/icvsb/pkg/database"
	"github.com/icvsb/icvsb/pkg/keys"
	"github.com/icvsb/icvsb/pkg/models"
	"github.com/icvsb/icvsb/pkg/repositories"
)

func successResponse(t *testing.T, uri string, labels map[string]float64) repositories.BatchResponse {
	t.Helper()
	body, err := json.Marshal(models.ResponseEnvelope{Labels: labels, Raw: json.RawMessage(`{}`)})
	require.NoError(t, err)
	return repositories.BatchResponse{
		Response: models.Response{Body: body, Success: true},
		URI:      uri,
	}
}

func failedResponse(t *testing.T, uri string, serviceError string) repositories.BatchResponse {
	t.Helper()
	body, err := json.Marshal(models.ResponseEnvelope{ServiceError: serviceError})
	require.NoError(t, err)
	return repositories.BatchResponse{
		Response: models.Response{Body: body, Success: false},
		URI:      uri,
	}
}

func snapshotOf(t *testing.T, key *models.BenchmarkKey, labelsByURI map[string]map[string]float64) *keys.Snapshot {
	t.Helper()
	snap := &keys.Snapshot{
		Key:       key,
		Responses: make(map[string]repositories.BatchResponse, len(labelsByURI)),
	}
	for uri, labels := range labelsByURI {
		snap.URIs = append(snap.URIs, uri)
		snap.Responses[uri] = successResponse(t, uri, labels)
	}
	return snap
}

func baseKey(id int64) *models.BenchmarkKey {
	return &models.BenchmarkKey{
		ID:              id,
		ServiceID:       1,
		SeverityID:      3,
		DeltaLabels:     2,
		DeltaConfidence: 0.05,
		MaxLabels:       10,
		MinConfidence:   0.5,
	}
}

func TestValidAgainstKeyExactReproduction(t *testing.T) {
	labels := map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.91, "animal": 0.88},
		"https://img.example/u2.jpg": {"dog": 0.95},
	}
	current := snapshotOf(t, baseKey(1), labels)
	minted := snapshotOf(t, baseKey(2), labels)

	assert.Nil(t, current.ValidAgainstKey(minted))
	assert.Nil(t, current.ValidAgainstKey(current))
}

func TestValidAgainstKeyServiceMismatchCheckedFirst(t *testing.T) {
	current := snapshotOf(t, baseKey(1), map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.9},
	})
	otherKey := baseKey(2)
	otherKey.ServiceID = 2
	otherKey.MaxLabels = 99 // would also mismatch, but service wins
	other := snapshotOf(t, otherKey, map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.9},
	})

	why := current.ValidAgainstKey(other)
	require.NotNil(t, why)
	assert.Equal(t, keys.ServiceMismatch, why.Kind)
}

func TestValidAgainstKeyDatasetMismatch(t *testing.T) {
	current := snapshotOf(t, baseKey(1), map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.9},
	})
	other := snapshotOf(t, baseKey(2), map[string]map[string]float64{
		"https://img.example/u2.jpg": {"cat": 0.9},
	})

	why := current.ValidAgainstKey(other)
	require.NotNil(t, why)
	assert.Equal(t, keys.DatasetMismatch, why.Kind)
	assert.Contains(t, why.Message, "u1.jpg")
	assert.Contains(t, why.Message, "u2.jpg")
}

func TestValidAgainstKeySuccessMismatch(t *testing.T) {
	uri := "https://img.example/u1.jpg"
	current := snapshotOf(t, baseKey(1), map[string]map[string]float64{uri: {"cat": 0.9}})

	other := &keys.Snapshot{
		Key:  baseKey(2),
		URIs: []string{uri},
		Responses: map[string]repositories.BatchResponse{
			uri: failedResponse(t, uri, "timeout"),
		},
	}

	why := current.ValidAgainstKey(other)
	require.NotNil(t, why)
	assert.Equal(t, keys.SuccessMismatch, why.Kind)
}

func TestValidAgainstKeyOptionMismatches(t *testing.T) {
	labels := map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.9},
	}
	current := snapshotOf(t, baseKey(1), labels)

	maxKey := baseKey(2)
	maxKey.MaxLabels = 20
	why := current.ValidAgainstKey(snapshotOf(t, maxKey, labels))
	require.NotNil(t, why)
	assert.Equal(t, keys.MaxLabelsMismatch, why.Kind)

	minKey := baseKey(3)
	minKey.MinConfidence = 0.75
	why = current.ValidAgainstKey(snapshotOf(t, minKey, labels))
	require.NotNil(t, why)
	assert.Equal(t, keys.MinConfidenceMismatch, why.Kind)
}

func TestValidAgainstKeyLabelDrift(t *testing.T) {
	uri := "https://img.example/u1.jpg"
	current := snapshotOf(t, baseKey(1), map[string]map[string]float64{
		uri: {"cat": 0.9, "animal": 0.8, "pet": 0.7, "mammal": 0.6},
	})
	// symmetric difference {pet, mammal, whiskers, fur} = 4 > tolerance 2
	other := snapshotOf(t, baseKey(2), map[string]map[string]float64{
		uri: {"cat": 0.9, "animal": 0.8, "whiskers": 0.7, "fur": 0.6},
	})

	why := current.ValidAgainstKey(other)
	require.NotNil(t, why)
	assert.Equal(t, keys.LabelDeltaMismatch, why.Kind)
	assert.Contains(t, why.Message, uri)
	assert.Contains(t, why.Message, "whiskers")
}

func TestValidAgainstKeyConfidenceDrift(t *testing.T) {
	uri := "https://img.example/u1.jpg"
	current := snapshotOf(t, baseKey(1), map[string]map[string]float64{
		uri: {"cat": 0.90, "animal": 0.80},
	})
	other := snapshotOf(t, baseKey(2), map[string]map[string]float64{
		uri: {"cat": 0.80, "animal": 0.80},
	})

	why := current.ValidAgainstKey(other)
	require.NotNil(t, why)
	assert.Equal(t, keys.ConfidenceDeltaMismatch, why.Kind)
	require.Len(t, why.Deltas, 1)
	assert.Equal(t, uri, why.Deltas[0].URI)
	assert.Equal(t, "cat", why.Deltas[0].Label)
	assert.InDelta(t, 0.10, why.Deltas[0].Delta, 1e-9)
}

func TestValidAgainstKeyConfidenceDriftCollectsAcrossURIs(t *testing.T) {
	current := snapshotOf(t, baseKey(1), map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.90},
		"https://img.example/u2.jpg": {"dog": 0.95},
	})
	other := snapshotOf(t, baseKey(2), map[string]map[string]float64{
		"https://img.example/u1.jpg": {"cat": 0.70},
		"https://img.example/u2.jpg": {"dog": 0.70},
	})

	why := current.ValidAgainstKey(other)
	require.NotNil(t, why)
	assert.Equal(t, keys.ConfidenceDeltaMismatch, why.Kind)
	require.Len(t, why.Deltas, 2)
	// deltas come back sorted by URI then label
	assert.Equal(t, "https://img.example/u1.jpg", why.Deltas[0].URI)
	assert.Equal(t, "https://img.example/u2.jpg", why.Deltas[1].URI)
}

func TestValidAgainstKeyConfidenceWithinTolerance(t *testing.T) {
	uri := "https://img.example/u1.jpg"
	current := snapshotOf(t, baseKey(1), map[string]map[string]float64{
		uri: {"cat": 0.90},
	})
	other := snapshotOf(t, baseKey(2), map[string]map[string]float64{
		uri: {"cat": 0.87},
	})

	assert.Nil(t, current.ValidAgainstKey(other))
}

func TestValidAgainstLabels(t *testing.T) {
	key := baseKey(1)
	key.ExpectedLabels = database.JSONB[[]string]{Data: []string{"Cat", "Dog"}}
	snap := &keys.Snapshot{Key: key}

	why := snap.ValidAgainstLabels(map[string]float64{"cat": 0.9, "fish": 0.4})
	require.NotNil(t, why)
	assert.Equal(t, keys.ExpectedLabelsMismatch, why.Kind)
	assert.Contains(t, why.Message, "dog")
	assert.NotContains(t, why.Message, "cat,")

	assert.Nil(t, snap.ValidAgainstLabels(map[string]float64{"cat": 0.9, "dog": 0.8}))
}

func TestInvalidKeyErrorString(t *testing.T) {
	err := &keys.InvalidKeyError{Kind: keys.NoKeyYet, Message: "client has not completed its first benchmark"}
	assert.Equal(t, "NO_KEY_YET: client has not completed its first benchmark", err.Error())
}
