package models_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icvsb/icvsb/pkg/models"
)

func TestResponseEnvelopeDecoding(t *testing.T) {
	body, err := json.Marshal(models.ResponseEnvelope{
		Labels: map[string]float64{"cat": 0.9},
		Raw:    json.RawMessage(`{"vendor":"body"}`),
	})
	require.NoError(t, err)

	response := models.Response{Body: body, Success: true}
	assert.Equal(t, map[string]float64{"cat": 0.9}, response.Labels())
	assert.Empty(t, response.ServiceError())
}

func TestFailedResponseLabelsAreEmpty(t *testing.T) {
	body, err := json.Marshal(models.ResponseEnvelope{ServiceError: "timeout"})
	require.NoError(t, err)

	response := models.Response{Body: body, Success: false}
	assert.Empty(t, response.Labels())
	assert.Equal(t, "timeout", response.ServiceError())
}

func TestResponseWithNilBody(t *testing.T) {
	response := models.Response{Success: false}
	assert.Empty(t, response.Labels())
	assert.Empty(t, response.ServiceError())
}

func TestResponseView(t *testing.T) {
	keyID := int64(4)
	body, err := json.Marshal(models.ResponseEnvelope{Labels: map[string]float64{"dog": 0.8}})
	require.NoError(t, err)

	response := models.Response{ID: 1, RequestID: 2, BenchmarkKeyID: &keyID, Body: body, Success: true}
	view := response.View()
	assert.Equal(t, int64(1), view.ID)
	assert.Equal(t, &keyID, view.BenchmarkKeyID)
	assert.Equal(t, map[string]float64{"dog": 0.8}, view.Envelope.Labels)
}
