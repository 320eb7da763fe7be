package database_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icvsb/icvsb/pkg/database"
)

func TestJSONBScanBytes(t *testing.T) {
	var col database.JSONB[[]string]
	require.NoError(t, col.Scan([]byte(`["cat","dog"]`)))
	assert.Equal(t, []string{"cat", "dog"}, col.Data)
}

func TestJSONBScanString(t *testing.T) {
	// sqlite hands json columns back as TEXT
	var col database.JSONB[[]string]
	require.NoError(t, col.Scan(`["cat"]`))
	assert.Equal(t, []string{"cat"}, col.Data)
}

func TestJSONBScanNil(t *testing.T) {
	var col database.JSONB[[]string]
	require.NoError(t, col.Scan(nil))
	assert.Nil(t, col.Data)
}

func TestJSONBValueRoundTrip(t *testing.T) {
	col := database.JSONB[[]string]{Data: []string{"cat", "dog"}}
	value, err := col.Value()
	require.NoError(t, err)

	var back database.JSONB[[]string]
	require.NoError(t, back.Scan(value))
	assert.Equal(t, col.Data, back.Data)
}
