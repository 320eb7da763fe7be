package validate_test

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icvsb/icvsb/pkg/validate"
)

func TestIsInteger(t *testing.T) {
	assert.True(t, validate.IsInteger("42"))
	assert.True(t, validate.IsInteger("-7"))
	assert.False(t, validate.IsInteger("4.2"))
	assert.False(t, validate.IsInteger("forty-two"))
	assert.False(t, validate.IsInteger(""))
}

func TestIsPositiveFloat(t *testing.T) {
	assert.True(t, validate.IsPositiveFloat("0"))
	assert.True(t, validate.IsPositiveFloat("0.5"))
	assert.False(t, validate.IsPositiveFloat("-0.5"))
	assert.False(t, validate.IsPositiveFloat("half"))
}

func TestIsUnitInterval(t *testing.T) {
	assert.True(t, validate.IsUnitInterval(0))
	assert.True(t, validate.IsUnitInterval(0.5))
	assert.True(t, validate.IsUnitInterval(1))
	assert.False(t, validate.IsUnitInterval(-0.01))
	assert.False(t, validate.IsUnitInterval(1.01))
}

func TestIsCronLine(t *testing.T) {
	assert.True(t, validate.IsCronLine("0 0 * * 0"))
	assert.True(t, validate.IsCronLine("*/5 * * * *"))
	assert.False(t, validate.IsCronLine("every sunday"))
	assert.False(t, validate.IsCronLine("0 0 * *"))
}

func TestIsAbsoluteURI(t *testing.T) {
	assert.True(t, validate.IsAbsoluteURI("https://example.com/image.jpg"))
	assert.True(t, validate.IsAbsoluteURI("http://example.com"))
	assert.False(t, validate.IsAbsoluteURI("/image.jpg"))
	assert.False(t, validate.IsAbsoluteURI("example.com/image.jpg"))
	assert.False(t, validate.IsAbsoluteURI("mailto:nobody@example.com"))
}

func TestIsHTTPDate(t *testing.T) {
	assert.True(t, validate.IsHTTPDate("Sun, 06 Nov 1994 08:49:37 GMT"))
	assert.False(t, validate.IsHTTPDate("2026-08-24T00:00:00Z"))
	assert.False(t, validate.IsHTTPDate("yesterday"))
}

func TestRegister(t *testing.T) {
	v := validator.New()
	require.NoError(t, validate.Register(v))

	type payload struct {
		Schedule string `validate:"cronline"`
		Callback string `validate:"absuri"`
		Since    string `validate:"httpdate"`
	}

	assert.NoError(t, v.Struct(payload{
		Schedule: "0 0 * * 0",
		Callback: "https://hooks.example/done",
		Since:    "Sun, 06 Nov 1994 08:49:37 GMT",
	}))
	assert.Error(t, v.Struct(payload{
		Schedule: "not cron",
		Callback: "https://hooks.example/done",
		Since:    "Sun, 06 Nov 1994 08:49:37 GMT",
	}))
}
