package validate_test

import (
	"net/http"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icvsb/icvsb/pkg/validate"
)

func TestEchoValidatorPassesValidPayload(t *testing.T) {
	v, err := validate.NewEchoValidator()
	require.NoError(t, err)

	type payload struct {
		Service string   `validate:"required"`
		Dataset []string `validate:"required,min=1,dive,absuri"`
	}

	assert.NoError(t, v.Validate(&payload{
		Service: "google",
		Dataset: []string{"https://img.example/cat.jpg"},
	}))
}

func TestEchoValidatorRejectsMissingRequired(t *testing.T) {
	v, err := validate.NewEchoValidator()
	require.NoError(t, err)

	type payload struct {
		Service string `validate:"required"`
	}

	err = v.Validate(&payload{})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "Service")
}

func TestEchoValidatorRejectsRelativeURI(t *testing.T) {
	v, err := validate.NewEchoValidator()
	require.NoError(t, err)

	type payload struct {
		Dataset []string `validate:"required,min=1,dive,absuri"`
	}

	err = v.Validate(&payload{Dataset: []string{"/cat.jpg"}})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Contains(t, err.Error(), "absuri")
}
