package validate

import (
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/go-playground/validator/v10"
)

// EchoValidator adapts a validator instance to echo's Validator
// interface so bound request bodies are checked against their struct
// tags before a handler sees them.
type EchoValidator struct {
	v *validator.Validate
}

// NewEchoValidator builds a validator with the custom cronline, absuri
// and httpdate validations installed.
func NewEchoValidator() (*EchoValidator, error) {
	v := validator.New()
	if err := Register(v); err != nil {
		return nil, err
	}
	return &EchoValidator{v: v}, nil
}

// Validate checks i against its validate tags and folds failures into a
// 400 naming the first offending field.
func (e *EchoValidator) Validate(i any) error {
	err := e.v.Struct(i)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		first := fieldErrs[0]
		return httperror.NewHTTPErrorf(http.StatusBadRequest,
			"field %s failed validation %q", first.Field(), first.Tag())
	}
	return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
}
