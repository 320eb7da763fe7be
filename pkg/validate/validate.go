// Package validate holds the primitive checkers used across request
// payloads: integers, unit-interval floats, cron lines, absolute URIs
// and HTTP dates.
package validate

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/robfig/cron/v3"
)

// IsInteger reports whether s parses as a base-10 integer.
func IsInteger(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

// IsPositiveFloat reports whether s parses as a float >= 0.
func IsPositiveFloat(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	return err == nil && f >= 0
}

// IsUnitInterval reports whether f lies in [0, 1].
func IsUnitInterval(f float64) bool {
	return f >= 0 && f <= 1
}

// IsCronLine reports whether s is a standard five-field cron expression.
func IsCronLine(s string) bool {
	_, err := cron.ParseStandard(s)
	return err == nil
}

// IsAbsoluteURI reports whether s is a well-formed absolute URI with a
// scheme and host.
func IsAbsoluteURI(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.IsAbs() && u.Host != ""
}

// IsHTTPDate reports whether s is an RFC 2616 HTTP-date (RFC 1123
// format or the obsolete forms net/http still accepts).
func IsHTTPDate(s string) bool {
	_, err := http.ParseTime(s)
	return err == nil
}

// Register installs the custom validations on a validator instance.
func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("cronline", func(fl validator.FieldLevel) bool {
		return IsCronLine(fl.Field().String())
	}); err != nil {
		return err
	}
	if err := v.RegisterValidation("absuri", func(fl validator.FieldLevel) bool {
		return IsAbsoluteURI(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("httpdate", func(fl validator.FieldLevel) bool {
		return IsHTTPDate(fl.Field().String())
	})
}
