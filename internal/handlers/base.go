package handlers

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// ParseID parses a positive integer id from a path parameter
func ParseID(c echo.Context, param string) (int64, error) {
	idStr := c.Param(param)
	if idStr == "" {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "missing "+param)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: must be a positive integer", param)
	}

	return id, nil
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// CreatedResponse returns a 201 Created with data
func CreatedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, data)
}

// AcceptedResponse returns a 202 Accepted with data
func AcceptedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusAccepted, data)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// UnprocessableEntity returns a 422 Unprocessable Entity error
func UnprocessableEntity(message string) error {
	return httperror.NewHTTPError(http.StatusUnprocessableEntity, message)
}
