package handlers

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"
)

// RequireForm extracts a required form field from the request
func RequireForm(c echo.Context, field string) (string, error) {
	value := c.FormValue(field)
	if value == "" {
		return "", httperror.NewHTTPError(http.StatusBadRequest, "missing "+field)
	}
	return value, nil
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// BadRequest returns a 400 Bad Request error
func BadRequest(message string) error {
	return httperror.NewHTTPError(http.StatusBadRequest, message)
}

// BadGateway returns a 502 Bad Gateway error
func BadGateway(message string) error {
	return httperror.NewHTTPError(http.StatusBadGateway, message)
}
