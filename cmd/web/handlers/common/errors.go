package common

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/contentdna/internal/apperr"
)

// ErrBadRequest returns a 400 Bad Request error.
func ErrBadRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, msg)
}

// ErrNotFound returns a 404 Not Found error.
func ErrNotFound(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusNotFound, msg)
}

// ErrInternal returns a 500 Internal Server Error.
func ErrInternal(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusInternalServerError, msg)
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StatusAndMessage resolves the status code and client message for err.
// echo errors keep their own code; everything else goes through apperr.
func StatusAndMessage(err error) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		switch m := he.Message.(type) {
		case string:
			msg = m
		case error:
			msg = m.Error()
		}
		return he.Code, msg
	}
	return apperr.HTTPStatus(err), err.Error()
}
