package common

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RequireUUIDParam extracts a UUID route parameter or returns a 400 error.
func RequireUUIDParam(c echo.Context, param string) (uuid.UUID, error) {
	u, err := uuid.Parse(c.Param(param))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+param)
	}
	return u, nil
}

// BindAndValidate decodes the request body into req and runs the
// registered validator over it.
func BindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return ErrBadRequest("invalid json")
	}
	if err := c.Validate(req); err != nil {
		return err
	}
	return nil
}
