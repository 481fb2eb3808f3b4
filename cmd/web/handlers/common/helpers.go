package common

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Validator adapts go-playground/validator to echo.Validator.
type Validator struct {
	v *validator.Validate
}

// NewValidator reports fields by their json names.
func NewValidator() *Validator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate returns a 400 naming the first failing field.
func (cv *Validator) Validate(i any) error {
	err := cv.v.Struct(i)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		field := fe.Field()
		msg := fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
		if fe.Tag() == "required" {
			msg = field + " is required"
		}
		return echo.NewHTTPError(http.StatusBadRequest, msg)
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}
