// package task_api exposes the video job reconciler.
package task_api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/contentdna/internal/reconcile"
)

type Registry interface {
	Active() []reconcile.TaskInfo
	Cancel(taskID string) bool
}

// HandleActive lists the jobs currently being polled.
func HandleActive(reg Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]any{
			"tasks": reg.Active(),
		})
	}
}
