package task_api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"thirdcoast.systems/contentdna/cmd/web/handlers/common"
)

// HandleCancel stops polling a task. The job row stays waiting, so the next
// start resumes it.
func HandleCancel(reg Registry) echo.HandlerFunc {
	return func(c echo.Context) error {
		taskID := strings.TrimSpace(c.Param("task_id"))
		if taskID == "" {
			return common.ErrBadRequest("task_id is required")
		}
		if !reg.Cancel(taskID) {
			return common.ErrNotFound("no running task " + taskID)
		}
		slog.Info("Video task polling cancelled", "task_id", taskID)
		return c.JSON(http.StatusOK, map[string]any{
			"task_id":   taskID,
			"cancelled": true,
		})
	}
}
