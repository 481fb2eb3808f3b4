// package script_api provides the script and segment media API handlers.
package script_api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"thirdcoast.systems/contentdna/cmd/web/handlers/common"
	"thirdcoast.systems/contentdna/internal/pipeline"
)

type Service interface {
	CreateScript(ctx context.Context, analysisID uuid.UUID, topic string) (*pipeline.ScriptView, error)
	GetScript(ctx context.Context, id uuid.UUID) (*pipeline.ScriptView, error)
	GenerateMedia(ctx context.Context, scriptID, segmentID uuid.UUID) (*pipeline.SegmentView, error)
	GenerateVideoPreview(ctx context.Context, scriptID uuid.UUID, req pipeline.PreviewRequest) (*pipeline.PreviewResult, error)
	VideoTaskStatus(ctx context.Context, taskID string) (*pipeline.TaskStatusView, error)
	ExportScript(ctx context.Context, id uuid.UUID, format pipeline.ExportFormat) (*pipeline.Document, error)
}

type createRequest struct {
	AnalysisID uuid.UUID `json:"analysis_id" validate:"required"`
	Topic      string    `json:"topic" validate:"required,max=500"`
}

func HandleCreate(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createRequest
		if err := common.BindAndValidate(c, &req); err != nil {
			return err
		}
		v, err := svc.CreateScript(c.Request().Context(), req.AnalysisID, req.Topic)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusCreated, v)
	}
}

func HandleGet(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}
		v, err := svc.GetScript(c.Request().Context(), id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, v)
	}
}

type mediaRequest struct {
	SegmentID uuid.UUID `json:"segment_id" validate:"required"`
}

// HandleGenerateMedia runs the image, video and speech stages for one
// segment and returns the updated segment.
func HandleGenerateMedia(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}
		var req mediaRequest
		if err := common.BindAndValidate(c, &req); err != nil {
			return err
		}
		v, err := svc.GenerateMedia(c.Request().Context(), id, req.SegmentID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, v)
	}
}

type previewRequest struct {
	SegmentIDs      []uuid.UUID `json:"segment_ids"`
	Model           string      `json:"model"`
	AdditionalNotes string      `json:"additional_notes" validate:"max=2000"`
	AspectRatio     string      `json:"aspect_ratio"`
	Mode            string      `json:"mode"`
}

// HandleGenerateVideoPreview submits an asynchronous video job and returns
// 202 with its task id.
func HandleGenerateVideoPreview(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}
		var req previewRequest
		if err := common.BindAndValidate(c, &req); err != nil {
			return err
		}
		res, err := svc.GenerateVideoPreview(c.Request().Context(), id, pipeline.PreviewRequest{
			SegmentIDs:      req.SegmentIDs,
			Model:           req.Model,
			AdditionalNotes: req.AdditionalNotes,
			AspectRatio:     req.AspectRatio,
			Mode:            req.Mode,
		})
		if err != nil {
			return err
		}
		return c.JSON(http.StatusAccepted, res)
	}
}

func HandleVideoTaskStatus(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		taskID := c.QueryParam("task_id")
		if taskID == "" {
			return common.ErrBadRequest("task_id is required")
		}
		v, err := svc.VideoTaskStatus(c.Request().Context(), taskID)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, v)
	}
}

// HandleExport renders the script document, html unless ?format=md.
func HandleExport(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := common.RequireUUIDParam(c, "id")
		if err != nil {
			return err
		}
		format, err := pipeline.ParseExportFormat(c.QueryParam("format"))
		if err != nil {
			return err
		}
		doc, err := svc.ExportScript(c.Request().Context(), id, format)
		if err != nil {
			return err
		}

		disposition := "inline"
		if c.QueryParam("download") != "" {
			disposition = "attachment"
		}
		c.Response().Header().Set(echo.HeaderContentDisposition,
			fmt.Sprintf("%s; filename*=UTF-8''%s", disposition, url.PathEscape(doc.Filename)))
		return c.Blob(http.StatusOK, doc.ContentType, doc.Body)
	}
}
