// package analysis_api provides the analysis API handlers.
package analysis_api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"thirdcoast.systems/contentdna/cmd/web/handlers/common"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/pipeline"
)

type Service interface {
	CreateAnalysis(ctx context.Context, sources []pipeline.SourceInput) (*pipeline.AnalysisView, error)
	GetAnalysis(ctx context.Context, id uuid.UUID) (*pipeline.AnalysisView, error)
	ListAnalyses(ctx context.Context, limit int) ([]*pipeline.AnalysisView, error)
	History(ctx context.Context) ([]*pipeline.AnalysisView, error)
}

// sourceValue is a link string for url sources and {data, mimeType} for
// uploaded files.
type sourceValue struct {
	URL      string `json:"-"`
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

func (v *sourceValue) UnmarshalJSON(b []byte) error {
	if s := strings.TrimSpace(string(b)); strings.HasPrefix(s, `"`) {
		return json.Unmarshal(b, &v.URL)
	}
	type plain sourceValue
	return json.Unmarshal(b, (*plain)(v))
}

type sourceRequest struct {
	Type  string      `json:"type" validate:"required,oneof=url file"`
	Value sourceValue `json:"value"`
	Label string      `json:"label" validate:"max=255"`
}

type createRequest struct {
	Sources []sourceRequest `json:"sources" validate:"required,min=1,dive"`
}

// decodeData accepts raw base64 or a data: URL and returns the bytes and
// any mime type found in the data URL prefix.
func decodeData(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	mime := ""
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, payload, found := strings.Cut(rest, ",")
		if !found {
			return nil, "", base64.CorruptInputError(0)
		}
		mime, _, _ = strings.Cut(meta, ";")
		s = payload
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", err
	}
	return b, mime, nil
}

func (r createRequest) inputs() ([]pipeline.SourceInput, error) {
	out := make([]pipeline.SourceInput, 0, len(r.Sources))
	for i, s := range r.Sources {
		in := pipeline.SourceInput{Type: db.SourceKind(s.Type), Label: strings.TrimSpace(s.Label)}
		switch in.Type {
		case db.SourceKindURL:
			in.URL = strings.TrimSpace(s.Value.URL)
		case db.SourceKindFile:
			data, mime, err := decodeData(s.Value.Data)
			if err != nil {
				return nil, common.ErrBadRequest("sources[" + strconv.Itoa(i) + "]: data is not valid base64")
			}
			in.Data = data
			in.MimeType = s.Value.MimeType
			if in.MimeType == "" {
				in.MimeType = mime
			}
		}
		out = append(out, in)
	}
	return out, nil
}

// HandleCreate runs a full analysis within the request and returns it.
func HandleCreate(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createRequest
		if err := common.BindAndValidate(c, &req); err != nil {
			return err
		}
		inputs, err := req.inputs()
		if err != nil {
			return err
		}

		v, err := svc.CreateAnalysis(c.Request().Context(), inputs)
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
		v, err := svc.GetAnalysis(c.Request().Context(), id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, v)
	}
}

func HandleList(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		limit := 0
		if raw := c.QueryParam("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				return common.ErrBadRequest("invalid limit")
			}
			limit = n
		}
		list, err := svc.ListAnalyses(c.Request().Context(), limit)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, list)
	}
}

// HandleHistory lists the newest ready analyses.
func HandleHistory(svc Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		list, err := svc.History(c.Request().Context())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, list)
	}
}
