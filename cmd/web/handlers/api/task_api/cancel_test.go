package task_api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"thirdcoast.systems/contentdna/internal/reconcile"
)

func cancelContext(taskID string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodDelete, "/api/video_tasks/"+url.PathEscape(taskID), nil), rec)
	c.SetParamNames("task_id")
	c.SetParamValues(taskID)
	return c, rec
}

func TestHandleCancel(t *testing.T) {
	reg := stubRegistry{{TaskID: "t-1"}}

	c, rec := cancelContext("t-1")
	require.NoError(t, HandleCancel(reg)(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		TaskID    string `json:"task_id"`
		Cancelled bool   `json:"cancelled"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "t-1", body.TaskID)
	require.True(t, body.Cancelled)
}

func TestHandleCancel_UnknownTask(t *testing.T) {
	c, _ := cancelContext("t-9")
	err := HandleCancel(stubRegistry{{TaskID: "t-1"}})(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusNotFound, he.Code)
	require.Equal(t, "no running task t-9", he.Message)
}

func TestHandleCancel_EmptyID(t *testing.T) {
	c, _ := cancelContext(" ")
	err := HandleCancel(stubRegistry(nil))(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusBadRequest, he.Code)
}

var _ Registry = (*reconcile.Registry)(nil)
