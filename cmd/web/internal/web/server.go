package web

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"thirdcoast.systems/contentdna/cmd/web/handlers/api/analysis_api"
	"thirdcoast.systems/contentdna/cmd/web/handlers/api/fileserver"
	"thirdcoast.systems/contentdna/cmd/web/handlers/api/script_api"
	"thirdcoast.systems/contentdna/cmd/web/handlers/api/task_api"
	"thirdcoast.systems/contentdna/cmd/web/handlers/common"
	"thirdcoast.systems/contentdna/internal/blob"
)

// Service is everything the REST surface calls into.
type Service interface {
	analysis_api.Service
	script_api.Service
}

type Options struct {
	MaxRequestBody string
	// AllowOrigins defaults to any origin.
	AllowOrigins []string
}

type Webserver struct {
	*echo.Echo
	svc        Service
	registry   task_api.Registry
	fileServer *fileserver.FileServer
	opts       Options
}

func NewWebserver(svc Service, registry task_api.Registry, blobs *blob.LocalStore, opts Options) (*Webserver, error) {
	if opts.MaxRequestBody == "" {
		opts.MaxRequestBody = "200M"
	}

	webserver := &Webserver{
		Echo:       echo.New(),
		svc:        svc,
		registry:   registry,
		fileServer: fileserver.NewFileServer(blobs),
		opts:       opts,
	}
	webserver.Validator = common.NewValidator()
	webserver.HTTPErrorHandler = errorHandler

	if err := webserver.setupMiddleware(); err != nil {
		return nil, err
	}
	if err := webserver.registerRoutes(); err != nil {
		return nil, err
	}
	return webserver, nil
}

// errorHandler renders every failure as {"error": message}.
func errorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}
	code, msg := common.StatusAndMessage(err)
	if code >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", c.Request().Method,
			"uri", c.Request().RequestURI,
			"status", code,
			"error", err,
		)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, common.ErrorResponse{Error: msg})
	}
	if err != nil {
		slog.Warn("write error response", "error", err)
	}
}

func (s *Webserver) setupMiddleware() error {
	s.HideBanner = true
	s.HidePort = true
	s.Use(middleware.BodyLimit(s.opts.MaxRequestBody))
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: s.opts.AllowOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
	}))
	s.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		// Media blobs are already compressed.
		Skipper: func(c echo.Context) bool {
			return c.Path() == "/media/*"
		},
	}))
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			switch c.Path() {
			case "/healthz", "/metrics":
				return true
			default:
				return false
			}
		},
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Info("request", fields...)
			return nil
		},
	}))
	return nil
}

func (s *Webserver) registerRoutes() error {
	api := s.Group("/api")

	api.POST("/analyses", analysis_api.HandleCreate(s.svc))
	api.GET("/analyses", analysis_api.HandleList(s.svc))
	api.GET("/analyses/history", analysis_api.HandleHistory(s.svc))
	api.GET("/analyses/:id", analysis_api.HandleGet(s.svc))

	api.POST("/scripts", script_api.HandleCreate(s.svc))
	api.GET("/scripts/video_task_status", script_api.HandleVideoTaskStatus(s.svc))
	api.GET("/scripts/:id", script_api.HandleGet(s.svc))
	api.GET("/scripts/:id/export", script_api.HandleExport(s.svc))
	api.POST("/scripts/:id/generate_media", script_api.HandleGenerateMedia(s.svc))
	api.POST("/scripts/:id/generate_video_preview", script_api.HandleGenerateVideoPreview(s.svc))

	api.GET("/video_tasks/active", task_api.HandleActive(s.registry))
	api.DELETE("/video_tasks/:task_id", task_api.HandleCancel(s.registry))

	s.GET("/media/*", s.fileServer.Handler())
	s.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Health check
	s.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	return nil
}
