package application

import (
	"context"
	"fmt"
	"log/slog"

	"thirdcoast.systems/contentdna/internal/blob"
	"thirdcoast.systems/contentdna/internal/config"
	"thirdcoast.systems/contentdna/internal/db"
	"thirdcoast.systems/contentdna/internal/fetcher"
	"thirdcoast.systems/contentdna/internal/gemini"
	"thirdcoast.systems/contentdna/internal/kie"
	"thirdcoast.systems/contentdna/internal/pipeline"
	"thirdcoast.systems/contentdna/internal/reconcile"
	"thirdcoast.systems/contentdna/internal/scriptgen"
	"thirdcoast.systems/contentdna/pkg/utils/language"
)

// Clients holds the provider clients. They are built once at startup and
// shared by every request.
type Clients struct {
	Gemini  *gemini.Client
	Scripts scriptgen.Generator
	Kie     *kie.Client
	Fetcher *fetcher.Fetcher
	Blobs   *blob.LocalStore
}

func NewClients(ctx context.Context, conf config.Config) (*Clients, error) {
	gc, err := gemini.NewClient(ctx, gemini.Options{
		APIKey:        conf.Gemini.APIKey,
		AnalysisModel: conf.Gemini.AnalysisModel,
		ScriptModel:   conf.Gemini.ScriptModel,
		ImageModel:    conf.Gemini.ImageModel,
		VideoModel:    conf.Gemini.VideoModel,
		TTSModel:      conf.Gemini.TTSModel,
		TTSVoice:      conf.Gemini.TTSVoice,
		Language:      language.Name(conf.Gemini.AnalysisLanguage),
	})
	if err != nil {
		return nil, err
	}

	var scripts scriptgen.Generator = gc
	if conf.Script.Provider == "openai" {
		scripts = scriptgen.NewOpenAIGenerator(scriptgen.OpenAIOptions{
			APIKey:  conf.Script.OpenAIAPIKey,
			BaseURL: conf.Script.OpenAIBaseURL,
			Model:   conf.Script.OpenAIModel,
			Timeout: conf.Pipeline.AnalysisTimeout,
		})
	}

	maxBytes, err := conf.Fetcher.MaxDownloadBytes()
	if err != nil {
		return nil, err
	}

	blobs, err := blob.NewLocalStore(conf.Media.Root, conf.Media.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("open media root: %w", err)
	}

	slog.Info("Provider clients ready",
		"script_provider", conf.Script.Provider,
		"kie_base_url", conf.Kie.BaseURL,
		"media_root", blobs.Root,
	)
	return &Clients{
		Gemini:  gc,
		Scripts: scripts,
		Kie: kie.NewClient(kie.Options{
			BaseURL:         conf.Kie.BaseURL,
			APIKey:          conf.Kie.APIKey,
			Timeout:         conf.Pipeline.ProviderTimeout,
			DownloadTimeout: conf.Pipeline.DownloadTimeout,
		}),
		Fetcher: fetcher.New(fetcher.Options{
			YtdlpPath:            conf.Fetcher.YtdlpPath,
			CookiesFile:          conf.Fetcher.CookiesFile,
			InstagramCookiesFile: conf.Fetcher.InstagramCookiesFile,
			MaxBytes:             maxBytes,
		}),
		Blobs: blobs,
	}, nil
}

// NewRegistry builds the video job reconciler on top of the Kie client.
// Finished videos are archived into the media store.
func (c *Clients) NewRegistry(store db.Store, conf config.Config) *reconcile.Registry {
	return reconcile.New(store, c.Kie, reconcile.Options{
		Interval:    conf.Pipeline.ReconcileInterval,
		MaxAttempts: conf.Pipeline.ReconcileMaxAttempts,
		Downloader:  c.Kie,
		Blobs:       c.Blobs,
	})
}

func (c *Clients) NewOrchestrator(store db.Store, rec pipeline.Reconciler, conf config.Config) *pipeline.Orchestrator {
	return pipeline.New(pipeline.Deps{
		Store:      store,
		Fetcher:    c.Fetcher,
		Analyzer:   c.Gemini,
		Scripts:    c.Scripts,
		Media:      c.Gemini,
		Tasks:      c.Kie,
		Blobs:      c.Blobs,
		Reconciler: rec,
	}, pipeline.Options{
		AnalysisTimeout: conf.Pipeline.AnalysisTimeout,
		HistoryLimit:    conf.Pipeline.HistoryLimit,
		CallbackURL:     conf.Kie.CallbackURL,
	})
}
