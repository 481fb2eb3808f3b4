package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/genai"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/metrics"
	"thirdcoast.systems/contentdna/pkg/retry"
)

// Speech output format of the TTS models.
const (
	SpeechSampleRate = 24000
	speechChannels   = 1
	speechBitDepth   = 16
)

type Image struct {
	Data     []byte
	MIMEType string
}

// GenerateImage renders one still for a segment's visual plan.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (*Image, error) {
	policy := c.retry
	policy.OnRetry = metrics.RetryHook("gemini_image")
	return retry.Do(ctx, policy, func(ctx context.Context) (*Image, error) {
		start := time.Now()
		resp, err := c.models.GenerateImages(ctx, c.opts.ImageModel, prompt, &genai.GenerateImagesConfig{
			NumberOfImages: 1,
			OutputMIMEType: "image/png",
		})
		metrics.ObserveProvider("gemini", "image", start, err)
		if err != nil {
			return nil, &apperr.ProviderError{Provider: "gemini", Op: "generate image", Err: err}
		}
		if resp == nil || len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil ||
			len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
			return nil, &apperr.ProviderError{Provider: "gemini", Op: "generate image", Message: "no image returned"}
		}
		img := resp.GeneratedImages[0].Image
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return &Image{Data: img.ImageBytes, MIMEType: mime}, nil
	})
}

// GenerateVideo animates a still with Veo and waits for the long-running
// operation. It returns the provider-hosted video URI.
func (c *Client) GenerateVideo(ctx context.Context, prompt string, still *Image) (string, error) {
	var image *genai.Image
	if still != nil && len(still.Data) > 0 {
		image = &genai.Image{ImageBytes: still.Data, MIMEType: still.MIMEType}
	}

	start := time.Now()
	op, err := c.models.GenerateVideos(ctx, c.opts.VideoModel, prompt, image, &genai.GenerateVideosConfig{})
	if err != nil {
		metrics.ObserveProvider("gemini", "video", start, err)
		return "", &apperr.ProviderError{Provider: "gemini", Op: "generate video", Err: err}
	}

	uri, err := c.waitForVideo(ctx, op)
	metrics.ObserveProvider("gemini", "video", start, err)
	if err != nil {
		return "", err
	}
	slog.Debug("Gemini video ready", "uri", uri, "latency", time.Since(start))
	return uri, nil
}

func (c *Client) waitForVideo(ctx context.Context, op *genai.GenerateVideosOperation) (string, error) {
	for attempt := 0; ; attempt++ {
		if op == nil {
			return "", &apperr.ProviderError{Provider: "gemini", Op: "generate video", Message: "no operation returned"}
		}
		if op.Done {
			return videoURI(op)
		}
		if attempt >= c.opts.VideoPollAttempts {
			return "", &apperr.ProviderError{Provider: "gemini", Op: "generate video", Message: "timed out waiting for operation " + op.Name}
		}

		timer := time.NewTimer(c.opts.VideoPollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", ctx.Err()
		case <-timer.C:
		}

		next, err := c.operations.GetVideosOperation(ctx, op, nil)
		if err != nil {
			return "", &apperr.ProviderError{Provider: "gemini", Op: "poll video", Err: err}
		}
		op = next
	}
}

func videoURI(op *genai.GenerateVideosOperation) (string, error) {
	if len(op.Error) > 0 {
		return "", &apperr.ProviderError{Provider: "gemini", Op: "generate video", Message: fmt.Sprint(op.Error["message"])}
	}
	if op.Response == nil || len(op.Response.GeneratedVideos) == 0 || op.Response.GeneratedVideos[0].Video == nil ||
		op.Response.GeneratedVideos[0].Video.URI == "" {
		return "", &apperr.ProviderError{Provider: "gemini", Op: "generate video", Message: "no video returned"}
	}
	return op.Response.GeneratedVideos[0].Video.URI, nil
}

// GenerateSpeech voices text and returns a WAV file.
func (c *Client) GenerateSpeech(ctx context.Context, text string) ([]byte, error) {
	cfg := &genai.GenerateContentConfig{
		ResponseModalities: []string{string(genai.ModalityAudio)},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: c.opts.TTSVoice},
			},
		},
	}
	contents := genai.Text(c.prompts.Media.SpeechPrefix + text)

	policy := c.retry
	policy.OnRetry = metrics.RetryHook("gemini_speech")
	pcm, err := retry.Do(ctx, policy, func(ctx context.Context) ([]byte, error) {
		start := time.Now()
		resp, err := c.models.GenerateContent(ctx, c.opts.TTSModel, contents, cfg)
		metrics.ObserveProvider("gemini", "speech", start, err)
		if err != nil {
			return nil, &apperr.ProviderError{Provider: "gemini", Op: "generate speech", Err: err}
		}
		return firstInlineData(resp), nil
	})
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, &apperr.ProviderError{Provider: "gemini", Op: "generate speech", Message: "no audio returned"}
	}
	return WAV(pcm, SpeechSampleRate), nil
}

// VideoPrompt renders the Veo instruction for a segment.
func (c *Client) VideoPrompt(visual, audio string) (string, error) {
	return render(c.prompts.videoPrompt, map[string]string{"Visual": visual, "Audio": audio})
}

func firstInlineData(resp *genai.GenerateContentResponse) []byte {
	if resp == nil {
		return nil
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part != nil && part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return part.InlineData.Data
			}
		}
	}
	return nil
}
