package kie

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"thirdcoast.systems/contentdna/internal/apperr"
	"thirdcoast.systems/contentdna/internal/metrics"
)

const (
	ModelSora2TextToVideo       = "sora-2-text-to-video"
	ModelGrokImagineTextToVideo = "grok-imagine/text-to-video"
)

// VideoModels is the allow-list of text-to-video models.
var VideoModels = []string{ModelSora2TextToVideo, ModelGrokImagineTextToVideo}

var (
	grokAspectRatios = []string{"2:3", "3:2", "1:1"}
	grokModes        = []string{"fun", "normal", "spicy"}
)

const (
	defaultGrokAspectRatio = "2:3"
	defaultGrokMode        = "normal"
)

// IsVideoModel reports whether model is on the allow-list.
func IsVideoModel(model string) bool {
	return slices.Contains(VideoModels, model)
}

type VideoTaskRequest struct {
	Model           string
	Prompt          string
	AdditionalNotes string
	// AspectRatio and Mode only apply to grok-imagine; unknown values fall
	// back to 2:3 and normal.
	AspectRatio string
	Mode        string
	CallbackURL string
}

type TaskInput struct {
	Prompt      string `json:"prompt"`
	AspectRatio string `json:"aspect_ratio,omitempty"`
	Mode        string `json:"mode,omitempty"`
}

type CreateTaskPayload struct {
	Model       string    `json:"model"`
	Input       TaskInput `json:"input"`
	CallBackURL string    `json:"callBackUrl,omitempty"`
}

// BuildVideoPayload validates req and shapes the createTask body.
func BuildVideoPayload(req VideoTaskRequest, notesLabel string) (CreateTaskPayload, error) {
	prompt := req.Prompt
	if notes := strings.TrimSpace(req.AdditionalNotes); notes != "" {
		if notesLabel == "" {
			notesLabel = defaultNotesLabel
		}
		prompt = fmt.Sprintf("%s\n\n%s: %s", prompt, notesLabel, notes)
	}

	payload := CreateTaskPayload{
		Model:       req.Model,
		Input:       TaskInput{Prompt: prompt},
		CallBackURL: req.CallbackURL,
	}

	switch req.Model {
	case ModelSora2TextToVideo:
		// prompt only
	case ModelGrokImagineTextToVideo:
		ar := req.AspectRatio
		if !slices.Contains(grokAspectRatios, ar) {
			ar = defaultGrokAspectRatio
		}
		mode := req.Mode
		if !slices.Contains(grokModes, mode) {
			mode = defaultGrokMode
		}
		// Defaults are members of the lists, so this only trips if they drift.
		if !slices.Contains(grokAspectRatios, ar) || !slices.Contains(grokModes, mode) {
			return CreateTaskPayload{}, fmt.Errorf("%w: aspect_ratio=%q mode=%q", apperr.ErrInvalidOption, ar, mode)
		}
		payload.Input.AspectRatio = ar
		payload.Input.Mode = mode
	default:
		return CreateTaskPayload{}, fmt.Errorf("%w: unsupported model %q", apperr.ErrInvalidOption, req.Model)
	}
	return payload, nil
}

type TaskState string

const (
	TaskStateWaiting TaskState = "waiting"
	TaskStateSuccess TaskState = "success"
	TaskStateFail    TaskState = "fail"
)

// TaskStatus is one recordInfo reading. State carries the provider's own
// word (queuing, generating, ...); use Settled to branch on it.
type TaskStatus struct {
	TaskID     string    `json:"taskId"`
	State      TaskState `json:"state"`
	ResultURLs []string  `json:"resultUrls,omitempty"`
	FailMsg    string    `json:"failMsg,omitempty"`
	FailCode   string    `json:"failCode,omitempty"`
}

// Settled collapses State to success, fail or waiting.
func (s *TaskStatus) Settled() TaskState {
	if s == nil {
		return TaskStateWaiting
	}
	switch s.State {
	case TaskStateSuccess, TaskStateFail:
		return s.State
	}
	return TaskStateWaiting
}

// FirstResultURL returns the first result URL or "".
func (s *TaskStatus) FirstResultURL() string {
	if s == nil || len(s.ResultURLs) == 0 {
		return ""
	}
	return s.ResultURLs[0]
}

type recordInfo struct {
	TaskID     string          `json:"taskId"`
	State      string          `json:"state"`
	ResultJSON json.RawMessage `json:"resultJson"`
	FailMsg    string          `json:"failMsg"`
	FailCode   json.RawMessage `json:"failCode"`
}

// parseTaskStatus reads recordInfo data. The provider's state is kept as
// sent and only a missing one reads as waiting; resultJson may be a JSON
// string or an object.
func parseTaskStatus(taskID string, data json.RawMessage) *TaskStatus {
	st := &TaskStatus{TaskID: taskID, State: TaskStateWaiting}
	var info recordInfo
	if len(data) == 0 || json.Unmarshal(data, &info) != nil {
		return st
	}

	if state := strings.TrimSpace(info.State); state != "" {
		st.State = TaskState(state)
	}
	st.FailMsg = info.FailMsg
	st.FailCode = strings.Trim(string(info.FailCode), `"`)
	if st.FailCode == "null" {
		st.FailCode = ""
	}

	if st.State == TaskStateSuccess {
		st.ResultURLs = parseResultURLs(info.ResultJSON)
		if len(st.ResultURLs) == 0 {
			metrics.ReplyFallbacks.WithLabelValues("kie_result_json").Inc()
			slog.Warn("Kie task succeeded without result URLs", "task_id", taskID, "result_json", string(info.ResultJSON))
		}
	}
	return st
}

func parseResultURLs(raw json.RawMessage) []string {
	raw = json.RawMessage(strings.TrimSpace(string(raw)))
	if len(raw) == 0 {
		return nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil
		}
		raw = json.RawMessage(s)
	}
	var result struct {
		ResultURLs []string `json:"resultUrls"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil
	}
	return result.ResultURLs
}
