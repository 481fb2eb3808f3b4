package gemini

import (
	"bytes"
	_ "embed"
	"fmt"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed prompts.yaml
var promptsYAML []byte

type catalogue struct {
	Analysis struct {
		System                string `yaml:"system"`
		Instruction           string `yaml:"instruction"`
		LinkPrefix            string `yaml:"link_prefix"`
		TranscriptDescription string `yaml:"transcript_description"`
		PatternsDescription   string `yaml:"patterns_description"`
	} `yaml:"analysis"`
	ImpactLevels map[string][]string `yaml:"impact_levels"`
	Script       struct {
		System string `yaml:"system"`
	} `yaml:"script"`
	Media struct {
		SpeechPrefix string `yaml:"speech_prefix"`
		VideoPrompt  string `yaml:"video_prompt"`
	} `yaml:"media"`
}

type prompts struct {
	catalogue
	analysisSystem *template.Template
	scriptSystem   *template.Template
	videoPrompt    *template.Template
}

func loadPrompts() (*prompts, error) {
	var c catalogue
	if err := yaml.Unmarshal(promptsYAML, &c); err != nil {
		return nil, fmt.Errorf("parse prompts.yaml: %w", err)
	}
	p := &prompts{catalogue: c}

	var err error
	if p.analysisSystem, err = template.New("analysis").Parse(c.Analysis.System); err != nil {
		return nil, fmt.Errorf("parse analysis prompt: %w", err)
	}
	if p.scriptSystem, err = template.New("script").Parse(c.Script.System); err != nil {
		return nil, fmt.Errorf("parse script prompt: %w", err)
	}
	if p.videoPrompt, err = template.New("video").Parse(c.Media.VideoPrompt); err != nil {
		return nil, fmt.Errorf("parse video prompt: %w", err)
	}
	return p, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// impactLevels falls back to English for languages without a list.
func (p *prompts) impactLevels(language string) []string {
	if levels, ok := p.ImpactLevels[language]; ok && len(levels) > 0 {
		return levels
	}
	return p.ImpactLevels["English"]
}
