package gemini

import "google.golang.org/genai"

func str() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }

func strList() *genai.Schema {
	return &genai.Schema{Type: genai.TypeArray, Items: str()}
}

func analysisSchema(p *prompts, language string) *genai.Schema {
	transcriptItem := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"start": str(),
			"end":   str(),
			"text":  str(),
		},
		Required: []string{"start", "end", "text"},
	}
	structureItem := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"segment":     str(),
			"start":       str(),
			"end":         str(),
			"description": str(),
		},
		Required: []string{"segment", "start", "end", "description"},
	}
	passport := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"structure":       {Type: genai.TypeArray, Items: structureItem},
			"speech_rate_wpm": {Type: genai.TypeNumber},
			"catchphrases":    strList(),
			"fillers":         strList(),
			"sentiment":       str(),
			"tone_tags":       strList(),
			"visual_context":  strList(),
		},
		Required: []string{"structure", "speech_rate_wpm", "catchphrases", "fillers", "sentiment", "tone_tags", "visual_context"},
	}
	pattern := &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name":              str(),
			"description":       str(),
			"impact":            {Type: genai.TypeString, Enum: p.impactLevels(language)},
			"evidence_segments": strList(),
		},
		Required: []string{"name", "description", "impact", "evidence_segments"},
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"transcript": {
				Type:        genai.TypeArray,
				Items:       transcriptItem,
				Description: p.Analysis.TranscriptDescription,
			},
			"stylePassport": passport,
			"patterns": {
				Type:        genai.TypeArray,
				Items:       pattern,
				Description: p.Analysis.PatternsDescription,
			},
		},
		Required: []string{"transcript", "stylePassport", "patterns"},
	}
}

func scriptSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"timeframe": str(),
				"visual":    str(),
				"audio":     str(),
			},
			Required: []string{"timeframe", "visual", "audio"},
		},
	}
}
