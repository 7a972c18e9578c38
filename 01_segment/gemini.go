package segmenter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"time"

	"vidgen-pipeline/config"
)

// Gemini is the production LanguageAnalyzer, calling the Generative
// Language REST API
type Gemini struct {
	cfg        *config.Config
	httpClient *http.Client
}

// NewGemini creates a new Gemini analyzer
func NewGemini(cfg *config.Config) *Gemini {
	return &Gemini{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Segmenter.TimeoutSec) * time.Second},
	}
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze asks Gemini to expand the script into a timestamped JSON breakdown
func (g *Gemini) Analyze(ctx context.Context, script string, segmentHintSec float64) (string, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY not set")
	}

	endpoint := g.cfg.Segmenter.Endpoint
	if endpoint == "" {
		endpoint = "https://generativelanguage.googleapis.com/v1beta"
	}
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", endpoint, g.cfg.Segmenter.GeminiModel, apiKey)

	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: buildPrompt(script, segmentHintSec)}}}},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBytes, &geminiResp); err != nil {
		return "", fmt.Errorf("parse gemini response: %w", err)
	}

	if geminiResp.Error != nil {
		return "", fmt.Errorf("gemini error: %s", geminiResp.Error.Message)
	}

	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	text := geminiResp.Candidates[0].Content.Parts[0].Text
	log.Printf("[segment] Received analyzer response: %d characters", len(text))
	return text, nil
}

func buildPrompt(script string, segmentHintSec float64) string {
	return fmt.Sprintf(
		"Expand the following scene script into a detailed, timestamped breakdown for video generation. "+
			"Divide the script into segments of approximately %.0f seconds each. "+
			"For each segment, provide:\n"+
			"- Start and end timestamps\n"+
			"- Scene description\n"+
			"- Narration/dialogue\n"+
			"- Background audio/music\n"+
			"- Character face/image description\n\n"+
			"Output as a JSON list, one object per segment, with keys: start, end, scene, narration, audio, image.\n\n"+
			"Script:\n%s",
		segmentHintSec, script)
}
