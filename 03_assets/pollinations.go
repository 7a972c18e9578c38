package assets

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"vidgen-pipeline/config"
)

// Pollinations generates AI images via Pollinations.ai (free, no key needed)
type Pollinations struct {
	baseURL    string
	width      int
	height     int
	httpClient *http.Client
}

// NewPollinations creates a new image synthesizer
func NewPollinations(cfg *config.Config) *Pollinations {
	return &Pollinations{
		baseURL:    "https://image.pollinations.ai",
		width:      cfg.Assets.ImageWidth,
		height:     cfg.Assets.ImageHeight,
		httpClient: &http.Client{Timeout: time.Duration(cfg.Assets.TimeoutSec) * time.Second},
	}
}

// NewPollinationsWithBase overrides the endpoint, used in tests
func NewPollinationsWithBase(cfg *config.Config, baseURL string) *Pollinations {
	p := NewPollinations(cfg)
	p.baseURL = baseURL
	return p
}

// Generate fetches one image for the prompt, biased by the deterministic
// seed so the same prompt+seed reproduces the same look
func (p *Pollinations) Generate(ctx context.Context, prompt string, seed int64, outFile string) error {
	imageURL := fmt.Sprintf(
		"%s/prompt/%s?width=%d&height=%d&nologo=true&model=flux&seed=%d",
		p.baseURL, url.PathEscape(prompt), p.width, p.height, seed,
	)

	req, err := http.NewRequestWithContext(ctx, "GET", imageURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; VidGenPipeline/1.0)")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from Pollinations", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	// Validate it's actually an image (not an error HTML page)
	if len(data) < 100 {
		return fmt.Errorf("response too small (%d bytes) — likely an error", len(data))
	}

	return os.WriteFile(outFile, data, 0644)
}
