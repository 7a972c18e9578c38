package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Segmenter  SegmenterConfig  `yaml:"segmenter"`
	Characters CharactersConfig `yaml:"characters"`
	Assets     AssetsConfig     `yaml:"assets"`
	Mix        MixConfig        `yaml:"mix"`
	Assemble   AssembleConfig   `yaml:"assemble"`
	Publish    PublishConfig    `yaml:"publish"`
	Paths      PathsConfig      `yaml:"paths"`
}

type SegmenterConfig struct {
	GeminiModel        string  `yaml:"gemini_model"`
	Endpoint           string  `yaml:"endpoint"` // override for testing; empty = Google API
	SegmentDurationSec float64 `yaml:"segment_duration_sec"`
	TimeoutSec         int     `yaml:"timeout_sec"`
}

type CharactersConfig struct {
	RetryPromptLen int  `yaml:"retry_prompt_len"`
	Export         bool `yaml:"export"`
}

type AssetsConfig struct {
	Concurrency int    `yaml:"concurrency"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	SampleRate  int    `yaml:"sample_rate"`
	Voice       string `yaml:"voice"`
	ImageWidth  int    `yaml:"image_width"`
	ImageHeight int    `yaml:"image_height"`
}

type MixConfig struct {
	NarrationVolume  float64 `yaml:"narration_volume"`
	BackgroundVolume float64 `yaml:"background_volume"`
}

type AssembleConfig struct {
	Width              int     `yaml:"width"`
	Height             int     `yaml:"height"`
	FPS                int     `yaml:"fps"`
	Transition         string  `yaml:"transition"`
	TransitionSec      float64 `yaml:"transition_sec"`
	KenBurnsZoomFactor float64 `yaml:"ken_burns_zoom_factor"`
}

type PublishConfig struct {
	Enabled           bool   `yaml:"enabled"`
	Title             string `yaml:"title"`
	Description       string `yaml:"description"`
	Visibility        string `yaml:"visibility"`
	CategoryID        string `yaml:"category_id"`
	DefaultLanguage   string `yaml:"default_language"`
	NotifySubscribers bool   `yaml:"notify_subscribers"`
	MadeForKids       bool   `yaml:"made_for_kids"`
}

type PathsConfig struct {
	Output string `yaml:"output"`
	Logs   string `yaml:"logs"`
}

// Load reads config.yaml and returns a Config struct with defaults applied
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills in zero values so a sparse config still runs
func (c *Config) ApplyDefaults() {
	if c.Segmenter.GeminiModel == "" {
		c.Segmenter.GeminiModel = "gemini-2.0-flash-001"
	}
	if c.Segmenter.SegmentDurationSec <= 0 {
		c.Segmenter.SegmentDurationSec = 5
	}
	if c.Segmenter.TimeoutSec <= 0 {
		c.Segmenter.TimeoutSec = 60
	}
	if c.Characters.RetryPromptLen <= 0 {
		c.Characters.RetryPromptLen = 80
	}
	if c.Assets.Concurrency <= 0 {
		c.Assets.Concurrency = 3
	}
	if c.Assets.TimeoutSec <= 0 {
		c.Assets.TimeoutSec = 90
	}
	if c.Assets.SampleRate <= 0 {
		c.Assets.SampleRate = 44100
	}
	if c.Assets.Voice == "" {
		c.Assets.Voice = "en-US-GuyNeural"
	}
	if c.Assets.ImageWidth <= 0 {
		c.Assets.ImageWidth = 1920
	}
	if c.Assets.ImageHeight <= 0 {
		c.Assets.ImageHeight = 1080
	}
	if c.Mix.NarrationVolume <= 0 {
		c.Mix.NarrationVolume = 1.0
	}
	if c.Mix.BackgroundVolume <= 0 {
		// background sits under narration so speech stays intelligible
		c.Mix.BackgroundVolume = 0.3
	}
	if c.Assemble.Width <= 0 {
		c.Assemble.Width = 1920
	}
	if c.Assemble.Height <= 0 {
		c.Assemble.Height = 1080
	}
	if c.Assemble.FPS <= 0 {
		c.Assemble.FPS = 30
	}
	if c.Assemble.Transition == "" {
		c.Assemble.Transition = "fade"
	}
	if c.Assemble.TransitionSec <= 0 {
		c.Assemble.TransitionSec = 0.5
	}
	if c.Paths.Output == "" {
		c.Paths.Output = "outputs"
	}
	if c.Paths.Logs == "" {
		c.Paths.Logs = "logs"
	}
}
