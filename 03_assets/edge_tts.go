package assets

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"vidgen-pipeline/config"
)

// EdgeTTS synthesizes narration by shelling out to a TTS command.
// Set TTS_COMMAND in your .env to a command accepting:
//
//	--text "..." --output path/to/file.mp3
//
// If TTS_COMMAND is not set, edge-tts (free Microsoft TTS) is used.
type EdgeTTS struct {
	voice string
}

// NewEdgeTTS creates a new speech synthesizer
func NewEdgeTTS(cfg *config.Config) *EdgeTTS {
	return &EdgeTTS{voice: cfg.Assets.Voice}
}

// Generate converts text to speech into outFile
func (e *EdgeTTS) Generate(ctx context.Context, text, outFile string) error {
	ttsCmd := strings.TrimSpace(os.Getenv("TTS_COMMAND"))
	if ttsCmd == "" {
		if _, err := exec.LookPath("edge-tts"); err != nil {
			return fmt.Errorf("no TTS engine found. Set TTS_COMMAND in .env or install edge-tts: pip install edge-tts")
		}
		ttsCmd = "edge-tts"
	}

	var cmd *exec.Cmd
	switch {
	case ttsCmd == "edge-tts":
		cmd = exec.CommandContext(ctx,
			"edge-tts",
			"--voice", e.voice,
			"--text", text,
			"--write-media", outFile,
		)

	case strings.HasSuffix(ttsCmd, ".py"):
		cmd = exec.CommandContext(ctx,
			"python3", ttsCmd,
			"--text", text,
			"--output", outFile,
		)

	default:
		cmd = exec.CommandContext(ctx,
			ttsCmd,
			"--text", text,
			"--output", outFile,
		)
	}

	cmd.Stderr = os.Stderr
	return cmd.Run()
}
