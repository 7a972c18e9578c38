package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"vidgen-pipeline/01_segment"
	"vidgen-pipeline/03_assets"
	"vidgen-pipeline/04_mix"
	"vidgen-pipeline/05_assemble"
	"vidgen-pipeline/06_publish"
	"vidgen-pipeline/config"
	"vidgen-pipeline/orchestrator"
	"vidgen-pipeline/types"
)

func main() {
	// Load .env (local dev only — CI uses real env)
	_ = godotenv.Load()

	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	scriptPath := "script.txt"
	if len(os.Args) > 1 {
		scriptPath = os.Args[1]
	}
	rawScript, err := os.ReadFile(scriptPath)
	if err != nil {
		log.Fatalf("Failed to read script %s: %v", scriptPath, err)
	}

	for _, dir := range []string{cfg.Paths.Output, cfg.Paths.Logs} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("Failed to create dir %s: %v", dir, err)
		}
	}

	// Create run ID and output dir for this run
	runID := uuid.NewString()[:8]
	runDir := filepath.Join(cfg.Paths.Output, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		log.Fatalf("Failed to create run dir: %v", err)
	}

	log.Printf("🎬 VidGen Pipeline starting — Run ID: %s", runID)
	log.Printf("📁 Output dir: %s", runDir)

	// Ctrl-C cancels the run; in-flight collaborator calls are abandoned
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	seg := segmenter.New(cfg, segmenter.NewGemini(cfg))
	collab := assets.Collaborators{
		Image:      assets.NewPollinations(cfg),
		Speech:     assets.NewEdgeTTS(cfg),
		Background: assets.NewLavfi(cfg),
	}

	orch := orchestrator.New(cfg, seg, collab, mix.New(cfg), assemble.New(cfg))
	orch.OnProgress(func(p types.Progress) {
		log.Printf("[pipeline] %s: %d/%d segments", p.Stage, p.CompletedSegments, p.TotalSegments)
	})

	state, err := orch.Run(ctx, string(rawScript), runDir)
	if err != nil {
		log.Printf("❌ Pipeline failed at %s: %s", state.Stage, state.Error)
		os.Exit(1)
	}

	log.Printf("✅ Pipeline complete! Video: %s (degraded segments: %d)", state.VideoFile, len(state.DegradedSegments))

	if cfg.Publish.Enabled {
		uploader := publish.New(cfg)
		videoID, videoURL, err := uploader.Run(ctx, state)
		if err != nil {
			log.Printf("⚠️  Publish failed: %v — video remains at %s", err, state.VideoFile)
			return
		}
		_ = publish.LogUpload(videoID, videoURL, state, cfg.Paths.Logs)
	}
}
