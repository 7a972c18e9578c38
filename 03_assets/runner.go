package assets

import (
	"context"
	"os"
	"os/exec"
)

// Runner executes one media-tool invocation. The default implementation
// shells out to ffmpeg; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, args ...string) error
}

// FFmpeg is the exec-backed Runner
type FFmpeg struct{}

func (FFmpeg) Run(ctx context.Context, args ...string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
