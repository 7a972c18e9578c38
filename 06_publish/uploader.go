package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"vidgen-pipeline/config"
	"vidgen-pipeline/types"
)

// Uploader publishes the finished video to YouTube via Data API v3.
// It runs only after a DONE run and never changes the run status: the
// video file is already the product.
type Uploader struct {
	cfg *config.Config
}

// New creates a new Uploader
func New(cfg *config.Config) *Uploader {
	return &Uploader{cfg: cfg}
}

// Run uploads the final video; title and description come from config with
// the run id appended, and the description notes degraded segments if any
func (u *Uploader) Run(ctx context.Context, state *types.RunState) (string, string, error) {
	log.Println("[publish] Authenticating with YouTube API...")

	client, err := u.getOAuthClient(ctx)
	if err != nil {
		return "", "", fmt.Errorf("youtube auth: %w", err)
	}

	svc, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return "", "", fmt.Errorf("youtube service: %w", err)
	}

	video := u.buildVideo(state)

	f, err := os.Open(state.VideoFile)
	if err != nil {
		return "", "", fmt.Errorf("open video file: %w", err)
	}
	defer f.Close()

	fi, _ := f.Stat()
	log.Printf("[publish] Uploading %q (%.1f MB)...", video.Snippet.Title, float64(fi.Size())/1024/1024)

	call := svc.Videos.Insert([]string{"snippet", "status"}, video)
	call.NotifySubscribers(u.cfg.Publish.NotifySubscribers)
	call.Media(f)

	uploaded, err := call.Do()
	if err != nil {
		return "", "", fmt.Errorf("youtube upload: %w", err)
	}

	videoID := uploaded.Id
	videoURL := fmt.Sprintf("https://www.youtube.com/watch?v=%s", videoID)
	log.Printf("[publish] ✅ Uploaded: %s", videoURL)

	return videoID, videoURL, nil
}

// buildVideo assembles the upload metadata from config and the run state;
// the description notes degraded segments if any
func (u *Uploader) buildVideo(state *types.RunState) *youtube.Video {
	title := u.cfg.Publish.Title
	if title == "" {
		title = fmt.Sprintf("Generated video %s", state.RunID)
	}

	var desc strings.Builder
	desc.WriteString(u.cfg.Publish.Description)
	if n := len(state.DegradedSegments); n > 0 {
		desc.WriteString(fmt.Sprintf("\n\n(%d of %d segments rendered with placeholders)", n, state.TotalSegments))
	}

	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:                title,
			Description:          desc.String(),
			CategoryId:           u.cfg.Publish.CategoryID,
			DefaultLanguage:      u.cfg.Publish.DefaultLanguage,
			DefaultAudioLanguage: u.cfg.Publish.DefaultLanguage,
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus:           u.cfg.Publish.Visibility,
			SelfDeclaredMadeForKids: u.cfg.Publish.MadeForKids,
		},
	}
}

// getOAuthClient creates an OAuth2 HTTP client using env credentials
func (u *Uploader) getOAuthClient(ctx context.Context) (*http.Client, error) {
	clientID := os.Getenv("YOUTUBE_CLIENT_ID")
	clientSecret := os.Getenv("YOUTUBE_CLIENT_SECRET")
	refreshToken := os.Getenv("YOUTUBE_REFRESH_TOKEN")

	if clientID == "" || clientSecret == "" || refreshToken == "" {
		return nil, fmt.Errorf("YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set")
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{youtube.YoutubeUploadScope, youtube.YoutubeScope},
	}

	token := &oauth2.Token{
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}

	return conf.Client(ctx, token), nil
}

// LogUpload saves the upload result to the logs directory
func LogUpload(videoID, videoURL string, state *types.RunState, logDir string) error {
	entry := map[string]interface{}{
		"video_id":    videoID,
		"video_url":   videoURL,
		"run_id":      state.RunID,
		"video_file":  state.VideoFile,
		"uploaded_at": time.Now().UTC().Format(time.RFC3339),
	}

	logFile := filepath.Join(logDir, fmt.Sprintf("upload_%s.json", time.Now().Format("20060102_150405")))
	data, _ := json.MarshalIndent(entry, "", "  ")
	if err := os.WriteFile(logFile, data, 0644); err != nil {
		return err
	}

	log.Printf("[publish] Upload log saved: %s", logFile)
	return nil
}
