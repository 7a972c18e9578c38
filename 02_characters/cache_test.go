package characters

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

type countingSynth struct {
	calls   atomic.Int64
	prompts struct {
		mu   sync.Mutex
		list []string
	}
	failures int64 // fail the first N calls
}

func (c *countingSynth) Generate(ctx context.Context, prompt string, seed int64, outFile string) error {
	n := c.calls.Add(1)
	c.prompts.mu.Lock()
	c.prompts.list = append(c.prompts.list, prompt)
	c.prompts.mu.Unlock()
	if n <= c.failures {
		return errors.New("image service unavailable")
	}
	return os.WriteFile(outFile, []byte("image-bytes"), 0644)
}

func TestIdentityDeterminism(t *testing.T) {
	id1, seed1 := Identity("Mara Voss")
	id2, seed2 := Identity("  mara   VOSS ")
	if id1 != id2 || seed1 != seed2 {
		t.Errorf("normalized names should share identity: (%s,%d) vs (%s,%d)", id1, seed1, id2, seed2)
	}

	id3, _ := Identity("Someone Else")
	if id3 == id1 {
		t.Error("distinct names should not collide")
	}

	if seed1 < 0 || seed1 >= 1<<32 {
		t.Errorf("seed %d out of 32-bit range", seed1)
	}
}

func TestResolveCachesPerIdentity(t *testing.T) {
	synth := &countingSynth{}
	cache := NewCache(synth, t.TempDir(), 80)

	first := cache.Resolve(context.Background(), "Mara Voss", "stern detective in a gray coat")
	second := cache.Resolve(context.Background(), "mara voss", "a totally different description")

	if got := synth.calls.Load(); got != 1 {
		t.Errorf("expected exactly 1 generation call, got %d", got)
	}
	if first.ReferenceImage != second.ReferenceImage {
		t.Errorf("cache returned different images: %q vs %q", first.ReferenceImage, second.ReferenceImage)
	}
	if second.Description != "stern detective in a gray coat" {
		t.Errorf("second resolution should return the cached character, got description %q", second.Description)
	}
}

func TestResolveConcurrent(t *testing.T) {
	synth := &countingSynth{}
	cache := NewCache(synth, t.TempDir(), 80)

	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			char := cache.Resolve(context.Background(), "Mara Voss", "stern detective")
			results[i] = char.ReferenceImage
		}(i)
	}
	wg.Wait()

	if got := synth.calls.Load(); got != 1 {
		t.Errorf("concurrent resolutions should share one generation, got %d calls", got)
	}
	for i := 1; i < len(results); i++ {
		if results[i] != results[0] {
			t.Fatalf("resolver %d got %q, resolver 0 got %q", i, results[i], results[0])
		}
	}
}

func TestResolveRetrySimplifiesPrompt(t *testing.T) {
	long := strings.Repeat("very detailed description ", 20)
	synth := &countingSynth{failures: 1}
	cache := NewCache(synth, t.TempDir(), 40)

	char := cache.Resolve(context.Background(), "Mara Voss", long)
	if char.Unresolved {
		t.Error("retry succeeded, character should be resolved")
	}
	if got := synth.calls.Load(); got != 2 {
		t.Fatalf("expected 2 calls (original + retry), got %d", got)
	}

	synth.prompts.mu.Lock()
	retryPrompt := synth.prompts.list[1]
	synth.prompts.mu.Unlock()
	if len(retryPrompt) > 40 {
		t.Errorf("retry prompt should be truncated to 40 chars, got %d", len(retryPrompt))
	}
}

func TestResolveUnresolvedFallback(t *testing.T) {
	synth := &countingSynth{failures: 2}
	cache := NewCache(synth, t.TempDir(), 80)

	char := cache.Resolve(context.Background(), "Mara Voss", "description")
	if !char.Unresolved {
		t.Error("both attempts failed, character should be marked unresolved")
	}
	if char.ReferenceImage != "" {
		t.Errorf("unresolved character should carry no image, got %q", char.ReferenceImage)
	}

	// next resolution of the same name must not retry the backend
	again := cache.Resolve(context.Background(), "Mara Voss", "description")
	if !again.Unresolved {
		t.Error("unresolved state should be cached")
	}
	if got := synth.calls.Load(); got != 2 {
		t.Errorf("unresolved entries should be cached too, got %d calls", got)
	}
}

func TestExport(t *testing.T) {
	synth := &countingSynth{}
	cache := NewCache(synth, t.TempDir(), 80)

	cache.Resolve(context.Background(), "Mara Voss", "detective")
	cache.Resolve(context.Background(), "Theo Park", "witness")

	exportDir := t.TempDir()
	if err := cache.Export(exportDir); err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	manifest := filepath.Join(exportDir, "characters.json")
	data, err := os.ReadFile(manifest)
	if err != nil {
		t.Fatalf("manifest not written: %v", err)
	}
	for _, name := range []string{"Mara Voss", "Theo Park"} {
		if !strings.Contains(string(data), name) {
			t.Errorf("manifest missing %q", name)
		}
	}

	if len(cache.All()) != 2 {
		t.Errorf("expected 2 cached characters, got %d", len(cache.All()))
	}
}
