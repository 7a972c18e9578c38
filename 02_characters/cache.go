package characters

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"vidgen-pipeline/types"
)

// ImageSynthesizer generates one image from a prompt and a deterministic seed
type ImageSynthesizer interface {
	Generate(ctx context.Context, prompt string, seed int64, outFile string) error
}

// Cache maps a character identity to its reference image so repeated
// appearances reuse the same look. One cache per pipeline run.
type Cache struct {
	gen            ImageSynthesizer
	dir            string
	retryPromptLen int

	mu      sync.Mutex
	entries map[string]*entry
}

// entry serializes first-resolution per character id: concurrent resolvers
// of the same id queue on the entry lock, so at most one generation call
// happens per id.
type entry struct {
	mu   sync.Mutex
	done bool
	char types.Character
}

// NewCache creates a per-run cache writing reference images under dir
func NewCache(gen ImageSynthesizer, dir string, retryPromptLen int) *Cache {
	return &Cache{
		gen:            gen,
		dir:            dir,
		retryPromptLen: retryPromptLen,
		entries:        make(map[string]*entry),
	}
}

// Identity derives the stable id and generation seed for a character name.
// The name is trimmed, lowercased and whitespace-collapsed first, so the
// same name always yields the same id and seed across runs.
func Identity(name string) (string, int64) {
	normalized := strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(name))), " ")
	digest := sha256.Sum256([]byte(normalized))
	id := hex.EncodeToString(digest[:])[:12]
	seed, _ := strconv.ParseUint(hex.EncodeToString(digest[:])[:8], 16, 64)
	return id, int64(seed % (1 << 32))
}

// DeriveSeed produces a deterministic generation seed for arbitrary text
func DeriveSeed(text string) int64 {
	_, seed := Identity(text)
	return seed
}

// Resolve returns the character for name, generating its reference image on
// first resolution. It never fails: if generation fails twice the character
// is cached as unresolved and segments referencing it proceed without a
// reference image.
func (c *Cache) Resolve(ctx context.Context, name, description string) types.Character {
	id, seed := Identity(name)

	c.mu.Lock()
	e, ok := c.entries[id]
	if !ok {
		e = &entry{}
		c.entries[id] = e
	}
	c.mu.Unlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.done {
		return e.char
	}

	char := types.Character{
		ID:          id,
		Name:        strings.TrimSpace(name),
		Description: description,
		Seed:        seed,
	}

	outFile := filepath.Join(c.dir, fmt.Sprintf("character_%s.jpg", id))
	if err := c.gen.Generate(ctx, description, seed, outFile); err != nil {
		log.Printf("[characters] ⚠️  %q reference image failed: %v — retrying with simplified prompt", char.Name, err)
		if err2 := c.gen.Generate(ctx, truncate(description, c.retryPromptLen), seed, outFile); err2 != nil {
			log.Printf("[characters] ⚠️  %q unresolved: %v — segments proceed without a reference", char.Name, err2)
			char.Unresolved = true
		} else {
			char.ReferenceImage = outFile
		}
	} else {
		char.ReferenceImage = outFile
	}

	e.char = char
	e.done = true

	if !char.Unresolved {
		log.Printf("[characters] ✅ %q → %s (seed %d)", char.Name, filepath.Base(outFile), seed)
	}
	return char
}

// All returns every resolved character, ordered by id
func (c *Cache) All() []types.Character {
	c.mu.Lock()
	defer c.mu.Unlock()

	chars := make([]types.Character, 0, len(c.entries))
	for _, e := range c.entries {
		e.mu.Lock()
		if e.done {
			chars = append(chars, e.char)
		}
		e.mu.Unlock()
	}
	sort.Slice(chars, func(i, j int) bool { return chars[i].ID < chars[j].ID })
	return chars
}

// Export writes the characters manifest and copies reference images into
// dir, so a later run can reuse the same cast
func (c *Cache) Export(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	chars := c.All()
	for i := range chars {
		if chars[i].ReferenceImage == "" {
			continue
		}
		data, err := os.ReadFile(chars[i].ReferenceImage)
		if err != nil {
			log.Printf("[characters] Warning: could not read %s for export: %v", chars[i].ReferenceImage, err)
			continue
		}
		dst := filepath.Join(dir, filepath.Base(chars[i].ReferenceImage))
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return err
		}
		chars[i].ReferenceImage = dst
	}

	data, err := json.MarshalIndent(chars, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "characters.json"), data, 0644)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
