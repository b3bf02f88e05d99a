package synth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// Prompt influence for generated ambience; matches the app default.
const ambientInfluence = 0.3

// Provider is the synthesis surface the cache fronts. *Client satisfies
// it; tests substitute counting stubs.
type Provider interface {
	Speech(ctx context.Context, text, voiceID string) ([]byte, error)
	SoundEffect(ctx context.Context, prompt string, durationSeconds, influence float64) ([]byte, error)
	DefaultVoice() string
}

// Cache is a content-addressed disk cache over a synthesis provider.
// Keys are derived from normalized input, so identical requests resolve
// to the same artifact without a network call. A cache entry is written
// only after the full audio body has been received; a failed synthesis
// leaves no entry, so the next identical request retries fresh.
//
// Concurrent identical requests are not de-duplicated: both may
// synthesize and the last writer wins, which is harmless because content
// for a given key is deterministic.
type Cache struct {
	dir      string
	provider Provider
	logger   *log.Logger
}

// NewCache creates the cache rooted at dir, creating the speech and
// ambient namespaces.
func NewCache(dir string, provider Provider, logger *log.Logger) (*Cache, error) {
	if logger == nil {
		logger = log.Default()
	}
	for _, sub := range []string{"speech", "ambient"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}
	return &Cache{dir: dir, provider: provider, logger: logger.With("component", "synth-cache")}, nil
}

// Synthesize returns the path to spoken audio for text, synthesizing on a
// cache miss. An empty voiceID uses the provider default.
func (c *Cache) Synthesize(ctx context.Context, text, voiceID string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyText
	}
	voice := voiceID
	if voice == "" {
		voice = c.provider.DefaultVoice()
	}

	path := c.path("speech", cacheKey(text, voice))
	if _, err := os.Stat(path); err == nil {
		c.logger.Debug("speech cache hit", "path", path)
		return path, nil
	}

	audio, err := c.provider.Speech(ctx, text, voice)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(path, audio); err != nil {
		return "", fmt.Errorf("write speech cache entry: %w", err)
	}
	c.logger.Debug("speech synthesized", "bytes", len(audio), "path", path)
	return path, nil
}

// SynthesizeAmbient returns the path to a generated ambient loop for the
// named preset and duration, synthesizing on a cache miss.
func (c *Cache) SynthesizeAmbient(ctx context.Context, preset string, durationSeconds float64) (string, error) {
	prompt, err := AmbientPrompt(preset)
	if err != nil {
		return "", err
	}

	key := cacheKey(fmt.Sprintf("%s-%g", prompt, durationSeconds), "")
	path := c.path("ambient", key)
	if _, err := os.Stat(path); err == nil {
		c.logger.Debug("ambient cache hit", "preset", preset, "path", path)
		return path, nil
	}

	audio, err := c.provider.SoundEffect(ctx, prompt, durationSeconds, ambientInfluence)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(path, audio); err != nil {
		return "", fmt.Errorf("write ambient cache entry: %w", err)
	}
	c.logger.Debug("ambient synthesized", "preset", preset, "bytes", len(audio), "path", path)
	return path, nil
}

// Clear removes every cached artifact.
func (c *Cache) Clear() error {
	for _, sub := range []string{"speech", "ambient"} {
		dir := filepath.Join(c.dir, sub)
		if err := os.RemoveAll(dir); err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) path(namespace, key string) string {
	return filepath.Join(c.dir, namespace, key+".pcm")
}

// cacheKey hashes normalized (lower-cased, trimmed) text and voice.
func cacheKey(text, voice string) string {
	normalized := strings.ToLower(strings.TrimSpace(text)) + "\x00" + strings.ToLower(strings.TrimSpace(voice))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:16])
}

// writeAtomic writes to a temp file in the target directory and renames
// it into place, so readers never observe a partial entry.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr != nil {
		os.Remove(tmp.Name())
		return werr
	}
	if cerr != nil {
		os.Remove(tmp.Name())
		return cerr
	}
	return os.Rename(tmp.Name(), path)
}
