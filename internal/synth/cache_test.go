package synth

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/charmbracelet/log"
)

// countingProvider serves canned audio and counts synthesis calls.
type countingProvider struct {
	mu       sync.Mutex
	speech   int
	effects  int
	fail     error
	response []byte
}

func (p *countingProvider) Speech(_ context.Context, text, _ string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return nil, p.fail
	}
	p.speech++
	if p.response != nil {
		return p.response, nil
	}
	return []byte("audio:" + text), nil
}

func (p *countingProvider) SoundEffect(_ context.Context, prompt string, _, _ float64) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return nil, p.fail
	}
	p.effects++
	return []byte("ambient:" + prompt), nil
}

func (p *countingProvider) DefaultVoice() string { return "voice_default" }

func newTestCache(t *testing.T) (*Cache, *countingProvider) {
	t.Helper()
	provider := &countingProvider{}
	c, err := NewCache(t.TempDir(), provider, log.New(io.Discard))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	return c, provider
}

func TestSynthesizeCachesByNormalizedText(t *testing.T) {
	c, provider := newTestCache(t)
	ctx := context.Background()

	first, err := c.Synthesize(ctx, "Good night", "")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}

	// Same text up to case and surrounding whitespace resolves to the
	// same artifact without another provider call.
	second, err := c.Synthesize(ctx, "  good NIGHT  ", "")
	if err != nil {
		t.Fatalf("synthesize (hit): %v", err)
	}
	if first != second {
		t.Errorf("paths differ: %q vs %q", first, second)
	}
	if provider.speech != 1 {
		t.Errorf("provider calls = %d, want 1", provider.speech)
	}

	data, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "audio:Good night" {
		t.Errorf("artifact = %q", data)
	}
}

func TestSynthesizeDistinguishesVoices(t *testing.T) {
	c, provider := newTestCache(t)
	ctx := context.Background()

	a, err := c.Synthesize(ctx, "hello", "voice_a")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	b, err := c.Synthesize(ctx, "hello", "voice_b")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if a == b {
		t.Error("different voices must map to different artifacts")
	}
	if provider.speech != 2 {
		t.Errorf("provider calls = %d, want 2", provider.speech)
	}
}

func TestSynthesizeFailureLeavesNoEntry(t *testing.T) {
	c, provider := newTestCache(t)
	ctx := context.Background()
	provider.fail = errors.New("provider down")

	if _, err := c.Synthesize(ctx, "hello", ""); err == nil {
		t.Fatal("expected provider failure")
	}

	entries, err := os.ReadDir(filepath.Join(c.dir, "speech"))
	if err != nil {
		t.Fatalf("read cache dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("failed synthesis left %d cache entries", len(entries))
	}

	// Next identical request retries fresh and succeeds.
	provider.fail = nil
	if _, err := c.Synthesize(ctx, "hello", ""); err != nil {
		t.Fatalf("retry after failure: %v", err)
	}
	if provider.speech != 1 {
		t.Errorf("provider calls = %d, want 1", provider.speech)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	c, _ := newTestCache(t)
	if _, err := c.Synthesize(context.Background(), "  \t ", ""); !errors.Is(err, ErrEmptyText) {
		t.Fatalf("err = %v, want ErrEmptyText", err)
	}
}

func TestSynthesizeAmbientCachesPerPresetAndDuration(t *testing.T) {
	c, provider := newTestCache(t)
	ctx := context.Background()

	a, err := c.SynthesizeAmbient(ctx, "rain", 30)
	if err != nil {
		t.Fatalf("ambient: %v", err)
	}
	again, err := c.SynthesizeAmbient(ctx, "rain", 30)
	if err != nil {
		t.Fatalf("ambient (hit): %v", err)
	}
	if a != again {
		t.Errorf("paths differ: %q vs %q", a, again)
	}
	longer, err := c.SynthesizeAmbient(ctx, "rain", 60)
	if err != nil {
		t.Fatalf("ambient: %v", err)
	}
	if a == longer {
		t.Error("different durations must map to different artifacts")
	}
	if provider.effects != 2 {
		t.Errorf("provider calls = %d, want 2", provider.effects)
	}
}

func TestSynthesizeAmbientRejectsUnknownPreset(t *testing.T) {
	c, provider := newTestCache(t)
	if _, err := c.SynthesizeAmbient(context.Background(), "thunderdome", 30); err == nil {
		t.Fatal("expected unknown preset error")
	}
	if provider.effects != 0 {
		t.Error("unknown preset must not reach the provider")
	}
}

func TestClearRemovesArtifacts(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	path, err := c.Synthesize(ctx, "hello", "")
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("artifact still exists after clear")
	}

	// The cache stays usable after clearing.
	if _, err := c.Synthesize(ctx, "hello", ""); err != nil {
		t.Fatalf("synthesize after clear: %v", err)
	}
}
