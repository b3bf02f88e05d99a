package engine

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dreamscape-app/dreamscape/internal/audio"
)

func newPreviewFixture(busy bool) (*Preview, *audio.MockPlayer) {
	player := audio.NewMockPlayer()
	player.PlayDuration = 250 * time.Millisecond
	synth := &stubSynth{speechErr: make(map[string]error)}
	p := NewPreview(synth, player, func() bool { return busy }, log.New(io.Discard))
	return p, player
}

func TestPreviewToggleStopsSameTarget(t *testing.T) {
	p, player := newPreviewFixture(false)

	if err := p.Voice(context.Background(), "voice_a"); err != nil {
		t.Fatalf("first preview: %v", err)
	}
	if got := p.Active(); got != "voice:voice_a" {
		t.Fatalf("active = %q, want voice:voice_a", got)
	}

	if err := p.Voice(context.Background(), "voice_a"); err != nil {
		t.Fatalf("toggle off: %v", err)
	}
	if got := p.Active(); got != "" {
		t.Errorf("active after toggle = %q, want empty", got)
	}

	var stops int
	for _, op := range player.Ops() {
		if op.Kind == audio.OpStop {
			stops++
		}
	}
	if stops != 1 {
		t.Errorf("stop ops = %d, want 1", stops)
	}
}

func TestPreviewSwitchingTargetsReplacesPlayback(t *testing.T) {
	p, player := newPreviewFixture(false)

	if err := p.Voice(context.Background(), "voice_a"); err != nil {
		t.Fatalf("voice preview: %v", err)
	}
	if err := p.Ambient(context.Background(), "rain"); err != nil {
		t.Fatalf("ambient preview: %v", err)
	}
	if got := p.Active(); got != "ambient:rain" {
		t.Errorf("active = %q, want ambient:rain", got)
	}

	voiceOps := player.OpsFor("speech:" + DefaultSampleText)
	last := voiceOps[len(voiceOps)-1]
	if last.Kind != audio.OpStop {
		t.Errorf("previous preview's final op = %v, want stop", last)
	}
	if p.Active() != "ambient:rain" {
		t.Errorf("active = %q, want ambient:rain", p.Active())
	}
}

func TestPreviewRejectedWhileSessionActive(t *testing.T) {
	p, player := newPreviewFixture(true)

	if err := p.Voice(context.Background(), "voice_a"); !errors.Is(err, ErrSessionActive) {
		t.Fatalf("err = %v, want ErrSessionActive", err)
	}
	if len(player.Ops()) != 0 {
		t.Error("no audio may play while a session is active")
	}
}

func TestPreviewClearsOnNaturalCompletion(t *testing.T) {
	p, player := newPreviewFixture(false)
	player.PlayDuration = 2 * time.Millisecond

	if err := p.Ambient(context.Background(), "ocean"); err != nil {
		t.Fatalf("ambient preview: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for p.Active() != "" && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if got := p.Active(); got != "" {
		t.Errorf("active = %q, want empty after completion", got)
	}
}
