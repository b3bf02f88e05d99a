package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dreamscape-app/dreamscape/internal/audio"
)

// DefaultSampleText is spoken when previewing a voice.
const DefaultSampleText = "Hi! This is how your sleep cues will sound tonight."

// Seconds of generated ambience for a preview sample.
const previewAmbientSeconds = 10

// Preview auditions a voice or an ambient preset through the same
// synthesis cache and player the scheduler uses, without touching the
// session state machine. At most one preview plays at a time, and none
// while a session is preparing or playing.
type Preview struct {
	synth  Synthesizer
	player audio.Player
	busy   func() bool
	logger *log.Logger

	// SampleText overrides DefaultSampleText for voice previews.
	SampleText string

	mu     sync.Mutex
	target string
	sound  audio.Sound
}

// NewPreview wires a preview controller. busy reports whether a sleep
// session currently holds the audio device; pass the scheduler's check.
func NewPreview(synth Synthesizer, player audio.Player, busy func() bool, logger *log.Logger) *Preview {
	if logger == nil {
		logger = log.Default()
	}
	if busy == nil {
		busy = func() bool { return false }
	}
	return &Preview{
		synth:  synth,
		player: player,
		busy:   busy,
		logger: logger.With("component", "preview"),
	}
}

// Voice toggles a spoken sample in the given voice. Previewing the
// target that is already playing stops it; previewing a different target
// replaces it.
func (p *Preview) Voice(ctx context.Context, voiceID string) error {
	text := p.SampleText
	if text == "" {
		text = DefaultSampleText
	}
	return p.toggle(ctx, "voice:"+voiceID, func() (string, error) {
		return p.synth.Synthesize(ctx, text, voiceID)
	})
}

// Ambient toggles a bounded sample of the named ambient preset.
func (p *Preview) Ambient(ctx context.Context, preset string) error {
	return p.toggle(ctx, "ambient:"+preset, func() (string, error) {
		return p.synth.SynthesizeAmbient(ctx, preset, previewAmbientSeconds)
	})
}

// Active returns the currently previewing target ("voice:<id>" or
// "ambient:<preset>"), or empty when nothing is playing.
func (p *Preview) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// Stop halts any playing preview.
func (p *Preview) Stop() {
	p.mu.Lock()
	snd := p.sound
	p.target, p.sound = "", nil
	p.mu.Unlock()
	if snd != nil {
		snd.Stop()
	}
}

func (p *Preview) toggle(ctx context.Context, target string, resolve func() (string, error)) error {
	if p.busy() {
		return ErrSessionActive
	}

	p.mu.Lock()
	current := p.target
	p.mu.Unlock()
	if current == target {
		p.Stop()
		return nil
	}
	p.Stop()

	uri, err := resolve()
	if err != nil {
		return err
	}
	snd, err := p.player.Load(uri)
	if err != nil {
		return fmt.Errorf("load preview audio: %w", err)
	}
	if err := snd.Play(); err != nil {
		return fmt.Errorf("play preview audio: %w", err)
	}

	p.mu.Lock()
	p.target, p.sound = target, snd
	p.mu.Unlock()
	p.logger.Debug("preview started", "target", target)

	// Clear the toggle state on natural completion so the next tap of
	// the same target starts a fresh preview instead of stopping one
	// that already ended.
	go func() {
		<-snd.Done()
		p.mu.Lock()
		if p.sound == snd {
			p.target, p.sound = "", nil
		}
		p.mu.Unlock()
	}()
	return nil
}
