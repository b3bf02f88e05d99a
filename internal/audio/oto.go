package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// OtoPlayer is the production Player over an oto audio context. The
// context is created once and shared by every sound.
type OtoPlayer struct {
	ctx    *oto.Context
	mu     sync.Mutex
	closed bool
}

// NewOtoPlayer initializes the audio device and blocks until it is ready.
func NewOtoPlayer() (*OtoPlayer, error) {
	op := &oto.NewContextOptions{
		SampleRate:   SampleRate,
		ChannelCount: Channels,
		Format:       oto.FormatSignedInt16LE,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("create audio context: %w", err)
	}
	<-ready
	return &OtoPlayer{ctx: ctx}, nil
}

// Load reads the PCM file at uri into memory.
func (p *OtoPlayer) Load(uri string) (Sound, error) {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return nil, errors.New("audio player is closed")
	}

	data, err := os.ReadFile(uri)
	if err != nil {
		return nil, fmt.Errorf("load audio %s: %w", uri, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("audio file %s is empty", uri)
	}

	return &otoSound{
		ctx:      p.ctx,
		data:     data,
		duration: Duration(len(data)),
		volume:   1.0,
		done:     make(chan struct{}),
	}, nil
}

// Close marks the player closed. oto v3 contexts have no Close; the
// device is released when the context is collected.
func (p *OtoPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

type otoSound struct {
	ctx      *oto.Context
	data     []byte
	duration time.Duration
	done     chan struct{}

	mu       sync.Mutex
	player   *oto.Player
	volume   float64
	loop     bool
	started  bool
	stopped  bool
	doneOnce sync.Once
}

func (s *otoSound) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return errors.New("sound already stopped")
	}
	if s.started {
		return errors.New("sound already playing")
	}

	var r io.Reader = bytes.NewReader(s.data)
	if s.loop {
		r = &loopReader{data: s.data}
	}
	s.player = s.ctx.NewPlayer(r)
	s.player.SetVolume(s.volume)
	s.player.Play()
	s.started = true

	if !s.loop {
		// Natural completion is signalled on a timer derived from the
		// PCM length; oto exposes no finish callback.
		go s.awaitCompletion()
	}
	return nil
}

func (s *otoSound) awaitCompletion() {
	timer := time.NewTimer(s.duration)
	defer timer.Stop()
	select {
	case <-timer.C:
		s.mu.Lock()
		if !s.stopped && s.player != nil {
			s.player.Close()
			s.player = nil
		}
		s.stopped = true
		s.mu.Unlock()
		s.doneOnce.Do(func() { close(s.done) })
	case <-s.done:
	}
}

func (s *otoSound) Stop() error {
	s.mu.Lock()
	if s.player != nil {
		s.player.Pause()
		s.player.Close()
		s.player = nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })
	return nil
}

func (s *otoSound) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume must be within [0, 1], got %v", v)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = v
	if s.player != nil {
		s.player.SetVolume(v)
	}
	return nil
}

func (s *otoSound) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *otoSound) SetLoop(loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loop = loop
}

func (s *otoSound) Done() <-chan struct{} {
	return s.done
}

func (s *otoSound) Length() time.Duration {
	return s.duration
}

// loopReader replays its data forever.
type loopReader struct {
	data []byte
	pos  int
}

func (r *loopReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := 0
	for n < len(p) {
		copied := copy(p[n:], r.data[r.pos:])
		n += copied
		r.pos += copied
		if r.pos >= len(r.data) {
			r.pos = 0
		}
	}
	return n, nil
}
