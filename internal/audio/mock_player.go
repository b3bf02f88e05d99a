package audio

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// OpKind labels one recorded mock operation.
type OpKind string

const (
	OpLoad   OpKind = "load"
	OpPlay   OpKind = "play"
	OpStop   OpKind = "stop"
	OpVolume OpKind = "volume"
)

// Op is a single recorded operation on the mock player.
type Op struct {
	Kind   OpKind
	URI    string
	Volume float64 // only for OpVolume
	Loop   bool    // only for OpPlay
}

// MockPlayer implements Player for tests. Every operation across all of
// its sounds is appended to a shared, ordered log, and the number of
// concurrently playing sounds is tracked so tests can assert the
// no-overlap invariant.
type MockPlayer struct {
	mu sync.Mutex

	ops           []Op
	playing       int
	maxConcurrent int

	// PlayDuration is how long a non-looping mock sound "plays" before
	// completing naturally. Keep it short in tests.
	PlayDuration time.Duration

	// LoadErr, when set for a uri, makes Load fail for that uri.
	LoadErr map[string]error

	closed bool
}

// NewMockPlayer returns a mock with a 2ms default play duration.
func NewMockPlayer() *MockPlayer {
	return &MockPlayer{
		PlayDuration: 2 * time.Millisecond,
		LoadErr:      make(map[string]error),
	}
}

// Load records the load and returns a mock sound for the uri.
func (m *MockPlayer) Load(uri string) (Sound, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("mock player is closed")
	}
	if err, ok := m.LoadErr[uri]; ok {
		return nil, err
	}
	m.ops = append(m.ops, Op{Kind: OpLoad, URI: uri})
	return &mockSound{
		player: m,
		uri:    uri,
		volume: 1.0,
		done:   make(chan struct{}),
	}, nil
}

// Close marks the player closed.
func (m *MockPlayer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Ops returns a snapshot of the operation log.
func (m *MockPlayer) Ops() []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Op(nil), m.ops...)
}

// OpsFor returns the log filtered to one uri.
func (m *MockPlayer) OpsFor(uri string) []Op {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Op
	for _, op := range m.ops {
		if op.URI == uri {
			out = append(out, op)
		}
	}
	return out
}

// MaxConcurrent reports the highest number of sounds that were playing
// at the same instant.
func (m *MockPlayer) MaxConcurrent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxConcurrent
}

func (m *MockPlayer) record(op Op) {
	m.mu.Lock()
	m.ops = append(m.ops, op)
	m.mu.Unlock()
}

func (m *MockPlayer) soundStarted() {
	m.mu.Lock()
	m.playing++
	if m.playing > m.maxConcurrent {
		m.maxConcurrent = m.playing
	}
	m.mu.Unlock()
}

func (m *MockPlayer) soundStopped() {
	m.mu.Lock()
	if m.playing > 0 {
		m.playing--
	}
	m.mu.Unlock()
}

type mockSound struct {
	player *MockPlayer
	uri    string
	done   chan struct{}

	mu       sync.Mutex
	volume   float64
	loop     bool
	started  bool
	stopped  bool
	doneOnce sync.Once
}

func (s *mockSound) Play() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return errors.New("mock sound already stopped")
	}
	if s.started {
		s.mu.Unlock()
		return errors.New("mock sound already playing")
	}
	s.started = true
	loop := s.loop
	s.mu.Unlock()

	s.player.record(Op{Kind: OpPlay, URI: s.uri, Loop: loop})
	s.player.soundStarted()

	if !loop {
		go func() {
			timer := time.NewTimer(s.player.PlayDuration)
			defer timer.Stop()
			select {
			case <-timer.C:
				s.finish()
			case <-s.done:
			}
		}()
	}
	return nil
}

func (s *mockSound) finish() {
	s.mu.Lock()
	alreadyStopped := s.stopped
	s.stopped = true
	s.mu.Unlock()
	if !alreadyStopped {
		s.player.soundStopped()
	}
	s.doneOnce.Do(func() { close(s.done) })
}

func (s *mockSound) Stop() error {
	s.mu.Lock()
	started, alreadyStopped := s.started, s.stopped
	s.stopped = true
	s.mu.Unlock()

	if started && !alreadyStopped {
		s.player.soundStopped()
	}
	if !alreadyStopped {
		s.player.record(Op{Kind: OpStop, URI: s.uri})
	}
	s.doneOnce.Do(func() { close(s.done) })
	return nil
}

func (s *mockSound) SetVolume(v float64) error {
	if v < 0 || v > 1 {
		return fmt.Errorf("volume must be within [0, 1], got %v", v)
	}
	s.mu.Lock()
	s.volume = v
	s.mu.Unlock()
	s.player.record(Op{Kind: OpVolume, URI: s.uri, Volume: v})
	return nil
}

func (s *mockSound) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

func (s *mockSound) SetLoop(loop bool) {
	s.mu.Lock()
	s.loop = loop
	s.mu.Unlock()
}

func (s *mockSound) Done() <-chan struct{} {
	return s.done
}

func (s *mockSound) Length() time.Duration {
	return s.player.PlayDuration
}

var (
	_ Player = (*MockPlayer)(nil)
	_ Player = (*OtoPlayer)(nil)
)
