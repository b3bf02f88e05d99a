package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dreamscape-app/dreamscape/internal/audio"
	"github.com/dreamscape-app/dreamscape/internal/content"
	"github.com/dreamscape-app/dreamscape/internal/session"
)

// Synthesizer resolves spoken text or an ambient preset to a playable
// audio location. *synth.Cache satisfies it.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, voiceID string) (string, error)
	SynthesizeAmbient(ctx context.Context, preset string, durationSeconds float64) (string, error)
}

// ContentSource is the read surface the scheduler needs from the content
// store, plus the play-count bump on cue playback.
type ContentSource interface {
	ItemsByTopic(topicID string) ([]content.Item, error)
	CuesByItem(topicID string) (map[string][]content.Cue, error)
	MarkCuePlayed(cueID string, at time.Time) error
}

// SessionRecorder is the session write path. *session.Recorder satisfies
// it.
type SessionRecorder interface {
	StartSession(topicID string, plannedCueIDs []string) (session.Session, error)
	LogCueEvent(session.LogParams) session.CueEvent
	Finalize(sessionID string, mode session.FinalizeMode)
}

// Config tunes one playback run.
type Config struct {
	// Interval is the gap between the end of one cue and the start of
	// the next.
	Interval time.Duration

	// VoiceID selects the synthesis voice; empty uses the provider
	// default.
	VoiceID string

	// AmbientPreset names the background loop; empty disables ambience.
	AmbientPreset string

	// AmbientSeconds is the length of the generated ambient loop.
	AmbientSeconds float64

	// CueVolume is the level cues play at.
	CueVolume float64

	// AmbientVolume is the ambient loop's resting level.
	AmbientVolume float64

	// DuckedVolume is the ambient level while a cue is speaking.
	DuckedVolume float64
}

// DefaultConfig matches the app defaults: five minutes between cues,
// quiet ambience ducked to near silence under speech.
func DefaultConfig() Config {
	return Config{
		Interval:       5 * time.Minute,
		AmbientSeconds: 30,
		CueVolume:      1.0,
		AmbientVolume:  0.35,
		DuckedVolume:   0.08,
	}
}

// Scheduler runs sleep sessions: it resolves and synthesizes a topic's
// cues up front, then plays them cyclically at a fixed interval with the
// ambient loop ducked under each cue. Exactly one session runs at a
// time; every terminal path returns the scheduler to StatusIdle.
type Scheduler struct {
	content  ContentSource
	synth    Synthesizer
	player   audio.Player
	recorder SessionRecorder
	logger   *log.Logger
	cfg      Config

	// OnPlaybackError, when set, receives errors from the playback
	// goroutine after the session has been torn down.
	OnPlaybackError func(error)

	status atomic.Int32

	mu        sync.Mutex
	cueSound  audio.Sound
	ambient   audio.Sound
	sessionID string
	stopCh    chan struct{}
	loopDone  chan struct{}
}

// NewScheduler wires the scheduler to its collaborators.
func NewScheduler(content ContentSource, synth Synthesizer, player audio.Player, recorder SessionRecorder, cfg Config, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig().Interval
	}
	if cfg.AmbientSeconds <= 0 {
		cfg.AmbientSeconds = DefaultConfig().AmbientSeconds
	}
	if cfg.CueVolume <= 0 {
		cfg.CueVolume = DefaultConfig().CueVolume
	}
	return &Scheduler{
		content:  content,
		synth:    synth,
		player:   player,
		recorder: recorder,
		logger:   logger.With("component", "scheduler"),
		cfg:      cfg,
	}
}

// Status reports the current lifecycle state.
func (s *Scheduler) Status() Status {
	return Status(s.status.Load())
}

// SessionID returns the active session's id, or empty when idle.
func (s *Scheduler) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Start resolves the topic's cues, synthesizes each one, begins the
// ambient loop, records a session, and launches cyclic playback. It
// returns once the first cue is queued to play. Selection failures
// (ErrNoTopic, ErrNoCues) leave the scheduler idle without any state
// transition; synthesis failures abort preparation and return to idle.
func (s *Scheduler) Start(ctx context.Context, topicID string) error {
	if topicID == "" {
		return ErrNoTopic
	}

	items, err := s.content.ItemsByTopic(topicID)
	if err != nil {
		return fmt.Errorf("load items: %w", err)
	}
	cues, err := s.content.CuesByItem(topicID)
	if err != nil {
		return fmt.Errorf("load cues: %w", err)
	}
	prepared := ResolveCueSources(topicID, items, cues)
	if len(prepared) == 0 {
		return ErrNoCues
	}

	if !s.status.CompareAndSwap(int32(StatusIdle), int32(StatusPreparing)) {
		return ErrBusy
	}

	s.logger.Info("preparing session", "topic", topicID, "cues", len(prepared))

	// Sequential synthesis; one failure aborts the whole run so a
	// session never starts with holes in its cue list.
	for i := range prepared {
		if s.Status() != StatusPreparing {
			return nil // stopped while preparing
		}
		uri, err := s.synth.Synthesize(ctx, prepared[i].Text, s.cfg.VoiceID)
		if err != nil {
			s.status.Store(int32(StatusIdle))
			return fmt.Errorf("prepare cue %d/%d: %w", i+1, len(prepared), err)
		}
		prepared[i].URI = uri
	}

	if s.Status() != StatusPreparing {
		return nil // stopped during the last synthesis
	}

	s.startAmbient(ctx)

	if s.Status() != StatusPreparing {
		s.releaseSounds()
		return nil
	}

	planned := make([]string, len(prepared))
	for i, p := range prepared {
		planned[i] = p.PlayedID()
	}
	sess, err := s.recorder.StartSession(topicID, planned)
	if err != nil {
		s.releaseSounds()
		s.status.Store(int32(StatusIdle))
		return err
	}

	s.mu.Lock()
	s.sessionID = sess.ID
	s.stopCh = make(chan struct{})
	s.loopDone = make(chan struct{})
	stopCh, loopDone := s.stopCh, s.loopDone
	s.mu.Unlock()

	if !s.status.CompareAndSwap(int32(StatusPreparing), int32(StatusPlaying)) {
		// Stopped while the session record was being created. The stop
		// path ran before the id was stored and finalized nothing, so
		// close the session out here: nothing has played, it cancels.
		s.mu.Lock()
		s.sessionID = ""
		s.stopCh, s.loopDone = nil, nil
		s.mu.Unlock()
		close(loopDone)
		s.releaseSounds()
		s.recorder.Finalize(sess.ID, session.FinalizeCancelled)
		return nil
	}

	s.logger.Info("session started", "session", sess.ID, "interval", s.cfg.Interval)
	go s.run(prepared, stopCh, loopDone)
	return nil
}

// Stop ends the session on the user's request. It is safe to call in any
// state and blocks until playback has fully wound down.
func (s *Scheduler) Stop() {
	s.shutdown(session.FinalizeUser, true)
}

// shutdown flips the state flag first so every in-flight operation
// becomes a no-op, then tears down playback. await is false only when
// called from the playback goroutine itself.
func (s *Scheduler) shutdown(mode session.FinalizeMode, await bool) {
	prev := Status(s.status.Swap(int32(StatusIdle)))
	if prev == StatusIdle {
		return
	}

	s.mu.Lock()
	stopCh, loopDone := s.stopCh, s.loopDone
	s.stopCh, s.loopDone = nil, nil
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}
	if await && loopDone != nil {
		<-loopDone
	}

	s.releaseSounds()

	s.mu.Lock()
	id := s.sessionID
	s.sessionID = ""
	s.mu.Unlock()
	if id != "" {
		s.recorder.Finalize(id, mode)
	}
	s.logger.Info("session stopped", "session", id)
}

// run is the playback loop: play the current cue, wait the interval,
// advance cyclically. It exits when stopped or when a cue fails.
func (s *Scheduler) run(prepared []PreparedCue, stopCh chan struct{}, loopDone chan struct{}) {
	defer close(loopDone)

	timer := time.NewTimer(s.cfg.Interval)
	if !timer.Stop() {
		<-timer.C
	}

	idx := 0
	for {
		if s.Status() != StatusPlaying {
			return
		}

		if err := s.playCue(prepared[idx], stopCh); err != nil {
			if s.Status() != StatusPlaying {
				return
			}
			s.logger.Error("cue playback failed", "cue", prepared[idx].Key, "err", err)
			s.shutdown(session.FinalizeError, false)
			if s.OnPlaybackError != nil {
				s.OnPlaybackError(err)
			}
			return
		}

		timer.Reset(s.cfg.Interval)
		select {
		case <-stopCh:
			if !timer.Stop() {
				<-timer.C
			}
			return
		case <-timer.C:
		}

		idx = (idx + 1) % len(prepared)
	}
}

// playCue plays one cue start to finish: stop the previous cue, duck the
// ambient loop, play, record the event, wait for completion, restore the
// ambient level.
func (s *Scheduler) playCue(c PreparedCue, stopCh chan struct{}) error {
	s.mu.Lock()
	prev, ambient := s.cueSound, s.ambient
	s.cueSound = nil
	sessionID := s.sessionID
	s.mu.Unlock()

	// Stop and release before loading the next: cue audio never
	// overlaps.
	if prev != nil {
		prev.Stop()
	}

	if ambient != nil {
		if err := ambient.SetVolume(s.cfg.DuckedVolume); err != nil {
			s.logger.Warn("failed to duck ambient", "err", err)
		}
	}

	snd, err := s.player.Load(c.URI)
	if err != nil {
		return fmt.Errorf("load cue audio: %w", err)
	}
	if err := snd.SetVolume(s.cfg.CueVolume); err != nil {
		s.logger.Warn("failed to set cue volume", "err", err)
	}

	if s.Status() != StatusPlaying {
		snd.Stop()
		return nil
	}

	s.mu.Lock()
	s.cueSound = snd
	s.mu.Unlock()

	if err := snd.Play(); err != nil {
		return fmt.Errorf("play cue audio: %w", err)
	}

	s.recorder.LogCueEvent(session.LogParams{
		SessionID:       sessionID,
		TopicID:         c.TopicID,
		ItemID:          c.ItemID,
		CueID:           c.CueID,
		Volume:          s.cfg.CueVolume,
		Status:          session.EventPlayed,
		DurationSeconds: snd.Length().Seconds(),
	})
	if c.CueID != "" {
		if err := s.content.MarkCuePlayed(c.CueID, time.Now()); err != nil {
			s.logger.Warn("failed to bump cue play count", "cue", c.CueID, "err", err)
		}
	}

	select {
	case <-snd.Done():
	case <-stopCh:
		return nil
	}

	if ambient != nil && s.Status() == StatusPlaying {
		if err := ambient.SetVolume(s.cfg.AmbientVolume); err != nil {
			s.logger.Warn("failed to restore ambient", "err", err)
		}
	}
	return nil
}

// startAmbient synthesizes and starts the background loop. Ambience is
// garnish: any failure here degrades to cue-only playback.
func (s *Scheduler) startAmbient(ctx context.Context) {
	if s.cfg.AmbientPreset == "" {
		return
	}

	uri, err := s.synth.SynthesizeAmbient(ctx, s.cfg.AmbientPreset, s.cfg.AmbientSeconds)
	if err != nil {
		s.logger.Warn("ambient synthesis failed, continuing without", "preset", s.cfg.AmbientPreset, "err", err)
		return
	}
	snd, err := s.player.Load(uri)
	if err != nil {
		s.logger.Warn("ambient load failed, continuing without", "err", err)
		return
	}
	snd.SetLoop(true)
	if err := snd.SetVolume(s.cfg.AmbientVolume); err != nil {
		s.logger.Warn("failed to set ambient volume", "err", err)
	}
	if err := snd.Play(); err != nil {
		s.logger.Warn("ambient playback failed, continuing without", "err", err)
		snd.Stop()
		return
	}

	s.mu.Lock()
	s.ambient = snd
	s.mu.Unlock()
}

// releaseSounds stops and clears both playback handles.
func (s *Scheduler) releaseSounds() {
	s.mu.Lock()
	cue, ambient := s.cueSound, s.ambient
	s.cueSound, s.ambient = nil, nil
	s.mu.Unlock()

	if cue != nil {
		cue.Stop()
	}
	if ambient != nil {
		ambient.Stop()
	}
}
