package engine

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dreamscape-app/dreamscape/internal/audio"
	"github.com/dreamscape-app/dreamscape/internal/content"
	"github.com/dreamscape-app/dreamscape/internal/session"
)

// stubSynth resolves text to a fake uri without any network or disk.
type stubSynth struct {
	mu           sync.Mutex
	speechCalls  []string
	ambientCalls []string
	speechErr    map[string]error
	ambientErr   error
}

func (s *stubSynth) Synthesize(_ context.Context, text, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.speechErr[text]; ok {
		return "", err
	}
	s.speechCalls = append(s.speechCalls, text)
	return "speech:" + text, nil
}

func (s *stubSynth) SynthesizeAmbient(_ context.Context, preset string, _ float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ambientErr != nil {
		return "", s.ambientErr
	}
	s.ambientCalls = append(s.ambientCalls, preset)
	return "ambient:" + preset, nil
}

type stubContent struct {
	mu     sync.Mutex
	items  []content.Item
	cues   map[string][]content.Cue
	marked []string
}

func (s *stubContent) ItemsByTopic(string) ([]content.Item, error) { return s.items, nil }

func (s *stubContent) CuesByItem(string) (map[string][]content.Cue, error) { return s.cues, nil }

func (s *stubContent) MarkCuePlayed(cueID string, _ time.Time) error {
	s.mu.Lock()
	s.marked = append(s.marked, cueID)
	s.mu.Unlock()
	return nil
}

// memEventStore backs a real session.Recorder in memory.
type memEventStore struct {
	mu       sync.Mutex
	sessions map[string]session.Session
	events   []session.CueEvent
}

func newMemEventStore() *memEventStore {
	return &memEventStore{sessions: make(map[string]session.Session)}
}

func (m *memEventStore) PutSession(sess session.Session) error {
	m.mu.Lock()
	m.sessions[sess.ID] = sess
	m.mu.Unlock()
	return nil
}

func (m *memEventStore) AppendCueEvent(ev session.CueEvent) error {
	m.mu.Lock()
	m.events = append(m.events, ev)
	m.mu.Unlock()
	return nil
}

func (m *memEventStore) eventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func (m *memEventStore) eventCueIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, ev := range m.events {
		out[i] = ev.CueID
	}
	return out
}

func (m *memEventStore) onlySession() session.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sess := range m.sessions {
		return sess
	}
	return session.Session{}
}

type fixture struct {
	scheduler *Scheduler
	player    *audio.MockPlayer
	synth     *stubSynth
	store     *memEventStore
	content   *stubContent
}

func demoContent() *stubContent {
	return &stubContent{
		items: []content.Item{
			item("item_1", "la mer", "the sea", ""),
			item("item_2", "le ciel", "the sky", ""),
			item("item_3", "l'etoile", "the star", ""),
		},
		cues: map[string][]content.Cue{
			"item_1": {cue("cue_1", "item_1", "First")},
			"item_2": {cue("cue_2", "item_2", "Second")},
			"item_3": {cue("cue_3", "item_3", "Third")},
		},
	}
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()
	logger := log.New(io.Discard)
	src := demoContent()
	synth := &stubSynth{speechErr: make(map[string]error)}
	player := audio.NewMockPlayer()
	store := newMemEventStore()
	recorder := session.NewRecorder(store, logger)

	sched := NewScheduler(src, synth, player, recorder, cfg, logger)
	t.Cleanup(sched.Stop)
	return &fixture{scheduler: sched, player: player, synth: synth, store: store, content: src}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func fastConfig() Config {
	return Config{
		Interval:       5 * time.Millisecond,
		AmbientSeconds: 1,
		CueVolume:      1.0,
		AmbientVolume:  0.35,
		DuckedVolume:   0.08,
	}
}

func TestStartRequiresTopic(t *testing.T) {
	f := newFixture(t, fastConfig())
	if err := f.scheduler.Start(context.Background(), ""); !errors.Is(err, ErrNoTopic) {
		t.Fatalf("err = %v, want ErrNoTopic", err)
	}
	if got := f.scheduler.Status(); got != StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
}

func TestStartRequiresCues(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.content.items = nil
	f.content.cues = nil
	if err := f.scheduler.Start(context.Background(), "topic_1"); !errors.Is(err, ErrNoCues) {
		t.Fatalf("err = %v, want ErrNoCues", err)
	}
	if got := f.scheduler.Status(); got != StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
	if f.store.eventCount() != 0 || len(f.store.sessions) != 0 {
		t.Error("selection failure must not record anything")
	}
}

func TestStartWhilePlayingIsBusy(t *testing.T) {
	f := newFixture(t, fastConfig())
	if err := f.scheduler.Start(context.Background(), "topic_1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.scheduler.Start(context.Background(), "topic_1"); !errors.Is(err, ErrBusy) {
		t.Fatalf("second start err = %v, want ErrBusy", err)
	}
}

func TestPlaybackCyclesInOrder(t *testing.T) {
	f := newFixture(t, fastConfig())
	if err := f.scheduler.Start(context.Background(), "topic_1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	if got := f.scheduler.Status(); got != StatusPlaying {
		t.Fatalf("status = %v, want playing", got)
	}

	waitFor(t, 2*time.Second, func() bool { return f.store.eventCount() >= 5 })
	f.scheduler.Stop()

	got := f.store.eventCueIDs()[:5]
	want := []string{"cue_1", "cue_2", "cue_3", "cue_1", "cue_2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event order = %v, want prefix %v", got, want)
		}
	}
}

func TestCueAudioNeverOverlaps(t *testing.T) {
	f := newFixture(t, fastConfig())
	if err := f.scheduler.Start(context.Background(), "topic_1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return f.store.eventCount() >= 6 })
	f.scheduler.Stop()

	if got := f.player.MaxConcurrent(); got != 1 {
		t.Errorf("max concurrent sounds = %d, want 1", got)
	}
}

func TestAmbientDuckAndRestoreBracketsCues(t *testing.T) {
	cfg := fastConfig()
	cfg.AmbientPreset = "rain"
	f := newFixture(t, cfg)
	if err := f.scheduler.Start(context.Background(), "topic_1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return f.store.eventCount() >= 4 })
	f.scheduler.Stop()

	ops := f.player.OpsFor("ambient:rain")
	if len(ops) == 0 {
		t.Fatal("no ambient operations recorded")
	}

	ducked := false
	ducks, restores := 0, 0
	for _, op := range ops {
		switch {
		case op.Kind == audio.OpVolume && op.Volume == cfg.DuckedVolume:
			if ducked {
				t.Fatal("ducked twice without a restore in between")
			}
			ducked = true
			ducks++
		case op.Kind == audio.OpVolume && op.Volume == cfg.AmbientVolume:
			ducked = false
			restores++
		case op.Kind == audio.OpStop:
			ducked = false
		}
	}
	if ducks < 2 {
		t.Fatalf("expected at least 2 duck operations, got %d", ducks)
	}
	if restores < ducks-1 {
		t.Errorf("ducks = %d, restores = %d; every duck but the last needs a restore", ducks, restores)
	}
}

func TestAmbientFailureIsNotFatal(t *testing.T) {
	cfg := fastConfig()
	cfg.AmbientPreset = "rain"
	f := newFixture(t, cfg)
	f.synth.ambientErr = errors.New("ambience service down")

	if err := f.scheduler.Start(context.Background(), "topic_1"); err != nil {
		t.Fatalf("start must succeed without ambience: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return f.store.eventCount() >= 1 })
	f.scheduler.Stop()

	if ops := f.player.OpsFor("ambient:rain"); len(ops) != 0 {
		t.Errorf("ambient sound must not be loaded after synthesis failure, got %v", ops)
	}
}

func TestSynthesisFailureAbortsPreparation(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.synth.speechErr["Second. the sky. le ciel"] = errors.New("quota exhausted")

	err := f.scheduler.Start(context.Background(), "topic_1")
	if err == nil {
		t.Fatal("expected synthesis failure to abort start")
	}
	if got := f.scheduler.Status(); got != StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
	if len(f.store.sessions) != 0 {
		t.Error("no session may be recorded for an aborted preparation")
	}
	if len(f.player.Ops()) != 0 {
		t.Error("no audio may play for an aborted preparation")
	}
}

func TestCueLoadFailureCancelsSession(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.player.LoadErr["speech:Second. the sky. le ciel"] = errors.New("device lost")

	var playbackErr error
	errCh := make(chan struct{})
	f.scheduler.OnPlaybackError = func(err error) {
		playbackErr = err
		close(errCh)
	}

	if err := f.scheduler.Start(context.Background(), "topic_1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("playback error never surfaced")
	}
	if playbackErr == nil {
		t.Fatal("expected a playback error")
	}

	waitFor(t, time.Second, func() bool { return f.scheduler.Status() == StatusIdle })
	sess := f.store.onlySession()
	if sess.Status != session.StatusCancelled {
		t.Errorf("session status = %q, want cancelled", sess.Status)
	}
	if sess.Notes == "" {
		t.Error("error finalization must note the interruption")
	}
}

func TestManualStopAfterPlayedCueCompletes(t *testing.T) {
	f := newFixture(t, fastConfig())
	if err := f.scheduler.Start(context.Background(), "topic_1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return f.store.eventCount() >= 1 })
	f.scheduler.Stop()

	if got := f.scheduler.Status(); got != StatusIdle {
		t.Fatalf("status after stop = %v, want idle", got)
	}
	sess := f.store.onlySession()
	if sess.Status != session.StatusCompleted {
		t.Errorf("session status = %q, want completed after a played cue", sess.Status)
	}
	if sess.EndedAt == nil {
		t.Error("finalized session must carry an end time")
	}
	if len(sess.CueIDsPlayed) == 0 {
		t.Error("finalized session must list played cues")
	}
}

func TestStopIsIdempotentWhenIdle(t *testing.T) {
	f := newFixture(t, fastConfig())
	f.scheduler.Stop()
	f.scheduler.Stop()
	if got := f.scheduler.Status(); got != StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
}

// stopOnStartRecorder requests a stop from inside session creation,
// landing in the window between the last preparing check and the
// transition to playing.
type stopOnStartRecorder struct {
	inner *session.Recorder
	sched *Scheduler
}

func (r *stopOnStartRecorder) StartSession(topicID string, plannedCueIDs []string) (session.Session, error) {
	sess, err := r.inner.StartSession(topicID, plannedCueIDs)
	r.sched.Stop()
	return sess, err
}

func (r *stopOnStartRecorder) LogCueEvent(p session.LogParams) session.CueEvent {
	return r.inner.LogCueEvent(p)
}

func (r *stopOnStartRecorder) Finalize(sessionID string, mode session.FinalizeMode) {
	r.inner.Finalize(sessionID, mode)
}

func TestStopDuringSessionCreationStillFinalizes(t *testing.T) {
	logger := log.New(io.Discard)
	store := newMemEventStore()
	rec := &stopOnStartRecorder{inner: session.NewRecorder(store, logger)}
	synth := &stubSynth{speechErr: make(map[string]error)}
	sched := NewScheduler(demoContent(), synth, audio.NewMockPlayer(), rec, fastConfig(), logger)
	rec.sched = sched

	if err := sched.Start(context.Background(), "topic_1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := sched.Status(); got != StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
	if id := sched.SessionID(); id != "" {
		t.Errorf("session id = %q, want empty after stop", id)
	}
	sess := store.onlySession()
	if sess.Status != session.StatusCancelled {
		t.Errorf("session status = %q, want cancelled; the record must not stay active", sess.Status)
	}
	if sess.EndedAt == nil {
		t.Error("session must carry an end time")
	}
}

// stopAfterSynth requests a stop right after a given cue's synthesis,
// landing just before ambient startup.
type stopAfterSynth struct {
	*stubSynth
	sched *Scheduler
	after string
}

func (s *stopAfterSynth) Synthesize(ctx context.Context, text, voiceID string) (string, error) {
	uri, err := s.stubSynth.Synthesize(ctx, text, voiceID)
	if text == s.after {
		s.sched.Stop()
	}
	return uri, err
}

func TestStopDuringFinalSynthesisSkipsAmbient(t *testing.T) {
	cfg := fastConfig()
	cfg.AmbientPreset = "rain"
	logger := log.New(io.Discard)
	store := newMemEventStore()
	synth := &stopAfterSynth{
		stubSynth: &stubSynth{speechErr: make(map[string]error)},
		after:     "Third. the star. l'etoile",
	}
	player := audio.NewMockPlayer()
	sched := NewScheduler(demoContent(), synth, player, session.NewRecorder(store, logger), cfg, logger)
	synth.sched = sched

	if err := sched.Start(context.Background(), "topic_1"); err != nil {
		t.Fatalf("start: %v", err)
	}

	if got := sched.Status(); got != StatusIdle {
		t.Errorf("status = %v, want idle", got)
	}
	if n := len(synth.ambientCalls); n != 0 {
		t.Errorf("ambient synthesized %d times after stop, want 0", n)
	}
	if ops := player.Ops(); len(ops) != 0 {
		t.Errorf("audio ops after stop = %v, want none", ops)
	}
	if len(store.sessions) != 0 {
		t.Error("no session may be created after a stop during preparation")
	}
}

func TestPlayedCuesBumpPlayCounts(t *testing.T) {
	f := newFixture(t, fastConfig())
	if err := f.scheduler.Start(context.Background(), "topic_1"); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, 2*time.Second, func() bool { return f.store.eventCount() >= 2 })
	f.scheduler.Stop()

	f.content.mu.Lock()
	marked := append([]string(nil), f.content.marked...)
	f.content.mu.Unlock()
	if len(marked) < 2 || marked[0] != "cue_1" || marked[1] != "cue_2" {
		t.Errorf("marked cues = %v, want cue_1, cue_2 prefix", marked)
	}
}
