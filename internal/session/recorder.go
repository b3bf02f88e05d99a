package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dreamscape-app/dreamscape/internal/content"
)

// EventStore is the persistence surface the recorder needs. *Store
// satisfies it; tests substitute failing fakes.
type EventStore interface {
	PutSession(Session) error
	AppendCueEvent(CueEvent) error
}

// FinalizeMode selects how a session is closed out.
type FinalizeMode int

const (
	// FinalizeUser is a manual stop. It is promoted to completed when at
	// least one cue was played, so the morning quiz can still be built
	// from a session the user cut short.
	FinalizeUser FinalizeMode = iota
	// FinalizeCompleted closes the session as completed unconditionally.
	FinalizeCompleted
	// FinalizeCancelled closes the session as cancelled.
	FinalizeCancelled
	// FinalizeError closes the session as cancelled with an error note.
	FinalizeError
)

// LogParams describes one cue occurrence to record.
type LogParams struct {
	SessionID        string
	TopicID          string
	ItemID           string
	CueID            string
	Volume           float64
	Status           EventStatus
	SuppressedReason SuppressedReason
	DurationSeconds  float64
}

// Recorder owns the write path for sessions and cue events. Event and
// finalization persistence is best-effort: failures are logged, never
// surfaced to the playback path, and the in-memory view stays coherent.
type Recorder struct {
	store  EventStore
	logger *log.Logger

	mu     sync.Mutex
	active map[string]*tracked
}

type tracked struct {
	sess   Session
	played map[string]struct{}
	order  []string // insertion order of played identifiers
}

// NewRecorder creates a recorder over the given store.
func NewRecorder(store EventStore, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	return &Recorder{
		store:  store,
		logger: logger.With("component", "recorder"),
		active: make(map[string]*tracked),
	}
}

// StartSession creates and persists an active session. Unlike event
// logging, a failure here is returned: playback should not start against
// a session that was never recorded.
func (r *Recorder) StartSession(topicID string, plannedCueIDs []string) (Session, error) {
	sess := NewSession(topicID, plannedCueIDs)
	sess.Status = StatusActive
	sess.StartedAt = time.Now()

	if err := r.store.PutSession(sess); err != nil {
		return Session{}, fmt.Errorf("start session: %w", err)
	}

	r.mu.Lock()
	r.active[sess.ID] = &tracked{sess: sess, played: make(map[string]struct{})}
	r.mu.Unlock()

	r.logger.Debug("session started", "session", sess.ID, "topic", topicID, "planned", len(plannedCueIDs))
	return sess, nil
}

// LogCueEvent appends a cue event. Played events add the cue identifier
// (or the item identifier when the cue has none) to the session's played
// set; replaying an identifier is a no-op on the set. Store failures are
// logged and swallowed.
func (r *Recorder) LogCueEvent(p LogParams) CueEvent {
	ev := CueEvent{
		ID:               content.NewID("event"),
		SessionID:        p.SessionID,
		TopicID:          p.TopicID,
		ItemID:           p.ItemID,
		CueID:            p.CueID,
		Timestamp:        time.Now(),
		Volume:           p.Volume,
		Status:           p.Status,
		SuppressedReason: p.SuppressedReason,
		DurationSeconds:  p.DurationSeconds,
	}

	if err := r.store.AppendCueEvent(ev); err != nil {
		r.logger.Warn("failed to append cue event", "session", p.SessionID, "err", err)
	}

	if p.Status != EventPlayed {
		return ev
	}

	playedID := p.CueID
	if playedID == "" {
		playedID = p.ItemID
	}

	r.mu.Lock()
	t, ok := r.active[p.SessionID]
	if ok {
		if _, seen := t.played[playedID]; !seen {
			t.played[playedID] = struct{}{}
			t.order = append(t.order, playedID)
			t.sess.CueIDsPlayed = append([]string(nil), t.order...)
			if err := r.store.PutSession(t.sess); err != nil {
				r.logger.Warn("failed to persist played-cue update", "session", p.SessionID, "err", err)
			}
		}
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Warn("cue event for unknown session", "session", p.SessionID)
	}
	return ev
}

// PlayedCount reports how many distinct identifiers have been played in
// the session so far.
func (r *Recorder) PlayedCount(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.active[sessionID]; ok {
		return len(t.played)
	}
	return 0
}

// Finalize closes the session. A manual stop with at least one played cue
// is promoted to completed; anything else that is not an explicit
// completion persists as cancelled with a short note. Persistence failure
// is logged, never returned: the scheduler resets to idle regardless.
func (r *Recorder) Finalize(sessionID string, mode FinalizeMode) {
	r.mu.Lock()
	t, ok := r.active[sessionID]
	if !ok {
		r.mu.Unlock()
		r.logger.Warn("finalize for unknown session", "session", sessionID)
		return
	}
	delete(r.active, sessionID)

	now := time.Now()
	t.sess.EndedAt = &now
	t.sess.CueIDsPlayed = append([]string(nil), t.order...)

	switch {
	case mode == FinalizeCompleted,
		mode == FinalizeUser && len(t.played) > 0:
		t.sess.Status = StatusCompleted
	case mode == FinalizeError:
		t.sess.Status = StatusCancelled
		t.sess.Notes = "Playback interrupted by error"
	case mode == FinalizeUser:
		t.sess.Status = StatusCancelled
		t.sess.Notes = "Stopped manually"
	default:
		t.sess.Status = StatusCancelled
	}
	sess := t.sess
	r.mu.Unlock()

	if err := r.store.PutSession(sess); err != nil {
		r.logger.Warn("failed to finalize session", "session", sessionID, "err", err)
		return
	}
	r.logger.Debug("session finalized", "session", sessionID, "status", sess.Status, "played", len(sess.CueIDsPlayed))
}
