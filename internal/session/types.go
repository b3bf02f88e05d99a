// Package session records sleep-session runs and their append-only cue
// events. Sessions are the only entities the playback engine creates and
// mutates; everything else it touches is read-only content.
package session

import (
	"time"

	"github.com/dreamscape-app/dreamscape/internal/content"
)

// Status is the lifecycle state of a sleep session. Transitions only move
// scheduled -> active -> completed|cancelled.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// EventStatus describes what happened to a single cue occurrence.
type EventStatus string

const (
	EventPlayed     EventStatus = "played"
	EventSuppressed EventStatus = "suppressed"
	EventSkipped    EventStatus = "skipped"
)

// SuppressedReason explains why a cue was suppressed. The engine itself
// only emits played events today; the store round-trips the full set so
// older records survive.
type SuppressedReason string

const (
	SuppressedMotion   SuppressedReason = "motion"
	SuppressedNoise    SuppressedReason = "noise"
	SuppressedUser     SuppressedReason = "user"
	SuppressedSchedule SuppressedReason = "schedule"
	SuppressedUnknown  SuppressedReason = "unknown"
)

// Session is one playback run.
type Session struct {
	ID            string     `json:"id"`
	TopicID       string     `json:"topicId,omitempty"`
	StartedAt     time.Time  `json:"startedAt"`
	EndedAt       *time.Time `json:"endedAt,omitempty"`
	PlannedCueIDs []string   `json:"plannedCueIds"`
	CueIDsPlayed  []string   `json:"cueIdsPlayed"`
	Interruptions int        `json:"interruptions"`
	AvgNoise      *float64   `json:"avgNoise,omitempty"`
	AvgMotion     *float64   `json:"avgMotion,omitempty"`
	Status        Status     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
}

// CueEvent is one playback occurrence. Append-only, never mutated.
type CueEvent struct {
	ID               string           `json:"id"`
	SessionID        string           `json:"sessionId"`
	TopicID          string           `json:"topicId,omitempty"`
	ItemID           string           `json:"itemId"`
	CueID            string           `json:"cueId,omitempty"`
	Timestamp        time.Time        `json:"timestamp"`
	Volume           float64          `json:"volume"`
	Status           EventStatus      `json:"status"`
	SuppressedReason SuppressedReason `json:"suppressedReason,omitempty"`
	DurationSeconds  float64          `json:"durationSeconds,omitempty"`
}

// NewSession builds a scheduled session; the recorder activates it when
// playback actually starts.
func NewSession(topicID string, plannedCueIDs []string) Session {
	if plannedCueIDs == nil {
		plannedCueIDs = []string{}
	}
	return Session{
		ID:            content.NewID("session"),
		TopicID:       topicID,
		StartedAt:     time.Now(),
		PlannedCueIDs: plannedCueIDs,
		CueIDsPlayed:  []string{},
		Status:        StatusScheduled,
	}
}
