package engine

import "errors"

// Selection errors: recoverable by changing the selection, never cause a
// state transition.
var (
	// ErrNoTopic indicates start was requested without a topic.
	ErrNoTopic = errors.New("select a topic to start playback")

	// ErrNoCues indicates the selected topic resolved to zero cue
	// sources.
	ErrNoCues = errors.New("no cues found for this topic; add flashcards with cues first")

	// ErrBusy indicates a session is already preparing or playing.
	ErrBusy = errors.New("a sleep session is already running")

	// ErrSessionActive rejects previews while a session is not idle.
	ErrSessionActive = errors.New("stop the sleep session before previewing")
)
