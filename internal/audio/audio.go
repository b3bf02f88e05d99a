// Package audio abstracts sound output behind a small Player/Sound
// surface. The production implementation sits on oto; tests use a mock
// that records every operation.
//
// All audio in the system is raw PCM, 44100 Hz mono signed 16-bit little
// endian, which is what the synthesis cache stores. Completion is exposed
// as a channel rather than a callback so callers can await playback
// without racing their own cleanup.
package audio

import "time"

const (
	// SampleRate is the fixed output rate.
	SampleRate = 44100
	// Channels is mono output; cues are speech.
	Channels = 1
	// BytesPerSample is 16-bit depth.
	BytesPerSample = 2
)

// Duration computes playback time for a PCM byte count.
func Duration(n int) time.Duration {
	samples := n / (Channels * BytesPerSample)
	return time.Duration(samples) * time.Second / time.Duration(SampleRate)
}

// Player opens sounds from audio file locations.
type Player interface {
	// Load reads the audio at uri and prepares it for playback. The
	// returned Sound is owned by the caller and must be stopped to
	// release it.
	Load(uri string) (Sound, error)
	// Close releases the audio device. Outstanding sounds become
	// inert.
	Close() error
}

// Sound is one loaded piece of audio. At most one playback per Sound.
type Sound interface {
	// Play starts playback. Looping sounds play until stopped.
	Play() error
	// Stop halts playback and releases the sound. Safe to call more
	// than once; Done is closed if it was not already.
	Stop() error
	// SetVolume adjusts playback volume in [0, 1], effective
	// immediately, including mid-playback.
	SetVolume(v float64) error
	// Volume reports the current volume.
	Volume() float64
	// SetLoop marks the sound as looping. Must be called before Play.
	SetLoop(loop bool)
	// Done is closed when playback finishes naturally or the sound is
	// stopped. Looping sounds only complete via Stop.
	Done() <-chan struct{}
	// Length reports the duration of one pass of the audio.
	Length() time.Duration
}
