package synth

import (
	"fmt"
	"sort"
)

// Ambient presets map a short key to the generation prompt used for the
// background loop. Tuned for sleep and study sessions.
var ambientPresets = map[string]string{
	"lofi":        "Soft lofi hip hop beats, mellow piano, gentle rain, calming and peaceful",
	"rain":        "Gentle rain falling, distant thunder, peaceful nature ambience",
	"ocean":       "Soft ocean waves, gentle beach sounds, calming seaside atmosphere",
	"forest":      "Peaceful forest ambience, rustling leaves, distant birds, serene nature",
	"cafe":        "Quiet coffee shop ambience, soft chatter, gentle acoustic music background",
	"white_noise": "Gentle white noise, soft static, calming background sound for focus",
	"piano":       "Soft piano melody, ambient instrumental, peaceful and relaxing",
	"meditation":  "Deep meditation sounds, Tibetan singing bowls, peaceful zen atmosphere",
}

// AmbientPresets lists the available preset keys, sorted.
func AmbientPresets() []string {
	keys := make([]string, 0, len(ambientPresets))
	for k := range ambientPresets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// AmbientPrompt resolves a preset key to its generation prompt.
func AmbientPrompt(preset string) (string, error) {
	prompt, ok := ambientPresets[preset]
	if !ok {
		return "", fmt.Errorf("unknown ambient preset %q", preset)
	}
	return prompt, nil
}
