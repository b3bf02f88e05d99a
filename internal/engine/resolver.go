// Package engine is the sleep-session playback core: it resolves cue
// sources from a topic's flashcards, prepares their audio through the
// synthesis cache, sequences playback with ambient ducking, and records
// the session.
package engine

import (
	"strings"

	"github.com/dreamscape-app/dreamscape/internal/content"
)

// PreparedCue is a resolved cue source joined with its audio location.
// It exists only for the duration of one playback run.
type PreparedCue struct {
	Key     string
	Text    string
	URI     string
	ItemID  string
	TopicID string
	CueID   string // empty for item fallback entries
}

// PlayedID is the identifier recorded when this cue plays: the cue id
// when present, else the owning item id.
func (p PreparedCue) PlayedID() string {
	if p.CueID != "" {
		return p.CueID
	}
	return p.ItemID
}

// ResolveCueSources derives the ordered cue list for a topic. Items with
// cues contribute one entry per cue; items without contribute a single
// fallback entry. Entries keep the iteration order of the inputs — the
// resolver never reorders — and entries whose spoken text ends up blank
// are dropped.
//
// Spoken text composition: a cue is read as "cue text. back. front" when
// the item has both sides (just the snippet when the cue text is blank),
// otherwise as the bare cue text. Fallback
// entries read the back+front snippet, then the item's short cue text,
// then its front, whichever is available first.
func ResolveCueSources(topicID string, items []content.Item, cuesByItem map[string][]content.Cue) []PreparedCue {
	var list []PreparedCue

	for _, item := range items {
		itemCues := cuesByItem[item.ID]

		if len(itemCues) == 0 {
			text := fallbackText(item)
			if strings.TrimSpace(text) == "" {
				continue
			}
			list = append(list, PreparedCue{
				Key:     item.ID + "-fallback",
				Text:    text,
				ItemID:  item.ID,
				TopicID: topicID,
			})
			continue
		}

		for _, cue := range itemCues {
			text := cueText(cue, item)
			if strings.TrimSpace(text) == "" {
				continue
			}
			list = append(list, PreparedCue{
				Key:     cue.ID,
				Text:    text,
				ItemID:  item.ID,
				TopicID: topicID,
				CueID:   cue.ID,
			})
		}
	}

	return list
}

func cueText(cue content.Cue, item content.Item) string {
	snippet := itemSnippet(item)
	text := strings.TrimSpace(cue.CueText)
	switch {
	case snippet == "":
		return text
	case text == "":
		// No separator for a blank cue; spoken text never starts
		// with a dangling period.
		return snippet
	default:
		return text + ". " + snippet
	}
}

func fallbackText(item content.Item) string {
	if snippet := itemSnippet(item); snippet != "" {
		return snippet
	}
	if strings.TrimSpace(item.CueText) != "" {
		return item.CueText
	}
	return item.Front
}

// itemSnippet is the answer-first reading of a card, "back. front", used
// so a sleeping listener hears the association before the prompt.
func itemSnippet(item content.Item) string {
	back := strings.TrimSpace(item.Back)
	front := strings.TrimSpace(item.Front)
	if back == "" || front == "" {
		return ""
	}
	return back + ". " + front
}
