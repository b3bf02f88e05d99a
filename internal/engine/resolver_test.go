package engine

import (
	"testing"

	"github.com/dreamscape-app/dreamscape/internal/content"
)

func item(id, front, back, cueText string) content.Item {
	return content.Item{ID: id, TopicID: "topic_1", Front: front, Back: back, CueText: cueText}
}

func cue(id, itemID, text string) content.Cue {
	return content.Cue{ID: id, TopicID: "topic_1", ItemID: itemID, CueText: text}
}

func TestResolveCueWithBothSides(t *testing.T) {
	items := []content.Item{item("item_1", "la mer", "the sea", "")}
	cues := map[string][]content.Cue{
		"item_1": {cue("cue_1", "item_1", "Remember the sea")},
	}

	got := ResolveCueSources("topic_1", items, cues)
	if len(got) != 1 {
		t.Fatalf("expected 1 prepared cue, got %d", len(got))
	}
	want := "Remember the sea. the sea. la mer"
	if got[0].Text != want {
		t.Errorf("text = %q, want %q", got[0].Text, want)
	}
	if got[0].CueID != "cue_1" || got[0].ItemID != "item_1" {
		t.Errorf("ids = %q/%q, want cue_1/item_1", got[0].CueID, got[0].ItemID)
	}
}

func TestResolveCueWithMissingSideReadsBareCue(t *testing.T) {
	items := []content.Item{item("item_1", "la mer", "  ", "")}
	cues := map[string][]content.Cue{
		"item_1": {cue("cue_1", "item_1", "Remember the sea")},
	}

	got := ResolveCueSources("topic_1", items, cues)
	if len(got) != 1 {
		t.Fatalf("expected 1 prepared cue, got %d", len(got))
	}
	if got[0].Text != "Remember the sea" {
		t.Errorf("text = %q, want bare cue text", got[0].Text)
	}
}

func TestResolveFallbackPriority(t *testing.T) {
	cases := []struct {
		name string
		item content.Item
		want string
	}{
		{"snippet", item("item_1", "la mer", "the sea", "short cue"), "the sea. la mer"},
		{"cue text", item("item_2", "la mer", "", "short cue"), "short cue"},
		{"front", item("item_3", "la mer", "", ""), "la mer"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveCueSources("topic_1", []content.Item{tc.item}, nil)
			if len(got) != 1 {
				t.Fatalf("expected 1 prepared cue, got %d", len(got))
			}
			if got[0].Text != tc.want {
				t.Errorf("text = %q, want %q", got[0].Text, tc.want)
			}
			if got[0].CueID != "" {
				t.Errorf("fallback entry must have no cue id, got %q", got[0].CueID)
			}
		})
	}
}

func TestResolveDropsBlankEntries(t *testing.T) {
	items := []content.Item{
		item("item_1", "  ", "", ""),
		item("item_2", "la mer", "", ""),
	}
	cues := map[string][]content.Cue{
		"item_2": {cue("cue_1", "item_2", "   ")},
	}

	got := ResolveCueSources("topic_1", items, cues)
	if len(got) != 0 {
		t.Fatalf("expected blank sources to be dropped, got %d entries", len(got))
	}
}

func TestResolveBlankCueTextReadsSnippetOnly(t *testing.T) {
	items := []content.Item{item("item_1", "la mer", "the sea", "")}
	cues := map[string][]content.Cue{
		"item_1": {cue("cue_1", "item_1", "   ")},
	}

	got := ResolveCueSources("topic_1", items, cues)
	if len(got) != 1 {
		t.Fatalf("expected 1 prepared cue, got %d", len(got))
	}
	if got[0].Text != "the sea. la mer" {
		t.Errorf("text = %q, want the bare snippet without a leading separator", got[0].Text)
	}
	if got[0].CueID != "cue_1" {
		t.Errorf("cue id = %q, want cue_1", got[0].CueID)
	}
}

func TestResolvePreservesOrder(t *testing.T) {
	items := []content.Item{
		item("item_1", "a", "b", ""),
		item("item_2", "c", "d", ""),
	}
	cues := map[string][]content.Cue{
		"item_1": {cue("cue_1", "item_1", "first"), cue("cue_2", "item_1", "second")},
	}

	got := ResolveCueSources("topic_1", items, cues)
	keys := make([]string, len(got))
	for i, p := range got {
		keys[i] = p.Key
	}
	want := []string{"cue_1", "cue_2", "item_2-fallback"}
	if len(keys) != len(want) {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("keys = %v, want %v", keys, want)
		}
	}
}

func TestPlayedIDPrefersCue(t *testing.T) {
	withCue := PreparedCue{ItemID: "item_1", CueID: "cue_1"}
	if withCue.PlayedID() != "cue_1" {
		t.Errorf("PlayedID = %q, want cue_1", withCue.PlayedID())
	}
	fallback := PreparedCue{ItemID: "item_1"}
	if fallback.PlayedID() != "item_1" {
		t.Errorf("PlayedID = %q, want item_1", fallback.PlayedID())
	}
}
