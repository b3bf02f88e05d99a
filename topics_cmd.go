package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dreamscape-app/dreamscape/internal/content"
)

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topics and their cue coverage",
	Args:  cobra.NoArgs,
	RunE:  runTopics,
}

var topicsSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a small demo topic to try playback with",
	Args:  cobra.NoArgs,
	RunE:  runTopicsSeed,
}

var topicsDeleteCmd = &cobra.Command{
	Use:   "delete TOPIC",
	Short: "Delete a topic with its items and cues",
	Args:  cobra.ExactArgs(1),
	RunE:  runTopicsDelete,
}

func init() {
	topicsCmd.AddCommand(topicsSeedCmd, topicsDeleteCmd)
}

func runTopics(*cobra.Command, []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	topics, err := a.content.Topics()
	if err != nil {
		return err
	}
	if len(topics) == 0 {
		fmt.Println(subtle("No topics yet. Try 'dreamscape topics seed'."))
		return nil
	}

	sorted := make([]content.Topic, 0, len(topics))
	for _, t := range topics {
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	fmt.Println(headerStyle.Render("Topics"))
	for _, t := range sorted {
		items, err := a.content.ItemsByTopic(t.ID)
		if err != nil {
			return err
		}
		cues, err := a.content.CuesByItem(t.ID)
		if err != nil {
			return err
		}
		cueCount := 0
		for _, group := range cues {
			cueCount += len(group)
		}
		fmt.Printf("  %s  %s\n", keyword(t.Name), subtle(fmt.Sprintf("%s · %d items · %d cues", t.ID, len(items), cueCount)))
	}
	return nil
}

func runTopicsSeed(*cobra.Command, []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	topic := content.NewTopic("French Basics", "Starter vocabulary for sleep review", "demo")
	topic.ShortName = "french"
	if err := a.content.PutTopic(topic); err != nil {
		return err
	}

	cards := []struct{ front, back, cue string }{
		{"la mer", "the sea", "The sea in French is la mer"},
		{"le ciel", "the sky", "Le ciel means the sky"},
		{"une étoile", "a star", "A star is une étoile"},
		{"dormir", "to sleep", ""},
	}
	for _, card := range cards {
		item := content.NewItem(topic.ID, card.front, card.back, "")
		if err := a.content.PutItem(item); err != nil {
			return err
		}
		if card.cue != "" {
			if err := a.content.PutCue(content.NewCue(topic.ID, item.ID, card.cue)); err != nil {
				return err
			}
		}
	}

	fmt.Printf("Seeded %s. Start it with %s\n", keyword(topic.Name), keyword("dreamscape play french"))
	return nil
}

func runTopicsDelete(_ *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	topic, found, err := a.content.FindTopic(args[0])
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no topic matches %q", args[0])
	}
	if err := a.content.DeleteTopic(topic.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted %s and its items and cues.\n", keyword(topic.Name))
	return nil
}
