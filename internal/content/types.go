// Package content holds the read-side learning material: topics, their
// flashcard items, and the spoken cues derived from them. The playback
// engine only reads this data; it is written by the import and flashcard
// flows upstream.
package content

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Topic is a named subject area owning zero or more items.
type Topic struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ShortName   string    `json:"shortName,omitempty"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Item is a single flashcard belonging to exactly one topic.
type Item struct {
	ID               string    `json:"id"`
	TopicID          string    `json:"topicId"`
	Front            string    `json:"front"`
	Back             string    `json:"back"`
	CueText          string    `json:"cueText,omitempty"`
	AudioURI         string    `json:"audioUri,omitempty"`
	LastEveningScore *float64  `json:"lastEveningScore,omitempty"`
	LastMorningScore *float64  `json:"lastMorningScore,omitempty"`
	TimesCued        int       `json:"timesCued"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// Cue is a short spoken prompt derived from an item. An item may have
// zero cues (the resolver falls back to the item's own text) or many.
type Cue struct {
	ID              string     `json:"id"`
	TopicID         string     `json:"topicId"`
	ItemID          string     `json:"itemId"`
	CueText         string     `json:"cueText"`
	AudioURI        string     `json:"audioUri,omitempty"`
	DurationSeconds float64    `json:"durationSeconds,omitempty"`
	LastPlayedAt    *time.Time `json:"lastPlayedAt,omitempty"`
	PlayCount       int        `json:"playCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// NewID returns a prefixed identifier such as "topic_4f9c...".
func NewID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// NewTopic builds a topic with fresh id and timestamps.
func NewTopic(name, description string, tags ...string) Topic {
	now := time.Now()
	return Topic{
		ID:          NewID("topic"),
		Name:        name,
		Description: description,
		Tags:        tags,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewItem builds a flashcard for the given topic.
func NewItem(topicID, front, back, cueText string) Item {
	now := time.Now()
	return Item{
		ID:        NewID("item"),
		TopicID:   topicID,
		Front:     front,
		Back:      back,
		CueText:   cueText,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewCue builds a cue attached to an item.
func NewCue(topicID, itemID, cueText string) Cue {
	now := time.Now()
	return Cue{
		ID:        NewID("cue"),
		TopicID:   topicID,
		ItemID:    itemID,
		CueText:   cueText,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
