package content

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	badger "github.com/dgraph-io/badger/v4"
)

// Key prefixes. One record per entity, JSON-encoded.
const (
	topicPrefix = "topic/"
	itemPrefix  = "item/"
	cuePrefix   = "cue/"
)

// Store persists topics, items and cues in a Badger key-value database.
// Records that fail to decode on read are skipped with a warning rather
// than failing the whole read.
type Store struct {
	db     *badger.DB
	logger *log.Logger
}

// NewStore wraps an open Badger database.
func NewStore(db *badger.DB, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{db: db, logger: logger.With("component", "content")}
}

// Open opens (or creates) the content database at dir.
func Open(dir string, logger *log.Logger) (*Store, *badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open content store: %w", err)
	}
	return NewStore(db, logger), db, nil
}

// Topics returns all topics keyed by id.
func (s *Store) Topics() (map[string]Topic, error) {
	return readAll[Topic](s, topicPrefix)
}

// Items returns all items keyed by id.
func (s *Store) Items() (map[string]Item, error) {
	return readAll[Item](s, itemPrefix)
}

// Cues returns all cues keyed by id.
func (s *Store) Cues() (map[string]Cue, error) {
	return readAll[Cue](s, cuePrefix)
}

// ItemsByTopic returns the topic's items in store iteration order. No
// stronger ordering is guaranteed.
func (s *Store) ItemsByTopic(topicID string) ([]Item, error) {
	var out []Item
	err := s.iterate(itemPrefix, func(raw []byte) {
		var it Item
		if err := json.Unmarshal(raw, &it); err != nil {
			s.logger.Warn("skipping invalid item record", "err", err)
			return
		}
		if it.TopicID == topicID {
			out = append(out, it)
		}
	})
	return out, err
}

// CuesByItem returns cues grouped by owning item id, each group in store
// iteration order.
func (s *Store) CuesByItem(topicID string) (map[string][]Cue, error) {
	out := make(map[string][]Cue)
	err := s.iterate(cuePrefix, func(raw []byte) {
		var c Cue
		if err := json.Unmarshal(raw, &c); err != nil {
			s.logger.Warn("skipping invalid cue record", "err", err)
			return
		}
		if c.TopicID == topicID {
			out[c.ItemID] = append(out[c.ItemID], c)
		}
	})
	return out, err
}

// FindTopic looks a topic up by id, exact name, or short name.
func (s *Store) FindTopic(ref string) (Topic, bool, error) {
	topics, err := s.Topics()
	if err != nil {
		return Topic{}, false, err
	}
	if t, ok := topics[ref]; ok {
		return t, true, nil
	}
	for _, t := range topics {
		if strings.EqualFold(t.Name, ref) || (t.ShortName != "" && strings.EqualFold(t.ShortName, ref)) {
			return t, true, nil
		}
	}
	return Topic{}, false, nil
}

// PutTopic writes a topic record.
func (s *Store) PutTopic(t Topic) error {
	return s.put(topicPrefix+t.ID, t)
}

// PutItem writes an item record.
func (s *Store) PutItem(it Item) error {
	return s.put(itemPrefix+it.ID, it)
}

// PutCue writes a cue record.
func (s *Store) PutCue(c Cue) error {
	return s.put(cuePrefix+c.ID, c)
}

// DeleteTopic removes a topic together with its items and cues.
func (s *Store) DeleteTopic(topicID string) error {
	items, err := s.ItemsByTopic(topicID)
	if err != nil {
		return err
	}
	cues, err := s.CuesByItem(topicID)
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(topicPrefix + topicID)); err != nil {
			return err
		}
		for _, it := range items {
			if err := txn.Delete([]byte(itemPrefix + it.ID)); err != nil {
				return err
			}
		}
		for _, group := range cues {
			for _, c := range group {
				if err := txn.Delete([]byte(cuePrefix + c.ID)); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// DeleteItem removes a single item record.
func (s *Store) DeleteItem(itemID string) error {
	return s.delete(itemPrefix + itemID)
}

// DeleteCue removes a single cue record.
func (s *Store) DeleteCue(cueID string) error {
	return s.delete(cuePrefix + cueID)
}

// MarkCuePlayed bumps the cue's play counter and last-played timestamp.
// Missing cues (fallback plays keyed by item) are a no-op.
func (s *Store) MarkCuePlayed(cueID string, at time.Time) error {
	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(cuePrefix + cueID))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		var c Cue
		if err := item.Value(func(raw []byte) error { return json.Unmarshal(raw, &c) }); err != nil {
			s.logger.Warn("cannot bump play count on invalid cue record", "cue", cueID, "err", err)
			return nil
		}
		c.PlayCount++
		c.LastPlayedAt = &at
		c.UpdatedAt = at
		raw, err := json.Marshal(c)
		if err != nil {
			return err
		}
		return txn.Set([]byte(cuePrefix+cueID), raw)
	})
}

func (s *Store) put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

func (s *Store) delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

func (s *Store) iterate(prefix string, fn func(raw []byte)) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(raw []byte) error {
				fn(raw)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
}

func readAll[T any](s *Store, prefix string) (map[string]T, error) {
	out := make(map[string]T)
	err := s.iterate(prefix, func(raw []byte) {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			s.logger.Warn("skipping invalid record", "prefix", prefix, "err", err)
			return
		}
		// Every record type carries its own id in JSON; re-extract it so
		// the map key never disagrees with the record.
		var withID struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(raw, &withID); err != nil || withID.ID == "" {
			s.logger.Warn("skipping record without id", "prefix", prefix)
			return
		}
		out[withID.ID] = v
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
