package session

import (
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	badger "github.com/dgraph-io/badger/v4"
)

const (
	sessionPrefix = "session/"
	eventPrefix   = "event/"
	eventSeqKey   = "seq/events"
)

// Store persists sessions and cue events in a Badger key-value database.
// Cue events are keyed by a monotonic sequence so iteration returns them
// in append order. Invalid records are skipped on read, never fatal.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	logger *log.Logger
}

// NewStore wraps an open Badger database.
func NewStore(db *badger.DB, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = log.Default()
	}
	seq, err := db.GetSequence([]byte(eventSeqKey), 64)
	if err != nil {
		return nil, fmt.Errorf("open event sequence: %w", err)
	}
	return &Store{db: db, seq: seq, logger: logger.With("component", "session-store")}, nil
}

// Open opens (or creates) the session database at dir.
func Open(dir string, logger *log.Logger) (*Store, *badger.DB, error) {
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open session store: %w", err)
	}
	st, err := NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return st, db, nil
}

// Close releases the event sequence. The caller owns the database handle.
func (s *Store) Close() error {
	return s.seq.Release()
}

// PutSession writes or overwrites a session record.
func (s *Store) PutSession(sess Session) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session %s: %w", sess.ID, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(sessionPrefix+sess.ID), raw)
	})
}

// GetSession fetches one session record.
func (s *Store) GetSession(id string) (Session, bool, error) {
	var sess Session
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(sessionPrefix + id))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(raw []byte) error {
			if err := json.Unmarshal(raw, &sess); err != nil {
				s.logger.Warn("invalid session record", "session", id, "err", err)
				return nil
			}
			found = true
			return nil
		})
	})
	return sess, found, err
}

// GetSessions returns all sessions keyed by id.
func (s *Store) GetSessions() (map[string]Session, error) {
	out := make(map[string]Session)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(sessionPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(raw []byte) error {
				var sess Session
				if err := json.Unmarshal(raw, &sess); err != nil || sess.ID == "" {
					s.logger.Warn("skipping invalid session record", "err", err)
					return nil
				}
				out[sess.ID] = sess
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSession removes a session record. Its events remain; history
// queries filter by session id.
func (s *Store) DeleteSession(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(sessionPrefix + id))
	})
}

// AppendCueEvent persists a cue event under the next sequence number.
func (s *Store) AppendCueEvent(ev CueEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode cue event %s: %w", ev.ID, err)
	}
	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("next event sequence: %w", err)
	}
	key := fmt.Sprintf("%s%016d", eventPrefix, n)
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), raw)
	})
}

// GetCueEvents returns events in append order, optionally filtered to one
// session. Pass "" for all events.
func (s *Store) GetCueEvents(sessionID string) ([]CueEvent, error) {
	var out []CueEvent
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := it.Item().Value(func(raw []byte) error {
				var ev CueEvent
				if err := json.Unmarshal(raw, &ev); err != nil || ev.ID == "" {
					s.logger.Warn("skipping invalid cue event record", "err", err)
					return nil
				}
				if sessionID == "" || ev.SessionID == sessionID {
					out = append(out, ev)
				}
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	return out, err
}

// ClearSleepData drops all sessions and cue events.
func (s *Store) ClearSleepData() error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, prefix := range []string{sessionPrefix, eventPrefix} {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			var keys [][]byte
			for it.Rewind(); it.Valid(); it.Next() {
				keys = append(keys, it.Item().KeyCopy(nil))
			}
			it.Close()
			for _, k := range keys {
				if err := txn.Delete(k); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
