package main

import (
	"fmt"

	"github.com/charmbracelet/log"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/spf13/viper"

	"github.com/dreamscape-app/dreamscape/internal/content"
	"github.com/dreamscape-app/dreamscape/internal/engine"
	"github.com/dreamscape-app/dreamscape/internal/session"
	"github.com/dreamscape-app/dreamscape/internal/synth"
)

// app wires the stores and services every subcommand shares. Content and
// session records live in one Badger database under distinct key
// prefixes.
type app struct {
	db       *badger.DB
	content  *content.Store
	sessions *session.Store
	recorder *session.Recorder
	logger   *log.Logger
}

func newApp() (*app, error) {
	logger := log.Default()

	dir, err := resolveDataDir()
	if err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", dir, err)
	}

	sessions, err := session.NewStore(db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		db:       db,
		content:  content.NewStore(db, logger),
		sessions: sessions,
		recorder: session.NewRecorder(sessions, logger),
		logger:   logger,
	}, nil
}

func (a *app) Close() {
	if err := a.sessions.Close(); err != nil {
		a.logger.Warn("closing session store", "err", err)
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("closing database", "err", err)
	}
}

// synthCache builds the provider client and disk cache. Commands that
// never synthesize (topics, sessions) skip this, so they work without
// credentials.
func (a *app) synthCache() (*synth.Cache, error) {
	cfg, err := synth.ConfigFromEnv()
	if err != nil {
		return nil, err
	}
	client, err := synth.NewClient(cfg, a.logger)
	if err != nil {
		return nil, err
	}
	dir, err := resolveCacheDir()
	if err != nil {
		return nil, err
	}
	return synth.NewCache(dir, client, a.logger)
}

func schedulerConfig() engine.Config {
	cfg := engine.DefaultConfig()
	cfg.Interval = intervalFromConfig()
	cfg.VoiceID = viper.GetString("voice")
	cfg.AmbientPreset = viper.GetString("ambient.preset")
	cfg.AmbientSeconds = viper.GetFloat64("ambient.duration")
	cfg.CueVolume = viper.GetFloat64("cue.volume")
	cfg.AmbientVolume = viper.GetFloat64("ambient.volume")
	cfg.DuckedVolume = viper.GetFloat64("ambient.ducked_volume")
	return cfg
}
