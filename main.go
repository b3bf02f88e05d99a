// Package main provides the entry point for the DreamScape CLI, a
// sleep-learning playback engine: it reads spoken memory cues over a
// gentle ambient loop while you fall asleep, and records every session.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	// Version as provided by goreleaser.
	Version = ""
	// CommitSHA as provided by goreleaser.
	CommitSHA = ""

	configFile string
	dataDir    string
	cacheDir   string
	logLevel   string

	rootCmd = &cobra.Command{
		Use:   "dreamscape",
		Short: "Sleep-learning cue playback, with lullabies!",
		Long: paragraph(
			fmt.Sprintf("\nPlay your flashcard %s over soft ambience while you sleep, and wake up to a recorded session.", keyword("memory cues")),
		),
		SilenceErrors:    false,
		SilenceUsage:     true,
		TraverseChildren: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// Flags are only bound after parsing; re-apply the level.
			setupLog()
		},
	}
)

func main() {
	setupLog()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLog() {
	lvl, err := log.ParseLevel(viper.GetString("log_level"))
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
	log.SetReportTimestamp(false)
}

func init() {
	// Provider credentials may live in a local .env during development.
	_ = godotenv.Load()
	tryLoadConfigFromDefaultPlaces()

	if len(CommitSHA) >= 7 {
		vt := rootCmd.VersionTemplate()
		rootCmd.SetVersionTemplate(vt[:len(vt)-1] + " (" + CommitSHA[0:7] + ")\n")
	}
	if Version == "" {
		Version = "unknown (built from source)"
	}
	rootCmd.Version = Version
	rootCmd.InitDefaultCompletionCmd()

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", fmt.Sprintf("config file (default %s)", viper.GetViper().ConfigFileUsed()))
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "database directory (default per-user data dir)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "", "synthesized audio cache directory (default per-user cache dir)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("cache_dir", rootCmd.PersistentFlags().Lookup("cache-dir"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))

	viper.SetDefault("log_level", "info")
	viper.SetDefault("interval", "5m")
	viper.SetDefault("voice", "")
	viper.SetDefault("ambient.preset", "")
	viper.SetDefault("ambient.duration", 30)
	viper.SetDefault("ambient.volume", 0.35)
	viper.SetDefault("ambient.ducked_volume", 0.08)
	viper.SetDefault("cue.volume", 1.0)

	rootCmd.AddCommand(playCmd, previewCmd, topicsCmd, sessionsCmd, cacheCmd, configCmd)
}

func tryLoadConfigFromDefaultPlaces() {
	scope := gap.NewScope(gap.User, "dreamscape")
	dirs, err := scope.ConfigDirs()
	if err != nil {
		fmt.Println("Could not find configuration directory.")
		os.Exit(1)
	}

	if c := os.Getenv("XDG_CONFIG_HOME"); c != "" {
		dirs = append([]string{filepath.Join(c, "dreamscape")}, dirs...)
	}
	if c := os.Getenv("DREAMSCAPE_CONFIG_HOME"); c != "" {
		dirs = append([]string{c}, dirs...)
	}

	for _, v := range dirs {
		viper.AddConfigPath(v)
	}

	viper.SetConfigName("dreamscape")
	viper.SetConfigType("yaml")
	viper.SetEnvPrefix("dreamscape")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warn("Could not parse configuration file", "err", err)
		}
	}

	if used := viper.ConfigFileUsed(); used != "" {
		log.Debug("Using configuration file", "path", used)
		return
	}
	configFile = filepath.Join(dirs[0], "dreamscape.yml")
}

// defaultDir resolves a per-user directory for data or cache, honoring
// the corresponding flag or config key first.
func defaultDir(configKey string, resolve func(*gap.Scope) (string, error)) (string, error) {
	if dir := viper.GetString(configKey); dir != "" {
		return dir, nil
	}
	scope := gap.NewScope(gap.User, "dreamscape")
	dir, err := resolve(scope)
	if err != nil {
		return "", fmt.Errorf("resolve %s directory: %w", configKey, err)
	}
	return dir, nil
}

func resolveDataDir() (string, error) {
	return defaultDir("data_dir", func(s *gap.Scope) (string, error) { return s.DataPath("db") })
}

func resolveCacheDir() (string, error) {
	return defaultDir("cache_dir", func(s *gap.Scope) (string, error) { return s.CachePath("audio") })
}

func intervalFromConfig() time.Duration {
	d, err := time.ParseDuration(viper.GetString("interval"))
	if err != nil || d <= 0 {
		return 5 * time.Minute
	}
	return d
}
