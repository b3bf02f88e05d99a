package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dreamscape-app/dreamscape/internal/audio"
	"github.com/dreamscape-app/dreamscape/internal/engine"
)

var (
	playInterval time.Duration
	playVoice    string
	playAmbient  string

	playCmd = &cobra.Command{
		Use:   "play TOPIC",
		Short: "Start a sleep session for a topic",
		Long: paragraph(fmt.Sprintf(
			"\nStart a %s: every cue in the topic is synthesized up front, then read aloud in a loop at a fixed interval, over optional ambience. Press ctrl+c to stop.",
			keyword("sleep session"),
		)),
		Example: paragraph("dreamscape play french --interval 5m --ambient rain"),
		Args:    cobra.ExactArgs(1),
		RunE:    runPlay,
	}
)

func init() {
	playCmd.Flags().DurationVarP(&playInterval, "interval", "i", 0, "time between cues (default from config, 5m)")
	playCmd.Flags().StringVarP(&playVoice, "voice", "v", "", "synthesis voice id")
	playCmd.Flags().StringVarP(&playAmbient, "ambient", "b", "", "ambient preset (see 'dreamscape preview ambient')")
	_ = viper.BindPFlag("voice", playCmd.Flags().Lookup("voice"))
	_ = viper.BindPFlag("ambient.preset", playCmd.Flags().Lookup("ambient"))
}

func runPlay(cmd *cobra.Command, args []string) error {
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
		return fmt.Errorf("no topic matches %q (try 'dreamscape topics')", args[0])
	}

	cache, err := a.synthCache()
	if err != nil {
		return err
	}
	player, err := audio.NewOtoPlayer()
	if err != nil {
		return err
	}
	defer player.Close()

	cfg := schedulerConfig()
	if playInterval > 0 {
		cfg.Interval = playInterval
	}

	sched := engine.NewScheduler(a.content, cache, player, a.recorder, cfg, a.logger)
	playbackErr := make(chan error, 1)
	sched.OnPlaybackError = func(err error) { playbackErr <- err }

	fmt.Printf("Preparing %s...\n", keyword(topic.Name))
	if err := sched.Start(cmd.Context(), topic.ID); err != nil {
		return err
	}
	fmt.Printf("Playing every %s. %s\n", keyword(cfg.Interval.String()), subtle("Press ctrl+c to stop."))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case <-sig:
		fmt.Println("\nStopping session...")
		sched.Stop()
		fmt.Println(okStyle.Render("Session recorded. Sleep well."))
		return nil
	case err := <-playbackErr:
		return fmt.Errorf("playback stopped: %w", err)
	case <-cmd.Context().Done():
		sched.Stop()
		return context.Cause(cmd.Context())
	}
}
