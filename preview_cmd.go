package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dreamscape-app/dreamscape/internal/audio"
	"github.com/dreamscape-app/dreamscape/internal/engine"
	"github.com/dreamscape-app/dreamscape/internal/synth"
)

var previewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Audition a voice or an ambient preset",
}

var previewVoiceCmd = &cobra.Command{
	Use:     "voice [VOICE_ID]",
	Short:   "Play a short spoken sample in a voice",
	Example: paragraph("dreamscape preview voice\ndreamscape preview voice 21m00Tcm4TlvDq8ikWAM"),
	Args:    cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		voice := viper.GetString("voice")
		if len(args) == 1 {
			voice = args[0]
		}
		return runPreview(func(p *engine.Preview) error {
			return p.Voice(cmd.Context(), voice)
		})
	},
}

var previewAmbientCmd = &cobra.Command{
	Use:     "ambient PRESET",
	Short:   "Play a short sample of an ambient preset",
	Long:    paragraph("\nPlay a bounded sample of a generated ambient loop. Available presets: " + strings.Join(synth.AmbientPresets(), ", ") + "."),
	Example: paragraph("dreamscape preview ambient rain"),
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPreview(func(p *engine.Preview) error {
			return p.Ambient(cmd.Context(), args[0])
		})
	},
}

func init() {
	previewCmd.AddCommand(previewVoiceCmd, previewAmbientCmd)
}

func runPreview(start func(*engine.Preview) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	cache, err := a.synthCache()
	if err != nil {
		return err
	}
	player, err := audio.NewOtoPlayer()
	if err != nil {
		return err
	}
	defer player.Close()

	preview := engine.NewPreview(cache, player, nil, a.logger)
	if err := start(preview); err != nil {
		return err
	}
	fmt.Println(subtle("Previewing " + preview.Active() + "..."))

	// Block until the sample finishes; the preview clears itself on
	// natural completion.
	for preview.Active() != "" {
		time.Sleep(100 * time.Millisecond)
	}
	return nil
}
