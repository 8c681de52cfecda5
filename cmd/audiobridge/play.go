package main

import (
	"github.com/spf13/cobra"
)

var (
	playVolume int
	voice      string
)

var playCmd = &cobra.Command{
	Use:   "play <sound>",
	Short: "Play a sound once",
	Long:  `Resolve a sound by name under the sound root (converting it if needed) and play it.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Playback.Play(cmd.Context(), args[0], volumeFlag(cmd))
	},
}

var speakCmd = &cobra.Command{
	Use:   "speak <text>",
	Short: "Speak text once",
	Long:  `Speak text through the configured speech provider, using the speech cache.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Playback.Speak(cmd.Context(), args[0], voice, volumeFlag(cmd))
	},
}

var announceCmd = &cobra.Command{
	Use:   "announce <sound> <text>",
	Short: "Play an alert sound followed by speech",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return a.Playback.Announce(cmd.Context(), args[0], args[1], voice, volumeFlag(cmd))
	},
}

func init() {
	for _, c := range []*cobra.Command{playCmd, speakCmd, announceCmd} {
		c.Flags().IntVarP(&playVolume, "volume", "v", 0, "playback volume 0-100 (default: current level)")
		rootCmd.AddCommand(c)
	}
	speakCmd.Flags().StringVar(&voice, "voice", "", "speech voice (default: tts.default_voice)")
	announceCmd.Flags().StringVar(&voice, "voice", "", "speech voice (default: tts.default_voice)")
}

// volumeFlag returns nil unless --volume was given.
func volumeFlag(cmd *cobra.Command) *int {
	if !cmd.Flags().Changed("volume") {
		return nil
	}
	v := playVolume
	return &v
}
