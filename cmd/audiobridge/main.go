// Audiobridge plays sounds and speaks text on a local sound card in response
// to MQTT messages, bracketing each playback with a temporary volume.
//
// Usage:
//
//	audiobridge serve [--config /path/to/audiobridge.yaml]
//	audiobridge play chime --volume 60
//	audiobridge speak "dinner is ready"
//	audiobridge announce chime "someone is at the door"
//	audiobridge cache list
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nadzzz/audiobridge/internal/app"
	"github.com/nadzzz/audiobridge/internal/config"
	"github.com/nadzzz/audiobridge/internal/mixer"
)

// version is set at build time via ldflags.
var version = "dev"

var (
	configFile string
	cfg        *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "audiobridge",
	Short:         "MQTT audio announcement bridge",
	Long:          `Audiobridge subscribes to an MQTT topic namespace and plays local sounds or synthesized speech, adjusting the mixer volume around each playback.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
		config.SetupLogging(cfg.Logging)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (e.g. configs/audiobridge.yaml)")
}

func main() {
	// Create root context with signal handling for graceful shutdown.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, mixer.ErrDeviceNotFound) {
			slog.Error("unable to find sound card", "error", err)
		} else {
			slog.Error("audiobridge failed", "error", err)
		}
		cancel()
		os.Exit(1)
	}
}

// newApp wires the components for a command.
func newApp(ctx context.Context) (*app.App, error) {
	return app.New(ctx, cfg)
}
