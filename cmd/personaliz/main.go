// Personaliz, the local assistant that turns chat messages into OpenClaw
// agents.
//
// It provides:
//   - serve: the local HTTP + WebSocket API used by the desktop shell
//   - chat:  the same conversation in a terminal
//   - agents / events: read-only listings of the agent store
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/Midhun81790/personaliz-openclaw-desktop-assistant/internal/config"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	cfg     *config.Config
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "personaliz",
	Short: "Personaliz desktop assistant",
	Long: `Personaliz turns plain-language requests into scheduled OpenClaw agents.

Run "personaliz serve" for the desktop API or "personaliz chat" to talk to the
assistant from a terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err == nil {
			log.Debug().Msg("Loaded .env")
		}

		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		setupLogging(cfg.LogLevel)
		return nil
	},
}

func setupLogging(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "personaliz", cfg.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.AddCommand(serveCmd, chatCmd, agentsCmd, eventsCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
