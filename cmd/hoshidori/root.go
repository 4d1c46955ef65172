package main

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var (
	noColor bool
	debug   bool
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hoshidori",
		Short:         "Keep a log of the shows you watch",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `hoshidori records the performances you attend.

Signed out, logs are kept on this machine. Sign in with "hoshidori login"
to send them to your account.`,
	}
	root.SetVersionTemplate(versionString() + "\n")
	root.PersistentFlags().BoolVar(&noColor, "no-color", os.Getenv("NO_COLOR") != "", "disable colored output")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log HTTP traffic and cache hits")

	root.AddCommand(
		newLoginCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newStatusCmd(),
		newWorksCmd(),
		newLogsCmd(),
		newProfileCmd(),
		newSyncCmd(),
		newConfigCmd(),
	)
	return root
}

// setupLogging installs the default slog handler. --debug wins over level.
func setupLogging(level string) {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	if debug {
		lv = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lv})))
}
