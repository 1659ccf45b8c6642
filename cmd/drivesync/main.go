package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Ning0612/drivesync/internal/config"
	"github.com/Ning0612/drivesync/internal/logger"
	"github.com/Ning0612/drivesync/internal/progress"
	"github.com/Ning0612/drivesync/internal/service"
)

// Set with -ldflags "-X main.version=..."
var version = "dev"

var (
	configPath string
	verbose    bool
	quiet      bool

	cfg *config.Config
)

var (
	okColor   = color.New(color.FgGreen).SprintFunc()
	warnColor = color.New(color.FgYellow).SprintFunc()
	errColor  = color.New(color.FgRed, color.Bold).SprintFunc()
	dimColor  = color.New(color.Faint).SprintFunc()
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	logger.Shutdown()
	if err != nil {
		fmt.Fprintln(os.Stderr, errColor("Error:"), err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "drivesync",
	Short:         "Read and write Google Drive files and Sheets ranges with a service account",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}

		loaded, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cfg = loaded

		if err := logger.Init(cfg.LoggerConfig()); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}
		switch {
		case verbose:
			logger.SetLevel(logger.LevelDebug)
		case quiet:
			logger.SetLevel(logger.LevelError)
		}
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("drivesync", version)
	},
}

// newService builds the service for the loaded config. The caller must
// defer Close.
func newService(ctx context.Context, opts ...service.Option) (*service.Service, error) {
	opts = append([]service.Option{service.WithLogger(logger.Get())}, opts...)
	svc, err := service.New(ctx, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("initializing service: %w", err)
	}
	return svc, nil
}

// progressReporter renders transfer progress on stderr, unless --quiet
func progressReporter() progress.Reporter {
	if quiet {
		return progress.NullReporter{}
	}
	return progress.NewCallbackReporter(func(u progress.Update) {
		switch u.Type {
		case progress.UpdateProgress:
			fmt.Fprintf(os.Stderr, "\r%s %s %s", u.Name,
				progress.FormatProgress(u.Bytes, u.Total, 30),
				progress.FormatSpeed(u.BytesPerSecond))
		case progress.UpdateComplete:
			fmt.Fprintf(os.Stderr, "\r%s %s %s\n", u.Name,
				progress.FormatProgress(u.Bytes, u.Total, 30),
				progress.FormatBytes(u.Bytes))
		case progress.UpdateError:
			fmt.Fprintf(os.Stderr, "\n%s %s: %v\n", errColor("failed"), u.Name, u.Error)
		}
	})
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search ./, ./configs, user config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "errors only, no progress output")
	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fileCmd)
	rootCmd.AddCommand(sheetCmd)
	rootCmd.AddCommand(historyCmd)
}
