package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jingkaihe/docsync/pkg/config"
	"github.com/jingkaihe/docsync/pkg/logger"
	"github.com/jingkaihe/docsync/pkg/presenter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// appConfig is the configuration resolved before any subcommand runs.
var appConfig = config.Default()

var tracingShutdown func(context.Context) error

var rootCmd = &cobra.Command{
	Use:   "docsync",
	Short: "Keep agent documentation in sync with the skills a project needs",
	Long: `docsync detects the technologies used across a project tree, matches them
against the available SKILL.md skills, promotes the skills shared by most
directories to the root and patches a marker-delimited skills section into
every CLAUDE.md or AGENTS.md file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return setup(cmd)
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if tracingShutdown == nil {
			return
		}
		if err := tracingShutdown(context.WithoutCancel(cmd.Context())); err != nil {
			logger.G(cmd.Context()).WithError(err).Debug("failed to shut down tracing")
		}
	},
	Run: func(cmd *cobra.Command, _ []string) {
		cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Additional config file merged over ~/.docsync/config.yaml and ./docsync.yaml")
	rootCmd.PersistentFlags().String("profile", "", "Configuration profile to use")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (panic, fatal, error, warn, info, debug, trace)")
	rootCmd.PersistentFlags().String("log-format", logger.FormatText, "Log format (fmt, json)")

	viper.BindPFlag("profile", rootCmd.PersistentFlags().Lookup("profile"))
	viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))

	rootCmd.AddCommand(withTracing(detectCmd))
	rootCmd.AddCommand(withTracing(matchCmd))
	rootCmd.AddCommand(withTracing(syncCmd))
	rootCmd.AddCommand(withTracing(watchCmd))
	rootCmd.AddCommand(skillCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(withTracing(mcpCmd))
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(versionCmd)
}

// setup loads the configuration and configures logging and tracing.
func setup(cmd *cobra.Command) error {
	v := viper.GetViper()
	if err := config.Init(v); err != nil {
		return err
	}

	if path, _ := cmd.Root().PersistentFlags().GetString("config"); path != "" {
		if _, err := os.Stat(path); err != nil {
			return errors.Wrapf(err, "config file %s", path)
		}
		if err := config.MergeFile(v, path); err != nil {
			return err
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	appConfig = cfg

	if err := logger.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}

	shutdown, err := initTracing(cmd.Context())
	if err != nil {
		logger.G(cmd.Context()).WithError(err).Warn("failed to initialise tracing")
		return nil
	}
	tracingShutdown = shutdown
	return nil
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		presenter.Warning("[docsync]: Cancellation requested, shutting down...")
		cancel()
	}()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		presenter.Error(err, "docsync failed")
		os.Exit(1)
	}
}
