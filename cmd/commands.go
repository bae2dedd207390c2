package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vadiminshakov/perpagent/config"
	"github.com/vadiminshakov/perpagent/internal"
	"github.com/vadiminshakov/perpagent/internal/logging"
	"github.com/vadiminshakov/perpagent/internal/setup"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath string
	envFile    string
	dryRun     bool
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "perpagent",
		Short:         "LLM-driven perpetuals trading agent",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (defaults when empty)")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file with credentials")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "trade on a paper account")

	root.AddCommand(newRunCmd(opts), newOnceCmd(opts), newSetupCmd(), newVersionCmd())
	return root
}

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the decision loop until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bot, logger, err := prepare(opts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer closeBot(bot, logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := bot.Run(ctx); err != nil {
				logger.Error("trading bot stopped with error", zap.Error(err))
				return err
			}
			logger.Info("trading bot stopped")
			return nil
		},
	}
}

func newOnceCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single decision cycle and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			bot, logger, err := prepare(opts)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			defer closeBot(bot, logger)

			report := bot.RunOnce(context.WithoutCancel(cmd.Context()))
			fmt.Fprintf(cmd.OutOrStdout(), "cycle %d: %s %s %s\n",
				report.Cycle, report.OutcomeLabel(), report.Decision.Action, report.Decision.Symbol)
			return report.Err
		},
	}
}

func newSetupCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create a config file with the interactive wizard",
		RunE: func(*cobra.Command, []string) error {
			return setup.RunTUI(out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", setup.DefaultOutput, "where to write the config")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "perpagent", version)
		},
	}
}

// prepare loads configuration and credentials and builds the bot.
func prepare(opts *options) (*internal.TradingBot, *zap.Logger, error) {
	config.LoadEnvFile(opts.envFile)

	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create logger")
	}
	zap.ReplaceGlobals(logger)

	creds, err := config.LoadCredentials(cfg)
	if err != nil {
		return nil, nil, err
	}

	bot, err := internal.NewTradingBot(cfg, creds, logger)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create trading bot")
	}
	return bot, logger, nil
}

func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "failed to load config")
	}
	if opts.dryRun {
		cfg.Exchange = config.ExchangePaper
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func closeBot(bot *internal.TradingBot, logger *zap.Logger) {
	if err := bot.Close(); err != nil {
		logger.Warn("failed to close journals", zap.Error(err))
	}
}
