package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/JonMunkholm/bulkimport/internal/config"
	"github.com/JonMunkholm/bulkimport/internal/core"
	"github.com/JonMunkholm/bulkimport/internal/logging"
	"github.com/JonMunkholm/bulkimport/internal/notify"
	"github.com/JonMunkholm/bulkimport/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
}

func newRootCmd() *cobra.Command {
	var opts rootOptions

	cmd := &cobra.Command{
		Use:           "importctl",
		Short:         "Validate and import process CSV files",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.envFile == "" {
				_ = godotenv.Load()
				return nil
			}
			if err := godotenv.Load(opts.envFile); err != nil {
				return fmt.Errorf("load %s: %w", opts.envFile, err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("CONFIG_FILE"), "TOML config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "Load environment from this file (default: .env if present)")

	cmd.AddCommand(
		newTemplateCmd(),
		newValidateCmd(),
		newImportCmd(&opts),
		newTUICmd(&opts),
	)
	return cmd
}

// runtime is the wiring shared by the commands that import.
type runtime struct {
	cfg      *config.Config
	records  store.Store
	notifier core.Notifier
	closers  []func() error
}

// openRuntime loads configuration and connects the record store and the
// optional AMQP publisher. logOut receives the structured log.
func openRuntime(ctx context.Context, opts *rootOptions, logOut io.Writer) (*runtime, error) {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logging.New(logOut, cfg.Logging.Level, cfg.Logging.Format))

	records, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	rt := &runtime{cfg: cfg, records: records, closers: []func() error{records.Close}}

	notifiers := notify.Multi{notify.LogNotifier{}}
	if cfg.Notify.AMQPURL != "" {
		publisher, err := notify.DialAMQP(ctx, cfg.Notify.AMQPURL, cfg.Notify.Exchange, cfg.Notify.RoutingKey)
		if err != nil {
			slog.Warn("amqp notifications disabled", "error", err)
		} else {
			notifiers = append(notifiers, publisher)
			rt.closers = append(rt.closers, publisher.Close)
		}
	}
	rt.notifier = notifiers
	return rt, nil
}

func (rt *runtime) gateway() *core.Gateway {
	return core.NewGateway(rt.records, core.GatewayConfig{
		Concurrency:   rt.cfg.Import.Concurrency,
		CreateTimeout: rt.cfg.Import.CreateTimeout,
	})
}

func (rt *runtime) newWizard(ic core.ImportContext, policy string) *core.Wizard {
	if policy == "" {
		policy = rt.cfg.Import.ScoreErrorPolicy
	}
	if ic.ProjectID == "" {
		ic.ProjectID = rt.cfg.Import.ProjectID
	}
	return core.NewWizard(ic, rt.gateway(), core.NewNotificationEmitter(rt.notifier), core.WizardConfig{
		Policy:        core.ScoreErrorPolicy(policy),
		ImportTimeout: rt.cfg.Import.Timeout,
	})
}

func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		errs = append(errs, rt.closers[i]())
	}
	return errors.Join(errs...)
}

// userError replaces err with its user-facing message and code.
func userError(err error) error {
	return errors.New(core.FormatUserError(err))
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return os.Getenv("USERNAME")
}
