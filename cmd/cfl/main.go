// Command cfl is the clearflow CLI: a multi-party document clearance tracker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clearstack/clearflow/internal/authz"
	"github.com/clearstack/clearflow/internal/certificate"
	"github.com/clearstack/clearflow/internal/config"
	"github.com/clearstack/clearflow/internal/escalation"
	"github.com/clearstack/clearflow/internal/lifecycle"
	"github.com/clearstack/clearflow/internal/notification"
	"github.com/clearstack/clearflow/internal/storage"
	"github.com/clearstack/clearflow/internal/storage/factory"
	"github.com/clearstack/clearflow/internal/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "0.4.0"

var (
	dbPath     string
	actorFlag  string
	roleFlag   string
	jsonOutput bool
	quietFlag  bool

	cfg   *config.Config
	store storage.Storage

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc
)

var rootCmd = &cobra.Command{
	Use:   "cfl",
	Short: "Track multi-party document clearance requests",
	Long: `cfl tracks document clearance requests through an ordered sequence of
approval stages. Each stage is owned by a role; requests move forward on
approval, go on hold on rejection, and are escalated automatically when they
sit pending past the staleness threshold.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load("")
		if err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DB = dbPath
		}
		return nil
	},
}

// openStore connects the configured backend. Commands that touch storage call
// this at the top of their Run.
func openStore(ctx context.Context) (storage.Storage, error) {
	if store != nil {
		return store, nil
	}
	s, err := factory.Open(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.DB, err)
	}
	store = s
	return store, nil
}

// newHandler builds the transition handler from the loaded config.
func newHandler(s storage.Storage) *lifecycle.Handler {
	opts := lifecycle.Options{
		EscalationThreshold: time24h(cfg.EscalationDays),
	}
	if cfg.NotifyWebhook != "" {
		opts.Notifier = notification.NewWebhookGateway(cfg.NotifyWebhook)
	} else if !quietFlag {
		opts.Notifier = notification.NewWriterGateway(os.Stderr)
	}
	if cfg.CertificateWebhook != "" {
		opts.Certificates = certificate.NewWebhookIssuer(cfg.CertificateWebhook)
	}
	return lifecycle.NewHandler(s, authz.NewTable(cfg.Roles), opts)
}

func newSweeper(s storage.Storage, h *lifecycle.Handler) *escalation.Sweeper {
	return escalation.NewSweeper(s, h, escalation.SweepOptions{
		Workers: cfg.SweepWorkers,
	})
}

// currentActor resolves the acting identity.
// Priority: --actor flag > config (file or CFL_ACTOR env) > $USER > "unknown".
func currentActor() lifecycle.Actor {
	a := lifecycle.Actor{ID: actorFlag, Role: roleFlag}
	if a.ID == "" {
		a.ID = cfg.Actor
	}
	if a.ID == "" {
		a.ID = os.Getenv("USER")
	}
	if a.ID == "" {
		a.ID = "unknown"
	}
	if a.Role == "" {
		a.Role = cfg.Role
	}
	return a
}

func main() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer rootCancel()

	if err := telemetry.Init(rootCtx, "cfl", Version); err != nil {
		fmt.Fprintf(os.Stderr, "warning: telemetry init failed: %v\n", err)
	}
	defer telemetry.Shutdown(context.Background())

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database connection string (overrides config)")
	rootCmd.PersistentFlags().StringVar(&actorFlag, "actor", "", "Acting user ID (overrides config)")
	rootCmd.PersistentFlags().StringVar(&roleFlag, "role", "", "Acting role (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output")

	err := rootCmd.ExecuteContext(rootCtx)
	if store != nil {
		if cerr := store.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if err != nil {
		fatalError(err)
	}
}
