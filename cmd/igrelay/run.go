package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"igrelay/internal/bot"
	"igrelay/internal/dispatch"
	"igrelay/internal/ops"
	"igrelay/pkg/auth"
	"igrelay/pkg/checkpoint"
	"igrelay/pkg/config"
	errs "igrelay/pkg/errors"
	"igrelay/pkg/instagram"
	"igrelay/pkg/logger"
	"igrelay/pkg/media"
	"igrelay/pkg/metrics"
	"igrelay/pkg/telegram"
	"igrelay/pkg/tracker"
)

var (
	runToken      string
	runAccount    string
	runSessionID  string
	runCSRFToken  string
	runStagingDir string
	runWorkers    int
	runOpsAddress string
	runNoTracking bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the Telegram bot",
	Long: `Start the bot and serve chats until interrupted.

The Instagram session is taken from, in order: flags, environment
(IGRELAY_SESSION_ID or INSTAGRAM_SESSIONID, ...), the config file, and
finally the credentials stored with 'igrelay auth login'.`,
	Example: `  # Token from the environment, session from the keychain
  TOKEN_BOT=123:abc igrelay run

  # Use a specific stored account and expose /metrics
  igrelay run --account mysecondary --ops-address :9090`,
	Args: cobra.NoArgs,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVar(&runToken, "token", "", "Telegram bot token")
	runCmd.Flags().StringVar(&runAccount, "account", "", "stored Instagram account to use")
	runCmd.Flags().StringVar(&runSessionID, "session-id", "", "Instagram sessionid cookie")
	runCmd.Flags().StringVar(&runCSRFToken, "csrf-token", "", "Instagram csrftoken cookie")
	runCmd.Flags().StringVar(&runStagingDir, "staging-dir", "", "directory for transient media files")
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "concurrent chat requests")
	runCmd.Flags().StringVar(&runOpsAddress, "ops-address", "", "serve /healthz and /metrics on this address")
	runCmd.Flags().BoolVar(&runNoTracking, "no-tracking", false, "disable follower tracking")
}

func runRelay(cmd *cobra.Command, args []string) error {
	flags := flagMap()
	flags["token"] = runToken
	flags["session-id"] = runSessionID
	flags["csrf-token"] = runCSRFToken
	flags["staging-dir"] = runStagingDir
	flags["workers"] = runWorkers
	flags["ops-address"] = runOpsAddress

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return err
	}
	if runNoTracking {
		cfg.Tracking.Enabled = false
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	if err := loadStoredSession(cfg, runAccount, log); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console.Banner()
	return serve(ctx, cfg, log)
}

// loadStoredSession fills missing session cookies from the credential store
func loadStoredSession(cfg *config.Config, account string, log logger.Logger) error {
	if cfg.HasSession() && account == "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	var stored *auth.Account
	if account != "" {
		stored, err = manager.Retrieve(account)
	} else {
		stored, err = manager.RetrieveDefault()
	}
	if err != nil {
		return fmt.Errorf("no Instagram session: %w (run 'igrelay auth login')", err)
	}

	applyStoredSession(&cfg.Instagram, stored, account != "")
	log.InfoWithFields("Using stored Instagram session", map[string]interface{}{
		"account": stored.Username,
	})
	return cfg.ValidateSession()
}

// applyStoredSession fills cookies from stored. An explicitly chosen
// account replaces every cookie so two sessions never mix.
func applyStoredSession(ig *config.InstagramConfig, stored *auth.Account, explicit bool) {
	if explicit {
		ig.Username = ""
		ig.SessionID, ig.CSRFToken, ig.DSUserID, ig.RUR, ig.MID = "", "", "", "", ""
	}
	stored.ApplyTo(ig)
}

// serve wires the relay together and blocks until ctx is done or a
// component fails
func serve(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	ig, err := instagram.NewClientFromConfig(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to create Instagram client: %w", err)
	}
	if cfg.Instagram.VerifySession {
		name, err := ig.VerifySession(ctx)
		switch {
		case errs.IsType(err, errs.ErrorTypeAuth):
			return fmt.Errorf("Instagram session rejected: %w (run 'igrelay auth login')", err)
		case err != nil:
			log.WithError(err).Warn("Could not verify Instagram session, continuing")
		default:
			console.Info("Instagram session", "@"+name)
		}
	}

	fs := afero.NewOsFs()
	m := metrics.New(nil)

	pipeline := media.NewPipeline(fs, ig, media.PipelineConfig{
		StagingBase: cfg.Staging.BaseDirectory,
		MaxFileSize: cfg.Staging.MaxFileSize,
		Location:    loc,
		Pacer: &media.Pacer{
			StoryDelay:     cfg.Pacing.StoryDelay,
			HighlightDelay: cfg.Pacing.HighlightDelay,
		},
	}, media.WithObserver(m), media.WithLogger(log))

	tg, err := telegram.NewFromConfig(cfg.Telegram, fs, log)
	if err != nil {
		return err
	}
	console.Info("Telegram bot", "@"+tg.Username())

	pool := dispatch.NewWorkerPool(cfg.Dispatch.Workers, cfg.Dispatch.QueueSize, log,
		dispatch.WithResultHandler(func(r dispatch.Result) {
			m.JobFinished(r.Error, r.Duration)
		}))

	deps := bot.Deps{
		Profiles:  ig,
		Messenger: tg,
		Pipeline:  pipeline,
		Recipient: func(chatID int64) media.Recipient {
			return telegram.Chat{Transport: tg, ID: chatID}
		},
		Dispatcher: pool,
		Counter:    m,
	}

	var trk *tracker.Tracker
	if cfg.Tracking.Enabled {
		store, err := openTrackingStore(cfg.Tracking)
		if err != nil {
			return err
		}
		defer store.Close()

		snapshots, err := checkpoint.NewManager(fs, cfg.Tracking.DataDirectory, log)
		if err != nil {
			return err
		}

		trk, err = tracker.New(ig, tg, store, snapshots, tracker.Config{
			Schedule:        cfg.Tracking.Schedule,
			NotifyUnchanged: cfg.Tracking.NotifyUnchanged,
			OnRun: func(_ tracker.Subscription, err error) {
				m.TrackingRun(err)
			},
		}, log)
		if err != nil {
			return err
		}
		deps.Tracker = trk
	}

	handler := bot.NewHandler(deps, bot.Config{
		HighlightsPerPage: cfg.Delivery.HighlightsPerPage,
		SessionTTL:        cfg.Delivery.SessionTTL,
	}, log)
	relay := bot.New(tg, handler, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool.Start(ctx)
	defer pool.Stop()

	if trk != nil {
		if err := trk.Start(ctx); err != nil {
			return err
		}
		defer trk.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// the update loop ending stops everything else
		defer cancel()
		return relay.Run(gctx)
	})

	if cfg.Ops.Enabled {
		srv := ops.NewServer(cfg.Ops.Address, m.Handler(), func() map[string]interface{} {
			stats := pool.Stats()
			return map[string]interface{}{
				"bot":            tg.Username(),
				"jobs_submitted": stats.Submitted,
				"jobs_completed": stats.Completed,
				"jobs_failed":    stats.Failed,
				"jobs_rejected":  stats.Rejected,
				"jobs_queued":    stats.Queued,
				"workers":        stats.Workers,
				"active_chats":   handler.Sessions().Len(),
				"tracking":       trk != nil,
			}
		}, log)
		g.Go(func() error { return srv.Run(gctx) })
	}

	console.Success("Relay running, press Ctrl+C to stop")
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	console.Dim("Shutting down")
	return err
}

// openTrackingStore opens the subscriptions database, defaulting to
// tracking.db in the data directory
func openTrackingStore(cfg config.TrackingConfig) (*tracker.Store, error) {
	path := cfg.DatabasePath
	if path == "" {
		dir := cfg.DataDirectory
		if dir == "" {
			var err error
			if dir, err = checkpoint.DataDirectory(); err != nil {
				return nil, err
			}
		}
		path = filepath.Join(dir, "tracking.db")
	}
	return tracker.OpenStore(path)
}
