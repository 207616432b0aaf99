package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"igrepost/internal/delivery"
	"igrepost/pkg/archive"
	"igrepost/pkg/auth"
	"igrepost/pkg/config"
	"igrepost/pkg/instagram"
	"igrepost/pkg/logger"
	"igrepost/pkg/progress"
	"igrepost/pkg/ratelimit"
	"igrepost/pkg/repost"
	"igrepost/pkg/retry"
	"igrepost/pkg/storage"
	"igrepost/pkg/tracker"
	"igrepost/pkg/ui"
)

var (
	allowedSender string
	pollInterval  time.Duration
	webhookURL    string
	downloadsDir  string
	runOnce       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Watch the inbox and repost shared reels",
	Long: `Run the repost bot until interrupted.

Every poll interval the bot reads the DM inbox, picks the reels shared by the
allowed sender that it has not handled yet, and reposts them one at a time.
Each step is reported to the status endpoint when a webhook URL is set.

The Instagram session comes from, in order:
  - instagram.session_id / csrf_token in the config or IG_SESSION_ID / IG_CSRF_TOKEN
  - the account stored with 'igrepost auth login' (instagram.username selects one)`,
	Example: `  # Repost everything @alice shares, reporting to a local dashboard
  igrepost run --allowed-sender alice --webhook-url http://localhost:3000

  # Poll once and exit, e.g. from an external scheduler
  igrepost run --once`,
	RunE: runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&allowedSender, "allowed-sender", "", "only repost reels shared by this username")
	runCmd.Flags().DurationVar(&pollInterval, "poll-interval", 0, "time between inbox polls (default 60s)")
	runCmd.Flags().StringVar(&webhookURL, "webhook-url", "", "status endpoint base URL to report progress to")
	runCmd.Flags().StringVar(&downloadsDir, "downloads", "", "directory for temporary video files")
	runCmd.Flags().BoolVar(&runOnce, "once", false, "poll a single time and exit")
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(map[string]interface{}{
		"allowed-sender": allowedSender,
		"poll-interval":  pollInterval,
		"webhook-url":    webhookURL,
		"downloads":      downloadsDir,
	})
	if err != nil {
		return err
	}
	log := logger.GetLogger()

	if err := resolveSession(cfg, log); err != nil {
		return err
	}
	if err := cfg.ValidateBot(); err != nil {
		return fmt.Errorf("bot configuration: %w", err)
	}

	ctx := cmd.Context()
	bot, queue, err := buildBot(ctx, cfg, log)
	if err != nil {
		return err
	}
	queue.Start()
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Status.Timeout)
		defer cancel()
		queue.Stop(stopCtx)
	}()

	ui.PrintBanner()
	ui.PrintInfo("Allowed sender", "@"+instagram.NormalizeUsername(cfg.Bot.AllowedSender))
	ui.PrintInfo("Poll interval", cfg.Bot.PollInterval.String())
	if cfg.Status.WebhookURL != "" {
		ui.PrintInfo("Status endpoint", progress.NormalizeURL(cfg.Status.WebhookURL))
	}

	if runOnce {
		if err := bot.Start(ctx); err != nil {
			return err
		}
		if err := bot.Poll(ctx); err != nil {
			return err
		}
		s := bot.Stats()
		ui.PrintSuccess(fmt.Sprintf("Poll finished: %d reposted, %d failed, %d skipped", s.Reposted, s.Failed, s.Skipped))
		return nil
	}

	if err := bot.Run(ctx); err != nil {
		return err
	}
	s := bot.Stats()
	ui.PrintSuccess(fmt.Sprintf("Stopped after %d polls: %d reposted, %d failed", s.Polls, s.Reposted, s.Failed))
	return nil
}

// resolveSession fills the Instagram cookies from the credential store when
// the config does not carry them.
func resolveSession(cfg *config.Config, log logger.Logger) error {
	var manager *auth.Manager
	if cfg.Instagram.SessionID == "" || cfg.Instagram.CSRFToken == "" {
		m, err := auth.NewManager("")
		if err != nil {
			log.WithError(err).Warn("Credential store unavailable")
		} else {
			manager = m
		}
	}

	account, err := auth.Resolve(cfg.Instagram, manager)
	if err != nil {
		return fmt.Errorf("no Instagram session found, run 'igrepost auth login' or set IG_SESSION_ID and IG_CSRF_TOKEN: %w", err)
	}

	cfg.Instagram.SessionID = account.SessionID
	cfg.Instagram.CSRFToken = account.CSRFToken
	cfg.Instagram.DSUserID = account.DSUserID
	if account.UserAgent != "" {
		cfg.Instagram.UserAgent = account.UserAgent
	}
	if cfg.Instagram.Username == "" {
		cfg.Instagram.Username = account.Username
	}
	return nil
}

// buildBot wires every collaborator of the bot from cfg. The returned queue
// must be started and stopped by the caller.
func buildBot(ctx context.Context, cfg *config.Config, log logger.Logger) (*repost.Bot, *delivery.Queue, error) {
	retryCfg := retry.ForAPI(cfg.RateLimit.MaxRetries+1, &retry.ExponentialBackoff{
		BaseDelay:    cfg.RateLimit.RetryDelay,
		MaxDelay:     time.Minute,
		Multiplier:   cfg.RateLimit.BackoffMultiplier,
		JitterFactor: 0.1,
	}, log)

	session := instagram.Session{
		SessionID: cfg.Instagram.SessionID,
		CSRFToken: cfg.Instagram.CSRFToken,
		DSUserID:  cfg.Instagram.DSUserID,
		UserAgent: cfg.Instagram.UserAgent,
		AppID:     cfg.Instagram.AppID,
	}
	timeout := cfg.Download.Timeout
	if cfg.Upload.Timeout > timeout {
		timeout = cfg.Upload.Timeout
	}
	client := instagram.NewClient(session, timeout, log,
		instagram.WithLimiter(ratelimit.PerMinute(cfg.RateLimit.RequestsPerMinute)),
		instagram.WithRetry(retryCfg),
		instagram.WithMaxVideoSize(cfg.Download.MaxFileSize),
		instagram.WithUploadSettings(instagram.UploadSettings{
			ProcessingPoll:    cfg.Upload.ProcessingPoll,
			ProcessingTimeout: cfg.Upload.ProcessingTimeout,
			ShareToFeed:       cfg.Upload.ShareToFeed,
		}),
	)

	processed, err := tracker.Open(cfg.Bot.ProcessedFile, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open processed file: %w", err)
	}

	store, err := storage.NewManager(cfg.Download.Directory)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare downloads directory: %w", err)
	}

	notifier, err := ui.NewNotifierFromConfig(cfg.Notifications)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up notifications: %w", err)
	}

	reporter := progress.NewWebhookReporter(cfg.Status.WebhookURL, cfg.Status.Timeout, log)
	if !reporter.Enabled() {
		log.Info("No webhook URL configured, status updates are only logged")
	}
	queue := delivery.NewQueue(reporter, cfg.Status.QueueSize, log)

	deps := repost.Deps{
		Client:   client,
		Tracker:  processed,
		Storage:  store,
		Reporter: queue,
		Notifier: notifier,
	}

	archiver, err := archive.New(ctx, cfg.Archive, log)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up archive: %w", err)
	}
	if archiver != nil {
		deps.Archiver = archiver
	}

	bot := repost.New(deps, repost.Options{
		AllowedSender:  cfg.Bot.AllowedSender,
		PollInterval:   cfg.Bot.PollInterval,
		ReelDelay:      cfg.Bot.ReelDelay,
		HeartbeatEvery: cfg.Bot.HeartbeatEvery,
		CleanupAfter:   cfg.Bot.CleanupAfter,
	}, log)

	return bot, queue, nil
}
