package repost

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"igrepost/pkg/archive"
	errs "igrepost/pkg/errors"
	"igrepost/pkg/instagram"
	"igrepost/pkg/logger"
	"igrepost/pkg/metadata"
	"igrepost/pkg/progress"
	"igrepost/pkg/retry"
)

// Status messages reported while reposting
const (
	MsgWarmingUp      = "Warming up..."
	MsgMonitoring     = "Monitoring DMs for reel shares..."
	MsgFetching       = "Fetching reel info..."
	MsgUploading      = "Uploading and processing video..."
	MsgCompleted      = "Reel reposted successfully!"
	MsgFailed         = "Failed to repost reel."
	MsgDownloadFailed = "Failed to download reel."
	MsgSessionExpired = "Instagram session rejected. Log in again."
	MsgChallenge      = "Instagram challenge required. Confirm the login in the app."
)

// Options tune the poll loop
type Options struct {
	AllowedSender  string
	PollInterval   time.Duration
	ReelDelay      time.Duration
	HeartbeatEvery int
	CleanupAfter   time.Duration
}

// Deps are the collaborators a Bot drives. Archiver and Notifier are optional.
type Deps struct {
	Client   InstagramClient
	Tracker  Tracker
	Storage  Storage
	Reporter progress.Reporter
	Archiver archive.Archiver
	Notifier Notifier
}

// Stats counts what the bot has done since it started
type Stats struct {
	Polls    int
	Reposted int
	Failed   int
	Skipped  int
}

// Bot watches the inbox for reels shared by one sender and reposts them
type Bot struct {
	deps   Deps
	opts   Options
	sender string
	logger logger.Logger
	wait   func(ctx context.Context, d time.Duration) error

	mu    sync.Mutex
	stats Stats
}

// New creates a Bot
func New(deps Deps, opts Options, log logger.Logger) *Bot {
	if log == nil {
		log = logger.GetLogger()
	}
	if deps.Reporter == nil {
		deps.Reporter = progress.ReporterFunc(func(context.Context, progress.Update) {})
	}
	return &Bot{
		deps:   deps,
		opts:   opts,
		sender: strings.TrimPrefix(strings.TrimSpace(opts.AllowedSender), "@"),
		logger: log.WithField("component", "repost"),
		wait:   retry.Wait,
	}
}

// Stats returns a snapshot of the counters
func (b *Bot) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *Bot) count(f func(*Stats)) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	f(&b.stats)
	return b.stats.Polls
}

func (b *Bot) report(ctx context.Context, status progress.Status, message, reelID string) {
	b.deps.Reporter.Report(ctx, progress.NewUpdate(status, message, reelID, b.sender))
}

// Start reports warm-up and verifies the session. Session and challenge
// errors are fatal; other failures are logged and the bot carries on.
func (b *Bot) Start(ctx context.Context) error {
	b.deps.Reporter.Report(ctx, progress.NewUpdate(progress.StatusIdle, MsgWarmingUp, "", ""))

	user, err := b.deps.Client.CurrentUser(ctx)
	switch {
	case err == nil:
		b.logger.InfoWithFields("Session verified", map[string]interface{}{
			"account":        user.Username,
			"allowed_sender": b.sender,
		})
	case errs.Is(err, errs.ErrorTypeChallenge):
		b.report(ctx, progress.StatusError, MsgChallenge, "")
		return fmt.Errorf("session check: %w", err)
	case errs.Is(err, errs.ErrorTypeAuth):
		b.report(ctx, progress.StatusError, MsgSessionExpired, "")
		return fmt.Errorf("session check: %w", err)
	default:
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b.logger.WithError(err).Warn("Could not verify session, proceeding anyway")
	}

	b.deps.Reporter.Report(ctx, progress.NewUpdate(progress.StatusIdle, MsgMonitoring, "", ""))
	return nil
}

// Poll checks the inbox once and reposts every new reel in order
func (b *Bot) Poll(ctx context.Context) error {
	n := b.count(func(s *Stats) { s.Polls++ })
	b.logger.DebugWithFields("Polling inbox", map[string]interface{}{"poll": n})

	err := b.poll(ctx)
	if err != nil && ctx.Err() == nil {
		b.logger.WithError(err).ErrorWithFields("Error during poll", map[string]interface{}{"poll": n})
		b.report(ctx, progress.StatusError, "Error during poll: "+truncate(err.Error(), 50)+"...", "")
	}

	if b.opts.HeartbeatEvery > 0 && n%b.opts.HeartbeatEvery == 0 {
		b.deps.Reporter.Report(ctx, progress.NewUpdate(progress.StatusIdle,
			fmt.Sprintf("Sleeping %ds... (Poll #%d)", int(b.opts.PollInterval.Seconds()), n), "", ""))
	}
	return err
}

func (b *Bot) poll(ctx context.Context) error {
	inbox, err := b.deps.Client.FetchInbox(ctx)
	if err != nil {
		return err
	}

	reels := FindNewReels(inbox, b.sender, b.deps.Tracker, b.logger)
	if len(reels) == 0 {
		b.logger.Debug("No new reel shares found")
		return nil
	}

	b.logger.InfoWithFields("Found new reels to process", map[string]interface{}{"count": len(reels)})
	for i, reel := range reels {
		if ctx.Err() != nil {
			return nil
		}
		b.processReel(ctx, reel)

		if i < len(reels)-1 && b.opts.ReelDelay > 0 {
			b.logger.DebugWithFields("Waiting before next reel", map[string]interface{}{"delay": b.opts.ReelDelay})
			if err := b.wait(ctx, b.opts.ReelDelay); err != nil {
				return nil
			}
		}
	}
	return nil
}

// processReel downloads, reposts and cleans up one reel. Items are marked
// processed whatever the outcome, except when the bot is shutting down
// mid-reel, so the reel is retried on the next run.
func (b *Bot) processReel(ctx context.Context, reel instagram.Reel) {
	log := b.logger.WithFields(map[string]interface{}{
		"item_id":   reel.ItemID,
		"shortcode": reel.Shortcode,
	})

	if reel.Shortcode == "" && reel.MediaID == "" {
		log.Error("Reel share has no shortcode or media id, skipping")
		b.markProcessed(log, reel.ItemID)
		b.count(func(s *Stats) { s.Skipped++ })
		return
	}

	b.report(ctx, progress.StatusDownloading, MsgFetching, reel.ItemID)

	info, path, err := b.download(ctx, reel)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		log.WithError(err).Error("Failed to download reel")
		b.markProcessed(log, reel.ItemID)
		b.count(func(s *Stats) { s.Failed++ })
		b.report(ctx, progress.StatusError, MsgDownloadFailed, reel.ItemID)
		b.notifyError(reel, err)
		return
	}
	defer func() {
		if err := b.deps.Storage.Remove(path); err != nil {
			log.WithError(err).Warn("Failed to clean up video")
		}
	}()

	caption := BuildCaption(info.Caption, info.Creator)
	b.report(ctx, progress.StatusUploading, MsgUploading, reel.ItemID)

	media, size, err := b.upload(ctx, path, caption)
	if err != nil && ctx.Err() != nil {
		return
	}
	b.markProcessed(log, reel.ItemID)
	logger.LogRepost(log, info.Shortcode, b.sender, err)

	if err != nil {
		b.count(func(s *Stats) { s.Failed++ })
		b.report(ctx, progress.StatusError, MsgFailed, reel.ItemID)
		b.notifyError(reel, err)
		return
	}

	b.count(func(s *Stats) { s.Reposted++ })
	b.report(ctx, progress.StatusCompleted, MsgCompleted, reel.ItemID)
	if b.deps.Notifier != nil {
		b.deps.Notifier.SendSuccess("Reel reposted", fmt.Sprintf("%s by @%s is live as %s", info.Shortcode, info.Creator, media.Code))
	}

	if b.deps.Archiver != nil {
		meta := metadata.FromRepost(reel, info, media, b.sender, caption, size)
		b.archive(ctx, log, path, meta)
	}
}

// archive uploads the video and its metadata record. Failures are only logged.
func (b *Bot) archive(ctx context.Context, log logger.Logger, path string, meta *metadata.RepostMetadata) {
	if err := b.deps.Archiver.Archive(ctx, path, filepath.Base(path)); err != nil {
		log.WithError(err).Warn("Failed to archive video")
		return
	}

	sidecar, err := meta.Save(path)
	if err != nil {
		log.WithError(err).Warn("Failed to write repost metadata")
		return
	}
	defer func() {
		if err := metadata.Remove(path); err != nil {
			log.WithError(err).Warn("Failed to clean up repost metadata")
		}
	}()
	if err := b.deps.Archiver.Archive(ctx, sidecar, filepath.Base(sidecar)); err != nil {
		log.WithError(err).Warn("Failed to archive repost metadata")
	}
}

func (b *Bot) download(ctx context.Context, reel instagram.Reel) (*instagram.MediaInfo, string, error) {
	info, err := b.deps.Client.ResolveReel(ctx, reel)
	if err != nil {
		return nil, "", err
	}

	name := info.Shortcode
	if name == "" {
		name = reel.MediaID
	}
	path, err := b.deps.Storage.SaveVideo(name, func(w io.Writer) error {
		_, err := b.deps.Client.DownloadVideo(ctx, info.VideoURL, w)
		return err
	})
	if err != nil {
		return nil, "", err
	}

	b.logger.InfoWithFields("Downloaded reel", map[string]interface{}{
		"shortcode": info.Shortcode,
		"creator":   info.Creator,
		"path":      path,
	})
	return info, path, nil
}

func (b *Bot) upload(ctx context.Context, path, caption string) (*instagram.Media, int64, error) {
	f, size, err := b.deps.Storage.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open video: %w", err)
	}
	defer f.Close()
	media, err := b.deps.Client.UploadReel(ctx, f, size, caption)
	return media, size, err
}

func (b *Bot) markProcessed(log logger.Logger, itemID string) {
	if err := b.deps.Tracker.MarkProcessed(itemID); err != nil {
		log.WithError(err).Error("Failed to mark item processed")
	}
}

func (b *Bot) notifyError(reel instagram.Reel, err error) {
	if b.deps.Notifier == nil {
		return
	}
	ref := reel.Shortcode
	if ref == "" {
		ref = reel.MediaID
	}
	b.deps.Notifier.SendError("Repost failed", fmt.Sprintf("%s: %v", ref, err))
}

// Cleanup removes staged videos older than the configured age
func (b *Bot) Cleanup() {
	if b.opts.CleanupAfter <= 0 {
		return
	}
	removed, err := b.deps.Storage.RemoveOlderThan(b.opts.CleanupAfter)
	if err != nil {
		b.logger.WithError(err).Warn("Download cleanup failed")
		return
	}
	if removed > 0 {
		b.logger.InfoWithFields("Removed stale downloads", map[string]interface{}{"count": removed})
	}

	orphans, err := metadata.CleanOrphaned(b.deps.Storage.GetOutputDir())
	if err != nil {
		b.logger.WithError(err).Warn("Metadata cleanup failed")
	} else if orphans > 0 {
		b.logger.DebugWithFields("Removed orphaned metadata", map[string]interface{}{"count": orphans})
	}
}

// truncate cuts s to at most n runes
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

