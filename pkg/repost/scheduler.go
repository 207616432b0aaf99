package repost

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"igrepost/pkg/logger"
)

// JanitorSpec is how often stale downloads are swept
const JanitorSpec = "@every 1h"

// cronLogger adapts logger.Logger to cron.Logger
type cronLogger struct {
	log logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.DebugWithFields("cron: "+msg, kvFields(keysAndValues))
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.WithError(err).ErrorWithFields("cron: "+msg, kvFields(keysAndValues))
}

func kvFields(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}

// Run starts the bot and blocks until ctx is cancelled. It polls once
// straight away, then on an @every schedule. A poll still running when the
// next tick fires makes that tick a no-op. On cancellation Run waits for the
// running poll to return.
func (b *Bot) Run(ctx context.Context) error {
	if b.opts.PollInterval < time.Second {
		return fmt.Errorf("poll interval %s is below one second", b.opts.PollInterval)
	}
	if err := b.Start(ctx); err != nil {
		return err
	}

	logger.LogComponentStart("repost", map[string]interface{}{
		"allowed_sender": b.sender,
		"poll_interval":  b.opts.PollInterval,
	})

	b.Cleanup()
	_ = b.Poll(ctx)

	clog := cronLogger{log: b.logger}
	c := cron.New(
		cron.WithLogger(clog),
		cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)),
	)
	if _, err := c.AddFunc("@every "+b.opts.PollInterval.String(), func() {
		_ = b.Poll(ctx)
	}); err != nil {
		return fmt.Errorf("schedule poll: %w", err)
	}
	if b.opts.CleanupAfter > 0 {
		if _, err := c.AddFunc(JanitorSpec, b.Cleanup); err != nil {
			return fmt.Errorf("schedule cleanup: %w", err)
		}
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()

	stats := b.Stats()
	logger.LogComponentStop("repost", fmt.Sprintf("%d polls, %d reposted, %d failed, %d skipped",
		stats.Polls, stats.Reposted, stats.Failed, stats.Skipped))
	return nil
}
