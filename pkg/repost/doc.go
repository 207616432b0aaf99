// Package repost is the bot itself: it polls the direct inbox, picks out
// reels shared by the allowed sender, downloads each one, and publishes it
// again on the bot account with a credit caption. Every step is reported to
// a progress.Reporter so the status dashboard can follow along.
package repost
