// Package instagram is a client for the private web API endpoints a logged-in
// browser session uses: the direct inbox, media info, and the two-step reel
// upload (rupload_igvideo then configure_to_clips).
//
// A Client is bound to one Session. Reads are retried through pkg/retry for
// retryable error types and every API call first waits on an optional
// ratelimit.Limiter. Failures are *errors.Error values; challenge_required and
// login_required bodies map to ErrorTypeChallenge and ErrorTypeAuth.
//
//	client := instagram.NewClient(session, 2*time.Minute, log,
//		instagram.WithLimiter(ratelimit.PerMinute(30)))
//	inbox, err := client.FetchInbox(ctx)
package instagram
