// Package retry provides backoff and retry logic for transient failures
// when talking to Instagram.
//
//	info, err := retry.DoWithResult(ctx, retry.ForAPI(3, nil, log),
//		func(ctx context.Context) (*instagram.MediaInfo, error) {
//			return client.FetchMediaInfo(ctx, shortcode)
//		})
//
// Errors from pkg/errors are retried according to their type. Rate limits
// back off far longer than network blips; auth, challenge, not found and
// parsing errors are returned immediately.
package retry
