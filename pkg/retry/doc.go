// Package retry retries transient upstream failures with backoff.
//
// Only typed errors from igrelay/pkg/errors whose type is network,
// rate_limit or server_error are retried by default. Cancelling the
// context stops the wait between attempts.
//
//	profile, err := retry.DoWithResult(ctx, func(ctx context.Context) (*instagram.Profile, error) {
//		return client.ResolveProfile(ctx, username)
//	}, &retry.Config{
//		MaxAttempts: 3,
//		Backoff:     retry.NewErrorTypeBackoff(2*time.Second, 2),
//		Logger:      logger.GetLogger(),
//	})
//
// ErrorTypeBackoff waits longer after a 429 than after a network blip.
package retry
