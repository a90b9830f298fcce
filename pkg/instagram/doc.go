// Package instagram is a client for the private web API behind
// instagram.com, authenticated with a browser session's cookies.
//
// It resolves profiles, lists stories, highlights and followers, and
// downloads media into a staging directory. Every request waits on a
// ratelimit.Limiter and transient failures (network, 429, 5xx) are retried
// with pkg/retry. Non-2xx responses become *errors.Error values:
//
//	profile, err := client.ResolveProfile(ctx, "someprofile")
//	if errors.IsAccessDenied(err) {
//	    // private or blocked
//	}
//
// Client implements media.Downloader.
package instagram
