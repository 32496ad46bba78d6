package clients

import (
	"net"
	"net/http"
	"time"
)

// DefaultTransport returns a configured HTTP transport with connection limits.
// The wallet issues bursts of small requests (balance heartbeats, page loads,
// price lookups) against a single backend host; capping connections keeps a
// dead backend from piling up goroutines behind the retry policy.
func DefaultTransport() *http.Transport {
	return &http.Transport{
		// Cap concurrent connections to the backend host
		MaxConnsPerHost: 32,

		// Keep some connections warm for reuse
		MaxIdleConnsPerHost: 8,
		MaxIdleConns:        32,
		IdleConnTimeout:     90 * time.Second,

		// Connection establishment timeouts
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout: 10 * time.Second,

		ExpectContinueTimeout: 1 * time.Second,
	}
}
