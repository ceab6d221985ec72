package metrics

import (
	"go.uber.org/atomic"
)

// RestAPIMetrics defines REST API metrics over the entire runtime of the daemon.
type RestAPIMetrics struct {
	// The total number HTTP request errors.
	HTTPRequestErrorCounter atomic.Uint32
	// The total number of requests rejected by the rate limiter.
	RateLimitedCounter atomic.Uint32
}
