package artifactory

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// RetryPolicy bounds the request retry loop: attempt limit and the backoff
// window between attempts. The zero value is not valid; use DefaultRetryPolicy.
type RetryPolicy struct {
	MaxAttempts int
	WaitMin     time.Duration
	WaitMax     time.Duration
}

// DefaultRetryPolicy returns the policy used when the configuration does not
// override retry_attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		WaitMin:     500 * time.Millisecond,
		WaitMax:     5 * time.Second,
	}
}

// Retryable classifies a response/error pair. Credential rejections and
// client errors other than rate limiting are permanent; rate limits, 5xx and
// transport failures are transient.
func (p RetryPolicy) Retryable(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return false, nil
		case resp.StatusCode == http.StatusTooManyRequests:
			return true, nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return false, nil
		}
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Backoff grows linearly with the attempt number, jittered within the
// configured window so concurrent workers spread their retries.
func (p RetryPolicy) Backoff(min, max time.Duration, attempt int, _ *http.Response) time.Duration {
	wait := min * time.Duration(attempt+1)
	if wait > max {
		wait = max
	}
	if wait <= min {
		return min
	}
	return min + time.Duration(rand.Int63n(int64(wait-min)))
}
