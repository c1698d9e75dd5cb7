// Package mail implements outbound email for the boardpulse job service:
// locally rendered HTML bodies delivered through the provider's HTTP API,
// with circuit breaking and bounded retries on every call.
package mail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"boardpulse/internal/types"
)

// RetryPolicy bounds the retry behavior of the provider client.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

// DefaultRetryPolicy is the retry configuration used against the mail
// provider: 429s and 5xx are worth a couple of retries, nothing more.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    500 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// httpClient wraps an *http.Client with a circuit breaker and retry loop so
// every outbound provider call shares the same resilience behavior.
type httpClient struct {
	client  *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	policy  RetryPolicy
	sleep   func(time.Duration)
}

func newHTTPClient(client *http.Client, breakerName string, policy RetryPolicy) *httpClient {
	breaker := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	return &httpClient{
		client:  client,
		breaker: breaker,
		policy:  policy,
		sleep:   time.Sleep,
	}
}

// do executes the request, retrying on 429 and 5xx and respecting the
// breaker. The request body is snapshotted so each attempt replays it. On
// success the caller owns the response body.
func (c *httpClient) do(req *http.Request) (*http.Response, error) {
	if traceID := types.GetRequestID(req.Context()); traceID != "" {
		req.Header.Set("X-Request-Id", traceID)
	}

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to buffer mail request body", err)
		}
		req.Body.Close()
	}

	var lastResp *http.Response
	var lastErr error

	attempts := 1 + c.policy.MaxRetries
	for attempt := 0; attempt < attempts; attempt++ {
		if body != nil {
			req.Body = io.NopCloser(bytes.NewReader(body))
			req.ContentLength = int64(len(body))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("mail provider returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if resp != nil {
			if attempt < attempts-1 {
				resp.Body.Close()
			} else {
				lastResp = resp
			}
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt < attempts-1 {
			c.sleep(c.backoff(attempt, resp))
		}
	}

	if lastResp != nil {
		lastResp.Body.Close()
	}
	return nil, c.mapError(lastResp, lastErr)
}

// backoff returns the wait before the next attempt: the provider's
// Retry-After when given, exponential growth with full jitter otherwise.
func (c *httpClient) backoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if after := resp.Header.Get("Retry-After"); after != "" {
			if seconds, err := strconv.Atoi(after); err == nil && seconds > 0 {
				return min(time.Duration(seconds)*time.Second, c.policy.MaxWait)
			}
		}
	}
	base := float64(c.policy.MinWait) * math.Pow(2, float64(attempt))
	base = math.Min(base, float64(c.policy.MaxWait))
	lo := float64(c.policy.MinWait)
	if base <= lo {
		return c.policy.MinWait
	}
	return time.Duration(lo + rand.Float64()*(base-lo))
}

func (c *httpClient) mapError(resp *http.Response, err error) *types.AppError {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(types.ErrCodeUpstreamRateLimit, "mail provider circuit breaker is open", err)
	}
	if resp != nil && resp.StatusCode == http.StatusTooManyRequests {
		return types.NewAppError(types.ErrCodeUpstreamRateLimit, "mail provider rate limit exceeded", err)
	}
	return types.NewAppError(types.ErrCodeUpstreamMail, "mail provider request failed", err)
}
