package support

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	defaultTimeout  = 15 * time.Second
	retryWait       = 200 * time.Millisecond
	retryMaxWait    = 2 * time.Second
	clientUserAgent = "chapchap-payments/1.0"
)

type ClientOptions struct {
	BaseURL     string
	Timeout     time.Duration
	ReadRetries int
}

// NewClient builds the HTTP client an adapter uses for one provider host.
// Only GET requests are retried; charges and link creation are never replayed.
func NewClient(opts ClientOptions) *resty.Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", clientUserAgent)

	if opts.ReadRetries > 0 {
		client.
			SetRetryCount(opts.ReadRetries).
			SetRetryWaitTime(retryWait).
			SetRetryMaxWaitTime(retryMaxWait).
			AddRetryCondition(RetryReads)
	}
	return client
}

// RetryReads retries idempotent reads on transport errors and 5xx responses.
func RetryReads(resp *resty.Response, err error) bool {
	if resp == nil || resp.Request == nil {
		return false
	}
	if resp.Request.Method != http.MethodGet {
		return false
	}
	if err != nil {
		return true
	}
	return resp.StatusCode() >= http.StatusInternalServerError
}

// Failure renders a failed call for a result's Error field, preferring the
// provider's own message.
func Failure(provider string, resp *resty.Response, err error, providerMessage string) string {
	if err != nil {
		return fmt.Sprintf("%s request failed: %v", provider, err)
	}
	if msg := strings.TrimSpace(providerMessage); msg != "" {
		return msg
	}
	if resp != nil {
		return fmt.Sprintf("%s returned HTTP %d", provider, resp.StatusCode())
	}
	return fmt.Sprintf("%s request failed", provider)
}
