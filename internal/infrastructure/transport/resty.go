package transport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-resty/resty/v2"

	"CatalogScanner/internal/config"
	"CatalogScanner/internal/ports"
)

// RestyTransport implements ports.Transport with a shared resty client.
type RestyTransport struct {
	client *resty.Client
	logger *slog.Logger
}

var _ ports.Transport = (*RestyTransport)(nil)

// NewRestyTransport configures timeout, retries and the default User-Agent
// from cfg.
func NewRestyTransport(cfg config.HTTPConfig, logger *slog.Logger) *RestyTransport {
	client := resty.New()
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	if cfg.Retries > 0 {
		client.SetRetryCount(cfg.Retries)
		if cfg.RetryWait > 0 {
			client.SetRetryWaitTime(cfg.RetryWait)
			client.SetRetryMaxWaitTime(4 * cfg.RetryWait)
		}
		client.AddRetryCondition(retryable)
	}
	return &RestyTransport{client: client, logger: logger}
}

// Get issues a GET with the given headers. Non-2xx statuses are returned as
// a Response, not as an error.
func (t *RestyTransport) Get(ctx context.Context, url string, headers map[string]string) (ports.Response, error) {
	res, err := t.client.R().
		SetContext(ctx).
		SetHeaders(headers).
		Get(url)
	if err != nil {
		return ports.Response{}, err
	}

	if t.logger != nil {
		t.logger.Debug("http get", "url", url, "status", res.StatusCode(), "bytes", len(res.Body()), "duration", res.Time())
	}
	return ports.Response{Data: res.Body(), Status: res.StatusCode()}, nil
}

func retryable(res *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if res == nil {
		return false
	}
	code := res.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
