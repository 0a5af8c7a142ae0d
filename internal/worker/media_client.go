package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/spec-kit/trustmesh/internal/broker"
)

const mediaDeletePath = "/Media/mediaManager/Delete/%d"

// MediaClient calls the media service's deletion endpoint.
type MediaClient struct {
	baseURL string
	client  *http.Client
}

// NewMediaClient builds a client for baseURL. A nil httpClient gets a
// traced client with the given timeout.
func NewMediaClient(baseURL string, timeout time.Duration, httpClient *http.Client) *MediaClient {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &MediaClient{baseURL: strings.TrimRight(baseURL, "/"), client: httpClient}
}

// Delete removes media id. 2xx and 404 both count as deleted; other 4xx
// responses are permanent, 5xx and transport errors are retryable.
func (c *MediaClient) Delete(ctx context.Context, id int64) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+fmt.Sprintf(mediaDeletePath, id), nil)
	if err != nil {
		return broker.Permanent(fmt.Errorf("build delete request: %w", err))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("delete media %d: %w", id, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300, resp.StatusCode == http.StatusNotFound:
		return nil
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("delete media %d: media service returned %d", id, resp.StatusCode)
	default:
		return broker.Permanent(fmt.Errorf("delete media %d: media service returned %d", id, resp.StatusCode))
	}
}
