package adapterutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/memohai/msgbridge/internal/channel"
)

// DefaultTimeout bounds a single provider call.
const DefaultTimeout = 15 * time.Second

// maxBodyBytes caps webhook and provider bodies read into memory.
const maxBodyBytes = 1 << 20

// NewHTTPClient returns a client with DefaultTimeout when timeout is not positive.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// ReadBody reads at most 1 MiB of the request body.
func ReadBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	return io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
}

// PostJSON sends payload once and decodes a 2xx response into out when out is non-nil.
// A non-2xx status is returned as *channel.DeliveryError carrying the provider body.
func PostJSON(ctx context.Context, client *http.Client, log *slog.Logger, channelID, url string, header http.Header, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", channelID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", channelID, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil && log != nil {
			log.Warn("close response body failed", slog.Any("error", err))
		}
	}()
	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &channel.DeliveryError{
			Channel: channelID,
			Status:  resp.StatusCode,
			Body:    strings.TrimSpace(string(respBody)),
		}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode %s response: %w", channelID, err)
	}
	return nil
}
