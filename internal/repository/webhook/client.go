package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/internal/domain/entity"
	"github.com/lucosvsk10/wsgestaocontabil-sub003/pkg/utils"
)

// Client posts extraction requests to the external automation webhook.
// Any non-2xx status or transport error is a single failure outcome; the
// caller does not distinguish further.
type Client struct {
	url        string
	httpClient *http.Client
}

func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Extract(ctx context.Context, req entity.ExtractionRequest) (json.RawMessage, error) {
	body, err := utils.ToRawMessage(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("call extraction webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("extraction webhook returned status %d", resp.StatusCode)
	}

	// A 2xx is a success even with an empty or unparseable body; the
	// extracted payload is simply absent in that case. A failed body read
	// is a transport error, not an empty body.
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read webhook response: %w", err)
	}
	if len(respBody) == 0 {
		return nil, nil
	}

	var parsed entity.ExtractionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, nil
	}
	return parsed.ExtractedData, nil
}
