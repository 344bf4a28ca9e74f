package deploy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ensembled/pkg/types"
)

// SwapClient is the typed remote command channel to the swap agent on the
// target instance.
type SwapClient interface {
	// Swap asks the agent to roll the instance to tag and returns the
	// structured outcome.
	Swap(ctx context.Context, tag string) (types.SwapResult, error)
	// Current returns the tag currently receiving traffic.
	Current(ctx context.Context) (string, error)
}

// HTTPSwapClient talks to the agent's private control endpoint.
type HTTPSwapClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewSwapClient returns an HTTPSwapClient. timeout bounds the whole swap
// round trip, which includes the candidate's cache population and health
// polling on the agent side.
func NewSwapClient(baseURL string, timeout time.Duration) *HTTPSwapClient {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &HTTPSwapClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

func (c *HTTPSwapClient) Swap(ctx context.Context, tag string) (types.SwapResult, error) {
	body, _ := json.Marshal(types.SwapRequest{Tag: tag})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/swap", bytes.NewReader(body))
	if err != nil {
		return types.SwapResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return types.SwapResult{}, fmt.Errorf("swap command: %w", err)
	}
	defer res.Body.Close()
	var out types.SwapResult
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return types.SwapResult{}, fmt.Errorf("swap response: %w", err)
	}
	return out, nil
}

type currentResponse struct {
	Tag string `json:"tag"`
}

func (c *HTTPSwapClient) Current(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/current", nil)
	if err != nil {
		return "", err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return "", fmt.Errorf("current status=%d", res.StatusCode)
	}
	var out currentResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.Tag, nil
}
