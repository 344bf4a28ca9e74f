package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

const shaHeader = "X-Checksum-Sha256"

// HTTPClient reads artifacts from an HTTP-fronted object store bucket.
// Objects live at <base>/<key>; a listing endpoint answers
// GET <base>/?prefix=<p> with a JSON object list. Checksums come from the
// X-Checksum-Sha256 response header or a <key>.sha256 sidecar object.
type HTTPClient struct {
	BaseURL string
	HTTP    *http.Client
}

// NewHTTP returns an HTTPClient with a bounded request timeout.
func NewHTTP(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

type listResponse struct {
	Objects []Object `json:"objects"`
}

func (c *HTTPClient) List(ctx context.Context, prefix string) ([]Object, error) {
	u := c.BaseURL + "/?prefix=" + url.QueryEscape(prefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, ErrTransfer(prefix, err)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, ErrTransfer(prefix, err)
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return nil, ErrTransfer(prefix, fmt.Errorf("list status=%d", res.StatusCode))
	}
	var out listResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, ErrTransfer(prefix, err)
	}
	sort.Slice(out.Objects, func(i, j int) bool { return out.Objects[i].Key < out.Objects[j].Key })
	return out.Objects, nil
}

func (c *HTTPClient) Stat(ctx context.Context, key string) (Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.objectURL(key), nil)
	if err != nil {
		return Object{}, ErrTransfer(key, err)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return Object{}, ErrTransfer(key, err)
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusNotFound:
		return Object{}, ErrNotFound(key)
	case res.StatusCode/100 != 2:
		return Object{}, ErrTransfer(key, fmt.Errorf("stat status=%d", res.StatusCode))
	}
	obj := Object{Key: key, Size: res.ContentLength, SHA256: res.Header.Get(shaHeader)}
	if obj.SHA256 == "" {
		obj.SHA256, _ = c.sidecarSHA(ctx, key)
	}
	return obj, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, key, dest, wantSHA string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(key), nil)
	if err != nil {
		return ErrTransfer(key, err)
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return ErrTransfer(key, err)
	}
	defer res.Body.Close()
	switch {
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound(key)
	case res.StatusCode/100 != 2:
		return ErrTransfer(key, fmt.Errorf("fetch status=%d", res.StatusCode))
	}
	if wantSHA == "" {
		wantSHA = res.Header.Get(shaHeader)
	}
	if wantSHA == "" {
		wantSHA, _ = c.sidecarSHA(ctx, key)
	}
	return writeAtomic(key, dest, wantSHA, res.Body)
}

// sidecarSHA fetches the <key>.sha256 sidecar object. A missing sidecar is
// not an error; it just means no checksum is known.
func (c *HTTPClient) sidecarSHA(ctx context.Context, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.objectURL(key+".sha256"), nil)
	if err != nil {
		return "", err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		return "", nil
	}
	b, err := io.ReadAll(io.LimitReader(res.Body, 256))
	if err != nil {
		return "", err
	}
	// sha256sum output may carry "<hex>  <name>"
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return "", nil
	}
	return strings.ToLower(fields[0]), nil
}

func (c *HTTPClient) objectURL(key string) string {
	return c.BaseURL + "/" + strings.TrimLeft(key, "/")
}
