package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync/atomic"

	"cosmossdk.io/log"
	"github.com/pkg/errors"
)

// HTTPClient is a JSON-RPC client over plain HTTP POST. It carries no
// connection state, so it emits no lifecycle events and receives no pushes;
// Subscribe is accepted for interface symmetry but never fires.
type HTTPClient struct {
	logger log.Logger
	url    string
	client *http.Client
	nextID atomic.Uint64
}

// NewHTTPClient returns a client for the given http:// or https:// URL.
func NewHTTPClient(url string, logger log.Logger) *HTTPClient {
	return &HTTPClient{
		logger: logger.With("module", "http-client", "url", url),
		url:    url,
		client: &http.Client{},
	}
}

func (c *HTTPClient) URL() string { return c.url }

func (c *HTTPClient) Subscribe(chan<- Event)   {}
func (c *HTTPClient) Unsubscribe(chan<- Event) {}

func (c *HTTPClient) Call(ctx context.Context, method string, params, result interface{}) error {
	req := newRequest(c.nextID.Add(1), method, params)
	body, err := json.Marshal(req)
	if err != nil {
		return errors.Wrapf(err, "encode %s request", method)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "build %s request", method)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return errors.Wrapf(err, "post %s", method)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return errors.Wrapf(err, "read %s response", method)
	}
	if httpResp.StatusCode != http.StatusOK {
		return errors.Errorf("%s: unexpected status %d", method, httpResp.StatusCode)
	}

	var resp Response
	if err := json.Unmarshal(data, &resp); err != nil {
		return errors.Wrapf(err, "decode %s response", method)
	}
	if resp.Error != nil {
		return resp.Error
	}
	if result != nil && len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, result); err != nil {
			return errors.Wrapf(err, "decode %s result", method)
		}
	}
	return nil
}

func (c *HTTPClient) Close() error {
	c.client.CloseIdleConnections()
	return nil
}
