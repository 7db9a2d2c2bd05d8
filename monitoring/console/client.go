// Package console shows the state of a monitored region in a terminal.
package console

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sarchlab/vmsim/mem/vm"
)

// A Client reads region snapshots from a monitoring server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the monitoring server at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Snapshot fetches the state of the region.
func (c *Client) Snapshot(
	ctx context.Context,
	key string,
) (vm.RegionSnapshot, error) {
	var s vm.RegionSnapshot

	u := c.baseURL + "/api/region/" + url.PathEscape(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return s, err
	}

	rsp, err := c.httpClient.Do(req)
	if err != nil {
		return s, err
	}
	defer rsp.Body.Close()

	if rsp.StatusCode != http.StatusOK {
		return s, fmt.Errorf("console: GET %s: %s", u, rsp.Status)
	}

	err = json.NewDecoder(rsp.Body).Decode(&s)

	return s, err
}
