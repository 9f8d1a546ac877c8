package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// Oracle resolves asset ownership from an external indexer over HTTP:
// GET {base}/assets/{address} -> {"assets": ["TOKEN", ...]}.
type Oracle struct {
	baseURL    string
	httpClient *http.Client
}

func NewOracle(baseURL string) *Oracle {
	return &Oracle{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (o *Oracle) Resolve(ctx context.Context, address string) ([]string, error) {
	u := fmt.Sprintf("%s/assets/%s", o.baseURL, url.PathEscape(address))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: oracle returned %d", ErrUnavailable, resp.StatusCode)
	}

	var result struct {
		Assets []string `json:"assets"`
		Error  string   `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if result.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, result.Error)
	}
	return result.Assets, nil
}

var _ Resolver = (*Oracle)(nil)
var _ Resolver = (*Static)(nil)
