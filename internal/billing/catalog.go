package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ActiveService is one chargeable service a user has enabled
type ActiveService struct {
	ServiceType string `json:"service_type"`
	ServiceName string `json:"service_name"`
}

// CatalogClient fetches the active chargeable services for a user. An
// implementation must tolerate being unavailable; billing treats any error as
// "no enrichment available" and falls back to a base bill.
type CatalogClient interface {
	GetActiveServices(ctx context.Context, userID int64) ([]ActiveService, error)
}

// HTTPCatalogClient talks to the service catalog over HTTP with a bounded
// timeout
type HTTPCatalogClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPCatalogClient creates a catalog client
func NewHTTPCatalogClient(baseURL string, timeout time.Duration) *HTTPCatalogClient {
	return &HTTPCatalogClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetActiveServices fetches active services for a user
func (c *HTTPCatalogClient) GetActiveServices(ctx context.Context, userID int64) ([]ActiveService, error) {
	url := fmt.Sprintf("%s/api/services/user/%d/active", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog returned status %d", resp.StatusCode)
	}

	var services []ActiveService
	if err := json.NewDecoder(resp.Body).Decode(&services); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	return services, nil
}
