package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Fallback contact details used when the user directory cannot be reached.
// A bill must still go out even if enrichment is down.
const (
	FallbackEmail       = "customer@example.net"
	FallbackPhoneNumber = "0770000000"
)

// Contact is the delivery address material attached to billing events
type Contact struct {
	Email        string `json:"email"`
	MobileNumber string `json:"mobile_number"`
}

// UserDirectory looks up a user's contact details for event enrichment. Best
// effort only: callers fall back to defaults on any error.
type UserDirectory interface {
	GetContact(ctx context.Context, userID int64) (Contact, error)
}

// HTTPUserDirectory fetches contacts from the user service over HTTP with a
// bounded timeout
type HTTPUserDirectory struct {
	baseURL string
	client  *http.Client
}

// NewHTTPUserDirectory creates a user directory client
func NewHTTPUserDirectory(baseURL string, timeout time.Duration) *HTTPUserDirectory {
	return &HTTPUserDirectory{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetContact fetches a user's contact details
func (d *HTTPUserDirectory) GetContact(ctx context.Context, userID int64) (Contact, error) {
	url := fmt.Sprintf("%s/api/users/%d", d.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Contact{}, err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return Contact{}, fmt.Errorf("user directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Contact{}, fmt.Errorf("user directory returned status %d", resp.StatusCode)
	}

	var contact Contact
	if err := json.NewDecoder(resp.Body).Decode(&contact); err != nil {
		return Contact{}, fmt.Errorf("failed to decode user directory response: %w", err)
	}

	return contact, nil
}
