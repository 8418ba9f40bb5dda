package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// HTTPClient sends verification codes through a transactional mail API
// (JSON POST, bearer-style key in the Authorization header).
type HTTPClient struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewHTTPClient returns a client for the given API key and optional base
// URL / From address.
func NewHTTPClient(apiKey, baseURL, sender string) *HTTPClient {
	if baseURL == "" {
		baseURL = "https://api.mailchannel.dev/v1/send"
	}
	return &HTTPClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// SendCode emails the verification code to address. Does not log the code.
func (c *HTTPClient) SendCode(ctx context.Context, address, code string, ttl time.Duration) error {
	if c.APIKey == "" {
		return ErrNotConfigured
	}
	body := map[string]interface{}{
		"from":    c.Sender,
		"to":      address,
		"subject": "Your verification code",
		"text":    fmt.Sprintf("Your verification code is %s. It expires in %d minutes.", code, int(ttl.Minutes())),
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("mail: request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
