package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aussiebroadwan/admitgate/internal/auth/domain"
)

const defaultSMSTimeout = 15 * time.Second

// SMSClient sends codes through an HTTP JSON SMS gateway (route=otp).
type SMSClient struct {
	APIKey     string
	BaseURL    string
	Sender     string
	HTTPClient *http.Client
}

// NewSMSClient returns a client for the gateway at baseURL.
func NewSMSClient(apiKey, baseURL, sender string) *SMSClient {
	return &SMSClient{
		APIKey:     apiKey,
		BaseURL:    baseURL,
		Sender:     sender,
		HTTPClient: &http.Client{Timeout: defaultSMSTimeout},
	}
}

type smsRequest struct {
	Route     string `json:"route"`
	Numbers   string `json:"numbers"`
	Variables string `json:"variables"`
	Sender    string `json:"sender,omitempty"`
	Message   string `json:"message"`
}

// Send posts the code to the gateway. The number is sent as digits only
// (country code included). Does not log the code.
func (c *SMSClient) Send(ctx context.Context, to domain.Identity, msg Message) error {
	if to.Kind != domain.KindPhone {
		return deliveryError("sms", ErrNoChannel)
	}
	if c.APIKey == "" || c.BaseURL == "" {
		return deliveryError("sms", errors.New("gateway not configured"))
	}

	raw, err := json.Marshal(smsRequest{
		Route:     "otp",
		Numbers:   strings.TrimPrefix(to.Value, "+"),
		Variables: msg.Code,
		Sender:    c.Sender,
		Message:   msg.Body,
	})
	if err != nil {
		return deliveryError("sms", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return deliveryError("sms", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return deliveryError("sms", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return deliveryError("sms", fmt.Errorf("status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b))))
	}
	return nil
}
