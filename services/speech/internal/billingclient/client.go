package billingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"storyloom/internal/servicetoken"
	"storyloom/pkg/domain"
	"storyloom/services/speech/internal/app"
)

// Client calls the billing service's internal endpoints over HTTP,
// authenticating with short-lived service tokens.
type Client struct {
	baseURL    string
	signer     *servicetoken.Signer
	httpClient *http.Client
}

// NewClient constructs a billing client.
func NewClient(baseURL string, signer *servicetoken.Signer) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		signer:     signer,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

type checkRequest struct {
	UserID     string                  `json:"userId"`
	Tier       domain.SubscriptionTier `json:"tier"`
	Capability domain.Capability       `json:"capability"`
	Amount     int64                   `json:"amount"`
}

// Check asks the entitlement gate whether the synthesis may spend budget.
func (c *Client) Check(ctx context.Context, userID string, tier domain.SubscriptionTier, capability domain.Capability, amount int64) (app.GateDecision, error) {
	var decision app.GateDecision
	err := c.postJSON(ctx, "/internal/usage/check", checkRequest{
		UserID:     userID,
		Tier:       tier,
		Capability: capability,
		Amount:     amount,
	}, &decision)
	return decision, err
}

type trackRequest struct {
	UserID      string                  `json:"userId"`
	Tier        domain.SubscriptionTier `json:"tier"`
	Capability  domain.Capability       `json:"capability"`
	Amount      int64                   `json:"amount"`
	Description string                  `json:"description"`
}

// Track records consumption after a completed synthesis.
func (c *Client) Track(ctx context.Context, userID string, tier domain.SubscriptionTier, capability domain.Capability, amount int64, description string) error {
	return c.postJSON(ctx, "/internal/usage/track", trackRequest{
		UserID:      userID,
		Tier:        tier,
		Capability:  capability,
		Amount:      amount,
		Description: description,
	}, nil)
}

func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	token, err := c.signer.Sign("billing")
	if err != nil {
		return fmt.Errorf("sign service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return &APIError{Status: resp.StatusCode, Message: resp.Status}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// APIError represents a billing service error response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}
