// Package crm is a thin HTTP wrapper around the LeadConnector
// (GoHighLevel) contacts API: contact upsert by email plus best-effort
// tag application.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL     = "https://services.leadconnectorhq.com"
	defaultHTTPTimeout = 10 * time.Second

	// Fixed API version header required by LeadConnector.
	apiVersion = "2021-07-28"

	maxResponseBodyBytes int64 = 64 * 1024
)

// APIError represents an HTTP-level error from the LeadConnector API.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("leadconnector request %s %s failed: status=%d body=%q", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client calls the LeadConnector REST API.
type Client struct {
	baseURL    string
	apiKey     string
	locationID string
	httpClient *http.Client
}

// Option adjusts client construction.
type Option func(*Client)

// WithBaseURL overrides the API base URL. Tests point this at a local server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a LeadConnector client.
func New(apiKey, locationID string, opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		locationID: locationID,
		httpClient: &http.Client{
			Timeout: defaultHTTPTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Contact identifies the buyer to upsert.
type Contact struct {
	Email     string
	FirstName string
}

type upsertRequest struct {
	Email      string `json:"email"`
	LocationID string `json:"locationId"`
	FirstName  string `json:"firstName,omitempty"`
}

type upsertResponse struct {
	ID      string `json:"id"`
	Contact struct {
		ID string `json:"id"`
	} `json:"contact"`
}

// UpsertContact creates or updates a contact by email and returns its ID.
// An empty returned ID with a nil error means the API answered OK without
// a contact ID; callers treat that as a failure.
func (c *Client) UpsertContact(ctx context.Context, contact Contact) (string, error) {
	payload := upsertRequest{
		Email:      contact.Email,
		LocationID: c.locationID,
		FirstName:  contact.FirstName,
	}

	var response upsertResponse
	if err := c.postJSON(ctx, "/contacts/", payload, &response); err != nil {
		return "", err
	}

	if id := strings.TrimSpace(response.Contact.ID); id != "" {
		return id, nil
	}
	return strings.TrimSpace(response.ID), nil
}

// TagOutcome records one tag application attempt.
type TagOutcome struct {
	Tag string
	Err error
}

// OK reports whether the tag was applied.
func (o TagOutcome) OK() bool {
	return o.Err == nil
}

type tagRequest struct {
	Tags []string `json:"tags"`
}

// ApplyTags applies each tag to the contact sequentially, one call per
// tag. Failures are recorded per tag and logged; the batch never aborts
// early. The CRM deduplicates tags on its side, so re-application is safe.
func (c *Client) ApplyTags(ctx context.Context, contactID string, tags []string) []TagOutcome {
	outcomes := make([]TagOutcome, 0, len(tags))
	path := fmt.Sprintf("/contacts/%s/tags", contactID)

	for _, tag := range tags {
		err := c.postJSON(ctx, path, tagRequest{Tags: []string{tag}}, nil)
		if err != nil {
			log.Warn().Err(err).
				Str("contact_id", contactID).
				Str("tag", tag).
				Msg("CRM tag application failed")
		}
		outcomes = append(outcomes, TagOutcome{Tag: tag, Err: err})
	}
	return outcomes
}

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal leadconnector request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create leadconnector request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("leadconnector request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			StatusCode: resp.StatusCode,
			Method:     http.MethodPost,
			Path:       path,
			Body:       string(respBody),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode leadconnector response for %s: %w", path, err)
		}
	}
	return nil
}
