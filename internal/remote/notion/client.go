// Package notion is a thin REST client for the Notion pages API. It does no
// retrying of its own: failures surface as *retry.HTTPError carrying the
// remote status and error code, and the reconciliation engine decides what
// is worth retrying.
package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"calbridge.app/bridge/internal/retry"
)

const defaultAPIVersion = "2022-06-28"

// TokenProvider resolves the current integration token. Injected so token
// refresh stays outside this package.
type TokenProvider func(ctx context.Context) (string, error)

// StaticToken wraps a fixed integration token.
func StaticToken(token string) TokenProvider {
	return func(context.Context) (string, error) { return token, nil }
}

type ClientOptions struct {
	BaseURL       string
	APIVersion    string
	TokenProvider TokenProvider
	HTTPClient    *http.Client
	UserAgent     string
}

type Client struct {
	baseURL       string
	apiVersion    string
	tokenProvider TokenProvider
	httpClient    *http.Client
	userAgent     string
}

func NewClient(opts ClientOptions) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.notion.com"
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = defaultAPIVersion
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	return &Client{
		baseURL:       baseURL,
		apiVersion:    apiVersion,
		tokenProvider: opts.TokenProvider,
		httpClient:    httpClient,
		userAgent:     strings.TrimSpace(opts.UserAgent),
	}
}

// CreatePage inserts a row into the database and returns the new page.
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties map[string]Property) (*Page, error) {
	var page Page
	err := c.do(ctx, http.MethodPost, "/v1/pages", createPageRequest{
		Parent:     parentRef{DatabaseID: databaseID},
		Properties: properties,
	}, &page)
	if err != nil {
		return nil, fmt.Errorf("creating notion page: %w", err)
	}
	return &page, nil
}

// UpdatePage patches the given properties; properties not named are left
// untouched, which is what makes sparse backfill patches possible.
func (c *Client) UpdatePage(ctx context.Context, pageID string, properties map[string]Property) error {
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, updatePageRequest{Properties: properties}, nil); err != nil {
		return fmt.Errorf("updating notion page %s: %w", pageID, err)
	}
	return nil
}

// GetPage fetches a single page by id.
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {
	var page Page
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &page); err != nil {
		return nil, fmt.Errorf("fetching notion page %s: %w", pageID, err)
	}
	return &page, nil
}

// ArchivePage is Notion's deletion: pages are archived, not destroyed.
func (c *Client) ArchivePage(ctx context.Context, pageID string) error {
	archived := true
	if err := c.do(ctx, http.MethodPatch, "/v1/pages/"+pageID, updatePageRequest{Archived: &archived}, nil); err != nil {
		return fmt.Errorf("archiving notion page %s: %w", pageID, err)
	}
	return nil
}

// QueryDatabase pages through every row of the database.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string) ([]Page, error) {
	var (
		pages  []Page
		cursor string
	)
	for {
		req := queryDatabaseRequest{PageSize: 100, StartCursor: cursor}
		var resp queryDatabaseResponse
		if err := c.do(ctx, http.MethodPost, "/v1/databases/"+databaseID+"/query", req, &resp); err != nil {
			return nil, fmt.Errorf("querying notion database %s: %w", databaseID, err)
		}
		pages = append(pages, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil {
			break
		}
		cursor = *resp.NextCursor
	}
	return pages, nil
}

// CreateSubscription registers webhookURL for change notifications on the
// database. Verification completes out of band: Notion posts a one-time
// verification token to the endpoint afterwards.
func (c *Client) CreateSubscription(ctx context.Context, databaseID, webhookURL string) (*Subscription, error) {
	var sub Subscription
	err := c.do(ctx, http.MethodPost, "/v1/webhooks", createSubscriptionRequest{
		ParentID:   databaseID,
		ParentType: "database_id",
		URL:        webhookURL,
		EventTypes: []string{"page.created", "page.properties_updated", "page.deleted"},
	}, &sub)
	if err != nil {
		return nil, fmt.Errorf("creating notion webhook subscription: %w", err)
	}
	sub.DatabaseID = databaseID
	return &sub, nil
}

// DeleteSubscription removes a webhook registration.
func (c *Client) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	if err := c.do(ctx, http.MethodDelete, "/v1/webhooks/"+subscriptionID, nil, nil); err != nil {
		return fmt.Errorf("deleting notion webhook subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	if c.tokenProvider == nil {
		return retry.Terminalf("notion token provider is not configured")
	}
	token, err := c.tokenProvider(ctx)
	if err != nil {
		return fmt.Errorf("resolving notion token: %w", err)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return retry.Terminalf("notion token is empty")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Notion-Version", c.apiVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling notion: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading notion response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope apiError
		if unmarshalErr := json.Unmarshal(respBody, &envelope); unmarshalErr != nil {
			slog.DebugContext(ctx, "unparseable notion error body", "status", resp.StatusCode)
		}
		return &retry.HTTPError{
			StatusCode: resp.StatusCode,
			Code:       envelope.Code,
			Message:    firstNonEmpty(envelope.Message, strings.TrimSpace(string(respBody))),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decoding notion response: %w", err)
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
