// Package client talks to the messaging API over HTTP and WebSocket. It
// backs timeline sessions in Go programs and integration tests.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tenismatch/internal/domain"
)

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New returns a client for the API rooted at baseURL, e.g. http://localhost:8000.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

func (c *Client) Token() string {
	return c.token
}

// APIError is a non-2xx response. It unwraps to the domain error matching
// its status so callers can use errors.Is.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest:
		return domain.ErrInvalidInput
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusConflict:
		return domain.ErrConflict
	default:
		return domain.ErrStoreUnavailable
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w: %v", method, path, domain.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return resp.StatusCode, &APIError{Status: resp.StatusCode, Message: e.Error}
	}
	if out != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

type tokenResponse struct {
	AccessToken string       `json:"access_token"`
	User        *domain.User `json:"user"`
}

// Register creates an account and keeps its token.
func (c *Client) Register(ctx context.Context, username, password string) (*domain.User, error) {
	var out tokenResponse
	in := map[string]string{"username": username, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/register", in, &out); err != nil {
		return nil, err
	}
	c.token = out.AccessToken
	return out.User, nil
}

// Login authenticates and keeps the returned token.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.User, error) {
	var out tokenResponse
	in := map[string]string{"username": username, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/api/auth/login", in, &out); err != nil {
		return nil, err
	}
	c.token = out.AccessToken
	return out.User, nil
}

// OpenConversation gets or creates the conversation with otherUserID.
func (c *Client) OpenConversation(ctx context.Context, otherUserID int64, adID *int64) (*domain.Conversation, bool, error) {
	var conv domain.Conversation
	in := map[string]any{"other_user_id": otherUserID}
	if adID != nil {
		in["ad_id"] = *adID
	}
	status, err := c.do(ctx, http.MethodPost, "/api/conversations", in, &conv)
	if err != nil {
		return nil, false, err
	}
	return &conv, status == http.StatusCreated, nil
}

func (c *Client) ListConversations(ctx context.Context, includeArchived bool) ([]*domain.ConversationSummary, error) {
	path := "/api/conversations"
	if includeArchived {
		path += "?archived=true"
	}
	var out []*domain.ConversationSummary
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListMessages returns the messages after sinceID, oldest first.
func (c *Client) ListMessages(ctx context.Context, conversationID, sinceID int64) ([]*domain.Message, error) {
	q := url.Values{}
	if sinceID > 0 {
		q.Set("since_id", strconv.FormatInt(sinceID, 10))
	}
	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []*domain.Message
	if _, err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, conversationID int64, body string) (*domain.Message, error) {
	var m domain.Message
	path := fmt.Sprintf("/api/conversations/%d/messages", conversationID)
	if _, err := c.do(ctx, http.MethodPost, path, map[string]string{"body": body}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkRead moves the read marker to upto; a zero upto means now.
func (c *Client) MarkRead(ctx context.Context, conversationID int64, upto time.Time) (time.Time, error) {
	in := map[string]any{}
	if !upto.IsZero() {
		in["upto"] = upto
	}
	var out struct {
		LastReadAt time.Time `json:"last_read_at"`
	}
	path := fmt.Sprintf("/api/conversations/%d/read", conversationID)
	if _, err := c.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return time.Time{}, err
	}
	return out.LastReadAt, nil
}

func (c *Client) SetTyping(ctx context.Context, conversationID int64) error {
	_, err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/conversations/%d/typing", conversationID), nil, nil)
	return err
}
