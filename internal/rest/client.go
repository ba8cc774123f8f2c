// Package rest implements the HTTP client for the chat backend. Every
// request goes through an instrumented transport that feeds the debug
// panel's call log and injects the session's bearer token.
package rest

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

	"github.com/dkzef/chirp/internal/calllog"
)

// Client talks to the chat backend over REST.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the backend at baseURL. token returns the
// Authorization header value per request, so a refreshed token takes
// effect without rebuilding the client.
func New(baseURL string, log *calllog.Log, token func() string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &recordingTransport{
				next:  http.DefaultTransport,
				log:   log,
				token: token,
			},
		},
	}
}

// ListChats fetches every chat summary.
func (c *Client) ListChats(ctx context.Context) ([]Chat, error) {
	var chats []Chat
	if err := c.do(ctx, http.MethodGet, "/v1/chats", nil, &chats); err != nil {
		return nil, err
	}
	return chats, nil
}

// ListMessages fetches up to limit messages for a chat, newest first.
func (c *Client) ListMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	path := "/v1/chats/" + url.PathEscape(chatID) + "/messages"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var msgs []Message
	if err := c.do(ctx, http.MethodGet, path, nil, &msgs); err != nil {
		return nil, err
	}
	return msgs, nil
}

// SendMessage posts a new message and returns the server's copy, which
// carries the authoritative id and status.
func (c *Client) SendMessage(ctx context.Context, chatID string, req SendRequest) (*Message, error) {
	path := "/v1/chats/" + url.PathEscape(chatID) + "/messages"
	var msg Message
	if err := c.do(ctx, http.MethodPost, path, req, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("send %s: server returned no message id", chatID)
	}
	return &msg, nil
}

// SendTyping reports the user's typing state. Fire and forget.
func (c *Client) SendTyping(ctx context.Context, chatID string, typing bool) error {
	path := "/v1/chats/" + url.PathEscape(chatID) + "/typing"
	return c.do(ctx, http.MethodPost, path, TypingRequest{IsTyping: typing}, nil)
}

// MarkRead tells the backend the chat was opened. Fire and forget.
func (c *Client) MarkRead(ctx context.Context, chatID string) error {
	path := "/v1/chats/" + url.PathEscape(chatID) + "/read"
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxCapturedBody))
		return &APIError{Status: resp.StatusCode, Method: method, Path: path, Body: string(b)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
