// Package rest is the out-of-band persistence collaborator: plain CRUD
// access to dialogs and messages over the HTTP API. The chat session never
// calls it; the surrounding application does.
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

	"github.com/meszmate/quickchat/internal/logging"
)

// Client talks to the HTTP store. The token comes from the credential
// provider and is sent on every request.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// New creates a client for the endpoint.
func New(endpoint, token string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Body)
}

// Dialog is one stored conversation.
type Dialog struct {
	ID          string `json:"_id"`
	Type        int    `json:"type"`
	Name        string `json:"name"`
	OccupantIDs []int  `json:"occupants_ids"`
	LastMessage string `json:"last_message"`
	Unread      int    `json:"unread_messages_count"`
}

// DialogParams creates a dialog.
type DialogParams struct {
	Type        int    `json:"type"`
	Name        string `json:"name,omitempty"`
	OccupantIDs []int  `json:"occupants_ids"`
}

// DialogPage is one page of dialogs.
type DialogPage struct {
	Total int      `json:"total_entries"`
	Skip  int      `json:"skip"`
	Limit int      `json:"limit"`
	Items []Dialog `json:"items"`
}

// OccupantsOp adds or removes occupants in a dialog update.
type OccupantsOp struct {
	OccupantIDs []int `json:"occupants_ids"`
}

// DialogPatch is a partial dialog update.
type DialogPatch struct {
	Name    string       `json:"name,omitempty"`
	PushAll *OccupantsOp `json:"push_all,omitempty"`
	PullAll *OccupantsOp `json:"pull_all,omitempty"`
}

// DeleteResult partitions a bulk delete. The three buckets are disjoint and
// always present, even when empty.
type DeleteResult struct {
	Succeeded []string
	NotFound  []string
	Forbidden []string
}

// CreateDialog creates a dialog.
func (c *Client) CreateDialog(ctx context.Context, params DialogParams) (Dialog, error) {
	var d Dialog
	err := c.do(ctx, http.MethodPost, "chat/Dialog.json", nil, params, &d)
	return d, err
}

// DialogFilter narrows ListDialogs.
type DialogFilter struct {
	Type  int
	Limit int
	Skip  int
}

// ListDialogs returns a page of dialogs matching the filter.
func (c *Client) ListDialogs(ctx context.Context, filter DialogFilter) (DialogPage, error) {
	q := url.Values{}
	if filter.Type != 0 {
		q.Set("type", strconv.Itoa(filter.Type))
	}
	if filter.Limit != 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Skip != 0 {
		q.Set("skip", strconv.Itoa(filter.Skip))
	}

	var page DialogPage
	err := c.do(ctx, http.MethodGet, "chat/Dialog.json", q, nil, &page)
	return page, err
}

// UpdateDialog applies a partial update to a dialog.
func (c *Client) UpdateDialog(ctx context.Context, id string, patch DialogPatch) (Dialog, error) {
	var d Dialog
	err := c.do(ctx, http.MethodPut, "chat/Dialog/"+id+".json", nil, patch, &d)
	return d, err
}

// DeleteDialogs removes dialogs by id. With force set, dialogs are removed
// for every occupant, not just the caller.
func (c *Client) DeleteDialogs(ctx context.Context, ids []string, force bool) (DeleteResult, error) {
	return c.bulkDelete(ctx, "chat/Dialog/"+strings.Join(ids, ",")+".json", force)
}

// ChatMessage is one stored message.
type ChatMessage struct {
	ID       string `json:"_id"`
	DialogID string `json:"chat_dialog_id"`
	Message  string `json:"message"`
	SenderID int    `json:"sender_id"`
	Read     int    `json:"read"`
	DateSent int64  `json:"date_sent"`
}

// MessageParams creates a stored message.
type MessageParams struct {
	DialogID string `json:"chat_dialog_id"`
	Message  string `json:"message"`
}

// MessagePage is one page of messages.
type MessagePage struct {
	Skip  int           `json:"skip"`
	Limit int           `json:"limit"`
	Items []ChatMessage `json:"items"`
}

// MessageFilter narrows ListMessages.
type MessageFilter struct {
	DialogID string
	Limit    int
	Skip     int
}

// CreateMessage stores a message.
func (c *Client) CreateMessage(ctx context.Context, params MessageParams) (ChatMessage, error) {
	var m ChatMessage
	err := c.do(ctx, http.MethodPost, "chat/Message.json", nil, params, &m)
	return m, err
}

// ListMessages returns a page of messages for a dialog.
func (c *Client) ListMessages(ctx context.Context, filter MessageFilter) (MessagePage, error) {
	q := url.Values{}
	q.Set("chat_dialog_id", filter.DialogID)
	if filter.Limit != 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Skip != 0 {
		q.Set("skip", strconv.Itoa(filter.Skip))
	}

	var page MessagePage
	err := c.do(ctx, http.MethodGet, "chat/Message.json", q, nil, &page)
	return page, err
}

// UnreadCount is the unread message tally across dialogs.
type UnreadCount struct {
	Total     int
	PerDialog map[string]int
}

// UnreadCount returns unread totals for the given dialogs.
func (c *Client) UnreadCount(ctx context.Context, dialogIDs []string) (UnreadCount, error) {
	q := url.Values{}
	q.Set("chat_dialog_ids", strings.Join(dialogIDs, ","))

	var raw map[string]int
	if err := c.do(ctx, http.MethodGet, "chat/Message/unread.json", q, nil, &raw); err != nil {
		return UnreadCount{}, err
	}

	count := UnreadCount{PerDialog: make(map[string]int)}
	for k, v := range raw {
		if k == "total" {
			count.Total = v
			continue
		}
		count.PerDialog[k] = v
	}
	return count, nil
}

// DeleteMessages removes messages by id.
func (c *Client) DeleteMessages(ctx context.Context, ids []string, force bool) (DeleteResult, error) {
	return c.bulkDelete(ctx, "chat/Message/"+strings.Join(ids, ",")+".json", force)
}

func (c *Client) bulkDelete(ctx context.Context, path string, force bool) (DeleteResult, error) {
	q := url.Values{}
	if force {
		q.Set("force", "1")
	}

	var raw struct {
		Deleted   idList `json:"SuccessfullyDeleted"`
		NotFound  idList `json:"NotFound"`
		Forbidden idList `json:"WrongPermissions"`
	}
	if err := c.do(ctx, http.MethodDelete, path, q, nil, &raw); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{
		Succeeded: bucket(raw.Deleted.IDs),
		NotFound:  bucket(raw.NotFound.IDs),
		Forbidden: bucket(raw.Forbidden.IDs),
	}, nil
}

type idList struct {
	IDs []string `json:"ids"`
}

func bucket(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.endpoint + "/" + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, payload)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("QB-Token", c.token)

	logging.Debug("rest: %s %s", method, path)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
