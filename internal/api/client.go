// Package api is the typed REST client for the complaint hub backend.
// Every endpoint has an explicit request/response schema; callers never
// probe JSON for field presence. Failures are classified at this boundary:
// anything that warrants the offline fallback is wrapped with
// hub.ErrUnavailable.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"sch-go/internal/hub"
	"sch-go/internal/model"
)

// Client talks to the backend REST API. It is stateless apart from the
// session token captured at login.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewClient creates a client for the API rooted at baseURL
// (e.g. "http://localhost:5000/api").
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{},
	}
}

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned %d", e.Code)
	}
	return fmt.Sprintf("backend returned %d: %s", e.Code, e.Body)
}

// fallbackStatus reports whether an HTTP status triggers the offline
// fallback. 404 is deliberately included: on this API it means "endpoint
// not implemented server-side", not "resource absent".
func fallbackStatus(code int) bool {
	return code == http.StatusNotFound ||
		code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}

type request struct {
	method string
	path   string
	query  url.Values
	body   any
	out    any
	// idempotencyKey is sent as X-Idempotency-Key when non-empty, so
	// replayed mutations can be deduplicated server-side.
	idempotencyKey string
}

func (c *Client) do(ctx context.Context, r request) error {
	var body io.Reader
	if r.body != nil {
		encoded, err := json.Marshal(r.body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	u := c.baseURL + r.path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, u, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if r.idempotencyKey != "" {
		req.Header.Set("X-Idempotency-Key", r.idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport-level failure: unreachable, DNS, timeout. All of
		// these select the fallback.
		return fmt.Errorf("%s %s: %w: %w", r.method, r.path, hub.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := &StatusError{Code: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
		if fallbackStatus(resp.StatusCode) {
			return fmt.Errorf("%s %s: %w: %w", r.method, r.path, hub.ErrUnavailable, statusErr)
		}
		return fmt.Errorf("%s %s: %w", r.method, r.path, statusErr)
	}

	if r.out != nil {
		if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
			return fmt.Errorf("%s %s: decoding response: %w", r.method, r.path, err)
		}
	}
	return nil
}

// Login authenticates and captures the session token for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (*hub.RemoteUser, error) {
	var resp struct {
		AccessToken string         `json:"access_token"`
		User        hub.RemoteUser `json:"user"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"username": username, "password": password},
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	c.token = resp.AccessToken
	return &resp.User, nil
}

// Feed fetches the canonical complaint list. The original JSON for each
// item is preserved in Raw so the local cache can pass unknown fields
// through untouched.
func (c *Client) Feed(ctx context.Context, q hub.FeedQuery) ([]hub.RemoteComplaint, error) {
	query := url.Values{}
	if q.Page > 0 {
		query.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.Status != "" {
		query.Set("status", q.Status)
	}
	if q.CreatedBy > 0 {
		query.Set("created_by", strconv.FormatInt(q.CreatedBy, 10))
	}
	query.Set("order_by", "created_at")
	query.Set("order", "desc")

	var resp struct {
		Items []json.RawMessage `json:"items"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/complaints",
		query:  query,
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}

	items := make([]hub.RemoteComplaint, 0, len(resp.Items))
	for _, raw := range resp.Items {
		var item hub.RemoteComplaint
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decoding feed item: %w", err)
		}
		item.Raw = raw
		items = append(items, item)
	}
	return items, nil
}

// Like toggles the caller's like on a complaint.
func (c *Client) Like(ctx context.Context, complaintID int64) (*hub.LikeResult, error) {
	var res hub.LikeResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/complaints/%d/like", complaintID),
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Bookmark toggles the caller's bookmark on a complaint.
func (c *Client) Bookmark(ctx context.Context, complaintID int64) (*hub.BookmarkResult, error) {
	var res hub.BookmarkResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/complaints/%d/bookmark", complaintID),
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Follow toggles the caller's follow edge to userID.
func (c *Client) Follow(ctx context.Context, userID int64) (*hub.FollowResult, error) {
	var res hub.FollowResult
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/users/%d/follow", userID),
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Comments fetches the comments on a complaint.
func (c *Client) Comments(ctx context.Context, complaintID int64) ([]hub.RemoteComment, error) {
	var resp struct {
		Items []hub.RemoteComment `json:"items"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/complaints/%d/comments", complaintID),
		out:    &resp,
	})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// PostComment creates a comment on a complaint.
func (c *Client) PostComment(ctx context.Context, complaintID int64, content string, anonymous bool) (*hub.RemoteComment, error) {
	var res hub.RemoteComment
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   fmt.Sprintf("/complaints/%d/comments", complaintID),
		body: map[string]any{
			"complaint_id": complaintID,
			"content":      content,
			"is_anonymous": anonymous,
		},
		out: &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// DeleteComplaint deletes a complaint.
func (c *Client) DeleteComplaint(ctx context.Context, complaintID int64) error {
	return c.do(ctx, request{
		method: http.MethodDelete,
		path:   fmt.Sprintf("/complaints/%d", complaintID),
	})
}

// User fetches a user record.
func (c *Client) User(ctx context.Context, id int64) (*hub.RemoteUser, error) {
	var res hub.RemoteUser
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   fmt.Sprintf("/users/%d", id),
		out:    &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Followers lists the users following userID.
func (c *Client) Followers(ctx context.Context, userID int64) ([]hub.RemoteUser, error) {
	return c.userList(ctx, fmt.Sprintf("/users/%d/followers", userID))
}

// Following lists the users userID follows.
func (c *Client) Following(ctx context.Context, userID int64) ([]hub.RemoteUser, error) {
	return c.userList(ctx, fmt.Sprintf("/users/%d/following", userID))
}

func (c *Client) userList(ctx context.Context, path string) ([]hub.RemoteUser, error) {
	var resp struct {
		Items []hub.RemoteUser `json:"items"`
	}
	err := c.do(ctx, request{method: http.MethodGet, path: path, out: &resp})
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Replay re-transmits a queued offline mutation. The action's idempotency
// key rides along so the server can drop duplicates.
func (c *Client) Replay(ctx context.Context, a *model.PendingAction) error {
	switch a.Type {
	case model.ActionLike:
		return c.do(ctx, request{
			method:         http.MethodPost,
			path:           fmt.Sprintf("/complaints/%d/like", a.ComplaintID),
			body:           map[string]string{"action": a.Op},
			idempotencyKey: a.Key,
		})
	case model.ActionBookmark:
		return c.do(ctx, request{
			method:         http.MethodPost,
			path:           fmt.Sprintf("/complaints/%d/bookmark", a.ComplaintID),
			body:           map[string]string{"action": a.Op},
			idempotencyKey: a.Key,
		})
	case model.ActionFollow:
		return c.do(ctx, request{
			method:         http.MethodPost,
			path:           fmt.Sprintf("/users/%d/follow", a.TargetID),
			body:           map[string]string{"action": a.Op},
			idempotencyKey: a.Key,
		})
	case model.ActionComment:
		return c.do(ctx, request{
			method: http.MethodPost,
			path:   fmt.Sprintf("/complaints/%d/comments", a.ComplaintID),
			body: map[string]any{
				"complaint_id": a.ComplaintID,
				"content":      a.Content,
				"is_anonymous": a.IsAnonymous,
			},
			idempotencyKey: a.Key,
		})
	case model.ActionDeleteComplaint:
		return c.do(ctx, request{
			method:         http.MethodDelete,
			path:           fmt.Sprintf("/complaints/%d", a.ComplaintID),
			idempotencyKey: a.Key,
		})
	default:
		return fmt.Errorf("unknown pending action type: %s", a.Type)
	}
}

// Compile-time check that Client implements hub.Remote
var _ hub.Remote = (*Client)(nil)
