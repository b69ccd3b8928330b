package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/devswipe/devswipe/internal/domain"
	"github.com/google/uuid"
)

const defaultBaseURL = "http://localhost:9091"

// wireTimeLayout is how the backend encodes timestamps: zone-less
// LocalDateTime strings with an optional fractional part.
const wireTimeLayout = "2006-01-02T15:04:05.999999999"

// Client is the HTTP/JSON client for the devswipe backend. It is the only
// place that sees the backend's wire format; identities are normalized here
// and handed upward as domain values.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// populated after Login (or SetToken)
	token string
}

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a backend client. If baseURL is empty, it defaults to
// http://localhost:9091.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken installs a pre-issued bearer token, skipping Login.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login authenticates against the backend, stores the session token and
// returns the logged-in identity.
func (c *Client) Login(ctx context.Context, username, password string) (domain.Identity, error) {
	body := map[string]string{
		"username": username,
		"password": password,
	}

	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/api/users/login", nil, body, &resp); err != nil {
		return domain.Identity{}, fmt.Errorf("login: %w", err)
	}

	c.token = resp.Token
	return domain.NewIdentity(resp.ID, resp.Username, resp.Name), nil
}

// Me resolves the identity behind the current token.
func (c *Client) Me(ctx context.Context) (domain.Identity, error) {
	var u wireUser
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, nil, &u); err != nil {
		return domain.Identity{}, fmt.Errorf("fetch current user: %w", err)
	}
	return u.toIdentity(), nil
}

// SendMessage creates a message and returns the server's copy with its
// assigned id.
func (c *Client) SendMessage(ctx context.Context, sender, recipient domain.Identity, content string, sentAt time.Time) (domain.Message, error) {
	body := wireMessage{
		Sender:    sender.CanonicalName,
		Recipient: recipient.CanonicalName,
		Content:   content,
		Timestamp: sentAt.Format(wireTimeLayout),
	}

	var resp wireMessage
	if err := c.do(ctx, http.MethodPost, "/api/chat/messages", nil, body, &resp); err != nil {
		return domain.Message{}, fmt.Errorf("send message: %w", err)
	}
	return resp.toDomain(), nil
}

// MessagesForUser returns every message where the user is sender or
// recipient.
func (c *Client) MessagesForUser(ctx context.Context, user domain.Identity) ([]domain.Message, error) {
	path := "/api/chat/messages/user/" + url.PathEscape(user.CanonicalName)

	var resp []wireMessage
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch messages for user: %w", err)
	}
	return toMessages(resp), nil
}

// MessagesBetween returns the history for a pair of users.
func (c *Client) MessagesBetween(ctx context.Context, a, b domain.Identity) ([]domain.Message, error) {
	query := url.Values{}
	query.Set("user1", a.CanonicalName)
	query.Set("user2", b.CanonicalName)

	var resp []wireMessage
	if err := c.do(ctx, http.MethodGet, "/api/chat/messages/between", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch conversation: %w", err)
	}
	return toMessages(resp), nil
}

// SearchMessages returns messages whose content matches the keyword.
func (c *Client) SearchMessages(ctx context.Context, keyword string) ([]domain.Message, error) {
	query := url.Values{}
	query.Set("keyword", keyword)

	var resp []wireMessage
	if err := c.do(ctx, http.MethodGet, "/api/chat/messages/search", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	return toMessages(resp), nil
}

// DeleteMessage removes a message by server id.
func (c *Client) DeleteMessage(ctx context.Context, id int64) error {
	path := "/api/chat/messages/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// ListUsers returns the full user directory. The endpoint is public.
func (c *Client) ListUsers(ctx context.Context) ([]domain.Identity, error) {
	var resp []wireUser
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, nil, &resp); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return toIdentities(resp), nil
}

// SearchUsers returns directory entries matching the query.
func (c *Client) SearchUsers(ctx context.Context, q string) ([]domain.Identity, error) {
	query := url.Values{}
	query.Set("query", q)

	var resp []wireUser
	if err := c.do(ctx, http.MethodGet, "/api/users/search", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return toIdentities(resp), nil
}

// Feed returns the unswiped posts for a user, optionally narrowed to the
// given categories (comma-separated on the wire).
func (c *Client) Feed(ctx context.Context, userID int64, categories []string) ([]domain.Post, error) {
	query := url.Values{}
	query.Set("userId", strconv.FormatInt(userID, 10))
	if len(categories) > 0 {
		query.Set("categories", strings.Join(categories, ","))
	}

	var resp []wirePost
	if err := c.do(ctx, http.MethodGet, "/api/posts/feed", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}

	posts := make([]domain.Post, 0, len(resp))
	for _, p := range resp {
		posts = append(posts, p.toDomain())
	}
	return posts, nil
}

// CreatePost publishes a new post for the author. Upload the image first
// and pass the returned reference in post.ImageRef.
func (c *Client) CreatePost(ctx context.Context, authorID int64, post domain.Post) (domain.Post, error) {
	query := url.Values{}
	query.Set("authorId", strconv.FormatInt(authorID, 10))

	body := wirePost{
		Title:       post.Title,
		Description: post.Description,
		Category:    post.Category,
		Stack:       post.Stack,
		Image:       post.ImageRef,
	}

	var resp wirePost
	if err := c.do(ctx, http.MethodPost, "/api/posts", query, body, &resp); err != nil {
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}
	return resp.toDomain(), nil
}

// UploadImage sends raw image bytes as a multipart form and returns the
// path reference the backend stores for it.
func (c *Client) UploadImage(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("write form file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/uploads", &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	var result uploadResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return result.URL, nil
}

// RecordSwipe records a right swipe. The endpoint takes everything in the
// query string and an empty body.
func (c *Client) RecordSwipe(ctx context.Context, rec domain.SwipeRecord) error {
	query := url.Values{}
	query.Set("userId", strconv.FormatInt(rec.UserID, 10))
	query.Set("postId", strconv.FormatInt(rec.PostID, 10))
	query.Set("direction", string(rec.Direction))
	query.Set("swipedAt", rec.Timestamp.Format(wireTimeLayout))

	if err := c.do(ctx, http.MethodPost, "/api/swipes", query, nil, nil); err != nil {
		return fmt.Errorf("record swipe: %w", err)
	}
	return nil
}

// RecordLeftSwipe records a left swipe via its own JSON endpoint.
func (c *Client) RecordLeftSwipe(ctx context.Context, rec domain.SwipeRecord) error {
	body := leftSwipeRequest{
		PostID:    rec.PostID,
		UserID:    rec.UserID,
		Timestamp: rec.Timestamp.Format(wireTimeLayout),
	}
	if err := c.do(ctx, http.MethodPost, "/api/left-swipes", nil, body, nil); err != nil {
		return fmt.Errorf("record left swipe: %w", err)
	}
	return nil
}

// SwipedInbox returns the posts the user right-swiped, with swipe times.
func (c *Client) SwipedInbox(ctx context.Context, userID int64) ([]domain.ContributedPost, error) {
	query := url.Values{}
	query.Set("userId", strconv.FormatInt(userID, 10))

	var resp []wirePost
	if err := c.do(ctx, http.MethodGet, "/api/swipes/inbox", query, nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch swiped inbox: %w", err)
	}

	entries := make([]domain.ContributedPost, 0, len(resp))
	for _, p := range resp {
		entries = append(entries, domain.ContributedPost{
			Post:     p.toDomain(),
			SwipedAt: parseWireTime(p.SwipedAt),
		})
	}
	return entries, nil
}

// LeftSwipedIDs returns the post ids the user has left-swiped before.
func (c *Client) LeftSwipedIDs(ctx context.Context, userID int64) ([]int64, error) {
	path := "/api/left-swipes/ids/" + strconv.FormatInt(userID, 10)

	var ids []int64
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &ids); err != nil {
		return nil, fmt.Errorf("fetch left-swiped ids: %w", err)
	}
	return ids, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, result any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("X-Request-Id", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// parseWireTime parses the backend's timestamp strings. RFC 3339 values are
// accepted too, since the frontend historically sent those on writes.
func parseWireTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	t, err := time.Parse(wireTimeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

type loginResponse struct {
	Token    string `json:"token"`
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
}

type wireUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
}

func (u wireUser) toIdentity() domain.Identity {
	return domain.NewIdentity(u.ID, u.Username, u.Name)
}

type wireMessage struct {
	ID        int64  `json:"id,omitempty"`
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp,omitempty"`
}

func (m wireMessage) toDomain() domain.Message {
	return domain.Message{
		ID:        m.ID,
		Sender:    domain.NewIdentity(0, m.Sender, ""),
		Recipient: domain.NewIdentity(0, m.Recipient, ""),
		Content:   m.Content,
		Timestamp: parseWireTime(m.Timestamp),
		State:     domain.Confirmed,
	}
}

type wirePost struct {
	ID          int64     `json:"id,omitempty"`
	AuthorID    int64     `json:"authorId,omitempty"`
	Author      *wireUser `json:"author,omitempty"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Stack       string    `json:"stack"`
	Image       string    `json:"image,omitempty"`
	SwipedAt    string    `json:"swipedAt,omitempty"`
}

func (p wirePost) toDomain() domain.Post {
	post := domain.Post{
		ID:          p.ID,
		AuthorID:    p.AuthorID,
		Title:       p.Title,
		Description: p.Description,
		Category:    p.Category,
		Stack:       p.Stack,
		ImageRef:    p.Image,
	}
	if p.Author != nil {
		post.Author = p.Author.toIdentity()
		if post.AuthorID == 0 {
			post.AuthorID = p.Author.ID
		}
	}
	return post
}

type leftSwipeRequest struct {
	PostID    int64  `json:"postId"`
	UserID    int64  `json:"userId"`
	Timestamp string `json:"timestamp"`
}

type uploadResponse struct {
	URL string `json:"url"`
}

func toMessages(wire []wireMessage) []domain.Message {
	msgs := make([]domain.Message, 0, len(wire))
	for _, m := range wire {
		msgs = append(msgs, m.toDomain())
	}
	return msgs
}

func toIdentities(wire []wireUser) []domain.Identity {
	ids := make([]domain.Identity, 0, len(wire))
	for _, u := range wire {
		ids = append(ids, u.toIdentity())
	}
	return ids
}
