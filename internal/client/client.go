// Package client is the typed HTTP client for the charity feed API.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"charityfeed/internal/feed"
	"charityfeed/internal/models"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
)

const defaultTimeout = 15 * time.Second

var _ feed.Backend = (*Client)(nil)

// Client talks to the API under baseURL (for example http://localhost:8080/api).
// Every error it returns is a *models.AppError.
type Client struct {
	http *resty.Client

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.http.SetTimeout(d) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(baseURL, "/")).
			SetTimeout(defaultTimeout).
			SetJSONMarshaler(json.Marshal).
			SetJSONUnmarshaler(json.Unmarshal).
			SetHeader("Accept", "application/json").
			SetError(&models.ErrorResponse{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken sets the bearer token sent with every request. An empty token
// makes the client anonymous.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) request(ctx context.Context) *resty.Request {
	r := c.http.R().SetContext(ctx)
	if token := c.Token(); token != "" {
		r.SetAuthToken(token)
	}
	return r
}

// do runs the request and converts failures into AppErrors.
func do(resp *resty.Response, err error) error {
	if err != nil {
		return models.NewNetworkError(err)
	}
	if !resp.IsError() {
		return nil
	}
	return responseError(resp)
}

func responseError(resp *resty.Response) *models.AppError {
	status := resp.StatusCode()
	appErr := &models.AppError{Code: codeForStatus(status), Message: http.StatusText(status)}
	if body, ok := resp.Error().(*models.ErrorResponse); ok && body != nil {
		if body.Code != "" {
			appErr.Code = body.Code
		}
		if body.Error != "" {
			appErr.Message = body.Error
		}
		if body.Details != "" {
			appErr.Err = errors.New(body.Details)
		}
	}
	return appErr
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge:
		return models.CodeValidation
	case http.StatusUnauthorized:
		return models.CodeUnauthorized
	case http.StatusForbidden:
		return models.CodeForbidden
	case http.StatusNotFound:
		return models.CodeNotFound
	case http.StatusConflict:
		return models.CodeConflict
	case http.StatusBadGateway:
		return models.CodeUpload
	case http.StatusServiceUnavailable, http.StatusTooManyRequests:
		return models.CodeNetwork
	default:
		return models.CodeInternal
	}
}

func postPath(id uint, suffix string) string {
	return fmt.Sprintf("/posts/%d%s", id, suffix)
}

// Credentials are the fields of a signup, login or admin setup request.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name,omitempty"`
}

// Signup registers a new user and keeps its token.
func (c *Client) Signup(ctx context.Context, cred Credentials) (*models.Session, error) {
	return c.authenticate(ctx, "/auth/signup", cred)
}

// Login establishes a session and keeps its token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	return c.authenticate(ctx, "/auth/login", Credentials{Email: email, Password: password})
}

// AdminSetup creates the first operator account.
func (c *Client) AdminSetup(ctx context.Context, cred Credentials) (*models.Session, error) {
	return c.authenticate(ctx, "/auth/admin-setup", cred)
}

func (c *Client) authenticate(ctx context.Context, path string, cred Credentials) (*models.Session, error) {
	var session models.Session
	if err := do(c.request(ctx).SetBody(cred).SetResult(&session).Post(path)); err != nil {
		return nil, err
	}
	c.SetToken(session.Token)
	return &session, nil
}

// Logout revokes the current token and forgets it.
func (c *Client) Logout(ctx context.Context) error {
	if err := do(c.request(ctx).Post("/auth/logout")); err != nil {
		return err
	}
	c.SetToken("")
	return nil
}

// CurrentSession describes the caller. Session is nil for anonymous callers.
type CurrentSession struct {
	Session    *models.Session `json:"session"`
	IsOperator bool            `json:"is_operator"`
}

func (c *Client) CurrentSession(ctx context.Context) (*CurrentSession, error) {
	var out CurrentSession
	if err := do(c.request(ctx).SetResult(&out).Get("/auth/session")); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListPosts fetches one page of the public feed.
func (c *Client) ListPosts(ctx context.Context, req feed.PageRequest) (*models.PostPage, error) {
	r := c.request(ctx)
	if req.Limit > 0 {
		r.SetQueryParam("limit", strconv.Itoa(req.Limit))
	}
	if req.Cursor != "" {
		r.SetQueryParam("cursor", req.Cursor)
	}
	var page models.PostPage
	if err := do(r.SetResult(&page).Get("/posts")); err != nil {
		return nil, err
	}
	return &page, nil
}

func (c *Client) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := do(c.request(ctx).SetResult(&post).Get(postPath(id, ""))); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) ListComments(ctx context.Context, postID uint) ([]models.Comment, error) {
	var comments []models.Comment
	if err := do(c.request(ctx).SetResult(&comments).Get(postPath(postID, "/comments"))); err != nil {
		return nil, err
	}
	return comments, nil
}

type postIDs struct {
	PostIDs []uint `json:"post_ids"`
}

// LikedPostIDs returns the subset of postIDs the caller has liked.
func (c *Client) LikedPostIDs(ctx context.Context, ids []uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out postIDs
	if err := do(c.request(ctx).SetBody(postIDs{PostIDs: ids}).SetResult(&out).Post("/posts/liked")); err != nil {
		return nil, err
	}
	return out.PostIDs, nil
}

func (c *Client) ToggleLike(ctx context.Context, postID uint) (*models.LikeResult, error) {
	var res models.LikeResult
	if err := do(c.request(ctx).SetResult(&res).Post(postPath(postID, "/like"))); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) AddComment(ctx context.Context, postID uint, text string) (*models.Comment, error) {
	var comment models.Comment
	body := map[string]string{"content": text}
	if err := do(c.request(ctx).SetBody(body).SetResult(&comment).Post(postPath(postID, "/comments"))); err != nil {
		return nil, err
	}
	return &comment, nil
}

func (c *Client) RecordShare(ctx context.Context, postID uint) (int, error) {
	var out struct {
		SharesCount int `json:"shares_count"`
	}
	if err := do(c.request(ctx).SetResult(&out).Post(postPath(postID, "/share"))); err != nil {
		return 0, err
	}
	return out.SharesCount, nil
}

// Upload is one image attached to a new post.
type Upload struct {
	Filename string
	Reader   io.Reader
}

// NewPost is the input of CreatePost.
type NewPost struct {
	Title   string
	Content string
	Caption string
	Status  models.PostStatus
	Media   []Upload
}

// CreatePost uploads a post with its images. Operator only.
func (c *Client) CreatePost(ctx context.Context, in NewPost) (*models.Post, error) {
	r := c.request(ctx).SetMultipartFormData(map[string]string{
		"title":   in.Title,
		"content": in.Content,
		"caption": in.Caption,
		"status":  string(in.Status),
	})
	for _, m := range in.Media {
		r.SetFileReader("media", m.Filename, m.Reader)
	}
	var post models.Post
	if err := do(r.SetResult(&post).Post("/admin/posts")); err != nil {
		return nil, err
	}
	return &post, nil
}

// AdminListPosts lists every post including drafts. Operator only.
func (c *Client) AdminListPosts(ctx context.Context, limit, offset int) ([]models.Post, error) {
	var posts []models.Post
	r := c.request(ctx).SetQueryParams(map[string]string{
		"limit":  strconv.Itoa(limit),
		"offset": strconv.Itoa(offset),
	})
	if err := do(r.SetResult(&posts).Get("/admin/posts")); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) SetPostStatus(ctx context.Context, id uint, status models.PostStatus) (*models.Post, error) {
	var post models.Post
	body := map[string]string{"status": string(status)}
	if err := do(c.request(ctx).SetBody(body).SetResult(&post).Patch(postPathAdmin(id, "/status"))); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, id uint) error {
	return do(c.request(ctx).Delete(postPathAdmin(id, "")))
}

func (c *Client) DashboardStats(ctx context.Context) (*models.DashboardStats, error) {
	var stats models.DashboardStats
	if err := do(c.request(ctx).SetResult(&stats).Get("/admin/stats")); err != nil {
		return nil, err
	}
	return &stats, nil
}

func postPathAdmin(id uint, suffix string) string {
	return "/admin" + postPath(id, suffix)
}
