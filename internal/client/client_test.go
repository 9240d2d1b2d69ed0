package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"charityfeed/internal/feed"
	"charityfeed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return New(srv.URL + "/api/")
}

func TestLoginKeepsToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var cred Credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cred))
		if cred.Password != "reader-pass" {
			writeJSON(w, http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid credentials", Code: models.CodeUnauthorized})
			return
		}
		writeJSON(w, http.StatusOK, models.Session{Token: "tok-1", User: &models.User{ID: 7, Email: cred.Email}})
	})
	mux.HandleFunc("GET /api/auth/session", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok-1" {
			writeJSON(w, http.StatusOK, map[string]any{"session": nil, "is_operator": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": models.Session{User: &models.User{ID: 7}}, "is_operator": true})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	_, err := c.Login(ctx, "uma@example.org", "nope")
	require.Error(t, err)
	assert.True(t, models.HasCode(err, models.CodeUnauthorized))
	assert.Equal(t, "Invalid credentials", err.Error())
	assert.Empty(t, c.Token())

	session, err := c.Login(ctx, "uma@example.org", "reader-pass")
	require.NoError(t, err)
	assert.Equal(t, uint(7), session.User.ID)
	assert.Equal(t, "tok-1", c.Token())

	current, err := c.CurrentSession(ctx)
	require.NoError(t, err)
	require.NotNil(t, current.Session)
	assert.True(t, current.IsOperator)

	require.NoError(t, c.Logout(ctx))
	assert.Empty(t, c.Token())
	current, err = c.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current.Session)
}

func TestListPostsQuery(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "9", r.URL.Query().Get("limit"))
		if r.URL.Query().Get("cursor") == "" {
			writeJSON(w, http.StatusOK, models.PostPage{Items: []*models.Post{{ID: 2}, {ID: 1}}, HasMore: true, NextCursor: "c1"})
			return
		}
		assert.Equal(t, "c1", r.URL.Query().Get("cursor"))
		writeJSON(w, http.StatusOK, models.PostPage{Items: []*models.Post{}})
	})
	c := newTestClient(t, mux)

	page, err := c.ListPosts(context.Background(), feed.PageRequest{Limit: 9})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, "c1", page.NextCursor)

	page, err = c.ListPosts(context.Background(), feed.PageRequest{Limit: 9, Cursor: "c1"})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
}

func TestEngagementCalls(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/posts/3/like", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, models.LikeResult{PostID: 3, Liked: true, LikesCount: 4})
	})
	mux.HandleFunc("POST /api/posts/3/comments", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusCreated, models.Comment{ID: 1, PostID: 3, Content: body["content"], CommentsCount: 7})
	})
	mux.HandleFunc("POST /api/posts/3/share", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"post_id": 3, "shares_count": 5})
	})
	mux.HandleFunc("POST /api/posts/liked", func(w http.ResponseWriter, r *http.Request) {
		var body postIDs
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		writeJSON(w, http.StatusOK, postIDs{PostIDs: body.PostIDs[:1]})
	})
	c := newTestClient(t, mux)
	c.SetToken("tok")
	ctx := context.Background()

	res, err := c.ToggleLike(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, res.LikesCount)

	comment, err := c.AddComment(ctx, 3, "Great work!")
	require.NoError(t, err)
	assert.Equal(t, "Great work!", comment.Content)
	assert.Equal(t, 7, comment.CommentsCount)

	count, err := c.RecordShare(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	liked, err := c.LikedPostIDs(ctx, []uint{3, 4})
	require.NoError(t, err)
	assert.Equal(t, []uint{3}, liked)

	liked, err = c.LikedPostIDs(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, liked)
}

func TestErrorMapping(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts/1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, models.ErrorResponse{Error: "Post with ID 1 not found", Code: models.CodeNotFound})
	})
	mux.HandleFunc("GET /api/posts/2", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})
	mux.HandleFunc("GET /api/posts/3", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		writeJSON(w, http.StatusOK, models.Post{ID: 3})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	c := New(srv.URL+"/api", WithTimeout(50*time.Millisecond))
	ctx := context.Background()

	_, err := c.GetPost(ctx, 1)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
	assert.Contains(t, err.Error(), "not found")

	_, err = c.GetPost(ctx, 2)
	assert.True(t, models.HasCode(err, models.CodeUpload), "code falls back to the status")

	_, err = c.GetPost(ctx, 3)
	assert.True(t, models.HasCode(err, models.CodeNetwork))
}

func TestCreatePostMultipart(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/admin/posts", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Food Drive", r.FormValue("title"))
		assert.Equal(t, "published", r.FormValue("status"))
		files := r.MultipartForm.File["media"]
		require.Len(t, files, 2)
		f, err := files[1].Open()
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "second", string(data))
		writeJSON(w, http.StatusCreated, models.Post{ID: 11, Title: "Food Drive", ImageURLs: []string{"a", "b"}})
	})
	mux.HandleFunc("DELETE /api/admin/posts/11", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux)
	ctx := context.Background()

	post, err := c.CreatePost(ctx, NewPost{
		Title:   "Food Drive",
		Content: "Bring cans",
		Status:  models.PostStatusPublished,
		Media: []Upload{
			{Filename: "a.webp", Reader: strings.NewReader("first")},
			{Filename: "b.webp", Reader: strings.NewReader("second")},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint(11), post.ID)

	require.NoError(t, c.DeletePost(ctx, 11))
}

func TestFeedSessionOverClient(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/posts", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, models.PostPage{Items: []*models.Post{{ID: 1, Title: "Only"}}})
	})
	c := newTestClient(t, mux)

	s := feed.NewSession(c, feed.SessionConfig{})
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, feed.StateExhausted, s.State())
	assert.Equal(t, 1, s.Len())
}
