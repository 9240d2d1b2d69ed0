package server

import (
	"fmt"
	"net/http"
	"testing"

	"charityfeed/internal/models"
	"charityfeed/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFoodDriveScenario(t *testing.T) {
	env := newTestEnv(t)
	env.publish(t, "Older post")
	post := env.publish(t, "Food Drive")

	require.Len(t, post.ImageURLs, 1)
	assert.Equal(t, 2, env.store.Len(storage.BucketPosts))

	var page models.PostPage
	resp := env.do(t, http.MethodGet, "/api/posts?page=1", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &page)
	require.NotEmpty(t, page.Items)
	assert.Equal(t, "Food Drive", page.Items[0].Title)
	assert.Zero(t, page.Items[0].LikesCount)
	assert.Zero(t, page.Items[0].CommentsCount)

	likePath := fmt.Sprintf("/api/posts/%d/like", post.ID)
	var like models.LikeResult
	resp = env.do(t, http.MethodPost, likePath, env.readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &like)
	assert.True(t, like.Liked)
	assert.Equal(t, 1, like.LikesCount)

	resp = env.do(t, http.MethodPost, likePath, env.readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &like)
	assert.False(t, like.Liked)
	assert.Equal(t, 0, like.LikesCount)
}

func TestCommentsScenario(t *testing.T) {
	env := newTestEnv(t)
	post := env.publish(t, "Food Drive")
	path := fmt.Sprintf("/api/posts/%d/comments", post.ID)

	resp := env.do(t, http.MethodPost, path, env.readerToken, map[string]string{"content": "Great work!"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var comment models.Comment
	decode(t, resp, &comment)
	assert.Equal(t, "Uma Reader", comment.UserName)
	assert.Equal(t, 1, comment.CommentsCount)

	for _, bad := range []string{"", "   "} {
		resp = env.do(t, http.MethodPost, path, env.readerToken, map[string]string{"content": bad})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, "content %q", bad)
		assert.Equal(t, models.CodeValidation, errorCode(t, resp))
	}

	resp = env.do(t, http.MethodPost, path, "", map[string]string{"content": "anonymous"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var comments []models.Comment
	resp = env.do(t, http.MethodGet, path, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &comments)
	require.Len(t, comments, 1)
	assert.Equal(t, "Great work!", comments[0].Content)

	var got models.Post
	resp = env.do(t, http.MethodGet, fmt.Sprintf("/api/posts/%d", post.ID), "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &got)
	assert.Equal(t, 1, got.CommentsCount)
}

func TestListPostsPagination(t *testing.T) {
	env := newTestEnv(t)
	for i := 0; i < 12; i++ {
		env.publish(t, fmt.Sprintf("Post %02d", i))
	}

	var first, second models.PostPage
	resp := env.do(t, http.MethodGet, "/api/posts?page=1", "", nil)
	decode(t, resp, &first)
	resp = env.do(t, http.MethodGet, "/api/posts?page=2", "", nil)
	decode(t, resp, &second)

	require.Len(t, first.Items, 9)
	require.Len(t, second.Items, 3)
	assert.True(t, first.HasMore)
	assert.False(t, second.HasMore)

	seen := map[uint]bool{}
	for _, p := range append(first.Items, second.Items...) {
		assert.False(t, seen[p.ID], "post %d returned twice", p.ID)
		seen[p.ID] = true
	}
	assert.False(t, second.Items[0].CreatedAt.After(first.Items[8].CreatedAt))

	// cursor paging covers the same rows
	var viaCursor models.PostPage
	resp = env.do(t, http.MethodGet, "/api/posts?cursor="+first.NextCursor, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &viaCursor)
	assert.Equal(t, ids(second.Items), ids(viaCursor.Items))

	resp = env.do(t, http.MethodGet, "/api/posts?cursor=not-a-cursor", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func ids(posts []*models.Post) []uint {
	out := make([]uint, len(posts))
	for i, p := range posts {
		out[i] = p.ID
	}
	return out
}

func TestLikedPostsAndFeedHeartState(t *testing.T) {
	env := newTestEnv(t)
	liked := env.publish(t, "Liked")
	other := env.publish(t, "Other")

	resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", liked.ID), env.readerToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		PostIDs []uint `json:"post_ids"`
	}
	resp = env.do(t, http.MethodPost, "/api/posts/liked", env.readerToken, map[string]any{"post_ids": []uint{liked.ID, other.ID}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &body)
	assert.Equal(t, []uint{liked.ID}, body.PostIDs)

	var page models.PostPage
	resp = env.do(t, http.MethodGet, "/api/posts", env.readerToken, nil)
	decode(t, resp, &page)
	for _, p := range page.Items {
		assert.Equal(t, p.ID == liked.ID, p.Liked, "post %d", p.ID)
	}
}

func TestSharePost(t *testing.T) {
	env := newTestEnv(t)
	post := env.publish(t, "Shared")

	var body struct {
		SharesCount int `json:"shares_count"`
	}
	for want := 1; want <= 2; want++ {
		resp := env.do(t, http.MethodPost, fmt.Sprintf("/api/posts/%d/share", post.ID), "", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		decode(t, resp, &body)
		assert.Equal(t, want, body.SharesCount)
	}

	resp := env.do(t, http.MethodPost, "/api/posts/9999/share", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/api/posts/abc/share", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
