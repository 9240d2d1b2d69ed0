package server

import (
	"charityfeed/internal/models"
	"charityfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// ListPosts handles GET /api/posts
// @Summary Public feed
// @Description Published posts, newest first. Pass the previous response's next_cursor to page without gaps; page is kept for numbered navigation.
// @Tags posts
// @Produce json
// @Param cursor query string false "Opaque cursor"
// @Param page query int false "1-based page, ignored when cursor is set"
// @Param limit query int false "Page size"
// @Success 200 {object} models.PostPage
// @Failure 400 {object} models.ErrorResponse
// @Router /posts [get]
func (s *Server) ListPosts(c *fiber.Ctx) error {
	in := service.ListPostsInput{
		Page:   c.QueryInt("page", 1),
		Limit:  c.QueryInt("limit", 0),
		Cursor: c.Query("cursor"),
	}
	if session := sessionOf(c); session != nil {
		in.ViewerID = session.User.ID
	}

	page, err := s.postService.ListPosts(c.UserContext(), in)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(page)
}

// GetPost handles GET /api/posts/:id
// @Summary One published post
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}
	post, err := s.postService.GetPost(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}
	if session := sessionOf(c); session != nil {
		liked, err := s.engagementService.LikedPostIDs(c.UserContext(), session, []uint{id})
		post.Liked = err == nil && len(liked) == 1
	}
	return c.JSON(post)
}

// ListComments handles GET /api/posts/:id/comments
// @Summary Comments on a post, oldest first
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Param limit query int false "Max comments"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Comment
// @Router /posts/{id}/comments [get]
func (s *Server) ListComments(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}
	comments, err := s.engagementService.ListComments(c.UserContext(), id,
		c.QueryInt("limit", 0), c.QueryInt("offset", 0))
	if err != nil {
		return s.fail(c, err)
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	return c.JSON(comments)
}

// SharePost handles POST /api/posts/:id/share
// @Summary Record a share
// @Tags posts
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} object{shares_count=int}
// @Router /posts/{id}/share [post]
func (s *Server) SharePost(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}
	count, err := s.engagementService.RecordShare(c.UserContext(), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(fiber.Map{"post_id": id, "shares_count": count})
}

// ToggleLike handles POST /api/posts/:id/like
// @Summary Like or unlike a post
// @Tags posts
// @Security BearerAuth
// @Produce json
// @Param id path int true "Post ID"
// @Success 200 {object} models.LikeResult
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{id}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}
	res, err := s.engagementService.ToggleLike(c.UserContext(), sessionOf(c), id)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(res)
}

type commentRequest struct {
	Content string `json:"content" validate:"required"`
}

// AddComment handles POST /api/posts/:id/comments
// @Summary Comment on a post
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body commentRequest true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Router /posts/{id}/comments [post]
func (s *Server) AddComment(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}
	var req commentRequest
	if err := s.bind(c, &req); err != nil {
		return nil
	}
	comment, err := s.engagementService.AddComment(c.UserContext(), sessionOf(c), id, req.Content)
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

type likedRequest struct {
	PostIDs []uint `json:"post_ids" validate:"required,max=100,dive,gt=0"`
}

// LikedPosts handles POST /api/posts/liked
// @Summary Which of the given posts the caller has liked
// @Tags posts
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body likedRequest true "Post IDs"
// @Success 200 {object} object{post_ids=[]int}
// @Router /posts/liked [post]
func (s *Server) LikedPosts(c *fiber.Ctx) error {
	var req likedRequest
	if err := s.bind(c, &req); err != nil {
		return nil
	}
	ids, err := s.engagementService.LikedPostIDs(c.UserContext(), sessionOf(c), req.PostIDs)
	if err != nil {
		return s.fail(c, err)
	}
	if ids == nil {
		ids = []uint{}
	}
	return c.JSON(fiber.Map{"post_ids": ids})
}
