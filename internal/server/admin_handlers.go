package server

import (
	"fmt"
	"io"
	"mime/multipart"

	"charityfeed/internal/models"
	"charityfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

// CreatePost handles POST /api/admin/posts (multipart/form-data)
// @Summary Create a post
// @Description Fields title, content, caption, status (draft|published) and one or more "media" files. Images are shown in upload order.
// @Tags admin
// @Security BearerAuth
// @Accept multipart/form-data
// @Produce json
// @Param title formData string true "Title"
// @Param content formData string true "Content"
// @Param caption formData string false "Caption"
// @Param status formData string false "draft or published"
// @Param media formData file false "Images"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /admin/posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Expected a multipart form"))
	}

	media, err := s.readMedia(form.File["media"])
	if err != nil {
		return s.fail(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), sessionOf(c), service.CreatePostInput{
		Title:   formValue(form, "title"),
		Content: formValue(form, "content"),
		Caption: formValue(form, "caption"),
		Status:  models.PostStatus(formValue(form, "status")),
		Media:   media,
	})
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// readMedia loads the uploaded files, rejecting oversized ones before they
// are read into memory.
func (s *Server) readMedia(files []*multipart.FileHeader) ([]service.MediaFile, error) {
	if len(files) > service.MaxMediaPerPost {
		return nil, models.NewValidationError(fmt.Sprintf("Too many images (max %d)", service.MaxMediaPerPost))
	}
	limit := s.config.MaxUploadBytes()
	media := make([]service.MediaFile, 0, len(files))
	for _, fh := range files {
		if fh.Size > limit {
			return nil, models.NewValidationError(fmt.Sprintf("Image %q too large (max %dMB)", fh.Filename, limit>>20))
		}
		f, err := fh.Open()
		if err != nil {
			return nil, models.NewValidationError(fmt.Sprintf("Could not read %q", fh.Filename))
		}
		data, err := io.ReadAll(io.LimitReader(f, limit+1))
		_ = f.Close()
		if err != nil {
			return nil, models.NewValidationError(fmt.Sprintf("Could not read %q", fh.Filename))
		}
		media = append(media, service.MediaFile{Filename: fh.Filename, Data: data})
	}
	return media, nil
}

// AdminListPosts handles GET /api/admin/posts
// @Summary All posts including drafts
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Limit"
// @Param offset query int false "Offset"
// @Success 200 {array} models.Post
// @Router /admin/posts [get]
func (s *Server) AdminListPosts(c *fiber.Ctx) error {
	page := parsePagination(c, 50)
	posts, err := s.postService.ListAll(c.UserContext(), sessionOf(c), page.Limit, page.Offset)
	if err != nil {
		return s.fail(c, err)
	}
	if posts == nil {
		posts = []*models.Post{}
	}
	return c.JSON(posts)
}

type statusRequest struct {
	Status string `json:"status" validate:"required,oneof=draft published"`
}

// UpdatePostStatus handles PATCH /api/admin/posts/:id/status
// @Summary Publish or unpublish a post
// @Tags admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param id path int true "Post ID"
// @Param request body statusRequest true "New status"
// @Success 200 {object} models.Post
// @Router /admin/posts/{id}/status [patch]
func (s *Server) UpdatePostStatus(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}
	var req statusRequest
	if err := s.bind(c, &req); err != nil {
		return nil
	}
	post, err := s.postService.UpdatePostStatus(c.UserContext(), sessionOf(c), id, models.PostStatus(req.Status))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/admin/posts/:id
// @Summary Delete a post with its likes and comments
// @Tags admin
// @Security BearerAuth
// @Param id path int true "Post ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 500 {object} models.ErrorResponse "PERSISTENCE_ERROR, including a post that does not exist"
// @Router /admin/posts/{id} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := s.parseID(c)
	if err != nil {
		return nil
	}
	if err := s.postService.DeletePost(c.UserContext(), sessionOf(c), id); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DashboardStats handles GET /api/admin/stats
// @Summary Dashboard totals
// @Tags admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} models.DashboardStats
// @Router /admin/stats [get]
func (s *Server) DashboardStats(c *fiber.Ctx) error {
	stats, err := s.postService.Stats(c.UserContext(), sessionOf(c))
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(stats)
}
