package server

import (
	"charityfeed/internal/middleware"
	"charityfeed/internal/models"
	"charityfeed/internal/service"

	"github.com/gofiber/fiber/v2"
)

type accountRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	FullName string `json:"full_name" validate:"max=120"`
}

func (r accountRequest) input() service.AccountInput {
	return service.AccountInput{Email: r.Email, Password: r.Password, FullName: r.FullName}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Description Register a regular user account and sign it in
// @Tags auth
// @Accept json
// @Produce json
// @Param request body accountRequest true "Signup request"
// @Success 201 {object} models.Session
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req accountRequest
	if err := s.bind(c, &req); err != nil {
		return nil
	}
	session, err := s.authService.Signup(c.UserContext(), req.input())
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// AdminSetup handles POST /api/auth/admin-setup
// @Summary First admin account
// @Description Create the first admin account. Refused once any admin exists.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body accountRequest true "Admin account"
// @Success 201 {object} models.Session
// @Failure 403 {object} models.ErrorResponse
// @Router /auth/admin-setup [post]
func (s *Server) AdminSetup(c *fiber.Ctx) error {
	var req accountRequest
	if err := s.bind(c, &req); err != nil {
		return nil
	}
	session, err := s.authService.AdminSetup(c.UserContext(), req.input())
	if err != nil {
		return s.fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// Login handles POST /api/auth/login
// @Summary User login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "Credentials"
// @Success 200 {object} models.Session
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := s.bind(c, &req); err != nil {
		return nil
	}
	session, err := s.authService.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return s.fail(c, err)
	}
	return c.JSON(session)
}

// Logout handles POST /api/auth/logout
// @Summary Revoke the current token
// @Tags auth
// @Security BearerAuth
// @Success 204
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	token, _ := middleware.BearerToken(c)
	if err := s.authService.Logout(c.UserContext(), token); err != nil {
		return s.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// CurrentSession handles GET /api/auth/session. Anonymous callers and
// invalid tokens get {"session": null} rather than an error.
// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} object{session=models.Session}
// @Router /auth/session [get]
func (s *Server) CurrentSession(c *fiber.Ctx) error {
	token, _ := middleware.BearerToken(c)
	session, err := s.authService.CurrentSession(c.UserContext(), token)
	if err != nil {
		return s.fail(c, err)
	}
	if session != nil {
		session.Token = ""
	}
	return c.JSON(fiber.Map{
		"session":     session,
		"is_operator": s.authService.IsOperator(session),
	})
}

// GetFeatureFlags handles GET /api/admin/flags
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	var userID uint
	if session := middleware.SessionFrom(c); session != nil {
		userID = session.User.ID
	}
	return c.JSON(fiber.Map{
		"raw":       s.featureFlags.Raw(),
		"evaluated": s.featureFlags.Snapshot(userID),
	})
}

type flagRequest struct {
	Value string `json:"value" validate:"required,max=8"`
}

// SetFeatureFlag handles PATCH /api/admin/flags/:name. Values are on, off or
// a rollout percentage such as 25%. Changes last until restart.
func (s *Server) SetFeatureFlag(c *fiber.Ctx) error {
	var req flagRequest
	if err := s.bind(c, &req); err != nil {
		return nil
	}
	name := c.Params("name")
	s.featureFlags.Set(name, req.Value)
	middleware.Logger.InfoContext(c.UserContext(), "feature flag changed",
		"flag", name, "value", req.Value, "by", middleware.SessionFrom(c).User.ID)
	return c.JSON(fiber.Map{
		"raw": s.featureFlags.Raw(),
	})
}

// sessionOf is the session attached by the auth middleware, or nil.
func sessionOf(c *fiber.Ctx) *models.Session {
	return middleware.SessionFrom(c)
}
