package server

import (
	"log/slog"

	"charityfeed/internal/featureflags"
	"charityfeed/internal/middleware"
	"charityfeed/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// websocketUpgrade rejects plain HTTP requests and resolves the optional
// ?token= query parameter, since browsers cannot set headers on upgrades.
func (s *Server) websocketUpgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if !s.featureFlags.Enabled(featureflags.LiveUpdates, 0) {
		return models.RespondWithError(c, fiber.StatusServiceUnavailable,
			&models.AppError{Code: models.CodeNetwork, Message: "Live updates are disabled"})
	}
	if token := c.Query("token"); token != "" {
		session, err := s.authService.CurrentSession(c.UserContext(), token)
		if err != nil {
			return s.fail(c, err)
		}
		if session != nil {
			c.Locals("userID", session.User.ID)
		}
	}
	return c.Next()
}

// FeedWebSocket streams feed events (counter changes, publications and
// deletions) to the connected visitor until either side hangs up.
func (s *Server) FeedWebSocket() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		userID, _ := conn.Locals("userID").(uint)

		client, err := s.hub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("feed websocket rejected",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"error","error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}
