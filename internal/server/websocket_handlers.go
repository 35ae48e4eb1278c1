package server

import (
	"log"

	"artvault/internal/notifications"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// WebsocketHandler returns a websocket handler that registers connections with the Hub.
// Authentication is handled by route middleware and userID is read from connection locals.
// @Summary Realtime feed events
// @Description Server-to-client stream of post, reaction and comment events
// @Tags realtime
// @Security BearerAuth
// @Param token query string false "Bearer token for browsers that cannot set headers"
// @Success 101
// @Router /ws [get]
func (s *Server) WebsocketHandler() fiber.Handler {
	return websocket.New(func(conn *websocket.Conn) {
		uid, ok := conn.Locals("userID").(uint)
		if !ok || uid == 0 {
			if cerr := conn.Close(); cerr != nil {
				log.Printf("websocket close error: %v", cerr)
			}
			return
		}

		// Register connection with scaling guardrails
		client, err := s.hub.Register(uid, conn)
		if err != nil {
			log.Printf("WebSocket feed: failed to register user %d: %v", uid, err)
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(closeCodeFor(err), err.Error()))
			_ = conn.Close()
			return
		}
		defer s.hub.UnregisterClient(client)

		// Start pumps
		go client.WritePump()
		client.ReadPump()
	})
}

func closeCodeFor(err error) int {
	switch err {
	case notifications.ErrHubShutdown:
		return websocket.CloseGoingAway
	case notifications.ErrServerFull, notifications.ErrUserLimit:
		return websocket.CloseTryAgainLater
	default:
		return websocket.CloseInternalServerErr
	}
}
