package handler

import (
	"psvs-console-be/internal/pkg/logger"
	"psvs-console-be/internal/pkg/serverutils"
	"psvs-console-be/internal/service"
	internalWS "psvs-console-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// TimelineWsHandler upgrades console connections. Every state change of the
// practitioner's open timeline is pushed over the socket; scroll, click and
// toggle frames flow back.
type TimelineWsHandler struct {
	timeline service.ITimelineService
	hub      *internalWS.Hub
	logger   logger.ILogger
}

func NewTimelineWsHandler(timeline service.ITimelineService, hub *internalWS.Hub, log logger.ILogger) *TimelineWsHandler {
	hub.OnInbound(timeline.HandleInbound)
	return &TimelineWsHandler{
		timeline: timeline,
		hub:      hub,
		logger:   log,
	}
}

// ServeWs handles websocket requests from the console.
func (h *TimelineWsHandler) ServeWs(c *fiber.Ctx) error {
	// Browsers cannot set headers on the handshake, so the query wins.
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}

	if tokenStr == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')"))
	}

	practitionerID, err := serverutils.ParseToken(tokenStr)
	if err != nil {
		h.logger.Warn("TimelineWsHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, err.Error()))
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	// The console may connect after the timeline was opened over REST.
	var initial []internalWS.Envelope
	if state, err := h.timeline.State(c.UserContext(), practitionerID); err == nil {
		initial = append(initial, internalWS.Envelope{Type: service.FrameTimelineState, Data: state.State})
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("TimelineWsHandler", "Starting WebSocket session", map[string]interface{}{"practitioner_id": practitionerID})

		internalWS.ServeWs(h.hub, conn, practitionerID, initial...)
		h.logger.Info("TimelineWsHandler", "WebSocket session ended", map[string]interface{}{"practitioner_id": practitionerID})
	})(c)
}

func (h *TimelineWsHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
}
