package handler

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/hackathon-judge/internal/middleware"
	"github.com/noah-isme/hackathon-judge/internal/service"
	"github.com/noah-isme/hackathon-judge/internal/utils"
)

const streamPingInterval = 30 * time.Second

// LeaderboardHandler serves the ranking and the live evaluation stream.
type LeaderboardHandler struct {
	service service.LeaderboardService
	events  service.EventBroadcaster
	logger  zerolog.Logger
}

// NewLeaderboardHandler builds the handler. events may be nil, which disables
// the websocket stream.
func NewLeaderboardHandler(service service.LeaderboardService, events service.EventBroadcaster, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		service: service,
		events:  events,
		logger:  logger.With().Str("component", "leaderboard_handler").Logger(),
	}
}

// Register binds leaderboard routes under the provided router group.
func (h *LeaderboardHandler) Register(router fiber.Router) {
	router.Get("", h.leaderboard)
	router.Get("/summary", h.summary)

	if h.events != nil {
		router.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				c.Locals("correlation_id", middleware.GetCorrelationID(c))
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		router.Get("/ws", websocket.New(h.stream))
	}
}

func (h *LeaderboardHandler) leaderboard(c *fiber.Ctx) error {
	if strings.EqualFold(c.Query("format"), "text") {
		text, err := h.service.Text(c.UserContext())
		if err != nil {
			return h.handleError(c, err)
		}
		c.Type("txt", "utf-8")
		return c.SendString(text)
	}

	board, err := h.service.Leaderboard(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	return utils.SendSuccess(c, "leaderboard retrieved", board)
}

func (h *LeaderboardHandler) summary(c *fiber.Ctx) error {
	text, err := h.service.Summary(c.UserContext())
	if err != nil {
		return h.handleError(c, err)
	}
	c.Type("txt", "utf-8")
	return c.SendString(text)
}

// stream pushes every completed evaluation to the client until it hangs up.
func (h *LeaderboardHandler) stream(conn *websocket.Conn) {
	events, unsubscribe := h.events.Subscribe()
	defer unsubscribe()

	logger := h.logger
	if correlation, ok := conn.Locals("correlation_id").(string); ok && correlation != "" {
		logger = logger.With().Str("correlation_id", correlation).Logger()
	}
	logger.Debug().Msg("leaderboard stream connected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("leaderboard stream write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				logger.Debug().Err(err).Msg("leaderboard stream ping failed")
				return
			}
		case <-closed:
			logger.Debug().Msg("leaderboard stream disconnected")
			return
		}
	}
}

func (h *LeaderboardHandler) handleError(c *fiber.Ctx, err error) error {
	requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}
