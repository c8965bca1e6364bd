package live

import (
	"encoding/json"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	ControlJoin  = "joinCampaign"
	ControlLeave = "leaveCampaign"
)

// ControlMessage is sent by watchers to manage their subscriptions.
type ControlMessage struct {
	Type       string `json:"type"`
	CampaignID string `json:"campaignId"`
}

type LiveController struct {
	hub    *Hub
	logger *zap.Logger
}

func NewLiveController(hub *Hub, logger *zap.Logger) *LiveController {
	return &LiveController{
		hub:    hub,
		logger: logger.Named("ws"),
	}
}

// RequireUpgrade rejects plain HTTP requests to the socket endpoint.
func (h *LiveController) RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleWebSocket godoc
// @Summary Live campaign updates
// @Description Upgrades to a websocket. Send {"type":"joinCampaign","campaignId":"..."} to receive campaignUpdate frames.
// @Tags live
// @Router /api/ws [get]
func (h *LiveController) HandleWebSocket(c *websocket.Conn) {
	client := h.hub.Register()
	defer h.hub.Unregister(client)

	// the conn goes back to a pool when this handler returns, so both the
	// reader and the writer have to be finished by then
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					h.logger.Debug("watcher disconnected", zap.Error(err))
				}
				return
			}
			h.handleControl(client, msg)
		}
	}()

	if err := client.Serve(c, websocket.TextMessage, readDone); err != nil {
		h.logger.Debug("watcher write failed", zap.Error(err))
		_ = c.Close()
	}
	<-readDone
}

func (h *LiveController) handleControl(client *Client, msg []byte) {
	var ctrl ControlMessage
	if err := json.Unmarshal(msg, &ctrl); err != nil {
		h.reply(client, "error", fiber.Map{"message": "invalid control message"})
		return
	}
	if _, err := primitive.ObjectIDFromHex(ctrl.CampaignID); err != nil {
		h.reply(client, "error", fiber.Map{"message": "invalid campaign ID"})
		return
	}

	topic := Topic(ctrl.CampaignID)
	switch ctrl.Type {
	case ControlJoin:
		h.hub.Join(client, topic)
		h.reply(client, "joined", fiber.Map{"campaignId": ctrl.CampaignID})
	case ControlLeave:
		h.hub.Leave(client, topic)
		h.reply(client, "left", fiber.Map{"campaignId": ctrl.CampaignID})
	default:
		h.reply(client, "error", fiber.Map{"message": "unknown control type"})
	}
}

func (h *LiveController) reply(client *Client, event string, data any) {
	payload, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return
	}
	h.hub.Send(client, payload)
}
