package poseHandler

import (
	"time"

	"HeadTurner/internal/api/pose"

	"github.com/gofiber/websocket/v2"
)

// handlePreviewWebSocket answers every {yaw, pitch} message with the compiled
// prompt and indicator geometry, so a client can follow a slider live.
func (h *PoseHandler) handlePreviewWebSocket(c *websocket.Conn) {
	h.log.Info("Pose preview WebSocket client connected")
	defer h.log.Info("Pose preview WebSocket client disconnected")

	c.SetPingHandler(func(data string) error {
		h.log.Debug("Received ping, sending pong")
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	maxReadTimeout := 60 * time.Second

	for {
		if err := c.SetReadDeadline(time.Now().Add(maxReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		var angles pose.AnglesRequest
		if err := c.ReadJSON(&angles); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.log.Errorf("Pose preview WebSocket error: %v", err)
			} else {
				h.log.Info("Pose preview WebSocket connection closed")
			}
			break
		}

		var reply interface{}
		if err := h.validator.Struct(angles); err != nil {
			reply = map[string]string{"error": pose.ErrInvalidAngle.Error()}
		} else {
			reply = h.poseService.Preview(angles.Yaw, angles.Pitch)
		}

		if err := c.SetWriteDeadline(time.Now().Add(10 * time.Second)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(reply); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}

		if err := c.SetWriteDeadline(time.Time{}); err != nil {
			h.log.Errorf("Error resetting write deadline: %v", err)
			break
		}
	}
}
