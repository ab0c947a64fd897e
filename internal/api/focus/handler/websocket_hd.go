package focusHandler

import (
	"context"
	"time"

	"FocusTracker/internal/api/focus"
	contextPkg "FocusTracker/pkg/context"
	"FocusTracker/pkg/handlerUtil"

	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsWriteTimeout = 10 * time.Second
	wsPath         = "/api/v1/focus/ws"
)

// handleWebSocket scores a stream of captures. Each text or binary frame
// carries the same JSON body as POST /focus/image and gets one JSON reply.
func (h *FocusHandler) handleWebSocket(c *websocket.Conn) {
	requestID, _ := c.Locals(contextPkg.HeaderRequestID).(string)
	if requestID == "" {
		requestID = "unknown"
	}
	errHandler := handlerUtil.New(h.log)

	h.log.WithField("request_id", requestID).Info("Focus WebSocket client connected")
	defer h.log.WithField("request_id", requestID).Info("Focus WebSocket client disconnected")

	c.SetPingHandler(func(data string) error {
		if err := c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second)); err != nil {
			h.log.Errorf("Error sending pong: %v", err)
		}
		return nil
	})

	for {
		if err := c.SetReadDeadline(time.Now().Add(wsReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			break
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Errorf("Focus WebSocket error: %v", err)
			}
			break
		}

		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		reply := h.processFrame(requestID, errHandler, message)

		if err := c.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			h.log.Errorf("Error setting write deadline: %v", err)
			break
		}

		if err := c.WriteJSON(reply); err != nil {
			h.log.Errorf("Error writing JSON response: %v", err)
			break
		}
	}
}

func (h *FocusHandler) processFrame(requestID string, errHandler *handlerUtil.ErrorHandler, message []byte) interface{} {
	var req focus.ProcessImageRequest
	if err := jsoniter.Unmarshal(message, &req); err != nil {
		_, body := errHandler.Resolve(requestID, focus.ErrInvalidBody, wsPath, "parse_frame")
		return body
	}

	if err := h.validator.Struct(req); err != nil {
		h.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Validation failed")
		return handlerUtil.ValidationErrorResponse(err)
	}

	ctx, cancel := context.WithTimeout(contextPkg.WithRequestID(context.Background(), requestID), h.captureTimeout)
	defer cancel()

	res, err := h.focusService.ProcessImage(ctx, req)
	if err != nil {
		_, body := errHandler.Resolve(requestID, err, wsPath, "process_frame")
		return body
	}
	return res
}
