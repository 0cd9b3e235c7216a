package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/franckalain/barcodenutrition/internal/fetch"
	"github.com/franckalain/barcodenutrition/internal/nutrition"
	"github.com/franckalain/barcodenutrition/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type wsMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type scanData struct {
	Images  []string `json:"images"`
	Keyword string   `json:"keyword"`
}

type lookupData struct {
	Code string `json:"code"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	clientID := uuid.New().String()
	s.clients.Store(clientID, conn)
	defer s.clients.Delete(clientID)

	log := s.logger.With(zap.String("client_id", clientID))
	log.Debug("websocket client connected")

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn("error reading message", zap.Error(err))
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			s.sendError(conn, "Invalid message format")
			continue
		}
		s.handleWebSocketMessage(r, conn, clientID, msg)
	}
}

func (s *Server) handleWebSocketMessage(r *http.Request, conn *websocket.Conn, clientID string, msg wsMessage) {
	switch msg.Type {
	case "scan":
		var data scanData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			s.sendError(conn, "Invalid scan data")
			return
		}
		s.handleScan(r, conn, clientID, data)
	case "lookup":
		var data lookupData
		if err := json.Unmarshal(msg.Data, &data); err != nil || data.Code == "" {
			s.sendError(conn, "Invalid lookup data")
			return
		}
		s.handleLookup(r, conn, data)
	default:
		s.sendError(conn, "Unknown message type")
	}
}

func (s *Server) handleScan(r *http.Request, conn *websocket.Conn, clientID string, data scanData) {
	images := make([]string, len(data.Images))
	for i, img := range data.Images {
		images[i] = imageRef(img)
	}

	resp := s.service.Reply(r.Context(), pipeline.Request{
		ID:     clientID + "/" + uuid.New().String(),
		Images: images,
		Body:   data.Keyword,
	})
	s.sendMessage(conn, "scan_result", map[string]any{
		"reply":   resp.Text,
		"outcome": resp.Outcome,
	})
}

func (s *Server) handleLookup(r *http.Request, conn *websocket.Conn, data lookupData) {
	item, err := s.service.Lookup(r.Context(), data.Code)
	switch {
	case errors.Is(err, nutrition.ErrMalformedCode):
		s.sendError(conn, "Malformed barcode "+data.Code)
	case errors.Is(err, nutrition.ErrNotFound), err == nil && item == nil:
		s.sendError(conn, "No nutrition facts for "+data.Code)
	case err != nil:
		s.logger.Error("lookup failed", zap.String("code", data.Code), zap.Error(err))
		s.sendError(conn, "Lookup failed")
	default:
		s.sendMessage(conn, "lookup_result", map[string]any{
			"code": data.Code,
			"item": item,
		})
	}
}

// imageRef passes URLs through and wraps anything else as base64 image data.
func imageRef(img string) string {
	if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") || strings.HasPrefix(img, "data:") {
		return img
	}
	return fetch.DataURI("", img)
}

func (s *Server) sendMessage(conn *websocket.Conn, messageType string, data any) {
	msg := map[string]any{
		"type": messageType,
		"data": data,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending message", zap.String("type", messageType), zap.Error(err))
	}
}

func (s *Server) sendError(conn *websocket.Conn, message string) {
	msg := map[string]any{
		"type":    "error",
		"message": message,
	}
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn("error sending error message", zap.Error(err))
	}
}
