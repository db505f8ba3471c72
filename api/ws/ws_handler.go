package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/inkroom/inkroom/bus"
	"github.com/inkroom/inkroom/canvas"
	"github.com/inkroom/inkroom/geom"
	"github.com/inkroom/inkroom/session"
)

type Handler struct {
	Auth *session.Authenticator
	Hub  *Hub
}

func NewHandler(auth *session.Authenticator, hub *Hub) *Handler {
	return &Handler{
		Auth: auth,
		Hub:  hub,
	}
}

func (h *Handler) NewWsUpgrader(requiredOrigin string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			// Non-browser clients send no Origin; their credential is the
			// token. The check only guards browsers against cross-site use.
			origin := r.Header.Get("Origin")
			return origin == "" || origin == requiredOrigin
		},
		Subprotocols: []string{"inkroom-v1"},
	}
}

// ServeWS handles websocket requests from the peer. The token rides the
// second subprotocol slot because browsers cannot set headers on upgrade
// requests.
func (h *Handler) ServeWS(wsUpgrader websocket.Upgrader, w http.ResponseWriter, r *http.Request, shutdownCtx context.Context) {
	protocols := r.Header.Get("Sec-WebSocket-Protocol")
	protocolsSplit := strings.Split(protocols, ",")

	if len(protocolsSplit) != 2 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	token := strings.TrimSpace(protocolsSplit[1])

	identity, authErr := h.Auth.AuthenticateToken(token)

	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade ws connection: %v", err)
		return
	}

	// Must upgrade the connection in order to be able to send custom close message
	if authErr != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "Unauthenticated"),
		)
		conn.Close()
		return
	}

	client := NewClient(h.Hub, conn, identity, h.HandleWsMessage)

	h.Hub.OpenCh <- client

	// Start pumps
	go client.ReadPump()
	go client.WritePump(shutdownCtx)
}

// Websocket message structs
type message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// HandleWsMessage turns a client message into a stamped room envelope. The
// payload is validated and its author rewritten before anything is relayed,
// so a client can neither inject garbage nor draw as somebody else.
func (h *Handler) HandleWsMessage(client *Client, messageType int, messageBytes []byte) {
	var msg message
	if err := json.Unmarshal(messageBytes, &msg); err != nil {
		log.Printf("Invalid JSON: %v", err)
		return
	}

	var evt wireEvent
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			log.Printf("Invalid %s data: %v", msg.Type, err)
			return
		}
	}

	payload, ok := h.checkPayload(client, msg.Type, evt.Payload)
	if !ok {
		return
	}

	env := bus.Envelope{
		Type:     msg.Type,
		Payload:  payload,
		SenderId: client.identity.UserId,
		SenderMeta: map[string]string{
			bus.MetaDisplayName: client.identity.DisplayName,
			bus.MetaColor:       client.identity.Color,
		},
	}

	if msg.Type == bus.EventCursorMove {
		// Cursor traffic may be shed under load; the next move replaces it.
		select {
		case h.Hub.InboundCh <- clientEvent{client: client, env: env}:
		default:
		}
		return
	}
	h.Hub.InboundCh <- clientEvent{client: client, env: env}
}

func (h *Handler) checkPayload(client *Client, eventType string, payload json.RawMessage) (json.RawMessage, bool) {
	switch eventType {
	case bus.EventDrawingPath:
		var p canvas.Path
		if err := json.Unmarshal(payload, &p); err != nil {
			log.Printf("Invalid %s data: %v", eventType, err)
			return nil, false
		}
		if err := canvas.ValidatePath(p); err != nil {
			log.Printf("Rejecting %s from user %s: %v", eventType, client.identity.UserId, err)
			return nil, false
		}
		p.UserId = client.identity.UserId
		return mustMarshal(p), true

	case bus.EventDrawingShape:
		var s canvas.Shape
		if err := json.Unmarshal(payload, &s); err != nil {
			log.Printf("Invalid %s data: %v", eventType, err)
			return nil, false
		}
		if err := canvas.ValidateShape(s); err != nil {
			log.Printf("Rejecting %s from user %s: %v", eventType, client.identity.UserId, err)
			return nil, false
		}
		s.UserId = client.identity.UserId
		return mustMarshal(s), true

	case bus.EventTextUpdate:
		var t canvas.Text
		if err := json.Unmarshal(payload, &t); err != nil {
			log.Printf("Invalid %s data: %v", eventType, err)
			return nil, false
		}
		if err := canvas.ValidateText(t); err != nil {
			log.Printf("Rejecting %s from user %s: %v", eventType, client.identity.UserId, err)
			return nil, false
		}
		t.UserId = client.identity.UserId
		return mustMarshal(t), true

	case bus.EventCursorMove:
		var at geom.Point
		if err := json.Unmarshal(payload, &at); err != nil {
			log.Printf("Invalid %s data: %v", eventType, err)
			return nil, false
		}
		return mustMarshal(at), true

	case bus.EventClearCanvas:
		return json.RawMessage(`{}`), true

	default:
		log.Printf("Unknown message type: %v", eventType)
		return nil, false
	}
}

func mustMarshal(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		// Round-tripping a struct we just unmarshaled cannot fail.
		panic(err)
	}
	return data
}
