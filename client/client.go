// Package client is a headless room participant. It speaks the gateway's
// websocket protocol and drives a local engine.Session, so Go programs can
// draw alongside browsers: bots, load generators, bridges.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/inkroom/inkroom/bus"
	"github.com/inkroom/inkroom/canvas"
	"github.com/inkroom/inkroom/discovery"
	"github.com/inkroom/inkroom/engine"
	"github.com/inkroom/inkroom/geom"
	"github.com/inkroom/inkroom/presence"
	"github.com/inkroom/inkroom/session"
)

const (
	writeWait        = 10 * time.Second
	handshakeTimeout = 10 * time.Second
)

// Config configures a room connection. URL points at the gateway's /ws
// endpoint; Token comes from a /login call.
type Config struct {
	URL            string
	Token          string
	OnFrame        func(engine.Frame)
	OnPublishError func(bus.Envelope, error)
}

// Client owns one websocket connection and the session behind it. All
// drawing happens through Session.
type Client struct {
	conn *websocket.Conn
	sess *engine.Session
	self session.Identity

	writeMu   sync.Mutex
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

type serverMessage struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type eventData struct {
	Payload    json.RawMessage   `json:"payload,omitempty"`
	SenderId   string            `json:"senderId,omitempty"`
	SenderMeta map[string]string `json:"senderMeta,omitempty"`
}

type snapshotData struct {
	Document     canvas.Document        `json:"document"`
	Participants []presence.Participant `json:"participants"`
	Cursors      []presence.Cursor      `json:"cursors"`
	Self         session.Identity       `json:"self"`
}

type presenceData struct {
	Participants []presence.Participant `json:"participants"`
}

// Dial connects, waits for the snapshot handshake and returns a client whose
// session is seeded with the room's current state.
func Dial(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("url is required")
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		// The token rides the second subprotocol slot, mirroring what
		// browsers do.
		Subprotocols: []string{"inkroom-v1", cfg.Token},
	}
	conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", cfg.URL, err)
	}

	// The first message is always the snapshot.
	conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, msgBytes, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("snapshot handshake: %w", err)
	}
	conn.SetReadDeadline(time.Time{})

	var msg serverMessage
	if err := json.Unmarshal(msgBytes, &msg); err != nil {
		conn.Close()
		return nil, fmt.Errorf("snapshot handshake: %w", err)
	}
	if msg.Type != "snapshot" {
		conn.Close()
		return nil, fmt.Errorf("snapshot handshake: unexpected %q message", msg.Type)
	}
	var snap snapshotData
	if err := json.Unmarshal(msg.Data, &snap); err != nil {
		conn.Close()
		return nil, fmt.Errorf("snapshot handshake: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:   conn,
		self:   snap.Self,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	c.sess = engine.New(engine.Config{
		Self:           snap.Self,
		Initial:        &snap.Document,
		Publish:        c.publish,
		OnFrame:        cfg.OnFrame,
		OnPublishError: cfg.OnPublishError,
	})
	go c.sess.Run(runCtx)

	c.sess.SyncPresence(snap.Participants)
	c.seedCursors(snap.Cursors)

	go c.readLoop()
	return c, nil
}

// seedCursors replays the snapshot's cursor positions through the normal
// remote path so the first frame already shows where everyone is.
func (c *Client) seedCursors(cursors []presence.Cursor) {
	for _, cur := range cursors {
		payload, err := json.Marshal(geom.Pt(cur.X, cur.Y))
		if err != nil {
			continue
		}
		c.sess.HandleRemote(bus.Envelope{
			Type:     bus.EventCursorMove,
			Payload:  payload,
			SenderId: cur.UserId,
			SenderMeta: map[string]string{
				bus.MetaDisplayName: cur.DisplayName,
				bus.MetaColor:       cur.Color,
			},
		})
	}
}

// Session exposes the engine behind this connection for drawing and
// snapshots.
func (c *Client) Session() *engine.Session {
	return c.sess
}

// Self returns the identity the gateway assigned this connection.
func (c *Client) Self() session.Identity {
	return c.self
}

// Done closes when the connection is gone and the session has stopped
// receiving.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close tears the connection down and waits for the read loop to exit.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.writeMu.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		c.conn.Close()
	})
	<-c.done
}

func (c *Client) publish(ctx context.Context, env bus.Envelope) error {
	// The gateway stamps sender identity itself; only the payload goes up.
	data, err := json.Marshal(struct {
		Type string    `json:"type"`
		Data eventData `json:"data"`
	}{Type: env.Type, Data: eventData{Payload: env.Payload}})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *Client) readLoop() {
	defer func() {
		c.cancel()
		c.conn.Close()
		close(c.done)
	}()

	for {
		_, msgBytes, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("WS read error: %v", err)
			}
			return
		}
		c.handleMessage(msgBytes)
	}
}

func (c *Client) handleMessage(msgBytes []byte) {
	var msg serverMessage
	if err := json.Unmarshal(msgBytes, &msg); err != nil {
		log.Printf("Invalid server message: %v", err)
		return
	}

	switch {
	case msg.Type == "presence":
		var data presenceData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			log.Printf("Invalid presence data: %v", err)
			return
		}
		c.sess.SyncPresence(data.Participants)

	case msg.Type == "snapshot":
		// Only expected during the handshake.
		log.Printf("Ignoring unexpected mid-session snapshot")

	case bus.KnownEventType(msg.Type):
		var data eventData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			log.Printf("Invalid %s data: %v", msg.Type, err)
			return
		}
		c.sess.HandleRemote(bus.Envelope{
			Type:       msg.Type,
			Payload:    data.Payload,
			SenderId:   data.SenderId,
			SenderMeta: data.SenderMeta,
		})

	default:
		log.Printf("Unknown server message type: %s", msg.Type)
	}
}

// Discover returns room instances advertised on the local network.
func Discover() ([]discovery.Instance, error) {
	var found []discovery.Instance
	err := discovery.Browse(func(inst discovery.Instance) {
		found = append(found, inst)
	})
	return found, err
}
