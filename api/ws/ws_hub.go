package ws

import (
	"context"
	"encoding/json"
	"log"
	"sort"
	"time"

	"github.com/inkroom/inkroom/bus"
	"github.com/inkroom/inkroom/canvas"
	"github.com/inkroom/inkroom/engine"
	"github.com/inkroom/inkroom/presence"
	"github.com/inkroom/inkroom/session"
	"github.com/inkroom/inkroom/worker"
)

type clientEvent struct {
	client *Client
	env    bus.Envelope
}

// Wire format between the gateway and its clients. Inbound senderId and
// senderMeta are ignored; the gateway stamps them from the authenticated
// session before anything is relayed.
type wireEvent struct {
	Payload    json.RawMessage   `json:"payload,omitempty"`
	SenderId   string            `json:"senderId,omitempty"`
	SenderMeta map[string]string `json:"senderMeta,omitempty"`
}

type wireMessage struct {
	Type string `json:"type"`
	Data any    `json:"data"`
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

// Hub maintains the set of active clients and relays room events between
// them, the shared room replica and the bus. All state is owned by the Run
// goroutine.
type Hub struct {
	replica   *engine.Session
	roomBus   bus.RoomBus
	roomTopic string
	counter   *worker.EventCounter

	OpenCh    chan *Client
	CloseCh   chan *Client
	InboundCh chan clientEvent
	BusCh     chan bus.Envelope

	pubCh         chan bus.Envelope
	clients       map[*Client]struct{}
	userToClients map[string]map[*Client]struct{}
	roster        map[string]presence.Participant
	rosterDirty   bool
}

func NewHub(replica *engine.Session, roomBus bus.RoomBus, roomTopic string, counter *worker.EventCounter) *Hub {
	return &Hub{
		replica:       replica,
		roomBus:       roomBus,
		roomTopic:     roomTopic,
		counter:       counter,
		OpenCh:        make(chan *Client, 256),
		CloseCh:       make(chan *Client, 256),
		InboundCh:     make(chan clientEvent, 1024),
		BusCh:         make(chan bus.Envelope, 1024),
		pubCh:         make(chan bus.Envelope, 1024),
		clients:       make(map[*Client]struct{}),
		userToClients: make(map[string]map[*Client]struct{}),
		roster:        make(map[string]presence.Participant),
	}
}

const maxConnectionsPerUser = 3

func (h *Hub) Run(shutdownCtx context.Context) {
	go h.publishPump(shutdownCtx)

	for {
		select {
		case client := <-h.OpenCh:
			h.handleOpen(client)

		case client := <-h.CloseCh:
			h.removeClient(client)

		case evt := <-h.InboundCh:
			h.handleInbound(shutdownCtx, evt)

		case env := <-h.BusCh:
			h.handleBusDelivery(env)

		case <-shutdownCtx.Done():
			return
		}

		// Roster changes (joins, leaves, slow clients dropped mid-broadcast)
		// fan out once the triggering message is fully handled.
		for h.rosterDirty {
			h.rosterDirty = false
			h.broadcastPresence()
		}
	}
}

func (h *Hub) handleOpen(client *Client) {
	userId := client.identity.UserId
	if _, ok := h.userToClients[userId]; !ok {
		h.userToClients[userId] = make(map[*Client]struct{})
	}

	if len(h.userToClients[userId]) >= maxConnectionsPerUser {
		log.Printf("User %s reached max connections (%d)", userId, maxConnectionsPerUser)
		close(client.Send)
		return
	}

	h.userToClients[userId][client] = struct{}{}
	h.clients[client] = struct{}{}

	if _, known := h.roster[userId]; !known {
		h.roster[userId] = presence.Participant{
			Id:          userId,
			DisplayName: client.identity.DisplayName,
			Color:       client.identity.Color,
		}
		h.replica.SyncPresence(h.rosterList())
		h.rosterDirty = true
	}

	// The snapshot reflects every event already queued on the replica, and
	// later events reach this client through its Send channel, so the
	// handshake has no gap and no overlap.
	frame := h.replica.Snapshot()
	h.sendTo(client, wireMessage{Type: "snapshot", Data: snapshotData{
		Document:     frame.Document,
		Participants: frame.Participants,
		Cursors:      frame.Cursors,
		Self:         client.identity,
	}})
}

// removeClient pulls the client out of every map and closes its Send
// channel, which stops the write pump. Safe to call twice.
func (h *Hub) removeClient(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.Send)

	userId := client.identity.UserId
	delete(h.userToClients[userId], client)
	if len(h.userToClients[userId]) == 0 {
		delete(h.userToClients, userId)
		delete(h.roster, userId)
		h.replica.SyncPresence(h.rosterList())
		h.rosterDirty = true
	}
}

func (h *Hub) handleInbound(ctx context.Context, evt clientEvent) {
	h.counter.Record(evt.env.SenderId, evt.env.Type)

	// The replica validates and applies on its own goroutine.
	h.replica.HandleRemote(evt.env)

	// Fan out to the other local clients, then to the other instances. The
	// sender never gets its own event back.
	h.broadcastEvent(evt.env, evt.client)

	if evt.env.Type == bus.EventCursorMove {
		// Cursor positions are superseded by the next one; dropping under
		// backpressure beats stalling the relay.
		select {
		case h.pubCh <- evt.env:
		default:
		}
		return
	}
	select {
	case h.pubCh <- evt.env:
	case <-ctx.Done():
	}
}

func (h *Hub) handleBusDelivery(env bus.Envelope) {
	if !bus.KnownEventType(env.Type) {
		log.Printf("Unknown room event type from bus: %s", env.Type)
		return
	}
	h.counter.Record(env.SenderId, env.Type)
	h.replica.HandleRemote(env)
	h.broadcastEvent(env, nil)
}

func (h *Hub) publishPump(shutdownCtx context.Context) {
	for {
		select {
		case env := <-h.pubCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := h.roomBus.Publish(ctx, h.roomTopic, env); err != nil {
				log.Printf("Failed to publish %s event to room bus: %v", env.Type, err)
			}
			cancel()

		case <-shutdownCtx.Done():
			return
		}
	}
}

func (h *Hub) broadcastEvent(env bus.Envelope, except *Client) {
	h.broadcast(wireMessage{Type: env.Type, Data: wireEvent{
		Payload:    env.Payload,
		SenderId:   env.SenderId,
		SenderMeta: env.SenderMeta,
	}}, except)
}

func (h *Hub) broadcastPresence() {
	list := h.rosterList()
	sort.Slice(list, func(i, j int) bool { return list[i].Id < list[j].Id })
	h.broadcast(wireMessage{Type: "presence", Data: presenceData{Participants: list}}, nil)
}

func (h *Hub) broadcast(msg wireMessage, except *Client) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", msg.Type, err)
		return
	}

	var stalled []*Client
	for client := range h.clients {
		if client == except {
			continue
		}
		select {
		case client.Send <- msgBytes:
		default:
			stalled = append(stalled, client)
		}
	}

	// A full send buffer means the reader is gone or hopelessly behind. Cut
	// it loose; a reconnect resyncs from a fresh snapshot.
	for _, client := range stalled {
		log.Printf("Disconnecting slow client for user %s", client.identity.UserId)
		h.removeClient(client)
	}
}

func (h *Hub) sendTo(client *Client, msg wireMessage) {
	msgBytes, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal %s message: %v", msg.Type, err)
		return
	}
	select {
	case client.Send <- msgBytes:
	default:
		log.Printf("Disconnecting slow client for user %s", client.identity.UserId)
		h.removeClient(client)
	}
}

func (h *Hub) rosterList() []presence.Participant {
	list := make([]presence.Participant, 0, len(h.roster))
	for _, p := range h.roster {
		list = append(list, p)
	}
	return list
}

func (h *Hub) InitSubscriptions(shutdownCtx context.Context) error {
	err := h.roomBus.Subscribe(shutdownCtx, h.roomTopic, func(env bus.Envelope) {
		h.BusCh <- env
	})
	if err != nil {
		log.Printf("WS hub failed to subscribe to room %s: %v", h.roomTopic, err)
		return err
	}
	return nil
}
