package api

import (
	"context"
	"log"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/inkroom/inkroom/api/rest"
	"github.com/inkroom/inkroom/api/ws"
	"github.com/inkroom/inkroom/bus"
	"github.com/inkroom/inkroom/engine"
	"github.com/inkroom/inkroom/session"
	"github.com/inkroom/inkroom/worker"
)

type InkroomAPI struct {
	restHandler *rest.Handler
	wsHandler   *ws.Handler
	shutdownCtx context.Context
}

func NewInkroomAPI(
	roomBus bus.RoomBus,
	roomTopic string,
	oauthConfigs map[string]*oauth2.Config,
	jwtSecret []byte,
	shutdownCtx context.Context,
) (*InkroomAPI, error) {
	authenticator, err := session.NewAuthenticator(jwtSecret, oauthConfigs)
	if err != nil {
		log.Printf("Failed to create authenticator: %v", err)
		return &InkroomAPI{}, err
	}

	// The gateway's replica of the room. It authors nothing, so it carries
	// no identity and publishes nothing; the hub feeds it every event.
	replica := engine.New(engine.Config{})
	go replica.Run(shutdownCtx)

	eventCounter := worker.NewEventCounter(60000)
	go eventCounter.Run(shutdownCtx)

	wsHub := ws.NewHub(replica, roomBus, roomTopic, eventCounter)
	if err := wsHub.InitSubscriptions(shutdownCtx); err != nil {
		log.Printf("Failed to start WS Hub subscriptions: %v", err)
		return &InkroomAPI{}, err
	}
	go wsHub.Run(shutdownCtx)

	restHandler := rest.NewHandler(authenticator, replica)
	wsHandler := ws.NewHandler(authenticator, wsHub)

	return &InkroomAPI{
		restHandler: restHandler,
		wsHandler:   wsHandler,
		shutdownCtx: shutdownCtx,
	}, nil
}

func (inkroomAPI *InkroomAPI) RegisterRoutes(mux *http.ServeMux, requiredOrigin string) {
	// Health check endpoint (no auth required)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	mux.HandleFunc("/login", inkroomAPI.restHandler.HandleLogin)
	mux.HandleFunc("/room/snapshot", inkroomAPI.restHandler.HandleRoomSnapshot)

	wsUpgrader := inkroomAPI.wsHandler.NewWsUpgrader(requiredOrigin)
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		inkroomAPI.wsHandler.ServeWS(wsUpgrader, w, r, inkroomAPI.shutdownCtx)
	})
}
