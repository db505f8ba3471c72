package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/inkroom/inkroom/api"
	"github.com/inkroom/inkroom/bus"
	"github.com/inkroom/inkroom/bus/inproc"
	"github.com/inkroom/inkroom/bus/redis"
	"github.com/inkroom/inkroom/config"
	"github.com/inkroom/inkroom/discovery"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx := context.Background()

	var roomBus bus.RoomBus
	if cfg.RedisEndpoint != "" {
		roomBus, err = redis.NewRedisRoomBus(ctx, cfg.DevMode, cfg.RedisEndpoint)
		if err != nil {
			log.Fatalf("Failed to create redis room bus: %v", err)
		}
	} else {
		// Single-instance mode: the whole room lives in this process.
		roomBus = inproc.NewRoom().Join()
	}

	shutdownCtx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	inkroomApi, err := api.NewInkroomAPI(roomBus, cfg.RoomName, cfg.OauthConfigs, cfg.JWTSecret, shutdownCtx)
	if err != nil {
		log.Fatalf("Failed to create inkroom api: %v", err)
	}

	mux := http.NewServeMux()
	inkroomApi.RegisterRoutes(mux, cfg.AllowedOrigin)

	if cfg.MDNSAdvertise {
		port, err := strconv.Atoi(cfg.HostPort)
		if err != nil {
			log.Fatalf("Invalid HOST_PORT for mDNS: %v", err)
		}
		mdnsServer, err := discovery.Advertise(port, cfg.RoomName)
		if err != nil {
			log.Printf("Failed to advertise over mDNS: %v", err)
		} else {
			defer mdnsServer.Shutdown()
		}
	}

	server := &http.Server{Addr: ":" + cfg.HostPort, Handler: mux}
	go func() {
		<-shutdownCtx.Done()
		log.Printf("Server shutting down...")
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(timeoutCtx)
	}()

	log.Printf("Starting %q room on host port: %s", cfg.RoomName, cfg.HostPort)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server failed: %v", err)
	}
}
