// Package discovery announces a room instance on the local network and
// finds others, so LAN clients can join without knowing the host address.
package discovery

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/hashicorp/mdns"
)

const serviceType = "_inkroom._tcp"

// Advertise announces this instance over mDNS. The caller owns the returned
// server and must shut it down.
func Advertise(port int, roomName string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("could not get hostname: %w", err)
	}

	service, err := mdns.NewMDNSService(
		host,
		serviceType,
		"", // Domain (empty means ".local")
		"", // Hostname (empty means the OS hostname)
		port,
		nil, // IPs are auto-detected
		[]string{"room=" + roomName},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS service: %w", err)
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to start mDNS server: %w", err)
	}

	log.Printf("Advertising %s room %q on port %d", serviceType, roomName, port)
	return server, nil
}

// Instance is a room host found on the local network.
type Instance struct {
	Addr string
	Room string
}

// Browse looks up room instances on the local network, invoking found for
// each one. It blocks until the lookup window closes.
func Browse(found func(Instance)) error {
	entries := make(chan *mdns.ServiceEntry, 8)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			inst := Instance{Addr: fmt.Sprintf("%s:%d", e.AddrV4.String(), e.Port)}
			for _, field := range e.InfoFields {
				if room, ok := strings.CutPrefix(field, "room="); ok {
					inst.Room = room
				}
			}
			found(inst)
		}
	}()

	err := mdns.Lookup(serviceType, entries)
	close(entries)
	<-done
	return err
}
