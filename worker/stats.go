package worker

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
)

type EventUpdate struct {
	UserId    string // Kept for logging/reference
	EventType string
	Delta     int
}

// EventCounter aggregates room event volume off the hot path and logs a
// periodic activity summary. Cursor streams make per-event logging useless,
// so everything is batched through a single goroutine.
type EventCounter struct {
	UpdateCh           chan EventUpdate
	tickerMilliseconds int
}

func NewEventCounter(tickerMilliseconds int) *EventCounter {
	return &EventCounter{
		UpdateCh:           make(chan EventUpdate, 1024),
		tickerMilliseconds: tickerMilliseconds,
	}
}

// Record is a non-blocking feed. Dropping a sample under pressure is fine;
// stalling the relay loop is not.
func (c *EventCounter) Record(userId string, eventType string) {
	select {
	case c.UpdateCh <- EventUpdate{UserId: userId, EventType: eventType, Delta: 1}:
	default:
	}
}

func (c *EventCounter) Run(shutdownCtx context.Context) {
	ticker := time.NewTicker(time.Duration(c.tickerMilliseconds) * time.Millisecond)
	defer ticker.Stop()

	// Key: eventType -> count, plus distinct users for the summary line
	typeCounts := make(map[string]int)
	userSeen := make(map[string]struct{})

	flush := func() {
		if len(typeCounts) == 0 {
			return
		}
		total := 0
		types := make([]string, 0, len(typeCounts))
		for eventType := range typeCounts {
			types = append(types, eventType)
		}
		sort.Strings(types)

		parts := make([]string, 0, len(types))
		for _, eventType := range types {
			parts = append(parts, fmt.Sprintf("%s=%d", eventType, typeCounts[eventType]))
			total += typeCounts[eventType]
		}
		log.Printf("Room activity: %d events from %d users (%s)", total, len(userSeen), strings.Join(parts, " "))

		// Reset window
		typeCounts = make(map[string]int)
		userSeen = make(map[string]struct{})
	}

	for {
		select {
		case update := <-c.UpdateCh:
			if update.EventType == "" {
				continue
			}
			typeCounts[update.EventType] += update.Delta
			if update.UserId != "" {
				userSeen[update.UserId] = struct{}{}
			}

		case <-ticker.C:
			flush()

		case <-shutdownCtx.Done():
			flush()
			return
		}
	}
}
