// Package session establishes who a participant is. The engine treats
// identity as opaque metadata; everything here exists so the gateway can
// stamp events and cursors with a stable user id, a display name and a
// recognizable color.
package session

import (
	"hash/fnv"
	"strings"

	"github.com/gofrs/uuid/v5"
)

// Identity is the authenticated participant attached to a session.
type Identity struct {
	UserId      string `json:"userId"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

// cursorPalette is the fixed set of presence colors. Colors are assigned by
// hashing the user id, so the same user gets the same color on every client
// without any coordination.
var cursorPalette = []string{
	"#ef4444",
	"#f97316",
	"#eab308",
	"#22c55e",
	"#14b8a6",
	"#3b82f6",
	"#8b5cf6",
	"#d946ef",
	"#ec4899",
	"#64748b",
}

// ColorFor returns the palette color for a user id.
func ColorFor(userId string) string {
	h := fnv.New32a()
	h.Write([]byte(userId))
	return cursorPalette[h.Sum32()%uint32(len(cursorPalette))]
}

// NewGuest mints a throwaway identity for a participant who joins without
// an account. The display name is caller-chosen; blank names fall back to
// the id fragment so cursors are still tellable apart.
func NewGuest(displayName string) Identity {
	fragment := uuid.Must(uuid.NewV4()).String()[:8]
	id := "guest_" + fragment
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "guest-" + fragment
	}
	return Identity{
		UserId:      id,
		DisplayName: name,
		Color:       ColorFor(id),
	}
}
