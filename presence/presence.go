// Package presence tracks who is in the room and where their cursors are.
// Cursor state is ephemeral: last write wins, and everything about a
// participant vanishes when they leave.
package presence

import "sort"

// Participant identifies one connected collaborator.
type Participant struct {
	Id          string `json:"id"`
	DisplayName string `json:"displayName"`
	Color       string `json:"color"`
}

// Cursor is the latest known pointer position of a remote participant, in
// document space, together with the display identity rendered next to it.
type Cursor struct {
	UserId      string  `json:"userId"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
	DisplayName string  `json:"displayName"`
	Color       string  `json:"color"`
}

// Tracker holds the roster and cursors of remote participants. It is owned
// by a single session goroutine and is not safe for concurrent use.
type Tracker struct {
	roster  map[string]Participant
	cursors map[string]Cursor
}

func NewTracker() *Tracker {
	return &Tracker{
		roster:  make(map[string]Participant),
		cursors: make(map[string]Cursor),
	}
}

// UpdateCursor replaces the tracked cursor for the sending participant.
// Positions are not interpolated or merged; the newest update wins.
func (t *Tracker) UpdateCursor(c Cursor) {
	t.cursors[c.UserId] = c
}

// Remove drops a participant and their cursor.
func (t *Tracker) Remove(userId string) {
	delete(t.roster, userId)
	delete(t.cursors, userId)
}

// SyncRoster replaces the known online set. Cursors of participants no
// longer in the roster are evicted, so no stale cursor outlives its owner.
func (t *Tracker) SyncRoster(parts []Participant) {
	t.roster = make(map[string]Participant, len(parts))
	for _, p := range parts {
		t.roster[p.Id] = p
	}
	for id := range t.cursors {
		if _, ok := t.roster[id]; !ok {
			delete(t.cursors, id)
		}
	}
}

// Cursors returns the tracked cursors ordered by user id.
func (t *Tracker) Cursors() []Cursor {
	out := make([]Cursor, 0, len(t.cursors))
	for _, c := range t.cursors {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserId < out[j].UserId })
	return out
}

// Participants returns the roster ordered by id.
func (t *Tracker) Participants() []Participant {
	out := make([]Participant, 0, len(t.roster))
	for _, p := range t.roster {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Id < out[j].Id })
	return out
}
