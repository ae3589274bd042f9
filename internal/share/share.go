// Package share defines the outbound social-sharing capability. The core
// builds payloads for it but never depends on a share succeeding.
package share

import "log"

// Payload is what a share target receives: the room name and invite code,
// plus either the room memo or the title of a specific vote.
type Payload struct {
	RoomName  string `json:"roomName"`
	Code      string `json:"code"`
	Memo      string `json:"memo,omitempty"`
	VoteTitle string `json:"voteTitle,omitempty"`
}

// Sharer pushes a payload to an external sharing integration.
type Sharer interface {
	ShareRoom(p Payload) error
	ShareVote(p Payload) error
}

// LogSharer is the default Sharer: it only logs. Real integrations (the
// Kakao share SDK lives client-side) replace it in deployments that have one.
type LogSharer struct{}

func (LogSharer) ShareRoom(p Payload) error {
	log.Printf("share room %q (code %s)", p.RoomName, p.Code)
	return nil
}

func (LogSharer) ShareVote(p Payload) error {
	log.Printf("share vote %q in room %q (code %s)", p.VoteTitle, p.RoomName, p.Code)
	return nil
}
