package models

import (
	"time"

	"gorm.io/datatypes"
)

// Room is a scheduling session addressed by its 12-character invite code.
// The code is what participants type in; the ID is the store's own key.
type Room struct {
	ID           string    `gorm:"primarykey;size:36" json:"id"`
	Code         string    `gorm:"size:12;uniqueIndex;not null" json:"code"`
	Title        string    `gorm:"size:20;not null" json:"title"`
	Memo         string    `gorm:"size:100" json:"memo,omitempty"`
	HostNickname string    `gorm:"size:10;not null" json:"hostNickname"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Participant is a nickname that joined a room. At most one record per
// (roomCode, nickname) pair, enforced by check-then-insert rather than a
// unique constraint.
type Participant struct {
	ID       string    `gorm:"primarykey;size:36" json:"id"`
	RoomCode string    `gorm:"size:12;index;not null" json:"roomCode"`
	Nickname string    `gorm:"size:10;not null" json:"nickname"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Vote is a set of candidate dates proposed within a room, open for 24 hours.
// Dates are RFC 3339 strings; the store does not deduplicate them.
type Vote struct {
	ID        string                      `gorm:"primarykey;size:36" json:"id"`
	RoomCode  string                      `gorm:"size:12;index;not null" json:"roomCode"`
	Title     string                      `gorm:"size:30;not null" json:"title"`
	Dates     datatypes.JSONSlice[string] `json:"dates"`
	CreatedAt time.Time                   `json:"createdAt"`
	ExpireAt  time.Time                   `json:"expireAt"`
	IsActive  bool                        `gorm:"not null;default:true" json:"isActive"`
	Responses []VoteResponse              `gorm:"foreignKey:VoteID" json:"-"`
}

// VoteResponse is one participant's selected subset of a vote's dates.
// One record per (voteId, nickname); resubmission overwrites in place and
// CreatedAt carries the last-write time.
type VoteResponse struct {
	ID            string                      `gorm:"primarykey;size:36" json:"id"`
	VoteID        string                      `gorm:"size:36;index;not null" json:"voteId"`
	Nickname      string                      `gorm:"size:10;not null" json:"nickname"`
	SelectedDates datatypes.JSONSlice[string] `json:"selectedDates"`
	CreatedAt     time.Time                   `json:"createdAt"`
}
