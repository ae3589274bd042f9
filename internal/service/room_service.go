// Package service orchestrates the stores behind the two screens the UI
// has: the lobby (create/join) and the room detail view.
package service

import (
	"context"
	"errors"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/minjikim/nalmoa/internal/invite"
	"github.com/minjikim/nalmoa/internal/models"
	"github.com/minjikim/nalmoa/internal/share"
	"github.com/minjikim/nalmoa/internal/store"
	"github.com/minjikim/nalmoa/internal/tally"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrVoteNotFound = errors.New("vote not found")
)

// RoomDetail is the aggregate the detail screen renders.
type RoomDetail struct {
	Room         *models.Room         `json:"room"`
	Participants []models.Participant `json:"participants"`
	Votes        []models.Vote        `json:"votes"`
}

// VoteDetail is one vote with its responses and tally.
type VoteDetail struct {
	Vote      *models.Vote          `json:"vote"`
	Responses []models.VoteResponse `json:"responses"`
	Tally     tally.Result          `json:"tally"`
}

// RoomService composes the stores. It is the sole caller of the expiry
// sweep and the single place store failures become user-facing errors.
type RoomService struct {
	rooms        store.RoomStore
	participants store.ParticipantStore
	votes        store.VoteStore
	codes        *invite.Generator
	sharer       share.Sharer
}

func NewRoomService(rooms store.RoomStore, participants store.ParticipantStore, votes store.VoteStore, sharer share.Sharer) *RoomService {
	if sharer == nil {
		sharer = share.LogSharer{}
	}
	return &RoomService{
		rooms:        rooms,
		participants: participants,
		votes:        votes,
		codes:        invite.NewGenerator(rooms.CodeExists),
		sharer:       sharer,
	}
}

// CreateRoom generates a unique invite code, persists the room, then joins
// the host as its first participant. The two writes are deliberately not
// transactional: a failure in between leaves a room with no participants,
// which the host recovers from by joining.
func (s *RoomService) CreateRoom(ctx context.Context, title, hostNickname, memo string) (*models.Room, error) {
	code, err := s.codes.Generate(ctx)
	if err != nil {
		return nil, err
	}

	room := &models.Room{
		Code:         code,
		Title:        title,
		Memo:         memo,
		HostNickname: hostNickname,
	}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	if _, err := s.participants.Add(ctx, code, hostNickname); err != nil {
		return nil, err
	}
	return room, nil
}

// JoinRoom is the lobby path: look the room up by code and register the
// nickname as a participant.
func (s *RoomService) JoinRoom(ctx context.Context, code, nickname string) (*models.Room, error) {
	room, err := s.rooms.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	if _, err := s.participants.Add(ctx, room.Code, nickname); err != nil {
		return nil, err
	}
	return room, nil
}

// Detail loads everything the detail screen needs. Expired votes are swept
// first, so staleness is bounded by how often the caller refreshes. The
// three reads are independent and run concurrently. A missing room fails
// the aggregate; a failed participant or vote list degrades to empty.
func (s *RoomService) Detail(ctx context.Context, code string) (*RoomDetail, error) {
	code = strings.ToUpper(code)

	if err := s.votes.SweepExpired(ctx, code); err != nil {
		log.Printf("Error sweeping expired votes for room %s: %v", code, err)
	}

	detail := &RoomDetail{
		Participants: []models.Participant{},
		Votes:        []models.Vote{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		room, err := s.rooms.ByCode(gctx, code)
		if err != nil {
			return err
		}
		if room == nil {
			return ErrRoomNotFound
		}
		detail.Room = room
		return nil
	})
	g.Go(func() error {
		participants, err := s.participants.List(gctx, code)
		if err != nil {
			log.Printf("Error listing participants for room %s: %v", code, err)
			return nil
		}
		detail.Participants = participants
		return nil
	})
	g.Go(func() error {
		votes, err := s.votes.ListByRoom(gctx, code)
		if err != nil {
			log.Printf("Error listing votes for room %s: %v", code, err)
			return nil
		}
		detail.Votes = votes
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return detail, nil
}

// DeleteRoom cascades to every vote, response and participant in the room.
func (s *RoomService) DeleteRoom(ctx context.Context, code string) error {
	room, err := s.rooms.ByCode(ctx, code)
	if err != nil {
		return err
	}
	if room == nil {
		return ErrRoomNotFound
	}
	return s.rooms.Delete(ctx, room.Code)
}

// CreateVote proposes a set of candidate dates in a room. The vote stays
// open for 24 hours.
func (s *RoomService) CreateVote(ctx context.Context, code, title string, dates []string) (*models.Vote, error) {
	room, err := s.rooms.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	return s.votes.Create(ctx, room.Code, title, dates)
}

// DeleteVote removes a vote and its responses. It returns the code of the
// room the vote belonged to so callers can reload the room aggregate.
func (s *RoomService) DeleteVote(ctx context.Context, voteID string) (string, error) {
	vote, err := s.votes.ByID(ctx, voteID)
	if err != nil {
		return "", err
	}
	if vote == nil {
		return "", ErrVoteNotFound
	}
	return vote.RoomCode, s.votes.Delete(ctx, voteID)
}

// SubmitResponse records (or overwrites) a participant's date selection.
// The room code comes back alongside the response so callers can reload
// the room aggregate.
func (s *RoomService) SubmitResponse(ctx context.Context, voteID, nickname string, selectedDates []string) (*models.VoteResponse, string, error) {
	vote, err := s.votes.ByID(ctx, voteID)
	if err != nil {
		return nil, "", err
	}
	if vote == nil {
		return nil, "", ErrVoteNotFound
	}
	response, err := s.votes.SubmitResponse(ctx, voteID, nickname, selectedDates)
	if err != nil {
		return nil, "", err
	}
	return response, vote.RoomCode, nil
}

// VoteDetail returns a vote with its responses and the computed tally.
func (s *RoomService) VoteDetail(ctx context.Context, voteID string) (*VoteDetail, error) {
	vote, err := s.votes.ByID(ctx, voteID)
	if err != nil {
		return nil, err
	}
	if vote == nil {
		return nil, ErrVoteNotFound
	}
	responses, err := s.votes.ListResponses(ctx, voteID)
	if err != nil {
		return nil, err
	}
	return &VoteDetail{
		Vote:      vote,
		Responses: responses,
		Tally:     tally.Count(vote.Dates, responses),
	}, nil
}

// SharePayload builds the payload the sharing integration takes for a room
// invite and hands it to the configured Sharer.
func (s *RoomService) SharePayload(ctx context.Context, code string) (*share.Payload, error) {
	room, err := s.rooms.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	p := share.Payload{RoomName: room.Title, Code: room.Code, Memo: room.Memo}
	if err := s.sharer.ShareRoom(p); err != nil {
		// Sharing is best effort; the invite payload is still usable.
		log.Printf("Error sharing room %s: %v", room.Code, err)
	}
	return &p, nil
}

// VoteSharePayload builds the payload the sharing integration takes for a
// specific vote and hands it to the configured Sharer.
func (s *RoomService) VoteSharePayload(ctx context.Context, voteID string) (*share.Payload, error) {
	vote, err := s.votes.ByID(ctx, voteID)
	if err != nil {
		return nil, err
	}
	if vote == nil {
		return nil, ErrVoteNotFound
	}
	room, err := s.rooms.ByCode(ctx, vote.RoomCode)
	if err != nil {
		return nil, err
	}
	if room == nil {
		return nil, ErrRoomNotFound
	}
	p := share.Payload{RoomName: room.Title, Code: room.Code, VoteTitle: vote.Title}
	if err := s.sharer.ShareVote(p); err != nil {
		log.Printf("Error sharing vote %s: %v", voteID, err)
	}
	return &p, nil
}
