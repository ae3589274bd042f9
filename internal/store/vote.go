package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/minjikim/nalmoa/internal/models"
)

// VoteOpenFor is how long a vote accepts responses after creation.
const VoteOpenFor = 24 * time.Hour

// VoteStore persists votes and their responses.
type VoteStore interface {
	Create(ctx context.Context, roomCode, title string, dates []string) (*models.Vote, error)
	ByID(ctx context.Context, voteID string) (*models.Vote, error)
	ListByRoom(ctx context.Context, roomCode string) ([]models.Vote, error)
	Close(ctx context.Context, voteID string) error
	SweepExpired(ctx context.Context, roomCode string) error
	Delete(ctx context.Context, voteID string) error
	SubmitResponse(ctx context.Context, voteID, nickname string, selectedDates []string) (*models.VoteResponse, error)
	ListResponses(ctx context.Context, voteID string) ([]models.VoteResponse, error)
	Voters(ctx context.Context, voteID string) ([]string, error)
}

type GormVoteStore struct {
	db *gorm.DB
}

func NewVoteStore(db *gorm.DB) *GormVoteStore {
	return &GormVoteStore{db: db}
}

func (s *GormVoteStore) Create(ctx context.Context, roomCode, title string, dates []string) (*models.Vote, error) {
	now := time.Now()
	vote := &models.Vote{
		ID:        uuid.NewString(),
		RoomCode:  roomCode,
		Title:     title,
		Dates:     datatypes.NewJSONSlice(dates),
		CreatedAt: now,
		ExpireAt:  now.Add(VoteOpenFor),
		IsActive:  true,
	}
	if err := s.db.WithContext(ctx).Create(vote).Error; err != nil {
		return nil, err
	}
	return vote, nil
}

func (s *GormVoteStore) ByID(ctx context.Context, voteID string) (*models.Vote, error) {
	var vote models.Vote
	err := s.db.WithContext(ctx).Where("id = ?", voteID).First(&vote).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &vote, nil
}

func (s *GormVoteStore) ListByRoom(ctx context.Context, roomCode string) ([]models.Vote, error) {
	var votes []models.Vote
	err := s.db.WithContext(ctx).Where("room_code = ?", roomCode).Find(&votes).Error
	return votes, err
}

// Close deactivates a vote. Closing an already-closed vote is a no-op;
// a vote never reopens.
func (s *GormVoteStore) Close(ctx context.Context, voteID string) error {
	return s.db.WithContext(ctx).Model(&models.Vote{}).
		Where("id = ?", voteID).
		Update("is_active", false).Error
}

// SweepExpired closes every active vote in the room whose deadline has
// passed. Closures run concurrently and independently; one failing does not
// stop the others, and the first error is reported after all finish.
func (s *GormVoteStore) SweepExpired(ctx context.Context, roomCode string) error {
	votes, err := s.ListByRoom(ctx, roomCode)
	if err != nil {
		return err
	}

	now := time.Now()
	g := new(errgroup.Group)
	for _, vote := range votes {
		if !vote.IsActive || vote.ExpireAt.After(now) {
			continue
		}
		g.Go(func() error {
			return s.Close(ctx, vote.ID)
		})
	}
	return g.Wait()
}

// Delete removes a vote and all of its responses in one transaction.
func (s *GormVoteStore) Delete(ctx context.Context, voteID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("vote_id = ?", voteID).Delete(&models.VoteResponse{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", voteID).Delete(&models.Vote{}).Error
	})
}

// SubmitResponse records a participant's date selection. Resubmission by the
// same nickname overwrites the existing record in place, so a voter never
// holds two responses. The read and the write can race under concurrent
// submissions from the same nickname; last write wins.
func (s *GormVoteStore) SubmitResponse(ctx context.Context, voteID, nickname string, selectedDates []string) (*models.VoteResponse, error) {
	var existing models.VoteResponse
	err := s.db.WithContext(ctx).
		Where("vote_id = ? AND nickname = ?", voteID, nickname).
		First(&existing).Error

	switch {
	case err == nil:
		existing.SelectedDates = datatypes.NewJSONSlice(selectedDates)
		existing.CreatedAt = time.Now()
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, err
		}
		return &existing, nil
	case err == gorm.ErrRecordNotFound:
		response := &models.VoteResponse{
			ID:            uuid.NewString(),
			VoteID:        voteID,
			Nickname:      nickname,
			SelectedDates: datatypes.NewJSONSlice(selectedDates),
			CreatedAt:     time.Now(),
		}
		if err := s.db.WithContext(ctx).Create(response).Error; err != nil {
			return nil, err
		}
		return response, nil
	default:
		return nil, err
	}
}

func (s *GormVoteStore) ListResponses(ctx context.Context, voteID string) ([]models.VoteResponse, error) {
	var responses []models.VoteResponse
	err := s.db.WithContext(ctx).Where("vote_id = ?", voteID).Find(&responses).Error
	return responses, err
}

// Voters returns the nicknames that have responded to a vote.
func (s *GormVoteStore) Voters(ctx context.Context, voteID string) ([]string, error) {
	var nicknames []string
	err := s.db.WithContext(ctx).Model(&models.VoteResponse{}).
		Where("vote_id = ?", voteID).
		Pluck("nickname", &nicknames).Error
	return nicknames, err
}
