package store

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minjikim/nalmoa/internal/models"
)

// RoomStore persists rooms and owns the cascading delete across everything
// scoped under a room.
type RoomStore interface {
	Create(ctx context.Context, room *models.Room) error
	ByCode(ctx context.Context, code string) (*models.Room, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Delete(ctx context.Context, code string) error
}

type GormRoomStore struct {
	db *gorm.DB
}

func NewRoomStore(db *gorm.DB) *GormRoomStore {
	return &GormRoomStore{db: db}
}

func (s *GormRoomStore) Create(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	if room.CreatedAt.IsZero() {
		room.CreatedAt = time.Now()
	}
	return s.db.WithContext(ctx).Create(room).Error
}

// ByCode looks a room up by its invite code, normalized to uppercase.
// A missing room is not an error; it returns (nil, nil).
func (s *GormRoomStore) ByCode(ctx context.Context, code string) (*models.Room, error) {
	var room models.Room
	err := s.db.WithContext(ctx).Where("code = ?", strings.ToUpper(code)).First(&room).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &room, nil
}

func (s *GormRoomStore) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Room{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

// Delete removes the room and everything scoped under it: each vote's
// responses, the votes, the participants, then the room record. All deletes
// run in one transaction so no partial cascade is ever observable.
func (s *GormRoomStore) Delete(ctx context.Context, code string) error {
	code = strings.ToUpper(code)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var voteIDs []string
		if err := tx.Model(&models.Vote{}).Where("room_code = ?", code).Pluck("id", &voteIDs).Error; err != nil {
			return err
		}
		if len(voteIDs) > 0 {
			if err := tx.Where("vote_id IN ?", voteIDs).Delete(&models.VoteResponse{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("room_code = ?", code).Delete(&models.Vote{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_code = ?", code).Delete(&models.Participant{}).Error; err != nil {
			return err
		}
		return tx.Where("code = ?", code).Delete(&models.Room{}).Error
	})
}
