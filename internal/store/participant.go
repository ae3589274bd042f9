package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/minjikim/nalmoa/internal/models"
)

// ParticipantStore persists room membership records.
type ParticipantStore interface {
	Add(ctx context.Context, roomCode, nickname string) (*models.Participant, error)
	List(ctx context.Context, roomCode string) ([]models.Participant, error)
	Find(ctx context.Context, roomCode, nickname string) (*models.Participant, error)
}

type GormParticipantStore struct {
	db *gorm.DB
}

func NewParticipantStore(db *gorm.DB) *GormParticipantStore {
	return &GormParticipantStore{db: db}
}

// Add joins a nickname to a room. If the nickname already joined, the
// existing record is returned unchanged. The check and the insert are not
// atomic: two identical concurrent joins can both pass the check and leave
// two records. Acceptable at this product's concurrency level.
func (s *GormParticipantStore) Add(ctx context.Context, roomCode, nickname string) (*models.Participant, error) {
	existing, err := s.Find(ctx, roomCode, nickname)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	participant := &models.Participant{
		ID:       uuid.NewString(),
		RoomCode: roomCode,
		Nickname: nickname,
		JoinedAt: time.Now(),
	}
	if err := s.db.WithContext(ctx).Create(participant).Error; err != nil {
		return nil, err
	}
	return participant, nil
}

func (s *GormParticipantStore) List(ctx context.Context, roomCode string) ([]models.Participant, error) {
	var participants []models.Participant
	err := s.db.WithContext(ctx).Where("room_code = ?", roomCode).Find(&participants).Error
	return participants, err
}

func (s *GormParticipantStore) Find(ctx context.Context, roomCode, nickname string) (*models.Participant, error) {
	var participant models.Participant
	err := s.db.WithContext(ctx).
		Where("room_code = ? AND nickname = ?", roomCode, nickname).
		First(&participant).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &participant, nil
}
