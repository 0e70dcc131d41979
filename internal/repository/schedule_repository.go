package repository

import (
	"errors"
	"flashdeck_backend/internal/model"

	"gorm.io/gorm"
)

// ScheduleRepository 每张卡片在每个用户名下的调度行。
// 修正已有判定时必须走 FindForUpdate：最后一条历史记录要读改写。
type ScheduleRepository struct {
	DB *gorm.DB
}

func NewScheduleRepository(db *gorm.DB) *ScheduleRepository {
	return &ScheduleRepository{DB: db}
}

func (r *ScheduleRepository) Find(userID, flashcardID uint) (*model.FlashcardSchedule, error) {
	return r.FindTx(r.DB, userID, flashcardID)
}

func (r *ScheduleRepository) FindTx(tx *gorm.DB, userID, flashcardID uint) (*model.FlashcardSchedule, error) {
	var schedule model.FlashcardSchedule
	err := tx.Where("user_id = ? AND flashcard_id = ?", userID, flashcardID).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *ScheduleRepository) FindForUpdate(tx *gorm.DB, userID, flashcardID uint) (*model.FlashcardSchedule, error) {
	var schedule model.FlashcardSchedule
	err := lockForUpdate(tx).Where("user_id = ? AND flashcard_id = ?", userID, flashcardID).First(&schedule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *ScheduleRepository) Create(tx *gorm.DB, schedule *model.FlashcardSchedule) error {
	return tx.Create(schedule).Error
}

func (r *ScheduleRepository) Save(tx *gorm.DB, schedule *model.FlashcardSchedule) error {
	return tx.Save(schedule).Error
}

// ListByUserAndCardsTx 批量取调度行，供会话创建时筛选到期卡片
func (r *ScheduleRepository) ListByUserAndCardsTx(tx *gorm.DB, userID uint, cardIDs []uint) (map[uint]*model.FlashcardSchedule, error) {
	result := make(map[uint]*model.FlashcardSchedule)
	if len(cardIDs) == 0 {
		return result, nil
	}

	var schedules []model.FlashcardSchedule
	err := tx.Where("user_id = ? AND flashcard_id IN ?", userID, cardIDs).Find(&schedules).Error
	if err != nil {
		return nil, err
	}
	for i := range schedules {
		s := schedules[i]
		result[s.FlashcardID] = &s
	}
	return result, nil
}
