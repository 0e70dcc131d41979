package repository

import (
	"errors"
	"flashdeck_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(tx *gorm.DB, attempt *model.Attempt) error {
	return tx.Create(attempt).Error
}

func (r *AttemptRepository) Save(tx *gorm.DB, attempt *model.Attempt) error {
	return tx.Save(attempt).Error
}

func (r *AttemptRepository) FindBySessionPosition(tx *gorm.DB, sessionID string, position int) (*model.Attempt, error) {
	var attempt model.Attempt
	err := tx.Where("session_id = ? AND position = ?", sessionID, position).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// DailyUsage 统计用户自 since 以来已判定的卡片数，按新卡/复习卡拆分。
// 会话创建时的每日额度就来自这一个查询，没有独立计数器需要维护。
type DailyUsage struct {
	Novel  int
	Review int
}

func (r *AttemptRepository) CountSince(tx *gorm.DB, userID uint, since time.Time) (DailyUsage, error) {
	type row struct {
		IsNovel bool
		Total   int
	}
	var rows []row
	err := tx.Model(&model.Attempt{}).
		Select("is_novel, COUNT(*) AS total").
		Where("user_id = ? AND answered_at >= ?", userID, since).
		Group("is_novel").
		Scan(&rows).Error
	if err != nil {
		return DailyUsage{}, err
	}

	var usage DailyUsage
	for _, r := range rows {
		if r.IsNovel {
			usage.Novel = r.Total
		} else {
			usage.Review = r.Total
		}
	}
	return usage, nil
}

// AttemptedCardIDs 返回给定卡片中用户曾经判定过的那些（跨所有会话）
func (r *AttemptRepository) AttemptedCardIDs(tx *gorm.DB, userID uint, cardIDs []uint) (map[uint]bool, error) {
	attempted := make(map[uint]bool)
	if len(cardIDs) == 0 {
		return attempted, nil
	}

	var ids []uint
	err := tx.Model(&model.Attempt{}).
		Distinct("flashcard_id").
		Where("user_id = ? AND flashcard_id IN ?", userID, cardIDs).
		Pluck("flashcard_id", &ids).Error
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		attempted[id] = true
	}
	return attempted, nil
}
