package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ReviewEntry 复习历史中的一次判定
type ReviewEntry struct {
	Correct bool  `json:"correct"`
	TimeMs  int64 `json:"timeMs"`
}

// ReviewHistory 有界的复习历史，最旧的条目先被淘汰
type ReviewHistory []ReviewEntry

func (h *ReviewHistory) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}
	return scanJSON(value, h)
}

func (h ReviewHistory) Value() (driver.Value, error) {
	if h == nil {
		h = ReviewHistory{}
	}
	return json.Marshal(h)
}

// FlashcardSchedule 每个 (user, flashcard) 一行的调度状态，
// 独立于任何会话存在，由引擎创建和更新，从不删除。
// swagger:model FlashcardSchedule
type FlashcardSchedule struct {
	BaseModel

	UserID      uint `gorm:"uniqueIndex:idx_schedule_user_card;type:bigint unsigned" json:"userId"`
	FlashcardID uint `gorm:"uniqueIndex:idx_schedule_user_card;type:bigint unsigned" json:"flashcardId"`

	DueAt      time.Time `gorm:"index" json:"dueAt"`
	IntervalMs int64     `json:"intervalMs"`
	// PrevIntervalMs is the interval that was in effect immediately before
	// the current one. Corrections recompute from it instead of IntervalMs
	// so repeated corrections of the same attempt never compound.
	PrevIntervalMs int64   `json:"prevIntervalMs"`
	LastMultiplier float64 `json:"lastMultiplier"`

	ReviewHistory     ReviewHistory `gorm:"type:json" json:"reviewHistory"`
	LastReviewTimeMs  int64         `json:"lastReviewTimeMs"`
	LastReviewCorrect bool          `json:"lastReviewCorrect"`

	LastSeenAt     *time.Time `json:"lastSeenAt,omitempty"`
	PrevLastSeenAt *time.Time `json:"prevLastSeenAt,omitempty"`
}

func (FlashcardSchedule) TableName() string {
	return "flashcard_schedules"
}

// Due 判断到期：dueAt 为当前时刻或更早即视为到期
func (s *FlashcardSchedule) Due(now time.Time) bool {
	return !s.DueAt.After(now)
}
