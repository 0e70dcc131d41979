package repository

import (
	"errors"
	"flashdeck_backend/internal/model"

	"gorm.io/gorm"
)

type SessionRepository struct {
	DB *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{DB: db}
}

func (r *SessionRepository) Create(tx *gorm.DB, session *model.PracticeSession) error {
	return tx.Create(session).Error
}

func (r *SessionRepository) Save(tx *gorm.DB, session *model.PracticeSession) error {
	return tx.Save(session).Error
}

// FindByIDForUpdate 按主键取会话并加行锁；每个事件事务都从这里开始，
// 同一会话上的所有变更因此严格串行。
func (r *SessionRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*model.PracticeSession, error) {
	var session model.PracticeSession
	err := lockForUpdate(tx).Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) FindByID(id string) (*model.PracticeSession, error) {
	var session model.PracticeSession
	err := r.DB.Where("id = ?", id).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// FindActiveForUpdate 取用户在某卡组上的活跃会话（若有），加行锁
func (r *SessionRepository) FindActiveForUpdate(tx *gorm.DB, userID, deckID uint) (*model.PracticeSession, error) {
	var session model.PracticeSession
	err := lockForUpdate(tx).
		Where("user_id = ? AND deck_id = ? AND status = ?", userID, deckID, model.SessionActive).
		Order("created_at DESC").
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *SessionRepository) CreateQueueEntries(tx *gorm.DB, entries []model.QueueEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return tx.Create(&entries).Error
}

func (r *SessionRepository) QueueLength(tx *gorm.DB, sessionID string) (int, error) {
	var count int64
	err := tx.Model(&model.QueueEntry{}).Where("session_id = ?", sessionID).Count(&count).Error
	return int(count), err
}

func (r *SessionRepository) GetQueueEntry(tx *gorm.DB, sessionID string, position int) (*model.QueueEntry, error) {
	var entry model.QueueEntry
	err := tx.Where("session_id = ? AND position = ?", sessionID, position).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *SessionRepository) ListQueue(sessionID string) ([]model.QueueEntry, error) {
	var entries []model.QueueEntry
	err := r.DB.Where("session_id = ?", sessionID).Order("position ASC").Find(&entries).Error
	return entries, err
}
