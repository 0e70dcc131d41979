package repository

import (
	"errors"
	"flashdeck_backend/internal/model"

	"gorm.io/gorm"
)

type SettingsRepository struct {
	DB *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) *SettingsRepository {
	return &SettingsRepository{DB: db}
}

// FindByUser 查询用户设置，不存在时返回默认值（不落库）
func (r *SettingsRepository) FindByUser(userID uint) (*model.UserSettings, error) {
	return r.FindByUserTx(r.DB, userID)
}

func (r *SettingsRepository) FindByUserTx(tx *gorm.DB, userID uint) (*model.UserSettings, error) {
	var settings model.UserSettings
	err := tx.Where("user_id = ?", userID).First(&settings).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DefaultUserSettings(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return &settings, nil
}

func (r *SettingsRepository) Save(settings *model.UserSettings) error {
	var existing model.UserSettings
	err := r.DB.Where("user_id = ?", settings.UserID).First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.DB.Create(settings).Error
	}
	if err != nil {
		return err
	}
	settings.ID = existing.ID
	settings.CreatedAt = existing.CreatedAt
	return r.DB.Save(settings).Error
}
