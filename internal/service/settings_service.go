package service

import (
	"flashdeck_backend/internal/model"
	"flashdeck_backend/internal/repository"
)

// SettingsService 调度参数的读写。读取时返回钳制后的值，
// 写入时也先钳制，数据库里不会出现越界参数。
type SettingsService struct {
	SettingsRepo *repository.SettingsRepository
}

func NewSettingsService(settingsRepo *repository.SettingsRepository) *SettingsService {
	return &SettingsService{SettingsRepo: settingsRepo}
}

func (s *SettingsService) Get(userID uint) (*model.UserSettings, error) {
	raw, err := s.SettingsRepo.FindByUser(userID)
	if err != nil {
		return nil, err
	}
	clamped := ClampSettings(raw)
	return &clamped, nil
}

func (s *SettingsService) Update(userID uint, settings *model.UserSettings) (*model.UserSettings, error) {
	clamped := ClampSettings(settings)
	clamped.UserID = userID
	if err := s.SettingsRepo.Save(&clamped); err != nil {
		return nil, err
	}
	return &clamped, nil
}
