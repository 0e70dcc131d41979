package model

// UserSettings 用户的练习调度参数，每个用户一行
//
// All intervals and times are integer milliseconds.
// swagger:model UserSettings
type UserSettings struct {
	BaseModel

	UserID uint `gorm:"uniqueIndex;type:bigint unsigned" json:"userId"`

	BaseIntervalMs    int64   `gorm:"default:1800000" json:"baseIntervalMs"`
	RewardMultiplier  float64 `gorm:"default:1.8" json:"rewardMultiplier"`
	PenaltyMultiplier float64 `gorm:"default:0.6" json:"penaltyMultiplier"`
	RequiredTimeMs    int64   `gorm:"default:10000" json:"requiredTimeMs"`
	TimeHistoryLimit  int     `gorm:"default:50" json:"timeHistoryLimit"`

	DailyNovelLimit  int `gorm:"default:20" json:"dailyNovelLimit"`
	DailyReviewLimit int `gorm:"default:200" json:"dailyReviewLimit"`
}

func (UserSettings) TableName() string {
	return "user_settings"
}

// DefaultUserSettings 未保存过设置的用户使用的默认值
func DefaultUserSettings(userID uint) *UserSettings {
	return &UserSettings{
		UserID:            userID,
		BaseIntervalMs:    1800000, // 30 minutes
		RewardMultiplier:  1.8,
		PenaltyMultiplier: 0.6,
		RequiredTimeMs:    10000,
		TimeHistoryLimit:  50,
		DailyNovelLimit:   20,
		DailyReviewLimit:  200,
	}
}
