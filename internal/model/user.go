package model

import "time"

// swagger:model User
type User struct {
	BaseModel

	Email      string     `gorm:"uniqueIndex;size:191" json:"email"`
	Password   string     `json:"-"`
	Name       string     `json:"name"`
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`
}

func (User) TableName() string {
	return "users"
}
