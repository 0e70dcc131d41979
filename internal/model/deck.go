package model

// swagger:model Deck
type Deck struct {
	BaseModel

	UserID      uint   `gorm:"index;type:bigint unsigned" json:"userId"`
	Name        string `gorm:"size:191" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Archived    bool   `gorm:"default:false" json:"archived"`
}

func (Deck) TableName() string {
	return "decks"
}
