package repository

import (
	"flashdeck_backend/internal/model"

	"gorm.io/gorm"
)

type DeckRepository struct {
	DB *gorm.DB
}

func NewDeckRepository(db *gorm.DB) *DeckRepository {
	return &DeckRepository{DB: db}
}

func (r *DeckRepository) Create(deck *model.Deck) error {
	return r.DB.Create(deck).Error
}

func (r *DeckRepository) Update(deck *model.Deck) error {
	return r.DB.Save(deck).Error
}

func (r *DeckRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Deck{}, id).Error
}

func (r *DeckRepository) FindByID(id uint) (*model.Deck, error) {
	var deck model.Deck
	if err := r.DB.First(&deck, id).Error; err != nil {
		return nil, err
	}
	return &deck, nil
}

// FindByIDTx 在指定事务中查询，供练习会话创建时复用
func (r *DeckRepository) FindByIDTx(tx *gorm.DB, id uint) (*model.Deck, error) {
	var deck model.Deck
	if err := tx.First(&deck, id).Error; err != nil {
		return nil, err
	}
	return &deck, nil
}

func (r *DeckRepository) ListByUser(userID uint) ([]model.Deck, error) {
	var decks []model.Deck
	err := r.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&decks).Error
	return decks, err
}
