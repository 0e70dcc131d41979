package repository

import (
	"flashdeck_backend/internal/model"

	"gorm.io/gorm"
)

type FlashcardRepository struct {
	DB *gorm.DB
}

func NewFlashcardRepository(db *gorm.DB) *FlashcardRepository {
	return &FlashcardRepository{DB: db}
}

func (r *FlashcardRepository) Create(card *model.Flashcard) error {
	return r.DB.Create(card).Error
}

func (r *FlashcardRepository) Update(card *model.Flashcard) error {
	return r.DB.Save(card).Error
}

func (r *FlashcardRepository) Delete(id uint) error {
	return r.DB.Delete(&model.Flashcard{}, id).Error
}

func (r *FlashcardRepository) FindByID(id uint) (*model.Flashcard, error) {
	var card model.Flashcard
	if err := r.DB.First(&card, id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *FlashcardRepository) ListByDeck(deckID uint) ([]model.Flashcard, error) {
	var cards []model.Flashcard
	err := r.DB.Where("deck_id = ?", deckID).Order("id ASC").Find(&cards).Error
	return cards, err
}

// ListPlayableTx 返回卡组内可练习的卡片，按创建顺序排列。
// 可练习的判定以 model.Flashcard.Playable 为唯一标准：SQL 的 TRIM
// 只去空格，制表符/换行组成的"空"面会漏网，所以过滤在内存里做。
func (r *FlashcardRepository) ListPlayableTx(tx *gorm.DB, deckID uint) ([]model.Flashcard, error) {
	var cards []model.Flashcard
	err := tx.Where("deck_id = ?", deckID).
		Order("id ASC").
		Find(&cards).Error
	if err != nil {
		return nil, err
	}

	playable := cards[:0]
	for i := range cards {
		if cards[i].Playable() {
			playable = append(playable, cards[i])
		}
	}
	return playable, nil
}

func (r *FlashcardRepository) CountByDeck(deckID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Flashcard{}).Where("deck_id = ?", deckID).Count(&count).Error
	return count, err
}
