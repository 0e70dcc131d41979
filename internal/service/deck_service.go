package service

import (
	"errors"
	"flashdeck_backend/internal/model"
	"flashdeck_backend/internal/repository"
	"flashdeck_backend/internal/util"

	"gorm.io/gorm"
)

// DeckService 卡组与卡片的增删改查。引擎之外的普通资源管理，
// 所有操作都做归属校验。
type DeckService struct {
	DeckRepo *repository.DeckRepository
	CardRepo *repository.FlashcardRepository
	Storage  *StorageService
}

func NewDeckService(deckRepo *repository.DeckRepository, cardRepo *repository.FlashcardRepository, storage *StorageService) *DeckService {
	return &DeckService{
		DeckRepo: deckRepo,
		CardRepo: cardRepo,
		Storage:  storage,
	}
}

func (s *DeckService) ownedDeck(userID, deckID uint) (*model.Deck, error) {
	deck, err := s.DeckRepo.FindByID(deckID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrDeckNotFound
		}
		return nil, err
	}
	if deck.UserID != userID {
		return nil, util.ErrDeckNotFound
	}
	return deck, nil
}

func (s *DeckService) List(userID uint) ([]model.Deck, error) {
	return s.DeckRepo.ListByUser(userID)
}

func (s *DeckService) Get(userID, deckID uint) (*model.Deck, error) {
	return s.ownedDeck(userID, deckID)
}

func (s *DeckService) Create(userID uint, name, description string) (*model.Deck, error) {
	deck := &model.Deck{
		UserID:      userID,
		Name:        name,
		Description: description,
	}
	if err := s.DeckRepo.Create(deck); err != nil {
		return nil, err
	}
	return deck, nil
}

func (s *DeckService) Update(userID, deckID uint, name, description string, archived *bool) (*model.Deck, error) {
	deck, err := s.ownedDeck(userID, deckID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		deck.Name = name
	}
	deck.Description = description
	if archived != nil {
		deck.Archived = *archived
	}
	if err := s.DeckRepo.Update(deck); err != nil {
		return nil, err
	}
	return deck, nil
}

func (s *DeckService) Delete(userID, deckID uint) error {
	if _, err := s.ownedDeck(userID, deckID); err != nil {
		return err
	}
	return s.DeckRepo.Delete(deckID)
}

func (s *DeckService) ListCards(userID, deckID uint) ([]model.Flashcard, error) {
	if _, err := s.ownedDeck(userID, deckID); err != nil {
		return nil, err
	}
	return s.CardRepo.ListByDeck(deckID)
}

func (s *DeckService) CreateCard(userID, deckID uint, card *model.Flashcard) (*model.Flashcard, error) {
	if _, err := s.ownedDeck(userID, deckID); err != nil {
		return nil, err
	}
	card.DeckID = deckID
	if card.Kind == "" {
		card.Kind = model.CardBasic
	}
	if err := s.CardRepo.Create(card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *DeckService) ownedCard(userID, deckID, cardID uint) (*model.Flashcard, error) {
	if _, err := s.ownedDeck(userID, deckID); err != nil {
		return nil, err
	}
	card, err := s.CardRepo.FindByID(cardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.ErrCardNotFound
		}
		return nil, err
	}
	if card.DeckID != deckID {
		return nil, util.ErrCardNotFound
	}
	return card, nil
}

func (s *DeckService) UpdateCard(userID, deckID, cardID uint, patch *model.Flashcard) (*model.Flashcard, error) {
	card, err := s.ownedCard(userID, deckID, cardID)
	if err != nil {
		return nil, err
	}
	card.Front = patch.Front
	card.Back = patch.Back
	if patch.Kind != "" {
		card.Kind = patch.Kind
	}
	card.MCQ = patch.MCQ
	if patch.Sketch != nil {
		card.Sketch = patch.Sketch
	}
	if err := s.CardRepo.Update(card); err != nil {
		return nil, err
	}
	return card, nil
}

func (s *DeckService) DeleteCard(userID, deckID, cardID uint) error {
	if _, err := s.ownedCard(userID, deckID, cardID); err != nil {
		return err
	}
	return s.CardRepo.Delete(cardID)
}

// AttachSketch 上传草图图片并把对象键写进卡片的 sketch 负载
func (s *DeckService) AttachSketch(userID, deckID, cardID uint, objectKey string) (*model.Flashcard, error) {
	card, err := s.ownedCard(userID, deckID, cardID)
	if err != nil {
		return nil, err
	}
	if card.Sketch == nil {
		card.Sketch = &model.SketchPayload{}
	}
	card.Sketch.ImageKey = objectKey
	if err := s.CardRepo.Update(card); err != nil {
		return nil, err
	}
	return card, nil
}
