package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

type FlashcardKind string

const (
	CardBasic FlashcardKind = "basic"
	CardMCQ   FlashcardKind = "mcq"
)

// MCQPayload 选择题卡片的选项数据
type MCQPayload struct {
	Choices      []string `json:"choices"`
	CorrectIndex int      `json:"correctIndex"`
}

// SketchPayload 卡片附带的手绘草图；Strokes 为内联笔画数据，
// ImageKey 指向对象存储里的上传图片，两者均可为空。
type SketchPayload struct {
	Strokes  json.RawMessage `json:"strokes,omitempty"`
	ImageKey string          `json:"imageKey,omitempty"`
}

func (p *MCQPayload) Scan(value interface{}) error { return scanJSON(value, p) }

func (p MCQPayload) Value() (driver.Value, error) { return json.Marshal(p) }

func (p *SketchPayload) Scan(value interface{}) error { return scanJSON(value, p) }

func (p SketchPayload) Value() (driver.Value, error) { return json.Marshal(p) }

func scanJSON(value interface{}, dst interface{}) error {
	if value == nil {
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, dst)
	case string:
		return json.Unmarshal([]byte(v), dst)
	}
	return errors.New("unsupported column type for json payload")
}

// swagger:model Flashcard
type Flashcard struct {
	BaseModel

	DeckID uint           `gorm:"index;type:bigint unsigned" json:"deckId"`
	Kind   FlashcardKind  `gorm:"size:16;default:basic" json:"kind"`
	Front  string         `gorm:"type:text" json:"front"`
	Back   string         `gorm:"type:text" json:"back"`
	MCQ    *MCQPayload    `gorm:"type:json" json:"mcq,omitempty"`
	Sketch *SketchPayload `gorm:"type:json" json:"sketch,omitempty"`
}

func (Flashcard) TableName() string {
	return "flashcards"
}

// Playable 正反面去除空白后均非空的卡片才会进入练习队列
func (f *Flashcard) Playable() bool {
	return strings.TrimSpace(f.Front) != "" && strings.TrimSpace(f.Back) != ""
}
