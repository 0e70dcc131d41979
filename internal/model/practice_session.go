package model

import "time"

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

type SessionState string

const (
	StateIntro SessionState = "intro"
	StateFront SessionState = "front"
	StateBack  SessionState = "back"
	// StatePast is never stored; it is derived at the view boundary
	// whenever viewIndex < progressIndex.
	StatePast SessionState = "past"
	StateDone SessionState = "done"
)

// PracticeSession 一次用户对某个卡组的练习会话
//
// ProgressIndex is the furthest queue position ever reached,
// ViewIndex the position currently displayed (ViewIndex <= ProgressIndex).
// swagger:model PracticeSession
type PracticeSession struct {
	UUIDBase

	UserID uint `gorm:"index:idx_session_user_deck;type:bigint unsigned" json:"userId"`
	DeckID uint `gorm:"index:idx_session_user_deck;type:bigint unsigned" json:"deckId"`

	Status SessionStatus `gorm:"size:16;default:active" json:"status"`
	State  SessionState  `gorm:"size:16;default:intro" json:"state"`

	ProgressIndex int `gorm:"default:0" json:"progressIndex"`
	ViewIndex     int `gorm:"default:0" json:"viewIndex"`

	// FrontStartedAt marks when the front face was last shown; cleared at
	// reveal, at which point the think-time is frozen into FrontElapsedMs.
	FrontStartedAt *time.Time `json:"frontStartedAt,omitempty"`
	FrontElapsedMs int64      `gorm:"default:0" json:"frontElapsedMs"`
}

func (PracticeSession) TableName() string {
	return "practice_sessions"
}

// QueueEntry 会话队列中的一个固定槽位，会话创建后不可变
type QueueEntry struct {
	BaseModel

	SessionID   string `gorm:"uniqueIndex:idx_queue_session_position;size:36" json:"sessionId"`
	Position    int    `gorm:"uniqueIndex:idx_queue_session_position" json:"position"`
	FlashcardID uint   `gorm:"index;type:bigint unsigned" json:"flashcardId"`
	IsNovel     bool   `gorm:"default:false" json:"isNovel"`
}

func (QueueEntry) TableName() string {
	return "practice_queue_entries"
}

// Attempt 每个队列槽位至多一条判定记录；correctness 可被事后修正，
// TimeMs 和 AnsweredAt 修正时保持不变。
type Attempt struct {
	BaseModel

	SessionID   string `gorm:"uniqueIndex:idx_attempt_session_position;size:36" json:"sessionId"`
	Position    int    `gorm:"uniqueIndex:idx_attempt_session_position" json:"position"`
	UserID      uint   `gorm:"index;type:bigint unsigned" json:"userId"`
	DeckID      uint   `gorm:"index;type:bigint unsigned" json:"deckId"`
	FlashcardID uint   `gorm:"index;type:bigint unsigned" json:"flashcardId"`
	IsNovel     bool   `gorm:"default:false" json:"isNovel"`

	AnsweredCorrect bool      `json:"answeredCorrect"`
	TimeMs          int64     `json:"timeMs"`
	AnsweredAt      time.Time `gorm:"index" json:"answeredAt"`
}

func (Attempt) TableName() string {
	return "practice_attempts"
}
