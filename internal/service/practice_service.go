package service

import (
	"errors"
	"flashdeck_backend/internal/model"
	"flashdeck_backend/internal/repository"
	"flashdeck_backend/internal/util"
	"flashdeck_backend/pkg/logger"
	"sort"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PracticeEventType 练习事件的六种变体
type PracticeEventType string

const (
	EventStart      PracticeEventType = "start"
	EventRevealBack PracticeEventType = "revealBack"
	EventAnswer     PracticeEventType = "answer"
	EventAdvance    PracticeEventType = "advance"
	EventNavigate   PracticeEventType = "navigate"
	EventSetOutcome PracticeEventType = "setOutcome"
)

// PracticeEvent 客户端提交的单个事件；Correct 供 answer/setOutcome 使用，
// To 供 navigate 使用。
type PracticeEvent struct {
	Type    PracticeEventType `json:"type" binding:"required"`
	Correct *bool             `json:"correct,omitempty"`
	To      *int              `json:"to,omitempty"`
}

// CardView 当前展示槽位的卡片内容及其判定结果（如果有）
type CardView struct {
	FlashcardID uint                 `json:"flashcardId"`
	Kind        model.FlashcardKind  `json:"kind"`
	Front       string               `json:"front"`
	Back        string               `json:"back"`
	MCQ         *model.MCQPayload    `json:"mcq,omitempty"`
	Sketch      *model.SketchPayload `json:"sketch,omitempty"`
	Position    int                  `json:"position"`
	IsNovel     bool                 `json:"isNovel"`

	Answered        bool   `json:"answered"`
	AnsweredCorrect *bool  `json:"answeredCorrect,omitempty"`
	TimeMs          *int64 `json:"timeMs,omitempty"`
}

// SessionView 会话的只读投影，渲染随时可以重建
type SessionView struct {
	SessionID     string              `json:"sessionId"`
	DeckID        uint                `json:"deckId"`
	DeckName      string              `json:"deckName"`
	Status        model.SessionStatus `json:"status"`
	State         model.SessionState  `json:"state"`
	ProgressIndex int                 `json:"progressIndex"`
	ViewIndex     int                 `json:"viewIndex"`
	QueueLength   int                 `json:"queueLength"`

	NovelUsedToday  int `json:"novelUsedToday"`
	ReviewUsedToday int `json:"reviewUsedToday"`

	Card *CardView `json:"card,omitempty"`
}

// PracticeService 会话生命周期管理与事件状态机。
//
// 每个操作都是一个数据库事务：先对会话行加锁，再按需锁调度行，
// 锁顺序恒为 会话→调度，不同会话之间完全并行。
type PracticeService struct {
	DeckRepo     *repository.DeckRepository
	CardRepo     *repository.FlashcardRepository
	SessionRepo  *repository.SessionRepository
	AttemptRepo  *repository.AttemptRepository
	ScheduleRepo *repository.ScheduleRepository
	SettingsRepo *repository.SettingsRepository
	Scheduler    *SchedulerService
	DB           *gorm.DB

	now func() time.Time
}

func NewPracticeService(
	deckRepo *repository.DeckRepository,
	cardRepo *repository.FlashcardRepository,
	sessionRepo *repository.SessionRepository,
	attemptRepo *repository.AttemptRepository,
	scheduleRepo *repository.ScheduleRepository,
	settingsRepo *repository.SettingsRepository,
	scheduler *SchedulerService,
	db *gorm.DB,
) *PracticeService {
	return &PracticeService{
		DeckRepo:     deckRepo,
		CardRepo:     cardRepo,
		SessionRepo:  sessionRepo,
		AttemptRepo:  attemptRepo,
		ScheduleRepo: scheduleRepo,
		SettingsRepo: settingsRepo,
		Scheduler:    scheduler,
		DB:           db,
		now:          time.Now,
	}
}

func utcDayStart(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func sameUTCDay(a, b time.Time) bool {
	return utcDayStart(a).Equal(utcDayStart(b))
}

// displayState 视图层的派生状态：回看更早的槽位时显示 past，
// 其余情况存储状态即展示状态。只在读取时计算，从不落库。
func displayState(state model.SessionState, viewIndex, progressIndex int) model.SessionState {
	if viewIndex < progressIndex {
		return model.StatePast
	}
	return state
}

// CreateOrResume 进入卡组：同一 UTC 日内幂等地返回已有活跃会话，
// 否则关闭隔日残留会话并按每日额度新建队列。
func (s *PracticeService) CreateOrResume(userID, deckID uint) (*SessionView, error) {
	now := s.now()
	var view *SessionView

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		deck, err := s.DeckRepo.FindByIDTx(tx, deckID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return util.ErrDeckNotFound
			}
			return err
		}
		if deck.UserID != userID || deck.Archived {
			return util.ErrDeckNotFound
		}

		playable, err := s.CardRepo.ListPlayableTx(tx, deckID)
		if err != nil {
			return err
		}
		if len(playable) == 0 {
			return util.ErrNoPlayableCards
		}

		active, err := s.SessionRepo.FindActiveForUpdate(tx, userID, deckID)
		if err != nil {
			return err
		}
		if active != nil {
			if sameUTCDay(active.CreatedAt, now) {
				view, err = s.buildView(tx, active, deck, now)
				return err
			}
			// 隔日残留会话：先关闭再新建
			active.Status = model.SessionEnded
			active.State = model.StateDone
			if err := s.SessionRepo.Save(tx, active); err != nil {
				return err
			}
		}

		rawSettings, err := s.SettingsRepo.FindByUserTx(tx, userID)
		if err != nil {
			return err
		}
		settings := ClampSettings(rawSettings)

		usage, err := s.AttemptRepo.CountSince(tx, userID, utcDayStart(now))
		if err != nil {
			return err
		}

		remainingNovel := settings.DailyNovelLimit - usage.Novel
		if remainingNovel < 0 {
			remainingNovel = 0
		}
		remainingReview := settings.DailyReviewLimit - usage.Review
		if remainingReview < 0 {
			remainingReview = 0
		}
		if remainingNovel == 0 && remainingReview == 0 {
			return util.ErrDailyLimitExhausted
		}

		reviews, novels, err := s.pickQueue(tx, userID, playable, remainingReview, remainingNovel, now)
		if err != nil {
			return err
		}
		if len(reviews) == 0 && len(novels) == 0 {
			return util.ErrNothingAvailable
		}

		session := &model.PracticeSession{
			UserID: userID,
			DeckID: deckID,
			Status: model.SessionActive,
			State:  model.StateIntro,
		}
		if err := s.SessionRepo.Create(tx, session); err != nil {
			return err
		}

		entries := make([]model.QueueEntry, 0, len(reviews)+len(novels))
		position := 0
		for _, cardID := range reviews {
			entries = append(entries, model.QueueEntry{
				SessionID:   session.ID,
				Position:    position,
				FlashcardID: cardID,
				IsNovel:     false,
			})
			position++
		}
		for _, cardID := range novels {
			entries = append(entries, model.QueueEntry{
				SessionID:   session.ID,
				Position:    position,
				FlashcardID: cardID,
				IsNovel:     true,
			})
			position++
		}
		if err := s.SessionRepo.CreateQueueEntries(tx, entries); err != nil {
			return err
		}

		// 和其他进程竞争后队列可能为空，直接收尾
		if len(entries) == 0 {
			session.Status = model.SessionEnded
			session.State = model.StateDone
			if err := s.SessionRepo.Save(tx, session); err != nil {
				return err
			}
		}

		logger.Log.Info("practice session created",
			zap.Uint("userId", userID),
			zap.Uint("deckId", deckID),
			zap.String("sessionId", session.ID),
			zap.Int("reviews", len(reviews)),
			zap.Int("novel", len(novels)),
		)

		view, err = s.buildView(tx, session, deck, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// pickQueue 选出复习卡与新卡。复习卡按当前间隔升序、到期时间升序、
// 创建顺序排列，最不稳固的材料排在最前；新卡按创建顺序排列。
func (s *PracticeService) pickQueue(tx *gorm.DB, userID uint, playable []model.Flashcard, remainingReview, remainingNovel int, now time.Time) ([]uint, []uint, error) {
	cardIDs := make([]uint, len(playable))
	for i, c := range playable {
		cardIDs[i] = c.ID
	}

	attempted, err := s.AttemptRepo.AttemptedCardIDs(tx, userID, cardIDs)
	if err != nil {
		return nil, nil, err
	}
	schedules, err := s.ScheduleRepo.ListByUserAndCardsTx(tx, userID, cardIDs)
	if err != nil {
		return nil, nil, err
	}

	type reviewCandidate struct {
		cardID     uint
		intervalMs int64
		dueAt      time.Time
	}

	var reviewCands []reviewCandidate
	var novels []uint
	for _, card := range playable {
		if !attempted[card.ID] {
			novels = append(novels, card.ID)
			continue
		}
		sched := schedules[card.ID]
		if sched == nil {
			// 有判定记录但还没有调度行：立即到期
			reviewCands = append(reviewCands, reviewCandidate{cardID: card.ID})
			continue
		}
		if sched.Due(now) {
			reviewCands = append(reviewCands, reviewCandidate{
				cardID:     card.ID,
				intervalMs: sched.IntervalMs,
				dueAt:      sched.DueAt,
			})
		}
	}

	sort.SliceStable(reviewCands, func(i, j int) bool {
		a, b := reviewCands[i], reviewCands[j]
		if a.intervalMs != b.intervalMs {
			return a.intervalMs < b.intervalMs
		}
		if !a.dueAt.Equal(b.dueAt) {
			return a.dueAt.Before(b.dueAt)
		}
		return a.cardID < b.cardID
	})

	if len(reviewCands) > remainingReview {
		reviewCands = reviewCands[:remainingReview]
	}
	if len(novels) > remainingNovel {
		novels = novels[:remainingNovel]
	}

	reviews := make([]uint, len(reviewCands))
	for i, c := range reviewCands {
		reviews[i] = c.cardID
	}
	return reviews, novels, nil
}

// GetView 重建当前视图。resetRevealState 为 true 时，把停在 front/back
// 且尚未判定的当前槽位回滚到 intro 并清掉计时器，供断线重连的客户端使用；
// 已判定的 back 槽位不受影响。
func (s *PracticeService) GetView(userID uint, sessionID string, resetRevealState bool) (*SessionView, error) {
	now := s.now()
	var view *SessionView

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		session, err := s.SessionRepo.FindByIDForUpdate(tx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return util.ErrSessionNotFound
		}
		if session.UserID != userID {
			return util.ErrSessionNotFound
		}

		if resetRevealState &&
			session.ViewIndex == session.ProgressIndex &&
			(session.State == model.StateFront || session.State == model.StateBack) {
			attempt, err := s.AttemptRepo.FindBySessionPosition(tx, session.ID, session.ProgressIndex)
			if err != nil {
				return err
			}
			if attempt == nil {
				session.State = model.StateIntro
				session.FrontStartedAt = nil
				session.FrontElapsedMs = 0
				if err := s.SessionRepo.Save(tx, session); err != nil {
					return err
				}
			}
		}

		deck, err := s.DeckRepo.FindByIDTx(tx, session.DeckID)
		if err != nil {
			return err
		}
		view, err = s.buildView(tx, session, deck, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ApplyEvent 状态机的单事件转移。结构性非法（会话不存在、非本人）
// 和客户端状态漂移返回错误且不落任何变更；重复或乱序的良性重放
// 一律幂等为 no-op，原样返回当前视图。
func (s *PracticeService) ApplyEvent(userID uint, sessionID string, event PracticeEvent) (*SessionView, error) {
	now := s.now()
	var view *SessionView

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		session, err := s.SessionRepo.FindByIDForUpdate(tx, sessionID)
		if err != nil {
			return err
		}
		if session == nil {
			return util.ErrSessionNotFound
		}
		if session.UserID != userID {
			return util.ErrPermissionDenied
		}

		queueLen, err := s.SessionRepo.QueueLength(tx, session.ID)
		if err != nil {
			return err
		}

		switch event.Type {
		case EventStart:
			err = s.applyStart(tx, session, queueLen, now)
		case EventRevealBack:
			err = s.applyRevealBack(tx, session, now)
		case EventAnswer:
			if event.Correct == nil {
				return util.ErrInvalidTransition
			}
			err = s.applyAnswer(tx, session, *event.Correct, now)
		case EventAdvance:
			err = s.applyAdvance(tx, session, queueLen)
		case EventNavigate:
			if event.To == nil {
				return util.ErrInvalidTransition
			}
			err = s.applyNavigate(tx, session, *event.To)
		case EventSetOutcome:
			if event.Correct == nil {
				return util.ErrInvalidTransition
			}
			err = s.applySetOutcome(tx, session, *event.Correct)
		default:
			return util.ErrInvalidTransition
		}
		if err != nil {
			return err
		}

		deck, err := s.DeckRepo.FindByIDTx(tx, session.DeckID)
		if err != nil {
			return err
		}
		view, err = s.buildView(tx, session, deck, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// applyStart 展示当前槽位的正面并启动计时。前置条件不满足时是
// 良性重放，不报错。
func (s *PracticeService) applyStart(tx *gorm.DB, session *model.PracticeSession, queueLen int, now time.Time) error {
	if session.Status != model.SessionActive {
		return nil
	}
	if session.ViewIndex != session.ProgressIndex || session.State != model.StateIntro {
		return nil
	}
	if session.ProgressIndex >= queueLen {
		session.Status = model.SessionEnded
		session.State = model.StateDone
		return s.SessionRepo.Save(tx, session)
	}

	startedAt := now
	session.State = model.StateFront
	session.FrontStartedAt = &startedAt
	session.FrontElapsedMs = 0
	return s.SessionRepo.Save(tx, session)
}

// applyRevealBack 翻面：冻结思考时长，停止计时。判定要等 answer 事件。
func (s *PracticeService) applyRevealBack(tx *gorm.DB, session *model.PracticeSession, now time.Time) error {
	if session.Status != model.SessionActive {
		return nil
	}
	if session.ViewIndex != session.ProgressIndex || session.State != model.StateFront {
		return nil
	}

	var elapsed int64
	if session.FrontStartedAt != nil {
		elapsed = now.Sub(*session.FrontStartedAt).Milliseconds()
		if elapsed < 0 {
			elapsed = 0
		}
	}
	session.FrontElapsedMs = elapsed
	session.FrontStartedAt = nil
	session.State = model.StateBack
	return s.SessionRepo.Save(tx, session)
}

// applyAnswer 记录判定。重复 answer 改走修正路径，保证每个槽位
// 至多一条判定记录。
func (s *PracticeService) applyAnswer(tx *gorm.DB, session *model.PracticeSession, correct bool, now time.Time) error {
	if session.Status != model.SessionActive || session.State == model.StateDone {
		return util.ErrSessionEnded
	}
	if session.ViewIndex != session.ProgressIndex {
		return util.ErrInvalidTransition
	}
	if session.State != model.StateBack {
		// 未翻面就提交判定，属于客户端状态漂移
		return util.ErrInvalidTransition
	}

	entry, err := s.SessionRepo.GetQueueEntry(tx, session.ID, session.ProgressIndex)
	if err != nil {
		return err
	}
	if entry == nil {
		return util.ErrInvalidTransition
	}

	attempt, err := s.AttemptRepo.FindBySessionPosition(tx, session.ID, session.ProgressIndex)
	if err != nil {
		return err
	}

	if attempt == nil {
		attempt = &model.Attempt{
			SessionID:       session.ID,
			Position:        session.ProgressIndex,
			UserID:          session.UserID,
			DeckID:          session.DeckID,
			FlashcardID:     entry.FlashcardID,
			IsNovel:         entry.IsNovel,
			AnsweredCorrect: correct,
			TimeMs:          session.FrontElapsedMs,
			AnsweredAt:      now,
		}
		if err := s.AttemptRepo.Create(tx, attempt); err != nil {
			return err
		}
		return s.Scheduler.RecordReview(tx, session.UserID, entry.FlashcardID, ReviewInput{
			Correct:    correct,
			TimeMs:     attempt.TimeMs,
			AnsweredAt: now,
		})
	}

	// 重复提交：改写已有判定并走修正路径，保留原始作答时间
	attempt.AnsweredCorrect = correct
	attempt.TimeMs = session.FrontElapsedMs
	if err := s.AttemptRepo.Save(tx, attempt); err != nil {
		return err
	}
	return s.Scheduler.CorrectReview(tx, session.UserID, entry.FlashcardID, ReviewInput{
		Correct:    correct,
		TimeMs:     attempt.TimeMs,
		AnsweredAt: attempt.AnsweredAt,
	})
}

// applyAdvance 推进到下一槽位。未判定就推进会悄悄跳过调度，
// 所以缺判定是硬错误而不是 no-op。
func (s *PracticeService) applyAdvance(tx *gorm.DB, session *model.PracticeSession, queueLen int) error {
	if session.Status != model.SessionActive || session.State == model.StateDone {
		// 会话刚结束后的重放
		return nil
	}
	if session.ViewIndex != session.ProgressIndex {
		return util.ErrInvalidTransition
	}

	attempt, err := s.AttemptRepo.FindBySessionPosition(tx, session.ID, session.ProgressIndex)
	if err != nil {
		return err
	}
	if attempt == nil {
		return util.ErrAnswerRequired
	}
	if session.State != model.StateBack {
		return nil
	}

	session.ProgressIndex++
	session.ViewIndex = session.ProgressIndex
	session.FrontStartedAt = nil
	session.FrontElapsedMs = 0
	if session.ProgressIndex >= queueLen {
		session.Status = model.SessionEnded
		session.State = model.StateDone
	} else {
		session.State = model.StateIntro
	}
	return s.SessionRepo.Save(tx, session)
}

// applyNavigate 在 [0, progressIndex] 内移动展示位置。离开尚未判定的
// 当前槽位时清掉计时器，半途浏览不会产生半条判定记录。
func (s *PracticeService) applyNavigate(tx *gorm.DB, session *model.PracticeSession, to int) error {
	if to < 0 {
		to = 0
	}
	if to > session.ProgressIndex {
		to = session.ProgressIndex
	}
	if to == session.ViewIndex {
		return nil
	}

	if session.ViewIndex == session.ProgressIndex &&
		(session.State == model.StateFront || session.State == model.StateBack) {
		attempt, err := s.AttemptRepo.FindBySessionPosition(tx, session.ID, session.ProgressIndex)
		if err != nil {
			return err
		}
		if attempt == nil {
			session.State = model.StateIntro
			session.FrontStartedAt = nil
			session.FrontElapsedMs = 0
		}
	}

	session.ViewIndex = to
	return s.SessionRepo.Save(tx, session)
}

// applySetOutcome 修正已回答的历史槽位。viewIndex 不在过去时是良性 no-op。
func (s *PracticeService) applySetOutcome(tx *gorm.DB, session *model.PracticeSession, correct bool) error {
	if session.ViewIndex >= session.ProgressIndex {
		return nil
	}

	attempt, err := s.AttemptRepo.FindBySessionPosition(tx, session.ID, session.ViewIndex)
	if err != nil {
		return err
	}
	if attempt == nil {
		// 过去的槽位必定有判定记录，缺了说明客户端状态漂移
		return util.ErrInvalidTransition
	}

	attempt.AnsweredCorrect = correct
	if err := s.AttemptRepo.Save(tx, attempt); err != nil {
		return err
	}

	// timeMs / answeredAt 保持原值，只修正 correctness
	return s.Scheduler.CorrectReview(tx, session.UserID, attempt.FlashcardID, ReviewInput{
		Correct:    correct,
		TimeMs:     attempt.TimeMs,
		AnsweredAt: attempt.AnsweredAt,
	})
}

func (s *PracticeService) buildView(tx *gorm.DB, session *model.PracticeSession, deck *model.Deck, now time.Time) (*SessionView, error) {
	queueLen, err := s.SessionRepo.QueueLength(tx, session.ID)
	if err != nil {
		return nil, err
	}
	usage, err := s.AttemptRepo.CountSince(tx, session.UserID, utcDayStart(now))
	if err != nil {
		return nil, err
	}

	view := &SessionView{
		SessionID:       session.ID,
		DeckID:          session.DeckID,
		DeckName:        deck.Name,
		Status:          session.Status,
		State:           displayState(session.State, session.ViewIndex, session.ProgressIndex),
		ProgressIndex:   session.ProgressIndex,
		ViewIndex:       session.ViewIndex,
		QueueLength:     queueLen,
		NovelUsedToday:  usage.Novel,
		ReviewUsedToday: usage.Review,
	}

	entry, err := s.SessionRepo.GetQueueEntry(tx, session.ID, session.ViewIndex)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return view, nil
	}

	var card model.Flashcard
	if err := tx.First(&card, entry.FlashcardID).Error; err != nil {
		// 卡片在会话进行中被删除：降级为无卡片视图，会话仍可继续
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return view, nil
		}
		return nil, err
	}

	cardView := &CardView{
		FlashcardID: card.ID,
		Kind:        card.Kind,
		Front:       card.Front,
		Back:        card.Back,
		MCQ:         card.MCQ,
		Sketch:      card.Sketch,
		Position:    entry.Position,
		IsNovel:     entry.IsNovel,
	}

	attempt, err := s.AttemptRepo.FindBySessionPosition(tx, session.ID, session.ViewIndex)
	if err != nil {
		return nil, err
	}
	if attempt != nil {
		correct := attempt.AnsweredCorrect
		timeMs := attempt.TimeMs
		cardView.Answered = true
		cardView.AnsweredCorrect = &correct
		cardView.TimeMs = &timeMs
	}

	view.Card = cardView
	return view, nil
}
