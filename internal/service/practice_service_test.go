package service

import (
	"errors"
	"flashdeck_backend/internal/model"
	"flashdeck_backend/internal/repository"
	"flashdeck_backend/internal/util"
	"testing"
	"time"

	"gorm.io/gorm"
)

type practiceFixture struct {
	db    *gorm.DB
	svc   *PracticeService
	nowAt time.Time
}

// newPracticeFixture 固定时钟锚在今天 UTC 正午：会话行的 CreatedAt 来自
// 真实墙钟，把假时钟放在同一 UTC 日的中午可以让两者始终同日。
func newPracticeFixture(t *testing.T) *practiceFixture {
	t.Helper()
	db := newTestDB(t)

	scheduler := NewSchedulerService(
		repository.NewScheduleRepository(db),
		repository.NewSettingsRepository(db),
	)
	svc := NewPracticeService(
		repository.NewDeckRepository(db),
		repository.NewFlashcardRepository(db),
		repository.NewSessionRepository(db),
		repository.NewAttemptRepository(db),
		repository.NewScheduleRepository(db),
		repository.NewSettingsRepository(db),
		scheduler,
		db,
	)

	fx := &practiceFixture{
		db:    db,
		svc:   svc,
		nowAt: utcDayStart(time.Now()).Add(12 * time.Hour),
	}
	svc.now = func() time.Time { return fx.nowAt }
	return fx
}

func (fx *practiceFixture) advance(d time.Duration) {
	fx.nowAt = fx.nowAt.Add(d)
}

func (fx *practiceFixture) createDeck(t *testing.T, userID uint, name string) *model.Deck {
	t.Helper()
	deck := &model.Deck{UserID: userID, Name: name}
	if err := fx.db.Create(deck).Error; err != nil {
		t.Fatalf("create deck: %v", err)
	}
	return deck
}

func (fx *practiceFixture) createCard(t *testing.T, deckID uint, front, back string) *model.Flashcard {
	t.Helper()
	card := &model.Flashcard{DeckID: deckID, Kind: model.CardBasic, Front: front, Back: back}
	if err := fx.db.Create(card).Error; err != nil {
		t.Fatalf("create card: %v", err)
	}
	return card
}

func (fx *practiceFixture) loadSession(t *testing.T, id string) *model.PracticeSession {
	t.Helper()
	var session model.PracticeSession
	if err := fx.db.First(&session, "id = ?", id).Error; err != nil {
		t.Fatalf("load session %s: %v", id, err)
	}
	return &session
}

func (fx *practiceFixture) apply(t *testing.T, userID uint, sessionID string, event PracticeEvent) *SessionView {
	t.Helper()
	view, err := fx.svc.ApplyEvent(userID, sessionID, event)
	if err != nil {
		t.Fatalf("ApplyEvent(%s): %v", event.Type, err)
	}
	checkIndexInvariant(t, view)
	return view
}

func checkIndexInvariant(t *testing.T, v *SessionView) {
	t.Helper()
	if v.ViewIndex < 0 || v.ViewIndex > v.ProgressIndex || v.ProgressIndex > v.QueueLength {
		t.Fatalf("index invariant violated: view=%d progress=%d queue=%d", v.ViewIndex, v.ProgressIndex, v.QueueLength)
	}
}

func boolPtr(b bool) *bool { return &b }
func intPtr(i int) *int    { return &i }

func TestCreateOrResumeIdempotentSameDay(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Biology")
	fx.createCard(t, deck.ID, "cell", "smallest unit of life")
	fx.createCard(t, deck.ID, "mitochondria", "powerhouse")

	first, err := fx.svc.CreateOrResume(1, deck.ID)
	if err != nil {
		t.Fatalf("first CreateOrResume: %v", err)
	}
	if first.QueueLength != 2 {
		t.Errorf("queueLength = %d, want 2", first.QueueLength)
	}
	if first.State != model.StateIntro || first.Status != model.SessionActive {
		t.Errorf("state/status = %s/%s, want intro/active", first.State, first.Status)
	}

	fx.advance(2 * time.Hour)
	second, err := fx.svc.CreateOrResume(1, deck.ID)
	if err != nil {
		t.Fatalf("second CreateOrResume: %v", err)
	}
	if second.SessionID != first.SessionID {
		t.Errorf("second call created new session %s, want resumed %s", second.SessionID, first.SessionID)
	}
}

func TestCreateOrResumeDeckValidation(t *testing.T) {
	fx := newPracticeFixture(t)
	other := fx.createDeck(t, 2, "Not yours")
	fx.createCard(t, other.ID, "q", "a")

	archived := &model.Deck{UserID: 1, Name: "Old", Archived: true}
	if err := fx.db.Create(archived).Error; err != nil {
		t.Fatalf("create archived deck: %v", err)
	}
	fx.createCard(t, archived.ID, "q", "a")

	tests := []struct {
		name   string
		deckID uint
	}{
		{"missing deck", 9999},
		{"foreign deck", other.ID},
		{"archived deck", archived.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fx.svc.CreateOrResume(1, tt.deckID)
			if !errors.Is(err, util.ErrDeckNotFound) {
				t.Errorf("err = %v, want ErrDeckNotFound", err)
			}
		})
	}
}

func TestCreateOrResumeNoPlayableCards(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Drafts")
	fx.createCard(t, deck.ID, "front only", "")
	fx.createCard(t, deck.ID, "", "back only")
	fx.createCard(t, deck.ID, "   ", "  \t ")
	// 正面只有制表符的卡片同样不可练习
	fx.createCard(t, deck.ID, "\t", "answer")

	_, err := fx.svc.CreateOrResume(1, deck.ID)
	if !errors.Is(err, util.ErrNoPlayableCards) {
		t.Errorf("err = %v, want ErrNoPlayableCards", err)
	}
}

func TestCreateOrResumeDailyLimitExhausted(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Capped")
	fx.createCard(t, deck.ID, "q", "a")

	saveSettings(t, fx.db, &model.UserSettings{
		UserID:            1,
		BaseIntervalMs:    1800000,
		RewardMultiplier:  1.8,
		PenaltyMultiplier: 0.6,
		RequiredTimeMs:    10000,
		TimeHistoryLimit:  50,
		DailyNovelLimit:   0,
		DailyReviewLimit:  0,
	})

	_, err := fx.svc.CreateOrResume(1, deck.ID)
	if !errors.Is(err, util.ErrDailyLimitExhausted) {
		t.Errorf("err = %v, want ErrDailyLimitExhausted", err)
	}
}

func TestCreateOrResumeNovelCapLimitsQueue(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Big deck")
	for i := 0; i < 5; i++ {
		fx.createCard(t, deck.ID, "front", "back")
	}

	saveSettings(t, fx.db, &model.UserSettings{
		UserID:            1,
		BaseIntervalMs:    1800000,
		RewardMultiplier:  1.8,
		PenaltyMultiplier: 0.6,
		RequiredTimeMs:    10000,
		TimeHistoryLimit:  50,
		DailyNovelLimit:   2,
		DailyReviewLimit:  200,
	})

	view, err := fx.svc.CreateOrResume(1, deck.ID)
	if err != nil {
		t.Fatalf("CreateOrResume: %v", err)
	}
	if view.QueueLength != 2 {
		t.Errorf("queueLength = %d, want 2 (novel cap)", view.QueueLength)
	}
}

func TestCreateOrResumeQueueOrdering(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Mixed")
	cardA := fx.createCard(t, deck.ID, "a", "1") // review, wide interval
	cardB := fx.createCard(t, deck.ID, "b", "2") // review, narrow interval
	cardC := fx.createCard(t, deck.ID, "c", "3") // novel

	yesterday := fx.nowAt.AddDate(0, 0, -1)
	for i, card := range []*model.Flashcard{cardA, cardB} {
		attempt := &model.Attempt{
			SessionID:       "legacy-session",
			Position:        i,
			UserID:          1,
			DeckID:          deck.ID,
			FlashcardID:     card.ID,
			IsNovel:         true,
			AnsweredCorrect: true,
			TimeMs:          4000,
			AnsweredAt:      yesterday,
		}
		if err := fx.db.Create(attempt).Error; err != nil {
			t.Fatalf("seed attempt: %v", err)
		}
	}
	overdue := fx.nowAt.Add(-time.Hour)
	schedules := []*model.FlashcardSchedule{
		{UserID: 1, FlashcardID: cardA.ID, DueAt: overdue, IntervalMs: 2000000, PrevIntervalMs: 1800000},
		{UserID: 1, FlashcardID: cardB.ID, DueAt: overdue, IntervalMs: 1000000, PrevIntervalMs: 1800000},
	}
	for _, s := range schedules {
		if err := fx.db.Create(s).Error; err != nil {
			t.Fatalf("seed schedule: %v", err)
		}
	}

	view, err := fx.svc.CreateOrResume(1, deck.ID)
	if err != nil {
		t.Fatalf("CreateOrResume: %v", err)
	}
	if view.QueueLength != 3 {
		t.Fatalf("queueLength = %d, want 3", view.QueueLength)
	}

	var entries []model.QueueEntry
	if err := fx.db.Where("session_id = ?", view.SessionID).Order("position ASC").Find(&entries).Error; err != nil {
		t.Fatalf("load queue: %v", err)
	}
	// 间隔最小的复习卡排最前，新卡排在所有复习卡之后
	wantOrder := []uint{cardB.ID, cardA.ID, cardC.ID}
	for i, want := range wantOrder {
		if entries[i].FlashcardID != want {
			t.Errorf("position %d = card %d, want card %d", i, entries[i].FlashcardID, want)
		}
	}
	if entries[0].IsNovel || entries[1].IsNovel || !entries[2].IsNovel {
		t.Errorf("isNovel flags = %v/%v/%v, want false/false/true", entries[0].IsNovel, entries[1].IsNovel, entries[2].IsNovel)
	}
}

func TestCreateOrResumeClosesStaleSession(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Daily")
	fx.createCard(t, deck.ID, "q", "a")

	first, err := fx.svc.CreateOrResume(1, deck.ID)
	if err != nil {
		t.Fatalf("first CreateOrResume: %v", err)
	}

	// 把会话挪到前天，模拟隔日残留
	twoDaysAgo := fx.nowAt.AddDate(0, 0, -2)
	err = fx.db.Model(&model.PracticeSession{}).
		Where("id = ?", first.SessionID).
		Update("created_at", twoDaysAgo).Error
	if err != nil {
		t.Fatalf("backdate session: %v", err)
	}

	second, err := fx.svc.CreateOrResume(1, deck.ID)
	if err != nil {
		t.Fatalf("second CreateOrResume: %v", err)
	}
	if second.SessionID == first.SessionID {
		t.Fatal("stale session was resumed, want a fresh one")
	}

	stale := fx.loadSession(t, first.SessionID)
	if stale.Status != model.SessionEnded || stale.State != model.StateDone {
		t.Errorf("stale session status/state = %s/%s, want ended/done", stale.Status, stale.State)
	}
}

func TestFullSessionWalk(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Walk")
	card1 := fx.createCard(t, deck.ID, "q1", "a1")
	card2 := fx.createCard(t, deck.ID, "q2", "a2")

	view, err := fx.svc.CreateOrResume(1, deck.ID)
	if err != nil {
		t.Fatalf("CreateOrResume: %v", err)
	}
	sessionID := view.SessionID
	if view.Card == nil || view.Card.FlashcardID != card1.ID {
		t.Fatalf("initial card = %+v, want card %d", view.Card, card1.ID)
	}

	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	if view.State != model.StateFront {
		t.Fatalf("state after start = %s, want front", view.State)
	}

	fx.advance(7 * time.Second)
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	if view.State != model.StateBack {
		t.Fatalf("state after reveal = %s, want back", view.State)
	}

	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	if view.Card == nil || !view.Card.Answered {
		t.Fatal("card not marked answered after answer event")
	}
	if view.Card.TimeMs == nil || *view.Card.TimeMs != 7000 {
		t.Errorf("timeMs = %v, want frozen 7000", view.Card.TimeMs)
	}
	if view.State != model.StateBack {
		t.Errorf("state after answer = %s, want still back", view.State)
	}

	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAdvance})
	if view.ProgressIndex != 1 || view.ViewIndex != 1 || view.State != model.StateIntro {
		t.Fatalf("after advance: progress=%d view=%d state=%s, want 1/1/intro", view.ProgressIndex, view.ViewIndex, view.State)
	}
	if view.Card == nil || view.Card.FlashcardID != card2.ID {
		t.Fatalf("card after advance = %+v, want card %d", view.Card, card2.ID)
	}

	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(false)})
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAdvance})

	if view.Status != model.SessionEnded || view.State != model.StateDone {
		t.Errorf("final status/state = %s/%s, want ended/done", view.Status, view.State)
	}
	if view.ProgressIndex != 2 || view.ViewIndex != 2 {
		t.Errorf("final progress/view = %d/%d, want 2/2", view.ProgressIndex, view.ViewIndex)
	}
	if view.Card != nil {
		t.Errorf("final card = %+v, want nil past end of queue", view.Card)
	}
	if view.NovelUsedToday != 2 {
		t.Errorf("novelUsedToday = %d, want 2", view.NovelUsedToday)
	}

	for _, cardID := range []uint{card1.ID, card2.ID} {
		var count int64
		fx.db.Model(&model.FlashcardSchedule{}).Where("user_id = ? AND flashcard_id = ?", 1, cardID).Count(&count)
		if count != 1 {
			t.Errorf("schedule rows for card %d = %d, want 1", cardID, count)
		}
	}
}

func TestBenignReplaysAreNoops(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Replay")
	fx.createCard(t, deck.ID, "q", "a")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)
	sessionID := view.SessionID

	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	// 重复 start 不应改变任何状态
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	if view.State != model.StateFront {
		t.Errorf("state after duplicate start = %s, want front", view.State)
	}

	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	if view.State != model.StateBack {
		t.Errorf("state after duplicate reveal = %s, want back", view.State)
	}

	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAdvance})
	if view.Status != model.SessionEnded {
		t.Fatalf("status = %s, want ended", view.Status)
	}
	// 会话结束后的 advance 重放是良性 no-op
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAdvance})
	if view.Status != model.SessionEnded || view.State != model.StateDone {
		t.Errorf("replayed advance changed status/state to %s/%s", view.Status, view.State)
	}
}

func TestAdvanceWithoutAnswerRejected(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Strict")
	fx.createCard(t, deck.ID, "q", "a")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)
	sessionID := view.SessionID

	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})

	_, err := fx.svc.ApplyEvent(1, sessionID, PracticeEvent{Type: EventAdvance})
	if !errors.Is(err, util.ErrAnswerRequired) {
		t.Errorf("err = %v, want ErrAnswerRequired", err)
	}

	after, err := fx.svc.GetView(1, sessionID, false)
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	if after.State != model.StateBack || after.ProgressIndex != 0 {
		t.Errorf("state/progress after rejected advance = %s/%d, want back/0", after.State, after.ProgressIndex)
	}
}

func TestAnswerBeforeRevealRejected(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Strict")
	fx.createCard(t, deck.ID, "q", "a")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)
	fx.apply(t, 1, view.SessionID, PracticeEvent{Type: EventStart})

	_, err := fx.svc.ApplyEvent(1, view.SessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	if !errors.Is(err, util.ErrInvalidTransition) {
		t.Errorf("err = %v, want ErrInvalidTransition", err)
	}
}

func TestAnswerMissingPayloadRejected(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Strict")
	fx.createCard(t, deck.ID, "q", "a")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)

	_, err := fx.svc.ApplyEvent(1, view.SessionID, PracticeEvent{Type: EventAnswer})
	if !errors.Is(err, util.ErrInvalidTransition) {
		t.Errorf("answer without correct: err = %v, want ErrInvalidTransition", err)
	}
	_, err = fx.svc.ApplyEvent(1, view.SessionID, PracticeEvent{Type: EventNavigate})
	if !errors.Is(err, util.ErrInvalidTransition) {
		t.Errorf("navigate without to: err = %v, want ErrInvalidTransition", err)
	}
}

func TestApplyEventWrongOwner(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Private")
	fx.createCard(t, deck.ID, "q", "a")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)

	_, err := fx.svc.ApplyEvent(2, view.SessionID, PracticeEvent{Type: EventStart})
	if !errors.Is(err, util.ErrPermissionDenied) {
		t.Errorf("err = %v, want ErrPermissionDenied", err)
	}
	_, err = fx.svc.GetView(2, view.SessionID, false)
	if !errors.Is(err, util.ErrSessionNotFound) {
		t.Errorf("GetView err = %v, want ErrSessionNotFound", err)
	}
}

func TestDuplicateAnswerCorrectsInsteadOfCompounding(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Dup")
	card := fx.createCard(t, deck.ID, "q", "a")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)
	sessionID := view.SessionID

	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.advance(3 * time.Second)
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})

	schedule := mustFindSchedule(t, fx.svc.Scheduler, 1, card.ID)
	if schedule.IntervalMs != 3240000 {
		t.Fatalf("interval after answer = %d, want 3240000", schedule.IntervalMs)
	}

	// 同一槽位重复 answer：改判而不是叠加
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(false)})

	schedule = mustFindSchedule(t, fx.svc.Scheduler, 1, card.ID)
	if schedule.IntervalMs != 1080000 {
		t.Errorf("interval after duplicate answer = %d, want 1080000 recomputed from 1800000", schedule.IntervalMs)
	}
	if len(schedule.ReviewHistory) != 1 {
		t.Errorf("history length = %d, want 1 entry per slot", len(schedule.ReviewHistory))
	}

	var attempts int64
	fx.db.Model(&model.Attempt{}).Where("session_id = ?", sessionID).Count(&attempts)
	if attempts != 1 {
		t.Errorf("attempt rows = %d, want 1", attempts)
	}

	// 再改回对：错改对不重新奖励，间隔回到作答前的基准值
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	schedule = mustFindSchedule(t, fx.svc.Scheduler, 1, card.ID)
	if schedule.IntervalMs != 1800000 {
		t.Errorf("interval after re-correction = %d, want 1800000", schedule.IntervalMs)
	}
}

func TestNavigateAndPastProjection(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Nav")
	card1 := fx.createCard(t, deck.ID, "q1", "a1")
	fx.createCard(t, deck.ID, "q2", "a2")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)
	sessionID := view.SessionID

	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAdvance})

	// 回看已判定的槽位：派生 past 状态，进度不动
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventNavigate, To: intPtr(0)})
	if view.State != model.StatePast {
		t.Errorf("state at past slot = %s, want past", view.State)
	}
	if view.ViewIndex != 0 || view.ProgressIndex != 1 {
		t.Errorf("view/progress = %d/%d, want 0/1", view.ViewIndex, view.ProgressIndex)
	}
	if view.Card == nil || view.Card.FlashcardID != card1.ID || !view.Card.Answered {
		t.Errorf("past card = %+v, want answered card %d", view.Card, card1.ID)
	}

	// navigate 超出 progressIndex 会被钳回当前槽位
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventNavigate, To: intPtr(99)})
	if view.ViewIndex != 1 || view.State != model.StateIntro {
		t.Errorf("after clamped navigate: view=%d state=%s, want 1/intro", view.ViewIndex, view.State)
	}

	// 当前槽位已判定时，回到它显示 back 而不是 intro
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(false)})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventNavigate, To: intPtr(0)})
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventNavigate, To: intPtr(1)})
	if view.State != model.StateBack {
		t.Errorf("state back at answered live slot = %s, want back", view.State)
	}
}

func TestNavigateAwayResetsUnansweredSlot(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Nav")
	fx.createCard(t, deck.ID, "q1", "a1")
	fx.createCard(t, deck.ID, "q2", "a2")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)
	sessionID := view.SessionID

	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAdvance})

	// 当前槽位停在 front 计时中，离开后计时器必须清零
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventNavigate, To: intPtr(0)})

	session := fx.loadSession(t, sessionID)
	if session.State != model.StateIntro {
		t.Errorf("stored state = %s, want intro after leaving live slot", session.State)
	}
	if session.FrontStartedAt != nil || session.FrontElapsedMs != 0 {
		t.Errorf("timer not cleared: startedAt=%v elapsed=%d", session.FrontStartedAt, session.FrontElapsedMs)
	}

	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventNavigate, To: intPtr(1)})
	if view.State != model.StateIntro {
		t.Errorf("state back at live slot = %s, want intro", view.State)
	}
}

func TestSetOutcomeOnPastSlot(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Outcome")
	card1 := fx.createCard(t, deck.ID, "q1", "a1")
	fx.createCard(t, deck.ID, "q2", "a2")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)
	sessionID := view.SessionID

	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.advance(3 * time.Second)
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAdvance})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventNavigate, To: intPtr(0)})

	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventSetOutcome, Correct: boolPtr(false)})
	if view.Card == nil || view.Card.AnsweredCorrect == nil || *view.Card.AnsweredCorrect {
		t.Errorf("past card outcome = %+v, want corrected to incorrect", view.Card)
	}
	// timeMs 不因改判变化
	if view.Card.TimeMs == nil || *view.Card.TimeMs != 3000 {
		t.Errorf("timeMs = %v, want original 3000", view.Card.TimeMs)
	}

	schedule := mustFindSchedule(t, fx.svc.Scheduler, 1, card1.ID)
	if schedule.IntervalMs != 1080000 {
		t.Errorf("interval after setOutcome = %d, want 1080000", schedule.IntervalMs)
	}

	// 当前槽位上的 setOutcome 是良性 no-op
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventNavigate, To: intPtr(1)})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventSetOutcome, Correct: boolPtr(true)})
	schedule = mustFindSchedule(t, fx.svc.Scheduler, 1, card1.ID)
	if schedule.IntervalMs != 1080000 {
		t.Errorf("interval changed by no-op setOutcome: %d", schedule.IntervalMs)
	}
}

func TestGetViewResetRevealState(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Reset")
	fx.createCard(t, deck.ID, "q1", "a1")
	fx.createCard(t, deck.ID, "q2", "a2")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)
	sessionID := view.SessionID

	// 未判定的 front 槽位：reset 回滚到 intro
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	view, err := fx.svc.GetView(1, sessionID, true)
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	if view.State != model.StateIntro {
		t.Errorf("state after reset = %s, want intro", view.State)
	}
	session := fx.loadSession(t, sessionID)
	if session.FrontStartedAt != nil {
		t.Errorf("frontStartedAt = %v, want cleared", session.FrontStartedAt)
	}

	// 已判定的 back 槽位：reset 不回滚
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	view, err = fx.svc.GetView(1, sessionID, true)
	if err != nil {
		t.Fatalf("GetView: %v", err)
	}
	if view.State != model.StateBack {
		t.Errorf("state after reset on answered slot = %s, want back", view.State)
	}
}

func TestAnswerAfterSessionEnded(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Done")
	fx.createCard(t, deck.ID, "q", "a")

	view, _ := fx.svc.CreateOrResume(1, deck.ID)
	sessionID := view.SessionID

	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAdvance})

	_, err := fx.svc.ApplyEvent(1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	if !errors.Is(err, util.ErrSessionEnded) {
		t.Errorf("err = %v, want ErrSessionEnded", err)
	}
}

func TestViewSurvivesCardDeletionMidSession(t *testing.T) {
	fx := newPracticeFixture(t)
	deck := fx.createDeck(t, 1, "Shrinking")
	card1 := fx.createCard(t, deck.ID, "q1", "a1")
	card2 := fx.createCard(t, deck.ID, "q2", "a2")

	view, err := fx.svc.CreateOrResume(1, deck.ID)
	if err != nil {
		t.Fatalf("CreateOrResume: %v", err)
	}
	sessionID := view.SessionID

	// 会话进行中删除当前卡片：视图降级为无卡片，而不是报内部错误
	if err := fx.db.Delete(&model.Flashcard{}, card1.ID).Error; err != nil {
		t.Fatalf("delete card: %v", err)
	}

	view, err = fx.svc.GetView(1, sessionID, false)
	if err != nil {
		t.Fatalf("GetView after card deletion: %v", err)
	}
	if view.Card != nil {
		t.Errorf("card = %+v, want nil for deleted card", view.Card)
	}
	if view.QueueLength != 2 {
		t.Errorf("queueLength = %d, want frozen 2", view.QueueLength)
	}

	// 事件照常可用，导航到仍然存在的卡片后视图恢复
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventStart})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventRevealBack})
	fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAnswer, Correct: boolPtr(true)})
	view = fx.apply(t, 1, sessionID, PracticeEvent{Type: EventAdvance})
	if view.Card == nil || view.Card.FlashcardID != card2.ID {
		t.Errorf("card after advance = %+v, want card %d", view.Card, card2.ID)
	}
}

func TestGetViewUnknownSession(t *testing.T) {
	fx := newPracticeFixture(t)

	_, err := fx.svc.GetView(1, "no-such-session", false)
	if !errors.Is(err, util.ErrSessionNotFound) {
		t.Errorf("err = %v, want ErrSessionNotFound", err)
	}
}
