package service

import (
	"flashdeck_backend/internal/model"
	"flashdeck_backend/internal/repository"
	"flashdeck_backend/pkg/logger"
	"math"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 区间与参数的钳制边界
const (
	MinIntervalMs     = int64(1000)         // 1 second
	MaxIntervalMs     = int64(315360000000) // 10 years (365-day years)
	MinMultiplier     = 0.001
	MaxMultiplier     = 1000.0
	MaxRequiredTimeMs = int64(3600000) // 1 hour
	MinHistoryLimit   = 1
	MaxHistoryLimit   = 1000
)

// ReviewInput 一次判定（或判定修正）的输入
type ReviewInput struct {
	Correct    bool
	TimeMs     int64
	AnsweredAt time.Time
}

// SchedulerService 自适应间隔调度器。
//
// 每次判定把当前间隔乘以奖励或惩罚系数得到下一个间隔；
// 修正已有判定时从 PrevIntervalMs 重算，替换而不是叠加先前的调整。
// 所有写入都发生在调用方持有会话行锁的事务内。
type SchedulerService struct {
	ScheduleRepo *repository.ScheduleRepository
	SettingsRepo *repository.SettingsRepository
}

func NewSchedulerService(scheduleRepo *repository.ScheduleRepository, settingsRepo *repository.SettingsRepository) *SchedulerService {
	return &SchedulerService{
		ScheduleRepo: scheduleRepo,
		SettingsRepo: settingsRepo,
	}
}

func clampInt64(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ClampSettings 把用户设置钳制到安全范围后返回副本，原值不动
func ClampSettings(s *model.UserSettings) model.UserSettings {
	out := *s
	out.BaseIntervalMs = clampInt64(out.BaseIntervalMs, MinIntervalMs, MaxIntervalMs)
	out.RewardMultiplier = clampFloat(out.RewardMultiplier, MinMultiplier, MaxMultiplier)
	out.PenaltyMultiplier = clampFloat(out.PenaltyMultiplier, MinMultiplier, MaxMultiplier)
	out.RequiredTimeMs = clampInt64(out.RequiredTimeMs, 0, MaxRequiredTimeMs)
	if out.TimeHistoryLimit < MinHistoryLimit {
		out.TimeHistoryLimit = MinHistoryLimit
	}
	if out.TimeHistoryLimit > MaxHistoryLimit {
		out.TimeHistoryLimit = MaxHistoryLimit
	}
	if out.DailyNovelLimit < 0 {
		out.DailyNovelLimit = 0
	}
	if out.DailyReviewLimit < 0 {
		out.DailyReviewLimit = 0
	}
	return out
}

// nextIntervalMs 取整用 math.Round（四舍五入、远离零），结果钳制到 [1s, 10y]
func nextIntervalMs(prevMs int64, multiplier float64) int64 {
	next := int64(math.Round(float64(prevMs) * multiplier))
	return clampInt64(next, MinIntervalMs, MaxIntervalMs)
}

func pickMultiplier(s *model.UserSettings, correct bool, timeMs int64) float64 {
	withinBudget := s.RequiredTimeMs <= 0 || timeMs <= s.RequiredTimeMs
	if correct && withinBudget {
		return s.RewardMultiplier
	}
	return s.PenaltyMultiplier
}

// RecordReview 记录一次全新判定并推进调度。
// 必须在含会话行锁的事务 tx 内调用（锁顺序始终为 会话→调度行）。
func (s *SchedulerService) RecordReview(tx *gorm.DB, userID, flashcardID uint, in ReviewInput) error {
	raw, err := s.SettingsRepo.FindByUserTx(tx, userID)
	if err != nil {
		return err
	}
	settings := ClampSettings(raw)

	multiplier := pickMultiplier(&settings, in.Correct, in.TimeMs)

	schedule, err := s.ScheduleRepo.FindForUpdate(tx, userID, flashcardID)
	if err != nil {
		return err
	}

	prevInterval := settings.BaseIntervalMs
	if schedule != nil {
		prevInterval = schedule.IntervalMs
	}

	interval := nextIntervalMs(prevInterval, multiplier)
	dueAt := in.AnsweredAt.Add(time.Duration(interval) * time.Millisecond)
	answeredAt := in.AnsweredAt

	if schedule == nil {
		schedule = &model.FlashcardSchedule{
			UserID:      userID,
			FlashcardID: flashcardID,
		}
	}

	// 当前间隔滚动进 prevIntervalMs —— 只在记录新判定时发生，修正时不滚动
	schedule.PrevIntervalMs = prevInterval
	schedule.IntervalMs = interval
	schedule.DueAt = dueAt
	schedule.LastMultiplier = multiplier
	schedule.ReviewHistory = appendBounded(schedule.ReviewHistory, model.ReviewEntry{Correct: in.Correct, TimeMs: in.TimeMs}, settings.TimeHistoryLimit)
	schedule.LastReviewTimeMs = in.TimeMs
	schedule.LastReviewCorrect = in.Correct
	schedule.PrevLastSeenAt = schedule.LastSeenAt
	schedule.LastSeenAt = &answeredAt

	if schedule.ID == 0 {
		err = s.ScheduleRepo.Create(tx, schedule)
	} else {
		err = s.ScheduleRepo.Save(tx, schedule)
	}
	if err != nil {
		return err
	}

	logger.Log.Debug("review recorded",
		zap.Uint("userId", userID),
		zap.Uint("flashcardId", flashcardID),
		zap.Bool("correct", in.Correct),
		zap.Int64("intervalMs", interval),
	)
	return nil
}

// CorrectReview 修正最近一次判定：替换最后一条历史记录，并从 PrevIntervalMs
// 重算间隔。PrevIntervalMs 保持不变，同一判定的再次修正仍以作答前的间隔为基准。
func (s *SchedulerService) CorrectReview(tx *gorm.DB, userID, flashcardID uint, in ReviewInput) error {
	schedule, err := s.ScheduleRepo.FindForUpdate(tx, userID, flashcardID)
	if err != nil {
		return err
	}
	if schedule == nil {
		// nothing recorded yet, nothing to correct
		return nil
	}

	raw, err := s.SettingsRepo.FindByUserTx(tx, userID)
	if err != nil {
		return err
	}
	settings := ClampSettings(raw)

	previousCorrect := schedule.LastReviewCorrect
	if n := len(schedule.ReviewHistory); n > 0 {
		previousCorrect = schedule.ReviewHistory[n-1].Correct
	}

	// 错改对不重新奖励：用户只是事后改判，不是重新作答，
	// 间隔保持为判定前的值，避免重复计入增长。
	multiplier := 1.0
	if !(!previousCorrect && in.Correct) {
		multiplier = pickMultiplier(&settings, in.Correct, in.TimeMs)
	}

	interval := nextIntervalMs(schedule.PrevIntervalMs, multiplier)
	answeredAt := in.AnsweredAt

	schedule.IntervalMs = interval
	schedule.DueAt = in.AnsweredAt.Add(time.Duration(interval) * time.Millisecond)
	schedule.LastMultiplier = multiplier
	if n := len(schedule.ReviewHistory); n > 0 {
		schedule.ReviewHistory[n-1] = model.ReviewEntry{Correct: in.Correct, TimeMs: in.TimeMs}
	} else {
		schedule.ReviewHistory = model.ReviewHistory{{Correct: in.Correct, TimeMs: in.TimeMs}}
	}
	schedule.LastReviewTimeMs = in.TimeMs
	schedule.LastReviewCorrect = in.Correct
	schedule.LastSeenAt = &answeredAt

	if err := s.ScheduleRepo.Save(tx, schedule); err != nil {
		return err
	}

	logger.Log.Debug("review corrected",
		zap.Uint("userId", userID),
		zap.Uint("flashcardId", flashcardID),
		zap.Bool("correct", in.Correct),
		zap.Int64("intervalMs", interval),
	)
	return nil
}

func appendBounded(history model.ReviewHistory, entry model.ReviewEntry, limit int) model.ReviewHistory {
	history = append(history, entry)
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	return history
}
