package util

import "errors"

var (
	ErrUserNotFound    = errors.New("user not found")
	ErrEmailRegistered = errors.New("该邮箱已被注册")

	ErrDeckNotFound        = errors.New("deck not found")
	ErrCardNotFound        = errors.New("flashcard not found")
	ErrNoPlayableCards     = errors.New("deck has no playable flashcards")
	ErrDailyLimitExhausted = errors.New("daily practice limits exhausted")
	ErrNothingAvailable    = errors.New("nothing available to practice")

	ErrSessionNotFound   = errors.New("practice session not found")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrSessionEnded      = errors.New("practice session already ended")
	ErrAnswerRequired    = errors.New("current card must be answered before advancing")
	ErrInvalidTransition = errors.New("invalid practice event for current state")
)
