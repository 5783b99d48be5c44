package util

import "errors"

var (
	ErrUserNotFound       = errors.New("用户不存在")
	ErrEmailRegistered    = errors.New("该邮箱已被注册")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrCourseNotFound     = errors.New("course not found")
	ErrChapterNotFound    = errors.New("chapter not found")
	ErrChapterLocked      = errors.New("chapter locked: previous chapter quiz not passed")
	ErrAttemptNotFound    = errors.New("quiz attempt not found")
	ErrAttemptClosed      = errors.New("quiz attempt already submitted")
	ErrAttemptExpired     = errors.New("quiz attempt deadline passed")
	ErrQuestionNotInQuiz  = errors.New("question does not belong to this quiz")
	ErrInvalidAnswer      = errors.New("answer index out of range")
	ErrInvalidPosition    = errors.New("position indices must be non-negative")
	ErrAlreadyPurchased   = errors.New("course already purchased")
	ErrCourseNotFree      = errors.New("course is not free")
	ErrRedeemCodeInvalid  = errors.New("兑换码无效")
	ErrRedeemCodeUsedUp   = errors.New("兑换码已用完")
	ErrDepositNotFound    = errors.New("deposit not found")
	ErrDepositNotComplete = errors.New("deposit not completed yet")
	ErrDepositRejected    = errors.New("deposit rejected by gateway")
	ErrVideoImmutable     = errors.New("published video is immutable")
)
