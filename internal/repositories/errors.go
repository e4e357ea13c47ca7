package repositories

import "errors"

var (
	ErrChatNotFound    = errors.New("chat not found")
	ErrMemberNotFound  = errors.New("member not found")
	ErrMessageNotFound = errors.New("message not found")
	ErrUserNotFound    = errors.New("user not found")
	ErrEventNotFound   = errors.New("event not found")

	ErrAlreadyMember    = errors.New("already an active member")
	ErrAlreadyPinned    = errors.New("message already pinned")
	ErrAlreadyUnpinned  = errors.New("message already unpinned")
	ErrPinLimitExceeded = errors.New("pin limit exceeded")

	ErrForbidden    = errors.New("forbidden")
	ErrEmptyMessage = errors.New("message has no text or attachment")
)
