package usecase

import "errors"

var (
	ErrAccessDenied      = errors.New("access denied")
	ErrBadRequest        = errors.New("bad request")
	ErrNotFound          = errors.New("not found")
	ErrInternal          = errors.New("internal error")
	ErrSubscriberClosed  = errors.New("subscriber closed")
	ErrQueueFull         = errors.New("send queue full")
	ErrRecordingDisabled = errors.New("recording disabled")
)
