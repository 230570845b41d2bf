package repo

import "errors"

var (
	ErrRecordingNotFound      = errors.New("recording not found")
	ErrRecordingAlreadyExists = errors.New("recording already exists")
	ErrInternal               = errors.New("db error")
)
