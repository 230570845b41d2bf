package entity

import "time"

type Recording struct {
	ID         string    `json:"id"`
	Path       string    `json:"path"`
	RemoteAddr string    `json:"remote_addr"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Bytes      int64     `json:"bytes"`
}
