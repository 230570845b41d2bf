package entity

import "time"

// ElementaryStream это одна дорожка из таблицы PMT
type ElementaryStream struct {
	PID        uint16 `json:"pid"`
	StreamType uint8  `json:"stream_type"`
}

type Program struct {
	Number  uint16             `json:"number"`
	PMTPID  uint16             `json:"pmt_pid"`
	PCRPID  uint16             `json:"pcr_pid"`
	Streams []ElementaryStream `json:"streams"`
}

// StreamInfo описывает структуру MPEG-TS потока, найденную при разборе таблиц PAT/PMT
type StreamInfo struct {
	SessionID string    `json:"session_id"`
	Programs  []Program `json:"programs"`
	PESUnits  int64     `json:"pes_units"`
	UpdatedAt time.Time `json:"updated_at"`
	Error     string    `json:"error,omitempty"`
}

type Status struct {
	Subscribers  int         `json:"subscribers"`
	Devices      int         `json:"devices"`
	ControlPeers int         `json:"control_peers"`
	Producers    int         `json:"producers"`
	Stream       *StreamInfo `json:"stream,omitempty"`
}
