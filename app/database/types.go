package database

import (
	"time"
)

type Message struct {
	ID           int64
	TargetID     int
	Identity     string // hex dedup identity, unique per target
	Name         string
	Text         string
	SentAt       time.Time
	IsFiltered   bool
	FilterReason string
	CreatedAt    time.Time
}
