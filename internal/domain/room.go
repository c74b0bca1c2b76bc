package domain

import (
	"encoding/json"
	"time"
)

// RoomState is a point-in-time copy of the shared room.
// Exactly one of StartedAt (playing) or PausedAt (paused) drives the position.
type RoomState struct {
	CurrentTrack string
	TrackTitle   string
	CurrentTheme json.RawMessage
	IsPlaying    bool
	StartedAt    time.Time
	PausedAt     time.Duration
	DJID         string
	DJName       string
	Announcement string
	LastUpdateAt time.Time
}
