package domain

import "time"

// StreamSession is one active screen broadcast.
type StreamSession struct {
	StreamerID   string    `json:"streamerId"`
	StreamerName string    `json:"streamerName"`
	StartedAt    time.Time `json:"-"`
}
