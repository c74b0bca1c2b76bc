package app

import (
	"encoding/json"
	"time"

	"github.com/dkeye/DigitalRoom/internal/app/clock"
	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
)

// PlaybackUpdate is a validated DJ report. Empty Track, Title and Theme
// leave the current values in place.
type PlaybackUpdate struct {
	Track     string
	Title     string
	Theme     json.RawMessage
	IsPlaying bool
	Seek      time.Duration
}

// Playback is the authoritative track and timeline of the room.
type Playback struct {
	track        string
	title        string
	theme        json.RawMessage
	timeline     clock.Timeline
	lastUpdateAt time.Time
	announcement string
	tolerance    time.Duration
}

func NewPlayback(tolerance time.Duration) *Playback {
	if tolerance <= 0 {
		tolerance = clock.DefaultDriftTolerance
	}
	return &Playback{tolerance: tolerance}
}

// Apply folds u into the state at now. Returns true when the timeline
// anchor was reset.
func (p *Playback) Apply(u PlaybackUpdate, now time.Time) bool {
	if u.Track != "" {
		p.track = u.Track
	}
	if u.Title != "" {
		p.title = u.Title
	}
	resync := false
	if u.IsPlaying {
		resync = p.timeline.Play(u.Seek, now, p.tolerance)
	} else {
		p.timeline.Pause(u.Seek)
	}
	if len(u.Theme) > 0 {
		p.theme = u.Theme
	}
	p.lastUpdateAt = now
	return resync
}

func (p *Playback) HasTrack() bool { return p.track != "" }

func (p *Playback) Timeline() clock.Timeline { return p.timeline }

func (p *Playback) SetAnnouncement(text string) { p.announcement = text }

// State renders a copy of the room state with the given DJ binding.
func (p *Playback) State(djID core.SessionID, djName string) domain.RoomState {
	return domain.RoomState{
		CurrentTrack: p.track,
		TrackTitle:   p.title,
		CurrentTheme: p.theme,
		IsPlaying:    p.timeline.Playing,
		StartedAt:    p.timeline.StartedAt,
		PausedAt:     p.timeline.PausedAt,
		DJID:         string(djID),
		DJName:       djName,
		Announcement: p.announcement,
		LastUpdateAt: p.lastUpdateAt,
	}
}
