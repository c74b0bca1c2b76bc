// Package clock anchors playback to server wall time and helps clients
// translate it into their own clock.
package clock

import "time"

// DefaultDriftTolerance is how far a reported position may wander from the
// anchored timeline before the anchor is reset.
const DefaultDriftTolerance = 2000 * time.Millisecond

// Timeline is a resumable playback position. While Playing, StartedAt is the
// server instant position zero would have been played; otherwise PausedAt is
// the position captured at the last pause.
type Timeline struct {
	Playing   bool
	StartedAt time.Time
	PausedAt  time.Duration
}

// Position is the playback offset at now.
func (t Timeline) Position(now time.Time) time.Duration {
	if !t.Playing {
		return t.PausedAt
	}
	if t.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(t.StartedAt)
}

// Drift is |(now - StartedAt) - seek|.
func (t Timeline) Drift(seek time.Duration, now time.Time) time.Duration {
	return abs(now.Sub(t.StartedAt) - seek)
}

// Play applies a playing report at seek. The anchor moves only when playback
// was not running before or the report drifted past tolerance. Returns true
// when the anchor moved.
func (t *Timeline) Play(seek time.Duration, now time.Time, tolerance time.Duration) bool {
	resync := !t.Playing || t.Drift(seek, now) > tolerance
	if resync {
		t.StartedAt = now.Add(-seek)
	}
	t.Playing = true
	return resync
}

// Pause freezes the position at seek.
func (t *Timeline) Pause(seek time.Duration) {
	t.PausedAt = seek
	t.Playing = false
}

func abs(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
