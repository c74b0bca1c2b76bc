package clock

import "time"

// ListenerTolerance is the drift a listener accepts before seeking.
const ListenerTolerance = 1500 * time.Millisecond

// Skew is a one-shot client offset against the server clock, taken from the
// serverNow field of the init snapshot. Mid-session clock jumps are not
// tracked.
type Skew struct {
	offset time.Duration
}

// NewSkew computes offset = localNow - serverNow.
func NewSkew(localNow, serverNow time.Time) Skew {
	return Skew{offset: localNow.Sub(serverNow)}
}

func (s Skew) Offset() time.Duration { return s.offset }

// ServerNow maps a local reading to server time.
func (s Skew) ServerNow(localNow time.Time) time.Time {
	return localNow.Add(-s.offset)
}

// Target is where a listener should be at localNow.
func (s Skew) Target(t Timeline, localNow time.Time) time.Duration {
	return t.Position(s.ServerNow(localNow))
}

// NeedsSeek reports whether a listener at local should hard-seek to target.
// Paused timelines never seek; natural playback absorbs smaller drift.
func NeedsSeek(t Timeline, local, target, tolerance time.Duration) bool {
	return t.Playing && abs(local-target) > tolerance
}
