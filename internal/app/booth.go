package app

import (
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/rs/zerolog/log"
)

type BoothState int

const (
	Vacant BoothState = iota
	Held
)

func (s BoothState) String() string {
	if s == Held {
		return "held"
	}
	return "vacant"
}

// Verdict is the outcome of authorizing a playback update.
type Verdict int

const (
	Rejected Verdict = iota
	Accepted
	// AcceptedHealed means the submitter was accepted by name and the booth
	// has been rebound to it.
	AcceptedHealed
)

// VacateReason tells why the reconciler emptied the booth.
type VacateReason string

const (
	NotVacated  VacateReason = ""
	HolderGone  VacateReason = "holder_gone"
	HoldExpired VacateReason = "hold_expired"
)

// Booth is the DJ authority. At most one connection holds it; the holder's
// username is kept so a reconnecting holder can take it back.
type Booth struct {
	holder core.SessionID
	name   string
	since  time.Time
}

func NewBooth() *Booth { return &Booth{} }

func (b *Booth) State() BoothState {
	if b.holder == "" {
		return Vacant
	}
	return Held
}

// Holder returns the bound connection and username, empty when vacant.
func (b *Booth) Holder() (core.SessionID, string) { return b.holder, b.name }

// Since is when the current holder was granted the booth.
func (b *Booth) Since() time.Time { return b.since }

// Claim grants the booth to sid unless another connection holds it.
// Reclaiming by the current holder succeeds and keeps the original grant time.
func (b *Booth) Claim(sid core.SessionID, name string, now time.Time) bool {
	if b.holder != "" && b.holder != sid {
		log.Info().Str("module", "app.booth").Str("sid", string(sid)).Str("holder", b.name).Msg("claim rejected, booth busy")
		return false
	}
	if b.holder != sid {
		b.since = now
	}
	b.holder, b.name = sid, name
	log.Info().Str("module", "app.booth").Str("sid", string(sid)).Str("dj", name).Msg("booth assigned")
	return true
}

// HealsFor is the healing guard: the booth is held and bound to username.
func (b *Booth) HealsFor(username string) bool {
	return b.holder != "" && username != "" && username == b.name
}

// Heal rebinds the booth to sid when username matches the bound name and
// sid is not already the holder.
func (b *Booth) Heal(sid core.SessionID, username string) bool {
	if !b.HealsFor(username) || b.holder == sid {
		return false
	}
	log.Info().Str("module", "app.booth").Str("sid", string(sid)).Str("from", string(b.holder)).Str("dj", username).Msg("session healed")
	b.holder = sid
	return true
}

// Authorize decides whether sid (bound to username, possibly empty) may
// submit a playback update, healing the binding when accepted by name.
func (b *Booth) Authorize(sid core.SessionID, username string) Verdict {
	switch {
	case b.holder != "" && b.holder == sid:
		return Accepted
	case b.Heal(sid, username):
		return AcceptedHealed
	default:
		return Rejected
	}
}

// Reset vacates the booth. Returns whether it was held.
func (b *Booth) Reset() bool {
	held := b.holder != ""
	b.holder, b.name, b.since = "", "", time.Time{}
	return held
}

// Reconcile vacates the booth when its holder has no live connection, or
// when maxHold is positive and has elapsed since the grant.
func (b *Booth) Reconcile(alive func(core.SessionID) bool, now time.Time, maxHold time.Duration) VacateReason {
	if b.holder == "" {
		return NotVacated
	}
	reason := NotVacated
	switch {
	case !alive(b.holder):
		reason = HolderGone
	case maxHold > 0 && now.Sub(b.since) >= maxHold:
		reason = HoldExpired
	default:
		return NotVacated
	}
	log.Info().Str("module", "app.booth").Str("sid", string(b.holder)).Str("dj", b.name).Str("reason", string(reason)).Msg("booth vacated")
	b.Reset()
	return reason
}
