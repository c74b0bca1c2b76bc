// Package relay keeps signaling membership for the voice mesh and the
// screen share star. Payloads themselves are never stored.
package relay

import (
	"sort"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type voiceSeat struct {
	member domain.VoiceMember
	seq    uint64
}

// VoiceRoster is the set of connections in the voice channel.
type VoiceRoster struct {
	seats map[core.SessionID]*voiceSeat
	seq   uint64
}

func NewVoiceRoster() *VoiceRoster {
	return &VoiceRoster{seats: make(map[core.SessionID]*voiceSeat)}
}

// Join seats m and returns the other members, whom the joiner must call.
// Joining twice refreshes the display fields and keeps flags.
func (v *VoiceRoster) Join(m domain.VoiceMember) []core.SessionID {
	sid := core.SessionID(m.ID)
	if s, ok := v.seats[sid]; ok {
		m.Muted, m.Deafened = s.member.Muted, s.member.Deafened
		s.member = m
	} else {
		v.seq++
		v.seats[sid] = &voiceSeat{member: m, seq: v.seq}
		log.Info().Str("module", "relay.voice").Str("sid", m.ID).Msg("joined voice")
	}
	return lo.Without(v.order(), sid)
}

func (v *VoiceRoster) Leave(sid core.SessionID) bool {
	if _, ok := v.seats[sid]; !ok {
		return false
	}
	delete(v.seats, sid)
	log.Info().Str("module", "relay.voice").Str("sid", string(sid)).Msg("left voice")
	return true
}

// SetState updates mute and deafen flags of a seated member.
func (v *VoiceRoster) SetState(sid core.SessionID, muted, deafened bool) bool {
	s, ok := v.seats[sid]
	if !ok {
		return false
	}
	s.member.Muted, s.member.Deafened = muted, deafened
	return true
}

func (v *VoiceRoster) Has(sid core.SessionID) bool {
	_, ok := v.seats[sid]
	return ok
}

func (v *VoiceRoster) order() []core.SessionID {
	sids := lo.Keys(v.seats)
	sort.Slice(sids, func(i, j int) bool { return v.seats[sids[i]].seq < v.seats[sids[j]].seq })
	return sids
}

// Members lists the roster in join order.
func (v *VoiceRoster) Members() []domain.VoiceMember {
	return lo.Map(v.order(), func(sid core.SessionID, _ int) domain.VoiceMember {
		return v.seats[sid].member
	})
}

// Prune removes members without a live connection.
func (v *VoiceRoster) Prune(alive func(core.SessionID) bool) []core.SessionID {
	var gone []core.SessionID
	for _, sid := range v.order() {
		if !alive(sid) {
			delete(v.seats, sid)
			gone = append(gone, sid)
		}
	}
	return gone
}

func (v *VoiceRoster) Len() int { return len(v.seats) }
