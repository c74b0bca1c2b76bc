package orch

import (
	"encoding/json"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/rs/zerolog/log"
)

type adminLevel int

const (
	primaryAdmin adminLevel = iota
	boothAdmin
)

// admin verifies the token and the caller's rights. On failure the
// responder has already been answered.
func (o *Orchestrator) admin(r *responder, token string, level adminLevel) bool {
	if o.Tokens == nil {
		r.fail("Authentication failed")
		return false
	}
	claims, err := o.Tokens.Parse(token)
	if err != nil {
		r.fail("Authentication failed")
		return false
	}
	allowed := o.opts.Admin.IsPrimary(claims.Username)
	if level == boothAdmin {
		allowed = o.opts.Admin.CanResetDJ(claims.Username)
	}
	if !allowed {
		log.Warn().Str("module", "orch.admin").Str("sid", string(r.sid)).Str("username", claims.Username).Str("type", r.event).Msg("forbidden")
		r.fail("Forbidden")
		return false
	}
	return true
}

func (o *Orchestrator) onAdminKick(r *responder, raw json.RawMessage) {
	req, err := decode[core.AdminKickRequest](raw)
	if err != nil || req.TargetID == "" {
		r.fail("Invalid parameters")
		return
	}
	if !o.admin(r, req.Token, primaryAdmin) {
		return
	}
	if !o.Registry.Cancel(core.SessionID(req.TargetID)) {
		r.fail("Target not found")
		return
	}
	log.Info().Str("module", "orch.admin").Str("target", req.TargetID).Msg("connection kicked")
	r.ok()
}

func (o *Orchestrator) onAdminAnnouncement(r *responder, raw json.RawMessage) {
	req, err := decode[core.AnnouncementRequest](raw)
	if err != nil {
		r.fail("Invalid parameters")
		return
	}
	if !o.admin(r, req.Token, primaryAdmin) {
		return
	}
	text := ""
	if req.Text != nil {
		text = domain.SanitizeText(*req.Text, o.opts.AnnouncementMax)
	}
	o.Playback.SetAnnouncement(text)
	o.broadcast("", core.OutRoomUpdate, core.NewRoomSnapshot(o.roomState(), o.Now()))
	r.ok()
}

func (o *Orchestrator) onAdminResetDJ(r *responder, raw json.RawMessage) {
	req, err := decode[core.TokenRequest](raw)
	if err != nil {
		r.fail("Invalid parameters")
		return
	}
	if !o.admin(r, req.Token, boothAdmin) {
		return
	}
	o.Booth.Reset()
	o.broadcast("", core.OutDJChanged, core.NewDJChanged("", ""))
	r.ok()
}

func (o *Orchestrator) onAdminClearChat(r *responder, raw json.RawMessage) {
	req, err := decode[core.TokenRequest](raw)
	if err != nil {
		r.fail("Invalid parameters")
		return
	}
	if !o.admin(r, req.Token, primaryAdmin) {
		return
	}
	o.Messages.Clear()
	o.broadcast("", core.OutChatCleared, struct{}{})
	r.ok()
}
