package orch

import (
	"encoding/json"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/samber/lo"
)

const (
	adviceTooFast = "⚠️ You are sending messages too fast."
	adviceEmpty   = "⚠️ Message invalid or empty."
)

func (o *Orchestrator) onSendMessage(r *responder, raw json.RawMessage) {
	if !o.allow(r) {
		o.advise(r.sid, adviceTooFast)
		return
	}
	req, _ := decode[core.ChatRequest](raw)
	text := domain.SanitizeText(req.Text, o.opts.MessageMax)
	if text == "" {
		o.advise(r.sid, adviceEmpty)
		return
	}
	msg := domain.ChatMessage{
		UserName:  domain.GuestName,
		Text:      text,
		Timestamp: o.Now().Format(domain.TimestampLayout),
	}
	if user, ok := o.Registry.User(r.sid); ok {
		msg.UserName, msg.Badge, msg.NameStyle = user.Name, user.Badge, user.NameStyle
	}
	o.Messages.Add(msg)
	o.broadcast("", core.OutNewMessage, msg)
	r.ok()
}

// onPrivateMessage delivers to every tab of the target and of the sender.
func (o *Orchestrator) onPrivateMessage(r *responder, raw json.RawMessage) {
	sender, ok := o.Registry.User(r.sid)
	if !ok {
		return
	}
	now := o.Now().Format(domain.TimestampLayout)
	if !o.allow(r) {
		o.send(r.sid, core.OutPrivateMessage, domain.PrivateMessage{Text: adviceTooFast, Timestamp: now, IsSystem: true})
		return
	}
	req, _ := decode[core.PrivateRequest](raw)
	text := domain.SanitizeText(req.Text, o.opts.MessageMax)
	if text == "" || req.TargetName == "" {
		o.send(r.sid, core.OutPrivateMessage, domain.PrivateMessage{Text: adviceEmpty, Timestamp: now, IsSystem: true})
		return
	}
	msg := domain.PrivateMessage{From: sender.Name, To: req.TargetName, Text: text, Timestamp: now}
	targets := lo.Uniq(append(o.Registry.SessionsOf(req.TargetName), o.Registry.SessionsOf(sender.Name)...))
	for _, sid := range targets {
		o.send(sid, core.OutPrivateMessage, msg)
	}
	r.ok()
}
