// Package orch runs the room: one goroutine owns every piece of room state
// and processes events one at a time.
package orch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dkeye/DigitalRoom/internal/app"
	"github.com/dkeye/DigitalRoom/internal/app/relay"
	"github.com/dkeye/DigitalRoom/internal/config"
	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/security"
	"github.com/rs/zerolog/log"
)

var ErrStopped = errors.New("orchestrator stopped")

type Options struct {
	HeartbeatInterval time.Duration
	ReconcileInterval time.Duration
	DriftTolerance    time.Duration
	MaxDJHold         time.Duration
	MaxStreams        int
	MessageBuffer     int
	Backpressure      string

	RateWindow    time.Duration
	RateMaxEvents int

	MessageMax      int
	AnnouncementMax int
	NameStyleMax    int
	StatusMax       int
	Bcrypt          *security.BcryptConfig

	Admin      config.Admin
	ICEServers []core.ICEServer
	QueueSize  int
}

// OptionsFromConfig maps the room settings of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	ice := make([]core.ICEServer, 0, len(cfg.ICEServers))
	for _, u := range cfg.ICEServers {
		ice = append(ice, core.ICEServer{URLs: []string{u}})
	}
	return Options{
		HeartbeatInterval: cfg.Room.HeartbeatInterval,
		ReconcileInterval: cfg.Room.ReconcileInterval,
		DriftTolerance:    cfg.Room.DriftTolerance,
		MaxDJHold:         cfg.Room.MaxDJHold,
		MaxStreams:        cfg.Room.MaxStreams,
		MessageBuffer:     cfg.Room.MessageBuffer,
		Backpressure:      cfg.Room.Backpressure,
		RateWindow:        cfg.Rate.Window,
		RateMaxEvents:     cfg.Rate.MaxEvents,
		MessageMax:        cfg.Limits.MessageMax,
		AnnouncementMax:   cfg.Limits.AnnouncementMax,
		NameStyleMax:      cfg.Limits.NameStyleMax,
		StatusMax:         cfg.Limits.StatusMax,
		Bcrypt:            &security.BcryptConfig{Cost: cfg.Limits.BcryptCost, MinLength: cfg.Limits.PasswordMin},
		Admin:             cfg.Admin,
		ICEServers:        ice,
	}
}

func (o *Options) fill() {
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = 5 * time.Second
	}
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = 10 * time.Second
	}
	if o.RateWindow <= 0 {
		o.RateWindow = time.Second
	}
	if o.RateMaxEvents <= 0 {
		o.RateMaxEvents = 10
	}
	if o.MessageMax <= 0 {
		o.MessageMax = 500
	}
	if o.AnnouncementMax <= 0 {
		o.AnnouncementMax = 200
	}
	if o.NameStyleMax <= 0 {
		o.NameStyleMax = 50
	}
	if o.StatusMax <= 0 {
		o.StatusMax = 100
	}
	if o.QueueSize <= 0 {
		o.QueueSize = 1024
	}
}

// Orchestrator owns the room. All fields below are touched only from the
// goroutine running Run; other goroutines go through the exported methods,
// which queue work onto it.
type Orchestrator struct {
	Registry *app.Registry
	Booth    *app.Booth
	Playback *app.Playback
	Messages *app.MessageBuffer
	Limiter  *app.RateLimiter
	Policy   app.Policy
	Voice    *relay.VoiceRoster
	Streams  *relay.StreamTable

	Accounts core.AccountStore
	Tokens   *security.Signer
	Metrics  core.Metrics
	Signals  core.SignalValidator
	Now      func() time.Time

	opts    Options
	events  chan func()
	done    chan struct{}
	ctx     context.Context
	started time.Time
}

func New(opts Options) *Orchestrator {
	opts.fill()
	return &Orchestrator{
		Registry: app.NewRegistry(),
		Booth:    app.NewBooth(),
		Playback: app.NewPlayback(opts.DriftTolerance),
		Messages: app.NewMessageBuffer(opts.MessageBuffer),
		Limiter:  app.NewRateLimiter(opts.RateMaxEvents, opts.RateWindow),
		Policy:   app.PolicyByName(opts.Backpressure),
		Voice:    relay.NewVoiceRoster(),
		Streams:  relay.NewStreamTable(opts.MaxStreams),
		Metrics:  core.NopMetrics{},
		Now:      time.Now,

		opts:    opts,
		events:  make(chan func(), opts.QueueSize),
		done:    make(chan struct{}),
		ctx:     context.Background(),
		started: time.Now(),
	}
}

// Run processes events until ctx is done. It must be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	defer close(o.done)

	heartbeat := time.NewTicker(o.opts.HeartbeatInterval)
	defer heartbeat.Stop()
	reconcile := time.NewTicker(o.opts.ReconcileInterval)
	defer reconcile.Stop()

	log.Info().Str("module", "orch").
		Dur("heartbeat", o.opts.HeartbeatInterval).
		Dur("reconcile", o.opts.ReconcileInterval).
		Msg("event loop started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "orch").Msg("event loop stopped")
			return nil
		case fn := <-o.events:
			o.exec(fn)
		case <-heartbeat.C:
			o.exec(o.heartbeat)
		case <-reconcile.C:
			o.exec(o.reconcile)
		}
	}
}

// post queues fn onto the loop. Returns false once the loop has stopped.
func (o *Orchestrator) post(fn func()) bool {
	select {
	case o.events <- fn:
		return true
	case <-o.done:
		return false
	}
}

func (o *Orchestrator) exec(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Str("module", "orch").Interface("panic", rec).Msg("event panic recovered")
		}
	}()
	fn()
	o.refreshGauges()
}

// Query runs fn on the loop and waits for it.
func (o *Orchestrator) Query(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !o.post(func() { defer close(finished); fn() }) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return ErrStopped
	}
}

// runAsync runs work off the loop and feeds its result back in as a new
// event. then must re-check anything it depends on: other events may have
// run in between.
func runAsync[T any](o *Orchestrator, r *responder, work func(ctx context.Context) (T, error), then func(T, error)) {
	ctx := o.ctx
	go func() {
		v, err := work(ctx)
		o.post(func() { o.guard(r, func() { then(v, err) }) })
	}()
}

// Connect registers a new transport and sends it the initial snapshot.
func (o *Orchestrator) Connect(sid core.SessionID, conn core.SignalConnection, cancel context.CancelFunc) {
	o.post(func() {
		now := o.Now()
		o.Registry.BindSignal(sid, conn, cancel, now)
		o.send(sid, core.OutInit, o.initPayload(sid, now))
	})
}

// Disconnect forgets a transport. The booth is left to the reconciler so a
// quick reconnect keeps it.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	o.post(func() {
		user, authed := o.Registry.Unbind(sid)
		o.dropMedia(sid)
		if authed {
			o.broadcast("", core.OutUserUpdate, o.Registry.UniqueUsers())
			log.Info().Str("module", "orch").Str("sid", string(sid)).Str("username", user.Name).Msg("participant left")
		}
	})
}

// Dispatch queues one inbound request from sid.
func (o *Orchestrator) Dispatch(sid core.SessionID, req core.Request) {
	o.post(func() {
		r := &responder{o: o, sid: sid, event: req.Type, ack: req.Ack}
		o.guard(r, func() { o.handle(r, req) })
	})
}

// SetAdmins swaps the admin list, e.g. after a config reload.
func (o *Orchestrator) SetAdmins(admin config.Admin) {
	o.post(func() {
		o.opts.Admin = admin
		log.Info().Str("module", "orch").Str("admin", admin.User).Int("additional", len(admin.Additional)).Msg("admins updated")
	})
}

func (o *Orchestrator) handle(r *responder, req core.Request) {
	if !o.Registry.Has(r.sid) {
		return
	}
	switch req.Type {
	case core.EvRegister:
		o.onRegister(r, req.Payload)
	case core.EvLogin:
		o.onLogin(r, req.Payload)
	case core.EvAuthenticate:
		o.onAuthenticate(r, req.Payload)
	case core.EvUpdateProfile:
		o.onUpdateProfile(r, req.Payload)
	case core.EvSendMessage:
		o.onSendMessage(r, req.Payload)
	case core.EvPrivateMessage:
		o.onPrivateMessage(r, req.Payload)
	case core.EvRequestDJ:
		o.onRequestDJ(r)
	case core.EvDJUpdate:
		o.onDJUpdate(r, req.Payload)
	case core.EvPing:
		r.reply(core.PingReply{ServerNow: core.Millis(o.Now())})
	case core.EvReportPing:
		o.onReportPing(r, req.Payload)
	case core.EvAdminKick:
		o.onAdminKick(r, req.Payload)
	case core.EvAdminAnnouncement:
		o.onAdminAnnouncement(r, req.Payload)
	case core.EvAdminResetDJ:
		o.onAdminResetDJ(r, req.Payload)
	case core.EvAdminClearChat:
		o.onAdminClearChat(r, req.Payload)
	case core.EvVoiceJoin:
		o.onVoiceJoin(r)
	case core.EvVoiceLeave:
		o.onVoiceLeave(r)
	case core.EvVoiceStateUpdate:
		o.onVoiceState(r, req.Payload)
	case core.EvVoiceSignal:
		o.onVoiceSignal(r, req.Payload)
	case core.EvStreamStart:
		o.onStreamStart(r)
	case core.EvStreamStop:
		o.onStreamStop(r)
	case core.EvStreamJoin:
		o.onStreamJoin(r, req.Payload)
	case core.EvStreamLeave:
		o.onStreamLeave(r, req.Payload)
	case core.EvStreamSignal:
		o.onStreamSignal(r, req.Payload)
	default:
		log.Warn().Str("module", "orch").Str("sid", string(r.sid)).Str("type", req.Type).Msg("unknown event")
		r.fail("unknown event type")
	}
}

// decode unmarshals an event payload. An absent payload yields the zero value.
func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

func (o *Orchestrator) allow(r *responder) bool {
	if o.Limiter.Allow(r.sid, o.Now()) {
		return true
	}
	o.Metrics.IncRejected("rate_limited")
	log.Warn().Str("module", "orch").Str("sid", string(r.sid)).Str("type", r.event).Msg("rate limit exceeded")
	return false
}

func (o *Orchestrator) refreshGauges() {
	o.Metrics.SetConnections(o.Registry.Len())
	o.Metrics.SetParticipants(len(o.Registry.UniqueUsers()))
	o.Metrics.SetVoiceMembers(o.Voice.Len())
	o.Metrics.SetStreams(o.Streams.Len())
	o.Metrics.SetBoothHeld(o.Booth.State() == app.Held)
}

// Health is the liveness summary served over HTTP.
type Health struct {
	Status    string  `json:"status"`
	Timestamp int64   `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
	Users     int     `json:"users"`
	DJActive  bool    `json:"djActive"`
}

func (o *Orchestrator) Health(ctx context.Context) (Health, error) {
	var h Health
	err := o.Query(ctx, func() {
		now := o.Now()
		h = Health{
			Status:    "ok",
			Timestamp: core.Millis(now),
			Uptime:    now.Sub(o.started).Seconds(),
			Users:     len(o.Registry.UniqueUsers()),
			DJActive:  o.Booth.State() == app.Held,
		}
	})
	return h, err
}
