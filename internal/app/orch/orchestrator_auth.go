package orch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/dkeye/DigitalRoom/internal/domain"
	"github.com/dkeye/DigitalRoom/internal/security"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountsOffline    = errors.New("account store unavailable")
)

// Register creates an account. It does not touch room state and is safe to
// call from any goroutine.
func (o *Orchestrator) Register(ctx context.Context, creds core.Credentials) (*domain.Account, error) {
	if o.Accounts == nil {
		return nil, ErrAccountsOffline
	}
	name, err := domain.NormalizeUsername(creds.Username)
	if err != nil {
		return nil, err
	}
	hash, err := security.HashPassword(creds.Password, o.opts.Bcrypt)
	if err != nil {
		return nil, err
	}
	if _, err := o.Accounts.FindByName(ctx, name); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, core.ErrAccountNotFound) {
		return nil, fmt.Errorf("lookup %q: %w", name, err)
	}
	now := time.Now()
	acc := &domain.Account{
		ID:           domain.AccountID(uuid.NewString()),
		Username:     name,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := o.Accounts.Create(ctx, acc); err != nil {
		if errors.Is(err, core.ErrAccountExists) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("create %q: %w", name, err)
	}
	log.Info().Str("module", "orch.auth").Str("username", name).Msg("account registered")
	return acc, nil
}

// Login checks credentials and issues a session token. Safe to call from
// any goroutine.
func (o *Orchestrator) Login(ctx context.Context, creds core.Credentials) (string, *domain.Account, error) {
	if o.Accounts == nil || o.Tokens == nil {
		return "", nil, ErrAccountsOffline
	}
	name, err := domain.NormalizeUsername(creds.Username)
	if err != nil {
		return "", nil, ErrInvalidCredentials
	}
	acc, err := o.Accounts.FindByName(ctx, name)
	if errors.Is(err, core.ErrAccountNotFound) {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, fmt.Errorf("lookup %q: %w", name, err)
	}
	if err := security.ComparePassword(acc.PasswordHash, creds.Password); err != nil {
		return "", nil, ErrInvalidCredentials
	}
	token, err := o.Tokens.Sign(acc, time.Now())
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, acc, nil
}

// PublicError picks the message a client may see for err.
func PublicError(err error) string {
	switch {
	case errors.Is(err, domain.ErrUsernameEmpty),
		errors.Is(err, domain.ErrUsernameTooShort),
		errors.Is(err, domain.ErrUsernameTooLong),
		errors.Is(err, domain.ErrUsernameInvalid),
		errors.Is(err, security.ErrPasswordTooShort),
		errors.Is(err, security.ErrPasswordNoUpper),
		errors.Is(err, security.ErrPasswordNoDigit),
		errors.Is(err, ErrUsernameTaken),
		errors.Is(err, ErrInvalidCredentials):
		return err.Error()
	default:
		return "Server error"
	}
}

func (o *Orchestrator) onRegister(r *responder, raw json.RawMessage) {
	if !o.allow(r) {
		r.fail("Rate limit exceeded. Please wait.")
		return
	}
	creds, err := decode[core.Credentials](raw)
	if err != nil {
		r.fail("invalid payload")
		return
	}
	runAsync(o, r, func(ctx context.Context) (*domain.Account, error) {
		return o.Register(ctx, creds)
	}, func(_ *domain.Account, err error) {
		if err != nil {
			log.Warn().Str("module", "orch.auth").Str("sid", string(r.sid)).Err(err).Msg("register failed")
			r.fail(PublicError(err))
			return
		}
		r.ok()
	})
}

func (o *Orchestrator) onLogin(r *responder, raw json.RawMessage) {
	if !o.allow(r) {
		r.fail("Rate limit exceeded. Please wait.")
		return
	}
	creds, err := decode[core.Credentials](raw)
	if err != nil {
		r.fail("invalid payload")
		return
	}
	type result struct {
		token string
		acc   *domain.Account
	}
	runAsync(o, r, func(ctx context.Context) (result, error) {
		token, acc, err := o.Login(ctx, creds)
		return result{token, acc}, err
	}, func(res result, err error) {
		if err != nil {
			log.Warn().Str("module", "orch.auth").Str("sid", string(r.sid)).Err(err).Msg("login failed")
			r.fail(PublicError(err))
			return
		}
		r.reply(core.AckResult{Success: true, Token: res.token, User: res.acc.Participant(string(r.sid))})
	})
}

// onAuthenticate binds an account to the connection. The store lookup runs
// off the loop, so the continuation re-checks that the connection is alive.
func (o *Orchestrator) onAuthenticate(r *responder, raw json.RawMessage) {
	req, err := decode[core.TokenRequest](raw)
	if err != nil || o.Tokens == nil || o.Accounts == nil {
		o.authFailed(r, "Authentication failed")
		return
	}
	claims, err := o.Tokens.Parse(req.Token)
	if err != nil {
		log.Info().Str("module", "orch.auth").Str("sid", string(r.sid)).Err(err).Msg("token rejected")
		o.authFailed(r, "Invalid or expired token")
		return
	}
	runAsync(o, r, func(ctx context.Context) (*domain.Account, error) {
		return o.Accounts.FindByID(ctx, claims.ID)
	}, func(acc *domain.Account, err error) {
		if !o.Registry.Has(r.sid) {
			log.Info().Str("module", "orch.auth").Str("sid", string(r.sid)).Msg("connection gone before authentication finished")
			return
		}
		if err != nil {
			log.Warn().Str("module", "orch.auth").Str("sid", string(r.sid)).Err(err).Msg("account lookup failed")
			o.authFailed(r, "Authentication failed")
			return
		}
		o.bindAccount(r, acc)
	})
}

func (o *Orchestrator) authFailed(r *responder, msg string) {
	o.send(r.sid, core.OutAuthError, core.ErrorReply{Error: msg})
	r.reply(core.AckResult{Success: false, Error: msg})
}

func (o *Orchestrator) bindAccount(r *responder, acc *domain.Account) {
	p := acc.Participant(string(r.sid))
	p.IsLive = o.Streams.HasStream(r.sid)
	if prev, ok := o.Registry.User(r.sid); ok {
		p.Ping = prev.Ping
	}
	o.Registry.BindUser(r.sid, p)

	if o.Booth.Heal(r.sid, p.Name) {
		o.broadcast("", core.OutDJChanged, core.NewDJChanged(r.sid, p.Name))
	}
	o.broadcast("", core.OutUserUpdate, o.Registry.UniqueUsers())
	o.send(r.sid, core.OutAuthSuccess, p)
	r.reply(core.AckResult{Success: true, User: p})

	joined := domain.NewSystemMessage(fmt.Sprintf("%s entered.", p.Name), o.Now())
	o.Messages.Add(joined)
	o.broadcast("", core.OutNewMessage, joined)
}

// onUpdateProfile applies the change to live presence first; the store
// write is best effort and never rolls the live view back.
func (o *Orchestrator) onUpdateProfile(r *responder, raw json.RawMessage) {
	if !o.allow(r) {
		r.fail("Rate limit exceeded. Please wait.")
		return
	}
	req, err := decode[core.ProfileUpdate](raw)
	if err != nil || o.Tokens == nil {
		r.fail("invalid payload")
		return
	}
	claims, err := o.Tokens.Parse(req.Token)
	if err != nil {
		r.fail("Authentication failed")
		return
	}

	var patch domain.AccountPatch
	if req.Badge != "" {
		if !domain.IsValidImageURL(req.Badge) {
			r.fail("Invalid badge URL")
			return
		}
		patch.Badge = &req.Badge
	}
	if req.Password != "" {
		if err := security.ValidatePassword(req.Password, o.opts.Bcrypt); err != nil {
			r.fail(err.Error())
			return
		}
	}
	if req.NameStyle != nil {
		s := domain.SanitizeText(*req.NameStyle, o.opts.NameStyleMax)
		patch.NameStyle = &s
	}
	if req.Status != nil {
		s := domain.SanitizeText(*req.Status, o.opts.StatusMax)
		patch.Status = &s
	}

	for _, sid := range o.Registry.SessionsOf(claims.Username) {
		user, _ := o.Registry.User(sid)
		if user.AccountID != claims.ID {
			continue
		}
		applyPatch(user, patch)
		o.broadcast("", core.OutUserPartialUpdate, core.PartialUpdate{
			ID: sid, Badge: patch.Badge, NameStyle: patch.NameStyle, Status: patch.Status,
		})
	}
	r.ok()

	if o.Accounts == nil {
		return
	}
	ctx, password, cfg, accounts := o.ctx, req.Password, o.opts.Bcrypt, o.Accounts
	go func() {
		if password != "" {
			hash, err := security.HashPassword(password, cfg)
			if err != nil {
				log.Error().Str("module", "orch.auth").Err(err).Msg("hash password")
				return
			}
			patch.PasswordHash = &hash
		}
		if patch.Empty() {
			return
		}
		if err := accounts.UpdateAttributes(ctx, claims.ID, patch); err != nil {
			log.Warn().Str("module", "orch.auth").Str("account", string(claims.ID)).Err(err).Msg("profile not persisted")
		}
	}()
}

func applyPatch(p *domain.Participant, patch domain.AccountPatch) {
	if patch.Badge != nil {
		p.Badge = *patch.Badge
	}
	if patch.NameStyle != nil {
		p.NameStyle = *patch.NameStyle
	}
	if patch.Status != nil {
		p.Status = *patch.Status
	}
}
