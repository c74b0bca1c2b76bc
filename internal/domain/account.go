package domain

import (
	"net/url"
	"regexp"
	"time"
)

const DefaultBadge = "https://i.giphy.com/media/L88y6SAsjGvNmsC4Eq/giphy.gif"

type AccountID string

// Account is the durable identity record owned by the account store.
type Account struct {
	ID             AccountID
	Username       string
	PasswordHash   string
	Badge          string
	NameStyle      string
	Status         string
	HasPremiumPack bool
	HasThemePack   bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// AccountPatch is a partial update; nil fields are left untouched.
type AccountPatch struct {
	Badge        *string
	NameStyle    *string
	Status       *string
	PasswordHash *string
}

func (p AccountPatch) Empty() bool {
	return p.Badge == nil && p.NameStyle == nil && p.Status == nil && p.PasswordHash == nil
}

// Participant builds the presence snapshot of the account for connection connID.
func (a *Account) Participant(connID string) *Participant {
	badge := a.Badge
	if badge == "" {
		badge = DefaultBadge
	}
	return &Participant{
		ID:              connID,
		AccountID:       a.ID,
		Name:            a.Username,
		Badge:           badge,
		NameStyle:       a.NameStyle,
		Status:          a.Status,
		HasPremiumPack:  a.HasPremiumPack,
		HasThemePack:    a.HasThemePack,
		IsAuthenticated: true,
	}
}

var imageExtRe = regexp.MustCompile(`(?i)\.(gif|jpg|jpeg|png|webp)$`)

// IsValidImageURL accepts http(s) URLs pointing at a common image file.
func IsValidImageURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return imageExtRe.MatchString(u.Path)
}
