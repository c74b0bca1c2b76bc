// Package domain contains entity without logic, just meta-data
package domain

import (
	"errors"
	"regexp"
	"strings"
)

const (
	MinUsernameLen = 2
	MaxUsernameLen = 50

	GuestName  = "Guest"
	SystemName = "SYSTEM"
)

var (
	ErrUsernameEmpty    = errors.New("username empty")
	ErrUsernameTooShort = errors.New("username too short")
	ErrUsernameTooLong  = errors.New("username too long")
	ErrUsernameInvalid  = errors.New("username has invalid characters")
)

var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// Participant is the live view of an identity bound to one connection.
// ID is the connection handle, Name the durable username.
type Participant struct {
	ID              string    `json:"id"`
	AccountID       AccountID `json:"dbId,omitempty"`
	Name            string    `json:"name"`
	Badge           string    `json:"badge"`
	NameStyle       string    `json:"nameStyle"`
	Status          string    `json:"status"`
	HasPremiumPack  bool      `json:"hasPremiumPack"`
	HasThemePack    bool      `json:"hasThemePack"`
	IsAuthenticated bool      `json:"isAuthenticated"`
	IsLive          bool      `json:"isLive"`
	Ping            int       `json:"ping"`
}

// NormalizeUsername trims and validates a username.
func NormalizeUsername(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	switch {
	case name == "":
		return "", ErrUsernameEmpty
	case len(name) < MinUsernameLen:
		return "", ErrUsernameTooShort
	case len(name) > MaxUsernameLen:
		return "", ErrUsernameTooLong
	case !usernameRe.MatchString(name):
		return "", ErrUsernameInvalid
	}
	return name, nil
}
