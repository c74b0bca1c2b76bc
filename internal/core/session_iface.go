package core

import "github.com/google/uuid"

// SessionID identifies one live transport connection. A user with two tabs
// has two sessions.
type SessionID string

func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

func (s SessionID) String() string { return string(s) }
