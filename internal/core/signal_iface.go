package core

import (
	"encoding/json"
	"errors"
)

// ErrBackpressure is returned by TrySend when the outbound queue is full.
var ErrBackpressure = errors.New("signal: send buffer full")

// Frame is a raw encoded payload.
type Frame []byte

// SignalConnection abstracts for a system messaging transport
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// SignalValidator checks the shape of a relayed WebRTC message (offer,
// answer or candidate) and returns its kind. SDP bodies are not parsed.
type SignalValidator interface {
	Validate(raw json.RawMessage) (string, error)
}
