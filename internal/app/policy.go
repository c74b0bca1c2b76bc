package app

import "github.com/dkeye/DigitalRoom/internal/core"

type BackpressureAction int

const (
	KickMember BackpressureAction = iota
	DropFrame
)

// Policy decides what happens to a connection whose send buffer overflowed.
type Policy interface {
	OnBackPressure(sid core.SessionID) BackpressureAction
}

// SimplePolicy drops the frame; the heartbeat repairs missed state.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(core.SessionID) BackpressureAction {
	return DropFrame
}

// StrictPolicy disconnects slow consumers.
type StrictPolicy struct{}

func (StrictPolicy) OnBackPressure(core.SessionID) BackpressureAction {
	return KickMember
}

// PolicyByName maps a config value to a policy, defaulting to SimplePolicy.
func PolicyByName(name string) Policy {
	if name == "kick" {
		return StrictPolicy{}
	}
	return SimplePolicy{}
}
