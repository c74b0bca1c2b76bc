package core

// Metrics receives room counters. Implementations must be cheap; they are
// called from the event loop.
type Metrics interface {
	SetConnections(n int)
	SetParticipants(n int)
	SetVoiceMembers(n int)
	SetStreams(n int)
	SetBoothHeld(held bool)
	IncRejected(reason string)
	IncResync()
	IncRelayed(kind string)
}

type NopMetrics struct{}

func (NopMetrics) SetConnections(int)  {}
func (NopMetrics) SetParticipants(int) {}
func (NopMetrics) SetVoiceMembers(int) {}
func (NopMetrics) SetStreams(int)      {}
func (NopMetrics) SetBoothHeld(bool)   {}
func (NopMetrics) IncRejected(string)  {}
func (NopMetrics) IncResync()          {}
func (NopMetrics) IncRelayed(string)   {}
