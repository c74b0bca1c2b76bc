package domain

// VoiceMember is a connection's seat in the voice channel.
// No transport or lifecycle logic here.
type VoiceMember struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Badge     string `json:"badge"`
	NameStyle string `json:"nameStyle"`
	Muted     bool   `json:"muted"`
	Deafened  bool   `json:"deafened"`
}

// NewVoiceMember avoids raw literals in handlers and keeps construction obvious.
func NewVoiceMember(p *Participant) *VoiceMember {
	return &VoiceMember{
		ID:        p.ID,
		Name:      p.Name,
		Badge:     p.Badge,
		NameStyle: p.NameStyle,
	}
}
