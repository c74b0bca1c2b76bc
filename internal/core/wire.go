package core

import (
	"encoding/json"
	"time"

	"github.com/dkeye/DigitalRoom/internal/domain"
)

// Envelope is the outbound frame layout. Ack echoes the request correlation
// id when the frame answers a request.
type Envelope struct {
	Type    string `json:"type"`
	Ack     string `json:"ack,omitempty"`
	Payload any    `json:"payload,omitempty"`
}

// Request is a decoded inbound frame.
type Request struct {
	Type    string          `json:"type"`
	Ack     string          `json:"ack,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func Encode(typ string, payload any) (Frame, error) {
	return json.Marshal(Envelope{Type: typ, Payload: payload})
}

func EncodeAck(ack string, payload any) (Frame, error) {
	return json.Marshal(Envelope{Type: OutAck, Ack: ack, Payload: payload})
}

// Millis converts t to unix milliseconds, zero time maps to 0.
func Millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

// ICEServer mirrors the browser RTCIceServer dictionary.
type ICEServer struct {
	URLs       []string `json:"urls"`
	Username   string   `json:"username,omitempty"`
	Credential string   `json:"credential,omitempty"`
}

// RoomSnapshot is the authoritative room state as sent to clients.
// Nullable fields are pointers so they encode as null.
type RoomSnapshot struct {
	CurrentTrack string          `json:"currentTrack"`
	TrackTitle   string          `json:"trackTitle"`
	CurrentTheme json.RawMessage `json:"currentTheme,omitempty"`
	IsPlaying    bool            `json:"isPlaying"`
	StartedAt    *int64          `json:"startedAt"`
	PausedAt     int64           `json:"pausedAt"`
	DJID         *string         `json:"djId"`
	DJName       *string         `json:"djName"`
	Announcement *string         `json:"announcement"`
	LastUpdateAt int64           `json:"lastUpdateAt"`
	ServerTime   int64           `json:"serverTime"`
}

// NewRoomSnapshot renders state for the wire at serverTime.
func NewRoomSnapshot(st domain.RoomState, serverTime time.Time) RoomSnapshot {
	snap := RoomSnapshot{
		CurrentTrack: st.CurrentTrack,
		TrackTitle:   st.TrackTitle,
		CurrentTheme: st.CurrentTheme,
		IsPlaying:    st.IsPlaying,
		PausedAt:     st.PausedAt.Milliseconds(),
		LastUpdateAt: Millis(st.LastUpdateAt),
		ServerTime:   Millis(serverTime),
	}
	if !st.StartedAt.IsZero() {
		ms := st.StartedAt.UnixMilli()
		snap.StartedAt = &ms
	}
	if st.DJID != "" {
		id, name := st.DJID, st.DJName
		snap.DJID, snap.DJName = &id, &name
	}
	if st.Announcement != "" {
		a := st.Announcement
		snap.Announcement = &a
	}
	return snap
}

// InitState is the full snapshot delivered once per connection.
type InitState struct {
	RoomSnapshot
	Users      []domain.Participant   `json:"users"`
	Messages   []domain.ChatMessage   `json:"messages"`
	VoiceUsers []domain.VoiceMember   `json:"voiceUsers"`
	Streams    []domain.StreamSession `json:"streams"`
}

type InitPayload struct {
	State      InitState   `json:"state"`
	YourID     SessionID   `json:"yourId"`
	ServerNow  int64       `json:"serverNow"`
	ICEServers []ICEServer `json:"iceServers,omitempty"`
}

type DJChanged struct {
	DJID   *string `json:"djId"`
	DJName *string `json:"djName,omitempty"`
}

func NewDJChanged(sid SessionID, name string) DJChanged {
	if sid == "" {
		return DJChanged{}
	}
	id := string(sid)
	return DJChanged{DJID: &id, DJName: &name}
}

// Client payloads.

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type TokenRequest struct {
	Token string `json:"token"`
}

type ProfileUpdate struct {
	Token     string  `json:"token"`
	Badge     string  `json:"badge,omitempty"`
	Password  string  `json:"password,omitempty"`
	NameStyle *string `json:"nameStyle,omitempty"`
	Status    *string `json:"status,omitempty"`
}

type ChatRequest struct {
	Text string `json:"text"`
}

type PrivateRequest struct {
	TargetName string `json:"targetName"`
	Text       string `json:"text"`
}

// DJUpdateRequest carries a playback update. Track and Theme are legacy
// aliases of CurrentTrack and CurrentTheme.
type DJUpdateRequest struct {
	CurrentTrack string          `json:"currentTrack,omitempty"`
	Track        string          `json:"track,omitempty"`
	TrackTitle   string          `json:"trackTitle,omitempty"`
	CurrentTheme json.RawMessage `json:"currentTheme,omitempty"`
	Theme        json.RawMessage `json:"theme,omitempty"`
	IsPlaying    bool            `json:"isPlaying"`
	SeekPosition *float64        `json:"seekPosition,omitempty"`
}

type ReportPingRequest struct {
	Latency int `json:"latency"`
}

type AdminKickRequest struct {
	Token    string `json:"token"`
	TargetID string `json:"targetId"`
}

type AnnouncementRequest struct {
	Token string  `json:"token"`
	Text  *string `json:"text"`
}

type VoiceStateRequest struct {
	Muted    bool `json:"muted"`
	Deafened bool `json:"deafened"`
}

// SignalRequest is a relayed offer, answer or candidate. StreamerID is set
// only for screen share sessions.
type SignalRequest struct {
	To         string          `json:"to"`
	Signal     json.RawMessage `json:"signal"`
	StreamerID string          `json:"streamerId,omitempty"`
}

type SignalRelay struct {
	From       SessionID       `json:"from"`
	Signal     json.RawMessage `json:"signal"`
	StreamerID string          `json:"streamerId,omitempty"`
}

type StreamTarget struct {
	StreamerID string `json:"streamerId"`
}

// UnmarshalJSON also accepts a bare string id.
func (t *StreamTarget) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &t.StreamerID)
	}
	type plain StreamTarget
	return json.Unmarshal(b, (*plain)(t))
}

type PeerNotice struct {
	PeerID SessionID `json:"peerId"`
}

// Server replies.

type AckResult struct {
	Success bool                `json:"success"`
	Error   string              `json:"error,omitempty"`
	Token   string              `json:"token,omitempty"`
	User    *domain.Participant `json:"user,omitempty"`
}

type ErrorReply struct {
	Error string `json:"error"`
}

type PingReply struct {
	ServerNow int64 `json:"serverNow"`
}

// PartialUpdate changes a few fields of one participant.
type PartialUpdate struct {
	ID        SessionID `json:"id"`
	Badge     *string   `json:"badge,omitempty"`
	NameStyle *string   `json:"nameStyle,omitempty"`
	Status    *string   `json:"status,omitempty"`
	IsLive    *bool     `json:"isLive,omitempty"`
	Ping      *int      `json:"ping,omitempty"`
}
