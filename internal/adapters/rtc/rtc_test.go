package rtc

import (
	"encoding/json"
	"testing"

	"github.com/dkeye/DigitalRoom/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignalValidator(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		kind string
		err  error
	}{
		{"offer", `{"type":"offer","sdp":"v=0\r\n"}`, "offer", nil},
		{"answer", `{"type":"answer","sdp":"v=0\r\n"}`, "answer", nil},
		{"candidate", `{"type":"candidate","candidate":{"candidate":"candidate:1 1 udp 1 1.2.3.4 5 typ host","sdpMid":"0","sdpMLineIndex":0}}`, "candidate", nil},
		{"end of candidates", `{"type":"candidate","candidate":{"candidate":""}}`, "candidate", nil},
		{"offer without sdp", `{"type":"offer"}`, "", ErrSignalShape},
		{"sdp not a string", `{"type":"answer","sdp":5}`, "", ErrSignalShape},
		{"candidate not an object", `{"type":"candidate","candidate":"x"}`, "", ErrSignalShape},
		{"rollback", `{"type":"rollback","sdp":"x"}`, "", ErrSignalKind},
		{"missing type", `{"sdp":"x"}`, "", ErrSignalKind},
		{"array", `[1,2]`, "", ErrSignalShape},
		{"garbage", `{nope`, "", ErrSignalShape},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, err := SignalValidator{}.Validate(json.RawMessage(tt.raw))
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestParseICEServers(t *testing.T) {
	cfg := ParseICEServers([]string{"stun:stun.example.org:3478", "not a url", "turn:turn.example.org?transport=udp"})
	require.Len(t, cfg.ICEServers, 2)
	assert.Equal(t, []string{"stun:stun.example.org:3478"}, cfg.ICEServers[0].URLs)

	assert.Equal(t, DefaultConfiguration(), ParseICEServers(nil))
	assert.Equal(t, DefaultConfiguration(), ParseICEServers([]string{"http://nope"}))
}

func TestClientICEServers(t *testing.T) {
	cfg := DefaultConfiguration()
	cfg.ICEServers = append(cfg.ICEServers, cfg.ICEServers[0])
	cfg.ICEServers[1].Username = "u"
	cfg.ICEServers[1].Credential = "p"

	got := ClientICEServers(cfg)
	assert.Equal(t, []core.ICEServer{
		{URLs: []string{"stun:stun.l.google.com:19302"}},
		{URLs: []string{"stun:stun.l.google.com:19302"}, Username: "u", Credential: "p"},
	}, got)
}
