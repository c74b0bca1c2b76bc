// Package rtc knows the WebRTC message shapes the room relays between
// browsers. The server never terminates media itself.
package rtc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
	"github.com/tidwall/gjson"
)

var (
	ErrSignalShape = errors.New("rtc: malformed signal")
	ErrSignalKind  = errors.New("rtc: unknown signal type")
)

const KindCandidate = "candidate"

// SignalValidator accepts `{type: offer|answer, sdp}` and
// `{type: candidate, candidate: {...}}`. SDP bodies are passed through
// untouched.
type SignalValidator struct{}

func (SignalValidator) Validate(raw json.RawMessage) (string, error) {
	if !gjson.ValidBytes(raw) {
		return "", ErrSignalShape
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return "", ErrSignalShape
	}
	kind := doc.Get("type").String()

	if kind == KindCandidate {
		cand := doc.Get("candidate")
		if !cand.IsObject() {
			return "", fmt.Errorf("%w: candidate must be an object", ErrSignalShape)
		}
		var init webrtc.ICECandidateInit
		if err := json.Unmarshal([]byte(cand.Raw), &init); err != nil {
			return "", fmt.Errorf("%w: %v", ErrSignalShape, err)
		}
		// an empty candidate string marks end of gathering and is valid
		return kind, nil
	}

	switch webrtc.NewSDPType(kind) {
	case webrtc.SDPTypeOffer, webrtc.SDPTypeAnswer:
	default:
		return "", fmt.Errorf("%w: %q", ErrSignalKind, kind)
	}
	sdp := doc.Get("sdp")
	if sdp.Type != gjson.String || sdp.Str == "" {
		return "", fmt.Errorf("%w: %s without sdp", ErrSignalShape, kind)
	}
	return kind, nil
}
