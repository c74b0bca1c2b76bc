package domain

import (
	"errors"
	"strings"
	"time"
)

const TimestampLayout = "15:04:05"

var ErrEmptyText = errors.New("text empty")

type ChatMessage struct {
	UserName  string `json:"userName,omitempty"`
	Badge     string `json:"badge,omitempty"`
	NameStyle string `json:"nameStyle,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	IsSystem  bool   `json:"isSystem,omitempty"`
}

type PrivateMessage struct {
	From      string `json:"from,omitempty"`
	To        string `json:"to,omitempty"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	IsSystem  bool   `json:"isSystem,omitempty"`
}

// SanitizeText cuts s to maxLen runes and trims surrounding whitespace.
func SanitizeText(s string, maxLen int) string {
	if maxLen > 0 {
		r := []rune(s)
		if len(r) > maxLen {
			s = string(r[:maxLen])
		}
	}
	return strings.TrimSpace(s)
}

func NewSystemMessage(text string, now time.Time) ChatMessage {
	return ChatMessage{
		UserName:  SystemName,
		Text:      text,
		Timestamp: now.Format(TimestampLayout),
		IsSystem:  true,
	}
}
