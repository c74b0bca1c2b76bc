package app

import "github.com/dkeye/DigitalRoom/internal/domain"

const DefaultMessageBuffer = 50

// MessageBuffer is a bounded FIFO of chat history replayed to new joiners.
type MessageBuffer struct {
	items []domain.ChatMessage
	size  int
}

func NewMessageBuffer(size int) *MessageBuffer {
	if size <= 0 {
		size = DefaultMessageBuffer
	}
	return &MessageBuffer{items: make([]domain.ChatMessage, 0, size), size: size}
}

// Add appends msg, evicting the oldest entry once full.
func (b *MessageBuffer) Add(msg domain.ChatMessage) {
	if len(b.items) == b.size {
		copy(b.items, b.items[1:])
		b.items = b.items[:len(b.items)-1]
	}
	b.items = append(b.items, msg)
}

// List returns a copy, oldest first.
func (b *MessageBuffer) List() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(b.items))
	copy(out, b.items)
	return out
}

func (b *MessageBuffer) Clear() { b.items = b.items[:0] }

func (b *MessageBuffer) Len() int { return len(b.items) }
