package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxChatLength is the longest chat message accepted, in characters.
const MaxChatLength = 1000

const frameTypeChat = "chat"

var (
	ErrMalformedFrame = errors.New("malformed frame")
	ErrNotSubscribed  = errors.New("client is not subscribed to this ride")
	ErrEmptyChat      = errors.New("chat message is empty")
	ErrChatTooLong    = errors.New("chat message is too long")
)

// ChatMessage is one line of the rider/driver chat on a ride.
type ChatMessage struct {
	ID        string    `json:"id"`
	RideID    string    `json:"ride_id"`
	SenderID  string    `json:"sender_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// clientFrame is what a websocket client writes:
//
//	{"type":"chat","ride_id":"...","sender_id":"...","content":"..."}
type clientFrame struct {
	Type     string `json:"type"`
	RideID   string `json:"ride_id"`
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

// ChatRelay publishes chat frames to the ride's topic. Messages go through
// the Publisher, so with the Redis relay enabled they reach clients on
// every instance. Chat is not stored.
type ChatRelay struct {
	publisher Publisher
}

// NewChatRelay creates a new ChatRelay.
func NewChatRelay(publisher Publisher) *ChatRelay {
	return &ChatRelay{publisher: publisher}
}

// Handle implements InboundHandler. Only clients subscribed to the ride's
// topic may post to it.
func (r *ChatRelay) Handle(ctx context.Context, c *Client, data []byte) error {
	var frame clientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return ErrMalformedFrame
	}
	if frame.Type != frameTypeChat || frame.RideID == "" || frame.SenderID == "" {
		return ErrMalformedFrame
	}
	if !c.subscribed([]string{RideTopic(frame.RideID)}) {
		return ErrNotSubscribed
	}

	content := strings.TrimSpace(frame.Content)
	if content == "" {
		return ErrEmptyChat
	}
	if utf8.RuneCountInString(content) > MaxChatLength {
		return ErrChatTooLong
	}

	msg := ChatMessage{
		ID:        uuid.NewString(),
		RideID:    frame.RideID,
		SenderID:  frame.SenderID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	r.publisher.Publish(ctx, NewEvent(EventChatMessage, frame.RideID, "", msg))
	return nil
}
