package server

import "fmt"

// EventType discriminates the outbound event kinds.
type EventType string

const (
	EventGame     EventType = "game"
	EventQuestion EventType = "question"
	EventChat     EventType = "chat"
)

const (
	// AnonymousUser labels events from clients that did not name themselves.
	AnonymousUser = "Anonymous"
	// SystemUser labels events produced by the relay itself, such as drawn questions.
	SystemUser = "System"
)

// Event is the unit of broadcast. Val is set only for game events and
// Content only for question events.
type Event struct {
	Type    EventType `json:"type"`
	User    string    `json:"user"`
	Msg     string    `json:"msg"`
	Val     int       `json:"val,omitempty"`
	Content string    `json:"content,omitempty"`
}

// NewRollEvent builds the game event announcing a die roll.
func NewRollEvent(user string, val int) Event {
	return Event{
		Type: EventGame,
		User: user,
		Msg:  fmt.Sprintf("🎲 rolled a %d!", val),
		Val:  val,
	}
}

// NewQuestionEvent builds the question event for a drawn question.
func NewQuestionEvent(q Question) Event {
	return Event{
		Type:    EventQuestion,
		User:    SystemUser,
		Msg:     "🔥 Drew a question: " + q.Content,
		Content: q.Content,
	}
}

// NewChatEvent builds a chat event carrying msg verbatim.
func NewChatEvent(user, msg string) Event {
	return Event{
		Type: EventChat,
		User: user,
		Msg:  msg,
	}
}
