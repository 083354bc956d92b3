package server

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// Inbound action names.
const (
	ActionRoll = "roll"
	ActionDraw = "draw"
	ActionChat = "chat"
)

var (
	// ErrMalformedAction is returned when an inbound frame is not a JSON action object.
	ErrMalformedAction = errors.New("malformed action")
	// ErrUnknownAction is returned for action names the game does not handle.
	ErrUnknownAction = errors.New("unknown action")
)

// Action is an inbound client request. User is nil when the field was omitted.
type Action struct {
	Action string  `json:"action"`
	User   *string `json:"user,omitempty"`
	Msg    string  `json:"msg"`
}

// UserLabel returns the sender label, defaulting to AnonymousUser when the
// user field is absent or empty.
func (a Action) UserLabel() string {
	if a.User == nil || *a.User == "" {
		return AnonymousUser
	}
	return *a.User
}

// DecodeAction parses one inbound frame.
func DecodeAction(raw []byte) (Action, error) {
	var a Action
	if err := json.Unmarshal(raw, &a); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	return a, nil
}

// Game turns actions into events. It holds no mutable state of its own and
// is shared by every session loop.
type Game struct {
	pool *QuestionPool
	intn func(n int) int
}

// NewGame creates a Game drawing from pool with a uniform random source.
func NewGame(pool *QuestionPool) *Game {
	return NewGameWithRand(pool, rand.IntN)
}

// NewGameWithRand is NewGame with an explicit source; intn must return a
// value in [0, n) and be safe for concurrent use.
func NewGameWithRand(pool *QuestionPool, intn func(n int) int) *Game {
	if pool == nil {
		pool = placeholderPool()
	}
	return &Game{pool: pool, intn: intn}
}

// Pool returns the question pool the game draws from.
func (g *Game) Pool() *QuestionPool {
	return g.pool
}

// Roll returns a die value in [1, 6].
func (g *Game) Roll() int {
	return g.intn(6) + 1
}

// Handle builds the event for a. Unknown actions return ErrUnknownAction and
// must produce no broadcast.
func (g *Game) Handle(a Action) (Event, error) {
	switch a.Action {
	case ActionRoll:
		return NewRollEvent(a.UserLabel(), g.Roll()), nil
	case ActionDraw:
		return NewQuestionEvent(g.pool.Pick(g.intn)), nil
	case ActionChat:
		return NewChatEvent(a.UserLabel(), a.Msg), nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrUnknownAction, a.Action)
	}
}
