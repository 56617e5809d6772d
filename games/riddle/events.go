/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package riddle

import "strings"

type EventType string

const (
	EventRoomCreated   EventType = "room_created"
	EventPlayers       EventType = "players"
	EventParameters    EventType = "parameters"
	EventRiddles       EventType = "riddles"
	EventNextRound     EventType = "next_round"
	EventGameStarted   EventType = "game_started"
	EventAnswerResult  EventType = "answer_result"
	EventCorrectAnswer EventType = "correct_answer"
	EventRoundTimeout  EventType = "round_timeout"
	EventGameOver      EventType = "game_over"
	EventRestart       EventType = "restart"
	EventChat          EventType = "chat"
	EventError         EventType = "error"
)

// Event is an outbound notification produced by a room.
type Event struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload,omitempty"`

	// Room is the code of the room that produced the event.
	Room string `json:"-"`
	// To limits delivery to a single connection; empty means every member.
	To string `json:"-"`
}

type RoomCreatedPayload struct {
	Code string `json:"code"`
}

// PlayersPayload is the membership snapshot: usernames in join order.
type PlayersPayload struct {
	Players []string `json:"players"`
	Host    string   `json:"host"`
}

type RiddleView struct {
	Index    int    `json:"index"`
	Question string `json:"question"`
	Hint     string `json:"hint,omitempty"`
}

type RiddlesPayload struct {
	Riddles []RiddleView `json:"riddles"`
}

type NextRoundPayload struct {
	Round     int `json:"round"`
	TimeLimit int `json:"time_limit"`
}

type AnswerResultPayload struct {
	Round   int  `json:"round"`
	Correct bool `json:"correct"`
}

type CorrectAnswerPayload struct {
	Username string `json:"username"`
	Answer   string `json:"answer"`
	Round    int    `json:"round"`
}

type RoundTimeoutPayload struct {
	Round int `json:"round"`
}

type Score struct {
	Username string `json:"username"`
	Score    int    `json:"score"`
}

type GameOverPayload struct {
	Winners []string `json:"winners"`
	Scores  []Score  `json:"scores"`
}

type ChatPayload struct {
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"ts"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// hint keeps the first rune of answer and its spaces, masking every other
// rune, punctuation included.
func hint(answer string) string {
	var b strings.Builder
	first := true
	for _, r := range answer {
		switch {
		case r == ' ':
			b.WriteRune(' ')
		case first:
			b.WriteRune(r)
			first = false
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
