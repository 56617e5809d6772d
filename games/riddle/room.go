/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package riddle

import (
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	pointsPerAnswer   = 10
	maxChatLength     = 500
	maxUsernameLength = 32
)

type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

type Player struct {
	Username string
	Score    int
}

// Timer is a pending round timer.
type Timer interface {
	Stop() bool
}

// TimerFunc schedules the expiry of round token in room code after d. The
// expiry must be delivered back through Room.Expire on the owning goroutine.
type TimerFunc func(code string, token uint64, d time.Duration) Timer

// Submission is one answer attempt. Round, when set, is the round the client
// was answering; a mismatch marks the attempt as late.
type Submission struct {
	Answer string
	Round  *int
}

// Room is the state machine for a single game session. It is not safe for
// concurrent use; the gateway serializes every call.
type Room struct {
	code   string
	bank   *Bank
	timers TimerFunc
	now    func() time.Time

	order   []string
	members map[string]*Player
	host    string

	settings  *Settings
	questions []Question
	round     int
	answered  map[string]bool
	locked    bool
	phase     Phase

	token uint64
	timer Timer

	createdAt  time.Time
	lastActive time.Time
}

func newRoom(code string, bank *Bank, timers TimerFunc, now func() time.Time) *Room {
	t := now()
	return &Room{
		code:       code,
		bank:       bank,
		timers:     timers,
		now:        now,
		members:    make(map[string]*Player),
		answered:   make(map[string]bool),
		phase:      PhaseLobby,
		createdAt:  t,
		lastActive: t,
	}
}

func (r *Room) Code() string {
	return r.code
}

func (r *Room) Phase() Phase {
	return r.phase
}

// Host returns the connection id of the host, or "" for an empty room.
func (r *Room) Host() string {
	return r.host
}

func (r *Room) Len() int {
	return len(r.order)
}

// Round returns the 0-based index of the active round.
func (r *Room) Round() int {
	return r.round
}

// Settings returns the settings of the current or last game.
func (r *Room) Settings() (Settings, bool) {
	if r.settings == nil {
		return Settings{}, false
	}
	return *r.settings, true
}

// Members returns connection ids in join order.
func (r *Room) Members() []string {
	return slices.Clone(r.order)
}

func (r *Room) Player(conn string) (Player, bool) {
	p, ok := r.members[conn]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

func (r *Room) Questions() []Question {
	return slices.Clone(r.questions)
}

// Join adds conn to the room. Joining twice is harmless and keeps the
// original username.
func (r *Room) Join(conn, username string) ([]Event, error) {
	name := cleanUsername(username)
	if name == "" {
		return nil, ErrInvalidUsername
	}

	r.touch()

	if _, ok := r.members[conn]; !ok {
		r.members[conn] = &Player{Username: name}
		r.order = append(r.order, conn)
	}
	if r.host == "" {
		r.host = conn
	}

	events := []Event{r.membership()}
	if r.phase == PhasePlaying {
		events = append(events,
			r.eventTo(conn, EventParameters, *r.settings),
			r.eventTo(conn, EventRiddles, r.riddles()),
			r.eventTo(conn, EventNextRound, r.nextRound()),
		)
	}

	return events, nil
}

// Leave removes conn. The host role passes to the earliest remaining joiner.
func (r *Room) Leave(conn string) []Event {
	if _, ok := r.members[conn]; !ok {
		return nil
	}

	r.touch()

	delete(r.members, conn)
	delete(r.answered, conn)
	r.order = slices.DeleteFunc(r.order, func(id string) bool { return id == conn })

	if r.host == conn {
		r.host = ""
		if len(r.order) > 0 {
			r.host = r.order[0]
		}
	}

	if len(r.order) == 0 {
		r.stopTimer()
		return nil
	}

	events := []Event{r.membership()}
	if r.phase == PhasePlaying && r.quorum() {
		events = append(events, r.advance()...)
	}

	return events
}

// Start begins a new game with settings normalized from raw. Only the host
// may start a game; a game already in progress is discarded.
func (r *Room) Start(conn string, raw map[string]any) ([]Event, error) {
	if conn == "" || conn != r.host {
		return nil, ErrNotAuthorized
	}

	s := NormalizeSettings(raw)
	r.settings = &s

	return r.begin(false), nil
}

// Restart replays a finished game with the previous settings. Any member may
// restart.
func (r *Room) Restart(conn string) []Event {
	if _, ok := r.members[conn]; !ok {
		return nil
	}
	if r.phase != PhaseFinished || r.settings == nil {
		return nil
	}

	return r.begin(true)
}

func (r *Room) begin(restart bool) []Event {
	r.touch()
	r.stopTimer()

	for _, p := range r.members {
		p.Score = 0
	}

	r.questions = r.bank.Select(r.settings.Rounds)
	r.round = 0
	clear(r.answered)
	r.locked = false
	r.phase = PhasePlaying

	events := []Event{
		r.event(EventParameters, *r.settings),
		r.event(EventRiddles, r.riddles()),
	}
	if restart {
		events = append(events, r.event(EventRestart, nil))
	}
	events = append(events, r.startRound())
	if !restart {
		events = append(events, r.event(EventGameStarted, nil))
	}

	return events
}

// Submit records an answer attempt from conn for the active round.
func (r *Room) Submit(conn string, sub Submission) []Event {
	if r.phase != PhasePlaying {
		return nil
	}
	p, ok := r.members[conn]
	if !ok {
		return nil
	}
	if sub.Round != nil && *sub.Round != r.round {
		return nil
	}
	if r.answered[conn] || r.round >= len(r.questions) {
		return nil
	}

	r.touch()
	r.answered[conn] = true

	q := r.questions[r.round]
	round := r.round
	correct := q.Matches(sub.Answer)

	events := []Event{r.eventTo(conn, EventAnswerResult, AnswerResultPayload{
		Round:   round,
		Correct: correct,
	})}

	switch {
	case correct && !r.locked:
		p.Score += pointsPerAnswer
		r.locked = true
		events = append(events, r.event(EventCorrectAnswer, CorrectAnswerPayload{
			Username: p.Username,
			Answer:   q.Answer,
			Round:    round,
		}))
		events = append(events, r.advance()...)
	case r.quorum():
		events = append(events, r.advance()...)
	}

	return events
}

// Expire handles a round timer firing. Timers from earlier rounds are ignored.
func (r *Room) Expire(token uint64) []Event {
	if r.phase != PhasePlaying || token != r.token {
		return nil
	}

	r.timer = nil

	events := []Event{r.event(EventRoundTimeout, RoundTimeoutPayload{Round: r.round})}
	return append(events, r.advance()...)
}

// Chat relays text from conn to the whole room.
func (r *Room) Chat(conn, text string) []Event {
	p, ok := r.members[conn]
	if !ok || strings.TrimSpace(text) == "" {
		return nil
	}

	r.touch()

	return []Event{r.event(EventChat, ChatPayload{
		Username:  p.Username,
		Text:      truncate(text, maxChatLength),
		Timestamp: r.now().UnixMilli(),
	})}
}

func (r *Room) quorum() bool {
	if len(r.order) == 0 {
		return false
	}
	for _, conn := range r.order {
		if !r.answered[conn] {
			return false
		}
	}
	return true
}

func (r *Room) advance() []Event {
	r.stopTimer()

	r.round++
	clear(r.answered)
	r.locked = false

	if r.round >= r.settings.Rounds || r.round >= len(r.questions) {
		return r.end()
	}

	return []Event{r.startRound()}
}

func (r *Room) startRound() Event {
	r.token++
	if r.timers != nil && r.settings.TimeLimit > 0 {
		r.timer = r.timers(r.code, r.token, time.Duration(r.settings.TimeLimit)*time.Second)
	}

	return r.event(EventNextRound, r.nextRound())
}

func (r *Room) end() []Event {
	r.stopTimer()
	r.phase = PhaseFinished

	return []Event{r.event(EventGameOver, r.results())}
}

func (r *Room) results() GameOverPayload {
	scores := make([]Score, 0, len(r.order))
	for _, conn := range r.order {
		p := r.members[conn]
		scores = append(scores, Score{Username: p.Username, Score: p.Score})
	}

	return GameOverPayload{
		Winners: winners(scores),
		Scores:  scores,
	}
}

// winners returns every player sharing the top score.
func winners(scores []Score) []string {
	out := []string{}
	if len(scores) == 0 {
		return out
	}

	top := scores[0].Score
	for _, s := range scores[1:] {
		top = max(top, s.Score)
	}
	for _, s := range scores {
		if s.Score == top {
			out = append(out, s.Username)
		}
	}
	return out
}

func (r *Room) stopTimer() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) touch() {
	r.lastActive = r.now()
}

func (r *Room) membership() Event {
	players := make([]string, 0, len(r.order))
	for _, conn := range r.order {
		players = append(players, r.members[conn].Username)
	}

	host := ""
	if p, ok := r.members[r.host]; ok {
		host = p.Username
	}

	return r.event(EventPlayers, PlayersPayload{Players: players, Host: host})
}

func (r *Room) riddles() RiddlesPayload {
	views := make([]RiddleView, len(r.questions))
	for i, q := range r.questions {
		views[i] = RiddleView{Index: i, Question: q.Prompt}
		if r.settings.HintMode {
			views[i].Hint = hint(q.Answer)
		}
	}
	return RiddlesPayload{Riddles: views}
}

func (r *Room) nextRound() NextRoundPayload {
	return NextRoundPayload{Round: r.round, TimeLimit: r.settings.TimeLimit}
}

func (r *Room) event(t EventType, payload any) Event {
	return Event{Type: t, Payload: payload, Room: r.code}
}

func (r *Room) eventTo(conn string, t EventType, payload any) Event {
	ev := r.event(t, payload)
	ev.To = conn
	return ev
}

func cleanUsername(s string) string {
	return strings.TrimSpace(truncate(strings.TrimSpace(s), maxUsernameLength))
}

// truncate cuts s to at most n runes.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
