/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package riddle

import (
	"context"
	"errors"
	"time"
)

var ErrGatewayClosed = errors.New("gateway is not running")

// Sink receives events for one connection. Send must not block; returning
// false marks the connection as too slow and it is disconnected.
type Sink interface {
	Send(Event) bool
	Close()
}

type CommandType string

const (
	CommandNewRoom CommandType = "new_room"
	CommandJoin    CommandType = "join"
	CommandStart   CommandType = "start_game"
	CommandSubmit  CommandType = "submit_answer"
	CommandRestart CommandType = "play_again"
	CommandChat    CommandType = "chat"
	CommandLeave   CommandType = "leave"
)

// Command is an inbound message from a connection.
type Command struct {
	Type     CommandType    `json:"type"`
	Code     string         `json:"code,omitempty"`
	Username string         `json:"username,omitempty"`
	Settings map[string]any `json:"settings,omitempty"`
	Answer   string         `json:"answer,omitempty"`
	Round    *int           `json:"round,omitempty"`
	Text     string         `json:"text,omitempty"`

	Conn string `json:"-"`
}

// GameResult is handed to a Recorder whenever a game ends.
type GameResult struct {
	Room       string    `json:"room"`
	FinishedAt time.Time `json:"finished_at"`
	Settings   Settings  `json:"settings"`
	Winners    []string  `json:"winners"`
	Scores     []Score   `json:"scores"`
}

type Recorder interface {
	Record(ctx context.Context, res GameResult) error
}

type (
	connectMsg struct {
		conn string
		sink Sink
	}
	disconnectMsg struct {
		conn string
	}
	expiryMsg struct {
		code  string
		token uint64
	}
	callMsg struct {
		fn func()
	}
)

// Gateway routes commands to rooms and fans their events out to connections.
// Everything that touches room state runs on the goroutine calling Run.
type Gateway struct {
	registry *Registry
	sinks    map[string]Sink
	evict    []string

	inbox chan any
	done  chan struct{}

	recorder      Recorder
	recordTimeout time.Duration
	idleTimeout   time.Duration
	logf          func(format string, args ...any)
	now           func() time.Time
	regOpts       []RegistryOption
}

type Option func(*Gateway)

func WithRecorder(rec Recorder) Option {
	return func(g *Gateway) {
		g.recorder = rec
	}
}

// WithLogger sets the printf-style function used for gateway logs.
func WithLogger(logf func(format string, args ...any)) Option {
	return func(g *Gateway) {
		g.logf = logf
	}
}

// WithIdleTimeout enables reaping of empty rooms idle for longer than d.
func WithIdleTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		g.idleTimeout = d
	}
}

func WithRegistryOptions(opts ...RegistryOption) Option {
	return func(g *Gateway) {
		g.regOpts = append(g.regOpts, opts...)
	}
}

func NewGateway(bank *Bank, opts ...Option) *Gateway {
	g := &Gateway{
		sinks:         make(map[string]Sink),
		inbox:         make(chan any, 64),
		done:          make(chan struct{}),
		recordTimeout: 5 * time.Second,
		logf:          func(string, ...any) {},
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	regOpts := append([]RegistryOption{WithTimers(g.schedule), WithClock(g.now)}, g.regOpts...)
	g.registry = NewRegistry(bank, regOpts...)

	return g
}

// Run processes messages until ctx is done, then closes every connection.
func (g *Gateway) Run(ctx context.Context) {
	defer close(g.done)

	var reap <-chan time.Time
	if g.idleTimeout > 0 {
		ticker := time.NewTicker(g.idleTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			g.shutdown()
			return
		case msg := <-g.inbox:
			g.safeHandle(msg)
		case <-reap:
			g.reap()
		}
	}
}

func (g *Gateway) Connect(conn string, sink Sink) {
	g.post(connectMsg{conn: conn, sink: sink})
}

func (g *Gateway) Disconnect(conn string) {
	g.post(disconnectMsg{conn: conn})
}

func (g *Gateway) Dispatch(cmd Command) {
	g.post(cmd)
}

// CreateRoom allocates a room outside of any websocket connection.
func (g *Gateway) CreateRoom(ctx context.Context) (string, error) {
	var (
		code string
		err  error
	)
	callErr := g.call(ctx, func() {
		var room *Room
		room, err = g.registry.Create()
		if err == nil {
			code = room.Code()
			g.logf("GAMES: Created room %s", code)
		}
	})
	if callErr != nil {
		return "", callErr
	}
	return code, err
}

// RoomExists reports whether a room with the given code is live.
func (g *Gateway) RoomExists(ctx context.Context, code string) (bool, error) {
	var ok bool
	err := g.call(ctx, func() {
		_, ok = g.registry.Lookup(code)
	})
	return ok, err
}

func (g *Gateway) call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	msg := callMsg{fn: func() {
		fn()
		close(finished)
	}}

	select {
	case g.inbox <- msg:
	case <-g.done:
		return ErrGatewayClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-finished:
		return nil
	case <-g.done:
		return ErrGatewayClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *Gateway) post(msg any) bool {
	select {
	case g.inbox <- msg:
		return true
	case <-g.done:
		return false
	}
}

// schedule arms a round timer whose expiry is fed back through the inbox.
func (g *Gateway) schedule(code string, token uint64, d time.Duration) Timer {
	return time.AfterFunc(d, func() {
		g.post(expiryMsg{code: code, token: token})
	})
}

// safeHandle keeps a fault in one room from stopping the loop.
func (g *Gateway) safeHandle(msg any) {
	defer func() {
		if r := recover(); r != nil {
			g.logf("GAMES: Recovered from panic handling %T: %v", msg, r)
		}
	}()

	g.handle(msg)
}

func (g *Gateway) handle(msg any) {
	switch m := msg.(type) {
	case connectMsg:
		g.sinks[m.conn] = m.sink
	case disconnectMsg:
		g.disconnect(m.conn)
	case expiryMsg:
		if room, ok := g.registry.Lookup(m.code); ok {
			g.deliver(room.Expire(m.token))
		}
	case callMsg:
		m.fn()
	case Command:
		g.command(m)
	}

	for len(g.evict) > 0 {
		conn := g.evict[0]
		g.evict = g.evict[1:]
		g.logf("GAMES: Dropping slow connection %s", conn)
		g.disconnect(conn)
	}
}

func (g *Gateway) command(cmd Command) {
	switch cmd.Type {
	case CommandNewRoom:
		room, err := g.registry.Create()
		if err != nil {
			g.fail(cmd.Conn, err)
			return
		}
		g.logf("GAMES: Created room %s", room.Code())
		g.send(cmd.Conn, Event{Type: EventRoomCreated, Payload: RoomCreatedPayload{Code: room.Code()}})

	case CommandJoin:
		events, err := g.registry.Join(cmd.Code, cmd.Conn, cmd.Username)
		g.deliver(events)
		if err != nil {
			g.fail(cmd.Conn, err)
			return
		}
		g.logf("GAMES: %q joined room %s", cleanUsername(cmd.Username), cmd.Code)

	case CommandStart:
		room, ok := g.registry.Lookup(cmd.Code)
		if cmd.Code == "" {
			room, ok = g.registry.RoomOf(cmd.Conn)
		}
		if !ok {
			g.fail(cmd.Conn, ErrRoomNotFound)
			return
		}
		events, err := room.Start(cmd.Conn, cmd.Settings)
		if err != nil {
			g.fail(cmd.Conn, err)
			return
		}
		g.logf("GAMES: Started game in room %s", room.Code())
		g.deliver(events)

	case CommandSubmit:
		if room, ok := g.registry.RoomOf(cmd.Conn); ok {
			g.deliver(room.Submit(cmd.Conn, Submission{Answer: cmd.Answer, Round: cmd.Round}))
		}

	case CommandRestart:
		if room, ok := g.registry.RoomOf(cmd.Conn); ok {
			g.deliver(room.Restart(cmd.Conn))
		}

	case CommandChat:
		if room, ok := g.registry.RoomOf(cmd.Conn); ok {
			g.deliver(room.Chat(cmd.Conn, cmd.Text))
		}

	case CommandLeave:
		g.deliver(g.registry.Leave(cmd.Conn))
	}
}

func (g *Gateway) disconnect(conn string) {
	if sink, ok := g.sinks[conn]; ok {
		delete(g.sinks, conn)
		sink.Close()
	}
	g.deliver(g.registry.Leave(conn))
}

// deliver sends each event to its single recipient or to every current
// member of its room.
func (g *Gateway) deliver(events []Event) {
	for _, ev := range events {
		if ev.Type == EventGameOver {
			g.record(ev)
		}

		if ev.To != "" {
			g.send(ev.To, ev)
			continue
		}

		room, ok := g.registry.Lookup(ev.Room)
		if !ok {
			continue
		}
		for _, conn := range room.Members() {
			g.send(conn, ev)
		}
	}
}

func (g *Gateway) send(conn string, ev Event) {
	sink, ok := g.sinks[conn]
	if !ok {
		return
	}
	if !sink.Send(ev) {
		g.evict = append(g.evict, conn)
	}
}

func (g *Gateway) fail(conn string, err error) {
	g.send(conn, Event{Type: EventError, Payload: ErrorPayload{
		Code:    errorCode(err),
		Message: err.Error(),
	}})
}

func (g *Gateway) record(ev Event) {
	if g.recorder == nil {
		return
	}

	over, ok := ev.Payload.(GameOverPayload)
	if !ok {
		return
	}

	res := GameResult{
		Room:       ev.Room,
		FinishedAt: g.now(),
		Winners:    over.Winners,
		Scores:     over.Scores,
	}
	if room, ok := g.registry.Lookup(ev.Room); ok {
		res.Settings, _ = room.Settings()
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), g.recordTimeout)
		defer cancel()

		if err := g.recorder.Record(ctx, res); err != nil {
			g.logf("RESULTS: Failed to record game in room %s: %v", res.Room, err)
		}
	}()
}

func (g *Gateway) reap() {
	for _, code := range g.registry.Reap(g.now().Add(-g.idleTimeout)) {
		g.logf("GAMES: Reaped idle room %s", code)
	}
}

func (g *Gateway) shutdown() {
	g.registry.Close()
	for conn, sink := range g.sinks {
		delete(g.sinks, conn)
		sink.Close()
	}
}
