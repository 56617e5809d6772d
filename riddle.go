/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Riddlebox riddle game
//
// Players gather in a room identified by a short numeric code. The host picks
// round settings and starts the game; every player sees the same riddles and
// the first correct answer in each round scores. Rounds also end when every
// player has answered or the round timer runs out.
//
// Routes:
//   - $path              → creates a room and redirects to it
//   - $path/:code        → room page
//   - $path/:code/ws     → websocket for that room
//   - $path/:code/qr     → PNG QR code for the room URL
//   - /results           → recent games and top winners, when Redis is configured

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Seednode/riddlebox/games/riddle"
	"github.com/Seednode/riddlebox/results"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cast"
)

const (
	riddlePath = "/riddles"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBuffer     = 32

	defaultResults = 10
	maxResults     = 100
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type resultStore interface {
	Recent(ctx context.Context, n int64) ([]riddle.GameResult, error)
	Leaders(ctx context.Context, n int64) ([]results.Leader, error)
}

// Client is one websocket connection. It implements riddle.Sink.
type Client struct {
	conn *websocket.Conn
	send chan riddle.Event
	id   string
	once sync.Once
}

func newClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan riddle.Event, sendBuffer),
		id:   uuid.NewString(),
	}
}

func (c *Client) Send(ev riddle.Event) bool {
	select {
	case c.send <- ev:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.send)
	})
}

func (c *Client) readPump(cfg *Config, gw *riddle.Gateway, code string) {
	defer func() {
		gw.Disconnect(c.id)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logf(cfg, "GAMES: Connection %s closed: %v", c.id, err)
			}
			return
		}

		var cmd riddle.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			continue
		}

		cmd.Conn = c.id
		if cmd.Type == riddle.CommandJoin && cmd.Code == "" {
			cmd.Code = code
		}

		gw.Dispatch(cmd)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func serveWS(cfg *Config, gw *riddle.Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "GAMES: Upgrade failed for %s: %v", realIP(r), err)
			return
		}

		client := newClient(conn)
		gw.Connect(client.id, client)

		logf(cfg, "GAMES: Connection %s opened from %s for room %s", client.id, realIP(r), code)

		go client.writePump()
		client.readPump(cfg, gw, code)
	}
}

// roomURL derives the absolute URL of a room page, respecting TLS and
// X-Forwarded-Proto.
func roomURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + strings.TrimSuffix(r.URL.Path, "/qr")
}

func qrHandler(cfg *Config, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		const qrSize = 320

		png, err := qrcode.Encode(roomURL(r), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(cfg, w)

		if _, err := w.Write(png); err != nil {
			errs <- err
		}
	}
}

func serveRoomPage(cfg *Config, gw *riddle.Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := ps.ByName("code")

		ok, err := gw.RoomExists(r.Context(), code)
		if err != nil {
			http.Error(w, "game server unavailable", http.StatusServiceUnavailable)
			return
		}
		if !ok {
			serveNotFound(cfg, w)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(newPage(cfg, "Room "+code, "Room "+code+" is open. Connect to "+r.URL.Path+"/ws to play.")))
	}
}

// redirectNewRoom handles GET $path by allocating a room and redirecting to
// $path/:code.
func redirectNewRoom(cfg *Config, path string, gw *riddle.Gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		code, err := gw.CreateRoom(r.Context())
		switch {
		case errors.Is(err, riddle.ErrRegistryFull):
			http.Error(w, "no room codes available", http.StatusServiceUnavailable)
			return
		case err != nil:
			http.Error(w, "game server unavailable", http.StatusServiceUnavailable)
			return
		}

		http.Redirect(w, r, cfg.prefix+path+"/"+code, http.StatusTemporaryRedirect)
	}
}

type resultsResponse struct {
	Recent  []riddle.GameResult `json:"recent"`
	Leaders []results.Leader    `json:"leaders"`
}

func serveResults(cfg *Config, store resultStore, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if store == nil {
			serveNotFound(cfg, w)
			return
		}

		startTime := time.Now()

		n := cast.ToInt64(r.URL.Query().Get("n"))
		if n <= 0 {
			n = defaultResults
		}
		n = min(n, maxResults)

		recent, err := store.Recent(r.Context(), n)
		if err != nil {
			logf(cfg, "RESULTS: Failed to read recent games: %v", err)
			http.Error(w, "results unavailable", http.StatusServiceUnavailable)
			return
		}

		leaders, err := store.Leaders(r.Context(), n)
		if err != nil {
			logf(cfg, "RESULTS: Failed to read leaders: %v", err)
			http.Error(w, "results unavailable", http.StatusServiceUnavailable)
			return
		}

		body, err := json.Marshal(resultsResponse{Recent: recent, Leaders: leaders})
		if err != nil {
			errs <- err
			http.Error(w, "results unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		securityHeaders(cfg, w)

		written, err := w.Write(body)
		if err != nil {
			errs <- err

			return
		}

		logf(cfg, "SERVE: Results (%s) to %s in %s",
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func registerRiddleGame(cfg *Config, path string, mux *httprouter.Router, gw *riddle.Gateway, store resultStore, errs chan<- error) {
	mux.GET(cfg.prefix+path, redirectNewRoom(cfg, path, gw))

	mux.GET(cfg.prefix+path+"/:code", serveRoomPage(cfg, gw))

	mux.GET(cfg.prefix+path+"/:code/ws", serveWS(cfg, gw))

	mux.GET(cfg.prefix+path+"/:code/qr", qrHandler(cfg, errs))

	mux.GET(cfg.prefix+"/results", serveResults(cfg, store, errs))
}
