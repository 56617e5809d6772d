/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package results archives finished riddle games in Redis.
package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Seednode/riddlebox/games/riddle"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
)

const (
	DefaultKeep   = 100
	DefaultPrefix = "riddlebox"

	connectTimeout = 5 * time.Second
)

var ErrNoAddress = errors.New("no redis address configured")

type Options struct {
	Addr     string
	Password string
	DB       int

	// Keep is the number of recent games retained.
	Keep int
	// Prefix namespaces every key written.
	Prefix string
}

// Leader is one row of the all-time wins board.
type Leader struct {
	Username string `json:"username"`
	Wins     int64  `json:"wins"`
}

// Archive keeps a capped list of recent results and a sorted set of wins per
// username. It satisfies riddle.Recorder.
type Archive struct {
	client *redis.Client
	keep   int64
	prefix string
}

// NewArchive connects to Redis and verifies the connection with a ping.
func NewArchive(ctx context.Context, opts Options) (*Archive, error) {
	if opts.Addr == "" {
		return nil, ErrNoAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()

		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newArchive(client, opts), nil
}

func newArchive(client *redis.Client, opts Options) *Archive {
	keep := opts.Keep
	if keep <= 0 {
		keep = DefaultKeep
	}

	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &Archive{
		client: client,
		keep:   int64(keep),
		prefix: prefix,
	}
}

func (a *Archive) key(name string) string {
	return a.prefix + ":" + name
}

// Record stores res and credits one win to each of its winners.
func (a *Archive) Record(ctx context.Context, res riddle.GameResult) error {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding result for room %s: %w", res.Room, err)
	}

	recent := a.key("recent")

	pipe := a.client.TxPipeline()
	pipe.LPush(ctx, recent, data)
	pipe.LTrim(ctx, recent, 0, a.keep-1)
	for _, w := range res.Winners {
		pipe.ZIncrBy(ctx, a.key("wins"), 1, w)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording result for room %s: %w", res.Room, err)
	}

	return nil
}

// Recent returns up to n results, newest first.
func (a *Archive) Recent(ctx context.Context, n int64) ([]riddle.GameResult, error) {
	if n <= 0 {
		return []riddle.GameResult{}, nil
	}

	raw, err := a.client.LRange(ctx, a.key("recent"), 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	return decodeResults(raw)
}

// Leaders returns the n usernames with the most wins.
func (a *Archive) Leaders(ctx context.Context, n int64) ([]Leader, error) {
	if n <= 0 {
		return []Leader{}, nil
	}

	zs, err := a.client.ZRevRangeWithScores(ctx, a.key("wins"), 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	return toLeaders(zs), nil
}

func (a *Archive) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func decodeResults(raw []string) ([]riddle.GameResult, error) {
	out := make([]riddle.GameResult, 0, len(raw))
	for _, s := range raw {
		var res riddle.GameResult
		if err := json.Unmarshal([]byte(s), &res); err != nil {
			return nil, fmt.Errorf("decoding stored result: %w", err)
		}
		out = append(out, res)
	}
	return out, nil
}

func toLeaders(zs []redis.Z) []Leader {
	out := make([]Leader, 0, len(zs))
	for _, z := range zs {
		out = append(out, Leader{
			Username: cast.ToString(z.Member),
			Wins:     int64(z.Score),
		})
	}
	return out
}
