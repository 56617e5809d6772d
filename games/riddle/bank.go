/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package riddle

import (
	"bytes"
	crand "crypto/rand"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
)

//go:embed riddles.json
var defaultRiddles []byte

// Question is a single riddle and its expected answer.
type Question struct {
	Prompt     string `json:"question"`
	Answer     string `json:"answer"`
	Category   string `json:"category,omitempty"`
	Difficulty string `json:"difficulty,omitempty"`
}

// Matches reports whether answer equals the expected answer, ignoring case
// and surrounding whitespace.
func (q Question) Matches(answer string) bool {
	return normalizeAnswer(answer) == normalizeAnswer(q.Answer)
}

func normalizeAnswer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Bank is an immutable pool of questions. Select may be called from any
// goroutine.
type Bank struct {
	questions []Question

	mu  sync.Mutex
	rng *rand.Rand
}

// BankOption configures a Bank.
type BankOption func(*Bank)

// WithRand replaces the shuffle source, mostly so tests can be deterministic.
func WithRand(rng *rand.Rand) BankOption {
	return func(b *Bank) {
		b.rng = rng
	}
}

// NewBank copies qs into a new bank. Every question needs a prompt and an answer.
func NewBank(qs []Question, opts ...BankOption) (*Bank, error) {
	if len(qs) == 0 {
		return nil, ErrEmptyBank
	}

	questions := make([]Question, len(qs))
	for i, q := range qs {
		q.Prompt = strings.TrimSpace(q.Prompt)
		q.Answer = strings.TrimSpace(q.Answer)
		if q.Prompt == "" || q.Answer == "" {
			return nil, fmt.Errorf("question %d: prompt and answer are required", i)
		}
		questions[i] = q
	}

	b := &Bank{questions: questions}
	for _, opt := range opts {
		opt(b)
	}

	if b.rng == nil {
		var seed [32]byte
		_, _ = crand.Read(seed[:])
		b.rng = rand.New(rand.NewChaCha8(seed))
	}

	return b, nil
}

// LoadBank reads a JSON array of questions.
func LoadBank(r io.Reader, opts ...BankOption) (*Bank, error) {
	var qs []Question
	if err := json.NewDecoder(r).Decode(&qs); err != nil {
		return nil, fmt.Errorf("decoding questions: %w", err)
	}

	return NewBank(qs, opts...)
}

// DefaultBank returns the built-in riddle pool.
func DefaultBank(opts ...BankOption) (*Bank, error) {
	return LoadBank(bytes.NewReader(defaultRiddles), opts...)
}

func (b *Bank) Len() int {
	return len(b.questions)
}

// Select returns min(n, b.Len()) distinct questions in uniformly random order.
func (b *Bank) Select(n int) []Question {
	if n <= 0 {
		return []Question{}
	}

	pool := make([]Question, len(b.questions))
	copy(pool, b.questions)

	b.mu.Lock()
	// Fisher-Yates
	for i := len(pool) - 1; i > 0; i-- {
		j := b.rng.IntN(i + 1)
		pool[i], pool[j] = pool[j], pool[i]
	}
	b.mu.Unlock()

	return pool[:min(n, len(pool))]
}
