package riddle

import (
	"fmt"
	"math/rand/v2"
	"testing"
	"time"
)

func testBank(t *testing.T, n int) *Bank {
	t.Helper()

	qs := make([]Question, n)
	for i := range qs {
		qs[i] = Question{
			Prompt: fmt.Sprintf("riddle %d", i),
			Answer: fmt.Sprintf("answer %d", i),
		}
	}

	b, err := NewBank(qs, WithRand(rand.New(rand.NewPCG(1, 2))))
	if err != nil {
		t.Fatalf("NewBank: %v", err)
	}
	return b
}

type fakeTimer struct {
	code    string
	token   uint64
	d       time.Duration
	stopped bool
}

func (f *fakeTimer) Stop() bool {
	was := !f.stopped
	f.stopped = true
	return was
}

type fakeTimers struct {
	armed []*fakeTimer
}

func (f *fakeTimers) schedule(code string, token uint64, d time.Duration) Timer {
	t := &fakeTimer{code: code, token: token, d: d}
	f.armed = append(f.armed, t)
	return t
}

func (f *fakeTimers) last() *fakeTimer {
	if len(f.armed) == 0 {
		return nil
	}
	return f.armed[len(f.armed)-1]
}

var testEpoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedNow() time.Time {
	return testEpoch
}

func newTestRoom(t *testing.T, bankSize int) (*Room, *fakeTimers) {
	t.Helper()

	timers := &fakeTimers{}
	return newRoom("1234", testBank(t, bankSize), timers.schedule, fixedNow), timers
}

func mustJoin(t *testing.T, r *Room, conn, name string) {
	t.Helper()

	if _, err := r.Join(conn, name); err != nil {
		t.Fatalf("Join(%q, %q): %v", conn, name, err)
	}
}

func mustStart(t *testing.T, r *Room, conn string, raw map[string]any) []Event {
	t.Helper()

	events, err := r.Start(conn, raw)
	if err != nil {
		t.Fatalf("Start(%q): %v", conn, err)
	}
	return events
}

// currentAnswer is the expected answer for the active round.
func currentAnswer(r *Room) string {
	return r.questions[r.round].Answer
}

func types(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func find(events []Event, t EventType) (Event, bool) {
	for _, ev := range events {
		if ev.Type == t {
			return ev, true
		}
	}
	return Event{}, false
}

func intPtr(n int) *int {
	return &n
}
