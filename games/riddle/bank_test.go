package riddle

import (
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestSelectReturnsDistinctQuestions(t *testing.T) {
	b := testBank(t, 10)

	tests := []struct {
		n    int
		want int
	}{
		{n: 0, want: 0},
		{n: -3, want: 0},
		{n: 1, want: 1},
		{n: 5, want: 5},
		{n: 10, want: 10},
		{n: 25, want: 10},
	}

	for _, tt := range tests {
		got := b.Select(tt.n)
		if len(got) != tt.want {
			t.Errorf("Select(%d) returned %d questions, want %d", tt.n, len(got), tt.want)
		}

		seen := make(map[string]bool)
		for _, q := range got {
			if seen[q.Prompt] {
				t.Errorf("Select(%d) returned %q twice", tt.n, q.Prompt)
			}
			seen[q.Prompt] = true
		}
	}
}

func TestSelectDoesNotMutateBank(t *testing.T) {
	b := testBank(t, 6)
	before := make([]Question, len(b.questions))
	copy(before, b.questions)

	for range 20 {
		b.Select(6)
	}

	for i := range before {
		if b.questions[i] != before[i] {
			t.Fatalf("bank order changed at %d: %v != %v", i, b.questions[i], before[i])
		}
	}
}

func TestSelectIsUniform(t *testing.T) {
	qs := []Question{
		{Prompt: "a", Answer: "1"},
		{Prompt: "b", Answer: "2"},
		{Prompt: "c", Answer: "3"},
	}
	b, err := NewBank(qs, WithRand(rand.New(rand.NewPCG(42, 7))))
	if err != nil {
		t.Fatal(err)
	}

	const trials = 60000
	counts := make(map[string]int)
	for range trials {
		var sb strings.Builder
		for _, q := range b.Select(3) {
			sb.WriteString(q.Prompt)
		}
		counts[sb.String()]++
	}

	if len(counts) != 6 {
		t.Fatalf("saw %d distinct permutations, want 6: %v", len(counts), counts)
	}

	// Each permutation should land near trials/6 = 10000.
	for perm, n := range counts {
		if n < 9000 || n > 11000 {
			t.Errorf("permutation %s drawn %d times, want about %d", perm, n, trials/6)
		}
	}
}

func TestNewBankValidation(t *testing.T) {
	if _, err := NewBank(nil); !errors.Is(err, ErrEmptyBank) {
		t.Errorf("NewBank(nil) error = %v, want ErrEmptyBank", err)
	}

	if _, err := NewBank([]Question{{Prompt: "  ", Answer: "x"}}); err == nil {
		t.Error("NewBank accepted a blank prompt")
	}

	if _, err := NewBank([]Question{{Prompt: "x", Answer: ""}}); err == nil {
		t.Error("NewBank accepted a blank answer")
	}
}

func TestLoadBank(t *testing.T) {
	b, err := LoadBank(strings.NewReader(`[
		{"question": " What gets wet while drying? ", "answer": "Towel", "category": "classic"}
	]`))
	if err != nil {
		t.Fatalf("LoadBank: %v", err)
	}

	got := b.Select(1)[0]
	if got.Prompt != "What gets wet while drying?" || got.Category != "classic" {
		t.Errorf("unexpected question %+v", got)
	}

	if _, err := LoadBank(strings.NewReader(`{"question": "x"}`)); err == nil {
		t.Error("LoadBank accepted an object instead of an array")
	}
}

func TestDefaultBank(t *testing.T) {
	b, err := DefaultBank()
	if err != nil {
		t.Fatalf("DefaultBank: %v", err)
	}
	if b.Len() < 10 {
		t.Errorf("default bank has %d questions, want at least 10", b.Len())
	}
}

func TestQuestionMatches(t *testing.T) {
	q := Question{Prompt: "What goes up but never comes down?", Answer: "Age"}

	tests := []struct {
		answer string
		want   bool
	}{
		{"age", true},
		{"  AGE\t", true},
		{"Age ", true},
		{"ages", false},
		{"", false},
		{"a ge", false},
	}

	for _, tt := range tests {
		if got := q.Matches(tt.answer); got != tt.want {
			t.Errorf("Matches(%q) = %v, want %v", tt.answer, got, tt.want)
		}
	}
}
