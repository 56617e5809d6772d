/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package riddle

import (
	"strings"

	"github.com/spf13/cast"
)

const (
	defaultTimeLimit  = 60
	defaultDifficulty = "easy"
	defaultCategory   = "random"
	defaultRounds     = 5

	maxTimeLimit = 3600
	maxRounds    = 100
)

// Settings are fixed for the duration of one game.
type Settings struct {
	TimeLimit  int    `json:"time_limit"`
	Difficulty string `json:"difficulty"`
	Category   string `json:"category"`
	Rounds     int    `json:"rounds"`
	HintMode   bool   `json:"hint_mode"`
}

func DefaultSettings() Settings {
	return Settings{
		TimeLimit:  defaultTimeLimit,
		Difficulty: defaultDifficulty,
		Category:   defaultCategory,
		Rounds:     defaultRounds,
		HintMode:   false,
	}
}

// NormalizeSettings builds Settings from loosely typed client input. Missing,
// non-numeric, non-positive or out-of-range numbers and blank strings take
// their defaults.
// Both camelCase and snake_case keys are accepted.
func NormalizeSettings(raw map[string]any) Settings {
	s := DefaultSettings()

	if n := toInt(lookup(raw, "timeLimit", "time_limit")); n > 0 && n <= maxTimeLimit {
		s.TimeLimit = n
	}
	if n := toInt(lookup(raw, "rounds", "roundCount", "round_count")); n > 0 && n <= maxRounds {
		s.Rounds = n
	}
	if v := strings.TrimSpace(cast.ToString(lookup(raw, "difficulty"))); v != "" {
		s.Difficulty = v
	}
	if v := strings.TrimSpace(cast.ToString(lookup(raw, "category"))); v != "" {
		s.Category = v
	}
	s.HintMode = cast.ToBool(lookup(raw, "hintMode", "hint_mode"))

	return s
}

// toInt reads numeric strings as decimal, so "010" is 10 rather than octal.
func toInt(v any) int {
	str, ok := v.(string)
	if !ok {
		return cast.ToInt(v)
	}

	str = strings.TrimSpace(str)
	sign := ""
	if rest, neg := strings.CutPrefix(str, "-"); neg {
		sign, str = "-", rest
	}
	if trimmed := strings.TrimLeft(str, "0"); trimmed != str {
		str = trimmed
		if str == "" || str[0] < '0' || str[0] > '9' {
			str = "0" + str
		}
	}

	return cast.ToInt(sign + str)
}

func lookup(raw map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
