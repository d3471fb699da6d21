package rps

import (
	"fmt"
	"strings"
)

// Move played by a player during a round
type Move int

const (
	// None is the last move of a player before the first round
	None Move = iota
	Rock
	Paper
	Scissors
)

// Moves lists the playable moves, in prompt order
var Moves = []Move{Rock, Paper, Scissors}

// Defeats maps a move to the move that beats it
var Defeats = map[Move]Move{
	Rock:     Paper,
	Scissors: Rock,
	Paper:    Scissors,
}

var moveNames = map[Move]string{
	None:     "none",
	Rock:     "rock",
	Paper:    "paper",
	Scissors: "scissors",
}

var moveLabels = map[Move]string{
	None:     "nothing",
	Rock:     "👊 rock",
	Paper:    "✋ paper",
	Scissors: "✌️ scissors",
}

func (m Move) String() string {
	if name, ok := moveNames[m]; ok {
		return name
	}
	return fmt.Sprintf("Move(%d)", int(m))
}

// Label is the emoji decorated name used in consoles
func (m Move) Label() string {
	if label, ok := moveLabels[m]; ok {
		return label
	}
	return m.String()
}

// Valid is true for rock, paper and scissors
func (m Move) Valid() bool {
	return m >= Rock && m <= Scissors
}

// Index of the move in Moves, -1 for None
func (m Move) Index() int {
	if !m.Valid() {
		return -1
	}
	return int(m) - 1
}

// MoveFromIndex is the inverse of Index
func MoveFromIndex(i int) (Move, error) {
	if i < 0 || i >= len(Moves) {
		return None, fmt.Errorf("invalid move index %d", i)
	}
	return Moves[i], nil
}

// ParseMove accepts the move names, case insensitive, an empty string is None
func ParseMove(s string) (Move, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return None, nil
	}
	for m, name := range moveNames {
		if name == s {
			return m, nil
		}
	}
	return None, fmt.Errorf("unknown move %q", s)
}

func (m Move) MarshalText() ([]byte, error) {
	if _, ok := moveNames[m]; !ok {
		return nil, fmt.Errorf("unknown move %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *Move) UnmarshalText(b []byte) error {
	parsed, err := ParseMove(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Beats is true when a wins against b
func Beats(a, b Move) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return Defeats[b] == a
}

// Outcome of a round from the first player point of view: 1 win, -1 loss, 0 draw
func Outcome(p1, p2 Move) int {
	switch {
	case Beats(p1, p2):
		return 1
	case Beats(p2, p1):
		return -1
	}
	return 0
}
