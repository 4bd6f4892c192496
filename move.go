package main

import "fmt"

// Move is one of the three throwable symbols.
type Move string

const (
	moveRock    Move = "rock"
	movePaper   Move = "paper"
	moveScissor Move = "scissor"
)

// verdict is the outcome of comparing two moves.
type verdict int

const (
	firstWins verdict = iota
	secondWins
	drawnRound
)

// beats maps each move to the move it defeats.
var beats = map[Move]Move{
	moveRock:    moveScissor,
	moveScissor: movePaper,
	movePaper:   moveRock,
}

func parseMove(s string) (Move, error) {
	m := Move(s)
	if _, ok := beats[m]; !ok {
		return "", fmt.Errorf("unknown move %q", s)
	}
	return m, nil
}

// resolve compares two moves: rock beats scissor, scissor beats paper,
// paper beats rock, equal moves draw. Values outside the three-move
// domain are an error rather than a silent default, so a malformed
// payload can never reach score bookkeeping.
func resolve(a, b Move) (verdict, error) {
	if _, ok := beats[a]; !ok {
		return drawnRound, fmt.Errorf("unknown move %q", a)
	}
	if _, ok := beats[b]; !ok {
		return drawnRound, fmt.Errorf("unknown move %q", b)
	}
	switch {
	case a == b:
		return drawnRound, nil
	case beats[a] == b:
		return firstWins, nil
	default:
		return secondWins, nil
	}
}
