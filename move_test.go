package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveExhaustive(t *testing.T) {
	moves := []Move{moveRock, movePaper, moveScissor}

	// All nine combinations, and the strict-inverse property: if a
	// beats b, then b must lose to a.
	for _, a := range moves {
		for _, b := range moves {
			got, err := resolve(a, b)
			require.NoError(t, err)

			inverse, err := resolve(b, a)
			require.NoError(t, err)

			switch {
			case a == b:
				assert.Equal(t, drawnRound, got, "%s vs %s", a, b)
				assert.Equal(t, drawnRound, inverse, "%s vs %s", b, a)
			case beats[a] == b:
				assert.Equal(t, firstWins, got, "%s vs %s", a, b)
				assert.Equal(t, secondWins, inverse, "%s vs %s", b, a)
			default:
				assert.Equal(t, secondWins, got, "%s vs %s", a, b)
				assert.Equal(t, firstWins, inverse, "%s vs %s", b, a)
			}
		}
	}
}

func TestResolveRejectsUnknownMoves(t *testing.T) {
	_, err := resolve(Move("lizard"), moveRock)
	assert.Error(t, err)

	_, err = resolve(moveRock, Move(""))
	assert.Error(t, err)
}

func TestParseMove(t *testing.T) {
	for _, valid := range []string{"rock", "paper", "scissor"} {
		m, err := parseMove(valid)
		require.NoError(t, err)
		assert.Equal(t, Move(valid), m)
	}

	for _, invalid := range []string{"", "scissors", "Rock", "spock"} {
		_, err := parseMove(invalid)
		assert.Error(t, err, "%q should not parse", invalid)
	}
}
