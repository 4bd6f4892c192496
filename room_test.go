package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator() *coordinator {
	return newCoordinator(newRoomStore())
}

// joinPair seats two players in a fresh room and returns their
// connection ids.
func joinPair(t *testing.T, c *coordinator, roomID string) (string, string) {
	t.Helper()

	res, err := c.join(roomID, "Ana", 0, "conn-1")
	require.NoError(t, err)
	require.Equal(t, seatP1, res.Seat)
	require.Nil(t, res.Opponent)

	res, err = c.join(roomID, "Ben", 2, "conn-2")
	require.NoError(t, err)
	require.Equal(t, seatP2, res.Seat)
	require.NotNil(t, res.Opponent)
	require.Equal(t, "Ana", res.Opponent.Name)

	return "conn-1", "conn-2"
}

func TestJoinCreatesUnknownRooms(t *testing.T) {
	store := newRoomStore()
	c := newCoordinator(store)

	_, ok := store.get("1234")
	require.False(t, ok)

	_, err := c.join("1234", "Ana", 0, "conn-1")
	require.NoError(t, err)

	_, ok = store.get("1234")
	assert.True(t, ok)
}

func TestJoinAssignsSeatsInOrder(t *testing.T) {
	c := newTestCoordinator()
	joinPair(t, c, "1234")

	state, ok := c.snapshot("1234")
	require.True(t, ok)
	assert.Equal(t, "Ana", state.Seats[seatP1].Name)
	assert.Equal(t, 0, state.Seats[seatP1].Skin)
	assert.Equal(t, "Ben", state.Seats[seatP2].Name)
	assert.Equal(t, 2, state.Seats[seatP2].Skin)
	assert.Equal(t, 1, state.Round)
}

func TestThirdJoinRejectedWithoutMutation(t *testing.T) {
	c := newTestCoordinator()
	joinPair(t, c, "1234")

	before, _ := c.snapshot("1234")

	_, err := c.join("1234", "Eve", 1, "conn-3")
	assert.Equal(t, errRoomFull, err)

	after, _ := c.snapshot("1234")
	assert.Equal(t, before, after)
}

func TestSubmitMoveResolvesRoundOnce(t *testing.T) {
	c := newTestCoordinator()
	p1, p2 := joinPair(t, c, "1234")

	out, err := c.submitMove("1234", seatP1, "rock", p1)
	require.NoError(t, err)
	assert.Nil(t, out, "first throw of the pair should stay pending")

	out, err = c.submitMove("1234", seatP2, "scissor", p2)
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, "rock", out.Moves[seatP1])
	assert.Equal(t, "scissor", out.Moves[seatP2])
	assert.Equal(t, seatP1, out.Winner)
	assert.Equal(t, map[string]int{seatP1: 1, seatP2: 0}, out.Scores)
	assert.Equal(t, 2, out.Round)
	assert.False(t, out.MatchOver)
}

func TestDrawUpdatesNeitherScore(t *testing.T) {
	c := newTestCoordinator()
	p1, p2 := joinPair(t, c, "1234")

	_, err := c.submitMove("1234", seatP1, "paper", p1)
	require.NoError(t, err)
	out, err := c.submitMove("1234", seatP2, "paper", p2)
	require.NoError(t, err)
	require.NotNil(t, out)

	assert.Equal(t, "draw", out.Winner)
	assert.Equal(t, map[string]int{seatP1: 0, seatP2: 0}, out.Scores)
	assert.Equal(t, 2, out.Round)
}

func TestSubmitMoveSeatMismatch(t *testing.T) {
	c := newTestCoordinator()
	p1, _ := joinPair(t, c, "1234")

	// Claiming the opponent's seat must not work.
	_, err := c.submitMove("1234", seatP2, "rock", p1)
	assert.Equal(t, errSeatMismatch, err)

	// A stranger's connection id must not work either.
	_, err = c.submitMove("1234", seatP1, "rock", "conn-99")
	assert.Equal(t, errSeatMismatch, err)

	// Neither attempt may have left a pending choice behind.
	_, err = c.submitMove("1234", seatP1, "rock", p1)
	assert.NoError(t, err)
}

func TestSubmitMoveRejectsUnknownRoomAndMove(t *testing.T) {
	c := newTestCoordinator()
	p1, _ := joinPair(t, c, "1234")

	_, err := c.submitMove("9999", seatP1, "rock", p1)
	assert.Equal(t, errRoomNotFound, err)

	_, err = c.submitMove("1234", seatP1, "scissors", p1)
	assert.Equal(t, errInvalidMove, err)
}

func TestDuplicateChoiceRejectedNotOverwritten(t *testing.T) {
	c := newTestCoordinator()
	p1, p2 := joinPair(t, c, "1234")

	_, err := c.submitMove("1234", seatP1, "rock", p1)
	require.NoError(t, err)

	_, err = c.submitMove("1234", seatP1, "paper", p1)
	assert.Equal(t, errDuplicateChoice, err)

	// The original rock must still be pending: paper beats rock.
	out, err := c.submitMove("1234", seatP2, "paper", p2)
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "rock", out.Moves[seatP1])
	assert.Equal(t, seatP2, out.Winner)
}

func TestMatchEndsAtThreshold(t *testing.T) {
	c := newTestCoordinator()
	p1, p2 := joinPair(t, c, "1234")

	for i := 0; i < winThreshold; i++ {
		_, err := c.submitMove("1234", seatP1, "rock", p1)
		require.NoError(t, err)
		out, err := c.submitMove("1234", seatP2, "scissor", p2)
		require.NoError(t, err)
		require.NotNil(t, out)

		if i < winThreshold-1 {
			assert.False(t, out.MatchOver)
		} else {
			assert.True(t, out.MatchOver)
			assert.Equal(t, seatP1, out.Winner)
			assert.Equal(t, winThreshold, out.Scores[seatP1])
		}
	}

	// No further moves from either seat until a reset.
	_, err := c.submitMove("1234", seatP1, "rock", p1)
	assert.Equal(t, errMatchAlreadyEnded, err)
	_, err = c.submitMove("1234", seatP2, "paper", p2)
	assert.Equal(t, errMatchAlreadyEnded, err)

	state, _ := c.snapshot("1234")
	assert.Equal(t, winThreshold, state.Scores[seatP1])
	assert.Equal(t, 0, state.Scores[seatP2])
}

func TestResetReArmsAndIsIdempotent(t *testing.T) {
	c := newTestCoordinator()
	p1, p2 := joinPair(t, c, "1234")

	for i := 0; i < winThreshold; i++ {
		_, err := c.submitMove("1234", seatP1, "rock", p1)
		require.NoError(t, err)
		_, err = c.submitMove("1234", seatP2, "scissor", p2)
		require.NoError(t, err)
	}

	first, err := c.reset("1234", p1)
	require.NoError(t, err)
	second, err := c.reset("1234", p1)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 1, first.Round)
	assert.Equal(t, map[string]int{seatP1: 0, seatP2: 0}, first.Scores)
	assert.Equal(t, "Ana", first.Seats[seatP1].Name, "reset must not vacate seats")
	assert.Equal(t, "Ben", first.Seats[seatP2].Name)

	// The room accepts moves again.
	_, err = c.submitMove("1234", seatP1, "rock", p1)
	assert.NoError(t, err)
}

func TestResetRequiresSeatedConnection(t *testing.T) {
	c := newTestCoordinator()
	joinPair(t, c, "1234")

	_, err := c.reset("1234", "conn-99")
	assert.Equal(t, errSeatMismatch, err)

	_, err = c.reset("9999", "conn-1")
	assert.Equal(t, errRoomNotFound, err)
}

func TestLeaveVacatesSeatAndAnnounces(t *testing.T) {
	c := newTestCoordinator()
	p1, _ := joinPair(t, c, "1234")

	res, ok := c.leave("1234", p1)
	require.True(t, ok)
	assert.Equal(t, seatP1, res.Seat)
	assert.Equal(t, "Ana", res.Name)
	assert.False(t, res.Deleted)
	assert.Nil(t, res.State.Seats[seatP1])
	assert.Equal(t, "Ben", res.State.Seats[seatP2].Name)
}

func TestLeaveLastOccupantDeletesRoom(t *testing.T) {
	store := newRoomStore()
	c := newCoordinator(store)
	p1, p2 := joinPair(t, c, "1234")

	_, ok := c.leave("1234", p1)
	require.True(t, ok)
	res, ok := c.leave("1234", p2)
	require.True(t, ok)
	assert.True(t, res.Deleted)

	_, ok = store.get("1234")
	assert.False(t, ok)
}

func TestLeaveUnknownConnectionIsNoOp(t *testing.T) {
	c := newTestCoordinator()
	joinPair(t, c, "1234")

	_, ok := c.leave("1234", "conn-99")
	assert.False(t, ok)
	_, ok = c.leave("9999", "conn-1")
	assert.False(t, ok)
}

func TestLeaveClearsPendingChoice(t *testing.T) {
	c := newTestCoordinator()
	p1, p2 := joinPair(t, c, "1234")

	_, err := c.submitMove("1234", seatP1, "rock", p1)
	require.NoError(t, err)

	_, ok := c.leave("1234", p1)
	require.True(t, ok)

	// A replacement p1 must start the round fresh: p2's throw alone
	// cannot resolve anything.
	res, err := c.join("1234", "Cal", 3, "conn-3")
	require.NoError(t, err)
	require.Equal(t, seatP1, res.Seat)

	out, err := c.submitMove("1234", seatP2, "scissor", p2)
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestChatRelayIsStateless(t *testing.T) {
	c := newTestCoordinator()
	joinPair(t, c, "1234")

	at, err := c.chat("1234")
	require.NoError(t, err)
	assert.False(t, at.IsZero())

	_, err = c.chat("9999")
	assert.Equal(t, errRoomNotFound, err)
}

func TestStoresAreIndependent(t *testing.T) {
	a := newTestCoordinator()
	b := newTestCoordinator()

	_, err := a.join("1234", "Ana", 0, "conn-1")
	require.NoError(t, err)

	_, ok := b.snapshot("1234")
	assert.False(t, ok)
}

func TestFullMatchScenario(t *testing.T) {
	c := newTestCoordinator()

	res, err := c.join("1234", "Ana", 0, "conn-1")
	require.NoError(t, err)
	require.Equal(t, seatP1, res.Seat)

	res, err = c.join("1234", "Ben", 2, "conn-2")
	require.NoError(t, err)
	require.Equal(t, seatP2, res.Seat)
	require.Equal(t, 1, res.State.Round)
	require.Equal(t, map[string]int{seatP1: 0, seatP2: 0}, res.State.Scores)

	out, err := c.submitMove("1234", seatP1, "rock", "conn-1")
	require.NoError(t, err)
	require.Nil(t, out)

	out, err = c.submitMove("1234", seatP2, "scissor", "conn-2")
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "rock", out.Moves[seatP1])
	assert.Equal(t, "scissor", out.Moves[seatP2])
	assert.Equal(t, seatP1, out.Winner)
	assert.Equal(t, map[string]int{seatP1: 1, seatP2: 0}, out.Scores)
	assert.Equal(t, 2, out.Round)
}

func TestRoundCounterAcrossManyRounds(t *testing.T) {
	c := newTestCoordinator()
	p1, p2 := joinPair(t, c, "1234")

	throws := []struct{ a, b string }{
		{"rock", "rock"},
		{"paper", "rock"},
		{"scissor", "rock"},
		{"rock", "scissor"},
	}
	for i, round := range throws {
		_, err := c.submitMove("1234", seatP1, round.a, p1)
		require.NoError(t, err)
		out, err := c.submitMove("1234", seatP2, round.b, p2)
		require.NoError(t, err)
		require.NotNil(t, out, fmt.Sprintf("round %d", i+1))
		assert.Equal(t, i+2, out.Round)
	}

	state, _ := c.snapshot("1234")
	assert.Equal(t, 5, state.Round)
	assert.Equal(t, map[string]int{seatP1: 2, seatP2: 1}, state.Scores)
}
