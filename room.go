package main

import (
	"sync"
	"time"
)

// winThreshold is the score that ends a match.
const winThreshold = 5

const (
	seatP1 = "p1"
	seatP2 = "p2"
)

// seatOrder fixes seat assignment: the first joiner always takes p1.
var seatOrder = [2]string{seatP1, seatP2}

// gameError is a rejected client intent. The kind travels back to the
// offending connection only; other room members never see it.
type gameError struct {
	kind    string
	message string
}

func (e *gameError) Error() string { return e.message }

var (
	errRoomNotFound      = &gameError{"room_not_found", "That room does not exist."}
	errRoomFull          = &gameError{"room_full", "That room already has two players."}
	errSeatMismatch      = &gameError{"seat_mismatch", "You are not seated at that position."}
	errInvalidMove       = &gameError{"invalid_move", "Moves must be rock, paper, or scissor."}
	errDuplicateChoice   = &gameError{"duplicate_choice", "You have already thrown this round."}
	errMatchAlreadyEnded = &gameError{"match_ended", "The match is over; reset to play again."}
)

// player occupies one seat for the lifetime of a single connection.
type player struct {
	connID string
	name   string
	skin   int
}

// playerView is the client-facing snapshot of a seat occupant.
type playerView struct {
	Name string `json:"name"`
	Skin int    `json:"skin"`
}

func (p *player) view() *playerView {
	return &playerView{Name: p.name, Skin: p.skin}
}

// room is the unit of match state: two seats, the pending choices for
// the current round, cumulative scores, and the round counter.
type room struct {
	id         string
	seats      map[string]*player
	choices    map[string]Move
	scores     map[string]int
	round      int
	ended      bool
	createdAt  time.Time
	lastActive time.Time
}

func newRoom(id string) *room {
	now := time.Now()
	return &room{
		id:         id,
		seats:      make(map[string]*player, 2),
		choices:    make(map[string]Move, 2),
		scores:     map[string]int{seatP1: 0, seatP2: 0},
		round:      1,
		createdAt:  now,
		lastActive: now,
	}
}

func (r *room) occupied() int {
	n := 0
	for _, seat := range seatOrder {
		if r.seats[seat] != nil {
			n++
		}
	}
	return n
}

// seatOf returns the seat held by a connection, or "".
func (r *room) seatOf(connID string) string {
	for _, seat := range seatOrder {
		if p := r.seats[seat]; p != nil && p.connID == connID {
			return seat
		}
	}
	return ""
}

// roomState is the broadcast view of a room.
type roomState struct {
	Seats  map[string]*playerView `json:"seats"`
	Scores map[string]int         `json:"scores"`
	Round  int                    `json:"round"`
}

func (r *room) state() roomState {
	seats := make(map[string]*playerView, 2)
	scores := make(map[string]int, 2)
	for _, seat := range seatOrder {
		if p := r.seats[seat]; p != nil {
			seats[seat] = p.view()
		}
		scores[seat] = r.scores[seat]
	}
	return roomState{Seats: seats, Scores: scores, Round: r.round}
}

// roomStore owns the id→room map. Nothing outside the coordinator
// mutates it, and tests can construct as many independent stores as
// they like.
type roomStore struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func newRoomStore() *roomStore {
	return &roomStore{rooms: make(map[string]*room)}
}

func (s *roomStore) create(id string) (*room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rooms[id]; exists {
		return nil, false
	}
	r := newRoom(id)
	s.rooms[id] = r
	return r, true
}

func (s *roomStore) get(id string) (*room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[id]
	return r, ok
}

func (s *roomStore) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, id)
}

// idle returns the ids of rooms with no activity since the cutoff.
func (s *roomStore) idle(cutoff time.Time) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var ids []string
	for id, r := range s.rooms {
		if r.lastActive.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	return ids
}

// coordinator is the single authority over room state. Every operation
// runs under one mutex, so the two submissions that complete a round
// are processed in strict arrival order and each completed pair
// resolves exactly once.
type coordinator struct {
	mu    sync.Mutex
	store *roomStore
}

func newCoordinator(store *roomStore) *coordinator {
	return &coordinator{store: store}
}

type joinResult struct {
	Seat     string
	Opponent *playerView
	State    roomState
}

// join claims the first unoccupied seat (p1 before p2). Unknown room
// ids are created on the fly; practice mode never reaches this code.
func (c *coordinator) join(roomID, name string, skin int, connID string) (joinResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rm, ok := c.store.get(roomID)
	if !ok {
		rm, _ = c.store.create(roomID)
	}

	assigned := ""
	for _, seat := range seatOrder {
		if rm.seats[seat] == nil {
			assigned = seat
			break
		}
	}
	if assigned == "" {
		return joinResult{}, errRoomFull
	}

	rm.seats[assigned] = &player{connID: connID, name: name, skin: skin}
	rm.lastActive = time.Now()

	var opponent *playerView
	for _, seat := range seatOrder {
		if seat != assigned && rm.seats[seat] != nil {
			opponent = rm.seats[seat].view()
		}
	}

	return joinResult{Seat: assigned, Opponent: opponent, State: rm.state()}, nil
}

// roundOutcome is produced once per completed pair of moves.
type roundOutcome struct {
	Moves     map[string]string
	Winner    string // seat name, or "draw"
	Scores    map[string]int
	Round     int
	MatchOver bool
}

// submitMove records a pending choice for a seat, returning nil until
// the other seat has also thrown. A duplicate submission is rejected
// rather than overwritten, so retried network messages cannot skew a
// round.
func (c *coordinator) submitMove(roomID, seat, moveName, connID string) (*roundOutcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rm, ok := c.store.get(roomID)
	if !ok {
		return nil, errRoomNotFound
	}
	occupant := rm.seats[seat]
	if occupant == nil || occupant.connID != connID {
		return nil, errSeatMismatch
	}
	mv, err := parseMove(moveName)
	if err != nil {
		return nil, errInvalidMove
	}
	if rm.ended {
		return nil, errMatchAlreadyEnded
	}
	if _, pending := rm.choices[seat]; pending {
		return nil, errDuplicateChoice
	}

	rm.choices[seat] = mv
	rm.lastActive = time.Now()

	p1, ok1 := rm.choices[seatP1]
	p2, ok2 := rm.choices[seatP2]
	if !ok1 || !ok2 {
		return nil, nil
	}

	v, err := resolve(p1, p2)
	if err != nil {
		// unreachable: both choices were parsed on entry
		return nil, errInvalidMove
	}
	winner := "draw"
	switch v {
	case firstWins:
		winner = seatP1
	case secondWins:
		winner = seatP2
	}
	if winner != "draw" {
		rm.scores[winner]++
	}
	rm.round++
	delete(rm.choices, seatP1)
	delete(rm.choices, seatP2)

	out := &roundOutcome{
		Moves:  map[string]string{seatP1: string(p1), seatP2: string(p2)},
		Winner: winner,
		Scores: map[string]int{seatP1: rm.scores[seatP1], seatP2: rm.scores[seatP2]},
		Round:  rm.round,
	}
	if rm.scores[seatP1] >= winThreshold || rm.scores[seatP2] >= winThreshold {
		rm.ended = true
		out.MatchOver = true
	}
	return out, nil
}

// reset re-arms a finished (or in-progress) match. Seat occupancy is
// untouched; scores, pending choices, and the round counter start over.
func (c *coordinator) reset(roomID, connID string) (roomState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rm, ok := c.store.get(roomID)
	if !ok {
		return roomState{}, errRoomNotFound
	}
	if rm.seatOf(connID) == "" {
		return roomState{}, errSeatMismatch
	}

	rm.scores[seatP1] = 0
	rm.scores[seatP2] = 0
	rm.choices = make(map[string]Move, 2)
	rm.round = 1
	rm.ended = false
	rm.lastActive = time.Now()

	return rm.state(), nil
}

type leaveResult struct {
	Seat    string
	Name    string
	Deleted bool
	State   roomState
}

// leave vacates whichever seat the connection holds. The seat's pending
// choice goes with it, so a later joiner can never inherit a half-played
// round. The room is deleted the moment both seats are empty.
func (c *coordinator) leave(roomID, connID string) (leaveResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rm, ok := c.store.get(roomID)
	if !ok {
		return leaveResult{}, false
	}
	seat := rm.seatOf(connID)
	if seat == "" {
		return leaveResult{}, false
	}

	res := leaveResult{Seat: seat, Name: rm.seats[seat].name}
	delete(rm.seats, seat)
	delete(rm.choices, seat)
	rm.lastActive = time.Now()

	if rm.occupied() == 0 {
		c.store.remove(roomID)
		res.Deleted = true
		return res, true
	}
	res.State = rm.state()
	return res, true
}

// chat validates the room and stamps the relay time. Nothing is stored.
func (c *coordinator) chat(roomID string) (time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rm, ok := c.store.get(roomID)
	if !ok {
		return time.Time{}, errRoomNotFound
	}
	now := time.Now()
	rm.lastActive = now
	return now, nil
}

// snapshot returns the current broadcast view of a room, if it exists.
func (c *coordinator) snapshot(roomID string) (roomState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rm, ok := c.store.get(roomID)
	if !ok {
		return roomState{}, false
	}
	return rm.state(), true
}

// idleRooms lists rooms with no activity since the cutoff, for the
// gateway's reaper.
func (c *coordinator) idleRooms(cutoff time.Time) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.idle(cutoff)
}
