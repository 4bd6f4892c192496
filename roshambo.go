// Roshambo PvP
//
// Two players share a four-digit room code and throw rock, paper, or
// scissor each round. First to five points wins the match.
//
// Features:
// - One WebSocket endpoint; the room code travels in each message
// - Join-or-create: the first join for an unknown code creates the room
// - Seats assigned in fixed order (p1 before p2), third joiner rejected
// - Rounds resolve once both seats have thrown; duplicates are rejected
// - Match locks at five points until a seated player resets it
// - Room chat relayed with a server timestamp, never stored
// - Rooms vanish the instant the last seat empties
// - Idle rooms swept after a configurable timeout
// - In-browser QR button to share a room join link, backed by go-qrcode
// - Practice (CPU) mode is entirely client-side; it never opens a socket

package main

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// Messages coming from clients
type clientMessage struct {
	Type string `json:"type"`           // "join", "move", "reset", "chat"
	Room string `json:"room,omitempty"` // all intents
	Name string `json:"name,omitempty"` // join / chat sender
	Skin int    `json:"skin,omitempty"` // join
	Seat string `json:"seat,omitempty"` // move
	Move string `json:"move,omitempty"` // move
	Text string `json:"text,omitempty"` // chat
}

// Sent only to the client that claimed a seat.
type joinedMessage struct {
	Type     string      `json:"type"` // "joined"
	Room     string      `json:"room"`
	Seat     string      `json:"seat"`
	Opponent *playerView `json:"opponent,omitempty"`
}

// roomStateMessage refreshes every client's view after a join, leave,
// or reset.
type roomStateMessage struct {
	Type string `json:"type"` // "room_state"
	roomState
}

// choiceMessage acknowledges a pending throw without revealing it.
type choiceMessage struct {
	Type string `json:"type"` // "choice_made"
	Seat string `json:"seat"`
}

type resultMessage struct {
	Type   string            `json:"type"` // "round_result"
	Moves  map[string]string `json:"moves"`
	Winner string            `json:"winner"` // "p1", "p2", or "draw"
	Scores map[string]int    `json:"scores"`
	Round  int               `json:"round"`
}

type matchOverMessage struct {
	Type   string         `json:"type"` // "match_over"
	Winner string         `json:"winner"`
	Scores map[string]int `json:"scores"`
}

type chatMessage struct {
	Type      string `json:"type"` // "chat"
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"` // unix milliseconds, server-assigned
}

// noticeMessage is for generic room announcements (joins, departures,
// resets).
type noticeMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Sent to a single client when its intent was rejected.
type errorMessage struct {
	Type    string `json:"type"` // "error"
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type client struct {
	conn *websocket.Conn
	send chan any
	id   string

	// guarded by gateway.mu
	room string
	gone bool
}

// gateway owns the websocket side of a match: it decodes client intents,
// hands them to the coordinator, and fans the resulting events out to
// the room's members. It keeps no game state of its own beyond the
// connection→room membership index.
type gateway struct {
	cfg   *Config
	coord *coordinator

	mu      sync.Mutex
	members map[string]map[*client]bool

	handlers map[string]func(*client, clientMessage)
}

func newGateway(cfg *Config, coord *coordinator) *gateway {
	g := &gateway{
		cfg:     cfg,
		coord:   coord,
		members: make(map[string]map[*client]bool),
	}
	g.handlers = map[string]func(*client, clientMessage){
		"join":  g.handleJoin,
		"move":  g.handleMove,
		"reset": g.handleReset,
		"chat":  g.handleChat,
	}
	if cfg.sessionTimeout > 0 {
		go g.reaperLoop()
	}
	return g
}

// sendLocked queues a message for one client, dropping the connection
// if its buffer is full.
func (g *gateway) sendLocked(c *client, msg any) {
	if c.gone {
		return
	}
	select {
	case c.send <- msg:
	default:
		g.closeClientLocked(c)
	}
}

func (g *gateway) broadcastLocked(roomID string, msg any) {
	for c := range g.members[roomID] {
		g.sendLocked(c, msg)
	}
}

func (g *gateway) errorLocked(c *client, err error) {
	ge, ok := err.(*gameError)
	if !ok {
		ge = &gameError{kind: "internal", message: "Something went wrong."}
	}
	g.sendLocked(c, errorMessage{Type: "error", Kind: ge.kind, Message: ge.message})
}

// closeClientLocked unhooks a client from its room group and closes its
// send channel exactly once.
func (g *gateway) closeClientLocked(c *client) {
	if c.gone {
		return
	}
	c.gone = true
	close(c.send)

	if c.room != "" {
		if group := g.members[c.room]; group != nil {
			delete(group, c)
			if len(group) == 0 {
				delete(g.members, c.room)
			}
		}
	}
}

// drop runs when a connection's read loop ends for any reason. The
// disconnect becomes a leave: the seat is vacated and the remaining
// player, if any, is told.
func (g *gateway) drop(c *client) {
	g.mu.Lock()
	defer g.mu.Unlock()

	roomID := c.room
	g.closeClientLocked(c)

	if roomID == "" {
		return
	}
	res, ok := g.coord.leave(roomID, c.id)
	if !ok {
		return
	}
	logf(g.cfg, "GAMES: %q left room %s (%s)", res.Name, roomID, res.Seat)
	if res.Deleted {
		return
	}
	g.broadcastLocked(roomID, roomStateMessage{Type: "room_state", roomState: res.State})
	g.broadcastLocked(roomID, noticeMessage{Type: "notice", Message: res.Name + " left the room."})
}

// handleJoin processes "join" intents.
func (g *gateway) handleJoin(c *client, msg clientMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c.room != "" {
		g.sendLocked(c, errorMessage{Type: "error", Kind: "already_seated", Message: "This connection already holds a seat."})
		return
	}
	roomID := strings.TrimSpace(msg.Room)
	if roomID == "" {
		g.errorLocked(c, errRoomNotFound)
		return
	}
	name := strings.TrimSpace(msg.Name)
	if name == "" {
		name = "Player"
	}

	res, err := g.coord.join(roomID, name, msg.Skin, c.id)
	if err != nil {
		g.errorLocked(c, err)
		return
	}

	c.room = roomID
	group := g.members[roomID]
	if group == nil {
		group = make(map[*client]bool)
		g.members[roomID] = group
	}
	group[c] = true

	g.sendLocked(c, joinedMessage{Type: "joined", Room: roomID, Seat: res.Seat, Opponent: res.Opponent})
	g.broadcastLocked(roomID, roomStateMessage{Type: "room_state", roomState: res.State})
	g.broadcastLocked(roomID, noticeMessage{Type: "notice", Message: name + " joined the room."})

	logf(g.cfg, "GAMES: %q joined room %s as %s", name, roomID, res.Seat)
}

// handleMove processes "move" intents.
func (g *gateway) handleMove(c *client, msg clientMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out, err := g.coord.submitMove(msg.Room, msg.Seat, msg.Move, c.id)
	if err != nil {
		g.errorLocked(c, err)
		return
	}

	if out == nil {
		// First throw of the pair: acknowledge without revealing it.
		g.broadcastLocked(msg.Room, choiceMessage{Type: "choice_made", Seat: msg.Seat})
		return
	}

	g.broadcastLocked(msg.Room, resultMessage{
		Type:   "round_result",
		Moves:  out.Moves,
		Winner: out.Winner,
		Scores: out.Scores,
		Round:  out.Round,
	})

	if out.MatchOver {
		g.broadcastLocked(msg.Room, matchOverMessage{Type: "match_over", Winner: out.Winner, Scores: out.Scores})
		logf(g.cfg, "GAMES: Room %s match won by %s (%d-%d)", msg.Room, out.Winner, out.Scores[seatP1], out.Scores[seatP2])
	}
}

// handleReset processes "reset" intents from seated players.
func (g *gateway) handleReset(c *client, msg clientMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state, err := g.coord.reset(msg.Room, c.id)
	if err != nil {
		g.errorLocked(c, err)
		return
	}

	g.broadcastLocked(msg.Room, roomStateMessage{Type: "room_state", roomState: state})
	g.broadcastLocked(msg.Room, noticeMessage{Type: "notice", Message: "Scores were reset."})
}

// handleChat relays a chat line to the whole room with a server
// timestamp.
func (g *gateway) handleChat(c *client, msg clientMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}
	sender := strings.TrimSpace(msg.Name)
	if sender == "" {
		sender = "Player"
	}

	at, err := g.coord.chat(msg.Room)
	if err != nil {
		g.errorLocked(c, err)
		return
	}

	g.broadcastLocked(msg.Room, chatMessage{
		Type:      "chat",
		Sender:    sender,
		Text:      text,
		Timestamp: at.UnixMilli(),
	})
}

// reaperLoop periodically disconnects rooms idle longer than the
// session timeout. The resulting read-loop exits vacate the seats, and
// delete-on-empty does the rest.
func (g *gateway) reaperLoop() {
	ticker := time.NewTicker(g.cfg.sessionTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-g.cfg.sessionTimeout)
		stale := g.coord.idleRooms(cutoff)
		if len(stale) == 0 {
			continue
		}

		var conns []*websocket.Conn
		g.mu.Lock()
		for _, id := range stale {
			for c := range g.members[id] {
				conns = append(conns, c.conn)
			}
		}
		g.mu.Unlock()

		for _, conn := range conns {
			_ = conn.Close()
		}
		logf(g.cfg, "GAMES: Reaped %d idle room(s)", len(stale))
	}
}

func (c *client) readPump(g *gateway) {
	defer func() {
		g.drop(c)
		_ = c.conn.Close()
	}()

	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		handler, ok := g.handlers[msg.Type]
		if !ok {
			// ignore unknown types
			continue
		}
		handler(c, msg)
	}
}

func (c *client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func serveWS(cfg *Config, g *gateway) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logf(cfg, "ERROR: websocket upgrade failed for %s: %v", realIP(r), err)
			return
		}

		c := &client{
			conn: conn,
			send: make(chan any, 8),
			id:   uuid.NewString(),
		}

		go c.writePump()
		c.readPump(g)
	}
}

// QR handler: generates a PNG QR code for joining the given room.
func serveRoomQR(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("room")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/game?room=" + roomID + "&mode=join"

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerRoshambo sets up the game routes:
//   - /game      → game page, pvp or practice depending on query params
//   - /ws        → WebSocket endpoint for pvp matches
//   - /qr/:room  → PNG QR code linking to a room join URL
func registerRoshambo(cfg *Config, mux *httprouter.Router, errs chan<- error) {
	store := newRoomStore()
	coord := newCoordinator(store)
	g := newGateway(cfg, coord)

	mux.GET(cfg.prefix+"/game", serveGamePage(cfg, errs))
	mux.GET(cfg.prefix+"/ws", serveWS(cfg, g))
	mux.GET(cfg.prefix+"/qr/:room", serveRoomQR(cfg))
}
