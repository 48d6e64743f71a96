// Yatzybox Yatzy Game
//
// Up to four players share a table, roll five dice in turn, and fill in
// their scoreboard category by category. The server is authoritative for
// seating, turn order, dice, and recorded scores; it trusts the client's
// scoring arithmetic and rebroadcasts the whole table state after every
// accepted action.
//
// Features:
// - WebSockets per game ID: /path/:gameid and /path/:gameid/ws
// - Each table holds at most 4 players; a 5th joiner is told "gameFull"
// - One connection may seat multiple players; all of them leave with it
// - Turn order is join order; rolls, turn ends, and scoring require the turn
// - Dice kept between rolls are chosen by the client as index lists
// - Categories are write-once per player, a recorded 0 included
// - Out-of-turn and duplicate-score attempts are dropped without reply
// - Chat messages are appended and fanned out without a state broadcast
// - Last player leaving resets the table to empty, chat included
// - Tables auto-reaped after configurable idle timeout
// - Random 8-char game IDs via crypto/rand, with server-side collision check
// - In-browser QR button to share the current table, backed by go-qrcode

package main

import (
	"crypto/rand"
	"log"
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
type ClientMessage struct {
	Type         string `json:"type"`                   // "joinGame", "rollDice", "endTurn", "scoreSelect", "chatMessage", "ping"
	Username     string `json:"username,omitempty"`     // joinGame
	PlayerID     string `json:"playerId,omitempty"`     // rollDice / endTurn / scoreSelect
	SelectedDice []int  `json:"selectedDice,omitempty"` // rollDice: indices of dice to keep
	Category     string `json:"category,omitempty"`     // scoreSelect
	Points       int    `json:"points"`                 // scoreSelect
	Text         string `json:"text,omitempty"`         // chatMessage
}

// GameStateMessage carries the complete table state to every client after
// each accepted mutation. Always the whole thing, never a delta.
type GameStateMessage struct {
	Type        string           `json:"type"` // "gameState"
	Players     []Player         `json:"players"`
	CurrentTurn int              `json:"currentTurn"`
	Dice        []int            `json:"dice"`
	Scores      []map[string]int `json:"scores"`
}

// JoinedMessage is sent only to a successful joiner, so the client learns
// the server-generated ID it must present with later actions.
type JoinedMessage struct {
	Type     string `json:"type"` // "joined"
	PlayerID string `json:"playerId"`
}

// ChatBroadcast fans out a single chat message; the chat log itself is
// never rebroadcast.
type ChatBroadcast struct {
	Type     string `json:"type"` // "chatMessage"
	Username string `json:"username"`
	Text     string `json:"text"`
}

// SimpleMessage is for generic notifications ("gameFull", "pong")
type SimpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type Client struct {
	conn   *websocket.Conn
	send   chan any
	connID string
}

type joinRequest struct {
	client *Client
	msg    ClientMessage
}

type actionRequest struct {
	client *Client
	msg    ClientMessage
}

type chatRequest struct {
	client *Client
	msg    ClientMessage
}

type Hub struct {
	id       string
	clients  map[*Client]bool
	state    *GameState
	sessions *sessionRegistry

	register chan *Client
	unreg    chan *Client
	joins    chan joinRequest
	actions  chan actionRequest
	chats    chan chatRequest

	mu sync.RWMutex

	createdAt  time.Time
	lastActive time.Time
}

func newHub(gameID string) *Hub {
	now := time.Now()
	return &Hub{
		id:         gameID,
		clients:    make(map[*Client]bool),
		state:      &GameState{},
		sessions:   newSessionRegistry(),
		register:   make(chan *Client),
		unreg:      make(chan *Client),
		joins:      make(chan joinRequest),
		actions:    make(chan actionRequest),
		chats:      make(chan chatRequest),
		createdAt:  now,
		lastActive: now,
	}
}

// run drains all inbound events one at a time, so every mutation and its
// broadcast complete before the next event is looked at. That serialization
// is the only mutual exclusion the game state needs; the mutex exists for
// the fields the reaper reads from outside.
func (h *Hub) run(cfg *Config) {
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			h.lastActive = time.Now()
			h.clients[c] = true
			h.mu.Unlock()

			// Late arrivals get the current table immediately.
			c.send <- h.state.snapshot()

		case c := <-h.unreg:
			h.handleLeave(cfg, c)

		case jr := <-h.joins:
			h.handleJoin(cfg, jr)

		case ar := <-h.actions:
			h.handleAction(cfg, ar)

		case cr := <-h.chats:
			h.handleChat(cfg, cr)
		}
	}
}

// broadcastState sends the full table state to every connected client.
// Fire-and-forget: a client whose buffer is full is dropped on the spot.
func (h *Hub) broadcastState() {
	msg := h.state.snapshot()

	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (h *Hub) sendTo(c *Client, msg any) {
	select {
	case c.send <- msg:
	default:
		delete(h.clients, c)
		close(c.send)
	}
}

// handleJoin processes "joinGame" messages.
func (h *Hub) handleJoin(cfg *Config, jr joinRequest) {
	c := jr.client
	if jr.msg.Username == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	player, err := h.state.addPlayer(c.connID, jr.msg.Username)
	if err != nil {
		h.sendTo(c, SimpleMessage{
			Type:    "gameFull",
			Message: "The table already has the maximum number of players.",
		})
		return
	}

	h.sessions.register(c.connID, player.ID)
	logf(cfg, "GAMES: Player %q joined %s", player.Name, h.id)

	h.sendTo(c, JoinedMessage{
		Type:     "joined",
		PlayerID: player.ID,
	})
	h.broadcastState()
}

// handleAction processes the turn-ordered actions: rollDice, endTurn, and
// scoreSelect. A rejected action changes nothing and sends nothing back;
// the client is expected not to offer moves that are not its to make.
func (h *Hub) handleAction(cfg *Config, ar actionRequest) {
	msg := ar.msg

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	var err error
	switch msg.Type {
	case "rollDice":
		err = h.state.rollDice(msg.PlayerID, msg.SelectedDice)
	case "endTurn":
		err = h.state.endTurn(msg.PlayerID)
	case "scoreSelect":
		err = h.state.selectScore(msg.PlayerID, msg.Category, msg.Points)
	default:
		return
	}

	if err != nil {
		logf(cfg, "GAMES: Dropped %s in %s: %v", msg.Type, h.id, err)
		return
	}

	h.broadcastState()
}

// handleChat appends to the table's chat log and fans out just the new
// message. Connections that never seated a player have no name to speak
// with, so their chat is dropped.
func (h *Hub) handleChat(cfg *Config, cr chatRequest) {
	c := cr.client
	if cr.msg.Text == "" {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	owned := h.sessions.playersFor(c.connID)
	if len(owned) == 0 {
		return
	}
	i := h.state.indexOf(owned[0])
	if i < 0 {
		return
	}
	author := h.state.Players[i].Name

	h.state.appendChat(author, cr.msg.Text)
	logf(cfg, "GAMES: Chat from %q in %s", author, h.id)

	out := ChatBroadcast{
		Type:     "chatMessage",
		Username: author,
		Text:     cr.msg.Text,
	}
	for client := range h.clients {
		select {
		case client.send <- out:
		default:
			delete(h.clients, client)
			close(client.send)
		}
	}
}

// handleLeave unseats every player the departing connection owned. The
// state store resets itself to empty when the last one goes.
func (h *Hub) handleLeave(cfg *Config, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastActive = time.Now()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}

	owned := h.sessions.unregister(c.connID)
	for _, playerID := range owned {
		h.state.removePlayer(playerID)
	}

	if len(owned) > 0 {
		logf(cfg, "GAMES: Connection %s left %s, removing %d player(s)", c.connID, h.id, len(owned))
		h.broadcastState()
	}
}

// closeAll disconnects all clients of this hub (used by reaper).
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		close(c.send)
		if c.conn != nil {
			_ = c.conn.Close()
		}
		delete(h.clients, c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GameManager holds a set of hubs keyed by game ID, so each $path/$gameid
// is its own isolated table.
type GameManager struct {
	mu          sync.Mutex
	hubs        map[string]*Hub
	idleTimeout time.Duration
}

func newGameManager(idleTimeout time.Duration) *GameManager {
	gm := &GameManager{
		hubs:        make(map[string]*Hub),
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		go gm.reaperLoop()
	}
	return gm
}

func (gm *GameManager) getHub(cfg *Config, gameID string) *Hub {
	gm.mu.Lock()
	defer gm.mu.Unlock()

	if hub, ok := gm.hubs[gameID]; ok {
		return hub
	}

	hub := newHub(gameID)
	gm.hubs[gameID] = hub
	go hub.run(cfg)
	return hub
}

// newGameID generates a crypto-random game ID and ensures it doesn't
// collide with existing games.
func (gm *GameManager) newGameID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		gm.mu.Lock()
		_, exists := gm.hubs[id]
		gm.mu.Unlock()

		if !exists {
			return id
		}
	}
}

// reaperLoop periodically removes hubs that have been idle longer than idleTimeout.
func (gm *GameManager) reaperLoop() {
	ticker := time.NewTicker(gm.idleTimeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-gm.idleTimeout)

		gm.mu.Lock()
		for id, hub := range gm.hubs {
			hub.mu.RLock()
			last := hub.lastActive
			hub.mu.RUnlock()

			if last.Before(cutoff) {
				delete(gm.hubs, id)
				go hub.closeAll()
			}
		}
		gm.mu.Unlock()
	}
}

// WebSocket handler that picks the hub based on :gameid
func serveWSForManager(cfg *Config, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		gameID := ps.ByName("gameid")
		if gameID == "" {
			http.Error(w, "missing game id", http.StatusBadRequest)
			return
		}

		hub := gm.getHub(cfg, gameID)

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			conn:   conn,
			send:   make(chan any, 8),
			connID: uuid.NewString(),
		}

		hub.register <- client

		go client.writePump()
		client.readPump(hub)
	}
}

func (c *Client) readPump(h *Hub) {
	defer func() {
		h.unreg <- c
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "joinGame":
			h.joins <- joinRequest{
				client: c,
				msg:    msg,
			}
		case "rollDice", "endTurn", "scoreSelect":
			h.actions <- actionRequest{
				client: c,
				msg:    msg,
			}
		case "chatMessage":
			h.chats <- chatRequest{
				client: c,
				msg:    msg,
			}
		case "ping":
			select {
			case c.send <- SimpleMessage{Type: "pong", Message: "pong"}:
			default:
			}
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// QR handler: generates a PNG QR code for the current table URL using go-qrcode.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	gameID := ps.ByName("gameid")
	if gameID == "" {
		http.Error(w, "missing game id", http.StatusBadRequest)
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

	// We are at /.../:gameid/qr; strip trailing "/qr" to get the table URL.
	path := strings.TrimSuffix(r.URL.Path, "/qr")

	url := scheme + "://" + r.Host + path

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

// serveTablePage serves a minimal landing page for a table; the actual
// client is an external app speaking the websocket protocol.
func serveTablePage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		securityHeaders(cfg, w)

		gameID := ps.ByName("gameid")
		_, _ = w.Write([]byte(newPage("yatzybox — "+gameID, "Table "+gameID+": connect a Yatzy client to this page's /ws endpoint.")))
	}
}

// redirectNewGame handles GET /path by generating a new random game ID
// (with server-side collision detection) and redirecting to /path/:gameid.
func redirectNewGame(cfg *Config, path string, gm *GameManager) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		gameID := gm.newGameID()
		logf(cfg, "GAMES: Created game %s/%s", path, gameID)
		http.Redirect(w, r, path+"/"+gameID, http.StatusTemporaryRedirect)
	}
}

// registerYatzyGame sets up routes so that:
//   - $path                  → redirects to new random table (8-char ID)
//   - $path/:gameid          → landing page
//   - $path/:gameid/ws       → WebSocket for that table
//   - $path/:gameid/qr       → PNG QR code for that table URL
func registerYatzyGame(cfg *Config, path string, mux *httprouter.Router) {
	gm := newGameManager(cfg.sessionTimeout)

	// Root path → redirect to new random table
	mux.GET(path, redirectNewGame(cfg, path, gm))

	// Per-table landing page
	mux.GET(cfg.prefix+path+"/:gameid", serveTablePage(cfg))

	// Per-table websocket
	mux.GET(cfg.prefix+path+"/:gameid/ws", serveWSForManager(cfg, gm))

	// Per-table QR code
	mux.GET(cfg.prefix+path+"/:gameid/qr", qrHandler)
}
