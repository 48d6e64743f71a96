package main

import (
	"errors"
	"math/rand"

	"github.com/google/uuid"
)

const (
	maxPlayers = 4
	numDice    = 5
)

var (
	errGameFull   = errors.New("table already has the maximum number of players")
	errOutOfTurn  = errors.New("not this player's turn")
	errScoreTaken = errors.New("category already scored for this player")
)

// Player is one seat at a table. ID identifies the player in all game
// actions; ConnID ties the player to the websocket connection that created
// it and is only consulted when that connection goes away.
type Player struct {
	ID     string `json:"id"`
	ConnID string `json:"-"`
	Name   string `json:"name"`
}

type ChatMessage struct {
	Author string `json:"author"`
	Text   string `json:"text"`
}

// GameState is the single shared record backing one table. It is owned by
// the table's hub goroutine and mutated only through the methods below,
// each of which runs to completion before the next inbound event is
// handled. Players and Scores are aligned by index, and player order
// doubles as turn rotation order.
type GameState struct {
	Players     []Player
	CurrentTurn int
	Dice        [numDice]int
	Scores      []map[string]int
	Chat        []ChatMessage
}

func (g *GameState) indexOf(playerID string) int {
	for i, p := range g.Players {
		if p.ID == playerID {
			return i
		}
	}
	return -1
}

// addPlayer seats a new player and an empty score column at the same
// index. CurrentTurn is left alone.
func (g *GameState) addPlayer(connID, name string) (Player, error) {
	if len(g.Players) >= maxPlayers {
		return Player{}, errGameFull
	}

	p := Player{
		ID:     uuid.NewString(),
		ConnID: connID,
		Name:   name,
	}

	g.Players = append(g.Players, p)
	g.Scores = append(g.Scores, make(map[string]int))

	return p, nil
}

// removePlayer drops the player and its score column together. When the
// last player leaves, the whole state resets to empty, chat included.
// Otherwise CurrentTurn is renormalized against the shortened list so it
// keeps pointing at a valid seat: seats above the removed one shift down,
// and the index wraps to 0 when it falls off the end.
func (g *GameState) removePlayer(playerID string) {
	i := g.indexOf(playerID)
	if i < 0 {
		return
	}

	g.Players = append(g.Players[:i], g.Players[i+1:]...)
	g.Scores = append(g.Scores[:i], g.Scores[i+1:]...)

	if len(g.Players) == 0 {
		*g = GameState{}
		return
	}

	if i < g.CurrentTurn {
		g.CurrentTurn--
	} else if g.CurrentTurn >= len(g.Players) {
		g.CurrentTurn = 0
	}
}

// rollDice rerolls every die whose index is not in keep, as long as the
// requester holds the turn. The store does not cap rolls per turn; any
// roll limit is advisory and lives in the client.
func (g *GameState) rollDice(playerID string, keep []int) error {
	if len(g.Players) == 0 || g.indexOf(playerID) != g.CurrentTurn {
		return errOutOfTurn
	}

	kept := make(map[int]bool, len(keep))
	for _, i := range keep {
		kept[i] = true
	}

	for i := range g.Dice {
		if kept[i] {
			continue
		}
		g.Dice[i] = rand.Intn(6) + 1
	}

	return nil
}

// endTurn passes the turn to the next seat in join order and resets the
// dice to unrolled.
func (g *GameState) endTurn(playerID string) error {
	if len(g.Players) == 0 || g.indexOf(playerID) != g.CurrentTurn {
		return errOutOfTurn
	}

	g.CurrentTurn = (g.CurrentTurn + 1) % len(g.Players)
	g.Dice = [numDice]int{}

	return nil
}

// selectScore records client-computed points for a category. Categories
// are write-once: presence in the map is what marks a category as scored,
// so a stored 0 blocks a second write just like any other value. Scoring
// does not advance the turn; that is a separate explicit action.
func (g *GameState) selectScore(playerID, category string, points int) error {
	i := g.indexOf(playerID)
	if i < 0 || i != g.CurrentTurn {
		return errOutOfTurn
	}

	if _, taken := g.Scores[i][category]; taken {
		return errScoreTaken
	}

	g.Scores[i][category] = points

	return nil
}

func (g *GameState) appendChat(author, text string) {
	g.Chat = append(g.Chat, ChatMessage{Author: author, Text: text})
}

// snapshot builds the full-state broadcast payload. Maps and slices are
// copied so receivers can never reach back into live state.
func (g *GameState) snapshot() GameStateMessage {
	players := make([]Player, len(g.Players))
	copy(players, g.Players)

	scores := make([]map[string]int, len(g.Scores))
	for i, col := range g.Scores {
		cp := make(map[string]int, len(col))
		for cat, pts := range col {
			cp[cat] = pts
		}
		scores[i] = cp
	}

	dice := make([]int, numDice)
	copy(dice, g.Dice[:])

	return GameStateMessage{
		Type:        "gameState",
		Players:     players,
		CurrentTurn: g.CurrentTurn,
		Dice:        dice,
		Scores:      scores,
	}
}
