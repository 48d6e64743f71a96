package main

import (
	"testing"
)

func mustAdd(t *testing.T, g *GameState, connID, name string) Player {
	t.Helper()
	p, err := g.addPlayer(connID, name)
	if err != nil {
		t.Fatalf("addPlayer(%q): %v", name, err)
	}
	return p
}

func TestAddPlayerCapacity(t *testing.T) {
	g := &GameState{}

	for i, name := range []string{"a", "b", "c", "d"} {
		mustAdd(t, g, "conn", name)
		if len(g.Players) != i+1 || len(g.Scores) != i+1 {
			t.Fatalf("after %d joins: %d players, %d score columns", i+1, len(g.Players), len(g.Scores))
		}
	}

	if _, err := g.addPlayer("conn", "e"); err != errGameFull {
		t.Fatalf("5th join: want errGameFull, got %v", err)
	}
	if len(g.Players) != 4 || len(g.Scores) != 4 {
		t.Fatalf("rejected join changed state: %d players, %d score columns", len(g.Players), len(g.Scores))
	}
}

func TestAddPlayerDistinctIDs(t *testing.T) {
	g := &GameState{}

	a := mustAdd(t, g, "conn1", "a")
	b := mustAdd(t, g, "conn1", "b")

	if a.ID == b.ID {
		t.Fatalf("expected unique player ids, got same: %q", a.ID)
	}
	if a.ID == a.ConnID {
		t.Fatalf("player id should be generated, not the connection id")
	}
	if a.ConnID != "conn1" || b.ConnID != "conn1" {
		t.Fatalf("ConnID not recorded: %q / %q", a.ConnID, b.ConnID)
	}
}

func TestScoresStayAlignedWithPlayers(t *testing.T) {
	g := &GameState{}

	a := mustAdd(t, g, "c1", "a")
	mustAdd(t, g, "c2", "b")
	mustAdd(t, g, "c3", "c")

	if err := g.selectScore(a.ID, "ones", 3); err != nil {
		t.Fatalf("selectScore: %v", err)
	}

	g.removePlayer(a.ID)
	if len(g.Players) != 2 || len(g.Scores) != 2 {
		t.Fatalf("after removal: %d players, %d score columns", len(g.Players), len(g.Scores))
	}

	// a's score column must have gone with it.
	for i, col := range g.Scores {
		if _, ok := col["ones"]; ok {
			t.Fatalf("score column %d still holds the removed player's score", i)
		}
	}
}

func TestSelectScoreWriteOnce(t *testing.T) {
	g := &GameState{}
	a := mustAdd(t, g, "c1", "a")

	if err := g.selectScore(a.ID, "yatzy", 50); err != nil {
		t.Fatalf("first selectScore: %v", err)
	}
	if err := g.selectScore(a.ID, "yatzy", 0); err != errScoreTaken {
		t.Fatalf("second selectScore: want errScoreTaken, got %v", err)
	}
	if got := g.Scores[0]["yatzy"]; got != 50 {
		t.Fatalf("score overwritten: got %d, want 50", got)
	}
}

func TestSelectScoreZeroStillBlocksOverwrite(t *testing.T) {
	g := &GameState{}
	a := mustAdd(t, g, "c1", "a")

	// A recorded zero is a real score; presence, not value, marks the
	// category as taken.
	if err := g.selectScore(a.ID, "chance", 0); err != nil {
		t.Fatalf("scoring zero: %v", err)
	}
	if err := g.selectScore(a.ID, "chance", 30); err != errScoreTaken {
		t.Fatalf("overwrite after zero: want errScoreTaken, got %v", err)
	}
	if got := g.Scores[0]["chance"]; got != 0 {
		t.Fatalf("stored zero overwritten: got %d", got)
	}
}

func TestSelectScoreOutOfTurn(t *testing.T) {
	g := &GameState{}
	mustAdd(t, g, "c1", "a")
	b := mustAdd(t, g, "c2", "b")

	if err := g.selectScore(b.ID, "ones", 3); err != errOutOfTurn {
		t.Fatalf("want errOutOfTurn, got %v", err)
	}
	if len(g.Scores[1]) != 0 {
		t.Fatalf("out-of-turn score landed: %v", g.Scores[1])
	}
}

func TestRollDiceKeepsSelected(t *testing.T) {
	g := &GameState{}
	a := mustAdd(t, g, "c1", "a")

	g.Dice = [numDice]int{6, 6, 6, 6, 6}

	if err := g.rollDice(a.ID, []int{0, 2}); err != nil {
		t.Fatalf("rollDice: %v", err)
	}

	if g.Dice[0] != 6 || g.Dice[2] != 6 {
		t.Fatalf("kept dice changed: %v", g.Dice)
	}
	for i, d := range g.Dice {
		if d < 1 || d > 6 {
			t.Fatalf("die %d out of range: %d", i, d)
		}
	}
}

func TestRollDiceOutOfTurnLeavesDiceAlone(t *testing.T) {
	g := &GameState{}
	mustAdd(t, g, "c1", "a")
	b := mustAdd(t, g, "c2", "b")

	if err := g.rollDice(b.ID, nil); err != errOutOfTurn {
		t.Fatalf("want errOutOfTurn, got %v", err)
	}
	if g.Dice != [numDice]int{} {
		t.Fatalf("dice changed on rejected roll: %v", g.Dice)
	}
}

func TestRollDiceUnknownPlayer(t *testing.T) {
	g := &GameState{}
	if err := g.rollDice("nobody", nil); err != errOutOfTurn {
		t.Fatalf("empty table roll: want errOutOfTurn, got %v", err)
	}
}

func TestEndTurnAdvancesAndResetsDice(t *testing.T) {
	g := &GameState{}
	a := mustAdd(t, g, "c1", "a")
	b := mustAdd(t, g, "c2", "b")

	if err := g.rollDice(a.ID, nil); err != nil {
		t.Fatalf("rollDice: %v", err)
	}
	if err := g.endTurn(a.ID); err != nil {
		t.Fatalf("endTurn: %v", err)
	}
	if g.CurrentTurn != 1 {
		t.Fatalf("turn not advanced: %d", g.CurrentTurn)
	}
	if g.Dice != [numDice]int{} {
		t.Fatalf("dice not reset: %v", g.Dice)
	}

	// Wraps back to the first seat.
	if err := g.endTurn(b.ID); err != nil {
		t.Fatalf("endTurn: %v", err)
	}
	if g.CurrentTurn != 0 {
		t.Fatalf("turn did not wrap: %d", g.CurrentTurn)
	}
}

func TestEndTurnOutOfTurn(t *testing.T) {
	g := &GameState{}
	mustAdd(t, g, "c1", "a")
	b := mustAdd(t, g, "c2", "b")

	if err := g.endTurn(b.ID); err != errOutOfTurn {
		t.Fatalf("want errOutOfTurn, got %v", err)
	}
	if g.CurrentTurn != 0 {
		t.Fatalf("rejected endTurn advanced the turn: %d", g.CurrentTurn)
	}
}

func TestRemovePlayerRenormalizesTurn(t *testing.T) {
	g := &GameState{}
	a := mustAdd(t, g, "c1", "a")
	b := mustAdd(t, g, "c2", "b")
	c := mustAdd(t, g, "c3", "c")

	// Turn is c's; removing a shifts c down a seat.
	g.CurrentTurn = 2
	g.removePlayer(a.ID)
	if g.CurrentTurn != 1 || g.Players[g.CurrentTurn].ID != c.ID {
		t.Fatalf("turn lost its player: turn=%d players=%v", g.CurrentTurn, g.Players)
	}

	// Removing the current last seat wraps the turn to 0.
	g.removePlayer(c.ID)
	if g.CurrentTurn != 0 || g.Players[g.CurrentTurn].ID != b.ID {
		t.Fatalf("turn did not wrap after removal: turn=%d players=%v", g.CurrentTurn, g.Players)
	}
}

func TestRemoveLastPlayerResetsEverything(t *testing.T) {
	g := &GameState{}
	a := mustAdd(t, g, "c1", "a")
	b := mustAdd(t, g, "c2", "b")

	_ = g.rollDice(a.ID, nil)
	_ = g.selectScore(a.ID, "ones", 3)
	g.appendChat("a", "hello")

	g.removePlayer(a.ID)
	if len(g.Players) != 1 || len(g.Scores) != 1 {
		t.Fatalf("after first removal: %d players, %d score columns", len(g.Players), len(g.Scores))
	}

	g.removePlayer(b.ID)
	if len(g.Players) != 0 || len(g.Scores) != 0 || len(g.Chat) != 0 {
		t.Fatalf("table not reset: %+v", g)
	}
	if g.CurrentTurn != 0 || g.Dice != [numDice]int{} {
		t.Fatalf("turn/dice not reset: turn=%d dice=%v", g.CurrentTurn, g.Dice)
	}
}

func TestSnapshotIsDetached(t *testing.T) {
	g := &GameState{}
	a := mustAdd(t, g, "c1", "a")
	_ = g.selectScore(a.ID, "ones", 3)

	snap := g.snapshot()
	snap.Scores[0]["ones"] = 99
	snap.Dice[0] = 9
	snap.Players[0].Name = "mallory"

	if g.Scores[0]["ones"] != 3 || g.Dice[0] != 0 || g.Players[0].Name != "a" {
		t.Fatalf("snapshot shares memory with live state")
	}
}

// The two-player flow from top to bottom: join, roll, rejected roll,
// turn pass, score, rejected rescore.
func TestTwoPlayerFlow(t *testing.T) {
	g := &GameState{}

	alice := mustAdd(t, g, "c1", "Alice")
	bob := mustAdd(t, g, "c2", "Bob")

	if len(g.Players) != 2 || len(g.Scores[0]) != 0 || len(g.Scores[1]) != 0 {
		t.Fatalf("unexpected state after joins: %+v", g)
	}

	if err := g.rollDice(alice.ID, nil); err != nil {
		t.Fatalf("alice roll: %v", err)
	}
	for i, d := range g.Dice {
		if d < 1 || d > 6 {
			t.Fatalf("die %d out of range after roll: %d", i, d)
		}
	}

	before := g.Dice
	if err := g.rollDice(bob.ID, nil); err != errOutOfTurn {
		t.Fatalf("bob roll: want errOutOfTurn, got %v", err)
	}
	if g.Dice != before {
		t.Fatalf("bob's rejected roll changed dice")
	}

	if err := g.endTurn(alice.ID); err != nil {
		t.Fatalf("alice endTurn: %v", err)
	}
	if g.CurrentTurn != 1 || g.Dice != [numDice]int{} {
		t.Fatalf("after endTurn: turn=%d dice=%v", g.CurrentTurn, g.Dice)
	}

	if err := g.selectScore(bob.ID, "yatzy", 50); err != nil {
		t.Fatalf("bob score: %v", err)
	}
	if err := g.selectScore(bob.ID, "yatzy", 0); err != errScoreTaken {
		t.Fatalf("bob rescore: want errScoreTaken, got %v", err)
	}
	if g.Scores[1]["yatzy"] != 50 {
		t.Fatalf("yatzy score: got %d, want 50", g.Scores[1]["yatzy"])
	}
}
