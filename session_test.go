package main

import (
	"testing"
)

func TestSessionRegistryTracksOwnedPlayers(t *testing.T) {
	s := newSessionRegistry()

	s.register("conn1", "p1")
	s.register("conn1", "p2")
	s.register("conn2", "p3")

	got := s.playersFor("conn1")
	if len(got) != 2 || got[0] != "p1" || got[1] != "p2" {
		t.Fatalf("playersFor(conn1) = %v", got)
	}
	if got := s.playersFor("conn3"); len(got) != 0 {
		t.Fatalf("playersFor(conn3) = %v, want empty", got)
	}
}

func TestSessionRegistryUnregisterIsIdempotent(t *testing.T) {
	s := newSessionRegistry()

	s.register("conn1", "p1")

	if got := s.unregister("conn1"); len(got) != 1 || got[0] != "p1" {
		t.Fatalf("first unregister = %v", got)
	}
	if got := s.unregister("conn1"); len(got) != 0 {
		t.Fatalf("second unregister = %v, want empty", got)
	}
	if got := s.playersFor("conn1"); len(got) != 0 {
		t.Fatalf("playersFor after unregister = %v, want empty", got)
	}
}

func TestSessionRegistryIsolatesConnections(t *testing.T) {
	s := newSessionRegistry()

	s.register("conn1", "p1")
	s.register("conn2", "p2")

	s.unregister("conn1")

	if got := s.playersFor("conn2"); len(got) != 1 || got[0] != "p2" {
		t.Fatalf("conn2 affected by conn1 unregister: %v", got)
	}
}
