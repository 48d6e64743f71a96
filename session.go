package main

// sessionRegistry tracks which players each websocket connection created,
// so a disconnect removes exactly those players and no others. It is owned
// by the hub goroutine and needs no locking.
type sessionRegistry struct {
	owned map[string][]string // connID -> playerIDs
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		owned: make(map[string][]string),
	}
}

func (s *sessionRegistry) register(connID, playerID string) {
	s.owned[connID] = append(s.owned[connID], playerID)
}

func (s *sessionRegistry) playersFor(connID string) []string {
	return s.owned[connID]
}

// unregister clears the connection's entry and hands back the players it
// owned. Calling it again returns nothing.
func (s *sessionRegistry) unregister(connID string) []string {
	players := s.owned[connID]
	delete(s.owned, connID)
	return players
}
