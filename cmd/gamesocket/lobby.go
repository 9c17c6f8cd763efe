package main

import (
	"log/slog"
	"sync"
)

type sessionEmitter interface {
	ID() string
	Emit(event string, args ...any) error
}

// sessionJoiner emits join_game at most once per channel session. The
// connect listener and the already-connected check in joinLobby can both
// observe the same session.
type sessionJoiner struct {
	ch     sessionEmitter
	game   string
	logger *slog.Logger

	mu     sync.Mutex
	joined string // session id the game was last joined on
}

// join reports whether join_game was sent.
func (j *sessionJoiner) join() bool {
	j.mu.Lock()
	defer j.mu.Unlock()

	sid := j.ch.ID()
	if sid == "" || sid == j.joined {
		return false
	}
	if err := j.ch.Emit("join_game", j.game); err != nil {
		j.logger.Warn("failed to join game", "game", j.game, "error", err)
		return false
	}
	j.joined = sid
	return true
}
