package handlers

import (
	"context"
)

// Shutdown ends every game and waits for in-flight corpus loads.
func (h *Handlers) Shutdown(ctx context.Context) error {
	h.cancel()

	h.mu.Lock()
	games := make([]*game, 0, len(h.games))
	for id, g := range h.games {
		games = append(games, g)
		delete(h.games, id)
	}
	h.mu.Unlock()

	for _, g := range games {
		g.ctrl.Exit()
	}
	for _, g := range games {
		if err := g.ctrl.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
