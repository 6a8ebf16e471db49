package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// DuelHandler serves duel snapshots over plain HTTP for clients that poll
// instead of holding a socket.
type DuelHandler struct {
	service *app.ArenaService
}

func NewDuelHandler(service *app.ArenaService) *DuelHandler {
	return &DuelHandler{service: service}
}

func (h *DuelHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	duelID := r.URL.Query().Get("id")
	if duelID == "" {
		http.Error(w, "missing id", http.StatusBadRequest)
		return
	}

	view, err := h.service.GetDuel(r.Context(), duelID)
	if errors.Is(err, domain.ErrDuelNotFound) {
		http.Error(w, "duel not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}
