package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"quiz-duel-service/internal/app"
	"quiz-duel-service/internal/domain"
)

// EventSubscriber exposes the subscription side of the in-process broker.
type EventSubscriber interface {
	Subscribe(channel string) (<-chan domain.Event, func())
}

type WSHandler struct {
	service  *app.ArenaService
	events   EventSubscriber
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.ArenaService, events EventSubscriber) *WSHandler {
	return &WSHandler{
		service: service,
		events:  events,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type searchPayload struct {
	Topic string `json:"topic"`
}

type answerPayload struct {
	DuelID    string `json:"duelId"`
	Round     int    `json:"round"`
	OptionID  string `json:"optionId"`
	ElapsedMs int64  `json:"elapsedMs"`
}

type cancelResult struct {
	Removed bool `json:"removed"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message  string `json:"message"`
	Conflict bool   `json:"conflict,omitempty"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the duel
// use cases. One socket serves one player.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("playerId")
	if playerID == "" {
		http.Error(w, "missing playerId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	playerCh, cancelPlayer := h.events.Subscribe(app.PlayerChannel(playerID))
	defer cancelPlayer()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	// Reconnects land mid-duel; resume the duel subscription immediately.
	var initialDuelCh <-chan domain.Event
	var cancelInitialDuel func()
	if view, ok := h.service.ActiveDuel(r.Context(), playerID); ok {
		initialDuelCh, cancelInitialDuel = h.events.Subscribe(app.DuelChannel(view.ID))
		send <- outboundMessage[any]{Type: "duelState", Payload: view}
	}

	go func() {
		defer close(eventsDone)
		duelCh := initialDuelCh
		cancelDuel := cancelInitialDuel
		defer func() {
			if cancelDuel != nil {
				cancelDuel()
			}
		}()
		forward := func(event domain.Event) bool {
			select {
			case send <- outboundMessage[any]{Type: event.Name, Payload: event.Payload}:
				return true
			case <-closeSignals:
				return false
			}
		}
		for {
			select {
			case event, ok := <-playerCh:
				if !ok {
					return
				}
				if !forward(event) {
					return
				}
				// A found match moves the conversation onto the duel channel.
				if event.Name == app.EventMatchFound {
					if view, ok := event.Payload.(domain.DuelView); ok {
						if cancelDuel != nil {
							cancelDuel()
						}
						duelCh, cancelDuel = h.events.Subscribe(app.DuelChannel(view.ID))
					}
				}
			case event, ok := <-duelCh:
				if !ok {
					duelCh = nil
					continue
				}
				if !forward(event) {
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "search":
			var payload searchPayload
			if len(inbound.Payload) > 0 {
				if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
					send <- errorMessage("invalid search payload", false)
					continue
				}
			}
			result, err := h.service.Search(r.Context(), playerID, payload.Topic)
			if err != nil {
				send <- errorMessage(err.Error(), domain.IsConflict(err))
				// An in-match conflict still carries the live duel so the
				// client can resume without reconnecting.
				if errors.Is(err, domain.ErrAlreadyInMatch) && result.Duel != nil {
					send <- outboundMessage[any]{Type: "searchResult", Payload: result}
				}
				continue
			}
			send <- outboundMessage[any]{Type: "searchResult", Payload: result}
		case "cancel":
			removed := h.service.CancelSearch(r.Context(), playerID)
			send <- outboundMessage[any]{Type: "cancelResult", Payload: cancelResult{Removed: removed}}
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- errorMessage("invalid answer payload", false)
				continue
			}
			result, err := h.service.SubmitAnswer(r.Context(), payload.DuelID, playerID, payload.Round, payload.OptionID, payload.ElapsedMs)
			if err != nil {
				send <- errorMessage(err.Error(), domain.IsConflict(err))
				continue
			}
			send <- outboundMessage[any]{Type: "answerResult", Payload: result}
		default:
			send <- errorMessage("unsupported message type", false)
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func errorMessage(message string, conflict bool) outboundMessage[any] {
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: message, Conflict: conflict}}
}
