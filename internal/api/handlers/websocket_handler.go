package handlers

import (
	"net/http"

	"auction-marketplace/internal/infrastructure/websocket"

	"github.com/gorilla/mux"
)

// LiveHandlers mounts the live service routes on a gorilla router.
type LiveHandlers struct {
	wsHandler *websocket.WebSocketHandler
}

func NewLiveHandlers(wsHandler *websocket.WebSocketHandler) *LiveHandlers {
	return &LiveHandlers{wsHandler: wsHandler}
}

func (h *LiveHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/ws/auction/{auctionID}", h.wsHandler.HandleConnection).Methods(http.MethodGet)
	router.HandleFunc("/health", h.Health).Methods(http.MethodGet)
}

func (h *LiveHandlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}
