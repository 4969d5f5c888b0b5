package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 4096
	bidTimeout     = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // origin is enforced by the gateway in front of the live service
	},
}

type bidPlacer interface {
	PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64, displayName string) (*domain.Bid, error)
}

type auctionReader interface {
	GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
}

type displayNamer interface {
	DisplayNameFor(ctx context.Context, identity domain.Identity) string
}

type WebSocketHandler struct {
	bids        bidPlacer
	auctions    auctionReader
	profiles    displayNamer
	relay       domain.ChangeRelay
	notifier    *Notifier
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewWebSocketHandler(
	bids bidPlacer,
	auctions auctionReader,
	profiles displayNamer,
	relay domain.ChangeRelay,
	connManager domain.ConnectionManager,
	log logger.Logger,
) *WebSocketHandler {
	return &WebSocketHandler{
		bids:        bids,
		auctions:    auctions,
		profiles:    profiles,
		relay:       relay,
		notifier:    NewNotifier(connManager, log),
		connManager: connManager,
		log:         log,
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	auctionID := mux.Vars(r)["auctionID"]
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	auction, err := h.auctions.GetAuction(r.Context(), auctionID)
	if errors.Is(err, domain.ErrNotFound) {
		http.Error(w, "auction not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error("Failed to load auction", "auction_id", auctionID, "error", err)
		http.Error(w, "auction unavailable", http.StatusServiceUnavailable)
		return
	}
	if auction.Status == domain.AuctionEnded {
		h.log.Info("Rejected connection - auction has ended", "auction_id", auctionID)
		http.Error(w, "auction has already ended", http.StatusForbidden)
		return
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := NewWebSocketConnection(ws, userID, auctionID)
	if err := h.connManager.RegisterConnection(userID, auctionID, conn); err != nil {
		h.log.Error("Failed to register connection", "error", err)
		conn.Close()
		return
	}

	// the relay sends the current snapshot first, then one per committed change
	unsubscribe := h.relay.Subscribe(domain.EntityAuction, auctionID, h.notifier.Forward(conn))

	go h.handleMessages(conn, unsubscribe)
}

func (h *WebSocketHandler) handleMessages(conn *WebSocketConnection, unsubscribe func()) {
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("Recovered from panic in connection", "user_id", conn.UserID(), "auction_id", conn.AuctionID(), "panic", r)
		}
		unsubscribe()
		h.connManager.UnregisterConnection(conn.UserID(), conn.AuctionID(), conn)
		conn.Close()
	}()

	conn.ws.SetReadLimit(maxMessageSize)
	for {
		_, data, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Error("Failed to read message", "user_id", conn.UserID(), "error", err)
			}
			return
		}

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			conn.Send(ErrorMessage{Type: MessageError, Code: "invalid_request", Message: "malformed message"})
			continue
		}

		switch msg.Type {
		case MessagePlaceBid:
			h.handleBidMessage(conn, msg)
		case MessagePing:
			conn.Send(PongMessage{Type: MessagePong})
		default:
			conn.Send(ErrorMessage{Type: MessageError, Code: "invalid_request", Message: "unknown message type"})
		}
	}
}

// handleBidMessage replies to the bidder only. Everyone else sees the bid in the next snapshot.
func (h *WebSocketHandler) handleBidMessage(conn *WebSocketConnection, msg ClientMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), bidTimeout)
	defer cancel()

	amount := msg.Amount.InexactFloat64()
	if math.IsInf(amount, 0) || math.IsNaN(amount) {
		conn.Send(ErrorMessage{Type: MessageError, Code: "invalid_request", Message: "amount is out of range"})
		return
	}

	displayName := h.profiles.DisplayNameFor(ctx, domain.Identity{UID: conn.UserID()})
	bid, err := h.bids.PlaceBid(ctx, conn.AuctionID(), conn.UserID(), amount, displayName)
	if err != nil {
		h.log.Info("Bid rejected", "user_id", conn.UserID(), "auction_id", conn.AuctionID(), "error", err)
		conn.Send(NewErrorMessage(err))
		return
	}
	conn.Send(BidAcceptedMessage{Type: MessageBidAccepted, Bid: bid})
}

var _ domain.WebSocketConnection = (*WebSocketConnection)(nil)

// WebSocketConnection serializes writes; gorilla allows one concurrent writer.
type WebSocketConnection struct {
	ws        *websocket.Conn
	userID    string
	auctionID string

	writeMu   sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func NewWebSocketConnection(ws *websocket.Conn, userID, auctionID string) *WebSocketConnection {
	return &WebSocketConnection{
		ws:        ws,
		userID:    userID,
		auctionID: auctionID,
	}
}

func (wsc *WebSocketConnection) Send(message interface{}) error {
	wsc.writeMu.Lock()
	defer wsc.writeMu.Unlock()

	if err := wsc.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return wsc.ws.WriteJSON(message)
}

func (wsc *WebSocketConnection) Close() error {
	wsc.closeOnce.Do(func() {
		_ = wsc.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		wsc.closeErr = wsc.ws.Close()
	})
	return wsc.closeErr
}

func (wsc *WebSocketConnection) UserID() string {
	return wsc.userID
}

func (wsc *WebSocketConnection) AuctionID() string {
	return wsc.auctionID
}
