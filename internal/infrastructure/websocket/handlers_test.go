package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"auction-marketplace/internal/domain"
	redisstore "auction-marketplace/internal/infrastructure/redis"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// relayPublisher hands committed changes straight to the in-process relay.
type relayPublisher struct {
	relay *services.ChangeRelay
}

func (p *relayPublisher) PublishChange(_ context.Context, event *domain.ChangeEvent) error {
	return p.relay.HandleChange(event)
}

type liveEnv struct {
	server  *httptest.Server
	store   *redisstore.DocumentStore
	manager *services.AuctionManager
}

func newLiveEnv(t *testing.T) *liveEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.NewNop()
	store := redisstore.NewDocumentStore(client, domain.Indexes, log)
	pub := &relayPublisher{}
	batches := services.NewBatchFetcher(store, 10, log)
	manager := services.NewAuctionManager(store, pub, false, log)
	engine := services.NewBidEngine(store, pub, batches, 5, time.Millisecond, log)
	profiles := services.NewProfileService(store, pub, log)
	pub.relay = services.NewChangeRelay(manager, engine, profiles, log)

	cm := NewConnectionManager(log)
	handler := NewWebSocketHandler(engine, manager, profiles, pub.relay, cm, log)
	router := mux.NewRouter()
	router.HandleFunc("/ws/auction/{auctionID}", handler.HandleConnection)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &liveEnv{server: server, store: store, manager: manager}
}

func (e *liveEnv) createAuction(t *testing.T, endIn time.Duration) *domain.Auction {
	t.Helper()
	now := time.Now()
	auction, err := e.manager.CreateAuction(context.Background(), domain.NewAuction{
		OwnerID:       "owner",
		Title:         "Camera",
		Description:   "35mm film",
		StartingPrice: 100,
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(endIn),
	})
	require.NoError(t, err)
	return auction
}

// endAuction moves the end date into the past; creation only accepts future end dates.
func (e *liveEnv) endAuction(t *testing.T, auctionID string) {
	t.Helper()
	require.NoError(t, e.store.Update(context.Background(), domain.CollectionAuctions, auctionID, map[string]interface{}{
		"endDate": time.Now().Add(-time.Minute).UTC(),
	}))
}

func (e *liveEnv) dial(t *testing.T, auctionID, userID string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/auction/" + auctionID
	if userID != "" {
		url += "?user_id=" + userID
	}
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// readUntil skips snapshots that race with the reply being waited for.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 5; i++ {
		msg := readMessage(t, conn)
		if msg["type"] == msgType {
			return msg
		}
	}
	t.Fatalf("no %s message received", msgType)
	return nil
}

func TestLiveBiddingOverWebSocket(t *testing.T) {
	env := newLiveEnv(t)
	auction := env.createAuction(t, time.Hour)

	bidder, _, err := env.dial(t, auction.ID, "u1")
	require.NoError(t, err)
	watcher, _, err := env.dial(t, auction.ID, "u2")
	require.NoError(t, err)

	initial := readMessage(t, bidder)
	assert.Equal(t, MessageSnapshot, initial["type"])
	assert.Equal(t, "active", initial["status"])
	assert.Empty(t, initial["bids"])
	readMessage(t, watcher)

	require.NoError(t, bidder.WriteJSON(map[string]interface{}{"type": MessagePlaceBid, "amount": "150.00"}))
	accepted := readUntil(t, bidder, MessageBidAccepted)
	bid := accepted["bid"].(map[string]interface{})
	assert.Equal(t, 150.0, bid["amount"])
	assert.Equal(t, "u1", bid["userId"])

	update := readUntil(t, watcher, MessageSnapshot)
	assert.Len(t, update["bids"], 1)
	assert.Equal(t, 150.0, update["auction"].(map[string]interface{})["currentPrice"])

	require.NoError(t, watcher.WriteJSON(map[string]interface{}{"type": MessagePlaceBid, "amount": 150}))
	rejected := readUntil(t, watcher, MessageError)
	assert.Equal(t, "bid_too_low", rejected["code"])
	assert.Equal(t, 150.01, rejected["minimumBid"])

	require.NoError(t, watcher.WriteJSON(map[string]interface{}{"type": MessagePing}))
	assert.Equal(t, MessagePong, readUntil(t, watcher, MessagePong)["type"])
}

func TestWebSocketRejectsOutOfRangeAmounts(t *testing.T) {
	env := newLiveEnv(t)
	auction := env.createAuction(t, time.Hour)

	conn, _, err := env.dial(t, auction.ID, "u1")
	require.NoError(t, err)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": MessagePlaceBid, "amount": "1e400"}))
	rejected := readUntil(t, conn, MessageError)
	assert.Equal(t, "invalid_request", rejected["code"])

	// the connection and the service stay up
	require.NoError(t, conn.WriteJSON(map[string]interface{}{"type": MessagePlaceBid, "amount": "120.50"}))
	accepted := readUntil(t, conn, MessageBidAccepted)
	assert.Equal(t, 120.5, accepted["bid"].(map[string]interface{})["amount"])

	current, err := env.manager.GetAuction(context.Background(), auction.ID)
	require.NoError(t, err)
	assert.Equal(t, 120.5, current.CurrentPrice)
}

func TestWebSocketClosedOnDeletion(t *testing.T) {
	env := newLiveEnv(t)
	auction := env.createAuction(t, time.Hour)

	conn, _, err := env.dial(t, auction.ID, "u1")
	require.NoError(t, err)
	readMessage(t, conn)

	require.NoError(t, env.manager.DeleteAuction(context.Background(), auction.ID, "owner"))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageAuctionDeleted, msg["type"])

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestWebSocketRejectsBadHandshakes(t *testing.T) {
	env := newLiveEnv(t)
	active := env.createAuction(t, time.Hour)
	ended := env.createAuction(t, time.Hour)
	env.endAuction(t, ended.ID)

	tests := []struct {
		name      string
		auctionID string
		userID    string
		status    int
	}{
		{"missing user", active.ID, "", http.StatusBadRequest},
		{"unknown auction", "nope", "u1", http.StatusNotFound},
		{"ended auction", ended.ID, "u1", http.StatusForbidden},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, resp, err := env.dial(t, tc.auctionID, tc.userID)
			require.Error(t, err)
			require.NotNil(t, resp)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
