package websocket

import (
	"encoding/json"
	"testing"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifierForwardsActiveSnapshot(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	n := NewNotifier(cm, logger.NewNop())
	conn := newFakeConn("u1", "a1")

	auction := &domain.Auction{ID: "a1", Status: domain.AuctionActive}
	n.Forward(conn)(&domain.AuctionSnapshot{Auction: auction})

	sent := conn.Sent()
	require.Len(t, sent, 1)
	msg := sent[0].(SnapshotMessage)
	assert.Equal(t, MessageSnapshot, msg.Type)
	assert.Equal(t, "active", msg.Status)
	assert.NotNil(t, msg.Bids, "bids encode as [] rather than null")
	assert.False(t, conn.Closed())
}

func TestNotifierClosesAfterFinalSnapshot(t *testing.T) {
	n := NewNotifier(NewConnectionManager(logger.NewNop()), logger.NewNop())
	conn := newFakeConn("u1", "a1")

	auction := &domain.Auction{ID: "a1", Status: domain.AuctionEnded}
	bids := []*domain.Bid{{ID: "b1", AuctionID: "a1", Amount: 150}}
	n.Forward(conn)(&domain.AuctionSnapshot{Auction: auction, Bids: bids})

	sent := conn.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, bids, sent[0].(SnapshotMessage).Bids)
	assert.Equal(t, AuctionClosedMessage{Type: MessageAuctionEnded, AuctionID: "a1"}, sent[1])
	assert.True(t, conn.Closed())
}

func TestNotifierClosesEveryoneOnDeletion(t *testing.T) {
	cm := NewConnectionManager(logger.NewNop())
	n := NewNotifier(cm, logger.NewNop())
	first := newFakeConn("u1", "a1")
	second := newFakeConn("u2", "a1")
	require.NoError(t, cm.RegisterConnection("u1", "a1", first))
	require.NoError(t, cm.RegisterConnection("u2", "a1", second))

	n.Forward(first)(&domain.AuctionSnapshot{})

	for _, c := range []*fakeConn{first, second} {
		sent := c.Sent()
		require.Len(t, sent, 1)
		assert.JSONEq(t, `{"type":"auction_deleted","auctionId":"a1"}`, string(sent[0].(json.RawMessage)))
		assert.True(t, c.Closed())
	}
	assert.Empty(t, cm.GetConnectionsForAuction("a1"))
}

func TestNewErrorMessage(t *testing.T) {
	tooLow := NewErrorMessage(&domain.BidTooLowError{Amount: 100, Floor: 100, Minimum: 100.01})
	assert.Equal(t, "bid_too_low", tooLow.Code)
	require.NotNil(t, tooLow.MinimumBid)
	assert.Equal(t, 100.01, *tooLow.MinimumBid)

	tests := []struct {
		err  error
		code string
	}{
		{domain.ErrAuctionEnded, "auction_ended"},
		{domain.ErrAuthorization, "forbidden"},
		{domain.ErrValidation, "invalid_request"},
		{domain.ErrNotFound, "not_found"},
		{domain.ErrConcurrentModification, "conflict"},
		{domain.ErrStoreUnavailable, "unavailable"},
	}
	for _, tc := range tests {
		msg := NewErrorMessage(tc.err)
		assert.Equal(t, tc.code, msg.Code)
		assert.Nil(t, msg.MinimumBid)
	}

	internal := NewErrorMessage(assert.AnError)
	assert.Equal(t, "internal", internal.Code)
	assert.Equal(t, "failed to place bid", internal.Message)
}
