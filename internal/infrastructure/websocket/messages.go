package websocket

import (
	"errors"

	"auction-marketplace/internal/domain"

	"github.com/shopspring/decimal"
)

const (
	MessagePlaceBid = "place_bid"
	MessagePing     = "ping"

	MessageSnapshot       = "snapshot"
	MessageBidAccepted    = "bid_accepted"
	MessageError          = "error"
	MessagePong           = "pong"
	MessageAuctionEnded   = "auction_ended"
	MessageAuctionDeleted = "auction_deleted"
)

// ClientMessage is anything a browser sends. Amount accepts both 150.5 and "150.50".
type ClientMessage struct {
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
}

type SnapshotMessage struct {
	Type    string          `json:"type"`
	Auction *domain.Auction `json:"auction"`
	Status  string          `json:"status"`
	Bids    []*domain.Bid   `json:"bids"`
}

func NewSnapshotMessage(snapshot *domain.AuctionSnapshot) SnapshotMessage {
	bids := snapshot.Bids
	if bids == nil {
		bids = []*domain.Bid{}
	}
	return SnapshotMessage{
		Type:    MessageSnapshot,
		Auction: snapshot.Auction,
		Status:  snapshot.Auction.Status.String(),
		Bids:    bids,
	}
}

type AuctionClosedMessage struct {
	Type      string `json:"type"`
	AuctionID string `json:"auctionId"`
}

type BidAcceptedMessage struct {
	Type string      `json:"type"`
	Bid  *domain.Bid `json:"bid"`
}

type ErrorMessage struct {
	Type       string   `json:"type"`
	Code       string   `json:"code"`
	Message    string   `json:"message"`
	MinimumBid *float64 `json:"minimumBid,omitempty"`
}

type PongMessage struct {
	Type string `json:"type"`
}

// NewErrorMessage turns a service error into a client-facing message. Unclassified errors
// are not echoed to the client.
func NewErrorMessage(err error) ErrorMessage {
	msg := ErrorMessage{Type: MessageError, Code: errorCode(err), Message: err.Error()}

	var tooLow *domain.BidTooLowError
	if errors.As(err, &tooLow) {
		minimum := tooLow.Minimum
		msg.MinimumBid = &minimum
	}
	if !domain.IsClassified(err) {
		msg.Message = "failed to place bid"
	}
	return msg
}

func errorCode(err error) string {
	var tooLow *domain.BidTooLowError
	switch {
	case errors.As(err, &tooLow):
		return "bid_too_low"
	case errors.Is(err, domain.ErrInvalidBid):
		return "invalid_bid"
	case errors.Is(err, domain.ErrValidation):
		return "invalid_request"
	case errors.Is(err, domain.ErrAuthorization):
		return "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrAuctionEnded):
		return "auction_ended"
	case errors.Is(err, domain.ErrConcurrentModification):
		return "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return "unavailable"
	default:
		return "internal"
	}
}
