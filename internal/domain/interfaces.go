package domain

import (
	"context"
	"time"
)

// Event interfaces
type EventPublisher interface {
	PublishChange(ctx context.Context, event *ChangeEvent) error
}

type EventSubscriber interface {
	// SubscribeToChanges blocks, calling handler for every change until ctx is done.
	SubscribeToChanges(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *ChangeEvent) error

// Relay interfaces
type SnapshotCallback func(snapshot interface{})

type ChangeRelay interface {
	Subscribe(entityType EntityType, id string, callback SnapshotCallback) (unsubscribe func())
}

// Archive interfaces
type BidArchive interface {
	SaveBid(ctx context.Context, bid *Bid) error
	GetBidHistory(ctx context.Context, auctionID string) ([]*Bid, error)
}

type AuctionArchive interface {
	SaveResult(ctx context.Context, result *AuctionResult) error
	GetResult(ctx context.Context, auctionID string) (*AuctionResult, error)
}

// Identity is the already-authenticated caller. An empty UID is anonymous.
type Identity struct {
	UID   string
	Email string
}

func (i Identity) Anonymous() bool { return i.UID == "" }

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

type Clock func() time.Time

// WebSocket interfaces
type WebSocketConnection interface {
	Send(message interface{}) error
	Close() error
	UserID() string
	AuctionID() string
}

type ConnectionManager interface {
	RegisterConnection(userID, auctionID string, conn WebSocketConnection) error
	UnregisterConnection(userID, auctionID string, conn WebSocketConnection) error
	GetConnectionsForAuction(auctionID string) []WebSocketConnection
	BroadcastToAuction(auctionID string, message interface{}) error
	CloseAndUnregisterConnections(auctionID string) error
	CloseAll() error
}
