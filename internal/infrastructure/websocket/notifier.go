package websocket

import (
	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

// Notifier turns relay snapshots into socket messages.
type Notifier struct {
	connManager domain.ConnectionManager
	log         logger.Logger
}

func NewNotifier(connManager domain.ConnectionManager, log logger.Logger) *Notifier {
	return &Notifier{connManager: connManager, log: log}
}

// Forward returns the relay callback for one connection. An ended auction gets its final
// snapshot and then the socket is closed. A deleted auction closes every socket watching it.
func (n *Notifier) Forward(conn domain.WebSocketConnection) domain.SnapshotCallback {
	return func(snapshot interface{}) {
		s, ok := snapshot.(*domain.AuctionSnapshot)
		if !ok {
			n.log.Warn("Unexpected snapshot type", "auction_id", conn.AuctionID())
			return
		}

		if s.Auction == nil {
			n.log.Info("Auction deleted, closing connections", "auction_id", conn.AuctionID())
			if err := n.connManager.BroadcastToAuction(conn.AuctionID(), AuctionClosedMessage{
				Type:      MessageAuctionDeleted,
				AuctionID: conn.AuctionID(),
			}); err != nil {
				n.log.Error("Failed to broadcast deletion", "auction_id", conn.AuctionID(), "error", err)
			}
			if err := n.connManager.CloseAndUnregisterConnections(conn.AuctionID()); err != nil {
				n.log.Error("Failed to close connections", "auction_id", conn.AuctionID(), "error", err)
			}
			return
		}

		if err := conn.Send(NewSnapshotMessage(s)); err != nil {
			n.log.Error("Failed to send snapshot", "user_id", conn.UserID(), "auction_id", conn.AuctionID(), "error", err)
			return
		}

		if s.Auction.Status == domain.AuctionEnded {
			if err := conn.Send(AuctionClosedMessage{Type: MessageAuctionEnded, AuctionID: s.Auction.ID}); err != nil {
				n.log.Error("Failed to send auction end", "user_id", conn.UserID(), "error", err)
			}
			if err := conn.Close(); err != nil {
				n.log.Error("Failed to close connection", "user_id", conn.UserID(), "error", err)
			}
		}
	}
}
