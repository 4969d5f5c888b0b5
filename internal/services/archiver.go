package services

import (
	"context"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

const archiveTimeout = 10 * time.Second

// Archiver copies accepted bids and final auction results into the audit archive.
// Both writes are idempotent, so redelivered or duplicated changes are harmless.
type Archiver struct {
	bids     domain.BidArchive
	results  domain.AuctionArchive
	auctions auctionReader
	history  auctionBidsReader
	now      domain.Clock
	log      logger.Logger
}

func NewArchiver(
	bids domain.BidArchive,
	results domain.AuctionArchive,
	auctions auctionReader,
	history auctionBidsReader,
	log logger.Logger,
) *Archiver {
	return &Archiver{
		bids:     bids,
		results:  results,
		auctions: auctions,
		history:  history,
		now:      time.Now,
		log:      log,
	}
}

func (a *Archiver) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	a.log.Info("Starting bid archiver")
	return subscriber.SubscribeToChanges(ctx, a.HandleChange)
}

func (a *Archiver) HandleChange(event *domain.ChangeEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	switch event.Type {
	case domain.BidPlaced:
		if event.Bid == nil {
			return nil
		}
		if err := a.bids.SaveBid(ctx, event.Bid); err != nil {
			a.log.Error("Failed to archive bid", "bid_id", event.Bid.ID, "error", err)
			return err
		}
		a.log.Debug("Bid archived", "bid_id", event.Bid.ID, "auction_id", event.Bid.AuctionID)

	case domain.AuctionClosed:
		return a.archiveResult(ctx, event.EntityID)
	}
	return nil
}

func (a *Archiver) archiveResult(ctx context.Context, auctionID string) error {
	auction, err := a.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		a.log.Error("Failed to load ended auction", "auction_id", auctionID, "error", err)
		return err
	}
	bids, err := a.history.GetAuctionBids(ctx, auctionID)
	if err != nil {
		return err
	}

	result := &domain.AuctionResult{
		AuctionID:     auction.ID,
		Title:         auction.Title,
		CreatedBy:     auction.CreatedBy,
		StartingPrice: auction.StartingPrice,
		FinalPrice:    auction.Floor(),
		BidCount:      len(bids),
		EndDate:       auction.EndDate,
		ArchivedAt:    a.now().UTC(),
	}
	if len(bids) > 0 {
		// newest bid holds the price
		result.WinnerID = bids[0].UserID
	}

	if err := a.results.SaveResult(ctx, result); err != nil {
		a.log.Error("Failed to archive auction result", "auction_id", auctionID, "error", err)
		return err
	}
	a.log.Info("Auction result archived", "auction_id", auctionID, "winner_id", result.WinnerID, "final_price", result.FinalPrice)
	return nil
}
