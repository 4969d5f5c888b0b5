package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"
)

const anonymousBidder = "Anonymous"

// BidEngine accepts bids. Every accepted bid moves the auction price, writes the bid and
// the bidder's index entry in one store transaction.
type BidEngine struct {
	store       domain.EntityStore
	eventPub    domain.EventPublisher
	batches     *BatchFetcher
	maxAttempts int
	backoff     time.Duration
	now         domain.Clock
	log         logger.Logger
}

func NewBidEngine(
	store domain.EntityStore,
	eventPub domain.EventPublisher,
	batches *BatchFetcher,
	maxAttempts int,
	backoff time.Duration,
	log logger.Logger,
) *BidEngine {
	return &BidEngine{
		store:       store,
		eventPub:    eventPub,
		batches:     batches,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		now:         time.Now,
		log:         log,
	}
}

func (e *BidEngine) SetClock(now domain.Clock) {
	e.now = now
}

func (e *BidEngine) PlaceBid(ctx context.Context, auctionID, bidderID string, amount float64, displayName string) (*domain.Bid, error) {
	e.log.Info("Placing bid", "auction_id", auctionID, "user_id", bidderID, "amount", amount)

	if auctionID == "" {
		return nil, fmt.Errorf("%w: auction id is required", domain.ErrValidation)
	}
	if bidderID == "" {
		return nil, fmt.Errorf("%w: bidding requires a signed-in user", domain.ErrAuthorization)
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = anonymousBidder
	}

	var bid *domain.Bid
	err := withRetry(ctx, e.maxAttempts, e.backoff, e.log, "place_bid", func() error {
		var err error
		bid, err = e.placeOnce(ctx, auctionID, bidderID, amount, displayName)
		return err
	})
	if err != nil {
		e.log.Info("Bid rejected", "auction_id", auctionID, "user_id", bidderID, "amount", amount, "error", err)
		return nil, err
	}

	e.log.Info("Bid accepted", "auction_id", auctionID, "bid_id", bid.ID, "amount", bid.Amount)
	publishChange(ctx, e.eventPub, e.log, &domain.ChangeEvent{
		Type:       domain.BidPlaced,
		EntityType: domain.EntityAuction,
		EntityID:   auctionID,
		Bid:        bid,
		Timestamp:  bid.Timestamp,
	})
	return bid, nil
}

func (e *BidEngine) placeOnce(ctx context.Context, auctionID, bidderID string, amount float64, displayName string) (*domain.Bid, error) {
	var bid *domain.Bid
	err := e.store.RunTransaction(ctx, func(ctx context.Context, tx domain.Txn) error {
		var auction domain.Auction
		if err := tx.Get(ctx, domain.CollectionAuctions, auctionID, &auction); err != nil {
			return err
		}
		if auction.CreatedBy == bidderID {
			return fmt.Errorf("%w: owners cannot bid on their own auction", domain.ErrAuthorization)
		}

		now := e.now().UTC()
		if !auction.IsActive(now) {
			return fmt.Errorf("%w: auction %s closed at %s", domain.ErrAuctionEnded, auctionID, auction.EndDate.Format(time.RFC3339))
		}

		floor := auction.Floor()
		if !domain.Exceeds(amount, floor) {
			return &domain.BidTooLowError{Amount: amount, Floor: floor, Minimum: domain.MinimumBid(floor)}
		}

		bid = &domain.Bid{
			ID:              utils.GenerateID("bid"),
			AuctionID:       auctionID,
			UserID:          bidderID,
			Amount:          amount,
			Timestamp:       now,
			UserDisplayName: displayName,
		}
		if err := tx.Set(ctx, domain.CollectionBids, bid.ID, bid); err != nil {
			return err
		}
		if err := tx.Update(ctx, domain.CollectionAuctions, auctionID, map[string]interface{}{
			"currentPrice": amount,
			"updatedAt":    now,
			"revision":     auction.Revision + 1,
		}); err != nil {
			return err
		}
		return tx.Set(ctx, domain.UserBidsCollection(bidderID), bid.ID, domain.PlacedBidEntry{
			ID:        bid.ID,
			AuctionID: auctionID,
			Amount:    amount,
			Timestamp: now,
		})
	})
	if err != nil {
		return nil, err
	}
	return bid, nil
}

// MinimumBid is the lowest amount PlaceBid would currently accept.
func (e *BidEngine) MinimumBid(ctx context.Context, auctionID string) (float64, error) {
	var auction domain.Auction
	if err := e.store.Get(ctx, domain.CollectionAuctions, auctionID, &auction); err != nil {
		return 0, err
	}
	if !auction.IsActive(e.now()) {
		return 0, fmt.Errorf("%w: auction %s is closed", domain.ErrAuctionEnded, auctionID)
	}
	return domain.MinimumBid(auction.Floor()), nil
}

// GetAuctionBids returns the auction's bids, newest first.
func (e *BidEngine) GetAuctionBids(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	docs, err := e.store.Query(ctx, domain.Query{
		Collection: domain.CollectionBids,
		Where:      []domain.Filter{domain.Eq("auctionId", auctionID)},
		OrderBy:    "timestamp",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	return decodeAll[domain.Bid](docs)
}

// GetUserBids resolves the bidder index and materializes the bids in batches. Batches
// come back in their own order, so the result is sorted again here.
func (e *BidEngine) GetUserBids(ctx context.Context, userID string) ([]*domain.Bid, error) {
	entries, err := e.store.Query(ctx, domain.Query{
		Collection: domain.UserBidsCollection(userID),
		OrderBy:    "timestamp",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	docs, err := e.batches.Fetch(ctx, domain.CollectionBids, ids)
	if err != nil {
		return nil, err
	}
	bids, err := decodeAll[domain.Bid](docs)
	if err != nil {
		return nil, err
	}

	sortBidsNewestFirst(bids)
	return bids, nil
}

func sortBidsNewestFirst(bids []*domain.Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		if bids[i].Timestamp.Equal(bids[j].Timestamp) {
			return bids[i].ID > bids[j].ID
		}
		return bids[i].Timestamp.After(bids[j].Timestamp)
	})
}
