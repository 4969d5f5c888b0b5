package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
	"auction-marketplace/pkg/utils"
)

// AuctionManager owns the auction lifecycle: creation, owner edits and deletion.
type AuctionManager struct {
	store         domain.EntityStore
	eventPub      domain.EventPublisher
	cascadeDelete bool
	retry         retryPolicy
	now           domain.Clock
	log           logger.Logger
}

func NewAuctionManager(
	store domain.EntityStore,
	eventPub domain.EventPublisher,
	cascadeDelete bool,
	log logger.Logger,
) *AuctionManager {
	return &AuctionManager{
		store:         store,
		eventPub:      eventPub,
		cascadeDelete: cascadeDelete,
		retry:         defaultRetryPolicy,
		now:           time.Now,
		log:           log,
	}
}

func (am *AuctionManager) SetClock(now domain.Clock) {
	am.now = now
}

// SetRetry bounds how often a write that lost a race with another commit is re-run.
func (am *AuctionManager) SetRetry(attempts int, backoff time.Duration) {
	am.retry = retryPolicy{attempts: attempts, backoff: backoff}
}

func (am *AuctionManager) CreateAuction(ctx context.Context, in domain.NewAuction) (*domain.Auction, error) {
	if err := validateNewAuction(in); err != nil {
		return nil, err
	}

	now := am.now().UTC()
	if !in.EndDate.After(now) {
		return nil, fmt.Errorf("%w: end date must be in the future", domain.ErrValidation)
	}
	auction := &domain.Auction{
		ID:            utils.GenerateID("auction"),
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		StartingPrice: in.StartingPrice,
		CurrentPrice:  in.StartingPrice,
		ImageURL:      strings.TrimSpace(in.ImageURL),
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate.UTC(),
		CreatedBy:     in.OwnerID,
		CreatedAt:     now,
		UpdatedAt:     now,
		Revision:      1,
	}

	err := am.retry.run(ctx, am.log, "create_auction", func() error {
		return am.store.RunTransaction(ctx, func(ctx context.Context, tx domain.Txn) error {
			if err := tx.Set(ctx, domain.CollectionAuctions, auction.ID, auction); err != nil {
				return err
			}
			return tx.Set(ctx, domain.UserAuctionsCollection(auction.CreatedBy), auction.ID, domain.OwnedAuctionEntry{
				ID:        auction.ID,
				CreatedAt: now,
			})
		})
	})
	if err != nil {
		return nil, err
	}

	am.log.Info("Auction created", "auction_id", auction.ID, "owner_id", auction.CreatedBy)
	publishChange(ctx, am.eventPub, am.log, &domain.ChangeEvent{
		Type:       domain.AuctionCreated,
		EntityType: domain.EntityAuction,
		EntityID:   auction.ID,
		Timestamp:  now,
	})
	return auction.WithStatus(now), nil
}

func (am *AuctionManager) GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error) {
	if auctionID == "" {
		return nil, fmt.Errorf("%w: auction id is required", domain.ErrValidation)
	}

	var auction domain.Auction
	if err := am.store.Get(ctx, domain.CollectionAuctions, auctionID, &auction); err != nil {
		return nil, err
	}
	return auction.WithStatus(am.now()), nil
}

// UpdateAuction applies an owner edit. Prices and dates are not editable.
func (am *AuctionManager) UpdateAuction(ctx context.Context, auctionID, requesterID string, patch domain.AuctionPatch) (*domain.Auction, error) {
	if err := validatePatch(patch); err != nil {
		return nil, err
	}

	var updated domain.Auction
	err := am.retry.run(ctx, am.log, "update_auction", func() error {
		return am.store.RunTransaction(ctx, func(ctx context.Context, tx domain.Txn) error {
			var auction domain.Auction
			if err := tx.Get(ctx, domain.CollectionAuctions, auctionID, &auction); err != nil {
				return err
			}
			if auction.CreatedBy != requesterID {
				return fmt.Errorf("%w: only the owner may edit auction %s", domain.ErrAuthorization, auctionID)
			}

			fields := map[string]interface{}{
				"updatedAt": am.now().UTC(),
				"revision":  auction.Revision + 1,
			}
			if patch.Title != nil {
				fields["title"] = strings.TrimSpace(*patch.Title)
			}
			if patch.Description != nil {
				fields["description"] = strings.TrimSpace(*patch.Description)
			}
			if patch.ImageURL != nil {
				fields["imageUrl"] = strings.TrimSpace(*patch.ImageURL)
			}
			if err := tx.Update(ctx, domain.CollectionAuctions, auctionID, fields); err != nil {
				return err
			}
			return tx.Get(ctx, domain.CollectionAuctions, auctionID, &updated)
		})
	})
	if err != nil {
		return nil, err
	}

	am.log.Info("Auction updated", "auction_id", auctionID)
	publishChange(ctx, am.eventPub, am.log, &domain.ChangeEvent{
		Type:       domain.AuctionUpdated,
		EntityType: domain.EntityAuction,
		EntityID:   auctionID,
		Timestamp:  updated.UpdatedAt,
	})
	return updated.WithStatus(am.now()), nil
}

// DeleteAuction removes the auction and its owner index entry. Bids are kept unless the
// manager was built with cascadeDelete.
func (am *AuctionManager) DeleteAuction(ctx context.Context, auctionID, requesterID string) error {
	removedBids := 0
	err := am.retry.run(ctx, am.log, "delete_auction", func() error {
		return am.store.RunTransaction(ctx, func(ctx context.Context, tx domain.Txn) error {
			removedBids = 0

			var auction domain.Auction
			if err := tx.Get(ctx, domain.CollectionAuctions, auctionID, &auction); err != nil {
				return err
			}
			if auction.CreatedBy != requesterID {
				return fmt.Errorf("%w: only the owner may delete auction %s", domain.ErrAuthorization, auctionID)
			}

			var bids []domain.DocumentSnapshot
			if am.cascadeDelete {
				var err error
				bids, err = tx.Query(ctx, domain.Query{
					Collection: domain.CollectionBids,
					Where:      []domain.Filter{domain.Eq("auctionId", auctionID)},
					OrderBy:    "timestamp",
				})
				if err != nil {
					return err
				}
			}

			if err := tx.Delete(ctx, domain.CollectionAuctions, auctionID); err != nil {
				return err
			}
			if err := tx.Delete(ctx, domain.UserAuctionsCollection(auction.CreatedBy), auctionID); err != nil {
				return err
			}

			for _, doc := range bids {
				var bid domain.Bid
				if err := doc.DataTo(&bid); err != nil {
					return err
				}
				if err := tx.Delete(ctx, domain.CollectionBids, bid.ID); err != nil {
					return err
				}
				if err := tx.Delete(ctx, domain.UserBidsCollection(bid.UserID), bid.ID); err != nil {
					return err
				}
				removedBids++
			}
			return nil
		})
	})
	if err != nil {
		return err
	}

	am.log.Info("Auction deleted", "auction_id", auctionID, "bids_removed", removedBids)
	publishChange(ctx, am.eventPub, am.log, &domain.ChangeEvent{
		Type:       domain.AuctionDeleted,
		EntityType: domain.EntityAuction,
		EntityID:   auctionID,
		Timestamp:  am.now().UTC(),
	})
	return nil
}

func validateNewAuction(in domain.NewAuction) error {
	if in.OwnerID == "" {
		return fmt.Errorf("%w: an authenticated owner is required", domain.ErrAuthorization)
	}
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", domain.ErrValidation)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description is required", domain.ErrValidation)
	}
	if err := domain.ValidateAmount(in.StartingPrice); err != nil {
		return fmt.Errorf("starting price: %w", err)
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return fmt.Errorf("%w: start and end dates are required", domain.ErrValidation)
	}
	if !in.EndDate.After(in.StartDate) {
		return fmt.Errorf("%w: end date must be after start date", domain.ErrValidation)
	}
	return nil
}

func validatePatch(patch domain.AuctionPatch) error {
	if patch.Empty() {
		return fmt.Errorf("%w: nothing to update", domain.ErrValidation)
	}
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", domain.ErrValidation)
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) == "" {
		return fmt.Errorf("%w: description cannot be empty", domain.ErrValidation)
	}
	return nil
}
