package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

type ProfileService struct {
	store    domain.EntityStore
	eventPub domain.EventPublisher
	retry    retryPolicy
	now      domain.Clock
	log      logger.Logger
}

func NewProfileService(store domain.EntityStore, eventPub domain.EventPublisher, log logger.Logger) *ProfileService {
	return &ProfileService{
		store:    store,
		eventPub: eventPub,
		retry:    defaultRetryPolicy,
		now:      time.Now,
		log:      log,
	}
}

func (p *ProfileService) SetClock(now domain.Clock) {
	p.now = now
}

func (p *ProfileService) SetRetry(attempts int, backoff time.Duration) {
	p.retry = retryPolicy{attempts: attempts, backoff: backoff}
}

func (p *ProfileService) GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	if err := p.store.Get(ctx, domain.CollectionUsers, uid, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// CreateOrUpdateProfile creates the profile on first write and merges the patch afterwards.
// Existing bids keep the display name they were placed under.
func (p *ProfileService) CreateOrUpdateProfile(ctx context.Context, uid string, requester domain.Identity, patch domain.ProfilePatch) (*domain.UserProfile, error) {
	if requester.Anonymous() || requester.UID != uid {
		return nil, fmt.Errorf("%w: profiles can only be edited by their owner", domain.ErrAuthorization)
	}
	if patch.DisplayName != nil && strings.TrimSpace(*patch.DisplayName) == "" {
		return nil, fmt.Errorf("%w: display name cannot be empty", domain.ErrValidation)
	}
	if patch.Email != nil && strings.TrimSpace(*patch.Email) == "" {
		return nil, fmt.Errorf("%w: email cannot be empty", domain.ErrValidation)
	}

	var profile domain.UserProfile
	err := p.retry.run(ctx, p.log, "save_profile", func() error {
		return p.store.RunTransaction(ctx, func(ctx context.Context, tx domain.Txn) error {
			now := p.now().UTC()
			profile = domain.UserProfile{}
			err := tx.Get(ctx, domain.CollectionUsers, uid, &profile)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				profile = domain.UserProfile{UID: uid, Email: requester.Email, CreatedAt: now}
			case err != nil:
				return err
			}

			if patch.DisplayName != nil {
				profile.DisplayName = strings.TrimSpace(*patch.DisplayName)
			}
			if patch.Email != nil {
				profile.Email = strings.TrimSpace(*patch.Email)
			}
			profile.UpdatedAt = now
			profile.Revision++
			return tx.Set(ctx, domain.CollectionUsers, uid, profile)
		})
	})
	if err != nil {
		return nil, err
	}

	p.log.Info("Profile saved", "uid", uid)
	publishChange(ctx, p.eventPub, p.log, &domain.ChangeEvent{
		Type:       domain.ProfileUpdated,
		EntityType: domain.EntityUser,
		EntityID:   uid,
		Timestamp:  profile.UpdatedAt,
	})
	return &profile, nil
}

// DisplayNameFor picks the name stamped on a new bid: profile name, then email, then Anonymous.
func (p *ProfileService) DisplayNameFor(ctx context.Context, identity domain.Identity) string {
	if identity.Anonymous() {
		return anonymousBidder
	}
	profile, err := p.GetProfile(ctx, identity.UID)
	if err == nil && profile.DisplayName != "" {
		return profile.DisplayName
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		p.log.Warn("Failed to load profile for display name", "uid", identity.UID, "error", err)
	}
	if identity.Email != "" {
		return identity.Email
	}
	return anonymousBidder
}
