package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

const snapshotLoadTimeout = 5 * time.Second

type auctionReader interface {
	GetAuction(ctx context.Context, auctionID string) (*domain.Auction, error)
}

type auctionBidsReader interface {
	GetAuctionBids(ctx context.Context, auctionID string) ([]*domain.Bid, error)
}

type profileReader interface {
	GetProfile(ctx context.Context, uid string) (*domain.UserProfile, error)
}

var _ domain.ChangeRelay = (*ChangeRelay)(nil)

// ChangeRelay fans committed changes out to in-process subscribers. Each delivery is a full
// snapshot reloaded from the store. A slow subscriber only ever has the latest snapshot
// pending; older ones are dropped.
type ChangeRelay struct {
	auctions auctionReader
	bids     auctionBidsReader
	profiles profileReader
	log      logger.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[subscriptionKey]map[uint64]*subscription
}

type subscriptionKey struct {
	entityType domain.EntityType
	id         string
}

type subscription struct {
	key      subscriptionKey
	callback domain.SnapshotCallback
	updates  chan interface{}
	done     chan struct{}
}

func NewChangeRelay(auctions auctionReader, bids auctionBidsReader, profiles profileReader, log logger.Logger) *ChangeRelay {
	return &ChangeRelay{
		auctions: auctions,
		bids:     bids,
		profiles: profiles,
		log:      log,
		subs:     make(map[subscriptionKey]map[uint64]*subscription),
	}
}

func (r *ChangeRelay) Start(ctx context.Context, subscriber domain.EventSubscriber) error {
	r.log.Info("Starting change relay")
	return subscriber.SubscribeToChanges(ctx, r.HandleChange)
}

// Subscribe registers callback for one entity. The current snapshot is delivered first.
func (r *ChangeRelay) Subscribe(entityType domain.EntityType, id string, callback domain.SnapshotCallback) func() {
	sub := &subscription{
		key:      subscriptionKey{entityType: entityType, id: id},
		callback: callback,
		updates:  make(chan interface{}, 1),
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	r.nextID++
	subID := r.nextID
	if r.subs[sub.key] == nil {
		r.subs[sub.key] = make(map[uint64]*subscription)
	}
	r.subs[sub.key][subID] = sub
	r.mu.Unlock()

	go r.run(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs[sub.key], subID)
			if len(r.subs[sub.key]) == 0 {
				delete(r.subs, sub.key)
			}
			r.mu.Unlock()
			close(sub.done)
		})
	}
}

func (r *ChangeRelay) SubscriberCount(entityType domain.EntityType, id string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs[subscriptionKey{entityType: entityType, id: id}])
}

// HandleChange reloads the changed entity and offers the snapshot to its subscribers.
func (r *ChangeRelay) HandleChange(event *domain.ChangeEvent) error {
	key := subscriptionKey{entityType: event.EntityType, id: event.EntityID}

	r.mu.RLock()
	targets := make([]*subscription, 0, len(r.subs[key]))
	for _, sub := range r.subs[key] {
		targets = append(targets, sub)
	}
	r.mu.RUnlock()

	if len(targets) == 0 {
		return nil
	}

	r.log.Debug("Relaying change", "type", event.Type, "entity_id", event.EntityID, "subscribers", len(targets))
	snapshot, err := r.load(key)
	if err != nil {
		return err
	}
	for _, sub := range targets {
		offer(sub, snapshot)
	}
	return nil
}

func (r *ChangeRelay) load(key subscriptionKey) (interface{}, error) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotLoadTimeout)
	defer cancel()

	switch key.entityType {
	case domain.EntityAuction:
		auction, err := r.auctions.GetAuction(ctx, key.id)
		if errors.Is(err, domain.ErrNotFound) {
			// deleted auctions are reported as an empty snapshot
			return &domain.AuctionSnapshot{}, nil
		}
		if err != nil {
			return nil, err
		}
		bids, err := r.bids.GetAuctionBids(ctx, key.id)
		if err != nil {
			return nil, err
		}
		return &domain.AuctionSnapshot{Auction: auction, Bids: bids}, nil

	case domain.EntityUser:
		profile, err := r.profiles.GetProfile(ctx, key.id)
		if err != nil {
			return nil, err
		}
		return profile, nil
	}
	return nil, errors.New("unknown entity type " + string(key.entityType))
}

func (r *ChangeRelay) run(sub *subscription) {
	// loads race with each other, so a snapshot older than the last delivered one is dropped
	var last int64
	var deleted bool
	deliver := func(snapshot interface{}) {
		revision, gone := revisionOf(snapshot)
		if deleted || (!gone && revision < last) {
			r.log.Debug("Dropping stale snapshot", "entity_id", sub.key.id, "revision", revision, "delivered", last)
			return
		}
		last, deleted = revision, gone
		sub.callback(snapshot)
	}

	initial, err := r.load(sub.key)
	if err != nil {
		r.log.Error("Failed to load initial snapshot", "entity_type", sub.key.entityType, "entity_id", sub.key.id, "error", err)
	} else {
		select {
		case <-sub.done:
			return
		default:
			deliver(initial)
		}
	}

	for {
		select {
		case <-sub.done:
			return
		case snapshot := <-sub.updates:
			deliver(snapshot)
		}
	}
}

// revisionOf reports the store revision a snapshot was read at. A deleted auction is final.
func revisionOf(snapshot interface{}) (revision int64, deleted bool) {
	switch s := snapshot.(type) {
	case *domain.AuctionSnapshot:
		if s.Auction == nil {
			return 0, true
		}
		return s.Auction.Revision, false
	case *domain.UserProfile:
		return s.Revision, false
	}
	return 0, false
}

// offer replaces any undelivered snapshot with the newer one.
func offer(sub *subscription, snapshot interface{}) {
	select {
	case <-sub.done:
		return
	default:
	}
	for {
		select {
		case sub.updates <- snapshot:
			return
		default:
		}
		select {
		case <-sub.updates:
		default:
		}
	}
}
