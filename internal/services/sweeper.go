package services

import (
	"context"
	"sync"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/robfig/cron/v3"
)

const (
	sweepPageSize = 100
	// first sweep of a fresh leader looks this far back for auctions that ended unannounced
	sweepLookback = 24 * time.Hour
)

// AuctionSweeper publishes auction_ended for auctions whose end date has passed. It writes
// nothing to the store. Only the elected leader sweeps.
type AuctionSweeper struct {
	cron           *cron.Cron
	store          domain.EntityStore
	eventPub       domain.EventPublisher
	leaderElection domain.LeaderElection
	instanceID     string
	schedule       string
	now            domain.Clock
	log            logger.Logger

	mu     sync.Mutex
	cursor *domain.Cursor
}

func NewAuctionSweeper(
	store domain.EntityStore,
	eventPub domain.EventPublisher,
	leaderElection domain.LeaderElection,
	instanceID string,
	schedule string,
	log logger.Logger,
) *AuctionSweeper {
	return &AuctionSweeper{
		cron:           cron.New(cron.WithSeconds()),
		store:          store,
		eventPub:       eventPub,
		leaderElection: leaderElection,
		instanceID:     instanceID,
		schedule:       schedule,
		now:            time.Now,
		log:            log,
	}
}

func (s *AuctionSweeper) SetClock(now domain.Clock) {
	s.now = now
}

func (s *AuctionSweeper) Start(ctx context.Context) error {
	s.log.Info("Starting auction sweeper", "schedule", s.schedule)

	_, err := s.cron.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error("Auction sweep failed", "error", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	return nil
}

func (s *AuctionSweeper) Stop() error {
	s.log.Info("Stopping auction sweeper")
	<-s.cron.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.leaderElection.ReleaseLeadership(ctx, s.instanceID)
}

// Sweep publishes auction_ended for every auction that ended since the previous sweep and
// returns how many were announced.
func (s *AuctionSweeper) Sweep(ctx context.Context) (int, error) {
	leader, err := s.ensureLeader(ctx)
	if err != nil || !leader {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.cursor == nil {
		s.cursor = &domain.Cursor{Score: domain.TimeScore(now.Add(-sweepLookback))}
	}
	// endDate == now is already closed, IsActive is strict
	end := domain.TimeScore(now)

	announced := 0
	for {
		docs, err := s.store.Query(ctx, domain.Query{
			Collection: domain.CollectionAuctions,
			OrderBy:    "endDate",
			Limit:      sweepPageSize,
			StartAfter: s.cursor,
			EndAt:      &end,
		})
		if err != nil {
			return announced, err
		}

		for _, doc := range docs {
			s.log.Info("Auction ended", "auction_id", doc.ID)
			publishChange(ctx, s.eventPub, s.log, &domain.ChangeEvent{
				Type:       domain.AuctionClosed,
				EntityType: domain.EntityAuction,
				EntityID:   doc.ID,
				Timestamp:  now.UTC(),
			})
			cursor := doc.Cursor
			s.cursor = &cursor
			announced++
		}

		if len(docs) < sweepPageSize {
			return announced, nil
		}
	}
}

func (s *AuctionSweeper) ensureLeader(ctx context.Context) (bool, error) {
	isLeader, err := s.leaderElection.IsLeader(ctx, s.instanceID)
	if err != nil {
		return false, err
	}
	if isLeader {
		return true, nil
	}

	became, err := s.leaderElection.BecomeLeader(ctx, s.instanceID)
	if err != nil {
		return false, err
	}
	if became {
		s.log.Info("Became sweeper leader", "instance_id", s.instanceID)
		// a new leader cannot trust a cursor from an earlier term
		s.mu.Lock()
		s.cursor = nil
		s.mu.Unlock()
	}
	return became, nil
}
