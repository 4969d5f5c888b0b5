package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"auction-marketplace/internal/domain"
	redisstore "auction-marketplace/internal/infrastructure/redis"
	"auction-marketplace/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
)

var baseTime = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*domain.ChangeEvent
}

func (p *recordingPublisher) PublishChange(_ context.Context, event *domain.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) Types() []domain.ChangeType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.ChangeType, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}

// racingStore lets another writer commit between a transaction's reads and its commit,
// once per remaining race.
type racingStore struct {
	domain.EntityStore
	races     int
	interfere func(ctx context.Context) error
}

func (s *racingStore) RunTransaction(ctx context.Context, fn func(ctx context.Context, tx domain.Txn) error) error {
	return s.EntityStore.RunTransaction(ctx, func(ctx context.Context, tx domain.Txn) error {
		if err := fn(ctx, tx); err != nil {
			return err
		}
		if s.races == 0 {
			return nil
		}
		s.races--
		return s.interfere(ctx)
	})
}

type testEnv struct {
	ctx      context.Context
	mr       *miniredis.Miniredis
	store    *redisstore.DocumentStore
	pub      *recordingPublisher
	clock    *testClock
	batches  *BatchFetcher
	manager  *AuctionManager
	engine   *BidEngine
	queries  *QueryService
	profiles *ProfileService
}

func newTestEnv(t *testing.T, cascadeDelete bool) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.NewNop()
	store := redisstore.NewDocumentStore(client, domain.Indexes, log)
	pub := &recordingPublisher{}
	clock := &testClock{t: baseTime}
	batches := NewBatchFetcher(store, 10, log)

	env := &testEnv{
		ctx:      context.Background(),
		mr:       mr,
		store:    store,
		pub:      pub,
		clock:    clock,
		batches:  batches,
		manager:  NewAuctionManager(store, pub, cascadeDelete, log),
		engine:   NewBidEngine(store, pub, batches, 20, time.Millisecond, log),
		queries:  NewQueryService(store, batches, 20, 100, log),
		profiles: NewProfileService(store, pub, log),
	}
	env.manager.SetClock(clock.Now)
	env.engine.SetClock(clock.Now)
	env.queries.SetClock(clock.Now)
	env.profiles.SetClock(clock.Now)
	return env
}

func (e *testEnv) createAuction(t *testing.T, owner string, startingPrice float64, endIn time.Duration) *domain.Auction {
	t.Helper()
	now := e.clock.Now()
	auction, err := e.manager.CreateAuction(e.ctx, domain.NewAuction{
		OwnerID:       owner,
		Title:         "Vintage lamp",
		Description:   "Brass, working",
		StartingPrice: startingPrice,
		StartDate:     now,
		EndDate:       now.Add(endIn),
	})
	require.NoError(t, err)
	return auction
}

func (e *testEnv) mustGet(t *testing.T, auctionID string) *domain.Auction {
	t.Helper()
	auction, err := e.manager.GetAuction(e.ctx, auctionID)
	require.NoError(t, err)
	return auction
}
