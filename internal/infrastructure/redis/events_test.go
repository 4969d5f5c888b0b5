package redis

import (
	"context"
	"testing"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishSubscribeChanges(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := NewRedisEventSubscriber(client, "changes", logger.NewNop())
	received := make(chan *domain.ChangeEvent, 4)
	done := make(chan error, 1)
	go func() {
		done <- sub.SubscribeToChanges(ctx, func(e *domain.ChangeEvent) error {
			received <- e
			return nil
		})
	}()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("changes")["changes"] > 0
	}, time.Second, 10*time.Millisecond)

	// malformed payloads are skipped
	mr.Publish("changes", "not json")

	pub := NewEventPublisher(client, "changes")
	require.NoError(t, pub.PublishChange(ctx, &domain.ChangeEvent{
		Type:       domain.BidPlaced,
		EntityType: domain.EntityAuction,
		EntityID:   "a1",
		Bid:        &domain.Bid{ID: "b1", AuctionID: "a1", Amount: 101},
	}))

	select {
	case e := <-received:
		assert.Equal(t, domain.BidPlaced, e.Type)
		assert.Equal(t, "a1", e.EntityID)
		require.NotNil(t, e.Bid)
		assert.Equal(t, 101.0, e.Bid.Amount)
	case <-time.After(2 * time.Second):
		t.Fatal("change not delivered")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}
}
