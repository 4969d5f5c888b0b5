package nats

import (
	"encoding/json"
	"testing"

	"auction-marketplace/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	event := &domain.ChangeEvent{EntityType: domain.EntityAuction, EntityID: "auction_1"}
	assert.Equal(t, "auction.changes.auction.auction_1", subject("auction.changes", event))
}

func TestDecodeChange(t *testing.T) {
	payload, err := json.Marshal(domain.ChangeEvent{
		Type:       domain.ProfileUpdated,
		EntityType: domain.EntityUser,
		EntityID:   "u1",
	})
	require.NoError(t, err)

	event, err := decodeChange(payload)
	require.NoError(t, err)
	assert.Equal(t, domain.ProfileUpdated, event.Type)
	assert.Equal(t, "u1", event.EntityID)

	_, err = decodeChange([]byte(`{"type":"bid_placed"}`))
	require.Error(t, err)

	_, err = decodeChange([]byte(`garbage`))
	require.Error(t, err)
}
