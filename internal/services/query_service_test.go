package services

import (
	"encoding/base64"
	"sort"
	"testing"
	"time"

	"auction-marketplace/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAuctionsPageCompleteness(t *testing.T) {
	env := newTestEnv(t, false)

	var want []string
	for i := 0; i < 23; i++ {
		// groups of three share an end date
		a := env.createAuction(t, "owner", 10, time.Duration(1+i/3)*time.Hour)
		want = append(want, a.ID)
	}

	all, err := env.queries.ListAuctionsPage(env.ctx, 100, "")
	require.NoError(t, err)
	require.Len(t, all.Auctions, 23)
	for i := 1; i < len(all.Auctions); i++ {
		assert.False(t, all.Auctions[i].EndDate.Before(all.Auctions[i-1].EndDate), "ordered by end date")
	}

	for _, pageSize := range []int{1, 2, 3, 5, 7, 23} {
		var got []string
		cursor := ""
		pages := 0
		for {
			page, err := env.queries.ListAuctionsPage(env.ctx, pageSize, cursor)
			require.NoError(t, err)
			pages++
			for _, a := range page.Auctions {
				got = append(got, a.ID)
			}
			if !page.HasMore {
				break
			}
			cursor = page.NextCursor
			require.Less(t, pages, 100)
		}

		ordered := make([]string, len(all.Auctions))
		for i, a := range all.Auctions {
			ordered[i] = a.ID
		}
		assert.Equal(t, ordered, got, "page size %d", pageSize)

		sorted := append([]string(nil), got...)
		sort.Strings(sorted)
		wantSorted := append([]string(nil), want...)
		sort.Strings(wantSorted)
		assert.Equal(t, wantSorted, sorted)
	}
}

func TestListAuctionsPageTrailingEmptyPage(t *testing.T) {
	env := newTestEnv(t, false)
	for i := 0; i < 4; i++ {
		env.createAuction(t, "owner", 10, time.Duration(i+1)*time.Hour)
	}

	page, err := env.queries.ListAuctionsPage(env.ctx, 2, "")
	require.NoError(t, err)
	assert.True(t, page.HasMore)

	page, err = env.queries.ListAuctionsPage(env.ctx, 2, page.NextCursor)
	require.NoError(t, err)
	assert.Len(t, page.Auctions, 2)
	assert.True(t, page.HasMore, "a full page reports more even at the end")

	page, err = env.queries.ListAuctionsPage(env.ctx, 2, page.NextCursor)
	require.NoError(t, err)
	assert.Empty(t, page.Auctions)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextCursor)
}

func TestListAuctionsPageDefaultsAndStatus(t *testing.T) {
	env := newTestEnv(t, false)
	env.createAuction(t, "owner", 10, time.Minute)
	env.createAuction(t, "owner", 10, time.Hour)
	env.clock.Advance(30 * time.Minute)

	page, err := env.queries.ListAuctionsPage(env.ctx, 0, "")
	require.NoError(t, err)
	require.Len(t, page.Auctions, 2)
	assert.False(t, page.HasMore)
	assert.Equal(t, domain.AuctionEnded, page.Auctions[0].Status)
	assert.Equal(t, domain.AuctionActive, page.Auctions[1].Status)
}

func TestListAuctionsPageBadCursor(t *testing.T) {
	env := newTestEnv(t, false)
	noSeparator := base64.RawURLEncoding.EncodeToString([]byte("noseparator"))
	for _, cursor := range []string{"%%%", noSeparator} {
		_, err := env.queries.ListAuctionsPage(env.ctx, 10, cursor)
		require.ErrorIs(t, err, domain.ErrValidation)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	c := domain.Cursor{Score: 1748779200000000, ID: "auction_x|y"}
	got, err := decodeCursor(encodeCursor(c))
	require.NoError(t, err)
	assert.Equal(t, c, *got)
}

func TestUserHostedAndParticipatedAuctions(t *testing.T) {
	env := newTestEnv(t, false)

	var hostedIDs []string
	for i := 0; i < 12; i++ {
		env.clock.Advance(time.Second)
		hostedIDs = append(hostedIDs, env.createAuction(t, "host", 10, time.Hour).ID)
	}
	otherAuction := env.createAuction(t, "someone-else", 10, time.Hour)

	hosted, err := env.queries.GetUserHostedAuctions(env.ctx, "host")
	require.NoError(t, err)
	require.Len(t, hosted, 12)
	assert.Equal(t, hostedIDs[11], hosted[0].ID, "newest first")

	// bidder bids twice on one auction and once on two others
	for i, id := range []string{hostedIDs[0], hostedIDs[1], hostedIDs[0], otherAuction.ID} {
		env.clock.Advance(time.Second)
		_, err := env.engine.PlaceBid(env.ctx, id, "bidder", float64(20+i), "B")
		require.NoError(t, err)
	}

	participated, err := env.queries.GetUserParticipatedAuctions(env.ctx, "bidder")
	require.NoError(t, err)
	ids := make([]string, len(participated))
	for i, a := range participated {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{otherAuction.ID, hostedIDs[0], hostedIDs[1]}, ids)

	none, err := env.queries.GetUserParticipatedAuctions(env.ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}
