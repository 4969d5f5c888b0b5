package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/pkg/logger"
)

type QueryService struct {
	store           domain.EntityStore
	batches         *BatchFetcher
	defaultPageSize int
	maxPageSize     int
	now             domain.Clock
	log             logger.Logger
}

func NewQueryService(store domain.EntityStore, batches *BatchFetcher, defaultPageSize, maxPageSize int, log logger.Logger) *QueryService {
	return &QueryService{
		store:           store,
		batches:         batches,
		defaultPageSize: defaultPageSize,
		maxPageSize:     maxPageSize,
		now:             time.Now,
		log:             log,
	}
}

func (q *QueryService) SetClock(now domain.Clock) {
	q.now = now
}

// ListAuctionsPage pages through all auctions by end date, soonest first. HasMore is true
// whenever a full page came back, so callers may see one trailing empty page.
func (q *QueryService) ListAuctionsPage(ctx context.Context, pageSize int, cursor string) (*domain.AuctionPage, error) {
	if pageSize <= 0 {
		pageSize = q.defaultPageSize
	}
	if pageSize > q.maxPageSize {
		pageSize = q.maxPageSize
	}

	query := domain.Query{
		Collection: domain.CollectionAuctions,
		OrderBy:    "endDate",
		Limit:      pageSize,
	}
	if cursor != "" {
		after, err := decodeCursor(cursor)
		if err != nil {
			return nil, err
		}
		query.StartAfter = after
	}

	docs, err := q.store.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	auctions, err := decodeAll[domain.Auction](docs)
	if err != nil {
		return nil, err
	}

	now := q.now()
	for _, a := range auctions {
		a.WithStatus(now)
	}

	page := &domain.AuctionPage{
		Auctions: auctions,
		HasMore:  len(docs) == pageSize,
	}
	if len(docs) > 0 {
		page.NextCursor = encodeCursor(docs[len(docs)-1].Cursor)
	}
	return page, nil
}

// GetUserHostedAuctions returns the auctions a user created, newest first within each batch.
func (q *QueryService) GetUserHostedAuctions(ctx context.Context, userID string) ([]*domain.Auction, error) {
	entries, err := q.store.Query(ctx, domain.Query{
		Collection: domain.UserAuctionsCollection(userID),
		OrderBy:    "createdAt",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(entries))
	for i, entry := range entries {
		ids[i] = entry.ID
	}
	return q.fetchAuctions(ctx, ids)
}

// GetUserParticipatedAuctions returns each auction the user bid on once, most recent bid first.
func (q *QueryService) GetUserParticipatedAuctions(ctx context.Context, userID string) ([]*domain.Auction, error) {
	docs, err := q.store.Query(ctx, domain.Query{
		Collection: domain.UserBidsCollection(userID),
		OrderBy:    "timestamp",
		Descending: true,
	})
	if err != nil {
		return nil, err
	}
	entries, err := decodeAll[domain.PlacedBidEntry](docs)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(entries))
	var ids []string
	for _, entry := range entries {
		if entry.AuctionID == "" || seen[entry.AuctionID] {
			continue
		}
		seen[entry.AuctionID] = true
		ids = append(ids, entry.AuctionID)
	}
	return q.fetchAuctions(ctx, ids)
}

func (q *QueryService) fetchAuctions(ctx context.Context, ids []string) ([]*domain.Auction, error) {
	docs, err := q.batches.Fetch(ctx, domain.CollectionAuctions, ids)
	if err != nil {
		return nil, err
	}
	auctions, err := decodeAll[domain.Auction](docs)
	if err != nil {
		return nil, err
	}
	now := q.now()
	for _, a := range auctions {
		a.WithStatus(now)
	}
	return auctions, nil
}

func encodeCursor(c domain.Cursor) string {
	raw := strconv.FormatFloat(c.Score, 'f', -1, 64) + "|" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func decodeCursor(s string) (*domain.Cursor, error) {
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	score, id, ok := strings.Cut(string(raw), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	value, err := strconv.ParseFloat(score, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrValidation)
	}
	return &domain.Cursor{Score: value, ID: id}, nil
}
