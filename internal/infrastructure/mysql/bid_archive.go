package mysql

import (
	"context"
	"database/sql"
	"time"

	"auction-marketplace/internal/domain"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"
)

var _ domain.BidArchive = (*MySQLBidArchive)(nil)

type MySQLBidArchive struct {
	db  *sql.DB
	now domain.Clock
}

func NewMySQLBidArchive(db *sql.DB) *MySQLBidArchive {
	return &MySQLBidArchive{db: db, now: time.Now}
}

// SaveBid is idempotent on the bid id so redelivered changes are harmless.
func (r *MySQLBidArchive) SaveBid(ctx context.Context, bid *domain.Bid) error {
	query, args, err := sq.Insert("bid_events").
		Options("IGNORE").
		Columns("bid_id", "auction_id", "user_id", "user_display_name", "amount", "bid_timestamp", "created_at").
		Values(bid.ID, bid.AuctionID, bid.UserID, bid.UserDisplayName, bid.Amount, bid.Timestamp.UTC(), r.now().UTC()).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *MySQLBidArchive) GetBidHistory(ctx context.Context, auctionID string) ([]*domain.Bid, error) {
	query, args, err := sq.Select("bid_id", "auction_id", "user_id", "user_display_name", "amount", "bid_timestamp").
		From("bid_events").
		Where(sq.Eq{"auction_id": auctionID}).
		OrderBy("bid_timestamp DESC", "bid_id DESC").
		ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bids := []*domain.Bid{}
	for rows.Next() {
		var bid domain.Bid
		err := rows.Scan(&bid.ID, &bid.AuctionID, &bid.UserID, &bid.UserDisplayName,
			&bid.Amount, &bid.Timestamp)
		if err != nil {
			return nil, err
		}
		bids = append(bids, &bid)
	}

	return bids, rows.Err()
}
