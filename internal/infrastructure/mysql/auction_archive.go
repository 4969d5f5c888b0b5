package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auction-marketplace/internal/domain"

	sq "github.com/Masterminds/squirrel"
)

var _ domain.AuctionArchive = (*MySQLAuctionArchive)(nil)

type MySQLAuctionArchive struct {
	db *sql.DB
}

func NewMySQLAuctionArchive(db *sql.DB) *MySQLAuctionArchive {
	return &MySQLAuctionArchive{db: db}
}

func (r *MySQLAuctionArchive) SaveResult(ctx context.Context, result *domain.AuctionResult) error {
	query, args, err := sq.Insert("auction_results").
		Columns("auction_id", "title", "created_by", "starting_price", "final_price",
			"winner_id", "bid_count", "end_date", "archived_at").
		Values(result.AuctionID, result.Title, result.CreatedBy, result.StartingPrice, result.FinalPrice,
			result.WinnerID, result.BidCount, result.EndDate.UTC(), result.ArchivedAt.UTC()).
		Suffix("ON DUPLICATE KEY UPDATE final_price = VALUES(final_price), winner_id = VALUES(winner_id), " +
			"bid_count = VALUES(bid_count), archived_at = VALUES(archived_at)").
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	return err
}

func (r *MySQLAuctionArchive) GetResult(ctx context.Context, auctionID string) (*domain.AuctionResult, error) {
	query, args, err := sq.Select("auction_id", "title", "created_by", "starting_price", "final_price",
		"winner_id", "bid_count", "end_date", "archived_at").
		From("auction_results").
		Where(sq.Eq{"auction_id": auctionID}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var result domain.AuctionResult
	err = r.db.QueryRowContext(ctx, query, args...).Scan(
		&result.AuctionID, &result.Title, &result.CreatedBy, &result.StartingPrice, &result.FinalPrice,
		&result.WinnerID, &result.BidCount, &result.EndDate, &result.ArchivedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: no archived result for auction %s", domain.ErrNotFound, auctionID)
		}
		return nil, err
	}

	return &result, nil
}
