package mysql

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"auction-marketplace/internal/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveBidIsInsertIgnore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	archivedAt := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	archive := NewMySQLBidArchive(db)
	archive.now = func() time.Time { return archivedAt }

	bidTime := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO bid_events (bid_id,auction_id,user_id,user_display_name,amount,bid_timestamp,created_at) VALUES (?,?,?,?,?,?,?)")).
		WithArgs("b1", "a1", "u1", "Alice", 101.5, bidTime, archivedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = archive.SaveBid(context.Background(), &domain.Bid{
		ID: "b1", AuctionID: "a1", UserID: "u1", UserDisplayName: "Alice", Amount: 101.5, Timestamp: bidTime,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBidHistory(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	t1 := time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"bid_id", "auction_id", "user_id", "user_display_name", "amount", "bid_timestamp"}).
		AddRow("b2", "a1", "u2", "Bob", 150.0, t1.Add(time.Minute)).
		AddRow("b1", "a1", "u1", "Alice", 101.0, t1)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT bid_id, auction_id, user_id, user_display_name, amount, bid_timestamp FROM bid_events WHERE auction_id = ? ORDER BY bid_timestamp DESC, bid_id DESC")).
		WithArgs("a1").
		WillReturnRows(rows)

	bids, err := NewMySQLBidArchive(db).GetBidHistory(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, bids, 2)
	assert.Equal(t, "b2", bids[0].ID)
	assert.Equal(t, 150.0, bids[0].Amount)
	assert.Equal(t, "Alice", bids[1].UserDisplayName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAuctionResultRoundTrip(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	end := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	result := &domain.AuctionResult{
		AuctionID: "a1", Title: "Lamp", CreatedBy: "owner", StartingPrice: 100, FinalPrice: 150,
		WinnerID: "u2", BidCount: 2, EndDate: end, ArchivedAt: end.Add(time.Second),
	}
	archive := NewMySQLAuctionArchive(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO auction_results")).
		WithArgs("a1", "Lamp", "owner", 100.0, 150.0, "u2", 2, end, end.Add(time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, archive.SaveResult(context.Background(), result))

	mock.ExpectQuery(regexp.QuoteMeta("FROM auction_results WHERE auction_id = ?")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows([]string{"auction_id", "title", "created_by", "starting_price", "final_price",
			"winner_id", "bid_count", "end_date", "archived_at"}).
			AddRow("a1", "Lamp", "owner", 100.0, 150.0, "u2", 2, end, end.Add(time.Second)))
	got, err := archive.GetResult(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, result, got)

	mock.ExpectQuery(regexp.QuoteMeta("FROM auction_results")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	_, err = archive.GetResult(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmbeddedMigrations(t *testing.T) {
	src, err := iofs.New(migrationsFS, "migrations")
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	next, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), next)

	up, name, err := src.ReadUp(next)
	require.NoError(t, err)
	defer up.Close()
	assert.Equal(t, "create_auction_results", name)
}
