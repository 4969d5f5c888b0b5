package domain

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const (
	CollectionAuctions = "auctions"
	CollectionBids     = "bids"
	CollectionUsers    = "users"

	userAuctionsPrefix = "userAuctions/"
	userBidsPrefix     = "userBids/"

	// MaxInValues bounds an `id in [...]` filter.
	MaxInValues = 10

	FieldID = "id"
)

func UserAuctionsCollection(uid string) string { return userAuctionsPrefix + uid }

func UserBidsCollection(uid string) string { return userBidsPrefix + uid }

// EntityStore is the document store the core runs against.
type EntityStore interface {
	// Get decodes the document into dst or returns ErrNotFound.
	Get(ctx context.Context, collection, id string, dst interface{}) error
	Set(ctx context.Context, collection, id string, doc interface{}) error
	// Update merges fields into an existing document. Missing documents yield ErrNotFound.
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
	Query(ctx context.Context, q Query) ([]DocumentSnapshot, error)
	// RunTransaction runs fn once. Reads made through the Txn are watched, writes are
	// buffered and applied together. ErrConcurrentModification means nothing was applied.
	RunTransaction(ctx context.Context, fn func(ctx context.Context, tx Txn) error) error
	Close() error
}

type Txn interface {
	Get(ctx context.Context, collection, id string, dst interface{}) error
	Query(ctx context.Context, q Query) ([]DocumentSnapshot, error)
	Set(ctx context.Context, collection, id string, doc interface{}) error
	Update(ctx context.Context, collection, id string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, id string) error
}

type FilterOp string

const (
	OpEqual FilterOp = "=="
	OpIn    FilterOp = "in"
)

type Filter struct {
	Field string
	Op    FilterOp
	Value interface{}
}

func Eq(field string, value string) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func IDIn(ids []string) Filter {
	return Filter{Field: FieldID, Op: OpIn, Value: ids}
}

// Cursor is a position in an ordered index. Ties on Score are broken by ID.
type Cursor struct {
	Score float64
	ID    string
}

// TimeScore is how timestamps are ordered inside an index.
func TimeScore(t time.Time) float64 {
	return float64(t.UnixMicro())
}

type Query struct {
	Collection string
	Where      []Filter
	OrderBy    string
	Descending bool
	// Limit <= 0 means unbounded.
	Limit      int
	StartAfter *Cursor
	// EndAt is an inclusive bound on the order score in the scan direction.
	EndAt *float64
}

type DocumentSnapshot struct {
	ID     string
	Data   json.RawMessage
	Cursor Cursor
}

func (d DocumentSnapshot) DataTo(dst interface{}) error {
	return json.Unmarshal(d.Data, dst)
}

// IndexSpec declares an ordered index kept alongside a collection. A Collection ending in
// "/*" covers every sub-collection with that prefix. GroupField adds per-value indexes for
// equality filters.
type IndexSpec struct {
	Collection string
	OrderField string
	GroupField string
}

func (s IndexSpec) Covers(collection string) bool {
	if strings.HasSuffix(s.Collection, "/*") {
		return strings.HasPrefix(collection, strings.TrimSuffix(s.Collection, "*"))
	}
	return s.Collection == collection
}

var Indexes = []IndexSpec{
	{Collection: CollectionAuctions, OrderField: "endDate"},
	{Collection: CollectionBids, OrderField: "timestamp", GroupField: "auctionId"},
	{Collection: userAuctionsPrefix + "*", OrderField: "createdAt"},
	{Collection: userBidsPrefix + "*", OrderField: "timestamp"},
}
