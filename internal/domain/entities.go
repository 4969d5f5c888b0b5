package domain

import (
	"time"
)

// Auction is the stored listing. Revision grows by one with every committed write.
type Auction struct {
	ID            string        `json:"id"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	StartingPrice float64       `json:"startingPrice"`
	CurrentPrice  float64       `json:"currentPrice"`
	ImageURL      string        `json:"imageUrl,omitempty"`
	StartDate     time.Time     `json:"startDate"`
	EndDate       time.Time     `json:"endDate"`
	CreatedBy     string        `json:"createdBy"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
	Revision      int64         `json:"revision"`
	Status        AuctionStatus `json:"-"`
}

// IsActive reports whether bids may still be accepted at now. Only EndDate is consulted.
func (a *Auction) IsActive(now time.Time) bool {
	return a.EndDate.After(now)
}

// Floor is the amount a new bid has to beat.
func (a *Auction) Floor() float64 {
	if a.CurrentPrice > 0 {
		return a.CurrentPrice
	}
	return a.StartingPrice
}

// WithStatus fills the derived Status field for presentation.
func (a *Auction) WithStatus(now time.Time) *Auction {
	if a.IsActive(now) {
		a.Status = AuctionActive
	} else {
		a.Status = AuctionEnded
	}
	return a
}

type AuctionStatus int

const (
	AuctionActive AuctionStatus = iota
	AuctionEnded
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionActive:
		return "active"
	case AuctionEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// AuctionPatch carries the owner-editable fields. Nil means unchanged.
type AuctionPatch struct {
	Title       *string
	Description *string
	ImageURL    *string
}

func (p AuctionPatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.ImageURL == nil
}

type NewAuction struct {
	OwnerID       string
	Title         string
	Description   string
	StartingPrice float64
	StartDate     time.Time
	EndDate       time.Time
	ImageURL      string
}

type Bid struct {
	ID              string    `json:"id"`
	AuctionID       string    `json:"auctionId"`
	UserID          string    `json:"userId"`
	Amount          float64   `json:"amount"`
	Timestamp       time.Time `json:"timestamp"`
	UserDisplayName string    `json:"userDisplayName"`
}

type UserProfile struct {
	UID         string    `json:"uid"`
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Revision    int64     `json:"revision"`
}

type ProfilePatch struct {
	DisplayName *string
	Email       *string
}

// OwnedAuctionEntry lives under userAuctions/{uid}.
type OwnedAuctionEntry struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

// PlacedBidEntry lives under userBids/{uid}.
type PlacedBidEntry struct {
	ID        string    `json:"id"`
	AuctionID string    `json:"auctionId"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// AuctionResult is the archived outcome of an auction once it has ended.
type AuctionResult struct {
	AuctionID     string    `json:"auctionId"`
	Title         string    `json:"title"`
	CreatedBy     string    `json:"createdBy"`
	StartingPrice float64   `json:"startingPrice"`
	FinalPrice    float64   `json:"finalPrice"`
	WinnerID      string    `json:"winnerId,omitempty"`
	BidCount      int       `json:"bidCount"`
	EndDate       time.Time `json:"endDate"`
	ArchivedAt    time.Time `json:"archivedAt"`
}

type AuctionPage struct {
	Auctions   []*Auction `json:"auctions"`
	NextCursor string     `json:"nextCursor,omitempty"`
	HasMore    bool       `json:"hasMore"`
}

// AuctionSnapshot is what subscribers of an auction receive on every change.
type AuctionSnapshot struct {
	Auction *Auction `json:"auction"`
	Bids    []*Bid   `json:"bids"`
}

type EntityType string

const (
	EntityAuction EntityType = "auction"
	EntityUser    EntityType = "user"
)

type ChangeType string

const (
	AuctionCreated ChangeType = "auction_created"
	AuctionUpdated ChangeType = "auction_updated"
	AuctionDeleted ChangeType = "auction_deleted"
	AuctionClosed  ChangeType = "auction_ended"
	BidPlaced      ChangeType = "bid_placed"
	ProfileUpdated ChangeType = "profile_updated"
)

// ChangeEvent is published after a store commit. It names the entity, the relay reloads it.
type ChangeEvent struct {
	Type       ChangeType `json:"type"`
	EntityType EntityType `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	Bid        *Bid       `json:"bid,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}
