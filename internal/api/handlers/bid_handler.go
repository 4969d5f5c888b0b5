package handlers

import (
	"net/http"

	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"

	"github.com/labstack/echo/v4"
)

type BidHandler struct {
	bidEngine *services.BidEngine
	profiles  *services.ProfileService
	log       logger.Logger
}

type PlaceBidRequest struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

type MinimumBidResponse struct {
	AuctionID  string  `json:"auctionId"`
	MinimumBid float64 `json:"minimumBid"`
}

func NewBidHandler(bidEngine *services.BidEngine, profiles *services.ProfileService, log logger.Logger) *BidHandler {
	return &BidHandler{bidEngine: bidEngine, profiles: profiles, log: log}
}

func (h *BidHandler) RegisterRoutes(api *echo.Group) {
	api.POST("/auctions/:id/bids", h.PlaceBid)
	api.GET("/auctions/:id/bids", h.GetAuctionBids)
	api.GET("/auctions/:id/minimum-bid", h.GetMinimumBid)
}

func (h *BidHandler) PlaceBid(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return respondError(c, err)
	}

	var req PlaceBidRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()
	displayName := h.profiles.DisplayNameFor(ctx, identity)
	bid, err := h.bidEngine.PlaceBid(ctx, c.Param("id"), identity.UID, req.Amount, displayName)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, bid)
}

func (h *BidHandler) GetAuctionBids(c echo.Context) error {
	bids, err := h.bidEngine.GetAuctionBids(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, emptyIfNil(bids))
}

func (h *BidHandler) GetMinimumBid(c echo.Context) error {
	auctionID := c.Param("id")
	minimum, err := h.bidEngine.MinimumBid(c.Request().Context(), auctionID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, MinimumBidResponse{AuctionID: auctionID, MinimumBid: minimum})
}
