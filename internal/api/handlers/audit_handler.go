package handlers

import (
	"net/http"

	"auction-marketplace/internal/domain"

	"github.com/labstack/echo/v4"
)

// AuditHandler reads the MySQL archive. It is only mounted when archiving is enabled.
type AuditHandler struct {
	bids    domain.BidArchive
	results domain.AuctionArchive
}

func NewAuditHandler(bids domain.BidArchive, results domain.AuctionArchive) *AuditHandler {
	return &AuditHandler{bids: bids, results: results}
}

func (h *AuditHandler) RegisterRoutes(api *echo.Group) {
	audit := api.Group("/audit/auctions/:id")
	audit.GET("/bids", h.GetBidHistory)
	audit.GET("/result", h.GetResult)
}

func (h *AuditHandler) GetBidHistory(c echo.Context) error {
	bids, err := h.bids.GetBidHistory(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, emptyIfNil(bids))
}

func (h *AuditHandler) GetResult(c echo.Context) error {
	result, err := h.results.GetResult(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, result)
}
