package handlers

import (
	"net/http"
	"strconv"
	"time"

	"auction-marketplace/internal/domain"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"

	"github.com/labstack/echo/v4"
)

type AuctionHandler struct {
	auctionManager *services.AuctionManager
	queries        *services.QueryService
	log            logger.Logger
}

type CreateAuctionRequest struct {
	Title         string    `json:"title" validate:"required,max=200"`
	Description   string    `json:"description" validate:"required,max=5000"`
	StartingPrice float64   `json:"startingPrice" validate:"gt=0"`
	ImageURL      string    `json:"imageUrl" validate:"omitempty,url"`
	StartDate     time.Time `json:"startDate" validate:"required"`
	EndDate       time.Time `json:"endDate" validate:"required,gtfield=StartDate"`
}

type UpdateAuctionRequest struct {
	Title       *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,min=1,max=5000"`
	ImageURL    *string `json:"imageUrl" validate:"omitempty,url"`
}

type AuctionPageResponse struct {
	Auctions   []AuctionResponse `json:"auctions"`
	NextCursor string            `json:"nextCursor,omitempty"`
	HasMore    bool              `json:"hasMore"`
}

func NewAuctionHandler(auctionManager *services.AuctionManager, queries *services.QueryService, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		auctionManager: auctionManager,
		queries:        queries,
		log:            log,
	}
}

func (h *AuctionHandler) RegisterRoutes(api *echo.Group) {
	api.POST("/auctions", h.CreateAuction)
	api.GET("/auctions", h.ListAuctions)
	api.GET("/auctions/:id", h.GetAuction)
	api.PATCH("/auctions/:id", h.UpdateAuction)
	api.DELETE("/auctions/:id", h.DeleteAuction)
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return respondError(c, err)
	}

	var req CreateAuctionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	auction, err := h.auctionManager.CreateAuction(c.Request().Context(), domain.NewAuction{
		OwnerID:       identity.UID,
		Title:         req.Title,
		Description:   req.Description,
		StartingPrice: req.StartingPrice,
		ImageURL:      req.ImageURL,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
	})
	if err != nil {
		h.log.Error("Failed to create auction", "owner_id", identity.UID, "error", err)
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, newAuctionResponse(auction))
}

func (h *AuctionHandler) ListAuctions(c echo.Context) error {
	pageSize := 0
	if raw := c.QueryParam("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "page_size must be a positive integer", Code: "invalid_request"})
		}
		pageSize = n
	}

	page, err := h.queries.ListAuctionsPage(c.Request().Context(), pageSize, c.QueryParam("cursor"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, AuctionPageResponse{
		Auctions:   newAuctionResponses(page.Auctions),
		NextCursor: page.NextCursor,
		HasMore:    page.HasMore,
	})
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auction, err := h.auctionManager.GetAuction(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func (h *AuctionHandler) UpdateAuction(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return respondError(c, err)
	}

	var req UpdateAuctionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	auction, err := h.auctionManager.UpdateAuction(c.Request().Context(), c.Param("id"), identity.UID, domain.AuctionPatch{
		Title:       req.Title,
		Description: req.Description,
		ImageURL:    req.ImageURL,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponse(auction))
}

func (h *AuctionHandler) DeleteAuction(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return respondError(c, err)
	}

	auctionID := c.Param("id")
	if err := h.auctionManager.DeleteAuction(c.Request().Context(), auctionID, identity.UID); err != nil {
		return respondError(c, err)
	}
	h.log.Info("Auction deleted via API", "auction_id", auctionID, "requester", identity.UID)
	return c.NoContent(http.StatusNoContent)
}
