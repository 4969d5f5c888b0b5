package handlers

import (
	"net/http"

	"auction-marketplace/internal/domain"
	"auction-marketplace/internal/services"
	"auction-marketplace/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ProfileHandler serves a user's profile and the per-user views of auctions and bids.
type ProfileHandler struct {
	profiles  *services.ProfileService
	queries   *services.QueryService
	bidEngine *services.BidEngine
	log       logger.Logger
}

type UpdateProfileRequest struct {
	DisplayName *string `json:"displayName" validate:"omitempty,min=1,max=50"`
	Email       *string `json:"email" validate:"omitempty,email"`
}

func NewProfileHandler(profiles *services.ProfileService, queries *services.QueryService, bidEngine *services.BidEngine, log logger.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, queries: queries, bidEngine: bidEngine, log: log}
}

func (h *ProfileHandler) RegisterRoutes(api *echo.Group) {
	users := api.Group("/users/:uid")
	users.GET("/profile", h.GetProfile)
	users.PUT("/profile", h.UpdateProfile)
	users.GET("/bids", h.GetUserBids)
	users.GET("/auctions/hosted", h.GetHostedAuctions)
	users.GET("/auctions/participated", h.GetParticipatedAuctions)
}

func (h *ProfileHandler) GetProfile(c echo.Context) error {
	profile, err := h.profiles.GetProfile(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateProfile(c echo.Context) error {
	identity, err := requireIdentity(c)
	if err != nil {
		return respondError(c, err)
	}

	var req UpdateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	profile, err := h.profiles.CreateOrUpdateProfile(c.Request().Context(), c.Param("uid"), identity, domain.ProfilePatch{
		DisplayName: req.DisplayName,
		Email:       req.Email,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, profile)
}

func (h *ProfileHandler) GetUserBids(c echo.Context) error {
	bids, err := h.bidEngine.GetUserBids(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, emptyIfNil(bids))
}

func (h *ProfileHandler) GetHostedAuctions(c echo.Context) error {
	auctions, err := h.queries.GetUserHostedAuctions(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponses(auctions))
}

func (h *ProfileHandler) GetParticipatedAuctions(c echo.Context) error {
	auctions, err := h.queries.GetUserParticipatedAuctions(c.Request().Context(), c.Param("uid"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, newAuctionResponses(auctions))
}
