package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"auction-marketplace/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// Identity headers are set by the authenticating gateway; the API trusts them as-is.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
)

var errUnauthenticated = errors.New("authentication required")

func identityFrom(c echo.Context) domain.Identity {
	return domain.Identity{
		UID:   strings.TrimSpace(c.Request().Header.Get(HeaderUserID)),
		Email: strings.TrimSpace(c.Request().Header.Get(HeaderUserEmail)),
	}
}

func requireIdentity(c echo.Context) (domain.Identity, error) {
	identity := identityFrom(c)
	if identity.Anonymous() {
		return identity, errUnauthenticated
	}
	return identity, nil
}

// RequestValidator plugs go-playground/validator into echo's c.Validate.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{validate: validator.New()}
}

func (v *RequestValidator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	messages := make([]string, 0, len(validationErrors))
	for _, e := range validationErrors {
		messages = append(messages, fmt.Sprintf("field '%s' failed on the '%s' tag", e.Field(), e.Tag()))
	}
	return fmt.Errorf("%w: %s", domain.ErrValidation, strings.Join(messages, "; "))
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fmt.Errorf("%w: invalid request body", domain.ErrValidation)
	}
	return c.Validate(req)
}

type ErrorResponse struct {
	Error      string   `json:"error"`
	Code       string   `json:"code"`
	MinimumBid *float64 `json:"minimumBid,omitempty"`
}

// errorStatus maps the domain error taxonomy onto HTTP.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, errUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidQuery):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, domain.ErrAuthorization):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrAuctionEnded):
		return http.StatusConflict, "auction_ended"
	case errors.Is(err, domain.ErrInvalidBid):
		return http.StatusConflict, "invalid_bid"
	case errors.Is(err, domain.ErrConcurrentModification):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func respondError(c echo.Context, err error) error {
	status, code := errorStatus(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	var tooLow *domain.BidTooLowError
	if errors.As(err, &tooLow) {
		minimum := tooLow.Minimum
		resp.MinimumBid = &minimum
	}
	if status == http.StatusInternalServerError {
		resp.Error = "internal error"
	}
	return c.JSON(status, resp)
}

// AuctionResponse adds the derived status, which the stored document does not carry.
type AuctionResponse struct {
	*domain.Auction
	Status string `json:"status"`
}

func newAuctionResponse(a *domain.Auction) AuctionResponse {
	return AuctionResponse{Auction: a, Status: a.Status.String()}
}

func newAuctionResponses(auctions []*domain.Auction) []AuctionResponse {
	out := make([]AuctionResponse, len(auctions))
	for i, a := range auctions {
		out[i] = newAuctionResponse(a)
	}
	return out
}

func emptyIfNil(bids []*domain.Bid) []*domain.Bid {
	if bids == nil {
		return []*domain.Bid{}
	}
	return bids
}
