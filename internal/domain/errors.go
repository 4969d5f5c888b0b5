package domain

import (
	"errors"
	"fmt"
)

var (
	ErrValidation             = errors.New("validation error")
	ErrAuthorization          = errors.New("not authorized")
	ErrNotFound               = errors.New("not found")
	ErrAuctionEnded           = errors.New("auction has ended")
	ErrInvalidBid             = errors.New("invalid bid")
	ErrConcurrentModification = errors.New("concurrent modification")
	ErrStoreUnavailable       = errors.New("store unavailable")
	ErrInvalidQuery           = errors.New("invalid query")
)

var taxonomy = []error{
	ErrValidation,
	ErrAuthorization,
	ErrNotFound,
	ErrAuctionEnded,
	ErrInvalidBid,
	ErrConcurrentModification,
	ErrStoreUnavailable,
	ErrInvalidQuery,
}

// IsRetryable reports whether the same request may succeed if sent again unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification) || errors.Is(err, ErrStoreUnavailable)
}

func IsClassified(err error) bool {
	for _, target := range taxonomy {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// BidTooLowError is an ErrInvalidBid that carries the quote the caller should retry with.
type BidTooLowError struct {
	Amount  float64
	Floor   float64
	Minimum float64
}

func (e *BidTooLowError) Error() string {
	return fmt.Sprintf("invalid bid: %.2f does not exceed current price %.2f, minimum bid is %.2f",
		e.Amount, e.Floor, e.Minimum)
}

func (e *BidTooLowError) Is(target error) bool {
	return target == ErrInvalidBid
}
