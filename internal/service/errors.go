package service

import "errors"

var (
	// ErrInvalidAmount means non-positive amount passed.
	ErrInvalidAmount = errors.New("amount must be positive")
	// ErrCreditLimitExceeded means a single credit is above the configured cap.
	ErrCreditLimitExceeded = errors.New("amount exceeds credit limit")
	// ErrRedemptionFieldsRequired means amount or UPI id is missing.
	ErrRedemptionFieldsRequired = errors.New("amount and UPI ID are required")
	// ErrNonPositiveAmount means a redemption amount below zero.
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	// ErrInvalidUPI means the payout destination is not a handle@provider id.
	ErrInvalidUPI = errors.New("invalid UPI ID")
	// ErrInvalidStatus means an unknown redemption status filter.
	ErrInvalidStatus = errors.New("invalid redemption status")
)
