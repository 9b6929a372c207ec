package services

import "errors"

// Sentinel errors returned by the ledger and workflow services. Callers
// classify failures with errors.Is; everything else wraps a lower-level
// persistence error.
var (
	// ErrInsufficientFunds aborts a settlement or reconciliation whose debit
	// would drive a funding source balance negative. Nothing is written.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrAlreadySettled guards settlement idempotency: settling a Paid item
	// changes nothing and creates no second transaction.
	ErrAlreadySettled = errors.New("already settled")

	// ErrItemLocked rejects edits or removal of a cost line item once it has
	// been paid.
	ErrItemLocked = errors.New("cost item locked after settlement")

	// ErrValidationFailed flags a request missing required inputs or
	// referencing records in the wrong state.
	ErrValidationFailed = errors.New("validation failed")

	// ErrPackageRequired rejects a lead conversion without a selected package.
	ErrPackageRequired = errors.New("package required")

	// ErrInvalidPromo marks an inactive, expired or exhausted promo code. It
	// is recoverable: conversion proceeds without the discount.
	ErrInvalidPromo = errors.New("invalid promo code")

	// ErrInvalidTransition rejects a status move the transition table does
	// not allow.
	ErrInvalidTransition = errors.New("status transition not allowed")

	// ErrDepositFailed reports a conversion whose client and project were
	// created but whose deposit was not booked. The conversion stands; the
	// payment must be recorded manually.
	ErrDepositFailed = errors.New("deposit not recorded")
)
