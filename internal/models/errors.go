package models

import "errors"

// Expected business-rule failures. These are control flow, not faults: services
// return them wrapped so handlers can map them to user-visible outcomes, and
// concurrency-race losers surface as ErrInvalidState rather than overwriting.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnauthorized = errors.New("unauthorized")
)
