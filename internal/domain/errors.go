// Package domain contains the signaling entities and the error taxonomy,
// without transport or engine logic.
package domain

import "errors"

var (
	ErrUnknownSession     = errors.New("unknown session")
	ErrNegotiation        = errors.New("negotiation failed")
	ErrIDExhausted        = errors.New("session id space exhausted")
	ErrCoordinatorStopped = errors.New("coordinator stopped")
	ErrInvalidOffer       = errors.New("invalid offer")
	ErrInvalidCandidate   = errors.New("invalid candidate")
)
