package engine

import (
	"errors"

	"github.com/mlundquist/saga-engine/internal/storage"
	"github.com/mlundquist/saga-engine/pkg/brain"
	"github.com/mlundquist/saga-engine/pkg/parser"
)

// Sentinel errors for the turn pipeline. Everything the pipeline can fail
// with wraps exactly one of these so handlers can map errors to codes with
// errors.Is.
var (
	// ErrValidation covers malformed or incomplete turn requests,
	// rejected before any work is done.
	ErrValidation = errors.New("invalid turn request")

	// ErrCampaignNotFound means the campaign id resolves to nothing.
	ErrCampaignNotFound = errors.New("campaign not found")

	// ErrWorldNotFound means the campaign references an unknown world
	// variant.
	ErrWorldNotFound = errors.New("world not found")

	// ErrTurnInFlight rejects a second concurrent turn for the same
	// campaign.
	ErrTurnInFlight = errors.New("a turn for this campaign is already in flight")

	// ErrPersistence means the resolved turn could not be saved. The
	// wording is part of the billing contract: nothing was charged.
	ErrPersistence = errors.New("failed to save the turn; your turn was not charged")

	// ErrNotCharged means the turn was saved but the ledger debit failed
	// afterwards. The state is recoverable and the player owes nothing.
	ErrNotCharged = errors.New("the turn was saved but not charged")
)

// Error codes surfaced on the wire.
const (
	CodeValidation     = "validation_error"
	CodeNotFound       = "campaign_not_found"
	CodeWorldNotFound  = "world_not_found"
	CodeConflict       = "turn_in_flight"
	CodeProviderFail   = "provider_failure"
	CodeInvalidResp    = "invalid_response"
	CodeInsufficient   = "insufficient_balance"
	CodePersistence    = "persistence_failure"
	CodeNotCharged     = "not_charged"
	CodeInternal       = "internal_error"
)

// Code maps a pipeline error to its wire code. The parser sentinel is
// checked before the brain sentinel because a hard parse failure arrives
// wrapped in both.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrCampaignNotFound):
		return CodeNotFound
	case errors.Is(err, ErrWorldNotFound):
		return CodeWorldNotFound
	case errors.Is(err, ErrTurnInFlight):
		return CodeConflict
	case errors.Is(err, parser.ErrInvalidResponse):
		return CodeInvalidResp
	case errors.Is(err, brain.ErrBrainFailure):
		return CodeProviderFail
	case errors.Is(err, storage.ErrInsufficientBalance):
		return CodeInsufficient
	case errors.Is(err, ErrPersistence):
		return CodePersistence
	case errors.Is(err, ErrNotCharged):
		return CodeNotCharged
	default:
		return CodeInternal
	}
}
