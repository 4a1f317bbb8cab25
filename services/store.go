package services

import (
	"context"

	"github.com/garytangtang2-bit/hkfirstclick/database"
)

// Accounts is the account ledger as the pipeline sees it.
type Accounts interface {
	Get(ctx context.Context, id string) (*database.Account, error)
	Create(ctx context.Context, id, email, tier string, credits int) (*database.Account, error)
	DecrementCredit(ctx context.Context, id string) (int, error)
	ApplySubscription(ctx context.Context, id, tier string, credits int) error
	AddCredits(ctx context.Context, id, topupTier string, credits int) error
}

// Itineraries is the append-only itinerary table.
type Itineraries interface {
	Insert(ctx context.Context, it *database.Itinerary) error
	Get(ctx context.Context, id, userID string) (*database.Itinerary, error)
	List(ctx context.Context, userID string) ([]database.ItinerarySummary, error)
}
