package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"

	"github.com/garytangtang2-bit/hkfirstclick/database"
	"github.com/google/uuid"
)

// Settlement is what gets charged and stored after a successful generation.
type Settlement struct {
	AccountID   string
	ParentID    string
	Title       string
	Destination string
	StartDate   string
	EndDate     string
	Raw         json.RawMessage
	Preferences json.RawMessage
}

// Settler charges one credit and stores the itinerary. The two writes are
// independent: either may fail without undoing the other, and neither
// failure reaches the caller.
type Settler struct {
	accounts    Accounts
	itineraries Itineraries
	logger      *slog.Logger
}

func NewSettler(accounts Accounts, itineraries Itineraries, logger *slog.Logger) *Settler {
	return &Settler{accounts: accounts, itineraries: itineraries, logger: logger}
}

// Settle returns the stored itinerary id, or nil when nothing was stored.
func (s *Settler) Settle(ctx context.Context, st Settlement) *string {
	if st.AccountID == "" {
		return nil
	}

	if remaining, err := s.accounts.DecrementCredit(ctx, st.AccountID); err != nil {
		s.logger.Error("failed to deduct credit", "account_id", st.AccountID, "error", err)
	} else {
		s.logger.Info("credit deducted", "account_id", st.AccountID, "remaining", remaining)
	}

	it := &database.Itinerary{
		ID:          uuid.NewString(),
		UserID:      st.AccountID,
		ParentID:    sql.NullString{String: st.ParentID, Valid: st.ParentID != ""},
		Title:       st.Title,
		Destination: st.Destination,
		StartDate:   st.StartDate,
		EndDate:     st.EndDate,
		Data:        st.Raw,
		Preferences: st.Preferences,
	}
	if err := s.itineraries.Insert(ctx, it); err != nil {
		s.logger.Error("failed to save itinerary", "account_id", st.AccountID, "error", err)
		return nil
	}
	return &it.ID
}
